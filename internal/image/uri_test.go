package image

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestURI(t *testing.T) {
	cases := []struct {
		name       string
		instanceID string
		repo       string
		want       string
	}{
		{
			name:       "regular instance",
			instanceID: "instance_NodeBB__NodeBB-7b8bffd763e2155cf88f3ebc258fa68ebe18188d-vf2cf3cbd",
			repo:       "NodeBB/NodeBB",
			want:       "user/sweap-images:nodebb.nodebb-NodeBB__NodeBB-7b8bffd763e2155cf88f3ebc258fa68ebe18188d-vf2cf3cbd",
		},
		{
			name:       "vnan suffix stripped",
			instanceID: "instance_org__proj-abcdef-vnan",
			repo:       "org/proj",
			want:       "user/sweap-images:org.proj-org__proj-abcdef",
		},
		{
			name:       "element-web shortened and vnan stripped",
			instanceID: "instance_element-hq__element-web-0123456789abcdef-vnan",
			repo:       "element-hq/element-web",
			want:       "user/sweap-images:element-hq.element-element-hq__element-web-0123456789abcdef",
		},
		{
			name:       "pinned element-web instance keeps full name and vnan",
			instanceID: "instance_element-hq__element-web-ec0f940ef0e8e3b61078f145f34dc40d1938e6c5-vnan",
			repo:       "element-hq/element-web",
			want:       "user/sweap-images:element-hq.element-web-element-hq__element-web-ec0f940ef0e8e3b61078f145f34dc40d1938e6c5-vnan",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := URI(tc.instanceID, "user", tc.repo)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestTagTruncation(t *testing.T) {
	long := "instance_org__proj-" + strings.Repeat("a", 200)
	tag, err := Tag(long, "org/proj")
	require.NoError(t, err)
	assert.Len(t, tag, 128)
}

func TestTagRejectsBareRepo(t *testing.T) {
	_, err := Tag("instance_x-1", "norepo")
	assert.Error(t, err)
}
