// Package image derives Docker Hub image references for benchmark
// instances. The naming scheme must match the upload tooling byte for
// byte or pulls silently miss the prebuilt environments.
package image

import (
	"fmt"
	"strings"
)

// Repository is the Docker Hub repository that holds all prebuilt
// per-instance environments, namespaced by account.
const Repository = "sweap-images"

// maxTagLen is Docker's tag length ceiling.
const maxTagLen = 128

// The one element-hq instance whose image kept the full repo name and
// -vnan suffix when uploaded. Everything else follows the regular rules.
const elementFullNameInstance = "instance_element-hq__element-web-ec0f940ef0e8e3b61078f145f34dc40d1938e6c5-vnan"

// Tag returns the image tag for an instance: the lowercased repo slug
// joined with dots, a dash, and the instance hash with the "instance_"
// prefix removed. The instance part keeps its original capitalization.
func Tag(instanceID, repo string) (string, error) {
	org, name, ok := strings.Cut(strings.ToLower(repo), "/")
	if !ok {
		return "", fmt.Errorf("repo %q is not an org/name slug", repo)
	}
	hash := strings.TrimPrefix(instanceID, "instance_")

	switch {
	case instanceID == elementFullNameInstance:
		// Keep full name and -vnan for this one upload.
	case strings.Contains(strings.ToLower(repo), "element-hq") &&
		strings.Contains(strings.ToLower(repo), "element-web"):
		name = "element"
		hash = strings.TrimSuffix(hash, "-vnan")
	default:
		hash = strings.TrimSuffix(hash, "-vnan")
	}

	tag := fmt.Sprintf("%s.%s-%s", org, name, hash)
	if len(tag) > maxTagLen {
		tag = tag[:maxTagLen]
	}
	return tag, nil
}

// URI returns the full image reference under the given Docker Hub account,
// e.g. "user/sweap-images:nodebb.nodebb-NodeBB__NodeBB-7b8bff...".
func URI(instanceID, dockerhubUser, repo string) (string, error) {
	tag, err := Tag(instanceID, repo)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%s:%s", dockerhubUser, Repository, tag), nil
}
