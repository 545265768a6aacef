package patchset

import (
	"go.uber.org/zap"

	"sweap/internal/dataset"
)

// ExtractGold builds a patch set from the golden patches in a dataset,
// tagging every entry with prefix (conventionally "gold"). Instances
// without a golden patch are skipped.
func ExtractGold(ds *dataset.Dataset, prefix string, log *zap.Logger) []*Patch {
	patches := make([]*Patch, 0, ds.Len())
	for _, in := range ds.Instances {
		if in.Patch == "" {
			log.Warn("no golden patch for instance, skipping",
				zap.String("instance", in.InstanceID))
			continue
		}
		patches = append(patches, &Patch{
			InstanceID: in.InstanceID,
			Patch:      in.Patch,
			Prefix:     prefix,
		})
	}
	return patches
}
