package manifest

import (
	"sort"

	"github.com/Nika0000/publisher-cli/internal/models"
)

// ResolveDistribution is the single place distribution is read from a
// build row. Older rows predate the distribution column and carry only
// the external metadata flag; the inference (external -> store) must
// stay byte-compatible with those records. Both the manifest builder and
// the update evaluator go through here so their tie-breaks never drift.
func ResolveDistribution(b *models.Build) string {
	if models.IsSupportedDistribution(b.Distribution) {
		return b.Distribution
	}
	if b.ExternalFlag() {
		return models.DistributionStore
	}
	return models.DistributionDirect
}

// SourceFromBuild converts a build row into a manifest source with its
// distribution resolved and metadata annotations lifted.
func SourceFromBuild(b *models.Build) Source {
	s := Source{
		URL:          b.URL,
		PackageName:  b.PackageName,
		Size:         b.Size,
		SHA256:       b.SHA256,
		SHA512:       b.SHA512,
		Distribution: ResolveDistribution(b),
		CreatedAt:    b.CreatedAt,
		FallbackFrom: b.FallbackFrom(),
		External:     b.ExternalFlag(),
	}
	if b.Variant != "" && b.Variant != models.DefaultVariant {
		s.Variant = b.Variant
	}
	return s
}

func distributionRank(d string) int {
	if d == models.DistributionStore {
		return 0
	}
	return 1
}

// SelectPrimary orders candidates for one (os, arch, type) slot and
// picks the authoritative source. A store listing outranks a direct
// download for the same slot; ties break on upload recency. Losing
// candidates are returned in rank order.
func SelectPrimary(candidates []Source) (Source, []Source) {
	sorted := make([]Source, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		ri, rj := distributionRank(sorted[i].Distribution), distributionRank(sorted[j].Distribution)
		if ri != rj {
			return ri < rj
		}
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})
	return sorted[0], sorted[1:]
}
