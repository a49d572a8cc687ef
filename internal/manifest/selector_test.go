package manifest

import (
	"testing"
	"time"

	"gorm.io/datatypes"

	"github.com/Nika0000/publisher-cli/internal/models"
)

func TestResolveDistribution(t *testing.T) {
	cases := []struct {
		name  string
		build models.Build
		want  string
	}{
		{"explicit store", models.Build{Distribution: "store"}, "store"},
		{"explicit direct", models.Build{Distribution: "direct"}, "direct"},
		{"legacy external flag", models.Build{PlatformMetadata: datatypes.JSONMap{"external": true}}, "store"},
		{"legacy external false", models.Build{PlatformMetadata: datatypes.JSONMap{"external": false}}, "direct"},
		{"no column no flag", models.Build{}, "direct"},
		{"bogus column falls back to flag", models.Build{Distribution: "cdn", PlatformMetadata: datatypes.JSONMap{"external": true}}, "store"},
	}
	for _, c := range cases {
		if got := ResolveDistribution(&c.build); got != c.want {
			t.Errorf("%s: ResolveDistribution = %q, want %q", c.name, got, c.want)
		}
	}
}

func TestSelectPrimaryStoreBeatsDirect(t *testing.T) {
	older := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(48 * time.Hour)

	// the direct build is newer but store still wins
	primary, rest := SelectPrimary([]Source{
		{URL: "https://cdn/a", Distribution: "direct", CreatedAt: newer},
		{URL: "https://store/a", Distribution: "store", CreatedAt: older},
	})
	if primary.Distribution != "store" {
		t.Errorf("primary distribution = %q, want store", primary.Distribution)
	}
	if len(rest) != 1 || rest[0].Distribution != "direct" {
		t.Errorf("alternatives = %+v", rest)
	}
}

func TestSelectPrimaryRecencyWithinDistribution(t *testing.T) {
	t1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	primary, _ := SelectPrimary([]Source{
		{URL: "old", Distribution: "store", CreatedAt: t1},
		{URL: "new", Distribution: "store", CreatedAt: t2},
	})
	if primary.URL != "new" {
		t.Errorf("primary = %q, want the newer upload", primary.URL)
	}
}

func TestSelectPrimarySingleCandidate(t *testing.T) {
	primary, rest := SelectPrimary([]Source{{URL: "only", Distribution: "direct"}})
	if primary.URL != "only" || len(rest) != 0 {
		t.Errorf("primary = %+v, rest = %+v", primary, rest)
	}
}

func TestSourceFromBuildAnnotations(t *testing.T) {
	b := models.Build{
		URL:     "https://cdn/app.dmg",
		Variant: "default",
		PlatformMetadata: datatypes.JSONMap{
			"fallback_from": "1.1.0",
			"external":      true,
		},
	}
	s := SourceFromBuild(&b)
	if s.FallbackFrom != "1.1.0" {
		t.Errorf("FallbackFrom = %q", s.FallbackFrom)
	}
	if !s.External || s.Distribution != "store" {
		t.Errorf("external inference: %+v", s)
	}
	if s.Variant != "" {
		t.Errorf("default variant should be elided, got %q", s.Variant)
	}
}
