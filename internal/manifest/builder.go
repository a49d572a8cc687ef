package manifest

import (
	"fmt"
	"sort"
	"time"

	"github.com/Masterminds/semver/v3"
	"gorm.io/gorm"

	"github.com/Nika0000/publisher-cli/internal/models"
	"github.com/Nika0000/publisher-cli/internal/policy"
)

type slotKey struct {
	os   string
	arch string
	typ  string
}

// BuildVersionManifest assembles the manifest for a single version from
// its directly-owned builds. Published at
// {storage_key_prefix}/manifest.json.
func BuildVersionManifest(db *gorm.DB, versionName, channel string) (*Manifest, error) {
	var v models.Version
	if err := db.Where("version_name = ? AND release_channel = ?", versionName, channel).First(&v).Error; err != nil {
		return nil, fmt.Errorf("version %s/%s: %w", channel, versionName, err)
	}
	var builds []models.Build
	if err := db.Where("version_id = ?", v.ID).Find(&builds).Error; err != nil {
		return nil, fmt.Errorf("builds for %s/%s: %w", channel, versionName, err)
	}

	groups := map[slotKey][]Source{}
	for i := range builds {
		b := &builds[i]
		k := slotKey{b.OS, b.Arch, b.Type}
		groups[k] = append(groups[k], SourceFromBuild(b))
	}

	m := headerFromVersion(&v)
	m.Platforms = assemblePlatforms(groups)
	m.Name = manifestName(m.Platforms)
	return m, nil
}

// BuildLatestManifest aggregates the newest published source for every
// platform slot across all published versions of a channel. Versions are
// ranked by descending semantic version, never by insert timestamp, and
// once a newer version fills a (os, arch, type, distribution) key an
// older version can't overwrite it. Published at
// channels/{channel}/manifest.json.
func BuildLatestManifest(db *gorm.DB, channel string) (*Manifest, error) {
	var versions []models.Version
	if err := db.Where("release_channel = ? AND is_published = ?", channel, true).Find(&versions).Error; err != nil {
		return nil, fmt.Errorf("published versions in %s: %w", channel, err)
	}
	if len(versions) == 0 {
		return nil, fmt.Errorf("channel %s: %w", channel, gorm.ErrRecordNotFound)
	}
	SortVersionsDescending(versions)

	ids := make([]string, len(versions))
	for i := range versions {
		ids[i] = versions[i].ID
	}
	var builds []models.Build
	if err := db.Where("version_id IN ?", ids).Find(&builds).Error; err != nil {
		return nil, fmt.Errorf("builds in %s: %w", channel, err)
	}
	byVersion := map[string][]models.Build{}
	for _, b := range builds {
		byVersion[b.VersionID] = append(byVersion[b.VersionID], b)
	}

	type distKey struct {
		slotKey
		dist string
	}
	filled := map[distKey][]Source{}
	for i := range versions {
		v := &versions[i]
		for j := range byVersion[v.ID] {
			b := &byVersion[v.ID][j]
			k := distKey{slotKey{b.OS, b.Arch, b.Type}, ResolveDistribution(b)}
			if prior, ok := filled[k]; ok && prior[0].SourceVersion != v.VersionName {
				continue // a newer version already supplies this key
			}
			s := SourceFromBuild(b)
			s.SourceVersion = v.VersionName
			filled[k] = append(filled[k], s)
		}
	}

	groups := map[slotKey][]Source{}
	for k, sources := range filled {
		groups[k.slotKey] = append(groups[k.slotKey], sources...)
	}

	m := headerFromVersion(&versions[0])
	m.Platforms = assemblePlatforms(groups)
	m.Name = manifestName(m.Platforms)
	return m, nil
}

// VersionManifestPath is where a version's own manifest is stored.
func VersionManifestPath(storagePrefix string) string {
	return storagePrefix + "/manifest.json"
}

func headerFromVersion(v *models.Version) *Manifest {
	m := &Manifest{
		ManifestVersion: v.ManifestVersion,
		Version:         v.VersionName,
		Channel:         v.ReleaseChannel,
		IsMandatory:     v.IsMandatory,
		ReleaseNotes:    v.ReleaseNotes,
		Changelog:       v.Changelog,
		UpdatePolicy:    policy.Resolve(v),
	}
	if v.ReleaseDate != nil {
		m.ReleaseDate = v.ReleaseDate.UTC().Format(time.RFC3339)
	}
	return m
}

// assemblePlatforms turns flat slot groups into the platforms tree.
// Platforms follow the canonical OS order; the arch/type maps are
// emitted key-sorted by encoding/json, so the output is deterministic.
func assemblePlatforms(groups map[slotKey][]Source) []Platform {
	perOS := map[string]map[string]map[string]Source{}
	for k, candidates := range groups {
		primary, rest := SelectPrimary(candidates)
		if len(rest) > 0 {
			primary.Sources = rest
		}
		if perOS[k.os] == nil {
			perOS[k.os] = map[string]map[string]Source{}
		}
		if perOS[k.os][k.arch] == nil {
			perOS[k.os][k.arch] = map[string]Source{}
		}
		perOS[k.os][k.arch][k.typ] = primary
	}

	var platforms []Platform
	for _, os := range models.SupportedOS {
		if builds, ok := perOS[os]; ok {
			platforms = append(platforms, Platform{OS: os, Builds: builds})
		}
	}
	return platforms
}

// manifestName picks the package name of the first resolved source in
// canonical platform order.
func manifestName(platforms []Platform) string {
	for _, p := range platforms {
		for _, arch := range models.SupportedArch {
			for _, typ := range models.SupportedTypes {
				if s, ok := p.Builds[arch][typ]; ok && s.PackageName != "" {
					return s.PackageName
				}
			}
		}
	}
	return ""
}

// SortVersionsDescending orders versions newest-semver-first. Rows whose
// name doesn't parse sort after every valid one, keeping their relative
// order, so malformed data degrades instead of failing the build.
func SortVersionsDescending(versions []models.Version) {
	parsed := make([]*semver.Version, len(versions))
	for i := range versions {
		if sv, err := semver.NewVersion(versions[i].VersionName); err == nil {
			parsed[i] = sv
		}
	}
	order := make([]int, len(versions))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		va, vb := parsed[order[a]], parsed[order[b]]
		switch {
		case va == nil && vb == nil:
			return false
		case vb == nil:
			return true
		case va == nil:
			return false
		default:
			return va.GreaterThan(vb)
		}
	})
	sorted := make([]models.Version, len(versions))
	for i, idx := range order {
		sorted[i] = versions[idx]
	}
	copy(versions, sorted)
}
