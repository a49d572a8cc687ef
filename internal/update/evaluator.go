// Package update decides whether an installed client has an eligible
// update. It walks a channel's published versions newest-semver-first
// and stops at the first one passing every gate: strictly newer,
// prerelease-allowed, inside its rollout window, device inside the
// rollout bucket, and shipping a build for the requesting platform.
package update

import (
	"fmt"
	"sort"
	"time"

	"github.com/Masterminds/semver/v3"
	"gorm.io/gorm"

	"github.com/Nika0000/publisher-cli/internal/manifest"
	"github.com/Nika0000/publisher-cli/internal/models"
	"github.com/Nika0000/publisher-cli/internal/policy"
)

// Params identifies the requesting client.
type Params struct {
	InstalledVersion string
	OS               string
	Arch             string
	Channel          string
	DeviceID         string
	AllowPrerelease  bool
}

// Result reports the first eligible update, or Available=false when the
// client is current.
type Result struct {
	Available    bool             `json:"available"`
	Version      string           `json:"version,omitempty"`
	Channel      string           `json:"channel,omitempty"`
	Mandatory    bool             `json:"mandatory,omitempty"`
	ReleaseNotes string           `json:"releaseNotes,omitempty"`
	Changelog    string           `json:"changelog,omitempty"`
	Build        *manifest.Source `json:"build,omitempty"`
}

// CheckForUpdate evaluates update eligibility at time now. Invalid
// installed version, platform, or channel are caller errors and are
// rejected before touching the store. Malformed version rows and policy
// data degrade to "no update"; store read failures are returned, never
// reported as up-to-date.
func CheckForUpdate(db *gorm.DB, p Params, now time.Time) (*Result, error) {
	installed, err := semver.NewVersion(p.InstalledVersion)
	if err != nil {
		return nil, fmt.Errorf("%w: installed version %q (must be semver)", models.ErrUnsupported, p.InstalledVersion)
	}
	if err := models.AssertValidPlatform(p.OS, p.Arch); err != nil {
		return nil, err
	}
	if err := models.AssertValidChannel(p.Channel); err != nil {
		return nil, err
	}

	var versions []models.Version
	if err := db.Where("release_channel = ? AND is_published = ?", p.Channel, true).Find(&versions).Error; err != nil {
		return nil, fmt.Errorf("published versions in %s: %w", p.Channel, err)
	}
	manifest.SortVersionsDescending(versions)

	for i := range versions {
		v := &versions[i]
		candidate, err := semver.NewVersion(v.VersionName)
		if err != nil || !candidate.GreaterThan(installed) {
			continue
		}
		if !p.AllowPrerelease && candidate.Prerelease() != "" {
			continue
		}
		pol := policy.Resolve(v)
		start, end := pol.RolloutWindow()
		if start != nil && now.Before(*start) {
			continue
		}
		if end != nil && now.After(*end) {
			continue
		}
		if !IsDeviceInRolloutBucket(p.DeviceID, pol.RolloutPercentage) {
			continue
		}
		build, err := selectBuild(db, v.ID, p.OS, p.Arch)
		if err != nil {
			return nil, err
		}
		if build == nil {
			continue
		}

		src := manifest.SourceFromBuild(build)
		return &Result{
			Available:    true,
			Version:      v.VersionName,
			Channel:      v.ReleaseChannel,
			Mandatory:    isMandatory(v, pol, installed),
			ReleaseNotes: v.ReleaseNotes,
			Changelog:    v.Changelog,
			Build:        &src,
		}, nil
	}
	return &Result{Available: false}, nil
}

// isMandatory forces the mandatory flag when the installed version has
// fallen below the minimum supported version, regardless of the
// version's own flag.
func isMandatory(v *models.Version, pol policy.UpdatePolicy, installed *semver.Version) bool {
	if v.IsMandatory {
		return true
	}
	if pol.MinSupportedVersion == "" {
		return false
	}
	min, err := semver.NewVersion(pol.MinSupportedVersion)
	if err != nil {
		return false
	}
	return installed.LessThan(min)
}

// selectBuild picks the best build for the platform with the evaluator's
// own ranking: patch before installer (prefer the incremental download),
// then store before direct, then newest.
func selectBuild(db *gorm.DB, versionID, os, arch string) (*models.Build, error) {
	var builds []models.Build
	err := db.Where("version_id = ? AND os = ? AND arch = ? AND type IN ?",
		versionID, os, arch, []string{models.TypePatch, models.TypeInstaller}).Find(&builds).Error
	if err != nil {
		return nil, fmt.Errorf("builds for version %s: %w", versionID, err)
	}
	if len(builds) == 0 {
		return nil, nil
	}
	sort.SliceStable(builds, func(i, j int) bool {
		ti, tj := typeRank(builds[i].Type), typeRank(builds[j].Type)
		if ti != tj {
			return ti < tj
		}
		di := distRank(manifest.ResolveDistribution(&builds[i]))
		dj := distRank(manifest.ResolveDistribution(&builds[j]))
		if di != dj {
			return di < dj
		}
		return builds[i].CreatedAt.After(builds[j].CreatedAt)
	})
	return &builds[0], nil
}

func typeRank(t string) int {
	if t == models.TypePatch {
		return 0
	}
	return 1
}

func distRank(d string) int {
	if d == models.DistributionStore {
		return 0
	}
	return 1
}
