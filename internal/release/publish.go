package release

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"gorm.io/datatypes"

	"github.com/Nika0000/publisher-cli/internal/manifest"
	"github.com/Nika0000/publisher-cli/internal/models"
)

// Slot is one required platform combination.
type Slot struct {
	OS   string
	Arch string
	Type string
}

// RequiredInstallerSlots must each resolve to a build before a version
// goes live. Patch builds are never required.
var RequiredInstallerSlots = []Slot{
	{models.OSMacOS, models.ArchARM64, models.TypeInstaller},
	{models.OSMacOS, models.ArchX64, models.TypeInstaller},
	{models.OSWindows, models.ArchX64, models.TypeInstaller},
	{models.OSLinux, models.ArchX64, models.TypeInstaller},
	{models.OSIOS, models.ArchARM64, models.TypeInstaller},
	{models.OSAndroid, models.ArchARM64, models.TypeInstaller},
}

// FallbackCandidate is a build from another version in the channel that
// could fill a missing required slot.
type FallbackCandidate struct {
	Build       models.Build
	VersionName string
}

// PublishOptions controls fallback assignment. PickFallback receives
// candidates newest-created-first and returns the chosen one, or nil to
// leave the slot empty. A nil PickFallback skips every missing slot.
type PublishOptions struct {
	PickFallback func(slot Slot, candidates []FallbackCandidate) *FallbackCandidate
}

// PublishResult reports what publish did. Warnings are non-fatal
// degraded outcomes (manifest or blob writes after the relational
// publish committed).
type PublishResult struct {
	Version           *models.Version
	AssignedFallbacks []Slot
	MissingSlots      []Slot
	Warnings          []string
}

// Publish flips a version live: fills missing required installer slots
// from older versions in the channel (as independent fallback copies),
// marks the version published, and writes both manifests to the blob
// store. Publishing is one-way; there is no unpublish.
func (s *Service) Publish(ctx context.Context, name, channel string, opts PublishOptions) (*PublishResult, error) {
	v, err := s.GetVersion(ctx, name, channel)
	if err != nil {
		return nil, err
	}

	var builds []models.Build
	if err := s.db.WithContext(ctx).Where("version_id = ?", v.ID).Find(&builds).Error; err != nil {
		return nil, err
	}
	have := map[Slot]bool{}
	for _, b := range builds {
		have[Slot{b.OS, b.Arch, b.Type}] = true
	}

	res := &PublishResult{Version: v}
	for _, slot := range RequiredInstallerSlots {
		if have[slot] {
			continue
		}
		candidates, err := s.fallbackCandidates(ctx, v, slot)
		if err != nil {
			return nil, err
		}
		var pick *FallbackCandidate
		if opts.PickFallback != nil && len(candidates) > 0 {
			pick = opts.PickFallback(slot, candidates)
		}
		if pick == nil {
			res.MissingSlots = append(res.MissingSlots, slot)
			continue
		}
		if err := s.assignFallback(ctx, v, slot, pick); err != nil {
			return nil, err
		}
		res.AssignedFallbacks = append(res.AssignedFallbacks, slot)
	}

	v.IsPublished = true
	if v.ReleaseDate == nil {
		now := time.Now().UTC()
		v.ReleaseDate = &now
	}
	if err := s.db.WithContext(ctx).Save(v).Error; err != nil {
		return nil, fmt.Errorf("publish %s/%s: %w", channel, name, err)
	}
	s.log.Info("version published",
		slog.String("version", name),
		slog.String("channel", channel),
		slog.Int("fallbacks", len(res.AssignedFallbacks)),
		slog.Int("missing_slots", len(res.MissingSlots)))

	res.Warnings = s.writeManifests(ctx, v)
	return res, nil
}

// fallbackCandidates lists matching installer builds from the channel's
// other versions, newest upload first.
func (s *Service) fallbackCandidates(ctx context.Context, v *models.Version, slot Slot) ([]FallbackCandidate, error) {
	var siblings []models.Version
	if err := s.db.WithContext(ctx).Where("release_channel = ? AND id <> ?", v.ReleaseChannel, v.ID).Find(&siblings).Error; err != nil {
		return nil, err
	}
	if len(siblings) == 0 {
		return nil, nil
	}
	names := map[string]string{}
	ids := make([]string, len(siblings))
	for i := range siblings {
		ids[i] = siblings[i].ID
		names[siblings[i].ID] = siblings[i].VersionName
	}
	var builds []models.Build
	err := s.db.WithContext(ctx).
		Where("version_id IN ? AND os = ? AND arch = ? AND type = ?", ids, slot.OS, slot.Arch, slot.Type).
		Order("created_at desc").Find(&builds).Error
	if err != nil {
		return nil, err
	}
	candidates := make([]FallbackCandidate, 0, len(builds))
	for _, b := range builds {
		candidates = append(candidates, FallbackCandidate{Build: b, VersionName: names[b.VersionID]})
	}
	return candidates, nil
}

// assignFallback inserts an independent copy of the source build owned
// by this version, pointing at the same artifact and tagged with the
// version it came from. A copy per version keeps every manifest
// self-contained and independently deletable.
func (s *Service) assignFallback(ctx context.Context, v *models.Version, slot Slot, pick *FallbackCandidate) error {
	src := pick.Build
	meta := datatypes.JSONMap{}
	for k, val := range src.PlatformMetadata {
		meta[k] = val
	}
	meta[models.MetaFallbackFrom] = pick.VersionName

	nb := models.Build{
		VersionID:        v.ID,
		OS:               slot.OS,
		Arch:             slot.Arch,
		Type:             slot.Type,
		Distribution:     manifest.ResolveDistribution(&src),
		Variant:          src.Variant,
		PackageName:      src.PackageName,
		URL:              src.URL,
		Size:             src.Size,
		SHA256:           src.SHA256,
		SHA512:           src.SHA512,
		PlatformMetadata: meta,
	}
	if err := s.db.WithContext(ctx).Create(&nb).Error; err != nil {
		return fmt.Errorf("assign fallback %s/%s/%s from %s: %w", slot.OS, slot.Arch, slot.Type, pick.VersionName, err)
	}
	return nil
}

// RegenerateManifest rebuilds and republishes a version's manifest and
// the channel's latest manifest on explicit request.
func (s *Service) RegenerateManifest(ctx context.Context, name, channel string) error {
	v, err := s.GetVersion(ctx, name, channel)
	if err != nil {
		return err
	}
	if err := s.writeVersionManifest(ctx, v); err != nil {
		return err
	}
	return s.writeLatestManifest(ctx, channel)
}

// RegenerateChannel rebuilds only the channel's latest manifest.
func (s *Service) RegenerateChannel(ctx context.Context, channel string) error {
	if err := models.AssertValidChannel(channel); err != nil {
		return err
	}
	return s.writeLatestManifest(ctx, channel)
}

// writeManifests refreshes both manifests after a successful relational
// write. Failures come back as warnings: the stored data is already
// authoritative and is not rolled back.
func (s *Service) writeManifests(ctx context.Context, v *models.Version) []string {
	var warnings []string
	if err := s.writeVersionManifest(ctx, v); err != nil {
		warnings = append(warnings, fmt.Sprintf("manifest regeneration for %s/%s failed: %v; stored data is correct, run `publisher regenerate --channel %s --version %s` to retry",
			v.ReleaseChannel, v.VersionName, err, v.ReleaseChannel, v.VersionName))
	}
	if err := s.writeLatestManifest(ctx, v.ReleaseChannel); err != nil {
		warnings = append(warnings, regenerateWarning(v.ReleaseChannel, err))
	}
	for _, w := range warnings {
		s.log.Warn(w)
	}
	return warnings
}

func (s *Service) writeVersionManifest(ctx context.Context, v *models.Version) error {
	m, err := manifest.BuildVersionManifest(s.db.WithContext(ctx), v.VersionName, v.ReleaseChannel)
	if err != nil {
		return err
	}
	return s.uploadManifest(ctx, manifest.VersionManifestPath(v.StorageKeyPrefix), m)
}

func (s *Service) writeLatestManifest(ctx context.Context, channel string) error {
	m, err := manifest.BuildLatestManifest(s.db.WithContext(ctx), channel)
	if err != nil {
		return err
	}
	return s.uploadManifest(ctx, models.ChannelManifestPath(channel), m)
}

func (s *Service) uploadManifest(ctx context.Context, path string, m *manifest.Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := s.blob.Upload(ctx, path, bytes.NewReader(data), "application/json", true); err != nil {
		return fmt.Errorf("upload manifest %s: %w", path, err)
	}
	return nil
}

// SortSlots orders slots for stable presentation.
func SortSlots(slots []Slot) {
	sort.Slice(slots, func(i, j int) bool {
		if slots[i].OS != slots[j].OS {
			return slots[i].OS < slots[j].OS
		}
		if slots[i].Arch != slots[j].Arch {
			return slots[i].Arch < slots[j].Arch
		}
		return slots[i].Type < slots[j].Type
	})
}
