// Package release implements the version/build lifecycle: creation,
// policy mutation, publish with fallback assignment, and deletion with
// dependency-conflict detection. The relational store is the sole
// source of truth; manifest and blob writes that follow a successful
// relational write are best-effort and surface as warnings, never
// rollbacks.
package release

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Masterminds/semver/v3"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Nika0000/publisher-cli/internal/blob"
	"github.com/Nika0000/publisher-cli/internal/manifest"
	"github.com/Nika0000/publisher-cli/internal/models"
	"github.com/Nika0000/publisher-cli/internal/policy"
)

type Service struct {
	db   *gorm.DB
	blob blob.Store
	log  *slog.Logger
}

func NewService(db *gorm.DB, store blob.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: db, blob: store, log: logger}
}

// DB exposes the underlying store for read-side collaborators (update
// evaluator, manifest fetch).
func (s *Service) DB() *gorm.DB { return s.db }

type CreateVersionOptions struct {
	ReleaseNotes    string
	Changelog       string
	IsMandatory     bool
	ManifestVersion int
}

func (s *Service) CreateVersion(ctx context.Context, name, channel string, opts CreateVersionOptions) (*models.Version, error) {
	if _, err := semver.NewVersion(name); err != nil {
		return nil, fmt.Errorf("%w: version name %q (must be semver)", models.ErrUnsupported, name)
	}
	if err := models.AssertValidChannel(channel); err != nil {
		return nil, err
	}

	var existing models.Version
	err := s.db.WithContext(ctx).Where("version_name = ? AND release_channel = ?", name, channel).First(&existing).Error
	if err == nil {
		return nil, fmt.Errorf("version %s already exists in %s: %w", name, channel, ErrConflict)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if opts.ManifestVersion <= 0 {
		opts.ManifestVersion = 1
	}
	pct := 100
	v := models.Version{
		VersionName:       name,
		ReleaseChannel:    channel,
		ManifestVersion:   opts.ManifestVersion,
		ReleaseNotes:      opts.ReleaseNotes,
		Changelog:         opts.Changelog,
		IsMandatory:       opts.IsMandatory,
		RolloutPercentage: &pct,
	}
	v.Metadata = policy.BuildMetadataWithPolicy(nil, policy.Resolve(&v))
	if err := s.db.WithContext(ctx).Create(&v).Error; err != nil {
		return nil, fmt.Errorf("create version %s/%s: %w", channel, name, err)
	}
	return &v, nil
}

func (s *Service) GetVersion(ctx context.Context, name, channel string) (*models.Version, error) {
	var v models.Version
	err := s.db.WithContext(ctx).Where("version_name = ? AND release_channel = ?", name, channel).First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("version %s in %s: %w", name, channel, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ListVersions returns a channel's versions newest-semver-first.
func (s *Service) ListVersions(ctx context.Context, channel string) ([]models.Version, error) {
	if err := models.AssertValidChannel(channel); err != nil {
		return nil, err
	}
	var versions []models.Version
	if err := s.db.WithContext(ctx).Where("release_channel = ?", channel).Find(&versions).Error; err != nil {
		return nil, err
	}
	manifest.SortVersionsDescending(versions)
	return versions, nil
}

// PolicyInput mutates the update policy. Nil fields stay unchanged.
type PolicyInput struct {
	Channel             *string
	MinSupportedVersion *string
	RolloutPercentage   *int
	RolloutStartAt      *time.Time
	RolloutEndAt        *time.Time
}

// SetPolicy writes the relational policy columns and the embedded
// metadata.updatePolicy sub-document together; writing only one would
// let the two homes drift.
func (s *Service) SetPolicy(ctx context.Context, name, channel string, in PolicyInput) (*models.Version, error) {
	v, err := s.GetVersion(ctx, name, channel)
	if err != nil {
		return nil, err
	}

	if in.Channel != nil && *in.Channel != v.ReleaseChannel {
		if err := models.AssertValidChannel(*in.Channel); err != nil {
			return nil, err
		}
		var clash models.Version
		err := s.db.WithContext(ctx).Where("version_name = ? AND release_channel = ?", name, *in.Channel).First(&clash).Error
		if err == nil {
			return nil, fmt.Errorf("version %s already exists in %s: %w", name, *in.Channel, ErrConflict)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		v.ReleaseChannel = *in.Channel
		v.StorageKeyPrefix = models.VersionStoragePrefix(v.ReleaseChannel, v.VersionName)
	}
	if in.MinSupportedVersion != nil {
		if *in.MinSupportedVersion == "" {
			v.MinSupportedVersion = nil
		} else {
			if _, err := semver.NewVersion(*in.MinSupportedVersion); err != nil {
				return nil, fmt.Errorf("%w: minimum supported version %q (must be semver)", models.ErrUnsupported, *in.MinSupportedVersion)
			}
			v.MinSupportedVersion = in.MinSupportedVersion
		}
	}
	if in.RolloutPercentage != nil {
		if *in.RolloutPercentage < 0 || *in.RolloutPercentage > 100 {
			return nil, fmt.Errorf("%w: rollout percentage %d (accepted: 0-100)", models.ErrUnsupported, *in.RolloutPercentage)
		}
		v.RolloutPercentage = in.RolloutPercentage
	}
	if in.RolloutStartAt != nil {
		v.RolloutStartAt = in.RolloutStartAt
	}
	if in.RolloutEndAt != nil {
		v.RolloutEndAt = in.RolloutEndAt
	}
	if v.RolloutStartAt != nil && v.RolloutEndAt != nil && v.RolloutEndAt.Before(*v.RolloutStartAt) {
		return nil, fmt.Errorf("%w: rollout window end %s before start %s", models.ErrUnsupported,
			v.RolloutEndAt.Format(time.RFC3339), v.RolloutStartAt.Format(time.RFC3339))
	}

	v.Metadata = policy.BuildMetadataWithPolicy(v.Metadata, policy.Resolve(v))
	if err := s.db.WithContext(ctx).Save(v).Error; err != nil {
		return nil, fmt.Errorf("update policy for %s/%s: %w", channel, name, err)
	}
	return v, nil
}

// DeleteResult carries non-fatal degraded outcomes of a delete. The
// relational delete already committed; warnings ask for manual cleanup
// or a manifest regeneration retry.
type DeleteResult struct {
	Warnings []string
}

// DeleteVersion removes a version and its builds. Blocked while the
// version is published (unless forced) or while builds of other
// versions reference it as their fallback source (unless forced).
func (s *Service) DeleteVersion(ctx context.Context, name, channel string, force bool) (*DeleteResult, error) {
	v, err := s.GetVersion(ctx, name, channel)
	if err != nil {
		return nil, err
	}
	if v.IsPublished && !force {
		return nil, &ConflictError{Reason: fmt.Sprintf("version %s in %s is published; re-run with force to delete", name, channel)}
	}
	refs, err := s.fallbackReferences(ctx, v, nil)
	if err != nil {
		return nil, err
	}
	if len(refs) > 0 && !force {
		return nil, &ConflictError{
			Reason:     fmt.Sprintf("version %s in %s is a fallback source", name, channel),
			References: refs,
		}
	}
	if force && (v.IsPublished || len(refs) > 0) {
		s.log.Warn("forced version delete",
			slog.String("version", name),
			slog.String("channel", channel),
			slog.Int("fallback_references", len(refs)))
	}

	if err := s.db.WithContext(ctx).Where("version_id = ?", v.ID).Delete(&models.Build{}).Error; err != nil {
		return nil, fmt.Errorf("delete builds of %s/%s: %w", channel, name, err)
	}
	if err := s.db.WithContext(ctx).Delete(v).Error; err != nil {
		return nil, fmt.Errorf("delete version %s/%s: %w", channel, name, err)
	}

	res := &DeleteResult{}
	if err := blob.RemovePrefix(ctx, s.blob, v.StorageKeyPrefix); err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("storage cleanup under %s failed: %v; remove it manually", v.StorageKeyPrefix, err))
	}
	if v.IsPublished {
		if err := s.writeLatestManifest(ctx, channel); err != nil {
			res.Warnings = append(res.Warnings, regenerateWarning(channel, err))
		}
	}
	return res, nil
}

// fallbackReferences lists builds of other versions in the channel that
// declare this version as their fallback_from source. A non-nil slot
// restricts the check to one (os, arch, type).
func (s *Service) fallbackReferences(ctx context.Context, v *models.Version, slot *Slot) ([]string, error) {
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

	q := s.db.WithContext(ctx).Where("version_id IN ?", ids).
		Where(datatypes.JSONQuery("platform_metadata").Equals(v.VersionName, models.MetaFallbackFrom))
	if slot != nil {
		q = q.Where("os = ? AND arch = ? AND type = ?", slot.OS, slot.Arch, slot.Type)
	}
	var builds []models.Build
	if err := q.Find(&builds).Error; err != nil {
		return nil, err
	}
	refs := make([]string, 0, len(builds))
	for _, b := range builds {
		refs = append(refs, fmt.Sprintf("%s %s/%s/%s", names[b.VersionID], b.OS, b.Arch, b.Type))
	}
	return refs, nil
}

func regenerateWarning(channel string, err error) string {
	return fmt.Sprintf("manifest regeneration for channel %s failed: %v; stored data is correct, run `publisher regenerate --channel %s` to retry", channel, err, channel)
}
