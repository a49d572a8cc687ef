package release

import (
	"context"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm/clause"

	"github.com/Nika0000/publisher-cli/internal/config"
	"github.com/Nika0000/publisher-cli/internal/models"
)

// BuildInput registers or re-registers one build. Identity is
// (version, os, arch, type, distribution, variant); a second write with
// the same identity replaces the payload fields, never appends a row.
type BuildInput struct {
	OS           string
	Arch         string
	Type         string
	Distribution string
	Variant      string

	PackageName string
	URL         string
	Size        int64
	SHA256      string
	SHA512      string
	External    bool

	PlatformMetadata map[string]interface{}
}

// validateSlot checks the identity fields, filling in the defaults.
// UploadBuild runs it separately so bad input is rejected before the
// artifact reaches the blob store.
func (in *BuildInput) validateSlot() error {
	if err := models.AssertValidPlatform(in.OS, in.Arch, in.Type); err != nil {
		return err
	}
	if in.Distribution == "" {
		in.Distribution = models.DistributionDirect
	}
	if err := models.AssertValidDistribution(in.Distribution); err != nil {
		return err
	}
	if in.Variant == "" {
		in.Variant = models.DefaultVariant
	}
	return models.AssertValidVariant(in.Variant)
}

func (in *BuildInput) validate() error {
	if err := in.validateSlot(); err != nil {
		return err
	}
	if in.URL == "" {
		return fmt.Errorf("%w: build url must not be empty", models.ErrUnsupported)
	}
	// store listings and external mirrors may omit checksums; our own
	// direct downloads may not
	if in.Distribution == models.DistributionDirect && !in.External && in.SHA256 == "" {
		return fmt.Errorf("%w: sha256 checksum is required for direct builds", models.ErrUnsupported)
	}
	return nil
}

// RegisterBuild upserts a build row for the version and refreshes the
// published manifests when the version is already live.
func (s *Service) RegisterBuild(ctx context.Context, name, channel string, in BuildInput) (*models.Build, []string, error) {
	if err := in.validate(); err != nil {
		return nil, nil, err
	}
	v, err := s.GetVersion(ctx, name, channel)
	if err != nil {
		return nil, nil, err
	}

	meta := datatypes.JSONMap{}
	for k, val := range in.PlatformMetadata {
		meta[k] = val
	}
	if in.External {
		meta[models.MetaExternal] = true
	}

	b := models.Build{
		VersionID:        v.ID,
		OS:               in.OS,
		Arch:             in.Arch,
		Type:             in.Type,
		Distribution:     in.Distribution,
		Variant:          in.Variant,
		PackageName:      in.PackageName,
		URL:              in.URL,
		Size:             in.Size,
		SHA256:           in.SHA256,
		SHA512:           in.SHA512,
		PlatformMetadata: meta,
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "version_id"}, {Name: "os"}, {Name: "arch"},
			{Name: "type"}, {Name: "distribution"}, {Name: "variant"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"package_name", "url", "size", "sha256", "sha512", "platform_metadata", "updated_at",
		}),
	}).Create(&b).Error
	if err != nil {
		return nil, nil, fmt.Errorf("register build %s/%s/%s for %s/%s: %w", in.OS, in.Arch, in.Type, channel, name, err)
	}

	// re-read so the caller sees the surviving row, not the discarded
	// insert candidate
	var row models.Build
	err = s.db.WithContext(ctx).
		Where("version_id = ? AND os = ? AND arch = ? AND type = ? AND distribution = ? AND variant = ?",
			v.ID, in.OS, in.Arch, in.Type, in.Distribution, in.Variant).
		First(&row).Error
	if err != nil {
		return nil, nil, err
	}

	var warnings []string
	if v.IsPublished {
		warnings = s.writeManifests(ctx, v)
	}
	return &row, warnings, nil
}

// UploadBuild streams an artifact into the blob store, hashing it on
// the way through, then registers the resulting direct build.
func (s *Service) UploadBuild(ctx context.Context, name, channel string, in BuildInput, filename string, r io.Reader) (*models.Build, []string, error) {
	in.Distribution = models.DistributionDirect
	in.External = false
	if err := in.validateSlot(); err != nil {
		return nil, nil, err
	}
	v, err := s.GetVersion(ctx, name, channel)
	if err != nil {
		return nil, nil, err
	}

	key := path.Join(v.StorageKeyPrefix, in.OS, in.Arch, path.Base(filename))
	h256 := sha256.New()
	h512 := sha512.New()
	counted := &countingReader{r: io.TeeReader(r, io.MultiWriter(h256, h512))}
	if err := s.blob.Upload(ctx, key, counted, "application/octet-stream", true); err != nil {
		return nil, nil, fmt.Errorf("upload %s: %w", key, err)
	}

	in.URL = strings.TrimRight(config.Current.PublicBaseURL, "/") + "/" + key
	in.Size = counted.n
	in.SHA256 = hex.EncodeToString(h256.Sum(nil))
	in.SHA512 = hex.EncodeToString(h512.Sum(nil))
	return s.RegisterBuild(ctx, name, channel, in)
}

func (s *Service) ListBuilds(ctx context.Context, name, channel string) ([]models.Build, error) {
	v, err := s.GetVersion(ctx, name, channel)
	if err != nil {
		return nil, err
	}
	var builds []models.Build
	if err := s.db.WithContext(ctx).Where("version_id = ?", v.ID).
		Order("os, arch, type, distribution, variant").Find(&builds).Error; err != nil {
		return nil, err
	}
	return builds, nil
}

// DeleteBuild removes one build row. Blocked while fallback copies in
// other versions borrow this version's payload for the same slot,
// unless forced.
func (s *Service) DeleteBuild(ctx context.Context, name, channel string, slot Slot, distribution, variant string, force bool) (*DeleteResult, error) {
	v, err := s.GetVersion(ctx, name, channel)
	if err != nil {
		return nil, err
	}
	if distribution == "" {
		distribution = models.DistributionDirect
	}
	if variant == "" {
		variant = models.DefaultVariant
	}
	var b models.Build
	err = s.db.WithContext(ctx).
		Where("version_id = ? AND os = ? AND arch = ? AND type = ? AND distribution = ? AND variant = ?",
			v.ID, slot.OS, slot.Arch, slot.Type, distribution, variant).
		First(&b).Error
	if err != nil {
		return nil, fmt.Errorf("build %s/%s/%s of %s/%s: %w", slot.OS, slot.Arch, slot.Type, channel, name, ErrNotFound)
	}

	refs, err := s.fallbackReferences(ctx, v, &slot)
	if err != nil {
		return nil, err
	}
	if len(refs) > 0 && !force {
		return nil, &ConflictError{
			Reason:     fmt.Sprintf("build %s/%s/%s of %s is a fallback source", slot.OS, slot.Arch, slot.Type, name),
			References: refs,
		}
	}
	if force && len(refs) > 0 {
		s.log.Warn("forced build delete",
			slog.String("version", name),
			slog.String("channel", channel),
			slog.String("slot", slot.OS+"/"+slot.Arch+"/"+slot.Type),
			slog.Int("fallback_references", len(refs)))
	}

	if err := s.db.WithContext(ctx).Delete(&b).Error; err != nil {
		return nil, fmt.Errorf("delete build: %w", err)
	}

	res := &DeleteResult{}
	if v.IsPublished {
		res.Warnings = s.writeManifests(ctx, v)
	}
	return res, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
