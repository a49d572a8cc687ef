package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Keys understood inside Build.PlatformMetadata.
const (
	// MetaFallbackFrom records the version name a fallback build borrowed
	// its payload from. Used for delete-conflict detection only.
	MetaFallbackFrom = "fallback_from"
	// MetaExternal flags a build hosted outside our storage (store
	// listing, third-party mirror). Legacy rows use it in place of the
	// distribution column.
	MetaExternal = "external"
)

// Build is one downloadable artifact owned by a version. Identity is the
// (version, os, arch, type, distribution, variant) tuple; writes upsert
// on that tuple, never append.
type Build struct {
	ID        string `gorm:"primaryKey;size:36"`
	CreatedAt time.Time
	UpdatedAt time.Time

	VersionID    string `gorm:"size:36;not null;index;uniqueIndex:uniq_build_slot"`
	OS           string `gorm:"size:16;not null;uniqueIndex:uniq_build_slot"`
	Arch         string `gorm:"size:16;not null;uniqueIndex:uniq_build_slot"`
	Type         string `gorm:"size:16;not null;uniqueIndex:uniq_build_slot"`
	Distribution string `gorm:"size:16;not null;default:direct;uniqueIndex:uniq_build_slot"`
	Variant      string `gorm:"size:64;not null;default:default;uniqueIndex:uniq_build_slot"`

	PackageName string `gorm:"size:128"`
	URL         string `gorm:"size:512;not null"`
	Size        int64
	SHA256      string `gorm:"size:64"`
	SHA512      string `gorm:"size:128"`

	PlatformMetadata datatypes.JSONMap
}

func (b *Build) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.Variant == "" {
		b.Variant = DefaultVariant
	}
	return nil
}

// FallbackFrom returns the source version name when this build is a
// fallback copy, or "" for a build the version shipped itself.
func (b *Build) FallbackFrom() string {
	if b.PlatformMetadata == nil {
		return ""
	}
	if s, ok := b.PlatformMetadata[MetaFallbackFrom].(string); ok {
		return s
	}
	return ""
}

// ExternalFlag reports the legacy metadata flag used before the
// distribution column existed.
func (b *Build) ExternalFlag() bool {
	if b.PlatformMetadata == nil {
		return false
	}
	v, ok := b.PlatformMetadata[MetaExternal].(bool)
	return ok && v
}
