package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Version represents one release of the client application in one channel.
// The same version number may exist independently in several channels.
type Version struct {
	ID        string `gorm:"primaryKey;size:36"`
	CreatedAt time.Time
	UpdatedAt time.Time

	VersionName    string `gorm:"size:64;not null;uniqueIndex:uniq_version_channel"`
	ReleaseChannel string `gorm:"size:16;not null;default:stable;uniqueIndex:uniq_version_channel"`

	ManifestVersion int `gorm:"not null;default:1"`
	ReleaseDate     *time.Time
	IsPublished     bool   `gorm:"default:false"`
	IsMandatory     bool   `gorm:"default:false"`
	ReleaseNotes    string `gorm:"type:text"`
	Changelog       string `gorm:"type:text"`

	// Free-form metadata document. Carries the embedded updatePolicy
	// sub-document kept in sync with the relational policy columns.
	Metadata datatypes.JSONMap

	MinSupportedVersion *string `gorm:"size:64"`
	RolloutPercentage   *int
	RolloutStartAt      *time.Time
	RolloutEndAt        *time.Time

	StorageKeyPrefix string `gorm:"size:255"`

	Builds []Build `gorm:"foreignKey:VersionID"`
}

func (v *Version) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.StorageKeyPrefix == "" {
		v.StorageKeyPrefix = VersionStoragePrefix(v.ReleaseChannel, v.VersionName)
	}
	return nil
}

// VersionStoragePrefix is the blob-store folder owned by a version.
// Must track the channel: recomputed whenever the channel changes.
func VersionStoragePrefix(channel, versionName string) string {
	return fmt.Sprintf("releases/%s/%s", channel, versionName)
}

// ChannelManifestPath is where the "latest per channel" manifest lives.
func ChannelManifestPath(channel string) string {
	return fmt.Sprintf("channels/%s/manifest.json", channel)
}
