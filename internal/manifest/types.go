// Package manifest assembles the JSON documents client updaters poll:
// a per-version manifest and a "latest per channel" aggregate. Field
// names are consumed by third-party updaters and must not change.
package manifest

import (
	"time"

	"github.com/Nika0000/publisher-cli/internal/policy"
)

// Source is one resolved download source inside a manifest leaf.
type Source struct {
	URL          string    `json:"url"`
	PackageName  string    `json:"packageName,omitempty"`
	Size         int64     `json:"size,omitempty"`
	SHA256       string    `json:"sha256,omitempty"`
	SHA512       string    `json:"sha512,omitempty"`
	Distribution string    `json:"distribution"`
	Variant      string    `json:"variant,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`

	// FallbackFrom names the version this build borrowed its payload
	// from when it was assigned as a fallback at publish time.
	FallbackFrom string `json:"fallbackFrom,omitempty"`
	// External marks builds hosted outside our storage.
	External bool `json:"external,omitempty"`
	// SourceVersion names the owning version in the latest-channel
	// manifest, where sources come from different versions.
	SourceVersion string `json:"sourceVersion,omitempty"`

	// Sources lists losing candidates for the same slot, kept for
	// auditability. Absent when the slot had a single candidate.
	Sources []Source `json:"sources,omitempty"`
}

// Platform groups a platform's builds as arch -> type -> source.
type Platform struct {
	OS     string                       `json:"os"`
	Builds map[string]map[string]Source `json:"builds"`
}

// Manifest is the published document shape.
type Manifest struct {
	Name            string              `json:"name"`
	ManifestVersion int                 `json:"manifestVersion"`
	Version         string              `json:"version"`
	Channel         string              `json:"channel"`
	ReleaseDate     string              `json:"releaseDate,omitempty"`
	IsMandatory     bool                `json:"isMandatory"`
	ReleaseNotes    string              `json:"releaseNotes,omitempty"`
	Changelog       string              `json:"changelog,omitempty"`
	UpdatePolicy    policy.UpdatePolicy `json:"updatePolicy"`
	Platforms       []Platform          `json:"platforms"`
}
