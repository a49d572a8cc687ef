// Package policy reconciles a version's update policy from its two homes:
// the relational columns on the version row and the updatePolicy
// sub-document embedded in the version's free-form metadata. Relational
// values win field by field; metadata fills the gaps; hard defaults close
// them. Policy data is semi-trusted JSON that has survived several schema
// revisions, so every read degrades to a safe default instead of failing.
package policy

import (
	"time"

	"github.com/Masterminds/semver/v3"
	"gorm.io/datatypes"

	"github.com/Nika0000/publisher-cli/internal/models"
)

const metadataKey = "updatePolicy"

// UpdatePolicy is the canonical merged policy. Field names are part of
// the manifest JSON contract.
type UpdatePolicy struct {
	Channel             string `json:"channel"`
	MinSupportedVersion string `json:"minSupportedVersion,omitempty"`
	RolloutPercentage   int    `json:"rolloutPercentage"`
	RolloutStartAt      string `json:"rolloutStartAt,omitempty"`
	RolloutEndAt        string `json:"rolloutEndAt,omitempty"`
}

// Resolve merges the version row's explicit columns with its embedded
// metadata policy into one canonical policy.
func Resolve(v *models.Version) UpdatePolicy {
	meta := metadataPolicy(v.Metadata)

	p := UpdatePolicy{
		Channel:           models.ChannelStable,
		RolloutPercentage: 100,
	}

	if models.IsSupportedChannel(v.ReleaseChannel) {
		p.Channel = v.ReleaseChannel
	} else if ch, ok := meta["channel"].(string); ok && ch != "" {
		p.Channel = ch
	}

	if v.MinSupportedVersion != nil && isValidSemver(*v.MinSupportedVersion) {
		p.MinSupportedVersion = *v.MinSupportedVersion
	} else if s, ok := meta["minSupportedVersion"].(string); ok && s != "" {
		// metadata value is taken as-is, no re-validation
		p.MinSupportedVersion = s
	}

	if v.RolloutPercentage != nil {
		p.RolloutPercentage = ClampPercentage(*v.RolloutPercentage)
	} else if n, ok := asNumber(meta["rolloutPercentage"]); ok {
		p.RolloutPercentage = ClampPercentage(n)
	}

	p.RolloutStartAt = resolveTimestamp(v.RolloutStartAt, meta["rolloutStartAt"])
	p.RolloutEndAt = resolveTimestamp(v.RolloutEndAt, meta["rolloutEndAt"])

	return p
}

// BuildMetadataWithPolicy returns a copy of the metadata document with
// only the updatePolicy sub-document replaced. Malformed or missing
// input documents are substituted with an empty one; every other key is
// preserved untouched. Writing this alongside the relational columns is
// the only thing keeping the two policy homes in sync.
func BuildMetadataWithPolicy(meta datatypes.JSONMap, p UpdatePolicy) datatypes.JSONMap {
	out := datatypes.JSONMap{}
	for k, v := range meta {
		out[k] = v
	}
	sub := map[string]interface{}{
		"channel":           p.Channel,
		"rolloutPercentage": p.RolloutPercentage,
	}
	if p.MinSupportedVersion != "" {
		sub["minSupportedVersion"] = p.MinSupportedVersion
	}
	if p.RolloutStartAt != "" {
		sub["rolloutStartAt"] = p.RolloutStartAt
	}
	if p.RolloutEndAt != "" {
		sub["rolloutEndAt"] = p.RolloutEndAt
	}
	out[metadataKey] = sub
	return out
}

// ClampPercentage bounds a rollout percentage to [0,100].
func ClampPercentage(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}

// RolloutWindow parses the policy's window bounds. Unset or unparseable
// bounds come back nil, meaning unbounded on that side.
func (p UpdatePolicy) RolloutWindow() (start, end *time.Time) {
	return parseTimestamp(p.RolloutStartAt), parseTimestamp(p.RolloutEndAt)
}

func metadataPolicy(meta datatypes.JSONMap) map[string]interface{} {
	if meta == nil {
		return map[string]interface{}{}
	}
	if sub, ok := meta[metadataKey].(map[string]interface{}); ok {
		return sub
	}
	return map[string]interface{}{}
}

func isValidSemver(s string) bool {
	_, err := semver.NewVersion(s)
	return err == nil
}

// asNumber tolerates both in-process ints and float64 from a JSON
// round-trip.
func asNumber(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

func resolveTimestamp(column *time.Time, metaValue interface{}) string {
	if column != nil && !column.IsZero() {
		return column.UTC().Format(time.RFC3339)
	}
	if s, ok := metaValue.(string); ok && s != "" {
		return s
	}
	return ""
}

func parseTimestamp(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}
