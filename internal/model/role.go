package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// Tier is the qualification tier assigned to a role.
type Tier string

const (
	TierQualified         Tier = "QUALIFIED"
	TierMaybe             Tier = "MAYBE"
	TierLocationUncertain Tier = "LOCATION_UNCERTAIN"
	TierSkip              Tier = "SKIP"
)

// Valid reports whether t is one of the defined tiers.
func (t Tier) Valid() bool {
	switch t {
	case TierQualified, TierMaybe, TierLocationUncertain, TierSkip:
		return true
	}
	return false
}

// Qualified reports whether the tier counts as qualified output. MAYBE
// roles are surfaced alongside QUALIFIED ones; LOCATION_UNCERTAIN and SKIP
// are not.
func (t Tier) Qualified() bool {
	return t == TierQualified || t == TierMaybe
}

// ParseTier converts a stored string into a Tier.
func ParseTier(s string) (Tier, error) {
	t := Tier(s)
	if !t.Valid() {
		return "", eris.Errorf("model: unknown tier %q", s)
	}
	return t, nil
}

// LifecycleStatus tracks whether a role is still visible in the source feed.
type LifecycleStatus string

const (
	LifecycleActive  LifecycleStatus = "ACTIVE"
	LifecycleFilled  LifecycleStatus = "FILLED"
	LifecycleRemoved LifecycleStatus = "REMOVED"
)

// Valid reports whether s is one of the defined lifecycle states.
func (s LifecycleStatus) Valid() bool {
	switch s {
	case LifecycleActive, LifecycleFilled, LifecycleRemoved:
		return true
	}
	return false
}

// ParseLifecycleStatus converts a stored string into a LifecycleStatus.
func ParseLifecycleStatus(s string) (LifecycleStatus, error) {
	ls := LifecycleStatus(s)
	if !ls.Valid() {
		return "", eris.Errorf("model: unknown lifecycle status %q", s)
	}
	return ls, nil
}

// Role is one job posting tracked across ingestion runs. ExternalID is the
// stable key from the source feed; Payload is the latest raw record.
type Role struct {
	ID              int64           `json:"id"`
	ExternalID      string          `json:"external_id"`
	Payload         Payload         `json:"payload"`
	Fingerprint     string          `json:"fingerprint,omitempty"`
	Tier            Tier            `json:"tier"`
	PositiveReasons []string        `json:"positive_reasons,omitempty"`
	NegativeReasons []string        `json:"negative_reasons,omitempty"`
	EngineerScore   *float64        `json:"engineer_score,omitempty"`
	HeadhunterScore *float64        `json:"headhunter_score,omitempty"`
	ExcitementScore *float64        `json:"excitement_score,omitempty"`
	CombinedScore   *float64        `json:"combined_score,omitempty"`
	ScoreBreakdown  *ScoreBreakdown `json:"score_breakdown,omitempty"`
	Status          LifecycleStatus `json:"status"`
	FirstSeenAt     time.Time       `json:"first_seen_at"`
	LastSeenAt      time.Time       `json:"last_seen_at"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// IsQualified reports whether the role sits in the qualified tier.
func (r *Role) IsQualified() bool {
	return r.Tier.Qualified()
}

// ScoreBreakdown records every score component with its weight so a score
// can be explained after the fact.
type ScoreBreakdown struct {
	Engineer   ComponentBreakdown `json:"engineer"`
	Headhunter ComponentBreakdown `json:"headhunter"`
	Excitement ComponentBreakdown `json:"excitement"`
}

// ComponentBreakdown is one scored dimension: the final value, the weighted
// parts that produced it, and the human-readable signals collected on the way.
type ComponentBreakdown struct {
	Score   float64            `json:"score"`
	Parts   map[string]float64 `json:"parts,omitempty"`
	Signals []string           `json:"signals,omitempty"`
}
