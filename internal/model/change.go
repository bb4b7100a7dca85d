package model

import "time"

// ChangeKind classifies one detected field change between sightings of a
// role.
type ChangeKind string

const (
	ChangeSalaryIncrease    ChangeKind = "SALARY_INCREASE"
	ChangeSalaryDecrease    ChangeKind = "SALARY_DECREASE"
	ChangeFee               ChangeKind = "FEE_CHANGE"
	ChangeHeadcount         ChangeKind = "HEADCOUNT_CHANGE"
	ChangeCompetition       ChangeKind = "COMPETITION_CHANGE"
	ChangeInterviewIncrease ChangeKind = "INTERVIEW_INCREASE"
	ChangeInterviewDecrease ChangeKind = "INTERVIEW_DECREASE"
	ChangeHiringIncrease    ChangeKind = "HIRING_INCREASE"
	ChangeHiringDecrease    ChangeKind = "HIRING_DECREASE"
	ChangeLocation          ChangeKind = "LOCATION_CHANGE"
	ChangeDisappeared       ChangeKind = "DISAPPEARED"
	ChangeReappeared        ChangeKind = "REAPPEARED"
)

// Valid reports whether k is one of the defined change kinds.
func (k ChangeKind) Valid() bool {
	switch k {
	case ChangeSalaryIncrease, ChangeSalaryDecrease, ChangeFee, ChangeHeadcount,
		ChangeCompetition, ChangeInterviewIncrease, ChangeInterviewDecrease,
		ChangeHiringIncrease, ChangeHiringDecrease, ChangeLocation,
		ChangeDisappeared, ChangeReappeared:
		return true
	}
	return false
}

// ChangeEvent is one append-only record of a tracked field changing between
// two sightings of a role. Old and New hold the stringified values; either
// may be empty when the field appeared or vanished.
type ChangeEvent struct {
	ID         int64      `json:"id"`
	RoleID     int64      `json:"role_id"`
	RunID      string     `json:"run_id"`
	Kind       ChangeKind `json:"kind"`
	Field      string     `json:"field"`
	OldValue   string     `json:"old_value,omitempty"`
	NewValue   string     `json:"new_value,omitempty"`
	DetectedAt time.Time  `json:"detected_at"`
}

// Snapshot is the append-only per-run copy of a role's payload, with the
// hot numeric fields denormalized for cheap time-series queries.
type Snapshot struct {
	ID                int64     `json:"id"`
	RoleID            int64     `json:"role_id"`
	RunID             string    `json:"run_id"`
	Payload           Payload   `json:"payload"`
	SalaryUpper       *float64  `json:"salary_upper,omitempty"`
	SalaryLower       *float64  `json:"salary_lower,omitempty"`
	PercentFee        *float64  `json:"percent_fee,omitempty"`
	HiringCount       *int      `json:"hiring_count,omitempty"`
	RecruiterCount    *int      `json:"recruiter_count,omitempty"`
	TotalInterviewing *int      `json:"total_interviewing,omitempty"`
	TotalHired        *int      `json:"total_hired,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// NewSnapshot builds the snapshot row for one sighting.
func NewSnapshot(roleID int64, runID string, p Payload) Snapshot {
	return Snapshot{
		RoleID:            roleID,
		RunID:             runID,
		Payload:           p,
		SalaryUpper:       p.SalaryUpperBound,
		SalaryLower:       p.SalaryLowerBound,
		PercentFee:        p.PercentFee,
		HiringCount:       p.HiringCount,
		RecruiterCount:    p.ApprovedRecruitersCount,
		TotalInterviewing: p.TotalInterviewing,
		TotalHired:        p.TotalHired,
	}
}
