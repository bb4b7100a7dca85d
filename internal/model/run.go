package model

import "time"

// RunStatus is the lifecycle state of one ingestion run.
type RunStatus string

const (
	RunRunning             RunStatus = "running"
	RunCompleted           RunStatus = "completed"
	RunCompletedWithErrors RunStatus = "completed_with_errors"
	RunFailed              RunStatus = "failed"
)

// Terminal reports whether the status is final. A terminal run is never
// updated again.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunCompleted, RunCompletedWithErrors, RunFailed:
		return true
	}
	return false
}

// Run is one end-to-end ingestion pass over the source feed.
type Run struct {
	ID              string     `json:"id"`
	Status          RunStatus  `json:"status"`
	TriggerSource   string     `json:"trigger_source"`
	RolesFound      int        `json:"roles_found"`
	NewRoles        int        `json:"new_roles"`
	UpdatedRoles    int        `json:"updated_roles"`
	QualifiedRoles  int        `json:"qualified_roles"`
	SkippedRoles    int        `json:"skipped_roles"`
	ChangedRoles    int        `json:"changed_roles"`
	Errors          []string   `json:"errors,omitempty"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	DurationSeconds int        `json:"duration_seconds"`
}
