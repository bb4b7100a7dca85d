// Package store persists roles, runs, snapshots, change events, and the
// enrichment caches. Two implementations exist: PostgresStore for
// deployments and SQLiteStore for local single-file use.
package store

import (
	"context"
	"time"

	"github.com/sells-group/rolescout/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// RoleFilter specifies criteria for listing roles.
type RoleFilter struct {
	Tier      model.Tier            `json:"tier,omitempty"`
	Lifecycle model.LifecycleStatus `json:"lifecycle,omitempty"`
	MinScore  *float64              `json:"min_score,omitempty"` // combined score floor
	Limit     int                   `json:"limit,omitempty"`
	Offset    int                   `json:"offset,omitempty"`
}

// ChangeFilter specifies criteria for listing change events.
type ChangeFilter struct {
	RoleID int64            `json:"role_id,omitempty"`
	RunID  string           `json:"run_id,omitempty"`
	Kind   model.ChangeKind `json:"kind,omitempty"`
	Since  *time.Time       `json:"since,omitempty"`
	Limit  int              `json:"limit,omitempty"`
}

// RunStats aggregates pipeline health counters for the metrics endpoint.
type RunStats struct {
	TotalRuns       int        `json:"total_runs"`
	CompletedRuns   int        `json:"completed_runs"`
	FailedRuns      int        `json:"failed_runs"`
	AvgDurationSecs float64    `json:"avg_duration_seconds"`
	LastRunAt       *time.Time `json:"last_run_at,omitempty"`
	TotalRoles      int        `json:"total_roles"`
	ActiveRoles     int        `json:"active_roles"`
	QualifiedRoles  int        `json:"qualified_roles"`
	ChangeEvents    int        `json:"change_events"`
}

// Store defines the persistence interface for the ingestion pipeline.
// Getters return (nil, nil) when no row matches.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, trigger string) (*model.Run, error)
	FinalizeRun(ctx context.Context, run *model.Run) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Roles
	GetRoleByExternalID(ctx context.Context, externalID string) (*model.Role, error)
	CreateRole(ctx context.Context, role *model.Role) error
	UpdateRole(ctx context.Context, role *model.Role) error
	UpdateLifecycle(ctx context.Context, roleID int64, status model.LifecycleStatus) error
	TouchRole(ctx context.Context, roleID int64) error
	ListRoles(ctx context.Context, filter RoleFilter) ([]model.Role, error)
	ListActiveRoleIDsNotSeen(ctx context.Context, seenIDs []int64) ([]int64, error)

	// Temporal tracking
	CreateSnapshot(ctx context.Context, snap *model.Snapshot) error
	LatestSnapshot(ctx context.Context, roleID int64) (*model.Snapshot, error)
	CreateChangeEvents(ctx context.Context, events []model.ChangeEvent) error
	ListChangeEvents(ctx context.Context, filter ChangeFilter) ([]model.ChangeEvent, error)

	// Enrichment caches
	GetCompanyEnrichment(ctx context.Context, companyKey string) (*model.CompanyEnrichment, error)
	SaveCompanyEnrichment(ctx context.Context, e *model.CompanyEnrichment) error
	GetRoleEnrichment(ctx context.Context, roleExternalID string) (*model.RoleEnrichment, error)
	SaveRoleEnrichment(ctx context.Context, e *model.RoleEnrichment) error

	// Metrics
	RunStats(ctx context.Context) (*RunStats, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
