package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/rolescout/internal/model"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return &PostgresStore{pool: mock}, mock
}

func TestPostgresCreateRun(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs(pgxmock.AnyArg(), "running", "manual", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.CreateRun(context.Background(), "manual")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunRunning, run.Status)
	assert.Equal(t, "manual", run.TriggerSource)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFinalizeRunNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE runs SET status`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	now := time.Now().UTC()
	err := s.FinalizeRun(context.Background(), &model.Run{
		ID:          "missing",
		Status:      model.RunCompleted,
		CompletedAt: &now,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetRoleByExternalIDMissing(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT .+ FROM roles WHERE external_id`).
		WithArgs("role-404").
		WillReturnError(pgx.ErrNoRows)

	role, err := s.GetRoleByExternalID(context.Background(), "role-404")
	require.NoError(t, err)
	assert.Nil(t, role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetRoleByExternalID(t *testing.T) {
	s, mock := newMockStore(t)

	payload := model.Payload{ID: "role-1", Name: "Backend Engineer", Status: "ACTIVE"}
	payloadJSON, err := json.Marshal(payload)
	require.NoError(t, err)
	posJSON, _ := json.Marshal([]string{"Tier-1 investors: sequoia"})
	now := time.Now().UTC()
	eng := 0.8

	rows := pgxmock.NewRows([]string{
		"id", "external_id", "payload", "fingerprint", "tier", "positive_reasons", "negative_reasons",
		"engineer_score", "headhunter_score", "excitement_score", "combined_score", "score_breakdown",
		"lifecycle_status", "first_seen_at", "last_seen_at", "created_at", "updated_at",
	}).AddRow(
		int64(7), "role-1", payloadJSON, "abc123", "QUALIFIED", posJSON, []byte(nil),
		&eng, (*float64)(nil), (*float64)(nil), (*float64)(nil), []byte(nil),
		"ACTIVE", now, now, now, now,
	)

	mock.ExpectQuery(`SELECT .+ FROM roles WHERE external_id`).
		WithArgs("role-1").
		WillReturnRows(rows)

	role, err := s.GetRoleByExternalID(context.Background(), "role-1")
	require.NoError(t, err)
	require.NotNil(t, role)
	assert.Equal(t, int64(7), role.ID)
	assert.Equal(t, model.TierQualified, role.Tier)
	assert.Equal(t, model.LifecycleActive, role.Status)
	assert.Equal(t, "Backend Engineer", role.Payload.Name)
	assert.Equal(t, []string{"Tier-1 investors: sequoia"}, role.PositiveReasons)
	require.NotNil(t, role.EngineerScore)
	assert.InDelta(t, 0.8, *role.EngineerScore, 0.001)
	assert.Nil(t, role.ScoreBreakdown)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateRole(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`INSERT INTO roles`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(42)))

	role := &model.Role{
		ExternalID: "role-9",
		Payload:    model.Payload{ID: "role-9", Name: "Backend Engineer"},
		Tier:       model.TierMaybe,
		Status:     model.LifecycleActive,
	}
	require.NoError(t, s.CreateRole(context.Background(), role))
	assert.Equal(t, int64(42), role.ID)
	assert.False(t, role.FirstSeenAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateRoleNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE roles SET payload`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateRole(context.Background(), &model.Role{ID: 99, Tier: model.TierSkip, Status: model.LifecycleActive})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "role not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateChangeEventsUsesCopy(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectCopyFrom(
		pgx.Identifier{"change_events"},
		[]string{"role_id", "run_id", "kind", "field", "old_value", "new_value", "detected_at"},
	).WillReturnResult(2)

	events := []model.ChangeEvent{
		{RoleID: 1, RunID: "run-1", Kind: model.ChangeSalaryIncrease, Field: "salary_upper", OldValue: "200000", NewValue: "250000"},
		{RoleID: 2, RunID: "run-1", Kind: model.ChangeDisappeared, Field: "lifecycle_status", OldValue: "ACTIVE", NewValue: "FILLED"},
	}
	require.NoError(t, s.CreateChangeEvents(context.Background(), events))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateChangeEventsEmpty(t *testing.T) {
	s, mock := newMockStore(t)
	require.NoError(t, s.CreateChangeEvents(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetCompanyEnrichmentMissing(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT .+ FROM company_enrichments`).
		WithArgs("unknown co").
		WillReturnError(pgx.ErrNoRows)

	e, err := s.GetCompanyEnrichment(context.Background(), "unknown co")
	require.NoError(t, err)
	assert.Nil(t, e)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRunStats(t *testing.T) {
	s, mock := newMockStore(t)

	avg := 42.5
	last := time.Now().UTC()
	mock.ExpectQuery(`SELECT count\(\*\),\s+count\(\*\) FILTER \(WHERE status IN`).
		WillReturnRows(pgxmock.NewRows([]string{"count", "completed", "failed", "avg", "max"}).
			AddRow(10, 8, 1, &avg, &last))
	mock.ExpectQuery(`SELECT count\(\*\),\s+count\(\*\) FILTER \(WHERE lifecycle_status`).
		WillReturnRows(pgxmock.NewRows([]string{"count", "active", "qualified"}).
			AddRow(250, 180, 40))
	mock.ExpectQuery(`SELECT count\(\*\) FROM change_events`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(77))

	stats, err := s.RunStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, stats.TotalRuns)
	assert.Equal(t, 8, stats.CompletedRuns)
	assert.Equal(t, 1, stats.FailedRuns)
	assert.InDelta(t, 42.5, stats.AvgDurationSecs, 0.001)
	assert.Equal(t, 250, stats.TotalRoles)
	assert.Equal(t, 180, stats.ActiveRoles)
	assert.Equal(t, 40, stats.QualifiedRoles)
	assert.Equal(t, 77, stats.ChangeEvents)
	assert.NoError(t, mock.ExpectationsWereMet())
}
