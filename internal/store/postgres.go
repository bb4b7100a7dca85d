package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/rolescout/internal/db"
	"github.com/sells-group/rolescout/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection. These
// run once per role per scrape, so they dominate the write path.
var preparedStatements = map[string]string{
	"get_role_by_external_id": `SELECT ` + roleColumns + ` FROM roles WHERE external_id = $1`,
	"insert_snapshot":         `INSERT INTO role_snapshots (role_id, run_id, payload, salary_upper, salary_lower, percent_fee, hiring_count, recruiter_count, total_interviewing, total_hired, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
	"latest_snapshot":         `SELECT id, role_id, run_id, payload, salary_upper, salary_lower, percent_fee, hiring_count, recruiter_count, total_interviewing, total_hired, created_at FROM role_snapshots WHERE role_id = $1 ORDER BY created_at DESC, id DESC LIMIT 1`,
	"get_company_enrichment":  `SELECT id, company_key, excitement_score, reasoning, signals, model, context, created_at, updated_at FROM company_enrichments WHERE company_key = $1`,
	"get_role_enrichment":     `SELECT id, role_external_id, data, model, created_at FROM role_enrichments WHERE role_external_id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that need direct
// query access.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id               TEXT PRIMARY KEY,
	status           TEXT NOT NULL DEFAULT 'running',
	trigger_source   TEXT NOT NULL DEFAULT 'manual',
	roles_found      INTEGER NOT NULL DEFAULT 0,
	new_roles        INTEGER NOT NULL DEFAULT 0,
	updated_roles    INTEGER NOT NULL DEFAULT 0,
	qualified_roles  INTEGER NOT NULL DEFAULT 0,
	skipped_roles    INTEGER NOT NULL DEFAULT 0,
	changed_roles    INTEGER NOT NULL DEFAULT 0,
	errors           JSONB,
	started_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at     TIMESTAMPTZ,
	duration_seconds INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at DESC);

CREATE TABLE IF NOT EXISTS roles (
	id               BIGSERIAL PRIMARY KEY,
	external_id      TEXT NOT NULL UNIQUE,
	payload          JSONB NOT NULL,
	fingerprint      TEXT NOT NULL DEFAULT '',
	tier             TEXT NOT NULL DEFAULT 'SKIP',
	positive_reasons JSONB,
	negative_reasons JSONB,
	engineer_score   DOUBLE PRECISION,
	headhunter_score DOUBLE PRECISION,
	excitement_score DOUBLE PRECISION,
	combined_score   DOUBLE PRECISION,
	score_breakdown  JSONB,
	lifecycle_status TEXT NOT NULL DEFAULT 'ACTIVE',
	first_seen_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_seen_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_roles_tier ON roles(tier);
CREATE INDEX IF NOT EXISTS idx_roles_lifecycle ON roles(lifecycle_status);
CREATE INDEX IF NOT EXISTS idx_roles_combined_score ON roles(combined_score DESC NULLS LAST);

CREATE TABLE IF NOT EXISTS role_snapshots (
	id                 BIGSERIAL PRIMARY KEY,
	role_id            BIGINT NOT NULL REFERENCES roles(id),
	run_id             TEXT NOT NULL REFERENCES runs(id),
	payload            JSONB NOT NULL,
	salary_upper       DOUBLE PRECISION,
	salary_lower       DOUBLE PRECISION,
	percent_fee        DOUBLE PRECISION,
	hiring_count       INTEGER,
	recruiter_count    INTEGER,
	total_interviewing INTEGER,
	total_hired        INTEGER,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_snapshots_role_created ON role_snapshots(role_id, created_at DESC);

CREATE TABLE IF NOT EXISTS change_events (
	id          BIGSERIAL PRIMARY KEY,
	role_id     BIGINT NOT NULL REFERENCES roles(id),
	run_id      TEXT NOT NULL,
	kind        TEXT NOT NULL,
	field       TEXT NOT NULL,
	old_value   TEXT NOT NULL DEFAULT '',
	new_value   TEXT NOT NULL DEFAULT '',
	detected_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_changes_role_id ON change_events(role_id);
CREATE INDEX IF NOT EXISTS idx_changes_kind ON change_events(kind);
CREATE INDEX IF NOT EXISTS idx_changes_detected_at ON change_events(detected_at DESC);

CREATE TABLE IF NOT EXISTS company_enrichments (
	id               BIGSERIAL PRIMARY KEY,
	company_key      TEXT NOT NULL UNIQUE,
	excitement_score DOUBLE PRECISION NOT NULL,
	reasoning        TEXT NOT NULL DEFAULT '',
	signals          JSONB,
	model            TEXT NOT NULL DEFAULT '',
	context          TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS role_enrichments (
	id               BIGSERIAL PRIMARY KEY,
	role_external_id TEXT NOT NULL UNIQUE,
	data             JSONB NOT NULL,
	model            TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

const roleColumns = `id, external_id, payload, fingerprint, tier, positive_reasons, negative_reasons, engineer_score, headhunter_score, excitement_score, combined_score, score_breakdown, lifecycle_status, first_seen_at, last_seen_at, created_at, updated_at`

const runColumns = `id, status, trigger_source, roles_found, new_roles, updated_roles, qualified_roles, skipped_roles, changed_roles, errors, started_at, completed_at, duration_seconds`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, trigger string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, status, trigger_source, started_at) VALUES ($1, $2, $3, $4)`,
		id, string(model.RunRunning), trigger, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:            id,
		Status:        model.RunRunning,
		TriggerSource: trigger,
		StartedAt:     now,
	}, nil
}

func (s *PostgresStore) FinalizeRun(ctx context.Context, run *model.Run) error {
	errorsJSON, err := json.Marshal(run.Errors)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal run errors")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, roles_found = $2, new_roles = $3, updated_roles = $4,
		 qualified_roles = $5, skipped_roles = $6, changed_roles = $7, errors = $8,
		 completed_at = $9, duration_seconds = $10 WHERE id = $11`,
		string(run.Status), run.RolesFound, run.NewRoles, run.UpdatedRoles,
		run.QualifiedRoles, run.SkippedRoles, run.ChangedRoles, errorsJSON,
		run.CompletedAt, run.DurationSeconds, run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finalize run %s", run.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", run.ID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	run, err := scanRunPG(s.pool.QueryRow(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = $1`, runID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return run, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		run, err := scanRunPG(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *run)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) GetRoleByExternalID(ctx context.Context, externalID string) (*model.Role, error) {
	role, err := scanRolePG(s.pool.QueryRow(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE external_id = $1`, externalID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get role %s", externalID)
	}
	return role, nil
}

func (s *PostgresStore) CreateRole(ctx context.Context, role *model.Role) error {
	now := time.Now().UTC()
	role.FirstSeenAt = now
	role.LastSeenAt = now
	role.CreatedAt = now
	role.UpdatedAt = now

	payloadJSON, posJSON, negJSON, breakdownJSON, err := marshalRole(role)
	if err != nil {
		return err
	}

	err = s.pool.QueryRow(ctx,
		`INSERT INTO roles (external_id, payload, fingerprint, tier, positive_reasons, negative_reasons,
		 engineer_score, headhunter_score, excitement_score, combined_score, score_breakdown,
		 lifecycle_status, first_seen_at, last_seen_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		 RETURNING id`,
		role.ExternalID, payloadJSON, role.Fingerprint, string(role.Tier), posJSON, negJSON,
		role.EngineerScore, role.HeadhunterScore, role.ExcitementScore, role.CombinedScore, breakdownJSON,
		string(role.Status), role.FirstSeenAt, role.LastSeenAt, role.CreatedAt, role.UpdatedAt,
	).Scan(&role.ID)
	return eris.Wrapf(err, "postgres: insert role %s", role.ExternalID)
}

func (s *PostgresStore) UpdateRole(ctx context.Context, role *model.Role) error {
	now := time.Now().UTC()
	role.LastSeenAt = now
	role.UpdatedAt = now

	payloadJSON, posJSON, negJSON, breakdownJSON, err := marshalRole(role)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE roles SET payload = $1, fingerprint = $2, tier = $3, positive_reasons = $4,
		 negative_reasons = $5, engineer_score = $6, headhunter_score = $7, excitement_score = $8,
		 combined_score = $9, score_breakdown = $10, lifecycle_status = $11, last_seen_at = $12,
		 updated_at = $13 WHERE id = $14`,
		payloadJSON, role.Fingerprint, string(role.Tier), posJSON,
		negJSON, role.EngineerScore, role.HeadhunterScore, role.ExcitementScore,
		role.CombinedScore, breakdownJSON, string(role.Status), role.LastSeenAt,
		role.UpdatedAt, role.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update role %d", role.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("role not found: %d", role.ID)
	}
	return nil
}

func (s *PostgresStore) UpdateLifecycle(ctx context.Context, roleID int64, status model.LifecycleStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE roles SET lifecycle_status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), roleID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update lifecycle %d", roleID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("role not found: %d", roleID)
	}
	return nil
}

func (s *PostgresStore) TouchRole(ctx context.Context, roleID int64) error {
	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE roles SET last_seen_at = $1, updated_at = $2 WHERE id = $3`,
		now, now, roleID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: touch role %d", roleID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("role not found: %d", roleID)
	}
	return nil
}

// ListActiveRoleIDsNotSeen returns the ids of ACTIVE roles absent from
// seenIDs. With an empty seenIDs every active role is returned.
func (s *PostgresStore) ListActiveRoleIDsNotSeen(ctx context.Context, seenIDs []int64) ([]int64, error) {
	if seenIDs == nil {
		seenIDs = []int64{}
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id FROM roles WHERE lifecycle_status = 'ACTIVE' AND NOT (id = ANY($1)) ORDER BY id`,
		seenIDs,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list unseen active roles")
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan unseen role id")
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PostgresStore) ListRoles(ctx context.Context, filter RoleFilter) ([]model.Role, error) {
	query := `SELECT ` + roleColumns + ` FROM roles WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Tier != "" {
		query += fmt.Sprintf(` AND tier = $%d`, argIdx)
		args = append(args, string(filter.Tier))
		argIdx++
	}
	if filter.Lifecycle != "" {
		query += fmt.Sprintf(` AND lifecycle_status = $%d`, argIdx)
		args = append(args, string(filter.Lifecycle))
		argIdx++
	}
	if filter.MinScore != nil {
		query += fmt.Sprintf(` AND combined_score >= $%d`, argIdx)
		args = append(args, *filter.MinScore)
		argIdx++
	}
	query += ` ORDER BY combined_score DESC NULLS LAST, external_id`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list roles")
	}
	defer rows.Close()

	var roles []model.Role
	for rows.Next() {
		role, err := scanRolePG(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan role")
		}
		roles = append(roles, *role)
	}
	return roles, eris.Wrap(rows.Err(), "postgres: list roles iterate")
}

func (s *PostgresStore) CreateSnapshot(ctx context.Context, snap *model.Snapshot) error {
	payloadJSON, err := json.Marshal(snap.Payload)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal snapshot payload")
	}
	snap.CreatedAt = time.Now().UTC()

	_, err = s.pool.Exec(ctx,
		`INSERT INTO role_snapshots (role_id, run_id, payload, salary_upper, salary_lower, percent_fee,
		 hiring_count, recruiter_count, total_interviewing, total_hired, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		snap.RoleID, snap.RunID, payloadJSON, snap.SalaryUpper, snap.SalaryLower, snap.PercentFee,
		snap.HiringCount, snap.RecruiterCount, snap.TotalInterviewing, snap.TotalHired, snap.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert snapshot for role %d", snap.RoleID)
}

func (s *PostgresStore) LatestSnapshot(ctx context.Context, roleID int64) (*model.Snapshot, error) {
	var snap model.Snapshot
	var payloadJSON []byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, role_id, run_id, payload, salary_upper, salary_lower, percent_fee,
		 hiring_count, recruiter_count, total_interviewing, total_hired, created_at
		 FROM role_snapshots WHERE role_id = $1 ORDER BY created_at DESC, id DESC LIMIT 1`,
		roleID,
	).Scan(&snap.ID, &snap.RoleID, &snap.RunID, &payloadJSON, &snap.SalaryUpper, &snap.SalaryLower,
		&snap.PercentFee, &snap.HiringCount, &snap.RecruiterCount, &snap.TotalInterviewing,
		&snap.TotalHired, &snap.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: latest snapshot for role %d", roleID)
	}
	if err := json.Unmarshal(payloadJSON, &snap.Payload); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal snapshot payload")
	}
	return &snap, nil
}

func (s *PostgresStore) CreateChangeEvents(ctx context.Context, events []model.ChangeEvent) error {
	if len(events) == 0 {
		return nil
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(events))
	for _, ev := range events {
		detectedAt := ev.DetectedAt
		if detectedAt.IsZero() {
			detectedAt = now
		}
		rows = append(rows, []any{ev.RoleID, ev.RunID, string(ev.Kind), ev.Field, ev.OldValue, ev.NewValue, detectedAt})
	}

	_, err := db.CopyFrom(ctx, s.pool, "change_events",
		[]string{"role_id", "run_id", "kind", "field", "old_value", "new_value", "detected_at"}, rows)
	return eris.Wrap(err, "postgres: insert change events")
}

func (s *PostgresStore) ListChangeEvents(ctx context.Context, filter ChangeFilter) ([]model.ChangeEvent, error) {
	query := `SELECT id, role_id, run_id, kind, field, old_value, new_value, detected_at FROM change_events WHERE true`
	args := []any{}
	argIdx := 1

	if filter.RoleID != 0 {
		query += fmt.Sprintf(` AND role_id = $%d`, argIdx)
		args = append(args, filter.RoleID)
		argIdx++
	}
	if filter.RunID != "" {
		query += fmt.Sprintf(` AND run_id = $%d`, argIdx)
		args = append(args, filter.RunID)
		argIdx++
	}
	if filter.Kind != "" {
		query += fmt.Sprintf(` AND kind = $%d`, argIdx)
		args = append(args, string(filter.Kind))
		argIdx++
	}
	if filter.Since != nil {
		query += fmt.Sprintf(` AND detected_at >= $%d`, argIdx)
		args = append(args, *filter.Since)
		argIdx++
	}
	query += ` ORDER BY detected_at DESC, id DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list change events")
	}
	defer rows.Close()

	var events []model.ChangeEvent
	for rows.Next() {
		var ev model.ChangeEvent
		var kind string
		if err := rows.Scan(&ev.ID, &ev.RoleID, &ev.RunID, &kind, &ev.Field, &ev.OldValue, &ev.NewValue, &ev.DetectedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan change event")
		}
		ev.Kind = model.ChangeKind(kind)
		events = append(events, ev)
	}
	return events, eris.Wrap(rows.Err(), "postgres: list change events iterate")
}

func (s *PostgresStore) GetCompanyEnrichment(ctx context.Context, companyKey string) (*model.CompanyEnrichment, error) {
	var e model.CompanyEnrichment
	var signalsJSON []byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, company_key, excitement_score, reasoning, signals, model, context, created_at, updated_at
		 FROM company_enrichments WHERE company_key = $1`,
		companyKey,
	).Scan(&e.ID, &e.CompanyKey, &e.ExcitementScore, &e.Reasoning, &signalsJSON, &e.Model, &e.Context, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get company enrichment %s", companyKey)
	}
	if len(signalsJSON) > 0 {
		if err := json.Unmarshal(signalsJSON, &e.Signals); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal enrichment signals")
		}
	}
	return &e, nil
}

func (s *PostgresStore) SaveCompanyEnrichment(ctx context.Context, e *model.CompanyEnrichment) error {
	signalsJSON, err := json.Marshal(e.Signals)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal enrichment signals")
	}
	now := time.Now().UTC()

	_, err = s.pool.Exec(ctx,
		`INSERT INTO company_enrichments (company_key, excitement_score, reasoning, signals, model, context, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (company_key) DO UPDATE SET excitement_score = $2, reasoning = $3, signals = $4, model = $5, context = $6, updated_at = $8`,
		e.CompanyKey, e.ExcitementScore, e.Reasoning, signalsJSON, e.Model, e.Context, now, now,
	)
	return eris.Wrapf(err, "postgres: save company enrichment %s", e.CompanyKey)
}

func (s *PostgresStore) GetRoleEnrichment(ctx context.Context, roleExternalID string) (*model.RoleEnrichment, error) {
	var e model.RoleEnrichment
	var dataJSON []byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, role_external_id, data, model, created_at FROM role_enrichments WHERE role_external_id = $1`,
		roleExternalID,
	).Scan(&e.ID, &e.RoleExternalID, &dataJSON, &e.Model, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get role enrichment %s", roleExternalID)
	}

	// The row columns are authoritative for identity; the JSON blob holds
	// the extraction fields.
	id, externalID, modelName, createdAt := e.ID, e.RoleExternalID, e.Model, e.CreatedAt
	if err := json.Unmarshal(dataJSON, &e); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal role enrichment")
	}
	e.ID, e.RoleExternalID, e.Model, e.CreatedAt = id, externalID, modelName, createdAt
	return &e, nil
}

func (s *PostgresStore) SaveRoleEnrichment(ctx context.Context, e *model.RoleEnrichment) error {
	dataJSON, err := json.Marshal(e)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal role enrichment")
	}
	now := time.Now().UTC()

	_, err = s.pool.Exec(ctx,
		`INSERT INTO role_enrichments (role_external_id, data, model, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (role_external_id) DO UPDATE SET data = $2, model = $3`,
		e.RoleExternalID, dataJSON, e.Model, now,
	)
	return eris.Wrapf(err, "postgres: save role enrichment %s", e.RoleExternalID)
}

func (s *PostgresStore) RunStats(ctx context.Context) (*RunStats, error) {
	var stats RunStats
	var avgDuration *float64
	var lastRunAt *time.Time

	err := s.pool.QueryRow(ctx,
		`SELECT count(*),
		 count(*) FILTER (WHERE status IN ('completed', 'completed_with_errors')),
		 count(*) FILTER (WHERE status = 'failed'),
		 avg(duration_seconds) FILTER (WHERE completed_at IS NOT NULL),
		 max(started_at)
		 FROM runs`,
	).Scan(&stats.TotalRuns, &stats.CompletedRuns, &stats.FailedRuns, &avgDuration, &lastRunAt)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: run stats")
	}
	if avgDuration != nil {
		stats.AvgDurationSecs = *avgDuration
	}
	stats.LastRunAt = lastRunAt

	err = s.pool.QueryRow(ctx,
		`SELECT count(*),
		 count(*) FILTER (WHERE lifecycle_status = 'ACTIVE'),
		 count(*) FILTER (WHERE tier IN ('QUALIFIED', 'MAYBE'))
		 FROM roles`,
	).Scan(&stats.TotalRoles, &stats.ActiveRoles, &stats.QualifiedRoles)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: role stats")
	}

	err = s.pool.QueryRow(ctx, `SELECT count(*) FROM change_events`).Scan(&stats.ChangeEvents)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: change event stats")
	}
	return &stats, nil
}

// pgScannable covers pgx.Row and pgx.Rows.
type pgScannable interface {
	Scan(dest ...any) error
}

func scanRunPG(row pgScannable) (*model.Run, error) {
	var r model.Run
	var status string
	var errorsJSON []byte

	err := row.Scan(&r.ID, &status, &r.TriggerSource, &r.RolesFound, &r.NewRoles, &r.UpdatedRoles,
		&r.QualifiedRoles, &r.SkippedRoles, &r.ChangedRoles, &errorsJSON, &r.StartedAt,
		&r.CompletedAt, &r.DurationSeconds)
	if err != nil {
		return nil, err
	}
	r.Status = model.RunStatus(status)
	if len(errorsJSON) > 0 {
		if err := json.Unmarshal(errorsJSON, &r.Errors); err != nil {
			return nil, eris.Wrap(err, "unmarshal run errors")
		}
	}
	return &r, nil
}

func scanRolePG(row pgScannable) (*model.Role, error) {
	var r model.Role
	var tier, status string
	var payloadJSON, posJSON, negJSON, breakdownJSON []byte

	err := row.Scan(&r.ID, &r.ExternalID, &payloadJSON, &r.Fingerprint, &tier, &posJSON, &negJSON,
		&r.EngineerScore, &r.HeadhunterScore, &r.ExcitementScore, &r.CombinedScore, &breakdownJSON,
		&status, &r.FirstSeenAt, &r.LastSeenAt, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.Tier = model.Tier(tier)
	r.Status = model.LifecycleStatus(status)

	if err := json.Unmarshal(payloadJSON, &r.Payload); err != nil {
		return nil, eris.Wrap(err, "unmarshal role payload")
	}
	if len(posJSON) > 0 {
		if err := json.Unmarshal(posJSON, &r.PositiveReasons); err != nil {
			return nil, eris.Wrap(err, "unmarshal positive reasons")
		}
	}
	if len(negJSON) > 0 {
		if err := json.Unmarshal(negJSON, &r.NegativeReasons); err != nil {
			return nil, eris.Wrap(err, "unmarshal negative reasons")
		}
	}
	if len(breakdownJSON) > 0 {
		r.ScoreBreakdown = &model.ScoreBreakdown{}
		if err := json.Unmarshal(breakdownJSON, r.ScoreBreakdown); err != nil {
			return nil, eris.Wrap(err, "unmarshal score breakdown")
		}
	}
	return &r, nil
}

func marshalRole(role *model.Role) (payloadJSON, posJSON, negJSON, breakdownJSON []byte, err error) {
	payloadJSON, err = json.Marshal(role.Payload)
	if err != nil {
		return nil, nil, nil, nil, eris.Wrap(err, "marshal role payload")
	}
	posJSON, err = json.Marshal(role.PositiveReasons)
	if err != nil {
		return nil, nil, nil, nil, eris.Wrap(err, "marshal positive reasons")
	}
	negJSON, err = json.Marshal(role.NegativeReasons)
	if err != nil {
		return nil, nil, nil, nil, eris.Wrap(err, "marshal negative reasons")
	}
	if role.ScoreBreakdown != nil {
		breakdownJSON, err = json.Marshal(role.ScoreBreakdown)
		if err != nil {
			return nil, nil, nil, nil, eris.Wrap(err, "marshal score breakdown")
		}
	}
	return payloadJSON, posJSON, negJSON, breakdownJSON, nil
}
