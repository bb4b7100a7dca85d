package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/rolescout/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
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
	errors           TEXT,
	started_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	completed_at     DATETIME,
	duration_seconds INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);

CREATE TABLE IF NOT EXISTS roles (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	external_id      TEXT NOT NULL UNIQUE,
	payload          TEXT NOT NULL,
	fingerprint      TEXT NOT NULL DEFAULT '',
	tier             TEXT NOT NULL DEFAULT 'SKIP',
	positive_reasons TEXT,
	negative_reasons TEXT,
	engineer_score   REAL,
	headhunter_score REAL,
	excitement_score REAL,
	combined_score   REAL,
	score_breakdown  TEXT,
	lifecycle_status TEXT NOT NULL DEFAULT 'ACTIVE',
	first_seen_at    DATETIME NOT NULL,
	last_seen_at     DATETIME NOT NULL,
	created_at       DATETIME NOT NULL,
	updated_at       DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_roles_tier ON roles(tier);
CREATE INDEX IF NOT EXISTS idx_roles_lifecycle ON roles(lifecycle_status);
CREATE INDEX IF NOT EXISTS idx_roles_combined_score ON roles(combined_score);

CREATE TABLE IF NOT EXISTS role_snapshots (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	role_id            INTEGER NOT NULL REFERENCES roles(id),
	run_id             TEXT NOT NULL REFERENCES runs(id),
	payload            TEXT NOT NULL,
	salary_upper       REAL,
	salary_lower       REAL,
	percent_fee        REAL,
	hiring_count       INTEGER,
	recruiter_count    INTEGER,
	total_interviewing INTEGER,
	total_hired        INTEGER,
	created_at         DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_snapshots_role_created ON role_snapshots(role_id, created_at);

CREATE TABLE IF NOT EXISTS change_events (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	role_id     INTEGER NOT NULL REFERENCES roles(id),
	run_id      TEXT NOT NULL,
	kind        TEXT NOT NULL,
	field       TEXT NOT NULL,
	old_value   TEXT NOT NULL DEFAULT '',
	new_value   TEXT NOT NULL DEFAULT '',
	detected_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_changes_role_id ON change_events(role_id);
CREATE INDEX IF NOT EXISTS idx_changes_kind ON change_events(kind);
CREATE INDEX IF NOT EXISTS idx_changes_detected_at ON change_events(detected_at);

CREATE TABLE IF NOT EXISTS company_enrichments (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	company_key      TEXT NOT NULL UNIQUE,
	excitement_score REAL NOT NULL,
	reasoning        TEXT NOT NULL DEFAULT '',
	signals          TEXT,
	model            TEXT NOT NULL DEFAULT '',
	context          TEXT NOT NULL DEFAULT '',
	created_at       DATETIME NOT NULL,
	updated_at       DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS role_enrichments (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	role_external_id TEXT NOT NULL UNIQUE,
	data             TEXT NOT NULL,
	model            TEXT NOT NULL DEFAULT '',
	created_at       DATETIME NOT NULL
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, trigger string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, status, trigger_source, started_at) VALUES (?, ?, ?, ?)`,
		id, string(model.RunRunning), trigger, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:            id,
		Status:        model.RunRunning,
		TriggerSource: trigger,
		StartedAt:     now,
	}, nil
}

func (s *SQLiteStore) FinalizeRun(ctx context.Context, run *model.Run) error {
	errorsJSON, err := json.Marshal(run.Errors)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal run errors")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, roles_found = ?, new_roles = ?, updated_roles = ?,
		 qualified_roles = ?, skipped_roles = ?, changed_roles = ?, errors = ?,
		 completed_at = ?, duration_seconds = ? WHERE id = ?`,
		string(run.Status), run.RolesFound, run.NewRoles, run.UpdatedRoles,
		run.QualifiedRoles, run.SkippedRoles, run.ChangedRoles, string(errorsJSON),
		run.CompletedAt, run.DurationSeconds, run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finalize run %s", run.ID)
	}
	return checkRowsAffected(res, "run", run.ID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = ?`, runID)
	run, err := scanRunLite(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}
	return run, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		run, err := scanRunLite(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, *run)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) GetRoleByExternalID(ctx context.Context, externalID string) (*model.Role, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE external_id = ?`, externalID)
	role, err := scanRoleLite(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get role %s", externalID)
	}
	return role, nil
}

func (s *SQLiteStore) CreateRole(ctx context.Context, role *model.Role) error {
	now := time.Now().UTC()
	role.FirstSeenAt = now
	role.LastSeenAt = now
	role.CreatedAt = now
	role.UpdatedAt = now

	payloadJSON, posJSON, negJSON, breakdownJSON, err := marshalRole(role)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO roles (external_id, payload, fingerprint, tier, positive_reasons, negative_reasons,
		 engineer_score, headhunter_score, excitement_score, combined_score, score_breakdown,
		 lifecycle_status, first_seen_at, last_seen_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		role.ExternalID, string(payloadJSON), role.Fingerprint, string(role.Tier), string(posJSON), string(negJSON),
		role.EngineerScore, role.HeadhunterScore, role.ExcitementScore, role.CombinedScore, nullableString(breakdownJSON),
		string(role.Status), role.FirstSeenAt, role.LastSeenAt, role.CreatedAt, role.UpdatedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert role %s", role.ExternalID)
	}
	role.ID, err = res.LastInsertId()
	return eris.Wrap(err, "sqlite: role insert id")
}

func (s *SQLiteStore) UpdateRole(ctx context.Context, role *model.Role) error {
	now := time.Now().UTC()
	role.LastSeenAt = now
	role.UpdatedAt = now

	payloadJSON, posJSON, negJSON, breakdownJSON, err := marshalRole(role)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE roles SET payload = ?, fingerprint = ?, tier = ?, positive_reasons = ?,
		 negative_reasons = ?, engineer_score = ?, headhunter_score = ?, excitement_score = ?,
		 combined_score = ?, score_breakdown = ?, lifecycle_status = ?, last_seen_at = ?,
		 updated_at = ? WHERE id = ?`,
		string(payloadJSON), role.Fingerprint, string(role.Tier), string(posJSON),
		string(negJSON), role.EngineerScore, role.HeadhunterScore, role.ExcitementScore,
		role.CombinedScore, nullableString(breakdownJSON), string(role.Status), role.LastSeenAt,
		role.UpdatedAt, role.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update role %d", role.ID)
	}
	return checkRowsAffected(res, "role", role.ExternalID)
}

func (s *SQLiteStore) UpdateLifecycle(ctx context.Context, roleID int64, status model.LifecycleStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE roles SET lifecycle_status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), roleID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update lifecycle %d", roleID)
	}
	return checkRowsAffected(res, "role", string(status))
}

func (s *SQLiteStore) TouchRole(ctx context.Context, roleID int64) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE roles SET last_seen_at = ?, updated_at = ? WHERE id = ?`,
		now, now, roleID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: touch role %d", roleID)
	}
	return checkRowsAffected(res, "role", strconv.FormatInt(roleID, 10))
}

// ListActiveRoleIDsNotSeen returns the ids of ACTIVE roles absent from
// seenIDs. The filter happens in Go; active role counts stay small enough
// that a dynamic IN list buys nothing.
func (s *SQLiteStore) ListActiveRoleIDsNotSeen(ctx context.Context, seenIDs []int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM roles WHERE lifecycle_status = 'ACTIVE' ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list unseen active roles")
	}
	defer rows.Close()

	seen := make(map[int64]struct{}, len(seenIDs))
	for _, id := range seenIDs {
		seen[id] = struct{}{}
	}

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan unseen role id")
		}
		if _, ok := seen[id]; !ok {
			ids = append(ids, id)
		}
	}
	return ids, rows.Err()
}

func (s *SQLiteStore) ListRoles(ctx context.Context, filter RoleFilter) ([]model.Role, error) {
	query := `SELECT ` + roleColumns + ` FROM roles WHERE 1=1`
	var args []any

	if filter.Tier != "" {
		query += ` AND tier = ?`
		args = append(args, string(filter.Tier))
	}
	if filter.Lifecycle != "" {
		query += ` AND lifecycle_status = ?`
		args = append(args, string(filter.Lifecycle))
	}
	if filter.MinScore != nil {
		query += ` AND combined_score >= ?`
		args = append(args, *filter.MinScore)
	}
	query += ` ORDER BY combined_score DESC, external_id`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list roles")
	}
	defer rows.Close()

	var roles []model.Role
	for rows.Next() {
		role, err := scanRoleLite(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan role")
		}
		roles = append(roles, *role)
	}
	return roles, eris.Wrap(rows.Err(), "sqlite: list roles iterate")
}

func (s *SQLiteStore) CreateSnapshot(ctx context.Context, snap *model.Snapshot) error {
	payloadJSON, err := json.Marshal(snap.Payload)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal snapshot payload")
	}
	snap.CreatedAt = time.Now().UTC()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO role_snapshots (role_id, run_id, payload, salary_upper, salary_lower, percent_fee,
		 hiring_count, recruiter_count, total_interviewing, total_hired, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.RoleID, snap.RunID, string(payloadJSON), snap.SalaryUpper, snap.SalaryLower, snap.PercentFee,
		snap.HiringCount, snap.RecruiterCount, snap.TotalInterviewing, snap.TotalHired, snap.CreatedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert snapshot for role %d", snap.RoleID)
	}
	snap.ID, err = res.LastInsertId()
	return eris.Wrap(err, "sqlite: snapshot insert id")
}

func (s *SQLiteStore) LatestSnapshot(ctx context.Context, roleID int64) (*model.Snapshot, error) {
	var snap model.Snapshot
	var payloadJSON string

	err := s.db.QueryRowContext(ctx,
		`SELECT id, role_id, run_id, payload, salary_upper, salary_lower, percent_fee,
		 hiring_count, recruiter_count, total_interviewing, total_hired, created_at
		 FROM role_snapshots WHERE role_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`,
		roleID,
	).Scan(&snap.ID, &snap.RoleID, &snap.RunID, &payloadJSON, &snap.SalaryUpper, &snap.SalaryLower,
		&snap.PercentFee, &snap.HiringCount, &snap.RecruiterCount, &snap.TotalInterviewing,
		&snap.TotalHired, &snap.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: latest snapshot for role %d", roleID)
	}
	if err := json.Unmarshal([]byte(payloadJSON), &snap.Payload); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal snapshot payload")
	}
	return &snap, nil
}

func (s *SQLiteStore) CreateChangeEvents(ctx context.Context, events []model.ChangeEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin change events tx")
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, ev := range events {
		detectedAt := ev.DetectedAt
		if detectedAt.IsZero() {
			detectedAt = now
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO change_events (role_id, run_id, kind, field, old_value, new_value, detected_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			ev.RoleID, ev.RunID, string(ev.Kind), ev.Field, ev.OldValue, ev.NewValue, detectedAt,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert change event for role %d", ev.RoleID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit change events")
}

func (s *SQLiteStore) ListChangeEvents(ctx context.Context, filter ChangeFilter) ([]model.ChangeEvent, error) {
	query := `SELECT id, role_id, run_id, kind, field, old_value, new_value, detected_at FROM change_events WHERE 1=1`
	var args []any

	if filter.RoleID != 0 {
		query += ` AND role_id = ?`
		args = append(args, filter.RoleID)
	}
	if filter.RunID != "" {
		query += ` AND run_id = ?`
		args = append(args, filter.RunID)
	}
	if filter.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(filter.Kind))
	}
	if filter.Since != nil {
		query += ` AND detected_at >= ?`
		args = append(args, *filter.Since)
	}
	query += ` ORDER BY detected_at DESC, id DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list change events")
	}
	defer rows.Close()

	var events []model.ChangeEvent
	for rows.Next() {
		var ev model.ChangeEvent
		var kind string
		if err := rows.Scan(&ev.ID, &ev.RoleID, &ev.RunID, &kind, &ev.Field, &ev.OldValue, &ev.NewValue, &ev.DetectedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan change event")
		}
		ev.Kind = model.ChangeKind(kind)
		events = append(events, ev)
	}
	return events, eris.Wrap(rows.Err(), "sqlite: list change events iterate")
}

func (s *SQLiteStore) GetCompanyEnrichment(ctx context.Context, companyKey string) (*model.CompanyEnrichment, error) {
	var e model.CompanyEnrichment
	var signalsJSON sql.NullString

	err := s.db.QueryRowContext(ctx,
		`SELECT id, company_key, excitement_score, reasoning, signals, model, context, created_at, updated_at
		 FROM company_enrichments WHERE company_key = ?`,
		companyKey,
	).Scan(&e.ID, &e.CompanyKey, &e.ExcitementScore, &e.Reasoning, &signalsJSON, &e.Model, &e.Context, &e.CreatedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get company enrichment %s", companyKey)
	}
	if signalsJSON.Valid && signalsJSON.String != "" {
		if err := json.Unmarshal([]byte(signalsJSON.String), &e.Signals); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal enrichment signals")
		}
	}
	return &e, nil
}

func (s *SQLiteStore) SaveCompanyEnrichment(ctx context.Context, e *model.CompanyEnrichment) error {
	signalsJSON, err := json.Marshal(e.Signals)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal enrichment signals")
	}
	now := time.Now().UTC()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO company_enrichments (company_key, excitement_score, reasoning, signals, model, context, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (company_key) DO UPDATE SET excitement_score = excluded.excitement_score,
		 reasoning = excluded.reasoning, signals = excluded.signals, model = excluded.model,
		 context = excluded.context, updated_at = excluded.updated_at`,
		e.CompanyKey, e.ExcitementScore, e.Reasoning, string(signalsJSON), e.Model, e.Context, now, now,
	)
	return eris.Wrapf(err, "sqlite: save company enrichment %s", e.CompanyKey)
}

func (s *SQLiteStore) GetRoleEnrichment(ctx context.Context, roleExternalID string) (*model.RoleEnrichment, error) {
	var e model.RoleEnrichment
	var dataJSON string

	err := s.db.QueryRowContext(ctx,
		`SELECT id, role_external_id, data, model, created_at FROM role_enrichments WHERE role_external_id = ?`,
		roleExternalID,
	).Scan(&e.ID, &e.RoleExternalID, &dataJSON, &e.Model, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get role enrichment %s", roleExternalID)
	}

	id, externalID, modelName, createdAt := e.ID, e.RoleExternalID, e.Model, e.CreatedAt
	if err := json.Unmarshal([]byte(dataJSON), &e); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal role enrichment")
	}
	e.ID, e.RoleExternalID, e.Model, e.CreatedAt = id, externalID, modelName, createdAt
	return &e, nil
}

func (s *SQLiteStore) SaveRoleEnrichment(ctx context.Context, e *model.RoleEnrichment) error {
	dataJSON, err := json.Marshal(e)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal role enrichment")
	}
	now := time.Now().UTC()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO role_enrichments (role_external_id, data, model, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (role_external_id) DO UPDATE SET data = excluded.data, model = excluded.model`,
		e.RoleExternalID, string(dataJSON), e.Model, now,
	)
	return eris.Wrapf(err, "sqlite: save role enrichment %s", e.RoleExternalID)
}

func (s *SQLiteStore) RunStats(ctx context.Context) (*RunStats, error) {
	var stats RunStats
	var avgDuration sql.NullFloat64
	var lastRunAt sql.NullTime

	err := s.db.QueryRowContext(ctx,
		`SELECT count(*),
		 coalesce(sum(CASE WHEN status IN ('completed', 'completed_with_errors') THEN 1 ELSE 0 END), 0),
		 coalesce(sum(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0),
		 avg(CASE WHEN completed_at IS NOT NULL THEN duration_seconds END),
		 max(started_at)
		 FROM runs`,
	).Scan(&stats.TotalRuns, &stats.CompletedRuns, &stats.FailedRuns, &avgDuration, &lastRunAt)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: run stats")
	}
	if avgDuration.Valid {
		stats.AvgDurationSecs = avgDuration.Float64
	}
	if lastRunAt.Valid {
		t := lastRunAt.Time
		stats.LastRunAt = &t
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT count(*),
		 coalesce(sum(CASE WHEN lifecycle_status = 'ACTIVE' THEN 1 ELSE 0 END), 0),
		 coalesce(sum(CASE WHEN tier IN ('QUALIFIED', 'MAYBE') THEN 1 ELSE 0 END), 0)
		 FROM roles`,
	).Scan(&stats.TotalRoles, &stats.ActiveRoles, &stats.QualifiedRoles)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: role stats")
	}

	err = s.db.QueryRowContext(ctx, `SELECT count(*) FROM change_events`).Scan(&stats.ChangeEvents)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: change event stats")
	}
	return &stats, nil
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

// nullableString stores an optional JSON blob as NULL rather than "".
func nullableString(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRunLite(row scannable) (*model.Run, error) {
	var r model.Run
	var status string
	var errorsJSON sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(&r.ID, &status, &r.TriggerSource, &r.RolesFound, &r.NewRoles, &r.UpdatedRoles,
		&r.QualifiedRoles, &r.SkippedRoles, &r.ChangedRoles, &errorsJSON, &r.StartedAt,
		&completedAt, &r.DurationSeconds)
	if err != nil {
		return nil, err
	}
	r.Status = model.RunStatus(status)
	if completedAt.Valid {
		t := completedAt.Time
		r.CompletedAt = &t
	}
	if errorsJSON.Valid && errorsJSON.String != "" {
		if err := json.Unmarshal([]byte(errorsJSON.String), &r.Errors); err != nil {
			return nil, eris.Wrap(err, "unmarshal run errors")
		}
	}
	return &r, nil
}

func scanRoleLite(row scannable) (*model.Role, error) {
	var r model.Role
	var tier, status, payloadJSON string
	var posJSON, negJSON, breakdownJSON sql.NullString
	var eng, hh, exc, combined sql.NullFloat64

	err := row.Scan(&r.ID, &r.ExternalID, &payloadJSON, &r.Fingerprint, &tier, &posJSON, &negJSON,
		&eng, &hh, &exc, &combined, &breakdownJSON,
		&status, &r.FirstSeenAt, &r.LastSeenAt, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.Tier = model.Tier(tier)
	r.Status = model.LifecycleStatus(status)
	r.EngineerScore = nullFloatPtr(eng)
	r.HeadhunterScore = nullFloatPtr(hh)
	r.ExcitementScore = nullFloatPtr(exc)
	r.CombinedScore = nullFloatPtr(combined)

	if err := json.Unmarshal([]byte(payloadJSON), &r.Payload); err != nil {
		return nil, eris.Wrap(err, "unmarshal role payload")
	}
	if posJSON.Valid && posJSON.String != "" {
		if err := json.Unmarshal([]byte(posJSON.String), &r.PositiveReasons); err != nil {
			return nil, eris.Wrap(err, "unmarshal positive reasons")
		}
	}
	if negJSON.Valid && negJSON.String != "" {
		if err := json.Unmarshal([]byte(negJSON.String), &r.NegativeReasons); err != nil {
			return nil, eris.Wrap(err, "unmarshal negative reasons")
		}
	}
	if breakdownJSON.Valid && breakdownJSON.String != "" {
		r.ScoreBreakdown = &model.ScoreBreakdown{}
		if err := json.Unmarshal([]byte(breakdownJSON.String), r.ScoreBreakdown); err != nil {
			return nil, eris.Wrap(err, "unmarshal score breakdown")
		}
	}
	return &r, nil
}

func nullFloatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
