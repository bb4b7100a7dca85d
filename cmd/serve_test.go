package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/rolescout/internal/model"
	"github.com/sells-group/rolescout/internal/store"
)

func newServeTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "serve.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func seedServeRole(t *testing.T, s store.Store, externalID string, tier model.Tier) *model.Role {
	t.Helper()
	score := 0.75
	role := &model.Role{
		ExternalID: externalID,
		Payload: model.Payload{
			ID:   externalID,
			Name: "Backend Engineer",
		},
		Tier:          tier,
		CombinedScore: &score,
		Status:        model.LifecycleActive,
		LastSeenAt:    time.Now().UTC(),
	}
	require.NoError(t, s.CreateRole(context.Background(), role))
	return role
}

func doGet(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	s := newServeTestStore(t)
	h := newAPIRouter(s, 24)

	rec := doGet(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestListRuns(t *testing.T) {
	s := newServeTestStore(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, "manual")
	require.NoError(t, err)

	h := newAPIRouter(s, 24)
	rec := doGet(t, h, "/api/runs")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Runs []model.Run `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Runs, 1)
	assert.Equal(t, run.ID, body.Runs[0].ID)
}

func TestGetRunNotFound(t *testing.T) {
	s := newServeTestStore(t)
	h := newAPIRouter(s, 24)

	rec := doGet(t, h, "/api/runs/does-not-exist")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListRolesTierFilter(t *testing.T) {
	s := newServeTestStore(t)
	seedServeRole(t, s, "role-1", model.TierQualified)
	seedServeRole(t, s, "role-2", model.TierSkip)

	h := newAPIRouter(s, 24)
	rec := doGet(t, h, "/api/roles?tier=QUALIFIED")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Roles []model.Role `json:"roles"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Roles, 1)
	assert.Equal(t, "role-1", body.Roles[0].ExternalID)
}

func TestListRolesRejectsUnknownTier(t *testing.T) {
	s := newServeTestStore(t)
	h := newAPIRouter(s, 24)

	rec := doGet(t, h, "/api/roles?tier=AWESOME")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetRoleByExternalID(t *testing.T) {
	s := newServeTestStore(t)
	seedServeRole(t, s, "role-1", model.TierQualified)

	h := newAPIRouter(s, 24)

	rec := doGet(t, h, "/api/roles/role-1")
	require.Equal(t, http.StatusOK, rec.Code)
	var role model.Role
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &role))
	assert.Equal(t, "role-1", role.ExternalID)

	rec = doGet(t, h, "/api/roles/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRoleChanges(t *testing.T) {
	s := newServeTestStore(t)
	ctx := context.Background()
	role := seedServeRole(t, s, "role-1", model.TierQualified)

	run, err := s.CreateRun(ctx, "manual")
	require.NoError(t, err)
	require.NoError(t, s.CreateChangeEvents(ctx, []model.ChangeEvent{{
		RoleID:     role.ID,
		RunID:      run.ID,
		Kind:       model.ChangeSalaryIncrease,
		Field:      "salaryUpperBound",
		OldValue:   "200000",
		NewValue:   "225000",
		DetectedAt: time.Now().UTC(),
	}}))

	h := newAPIRouter(s, 24)
	rec := doGet(t, h, "/api/roles/role-1/changes")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Changes []model.ChangeEvent `json:"changes"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Changes, 1)
	assert.Equal(t, model.ChangeSalaryIncrease, body.Changes[0].Kind)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newServeTestStore(t)
	seedServeRole(t, s, "role-1", model.TierQualified)

	h := newAPIRouter(s, 24)
	rec := doGet(t, h, "/api/metrics")
	require.Equal(t, http.StatusOK, rec.Code)

	var snap map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.EqualValues(t, 1, snap["total_roles"])
}

func TestQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/roles?limit=25&offset=-3", nil)
	assert.Equal(t, 25, queryInt(req, "limit", 100))
	assert.Equal(t, 0, queryInt(req, "offset", 0))
	assert.Equal(t, 100, queryInt(req, "missing", 100))
}
