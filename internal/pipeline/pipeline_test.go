package pipeline

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/rolescout/internal/enrich"
	"github.com/sells-group/rolescout/internal/fetcher"
	"github.com/sells-group/rolescout/internal/model"
	"github.com/sells-group/rolescout/internal/registry"
	"github.com/sells-group/rolescout/internal/store"
)

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

// stubSource serves canned payloads.
type stubSource struct {
	roles       []model.Payload
	fetchErr    error
	details     map[string]*model.Payload
	detailErr   error
	detailCalls int
}

func (s *stubSource) FetchRoles(context.Context) ([]model.Payload, error) {
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	return s.roles, nil
}

func (s *stubSource) FetchRoleDetail(_ context.Context, externalID string) (*model.Payload, error) {
	s.detailCalls++
	if s.detailErr != nil {
		return nil, s.detailErr
	}
	return s.details[externalID], nil
}

// stubAssessor fabricates enrichment outcomes without an API.
type stubAssessor struct {
	companyCalls int
	companyScore float64
}

func (a *stubAssessor) BeginRun() {}

func (a *stubAssessor) CompanyExcitement(context.Context, string, string) enrich.Outcome {
	a.companyCalls++
	return enrich.Outcome{Status: enrich.StatusFresh, Score: a.companyScore}
}

func (a *stubAssessor) RoleExtraction(_ context.Context, p model.Payload) enrich.Outcome {
	return enrich.Outcome{
		Status:     enrich.StatusDegraded,
		Extraction: &model.RoleEnrichment{RoleExternalID: p.ID},
	}
}

func newTestPipeline(t *testing.T, src fetcher.Source) (*Pipeline, store.Store) {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "pipeline.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return New(s, src, &stubAssessor{companyScore: 0.8}, registry.Default(), Options{}), s
}

// qualifiedPayload passes every hard filter with three quality signals.
func qualifiedPayload(id string) model.Payload {
	return model.Payload{
		ID:               id,
		Name:             "Senior Backend Engineer",
		Status:           "ACTIVE",
		WorkplaceType:    "remote",
		RoleTypes:        []string{"backend_engineer"},
		SalaryUpperBound: floatPtr(260000),
		PercentFee:       floatPtr(18),
		Investors:        []string{"Sequoia Capital"},
		ManagerRating:    floatPtr(4.5),
		InterviewStages:  intPtr(4),
		Company: &model.Company{
			Name:          "Acme Robotics",
			FundingAmount: "$40M",
			Size:          intPtr(80),
		},
	}
}

func TestRunHappyPath(t *testing.T) {
	src := &stubSource{roles: []model.Payload{
		qualifiedPayload("role-1"),
		{ID: "role-2", Status: "CLOSED"},
	}}
	p, s := newTestPipeline(t, src)
	ctx := context.Background()

	run, err := p.Run(ctx, "manual")
	require.NoError(t, err)
	assert.Equal(t, model.RunCompleted, run.Status)
	assert.Equal(t, 2, run.RolesFound)
	assert.Equal(t, 2, run.NewRoles)
	assert.Equal(t, 1, run.QualifiedRoles)
	assert.Empty(t, run.Errors)
	require.NotNil(t, run.CompletedAt)

	role, err := s.GetRoleByExternalID(ctx, "role-1")
	require.NoError(t, err)
	require.NotNil(t, role)
	assert.Equal(t, model.TierQualified, role.Tier)
	assert.Equal(t, model.LifecycleActive, role.Status)
	assert.NotEmpty(t, role.Fingerprint)
	require.NotNil(t, role.CombinedScore)
	assert.Greater(t, *role.CombinedScore, 0.0)

	snap, err := s.LatestSnapshot(ctx, role.ID)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, run.ID, snap.RunID)

	skip, err := s.GetRoleByExternalID(ctx, "role-2")
	require.NoError(t, err)
	require.NotNil(t, skip)
	assert.Equal(t, model.TierSkip, skip.Tier)
}

func TestRunFetchFailureIsFatal(t *testing.T) {
	src := &stubSource{fetchErr: eris.New("feed unreachable")}
	p, s := newTestPipeline(t, src)
	ctx := context.Background()

	run, err := p.Run(ctx, "scheduled")
	require.Error(t, err)
	require.NotNil(t, run)
	assert.Equal(t, model.RunFailed, run.Status)
	require.Len(t, run.Errors, 1)
	assert.Contains(t, run.Errors[0], "Fetch failed")

	stored, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunFailed, stored.Status)
}

func TestRunMissingExternalIDRecordsError(t *testing.T) {
	src := &stubSource{roles: []model.Payload{
		{Name: "no id", Status: "ACTIVE"},
		qualifiedPayload("role-1"),
	}}
	p, _ := newTestPipeline(t, src)

	run, err := p.Run(context.Background(), "manual")
	require.NoError(t, err)
	assert.Equal(t, model.RunCompletedWithErrors, run.Status)
	require.Len(t, run.Errors, 1)
	assert.Contains(t, run.Errors[0], "Role 0 missing paraform_id")
	assert.Equal(t, 1, run.NewRoles)
}

func TestRunUnchangedRoleSkipsDetailFetchOnly(t *testing.T) {
	src := &stubSource{roles: []model.Payload{qualifiedPayload("role-1")}}
	p, s := newTestPipeline(t, src)
	ctx := context.Background()

	first, err := p.Run(ctx, "manual")
	require.NoError(t, err)
	assert.Equal(t, 1, first.NewRoles)
	assert.Equal(t, 1, src.detailCalls)

	second, err := p.Run(ctx, "manual")
	require.NoError(t, err)
	assert.Equal(t, 0, second.NewRoles)
	assert.Equal(t, 1, second.UpdatedRoles)
	assert.Equal(t, 1, second.SkippedRoles)

	// No second detail fetch, but the role is still qualified and scored.
	assert.Equal(t, 1, src.detailCalls)

	role, err := s.GetRoleByExternalID(ctx, "role-1")
	require.NoError(t, err)
	assert.Equal(t, model.TierQualified, role.Tier)
	require.NotNil(t, role.CombinedScore)

	events, err := s.ListChangeEvents(ctx, store.ChangeFilter{RunID: second.ID})
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestRunSnapshotPerObservation(t *testing.T) {
	src := &stubSource{roles: []model.Payload{qualifiedPayload("role-1")}}
	p, s := newTestPipeline(t, src)
	ctx := context.Background()

	_, err := p.Run(ctx, "manual")
	require.NoError(t, err)

	second, err := p.Run(ctx, "manual")
	require.NoError(t, err)
	assert.Equal(t, 1, second.SkippedRoles)

	role, err := s.GetRoleByExternalID(ctx, "role-1")
	require.NoError(t, err)

	// Every observation gets a snapshot, even with an unchanged fingerprint.
	snap, err := s.LatestSnapshot(ctx, role.ID)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, second.ID, snap.RunID)
}

func TestRunUnchangedFingerprintStillRefreshesVolatileFields(t *testing.T) {
	src := &stubSource{roles: []model.Payload{qualifiedPayload("role-1")}}
	p, s := newTestPipeline(t, src)
	ctx := context.Background()

	_, err := p.Run(ctx, "manual")
	require.NoError(t, err)

	// Interview traffic moves without touching the fingerprinted subset.
	busier := qualifiedPayload("role-1")
	busier.TotalInterviewing = intPtr(7)
	src.roles = []model.Payload{busier}

	run, err := p.Run(ctx, "manual")
	require.NoError(t, err)
	assert.Equal(t, 1, run.SkippedRoles)
	assert.Equal(t, 1, run.ChangedRoles)

	role, err := s.GetRoleByExternalID(ctx, "role-1")
	require.NoError(t, err)
	require.NotNil(t, role.Payload.TotalInterviewing)
	assert.Equal(t, 7, *role.Payload.TotalInterviewing)

	events, err := s.ListChangeEvents(ctx, store.ChangeFilter{RunID: run.ID, Kind: model.ChangeInterviewIncrease})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "7", events[0].NewValue)
}

func TestRunChangedRoleEmitsEvents(t *testing.T) {
	src := &stubSource{roles: []model.Payload{qualifiedPayload("role-1")}}
	p, s := newTestPipeline(t, src)
	ctx := context.Background()

	_, err := p.Run(ctx, "manual")
	require.NoError(t, err)

	bumped := qualifiedPayload("role-1")
	bumped.SalaryUpperBound = floatPtr(300000)
	src.roles = []model.Payload{bumped}

	run, err := p.Run(ctx, "manual")
	require.NoError(t, err)
	assert.Equal(t, 1, run.UpdatedRoles)
	assert.Equal(t, 1, run.ChangedRoles)

	events, err := s.ListChangeEvents(ctx, store.ChangeFilter{RunID: run.ID, Kind: model.ChangeSalaryIncrease})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "260000", events[0].OldValue)
	assert.Equal(t, "300000", events[0].NewValue)
}

func TestRunDisappearanceAndReappearance(t *testing.T) {
	src := &stubSource{roles: []model.Payload{qualifiedPayload("role-1")}}
	p, s := newTestPipeline(t, src)
	ctx := context.Background()

	_, err := p.Run(ctx, "manual")
	require.NoError(t, err)

	src.roles = nil
	_, err = p.Run(ctx, "manual")
	require.NoError(t, err)

	role, err := s.GetRoleByExternalID(ctx, "role-1")
	require.NoError(t, err)
	assert.Equal(t, model.LifecycleFilled, role.Status)

	src.roles = []model.Payload{qualifiedPayload("role-1")}
	_, err = p.Run(ctx, "manual")
	require.NoError(t, err)

	role, err = s.GetRoleByExternalID(ctx, "role-1")
	require.NoError(t, err)
	assert.Equal(t, model.LifecycleActive, role.Status)

	events, err := s.ListChangeEvents(ctx, store.ChangeFilter{RoleID: role.ID, Kind: model.ChangeReappeared})
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestRunDetailFetchFailureIsRecoverable(t *testing.T) {
	src := &stubSource{
		roles:     []model.Payload{qualifiedPayload("role-1")},
		detailErr: eris.New("detail endpoint down"),
	}
	p, s := newTestPipeline(t, src)

	run, err := p.Run(context.Background(), "manual")
	require.NoError(t, err)
	assert.Equal(t, model.RunCompleted, run.Status)
	assert.Equal(t, 1, run.NewRoles)
	assert.Equal(t, 1, src.detailCalls)

	role, err := s.GetRoleByExternalID(context.Background(), "role-1")
	require.NoError(t, err)
	assert.Equal(t, model.TierQualified, role.Tier)
}

func TestRunDetailUnsupportedIsSilent(t *testing.T) {
	src := &stubSource{
		roles:     []model.Payload{qualifiedPayload("role-1")},
		detailErr: fetcher.ErrDetailUnsupported,
	}
	p, _ := newTestPipeline(t, src)

	run, err := p.Run(context.Background(), "manual")
	require.NoError(t, err)
	assert.Equal(t, model.RunCompleted, run.Status)
	assert.Empty(t, run.Errors)
}

func TestRequalifyAll(t *testing.T) {
	src := &stubSource{roles: []model.Payload{
		qualifiedPayload("role-1"),
		{ID: "role-2", Status: "CLOSED"},
	}}
	p, s := newTestPipeline(t, src)
	ctx := context.Background()

	_, err := p.Run(ctx, "manual")
	require.NoError(t, err)

	stats, err := p.RequalifyAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 0, stats.TierChanged)
	assert.Equal(t, 0, stats.Errors)

	role, err := s.GetRoleByExternalID(ctx, "role-1")
	require.NoError(t, err)
	assert.Equal(t, model.TierQualified, role.Tier)
}
