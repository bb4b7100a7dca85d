package enrich

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/rolescout/internal/model"
	"github.com/sells-group/rolescout/internal/store"
	"github.com/sells-group/rolescout/pkg/anthropic"
)

// stubClient returns canned responses and counts calls.
type stubClient struct {
	calls int
	text  string
	err   error
}

func (c *stubClient) CreateMessage(_ context.Context, _ anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return &anthropic.MessageResponse{
		ID:      "msg_test",
		Model:   "claude-haiku-4-5-20251001",
		Content: []anthropic.ContentBlock{{Type: "text", Text: c.text}},
	}, nil
}

func newTestEnricher(t *testing.T, client anthropic.Client) (*Enricher, store.Store) {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "enrich.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return NewEnricher(s, client, Options{}), s
}

func TestShouldEnrich(t *testing.T) {
	cases := []struct {
		name  string
		score float64
		tier  model.Tier
		want  bool
	}{
		{"qualified mid band", 0.60, model.TierQualified, true},
		{"maybe lower edge", 0.50, model.TierMaybe, true},
		{"qualified upper edge", 0.70, model.TierQualified, true},
		{"too hot", 0.71, model.TierQualified, false},
		{"too cold", 0.49, model.TierMaybe, false},
		{"skip tier", 0.60, model.TierSkip, false},
		{"location uncertain", 0.60, model.TierLocationUncertain, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ShouldEnrich(tc.score, tc.tier))
		})
	}
}

func TestCompanyExcitementFreshPersists(t *testing.T) {
	client := &stubClient{text: "```json\n{\"score\": 0.82, \"reasoning\": \"top-tier backing\", \"signals\": [\"Sequoia led Series B\"]}\n```"}
	e, s := newTestEnricher(t, client)
	ctx := context.Background()

	out := e.CompanyExcitement(ctx, "  Acme Robotics ", "raised $40M Series B")
	assert.Equal(t, StatusFresh, out.Status)
	assert.InDelta(t, 0.82, out.Score, 1e-9)
	assert.Equal(t, "top-tier backing", out.Reasoning)
	assert.Equal(t, 1, client.calls)

	cached, err := s.GetCompanyEnrichment(ctx, "acme robotics")
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.InDelta(t, 0.82, cached.ExcitementScore, 1e-9)
	assert.Equal(t, []string{"Sequoia led Series B"}, cached.Signals)
}

func TestCompanyExcitementCacheHit(t *testing.T) {
	client := &stubClient{err: eris.New("should not be called")}
	e, s := newTestEnricher(t, client)
	ctx := context.Background()

	require.NoError(t, s.SaveCompanyEnrichment(ctx, &model.CompanyEnrichment{
		CompanyKey:      "acme robotics",
		ExcitementScore: 0.74,
		Reasoning:       "prior verdict",
		Model:           "claude-haiku-4-5-20251001",
	}))

	out := e.CompanyExcitement(ctx, "Acme Robotics", "")
	assert.Equal(t, StatusCached, out.Status)
	assert.InDelta(t, 0.74, out.Score, 1e-9)
	assert.Equal(t, 0, client.calls)
}

func TestCompanyExcitementDegradedOnError(t *testing.T) {
	client := &stubClient{err: eris.New("api: overloaded")}
	e, _ := newTestEnricher(t, client)

	out := e.CompanyExcitement(context.Background(), "Acme", "")
	assert.Equal(t, StatusDegraded, out.Status)
	assert.InDelta(t, 0.5, out.Score, 1e-9)
	assert.Contains(t, out.Reasoning, "LLM enrichment failed: ")
	assert.Equal(t, []string{"Enrichment error - using default score"}, out.Signals)
	assert.Error(t, out.Err)
}

func TestCompanyExcitementOneAttemptPerRun(t *testing.T) {
	client := &stubClient{err: eris.New("api: overloaded")}
	e, _ := newTestEnricher(t, client)
	ctx := context.Background()

	first := e.CompanyExcitement(ctx, "Acme", "")
	second := e.CompanyExcitement(ctx, "Acme", "")
	assert.Equal(t, StatusDegraded, first.Status)
	assert.Equal(t, StatusDegraded, second.Status)
	assert.Equal(t, 1, client.calls)

	e.BeginRun()
	e.CompanyExcitement(ctx, "Acme", "")
	assert.Equal(t, 2, client.calls)
}

func TestCompanyExcitementClampsScore(t *testing.T) {
	client := &stubClient{text: `{"score": 1.7, "reasoning": "over-eager", "signals": []}`}
	e, _ := newTestEnricher(t, client)

	out := e.CompanyExcitement(context.Background(), "Acme", "")
	assert.Equal(t, StatusFresh, out.Status)
	assert.Equal(t, 1.0, out.Score)
}

func TestCompanyExcitementEmptyName(t *testing.T) {
	client := &stubClient{}
	e, _ := newTestEnricher(t, client)

	out := e.CompanyExcitement(context.Background(), "   ", "")
	assert.Equal(t, StatusDegraded, out.Status)
	assert.Equal(t, 0, client.calls)
}

func TestRoleExtractionFreshThenCached(t *testing.T) {
	client := &stubClient{text: `{
		"investors": ["Sequoia Capital"],
		"funding_stage": "SERIES_B",
		"funding_amount": "$40M",
		"positive_signals": ["fast interview loop"],
		"extracted_location": "San Francisco, CA",
		"location_confidence": "high"
	}`}
	e, s := newTestEnricher(t, client)
	ctx := context.Background()

	p := model.Payload{
		ID:            "role-9",
		CompanyTip:    "<p>Backed by <b>Sequoia Capital</b>, $40M Series B.</p>",
		SellingPoints: "Fast loop. SF office.",
	}

	out := e.RoleExtraction(ctx, p)
	require.Equal(t, StatusFresh, out.Status)
	require.NotNil(t, out.Extraction)
	assert.Equal(t, []string{"Sequoia Capital"}, out.Extraction.Investors)
	assert.Equal(t, "SERIES_B", out.Extraction.FundingStage)
	assert.Equal(t, "San Francisco, CA", out.Extraction.ExtractedLocation)
	assert.Equal(t, "role-9", out.Extraction.RoleExternalID)
	assert.Contains(t, out.Extraction.SourceText, "Backed by Sequoia Capital")
	assert.Equal(t, 1, client.calls)

	again := e.RoleExtraction(ctx, p)
	assert.Equal(t, StatusCached, again.Status)
	assert.Equal(t, 1, client.calls)

	stored, err := s.GetRoleEnrichment(ctx, "role-9")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "SERIES_B", stored.FundingStage)
}

func TestRoleExtractionNoSourceText(t *testing.T) {
	client := &stubClient{}
	e, _ := newTestEnricher(t, client)

	out := e.RoleExtraction(context.Background(), model.Payload{ID: "role-1"})
	assert.Equal(t, StatusDegraded, out.Status)
	require.NotNil(t, out.Extraction)
	assert.Empty(t, out.Extraction.Investors)
	assert.Equal(t, 0, client.calls)
}

func TestRoleExtractionDegradedKeepsEmptyExtraction(t *testing.T) {
	client := &stubClient{err: eris.New("api: timeout")}
	e, _ := newTestEnricher(t, client)

	out := e.RoleExtraction(context.Background(), model.Payload{
		ID:         "role-2",
		CompanyTip: "Great team.",
	})
	assert.Equal(t, StatusDegraded, out.Status)
	require.NotNil(t, out.Extraction)
	assert.Equal(t, "role-2", out.Extraction.RoleExternalID)
	assert.Empty(t, out.Extraction.FundingStage)
}

func TestBuildSourceText(t *testing.T) {
	p := model.Payload{
		CompanyTip:    "<div>Series&nbsp;B <a href=\"x\">startup</a></div>",
		SellingPoints: "  Remote-first.\n\nGreat comp.  ",
	}
	got := buildSourceText(p)
	assert.Equal(t, "Series&nbsp;B startup\n\nRemote-first. Great comp.", got)

	assert.Equal(t, "", buildSourceText(model.Payload{}))
	assert.Equal(t, "only tip", buildSourceText(model.Payload{CompanyTip: "<p>only tip</p>"}))
}

func TestCleanJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, cleanJSON("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, cleanJSON("Sure, here you go: {\"a\":1} Hope that helps!"))
	assert.Equal(t, `{"a":1}`, cleanJSON(`{"a":1}`))
}
