// Package enrich runs LLM enrichment of companies and role free text, with
// the store as a persistent cache so each company and role is assessed once.
package enrich

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/rolescout/internal/model"
	"github.com/sells-group/rolescout/internal/store"
	"github.com/sells-group/rolescout/pkg/anthropic"
)

// Status classifies where an enrichment outcome came from.
type Status string

const (
	StatusFresh    Status = "fresh"    // assessor called, result persisted
	StatusCached   Status = "cached"   // served from the store
	StatusDegraded Status = "degraded" // assessor unavailable, neutral fallback
)

// Outcome is the result of one enrichment call. CompanyExcitement fills the
// score fields; RoleExtraction fills Extraction. Err is set only on degraded
// outcomes that had an underlying failure.
type Outcome struct {
	Status     Status
	Score      float64
	Reasoning  string
	Signals    []string
	Extraction *model.RoleEnrichment
	Err        error
}

// ShouldEnrich gates assessor calls to the ambiguous middle band: roles whose
// deterministic excitement landed between 0.50 and 0.70 in a surfaced tier.
// Anything clearly hot or clearly cold keeps its deterministic score.
func ShouldEnrich(score float64, tier model.Tier) bool {
	if tier != model.TierQualified && tier != model.TierMaybe {
		return false
	}
	return score >= 0.50 && score <= 0.70
}

// Options configures the enricher.
type Options struct {
	Model       string
	Timeout     time.Duration
	MaxTokens   int64
	Temperature float64
}

// Enricher issues assessor calls through the Anthropic client and caches
// verdicts in the store. One attempt per key per run: a key that failed is
// not retried until the next run.
type Enricher struct {
	store  store.Store
	client anthropic.Client
	opts   Options

	mu        sync.Mutex
	attempted map[string]struct{}
}

// NewEnricher creates an enricher over the given store and client.
func NewEnricher(s store.Store, client anthropic.Client, opts Options) *Enricher {
	if opts.Model == "" {
		opts.Model = "claude-haiku-4-5-20251001"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1024
	}
	return &Enricher{
		store:     s,
		client:    client,
		opts:      opts,
		attempted: make(map[string]struct{}),
	}
}

// BeginRun clears the in-run attempt set. The pipeline calls it at the start
// of every run so a company that failed last run gets a fresh attempt.
func (e *Enricher) BeginRun() {
	e.mu.Lock()
	e.attempted = make(map[string]struct{})
	e.mu.Unlock()
}

// markAttempted records the key and reports whether it had been tried already
// this run.
func (e *Enricher) markAttempted(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.attempted[key]; ok {
		return true
	}
	e.attempted[key] = struct{}{}
	return false
}

// CompanyExcitement returns the assessor's excitement verdict for a company.
// The store is checked first; on a miss the assessor is called once under the
// configured timeout. Failures produce a neutral degraded outcome instead of
// an error so scoring always has a value to work with.
func (e *Enricher) CompanyExcitement(ctx context.Context, companyName, contextText string) Outcome {
	key := model.NormalizeCompanyKey(companyName)
	if key == "" {
		return degraded(nil, "no company name to assess")
	}

	cached, err := e.store.GetCompanyEnrichment(ctx, key)
	if err != nil {
		return degraded(err, "enrichment cache lookup failed")
	}
	if cached != nil {
		return Outcome{
			Status:    StatusCached,
			Score:     cached.ExcitementScore,
			Reasoning: cached.Reasoning,
			Signals:   cached.Signals,
		}
	}

	if e.markAttempted("company:" + key) {
		return degraded(nil, "enrichment already attempted this run")
	}

	callCtx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	resp, err := e.client.CreateMessage(callCtx, anthropic.MessageRequest{
		Model:       e.opts.Model,
		MaxTokens:   e.opts.MaxTokens,
		System:      []anthropic.SystemBlock{{Text: companySystemPrompt}},
		Messages:    []anthropic.Message{{Role: "user", Content: buildCompanyPrompt(companyName, contextText)}},
		Temperature: optTemperature(e.opts.Temperature),
	})
	if err != nil {
		zap.L().Warn("company enrichment failed",
			zap.String("company", key), zap.Error(err))
		return degraded(err, "LLM enrichment failed: "+truncate(err.Error(), 100))
	}
	resp.Usage.LogCost(e.opts.Model, "company_excitement")

	var verdict struct {
		Score     float64  `json:"score"`
		Reasoning string   `json:"reasoning"`
		Signals   []string `json:"signals"`
	}
	if err := json.Unmarshal([]byte(cleanJSON(resp.Text())), &verdict); err != nil {
		zap.L().Warn("company enrichment returned malformed JSON",
			zap.String("company", key), zap.Error(err))
		return degraded(err, "LLM enrichment failed: "+truncate(err.Error(), 100))
	}
	verdict.Score = clamp01(verdict.Score)

	saved := &model.CompanyEnrichment{
		CompanyKey:      key,
		ExcitementScore: verdict.Score,
		Reasoning:       verdict.Reasoning,
		Signals:         verdict.Signals,
		Model:           e.opts.Model,
		Context:         contextText,
	}
	if err := e.store.SaveCompanyEnrichment(ctx, saved); err != nil {
		zap.L().Warn("failed to cache company enrichment",
			zap.String("company", key), zap.Error(err))
	}

	return Outcome{
		Status:    StatusFresh,
		Score:     verdict.Score,
		Reasoning: verdict.Reasoning,
		Signals:   verdict.Signals,
	}
}

// RoleExtraction pulls structured facts out of a role's free-text fields.
// Results are cached by external id; a role with no free text degrades to an
// empty extraction without an assessor call.
func (e *Enricher) RoleExtraction(ctx context.Context, p model.Payload) Outcome {
	externalID := p.ID
	if externalID == "" {
		return degraded(nil, "role has no external id")
	}

	cached, err := e.store.GetRoleEnrichment(ctx, externalID)
	if err != nil {
		return degraded(err, "enrichment cache lookup failed")
	}
	if cached != nil {
		return Outcome{Status: StatusCached, Extraction: cached}
	}

	sourceText := buildSourceText(p)
	if sourceText == "" {
		return Outcome{
			Status:     StatusDegraded,
			Reasoning:  "no free text to extract from",
			Extraction: &model.RoleEnrichment{RoleExternalID: externalID, Model: e.opts.Model},
		}
	}

	if e.markAttempted("role:" + externalID) {
		return degraded(nil, "enrichment already attempted this run")
	}

	callCtx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	resp, err := e.client.CreateMessage(callCtx, anthropic.MessageRequest{
		Model:       e.opts.Model,
		MaxTokens:   e.opts.MaxTokens,
		System:      []anthropic.SystemBlock{{Text: extractionSystemPrompt}},
		Messages:    []anthropic.Message{{Role: "user", Content: buildExtractionPrompt(p.CompanyName(), sourceText)}},
		Temperature: optTemperature(e.opts.Temperature),
	})
	if err != nil {
		zap.L().Warn("role extraction failed",
			zap.String("role", externalID), zap.Error(err))
		out := degraded(err, "LLM enrichment failed: "+truncate(err.Error(), 100))
		out.Extraction = &model.RoleEnrichment{RoleExternalID: externalID, Model: e.opts.Model}
		return out
	}
	resp.Usage.LogCost(e.opts.Model, "role_extraction")

	extraction := &model.RoleEnrichment{RoleExternalID: externalID, Model: e.opts.Model}
	if err := json.Unmarshal([]byte(cleanJSON(resp.Text())), extraction); err != nil {
		zap.L().Warn("role extraction returned malformed JSON",
			zap.String("role", externalID), zap.Error(err))
		out := degraded(err, "LLM enrichment failed: "+truncate(err.Error(), 100))
		out.Extraction = &model.RoleEnrichment{RoleExternalID: externalID, Model: e.opts.Model}
		return out
	}
	// Unmarshal may have clobbered the identity fields with prompt output.
	extraction.RoleExternalID = externalID
	extraction.Model = e.opts.Model
	extraction.SourceText = sourceText

	if err := e.store.SaveRoleEnrichment(ctx, extraction); err != nil {
		zap.L().Warn("failed to cache role extraction",
			zap.String("role", externalID), zap.Error(err))
	}

	return Outcome{Status: StatusFresh, Extraction: extraction}
}

func degraded(err error, reasoning string) Outcome {
	out := Outcome{
		Status:    StatusDegraded,
		Score:     0.5,
		Reasoning: reasoning,
		Signals:   []string{"Enrichment error - using default score"},
		Err:       err,
	}
	if err != nil {
		out.Err = eris.Wrap(err, "enrich")
	}
	return out
}

func optTemperature(t float64) *float64 {
	if t <= 0 {
		return nil
	}
	return &t
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
