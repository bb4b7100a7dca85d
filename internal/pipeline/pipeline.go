// Package pipeline orchestrates one ingestion run: fetch the feed, qualify
// and score every role, persist snapshots and change events, and close out
// roles that vanished from the feed.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/rolescout/internal/enrich"
	"github.com/sells-group/rolescout/internal/fetcher"
	"github.com/sells-group/rolescout/internal/fingerprint"
	"github.com/sells-group/rolescout/internal/model"
	"github.com/sells-group/rolescout/internal/qualify"
	"github.com/sells-group/rolescout/internal/registry"
	"github.com/sells-group/rolescout/internal/scorer"
	"github.com/sells-group/rolescout/internal/store"
	"github.com/sells-group/rolescout/internal/temporal"
)

// Assessor is the enrichment surface the pipeline needs. *enrich.Enricher
// implements it.
type Assessor interface {
	BeginRun()
	CompanyExcitement(ctx context.Context, companyName, contextText string) enrich.Outcome
	RoleExtraction(ctx context.Context, p model.Payload) enrich.Outcome
}

// Options tunes pipeline behavior.
type Options struct {
	// RequalifyConcurrency bounds the worker pool used by RequalifyAll.
	RequalifyConcurrency int
}

// Pipeline runs ingestion passes over a source feed.
type Pipeline struct {
	store     store.Store
	source    fetcher.Source
	enricher  Assessor
	tracker   *temporal.Tracker
	qualifier *qualify.Engine
	scorer    *scorer.Scorer
	opts      Options

	// Guards against two in-process runs interleaving.
	runMu sync.Mutex
}

// New creates a pipeline with all dependencies injected.
func New(s store.Store, src fetcher.Source, assessor Assessor, rules *registry.Rules, opts Options) *Pipeline {
	if opts.RequalifyConcurrency <= 0 {
		opts.RequalifyConcurrency = 8
	}
	return &Pipeline{
		store:     s,
		source:    src,
		enricher:  assessor,
		tracker:   temporal.NewTracker(s),
		qualifier: qualify.New(rules),
		scorer:    scorer.New(rules),
		opts:      opts,
	}
}

// detailTiers are the tiers worth a per-role detail fetch and extraction.
func detailWorthy(t model.Tier) bool {
	return t == model.TierQualified || t == model.TierMaybe || t == model.TierLocationUncertain
}

// Run executes one full ingestion pass. A fetch failure is run-fatal; every
// per-record failure is recorded on the run and the loop continues. The run
// row always reaches a terminal status.
func (p *Pipeline) Run(ctx context.Context, trigger string) (*model.Run, error) {
	if !p.runMu.TryLock() {
		return nil, eris.New("pipeline: a run is already in progress")
	}
	defer p.runMu.Unlock()

	run, err := p.store.CreateRun(ctx, trigger)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}
	log := zap.L().With(zap.String("run_id", run.ID))
	log.Info("ingestion run started", zap.String("trigger", trigger))
	start := time.Now()

	finalize := func(status model.RunStatus) {
		now := time.Now().UTC()
		run.Status = status
		run.CompletedAt = &now
		run.DurationSeconds = int(time.Since(start).Seconds())
		if err := p.store.FinalizeRun(ctx, run); err != nil {
			log.Error("failed to finalize run", zap.Error(err))
		}
	}

	p.enricher.BeginRun()

	payloads, err := p.source.FetchRoles(ctx)
	if err != nil {
		run.Errors = append(run.Errors, "Fetch failed: "+err.Error())
		finalize(model.RunFailed)
		return run, eris.Wrap(err, "pipeline: fetch roles")
	}
	run.RolesFound = len(payloads)

	seenIDs := make([]int64, 0, len(payloads))
	for idx, payload := range payloads {
		roleID, recErr := p.processRecord(ctx, run, idx, payload)
		if recErr != nil {
			run.Errors = append(run.Errors, recErr.Error())
			log.Warn("record failed",
				zap.Int("index", idx),
				zap.String("external_id", payload.ID),
				zap.Error(recErr))
		}
		if roleID != 0 {
			seenIDs = append(seenIDs, roleID)
		}
	}

	disappeared, err := p.tracker.MarkDisappeared(ctx, run.ID, seenIDs)
	if err != nil {
		run.Errors = append(run.Errors, "Disappearance sweep failed: "+err.Error())
	}

	status := model.RunCompleted
	if len(run.Errors) > 0 {
		status = model.RunCompletedWithErrors
	}
	finalize(status)

	log.Info("ingestion run finished",
		zap.String("status", string(run.Status)),
		zap.Int("roles_found", run.RolesFound),
		zap.Int("new", run.NewRoles),
		zap.Int("updated", run.UpdatedRoles),
		zap.Int("qualified", run.QualifiedRoles),
		zap.Int("skipped", run.SkippedRoles),
		zap.Int("changed", run.ChangedRoles),
		zap.Int("disappeared", disappeared),
		zap.Int("errors", len(run.Errors)),
		zap.Duration("took", time.Since(start)))
	return run, nil
}

// processRecord handles one feed record end to end. It returns the role id
// when the record maps to a stored role so the disappearance sweep can count
// it as seen, plus any error to record on the run. Panics are recovered so
// one bad record cannot sink the pass.
func (p *Pipeline) processRecord(ctx context.Context, run *model.Run, idx int, payload model.Payload) (roleID int64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("Failed to process role %d: %v", idx, r)
		}
	}()

	externalID := payload.ID
	if externalID == "" {
		return 0, eris.Errorf("Role %d missing paraform_id", idx)
	}

	existing, err := p.store.GetRoleByExternalID(ctx, externalID)
	if err != nil {
		return 0, eris.Wrapf(err, "Failed to process role %d", idx)
	}

	// An unchanged fingerprint skips only the expensive detail fetch and
	// extraction. The record is still requalified, rescored, upserted, and
	// snapshotted: every observation leaves a snapshot for this run.
	changed := existing == nil || fingerprint.Changed(existing.Fingerprint, payload)
	if !changed {
		run.SkippedRoles++
	}

	result := p.qualifier.Evaluate(payload)

	// Promising changed roles earn a detail fetch and free-text extraction
	// before the final verdict. Both are recoverable: the initial payload
	// stands when they fail.
	if changed && detailWorthy(result.Tier) {
		payload = p.enrichPayload(ctx, idx, payload)
		result = p.qualifier.Evaluate(payload)
	}

	scores := p.scoreRecord(ctx, payload, result.Tier)

	role := existing
	if role == nil {
		role = &model.Role{
			ExternalID: externalID,
			Status:     model.LifecycleActive,
		}
	}
	oldPayload := model.Payload{}
	if existing != nil {
		oldPayload = existing.Payload
	}

	role.Payload = payload
	role.Fingerprint = fingerprint.Compute(payload)
	role.Tier = result.Tier
	role.PositiveReasons = result.Positive
	role.NegativeReasons = result.Negative
	role.EngineerScore = &scores.Engineer
	role.HeadhunterScore = &scores.Headhunter
	role.ExcitementScore = &scores.Excitement
	role.CombinedScore = &scores.Combined
	role.ScoreBreakdown = &scores.Breakdown

	if existing == nil {
		if err := p.store.CreateRole(ctx, role); err != nil {
			return 0, eris.Wrapf(err, "Failed to process role %d", idx)
		}
		run.NewRoles++
	} else {
		events, err := p.tracker.DetectChanges(ctx, oldPayload, payload, role.ID, run.ID)
		if err != nil {
			return role.ID, eris.Wrapf(err, "Failed to process role %d", idx)
		}
		if len(events) > 0 {
			run.ChangedRoles++
		}
		if err := p.store.UpdateRole(ctx, role); err != nil {
			return role.ID, eris.Wrapf(err, "Failed to process role %d", idx)
		}
		run.UpdatedRoles++
		if _, err := p.tracker.MarkReappeared(ctx, role, run.ID); err != nil {
			return role.ID, eris.Wrapf(err, "Failed to process role %d", idx)
		}
	}

	if err := p.tracker.CreateSnapshot(ctx, role, run.ID); err != nil {
		return role.ID, eris.Wrapf(err, "Failed to process role %d", idx)
	}

	if result.Tier.Qualified() {
		run.QualifiedRoles++
	}
	return role.ID, nil
}

// enrichPayload fetches the role's detail record and merges the free-text
// extraction in. Failures log and fall back to the payload as fetched.
func (p *Pipeline) enrichPayload(ctx context.Context, idx int, payload model.Payload) model.Payload {
	detail, err := p.source.FetchRoleDetail(ctx, payload.ID)
	switch {
	case eris.Is(err, fetcher.ErrDetailUnsupported):
		// Dump-style sources have no detail endpoint.
	case err != nil:
		zap.L().Warn("detail fetch failed",
			zap.Int("index", idx),
			zap.String("external_id", payload.ID),
			zap.Error(err))
	case detail != nil:
		payload = *detail
	}

	out := p.enricher.RoleExtraction(ctx, payload)
	if out.Extraction != nil {
		payload = payload.MergeEnrichment(out.Extraction.Investors, out.Extraction.Overlay())
	}
	return payload
}

// scoreRecord computes the full score set, consulting the company assessor
// only when the deterministic excitement lands in the ambiguous band.
func (p *Pipeline) scoreRecord(ctx context.Context, payload model.Payload, tier model.Tier) scorer.Scores {
	det, _ := p.scorer.ExcitementDeterministic(payload)

	var override *float64
	if enrich.ShouldEnrich(det, tier) {
		out := p.enricher.CompanyExcitement(ctx, payload.CompanyName(), companyContext(payload))
		override = &out.Score
	}
	return p.scorer.Calculate(payload, override)
}

// companyContext assembles the known company facts handed to the assessor.
func companyContext(p model.Payload) string {
	var parts []string
	if amt := p.FundingAmount(); amt != "" {
		parts = append(parts, "Funding: "+amt)
	}
	if stage := p.FundingStage(); stage != "" {
		parts = append(parts, "Stage: "+stage)
	}
	if len(p.Investors) > 0 {
		parts = append(parts, "Investors: "+strings.Join(p.Investors, ", "))
	}
	if inds := p.Industries(); len(inds) > 0 {
		parts = append(parts, "Industries: "+strings.Join(inds, ", "))
	}
	if size := p.CompanySize(); size != nil {
		parts = append(parts, fmt.Sprintf("Headcount: %d", *size))
	}
	if year := p.FoundingYear(); year != nil {
		parts = append(parts, fmt.Sprintf("Founded: %d", *year))
	}
	return strings.Join(parts, "\n")
}
