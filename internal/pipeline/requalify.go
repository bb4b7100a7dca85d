package pipeline

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/rolescout/internal/enrich"
	"github.com/sells-group/rolescout/internal/model"
	"github.com/sells-group/rolescout/internal/store"
)

const requalifyPageSize = 500

// RequalifyStats summarizes one requalification sweep.
type RequalifyStats struct {
	Total       int `json:"total"`
	TierChanged int `json:"tier_changed"`
	Errors      int `json:"errors"`
}

// RequalifyAll re-runs qualification and scoring over every stored role from
// its persisted payload. No fetching, no assessor calls, no temporal writes:
// cached company verdicts are honored, everything else stays deterministic.
func (p *Pipeline) RequalifyAll(ctx context.Context) (RequalifyStats, error) {
	var (
		mu    sync.Mutex
		stats RequalifyStats
	)

	for offset := 0; ; offset += requalifyPageSize {
		roles, err := p.store.ListRoles(ctx, store.RoleFilter{
			Limit:  requalifyPageSize,
			Offset: offset,
		})
		if err != nil {
			return stats, eris.Wrap(err, "pipeline: requalify list roles")
		}
		if len(roles) == 0 {
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(p.opts.RequalifyConcurrency)
		for i := range roles {
			role := roles[i]
			g.Go(func() error {
				changed, err := p.requalifyRole(gctx, &role)
				mu.Lock()
				defer mu.Unlock()
				stats.Total++
				if err != nil {
					stats.Errors++
					zap.L().Warn("requalify failed",
						zap.String("external_id", role.ExternalID),
						zap.Error(err))
					return nil
				}
				if changed {
					stats.TierChanged++
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return stats, eris.Wrap(err, "pipeline: requalify")
		}

		if len(roles) < requalifyPageSize {
			break
		}
	}

	zap.L().Info("requalification sweep finished",
		zap.Int("total", stats.Total),
		zap.Int("tier_changed", stats.TierChanged),
		zap.Int("errors", stats.Errors))
	return stats, nil
}

// requalifyRole recomputes one role's tier and scores in place. Reports
// whether the tier moved.
func (p *Pipeline) requalifyRole(ctx context.Context, role *model.Role) (bool, error) {
	payload := role.Payload

	// Stored extractions still apply; overlay them before evaluating.
	if extraction, err := p.store.GetRoleEnrichment(ctx, role.ExternalID); err == nil && extraction != nil {
		payload = payload.MergeEnrichment(extraction.Investors, extraction.Overlay())
	}

	result := p.qualifier.Evaluate(payload)

	det, _ := p.scorer.ExcitementDeterministic(payload)
	var override *float64
	if enrich.ShouldEnrich(det, result.Tier) {
		cached, err := p.store.GetCompanyEnrichment(ctx, model.NormalizeCompanyKey(payload.CompanyName()))
		if err == nil && cached != nil {
			override = &cached.ExcitementScore
		}
	}
	scores := p.scorer.Calculate(payload, override)

	tierChanged := role.Tier != result.Tier

	role.Payload = payload
	role.Tier = result.Tier
	role.PositiveReasons = result.Positive
	role.NegativeReasons = result.Negative
	role.EngineerScore = &scores.Engineer
	role.HeadhunterScore = &scores.Headhunter
	role.ExcitementScore = &scores.Excitement
	role.CombinedScore = &scores.Combined
	role.ScoreBreakdown = &scores.Breakdown

	if err := p.store.UpdateRole(ctx, role); err != nil {
		return false, err
	}
	return tierChanged, nil
}
