// Package scorer computes the engineer, headhunter, excitement, and combined
// scores for a role. Every function is pure and total: missing inputs fall
// back to documented defaults and never produce an error or a value outside
// [0, 1].
package scorer

import (
	"math"

	"github.com/sells-group/rolescout/internal/model"
	"github.com/sells-group/rolescout/internal/registry"
)

// Result is one scored dimension with its component breakdown and the
// top signals collected on the way.
type Result struct {
	Score     float64
	Breakdown map[string]float64
	Signals   []string
}

// Scores is the full scoring output persisted on a role.
type Scores struct {
	Engineer   float64
	Headhunter float64
	Excitement float64
	Combined   float64
	Breakdown  model.ScoreBreakdown
}

// Scorer evaluates payloads against the rule tables.
type Scorer struct {
	rules *registry.Rules
}

// New returns a Scorer bound to the given rule tables.
func New(rules *registry.Rules) *Scorer {
	return &Scorer{rules: rules}
}

// Calculate produces all four scores. When enrichment is non-nil it replaces
// the deterministic excitement score verbatim and the breakdown notes the
// override. Combined weights headhunter over engineer (55/45) because
// placements pay the bills.
func (s *Scorer) Calculate(p model.Payload, enrichment *float64) Scores {
	eng := s.Engineer(p)
	hh := s.Headhunter(p)

	var excitement float64
	var excitementSignals []string
	if enrichment != nil {
		excitement = *enrichment
		excitementSignals = []string{"LLM-enriched score"}
	} else {
		excitement, excitementSignals = s.ExcitementDeterministic(p)
	}

	combined := eng.Score*0.45 + hh.Score*0.55

	return Scores{
		Engineer:   eng.Score,
		Headhunter: hh.Score,
		Excitement: round2(excitement),
		Combined:   round2(combined),
		Breakdown: model.ScoreBreakdown{
			Engineer: model.ComponentBreakdown{
				Score:   eng.Score,
				Parts:   eng.Breakdown,
				Signals: eng.Signals,
			},
			Headhunter: model.ComponentBreakdown{
				Score:   hh.Score,
				Parts:   hh.Breakdown,
				Signals: hh.Signals,
			},
			Excitement: model.ComponentBreakdown{
				Score:   round2(excitement),
				Signals: excitementSignals,
			},
		},
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// topN caps a signal list without copying when already short.
func topN(signals []string, n int) []string {
	if len(signals) <= n {
		return signals
	}
	return signals[:n]
}
