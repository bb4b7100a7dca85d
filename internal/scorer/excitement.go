package scorer

import (
	"fmt"
	"strings"

	"github.com/sells-group/rolescout/internal/model"
	"github.com/sells-group/rolescout/internal/registry"
)

// seniorTitles boost excitement without the broader "lead" match the
// engineer impact score uses.
var seniorTitles = []string{"head of", "vp", "principal", "staff"}

// ExcitementDeterministic rates company prestige from the rule tables alone.
// Known hot companies short-circuit to 0.95; everything else accumulates
// investor, funding, industry, recency, size, and seniority contributions,
// clamped to [0, 1]. The assessor override, when present, replaces this
// value entirely (see Calculate).
func (s *Scorer) ExcitementDeterministic(p model.Payload) (float64, []string) {
	company := p.CompanyName()
	if s.rules.IsHotCompany(company) {
		return 0.95, []string{fmt.Sprintf("Known hot company: %s", company)}
	}

	var signals []string
	score := 0.0

	invScore, tier1Count, invSignals := scoreInvestors(s.rules, p.Investors, true)
	switch {
	case tier1Count >= 3:
		score += 0.40
		signals = append(signals, fmt.Sprintf("%d tier-1 investors", tier1Count))
	case tier1Count >= 2:
		score += 0.30
		signals = append(signals, topN(invSignals, 2)...)
	case tier1Count >= 1:
		score += 0.20
		signals = append(signals, topN(invSignals, 1)...)
	default:
		score += invScore * 0.15
	}

	usd := registry.ParseFundingAmount(p.FundingAmount())
	switch {
	case usd >= 100_000_000:
		score += 0.25
		signals = append(signals, fmt.Sprintf("$%.0fM raised (unicorn trajectory)", usd/1_000_000))
	case usd >= 30_000_000:
		score += 0.20
		signals = append(signals, fmt.Sprintf("$%.0fM raised", usd/1_000_000))
	case usd >= 10_000_000:
		score += 0.15
	case usd >= 5_000_000:
		score += 0.10
	}

	industryAI := false
	industryAdjacent := false
	for _, ind := range p.Industries() {
		if s.rules.IsAIIndustry(ind) {
			industryAI = true
			break
		}
		if s.rules.IsAdjacentIndustry(ind) {
			industryAdjacent = true
		}
	}
	if industryAI {
		score += 0.15
		signals = append(signals, "AI company")
	} else if industryAdjacent {
		score += 0.10
		signals = append(signals, "Hot industry")
	}

	year := 2020
	if fy := p.FoundingYear(); fy != nil && *fy > 0 {
		year = *fy
	}
	if year >= 2022 {
		score += 0.05
		signals = append(signals, fmt.Sprintf("Founded %d (recent)", year))
	}

	size := 50
	if cs := p.CompanySize(); cs != nil && *cs > 0 {
		size = *cs
	}
	if size >= 20 && size <= 100 {
		score += 0.05
	}

	title := strings.ToLower(p.Name)
	if containsAny(title, seniorTitles) {
		score += 0.05
		signals = append(signals, "Senior/leadership role")
	}

	return clamp01(score), signals
}
