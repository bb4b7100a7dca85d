package scorer

import (
	"fmt"
	"strings"

	"github.com/sells-group/rolescout/internal/model"
)

// leadTitles mark a role as leadership-track for the impact score.
var leadTitles = []string{"head of", "vp", "principal", "staff", "lead"}

// Engineer rates how attractive the role is to a strong engineer:
// compensation 30%, company quality 25%, role impact 20%, process quality
// 15%, tech modernity 10%.
func (s *Scorer) Engineer(p model.Payload) Result {
	var signals []string
	breakdown := make(map[string]float64, 5)

	compScore, _, compSignals := scoreCompensation(p.SalaryUpperBound, p.PercentFee)
	breakdown["compensation"] = round3(compScore)
	signals = append(signals, compSignals...)

	invScore, _, invSignals := scoreInvestors(s.rules, p.Investors, false)
	fundScore, fundSignals := scoreFunding(p.FundingAmount(), p.FundingStage())
	companyScore := invScore*0.5 + fundScore*0.5
	breakdown["company_quality"] = round3(companyScore)
	signals = append(signals, topN(invSignals, 2)...)
	signals = append(signals, topN(fundSignals, 1)...)

	title := strings.ToLower(p.Name)
	titleScore := 0.6
	switch {
	case containsAny(title, leadTitles):
		titleScore = 1.0
		signals = append(signals, "Leadership/senior role")
	case strings.Contains(title, "senior"):
		titleScore = 0.8
	}

	hiring := 1
	if p.HiringCount != nil && *p.HiringCount > 0 {
		hiring = *p.HiringCount
	}
	hiringScore := clamp01(float64(hiring) / 3)
	if hiring >= 3 {
		signals = append(signals, fmt.Sprintf("Hiring %d+ positions", hiring))
	}

	size := 50
	if cs := p.CompanySize(); cs != nil && *cs > 0 {
		size = *cs
	}
	sizeScore := 0.6
	switch {
	case size >= 20 && size <= 100:
		sizeScore = 1.0
	case size >= 10 && size <= 200:
		sizeScore = 0.8
	}

	impactScore := titleScore*0.5 + hiringScore*0.3 + sizeScore*0.2
	breakdown["role_impact"] = round3(impactScore)

	processScore, _, processSignals := scoreProcessQuality(
		p.ManagerRating, p.ResponsivenessDays, p.InterviewStages, p.Highlights())
	breakdown["process_quality"] = round3(processScore)
	signals = append(signals, topN(processSignals, 2)...)

	techOverlap := 0
	for _, tech := range p.TechStack {
		if s.rules.IsModernTech(tech) {
			techOverlap++
		}
	}
	techScore := clamp01(float64(techOverlap) / 3)

	industryScore := 0.5
	for _, ind := range p.Industries() {
		if s.rules.IsHotIndustry(ind) {
			industryScore = 1.0
			break
		}
	}

	techModernity := techScore*0.6 + industryScore*0.4
	breakdown["tech_modernity"] = round3(techModernity)
	if techOverlap >= 2 {
		signals = append(signals, fmt.Sprintf("Modern tech stack (%d matches)", techOverlap))
	}

	final := breakdown["compensation"]*0.30 +
		breakdown["company_quality"]*0.25 +
		breakdown["role_impact"]*0.20 +
		breakdown["process_quality"]*0.15 +
		breakdown["tech_modernity"]*0.10

	return Result{
		Score:     round2(final),
		Breakdown: breakdown,
		Signals:   topN(signals, 5),
	}
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
