// Package qualify decides whether a role matches the placement archetype.
// Evaluation is pure: the same payload and rule tables always produce the
// same tier.
package qualify

import (
	"fmt"
	"strings"

	"github.com/sells-group/rolescout/internal/model"
	"github.com/sells-group/rolescout/internal/registry"
)

// Result is the outcome of qualifying one payload. Positive holds the
// quality signals met; Negative holds the hard filters failed.
type Result struct {
	Tier     model.Tier
	Positive []string
	Negative []string
}

// Qualified reports whether the result tier counts as qualified output.
func (r Result) Qualified() bool {
	return r.Tier.Qualified()
}

// Engine evaluates payloads against the rule tables.
type Engine struct {
	rules *registry.Rules
}

// New returns an Engine bound to the given rule tables.
func New(rules *registry.Rules) *Engine {
	return &Engine{rules: rules}
}

// Evaluate runs the hard filters, then counts quality signals to tier the
// role: >=3 signals QUALIFIED, 1-2 MAYBE, 0 SKIP. A role whose only failure
// is location, with no location data supplied at all, tiers as
// LOCATION_UNCERTAIN so enrichment can resolve it later.
func (e *Engine) Evaluate(p model.Payload) Result {
	failures, locationUncertain := e.hardFilters(p)

	if len(failures) > 0 {
		if len(failures) == 1 && locationUncertain && strings.HasPrefix(failures[0], "Location not supported") {
			return Result{Tier: model.TierLocationUncertain, Negative: failures}
		}
		return Result{Tier: model.TierSkip, Negative: failures}
	}

	signals := e.qualitySignals(p)
	switch {
	case len(signals) >= 3:
		return Result{Tier: model.TierQualified, Positive: signals}
	case len(signals) >= 1:
		return Result{Tier: model.TierMaybe, Positive: signals}
	}
	return Result{Tier: model.TierSkip}
}

// hardFilters returns every failed filter and whether the location failure
// is resolvable (feed supplied no location data at all).
func (e *Engine) hardFilters(p model.Payload) (failures []string, locationUncertain bool) {
	status := strings.ToUpper(p.Status)
	if status != "ACTIVE" {
		failures = append(failures, fmt.Sprintf("Status is %s, not ACTIVE", status))
	}

	if p.NotAcceptingRecruiters {
		failures = append(failures, "Not accepting recruiters")
	}

	// Location passes three ways: the feed lists a supported metro, the
	// role is remote (work-from-anywhere, regardless of the locations
	// array), or enrichment extracted a supported location with high
	// confidence.
	isRemote := strings.EqualFold(p.WorkplaceType, "remote")
	supportedAPI := false
	for _, loc := range p.Locations {
		if e.rules.IsSupportedLocation(loc) {
			supportedAPI = true
			break
		}
	}
	extracted, confidence := p.ExtractedLocation()
	supportedExtracted := false
	if extracted != "" && confidence == "high" {
		canonical := registry.Normalize(extracted)
		supportedExtracted = e.rules.IsSupportedLocation(canonical) || canonical == "remote"
	}
	locationPasses := isRemote || supportedAPI || supportedExtracted
	if !locationPasses {
		if len(p.Locations) == 0 {
			locationUncertain = true
		}
		failures = append(failures, fmt.Sprintf(
			"Location not supported: %s, %s, extracted: %s (%s)",
			formatLocations(p.Locations), p.WorkplaceType, extracted, confidence,
		))
	}

	hasCore := false
	hasSecondary := false
	isMobile := false
	for _, rt := range p.RoleTypes {
		switch {
		case e.rules.IsCoreRoleType(rt):
			hasCore = true
		case e.rules.IsSecondaryRoleType(rt):
			hasSecondary = true
		}
		if e.rules.IsMobileRoleType(rt) {
			isMobile = true
		}
	}
	if !hasCore {
		if hasSecondary {
			failures = append(failures, fmt.Sprintf(
				"Only secondary engineering types (frontend/infra): %s", strings.Join(p.RoleTypes, ", ")))
		} else {
			failures = append(failures, fmt.Sprintf(
				"Not core engineering role: %s", strings.Join(p.RoleTypes, ", ")))
		}
	}
	if isMobile {
		failures = append(failures, fmt.Sprintf("Mobile role excluded: %s", strings.Join(p.RoleTypes, ", ")))
	}

	if p.SalaryUpperBound == nil || *p.SalaryUpperBound < e.rules.SalaryFloor {
		var salary float64
		if p.SalaryUpperBound != nil {
			salary = *p.SalaryUpperBound
		}
		failures = append(failures, fmt.Sprintf(
			"Salary upper bound $%.0f < $%.0f", salary, e.rules.SalaryFloor))
	}

	var fee float64
	if p.PercentFee != nil {
		fee = *p.PercentFee
	}
	if fee < e.rules.FeeFloor {
		failures = append(failures, fmt.Sprintf("Commission %.1f%% < %.0f%%", fee, e.rules.FeeFloor))
	}

	return failures, locationUncertain
}

// qualitySignals counts the soft signals that tier a role once the hard
// filters pass.
func (e *Engine) qualitySignals(p model.Payload) []string {
	var signals []string

	if len(p.Investors) > 0 {
		tier1Found := false
		for _, inv := range p.Investors {
			if e.rules.MatchesTier1(inv) {
				tier1Found = true
				break
			}
		}
		if tier1Found {
			preview := p.Investors
			if len(preview) > 3 {
				preview = preview[:3]
			}
			signals = append(signals, fmt.Sprintf("Tier-1 investors: %s", strings.Join(preview, ", ")))
		}
	}

	if funding := p.FundingAmount(); funding != "" {
		if usd := registry.ParseFundingAmount(funding); usd > 5_000_000 {
			signals = append(signals, fmt.Sprintf("Well-funded: %s", funding))
		}
	}

	if stage := p.FundingStage(); stage != "" && e.rules.IsGoodStage(stage) {
		signals = append(signals, fmt.Sprintf("Funding stage: %s", stage))
	}

	if size := p.CompanySize(); size != nil && *size >= 10 && *size <= 500 {
		signals = append(signals, fmt.Sprintf("Company size: %d (sweet spot)", *size))
	}

	if p.ManagerRating != nil && *p.ManagerRating >= 4 {
		signals = append(signals, fmt.Sprintf("Manager rating: %g/5 stars", *p.ManagerRating))
	}

	if p.ResponsivenessDays != nil && *p.ResponsivenessDays < 3 {
		signals = append(signals, fmt.Sprintf("Responsive manager: %.1f days", *p.ResponsivenessDays))
	}

	if p.InterviewStages != nil && *p.InterviewStages > 0 && *p.InterviewStages <= 6 {
		signals = append(signals, fmt.Sprintf("Fast process: %d stages", *p.InterviewStages))
	}

	if highlights := p.Highlights(); len(highlights) > 0 {
		signals = append(signals, fmt.Sprintf("Badges: %s", strings.Join(highlights, ", ")))
	}

	return signals
}

func formatLocations(locs []string) string {
	if len(locs) == 0 {
		return "empty"
	}
	return strings.Join(locs, ", ")
}
