// Package registry is the single source of truth for the rule tables and
// field paths shared by qualification, scoring, fingerprinting, and temporal
// change detection. Everything here is data; the behavior lives in the
// packages that consume it.
package registry

import (
	"strings"
)

type set map[string]struct{}

func newSet(members ...string) set {
	s := make(set, len(members))
	for _, m := range members {
		s[m] = struct{}{}
	}
	return s
}

func (s set) has(v string) bool {
	_, ok := s[v]
	return ok
}

func (s set) add(members []string) {
	for _, m := range members {
		s[Normalize(m)] = struct{}{}
	}
}

// Normalize lowercases and trims a name into its canonical matching form.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// InvestorTier labels how strong an investor name is.
type InvestorTier int

const (
	InvestorNone InvestorTier = iota
	InvestorTier1
	InvestorTier2
)

// Rules holds every allowlist and threshold the pipeline matches against.
// Construct with Default, then Apply operator overrides on top.
type Rules struct {
	tier1Investors set
	tier2Investors set
	notableAngels  set
	hotCompanies   set

	nycMetroLocations set
	londonLocations   set

	coreRoleTypes      set
	secondaryRoleTypes set
	mobileRoleTypes    set
	commonRoleTypes    set

	goodStages         set
	aiIndustries       set
	adjacentIndustries set
	hotIndustries      set
	modernTech         set

	// SalaryFloor and FeeFloor are the hard qualification minimums.
	SalaryFloor float64
	FeeFloor    float64
}

// Default returns the built-in rule tables.
func Default() *Rules {
	return &Rules{
		tier1Investors: newSet(
			"sequoia", "sequoia capital",
			"a16z", "andreessen horowitz",
			"benchmark",
			"greylock", "greylock partners",
			"accel", "accel partners",
			"general catalyst",
			"lightspeed", "lightspeed venture partners",
			"khosla", "khosla ventures",
			"founders fund",
			"kleiner perkins",
			"yc", "y combinator",
			"index ventures",
			"gv", "google ventures",
			"tiger global", "tiger global management",
			"coatue", "coatue management",
			"thrive capital",
			"bessemer", "bessemer venture partners",
			"insight partners",
			"craft ventures",
			"redpoint", "redpoint ventures",
			"nea", "new enterprise associates",
			"battery ventures",
		),
		tier2Investors: newSet(
			"spark capital",
			"ivp", "institutional venture partners",
			"menlo ventures",
			"felicis", "felicis ventures",
			"bain capital ventures",
			"initialized capital",
			"floodgate",
			"first round", "first round capital",
			"union square ventures", "usv",
			"lux capital",
			"lowercase capital",
			"8vc",
			"nfx",
			"founders collective",
			"gradient ventures",
			"maverick ventures",
			"forerunner ventures",
			"ribbit capital",
		),
		notableAngels: newSet(
			"elad gil", "nat friedman", "daniel gross", "max levchin",
			"aaron levie", "arash ferdowsi", "jack altman", "gokul rajaram",
			"paul buchheit", "naval ravikant", "lachy groom", "dylan field",
		),
		hotCompanies: newSet(
			"anthropic", "openai", "stripe", "figma", "notion", "linear",
			"vercel", "supabase", "ramp", "mercury", "plaid", "retool",
			"databricks", "snowflake", "datadog", "cloudflare",
		),
		nycMetroLocations: newSet(
			"new_york", "new_york_city", "nyc", "manhattan", "brooklyn",
			"queens", "bronx", "staten_island", "jersey_city", "hoboken",
			"newark",
		),
		londonLocations: newSet(
			"london", "greater_london", "city_of_london", "uk", "united_kingdom",
		),
		coreRoleTypes: newSet(
			"backend_engineer",
			"full_stack_engineer",
			"embedded_firmware_engineer",
			"electrical_engineer",
			"mechanical_engineer",
			"forward_deployed_engineer_solutions_support",
		),
		secondaryRoleTypes: newSet(
			"frontend_engineer",
			"infrastructure_devops_sre",
			"data_engineer",
			"security_engineer",
		),
		mobileRoleTypes: newSet(
			"mobile_engineer", "ios_engineer", "android_engineer",
		),
		commonRoleTypes: newSet(
			"full_stack_engineer", "backend_engineer",
			"frontend_engineer", "data_engineer",
		),
		goodStages: newSet(
			"SEED", "SERIES_A", "SERIES_B", "SERIES_C", "SERIES_D", "SERIES_E",
		),
		aiIndustries: newSet(
			"ai", "artificial_intelligence", "machine_learning",
		),
		adjacentIndustries: newSet(
			"developer_tools", "devtools", "fintech", "cybersecurity",
		),
		hotIndustries: newSet(
			"ai", "fintech", "developer_tools", "cybersecurity", "devtools",
		),
		modernTech: newSet(
			"react", "typescript", "python", "go", "rust",
			"kubernetes", "graphql", "next",
		),
		SalaryFloor: 200000,
		FeeFloor:    14,
	}
}

// InvestorTierOf returns the tier of an investor name under exact canonical
// matching.
func (r *Rules) InvestorTierOf(name string) InvestorTier {
	canonical := Normalize(name)
	switch {
	case r.tier1Investors.has(canonical):
		return InvestorTier1
	case r.tier2Investors.has(canonical):
		return InvestorTier2
	}
	return InvestorNone
}

// MatchesTier1 reports whether the investor name contains any tier-1 name as
// a substring. Qualification uses this looser match because feed investor
// strings often carry suffixes like "Sequoia Capital (lead)".
func (r *Rules) MatchesTier1(name string) bool {
	canonical := Normalize(name)
	for t1 := range r.tier1Investors {
		if strings.Contains(canonical, t1) {
			return true
		}
	}
	return false
}

// MatchesTier2 is the substring counterpart of MatchesTier1 for tier-2
// investors.
func (r *Rules) MatchesTier2(name string) bool {
	canonical := Normalize(name)
	for t2 := range r.tier2Investors {
		if strings.Contains(canonical, t2) {
			return true
		}
	}
	return false
}

// MatchesAngel reports whether the investor string contains a known angel's
// name.
func (r *Rules) MatchesAngel(name string) bool {
	canonical := Normalize(name)
	for angel := range r.notableAngels {
		if strings.Contains(canonical, angel) {
			return true
		}
	}
	return false
}

// IsNotableAngel reports whether the name is a known angel investor.
func (r *Rules) IsNotableAngel(name string) bool {
	return r.notableAngels.has(Normalize(name))
}

// IsHotCompany reports whether the company is on the known-hot allowlist.
func (r *Rules) IsHotCompany(name string) bool {
	return r.hotCompanies.has(Normalize(name))
}

// IsSupportedLocation reports whether a location slug is in a supported
// metro (NYC metro or London).
func (r *Rules) IsSupportedLocation(loc string) bool {
	canonical := Normalize(loc)
	return r.nycMetroLocations.has(canonical) || r.londonLocations.has(canonical)
}

// IsCoreRoleType reports whether the tag is a core engineering type.
func (r *Rules) IsCoreRoleType(rt string) bool {
	return r.coreRoleTypes.has(Normalize(rt))
}

// IsSecondaryRoleType reports whether the tag is a secondary engineering
// type (qualifying only alongside a core type).
func (r *Rules) IsSecondaryRoleType(rt string) bool {
	return r.secondaryRoleTypes.has(Normalize(rt))
}

// IsMobileRoleType reports whether the tag is an excluded mobile type.
func (r *Rules) IsMobileRoleType(rt string) bool {
	return r.mobileRoleTypes.has(Normalize(rt))
}

// IsCommonRoleType reports whether the tag is one of the high-liquidity
// types headhunters place most easily.
func (r *Rules) IsCommonRoleType(rt string) bool {
	return r.commonRoleTypes.has(Normalize(rt))
}

// IsGoodStage reports whether a funding round is in the Seed-through-E band.
func (r *Rules) IsGoodStage(stage string) bool {
	return r.goodStages.has(strings.ToUpper(strings.TrimSpace(stage)))
}

// IsAIIndustry reports whether the industry tag is in the AI cluster.
func (r *Rules) IsAIIndustry(ind string) bool {
	return r.aiIndustries.has(Normalize(ind))
}

// IsAdjacentIndustry reports whether the industry tag is in the
// devtools/fintech/security cluster.
func (r *Rules) IsAdjacentIndustry(ind string) bool {
	return r.adjacentIndustries.has(Normalize(ind))
}

// IsHotIndustry reports whether the industry tag counts toward tech
// modernity.
func (r *Rules) IsHotIndustry(ind string) bool {
	return r.hotIndustries.has(Normalize(ind))
}

// IsModernTech reports whether a stack entry is on the modern-stack list.
func (r *Rules) IsModernTech(tech string) bool {
	return r.modernTech.has(Normalize(tech))
}
