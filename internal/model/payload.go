package model

import (
	"encoding/json"
	"reflect"
	"strings"

	"github.com/rotisserie/eris"
)

// Payload is the typed envelope over one raw source record. The fields the
// pipeline qualifies, scores, and diffs are named; everything else the feed
// sends rides along untouched in Extra and survives a marshal round trip.
type Payload struct {
	ID                      string             `json:"id,omitempty"`
	Name                    string             `json:"name,omitempty"`
	Status                  string             `json:"status,omitempty"`
	WorkplaceType           string             `json:"workplace_type,omitempty"`
	Locations               []string           `json:"locations,omitempty"`
	RoleTypes               []string           `json:"role_types,omitempty"`
	SalaryLowerBound        *float64           `json:"salaryLowerBound,omitempty"`
	SalaryUpperBound        *float64           `json:"salaryUpperBound,omitempty"`
	PercentFee              *float64           `json:"percent_fee,omitempty"`
	HiringCount             *int               `json:"hiring_count,omitempty"`
	ApprovedRecruitersCount *int               `json:"approved_recruiters_count,omitempty"`
	TotalInterviewing       *int               `json:"total_interviewing,omitempty"`
	TotalHired              *int               `json:"total_hired,omitempty"`
	NotAcceptingRecruiters  bool               `json:"not_accepting_recruiters,omitempty"`
	Investors               []string           `json:"investors,omitempty"`
	TechStack               []string           `json:"tech_stack,omitempty"`
	TeamSize                *int               `json:"team_size,omitempty"`
	ManagerRating           *float64           `json:"manager_rating,omitempty"`
	ResponsivenessDays      *float64           `json:"responsiveness_days,omitempty"`
	InterviewStages         *int               `json:"interview_stages,omitempty"`
	Company                 *Company           `json:"company,omitempty"`
	RoleMetadata            *RoleMetadata      `json:"role_metadata,omitempty"`
	CompanyTip              string             `json:"companyTip,omitempty"`
	SellingPoints           string             `json:"selling_points,omitempty"`
	Equity                  string             `json:"equity,omitempty"`
	Requirements            []string           `json:"requirements,omitempty"`
	Enrichment              *EnrichmentOverlay `json:"_enrichment,omitempty"`

	// Extra holds every feed attribute without a named field above.
	Extra map[string]json.RawMessage `json:"-"`
}

// Company is the nested company block of a source record.
type Company struct {
	Name          string           `json:"name,omitempty"`
	OneLiner      string           `json:"oneLiner,omitempty"`
	FundingAmount string           `json:"fundingAmount,omitempty"`
	Industries    []string         `json:"industries,omitempty"`
	Size          *int             `json:"size,omitempty"`
	FoundingYear  *int             `json:"foundingYear,omitempty"`
	Metadata      *CompanyMetadata `json:"company_metadata,omitempty"`
}

// CompanyMetadata carries slow-moving company attributes the feed nests one
// level deeper.
type CompanyMetadata struct {
	LastFundingRound string `json:"last_funding_round,omitempty"`
}

// RoleMetadata carries the source's per-role badge block.
type RoleMetadata struct {
	Highlights []string `json:"highlights,omitempty"`
}

// EnrichmentOverlay is the extraction result merged into a payload before
// re-qualification. Investors are merged into Payload.Investors separately;
// the overlay keeps the signals and the extracted location.
type EnrichmentOverlay struct {
	ExtractedLocation  string   `json:"extracted_location,omitempty"`
	LocationConfidence string   `json:"location_confidence,omitempty"`
	FundingStage       string   `json:"funding_stage,omitempty"`
	PositiveSignals    []string `json:"positive_signals,omitempty"`
	NegativeSignals    []string `json:"negative_signals,omitempty"`
}

// payloadAlias breaks the MarshalJSON/UnmarshalJSON recursion.
type payloadAlias Payload

// payloadKnownKeys is every JSON key with a named field on Payload,
// derived from the struct tags so the two can never drift.
var payloadKnownKeys = func() map[string]struct{} {
	keys := make(map[string]struct{})
	t := reflect.TypeOf(Payload{})
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("json")
		if tag == "" || tag == "-" {
			continue
		}
		if idx := strings.Index(tag, ","); idx >= 0 {
			tag = tag[:idx]
		}
		keys[tag] = struct{}{}
	}
	return keys
}()

// UnmarshalJSON decodes the named fields and stashes every unrecognized
// attribute in Extra.
func (p *Payload) UnmarshalJSON(data []byte) error {
	var alias payloadAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return eris.Wrap(err, "model: decode payload")
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return eris.Wrap(err, "model: decode payload attributes")
	}
	for key := range raw {
		if _, known := payloadKnownKeys[key]; known {
			delete(raw, key)
		}
	}
	if len(raw) == 0 {
		raw = nil
	}
	*p = Payload(alias)
	p.Extra = raw
	return nil
}

// MarshalJSON re-emits the named fields plus the preserved Extra attributes.
// A named field always wins over a stale Extra entry with the same key.
func (p Payload) MarshalJSON() ([]byte, error) {
	named, err := json.Marshal(payloadAlias(p))
	if err != nil {
		return nil, eris.Wrap(err, "model: encode payload")
	}
	if len(p.Extra) == 0 {
		return named, nil
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(named, &merged); err != nil {
		return nil, eris.Wrap(err, "model: merge payload attributes")
	}
	for key, val := range p.Extra {
		if _, taken := merged[key]; !taken {
			merged[key] = val
		}
	}
	return json.Marshal(merged)
}

// CompanyName returns the nested company name, or "" when the block is absent.
func (p Payload) CompanyName() string {
	if p.Company == nil {
		return ""
	}
	return p.Company.Name
}

// FundingAmount returns the company's raw funding string (e.g. "$16.25M").
func (p Payload) FundingAmount() string {
	if p.Company == nil {
		return ""
	}
	return p.Company.FundingAmount
}

// FundingStage returns the company's last funding round, preferring the
// enrichment overlay when the feed omits it.
func (p Payload) FundingStage() string {
	if p.Company != nil && p.Company.Metadata != nil && p.Company.Metadata.LastFundingRound != "" {
		return p.Company.Metadata.LastFundingRound
	}
	if p.Enrichment != nil {
		return p.Enrichment.FundingStage
	}
	return ""
}

// Industries returns the company industry tags, never nil.
func (p Payload) Industries() []string {
	if p.Company == nil {
		return nil
	}
	return p.Company.Industries
}

// CompanySize returns the company headcount, falling back to the role-level
// team_size field the feed sometimes uses instead.
func (p Payload) CompanySize() *int {
	if p.Company != nil && p.Company.Size != nil {
		return p.Company.Size
	}
	return p.TeamSize
}

// FoundingYear returns the company founding year when present.
func (p Payload) FoundingYear() *int {
	if p.Company == nil {
		return nil
	}
	return p.Company.FoundingYear
}

// Highlights returns the role's badge list, never nil on absence.
func (p Payload) Highlights() []string {
	if p.RoleMetadata == nil {
		return nil
	}
	return p.RoleMetadata.Highlights
}

// ExtractedLocation returns the enrichment-extracted location and its
// confidence ("high", "medium", "low"), or empty strings when unenriched.
func (p Payload) ExtractedLocation() (location, confidence string) {
	if p.Enrichment == nil {
		return "", ""
	}
	return p.Enrichment.ExtractedLocation, p.Enrichment.LocationConfidence
}

// MergeEnrichment returns a copy of p with the extraction overlay applied:
// extracted investors are unioned into Investors (original order first) and
// the overlay is attached for downstream qualification and scoring.
func (p Payload) MergeEnrichment(investors []string, overlay EnrichmentOverlay) Payload {
	out := p
	if len(investors) > 0 {
		seen := make(map[string]struct{}, len(p.Investors)+len(investors))
		merged := make([]string, 0, len(p.Investors)+len(investors))
		for _, inv := range p.Investors {
			if _, dup := seen[inv]; !dup {
				seen[inv] = struct{}{}
				merged = append(merged, inv)
			}
		}
		for _, inv := range investors {
			if _, dup := seen[inv]; !dup {
				seen[inv] = struct{}{}
				merged = append(merged, inv)
			}
		}
		out.Investors = merged
	}
	ov := overlay
	out.Enrichment = &ov
	return out
}
