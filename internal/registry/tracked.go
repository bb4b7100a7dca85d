package registry

import (
	"sort"

	"github.com/sells-group/rolescout/internal/model"
)

// NumericField binds one tracked scalar to its payload accessor and the
// change kinds emitted when it moves up or down.
type NumericField struct {
	Name     string
	Value    func(model.Payload) *float64
	Increase model.ChangeKind
	Decrease model.ChangeKind
}

// SetField binds one tracked list to its payload accessor; set fields emit a
// single kind regardless of direction.
type SetField struct {
	Name   string
	Values func(model.Payload) []string
	Kind   model.ChangeKind
}

func intPtrToFloat(v *int) *float64 {
	if v == nil {
		return nil
	}
	f := float64(*v)
	return &f
}

// TrackedNumericFields returns the scalar fields the temporal tracker diffs
// between sightings.
func TrackedNumericFields() []NumericField {
	return []NumericField{
		{
			Name:     "salaryUpperBound",
			Value:    func(p model.Payload) *float64 { return p.SalaryUpperBound },
			Increase: model.ChangeSalaryIncrease,
			Decrease: model.ChangeSalaryDecrease,
		},
		{
			Name:     "salaryLowerBound",
			Value:    func(p model.Payload) *float64 { return p.SalaryLowerBound },
			Increase: model.ChangeSalaryIncrease,
			Decrease: model.ChangeSalaryDecrease,
		},
		{
			Name:     "percent_fee",
			Value:    func(p model.Payload) *float64 { return p.PercentFee },
			Increase: model.ChangeFee,
			Decrease: model.ChangeFee,
		},
		{
			Name:     "hiring_count",
			Value:    func(p model.Payload) *float64 { return intPtrToFloat(p.HiringCount) },
			Increase: model.ChangeHeadcount,
			Decrease: model.ChangeHeadcount,
		},
		{
			Name:     "approved_recruiters_count",
			Value:    func(p model.Payload) *float64 { return intPtrToFloat(p.ApprovedRecruitersCount) },
			Increase: model.ChangeCompetition,
			Decrease: model.ChangeCompetition,
		},
		{
			Name:     "total_interviewing",
			Value:    func(p model.Payload) *float64 { return intPtrToFloat(p.TotalInterviewing) },
			Increase: model.ChangeInterviewIncrease,
			Decrease: model.ChangeInterviewDecrease,
		},
		{
			Name:     "total_hired",
			Value:    func(p model.Payload) *float64 { return intPtrToFloat(p.TotalHired) },
			Increase: model.ChangeHiringIncrease,
			Decrease: model.ChangeHiringDecrease,
		},
	}
}

// TrackedSetFields returns the list fields diffed by set equality.
func TrackedSetFields() []SetField {
	return []SetField{
		{
			Name:   "locations",
			Values: func(p model.Payload) []string { return p.Locations },
			Kind:   model.ChangeLocation,
		},
	}
}

// FingerprintView extracts the stable subset of a payload hashed by the
// content fingerprinter: the fields that feed qualification and enrichment.
// Volatile attributes (timestamps, view counts, interview traffic) never
// appear here. List fields are sorted so source ordering can't shift the
// hash.
func FingerprintView(p model.Payload) map[string]any {
	return map[string]any{
		"company_name":             p.CompanyName(),
		"funding_amount":           p.FundingAmount(),
		"industries":               sortedCopy(p.Industries()),
		"company_size":             p.CompanySize(),
		"salary_upper":             p.SalaryUpperBound,
		"percent_fee":              p.PercentFee,
		"locations":                sortedCopy(p.Locations),
		"workplace_type":           p.WorkplaceType,
		"role_types":               sortedCopy(p.RoleTypes),
		"status":                   p.Status,
		"not_accepting_recruiters": p.NotAcceptingRecruiters,
		"company_tip":              p.CompanyTip,
		"selling_points":           p.SellingPoints,
	}
}

func sortedCopy(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	sort.Strings(out)
	return out
}
