package qualify

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/rolescout/internal/model"
	"github.com/sells-group/rolescout/internal/registry"
)

func ptrFloat(v float64) *float64 { return &v }
func ptrInt(v int) *int           { return &v }

// passingPayload clears every hard filter with zero quality signals.
func passingPayload() model.Payload {
	return model.Payload{
		ID:               "role-1",
		Name:             "Backend Engineer",
		Status:           "ACTIVE",
		Locations:        []string{"new_york"},
		RoleTypes:        []string{"backend_engineer"},
		SalaryUpperBound: ptrFloat(220000),
		PercentFee:       ptrFloat(15),
	}
}

func TestEvaluateHardFilters(t *testing.T) {
	e := New(registry.Default())

	tests := []struct {
		name    string
		mutate  func(*model.Payload)
		failure string
	}{
		{
			name:    "inactive status",
			mutate:  func(p *model.Payload) { p.Status = "paused" },
			failure: "Status is PAUSED, not ACTIVE",
		},
		{
			name:    "not accepting recruiters",
			mutate:  func(p *model.Payload) { p.NotAcceptingRecruiters = true },
			failure: "Not accepting recruiters",
		},
		{
			name:    "unsupported location",
			mutate:  func(p *model.Payload) { p.Locations = []string{"san_francisco"} },
			failure: "Location not supported",
		},
		{
			name:    "secondary types only",
			mutate:  func(p *model.Payload) { p.RoleTypes = []string{"frontend_engineer"} },
			failure: "Only secondary engineering types",
		},
		{
			name:    "no engineering type",
			mutate:  func(p *model.Payload) { p.RoleTypes = []string{"product_manager"} },
			failure: "Not core engineering role",
		},
		{
			name:    "mobile excluded",
			mutate:  func(p *model.Payload) { p.RoleTypes = []string{"backend_engineer", "ios_engineer"} },
			failure: "Mobile role excluded",
		},
		{
			name:    "salary below floor",
			mutate:  func(p *model.Payload) { p.SalaryUpperBound = ptrFloat(180000) },
			failure: "Salary upper bound",
		},
		{
			name:    "salary missing",
			mutate:  func(p *model.Payload) { p.SalaryUpperBound = nil },
			failure: "Salary upper bound",
		},
		{
			name:    "fee below floor",
			mutate:  func(p *model.Payload) { p.PercentFee = ptrFloat(12) },
			failure: "Commission",
		},
		{
			name:    "fee missing",
			mutate:  func(p *model.Payload) { p.PercentFee = nil },
			failure: "Commission",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := passingPayload()
			tt.mutate(&p)

			res := e.Evaluate(p)
			assert.Equal(t, model.TierSkip, res.Tier)
			assert.False(t, res.Qualified())
			require.NotEmpty(t, res.Negative)
			found := false
			for _, f := range res.Negative {
				if strings.HasPrefix(f, tt.failure) {
					found = true
				}
			}
			assert.True(t, found, "expected failure %q in %v", tt.failure, res.Negative)
		})
	}
}

func TestEvaluateRemoteAlwaysPassesLocation(t *testing.T) {
	e := New(registry.Default())

	// Remote qualifies even when the stated locations are unsupported.
	p := passingPayload()
	p.WorkplaceType = "remote"
	p.Locations = []string{"san_francisco"}

	res := e.Evaluate(p)
	assert.Equal(t, model.TierSkip, res.Tier) // zero signals, but no hard failures
	assert.Empty(t, res.Negative)
}

func TestEvaluateHighConfidenceExtractionPassesLocation(t *testing.T) {
	e := New(registry.Default())

	p := passingPayload()
	p.Locations = nil
	p.Enrichment = &model.EnrichmentOverlay{
		ExtractedLocation:  "London",
		LocationConfidence: "high",
	}

	res := e.Evaluate(p)
	assert.Empty(t, res.Negative)

	// Medium confidence does not pass.
	p.Enrichment.LocationConfidence = "medium"
	res = e.Evaluate(p)
	assert.Equal(t, model.TierLocationUncertain, res.Tier)
}

func TestEvaluateLocationUncertainOnlyWhenSoleFailure(t *testing.T) {
	e := New(registry.Default())

	// Location is the only failure and the feed gave no locations.
	p := passingPayload()
	p.Locations = nil
	res := e.Evaluate(p)
	assert.Equal(t, model.TierLocationUncertain, res.Tier)
	assert.False(t, res.Qualified())

	// Same location failure plus another failure: hard SKIP.
	p.SalaryUpperBound = ptrFloat(100000)
	res = e.Evaluate(p)
	assert.Equal(t, model.TierSkip, res.Tier)

	// Location failed but the feed did supply locations: SKIP, not uncertain.
	p = passingPayload()
	p.Locations = []string{"austin"}
	res = e.Evaluate(p)
	assert.Equal(t, model.TierSkip, res.Tier)
}

func TestEvaluateTiering(t *testing.T) {
	e := New(registry.Default())

	// Zero signals -> SKIP.
	res := e.Evaluate(passingPayload())
	assert.Equal(t, model.TierSkip, res.Tier)

	// One signal -> MAYBE.
	p := passingPayload()
	p.ManagerRating = ptrFloat(4.5)
	res = e.Evaluate(p)
	assert.Equal(t, model.TierMaybe, res.Tier)
	assert.True(t, res.Qualified())
	assert.Len(t, res.Positive, 1)

	// Three signals -> QUALIFIED.
	p.Investors = []string{"Sequoia Capital", "Unknown Fund"}
	p.Company = &model.Company{
		FundingAmount: "$16.25M",
		Size:          ptrInt(80),
	}
	res = e.Evaluate(p)
	assert.Equal(t, model.TierQualified, res.Tier)
	assert.True(t, res.Qualified())
	assert.GreaterOrEqual(t, len(res.Positive), 3)
}

func TestEvaluateSignalEdges(t *testing.T) {
	e := New(registry.Default())

	// Funding at exactly $5M is not a signal; above is.
	p := passingPayload()
	p.Company = &model.Company{FundingAmount: "$5M"}
	assert.Equal(t, model.TierSkip, e.Evaluate(p).Tier)
	p.Company.FundingAmount = "$5.1M"
	assert.Equal(t, model.TierMaybe, e.Evaluate(p).Tier)

	// Any B-suffixed amount qualifies.
	p.Company.FundingAmount = "$1B"
	assert.Equal(t, model.TierMaybe, e.Evaluate(p).Tier)

	// Zero interview stages is not a fast-process signal.
	p = passingPayload()
	p.InterviewStages = ptrInt(0)
	assert.Equal(t, model.TierSkip, e.Evaluate(p).Tier)
	p.InterviewStages = ptrInt(4)
	assert.Equal(t, model.TierMaybe, e.Evaluate(p).Tier)

	// Responsiveness of exactly 3 days misses the signal.
	p = passingPayload()
	p.ResponsivenessDays = ptrFloat(3)
	assert.Equal(t, model.TierSkip, e.Evaluate(p).Tier)
	p.ResponsivenessDays = ptrFloat(2.5)
	assert.Equal(t, model.TierMaybe, e.Evaluate(p).Tier)
}

func TestEvaluateDeterminism(t *testing.T) {
	e := New(registry.Default())
	p := passingPayload()
	p.Investors = []string{"Sequoia"}
	p.ManagerRating = ptrFloat(4.2)

	first := e.Evaluate(p)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, e.Evaluate(p))
	}
}
