package temporal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/rolescout/internal/model"
)

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func TestDiffNoChanges(t *testing.T) {
	p := model.Payload{
		SalaryUpperBound: floatPtr(250000),
		PercentFee:       floatPtr(18),
		Locations:        []string{"San Francisco", "New York"},
	}
	assert.Empty(t, Diff(p, p))
}

func TestDiffSalaryIncrease(t *testing.T) {
	old := model.Payload{SalaryUpperBound: floatPtr(200000)}
	new := model.Payload{SalaryUpperBound: floatPtr(225000)}

	events := Diff(old, new)
	require.Len(t, events, 1)
	assert.Equal(t, model.ChangeSalaryIncrease, events[0].Kind)
	assert.Equal(t, "salaryUpperBound", events[0].Field)
	assert.Equal(t, "200000", events[0].OldValue)
	assert.Equal(t, "225000", events[0].NewValue)
}

func TestDiffSalaryDecrease(t *testing.T) {
	old := model.Payload{SalaryUpperBound: floatPtr(300000)}
	new := model.Payload{SalaryUpperBound: floatPtr(280000)}

	events := Diff(old, new)
	require.Len(t, events, 1)
	assert.Equal(t, model.ChangeSalaryDecrease, events[0].Kind)
}

func TestDiffAbsentToPresentIsIncrease(t *testing.T) {
	old := model.Payload{}
	new := model.Payload{PercentFee: floatPtr(16)}

	events := Diff(old, new)
	require.Len(t, events, 1)
	assert.Equal(t, model.ChangeFee, events[0].Kind)
	assert.Equal(t, "", events[0].OldValue)
	assert.Equal(t, "16", events[0].NewValue)
}

func TestDiffPresentToAbsentIsDecrease(t *testing.T) {
	old := model.Payload{TotalInterviewing: intPtr(5)}
	new := model.Payload{}

	events := Diff(old, new)
	require.Len(t, events, 1)
	assert.Equal(t, model.ChangeInterviewDecrease, events[0].Kind)
	assert.Equal(t, "5", events[0].OldValue)
	assert.Equal(t, "", events[0].NewValue)
}

func TestDiffLocationsComparedAsSet(t *testing.T) {
	old := model.Payload{Locations: []string{"New York", "San Francisco"}}
	reordered := model.Payload{Locations: []string{"San Francisco", "New York"}}
	assert.Empty(t, Diff(old, reordered))

	changed := model.Payload{Locations: []string{"San Francisco", "Austin"}}
	events := Diff(old, changed)
	require.Len(t, events, 1)
	assert.Equal(t, model.ChangeLocation, events[0].Kind)
	assert.Equal(t, "locations", events[0].Field)
	assert.Equal(t, "New York, San Francisco", events[0].OldValue)
	assert.Equal(t, "Austin, San Francisco", events[0].NewValue)
}

func TestDiffMultipleFields(t *testing.T) {
	old := model.Payload{
		SalaryUpperBound:        floatPtr(200000),
		ApprovedRecruitersCount: intPtr(2),
		TotalHired:              intPtr(0),
	}
	new := model.Payload{
		SalaryUpperBound:        floatPtr(240000),
		ApprovedRecruitersCount: intPtr(6),
		TotalHired:              intPtr(1),
	}

	events := Diff(old, new)
	require.Len(t, events, 3)

	kinds := make(map[model.ChangeKind]bool, len(events))
	for _, e := range events {
		kinds[e.Kind] = true
	}
	assert.True(t, kinds[model.ChangeSalaryIncrease])
	assert.True(t, kinds[model.ChangeCompetition])
	assert.True(t, kinds[model.ChangeHiringIncrease])
}
