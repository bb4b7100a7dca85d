// Package temporal tracks how roles change between sightings: per-run
// snapshots, field-level change events, and lifecycle flips when a role
// vanishes from or returns to the feed.
package temporal

import (
	"sort"
	"strconv"
	"strings"

	"github.com/sells-group/rolescout/internal/model"
	"github.com/sells-group/rolescout/internal/registry"
)

// Diff compares two sightings of the same role over the tracked-field
// registry and returns one event per moved field. Events carry kind, field,
// and stringified values only; the caller attributes them to a role and run.
// A field going absent→present counts as an increase, present→absent as a
// decrease.
func Diff(old, new model.Payload) []model.ChangeEvent {
	var events []model.ChangeEvent

	for _, f := range registry.TrackedNumericFields() {
		oldV, newV := f.Value(old), f.Value(new)
		switch {
		case oldV == nil && newV == nil:
			continue
		case oldV == nil:
			events = append(events, model.ChangeEvent{
				Kind: f.Increase, Field: f.Name, NewValue: formatFloat(*newV),
			})
		case newV == nil:
			events = append(events, model.ChangeEvent{
				Kind: f.Decrease, Field: f.Name, OldValue: formatFloat(*oldV),
			})
		case *oldV != *newV:
			kind := f.Increase
			if *newV < *oldV {
				kind = f.Decrease
			}
			events = append(events, model.ChangeEvent{
				Kind: kind, Field: f.Name,
				OldValue: formatFloat(*oldV), NewValue: formatFloat(*newV),
			})
		}
	}

	for _, f := range registry.TrackedSetFields() {
		oldVals, newVals := f.Values(old), f.Values(new)
		if sameSet(oldVals, newVals) {
			continue
		}
		events = append(events, model.ChangeEvent{
			Kind: f.Kind, Field: f.Name,
			OldValue: joinSorted(oldVals), NewValue: joinSorted(newVals),
		})
	}

	return events
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]int, len(a))
	for _, v := range a {
		seen[v]++
	}
	for _, v := range b {
		seen[v]--
		if seen[v] < 0 {
			return false
		}
	}
	return true
}

func joinSorted(vals []string) string {
	sorted := make([]string, len(vals))
	copy(sorted, vals)
	sort.Strings(sorted)
	return strings.Join(sorted, ", ")
}
