package temporal

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/rolescout/internal/model"
	"github.com/sells-group/rolescout/internal/store"
)

// Tracker persists the temporal record of each role: one snapshot per
// sighting, change events for tracked-field moves, and lifecycle flips.
type Tracker struct {
	store store.Store
}

// NewTracker creates a tracker over the given store.
func NewTracker(s store.Store) *Tracker {
	return &Tracker{store: s}
}

// CreateSnapshot records the role's payload as seen in this run.
func (t *Tracker) CreateSnapshot(ctx context.Context, role *model.Role, runID string) error {
	snap := model.NewSnapshot(role.ID, runID, role.Payload)
	if err := t.store.CreateSnapshot(ctx, &snap); err != nil {
		return eris.Wrapf(err, "temporal: snapshot role %d", role.ID)
	}
	return nil
}

// DetectChanges diffs two sightings, attributes the resulting events to the
// role and run, and persists them. Returns the persisted events; an empty
// diff writes nothing.
func (t *Tracker) DetectChanges(ctx context.Context, old, new model.Payload, roleID int64, runID string) ([]model.ChangeEvent, error) {
	events := Diff(old, new)
	if len(events) == 0 {
		return nil, nil
	}

	now := time.Now().UTC()
	for i := range events {
		events[i].RoleID = roleID
		events[i].RunID = runID
		events[i].DetectedAt = now
	}

	if err := t.store.CreateChangeEvents(ctx, events); err != nil {
		return nil, eris.Wrapf(err, "temporal: persist changes for role %d", roleID)
	}

	zap.L().Debug("role changed",
		zap.Int64("role_id", roleID),
		zap.Int("events", len(events)))
	return events, nil
}

// MarkDisappeared flips every ACTIVE role absent from seenIDs to FILLED and
// records a DISAPPEARED event per role. Returns the number of roles flipped.
func (t *Tracker) MarkDisappeared(ctx context.Context, runID string, seenIDs []int64) (int, error) {
	unseen, err := t.store.ListActiveRoleIDsNotSeen(ctx, seenIDs)
	if err != nil {
		return 0, eris.Wrap(err, "temporal: mark disappeared")
	}
	if len(unseen) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	events := make([]model.ChangeEvent, 0, len(unseen))
	flipped := 0
	for _, id := range unseen {
		if err := t.store.UpdateLifecycle(ctx, id, model.LifecycleFilled); err != nil {
			zap.L().Warn("failed to mark role filled",
				zap.Int64("role_id", id), zap.Error(err))
			continue
		}
		flipped++
		events = append(events, model.ChangeEvent{
			RoleID:     id,
			RunID:      runID,
			Kind:       model.ChangeDisappeared,
			Field:      "lifecycle_status",
			OldValue:   string(model.LifecycleActive),
			NewValue:   string(model.LifecycleFilled),
			DetectedAt: now,
		})
	}

	if len(events) > 0 {
		if err := t.store.CreateChangeEvents(ctx, events); err != nil {
			return flipped, eris.Wrap(err, "temporal: persist disappearances")
		}
	}

	zap.L().Info("roles disappeared from feed", zap.Int("count", flipped))
	return flipped, nil
}

// MarkReappeared flips a previously closed role back to ACTIVE and records a
// REAPPEARED event. No-op returning (nil, nil) when the role is already
// ACTIVE.
func (t *Tracker) MarkReappeared(ctx context.Context, role *model.Role, runID string) (*model.ChangeEvent, error) {
	if role.Status == model.LifecycleActive {
		return nil, nil
	}

	prev := role.Status
	if err := t.store.UpdateLifecycle(ctx, role.ID, model.LifecycleActive); err != nil {
		return nil, eris.Wrapf(err, "temporal: reactivate role %d", role.ID)
	}
	role.Status = model.LifecycleActive

	event := model.ChangeEvent{
		RoleID:     role.ID,
		RunID:      runID,
		Kind:       model.ChangeReappeared,
		Field:      "lifecycle_status",
		OldValue:   string(prev),
		NewValue:   string(model.LifecycleActive),
		DetectedAt: time.Now().UTC(),
	}
	if err := t.store.CreateChangeEvents(ctx, []model.ChangeEvent{event}); err != nil {
		return nil, eris.Wrapf(err, "temporal: persist reappearance %d", role.ID)
	}

	zap.L().Info("role reappeared in feed",
		zap.Int64("role_id", role.ID),
		zap.String("external_id", role.ExternalID))
	return &event, nil
}
