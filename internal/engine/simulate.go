package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/Golani45/uthgard/internal/kv"
	domain "github.com/Golani45/uthgard/pkg/types"
)

// Simulation entry points synthesize a minimal Snapshot and drive the same
// detector code paths the tick runs. They are test fixtures promoted to
// endpoints: if a simulated alert misbehaves, production does too.

// SimulateUnderAttack synthesizes a banner rising edge for the named keep
// and runs the under-attack detector. Returns the number of alerts sent.
func (e *Engine) SimulateUnderAttack(ctx context.Context, keepName string, realm domain.Realm) int {
	now := e.nowFunc()
	snap := &domain.Snapshot{
		UpdatedAt: now,
		Keeps: []domain.Keep{{
			ID:                domain.Slug(keepName),
			Name:              keepName,
			Type:              domain.KeepTypeKeep,
			Owner:             realm,
			HeaderUnderAttack: true,
			UnderAttack:       true,
		}},
	}
	return e.detectUnderAttack(ctx, snap)
}

// SimulateCaptureEvent synthesizes a fresh captured event and runs the
// capture detector's event path.
func (e *Engine) SimulateCaptureEvent(
	ctx context.Context,
	keepName string,
	newOwner domain.Realm,
	leader string,
) int {
	now := e.nowFunc()
	// Pre-seed the baseline so the first-sighting rule does not swallow
	// the simulated event.
	if !e.has(ctx, kv.OwnerKey(domain.Slug(keepName))) {
		e.putBestEffort(ctx, kv.OwnerKey(domain.Slug(keepName)), string(newOwner), 0)
	}
	snap := &domain.Snapshot{
		UpdatedAt: now,
		Keeps: []domain.Keep{{
			ID:    domain.Slug(keepName),
			Name:  keepName,
			Type:  domain.KeepTypeKeep,
			Owner: newOwner,
		}},
		Events: []domain.Event{{
			At:       now.Add(-time.Minute),
			Kind:     domain.EventCaptured,
			KeepID:   domain.Slug(keepName),
			KeepName: keepName,
			NewOwner: newOwner,
			Leader:   leader,
			Raw:      fmt.Sprintf("%s was captured by %s (1m ago)", keepName, newOwner),
		}},
	}
	return e.detectCaptures(ctx, snap)
}

// SimulateOwnershipFlip seeds the baseline to prev, synthesizes a snapshot
// owned by next with a corroborating event, and runs the capture detector's
// ownership path.
func (e *Engine) SimulateOwnershipFlip(
	ctx context.Context,
	keepName string,
	prev, next domain.Realm,
) int {
	id := domain.Slug(keepName)
	e.putBestEffort(ctx, kv.OwnerKey(id), string(prev), 0)
	return e.SimulateCaptureEvent(ctx, keepName, next, "")
}

// SimulatePlayerPing delivers an activity notification for the player via
// the production notify path, stamping session state exactly like a real
// realm-point gain.
func (e *Engine) SimulatePlayerPing(ctx context.Context, playerID string, delta int64) bool {
	for _, p := range e.players {
		if p.ID == playerID {
			return e.notifyPlayerActive(ctx, p, delta)
		}
	}
	// Unknown id: ping a synthetic player so the channel can be exercised
	// without touching tracked state.
	return e.notifyPlayerActive(ctx, domain.TrackedPlayer{
		ID: playerID, Name: playerID, Realm: domain.RealmMidgard,
	}, delta)
}
