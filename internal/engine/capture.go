package engine

import (
	"context"

	"github.com/Golani45/uthgard/internal/kv"
	"github.com/Golani45/uthgard/internal/metrics"
	"github.com/Golani45/uthgard/internal/notify"
	"github.com/Golani45/uthgard/pkg/logger"
	domain "github.com/Golani45/uthgard/pkg/types"
)

type capCandidate struct {
	keepID   string
	keepName string
	prev     domain.Realm // empty on the event path
	next     domain.Realm
	leader   string
	at       string // minute bucket of the corroborating event
	tsISO    string
	ownerSrc bool // ownership path advances own:, the event path never does
}

// detectCaptures runs both capture paths over the snapshot and delivers the
// collected embeds. Returns the number of alerts delivered.
func (e *Engine) detectCaptures(ctx context.Context, snap *domain.Snapshot) int {
	var candidates []capCandidate
	claimed := map[string]struct{}{}
	seeded := map[string]struct{}{}

	candidates = append(candidates, e.captureFromOwnership(ctx, snap, claimed, seeded)...)
	candidates = append(candidates, e.captureFromEvents(ctx, snap, claimed, seeded)...)

	if len(candidates) == 0 {
		return 0
	}

	embeds := make([]notify.Embed, 0, len(candidates))
	for _, c := range candidates {
		embeds = append(embeds, captureEmbed(c))
	}

	err := e.notifier.Send(ctx, notify.ChannelCapture, embeds)
	if err != nil {
		e.log.Error("capture delivery failed", "count", len(candidates), "error", err)
		if e.strict(ctx) {
			// Strict delivery: leave baselines and dedupe untouched so the
			// next tick retries, accepting possible duplicates. The claims
			// must be released too; their TTL outlives the tick cadence and
			// a held claim silently advances the baseline on retry.
			for _, c := range candidates {
				e.deleteBestEffort(ctx, kv.CapClaimKey(c.keepID, string(c.next), c.at))
			}
			return 0
		}
		// Freshness-first: advance state anyway so a prolonged outage does
		// not queue a storm of backlogged alerts.
	}

	for _, c := range candidates {
		e.stampCapture(ctx, c)
	}

	if err != nil {
		return 0
	}
	metrics.AlertsFiredTotal.WithLabelValues(string(notify.ChannelCapture)).
		Add(float64(len(candidates)))
	return len(candidates)
}

// captureFromOwnership detects baseline-vs-snapshot ownership flips. A flip
// without a fresh corroborating captured event advances the baseline
// silently; the flip alone is not trustworthy enough to notify on.
func (e *Engine) captureFromOwnership(
	ctx context.Context,
	snap *domain.Snapshot,
	claimed map[string]struct{},
	seeded map[string]struct{},
) []capCandidate {
	var out []capCandidate

	for i := range snap.Keeps {
		k := &snap.Keeps[i]

		baseline, ok, err := e.store.Get(ctx, kv.OwnerKey(k.ID))
		if err != nil {
			e.log.Error("kv get failed", "key", kv.OwnerKey(k.ID), "error", err)
			continue
		}
		if !ok {
			// First sighting: seed, never alert. The event path honors the
			// same rule via the seeded set.
			e.putBestEffort(ctx, kv.OwnerKey(k.ID), string(k.Owner), 0)
			seeded[k.ID] = struct{}{}
			continue
		}
		prev := domain.Realm(baseline)
		if prev == k.Owner {
			continue
		}

		ev := e.corroboratingEvent(snap, k.ID, k.Owner)
		if ev == nil {
			logger.WithKeep(e.log, k.ID).Info("ownership flip without fresh event, advancing baseline",
				"prev", prev, "next", k.Owner)
			e.putBestEffort(ctx, kv.OwnerKey(k.ID), string(k.Owner), 0)
			continue
		}

		stamp := kv.MinuteStamp(ev.At)
		if e.captureGated(ctx, k.ID, string(prev), string(k.Owner), stamp) {
			e.putBestEffort(ctx, kv.OwnerKey(k.ID), string(k.Owner), 0)
			metrics.AlertsSuppressedTotal.WithLabelValues(string(notify.ChannelCapture)).Inc()
			// The event path cannot see the transition gate (it has no prev),
			// so mark the pair handled to keep it from re-firing.
			claimed[k.ID+":"+string(k.Owner)] = struct{}{}
			continue
		}
		if !e.claim(ctx, kv.CapClaimKey(k.ID, string(k.Owner), stamp)) {
			e.putBestEffort(ctx, kv.OwnerKey(k.ID), string(k.Owner), 0)
			continue
		}

		claimed[k.ID+":"+string(k.Owner)] = struct{}{}
		out = append(out, capCandidate{
			keepID:   k.ID,
			keepName: k.Name,
			prev:     prev,
			next:     k.Owner,
			leader:   ev.Leader,
			at:       stamp,
			tsISO:    isoTime(ev.At),
			ownerSrc: true,
		})
	}

	return out
}

// captureFromEvents walks the recent-events list. It shares the unified
// gates with the ownership path but never touches own: baselines; the
// ownership path is authoritative for those.
func (e *Engine) captureFromEvents(
	ctx context.Context,
	snap *domain.Snapshot,
	claimed map[string]struct{},
	seeded map[string]struct{},
) []capCandidate {
	now := e.nowFunc()
	var out []capCandidate

	for i := range snap.Events {
		ev := &snap.Events[i]
		if ev.Kind != domain.EventCaptured || ev.NewOwner == "" {
			continue
		}
		if now.Sub(ev.At) > e.captureWindow {
			continue
		}
		// First-sighting rule: a keep whose baseline was seeded this tick
		// (or never existed) gets no capture alert from either path.
		if _, fresh := seeded[ev.KeepID]; fresh {
			continue
		}
		if !e.has(ctx, kv.OwnerKey(ev.KeepID)) {
			continue
		}
		key := ev.KeepID + ":" + string(ev.NewOwner)
		if _, dup := claimed[key]; dup {
			continue
		}

		stamp := kv.MinuteStamp(ev.At)
		if e.captureGated(ctx, ev.KeepID, "", string(ev.NewOwner), stamp) {
			metrics.AlertsSuppressedTotal.WithLabelValues(string(notify.ChannelCapture)).Inc()
			continue
		}
		if !e.claim(ctx, kv.CapClaimKey(ev.KeepID, string(ev.NewOwner), stamp)) {
			continue
		}

		claimed[key] = struct{}{}
		out = append(out, capCandidate{
			keepID:   ev.KeepID,
			keepName: ev.KeepName,
			next:     ev.NewOwner,
			leader:   ev.Leader,
			at:       stamp,
			tsISO:    isoTime(ev.At),
		})
	}

	return out
}

// corroboratingEvent finds a captured event for the keep and new owner
// within the capture window. An event exactly at the window boundary is
// still fresh.
func (e *Engine) corroboratingEvent(snap *domain.Snapshot, keepID string, owner domain.Realm) *domain.Event {
	now := e.nowFunc()
	for i := range snap.Events {
		ev := &snap.Events[i]
		if ev.Kind != domain.EventCaptured || ev.KeepID != keepID || ev.NewOwner != owner {
			continue
		}
		if now.Sub(ev.At) <= e.captureWindow {
			return ev
		}
	}
	return nil
}

// captureGated reports whether any unified dedupe gate is already set.
// Gates are checked in order; prev may be empty on the event path.
func (e *Engine) captureGated(ctx context.Context, keepID, prev, next, stamp string) bool {
	if prev != "" && e.has(ctx, kv.CapOnceTransitionKey(keepID, prev, next)) {
		return true
	}
	return e.has(ctx, kv.CapOnceOwnerKey(keepID, next)) ||
		e.has(ctx, kv.CapAnyKey(keepID, next, stamp)) ||
		e.has(ctx, kv.CapSeenKey(keepID, next))
}

// stampCapture writes the post-delivery side effects: dedupe stamps, the
// advanced baseline (ownership path only), and the under-attack mute that
// stops the banner flapping right after a capture.
func (e *Engine) stampCapture(ctx context.Context, c capCandidate) {
	next := string(c.next)
	e.putBestEffort(ctx, kv.CapSeenKey(c.keepID, next), "1", kv.TTLCapOnce)
	e.putBestEffort(ctx, kv.CapAnyKey(c.keepID, next, c.at), "1", kv.TTLMinute)
	e.putBestEffort(ctx, kv.CapOnceOwnerKey(c.keepID, next), "1", kv.TTLCapOnce)
	if c.prev != "" {
		e.putBestEffort(ctx, kv.CapOnceTransitionKey(c.keepID, string(c.prev), next), "1", kv.TTLCapOnce)
	}
	if c.ownerSrc {
		e.putBestEffort(ctx, kv.OwnerKey(c.keepID), next, 0)
	}

	e.deleteBestEffort(ctx, kv.UASessionKey(c.keepID))
	e.putBestEffort(ctx, kv.UAStateKey(c.keepID), uaStateOff, e.siegeWindow())
	e.putBestEffort(ctx, kv.UASuppressKey(c.keepID), "1", kv.TTLSuppress)
}
