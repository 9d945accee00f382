package engine

import (
	"context"
	"strconv"

	"github.com/Golani45/uthgard/internal/kv"
	"github.com/Golani45/uthgard/internal/metrics"
	"github.com/Golani45/uthgard/internal/notify"
	domain "github.com/Golani45/uthgard/pkg/types"
)

// uaStateOff is the ua:state value while the banner is down. Any other
// non-empty value (a timestamp) means a siege session is live.
const uaStateOff = "0"

type uaCandidate struct {
	keep     domain.Keep
	stamp    string
	fallback bool
}

// detectUnderAttack runs both under-attack paths over the snapshot and
// delivers the collected embeds. Returns the number of alerts delivered.
func (e *Engine) detectUnderAttack(ctx context.Context, snap *domain.Snapshot) int {
	var candidates []uaCandidate

	for i := range snap.Keeps {
		if c := e.uaTransition(ctx, snap, &snap.Keeps[i]); c != nil {
			candidates = append(candidates, *c)
		}
	}
	candidates = append(candidates, e.uaFallback(ctx, snap)...)

	if len(candidates) == 0 {
		return 0
	}

	embeds := make([]notify.Embed, 0, len(candidates))
	for _, c := range candidates {
		embeds = append(embeds, uaEmbed(c.keep, snap.UpdatedAt))
	}

	if err := e.notifier.Send(ctx, notify.ChannelUnderAttack, embeds); err != nil {
		// Gates stay unstamped; the next tick re-evaluates the same edges.
		e.log.Error("under-attack delivery failed", "count", len(candidates), "error", err)
		return 0
	}

	stateStamp := strconv.FormatInt(e.nowFunc().UnixMilli(), 10)
	for _, c := range candidates {
		e.putBestEffort(ctx, kv.UASessionKey(c.keep.ID), stateStamp, e.siegeWindow())
		e.putBestEffort(ctx, kv.UAMinuteKey(c.keep.ID, c.stamp), "1", kv.TTLMinute)
		e.putBestEffort(ctx, kv.UAStateKey(c.keep.ID), stateStamp, e.siegeWindow())
		if c.fallback {
			e.putBestEffort(ctx, kv.UANoBannerKey(c.keep.ID), "1", e.siegeWindow())
		}
	}

	metrics.AlertsFiredTotal.WithLabelValues(string(notify.ChannelUnderAttack)).
		Add(float64(len(candidates)))
	return len(candidates)
}

// uaTransition advances the banner-driven state machine for one keep and
// returns a candidate on an unclaimed, ungated rising edge.
func (e *Engine) uaTransition(ctx context.Context, snap *domain.Snapshot, k *domain.Keep) *uaCandidate {
	stateKey := kv.UAStateKey(k.ID)

	// A recent capture mutes the flapping banner entirely.
	if e.has(ctx, kv.UASuppressKey(k.ID)) {
		e.putBestEffort(ctx, stateKey, uaStateOff, e.siegeWindow())
		e.deleteBestEffort(ctx, kv.UASessionKey(k.ID))
		return nil
	}

	state, _, err := e.store.Get(ctx, stateKey)
	if err != nil {
		e.log.Error("kv get failed", "key", stateKey, "error", err)
	}
	prevOn := state != "" && state != uaStateOff
	curr := k.HeaderUnderAttack

	switch {
	case curr && !prevOn:
		stamp := kv.MinuteStamp(snap.UpdatedAt)
		if !e.claim(ctx, kv.UAClaimKey(k.ID, stamp)) {
			return nil
		}
		if e.has(ctx, kv.UASessionKey(k.ID)) || e.has(ctx, kv.UAMinuteKey(k.ID, stamp)) {
			// Already alerted for this siege; keep the state machine
			// consistent so the falling edge is still observed.
			e.refreshState(ctx, k.ID)
			metrics.AlertsSuppressedTotal.WithLabelValues(string(notify.ChannelUnderAttack)).Inc()
			return nil
		}
		return &uaCandidate{keep: *k, stamp: stamp}

	case curr && prevOn:
		e.refreshState(ctx, k.ID)
		// Known gap: with a live session value but no session key (crash
		// between claim and stamp), we do not re-alert. Duplicates are
		// worse than the rare lost edge.
		if v, ok, _ := e.store.Get(ctx, kv.UASessionKey(k.ID)); ok {
			e.putBestEffort(ctx, kv.UASessionKey(k.ID), v, e.siegeWindow())
		}

	case !curr && prevOn:
		e.putBestEffort(ctx, stateKey, uaStateOff, e.siegeWindow())
		e.deleteBestEffort(ctx, kv.UASessionKey(k.ID))
	}

	return nil
}

func (e *Engine) refreshState(ctx context.Context, keepID string) {
	ms := strconv.FormatInt(e.nowFunc().UnixMilli(), 10)
	e.putBestEffort(ctx, kv.UAStateKey(keepID), ms, e.siegeWindow())
}

// uaFallback handles under-attack events whose keep shows no banner: rows
// seen before the banner renders, or keeps whose panel is missing it.
func (e *Engine) uaFallback(ctx context.Context, snap *domain.Snapshot) []uaCandidate {
	now := e.nowFunc()
	var out []uaCandidate
	handled := map[string]struct{}{}

	for i := range snap.Events {
		ev := &snap.Events[i]
		if ev.Kind != domain.EventUnderAttack {
			continue
		}
		if now.Sub(ev.At) > e.attackWindow {
			continue
		}
		k := snap.Keep(ev.KeepID)
		if k == nil || k.HeaderUnderAttack {
			continue
		}
		if _, dup := handled[k.ID]; dup {
			continue
		}
		if e.has(ctx, kv.UASuppressKey(k.ID)) || e.has(ctx, kv.UANoBannerKey(k.ID)) {
			continue
		}

		stamp := kv.MinuteStamp(ev.At)
		if e.has(ctx, kv.UASessionKey(k.ID)) || e.has(ctx, kv.UAMinuteKey(k.ID, stamp)) {
			metrics.AlertsSuppressedTotal.WithLabelValues(string(notify.ChannelUnderAttack)).Inc()
			continue
		}
		if !e.claim(ctx, kv.UAClaimKey(k.ID, stamp)) {
			continue
		}

		handled[k.ID] = struct{}{}
		out = append(out, uaCandidate{keep: *k, stamp: stamp, fallback: true})
	}

	return out
}
