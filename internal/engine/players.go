package engine

import (
	"context"
	"strconv"

	"github.com/Golani45/uthgard/internal/kv"
	"github.com/Golani45/uthgard/internal/metrics"
	"github.com/Golani45/uthgard/internal/notify"
	domain "github.com/Golani45/uthgard/pkg/types"
	"github.com/Golani45/uthgard/pkg/warmap"
)

// RunPlayerScan polls each tracked player's profile sequentially (the
// herald client paces the requests) and raises "player is active"
// notifications when lifetime realm points advance. No player's failure
// aborts the scan for the others.
func (e *Engine) RunPlayerScan(ctx context.Context) error {
	scanned := 0
	notified := 0

	for _, p := range e.players {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		data, err := e.herald.FetchPlayerPage(ctx, p.URL)
		if err != nil {
			metrics.PlayerScanErrorsTotal.Inc()
			e.log.Error("player fetch failed", "player", p.ID, "error", err)
			continue
		}

		rp, found, err := warmap.ParseRealmPoints(data)
		if err != nil || !found {
			metrics.PlayerScanErrorsTotal.Inc()
			e.log.Warn("no realm points found on profile", "player", p.ID)
			continue
		}

		metrics.PlayersScannedTotal.Inc()
		scanned++
		if e.processPlayer(ctx, p, rp) {
			notified++
		}
	}

	e.log.Info("player scan complete", "scanned", scanned, "notified", notified)
	return nil
}

// processPlayer advances one player's realm-point state machine. Returns
// true when an activity alert was delivered.
func (e *Engine) processPlayer(ctx context.Context, p domain.TrackedPlayer, rp int64) bool {
	baseKey := kv.RPKey(p.ID)

	baseline, ok, err := e.store.Get(ctx, baseKey)
	if err != nil {
		e.log.Error("kv get failed", "key", baseKey, "error", err)
		return false
	}
	if !ok {
		e.putBestEffort(ctx, baseKey, strconv.FormatInt(rp, 10), 0)
		return false
	}

	base, err := strconv.ParseInt(baseline, 10, 64)
	if err != nil {
		e.log.Error("corrupt rp baseline, resetting", "player", p.ID, "value", baseline)
		base = rp
	}

	switch {
	case rp < base:
		// Rollover: the server reset lifetime totals.
		e.log.Info("realm point rollover", "player", p.ID, "baseline", base, "current", rp)
		e.putBestEffort(ctx, baseKey, strconv.FormatInt(rp, 10), 0)
		e.deleteBestEffort(ctx, kv.RPActiveKey(p.ID))
		e.deleteBestEffort(ctx, kv.RPLastKey(p.ID))
		return false

	case rp == base:
		return false
	}

	delta := rp - base
	notified := false
	if e.shouldNotifyPlayer(ctx, p.ID, delta) {
		notified = e.notifyPlayerActive(ctx, p, delta)
	}

	// The baseline always advances, even when delivery failed; the next
	// gain is measured from here.
	e.putBestEffort(ctx, baseKey, strconv.FormatInt(rp, 10), 0)
	return notified
}

// shouldNotifyPlayer applies the session/big-delta/heartbeat rules.
func (e *Engine) shouldNotifyPlayer(ctx context.Context, playerID string, delta int64) bool {
	if !e.has(ctx, kv.RPActiveKey(playerID)) {
		return true
	}
	if delta >= e.bigDelta {
		return true
	}

	last, ok, err := e.store.Get(ctx, kv.RPLastKey(playerID))
	if err != nil || !ok {
		return true
	}
	ms, err := strconv.ParseInt(last, 10, 64)
	if err != nil {
		return true
	}
	return e.nowFunc().Sub(timeFromMillis(ms)) > e.reping
}

// notifyPlayerActive delivers the activity embed and stamps the session
// state. Shared by the scan and the simulate endpoint.
func (e *Engine) notifyPlayerActive(ctx context.Context, p domain.TrackedPlayer, delta int64) bool {
	embed := playerEmbed(p, delta, e.nowFunc())
	if err := e.notifier.Send(ctx, notify.ChannelPlayers, []notify.Embed{embed}); err != nil {
		e.log.Error("player notify failed", "player", p.ID, "error", err)
		return false
	}

	e.putBestEffort(ctx, kv.RPActiveKey(p.ID), "1", e.session)
	e.putBestEffort(ctx, kv.RPLastKey(p.ID),
		strconv.FormatInt(e.nowFunc().UnixMilli(), 10), kv.TTLLastSend)
	metrics.AlertsFiredTotal.WithLabelValues(string(notify.ChannelPlayers)).Inc()
	return true
}
