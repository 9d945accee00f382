package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Golani45/uthgard/internal/kv"
)

// Admin operations against the durable state. They clear flags, cooldowns,
// metrics counters, under-attack state, and capture gates; none of them
// removes an own: or rp: baseline. Everything ephemeral also expires by TTL.

// SetStrictDelivery toggles the strict-delivery flag in the store.
func (e *Engine) SetStrictDelivery(ctx context.Context, on bool) error {
	v := "0"
	if on {
		v = "1"
	}
	if err := e.store.Put(ctx, kv.KeyStrictFlag, v, 0); err != nil {
		return fmt.Errorf("setting strict flag: %w", err)
	}
	e.log.Info("strict delivery toggled", "on", on)
	return nil
}

// ClearCooldowns removes all per-webhook cooldowns and penalties plus the
// global cooldown.
func (e *Engine) ClearCooldowns(ctx context.Context) (int, error) {
	n, err := e.deletePrefixes(ctx, kv.PrefixCooldown, kv.PrefixPenalty)
	if err != nil {
		return n, err
	}
	if err := e.store.Delete(ctx, kv.KeyGlobalCool); err != nil {
		return n, fmt.Errorf("clearing global cooldown: %w", err)
	}
	return n, nil
}

// ClearMetrics removes the per-webhook 429 and skip counters.
func (e *Engine) ClearMetrics(ctx context.Context) (int, error) {
	return e.deletePrefixes(ctx, kv.PrefixMetric429, kv.PrefixMetricSkip)
}

// ResetUA clears the under-attack state, session, no-banner and suppress
// keys for one keep. The per-minute dedupe and claim keys are left to expire.
func (e *Engine) ResetUA(ctx context.Context, keepID string) error {
	for _, key := range []string{
		kv.UAStateKey(keepID),
		kv.UASessionKey(keepID),
		kv.UANoBannerKey(keepID),
		kv.UASuppressKey(keepID),
	} {
		if err := e.store.Delete(ctx, key); err != nil {
			return fmt.Errorf("deleting %s: %w", key, err)
		}
	}
	e.log.Info("ua state reset", "keep", keepID)
	return nil
}

// ResetAllUA clears under-attack state for every keep.
func (e *Engine) ResetAllUA(ctx context.Context) (int, error) {
	return e.deletePrefixes(ctx, "ua:state:", "alert:ua:", "alert:under:", "ua:suppress:")
}

// ClearCapture removes the capture dedupe gates for a (keep, realm) pair,
// optionally including the prev->next transition gate.
func (e *Engine) ClearCapture(ctx context.Context, keepID, realm, prev string) error {
	keys := []string{
		kv.CapOnceOwnerKey(keepID, realm),
		kv.CapSeenKey(keepID, realm),
	}
	if prev != "" {
		keys = append(keys, kv.CapOnceTransitionKey(keepID, prev, realm))
	}
	for _, key := range keys {
		if err := e.store.Delete(ctx, key); err != nil {
			return fmt.Errorf("deleting %s: %w", key, err)
		}
	}

	// cap:any carries a minute bucket, so clear by prefix.
	if _, err := e.deletePrefixes(ctx, "cap:any:"+keepID+":"+realm+":"); err != nil {
		return err
	}
	e.log.Info("capture gates cleared", "keep", keepID, "realm", realm, "prev", prev)
	return nil
}

func (e *Engine) deletePrefixes(ctx context.Context, prefixes ...string) (int, error) {
	deleted := 0
	for _, prefix := range prefixes {
		keys, err := e.store.List(ctx, prefix, 0)
		if err != nil {
			return deleted, fmt.Errorf("listing %s*: %w", prefix, err)
		}
		for _, key := range keys {
			if err := e.store.Delete(ctx, key); err != nil {
				return deleted, fmt.Errorf("deleting %s: %w", key, err)
			}
			deleted++
		}
	}
	return deleted, nil
}

// StateReport is the operator-facing health dump.
type StateReport struct {
	SnapshotHash    string            `json:"snapshot_hash,omitempty"`
	SnapshotAgeSec  int64             `json:"snapshot_age_sec,omitempty"`
	SnapshotKeeps   int               `json:"snapshot_keeps"`
	StrictDelivery  bool              `json:"strict_delivery"`
	Baselines       map[string]string `json:"baselines"`
	PlayerBaselines map[string]string `json:"player_baselines"`
	Cooldowns       map[string]string `json:"cooldowns"`
	Penalties       map[string]string `json:"penalties"`
	Metrics         map[string]string `json:"metrics"`
}

// StateReport assembles the health snapshot served by the admin API.
func (e *Engine) StateReport(ctx context.Context) (*StateReport, error) {
	report := &StateReport{
		StrictDelivery:  e.strict(ctx),
		Baselines:       map[string]string{},
		PlayerBaselines: map[string]string{},
		Cooldowns:       map[string]string{},
		Penalties:       map[string]string{},
		Metrics:         map[string]string{},
	}

	if stored := e.loadSnapshot(ctx); stored != nil {
		report.SnapshotHash = stored.Hash
		if stored.Snapshot != nil {
			report.SnapshotKeeps = len(stored.Snapshot.Keeps)
			report.SnapshotAgeSec = int64(e.nowFunc().Sub(stored.Snapshot.UpdatedAt) / time.Second)
		}
	}

	for prefix, dst := range map[string]map[string]string{
		kv.PrefixOwner:      report.Baselines,
		kv.PrefixRP:         report.PlayerBaselines,
		kv.PrefixCooldown:   report.Cooldowns,
		kv.PrefixPenalty:    report.Penalties,
		kv.PrefixMetric429:  report.Metrics,
		kv.PrefixMetricSkip: report.Metrics,
	} {
		if err := e.collect(ctx, prefix, dst); err != nil {
			return nil, err
		}
	}

	// rp:active and rp:last share the rp: prefix; keep only pure baselines.
	for k := range report.PlayerBaselines {
		if strings.Count(k, ":") != 1 {
			delete(report.PlayerBaselines, k)
		}
	}

	return report, nil
}

func (e *Engine) collect(ctx context.Context, prefix string, dst map[string]string) error {
	keys, err := e.store.List(ctx, prefix, 0)
	if err != nil {
		return fmt.Errorf("listing %s*: %w", prefix, err)
	}
	for _, key := range keys {
		v, ok, err := e.store.Get(ctx, key)
		if err != nil {
			return fmt.Errorf("getting %s: %w", key, err)
		}
		if ok {
			dst[key] = v
		}
	}
	return nil
}
