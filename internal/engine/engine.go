// Package engine orchestrates the alerting pipeline: fetch the warmap,
// parse it, diff against KV-resident baselines, and deliver de-duplicated
// notifications. Detection state machines live in ua.go, capture.go, and
// players.go; all durable state goes through the kv.Store.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/Golani45/uthgard/internal/herald"
	"github.com/Golani45/uthgard/internal/kv"
	"github.com/Golani45/uthgard/internal/metrics"
	"github.com/Golani45/uthgard/internal/notify"
	domain "github.com/Golani45/uthgard/pkg/types"
	"github.com/Golani45/uthgard/pkg/warmap"
)

// Default detection windows.
const (
	defaultAttackWindow  = 7 * time.Minute
	defaultCaptureWindow = 12 * time.Minute
	defaultSession       = 30 * time.Minute
	defaultBigDelta      = 500
	defaultReping        = 10 * time.Minute
)

// Engine runs the transition-detection and delivery pipeline.
type Engine struct {
	store    kv.Store
	herald   herald.Client
	notifier notify.Notifier
	log      *slog.Logger

	baseURL       *url.URL
	attackWindow  time.Duration
	captureWindow time.Duration
	session       time.Duration
	bigDelta      int64
	reping        time.Duration
	players       []domain.TrackedPlayer
	strictDefault bool

	nowFunc func() time.Time
}

// Option configures the Engine.
type Option func(*Engine)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithBaseURL sets the URL emblem images are resolved against.
func WithBaseURL(u *url.URL) Option {
	return func(e *Engine) { e.baseURL = u }
}

// WithAttackWindow sets the under-attack event freshness window.
func WithAttackWindow(d time.Duration) Option {
	return func(e *Engine) { e.attackWindow = d }
}

// WithCaptureWindow sets the capture event freshness window.
func WithCaptureWindow(d time.Duration) Option {
	return func(e *Engine) { e.captureWindow = d }
}

// WithPlayerThresholds sets the tracked-player session, big-delta, and
// heartbeat knobs.
func WithPlayerThresholds(session time.Duration, bigDelta int64, reping time.Duration) Option {
	return func(e *Engine) {
		e.session = session
		e.bigDelta = bigDelta
		e.reping = reping
	}
}

// WithTrackedPlayers sets the player list for the activity scan.
func WithTrackedPlayers(players []domain.TrackedPlayer) Option {
	return func(e *Engine) { e.players = players }
}

// WithStrictDelivery sets the strict-delivery default used when the KV flag
// is unset.
func WithStrictDelivery(strict bool) Option {
	return func(e *Engine) { e.strictDefault = strict }
}

// WithNowFunc overrides the time function for testing.
func WithNowFunc(f func() time.Time) Option {
	return func(e *Engine) { e.nowFunc = f }
}

// NewEngine creates an Engine with injected dependencies.
func NewEngine(
	store kv.Store,
	client herald.Client,
	notifier notify.Notifier,
	opts ...Option,
) *Engine {
	e := &Engine{
		store:         store,
		herald:        client,
		notifier:      notifier,
		log:           slog.Default(),
		attackWindow:  defaultAttackWindow,
		captureWindow: defaultCaptureWindow,
		session:       defaultSession,
		bigDelta:      defaultBigDelta,
		reping:        defaultReping,
		nowFunc:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// siegeWindow is the TTL for under-attack session keys. Longer than the
// attack window so a session survives brief banner dropouts.
func (e *Engine) siegeWindow() time.Duration {
	return e.attackWindow * 4
}

// storedSnapshot is the persisted warmap envelope.
type storedSnapshot struct {
	Hash     string           `json:"hash"`
	Snapshot *domain.Snapshot `json:"snapshot"`
}

// RunTick executes one full pipeline pass: fetch, parse, diff, deliver,
// persist. An upstream fetch failure aborts the tick with no state changes.
func (e *Engine) RunTick(ctx context.Context) error {
	start := time.Now()
	metrics.TicksTotal.Inc()
	defer func() {
		metrics.TickDuration.Observe(time.Since(start).Seconds())
	}()

	prev := e.loadSnapshot(ctx)

	data, err := e.herald.FetchWarmap(ctx)
	if err != nil {
		metrics.TickErrorsTotal.Inc()
		return fmt.Errorf("fetching warmap: %w", err)
	}

	snap, err := warmap.Parse(data, warmap.Options{
		Now:          e.nowFunc(),
		BaseURL:      e.baseURL,
		AttackWindow: e.attackWindow,
	})
	if err != nil {
		metrics.TickErrorsTotal.Inc()
		return fmt.Errorf("parsing warmap: %w", err)
	}

	metrics.SnapshotKeeps.Set(float64(len(snap.Keeps)))

	if len(snap.Keeps) == 0 {
		// Degraded parse. Baselines are never advanced from empty input.
		e.log.Warn("warmap parse yielded no keeps, skipping diff")
		return nil
	}

	uaSent := e.detectUnderAttack(ctx, snap)
	capSent := e.detectCaptures(ctx, snap)

	hash := snap.CanonicalHash()
	if prev == nil || prev.Hash != hash {
		e.persistSnapshot(ctx, snap, hash)
	}

	e.log.Info("tick complete",
		"keeps", len(snap.Keeps),
		"events", len(snap.Events),
		"ua_sent", uaSent,
		"captures_sent", capSent,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

func (e *Engine) loadSnapshot(ctx context.Context) *storedSnapshot {
	v, ok, err := e.store.Get(ctx, kv.KeyWarmap)
	if err != nil {
		e.log.Error("loading stored snapshot failed", "error", err)
		return nil
	}
	if !ok {
		return nil
	}
	var stored storedSnapshot
	if err := json.Unmarshal([]byte(v), &stored); err != nil {
		e.log.Error("stored snapshot corrupt, ignoring", "error", err)
		return nil
	}
	return &stored
}

func (e *Engine) persistSnapshot(ctx context.Context, snap *domain.Snapshot, hash string) {
	b, err := json.Marshal(storedSnapshot{Hash: hash, Snapshot: snap})
	if err != nil {
		e.log.Error("encoding snapshot failed", "error", err)
		return
	}
	if err := e.store.Put(ctx, kv.KeyWarmap, string(b), 0); err != nil {
		e.log.Error("persisting snapshot failed", "error", err)
		return
	}
	metrics.SnapshotChanged.Inc()
}

// strict reports whether strict delivery is on: the KV flag wins, the
// config default applies when the flag is unset.
func (e *Engine) strict(ctx context.Context) bool {
	v, ok, err := e.store.Get(ctx, kv.KeyStrictFlag)
	if err != nil || !ok {
		return e.strictDefault
	}
	return v == "1"
}

func (e *Engine) putBestEffort(ctx context.Context, key, value string, ttl time.Duration) {
	if err := e.store.Put(ctx, key, value, ttl); err != nil {
		e.log.Error("kv put failed", "key", key, "error", err)
	}
}

func (e *Engine) deleteBestEffort(ctx context.Context, key string) {
	if err := e.store.Delete(ctx, key); err != nil {
		e.log.Error("kv delete failed", "key", key, "error", err)
	}
}

// claim attempts a short-lived claim key. Claims only reduce the chance of
// duplicate work across overlapping invocations; the dedupe stamps written
// after delivery are the real barrier.
func (e *Engine) claim(ctx context.Context, key string) bool {
	claimed, err := e.store.SetIfAbsent(ctx, key, "1", kv.TTLClaim)
	if err != nil {
		e.log.Error("claim failed", "key", key, "error", err)
		return false
	}
	return claimed
}

func (e *Engine) has(ctx context.Context, key string) bool {
	_, ok, err := e.store.Get(ctx, key)
	if err != nil {
		e.log.Error("kv get failed", "key", key, "error", err)
		return false
	}
	return ok
}
