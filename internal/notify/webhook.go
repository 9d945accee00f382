package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Golani45/uthgard/internal/kv"
	"github.com/Golani45/uthgard/internal/metrics"
)

// maxEmbedsPerMessage is the webhook API limit per POST.
const maxEmbedsPerMessage = 10

const shortCooldown = 5 * time.Second

// Sentinel errors surfaced to the detectors.
var (
	// ErrChannelBusy means another invocation holds the channel gate.
	ErrChannelBusy = errors.New("channel gate held by another invocation")
	// ErrGlobalCooldown means the shared global cooldown is active; the
	// whole attempt aborts without touching further endpoints.
	ErrGlobalCooldown = errors.New("global webhook cooldown active")
	// ErrAllEndpointsFailed means every endpoint was exhausted or cooling.
	ErrAllEndpointsFailed = errors.New("no webhook endpoint accepted the batch")
)

// WebhookNotifier implements Notifier against Discord-compatible webhooks.
// All pacing state (cooldowns, penalties, last-send stamps) lives in the KV
// store so overlapping invocations share one budget.
type WebhookNotifier struct {
	endpoints map[Channel][]string
	username  string
	store     kv.Store
	client    *http.Client
	log       *slog.Logger

	baseInterval time.Duration
	globalFloor  time.Duration
	chunkPause   time.Duration

	nowFunc func() time.Time
	sleep   func(context.Context, time.Duration) error
	jitter  func() time.Duration
}

// WebhookOption configures a WebhookNotifier.
type WebhookOption func(*WebhookNotifier)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) WebhookOption {
	return func(w *WebhookNotifier) {
		w.client = c
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) WebhookOption {
	return func(w *WebhookNotifier) {
		w.log = l
	}
}

// WithBaseInterval sets the per-endpoint pacing base.
func WithBaseInterval(d time.Duration) WebhookOption {
	return func(w *WebhookNotifier) {
		w.baseInterval = d
	}
}

// WithGlobalFloor sets the minimum spacing between any two successful sends.
func WithGlobalFloor(d time.Duration) WebhookOption {
	return func(w *WebhookNotifier) {
		w.globalFloor = d
	}
}

// WithChunkPause sets the pause between consecutive 10-embed chunks.
func WithChunkPause(d time.Duration) WebhookOption {
	return func(w *WebhookNotifier) {
		w.chunkPause = d
	}
}

// WithNowFunc overrides the time function for testing.
func WithNowFunc(f func() time.Time) WebhookOption {
	return func(w *WebhookNotifier) {
		w.nowFunc = f
	}
}

// WithSleeper overrides the pacing sleep for testing.
func WithSleeper(f func(context.Context, time.Duration) error) WebhookOption {
	return func(w *WebhookNotifier) {
		w.sleep = f
	}
}

// WithJitter overrides the pacing jitter for testing.
func WithJitter(f func() time.Duration) WebhookOption {
	return func(w *WebhookNotifier) {
		w.jitter = f
	}
}

// NewWebhookNotifier creates a notifier with per-channel endpoint lists.
func NewWebhookNotifier(
	store kv.Store,
	endpoints map[Channel][]string,
	username string,
	opts ...WebhookOption,
) *WebhookNotifier {
	w := &WebhookNotifier{
		endpoints:    endpoints,
		username:     username,
		store:        store,
		client:       &http.Client{Timeout: 10 * time.Second},
		log:          slog.Default(),
		baseInterval: 2500 * time.Millisecond,
		globalFloor:  6 * time.Second,
		chunkPause:   2500 * time.Millisecond,
		nowFunc:      time.Now,
		sleep:        sleepContext,
		jitter: func() time.Duration {
			return 200*time.Millisecond + time.Duration(rand.Int64N(int64(500*time.Millisecond)))
		},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

type webhookPayload struct {
	Username string  `json:"username"`
	Embeds   []Embed `json:"embeds"`
}

// Send implements Notifier. The batch is sliced into chunks of at most 10
// embeds; each chunk walks the channel's endpoint list until one accepts it.
func (w *WebhookNotifier) Send(ctx context.Context, ch Channel, embeds []Embed) error {
	if len(embeds) == 0 {
		return nil
	}
	urls := w.endpoints[ch]
	if len(urls) == 0 {
		return fmt.Errorf("no endpoints configured for channel %s", ch)
	}

	gate := kv.GateKey(string(ch))
	claimed, err := w.store.SetIfAbsent(ctx, gate, "1", kv.TTLGate)
	if err != nil {
		w.log.Error("gate claim failed", "channel", ch, "error", err)
	} else if !claimed {
		return ErrChannelBusy
	}
	defer func() {
		if err := w.store.Delete(context.WithoutCancel(ctx), gate); err != nil {
			w.log.Error("gate release failed", "channel", ch, "error", err)
		}
	}()

	start := w.nowFunc()
	defer func() {
		metrics.NotificationDuration.Observe(time.Since(start).Seconds())
	}()

	for i := 0; i < len(embeds); i += maxEmbedsPerMessage {
		end := min(i+maxEmbedsPerMessage, len(embeds))
		if i > 0 {
			if err := w.sleep(ctx, w.chunkPause); err != nil {
				return err
			}
		}
		if err := w.deliverChunk(ctx, ch, urls, embeds[i:end]); err != nil {
			return err
		}
	}
	return nil
}

func (w *WebhookNotifier) deliverChunk(
	ctx context.Context,
	ch Channel,
	urls []string,
	embeds []Embed,
) error {
	for _, url := range urls {
		hash := kv.PathHash(url)

		if until, ok := w.cooldownUntil(ctx, kv.KeyGlobalCool); ok && w.nowFunc().Before(until) {
			return fmt.Errorf("%w (until %s)", ErrGlobalCooldown, until.Format(time.RFC3339))
		}

		if until, ok := w.cooldownUntil(ctx, kv.CooldownKey(hash)); ok && w.nowFunc().Before(until) {
			metrics.WebhookSkipsTotal.Inc()
			w.bumpKVCounter(ctx, kv.MetricSkipKey(hash))
			w.log.Debug("endpoint cooling, skipping", "channel", ch, "endpoint", hash)
			continue
		}

		if err := w.pace(ctx, hash); err != nil {
			return err
		}

		ok, err := w.post(ctx, ch, url, hash, embeds)
		if err != nil {
			return err
		}
		if ok {
			metrics.WebhookSendsTotal.WithLabelValues(string(ch)).Inc()
			return nil
		}
	}
	metrics.NotificationFailuresTotal.Inc()
	return ErrAllEndpointsFailed
}

// pace waits out the global floor, then the per-endpoint interval scaled by
// the penalty counter plus jitter.
func (w *WebhookNotifier) pace(ctx context.Context, hash string) error {
	if last, ok := w.lastSend(ctx, kv.KeyGlobalLast); ok {
		if wait := w.globalFloor - w.nowFunc().Sub(last); wait > 0 {
			if err := w.sleep(ctx, wait); err != nil {
				return err
			}
		}
	}

	penalty := w.penalty(ctx, hash)
	interval := time.Duration(float64(w.baseInterval)*(1+0.5*float64(penalty))) + w.jitter()
	if last, ok := w.lastSend(ctx, kv.LastSendKey(hash)); ok {
		if wait := interval - w.nowFunc().Sub(last); wait > 0 {
			if err := w.sleep(ctx, wait); err != nil {
				return err
			}
		}
	}
	return nil
}

// post returns (delivered, fatal error). A false/nil result means this
// endpoint failed and the caller should try the next one.
func (w *WebhookNotifier) post(
	ctx context.Context,
	ch Channel,
	url, hash string,
	embeds []Embed,
) (bool, error) {
	body, err := json.Marshal(webhookPayload{Username: w.username, Embeds: embeds})
	if err != nil {
		return false, fmt.Errorf("marshaling webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("creating webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		w.log.Error("webhook network error", "channel", ch, "endpoint", hash, "error", err)
		w.setCooldown(ctx, hash, shortCooldown)
		w.bumpPenalty(ctx, hash)
		return false, nil
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		w.recordSuccess(ctx, hash, resp)
		return true, nil

	case resp.StatusCode == http.StatusTooManyRequests || isCloudflare1015(respBody):
		retry, global := parseRateLimit(resp, respBody)
		metrics.Webhook429sTotal.Inc()
		w.bumpKVCounter(ctx, kv.Metric429Key(hash))
		if global {
			w.setGlobalCooldown(ctx, retry)
		}
		w.setCooldown(ctx, hash, retry)
		w.bumpPenalty(ctx, hash)
		w.log.Warn("webhook rate limited",
			"channel", ch, "endpoint", hash, "retry_after", retry, "global", global)
		return false, nil

	case resp.StatusCode >= 500:
		retry := headerSeconds(resp, "Retry-After", shortCooldown)
		w.setCooldown(ctx, hash, retry)
		w.bumpPenalty(ctx, hash)
		w.log.Warn("webhook server error",
			"channel", ch, "endpoint", hash, "status", resp.StatusCode)
		return false, nil

	default:
		// Permanent failures get no cooldown; the next tick retries.
		w.log.Error("webhook rejected payload",
			"channel", ch, "endpoint", hash,
			"status", resp.StatusCode, "body", truncate(string(respBody), 128))
		return false, nil
	}
}

func (w *WebhookNotifier) recordSuccess(ctx context.Context, hash string, resp *http.Response) {
	if remaining, err := strconv.Atoi(resp.Header.Get("X-RateLimit-Remaining")); err == nil && remaining <= 1 {
		if reset := headerSeconds(resp, "X-RateLimit-Reset-After", 0); reset > 0 {
			w.setCooldown(ctx, hash, reset)
		}
	}

	ms := strconv.FormatInt(w.nowFunc().UnixMilli(), 10)
	w.putBestEffort(ctx, kv.LastSendKey(hash), ms, kv.TTLLastSend)
	w.putBestEffort(ctx, kv.KeyGlobalLast, ms, kv.TTLLastSend)
	if err := w.store.Delete(ctx, kv.PenaltyKey(hash)); err != nil {
		w.log.Error("penalty clear failed", "endpoint", hash, "error", err)
	}
}

func (w *WebhookNotifier) cooldownUntil(ctx context.Context, key string) (time.Time, bool) {
	v, ok, err := w.store.Get(ctx, key)
	if err != nil || !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func (w *WebhookNotifier) lastSend(ctx context.Context, key string) (time.Time, bool) {
	v, ok, err := w.store.Get(ctx, key)
	if err != nil || !ok {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

func (w *WebhookNotifier) penalty(ctx context.Context, hash string) int {
	v, ok, err := w.store.Get(ctx, kv.PenaltyKey(hash))
	if err != nil || !ok {
		return 0
	}
	p, err := strconv.Atoi(v)
	if err != nil || p < 0 {
		return 0
	}
	return min(p, 4)
}

func (w *WebhookNotifier) bumpPenalty(ctx context.Context, hash string) {
	p := min(w.penalty(ctx, hash)+1, 4)
	w.putBestEffort(ctx, kv.PenaltyKey(hash), strconv.Itoa(p), kv.TTLPenalty)
}

func (w *WebhookNotifier) setCooldown(ctx context.Context, hash string, d time.Duration) {
	until := w.nowFunc().Add(d)
	w.putBestEffort(ctx, kv.CooldownKey(hash), until.Format(time.RFC3339), d)
}

func (w *WebhookNotifier) setGlobalCooldown(ctx context.Context, d time.Duration) {
	until := w.nowFunc().Add(d)
	w.putBestEffort(ctx, kv.KeyGlobalCool, until.Format(time.RFC3339), d)
}

func (w *WebhookNotifier) bumpKVCounter(ctx context.Context, key string) {
	n := 0
	if v, ok, err := w.store.Get(ctx, key); err == nil && ok {
		n, _ = strconv.Atoi(v)
	}
	w.putBestEffort(ctx, key, strconv.Itoa(n+1), kv.TTLMetric)
}

func (w *WebhookNotifier) putBestEffort(ctx context.Context, key, value string, ttl time.Duration) {
	if err := w.store.Put(ctx, key, value, ttl); err != nil {
		w.log.Error("kv put failed", "key", key, "error", err)
	}
}

// parseRateLimit extracts the retry interval and global marker from a 429.
// Sources tried in order: Retry-After header, X-RateLimit-Reset-After
// header, JSON body retry_after. The body's global flag counts even when
// the X-RateLimit-Global header is absent.
func parseRateLimit(resp *http.Response, body []byte) (time.Duration, bool) {
	global := strings.EqualFold(resp.Header.Get("X-RateLimit-Global"), "true")

	retry := headerSeconds(resp, "Retry-After", 0)
	if retry == 0 {
		retry = headerSeconds(resp, "X-RateLimit-Reset-After", 0)
	}

	var parsed struct {
		RetryAfter float64 `json:"retry_after"`
		Global     bool    `json:"global"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if retry == 0 && parsed.RetryAfter > 0 {
			retry = time.Duration(parsed.RetryAfter * float64(time.Second))
		}
		global = global || parsed.Global
	}

	if retry == 0 {
		retry = shortCooldown
	}
	return retry, global
}

func headerSeconds(resp *http.Response, name string, fallback time.Duration) time.Duration {
	v := resp.Header.Get(name)
	if v == "" {
		return fallback
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil || secs <= 0 {
		return fallback
	}
	return time.Duration(secs * float64(time.Second))
}

func isCloudflare1015(body []byte) bool {
	return bytes.Contains(body, []byte("error code: 1015"))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
