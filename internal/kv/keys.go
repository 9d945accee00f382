package kv

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// Key schema. Every ephemeral key carries a TTL; only baselines ("own:",
// "rp:"), the stored snapshot, and the strict-delivery flag live forever.
const (
	KeyWarmap        = "warmap"
	KeyGlobalLast    = "discord:global:last"
	KeyGlobalCool    = "discord:global:cooldown_until"
	KeyStrictFlag    = "flags:strict_delivery"
	PrefixOwner      = "own:"
	PrefixCooldown   = "discord:cooldown:"
	PrefixPenalty    = "discord:penalty:"
	PrefixRP         = "rp:"
	PrefixMetric429  = "metrics:429:"
	PrefixMetricSkip = "metrics:skip:"
)

// TTLs for ephemeral state.
const (
	TTLSuppress = 120 * time.Second
	TTLClaim    = 120 * time.Second
	TTLMinute   = 6 * time.Hour
	TTLCapOnce  = 20 * time.Minute
	TTLGate     = 5 * time.Second
	TTLLastSend = time.Hour
	TTLPenalty  = 30 * time.Minute
	TTLMetric   = 6 * time.Hour
)

// OwnerKey holds the baseline owner used for capture transition detection.
func OwnerKey(keepID string) string { return PrefixOwner + keepID }

// UAStateKey holds a timestamp string while the siege banner is up, "0" when
// it is down.
func UAStateKey(keepID string) string { return "ua:state:" + keepID }

// UASessionKey gates one under-attack alert per siege.
func UASessionKey(keepID string) string { return "alert:ua:start:" + keepID }

// UASuppressKey mutes under-attack alerts briefly after a capture.
func UASuppressKey(keepID string) string { return "ua:suppress:" + keepID }

// UAClaimKey is the cross-invocation claim for an under-attack rising edge.
func UAClaimKey(keepID, minuteStamp string) string {
	return "ua:claim:" + keepID + ":" + minuteStamp
}

// UAMinuteKey dedupes under-attack alerts within a minute bucket.
func UAMinuteKey(keepID, minuteStamp string) string {
	return "alert:under:" + keepID + ":" + minuteStamp
}

// UANoBannerKey suppresses repeat event-driven under-attack alerts while a
// siege window is open.
func UANoBannerKey(keepID string) string { return "alert:ua:nobanner:" + keepID }

// CapOnceOwnerKey gates one capture alert per (keep, new owner).
func CapOnceOwnerKey(keepID string, newOwner string) string {
	return "cap:once:" + keepID + ":" + newOwner
}

// CapOnceTransitionKey gates one capture alert per ownership transition.
func CapOnceTransitionKey(keepID, prev, next string) string {
	return "cap:once:" + keepID + ":" + prev + "->" + next
}

// CapSeenKey is the redundant capture dedupe stamp.
func CapSeenKey(keepID, newOwner string) string {
	return "cap:seen:" + keepID + ":" + newOwner
}

// CapAnyKey is the unified capture dedupe across both detection paths.
func CapAnyKey(keepID, newOwner, minuteStamp string) string {
	return "cap:any:" + keepID + ":" + newOwner + ":" + minuteStamp
}

// CapClaimKey is the cross-invocation claim for a capture.
func CapClaimKey(keepID, newOwner, minuteStamp string) string {
	return "cap:claim:" + keepID + ":" + newOwner + ":" + minuteStamp
}

// RPKey holds a tracked player's lifetime realm-point baseline.
func RPKey(playerID string) string { return PrefixRP + playerID }

// RPActiveKey marks an active play session.
func RPActiveKey(playerID string) string { return "rp:active:" + playerID }

// RPLastKey holds the last player-notify time in epoch milliseconds.
func RPLastKey(playerID string) string { return "rp:last:" + playerID }

// CooldownKey holds the per-webhook cooldown deadline as RFC3339.
func CooldownKey(pathHash string) string { return PrefixCooldown + pathHash }

// LastSendKey holds the per-webhook last successful send in epoch ms.
func LastSendKey(pathHash string) string { return "discord:last:" + pathHash }

// PenaltyKey holds the per-webhook pacing multiplier counter (0..4).
func PenaltyKey(pathHash string) string { return PrefixPenalty + pathHash }

// GateKey serializes overlapping deliveries against one channel.
func GateKey(channel string) string { return "discord:gate:" + channel }

// Metric429Key counts rate-limit responses per webhook.
func Metric429Key(pathHash string) string { return PrefixMetric429 + pathHash }

// MetricSkipKey counts cooldown skips per webhook.
func MetricSkipKey(pathHash string) string { return PrefixMetricSkip + pathHash }

// MinuteStamp buckets an instant to the minute. Events reparsed across ticks
// land in the same bucket, so dedupe keys do not churn.
func MinuteStamp(t time.Time) string {
	return strconv.FormatInt(t.Unix()/60, 10)
}

// PathHash derives the short stable identifier a webhook URL is keyed under.
// The full URL never appears in the store.
func PathHash(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])[:12]
}
