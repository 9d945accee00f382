package engine

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Golani45/uthgard/internal/kv"
	"github.com/Golani45/uthgard/internal/notify"
	domain "github.com/Golani45/uthgard/pkg/types"
)

func playerPage(rp int64) []byte {
	return []byte(`<table><tr><td>Realm Points</td><td>` +
		strconv.FormatInt(rp, 10) + `</td></tr></table>`)
}

func sazURL() string { return "https://herald.example.com/player/saz" }

func saz() domain.TrackedPlayer {
	return domain.TrackedPlayer{
		ID: "saz", Name: "Saz", Realm: domain.RealmMidgard, URL: sazURL(),
	}
}

func playerEngine(t *testing.T, rp int64, now time.Time) (*Engine, *kv.MemoryStore, *recordingNotifier) {
	t.Helper()
	client := &fakeHerald{playerPages: map[string][]byte{sazURL(): playerPage(rp)}}
	n := &recordingNotifier{}
	e, store := newTestEngine(t, client, n, now,
		WithTrackedPlayers([]domain.TrackedPlayer{saz()}))
	return e, store, n
}

func TestPlayerScan_FirstSightingSeedsBaseline(t *testing.T) {
	t.Parallel()

	now := time.Now()
	e, store, n := playerEngine(t, 10000, now)

	require.NoError(t, e.RunPlayerScan(context.Background()))

	assert.Empty(t, n.sends)
	v, ok := getKey(t, store, kv.RPKey("saz"))
	require.True(t, ok)
	assert.Equal(t, "10000", v)
}

func TestPlayerScan_GainNotifies(t *testing.T) {
	t.Parallel()

	now := time.Now()
	e, store, n := playerEngine(t, 10450, now)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, kv.RPKey("saz"), "10000", 0))

	require.NoError(t, e.RunPlayerScan(ctx))

	sends := n.byChannel(notify.ChannelPlayers)
	require.Len(t, sends, 1)
	require.Len(t, sends[0].embeds, 1)
	assert.Equal(t, "🟢 Saz is active", sends[0].embeds[0].Title)
	assert.Equal(t, "+450 RPs gained", sends[0].embeds[0].Description)

	v, _ := getKey(t, store, kv.RPKey("saz"))
	assert.Equal(t, "10450", v)
	_, ok := getKey(t, store, kv.RPActiveKey("saz"))
	assert.True(t, ok, "session flag set")
	_, ok = getKey(t, store, kv.RPLastKey("saz"))
	assert.True(t, ok)
}

func TestPlayerScan_SessionSuppressesSmallGain(t *testing.T) {
	t.Parallel()

	now := time.Now()
	e, store, n := playerEngine(t, 10100, now)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, kv.RPKey("saz"), "10000", 0))
	require.NoError(t, store.Put(ctx, kv.RPActiveKey("saz"), "1", time.Hour))
	require.NoError(t, store.Put(ctx, kv.RPLastKey("saz"),
		strconv.FormatInt(now.Add(-time.Minute).UnixMilli(), 10), time.Hour))

	require.NoError(t, e.RunPlayerScan(ctx))

	assert.Empty(t, n.sends, "small gain inside an active session stays quiet")
	v, _ := getKey(t, store, kv.RPKey("saz"))
	assert.Equal(t, "10100", v, "baseline always advances")
}

func TestPlayerScan_BigDeltaBypassesSession(t *testing.T) {
	t.Parallel()

	now := time.Now()
	e, store, n := playerEngine(t, 10600, now)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, kv.RPKey("saz"), "10000", 0))
	require.NoError(t, store.Put(ctx, kv.RPActiveKey("saz"), "1", time.Hour))
	require.NoError(t, store.Put(ctx, kv.RPLastKey("saz"),
		strconv.FormatInt(now.Add(-time.Minute).UnixMilli(), 10), time.Hour))

	require.NoError(t, e.RunPlayerScan(ctx))

	assert.Len(t, n.byChannel(notify.ChannelPlayers), 1, "delta >= 500 bypasses the session gate")
}

func TestPlayerScan_HeartbeatRenotifies(t *testing.T) {
	t.Parallel()

	now := time.Now()
	e, store, n := playerEngine(t, 10100, now)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, kv.RPKey("saz"), "10000", 0))
	require.NoError(t, store.Put(ctx, kv.RPActiveKey("saz"), "1", time.Hour))
	require.NoError(t, store.Put(ctx, kv.RPLastKey("saz"),
		strconv.FormatInt(now.Add(-15*time.Minute).UnixMilli(), 10), time.Hour))

	require.NoError(t, e.RunPlayerScan(ctx))

	assert.Len(t, n.byChannel(notify.ChannelPlayers), 1,
		"past the heartbeat window the session re-pings")
}

func TestPlayerScan_Rollover(t *testing.T) {
	t.Parallel()

	now := time.Now()
	e, store, n := playerEngine(t, 0, now)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, kv.RPKey("saz"), "10450", 0))
	require.NoError(t, store.Put(ctx, kv.RPActiveKey("saz"), "1", time.Hour))
	require.NoError(t, store.Put(ctx, kv.RPLastKey("saz"), "123", time.Hour))

	require.NoError(t, e.RunPlayerScan(ctx))

	assert.Empty(t, n.sends)
	v, _ := getKey(t, store, kv.RPKey("saz"))
	assert.Equal(t, "0", v)
	_, ok := getKey(t, store, kv.RPActiveKey("saz"))
	assert.False(t, ok)
	_, ok = getKey(t, store, kv.RPLastKey("saz"))
	assert.False(t, ok)
}

func TestPlayerScan_NoChangeNoAction(t *testing.T) {
	t.Parallel()

	now := time.Now()
	e, store, n := playerEngine(t, 10000, now)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, kv.RPKey("saz"), "10000", 0))

	require.NoError(t, e.RunPlayerScan(ctx))

	assert.Empty(t, n.sends)
	_, ok := getKey(t, store, kv.RPActiveKey("saz"))
	assert.False(t, ok)
}

func TestPlayerScan_FetchFailureSkipsPlayer(t *testing.T) {
	t.Parallel()

	now := time.Now()
	client := &fakeHerald{playerErr: errors.New("timeout")}
	n := &recordingNotifier{}
	e, store := newTestEngine(t, client, n, now,
		WithTrackedPlayers([]domain.TrackedPlayer{saz()}))

	require.NoError(t, e.RunPlayerScan(context.Background()))

	assert.Empty(t, n.sends)
	_, ok := getKey(t, store, kv.RPKey("saz"))
	assert.False(t, ok, "failed fetch writes nothing")
}

func TestPlayerScan_PageWithoutRealmPoints(t *testing.T) {
	t.Parallel()

	now := time.Now()
	client := &fakeHerald{playerPages: map[string][]byte{
		sazURL(): []byte(`<table><tr><td>Bounty Points</td><td>7</td></tr></table>`),
	}}
	n := &recordingNotifier{}
	e, store := newTestEngine(t, client, n, now,
		WithTrackedPlayers([]domain.TrackedPlayer{saz()}))

	require.NoError(t, e.RunPlayerScan(context.Background()))

	assert.Empty(t, n.sends)
	_, ok := getKey(t, store, kv.RPKey("saz"))
	assert.False(t, ok)
}

func TestPlayerScan_NotifyFailureStillAdvancesBaseline(t *testing.T) {
	t.Parallel()

	now := time.Now()
	client := &fakeHerald{playerPages: map[string][]byte{sazURL(): playerPage(10450)}}
	n := &recordingNotifier{err: errors.New("webhook down")}
	e, store := newTestEngine(t, client, n, now,
		WithTrackedPlayers([]domain.TrackedPlayer{saz()}))
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, kv.RPKey("saz"), "10000", 0))

	require.NoError(t, e.RunPlayerScan(ctx))

	v, _ := getKey(t, store, kv.RPKey("saz"))
	assert.Equal(t, "10450", v)
	_, ok := getKey(t, store, kv.RPActiveKey("saz"))
	assert.False(t, ok, "session only starts on successful delivery")
}
