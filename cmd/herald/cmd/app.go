package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/Golani45/uthgard/internal/config"
	"github.com/Golani45/uthgard/internal/engine"
	"github.com/Golani45/uthgard/internal/herald"
	"github.com/Golani45/uthgard/internal/kv"
	"github.com/Golani45/uthgard/internal/notify"
	"github.com/Golani45/uthgard/pkg/logger"
)

// app holds the wired dependency graph shared by serve, tick, and players.
type app struct {
	cfg    *config.Config
	log    *slog.Logger
	store  kv.Store
	engine *engine.Engine
}

func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	limiter := herald.NewFetchLimiter(cfg.Herald.DailyFetchLimit)
	client := herald.NewHTTPClient(
		cfg.Herald.WarmapURL,
		cfg.Herald.FetchTimeout,
		herald.WithFetchLimiter(limiter),
	)

	notifier := notify.NewWebhookNotifier(
		store,
		map[notify.Channel][]string{
			notify.ChannelUnderAttack: cfg.Webhooks.UnderAttack,
			notify.ChannelCapture:     cfg.Webhooks.Capture,
			notify.ChannelPlayers:     cfg.Webhooks.Players,
		},
		cfg.Delivery.Username,
		notify.WithLogger(logger.WithComponent(log, "notify")),
		notify.WithBaseInterval(cfg.Delivery.BaseInterval),
		notify.WithGlobalFloor(cfg.Delivery.GlobalFloor),
		notify.WithChunkPause(cfg.Delivery.ChunkPause),
	)

	players, err := cfg.Players.TrackedPlayers()
	if err != nil {
		// Validation already rejected malformed JSON; treat this as an
		// empty list if it somehow slips through.
		log.Error("tracked players unavailable, skipping scan", "error", err)
		players = nil
	}

	baseURL, err := url.Parse(cfg.Herald.WarmapURL)
	if err != nil {
		baseURL = nil
	}

	eng := engine.NewEngine(store, client, notifier,
		engine.WithLogger(logger.WithComponent(log, "engine")),
		engine.WithBaseURL(baseURL),
		engine.WithAttackWindow(time.Duration(cfg.Herald.AttackWindowMin)*time.Minute),
		engine.WithCaptureWindow(time.Duration(cfg.Herald.CaptureWindowMin)*time.Minute),
		engine.WithPlayerThresholds(
			time.Duration(cfg.Players.SessionMin)*time.Minute,
			int64(cfg.Players.BigDelta),
			time.Duration(cfg.Players.RepingMin)*time.Minute,
		),
		engine.WithTrackedPlayers(players),
		engine.WithStrictDelivery(cfg.Delivery.StrictDelivery),
	)

	return &app{cfg: cfg, log: log, store: store, engine: eng}, nil
}

func buildStore(ctx context.Context, cfg *config.Config) (kv.Store, error) {
	switch cfg.Store.Backend {
	case "postgres":
		store, err := kv.NewPostgresStore(ctx, cfg.Store.Postgres.DSN())
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		if err := store.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrating kv schema: %w", err)
		}
		return store, nil
	default:
		return kv.NewMemoryStore(), nil
	}
}

// sweeper returns the store's sweeper when it has one.
func (a *app) sweeper() engine.Sweeper {
	if s, ok := a.store.(engine.Sweeper); ok {
		return s
	}
	return nil
}
