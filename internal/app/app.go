// Package app assembles the intake bot: storage, sessions, the state
// machine and the Telegram routes that drive it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/m3rciful/intakebot/core/bootstrap"
	"github.com/m3rciful/intakebot/core/logger"
	coretelegram "github.com/m3rciful/intakebot/core/telegram"
	"github.com/m3rciful/intakebot/core/telegram/sender"
	"github.com/m3rciful/intakebot/core/telegram/state"
	"github.com/m3rciful/intakebot/internal/catalog"
	"github.com/m3rciful/intakebot/internal/config"
	"github.com/m3rciful/intakebot/internal/intake"
	"github.com/m3rciful/intakebot/internal/metrics"
	"github.com/m3rciful/intakebot/internal/requests"
)

const sweepEvery = 10 * time.Minute

// App owns every long-lived dependency of the bot.
type App struct {
	cfg *config.Config
	db  *sqlx.DB
	rdb redis.UniversalClient

	memory   *state.MemoryStore[intake.SessionState]
	sessions *state.Registry[intake.SessionState]
	machine  *intake.Machine
}

// New bootstraps the database, seeds the catalog and builds sessions.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	res, err := bootstrap.Run(ctx, bootstrap.Options{
		Config:   &cfg.Config,
		Database: cfg.Database,
		Seeders:  []bootstrap.Seeder{catalog.Seeder{Path: cfg.Catalog.SeedFile}},
	})
	if err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, db: res.DB}
	if err := a.initSessions(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	a.machine = intake.NewMachine(catalog.NewRepository(res.DB), requests.NewRepository(res.DB), cfg.Texts)

	metrics.MustRegister()
	metrics.SessionsInFlight(a.sessions.Active)
	return a, nil
}

func (a *App) initSessions(ctx context.Context) error {
	opts := state.Options{LockTTL: a.cfg.Session.LockTTL}
	fresh := intake.NewSession

	if a.cfg.Session.Store == config.SessionStoreRedis || a.cfg.Session.Lock {
		a.rdb = redis.NewClient(&redis.Options{
			Addr:     a.cfg.Redis.Addr,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := a.rdb.Ping(pingCtx).Err(); err != nil {
			return fmt.Errorf("redis ping %s: %w", a.cfg.Redis.Addr, err)
		}
		if a.cfg.Session.Lock {
			opts.Locker = state.NewRedisLocker(a.rdb, a.cfg.Redis.Prefix)
		}
	}

	var store state.Store[intake.SessionState]
	if a.cfg.Session.Store == config.SessionStoreRedis {
		store = state.NewRedisStore[intake.SessionState](a.rdb, a.cfg.Redis.Prefix+"session:", a.cfg.Session.TTL)
	} else {
		a.memory = state.NewMemoryStore[intake.SessionState](a.cfg.Session.TTL)
		store = a.memory
	}
	a.sessions = state.NewRegistry(store, fresh, opts)

	logger.Info(ctx, "tg.session", "session.store",
		slog.String("mode", a.cfg.Session.Store),
		slog.Bool("lock", opts.Locker != nil),
		slog.Duration("ttl", a.cfg.Session.TTL),
	)
	return nil
}

// TelegramRunOptions implements cmd.TelegramApp.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	core := &a.cfg.Config
	return coretelegram.RunOptions{
		Config:            core,
		Registry:          coretelegram.NewRegistry(),
		DispatcherOptions: sender.Options{OnDone: metrics.ObserveSend},
		Middlewares: func(coretelegram.Runtime) []coretelegram.Middleware {
			return coretelegram.DefaultMiddlewares(core, nil)
		},
		Routes: func(rt coretelegram.Runtime) []coretelegram.Route {
			h := NewHandler(a.machine, a.sessions, NewOutbox(rt.Bot, core.Telegram.AdminID))
			return h.Register(rt.Registry)
		},
		OnStart: a.onStart,
	}, nil
}

func (a *App) onStart(ctx context.Context, _ coretelegram.Runtime) error {
	if listen := a.cfg.Metrics.Listen; listen != "" {
		checks := map[string]metrics.Check{"db": a.db.PingContext}
		if a.rdb != nil {
			checks["redis"] = func(ctx context.Context) error { return a.rdb.Ping(ctx).Err() }
		}
		if err := metrics.NewServer(listen, metrics.NewHandler(checks)).Start(ctx); err != nil {
			return fmt.Errorf("metrics listen %s: %w", listen, err)
		}
	}
	if a.memory != nil {
		go a.sweep(ctx)
	}
	return nil
}

// sweep drops expired in-memory sessions until ctx ends.
func (a *App) sweep(ctx context.Context) {
	t := time.NewTicker(sweepEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := a.memory.Sweep(); n > 0 {
				logger.Debug(ctx, "tg.session", "session.sweep", slog.Int("count", n))
			}
		}
	}
}

// Close releases the database and Redis connections.
func (a *App) Close() error {
	var errs []error
	if a.rdb != nil {
		errs = append(errs, a.rdb.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}
