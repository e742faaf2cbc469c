package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/intakebot/core/config"
	"github.com/m3rciful/intakebot/core/logger"
	tghelpers "github.com/m3rciful/intakebot/core/telegram/helpers"
	tgsender "github.com/m3rciful/intakebot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

const runComponent = "tg"

// Middleware describes a global bot middleware to be registered via bot.Use.
type Middleware struct {
	Name string
	Use  func(next tele.HandlerFunc) tele.HandlerFunc
}

// Route declares a single bot handler bound to an arbitrary endpoint.
// Endpoint values are passed directly to tele.Bot.Handle.
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// RunOptions controls the behaviour of RunTelegram.
type RunOptions struct {
	Config   *coreconfig.Config
	Registry *Registry

	DispatcherOptions tgsender.Options
	Dispatcher        *tgsender.Dispatcher

	// Middlewares and Routes may be built after the bot exists; the
	// functions receive the runtime before anything is registered.
	Middlewares func(rt Runtime) []Middleware
	Routes      func(rt Runtime) []Route

	// Offline skips the getMe call; used by tests and dry runs.
	Offline bool

	DisableWebhookCleanup bool

	OnStart func(ctx context.Context, rt Runtime) error
	OnStop  func(ctx context.Context, rt Runtime) error
}

// Runtime exposes runtime components to lifecycle hooks and route builders.
type Runtime struct {
	Bot        *tele.Bot
	Dispatcher *tgsender.Dispatcher
	Registry   *Registry
}

// Build creates the bot and wires middlewares, routes and commands without
// starting it. The returned cleanup closes the dispatcher.
func Build(opts RunOptions) (Runtime, func(), error) {
	if opts.Config == nil {
		return Runtime{}, nil, fmt.Errorf("telegram: nil config provided")
	}
	cfg := opts.Config
	reg := opts.Registry
	if reg == nil {
		reg = NewRegistry()
	}

	poller := BuildPoller(PollerOptions{
		RunMode:                cfg.Telegram.RunMode,
		LongPollTimeoutSeconds: cfg.Telegram.LongPollTimeoutSeconds,
		Webhook: WebhookOptions{
			Listen: cfg.Webhook.Listen,
			Port:   cfg.Webhook.Port,
			URL:    cfg.Webhook.URL,
		},
	})

	buildStart := time.Now()
	bot, err := tele.NewBot(tele.Settings{
		Token:   cfg.Telegram.Token,
		Poller:  poller,
		Client:  BuildHTTPClient(time.Duration(cfg.Telegram.LongPollTimeoutSeconds) * time.Second),
		Offline: opts.Offline,
		OnError: func(err error, c tele.Context) {
			ctx := context.Background()
			if c != nil {
				ctx = tghelpers.BuildContext(c)
			}
			logger.Error(ctx, runComponent, "handler.error", slog.String("err", err.Error()))
		},
	})
	if err != nil {
		return Runtime{}, nil, fmt.Errorf("telegram: bot initialization failed: %w", err)
	}
	logMode(cfg, poller, logger.Took(buildStart))

	dispatcher := opts.Dispatcher
	if dispatcher == nil {
		dispatcher = tgsender.NewDispatcher(opts.DispatcherOptions)
	}
	tghelpers.SetDispatcher(dispatcher)

	rt := Runtime{Bot: bot, Dispatcher: dispatcher, Registry: reg}

	if opts.Middlewares != nil {
		for _, mw := range opts.Middlewares(rt) {
			if mw.Use != nil {
				bot.Use(mw.Use)
			}
		}
	}
	if opts.Routes != nil {
		for _, route := range opts.Routes(rt) {
			if route.Endpoint != nil && route.Handler != nil {
				bot.Handle(route.Endpoint, route.Handler)
			}
		}
	}
	if !opts.Offline {
		SetupCommands(bot, reg)
	}

	cleanup := func() {
		dispatcher.Close()
		tghelpers.SetDispatcher(nil)
	}
	return rt, cleanup, nil
}

// RunTelegram composes and runs a Telegram bot until the provided context is done.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	rt, cleanup, err := Build(opts)
	if err != nil {
		return err
	}
	defer cleanup()

	cfg := opts.Config
	if !opts.Offline && !opts.DisableWebhookCleanup && strings.EqualFold(cfg.Telegram.RunMode, coreconfig.RunModeLongpoll) {
		if err := rt.Bot.RemoveWebhook(false); err != nil {
			logger.Warn(ctx, runComponent, "webhook.delete",
				slog.String("status", "fail"),
				slog.String("mode", "polling"),
				slog.String("err", err.Error()),
			)
		} else {
			logger.Info(ctx, runComponent, "webhook.delete",
				slog.String("status", "ok"),
				slog.String("mode", "polling"),
			)
		}
	}

	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			return err
		}
	}

	runDone := make(chan struct{})
	go func() {
		rt.Bot.Start()
		close(runDone)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		rt.Bot.Stop()
		<-runDone
		runErr = ctx.Err()
	case <-runDone:
	}
	logger.Info(ctx, runComponent, "shutdown", slog.String("status", "ok"))

	if opts.OnStop != nil {
		if err := opts.OnStop(context.WithoutCancel(ctx), rt); err != nil {
			return err
		}
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

func logMode(cfg *coreconfig.Config, poller tele.Poller, took time.Duration) {
	ctx := context.Background()
	switch p := poller.(type) {
	case *tele.Webhook:
		logger.Info(ctx, runComponent, "mode",
			slog.String("mode", "webhook"),
			slog.String("listen", p.Listen),
			slog.String("public_url", p.Endpoint.PublicURL),
			slog.Duration("duration", took),
		)
	default:
		timeoutSec := defaultLongPollTimeout
		if cfg.Telegram.LongPollTimeoutSeconds > 0 {
			timeoutSec = cfg.Telegram.LongPollTimeoutSeconds
		}
		logger.Info(ctx, runComponent, "mode",
			slog.String("mode", "polling"),
			slog.Int("timeout_seconds", timeoutSec),
			slog.Duration("duration", took),
		)
	}
}
