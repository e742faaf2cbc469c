package telegram

import (
	"strings"
	"time"

	coreconfig "github.com/m3rciful/intakebot/core/config"
	"github.com/m3rciful/intakebot/core/telegram/middleware"
	"github.com/m3rciful/intakebot/core/telegram/state"

	tele "gopkg.in/telebot.v4"
)

// DefaultMiddlewares returns the chain every update passes through, outermost
// first: recover, an optional per-user rate limit, the log context, the
// session key and reply counters. onLimited answers throttled updates; nil
// drops them silently.
func DefaultMiddlewares(cfg *coreconfig.Config, onLimited func(tele.Context) error) []Middleware {
	mws := []Middleware{{Name: "recover", Use: middleware.RecoverMiddleware}}
	if rl, ok := rateLimit(cfg, onLimited); ok {
		mws = append(mws, rl)
	}
	return append(mws,
		Middleware{Name: "logger", Use: middleware.LoggerMiddleware},
		Middleware{Name: "session", Use: state.WithSession()},
		Middleware{Name: "metrics", Use: middleware.MessageMetricsMiddleware},
	)
}

func rateLimit(cfg *coreconfig.Config, onLimited func(tele.Context) error) (Middleware, bool) {
	if cfg == nil || cfg.RateLimit.IntervalMS <= 0 {
		return Middleware{}, false
	}
	exclude := make(map[string]struct{}, len(cfg.RateLimit.ExcludeUpdates))
	for _, kind := range cfg.RateLimit.ExcludeUpdates {
		if kind = strings.ToLower(strings.TrimSpace(kind)); kind != "" {
			exclude[kind] = struct{}{}
		}
	}
	return Middleware{
		Name: "rate_limit",
		Use: middleware.RateLimitMiddleware(middleware.RateLimitOptions{
			Interval:  time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond,
			Exclude:   exclude,
			OnLimited: onLimited,
		}),
	}, true
}
