package telegram

import (
	"testing"

	"github.com/stretchr/testify/assert"

	coreconfig "github.com/m3rciful/intakebot/core/config"
)

func middlewareNames(mws []Middleware) []string {
	names := make([]string, 0, len(mws))
	for _, m := range mws {
		names = append(names, m.Name)
	}
	return names
}

func TestDefaultMiddlewaresOrder(t *testing.T) {
	assert.Equal(t,
		[]string{"recover", "logger", "session", "metrics"},
		middlewareNames(DefaultMiddlewares(nil, nil)),
	)

	cfg := &coreconfig.Config{}
	cfg.RateLimit.IntervalMS = 500
	cfg.RateLimit.ExcludeUpdates = []string{" Callback ", ""}
	assert.Equal(t,
		[]string{"recover", "rate_limit", "logger", "session", "metrics"},
		middlewareNames(DefaultMiddlewares(cfg, nil)),
	)
}
