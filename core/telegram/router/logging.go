package router

import (
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/m3rciful/intakebot/core/logger"
	tghelpers "github.com/m3rciful/intakebot/core/telegram/helpers"
	"github.com/m3rciful/intakebot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// summary writes the one "handler.handled" line of an update.
type summary struct {
	handler string
	start   time.Time
	extras  []slog.Attr
}

func begin(handler string, extras ...slog.Attr) summary {
	return summary{handler: handler, start: time.Now(), extras: extras}
}

// run calls fn with the handler name in the log context and logs its result.
func (s summary) run(c tele.Context, fn tele.HandlerFunc) error {
	tghelpers.WithHandler(c, s.handler)
	err := fn(c)
	status := "ok"
	if err != nil {
		status = "fail"
	}
	s.log(c, status, err)
	return err
}

// skip logs an update nobody handled.
func (s summary) skip(c tele.Context, reason string) {
	s.extras = append(s.extras, slog.String("reason", reason))
	s.log(c, "skip", nil)
}

func (s summary) log(c tele.Context, status string, err error) {
	ctx := tghelpers.WithHandler(c, s.handler)
	msgs, kb := middleware.GetCounters(c)

	outcome := "ok"
	if err != nil {
		outcome = "fail"
	}
	attrs := []slog.Attr{
		slog.String("status", status),
		slog.String("outcome", outcome),
		slog.Int("messages", msgs),
		slog.Bool("kb", kb),
		slog.Duration("duration", logger.Took(s.start)),
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", errorCode(err)),
		)
	}
	logger.LogEvent(ctx, logger.Component("tg"), slog.LevelInfo, "handler.handled", append(attrs, s.extras...)...)
}

// handlerName turns a command or callback key into a log-friendly name.
func handlerName(name string) string {
	name = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "/"))
	if name == "" {
		return "unknown"
	}
	return strings.ReplaceAll(name, " ", "_")
}

type coder interface{ Code() string }

// errorCode prefers a Code() found anywhere in the chain, then the dynamic
// type name of the outermost error.
func errorCode(err error) string {
	var c coder
	if errors.As(err, &c) {
		if code := strings.TrimSpace(c.Code()); code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t != nil && t.Name() != "" {
		return strings.ToUpper(t.Name())
	}
	return "UNKNOWN_ERROR"
}
