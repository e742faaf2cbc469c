package middleware

import (
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/m3rciful/intakebot/core/logger"
	"github.com/m3rciful/intakebot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/intakebot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

const loggedKey = "update_logged"

// LoggerMiddleware builds the log context of the update and writes one
// sampled "update.received" line. Running it twice on one update, as group
// middleware may do, keeps the first context.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if logged, _ := c.Get(loggedKey).(bool); logged {
			return next(c)
		}
		c.Set(loggedKey, true)

		ctx := tghelpers.NewContext(c)
		if logger.ShouldSampleDebug() {
			logger.LogEvent(ctx, logger.Component("tg"), slog.LevelDebug, "update.received", receiptAttrs(c)...)
		}
		return next(c)
	}
}

// receiptAttrs describes the update without its message text, which may
// carry names and phone numbers. Only command texts are logged verbatim.
func receiptAttrs(c tele.Context) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("status", "ok"),
		slog.String("kind", UpdateKind(c)),
	}
	if chat := c.Chat(); chat != nil {
		attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
	}
	if user := c.Sender(); user != nil {
		if user.Username != "" {
			attrs = append(attrs, slog.String("username", logger.SanitizeLimit(user.Username, 64)))
		}
		if user.LanguageCode != "" {
			attrs = append(attrs, slog.String("lang", user.LanguageCode))
		}
	}

	upd := c.Update()
	switch {
	case upd.Callback != nil:
		cb := callbacks.Parse(upd.Callback)
		if cb.Key != "" {
			attrs = append(attrs, slog.String("cb_key", logger.SanitizeLimit(cb.Key, 128)))
		}
		if cb.Payload != "" {
			attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(cb.Payload, 256)))
		}
	case upd.Message != nil:
		t := c.Text()
		if t == "" {
			break
		}
		attrs = append(attrs, slog.Int("text_len", utf8.RuneCountInString(t)))
		if strings.HasPrefix(t, "/") {
			attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(t, 64)))
		}
	}
	return attrs
}
