package state

import (
	"context"
	"strconv"

	"github.com/m3rciful/intakebot/core/logger"
	tghelpers "github.com/m3rciful/intakebot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

const sessionKey = "session_id"

// Key identifies the session of one user in one chat.
func Key(chatID, userID int64) string {
	return strconv.FormatInt(chatID, 10) + ":" + strconv.FormatInt(userID, 10)
}

// KeyOf derives the session key from an update. Updates without a chat fall
// back to the sender, so private and callback updates agree.
func KeyOf(c tele.Context) string {
	m := tghelpers.MetaOf(c)
	return Key(m.ChatID, m.UserID)
}

// SessionID returns the key stored by WithSession, or derives it.
func SessionID(c tele.Context) string {
	if v, ok := c.Get(sessionKey).(string); ok && v != "" {
		return v
	}
	return KeyOf(c)
}

// WithSession stores the session key on the update and in its log context.
func WithSession() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			id := KeyOf(c)
			c.Set(sessionKey, id)
			tghelpers.Enrich(c, func(ctx context.Context) context.Context {
				return logger.WithSessionID(ctx, id)
			})
			return next(c)
		}
	}
}
