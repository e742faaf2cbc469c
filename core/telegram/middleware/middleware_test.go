package middleware

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/intakebot/core/logger"
	tghelpers "github.com/m3rciful/intakebot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

func newBot(t *testing.T) *tele.Bot {
	t.Helper()
	b, err := tele.NewBot(tele.Settings{Offline: true})
	require.NoError(t, err)
	return b
}

func messageFrom(b *tele.Bot, userID int64, text string) tele.Context {
	return b.NewContext(tele.Update{ID: 1, Message: &tele.Message{
		Sender: &tele.User{ID: userID},
		Chat:   &tele.Chat{ID: userID, Type: tele.ChatPrivate},
		Text:   text,
	}})
}

func callbackFrom(b *tele.Bot, userID int64) tele.Context {
	return b.NewContext(tele.Update{ID: 2, Callback: &tele.Callback{
		Sender: &tele.User{ID: userID},
		Data:   "\foffering|1",
	}})
}

func TestRateLimitMiddleware(t *testing.T) {
	b := newBot(t)
	now := time.Unix(1_700_000_000, 0)
	limited := 0
	mw := RateLimitMiddleware(RateLimitOptions{
		Interval:  time.Second,
		Exclude:   map[string]struct{}{"callback": {}},
		OnLimited: func(tele.Context) error { limited++; return nil },
		Now:       func() time.Time { return now },
	})
	handled := 0
	h := mw(func(tele.Context) error { handled++; return nil })

	require.NoError(t, h(messageFrom(b, 1, "a")))
	require.NoError(t, h(messageFrom(b, 1, "b")))
	require.NoError(t, h(messageFrom(b, 2, "c")))
	require.NoError(t, h(callbackFrom(b, 1)))
	assert.Equal(t, 3, handled)
	assert.Equal(t, 1, limited)

	now = now.Add(1500 * time.Millisecond)
	require.NoError(t, h(messageFrom(b, 1, "d")))
	assert.Equal(t, 4, handled)
}

func TestRecoverMiddleware(t *testing.T) {
	b := newBot(t)
	h := RecoverMiddleware(func(tele.Context) error { panic("boom") })
	err := h(messageFrom(b, 1, "x"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPanic))
	assert.Contains(t, err.Error(), "boom")

	plain := errors.New("plain")
	err = RecoverMiddleware(func(tele.Context) error { return plain })(messageFrom(b, 1, "x"))
	assert.Same(t, plain, err)
}

func TestUpdateKind(t *testing.T) {
	b := newBot(t)
	assert.Equal(t, "message", UpdateKind(messageFrom(b, 1, "x")))
	assert.Equal(t, "callback", UpdateKind(callbackFrom(b, 1)))
	assert.Equal(t, "other", UpdateKind(b.NewContext(tele.Update{})))
}

func TestGetCountersDefaults(t *testing.T) {
	b := newBot(t)
	c := messageFrom(b, 1, "x")
	msgs, kb := GetCounters(c)
	assert.Zero(t, msgs)
	assert.False(t, kb)

	require.NoError(t, MessageMetricsMiddleware(func(c tele.Context) error {
		mc, ok := c.(metricsContext)
		require.True(t, ok)
		_ = mc.record(nil, nil)
		_ = mc.record(errors.New("blocked"), nil)
		return mc.record(nil, []any{&tele.SendOptions{ReplyMarkup: &tele.ReplyMarkup{}}})
	})(c))
	msgs, kb = GetCounters(c)
	assert.Equal(t, 2, msgs)
	assert.True(t, kb)
}

func TestLoggerMiddlewareBuildsContextOnce(t *testing.T) {
	b := newBot(t)
	c := messageFrom(b, 4, "/start")

	var first context.Context
	h := LoggerMiddleware(func(c tele.Context) error {
		first, _ = tghelpers.ContextFrom(c)
		return nil
	})
	require.NoError(t, h(c))
	require.NotNil(t, first)
	assert.Equal(t, int64(4), logger.ChatIDFrom(first))
	assert.NotEmpty(t, logger.RIDFrom(first))

	tghelpers.WithHandler(c, "start")
	require.NoError(t, LoggerMiddleware(func(c tele.Context) error {
		ctx, _ := tghelpers.ContextFrom(c)
		assert.Equal(t, "start", logger.HandlerFrom(ctx))
		return nil
	})(c))
}

func TestReceiptAttrsOmitPlainText(t *testing.T) {
	b := newBot(t)
	keys := func(attrs []slog.Attr) map[string]string {
		out := make(map[string]string, len(attrs))
		for _, a := range attrs {
			out[a.Key] = a.Value.String()
		}
		return out
	}

	got := keys(receiptAttrs(messageFrom(b, 1, "+1 555 123")))
	assert.Equal(t, "10", got["text_len"])
	assert.NotContains(t, got, "payload")

	got = keys(receiptAttrs(messageFrom(b, 1, "/cancel")))
	assert.Equal(t, "/cancel", got["payload"])

	got = keys(receiptAttrs(callbackFrom(b, 1)))
	assert.Equal(t, "offering", got["cb_key"])
	assert.Equal(t, "1", got["payload"])
}
