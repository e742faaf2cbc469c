package helpers

import (
	"context"

	"github.com/m3rciful/intakebot/core/logger"

	tele "gopkg.in/telebot.v4"
)

const (
	contextKey = "logger_ctx"
	ridKey     = "rid"
)

// Meta identifies the update a handler is serving.
type Meta struct {
	UpdateID int
	ChatID   int64
	UserID   int64
}

// MetaOf reads update metadata from c. Updates without a chat, such as
// callbacks on inline messages, use the sender as the chat.
func MetaOf(c tele.Context) Meta {
	m := Meta{UpdateID: c.Update().ID}
	if u := c.Sender(); u != nil {
		m.UserID = u.ID
	}
	if ch := c.Chat(); ch != nil {
		m.ChatID = ch.ID
	} else {
		m.ChatID = m.UserID
	}
	return m
}

// StoreContext attaches ctx to c for downstream handlers.
func StoreContext(c tele.Context, ctx context.Context) {
	if c == nil || ctx == nil {
		return
	}
	c.Set(contextKey, ctx)
}

// ContextFrom returns the context stored on c, if any.
func ContextFrom(c tele.Context) (context.Context, bool) {
	if c == nil {
		return nil, false
	}
	ctx, ok := c.Get(contextKey).(context.Context)
	return ctx, ok && ctx != nil
}

// NewContext builds a fresh log context for c with its request id and update
// metadata, and stores it on c. The request id is reused when one was set.
func NewContext(c tele.Context) context.Context {
	m := MetaOf(c)
	rid, _ := c.Get(ridKey).(string)
	if rid == "" {
		rid = logger.BuildRID(m.UpdateID, m.ChatID, m.UserID)
		c.Set(ridKey, rid)
	}
	ctx := logger.WithRID(context.Background(), rid)
	ctx = logger.WithUpdateMeta(ctx, m.UpdateID, m.UserID, m.ChatID)
	ctx = logger.WithLogger(ctx, logger.Component("tg"))
	StoreContext(c, ctx)
	return ctx
}

// BuildContext returns the context stored on c, creating it on first use.
func BuildContext(c tele.Context) context.Context {
	if ctx, ok := ContextFrom(c); ok {
		return ctx
	}
	return NewContext(c)
}

// Enrich replaces the stored context of c with fn applied to it.
func Enrich(c tele.Context, fn func(context.Context) context.Context) context.Context {
	ctx := BuildContext(c)
	if fn == nil {
		return ctx
	}
	if next := fn(ctx); next != nil {
		ctx = next
		StoreContext(c, ctx)
	}
	return ctx
}

// WithHandler records the handler name in the stored context.
func WithHandler(c tele.Context, handler string) context.Context {
	if handler == "" {
		return BuildContext(c)
	}
	return Enrich(c, func(ctx context.Context) context.Context {
		return logger.WithHandler(ctx, handler)
	})
}
