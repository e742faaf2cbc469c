package logger

import (
	"context"
	"log/slog"
)

type ctxKey struct{}

// fields is the log metadata carried by a context. Every With* helper
// stores a modified copy, so parent contexts never change.
type fields struct {
	log       *slog.Logger
	rid       string
	updateID  int
	userID    int64
	chatID    int64
	handler   string
	sessionID string
}

func fieldsFrom(ctx context.Context) fields {
	if ctx == nil {
		return fields{}
	}
	f, _ := ctx.Value(ctxKey{}).(fields)
	return f
}

func with(ctx context.Context, set func(*fields)) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	f := fieldsFrom(ctx)
	set(&f)
	return context.WithValue(ctx, ctxKey{}, f)
}

// WithLogger makes log the logger FromContext returns. Nil is ignored.
func WithLogger(ctx context.Context, log *slog.Logger) context.Context {
	if log == nil {
		if ctx == nil {
			return context.Background()
		}
		return ctx
	}
	return with(ctx, func(f *fields) { f.log = log })
}

// FromContext returns the logger stored in ctx, or L.
func FromContext(ctx context.Context) *slog.Logger {
	if l := fieldsFrom(ctx).log; l != nil {
		return l
	}
	return L
}

// WithRID attaches the request correlation id.
func WithRID(ctx context.Context, rid string) context.Context {
	return with(ctx, func(f *fields) { f.rid = rid })
}

// RIDFrom returns the request correlation id.
func RIDFrom(ctx context.Context) string { return fieldsFrom(ctx).rid }

// WithUpdateMeta attaches the update, user and chat identifiers.
func WithUpdateMeta(ctx context.Context, updateID int, userID, chatID int64) context.Context {
	return with(ctx, func(f *fields) {
		f.updateID, f.userID, f.chatID = updateID, userID, chatID
	})
}

// UpdateIDFrom returns the Telegram update id.
func UpdateIDFrom(ctx context.Context) int { return fieldsFrom(ctx).updateID }

// UserIDFrom returns the Telegram user id.
func UserIDFrom(ctx context.Context) int64 { return fieldsFrom(ctx).userID }

// ChatIDFrom returns the Telegram chat id.
func ChatIDFrom(ctx context.Context) int64 { return fieldsFrom(ctx).chatID }

// WithHandler names the handler serving the update. Empty names are ignored.
func WithHandler(ctx context.Context, handler string) context.Context {
	if handler == "" {
		return with(ctx, func(*fields) {})
	}
	return with(ctx, func(f *fields) { f.handler = handler })
}

// HandlerFrom returns the handler name.
func HandlerFrom(ctx context.Context) string { return fieldsFrom(ctx).handler }

// WithSessionID tags the context with the conversation session key.
// Empty ids are ignored.
func WithSessionID(ctx context.Context, id string) context.Context {
	if id == "" {
		return with(ctx, func(*fields) {})
	}
	return with(ctx, func(f *fields) { f.sessionID = id })
}

// SessionIDFrom returns the conversation session key.
func SessionIDFrom(ctx context.Context) string { return fieldsFrom(ctx).sessionID }
