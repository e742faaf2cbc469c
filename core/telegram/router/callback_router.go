package router

import (
	"log/slog"

	tg "github.com/m3rciful/intakebot/core/telegram"
	"github.com/m3rciful/intakebot/core/telegram/callbacks"

	tele "gopkg.in/telebot.v4"
)

// CallbackOptions customises fallback behaviour for callbacks.
type CallbackOptions struct {
	// NotFound handles unknown keys before the registry fallback.
	NotFound tele.HandlerFunc
}

// CallbackRoute routes button presses through the registry by their unique
// key. The press is acknowledged before the handler runs so the client stops
// its spinner even when the handler is slow.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	handler := func(c tele.Context) error {
		if c.Callback() == nil {
			return nil
		}
		key := callbacks.From(c).Key
		s := begin("callback."+handlerName(key), slog.String("cb_key", key))
		_ = c.Respond()

		if h, ok := reg.GetCallback(key); ok {
			return s.run(c, h)
		}
		fallback := opts.NotFound
		if fallback == nil {
			fallback = reg.CallbackNotFound()
		}
		if fallback == nil {
			s.skip(c, "not_found")
			return nil
		}
		s.extras = append(s.extras, slog.String("reason", "not_found"))
		return s.run(c, fallback)
	}
	return tg.Route{Endpoint: tele.OnCallback, Handler: handler}
}
