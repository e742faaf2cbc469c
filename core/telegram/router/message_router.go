package router

import (
	tg "github.com/m3rciful/intakebot/core/telegram"

	tele "gopkg.in/telebot.v4"
)

// TextOptions controls fallback behaviour for text and media updates.
type TextOptions struct {
	// UnknownText handles text when the registry has no fallback.
	UnknownText tele.HandlerFunc
	// Media handles photos, documents, stickers and other non-text messages.
	Media tele.HandlerFunc
}

var mediaEndpoints = []string{
	tele.OnPhoto,
	tele.OnDocument,
	tele.OnSticker,
	tele.OnVoice,
	tele.OnVideo,
	tele.OnAudio,
	tele.OnAnimation,
	tele.OnContact,
	tele.OnLocation,
}

// TextRoutes builds handlers for text and media routing. Text that names a
// command (aliases included) runs that command; anything else goes to the
// registry text fallback.
func TextRoutes(reg *tg.Registry, opts TextOptions) []tg.Route {
	text := func(c tele.Context) error {
		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(c.Text()); ok && cmd.Handler != nil {
				return begin(handlerName(key)).run(c, cmd.Handler)
			}
			if fb := reg.TextFallback(); fb != nil {
				return begin("fallback").run(c, fb)
			}
		}
		if opts.UnknownText != nil {
			return begin("unknown_text").run(c, opts.UnknownText)
		}
		begin("unknown_text").skip(c, "no_handler")
		return nil
	}

	media := func(c tele.Context) error {
		if opts.Media == nil {
			begin("media").skip(c, "no_handler")
			return nil
		}
		return begin("media").run(c, opts.Media)
	}

	routes := make([]tg.Route, 0, len(mediaEndpoints)+1)
	routes = append(routes, tg.Route{Endpoint: tele.OnText, Handler: text})
	for _, ep := range mediaEndpoints {
		routes = append(routes, tg.Route{Endpoint: ep, Handler: media})
	}
	return routes
}
