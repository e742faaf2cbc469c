package app

import (
	"context"
	"errors"
	"log/slog"

	"github.com/m3rciful/intakebot/core/logger"
	tg "github.com/m3rciful/intakebot/core/telegram"
	"github.com/m3rciful/intakebot/core/telegram/callbacks"
	"github.com/m3rciful/intakebot/core/telegram/commands"
	tghelpers "github.com/m3rciful/intakebot/core/telegram/helpers"
	"github.com/m3rciful/intakebot/core/telegram/router"
	"github.com/m3rciful/intakebot/core/telegram/state"
	"github.com/m3rciful/intakebot/internal/intake"
	"github.com/m3rciful/intakebot/internal/metrics"

	tele "gopkg.in/telebot.v4"
)

const (
	component = "app.intake"

	// offeringCallback is the unique key of offering buttons.
	offeringCallback = "offering"
)

// Deliverer turns effects into Telegram calls for the update in c.
type Deliverer interface {
	Deliver(c tele.Context, eff intake.Effect) error
}

// Handler feeds updates into the state machine, one session at a time.
type Handler struct {
	machine  *intake.Machine
	sessions *state.Registry[intake.SessionState]
	out      Deliverer
}

// NewHandler wires a machine, a session registry and a deliverer.
func NewHandler(m *intake.Machine, sessions *state.Registry[intake.SessionState], out Deliverer) *Handler {
	return &Handler{machine: m, sessions: sessions, out: out}
}

// Register adds commands, the text fallback and the offering callback to reg
// and returns the routes to install on the bot.
func (h *Handler) Register(reg *tg.Registry) []tg.Route {
	errs := []error{
		reg.RegisterCommand("/start", commands.Command{
			Handler:     h.Start,
			Description: "Start over",
		}),
		reg.RegisterCommand("/cancel", commands.Command{
			Handler:     h.Cancel,
			Description: "Cancel the request",
			Aliases:     []string{"stop"},
		}),
		reg.RegisterCallback(offeringCallback, h.Select),
	}
	reg.SetTextFallback(h.Text)
	if err := errors.Join(errs...); err != nil {
		logger.Warn(context.Background(), component, "register",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
	}

	routes := router.CommandRoutes(reg)
	routes = append(routes, router.TextRoutes(reg, router.TextOptions{Media: h.Other})...)
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{}))
	return routes
}

// Start handles /start.
func (h *Handler) Start(c tele.Context) error { return h.Handle(c, intake.StartCommand{}) }

// Cancel handles /cancel and its aliases.
func (h *Handler) Cancel(c tele.Context) error { return h.Handle(c, intake.CancelCommand{}) }

// Text handles any text that is not a command, button labels included.
func (h *Handler) Text(c tele.Context) error {
	return h.Handle(c, intake.TextMessage{Text: c.Text()})
}

// Other handles media and other non-text messages.
func (h *Handler) Other(c tele.Context) error { return h.Handle(c, intake.OtherMessage{}) }

// Select handles a press on an offering button.
func (h *Handler) Select(c tele.Context) error {
	id, err := callbacks.From(c).Int64()
	if err != nil {
		logger.Warn(tghelpers.BuildContext(c), component, "callback.payload",
			slog.String("status", "skip"),
			slog.String("err", err.Error()),
		)
		return nil
	}
	return h.Handle(c, intake.CatalogSelection{OfferingID: id})
}

// Handle runs one event through the machine under the session lock. Effects
// are delivered once the new state is saved and before the lock is released,
// so a reply never announces a state that was lost and replies of
// consecutive updates never interleave.
func (h *Handler) Handle(c tele.Context, ev intake.Event) error {
	ctx := tghelpers.BuildContext(c)
	metrics.IncUpdate(ev.Kind())
	id := state.SessionID(c)

	err := h.sessions.Apply(ctx, id, func(ctx context.Context, st *intake.SessionState) (func(context.Context), error) {
		from := st.Phase
		if from == "" {
			from = intake.PhaseAwaitingStart
		}
		next, effects, terr := h.machine.Transition(ctx, *st, ev)
		*st = next
		observe(from, next.Phase, terr)
		return func(ctx context.Context) { h.deliver(ctx, c, effects) }, nil
	})
	if err == nil {
		return nil
	}
	logger.Error(ctx, component, "session.update",
		slog.String("status", "fail"),
		slog.String("event_kind", ev.Kind()),
		slog.String("err", err.Error()),
	)
	if errors.Is(err, state.ErrCorrupt) {
		h.drop(ctx, id)
	}
	return h.out.Deliver(c, intake.SendText{Text: h.machine.Texts().GenericError})
}

// drop forgets a session whose stored value cannot be read, so the next
// update starts a fresh conversation.
func (h *Handler) drop(ctx context.Context, id string) {
	if err := h.sessions.Reset(ctx, id); err != nil {
		logger.Warn(ctx, component, "session.reset",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return
	}
	logger.Info(ctx, component, "session.reset", slog.String("status", "ok"))
}

func (h *Handler) deliver(ctx context.Context, c tele.Context, effects []intake.Effect) {
	for _, eff := range effects {
		if acc, ok := eff.(intake.RequestAccepted); ok {
			metrics.IncSubmission("accepted")
			logger.Info(ctx, component, "request.accepted",
				slog.Int64("request_id", acc.RequestID),
				slog.Int64("offering_id", acc.Offering.ID),
			)
		}
		if err := h.out.Deliver(c, eff); err != nil {
			logger.Warn(ctx, component, "deliver",
				slog.String("status", "fail"),
				slog.String("effect", effectName(eff)),
				slog.String("err", err.Error()),
			)
		}
	}
}

func observe(from, to intake.Phase, err error) {
	code := ""
	var ie *intake.Error
	if errors.As(err, &ie) {
		code = ie.Code()
		switch ie.Kind {
		case intake.KindSubmission:
			metrics.IncSubmission("failed")
		case intake.KindDuplicate:
			metrics.IncSubmission("duplicate")
		}
	} else if err != nil {
		code = "INTERNAL"
	}
	metrics.ObserveTransition(string(from), string(to), code)
}

func effectName(eff intake.Effect) string {
	switch eff.(type) {
	case intake.SendText:
		return "send_text"
	case intake.SendMenu:
		return "send_menu"
	case intake.RequestAccepted:
		return "request_accepted"
	}
	return "unknown"
}
