// Package intake drives one user's conversation from /start to a submitted
// request. Transition is the only entry point; it never touches the transport,
// so it can be exercised with plain values in tests.
package intake

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/m3rciful/intakebot/core/logger"
	"github.com/m3rciful/intakebot/core/telegram/format"
	"github.com/m3rciful/intakebot/internal/catalog"
)

const (
	component   = "intake"
	maxNameLen  = 100
	maxPhoneLen = 20
)

// Catalog lists offerings and resolves a selected one.
// GetOffering wraps catalog.ErrNotFound for unknown ids.
type Catalog interface {
	ListOfferings(ctx context.Context) ([]catalog.Offering, error)
	GetOffering(ctx context.Context, id int64) (catalog.Offering, error)
}

// Submission is a finished request handed to the Submitter.
type Submission struct {
	Key        string
	Name       string
	Phone      string
	OfferingID int64
}

// Submitter persists a finished request and returns its id. A Key that was
// already stored yields the id stored for it and an error matching
// ErrDuplicateSubmission.
type Submitter interface {
	Submit(ctx context.Context, sub Submission) (int64, error)
}

// Machine computes conversation transitions. It holds no per-session data and
// is safe for concurrent use; callers serialize events of one session.
type Machine struct {
	catalog   Catalog
	submitter Submitter
	texts     Texts
	newKey    func() string
}

// NewMachine builds a Machine. Blank texts fall back to DefaultTexts.
func NewMachine(c Catalog, s Submitter, texts Texts) *Machine {
	return &Machine{catalog: c, submitter: s, texts: texts.WithDefaults(), newKey: uuid.NewString}
}

// Texts returns the copy the machine answers with.
func (m *Machine) Texts() Texts { return m.texts }

// Transition applies ev to st and returns the next state and the effects to
// deliver, in order. The error classifies a failed step for logs and metrics
// (see Kind); next and effects are valid even when it is non-nil.
func (m *Machine) Transition(ctx context.Context, st SessionState, ev Event) (SessionState, []Effect, error) {
	if st.Phase == "" {
		st.Phase = PhaseAwaitingStart
	}
	from := st.Phase
	next, effects, err := m.step(ctx, st, ev)

	attrs := []slog.Attr{
		slog.String("event_kind", ev.Kind()),
		slog.String("phase_from", string(from)),
		slog.String("phase_to", string(next.Phase)),
		slog.Int("messages", len(effects)),
	}
	var ie *Error
	switch {
	case err == nil:
		logger.Info(ctx, component, "intake.transition", append(attrs, slog.String("status", "ok"))...)
	case errors.As(err, &ie) && (ie.Kind == KindValidation || ie.Kind == KindDuplicate):
		logger.Info(ctx, component, "intake.transition", append(attrs,
			slog.String("status", "skip"),
			slog.String("err_code", ie.Code()),
		)...)
	default:
		code := "INTERNAL"
		if ie != nil {
			code = ie.Code()
		}
		logger.Error(ctx, component, "intake.transition", append(attrs,
			slog.String("status", "fail"),
			slog.String("err_code", code),
			slog.String("err", err.Error()),
		)...)
	}
	return next, effects, err
}

func (m *Machine) step(ctx context.Context, st SessionState, ev Event) (SessionState, []Effect, error) {
	if _, ok := ev.(StartCommand); ok {
		return m.start(st), []Effect{m.welcome()}, nil
	}
	if st.HasSubmitted {
		st.Phase = PhaseCompleted
		return st, m.say(m.texts.AlreadySubmitted), ErrDuplicateSubmission
	}
	if _, ok := ev.(CancelCommand); ok {
		return SessionState{Phase: PhaseCompleted}, m.say(m.texts.Cancelled), nil
	}

	switch st.Phase {
	case PhaseAwaitingCatalogRequest:
		return m.onCatalogRequest(ctx, st, ev)
	case PhaseChoosingOffering:
		return m.onSelection(ctx, st, ev)
	case PhaseEnteringName:
		return m.onName(st, ev)
	case PhaseEnteringPhone:
		return m.onPhone(ctx, st, ev)
	}
	return st, m.say(m.texts.StartHint), nil
}

// start resets collected fields unless the session already submitted;
// HasSubmitted and the submitted data survive restarts.
func (m *Machine) start(st SessionState) SessionState {
	if st.HasSubmitted {
		st.Phase = PhaseAwaitingCatalogRequest
		return st
	}
	return SessionState{Phase: PhaseAwaitingCatalogRequest}
}

func (m *Machine) welcome() Effect {
	return SendMenu{
		Text:    m.texts.Welcome,
		Options: []MenuOption{{Label: m.texts.CatalogButton, Value: m.texts.CatalogButton}},
	}
}

func (m *Machine) onCatalogRequest(ctx context.Context, st SessionState, ev Event) (SessionState, []Effect, error) {
	msg, ok := ev.(TextMessage)
	if !ok || !m.isCatalogRequest(msg.Text) {
		return st, []Effect{m.catalogHint()}, nil
	}

	offerings, err := m.catalog.ListOfferings(ctx)
	if err != nil {
		return st, m.say(m.texts.GenericError), wrap(KindCatalog, err)
	}
	if len(offerings) == 0 {
		return st, m.say(m.texts.CatalogEmpty), nil
	}

	effects := make([]Effect, 0, len(offerings)+1)
	options := make([]MenuOption, 0, len(offerings))
	for _, o := range offerings {
		effects = append(effects, SendText{Text: m.card(o), Rich: true})
		options = append(options, MenuOption{Label: o.Name, Value: strconv.FormatInt(o.ID, 10)})
	}
	effects = append(effects, SendMenu{Text: m.texts.ChooseOffering, Options: options, Inline: true})
	st.Phase = PhaseChoosingOffering
	return st, effects, nil
}

func (m *Machine) isCatalogRequest(text string) bool {
	return strings.EqualFold(strings.TrimSpace(text), strings.TrimSpace(m.texts.CatalogButton))
}

func (m *Machine) catalogHint() Effect {
	return SendMenu{
		Text:    m.texts.CatalogHint,
		Options: []MenuOption{{Label: m.texts.CatalogButton, Value: m.texts.CatalogButton}},
	}
}

func (m *Machine) onSelection(ctx context.Context, st SessionState, ev Event) (SessionState, []Effect, error) {
	sel, ok := ev.(CatalogSelection)
	if !ok {
		return st, m.say(m.texts.ChooseHint), nil
	}

	o, err := m.catalog.GetOffering(ctx, sel.OfferingID)
	if err != nil {
		kind := KindCatalog
		if errors.Is(err, catalog.ErrNotFound) {
			kind = KindNotFound
		}
		return SessionState{Phase: PhaseCompleted}, m.say(m.texts.GenericError), wrap(kind, err)
	}

	st.SelectedOffering = &o
	st.Phase = PhaseEnteringName
	details := m.card(o) + "\n\n" + format.Bold(m.texts.NamePrompt)
	return st, []Effect{SendText{Text: details, Rich: true, Replace: true}}, nil
}

func (m *Machine) onName(st SessionState, ev Event) (SessionState, []Effect, error) {
	msg, ok := ev.(TextMessage)
	if !ok {
		return st, m.say(m.texts.NamePrompt), nil
	}
	if utf8.RuneCountInString(msg.Text) > maxNameLen {
		return st, m.say(m.texts.NameTooLong), wrap(KindValidation, ErrNameTooLong)
	}
	st.EnteredName = msg.Text
	st.SubmissionKey = m.newKey()
	st.Phase = PhaseEnteringPhone
	return st, m.say(m.texts.PhonePrompt), nil
}

func (m *Machine) onPhone(ctx context.Context, st SessionState, ev Event) (SessionState, []Effect, error) {
	msg, ok := ev.(TextMessage)
	if !ok {
		return st, m.say(m.texts.PhonePrompt), nil
	}
	if !ValidPhone(msg.Text) {
		return st, m.say(m.texts.PhoneInvalid), wrap(KindValidation, ErrInvalidPhone)
	}
	if len(msg.Text) > maxPhoneLen {
		return st, m.say(m.texts.PhoneTooLong), wrap(KindValidation, ErrPhoneTooLong)
	}
	st.EnteredPhone = msg.Text
	st.Phase = PhaseCompleted

	if st.SelectedOffering == nil {
		return st, m.say(m.texts.SubmitFailed), wrap(KindSubmission, errors.New("no offering selected"))
	}
	if st.SubmissionKey == "" {
		st.SubmissionKey = m.newKey()
	}
	id, err := m.submitter.Submit(ctx, Submission{
		Key:        st.SubmissionKey,
		Name:       st.EnteredName,
		Phone:      st.EnteredPhone,
		OfferingID: st.SelectedOffering.ID,
	})
	if errors.Is(err, ErrDuplicateSubmission) {
		st.HasSubmitted = true
		st.RequestID = id
		return st, m.say(m.texts.AlreadySubmitted), err
	}
	if err != nil {
		return st, m.say(m.texts.SubmitFailed), wrap(KindSubmission, err)
	}

	st.HasSubmitted = true
	st.RequestID = id
	return st, []Effect{
		SendText{Text: m.texts.Submitted},
		RequestAccepted{
			RequestID: id,
			Name:      st.EnteredName,
			Phone:     st.EnteredPhone,
			Offering:  *st.SelectedOffering,
		},
	}, nil
}

func (m *Machine) card(o catalog.Offering) string {
	head := format.Bold(o.Name)
	if p := strings.TrimSpace(m.texts.OfferingPrefix); p != "" {
		head = format.EscapeHTML(p) + " " + head
	}
	desc := FormatDescription(o.Description)
	if desc == "" {
		return head
	}
	return head + "\n" + format.EscapeHTML(desc)
}

func (m *Machine) say(text string) []Effect {
	return []Effect{SendText{Text: text}}
}
