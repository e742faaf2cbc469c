package intake

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/intakebot/internal/catalog"
)

type fakeCatalog struct {
	offerings []catalog.Offering
	listErr   error
	getErr    error
	lists     int
	gets      []int64
}

func (f *fakeCatalog) ListOfferings(context.Context) ([]catalog.Offering, error) {
	f.lists++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.offerings, nil
}

func (f *fakeCatalog) GetOffering(_ context.Context, id int64) (catalog.Offering, error) {
	f.gets = append(f.gets, id)
	if f.getErr != nil {
		return catalog.Offering{}, f.getErr
	}
	for _, o := range f.offerings {
		if o.ID == id {
			return o, nil
		}
	}
	return catalog.Offering{}, fmt.Errorf("offering %d: %w", id, catalog.ErrNotFound)
}

type submitCall struct {
	name, phone string
	offeringID  int64
}

// fakeSubmitter stores each key once, like the requests table does.
type fakeSubmitter struct {
	calls  []submitCall
	keys   []string
	stored map[string]int64
	err    error
}

func (f *fakeSubmitter) Submit(_ context.Context, sub Submission) (int64, error) {
	f.calls = append(f.calls, submitCall{sub.Name, sub.Phone, sub.OfferingID})
	f.keys = append(f.keys, sub.Key)
	if f.err != nil {
		return 0, f.err
	}
	if id, ok := f.stored[sub.Key]; ok {
		return id, fmt.Errorf("key %s: %w", sub.Key, ErrDuplicateSubmission)
	}
	if f.stored == nil {
		f.stored = make(map[string]int64)
	}
	id := int64(100 + len(f.calls))
	f.stored[sub.Key] = id
	return id, nil
}

type harness struct {
	t   *testing.T
	cat *fakeCatalog
	sub *fakeSubmitter
	m   *Machine
	st  SessionState
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cat := &fakeCatalog{offerings: []catalog.Offering{
		{ID: 1, Name: "Haircut", Description: "Wash – cut – style"},
		{ID: 2, Name: "Beard <trim>", Description: "Shape\nOil"},
	}}
	sub := &fakeSubmitter{}
	return &harness{t: t, cat: cat, sub: sub, m: NewMachine(cat, sub, Texts{}), st: NewSession()}
}

func (h *harness) send(ev Event) ([]Effect, error) {
	h.t.Helper()
	next, effects, err := h.m.Transition(context.Background(), h.st, ev)
	h.st = next
	require.NotEmpty(h.t, effects, "every event must be answered")
	return effects, err
}

func (h *harness) texts() Texts { return h.m.Texts() }

// driveToPhone walks a fresh session up to the phone prompt.
func (h *harness) driveToPhone(name string) {
	h.t.Helper()
	_, _ = h.send(StartCommand{})
	_, _ = h.send(TextMessage{Text: h.texts().CatalogButton})
	_, _ = h.send(CatalogSelection{OfferingID: 1})
	_, err := h.send(TextMessage{Text: name})
	require.NoError(h.t, err)
	require.Equal(h.t, PhaseEnteringPhone, h.st.Phase)
}

func onlyText(t *testing.T, effects []Effect) string {
	t.Helper()
	require.Len(t, effects, 1)
	msg, ok := effects[0].(SendText)
	require.True(t, ok, "expected SendText, got %T", effects[0])
	return msg.Text
}

func TestStartShowsWelcomeMenu(t *testing.T) {
	h := newHarness(t)
	effects, err := h.send(StartCommand{})
	require.NoError(t, err)

	assert.Equal(t, PhaseAwaitingCatalogRequest, h.st.Phase)
	require.Len(t, effects, 1)
	menu, ok := effects[0].(SendMenu)
	require.True(t, ok)
	assert.Equal(t, h.texts().Welcome, menu.Text)
	assert.False(t, menu.Inline)
	assert.Equal(t, []MenuOption{{Label: "Services", Value: "Services"}}, menu.Options)
}

func TestCatalogRequestListsOfferings(t *testing.T) {
	h := newHarness(t)
	_, _ = h.send(StartCommand{})

	effects, err := h.send(TextMessage{Text: "  services "})
	require.NoError(t, err)
	assert.Equal(t, PhaseChoosingOffering, h.st.Phase)
	require.Len(t, effects, 3)

	first := effects[0].(SendText)
	assert.True(t, first.Rich)
	assert.Equal(t, "💼 <b>Haircut</b>\n• Wash\n• cut\n• style", first.Text)
	second := effects[1].(SendText)
	assert.Equal(t, "💼 <b>Beard &lt;trim&gt;</b>\n• Shape\n• Oil", second.Text)

	menu := effects[2].(SendMenu)
	assert.True(t, menu.Inline)
	assert.Equal(t, []MenuOption{
		{Label: "Haircut", Value: "1"},
		{Label: "Beard <trim>", Value: "2"},
	}, menu.Options)
}

func TestCatalogRequestEmptyAndFailing(t *testing.T) {
	h := newHarness(t)
	h.cat.offerings = nil
	_, _ = h.send(StartCommand{})

	effects, err := h.send(TextMessage{Text: "Services"})
	require.NoError(t, err)
	assert.Equal(t, h.texts().CatalogEmpty, onlyText(t, effects))
	assert.Equal(t, PhaseAwaitingCatalogRequest, h.st.Phase)

	h.cat.listErr = errors.New("connection refused")
	effects, err = h.send(TextMessage{Text: "Services"})
	require.ErrorIs(t, err, ErrCatalog)
	assert.Equal(t, h.texts().GenericError, onlyText(t, effects))
	assert.NotContains(t, onlyText(t, effects), "connection refused")
	assert.Equal(t, PhaseAwaitingCatalogRequest, h.st.Phase)
}

func TestUnrecognizedTextBeforeCatalogRepeatsHint(t *testing.T) {
	h := newHarness(t)
	_, _ = h.send(StartCommand{})
	before := h.st

	effects, err := h.send(TextMessage{Text: "hello?"})
	require.NoError(t, err)
	assert.Equal(t, before, h.st)
	require.Len(t, effects, 1)
	menu := effects[0].(SendMenu)
	assert.Equal(t, h.texts().CatalogHint, menu.Text)
	assert.Equal(t, 0, h.cat.lists)
}

func TestFullConversation(t *testing.T) {
	h := newHarness(t)
	_, _ = h.send(StartCommand{})
	_, _ = h.send(TextMessage{Text: "Services"})

	effects, err := h.send(CatalogSelection{OfferingID: 1})
	require.NoError(t, err)
	assert.Equal(t, PhaseEnteringName, h.st.Phase)
	require.NotNil(t, h.st.SelectedOffering)
	assert.Equal(t, int64(1), h.st.SelectedOffering.ID)
	details := effects[0].(SendText)
	assert.True(t, details.Rich)
	assert.True(t, details.Replace)
	assert.True(t, strings.HasSuffix(details.Text, "<b>Please enter your name:</b>"))

	effects, err = h.send(TextMessage{Text: "Ann"})
	require.NoError(t, err)
	assert.Equal(t, h.texts().PhonePrompt, onlyText(t, effects))
	assert.Equal(t, PhaseEnteringPhone, h.st.Phase)
	assert.Equal(t, "Ann", h.st.EnteredName)

	effects, err = h.send(TextMessage{Text: "abc"})
	require.ErrorIs(t, err, ErrValidation)
	require.ErrorIs(t, err, ErrInvalidPhone)
	assert.Equal(t, h.texts().PhoneInvalid, onlyText(t, effects))
	assert.Equal(t, PhaseEnteringPhone, h.st.Phase)
	assert.Empty(t, h.st.EnteredPhone)

	effects, err = h.send(TextMessage{Text: "12345"})
	require.NoError(t, err)
	assert.Equal(t, []submitCall{{"Ann", "12345", 1}}, h.sub.calls)
	require.Len(t, h.sub.keys, 1)
	assert.NotEmpty(t, h.sub.keys[0])
	assert.Equal(t, PhaseCompleted, h.st.Phase)
	assert.True(t, h.st.HasSubmitted)
	assert.Equal(t, int64(101), h.st.RequestID)
	require.Len(t, effects, 2)
	assert.Equal(t, SendText{Text: h.texts().Submitted}, effects[0])
	accepted := effects[1].(RequestAccepted)
	assert.Equal(t, int64(101), accepted.RequestID)
	assert.Equal(t, "Haircut", accepted.Offering.Name)
}

func TestEventsAfterSubmissionAreRejected(t *testing.T) {
	h := newHarness(t)
	h.driveToPhone("Ann")
	_, err := h.send(TextMessage{Text: "12345"})
	require.NoError(t, err)
	submitted := h.st

	events := []Event{
		TextMessage{Text: "another"},
		TextMessage{Text: "Services"},
		CatalogSelection{OfferingID: 2},
		CancelCommand{},
		StartCommand{},
		TextMessage{Text: "Services"},
		TextMessage{Text: "Bob"},
		TextMessage{Text: "99999"},
	}
	for _, ev := range events {
		effects, err := h.send(ev)
		if _, ok := ev.(StartCommand); ok {
			require.NoError(t, err)
			continue
		}
		require.ErrorIs(t, err, ErrDuplicateSubmission)
		assert.Equal(t, h.texts().AlreadySubmitted, onlyText(t, effects))
		assert.Equal(t, PhaseCompleted, h.st.Phase)
	}

	assert.True(t, h.st.HasSubmitted)
	assert.Equal(t, submitted.EnteredName, h.st.EnteredName)
	assert.Equal(t, submitted.EnteredPhone, h.st.EnteredPhone)
	assert.Equal(t, submitted.SelectedOffering, h.st.SelectedOffering)
	assert.Len(t, h.sub.calls, 1)
	assert.Equal(t, 1, h.cat.lists, "catalog must not be listed again")
}

func TestSubmissionFailureEndsSession(t *testing.T) {
	h := newHarness(t)
	h.sub.err = errors.New("insert failed: pq: violates foreign key")
	h.driveToPhone("Ann")

	effects, err := h.send(TextMessage{Text: "12345"})
	require.ErrorIs(t, err, ErrSubmission)
	assert.Equal(t, h.texts().SubmitFailed, onlyText(t, effects))
	assert.Equal(t, PhaseCompleted, h.st.Phase)
	assert.False(t, h.st.HasSubmitted)

	effects, err = h.send(TextMessage{Text: "12345"})
	require.NoError(t, err)
	assert.Equal(t, h.texts().StartHint, onlyText(t, effects))
	assert.Len(t, h.sub.calls, 1, "submission is never retried automatically")

	h.sub.err = nil
	h.driveToPhone("Ann")
	_, err = h.send(TextMessage{Text: "54321"})
	require.NoError(t, err)
	assert.True(t, h.st.HasSubmitted)
}

func TestResubmittedAttemptIsRecognized(t *testing.T) {
	h := newHarness(t)
	h.driveToPhone("Ann")
	lost := h.st

	_, err := h.send(TextMessage{Text: "12345"})
	require.NoError(t, err)

	// The submitted state was never stored; the user sends the phone again.
	h.st = lost
	effects, err := h.send(TextMessage{Text: "12345"})
	require.ErrorIs(t, err, ErrDuplicateSubmission)
	assert.Equal(t, h.texts().AlreadySubmitted, onlyText(t, effects))
	assert.True(t, h.st.HasSubmitted)
	assert.Equal(t, int64(101), h.st.RequestID)
	assert.Equal(t, PhaseCompleted, h.st.Phase)
	assert.Equal(t, h.sub.keys[0], h.sub.keys[1])
	assert.Len(t, h.sub.stored, 1)
}

func TestEveryAttemptGetsItsOwnKey(t *testing.T) {
	h := newHarness(t)
	n := 0
	h.m.newKey = func() string {
		n++
		return fmt.Sprintf("attempt-%d", n)
	}

	h.driveToPhone("Ann")
	assert.Equal(t, "attempt-1", h.st.SubmissionKey)
	_, _ = h.send(CancelCommand{})
	h.driveToPhone("Ann")
	assert.Equal(t, "attempt-2", h.st.SubmissionKey)
	_, err := h.send(TextMessage{Text: "12345"})
	require.NoError(t, err)
	assert.Equal(t, []string{"attempt-2"}, h.sub.keys)

	legacy := SessionState{
		Phase:            PhaseEnteringPhone,
		SelectedOffering: &catalog.Offering{ID: 1, Name: "Haircut"},
		EnteredName:      "Bob",
	}
	next, _, err := h.m.Transition(context.Background(), legacy, TextMessage{Text: "54321"})
	require.NoError(t, err)
	assert.Equal(t, "attempt-3", next.SubmissionKey)
}

func TestPhoneLengthIsBounded(t *testing.T) {
	h := newHarness(t)
	h.driveToPhone("Ann")

	effects, err := h.send(TextMessage{Text: strings.Repeat("7", maxPhoneLen+1)})
	require.ErrorIs(t, err, ErrValidation)
	require.ErrorIs(t, err, ErrPhoneTooLong)
	assert.Equal(t, h.texts().PhoneTooLong, onlyText(t, effects))
	assert.Equal(t, PhaseEnteringPhone, h.st.Phase)
	assert.Empty(t, h.st.EnteredPhone)
	assert.Empty(t, h.sub.calls)

	_, err = h.send(TextMessage{Text: strings.Repeat("7", maxPhoneLen)})
	require.NoError(t, err)
	assert.True(t, h.st.HasSubmitted)
}

func TestSelectionOfVanishedOffering(t *testing.T) {
	h := newHarness(t)
	_, _ = h.send(StartCommand{})
	_, _ = h.send(TextMessage{Text: "Services"})

	effects, err := h.send(CatalogSelection{OfferingID: 42})
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, err, catalog.ErrNotFound)
	assert.Equal(t, h.texts().GenericError, onlyText(t, effects))
	assert.Equal(t, PhaseCompleted, h.st.Phase)
	assert.Nil(t, h.st.SelectedOffering)

	h.cat.getErr = errors.New("timeout")
	_, _ = h.send(StartCommand{})
	_, _ = h.send(TextMessage{Text: "Services"})
	_, err = h.send(CatalogSelection{OfferingID: 1})
	require.ErrorIs(t, err, ErrCatalog)
	assert.Equal(t, PhaseCompleted, h.st.Phase)
}

func TestCancelThenRestart(t *testing.T) {
	h := newHarness(t)
	_, _ = h.send(StartCommand{})
	_, _ = h.send(TextMessage{Text: "Services"})
	_, _ = h.send(CatalogSelection{OfferingID: 2})
	_, _ = h.send(TextMessage{Text: "Ann"})

	effects, err := h.send(CancelCommand{})
	require.NoError(t, err)
	assert.Equal(t, h.texts().Cancelled, onlyText(t, effects))
	assert.Equal(t, PhaseCompleted, h.st.Phase)
	assert.False(t, h.st.HasSubmitted)

	_, err = h.send(StartCommand{})
	require.NoError(t, err)
	assert.Equal(t, SessionState{Phase: PhaseAwaitingCatalogRequest}, h.st)
}

func TestRestartClearsCollectedFields(t *testing.T) {
	h := newHarness(t)
	h.driveToPhone("Ann")

	_, err := h.send(StartCommand{})
	require.NoError(t, err)
	assert.Equal(t, SessionState{Phase: PhaseAwaitingCatalogRequest}, h.st)
}

func TestCancelFromEveryPhase(t *testing.T) {
	phases := []Phase{
		PhaseAwaitingStart,
		PhaseAwaitingCatalogRequest,
		PhaseChoosingOffering,
		PhaseEnteringName,
		PhaseEnteringPhone,
		PhaseCompleted,
	}
	m := NewMachine(&fakeCatalog{}, &fakeSubmitter{}, Texts{})
	for _, p := range phases {
		next, effects, err := m.Transition(context.Background(), SessionState{Phase: p, EnteredName: "x"}, CancelCommand{})
		require.NoError(t, err, p)
		assert.Equal(t, SessionState{Phase: PhaseCompleted}, next, p)
		assert.Equal(t, m.Texts().Cancelled, onlyText(t, effects), p)
	}
}

func TestOutOfPhaseEventsKeepState(t *testing.T) {
	m := NewMachine(&fakeCatalog{}, &fakeSubmitter{}, Texts{})
	offering := &catalog.Offering{ID: 1, Name: "Haircut"}
	cases := []struct {
		name string
		st   SessionState
		ev   Event
		want string
	}{
		{"text before start", SessionState{}, TextMessage{Text: "hi"}, m.Texts().StartHint},
		{"text after cancel", SessionState{Phase: PhaseCompleted}, TextMessage{Text: "hi"}, m.Texts().StartHint},
		{"text while choosing", SessionState{Phase: PhaseChoosingOffering}, TextMessage{Text: "Haircut"}, m.Texts().ChooseHint},
		{"stale button on name", SessionState{Phase: PhaseEnteringName, SelectedOffering: offering}, CatalogSelection{OfferingID: 1}, m.Texts().NamePrompt},
		{"stale button on phone", SessionState{Phase: PhaseEnteringPhone, SelectedOffering: offering, EnteredName: "Ann"}, CatalogSelection{OfferingID: 1}, m.Texts().PhonePrompt},
		{"photo while choosing", SessionState{Phase: PhaseChoosingOffering}, OtherMessage{}, m.Texts().ChooseHint},
		{"sticker as name", SessionState{Phase: PhaseEnteringName, SelectedOffering: offering}, OtherMessage{}, m.Texts().NamePrompt},
		{"contact as phone", SessionState{Phase: PhaseEnteringPhone, SelectedOffering: offering, EnteredName: "Ann"}, OtherMessage{}, m.Texts().PhonePrompt},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			want := tc.st
			if want.Phase == "" {
				want.Phase = PhaseAwaitingStart
			}
			next, effects, err := m.Transition(context.Background(), tc.st, tc.ev)
			require.NoError(t, err)
			assert.Equal(t, want, next)
			assert.Equal(t, tc.want, onlyText(t, effects))
		})
	}
}

func TestNameIsStoredVerbatimUpToLimit(t *testing.T) {
	h := newHarness(t)
	h.driveToPhone("  Ann-Marie O'Neil  ")
	assert.Equal(t, "  Ann-Marie O'Neil  ", h.st.EnteredName)

	h = newHarness(t)
	_, _ = h.send(StartCommand{})
	_, _ = h.send(TextMessage{Text: "Services"})
	_, _ = h.send(CatalogSelection{OfferingID: 1})

	effects, err := h.send(TextMessage{Text: strings.Repeat("я", maxNameLen+1)})
	require.ErrorIs(t, err, ErrNameTooLong)
	assert.Equal(t, h.texts().NameTooLong, onlyText(t, effects))
	assert.Equal(t, PhaseEnteringName, h.st.Phase)
	assert.Empty(t, h.st.EnteredName)

	_, err = h.send(TextMessage{Text: strings.Repeat("я", maxNameLen)})
	require.NoError(t, err)
	assert.Equal(t, PhaseEnteringPhone, h.st.Phase)
}

func TestCustomCatalogLabel(t *testing.T) {
	cat := &fakeCatalog{offerings: []catalog.Offering{{ID: 7, Name: "Маникюр"}}}
	m := NewMachine(cat, &fakeSubmitter{}, Texts{CatalogButton: "Услуги"})

	st, _, _ := m.Transition(context.Background(), NewSession(), StartCommand{})
	st, effects, err := m.Transition(context.Background(), st, TextMessage{Text: " УСЛУГИ "})
	require.NoError(t, err)
	assert.Equal(t, PhaseChoosingOffering, st.Phase)
	assert.Equal(t, "💼 <b>Маникюр</b>", effects[0].(SendText).Text)
}

func TestErrorCodes(t *testing.T) {
	err := fmt.Errorf("step: %w", wrap(KindSubmission, errors.New("boom")))
	var ie *Error
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, "SUBMISSION", ie.Code())
	assert.Equal(t, "submission: boom", ie.Error())
	assert.False(t, errors.Is(err, ErrValidation))
	assert.Equal(t, "DUPLICATE_SUBMISSION", ErrDuplicateSubmission.Code())
}
