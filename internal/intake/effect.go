package intake

import "github.com/m3rciful/intakebot/internal/catalog"

// Effect is an outbound action produced by a transition. Effects are applied in order.
type Effect interface {
	isEffect()
}

// SendText delivers a message. Rich text is Telegram HTML.
type SendText struct {
	Text string
	Rich bool
	// Replace asks the transport to edit the message that carried the event
	// (the offering menu) instead of sending a new one, when it can.
	Replace bool
}

// MenuOption is one button of a menu; Value is opaque to the user.
type MenuOption struct {
	Label string
	Value string
}

// SendMenu delivers a message with buttons. Inline menus send Value back as a
// selection; reply menus make the client type Label as a regular message.
type SendMenu struct {
	Text    string
	Options []MenuOption
	Inline  bool
}

// RequestAccepted reports a successful submission to the hosting layer.
type RequestAccepted struct {
	RequestID int64
	Name      string
	Phone     string
	Offering  catalog.Offering
}

func (SendText) isEffect()        {}
func (SendMenu) isEffect()        {}
func (RequestAccepted) isEffect() {}
