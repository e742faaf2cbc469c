package intake

// Event is an inbound, transport-neutral user action.
type Event interface {
	Kind() string
}

// StartCommand begins or restarts the conversation.
type StartCommand struct{}

// CancelCommand abandons the conversation without submitting.
type CancelCommand struct{}

// TextMessage is free text typed by the user, menu button labels included.
type TextMessage struct {
	Text string
}

// CatalogSelection is a press on one of the offering buttons.
type CatalogSelection struct {
	OfferingID int64
}

// OtherMessage is anything the user sends that is neither text nor a
// button press: photos, stickers, contacts.
type OtherMessage struct{}

func (StartCommand) Kind() string     { return "start" }
func (CancelCommand) Kind() string    { return "cancel" }
func (TextMessage) Kind() string      { return "text" }
func (CatalogSelection) Kind() string { return "selection" }
func (OtherMessage) Kind() string     { return "other" }
