package intake

// Phase is the step a conversation is currently at.
type Phase string

const (
	PhaseAwaitingStart          Phase = "awaiting_start"
	PhaseAwaitingCatalogRequest Phase = "awaiting_catalog_request"
	PhaseChoosingOffering       Phase = "choosing_offering"
	PhaseEnteringName           Phase = "entering_name"
	PhaseEnteringPhone          Phase = "entering_phone"
	// PhaseCompleted is terminal; only StartCommand leaves it.
	PhaseCompleted Phase = "completed"
)

func (p Phase) String() string {
	if p == "" {
		return string(PhaseAwaitingStart)
	}
	return string(p)
}
