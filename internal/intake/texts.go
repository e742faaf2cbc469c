package intake

import "strings"

// Texts holds every user-facing string of the conversation.
// They are sent without parse mode unless wrapped into an offering card.
type Texts struct {
	Welcome          string `yaml:"welcome"`
	CatalogButton    string `yaml:"catalog_button"`
	CatalogHint      string `yaml:"catalog_hint"`
	CatalogEmpty     string `yaml:"catalog_empty"`
	ChooseOffering   string `yaml:"choose_offering"`
	ChooseHint       string `yaml:"choose_hint"`
	NamePrompt       string `yaml:"name_prompt"`
	NameTooLong      string `yaml:"name_too_long"`
	PhonePrompt      string `yaml:"phone_prompt"`
	PhoneInvalid     string `yaml:"phone_invalid"`
	PhoneTooLong     string `yaml:"phone_too_long"`
	Submitted        string `yaml:"submitted"`
	SubmitFailed     string `yaml:"submit_failed"`
	AlreadySubmitted string `yaml:"already_submitted"`
	Cancelled        string `yaml:"cancelled"`
	GenericError     string `yaml:"generic_error"`
	StartHint        string `yaml:"start_hint"`
	// OfferingPrefix is prepended to the bold offering name in cards.
	OfferingPrefix string `yaml:"offering_prefix"`
}

// DefaultTexts returns the built-in English copy.
func DefaultTexts() Texts {
	return Texts{
		Welcome: "Hi! I'm your personal assistant.\n" +
			"I'll help you choose a service and pass your request\n" +
			"on to our team.\n" +
			"Tap \"Services\" to see what we offer.",
		CatalogButton:    "Services",
		CatalogHint:      "Tap \"Services\" to see what we offer.",
		CatalogEmpty:     "There is nothing to offer right now. Please try again later.",
		ChooseOffering:   "Choose a service from the list below:",
		ChooseHint:       "Please choose a service using the buttons above.",
		NamePrompt:       "Please enter your name:",
		NameTooLong:      "That name is too long. Please use at most 100 characters.",
		PhonePrompt:      "Enter your phone number:",
		PhoneInvalid:     "Please enter the phone number using digits only (at least 5).",
		PhoneTooLong:     "That number is too long. Please use at most 20 digits.",
		Submitted:        "Thank you! Your request has been received.",
		SubmitFailed:     "Sorry, we could not register your request. Send /start to try again.",
		AlreadySubmitted: "You cannot create more than one request.",
		Cancelled:        "Request cancelled.",
		GenericError:     "Something went wrong. Send /start to begin again.",
		StartHint:        "Send /start to begin.",
		OfferingPrefix:   "💼",
	}
}

// WithDefaults fills blank fields from DefaultTexts.
func (t Texts) WithDefaults() Texts {
	d := DefaultTexts()
	fill := func(dst *string, def string) {
		if strings.TrimSpace(*dst) == "" {
			*dst = def
		}
	}
	fill(&t.Welcome, d.Welcome)
	fill(&t.CatalogButton, d.CatalogButton)
	fill(&t.CatalogHint, d.CatalogHint)
	fill(&t.CatalogEmpty, d.CatalogEmpty)
	fill(&t.ChooseOffering, d.ChooseOffering)
	fill(&t.ChooseHint, d.ChooseHint)
	fill(&t.NamePrompt, d.NamePrompt)
	fill(&t.NameTooLong, d.NameTooLong)
	fill(&t.PhonePrompt, d.PhonePrompt)
	fill(&t.PhoneInvalid, d.PhoneInvalid)
	fill(&t.PhoneTooLong, d.PhoneTooLong)
	fill(&t.Submitted, d.Submitted)
	fill(&t.SubmitFailed, d.SubmitFailed)
	fill(&t.AlreadySubmitted, d.AlreadySubmitted)
	fill(&t.Cancelled, d.Cancelled)
	fill(&t.GenericError, d.GenericError)
	fill(&t.StartHint, d.StartHint)
	fill(&t.OfferingPrefix, d.OfferingPrefix)
	return t
}
