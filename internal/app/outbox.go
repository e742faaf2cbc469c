package app

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/m3rciful/intakebot/core/telegram/format"
	tghelpers "github.com/m3rciful/intakebot/core/telegram/helpers"
	"github.com/m3rciful/intakebot/core/telegram/keyboard"
	"github.com/m3rciful/intakebot/internal/intake"

	tele "gopkg.in/telebot.v4"
)

// Outbox delivers effects through the shared sender dispatcher. Accepted
// requests are forwarded to the operator chat when one is configured.
type Outbox struct {
	bot     *tele.Bot
	adminID int64
}

// NewOutbox builds an Outbox; adminID 0 disables operator notices.
func NewOutbox(bot *tele.Bot, adminID int64) *Outbox {
	return &Outbox{bot: bot, adminID: adminID}
}

// Deliver implements Deliverer.
func (o *Outbox) Deliver(c tele.Context, eff intake.Effect) error {
	switch e := eff.(type) {
	case intake.SendText:
		text := e.Text
		if !e.Rich {
			text = format.EscapeHTML(text)
		}
		if e.Replace {
			return tghelpers.EditOrSendHTML(c, text)
		}
		if e.Rich {
			return tghelpers.SendHTML(c, text)
		}
		return tghelpers.SendPlain(c, e.Text)
	case intake.SendMenu:
		return tghelpers.SendPlain(c, e.Text, menuMarkup(e))
	case intake.RequestAccepted:
		if o.adminID == 0 || o.bot == nil {
			return nil
		}
		return tghelpers.SendTo(tghelpers.BuildContext(c), o.bot, tele.ChatID(o.adminID),
			Notification(e), &tele.SendOptions{ParseMode: tele.ModeHTML})
	}
	return fmt.Errorf("unsupported effect %T", eff)
}

// menuMarkup lays out one button per row. Reply menus hide after a press so
// the keyboard does not linger over later prompts.
func menuMarkup(m intake.SendMenu) *tele.ReplyMarkup {
	if m.Inline {
		btns := make([]keyboard.Button, 0, len(m.Options))
		for _, opt := range m.Options {
			btns = append(btns, keyboard.Button{Label: opt.Label, Data: opt.Value})
		}
		return keyboard.Inline(offeringCallback, 1, btns...)
	}
	labels := make([]string, 0, len(m.Options))
	for _, opt := range m.Options {
		labels = append(labels, opt.Label)
	}
	return keyboard.Reply(true, 1, labels...)
}

// Notification renders the operator notice for an accepted request.
func Notification(r intake.RequestAccepted) string {
	var b strings.Builder
	b.WriteString(format.Bold("New request #" + strconv.FormatInt(r.RequestID, 10)))
	b.WriteString("\nService: ")
	b.WriteString(format.EscapeHTML(r.Offering.Name))
	b.WriteString("\nName: ")
	b.WriteString(format.EscapeHTML(r.Name))
	b.WriteString("\nPhone: ")
	b.WriteString(format.EscapeHTML(r.Phone))
	return b.String()
}
