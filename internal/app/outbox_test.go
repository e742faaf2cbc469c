package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/intakebot/internal/catalog"
	"github.com/m3rciful/intakebot/internal/intake"
)

func TestNotificationEscapesUserInput(t *testing.T) {
	got := Notification(intake.RequestAccepted{
		RequestID: 12,
		Name:      "<Ann & Co>",
		Phone:     "5551234",
		Offering:  catalog.Offering{ID: 1, Name: "Cut & Style"},
	})
	assert.Equal(t,
		"<b>New request #12</b>\nService: Cut &amp; Style\nName: &lt;Ann &amp; Co&gt;\nPhone: 5551234",
		got)
}

func TestMenuMarkup(t *testing.T) {
	inline := menuMarkup(intake.SendMenu{
		Inline:  true,
		Options: []intake.MenuOption{{Label: "Haircut", Value: "1"}, {Label: "Manicure", Value: "2"}},
	})
	require.Len(t, inline.InlineKeyboard, 2)
	assert.Equal(t, "Haircut", inline.InlineKeyboard[0][0].Text)
	assert.Equal(t, offeringCallback, inline.InlineKeyboard[0][0].Unique)
	assert.Equal(t, "1", inline.InlineKeyboard[0][0].Data)

	reply := menuMarkup(intake.SendMenu{Options: []intake.MenuOption{{Label: "Services", Value: "Services"}}})
	require.Len(t, reply.ReplyKeyboard, 1)
	assert.Equal(t, "Services", reply.ReplyKeyboard[0][0].Text)
	assert.True(t, reply.OneTimeKeyboard)
}
