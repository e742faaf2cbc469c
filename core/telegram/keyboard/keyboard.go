// Package keyboard lays out reply and inline keyboards in columns.
package keyboard

import tele "gopkg.in/telebot.v4"

// Button is one key. Data is the callback payload and is ignored on reply
// keyboards.
type Button struct {
	Label string
	Data  string
}

// Inline builds an inline keyboard whose buttons all carry the callback key
// unique. cols below one puts every button on its own row.
func Inline(unique string, cols int, buttons ...Button) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	for _, row := range chunk(buttons, cols) {
		keys := make([]tele.InlineButton, 0, len(row))
		for _, b := range row {
			keys = append(keys, *markup.Data(b.Label, unique, b.Data).Inline())
		}
		markup.InlineKeyboard = append(markup.InlineKeyboard, keys)
	}
	return markup
}

// Reply builds a resized reply keyboard from labels. A oneTime keyboard is
// hidden by the client after the first press.
func Reply(oneTime bool, cols int, labels ...string) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{ResizeKeyboard: true, OneTimeKeyboard: oneTime}
	rows := make([]tele.Row, 0, len(labels))
	for _, row := range chunk(labels, cols) {
		keys := make([]tele.Btn, 0, len(row))
		for _, label := range row {
			keys = append(keys, markup.Text(label))
		}
		rows = append(rows, markup.Row(keys...))
	}
	markup.Reply(rows...)
	return markup
}

func chunk[T any](items []T, cols int) [][]T {
	if cols < 1 {
		cols = 1
	}
	rows := make([][]T, 0, (len(items)+cols-1)/cols)
	for len(items) > cols {
		rows = append(rows, items[:cols])
		items = items[cols:]
	}
	if len(items) > 0 {
		rows = append(rows, items)
	}
	return rows
}
