// Package callbacks decodes inline button presses.
package callbacks

import (
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Data is a decoded button press: the unique key the button was built with
// and its payload.
type Data struct {
	Key     string
	Payload string
}

// Parse decodes cb. Telebot fills Unique when it recognises the key;
// otherwise Data still holds the raw "\f<unique>|<payload>" form.
func Parse(cb *tele.Callback) Data {
	if cb == nil {
		return Data{}
	}
	if cb.Unique != "" {
		return Data{Key: cb.Unique, Payload: cb.Data}
	}
	key, payload, _ := strings.Cut(strings.TrimPrefix(cb.Data, "\f"), "|")
	return Data{Key: strings.TrimSpace(key), Payload: payload}
}

// From decodes the callback of the current update.
func From(c tele.Context) Data {
	return Parse(c.Callback())
}

// Int64 reads the payload as a decimal id.
func (d Data) Int64() (int64, error) {
	p := strings.TrimSpace(d.Payload)
	if p == "" {
		return 0, fmt.Errorf("callback %q: empty payload: %w", d.Key, strconv.ErrSyntax)
	}
	v, err := strconv.ParseInt(p, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("callback %q: %w", d.Key, err)
	}
	return v, nil
}
