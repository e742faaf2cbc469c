package middleware

import (
	"sync/atomic"

	tele "gopkg.in/telebot.v4"
)

const countersKey = "send_counters"

// sendCounters is shared by every copy of the wrapped context. Sends may
// complete on dispatcher workers after the handler returned.
type sendCounters struct {
	messages atomic.Int64
	kb       atomic.Bool
}

// metricsContext wraps tele.Context to count sent messages and detect keyboard usage.
type metricsContext struct {
	tele.Context
	n *sendCounters
}

func (m metricsContext) record(err error, opts []any) error {
	if err != nil {
		return err
	}
	m.n.messages.Add(1)
	if hasKeyboard(opts) {
		m.n.kb.Store(true)
	}
	return nil
}

func hasKeyboard(opts []any) bool {
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.SendOptions:
			if v != nil && v.ReplyMarkup != nil {
				return true
			}
		case *tele.ReplyMarkup:
			if v != nil {
				return true
			}
		}
	}
	return false
}

// Send proxies tele.Context.Send while updating message counters.
func (m metricsContext) Send(what any, opts ...any) error {
	return m.record(m.Context.Send(what, opts...), opts)
}

// Reply proxies tele.Context.Reply while updating message counters.
func (m metricsContext) Reply(what any, opts ...any) error {
	return m.record(m.Context.Reply(what, opts...), opts)
}

// Edit proxies tele.Context.Edit while updating message counters.
func (m metricsContext) Edit(what any, opts ...any) error {
	return m.record(m.Context.Edit(what, opts...), opts)
}

// EditOrSend proxies tele.Context.EditOrSend while updating message counters.
func (m metricsContext) EditOrSend(what any, opts ...any) error {
	return m.record(m.Context.EditOrSend(what, opts...), opts)
}

// MessageMetricsMiddleware instruments the context so handler summaries can
// report how many messages an update produced and whether any had a keyboard.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		n := &sendCounters{}
		c.Set(countersKey, n)
		return next(metricsContext{Context: c, n: n})
	}
}

// GetCounters returns messages sent so far for the update and whether any
// carried a keyboard. Sends still queued on the dispatcher are not counted.
func GetCounters(c tele.Context) (int, bool) {
	n, ok := c.Get(countersKey).(*sendCounters)
	if !ok || n == nil {
		return 0, false
	}
	return int(n.messages.Load()), n.kb.Load()
}
