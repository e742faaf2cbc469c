package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		updatesTotal,
		transitionsTotal,
		submissionsTotal,
		sendsTotal,
	)
}

var (
	updatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_updates_total",
			Help: "Telegram updates handled, by event kind.",
		},
		[]string{"event"},
	)

	transitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_transitions_total",
			Help: "Conversation transitions by source and target phase and error code.",
		},
		[]string{"from", "to", "code"},
	)

	submissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_submissions_total",
			Help: "Submission attempts by outcome (accepted/failed/duplicate).",
		},
		[]string{"outcome"},
	)

	sendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_outbound_total",
			Help: "Outbound Telegram calls by action and outcome.",
		},
		[]string{"action", "outcome"},
	)
)

func norm(s string) string {
	if s = strings.ToLower(strings.TrimSpace(s)); s == "" {
		return "none"
	}
	return s
}

// IncUpdate counts one handled event.
func IncUpdate(event string) {
	updatesTotal.WithLabelValues(norm(event)).Inc()
}

// ObserveTransition counts one transition; code is empty on success.
func ObserveTransition(from, to, code string) {
	transitionsTotal.WithLabelValues(norm(from), norm(to), norm(code)).Inc()
}

// IncSubmission counts one submission outcome.
func IncSubmission(outcome string) {
	submissionsTotal.WithLabelValues(norm(outcome)).Inc()
}

// ObserveSend matches sender.Options.OnDone.
func ObserveSend(action string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "fail"
	}
	sendsTotal.WithLabelValues(norm(action), outcome).Inc()
}

// SessionsInFlight publishes fn as a gauge of sessions with work in progress.
// Calling it twice replaces nothing; the first registration wins.
func SessionsInFlight(fn func() int) {
	g := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "intake_sessions_in_flight",
		Help: "Sessions with an update being processed or waiting.",
	}, func() float64 { return float64(fn()) })
	_ = prometheus.Register(g)
}
