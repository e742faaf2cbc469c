package netutil

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"regexp"
	"time"

	tele "gopkg.in/telebot.v4"
)

var tokenRe = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)

// Classify names the failure class of err for logs: timeout, dns, dial, tls,
// flood, http_4xx, http_5xx or unknown. A nil error yields "".
func Classify(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return "flood"
	}
	if status := HTTPStatus(err); status >= 500 {
		return "http_5xx"
	} else if status >= 400 {
		return "http_4xx"
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return "timeout"
		}
		return "dns"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return "dial"
	}
	var alert tls.AlertError
	if errors.As(err, &alert) {
		return "tls"
	}
	return "unknown"
}

// HTTPStatus extracts the status Telegram answered with, or 0.
func HTTPStatus(err error) int {
	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return http.StatusTooManyRequests
	}
	var groupErr tele.GroupError
	if errors.As(err, &groupErr) {
		return http.StatusBadRequest
	}
	return 0
}

// RetryDelay returns how long to wait before the next attempt. Flood control
// answers dictate their own delay; other errors back off linearly.
func RetryDelay(err error, base time.Duration, attempt int) time.Duration {
	delay := base * time.Duration(attempt)
	var flood tele.FloodError
	if errors.As(err, &flood) {
		if after := time.Duration(flood.RetryAfter) * time.Second; after > delay {
			return after
		}
	}
	return delay
}

// Redact hides bot tokens embedded in request URLs of err.
func Redact(err error) string {
	if err == nil {
		return ""
	}
	return tokenRe.ReplaceAllString(err.Error(), "bot<redacted>")
}
