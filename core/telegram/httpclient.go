package telegram

import (
	"errors"
	"net"
	"net/http"
	"time"
)

const (
	dialTimeout  = 5 * time.Second
	keepAlive    = 30 * time.Second
	dialRetries  = 3
	dialBackoff  = 2 * time.Second
	pollSlack    = 15 * time.Second
	idleConnLife = 30 * time.Second
)

// BuildHTTPClient returns the client the bot talks to Telegram with. Its
// timeout is the long-poll timeout plus a margin, so getUpdates is never cut
// short by the client.
func BuildHTTPClient(longPollTimeout time.Duration) *http.Client {
	if longPollTimeout <= 0 {
		longPollTimeout = defaultLongPollTimeout * time.Second
	}
	dialer := &net.Dialer{Timeout: dialTimeout, KeepAlive: keepAlive}
	return &http.Client{
		Timeout: longPollTimeout + pollSlack,
		Transport: &retryTransport{
			base: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				DialContext:           dialer.DialContext,
				ForceAttemptHTTP2:     true,
				MaxIdleConnsPerHost:   10,
				IdleConnTimeout:       idleConnLife,
				TLSHandshakeTimeout:   dialTimeout,
				ExpectContinueTimeout: time.Second,
			},
			maxRetries: dialRetries,
			backoff:    dialBackoff,
		},
	}
}

// retryTransport repeats requests that failed to connect. A request that may
// have reached Telegram is never repeated here; the sender dispatcher decides
// whether that call is safe to send again.
type retryTransport struct {
	base       http.RoundTripper
	maxRetries int
	backoff    time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	for attempt := 1; attempt <= t.maxRetries && err != nil && dialFailed(err); attempt++ {
		if werr := sleepCtx(req, t.backoff*time.Duration(attempt)); werr != nil {
			return nil, werr
		}
		next, rerr := rewind(req)
		if rerr != nil {
			return nil, err
		}
		resp, err = t.base.RoundTrip(next)
	}
	return resp, err
}

// rewind clones req with a fresh body. Requests whose body cannot be
// replayed are reported as an error.
func rewind(req *http.Request) (*http.Request, error) {
	next := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return next, nil
	}
	if req.GetBody == nil {
		return nil, errors.New("request body cannot be replayed")
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	next.Body = body
	return next, nil
}

func sleepCtx(req *http.Request, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-req.Context().Done():
		return req.Context().Err()
	case <-t.C:
		return nil
	}
}

// dialFailed reports connection failures, where nothing was sent.
func dialFailed(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}
