package telegram

import (
	"net"
	"net/http"
	"time"

	"github.com/m3rciful/feedbackbot/core/telegram/netutil"
)

const (
	defaultClientTimeout = 30 * time.Second
	headerTimeout        = 5 * time.Second
	retryStep            = 2 * time.Second
)

// BuildHTTPClient returns the client used for Bot API calls. Long-poll
// requests hold the connection for pollTimeout, so both deadlines are
// extended by it. With retries > 0 transient transport errors are replayed.
func BuildHTTPClient(retries int, pollTimeout time.Duration) *http.Client {
	dialer := &net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}
	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: headerTimeout + pollTimeout,
		ExpectContinueTimeout: time.Second,
	}

	client := &http.Client{Timeout: defaultClientTimeout + pollTimeout, Transport: base}
	if retries > 0 {
		client.Transport = &retryTransport{base: base, maxRetries: retries, backoff: retryStep}
	}
	return client
}

// retryTransport replays requests that fail with a transient error,
// waiting backoff*n before the n-th retry.
type retryTransport struct {
	base       http.RoundTripper
	maxRetries int
	backoff    time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}

	resp, err := base.RoundTrip(req)
	for n := 1; err != nil && n <= t.maxRetries && netutil.ShouldRetry(err); n++ {
		if req.Body != nil && req.GetBody == nil {
			// body already consumed and cannot be rewound
			return nil, err
		}
		if werr := sleepCtx(req, t.backoff*time.Duration(n)); werr != nil {
			return nil, werr
		}
		next, cerr := rewind(req)
		if cerr != nil {
			return nil, cerr
		}
		resp, err = base.RoundTrip(next)
	}
	return resp, err
}

func rewind(req *http.Request) (*http.Request, error) {
	next := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		next.Body = body
	}
	return next, nil
}

func sleepCtx(req *http.Request, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-req.Context().Done():
		return req.Context().Err()
	case <-timer.C:
		return nil
	}
}
