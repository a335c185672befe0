package inspector

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"
)

const (
	// maxCardSize bounds how much of an agent card response is buffered.
	maxCardSize = 4 << 20

	maxRedirects = 10
)

// newGuardedTransport returns a transport that refuses to connect to
// addresses the policy blocks. The check runs on the address actually
// dialled, so redirects and DNS answers that change between validation and
// connection cannot reach a private network.
func newGuardedTransport(p *URLPolicy) *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
		Control:   p.dialControl,
	}
	t.DialContext = dialer.DialContext
	return t
}

// recordingTransport remembers what happened on the wire so failures can be
// classified even when the SDK flattens the underlying error. With capture
// set it also buffers response bodies so the agent card can be returned
// exactly as served.
type recordingTransport struct {
	base    http.RoundTripper
	capture bool

	mu         sync.Mutex
	lastStatus int
	lastBody   []byte
	lastErr    error
	blocked    *Error
}

func newRecordingTransport(base http.RoundTripper, capture bool) *recordingTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &recordingTransport{base: base, capture: capture}
}

func (t *recordingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		var ie *Error
		if errors.As(err, &ie) {
			t.block(ie)
		}
		t.record(0, nil, err)
		return nil, err
	}
	if !t.capture {
		t.record(resp.StatusCode, nil, nil)
		return resp, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCardSize+1))
	resp.Body.Close()
	if err != nil {
		t.record(0, nil, err)
		return nil, err
	}
	if len(body) > maxCardSize {
		err := fmt.Errorf("response body exceeds %d bytes", maxCardSize)
		t.record(resp.StatusCode, nil, nil)
		return nil, err
	}

	t.record(resp.StatusCode, body, nil)
	resp.Body = io.NopCloser(bytes.NewReader(body))
	resp.ContentLength = int64(len(body))
	return resp, nil
}

// client wraps t in an HTTP client whose redirects are held to policy.
func (t *recordingTransport) client(p *URLPolicy) *http.Client {
	return &http.Client{
		Transport: t,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			if _, err := p.Validate(req.Context(), req.URL.String()); err != nil {
				var ie *Error
				if !errors.As(err, &ie) {
					return err
				}
				blocked := newError(ie.Kind, "", fmt.Errorf("redirect to %s rejected: %w", req.URL.Redacted(), ie.Err))
				t.block(blocked)
				return blocked
			}
			return nil
		},
	}
}

func (t *recordingTransport) record(status int, body []byte, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastStatus = status
	t.lastBody = body
	t.lastErr = err
}

func (t *recordingTransport) block(err *Error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.blocked == nil {
		t.blocked = err
	}
}

func (t *recordingTransport) status() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastStatus
}

func (t *recordingTransport) body() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastBody
}

func (t *recordingTransport) transportError() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}

// policyViolation returns the first request the policy refused, if any.
func (t *recordingTransport) policyViolation() *Error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.blocked
}
