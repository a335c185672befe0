package inspector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agent-protocol/a2a-inspector/internal/echoagent"
)

type countingTransport struct {
	calls atomic.Int32
}

func (t *countingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.calls.Add(1)
	return http.DefaultTransport.RoundTrip(req)
}

type fakeRecorder struct {
	mu       sync.Mutex
	outcomes map[string][]string
}

func (r *fakeRecorder) ObserveOperation(op, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.outcomes == nil {
		r.outcomes = make(map[string][]string)
	}
	r.outcomes[op] = append(r.outcomes[op], outcome)
}

func startEchoAgent(t *testing.T, cfg echoagent.Config) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(echoagent.New(cfg).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func localService(options ...Option) *Service {
	return NewService(Options{RequestTimeout: 5 * time.Second, AllowPrivateNetworks: true}, options...)
}

func TestLoadAgentCardVerbatim(t *testing.T) {
	served := `{"name":"Echo","version":"1.0","x-vendor":{"tier":"gold","limits":[1,2,3]},"url":"http://example.invalid/"}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != echoagent.CardPath {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(served))
	}))
	defer srv.Close()

	rec := &fakeRecorder{}
	env := localService(WithRecorder(rec)).LoadAgentCard(context.Background(), srv.URL)

	require.True(t, env.Success, env.Error)
	require.NotNil(t, env.Data)
	assert.Equal(t, served, string(*env.Data))
	assert.Equal(t, "Agent card loaded successfully", env.Message)
	assert.Empty(t, env.Kind)
	assert.Equal(t, []string{"success"}, rec.outcomes[OpLoadCard])
}

func TestLoadAgentCardWellKnownPaths(t *testing.T) {
	srv := startEchoAgent(t, echoagent.Config{Name: "Echo"})
	svc := localService()

	for _, target := range []string{
		srv.URL,
		srv.URL + "/",
		srv.URL + echoagent.CardPath,
		srv.URL + echoagent.LegacyCardPath,
	} {
		env := svc.LoadAgentCard(context.Background(), target)
		require.True(t, env.Success, "%s: %s", target, env.Error)

		var card map[string]any
		require.NoError(t, json.Unmarshal(*env.Data, &card))
		assert.Equal(t, "Echo", card["name"], target)
	}
}

func TestInvalidURLMakesNoNetworkCall(t *testing.T) {
	transport := &countingTransport{}
	resolver := &stubResolver{addrs: []string{"10.0.0.1"}}
	svc := NewService(Options{}, WithTransport(transport), WithResolver(resolver))

	for _, target := range []string{"", "not a url", "ftp://agent.example.com", "http://localhost:9999", "http://127.0.0.1", "https://internal.example.com"} {
		env := svc.LoadAgentCard(context.Background(), target)
		assert.False(t, env.Success, target)
		assert.Equal(t, KindValidation, env.Kind, target)
		assert.Nil(t, env.Data, target)

		send := svc.SendChatMessage(context.Background(), target, "ping")
		assert.Equal(t, KindValidation, send.Kind, target)
	}
	assert.Zero(t, transport.calls.Load())
}

func TestUnreachableAgent(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	target := srv.URL
	srv.Close()

	svc := localService()

	load := svc.LoadAgentCard(context.Background(), target)
	assert.False(t, load.Success)
	assert.Equal(t, KindConnection, load.Kind, load.Error)

	send := svc.SendChatMessage(context.Background(), target, "ping")
	assert.False(t, send.Success)
	assert.Equal(t, KindConnection, send.Kind, send.Error)
}

func TestProtocolErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "not found",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.NotFound(w, r)
			},
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
		},
		{
			name: "not json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/html")
				_, _ = w.Write([]byte("<html>hello</html>"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			env := localService().LoadAgentCard(context.Background(), srv.URL)
			assert.False(t, env.Success)
			assert.Equal(t, KindProtocol, env.Kind, env.Error)
		})
	}
}

func TestSendChatMessageEmptyMessage(t *testing.T) {
	transport := &countingTransport{}
	svc := localService(WithTransport(transport))

	for _, msg := range []string{"", "   ", "\n\t"} {
		env := svc.SendChatMessage(context.Background(), "http://127.0.0.1:1", msg)
		assert.False(t, env.Success)
		assert.Equal(t, KindValidation, env.Kind)
		assert.Equal(t, "message is required", env.Error)
	}
	assert.Zero(t, transport.calls.Load())
}

func TestSendChatMessageEcho(t *testing.T) {
	srv := startEchoAgent(t, echoagent.Config{Name: "Echo", Version: "1.0"})

	rec := &fakeRecorder{}
	env := localService(WithRecorder(rec)).SendChatMessage(context.Background(), srv.URL, "ping")

	require.True(t, env.Success, env.Error)
	require.NotNil(t, env.Data)
	assert.True(t, json.Valid(*env.Data))
	assert.Contains(t, string(*env.Data), "ping")
	assert.Equal(t, []string{"success"}, rec.outcomes[OpSendMessage])
}

func TestSendChatMessageStreamingKeepsLastEvent(t *testing.T) {
	srv := startEchoAgent(t, echoagent.Config{Name: "Echo", Streaming: true})
	svc := localService()

	var events []json.RawMessage
	err := svc.StreamChatMessage(context.Background(), srv.URL, "ping", func(ev json.RawMessage) error {
		events = append(events, ev)
		return nil
	})
	require.NoError(t, err)
	require.NotEmpty(t, events)

	env := svc.SendChatMessage(context.Background(), srv.URL, "ping")
	require.True(t, env.Success, env.Error)
	assert.Contains(t, string(*env.Data), "completed")
	assert.Contains(t, string(*env.Data), "ping")
}

func TestStreamChatMessageEmitErrorAborts(t *testing.T) {
	srv := startEchoAgent(t, echoagent.Config{Streaming: true})

	stop := &Error{Kind: KindInternal, Op: OpStream}
	calls := 0
	err := localService().StreamChatMessage(context.Background(), srv.URL, "ping", func(json.RawMessage) error {
		calls++
		return stop
	})
	assert.Same(t, stop, err)
	assert.Equal(t, 1, calls)
}

func TestSendChatMessageTimeout(t *testing.T) {
	srv := startEchoAgent(t, echoagent.Config{ResponseDelay: 2 * time.Second})
	svc := NewService(Options{RequestTimeout: 200 * time.Millisecond, AllowPrivateNetworks: true})

	start := time.Now()
	env := svc.SendChatMessage(context.Background(), srv.URL, "ping")

	assert.False(t, env.Success)
	assert.Equal(t, KindTimeout, env.Kind, env.Error)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestSendChatMessageRejectsPrivateServiceURL(t *testing.T) {
	// The card is reachable through an allowed host but points at a private address.
	srv := startEchoAgent(t, echoagent.Config{URL: "http://10.0.0.5/"})
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	// A public name is accepted by the policy and routed to the test listener.
	svc := NewService(Options{RequestTimeout: 5 * time.Second},
		WithResolver(&stubResolver{addrs: []string{"93.184.216.34"}}),
		WithTransport(rewriteHost(u.Host)),
	)

	env := svc.SendChatMessage(context.Background(), "http://agent.example.com", "ping")
	assert.False(t, env.Success)
	assert.Equal(t, KindValidation, env.Kind, env.Error)
	assert.Contains(t, env.Error, "10.0.0.5")
}

// rewriteHost sends every request to host regardless of the URL it was built for.
func rewriteHost(host string) http.RoundTripper {
	return roundTripFunc(func(req *http.Request) (*http.Response, error) {
		req = req.Clone(req.Context())
		req.URL.Host = host
		req.Host = host
		return http.DefaultTransport.RoundTrip(req)
	})
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func TestInspectAgentCard(t *testing.T) {
	srv := startEchoAgent(t, echoagent.Config{Name: "Echo", Streaming: true})

	env := localService().InspectAgentCard(context.Background(), srv.URL)
	require.True(t, env.Success, env.Error)

	report := env.Data
	assert.True(t, report.Passed)
	assert.True(t, json.Valid(report.Card))

	got := statuses(report)
	assert.Equal(t, CheckPass, got["Streaming capability supported"])
	assert.Equal(t, CheckWarn, got["Push notifications not supported"])
	assert.Equal(t, CheckPass, got["Agent has 1 skills defined"])
}

func TestCardLocation(t *testing.T) {
	tests := []struct {
		raw      string
		wantBase string
		wantOpts int
	}{
		{"https://agent.example.com", "https://agent.example.com", 0},
		{"https://agent.example.com/", "https://agent.example.com", 0},
		{"https://agent.example.com/a2a/", "https://agent.example.com/a2a", 0},
		{"https://agent.example.com/.well-known/agent-card.json", "https://agent.example.com", 1},
		{"https://agent.example.com/v1/.well-known/agent.json?x=1", "https://agent.example.com/v1", 1},
		{"https://agent.example.com/?t=1#frag", "https://agent.example.com", 0},
		{"https://agent.example.com/a2a?t=1", "https://agent.example.com/a2a", 0},
	}

	for _, tt := range tests {
		u, err := url.Parse(tt.raw)
		require.NoError(t, err)

		base, opts := cardLocation(u)
		assert.Equal(t, tt.wantBase, base, tt.raw)
		assert.Len(t, opts, tt.wantOpts, tt.raw)
	}
}

// routeHost sends requests for name to addr and everything else unchanged.
func routeHost(name, addr string) http.RoundTripper {
	return roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if req.URL.Hostname() == name {
			req = req.Clone(req.Context())
			req.URL.Host = addr
			req.Host = addr
		}
		return http.DefaultTransport.RoundTrip(req)
	})
}

func TestRedirectToPrivateAddressIsRejected(t *testing.T) {
	var internalHits atomic.Int32
	internal := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		internalHits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"internal","version":"1.0","url":"http://internal/"}`))
	}))
	defer internal.Close()

	public := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, internal.URL+echoagent.CardPath, http.StatusFound)
	}))
	defer public.Close()
	pu, err := url.Parse(public.URL)
	require.NoError(t, err)

	svc := NewService(Options{RequestTimeout: 5 * time.Second},
		WithResolver(&stubResolver{addrs: []string{"93.184.216.34"}}),
		WithTransport(routeHost("agent.example.com", pu.Host)),
	)

	env := svc.LoadAgentCard(context.Background(), "http://agent.example.com")
	assert.False(t, env.Success)
	assert.Equal(t, KindValidation, env.Kind, env.Error)
	assert.Contains(t, env.Error, "redirect")
	assert.Nil(t, env.Data)
	assert.Zero(t, internalHits.Load())

	// The same redirect is followed when private networks are allowed.
	allowed := localService().LoadAgentCard(context.Background(), public.URL)
	require.True(t, allowed.Success, allowed.Error)
	assert.Contains(t, string(*allowed.Data), `"internal"`)
}

func TestDefaultTransportRefusesPrivateAddresses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	blocked := &http.Client{Transport: newGuardedTransport(&URLPolicy{})}
	_, err := blocked.Get(srv.URL)
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err), err.Error())

	allowed := &http.Client{Transport: newGuardedTransport(&URLPolicy{AllowPrivateNetworks: true})}
	resp, err := allowed.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
