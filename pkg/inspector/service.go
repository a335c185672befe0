// Package inspector relays inspection requests to remote A2A agents.
//
// The protocol itself is spoken by the a2a-go SDK; this package validates
// targets, bounds each call in time, and folds every outcome into an Envelope.
package inspector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2aclient"
	"github.com/a2aproject/a2a-go/a2aclient/agentcard"
)

const (
	OpLoadCard    = "load_agent_card"
	OpInspectCard = "inspect_agent_card"
	OpSendMessage = "send_message"
	OpStream      = "stream_message"
)

// DefaultRequestTimeout bounds a single inspection when Options leaves it unset.
const DefaultRequestTimeout = 180 * time.Second

// wellKnownCardPaths are recognised at the end of a user supplied URL. The
// first entry is the current A2A location, the second the legacy one.
var wellKnownCardPaths = []string{
	"/.well-known/agent-card.json",
	"/.well-known/agent.json",
}

// Recorder receives one observation per inspector operation.
type Recorder interface {
	ObserveOperation(op string, outcome string, d time.Duration)
}

type noopRecorder struct{}

func (noopRecorder) ObserveOperation(string, string, time.Duration) {}

// Options configures a Service.
type Options struct {
	RequestTimeout       time.Duration
	AllowPrivateNetworks bool
}

// Service implements the inspector operations. It holds no per-request state
// and is safe for concurrent use.
type Service struct {
	opts      Options
	policy    *URLPolicy
	transport http.RoundTripper
	recorder  Recorder
	logger    *slog.Logger
}

// Option customises a Service.
type Option func(*Service)

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithLogger sets the logger used for operation logs.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTransport sets the round tripper used for every outbound request. It
// replaces the default transport and its dial-time address check; redirects
// are still held to the URL policy.
func WithTransport(rt http.RoundTripper) Option {
	return func(s *Service) {
		s.transport = rt
	}
}

// WithResolver sets the host resolver used by the URL policy.
func WithResolver(r HostResolver) Option {
	return func(s *Service) {
		s.policy.Resolver = r
	}
}

// NewService creates an inspector service.
func NewService(opts Options, options ...Option) *Service {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}

	s := &Service{
		opts:     opts,
		policy:   &URLPolicy{AllowPrivateNetworks: opts.AllowPrivateNetworks},
		recorder: noopRecorder{},
		logger:   slog.Default(),
	}
	for _, opt := range options {
		opt(s)
	}
	if s.transport == nil {
		s.transport = newGuardedTransport(s.policy)
	}
	return s
}

// resolvedCard is an agent card as decoded by the SDK plus the exact bytes served.
type resolvedCard struct {
	card *a2a.AgentCard
	raw  json.RawMessage
}

// LoadAgentCard fetches the agent card behind rawURL and returns it verbatim.
func (s *Service) LoadAgentCard(ctx context.Context, rawURL string) Envelope[json.RawMessage] {
	start := time.Now()
	rc, err := s.loadCard(ctx, OpLoadCard, rawURL)
	s.finish(OpLoadCard, rawURL, start, err)
	if err != nil {
		return Fail[json.RawMessage](err)
	}
	return Succeed(rc.raw, "Agent card loaded successfully")
}

// InspectAgentCard loads the agent card and runs the card checklist over it.
func (s *Service) InspectAgentCard(ctx context.Context, rawURL string) Envelope[InspectionReport] {
	start := time.Now()
	report, err := s.inspect(ctx, rawURL)
	s.finish(OpInspectCard, rawURL, start, err)
	if err != nil {
		return Fail[InspectionReport](err)
	}
	return Succeed(*report, "Agent card validated successfully")
}

func (s *Service) inspect(ctx context.Context, rawURL string) (*InspectionReport, error) {
	rc, err := s.loadCard(ctx, OpInspectCard, rawURL)
	if err != nil {
		return nil, err
	}
	report, err := InspectCard(rc.raw)
	if err != nil {
		return nil, newError(KindProtocol, OpInspectCard, err)
	}
	return report, nil
}

// SendChatMessage sends message as a single user turn and returns the agent's
// response. For streaming agents the last streamed event is returned.
func (s *Service) SendChatMessage(ctx context.Context, rawURL, message string) Envelope[json.RawMessage] {
	start := time.Now()

	var last json.RawMessage
	err := s.chat(ctx, OpSendMessage, rawURL, message, func(event json.RawMessage) error {
		last = event
		return nil
	})
	if err == nil && last == nil {
		err = newError(KindProtocol, OpSendMessage, errors.New("No response received from agent"))
	}

	s.finish(OpSendMessage, rawURL, start, err)
	if err != nil {
		return Fail[json.RawMessage](err)
	}
	return Succeed(last, "Message sent successfully")
}

// StreamChatMessage sends message and passes every protocol event to emit as
// it arrives. Non-streaming agents produce exactly one event. An error
// returned by emit aborts the stream and is returned unchanged.
func (s *Service) StreamChatMessage(ctx context.Context, rawURL, message string, emit func(json.RawMessage) error) error {
	start := time.Now()
	err := s.chat(ctx, OpStream, rawURL, message, emit)
	s.finish(OpStream, rawURL, start, err)
	return err
}

func (s *Service) loadCard(ctx context.Context, op, rawURL string) (*resolvedCard, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.RequestTimeout)
	defer cancel()

	target, err := s.policy.Validate(ctx, rawURL)
	if err != nil {
		return nil, withOp(err, op)
	}
	return s.resolveCard(ctx, op, target)
}

func (s *Service) resolveCard(ctx context.Context, op string, target *url.URL) (*resolvedCard, error) {
	rec := newRecordingTransport(s.transport, true)
	resolver := agentcard.NewResolver(rec.client(s.policy))

	base, opts := cardLocation(target)
	s.logger.Debug("Resolving agent card", "op", op, "base", base)

	card, err := resolver.Resolve(ctx, base, opts...)
	if err != nil {
		return nil, classify(ctx, op, fmt.Errorf("failed to fetch agent card: %w", err), rec)
	}

	raw := json.RawMessage(rec.body())
	if !json.Valid(raw) {
		// The SDK decoded something we did not buffer; fall back to its view.
		if raw, err = json.Marshal(card); err != nil {
			return nil, newError(KindInternal, op, fmt.Errorf("failed to encode agent card: %w", err))
		}
	}
	return &resolvedCard{card: card, raw: raw}, nil
}

func (s *Service) chat(ctx context.Context, op, rawURL, message string, emit func(json.RawMessage) error) error {
	if strings.TrimSpace(message) == "" {
		return withOp(validationError("message is required"), op)
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.RequestTimeout)
	defer cancel()

	target, err := s.policy.Validate(ctx, rawURL)
	if err != nil {
		return withOp(err, op)
	}

	rc, err := s.resolveCard(ctx, op, target)
	if err != nil {
		return err
	}
	card := rc.card

	if card.URL == "" {
		return newError(KindProtocol, op, errors.New("agent card does not declare a service URL"))
	}
	if _, err := s.policy.Validate(ctx, card.URL); err != nil {
		return newError(KindOf(err), op, fmt.Errorf("agent service URL %q rejected: %w", card.URL, err))
	}
	if card.PreferredTransport == "" {
		card.PreferredTransport = a2a.TransportProtocolJSONRPC
	}

	rec := newRecordingTransport(s.transport, false)
	client, err := a2aclient.NewFromCard(ctx, card, a2aclient.WithJSONRPCTransport(rec.client(s.policy)))
	if err != nil {
		return newError(KindProtocol, op, fmt.Errorf("failed to create A2A client: %w", err))
	}
	defer func() { _ = client.Destroy() }()

	params := &a2a.MessageSendParams{
		Message: a2a.NewMessage(a2a.MessageRoleUser, a2a.TextPart{Text: message}),
	}

	if card.Capabilities.Streaming {
		s.logger.Debug("Agent supports streaming, using message/stream", "op", op, "agent", card.Name)
		for event, err := range client.SendStreamingMessage(ctx, params) {
			if err != nil {
				return classify(ctx, op, fmt.Errorf("failed to stream message: %w", err), rec)
			}
			if err := emitEvent(op, event, emit); err != nil {
				return err
			}
		}
		return nil
	}

	result, err := client.SendMessage(ctx, params)
	if err != nil {
		return classify(ctx, op, fmt.Errorf("failed to send message: %w", err), rec)
	}
	return emitEvent(op, result, emit)
}

func emitEvent(op string, event any, emit func(json.RawMessage) error) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return newError(KindInternal, op, fmt.Errorf("failed to encode agent response: %w", err))
	}
	return emit(raw)
}

// cardLocation splits target into the base URL handed to the SDK resolver and
// the resolve options selecting the card path.
func cardLocation(target *url.URL) (string, []agentcard.ResolveOption) {
	for _, p := range wellKnownCardPaths {
		if strings.HasSuffix(target.Path, p) {
			base := *target
			base.Path = strings.TrimSuffix(target.Path, p)
			base.RawPath = ""
			base.RawQuery = ""
			base.ForceQuery = false
			base.Fragment = ""
			base.RawFragment = ""
			return base.String(), []agentcard.ResolveOption{agentcard.WithPath(p)}
		}
	}
	base := *target
	base.RawQuery = ""
	base.ForceQuery = false
	base.Fragment = ""
	base.RawFragment = ""
	return strings.TrimSuffix(base.String(), "/"), nil
}

func (s *Service) finish(op, rawURL string, start time.Time, err error) {
	elapsed := time.Since(start)
	if err == nil {
		s.recorder.ObserveOperation(op, "success", elapsed)
		s.logger.Info("Inspector operation succeeded", "op", op, "url", rawURL, "duration", elapsed)
		return
	}

	kind := KindOf(err)
	s.recorder.ObserveOperation(op, string(kind), elapsed)
	level := slog.LevelWarn
	if kind == KindInternal {
		level = slog.LevelError
	}
	s.logger.Log(context.Background(), level, "Inspector operation failed",
		"op", op, "url", rawURL, "kind", kind, "error", err, "duration", elapsed)
}

func withOp(err error, op string) error {
	var ie *Error
	if errors.As(err, &ie) && ie.Op == "" {
		ie.Op = op
	}
	return err
}
