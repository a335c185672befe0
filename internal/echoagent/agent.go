// Package echoagent is a minimal A2A agent that repeats every user message
// back. It backs the echo-agent command and the inspector's end-to-end tests.
package echoagent

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

const (
	CardPath       = a2asrv.WellKnownAgentCardPath
	LegacyCardPath = "/.well-known/agent.json"
)

// Config describes the agent advertised by the card.
type Config struct {
	Name        string
	Description string
	Version     string
	// URL is the JSON-RPC endpoint advertised in the card. When empty it is
	// derived from the Host header of the card request.
	URL       string
	Streaming bool
	// ResponseDelay is slept before every reply.
	ResponseDelay time.Duration
}

// Agent serves an agent card and answers A2A JSON-RPC calls.
type Agent struct {
	cfg    Config
	logger *slog.Logger
}

// New creates an echo agent.
func New(cfg Config) *Agent {
	if cfg.Name == "" {
		cfg.Name = "Echo Agent"
	}
	if cfg.Description == "" {
		cfg.Description = "Repeats every message it receives."
	}
	if cfg.Version == "" {
		cfg.Version = "1.0.0"
	}
	return &Agent{cfg: cfg, logger: slog.Default().With("component", "echo-agent")}
}

// Handler returns the agent's HTTP handler. Any origin may read the card and
// call the agent so browser based clients can reach it directly.
func (a *Agent) Handler() http.Handler {
	rpc := a2asrv.NewJSONRPCHandler(a2asrv.NewHandler(&executor{cfg: a.cfg, logger: a.logger}))

	router := mux.NewRouter()
	router.HandleFunc(CardPath, a.serveCard).Methods(http.MethodGet)
	router.HandleFunc(LegacyCardPath, a.serveCard).Methods(http.MethodGet)
	router.Handle("/", rpc).Methods(http.MethodPost)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(router)
}

func (a *Agent) serveCard(w http.ResponseWriter, r *http.Request) {
	a.logger.Debug("Serving agent card", "path", r.URL.Path)
	a2asrv.NewStaticAgentCardHandler(a.Card(serviceURL(a.cfg.URL, r))).ServeHTTP(w, r)
}

// Card returns the agent card advertising url as the JSON-RPC endpoint.
func (a *Agent) Card(url string) *a2a.AgentCard {
	return &a2a.AgentCard{
		Name:               a.cfg.Name,
		Description:        a.cfg.Description,
		URL:                url,
		Version:            a.cfg.Version,
		ProtocolVersion:    "0.3.0",
		PreferredTransport: a2a.TransportProtocolJSONRPC,
		Capabilities: a2a.AgentCapabilities{
			Streaming: a.cfg.Streaming,
		},
		DefaultInputModes:  []string{"text/plain"},
		DefaultOutputModes: []string{"text/plain"},
		Skills: []a2a.AgentSkill{
			{
				ID:          "echo",
				Name:        "Echo",
				Description: "Returns the text of the incoming message.",
				Tags:        []string{"echo", "test"},
				Examples:    []string{"hello"},
			},
		},
	}
}

func serviceURL(configured string, r *http.Request) string {
	if configured != "" {
		return configured
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/", scheme, r.Host)
}
