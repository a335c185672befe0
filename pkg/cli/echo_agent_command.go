package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/agent-protocol/a2a-inspector/internal/echoagent"
)

// echoAgentCommand creates the 'echo-agent' command
func echoAgentCommand() *cli.Command {
	return &cli.Command{
		Name:  "echo-agent",
		Usage: "Runs a local A2A agent that echoes every message",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Value: "127.0.0.1",
				Usage: "Host to bind the agent to",
			},
			&cli.IntFlag{
				Name:  "port",
				Value: 9999,
				Usage: "Port to bind the agent to",
			},
			&cli.StringFlag{
				Name:  "name",
				Value: "Echo Agent",
				Usage: "Agent name advertised in the card",
			},
			&cli.StringFlag{
				Name:  "url",
				Usage: "Service URL advertised in the card (derived from the request host when empty)",
			},
			&cli.BoolFlag{
				Name:  "streaming",
				Usage: "Advertise and serve message/stream",
			},
			&cli.DurationFlag{
				Name:  "delay",
				Usage: "Artificial delay before each reply",
			},
		},
		Action: echoAgentCommandAction,
	}
}

func echoAgentCommandAction(c *cli.Context) error {
	agent := echoagent.New(echoagent.Config{
		Name:          c.String("name"),
		URL:           c.String("url"),
		Streaming:     c.Bool("streaming"),
		ResponseDelay: c.Duration("delay"),
	})

	addr := net.JoinHostPort(c.String("host"), strconv.Itoa(c.Int("port")))
	fmt.Fprintf(c.App.Writer, "Echo agent card: http://%s%s\n", addr, echoagent.CardPath)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serveHTTP(ctx, addr, agent.Handler(), 5*time.Second)
}

// serveHTTP serves handler on addr until ctx is cancelled.
func serveHTTP(ctx context.Context, addr string, handler http.Handler, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting echo agent", "address", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve echo agent: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down echo agent: %w", err)
	}
	return nil
}
