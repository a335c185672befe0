package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/agent-protocol/a2a-inspector/internal/echoagent"
	"github.com/agent-protocol/a2a-inspector/pkg/api"
	"github.com/agent-protocol/a2a-inspector/pkg/config"
	"github.com/agent-protocol/a2a-inspector/pkg/inspector"
	"github.com/agent-protocol/a2a-inspector/pkg/logger"
	"github.com/agent-protocol/a2a-inspector/pkg/metrics"
)

// serveCommand creates the 'serve' command
func serveCommand() *cli.Command {
	flags := append(webServerFlags(), inspectorFlags()...)
	flags = append(flags, &cli.StringFlag{
		Name:    "echo-agent",
		Usage:   "Also run an echo agent on this address (e.g. 127.0.0.1:9999)",
		EnvVars: []string{envPrefix + "ECHO_AGENT"},
	})

	return &cli.Command{
		Name:   "serve",
		Usage:  "Starts the inspector web UI and API server",
		Flags:  flags,
		Action: serveCommandAction,
	}
}

func serveCommandAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	log, err := logger.Setup(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("failed to configure logging: %w", err)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runServer(ctx, cfg, log, c.String("echo-agent"))
}

// runServer builds the inspector stack from cfg and serves it until ctx is done.
func runServer(ctx context.Context, cfg *config.Config, log *slog.Logger, echoAddr string) error {
	var serverOpts []api.Option
	var svcOpts []inspector.Option

	if !cfg.Server.DisableMetrics {
		m := metrics.New()
		serverOpts = append(serverOpts, api.WithMetrics(m))
		svcOpts = append(svcOpts, inspector.WithRecorder(m))
	}
	svcOpts = append(svcOpts, inspector.WithLogger(log))
	serverOpts = append(serverOpts, api.WithLogger(log), api.WithVersion(Version))

	svc := inspector.NewService(inspector.Options{
		RequestTimeout:       cfg.Inspector.RequestTimeout,
		AllowPrivateNetworks: cfg.Inspector.AllowPrivateNetworks,
	}, svcOpts...)
	server := api.NewServer(cfg, svc, serverOpts...)

	if !cfg.Inspector.AllowPrivateNetworks {
		log.Info("Private network targets are blocked; use --allow-private-networks for local agents")
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(ctx)
	})
	if echoAddr != "" {
		agent := echoagent.New(echoagent.Config{Streaming: true})
		g.Go(func() error {
			return serveHTTP(ctx, echoAddr, agent.Handler(), cfg.Server.ShutdownTimeout)
		})
	}
	return g.Wait()
}
