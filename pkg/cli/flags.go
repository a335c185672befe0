package cli

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/agent-protocol/a2a-inspector/pkg/config"
)

// inspectorFlags are shared by every command that contacts a remote agent.
func inspectorFlags() []cli.Flag {
	return []cli.Flag{
		&cli.DurationFlag{
			Name:    "request-timeout",
			Value:   config.Default().Inspector.RequestTimeout,
			Usage:   "Upper bound for a single call to a remote agent",
			EnvVars: []string{envPrefix + "REQUEST_TIMEOUT"},
		},
		&cli.BoolFlag{
			Name:    "allow-private-networks",
			Usage:   "Allow targets on localhost and private address ranges",
			EnvVars: []string{envPrefix + "ALLOW_PRIVATE_NETWORKS"},
		},
	}
}

// Common web server flags
func webServerFlags() []cli.Flag {
	defaults := config.Default()
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "host",
			Value:   defaults.Server.Host,
			Usage:   "Host to bind the server to",
			EnvVars: []string{envPrefix + "HOST"},
		},
		&cli.IntFlag{
			Name:    "port",
			Value:   defaults.Server.Port,
			Usage:   "Port to bind the server to",
			EnvVars: []string{envPrefix + "PORT"},
		},
		&cli.StringSliceFlag{
			Name:    "allow-origins",
			Usage:   "Origins allowed for CORS (replaces the defaults)",
			EnvVars: []string{envPrefix + "ALLOW_ORIGINS"},
		},
		&cli.BoolFlag{
			Name:    "disable-ui",
			Usage:   "Serve the API without the web UI",
			EnvVars: []string{envPrefix + "DISABLE_UI"},
		},
		&cli.BoolFlag{
			Name:    "disable-metrics",
			Usage:   "Do not expose /metrics",
			EnvVars: []string{envPrefix + "DISABLE_METRICS"},
		},
		&cli.DurationFlag{
			Name:    "shutdown-timeout",
			Value:   defaults.Server.ShutdownTimeout,
			Usage:   "Grace period for in-flight requests on shutdown",
			EnvVars: []string{envPrefix + "SHUTDOWN_TIMEOUT"},
		},
		logLevelFlag(),
		logFormatFlag(),
	}
}

// loadConfig reads the configuration file named by --config and overlays
// every flag the user set explicitly, by flag or environment variable.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}

	setString(c, "host", &cfg.Server.Host)
	setInt(c, "port", &cfg.Server.Port)
	if c.IsSet("allow-origins") {
		cfg.Server.AllowOrigins = c.StringSlice("allow-origins")
	}
	setBool(c, "disable-ui", &cfg.Server.DisableUI)
	setBool(c, "disable-metrics", &cfg.Server.DisableMetrics)
	setDuration(c, "shutdown-timeout", &cfg.Server.ShutdownTimeout)
	setDuration(c, "request-timeout", &cfg.Inspector.RequestTimeout)
	setBool(c, "allow-private-networks", &cfg.Inspector.AllowPrivateNetworks)
	setString(c, "log-level", &cfg.Log.Level)
	setString(c, "log-format", &cfg.Log.Format)
	if c.Bool("verbose") {
		cfg.Log.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setString(c *cli.Context, name string, dst *string) {
	if c.IsSet(name) {
		*dst = c.String(name)
	}
}

func setInt(c *cli.Context, name string, dst *int) {
	if c.IsSet(name) {
		*dst = c.Int(name)
	}
}

func setBool(c *cli.Context, name string, dst *bool) {
	if c.IsSet(name) {
		*dst = c.Bool(name)
	}
}

func setDuration(c *cli.Context, name string, dst *time.Duration) {
	if c.IsSet(name) {
		*dst = c.Duration(name)
	}
}
