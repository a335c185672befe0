package cli

import (
	"fmt"
	"runtime"

	"github.com/urfave/cli/v2"

	"github.com/agent-protocol/a2a-inspector/pkg/config"
	"github.com/agent-protocol/a2a-inspector/pkg/logger"
)

// Version information - will be set during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

const envPrefix = "INSPECTOR_"

// NewApp creates and configures the CLI application
func NewApp() *cli.App {
	app := &cli.App{
		Name:    "a2a-inspector",
		Usage:   "Inspect, validate and chat with A2A agents",
		Version: Version,
		Commands: []*cli.Command{
			serveCommand(),
			cardCommand(),
			inspectCommand(),
			sendCommand(),
			echoAgentCommand(),
			versionCommand(),
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML configuration file",
				EnvVars: []string{envPrefix + "CONFIG"},
			},
			&cli.StringFlag{
				Name:  "env-file",
				Value: ".env",
				Usage: "Dotenv file loaded before command flags are read",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable verbose logging",
			},
			logLevelFlag(),
			logFormatFlag(),
		},
		Before: func(c *cli.Context) error {
			if err := config.LoadDotEnv(c.String("env-file")); err != nil {
				return err
			}
			level := c.String("log-level")
			if c.Bool("verbose") {
				level = "debug"
			}
			if _, err := logger.Setup(level, c.String("log-format")); err != nil {
				return fmt.Errorf("failed to configure logging: %w", err)
			}
			return nil
		},
	}

	return app
}

func logLevelFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "log-level",
		Value:   "info",
		Usage:   "Logging level (debug, info, warn, error)",
		EnvVars: []string{envPrefix + "LOG_LEVEL"},
	}
}

func logFormatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "log-format",
		Value:   "text",
		Usage:   "Log output format (text, json)",
		EnvVars: []string{envPrefix + "LOG_FORMAT"},
	}
}

// versionCommand creates the 'version' command
func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Prints build information",
		Action: func(c *cli.Context) error {
			fmt.Fprintf(c.App.Writer, "a2a-inspector %s\n", Version)
			fmt.Fprintf(c.App.Writer, "  build time: %s\n", BuildTime)
			fmt.Fprintf(c.App.Writer, "  git commit: %s\n", GitCommit)
			fmt.Fprintf(c.App.Writer, "  go version: %s\n", runtime.Version())
			return nil
		},
	}
}
