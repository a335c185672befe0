package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/agent-protocol/a2a-inspector/pkg/inspector"
	"github.com/agent-protocol/a2a-inspector/pkg/jsonview"
)

// Exit codes for the client commands.
const (
	exitFailure    = 1
	exitValidation = 2
)

func compactFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "compact",
		Usage: "Print minified JSON",
	}
}

// cardCommand creates the 'card' command
func cardCommand() *cli.Command {
	return &cli.Command{
		Name:      "card",
		Usage:     "Fetches and prints an agent card",
		ArgsUsage: "URL",
		Flags:     append(inspectorFlags(), compactFlag()),
		Action: func(c *cli.Context) error {
			args, err := requireArgs(c, "URL")
			if err != nil {
				return err
			}
			svc, err := newService(c)
			if err != nil {
				return err
			}
			env := svc.LoadAgentCard(c.Context, args[0])
			if !env.Success {
				return failure(env.Error, env.Kind)
			}
			return printRaw(c, *env.Data)
		},
	}
}

// inspectCommand creates the 'inspect' command
func inspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Validates an agent card and prints the checklist",
		ArgsUsage: "URL",
		Flags:     append(inspectorFlags(), compactFlag()),
		Action: func(c *cli.Context) error {
			args, err := requireArgs(c, "URL")
			if err != nil {
				return err
			}
			svc, err := newService(c)
			if err != nil {
				return err
			}
			env := svc.InspectAgentCard(c.Context, args[0])
			if !env.Success {
				return failure(env.Error, env.Kind)
			}

			report := env.Data
			if c.Bool("compact") {
				out, err := jsonview.Render(report, true)
				if err != nil {
					return err
				}
				fmt.Fprintln(c.App.Writer, string(out))
			} else {
				for _, check := range report.Checks {
					fmt.Fprintf(c.App.Writer, "[%s] %s\n", strings.ToUpper(string(check.Status)), check.Message)
				}
			}
			if !report.Passed {
				return cli.Exit("agent card failed validation", exitFailure)
			}
			return nil
		},
	}
}

// sendCommand creates the 'send' command
func sendCommand() *cli.Command {
	return &cli.Command{
		Name:      "send",
		Usage:     "Sends a message to an agent and prints the response",
		ArgsUsage: "URL MESSAGE",
		Flags:     append(inspectorFlags(), compactFlag()),
		Action: func(c *cli.Context) error {
			args, err := requireArgs(c, "URL", "MESSAGE")
			if err != nil {
				return err
			}
			svc, err := newService(c)
			if err != nil {
				return err
			}
			env := svc.SendChatMessage(c.Context, args[0], args[1])
			if !env.Success {
				return failure(env.Error, env.Kind)
			}
			return printRaw(c, *env.Data)
		},
	}
}

func requireArgs(c *cli.Context, names ...string) ([]string, error) {
	if c.NArg() < len(names) {
		return nil, cli.Exit(fmt.Sprintf("%s is required", strings.Join(names, " and ")), exitValidation)
	}
	return c.Args().Slice()[:len(names)], nil
}

func newService(c *cli.Context) (*inspector.Service, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	return inspector.NewService(inspector.Options{
		RequestTimeout:       cfg.Inspector.RequestTimeout,
		AllowPrivateNetworks: cfg.Inspector.AllowPrivateNetworks,
	}, inspector.WithLogger(slog.Default())), nil
}

func printRaw(c *cli.Context, raw json.RawMessage) error {
	var (
		out []byte
		err error
	)
	if c.Bool("compact") {
		out, err = jsonview.Minify(raw)
	} else {
		out, err = jsonview.Format(raw, jsonview.DefaultIndent)
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, string(out))
	return nil
}

func failure(msg string, kind inspector.ErrorKind) error {
	code := exitFailure
	if kind == inspector.KindValidation {
		code = exitValidation
	}
	return cli.Exit(fmt.Sprintf("%s: %s", kind, msg), code)
}
