// Command exposend pushes JSON-lines message batches through the Expo push
// gateway and polls their receipts.
package main

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/maruel/subcommands"
	"gopkg.in/yaml.v3"

	"github.com/tinywideclouds/go-expo-push/exposender"
	"github.com/tinywideclouds/go-expo-push/exposender/config"
)

//go:embed local.yaml
var configFile []byte

var (
	cmdSend = &subcommands.Command{
		UsageLine: "send [messages.jsonl]",
		ShortDesc: "Send one push message per input line and print the tickets.",
		LongDesc: `Reads one Expo push message per line (stdin when no file is given),
sends them in chunks and prints one ticket record per message to stdout.
Malformed lines are logged and skipped.`,
		CommandRun: func() subcommands.CommandRun {
			c := &runCommand{}
			c.Flags.StringVar(&c.configPath, "config", "", "YAML config file overriding the embedded defaults")
			return c
		},
	}

	cmdReceipts = &subcommands.Command{
		UsageLine: "receipts [ids.txt]",
		ShortDesc: "Fetch push receipts for one receipt id per input line.",
		LongDesc: `Reads one receipt id per line (stdin when no file is given) and prints
one receipt record per id to stdout. Ids the gateway has no receipt for yet
are marked pending.`,
		CommandRun: func() subcommands.CommandRun {
			c := &runCommand{receipts: true}
			c.Flags.StringVar(&c.configPath, "config", "", "YAML config file overriding the embedded defaults")
			return c
		},
	}
)

type runCommand struct {
	subcommands.CommandRunBase

	configPath string
	receipts   bool
}

func (c *runCommand) Run(a subcommands.Application, args []string, _ subcommands.Env) int {
	if len(args) > 1 {
		fmt.Fprintln(a.GetErr(), "at most one input file may be given")
		return 2
	}
	logger := newLogger(a.GetErr())

	svc, err := c.newService(logger)
	if err != nil {
		logger.Error("Config failed", "err", err)
		return 1
	}

	in := io.Reader(os.Stdin)
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			logger.Error("Failed to open input", "path", args[0], "err", err)
			return 1
		}
		defer f.Close()
		in = f
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if c.receipts {
		n, err := svc.Receipts(ctx, in, a.GetOut())
		if err != nil {
			logger.Error("Receipts failed", "err", err)
			return 1
		}
		logger.Info("Done", "receipts", n)
		return 0
	}

	summary, err := svc.Send(ctx, in, a.GetOut())
	if err != nil {
		logger.Error("Send failed", "err", err)
		return 1
	}
	logger.Info("Done",
		"sent", summary.Sent, "accepted", summary.Accepted, "failed", summary.Failed,
		"skipped", summary.Skipped, "invalid", len(summary.Invalid))
	return 0
}

func (c *runCommand) newService(logger *slog.Logger) (*exposender.Wrapper, error) {
	raw := configFile
	if c.configPath != "" {
		var err error
		if raw, err = os.ReadFile(c.configPath); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var yamlCfg config.YamlConfig
	if err := yaml.Unmarshal(raw, &yamlCfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml config: %w", err)
	}
	baseCfg, err := config.NewConfigFromYaml(&yamlCfg, logger)
	if err != nil {
		return nil, err
	}
	cfg, err := config.UpdateConfigWithEnvOverrides(baseCfg, logger)
	if err != nil {
		return nil, err
	}
	return exposender.New(cfg, logger)
}

// newLogger writes JSON logs to w; stdout carries the records.
func newLogger(w io.Writer) *slog.Logger {
	var logLevel slog.Level
	switch os.Getenv("LOG_LEVEL") {
	case "debug", "DEBUG":
		logLevel = slog.LevelDebug
	case "warn", "WARN":
		logLevel = slog.LevelWarn
	case "error", "ERROR":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	})).With("service", "exposend")
	slog.SetDefault(logger)
	return logger
}

func main() {
	app := &subcommands.DefaultApplication{
		Name:  "exposend",
		Title: "Batch sender for the Expo push gateway.",
		Commands: []*subcommands.Command{
			cmdSend,
			cmdReceipts,
			subcommands.CmdHelp,
		},
		EnvVars: map[string]subcommands.EnvVarDefinition{
			"LOG_LEVEL":         {ShortDesc: "debug, info, warn or error"},
			"EXPO_ACCESS_TOKEN": {ShortDesc: "Bearer token for push security"},
			"EXPO_GZIP":         {ShortDesc: "never, always or if-larger-than(N)"},
		},
	}
	os.Exit(subcommands.Run(app, nil))
}
