// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/chatsync/lib/config"
	"github.com/bureau-foundation/chatsync/lib/ref"
	"github.com/bureau-foundation/chatsync/lib/version"
	"github.com/bureau-foundation/chatsync/messaging"
	"github.com/bureau-foundation/chatsync/persist"
	"github.com/bureau-foundation/chatsync/stanza"
	"github.com/bureau-foundation/chatsync/timeline"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// options holds the parsed command line.
type options struct {
	configPath   string
	self         string
	open         []string
	format       string
	color        string
	outboundPath string
	timezone     string
	logLevel     string
	save         bool
	input        string
}

func parseOptions(args []string, stderr io.Writer) (options, error) {
	var result options
	flagSet := pflag.NewFlagSet("chatsync-replay", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVar(&result.configPath, "config", "", "chatsync config file (default: $CHATSYNC_CONFIG when set)")
	flagSet.StringVar(&result.self, "self", "", "account JID the capture was recorded for (overrides the config)")
	flagSet.StringSliceVar(&result.open, "open", nil, "room address to open before replay (repeatable)")
	flagSet.StringVar(&result.format, "format", "text", "output format: text or yaml")
	flagSet.StringVar(&result.color, "color", "auto", "color output: auto, always or never")
	flagSet.StringVar(&result.outboundPath, "outbound", "", "write stanzas the engine sends to this file")
	flagSet.StringVar(&result.timezone, "timezone", "", "IANA zone for day separators (overrides the config)")
	flagSet.StringVar(&result.logLevel, "log-level", "warn", "log level: debug, info, warn or error")
	flagSet.BoolVar(&result.save, "save", false, "persist the replayed rooms to the configured store")
	showVersion := flagSet.Bool("version", false, "print version and exit")
	flagSet.Usage = func() {
		fmt.Fprintf(stderr, "Replay a recorded stanza stream and print the resulting rooms.\n\n")
		fmt.Fprintf(stderr, "Usage:\n  chatsync-replay [flags] [capture.xml]\n\nFlags:\n")
		flagSet.PrintDefaults()
	}

	if err := flagSet.Parse(args); err != nil {
		return options{}, err
	}
	if *showVersion {
		version.Print("chatsync-replay")
		return options{}, pflag.ErrHelp
	}

	switch remaining := flagSet.Args(); len(remaining) {
	case 0:
	case 1:
		result.input = remaining[0]
	default:
		return options{}, fmt.Errorf("expected at most one capture file, got %d arguments", len(remaining))
	}
	if result.format != "text" && result.format != "yaml" {
		return options{}, fmt.Errorf("--format must be text or yaml, got %q", result.format)
	}
	if result.color != "auto" && result.color != "always" && result.color != "never" {
		return options{}, fmt.Errorf("--color must be auto, always or never, got %q", result.color)
	}
	if result.save && result.configPath == "" && os.Getenv(config.EnvironmentVariable) == "" {
		return options{}, fmt.Errorf("--save requires a config file naming the store")
	}
	return result, nil
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	opts, err := parseOptions(args, stderr)
	if err != nil {
		return err
	}
	logger, err := newLogger(stderr, opts.logLevel)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	self, err := cfg.Self()
	if err != nil {
		return err
	}
	location, err := cfg.Location()
	if err != nil {
		return err
	}

	var store *persist.Store
	if opts.save {
		if err := cfg.EnsureStoreDirectory(); err != nil {
			return err
		}
		store, err = persist.Open(persist.Config{
			Path:        cfg.Store.Path,
			Compression: cfg.Store.Compression,
			Logger:      logger.With("component", "persist"),
		})
		if err != nil {
			return err
		}
		defer store.Close()
	}

	outboundSink := io.Discard
	if opts.outboundPath != "" {
		file, err := os.Create(opts.outboundPath)
		if err != nil {
			return fmt.Errorf("creating outbound file: %w", err)
		}
		defer file.Close()
		outboundSink = file
	}

	engine, err := messaging.New(messaging.Config{
		Self:           self,
		Location:       location,
		PageSize:       cfg.History.PageSize,
		TypingThrottle: cfg.Typing.Throttle,
		PausedAfter:    cfg.Typing.PausedAfter,
		Store:          store,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	ctx := context.Background()
	if err := engine.Connect(ctx, stanza.NewWriter(outboundSink)); err != nil {
		return err
	}
	for _, address := range opts.open {
		roomID, err := ref.ParseRoomID(address)
		if err != nil {
			return fmt.Errorf("--open %q: %w", address, err)
		}
		engine.UpdateConversation(roomID, func(*timeline.Conversation) {})
	}

	input := stdin
	if opts.input != "" && opts.input != "-" {
		file, err := os.Open(opts.input)
		if err != nil {
			return fmt.Errorf("opening capture: %w", err)
		}
		defer file.Close()
		input = file
	}
	count, err := replay(ctx, engine, input)
	if err != nil {
		return fmt.Errorf("after %d stanzas: %w", count, err)
	}
	logger.Info("capture replayed", "stanzas", count, "rooms", len(engine.Rooms()))

	if opts.save {
		if err := engine.Save(ctx); err != nil {
			return err
		}
	}

	report := buildReport(engine, location)
	if opts.format == "yaml" {
		return writeYAML(stdout, report)
	}
	return writeText(stdout, report, useColor(opts.color, stdout))
}

// replay feeds every stanza in input to the engine and returns how
// many were handled.
func replay(ctx context.Context, engine *messaging.Engine, input io.Reader) (int, error) {
	reader := stanza.NewReader(input)
	count := 0
	for {
		next, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return count, nil
		}
		if err != nil {
			return count, err
		}
		engine.Handle(ctx, next)
		count++
	}
}

// loadConfig reads the config file when one is named (by flag or
// environment) and applies the command-line overrides. Without a file,
// defaults are used and --self is required.
func loadConfig(opts options) (*config.Config, error) {
	var cfg *config.Config
	var err error
	switch {
	case opts.configPath != "":
		cfg, err = config.LoadFile(opts.configPath)
	case os.Getenv(config.EnvironmentVariable) != "":
		cfg, err = config.Load()
	default:
		cfg = config.Default()
		if opts.self == "" {
			return nil, fmt.Errorf("--self is required without a config file")
		}
	}
	if err != nil {
		return nil, err
	}
	if opts.self != "" {
		cfg.Account.JID = opts.self
	}
	if opts.timezone != "" {
		cfg.History.Timezone = opts.timezone
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(stderr io.Writer, level string) (*slog.Logger, error) {
	var parsed slog.Level
	if err := parsed.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return nil, fmt.Errorf("--log-level: %w", err)
	}
	return slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: parsed})), nil
}

// useColor resolves --color. auto styles output only when stdout is a
// terminal.
func useColor(mode string, stdout io.Writer) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	file, ok := stdout.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}

// formatDate renders an epoch-millisecond timestamp for output.
func formatDate(epochMillis int64, location *time.Location) string {
	return time.UnixMilli(epochMillis).In(location).Format("2006-01-02 15:04:05")
}
