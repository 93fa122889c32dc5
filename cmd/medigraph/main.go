// Command medigraph is a console client for the diagnostic assistant.
//
// It loads settings from an optional YAML/JSON file, a .env file and the
// environment, then runs an interactive chat. The terminal UI is used when
// stdout is a terminal; -plain forces a line-oriented prompt.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/DongHyun925/MediGraph/pkg/config"
	"github.com/DongHyun925/MediGraph/pkg/medigraph"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "medigraph: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := flag.NewFlagSet("medigraph", flag.ContinueOnError)
	configPath := flags.String("config", "", "settings file (.yaml, .yml or .json)")
	envFile := flags.String("env", ".env", "dotenv file to load before reading the environment")
	plain := flags.Bool("plain", false, "use the line-oriented prompt instead of the terminal UI")
	logFile := flags.String("log-file", "", "write logs to this file (the terminal UI discards logs otherwise)")
	conversation := flags.String("conversation", "", "resume this conversation ID")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	if err := loadDotenv(*envFile); err != nil {
		return err
	}
	st, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	useTUI := !*plain && isTerminal(os.Stdout)
	logOut, closeLog, err := logWriter(*logFile, useTUI)
	if err != nil {
		return err
	}
	defer closeLog()
	logger := newLogger(st.Log, logOut)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := medigraph.Open(ctx, st, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Warn("close checkpoint store", "error", err)
		}
	}()

	if useTUI {
		return runTUI(ctx, svc, *conversation)
	}
	return runREPL(ctx, svc, *conversation, os.Stdin, os.Stdout)
}

// loadDotenv loads path if it exists. Variables already set win.
func loadDotenv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func logWriter(path string, tui bool) (io.Writer, func(), error) {
	switch {
	case path != "":
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		return f, func() { _ = f.Close() }, nil
	case tui:
		return io.Discard, func() {}, nil
	default:
		return os.Stderr, func() {}, nil
	}
}

// newLogger builds the slog handler selected by settings.
func newLogger(st config.LogSettings, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(st.Level)}
	if strings.EqualFold(st.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
