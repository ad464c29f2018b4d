// Command sensorpipe is the collector's main binary.
//
// It loads the single JSON configuration document named by -c, builds
// the full pipeline, and runs until interrupted (SIGINT/SIGTERM).
//
// Usage:
//
//	sensorpipe -c /etc/sensorpipe/collector.json [-d level] [-g]
//
// Grounded on the teacher's cmd/snmpcollector/main.go flag-parse →
// buildLogger → app.New → Start → wait-for-signal → Stop shape, with
// the flag set replaced by the short POSIX-style options (-c, -g, -d, -h)
// that SPEC_FULL.md's CLI entry describes, which stdlib flag cannot express
// without the ecosystem's POSIX-getopt compatible parser.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/vpbank/sensorpipe/pkg/sensorpipe/app"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "sensorpipe: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath string
		foreground bool
		debugLevel int
		help       bool
	)

	pflag.StringVarP(&configPath, "config", "c", "", "path to the collector's JSON configuration document (required)")
	pflag.BoolVarP(&foreground, "foreground", "g", false, "run in the foreground (accepted for compatibility; this binary never daemonizes)")
	pflag.IntVarP(&debugLevel, "debug", "d", 0, "debug verbosity: any value above 0 enables debug-level logging (the conf debug key is not read)")
	pflag.BoolVarP(&help, "help", "h", false, "print usage and exit")
	pflag.Parse()

	if help {
		pflag.Usage()
		return nil
	}
	if configPath == "" {
		pflag.Usage()
		return fmt.Errorf("missing required -c <config path>")
	}

	logLevel := slog.LevelInfo
	if debugLevel > 0 {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	application := app.New(configPath, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	logger.Info("sensorpipe: running — press Ctrl-C to stop")
	<-ctx.Done()
	logger.Info("sensorpipe: received shutdown signal")

	application.Stop()
	return nil
}
