package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"odwatch/internal/config"
	"odwatch/internal/engine"
	"odwatch/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args, os.Stderr)
	stop()
	os.Exit(code)
}

// run returns 1 for a wrong argument count or a configuration that cannot
// be loaded or compiled. Failures once the pipeline runs are logged only.
func run(ctx context.Context, args []string, stderr io.Writer) int {
	if len(args) != 2 {
		fmt.Fprintf(stderr, "usage: %s <pipeline.json|pipeline.yaml>\n", args[0])
		return 1
	}

	settings, err := config.LoadSettings()
	if err != nil {
		logging.L().Error("settings", "err", err)
		return 1
	}

	e, err := engine.Bootstrap(ctx, engine.Config{Settings: settings, PipelinePath: args[1]})
	if err != nil {
		logging.L().Error("bootstrap", "err", err)
		return 1
	}
	if _, err := e.Run(ctx); err != nil {
		logging.L().Error("run returned early", "err", err)
	}
	return 0
}
