package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samvad-hq/gidipin-go/internal/config"
	"github.com/samvad-hq/gidipin-go/internal/logger"
	"github.com/samvad-hq/gidipin-go/pkg/gidipin"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, formatError(err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.Init(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	log.DebugObj("gidipin starting", "config", cfg.Redacted())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(cfg, log, os.Stdout, os.Stderr)
	return root.ExecuteContext(ctx)
}

// formatError renders API failures as "error: <message> (<code>)".
func formatError(err error) string {
	var apiErr *gidipin.Error
	if errors.As(err, &apiErr) {
		if apiErr.HasCode() {
			return fmt.Sprintf("error: %s (%s)", apiErr.Message, apiErr.Code)
		}
		return "error: " + apiErr.Message
	}
	return "error: " + err.Error()
}
