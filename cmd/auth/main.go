// Command auth runs the accounts authentication service.
package main

import (
	"errors"
	"log/slog"
	"os"

	"github.com/aussiebroadwan/accounts/internal/auth/app"
	"github.com/aussiebroadwan/accounts/internal/auth/service"
)

const (
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	bootLog := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	cfg := app.LoadConfig()

	application, err := app.New(cfg)
	if err != nil {
		return startupExit(bootLog, err)
	}

	if err := application.Run(); err != nil {
		bootLog.Error("server stopped", "error", err)
		return exitRuntime
	}
	return 0
}

// startupExit logs a failed app.New and picks the exit code. Any error
// wrapping service.ErrConfiguration is a configuration failure.
func startupExit(log *slog.Logger, err error) int {
	if !errors.Is(err, service.ErrConfiguration) {
		log.Error("startup failed", "error", err)
		return exitRuntime
	}

	var cerr *app.ConfigurationError
	if errors.As(err, &cerr) {
		for _, problem := range cerr.Problems {
			log.Error("invalid configuration", "problem", problem)
		}
	} else {
		log.Error("invalid configuration", "problem", err.Error())
	}
	return exitConfig
}
