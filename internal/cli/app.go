// Package cli implements the ledgerctl subcommands.
package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/google/subcommands"
	portssvc "github.com/hivefi/ledger/internal/core/ports/services"
	"github.com/hivefi/ledger/internal/core/services"
	"github.com/hivefi/ledger/internal/platform/config"
	"github.com/hivefi/ledger/internal/platform/storage"
	"github.com/hivefi/ledger/internal/repositories/ratesapi"
)

// Register the subcommands.
func Register(c *subcommands.Commander) {
	c.Register(&recordCmd{}, "expenses")
	c.Register(&listCmd{}, "expenses")

	c.Register(&logCmd{}, "audit")
	c.Register(&verifyCmd{}, "audit")
	c.Register(&reconcileCmd{}, "audit")

	c.Register(&rateCmd{}, "rates")
	c.Register(&convertCmd{}, "rates")
	c.Register(&breakdownCmd{}, "rates")

	c.Register(&tokenCmd{}, "auth")
}

var rawOutput = flag.Bool("raw", false, "Print plain markdown instead of rendering it for the terminal")

// stdout and stderr are swapped out by tests.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// app is what a command needs to run against the configured store.
type app struct {
	cfg      *config.Config
	services *portssvc.ServiceContainer
	close    func() error
}

// openApp loads configuration and opens the store. Replaced in tests.
var openApp = func(ctx context.Context) (*app, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	backends, err := storage.Open(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	provider := ratesapi.NewHTTPProvider(cfg.FXAPIURL,
		ratesapi.WithAPIKey(cfg.FXAPIKey),
		ratesapi.WithTimeout(cfg.FXTimeout),
	)
	return &app{
		cfg:      cfg,
		services: services.NewServiceContainer(cfg, backends.Repos, provider),
		close:    backends.Close,
	}, nil
}

// withApp opens the app, runs fn and reports its error.
func withApp(ctx context.Context, fn func(a *app) error) subcommands.ExitStatus {
	a, err := openApp(ctx)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return subcommands.ExitFailure
	}
	defer func() {
		if a.close != nil {
			if err := a.close(); err != nil {
				fmt.Fprintln(stderr, err)
			}
		}
	}()
	if err := fn(a); err != nil {
		fmt.Fprintln(stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// printMarkdown renders md for the terminal, or prints it as is with -raw.
func printMarkdown(md string) {
	if *rawOutput {
		fmt.Fprint(stdout, md)
		return
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(120))
	if err != nil {
		fmt.Fprint(stdout, md)
		return
	}
	out, err := r.Render(md)
	if err != nil {
		fmt.Fprint(stdout, md)
		return
	}
	fmt.Fprint(stdout, out)
}
