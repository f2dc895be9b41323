// Command pager serves paginated listings over a key-value store.
//
//	pager serve [-config dir] [-wait-indexes]
//	pager seed  [-config dir] [-orgs n] [-accounts n]
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/syntrixbase/pager/internal/config"
	"github.com/syntrixbase/pager/internal/logging"
	"github.com/syntrixbase/pager/internal/seed"
	"github.com/syntrixbase/pager/internal/services"
)

// Version can be overridden at build time.
var Version = "dev"

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) == 0 {
		printUsage(out)
		return fmt.Errorf("missing command")
	}

	switch args[0] {
	case "serve":
		return serve(args[1:])
	case "seed":
		return seedCmd(args[1:])
	case "version":
		fmt.Fprintf(out, "pager version %s\n", Version)
		return nil
	case "help", "-h", "--help":
		printUsage(out)
		return nil
	}
	printUsage(out)
	return fmt.Errorf("unknown command: %s", args[0])
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `Usage: pager <command> [flags]

Commands:
  serve     Serve paginated listings over HTTP
  seed      Write a synthetic account dataset to the configured store
  version   Print the version
`)
}

// setup loads configuration and logging for a subcommand.
func setup(dir string) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, nil, err
	}
	if err := logging.Initialize(cfg.Logging); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	return cfg, slog.Default(), nil
}

func serve(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	dir := fs.String("config", "config", "Configuration directory")
	waitIndexes := fs.Bool("wait-indexes", false, "Build indexes before accepting requests")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, logger, err := setup(*dir)
	if err != nil {
		return err
	}
	defer logging.Shutdown()

	mgr := services.NewManager(cfg, services.Options{RunAPI: true, BuildIndexes: *waitIndexes}, logger)
	initCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := mgr.Init(initCtx); err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()
	mgr.Start(bgCtx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	var runErr error
	select {
	case sig := <-quit:
		logger.Info("Shutting down", "signal", sig.String())
	case runErr = <-mgr.Errors():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	bgCancel()
	mgr.Shutdown(shutdownCtx)
	logger.Info("All services stopped")
	return runErr
}

func seedCmd(args []string) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	dir := fs.String("config", "config", "Configuration directory")
	namespace := fs.String("namespace", config.DefaultNamespace, "Namespace to fill")
	d := seed.DefaultOptions()
	orgs := fs.Int("orgs", d.Orgs, "Number of organizations")
	accounts := fs.Int("accounts", d.AccountsPerOrg, "Accounts per organization")
	concurrency := fs.Int("concurrency", d.Concurrency, "Writes in flight")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, logger, err := setup(*dir)
	if err != nil {
		return err
	}
	defer logging.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mgr := services.NewManager(cfg, services.Options{}, logger)
	if err := mgr.Init(ctx); err != nil {
		return err
	}
	defer mgr.Shutdown(context.Background())

	ns, ok := mgr.Namespace(*namespace)
	if !ok {
		return fmt.Errorf("unknown namespace %q", *namespace)
	}
	_, err = seed.Load(ctx, mgr.Store(), ns, seed.Options{
		Orgs:           *orgs,
		AccountsPerOrg: *accounts,
		NameFormat:     d.NameFormat,
		Concurrency:    *concurrency,
	}, logger)
	return err
}
