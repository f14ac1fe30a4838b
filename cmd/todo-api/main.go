package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"todo-api/internal/app"
	"todo-api/internal/config"
	"todo-api/internal/logging"
	"todo-api/internal/server"
)

// Build information, set via ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "todo-api",
		Usage:   "Todo CRUD service backed by Aurora DSQL",
		Version: fmt.Sprintf("%s (commit: %s)", Version, Commit),
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API",
				Action: serve,
			},
			{
				Name:   "init-schema",
				Usage:  "Create the todos table and indexes, then exit",
				Action: initSchema,
			},
		},
	}
}

func bootstrap(ctx context.Context) (*config.Config, *logrus.Logger, *app.App, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, nil, err
	}

	signer, err := app.Signer(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, logger, app.New(cfg, signer, logger), nil
}

func serve(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, logger, a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	srv, err := server.New(cfg, server.Dependencies{
		Handler:      a.Handler,
		HealthChecks: a.HealthChecks(),
		Collectors:   a.Collectors(),
		Stats:        a.Stats(),
	}, logger)
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"environment": cfg.Server.Environment,
		"auth":        cfg.Auth.Enabled(),
		"cache":       cfg.Redis.Enabled,
	}).Info("Starting todo-api")
	a.RunBackground(ctx)
	return srv.Run(ctx)
}

func initSchema(c *cli.Context) error {
	_, logger, a, err := bootstrap(c.Context)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.InitSchema(c.Context); err != nil {
		return err
	}
	logger.Info("Schema is ready")
	return nil
}
