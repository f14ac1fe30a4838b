// Command lambda serves one todo operation per function. TODO_HANDLER picks
// which: create, list, update or delete.
package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/sirupsen/logrus"

	"todo-api/internal/app"
	"todo-api/internal/config"
	"todo-api/internal/handlers"
	"todo-api/internal/logging"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		logrus.Fatalf("logging: %v", err)
	}

	signer, err := app.Signer(context.Background(), cfg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to build token signer")
	}

	// The client lives for the container's lifetime and is reused across
	// invocations.
	a := app.New(cfg, signer, logger)

	fn, ok := a.Handler.Lookup(cfg.Lambda.Handler)
	if !ok {
		logger.WithField("handler", cfg.Lambda.Handler).Fatal("TODO_HANDLER must be one of create, list, update, delete")
	}

	lambda.Start(handlers.APIGateway(fn))
}
