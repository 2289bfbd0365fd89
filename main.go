// package main wires the GitHub webhook receiver: configuration, logging,
// the GitHub App client, the delivery sweeper, and the HTTP server.
package main

import (
	"context"
	"log"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/GlueOps/storypoints/internal/api"
	"github.com/GlueOps/storypoints/internal/config"
	"github.com/GlueOps/storypoints/internal/logging"
	"github.com/GlueOps/storypoints/internal/metrics"
	"github.com/GlueOps/storypoints/internal/sweeper"
	"github.com/GlueOps/storypoints/restapi/modules/github"
	"github.com/GlueOps/storypoints/restapi/modules/webhook"
)

func main() {
	// A .env file is optional; deployments set real environment variables.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	logger := logging.New(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	if cfg.WebhookSecret == "" {
		logger.Warn("GITHUB_WEBHOOK_SECRET is not set; webhook signatures will not be verified")
	}

	m := metrics.New()
	client := github.NewClient(cfg, logger, m)

	projectNodeID, err := resolveProjectNodeID(client, logger)
	if err != nil {
		logger.Fatal("failed to resolve project node id", zap.Error(err))
	}

	sw := sweeper.New(client, logger, m, cfg.ReprocessDays)
	go sw.Run(context.Background())

	svc := &webhook.Service{
		Client:        client,
		ProjectNodeID: projectNodeID,
		Secret:        cfg.WebhookSecret,
		Logger:        logger,
		Metrics:       m,
	}

	app := api.NewFiberApp(svc)

	logger.Info("starting server", zap.String("port", cfg.Port))
	if err := app.Listen(":" + cfg.Port); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

// resolveProjectNodeID turns the configured project number into the node ID
// the mutation needs, retrying with backoff: the service cannot do useful
// work without it, and GitHub may be briefly unreachable at boot.
func resolveProjectNodeID(client *github.Client, logger *zap.Logger) (string, error) {
	const initialInterval = 10 * time.Second
	const maxInterval = 2 * time.Minute

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = initialInterval
	bo.MaxInterval = maxInterval
	bo.MaxElapsedTime = 15 * time.Minute

	var projectNodeID string
	err := backoff.RetryNotify(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		token, err := client.InstallationToken(ctx)
		if err != nil {
			return err
		}
		projectNodeID, err = client.ProjectNodeID(ctx, token.Value)
		return err
	}, bo, func(err error, _ time.Duration) {
		logger.Warn("retrying project node id lookup", zap.Error(err))
	})

	return projectNodeID, err
}
