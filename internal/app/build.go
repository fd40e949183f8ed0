// Package app assembles the service from configuration: stores, clients,
// the draw engine, the bot and the admin API.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ent0n29/atelier/internal/bot"
	"github.com/ent0n29/atelier/internal/config"
	"github.com/ent0n29/atelier/internal/credentials"
	"github.com/ent0n29/atelier/internal/generator"
	"github.com/ent0n29/atelier/internal/httpapi"
	"github.com/ent0n29/atelier/internal/observability"
	"github.com/ent0n29/atelier/internal/platform"
	"github.com/ent0n29/atelier/internal/tasks"
)

type BuildResult struct {
	Config  config.Config
	API     *httpapi.Server
	Bot     *bot.Service
	Engine  *tasks.Engine
	Pending *tasks.PendingStore
	Gateway *platform.Gateway
	Metrics *observability.Metrics

	// Cleanup should be called on shutdown to release external resources.
	Cleanup func() error
}

func Build(ctx context.Context, cfg config.Config, log *slog.Logger) (*BuildResult, error) {
	if log == nil {
		log = slog.Default()
	}
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	creds, err := credentials.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("credential store init failed: %w", err)
	}
	storeMode := "in-memory"
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		storeMode = "postgres"
	}

	gen, err := generator.NewClient(generator.Config{
		Mode:    cfg.GeneratorMode,
		BaseURL: cfg.GeneratorBaseURL,
		Timeout: cfg.GeneratorTimeout,
	})
	if err != nil {
		_ = creds.Close()
		return nil, fmt.Errorf("generator client init failed: %w", err)
	}

	engine := tasks.NewEngine(tasks.Config{
		RetryLimit:   cfg.DrawRetryLimit,
		ImageDelay:   cfg.DrawImageDelay,
		RequeueDelay: cfg.DrawRequeueDelay,
		ReplyWindow:  cfg.DrawReplyWindow,
		HoldOnFatal:  cfg.DrawHoldOnFatal,
	}, gen, metrics, log)

	pending := tasks.NewPendingStore(cfg.ApprovalTTL)
	service := bot.NewService(creds, engine, pending, gen, metrics, log)

	var gateway *platform.Gateway
	if strings.TrimSpace(cfg.PlatformGatewayURL) != "" {
		rest := platform.NewRESTClient(cfg.PlatformAPIURL, cfg.PlatformAppID, cfg.PlatformBotToken, cfg.PlatformTimeout)
		gateway, err = platform.NewGateway(cfg.PlatformGatewayURL, cfg.PlatformBotToken, rest, service, log)
		if err != nil {
			engine.Close()
			_ = creds.Close()
			return nil, fmt.Errorf("gateway init failed: %w", err)
		}
	}

	api := httpapi.New(engine, pending, metrics, storeMode)

	cleanup := func() error {
		engine.Close()
		return creds.Close()
	}

	return &BuildResult{
		Config:  cfg,
		API:     api,
		Bot:     service,
		Engine:  engine,
		Pending: pending,
		Gateway: gateway,
		Metrics: metrics,
		Cleanup: cleanup,
	}, nil
}
