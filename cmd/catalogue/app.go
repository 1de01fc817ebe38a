package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"

	"example.com/resource-catalogue/internal/blobstore"
	"example.com/resource-catalogue/internal/config"
	"example.com/resource-catalogue/internal/credentials"
	"example.com/resource-catalogue/internal/datasets"
	"example.com/resource-catalogue/internal/dbutil"
	"example.com/resource-catalogue/internal/executor"
	"example.com/resource-catalogue/internal/fetch"
	"example.com/resource-catalogue/internal/ledger"
	"example.com/resource-catalogue/internal/notify"
	"example.com/resource-catalogue/internal/order"
	"example.com/resource-catalogue/internal/provider/airbus"
	"example.com/resource-catalogue/internal/provider/planet"
	"example.com/resource-catalogue/internal/quote"
	"example.com/resource-catalogue/internal/registry"
)

const executorTimeout = 30 * time.Second

// app holds the collaborators shared by the serve and worker commands.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	fetcher   *fetch.Fetcher
	blobs     *blobstore.Buckets
	airbus    *airbus.Client
	publisher notify.Publisher
	ledger    ledger.Store
	pipeline  *order.Pipeline
	quotes    *quote.Service
	datasets  *datasets.Service
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	reg, err := registry.New(cfg.Planet.Collections)
	if err != nil {
		return nil, fmt.Errorf("build collection registry: %w", err)
	}

	a := &app{cfg: cfg, logger: logger}
	a.fetcher = fetch.New(logger.With("component", "fetch"))
	a.blobs = blobstore.New(blobstore.URLOpener(cfg.Storage.URLTemplate), logger.With("component", "blobstore"))

	var creds credentials.Provider = credentials.NewEnv()
	if cfg.Creds.OneTimePad {
		env := credentials.NewEnv()
		creds = credentials.NewOneTimePad(env, env)
	}
	a.airbus = airbus.NewClient(airbus.EndpointsFor(cfg.Airbus.Env), creds, cfg.Airbus.APIKey, logger.With("component", "airbus"))
	planetClient := planet.NewClient(a.fetcher, cfg.Catalogue.SourceBaseURL, logger.With("component", "planet"))

	if a.publisher, err = openPublisher(ctx, cfg.NATS, logger); err != nil {
		a.Close()
		return nil, err
	}
	if a.ledger, err = openLedger(ctx, cfg.Ledger); err != nil {
		a.Close()
		return nil, err
	}

	a.pipeline = order.NewPipeline(order.Deps{
		Registry:  reg,
		Countries: a.airbus,
		Fetcher:   a.fetcher,
		Uploader:  order.NewUploader(a.fetcher, a.blobs, cfg.Storage.Bucket, logger.With("component", "order.uploader")),
		Executor:  executor.NewClient(cfg.Executor.BaseURL, executorTimeout, logger.With("component", "executor")),
		Publisher: a.publisher,
		Ledger:    a.ledger,
	}, order.Settings{
		Bucket:             cfg.Storage.Bucket,
		EventBusURL:        cfg.Executor.EventBusURL,
		ClusterPrefix:      cfg.Executor.ClusterPrefix,
		SourceBaseURL:      cfg.Catalogue.SourceBaseURL,
		OrderRecordBaseURL: cfg.Catalogue.OrderRecordBaseURL,
	}, logger.With("component", "order.pipeline"))

	a.quotes = quote.NewService(reg, a.airbus, planetClient, a.fetcher, cfg.Catalogue.SourceBaseURL, logger.With("component", "quote"))
	a.datasets = datasets.NewService(a.fetcher, a.blobs, a.publisher, cfg.Storage.Bucket, logger)
	return a, nil
}

func openPublisher(ctx context.Context, cfg config.NATSConfig, logger *slog.Logger) (notify.Publisher, error) {
	if cfg.URL == "" {
		logger.Warn("NATS_URL not set, events are only logged")
		return notify.NewLogPublisher(logger.With("component", "notify")), nil
	}
	p, err := notify.Connect(ctx, cfg.URL, cfg.Subject, logger.With("component", "notify"))
	if err != nil {
		return nil, err
	}
	return p, nil
}

func openLedger(ctx context.Context, cfg config.LedgerConfig) (ledger.Store, error) {
	switch cfg.Driver {
	case "none":
		return ledger.Discard{}, nil
	case "mongo":
		store, err := ledger.ConnectMongo(ctx, cfg.DSN, "catalogue")
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		db, err := dbutil.Open(cfg.Driver, cfg.DSN)
		if err != nil {
			return nil, err
		}
		store := ledger.NewSQLStore(db)
		if err := store.Init(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("init ledger schema: %w", err)
		}
		return store, nil
	}
}

func dialTemporal(cfg config.TemporalConfig, logger *slog.Logger) (client.Client, error) {
	if cfg.Address == "" {
		return nil, errors.New("TEMPORAL_ADDRESS is required")
	}
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Address,
		Namespace: cfg.Namespace,
		Logger:    tlog.NewStructuredLogger(logger.With("component", "temporal")),
	})
	if err != nil {
		return nil, fmt.Errorf("dial temporal: %w", err)
	}
	return c, nil
}

func (a *app) Close() {
	if a.publisher != nil {
		a.publisher.Close()
	}
	if a.ledger != nil {
		if err := a.ledger.Close(); err != nil {
			a.logger.Warn("close ledger", "error", err)
		}
	}
	if a.blobs != nil {
		if err := a.blobs.Close(); err != nil {
			a.logger.Warn("close buckets", "error", err)
		}
	}
}
