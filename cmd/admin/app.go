package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"bankmirror/internal/domain/banksync"
	"bankmirror/internal/domain/customer"
	"bankmirror/internal/infrastructure/crypto"
	"bankmirror/internal/infrastructure/postgres"
	"bankmirror/internal/infrastructure/saltedge"
	"bankmirror/internal/shared/config"
	"bankmirror/internal/shared/logger"

	"github.com/rs/zerolog"
)

// app is the subset of the API server's wiring the commands need.
type app struct {
	cfg       *config.Config
	logger    zerolog.Logger
	db        *postgres.DB
	client    *saltedge.Client
	customers *customer.Service
	engine    *banksync.Engine
}

func loadConfig() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to load config: %w", err)
	}
	log := logger.NewWithWriter(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(logger.ParseLevel(cfg.Log.Level))
	return cfg, log, nil
}

func newClient(cfg *config.Config) (*saltedge.Client, error) {
	return saltedge.NewClient(saltedge.Config{
		BaseURL:  cfg.SaltEdge.BaseURL,
		AppID:    cfg.SaltEdge.AppID,
		Secret:   cfg.SaltEdge.Secret,
		ClientID: cfg.SaltEdge.ClientID,
		Timeout:  cfg.SaltEdge.Timeout,
		MaxPages: cfg.SaltEdge.MaxPages,
	})
}

func newApp(ctx context.Context) (*app, error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, err
	}

	db, err := postgres.New(cfg.Database.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := postgres.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		db.Close()
		return nil, err
	}

	client, err := newClient(cfg)
	if err != nil {
		db.Close()
		return nil, err
	}

	customerRepo := postgres.NewCustomerRepository(db, encryptor)

	return &app{
		cfg:       cfg,
		logger:    log,
		db:        db,
		client:    client,
		customers: customer.NewService(customerRepo, client, log),
		engine: banksync.NewEngine(client, customerRepo, postgres.NewStore(db), log,
			banksync.WithFetchConcurrency(cfg.SaltEdge.FetchConcurrency)),
	}, nil
}

func (a *app) Close() {
	a.db.Close()
}
