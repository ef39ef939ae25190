package main

import (
	"context"
	"fmt"

	"bankmirror/internal/domain/account"
	"bankmirror/internal/domain/banksync"
	"bankmirror/internal/domain/callback"
	"bankmirror/internal/domain/connection"
	"bankmirror/internal/domain/customer"
	"bankmirror/internal/domain/notification"
	"bankmirror/internal/domain/report"
	"bankmirror/internal/domain/statusprobe"
	"bankmirror/internal/domain/transaction"
	"bankmirror/internal/infrastructure/crypto"
	"bankmirror/internal/infrastructure/firebase"
	"bankmirror/internal/infrastructure/postgres"
	"bankmirror/internal/infrastructure/saltedge"
	httphandlers "bankmirror/internal/interfaces/http"
	"bankmirror/internal/interfaces/scheduler"
	"bankmirror/internal/shared/config"

	"github.com/rs/zerolog"
)

// Dependencies holds all initialized application components.
type Dependencies struct {
	DB   *postgres.DB
	Pool *scheduler.WorkerPool

	// Handlers
	HealthHandler      *httphandlers.HealthHandler
	CallbackHandler    *httphandlers.CallbackHandler
	SyncHandler        *httphandlers.SyncHandler
	CustomerHandler    *httphandlers.CustomerHandler
	ConnectionHandler  *httphandlers.ConnectionHandler
	AccountHandler     *httphandlers.AccountHandler
	TransactionHandler *httphandlers.TransactionHandler
	CatalogHandler     *httphandlers.CatalogHandler
	StatusHandler      *httphandlers.StatusHandler

	// Scheduler and listener inputs
	Engine    *banksync.Engine
	Customers *customer.Service
	Alerts    *notification.Service
}

// NewDependencies initializes all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Dependencies, error) {
	db, err := postgres.New(cfg.Database.ConnectionString())
	if err != nil {
		return nil, err
	}
	logger.Info().Msg("Connected to database")

	if err := postgres.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		db.Close()
		return nil, err
	}

	client, err := saltedge.NewClient(saltedge.Config{
		BaseURL:  cfg.SaltEdge.BaseURL,
		AppID:    cfg.SaltEdge.AppID,
		Secret:   cfg.SaltEdge.Secret,
		ClientID: cfg.SaltEdge.ClientID,
		Timeout:  cfg.SaltEdge.Timeout,
		MaxPages: cfg.SaltEdge.MaxPages,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create aggregator client: %w", err)
	}

	// Repositories
	customerRepo := postgres.NewCustomerRepository(db, encryptor)
	connectionRepo := postgres.NewConnectionRepository(db)
	accountRepo := postgres.NewAccountRepository(db)
	transactionRepo := postgres.NewTransactionRepository(db)

	// Domain services
	customerService := customer.NewService(customerRepo, client, logger)
	connectionService := connection.NewService(connectionRepo, customerRepo, client, logger)
	accountService := account.NewService(accountRepo)
	transactionService := transaction.NewService(transactionRepo)
	reportService := report.NewService(customerRepo, accountRepo, transactionRepo)

	engine := banksync.NewEngine(client, customerRepo, postgres.NewStore(db), logger,
		banksync.WithFetchConcurrency(cfg.SaltEdge.FetchConcurrency))

	alerts, err := newAlerts(ctx, cfg.Firebase, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	destroyPolicy := callback.DestroySoft
	if cfg.Webhooks.DestroyPolicy == config.DestroyPolicyHard {
		destroyPolicy = callback.DestroyHard
	}
	processor := callback.NewProcessor(
		callback.NewVerifier(cfg.WebhookSecret(), cfg.Webhooks.ClockSkew),
		engine,
		customerRepo,
		connectionRepo,
		logger,
		callback.WithDestroyPolicy(destroyPolicy),
		callback.WithAlerter(alerts),
	)
	if cfg.WebhookSecret() == "" {
		logger.Warn().Msg("Webhook signature verification is disabled")
	}

	pool := scheduler.NewWorkerPool(scheduler.PoolConfig{
		Workers:    cfg.Scheduler.WorkerCount,
		QueueSize:  cfg.Scheduler.QueueSize,
		JobDelay:   cfg.Scheduler.JobDelay,
		JobTimeout: cfg.Scheduler.JobTimeout,
	}, logger)

	readiness := statusprobe.Settings{
		CredentialsSet:       cfg.SaltEdge.AppID != "" && cfg.SaltEdge.Secret != "",
		CallbackVerification: cfg.WebhookSecret() != "",
		APIKeyRequired:       cfg.Admin.APIKeyHash != "",
		HTTPSRequired:        cfg.Server.RequireHTTPS,
	}

	return &Dependencies{
		DB:                 db,
		Pool:               pool,
		HealthHandler:      httphandlers.NewHealthHandler(db),
		CallbackHandler:    httphandlers.NewCallbackHandler(processor, pool, cfg.Webhooks.MaxBodyBytes),
		SyncHandler:        httphandlers.NewSyncHandler(engine, customerService, pool, alerts, logger),
		CustomerHandler:    httphandlers.NewCustomerHandler(customerService),
		ConnectionHandler:  httphandlers.NewConnectionHandler(connectionService),
		AccountHandler:     httphandlers.NewAccountHandler(accountService, reportService),
		TransactionHandler: httphandlers.NewTransactionHandler(transactionService, reportService),
		CatalogHandler:     httphandlers.NewCatalogHandler(client),
		StatusHandler:      httphandlers.NewStatusHandler(statusprobe.NewProbe(client, logger), readiness, db),
		Engine:             engine,
		Customers:          customerService,
		Alerts:             alerts,
	}, nil
}

// newAlerts builds the operator alert service, pushing through FCM when a
// credentials file is configured and only logging otherwise.
func newAlerts(ctx context.Context, cfg config.FirebaseConfig, logger zerolog.Logger) (*notification.Service, error) {
	if cfg.CredentialsFile == "" {
		return notification.NewService(nil, nil, logger), nil
	}

	var alerts *notification.Service
	fcm, err := firebase.NewClient(ctx, cfg.CredentialsFile, func(ctx context.Context, token string) error {
		return alerts.DropToken(ctx, token)
	}, logger)
	if err != nil {
		return nil, err
	}
	alerts = notification.NewService(fcm, cfg.OperatorTokens, logger)
	return alerts, nil
}

// Close releases all resources held by dependencies.
func (d *Dependencies) Close() {
	if d.DB != nil {
		d.DB.Close()
	}
}
