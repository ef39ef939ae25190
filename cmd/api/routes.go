package main

import (
	"net/http"

	httphandlers "bankmirror/internal/interfaces/http"
	"bankmirror/internal/shared/config"
	"bankmirror/internal/shared/middleware"

	"github.com/rs/zerolog"
)

const apiPrefix = "/api/v1"

// SetupRoutes configures all HTTP routes and returns the final handler with middleware.
func SetupRoutes(deps *Dependencies, cfg *config.Config, logger zerolog.Logger) http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", deps.HealthHandler.HandleHealth)

	// Webhooks are authenticated by their signature, not the API key.
	for _, route := range httphandlers.CallbackRoutes {
		mux.HandleFunc("POST "+apiPrefix+"/callbacks"+route.Path, deps.CallbackHandler.Handle(route.Category))
	}
	mux.HandleFunc("GET "+apiPrefix+"/callbacks/test", deps.CallbackHandler.HandleTest)
	mux.HandleFunc("POST "+apiPrefix+"/callbacks/test-payload", deps.CallbackHandler.HandleTestPayload)
	mux.HandleFunc("GET "+apiPrefix+"/callbacks/setup-instructions", deps.CallbackHandler.HandleSetupInstructions)

	// Protected routes
	protected := middleware.APIKey(cfg.Admin.APIKeyHash)
	handle := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, protected(h))
	}

	handle("POST "+apiPrefix+"/customers", deps.CustomerHandler.HandleCreate)
	handle("GET "+apiPrefix+"/customers", deps.CustomerHandler.HandleList)
	handle("GET "+apiPrefix+"/customers/{id}", deps.CustomerHandler.HandleGet)
	handle("GET "+apiPrefix+"/customers/by-identifier/{identifier}", deps.CustomerHandler.HandleGetByIdentifier)
	handle("DELETE "+apiPrefix+"/customers/{id}", deps.CustomerHandler.HandleDelete)

	handle("GET "+apiPrefix+"/connections/customer/{id}", deps.ConnectionHandler.HandleListByCustomer)
	handle("POST "+apiPrefix+"/connections/customer/{id}", deps.ConnectionHandler.HandleCreate)
	handle("GET "+apiPrefix+"/connections/{id}", deps.ConnectionHandler.HandleGet)
	handle("PUT "+apiPrefix+"/connections/{id}/refresh", deps.ConnectionHandler.HandleRefresh)
	handle("DELETE "+apiPrefix+"/connections/{id}", deps.ConnectionHandler.HandleDelete)

	handle("GET "+apiPrefix+"/accounts/customer/{id}", deps.AccountHandler.HandleListByCustomer)
	handle("GET "+apiPrefix+"/accounts/customer/{id}/summary", deps.AccountHandler.HandleSummary)
	handle("GET "+apiPrefix+"/accounts/connection/{id}", deps.AccountHandler.HandleListByConnection)
	handle("GET "+apiPrefix+"/accounts/by-remote-id/{remote_id}", deps.AccountHandler.HandleGetByRemoteID)
	handle("GET "+apiPrefix+"/accounts/{id}", deps.AccountHandler.HandleGet)

	handle("GET "+apiPrefix+"/transactions/customer/{id}", deps.TransactionHandler.HandleListByCustomer)
	handle("GET "+apiPrefix+"/transactions/customer/{id}/summary", deps.TransactionHandler.HandleSummary)
	handle("GET "+apiPrefix+"/transactions/account/{id}", deps.TransactionHandler.HandleListByAccount)
	handle("GET "+apiPrefix+"/transactions/categories/list", deps.TransactionHandler.HandleCategories)
	handle("GET "+apiPrefix+"/transactions/{id}", deps.TransactionHandler.HandleGet)

	handle("POST "+apiPrefix+"/sync/customer", deps.SyncHandler.HandleSyncCustomer)
	handle("POST "+apiPrefix+"/sync/customer/{id}/background", deps.SyncHandler.HandleSyncCustomerBackground)
	handle("POST "+apiPrefix+"/sync/all-customers/background", deps.SyncHandler.HandleSyncAllBackground)
	handle("GET "+apiPrefix+"/sync/providers", deps.CatalogHandler.HandleProviders)
	handle("GET "+apiPrefix+"/sync/providers/{code}", deps.CatalogHandler.HandleProvider)
	handle("GET "+apiPrefix+"/sync/countries", deps.CatalogHandler.HandleCountries)
	handle("GET "+apiPrefix+"/sync/categories", deps.CatalogHandler.HandleCategories)

	handle("GET "+apiPrefix+"/status/aggregator", deps.StatusHandler.HandleAggregator)
	handle("GET "+apiPrefix+"/status/test-providers", deps.StatusHandler.HandleTestProviders)
	handle("GET "+apiPrefix+"/status/integration-readiness", deps.StatusHandler.HandleReadiness)
	handle("GET "+apiPrefix+"/status/next-steps", deps.StatusHandler.HandleNextSteps)

	// Apply global middleware
	var handler http.Handler = mux
	if cfg.Server.RequireHTTPS {
		handler = middleware.HSTS(middleware.RequireHTTPS(cfg.Server.AllowedHosts)(handler))
		logger.Info().Strs("allowed_hosts", cfg.Server.AllowedHosts).Msg("HTTPS enforcement enabled")
	}
	handler = middleware.Logging(logger)(handler)
	if cfg.Telemetry.Enabled {
		handler = middleware.Tracing(handler)
	}

	return handler
}
