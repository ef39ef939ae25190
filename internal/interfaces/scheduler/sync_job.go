package scheduler

import (
	"context"
	"fmt"

	"bankmirror/internal/domain/banksync"
	"bankmirror/internal/domain/customer"
	"bankmirror/internal/domain/notification"

	"github.com/rs/zerolog"
)

// SyncRunner runs a full customer sync.
type SyncRunner interface {
	SyncCustomer(ctx context.Context, identifier string) (*banksync.Result, error)
}

// Alerter raises operator alerts. It may be nil.
type Alerter interface {
	Alert(ctx context.Context, a notification.Alert) error
}

// CustomerLister lists every local customer.
type CustomerLister interface {
	List(ctx context.Context) ([]*customer.Customer, error)
}

// CustomerSyncJob implements the Job interface for a full customer sync.
type CustomerSyncJob struct {
	identifier string
	runner     SyncRunner
	alerts     Alerter
	logger     zerolog.Logger
}

// NewCustomerSyncJob creates a sync job for the customer with the given identifier.
func NewCustomerSyncJob(identifier string, runner SyncRunner, alerts Alerter, logger zerolog.Logger) *CustomerSyncJob {
	return &CustomerSyncJob{
		identifier: identifier,
		runner:     runner,
		alerts:     alerts,
		logger:     logger,
	}
}

// Execute runs the sync. Partial failures are logged and reported as an
// error so the pool marks the job as failed.
func (j *CustomerSyncJob) Execute(ctx context.Context) error {
	result, err := j.runner.SyncCustomer(ctx, j.identifier)
	if err != nil {
		if j.alerts != nil {
			if alertErr := j.alerts.Alert(ctx, notification.SyncFailed(j.identifier, err)); alertErr != nil {
				j.logger.Warn().Err(alertErr).Str("customer", j.identifier).Msg("Failed to send sync alert")
			}
		}
		return fmt.Errorf("sync failed: %w", err)
	}

	event := j.logger.Info()
	if len(result.Errors) > 0 {
		event = j.logger.Warn().Strs("errors", result.Errors)
	}
	event.
		Str("customer", j.identifier).
		Int("connections", result.ConnectionsSynced).
		Int("accounts", result.AccountsSynced).
		Int("transactions", result.TransactionsSynced).
		Msg("Customer sync finished")

	if len(result.Errors) > 0 {
		return fmt.Errorf("sync completed with %d errors", len(result.Errors))
	}
	return nil
}

func (j *CustomerSyncJob) Subject() string {
	return j.identifier
}

func (j *CustomerSyncJob) Description() string {
	return fmt.Sprintf("Customer sync for %s", j.identifier)
}

// CustomerSyncJobs returns a job provider that builds one CustomerSyncJob
// per local customer.
func CustomerSyncJobs(customers CustomerLister, runner SyncRunner, alerts Alerter, logger zerolog.Logger) func(context.Context) ([]Job, error) {
	return func(ctx context.Context) ([]Job, error) {
		list, err := customers.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list customers: %w", err)
		}
		jobs := make([]Job, 0, len(list))
		for _, c := range list {
			jobs = append(jobs, NewCustomerSyncJob(c.Identifier, runner, alerts, logger))
		}
		return jobs, nil
	}
}
