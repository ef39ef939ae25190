package callback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bankmirror/internal/domain/banksync"
	"bankmirror/internal/domain/connection"
	"bankmirror/internal/domain/customer"
	"bankmirror/internal/domain/notification"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// DestroyPolicy decides what a destroy callback does to the local row.
type DestroyPolicy string

const (
	// DestroySoft marks the connection removed and keeps its history.
	DestroySoft DestroyPolicy = "soft"
	// DestroyHard deletes the connection and cascades to its accounts and transactions.
	DestroyHard DestroyPolicy = "hard"
)

var (
	callbackTracer        = otel.Tracer("bankmirror/callback")
	callbackMeter         = otel.Meter("bankmirror/callback")
	callbacksReceived, _  = callbackMeter.Int64Counter("callback.received", metric.WithDescription("Callbacks accepted by category"))
	callbacksRejected, _  = callbackMeter.Int64Counter("callback.rejected", metric.WithDescription("Callbacks rejected before acknowledgement"))
	callbacksProcessed, _ = callbackMeter.Int64Counter("callback.processed", metric.WithDescription("Callbacks processed by category and status"))
)

// SyncRunner runs a full customer sync.
type SyncRunner interface {
	SyncCustomer(ctx context.Context, identifier string) (*banksync.Result, error)
}

// CustomerLookup resolves the aggregator's customer id to a local customer.
type CustomerLookup interface {
	GetByRemoteID(ctx context.Context, remoteID string) (*customer.Customer, error)
}

// ConnectionStore is the slice of connection persistence callbacks mutate.
type ConnectionStore interface {
	GetByRemoteID(ctx context.Context, remoteID string) (*connection.Connection, error)
	UpdateStatus(ctx context.Context, remoteID, status string, lastSuccessAt *time.Time) error
	Delete(ctx context.Context, id int64) error
}

// Alerter raises operator alerts.
type Alerter interface {
	Alert(ctx context.Context, a notification.Alert) error
}

// Inbound is a raw callback request as received over HTTP.
type Inbound struct {
	Category  Category
	Path      string
	Signature string
	ExpiresAt string
	Body      []byte
}

// Processor accepts callbacks synchronously and applies their effects later.
type Processor struct {
	verifier    *Verifier
	sync        SyncRunner
	customers   CustomerLookup
	connections ConnectionStore
	alerts      Alerter
	destroy     DestroyPolicy
	logger      zerolog.Logger
	now         func() time.Time
}

type Option func(*Processor)

func WithDestroyPolicy(policy DestroyPolicy) Option {
	return func(p *Processor) {
		if policy == DestroySoft || policy == DestroyHard {
			p.destroy = policy
		}
	}
}

// WithAlerter enables operator alerts for failures and provider changes.
func WithAlerter(a Alerter) Option {
	return func(p *Processor) {
		p.alerts = a
	}
}

func NewProcessor(verifier *Verifier, sync SyncRunner, customers CustomerLookup, connections ConnectionStore, logger zerolog.Logger, opts ...Option) *Processor {
	p := &Processor{
		verifier:    verifier,
		sync:        sync,
		customers:   customers,
		connections: connections,
		destroy:     DestroySoft,
		logger:      logger.With().Str("component", "callbacks").Logger(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Accept verifies the signature before touching the body, then parses the
// envelope. Nothing is mutated here.
func (p *Processor) Accept(ctx context.Context, in Inbound) (*Callback, error) {
	if !in.Category.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, in.Category)
	}
	if err := p.verifier.Verify(in.Path, in.ExpiresAt, in.Signature, in.Body); err != nil {
		callbacksRejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "signature")))
		p.logger.Warn().Err(err).Str("callback", string(in.Category)).Str("path", in.Path).Msg("Rejected callback")
		return nil, err
	}

	env, err := parseEnvelope(in.Body)
	if err != nil {
		callbacksRejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "payload")))
		return nil, err
	}

	cb := &Callback{
		ID:         uuid.NewString(),
		Category:   in.Category,
		Path:       in.Path,
		Payload:    env.Data,
		ReceivedAt: p.now().UTC(),
	}
	callbacksReceived.Add(ctx, 1, metric.WithAttributes(attribute.String("category", string(cb.Category))))
	p.logger.Info().
		Str("callback_id", cb.ID).
		Str("callback", string(cb.Category)).
		Str("connection", cb.Payload.ConnectionID).
		Str("customer", cb.Payload.CustomerID).
		Msg("Accepted callback")
	return cb, nil
}

// Process applies the state transition for an accepted callback. It runs
// detached from the HTTP request; errors are for the caller's logs only.
func (p *Processor) Process(ctx context.Context, cb *Callback) error {
	ctx, span := callbackTracer.Start(ctx, "callback.process",
		trace.WithAttributes(
			attribute.String("callback.id", cb.ID),
			attribute.String("callback.category", string(cb.Category)),
		),
	)
	defer span.End()

	log := p.logger.With().Str("callback_id", cb.ID).Str("callback", string(cb.Category)).Logger()

	err := p.dispatch(ctx, log, cb.Category, cb.Payload)

	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error().Err(err).Msg("Callback processing failed")
	}
	callbacksProcessed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("category", string(cb.Category)),
		attribute.String("status", status),
	))
	return err
}

func (p *Processor) dispatch(ctx context.Context, log zerolog.Logger, category Category, data Payload) error {
	switch category {
	case CategorySuccess:
		return p.handleSuccess(ctx, log, data)
	case CategoryFailure:
		return p.handleFailure(ctx, log, data)
	case CategoryNotify:
		p.handleNotify(log, data)
		return nil
	case CategoryDestroy:
		return p.handleDestroy(ctx, log, data)
	case CategoryProviderChanges:
		p.handleProviderChanges(ctx, log, data)
		return nil
	case CategoryPaymentSuccess, CategoryPaymentFailure, CategoryPaymentNotify:
		log.Info().
			Str("payment_id", data.PaymentID).
			Str("customer", data.CustomerID).
			Str("status", data.Status).
			Str("error_class", data.ErrorClass).
			Msg("Payment callback received")
		return nil
	case CategoryLegacy:
		target, ok := route(data)
		if !ok {
			log.Warn().Str("stage", data.Stage).Msg("Unknown legacy callback stage")
			return nil
		}
		log.Debug().Str("stage", data.Stage).Str("routed_to", string(target)).Msg("Routing legacy callback")
		return p.dispatch(ctx, log, target, data)
	}
	return fmt.Errorf("%w: %q", ErrUnknownCategory, category)
}

func (p *Processor) handleSuccess(ctx context.Context, log zerolog.Logger, data Payload) error {
	if data.ConnectionID == "" || data.CustomerID == "" {
		log.Warn().Msg("Success callback without connection_id or customer_id")
		return nil
	}

	cust, err := p.customers.GetByRemoteID(ctx, data.CustomerID)
	if errors.Is(err, customer.ErrNotFound) {
		log.Warn().Str("customer", data.CustomerID).Msg("Customer not found for callback")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up customer %s: %w", data.CustomerID, err)
	}

	result, err := p.sync.SyncCustomer(ctx, cust.Identifier)
	if err != nil {
		p.alert(ctx, log, notification.SyncFailed(cust.Identifier, err))
		return fmt.Errorf("failed to sync customer %s: %w", cust.Identifier, err)
	}
	log.Info().
		Str("customer", cust.Identifier).
		Int("connections", result.ConnectionsSynced).
		Int("accounts", result.AccountsSynced).
		Int("transactions", result.TransactionsSynced).
		Int("errors", len(result.Errors)).
		Msg("Callback sync finished")

	now := p.now().UTC()
	err = p.connections.UpdateStatus(ctx, data.ConnectionID, connection.StatusActive, &now)
	if errors.Is(err, connection.ErrNotFound) {
		log.Warn().Str("connection", data.ConnectionID).Msg("Connection not present after sync")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to activate connection %s: %w", data.ConnectionID, err)
	}
	return nil
}

func (p *Processor) handleFailure(ctx context.Context, log zerolog.Logger, data Payload) error {
	class := data.ErrorClass
	if class == "" {
		class = "unknown"
	}
	message := data.ErrorMessage
	if message == "" {
		message = "Unknown error"
	}
	log.Warn().Str("connection", data.ConnectionID).Str("error_class", class).Msg(message)

	if data.ConnectionID == "" {
		return nil
	}
	p.alert(ctx, log, notification.ConnectionFailed(data.ConnectionID, class, message))

	err := p.connections.UpdateStatus(ctx, data.ConnectionID, connection.StatusError, nil)
	if errors.Is(err, connection.ErrNotFound) {
		log.Warn().Str("connection", data.ConnectionID).Msg("Connection not found for failure callback")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to mark connection %s as errored: %w", data.ConnectionID, err)
	}
	return nil
}

func (p *Processor) handleNotify(log zerolog.Logger, data Payload) {
	notifyType := data.Type
	if notifyType == "" {
		notifyType = "unknown"
	}
	log.Info().Str("connection", data.ConnectionID).Str("type", notifyType).Msg("Notify callback")
}

func (p *Processor) handleDestroy(ctx context.Context, log zerolog.Logger, data Payload) error {
	if data.ConnectionID == "" {
		log.Warn().Msg("Destroy callback without connection_id")
		return nil
	}

	if p.destroy == DestroyHard {
		conn, err := p.connections.GetByRemoteID(ctx, data.ConnectionID)
		if errors.Is(err, connection.ErrNotFound) {
			log.Warn().Str("connection", data.ConnectionID).Msg("Connection not found for destroy callback")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to look up connection %s: %w", data.ConnectionID, err)
		}
		if err := p.connections.Delete(ctx, conn.ID); err != nil && !errors.Is(err, connection.ErrNotFound) {
			return fmt.Errorf("failed to delete connection %s: %w", data.ConnectionID, err)
		}
		log.Info().Str("connection", data.ConnectionID).Msg("Deleted destroyed connection")
		return nil
	}

	err := p.connections.UpdateStatus(ctx, data.ConnectionID, connection.StatusRemoved, nil)
	if errors.Is(err, connection.ErrNotFound) {
		log.Warn().Str("connection", data.ConnectionID).Msg("Connection not found for destroy callback")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to mark connection %s as removed: %w", data.ConnectionID, err)
	}
	log.Info().Str("connection", data.ConnectionID).Msg("Marked connection as removed")
	return nil
}

func (p *Processor) handleProviderChanges(ctx context.Context, log zerolog.Logger, data Payload) {
	code := data.ProviderCode
	if code == "" {
		code = "unknown"
	}
	change := data.ChangeType
	if change == "" {
		change = "unknown"
	}
	log.Warn().Str("provider", code).Str("change_type", change).Msg("Provider reported changes")
	p.alert(ctx, log, notification.ProviderChanged(code, change))
}

func (p *Processor) alert(ctx context.Context, log zerolog.Logger, a notification.Alert) {
	if p.alerts == nil {
		return
	}
	if err := p.alerts.Alert(ctx, a); err != nil {
		log.Warn().Err(err).Str("kind", a.Kind).Msg("Failed to send operator alert")
	}
}
