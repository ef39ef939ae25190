// Package listener turns PostgreSQL notifications into sync requests.
package listener

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog"
)

const (
	ChannelName       = "sync_requested"
	reconnectInterval = 5 * time.Second
	pingInterval      = 90 * time.Second
)

// SyncRequest is the NOTIFY payload. Identifier names the customer by its
// caller-chosen handle.
type SyncRequest struct {
	Identifier string `json:"identifier"`
	Reason     string `json:"reason,omitempty"`
}

// Handler receives each decoded request. It must not block for long.
type Handler func(ctx context.Context, req SyncRequest)

// SyncListener listens on the sync_requested channel and forwards every
// notification to a Handler.
type SyncListener struct {
	connStr    string
	handler    Handler
	logger     zerolog.Logger
	shutdownCh chan struct{}
	done       chan struct{}
}

func NewSyncListener(connStr string, handler Handler, logger zerolog.Logger) *SyncListener {
	return &SyncListener{
		connStr:    connStr,
		handler:    handler,
		logger:     logger.With().Str("component", "sync_listener").Logger(),
		shutdownCh: make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start begins listening in a background goroutine
func (l *SyncListener) Start(ctx context.Context) {
	go l.listen(ctx)
	l.logger.Info().Str("channel", ChannelName).Msg("Sync listener started")
}

// Stop gracefully shuts down the listener
func (l *SyncListener) Stop() {
	close(l.shutdownCh)
	<-l.done
	l.logger.Info().Msg("Sync listener stopped")
}

func (l *SyncListener) listen(ctx context.Context) {
	defer close(l.done)

	for {
		select {
		case <-l.shutdownCh:
			return
		case <-ctx.Done():
			return
		default:
			l.connectAndListen(ctx)
		}

		// Wait before reconnecting
		select {
		case <-l.shutdownCh:
			return
		case <-ctx.Done():
			return
		case <-time.After(reconnectInterval):
			l.logger.Info().Msg("Reconnecting to PostgreSQL for notifications")
		}
	}
}

func (l *SyncListener) connectAndListen(ctx context.Context) {
	listener := pq.NewListener(l.connStr, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnected:
			l.logger.Info().Msg("Connected to notification channel")
		case pq.ListenerEventDisconnected:
			l.logger.Warn().Err(err).Msg("Disconnected from notification channel")
		case pq.ListenerEventReconnected:
			l.logger.Info().Msg("Reconnected to notification channel")
		case pq.ListenerEventConnectionAttemptFailed:
			l.logger.Warn().Err(err).Msg("Notification connection attempt failed")
		}
	})
	defer listener.Close()

	if err := listener.Listen(ChannelName); err != nil {
		l.logger.Error().Err(err).Str("channel", ChannelName).Msg("Failed to listen")
		return
	}

	for {
		select {
		case <-l.shutdownCh:
			return
		case <-ctx.Done():
			return
		case notification := <-listener.Notify:
			if notification == nil {
				// Connection lost, break to reconnect
				return
			}
			l.dispatch(ctx, notification.Extra)
		case <-time.After(pingInterval):
			go func() {
				if err := listener.Ping(); err != nil {
					l.logger.Warn().Err(err).Msg("Listener ping failed")
				}
			}()
		}
	}
}

func (l *SyncListener) dispatch(ctx context.Context, payload string) {
	req, err := ParsePayload(payload)
	if err != nil {
		l.logger.Warn().Err(err).Str("payload", payload).Msg("Ignoring sync notification")
		return
	}
	l.logger.Debug().Str("customer", req.Identifier).Str("reason", req.Reason).Msg("Sync requested")
	l.handler(ctx, req)
}

// ParsePayload accepts either a JSON object or a bare identifier.
func ParsePayload(payload string) (SyncRequest, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return SyncRequest{}, errors.New("empty payload")
	}

	if !strings.HasPrefix(payload, "{") {
		return SyncRequest{Identifier: payload}, nil
	}

	var req SyncRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return SyncRequest{}, err
	}
	req.Identifier = strings.TrimSpace(req.Identifier)
	if req.Identifier == "" {
		return SyncRequest{}, errors.New("payload has no identifier")
	}
	return req, nil
}

// Notify publishes a sync request through an open database handle, e.g. from
// the admin CLI to a running API server.
func Notify(ctx context.Context, db Execer, req SyncRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `SELECT pg_notify($1, $2)`, ChannelName, string(payload))
	return err
}
