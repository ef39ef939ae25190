package firebase

import (
	"context"
	"errors"
	"fmt"
	"slices"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

// FCM accepts at most this many tokens per multicast.
const fcmBatchLimit = 500

// ErrNotDelivered is returned when no operator device received an alert.
var ErrNotDelivered = errors.New("alert reached no device")

// TokenDeactivator drops an operator token FCM reported as invalid.
type TokenDeactivator func(ctx context.Context, token string) error

type multicaster interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// Client delivers operator alerts through Firebase Cloud Messaging.
type Client struct {
	msgClient   multicaster
	deactivator TokenDeactivator
	logger      zerolog.Logger
}

// NewClient initializes a Firebase app from a service account file.
// deactivator may be nil.
func NewClient(ctx context.Context, credentialsFile string, deactivator TokenDeactivator, logger zerolog.Logger) (*Client, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}

	msgClient, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase messaging client: %w", err)
	}

	return &Client{
		msgClient:   msgClient,
		deactivator: deactivator,
		logger:      logger.With().Str("component", "fcm").Logger(),
	}, nil
}

// SendMulticast pushes one alert to every token in batches FCM accepts.
// Tokens FCM rejects as unregistered are handed to the deactivator after
// the send. It returns ErrNotDelivered when every token failed.
func (c *Client) SendMulticast(ctx context.Context, tokens []string, title, body string, data map[string]string) error {
	if len(tokens) == 0 {
		return nil
	}

	var delivered, failed int
	var invalid []string
	for batch := range slices.Chunk(tokens, fcmBatchLimit) {
		resp, err := c.msgClient.SendEachForMulticast(ctx, alertMessage(batch, title, body, data))
		if err != nil {
			return fmt.Errorf("failed to send FCM multicast: %w", err)
		}

		delivered += resp.SuccessCount
		failed += resp.FailureCount
		invalid = append(invalid, c.rejectedTokens(batch, resp)...)
	}

	for _, token := range invalid {
		c.deactivate(ctx, token)
	}

	c.logger.Info().
		Int("delivered", delivered).
		Int("failed", failed).
		Int("invalid", len(invalid)).
		Str("kind", data["kind"]).
		Msg("Alert pushed")

	if delivered == 0 {
		return ErrNotDelivered
	}
	return nil
}

// alertMessage marks alerts high priority and collapses repeated alerts of
// the same kind on the device.
func alertMessage(tokens []string, title, body string, data map[string]string) *messaging.MulticastMessage {
	msg := &messaging.MulticastMessage{
		Tokens:       tokens,
		Notification: &messaging.Notification{Title: title, Body: body},
		Data:         data,
		Android:      &messaging.AndroidConfig{Priority: "high"},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{"apns-priority": "10"},
		},
	}
	if kind := data["kind"]; kind != "" {
		msg.Android.CollapseKey = kind
		msg.APNS.Headers["apns-collapse-id"] = kind
	}
	return msg
}

func (c *Client) rejectedTokens(batch []string, resp *messaging.BatchResponse) []string {
	var rejected []string
	for i, r := range resp.Responses {
		if r.Error == nil || i >= len(batch) {
			continue
		}
		if messaging.IsUnregistered(r.Error) || messaging.IsInvalidArgument(r.Error) {
			rejected = append(rejected, batch[i])
			continue
		}
		c.logger.Warn().Err(r.Error).Int("index", i).Msg("FCM send error")
	}
	return rejected
}

func (c *Client) deactivate(ctx context.Context, token string) {
	if c.deactivator == nil {
		return
	}
	if err := c.deactivator(ctx, token); err != nil {
		c.logger.Error().Err(err).Msg("Failed to drop operator token")
	}
}
