package notification

import (
	"context"
	"slices"
	"sync"

	"github.com/rs/zerolog"
)

// Messenger delivers a push to a set of device tokens.
type Messenger interface {
	SendMulticast(ctx context.Context, tokens []string, title, body string, data map[string]string) error
}

// Service pushes operator alerts to a fixed set of device tokens. With no
// messenger or no tokens it only logs.
type Service struct {
	messenger Messenger
	logger    zerolog.Logger

	mu     sync.RWMutex
	tokens []string
}

// NewService creates a new notification service. messenger may be nil.
func NewService(messenger Messenger, tokens []string, logger zerolog.Logger) *Service {
	return &Service{
		messenger: messenger,
		tokens:    slices.Clone(tokens),
		logger:    logger.With().Str("component", "alerts").Logger(),
	}
}

// Alert logs the alert and pushes it to every operator token. Delivery
// failures are logged and returned.
func (s *Service) Alert(ctx context.Context, a Alert) error {
	s.logger.Warn().Str("kind", a.Kind).Str("title", a.Title).Msg(a.Body)

	tokens := s.Tokens()
	if s.messenger == nil || len(tokens) == 0 {
		return nil
	}

	data := make(map[string]string, len(a.Data)+1)
	for k, v := range a.Data {
		data[k] = v
	}
	data["kind"] = a.Kind

	if err := s.messenger.SendMulticast(ctx, tokens, a.Title, a.Body, data); err != nil {
		s.logger.Error().Err(err).Str("kind", a.Kind).Msg("Failed to push alert")
		return err
	}
	return nil
}

// DropToken removes a token the messenger reported as invalid.
func (s *Service) DropToken(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = slices.DeleteFunc(s.tokens, func(t string) bool { return t == token })
	s.logger.Info().Msg("Dropped invalid operator token")
	return nil
}

func (s *Service) Tokens() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.tokens)
}
