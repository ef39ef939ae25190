// Package callback verifies and applies aggregator webhook notifications.
package callback

import (
	"encoding/json"
	"errors"
	"time"
)

// Category names the life-cycle event a callback reports.
type Category string

const (
	CategorySuccess         Category = "success"
	CategoryFailure         Category = "failure"
	CategoryNotify          Category = "notify"
	CategoryDestroy         Category = "destroy"
	CategoryProviderChanges Category = "provider_changes"
	CategoryPaymentSuccess  Category = "payment_success"
	CategoryPaymentFailure  Category = "payment_failure"
	CategoryPaymentNotify   Category = "payment_notify"
	CategoryLegacy          Category = "legacy"
)

// Legacy stages
const (
	StageFinish = "finish"
	StageError  = "error"
	StageNotify = "notify"
)

// Domain errors
var (
	ErrInvalidSignature = errors.New("invalid callback signature")
	ErrSignatureExpired = errors.New("callback signature expired")
	ErrMalformedPayload = errors.New("malformed callback payload")
	ErrUnknownCategory  = errors.New("unknown callback category")
)

// AckStatus is the status string returned to the aggregator.
func (c Category) AckStatus() string {
	if c == CategoryLegacy {
		return "legacy_callback_received"
	}
	return string(c) + "_received"
}

func (c Category) Valid() bool {
	switch c {
	case CategorySuccess, CategoryFailure, CategoryNotify, CategoryDestroy, CategoryProviderChanges,
		CategoryPaymentSuccess, CategoryPaymentFailure, CategoryPaymentNotify, CategoryLegacy:
		return true
	}
	return false
}

// Payload is the union of the data fields any callback category may carry.
// Fields a category does not use stay empty.
type Payload struct {
	ConnectionID string `json:"connection_id,omitempty"`
	CustomerID   string `json:"customer_id,omitempty"`
	Stage        string `json:"stage,omitempty"`

	ErrorClass   string          `json:"error_class,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	Error        json.RawMessage `json:"error,omitempty"`

	Type         string `json:"type,omitempty"`
	ProviderCode string `json:"provider_code,omitempty"`
	ChangeType   string `json:"change_type,omitempty"`

	PaymentID string `json:"payment_id,omitempty"`
	Status    string `json:"status,omitempty"`

	CustomFields json.RawMessage `json:"custom_fields,omitempty"`
}

// HasError reports whether the payload carried an "error" key at all.
func (p Payload) HasError() bool {
	return len(p.Error) > 0
}

// Envelope is the {"data": ..., "meta": ...} body every callback shares.
type Envelope struct {
	Data Payload         `json:"data"`
	Meta json.RawMessage `json:"meta,omitempty"`
}

// Callback is an accepted notification waiting to be processed.
type Callback struct {
	ID         string
	Category   Category
	Path       string
	Payload    Payload
	ReceivedAt time.Time
}

// Ack is the immediate response body.
type Ack struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

func NewAck(c Category, now time.Time) Ack {
	return Ack{Status: c.AckStatus(), Timestamp: now.UTC()}
}

func parseEnvelope(body []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, errors.Join(ErrMalformedPayload, err)
	}
	return env, nil
}

// route resolves a legacy callback to the category it stands for. ok is
// false when the stage is not recognised.
func route(p Payload) (Category, bool) {
	switch {
	case p.Stage == StageFinish:
		return CategorySuccess, true
	case p.Stage == StageError || p.HasError():
		return CategoryFailure, true
	case p.Stage == StageNotify:
		return CategoryNotify, true
	}
	return "", false
}
