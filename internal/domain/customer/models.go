package customer

import (
	"errors"
	"strings"
	"time"
)

// Domain errors
var (
	ErrNotFound      = errors.New("customer not found")
	ErrAlreadyExists = errors.New("customer already exists")
	ErrInvalidInput  = errors.New("invalid input")
)

// Customer is the local record of an aggregator customer. Secret is held in
// plaintext in memory and encrypted at rest by the repository.
type Customer struct {
	ID         int64     `json:"id"`
	RemoteID   string    `json:"remote_customer_id"`
	Identifier string    `json:"identifier"`
	Email      string    `json:"email,omitempty"`
	FirstName  string    `json:"first_name,omitempty"`
	LastName   string    `json:"last_name,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	Secret     string    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// RegisterParams describes a customer to create at the aggregator.
type RegisterParams struct {
	Identifier string
	Email      string
	FirstName  string
	LastName   string
	Phone      string
}

func (p *RegisterParams) Normalize() {
	p.Identifier = strings.TrimSpace(p.Identifier)
	p.Email = strings.TrimSpace(strings.ToLower(p.Email))
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	p.Phone = strings.TrimSpace(p.Phone)
}

func (p RegisterParams) Validate() error {
	if p.Identifier == "" {
		return errors.New("identifier is required")
	}
	if p.Email != "" && !strings.Contains(p.Email, "@") {
		return errors.New("email is invalid")
	}
	return nil
}

// CreateParams is the row written after the aggregator accepted the customer.
type CreateParams struct {
	RemoteID   string
	Identifier string
	Email      string
	FirstName  string
	LastName   string
	Phone      string
	Secret     string
}

func (p CreateParams) Validate() error {
	if p.RemoteID == "" {
		return errors.New("remote customer id is required")
	}
	if p.Identifier == "" {
		return errors.New("identifier is required")
	}
	return nil
}
