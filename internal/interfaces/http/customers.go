package http

import (
	"context"
	"encoding/json"
	"net/http"

	"bankmirror/internal/domain/customer"
)

type CustomerService interface {
	Register(ctx context.Context, params customer.RegisterParams) (*customer.Customer, error)
	Get(ctx context.Context, id int64) (*customer.Customer, error)
	GetByIdentifier(ctx context.Context, identifier string) (*customer.Customer, error)
	List(ctx context.Context) ([]*customer.Customer, error)
	Delete(ctx context.Context, id int64) error
}

type CustomerHandler struct {
	customers CustomerService
}

func NewCustomerHandler(customers CustomerService) *CustomerHandler {
	return &CustomerHandler{customers: customers}
}

type CreateCustomerRequest struct {
	Identifier string `json:"identifier"`
	Email      string `json:"email,omitempty"`
	FirstName  string `json:"first_name,omitempty"`
	LastName   string `json:"last_name,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

// HandleCreate registers the customer at the aggregator and locally.
func (h *CustomerHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	c, err := h.customers.Register(r.Context(), customer.RegisterParams{
		Identifier: req.Identifier,
		Email:      req.Email,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Phone:      req.Phone,
	})
	if err != nil {
		writeError(w, r, err, "Failed to create customer")
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *CustomerHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	customers, err := h.customers.List(r.Context())
	if err != nil {
		writeError(w, r, err, "Failed to list customers")
		return
	}
	if customers == nil {
		customers = []*customer.Customer{}
	}
	writeJSON(w, http.StatusOK, customers)
}

func (h *CustomerHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeInvalidID(w, "customer id")
		return
	}

	c, err := h.customers.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err, "Failed to get customer")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *CustomerHandler) HandleGetByIdentifier(w http.ResponseWriter, r *http.Request) {
	c, err := h.customers.GetByIdentifier(r.Context(), r.PathValue("identifier"))
	if err != nil {
		writeError(w, r, err, "Failed to get customer")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// HandleDelete removes the customer at the aggregator, then locally with
// every connection, account and transaction beneath it.
func (h *CustomerHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeInvalidID(w, "customer id")
		return
	}

	if err := h.customers.Delete(r.Context(), id); err != nil {
		writeError(w, r, err, "Failed to delete customer")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
