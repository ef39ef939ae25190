package http

import (
	"context"
	"encoding/json"
	"net/http"

	"bankmirror/internal/domain/connection"
	"bankmirror/internal/infrastructure/saltedge"
)

type ConnectionService interface {
	Connect(ctx context.Context, customerID int64, params connection.ConnectParams) (*saltedge.CreatedConnection, error)
	Refresh(ctx context.Context, id int64) (*connection.Connection, error)
	Remove(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (*connection.Connection, error)
	ListByCustomer(ctx context.Context, customerID int64) ([]*connection.Connection, error)
}

type ConnectionHandler struct {
	connections ConnectionService
}

func NewConnectionHandler(connections ConnectionService) *ConnectionHandler {
	return &ConnectionHandler{connections: connections}
}

func (h *ConnectionHandler) HandleListByCustomer(w http.ResponseWriter, r *http.Request) {
	customerID, ok := pathID(r, "id")
	if !ok {
		writeInvalidID(w, "customer id")
		return
	}

	conns, err := h.connections.ListByCustomer(r.Context(), customerID)
	if err != nil {
		writeError(w, r, err, "Failed to list connections")
		return
	}
	if conns == nil {
		conns = []*connection.Connection{}
	}
	writeJSON(w, http.StatusOK, conns)
}

func (h *ConnectionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeInvalidID(w, "connection id")
		return
	}

	conn, err := h.connections.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err, "Failed to get connection")
		return
	}
	writeJSON(w, http.StatusOK, conn)
}

// HandleCreate opens a connect session and returns the URL the customer
// must visit. The local row appears after the success callback.
func (h *ConnectionHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	customerID, ok := pathID(r, "id")
	if !ok {
		writeInvalidID(w, "customer id")
		return
	}

	var params connection.ConnectParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	created, err := h.connections.Connect(r.Context(), customerID, params)
	if err != nil {
		writeError(w, r, err, "Failed to create connection")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *ConnectionHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeInvalidID(w, "connection id")
		return
	}

	conn, err := h.connections.Refresh(r.Context(), id)
	if err != nil {
		writeError(w, r, err, "Failed to refresh connection")
		return
	}
	writeJSON(w, http.StatusOK, conn)
}

func (h *ConnectionHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeInvalidID(w, "connection id")
		return
	}

	if err := h.connections.Remove(r.Context(), id); err != nil {
		writeError(w, r, err, "Failed to delete connection")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
