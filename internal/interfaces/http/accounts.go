package http

import (
	"context"
	"net/http"

	"bankmirror/internal/domain/account"
	"bankmirror/internal/domain/report"
)

type AccountService interface {
	Get(ctx context.Context, id int64) (*account.Account, error)
	GetByRemoteID(ctx context.Context, remoteID string) (*account.Account, error)
	ListByConnection(ctx context.Context, connectionID int64) ([]*account.Account, error)
	ListByCustomer(ctx context.Context, customerID int64) ([]*account.Account, error)
}

type AccountSummarizer interface {
	AccountSummary(ctx context.Context, customerID int64) (*report.AccountSummary, error)
}

type AccountHandler struct {
	accounts AccountService
	reports  AccountSummarizer
}

func NewAccountHandler(accounts AccountService, reports AccountSummarizer) *AccountHandler {
	return &AccountHandler{accounts: accounts, reports: reports}
}

func (h *AccountHandler) HandleListByCustomer(w http.ResponseWriter, r *http.Request) {
	customerID, ok := pathID(r, "id")
	if !ok {
		writeInvalidID(w, "customer id")
		return
	}

	accounts, err := h.accounts.ListByCustomer(r.Context(), customerID)
	if err != nil {
		writeError(w, r, err, "Failed to list accounts")
		return
	}
	writeAccounts(w, accounts)
}

func (h *AccountHandler) HandleListByConnection(w http.ResponseWriter, r *http.Request) {
	connectionID, ok := pathID(r, "id")
	if !ok {
		writeInvalidID(w, "connection id")
		return
	}

	accounts, err := h.accounts.ListByConnection(r.Context(), connectionID)
	if err != nil {
		writeError(w, r, err, "Failed to list accounts")
		return
	}
	writeAccounts(w, accounts)
}

func (h *AccountHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeInvalidID(w, "account id")
		return
	}

	acc, err := h.accounts.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err, "Failed to get account")
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

func (h *AccountHandler) HandleGetByRemoteID(w http.ResponseWriter, r *http.Request) {
	acc, err := h.accounts.GetByRemoteID(r.Context(), r.PathValue("remote_id"))
	if err != nil {
		writeError(w, r, err, "Failed to get account")
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

// HandleSummary returns balances per currency and account counts per nature.
func (h *AccountHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	customerID, ok := pathID(r, "id")
	if !ok {
		writeInvalidID(w, "customer id")
		return
	}

	summary, err := h.reports.AccountSummary(r.Context(), customerID)
	if err != nil {
		writeError(w, r, err, "Failed to build account summary")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func writeAccounts(w http.ResponseWriter, accounts []*account.Account) {
	if accounts == nil {
		accounts = []*account.Account{}
	}
	writeJSON(w, http.StatusOK, accounts)
}
