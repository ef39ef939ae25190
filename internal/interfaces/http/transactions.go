package http

import (
	"context"
	"net/http"
	"time"

	"bankmirror/internal/domain/report"
	"bankmirror/internal/domain/transaction"
)

type TransactionService interface {
	Get(ctx context.Context, id int64) (*transaction.Transaction, error)
	List(ctx context.Context, filter transaction.Filter) ([]*transaction.Transaction, error)
	Categories(ctx context.Context) ([]transaction.CategoryPair, error)
}

type TransactionSummarizer interface {
	TransactionSummary(ctx context.Context, customerID int64, from, to *time.Time) (*report.TransactionSummary, error)
}

type TransactionHandler struct {
	transactions TransactionService
	reports      TransactionSummarizer
}

func NewTransactionHandler(transactions TransactionService, reports TransactionSummarizer) *TransactionHandler {
	return &TransactionHandler{transactions: transactions, reports: reports}
}

// HandleListByCustomer supports from_date, to_date (YYYY-MM-DD),
// category_code, limit and offset.
func (h *TransactionHandler) HandleListByCustomer(w http.ResponseWriter, r *http.Request) {
	customerID, ok := pathID(r, "id")
	if !ok {
		writeInvalidID(w, "customer id")
		return
	}

	filter, ok := parseFilter(w, r)
	if !ok {
		return
	}
	filter.CustomerID = customerID
	h.list(w, r, filter)
}

func (h *TransactionHandler) HandleListByAccount(w http.ResponseWriter, r *http.Request) {
	accountID, ok := pathID(r, "id")
	if !ok {
		writeInvalidID(w, "account id")
		return
	}

	filter, ok := parseFilter(w, r)
	if !ok {
		return
	}
	filter.AccountID = accountID
	h.list(w, r, filter)
}

func (h *TransactionHandler) list(w http.ResponseWriter, r *http.Request, filter transaction.Filter) {
	txs, err := h.transactions.List(r.Context(), filter)
	if err != nil {
		writeError(w, r, err, "Failed to list transactions")
		return
	}
	if txs == nil {
		txs = []*transaction.Transaction{}
	}
	writeJSON(w, http.StatusOK, txs)
}

func (h *TransactionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeInvalidID(w, "transaction id")
		return
	}

	tx, err := h.transactions.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err, "Failed to get transaction")
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

// HandleSummary returns income, expenses and net per currency with
// per-category and per-month breakdowns.
func (h *TransactionHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	customerID, ok := pathID(r, "id")
	if !ok {
		writeInvalidID(w, "customer id")
		return
	}

	from, err := queryDate(r, "from_date")
	if err != nil {
		http.Error(w, "Invalid from_date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	to, err := queryDate(r, "to_date")
	if err != nil {
		http.Error(w, "Invalid to_date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	summary, err := h.reports.TransactionSummary(r.Context(), customerID, from, to)
	if err != nil {
		writeError(w, r, err, "Failed to build transaction summary")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// HandleCategories lists the distinct categories seen in synced transactions.
func (h *TransactionHandler) HandleCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.transactions.Categories(r.Context())
	if err != nil {
		writeError(w, r, err, "Failed to list categories")
		return
	}
	if categories == nil {
		categories = []transaction.CategoryPair{}
	}
	writeJSON(w, http.StatusOK, categories)
}

func parseFilter(w http.ResponseWriter, r *http.Request) (transaction.Filter, bool) {
	var filter transaction.Filter
	var err error

	if filter.From, err = queryDate(r, "from_date"); err != nil {
		http.Error(w, "Invalid from_date, expected YYYY-MM-DD", http.StatusBadRequest)
		return filter, false
	}
	if filter.To, err = queryDate(r, "to_date"); err != nil {
		http.Error(w, "Invalid to_date, expected YYYY-MM-DD", http.StatusBadRequest)
		return filter, false
	}
	if filter.Limit, err = queryInt(r, "limit", transaction.DefaultListLimit); err != nil || filter.Limit < 1 {
		http.Error(w, "Invalid limit", http.StatusBadRequest)
		return filter, false
	}
	if filter.Offset, err = queryInt(r, "offset", 0); err != nil || filter.Offset < 0 {
		http.Error(w, "Invalid offset", http.StatusBadRequest)
		return filter, false
	}
	filter.CategoryCode = r.URL.Query().Get("category_code")
	return filter, true
}
