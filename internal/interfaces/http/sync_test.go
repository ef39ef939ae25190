package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"bankmirror/internal/domain/banksync"
	"bankmirror/internal/domain/customer"
	"bankmirror/internal/interfaces/scheduler"

	"github.com/rs/zerolog"
)

// MockSyncRunner implements SyncRunner for testing
type MockSyncRunner struct {
	SyncCustomerFunc func(ctx context.Context, identifier string) (*banksync.Result, error)
}

func (m *MockSyncRunner) SyncCustomer(ctx context.Context, identifier string) (*banksync.Result, error) {
	if m.SyncCustomerFunc != nil {
		return m.SyncCustomerFunc(ctx, identifier)
	}
	return &banksync.Result{Errors: []string{}}, nil
}

// MockCustomerService implements CustomerService and CustomerDirectory for testing
type MockCustomerService struct {
	RegisterFunc        func(ctx context.Context, params customer.RegisterParams) (*customer.Customer, error)
	GetFunc             func(ctx context.Context, id int64) (*customer.Customer, error)
	GetByIdentifierFunc func(ctx context.Context, identifier string) (*customer.Customer, error)
	ListFunc            func(ctx context.Context) ([]*customer.Customer, error)
	DeleteFunc          func(ctx context.Context, id int64) error
}

func (m *MockCustomerService) Register(ctx context.Context, params customer.RegisterParams) (*customer.Customer, error) {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, params)
	}
	return nil, nil
}

func (m *MockCustomerService) Get(ctx context.Context, id int64) (*customer.Customer, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	return nil, customer.ErrNotFound
}

func (m *MockCustomerService) GetByIdentifier(ctx context.Context, identifier string) (*customer.Customer, error) {
	if m.GetByIdentifierFunc != nil {
		return m.GetByIdentifierFunc(ctx, identifier)
	}
	return nil, customer.ErrNotFound
}

func (m *MockCustomerService) List(ctx context.Context) ([]*customer.Customer, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}
	return nil, nil
}

func (m *MockCustomerService) Delete(ctx context.Context, id int64) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

func alice() *customer.Customer {
	return &customer.Customer{ID: 1, RemoteID: "cust_1", Identifier: "alice"}
}

func TestSyncHandler_SyncCustomer(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		result     *banksync.Result
		err        error
		wantStatus int
	}{
		{
			name:       "full result",
			body:       `{"customer_identifier":"alice"}`,
			result:     &banksync.Result{CustomerID: 1, ConnectionsSynced: 1, AccountsSynced: 2, TransactionsSynced: 6, Errors: []string{}},
			wantStatus: http.StatusOK,
		},
		{
			name:       "partial failure is still 200",
			body:       `{"customer_identifier":"alice"}`,
			result:     &banksync.Result{CustomerID: 1, ConnectionsSynced: 3, Errors: []string{"connection conn_2: list accounts: timeout"}},
			wantStatus: http.StatusOK,
		},
		{
			name:       "unknown customer",
			body:       `{"customer_identifier":"nobody"}`,
			err:        fmt.Errorf("%w: nobody", banksync.ErrCustomerNotFound),
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "commit failure",
			body:       `{"customer_identifier":"alice"}`,
			err:        &banksync.CommitError{Err: errors.New("serialization failure")},
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "missing identifier",
			body:       `{"customer_identifier":"  "}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "invalid json",
			body:       `{`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &MockSyncRunner{SyncCustomerFunc: func(ctx context.Context, identifier string) (*banksync.Result, error) {
				return tt.result, tt.err
			}}
			handler := NewSyncHandler(runner, &MockCustomerService{}, &MockJobSubmitter{}, nil, zerolog.Nop())

			req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/customer", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			handler.HandleSyncCustomer(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var got banksync.Result
			if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
				t.Fatal(err)
			}
			if got.ConnectionsSynced != tt.result.ConnectionsSynced || len(got.Errors) != len(tt.result.Errors) {
				t.Errorf("result = %+v, want %+v", got, tt.result)
			}
		})
	}
}

func TestSyncHandler_Background(t *testing.T) {
	customers := &MockCustomerService{
		GetFunc: func(ctx context.Context, id int64) (*customer.Customer, error) {
			if id == 1 {
				return alice(), nil
			}
			return nil, customer.ErrNotFound
		},
	}

	t.Run("queues one customer", func(t *testing.T) {
		jobs := &MockJobSubmitter{}
		handler := NewSyncHandler(&MockSyncRunner{}, customers, jobs, nil, zerolog.Nop())

		req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/customer/1/background", nil)
		req.SetPathValue("id", "1")
		rec := httptest.NewRecorder()
		handler.HandleSyncCustomerBackground(rec, req)

		if rec.Code != http.StatusAccepted {
			t.Fatalf("status = %d, want 202", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "Background sync initiated for customer alice") {
			t.Errorf("body = %s", rec.Body.String())
		}
		if len(jobs.jobs) != 1 || jobs.jobs[0].Subject() != "alice" {
			t.Errorf("jobs = %v", jobs.jobs)
		}
	})

	t.Run("unknown customer", func(t *testing.T) {
		handler := NewSyncHandler(&MockSyncRunner{}, customers, &MockJobSubmitter{}, nil, zerolog.Nop())

		req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/customer/9/background", nil)
		req.SetPathValue("id", "9")
		rec := httptest.NewRecorder()
		handler.HandleSyncCustomerBackground(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("queue full", func(t *testing.T) {
		jobs := &MockJobSubmitter{SubmitFunc: func(job scheduler.Job) error { return scheduler.ErrQueueFull }}
		handler := NewSyncHandler(&MockSyncRunner{}, customers, jobs, nil, zerolog.Nop())

		req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/customer/1/background", nil)
		req.SetPathValue("id", "1")
		rec := httptest.NewRecorder()
		handler.HandleSyncCustomerBackground(rec, req)

		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", rec.Code)
		}
	})
}

func TestSyncHandler_AllBackground(t *testing.T) {
	t.Run("no customers", func(t *testing.T) {
		handler := NewSyncHandler(&MockSyncRunner{}, &MockCustomerService{}, &MockJobSubmitter{}, nil, zerolog.Nop())

		rec := httptest.NewRecorder()
		handler.HandleSyncAllBackground(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sync/all-customers/background", nil))

		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "No customers found") {
			t.Errorf("response = %d %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("queues what fits", func(t *testing.T) {
		customers := &MockCustomerService{ListFunc: func(ctx context.Context) ([]*customer.Customer, error) {
			return []*customer.Customer{{Identifier: "alice"}, {Identifier: "bob"}, {Identifier: "carol"}}, nil
		}}
		jobs := &MockJobSubmitter{SubmitFunc: func(job scheduler.Job) error {
			if job.Subject() == "carol" {
				return scheduler.ErrQueueFull
			}
			return nil
		}}
		handler := NewSyncHandler(&MockSyncRunner{}, customers, jobs, nil, zerolog.Nop())

		rec := httptest.NewRecorder()
		handler.HandleSyncAllBackground(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sync/all-customers/background", nil))

		if rec.Code != http.StatusAccepted {
			t.Fatalf("status = %d, want 202", rec.Code)
		}
		var resp BackgroundSyncResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatal(err)
		}
		if resp.Queued != 2 || len(resp.Customers) != 2 || resp.Customers[1] != "bob" {
			t.Errorf("response = %+v", resp)
		}
	})
}
