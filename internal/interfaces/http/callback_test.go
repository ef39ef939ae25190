package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"bankmirror/internal/domain/banksync"
	"bankmirror/internal/domain/callback"
	"bankmirror/internal/domain/connection"
	"bankmirror/internal/domain/customer"
	"bankmirror/internal/infrastructure/saltedge"
	"bankmirror/internal/interfaces/scheduler"

	"github.com/rs/zerolog"
)

// MockCallbackProcessor implements CallbackProcessor for testing
type MockCallbackProcessor struct {
	AcceptFunc  func(ctx context.Context, in callback.Inbound) (*callback.Callback, error)
	ProcessFunc func(ctx context.Context, cb *callback.Callback) error
}

func (m *MockCallbackProcessor) Accept(ctx context.Context, in callback.Inbound) (*callback.Callback, error) {
	if m.AcceptFunc != nil {
		return m.AcceptFunc(ctx, in)
	}
	return &callback.Callback{ID: "cb-1", Category: in.Category, Path: in.Path}, nil
}

func (m *MockCallbackProcessor) Process(ctx context.Context, cb *callback.Callback) error {
	if m.ProcessFunc != nil {
		return m.ProcessFunc(ctx, cb)
	}
	return nil
}

// MockJobSubmitter records submitted jobs; it runs nothing.
type MockJobSubmitter struct {
	SubmitFunc func(job scheduler.Job) error
	jobs       []scheduler.Job
}

func (m *MockJobSubmitter) Submit(job scheduler.Job) error {
	if m.SubmitFunc != nil {
		if err := m.SubmitFunc(job); err != nil {
			return err
		}
	}
	m.jobs = append(m.jobs, job)
	return nil
}

func postCallback(t *testing.T, h http.HandlerFunc, path string, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCallbackHandler_Ack(t *testing.T) {
	var got callback.Inbound
	processor := &MockCallbackProcessor{AcceptFunc: func(ctx context.Context, in callback.Inbound) (*callback.Callback, error) {
		got = in
		return &callback.Callback{ID: "cb-1", Category: in.Category, Path: in.Path}, nil
	}}
	jobs := &MockJobSubmitter{}
	handler := NewCallbackHandler(processor, jobs, 0)
	handler.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }

	rec := postCallback(t, handler.Handle(callback.CategorySuccess), "/api/v1/callbacks/ais/success",
		`{"data":{"connection_id":"conn_1"}}`,
		map[string]string{SignatureHeader: "sig", ExpiresAtHeader: "1700000000"})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var ack callback.Ack
	if err := json.NewDecoder(rec.Body).Decode(&ack); err != nil {
		t.Fatal(err)
	}
	if ack.Status != "success_received" {
		t.Errorf("ack status = %q", ack.Status)
	}
	if !ack.Timestamp.Equal(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("ack timestamp = %v", ack.Timestamp)
	}

	if got.Path != "/api/v1/callbacks/ais/success" || got.Signature != "sig" || got.ExpiresAt != "1700000000" {
		t.Errorf("inbound = %+v", got)
	}
	if string(got.Body) != `{"data":{"connection_id":"conn_1"}}` {
		t.Errorf("body = %q", got.Body)
	}
	if len(jobs.jobs) != 1 {
		t.Fatalf("jobs = %d, want 1", len(jobs.jobs))
	}
	if jobs.jobs[0].Description() != "Callback success cb-1" {
		t.Errorf("job = %q", jobs.jobs[0].Description())
	}
}

func TestCallbackHandler_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"bad signature", fmt.Errorf("%w: mismatch", callback.ErrInvalidSignature), http.StatusUnauthorized},
		{"expired", callback.ErrSignatureExpired, http.StatusUnauthorized},
		{"malformed json", errors.Join(callback.ErrMalformedPayload, errors.New("unexpected EOF")), http.StatusBadRequest},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			processor := &MockCallbackProcessor{AcceptFunc: func(ctx context.Context, in callback.Inbound) (*callback.Callback, error) {
				return nil, tt.err
			}}
			jobs := &MockJobSubmitter{}
			handler := NewCallbackHandler(processor, jobs, 0)

			rec := postCallback(t, handler.Handle(callback.CategoryFailure), "/api/v1/callbacks/ais/failure", `{}`, nil)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if len(jobs.jobs) != 0 {
				t.Error("rejected callback must not be queued")
			}
		})
	}
}

func TestCallbackHandler_QueueFullStillAcks(t *testing.T) {
	jobs := &MockJobSubmitter{SubmitFunc: func(job scheduler.Job) error { return scheduler.ErrQueueFull }}
	handler := NewCallbackHandler(&MockCallbackProcessor{}, jobs, 0)

	rec := postCallback(t, handler.Handle(callback.CategoryDestroy), "/api/v1/callbacks/ais/destroy", `{"data":{}}`, nil)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestCallbackHandler_BodyTooLarge(t *testing.T) {
	handler := NewCallbackHandler(&MockCallbackProcessor{}, &MockJobSubmitter{}, 16)

	rec := postCallback(t, handler.Handle(callback.CategoryNotify), "/api/v1/callbacks/ais/notify",
		`{"data":{"connection_id":"conn_1","stage":"notify"}}`, nil)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
}

// Signed request through the real verifier and processor: a success callback
// for a customer we do not know is acknowledged and processed without error.
func TestCallbackHandler_SignedUnknownCustomer(t *testing.T) {
	const secret = "whsec"
	const path = "/api/v1/callbacks/ais/success"
	body := `{"data":{"connection_id":"conn_1","customer_id":"cust_1"},"meta":{"version":"6"}}`

	syncs := 0
	processor := callback.NewProcessor(
		callback.NewVerifier(secret, 30*time.Second),
		&MockSyncRunner{SyncCustomerFunc: func(ctx context.Context, identifier string) (*banksync.Result, error) {
			syncs++
			return &banksync.Result{}, nil
		}},
		&stubCustomerLookup{},
		&stubConnectionStore{},
		zerolog.Nop(),
	)
	jobs := &MockJobSubmitter{}
	handler := NewCallbackHandler(processor, jobs, 0)

	expires := strconv.FormatInt(time.Now().Add(time.Minute).Unix(), 10)
	signature := saltedge.Sign(secret, saltedge.StringToSign(expires, http.MethodPost, path, body))

	rec := postCallback(t, handler.Handle(callback.CategorySuccess), path, body,
		map[string]string{SignatureHeader: signature, ExpiresAtHeader: expires})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if len(jobs.jobs) != 1 {
		t.Fatalf("jobs = %d, want 1", len(jobs.jobs))
	}
	if err := jobs.jobs[0].Execute(context.Background()); err != nil {
		t.Errorf("Execute() error = %v", err)
	}
	if syncs != 0 {
		t.Errorf("syncs = %d, want 0 for an unknown customer", syncs)
	}

	tampered := postCallback(t, handler.Handle(callback.CategorySuccess), path, strings.Replace(body, "conn_1", "conn_2", 1),
		map[string]string{SignatureHeader: signature, ExpiresAtHeader: expires})
	if tampered.Code != http.StatusUnauthorized {
		t.Errorf("tampered status = %d, want 401", tampered.Code)
	}
}

type stubCustomerLookup struct{}

func (stubCustomerLookup) GetByRemoteID(ctx context.Context, remoteID string) (*customer.Customer, error) {
	return nil, customer.ErrNotFound
}

type stubConnectionStore struct{}

func (stubConnectionStore) GetByRemoteID(ctx context.Context, remoteID string) (*connection.Connection, error) {
	return nil, connection.ErrNotFound
}

func (stubConnectionStore) UpdateStatus(ctx context.Context, remoteID, status string, lastSuccessAt *time.Time) error {
	return connection.ErrNotFound
}

func (stubConnectionStore) Delete(ctx context.Context, id int64) error {
	return connection.ErrNotFound
}

func TestCallbackHandler_TestEndpoints(t *testing.T) {
	handler := NewCallbackHandler(&MockCallbackProcessor{}, &MockJobSubmitter{}, 0)

	rec := httptest.NewRecorder()
	handler.HandleTest(rec, httptest.NewRequest(http.MethodGet, "/api/v1/callbacks/test", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("test endpoint = %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	handler.HandleTestPayload(rec, httptest.NewRequest(http.MethodPost, "/api/v1/callbacks/test-payload", bytes.NewBufferString(`{"ref":"abc"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("test-payload status = %d", rec.Code)
	}
	var resp struct {
		Status       string `json:"status"`
		TestCallback struct {
			Data struct {
				Stage        string            `json:"stage"`
				CustomFields map[string]string `json:"custom_fields"`
			} `json:"data"`
		} `json:"test_callback"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "processed" || resp.TestCallback.Data.Stage != "finish" || resp.TestCallback.Data.CustomFields["ref"] != "abc" {
		t.Errorf("test-payload response = %+v", resp)
	}

	rec = httptest.NewRecorder()
	handler.HandleTestPayload(rec, httptest.NewRequest(http.MethodPost, "/api/v1/callbacks/test-payload", bytes.NewBufferString(`not json`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid test-payload status = %d, want 400", rec.Code)
	}
}

func TestCallbackHandler_SetupInstructions(t *testing.T) {
	handler := NewCallbackHandler(&MockCallbackProcessor{}, &MockJobSubmitter{}, 0)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/callbacks/setup-instructions", nil)
	req.Host = "bank.example.com"
	req.Header.Set("X-Forwarded-Proto", "https")
	rec := httptest.NewRecorder()
	handler.HandleSetupInstructions(rec, req)

	var resp setupInstructions
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Endpoints) != len(CallbackRoutes) {
		t.Fatalf("endpoints = %d, want %d", len(resp.Endpoints), len(CallbackRoutes))
	}
	if resp.Endpoints[0].URL != "https://bank.example.com/api/v1/callbacks/ais/success" {
		t.Errorf("first url = %q", resp.Endpoints[0].URL)
	}
	if resp.TestURL != "https://bank.example.com/api/v1/callbacks/test" {
		t.Errorf("test url = %q", resp.TestURL)
	}
}
