package callback

import (
	"context"
	"errors"
	"testing"
	"time"

	"bankmirror/internal/domain/banksync"
	"bankmirror/internal/domain/connection"
	"bankmirror/internal/domain/customer"
	"bankmirror/internal/domain/notification"

	"github.com/rs/zerolog"
)

type MockSyncRunner struct {
	SyncCustomerFunc func(ctx context.Context, identifier string) (*banksync.Result, error)
	calls            []string
}

func (m *MockSyncRunner) SyncCustomer(ctx context.Context, identifier string) (*banksync.Result, error) {
	m.calls = append(m.calls, identifier)
	if m.SyncCustomerFunc != nil {
		return m.SyncCustomerFunc(ctx, identifier)
	}
	return &banksync.Result{}, nil
}

type MockCustomers struct {
	GetByRemoteIDFunc func(ctx context.Context, remoteID string) (*customer.Customer, error)
}

func (m *MockCustomers) GetByRemoteID(ctx context.Context, remoteID string) (*customer.Customer, error) {
	if m.GetByRemoteIDFunc != nil {
		return m.GetByRemoteIDFunc(ctx, remoteID)
	}
	return nil, customer.ErrNotFound
}

type statusUpdate struct {
	remoteID      string
	status        string
	lastSuccessAt *time.Time
}

type MockConnections struct {
	GetByRemoteIDFunc func(ctx context.Context, remoteID string) (*connection.Connection, error)
	UpdateStatusFunc  func(ctx context.Context, remoteID, status string, lastSuccessAt *time.Time) error
	DeleteFunc        func(ctx context.Context, id int64) error

	updates []statusUpdate
	deleted []int64
}

func (m *MockConnections) GetByRemoteID(ctx context.Context, remoteID string) (*connection.Connection, error) {
	if m.GetByRemoteIDFunc != nil {
		return m.GetByRemoteIDFunc(ctx, remoteID)
	}
	return nil, connection.ErrNotFound
}

func (m *MockConnections) UpdateStatus(ctx context.Context, remoteID, status string, lastSuccessAt *time.Time) error {
	m.updates = append(m.updates, statusUpdate{remoteID, status, lastSuccessAt})
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, remoteID, status, lastSuccessAt)
	}
	return nil
}

func (m *MockConnections) Delete(ctx context.Context, id int64) error {
	m.deleted = append(m.deleted, id)
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

type MockAlerter struct {
	alerts []notification.Alert
	err    error
}

func (m *MockAlerter) Alert(ctx context.Context, a notification.Alert) error {
	m.alerts = append(m.alerts, a)
	return m.err
}

var fixedNow = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	sync        *MockSyncRunner
	customers   *MockCustomers
	connections *MockConnections
	alerts      *MockAlerter
}

func newFixture() *fixture {
	return &fixture{
		sync: &MockSyncRunner{},
		customers: &MockCustomers{
			GetByRemoteIDFunc: func(ctx context.Context, remoteID string) (*customer.Customer, error) {
				if remoteID == "cust_1" {
					return &customer.Customer{ID: 1, Identifier: "alice", RemoteID: "cust_1"}, nil
				}
				return nil, customer.ErrNotFound
			},
		},
		connections: &MockConnections{},
		alerts:      &MockAlerter{},
	}
}

func (f *fixture) processor(secret string, opts ...Option) *Processor {
	v := newTestVerifier(secret, time.Unix(1700000000, 0))
	opts = append([]Option{WithAlerter(f.alerts)}, opts...)
	p := NewProcessor(v, f.sync, f.customers, f.connections, zerolog.Nop(), opts...)
	p.now = func() time.Time { return fixedNow }
	return p
}

func process(t *testing.T, p *Processor, category Category, body string) error {
	t.Helper()
	cb, err := p.Accept(context.Background(), Inbound{Category: category, Path: "/callbacks/" + string(category), Body: []byte(body)})
	if err != nil {
		t.Fatalf("Accept() error = %v", err)
	}
	return p.Process(context.Background(), cb)
}

func TestAccept_VerifiesBeforeParsing(t *testing.T) {
	f := newFixture()
	p := f.processor(testSecret)

	_, err := p.Accept(context.Background(), Inbound{
		Category:  CategorySuccess,
		Path:      testPath,
		Signature: testSignature,
		ExpiresAt: testExpiresAt,
		Body:      []byte("{broken"),
	})
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("Accept() error = %v, want ErrInvalidSignature", err)
	}

	cb, err := p.Accept(context.Background(), Inbound{
		Category:  CategorySuccess,
		Path:      testPath,
		Signature: testSignature,
		ExpiresAt: testExpiresAt,
		Body:      []byte(testBody),
	})
	if err != nil {
		t.Fatalf("Accept() error = %v", err)
	}
	if cb.Payload.ConnectionID != "c1" || cb.Payload.CustomerID != "cu1" {
		t.Errorf("payload = %+v", cb.Payload)
	}
	if cb.ID == "" {
		t.Error("expected callback id")
	}
	if !cb.ReceivedAt.Equal(fixedNow) {
		t.Errorf("ReceivedAt = %v, want %v", cb.ReceivedAt, fixedNow)
	}
	if len(f.sync.calls) != 0 || len(f.connections.updates) != 0 {
		t.Error("Accept must not mutate anything")
	}
}

func TestAccept_Rejections(t *testing.T) {
	f := newFixture()
	p := f.processor("")

	tests := []struct {
		name     string
		category Category
		body     string
		wantErr  error
	}{
		{"malformed json", CategorySuccess, `{"data":`, ErrMalformedPayload},
		{"data not an object", CategoryFailure, `{"data":"nope"}`, ErrMalformedPayload},
		{"unknown category", Category("bogus"), `{"data":{}}`, ErrUnknownCategory},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Accept(context.Background(), Inbound{Category: tt.category, Path: "/x", Body: []byte(tt.body)})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Accept() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestProcess_Success(t *testing.T) {
	f := newFixture()
	p := f.processor("")

	err := process(t, p, CategorySuccess, `{"data":{"connection_id":"conn_1","customer_id":"cust_1"}}`)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(f.sync.calls) != 1 || f.sync.calls[0] != "alice" {
		t.Fatalf("sync calls = %v, want [alice]", f.sync.calls)
	}
	if len(f.connections.updates) != 1 {
		t.Fatalf("updates = %d, want 1", len(f.connections.updates))
	}
	u := f.connections.updates[0]
	if u.remoteID != "conn_1" || u.status != connection.StatusActive {
		t.Errorf("update = %+v", u)
	}
	if u.lastSuccessAt == nil || !u.lastSuccessAt.Equal(fixedNow) {
		t.Errorf("lastSuccessAt = %v, want %v", u.lastSuccessAt, fixedNow)
	}
}

func TestProcess_SuccessUnknownCustomer(t *testing.T) {
	f := newFixture()
	p := f.processor("")

	err := process(t, p, CategorySuccess, `{"data":{"connection_id":"conn_1","customer_id":"cust_404"}}`)
	if err != nil {
		t.Fatalf("Process() error = %v, want nil", err)
	}
	if len(f.sync.calls) != 0 || len(f.connections.updates) != 0 {
		t.Error("unknown customer must not trigger any mutation")
	}
}

func TestProcess_SuccessMissingIDs(t *testing.T) {
	f := newFixture()
	p := f.processor("")

	for _, body := range []string{
		`{"data":{"connection_id":"conn_1"}}`,
		`{"data":{"customer_id":"cust_1"}}`,
		`{}`,
	} {
		if err := process(t, p, CategorySuccess, body); err != nil {
			t.Errorf("Process(%s) error = %v", body, err)
		}
	}
	if len(f.sync.calls) != 0 {
		t.Errorf("sync calls = %v, want none", f.sync.calls)
	}
}

func TestProcess_SuccessSyncFailure(t *testing.T) {
	f := newFixture()
	syncErr := errors.New("commit failed")
	f.sync.SyncCustomerFunc = func(ctx context.Context, identifier string) (*banksync.Result, error) {
		return nil, syncErr
	}
	p := f.processor("")

	err := process(t, p, CategorySuccess, `{"data":{"connection_id":"conn_1","customer_id":"cust_1"}}`)
	if !errors.Is(err, syncErr) {
		t.Fatalf("Process() error = %v, want %v", err, syncErr)
	}
	if len(f.connections.updates) != 0 {
		t.Error("status must not change when the sync fails")
	}
	if len(f.alerts.alerts) != 1 || f.alerts.alerts[0].Kind != notification.KindSyncFailed {
		t.Errorf("alerts = %+v", f.alerts.alerts)
	}
}

func TestProcess_SuccessConnectionMissingAfterSync(t *testing.T) {
	f := newFixture()
	f.connections.UpdateStatusFunc = func(ctx context.Context, remoteID, status string, lastSuccessAt *time.Time) error {
		return connection.ErrNotFound
	}
	p := f.processor("")

	if err := process(t, p, CategorySuccess, `{"data":{"connection_id":"conn_9","customer_id":"cust_1"}}`); err != nil {
		t.Fatalf("Process() error = %v, want nil", err)
	}
}

func TestProcess_Failure(t *testing.T) {
	f := newFixture()
	p := f.processor("")

	err := process(t, p, CategoryFailure, `{"data":{"connection_id":"conn_1","error_class":"InvalidCredentials","error_message":"bad password"}}`)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(f.sync.calls) != 0 {
		t.Error("failure must not trigger a sync")
	}
	if len(f.connections.updates) != 1 || f.connections.updates[0].status != connection.StatusError {
		t.Fatalf("updates = %+v", f.connections.updates)
	}
	if f.connections.updates[0].lastSuccessAt != nil {
		t.Error("failure must not stamp last_success_at")
	}
	if len(f.alerts.alerts) != 1 {
		t.Fatalf("alerts = %d, want 1", len(f.alerts.alerts))
	}
	if got := f.alerts.alerts[0].Data["error_class"]; got != "InvalidCredentials" {
		t.Errorf("alert error_class = %q", got)
	}
}

func TestProcess_FailureDefaults(t *testing.T) {
	f := newFixture()
	f.alerts.err = errors.New("push down")
	p := f.processor("")

	if err := process(t, p, CategoryFailure, `{"data":{"connection_id":"conn_1"}}`); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	a := f.alerts.alerts[0]
	if a.Data["error_class"] != "unknown" {
		t.Errorf("error_class = %q, want unknown", a.Data["error_class"])
	}
	if a.Body != "Connection conn_1: unknown Unknown error" {
		t.Errorf("body = %q", a.Body)
	}
}

func TestProcess_Notify(t *testing.T) {
	f := newFixture()
	p := f.processor("")

	if err := process(t, p, CategoryNotify, `{"data":{"connection_id":"conn_1","type":"provider_change"}}`); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(f.connections.updates) != 0 || len(f.sync.calls) != 0 || len(f.alerts.alerts) != 0 {
		t.Error("notify must only log")
	}
}

func TestProcess_Destroy(t *testing.T) {
	tests := []struct {
		name        string
		policy      DestroyPolicy
		wantStatus  string
		wantDeleted []int64
	}{
		{name: "soft by default", wantStatus: connection.StatusRemoved},
		{name: "hard deletes", policy: DestroyHard, wantDeleted: []int64{7}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.connections.GetByRemoteIDFunc = func(ctx context.Context, remoteID string) (*connection.Connection, error) {
				return &connection.Connection{ID: 7, RemoteID: remoteID}, nil
			}
			var opts []Option
			if tt.policy != "" {
				opts = append(opts, WithDestroyPolicy(tt.policy))
			}
			p := f.processor("", opts...)

			if err := process(t, p, CategoryDestroy, `{"data":{"connection_id":"conn_1","customer_id":"cust_1"}}`); err != nil {
				t.Fatalf("Process() error = %v", err)
			}

			if tt.wantStatus != "" {
				if len(f.connections.updates) != 1 || f.connections.updates[0].status != tt.wantStatus {
					t.Errorf("updates = %+v, want status %s", f.connections.updates, tt.wantStatus)
				}
			} else if len(f.connections.updates) != 0 {
				t.Errorf("updates = %+v, want none", f.connections.updates)
			}
			if len(f.connections.deleted) != len(tt.wantDeleted) {
				t.Fatalf("deleted = %v, want %v", f.connections.deleted, tt.wantDeleted)
			}
			for i := range tt.wantDeleted {
				if f.connections.deleted[i] != tt.wantDeleted[i] {
					t.Errorf("deleted = %v, want %v", f.connections.deleted, tt.wantDeleted)
				}
			}
		})
	}
}

func TestProcess_DestroyUnknownConnection(t *testing.T) {
	f := newFixture()
	f.connections.UpdateStatusFunc = func(ctx context.Context, remoteID, status string, lastSuccessAt *time.Time) error {
		return connection.ErrNotFound
	}
	p := f.processor("")

	if err := process(t, p, CategoryDestroy, `{"data":{"connection_id":"gone"}}`); err != nil {
		t.Fatalf("Process() error = %v, want nil", err)
	}

	hard := newFixture()
	ph := hard.processor("", WithDestroyPolicy(DestroyHard))
	if err := process(t, ph, CategoryDestroy, `{"data":{"connection_id":"gone"}}`); err != nil {
		t.Fatalf("Process() hard error = %v, want nil", err)
	}
	if len(hard.connections.deleted) != 0 {
		t.Error("nothing should be deleted for an unknown connection")
	}
}

func TestProcess_StoreErrorsPropagate(t *testing.T) {
	f := newFixture()
	dbErr := errors.New("connection reset")
	f.connections.UpdateStatusFunc = func(ctx context.Context, remoteID, status string, lastSuccessAt *time.Time) error {
		return dbErr
	}
	p := f.processor("")

	for _, c := range []Category{CategorySuccess, CategoryFailure, CategoryDestroy} {
		err := process(t, p, c, `{"data":{"connection_id":"conn_1","customer_id":"cust_1"}}`)
		if !errors.Is(err, dbErr) {
			t.Errorf("%s: Process() error = %v, want %v", c, err, dbErr)
		}
	}
}

func TestProcess_ProviderChanges(t *testing.T) {
	f := newFixture()
	p := f.processor("")

	if err := process(t, p, CategoryProviderChanges, `{"data":{"provider_code":"fakebank_simple_xf","change_type":"fields"}}`); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(f.connections.updates) != 0 {
		t.Error("provider changes must not mutate connections")
	}
	if len(f.alerts.alerts) != 1 || f.alerts.alerts[0].Kind != notification.KindProviderChanges {
		t.Fatalf("alerts = %+v", f.alerts.alerts)
	}
	if f.alerts.alerts[0].Data["provider_code"] != "fakebank_simple_xf" {
		t.Errorf("alert data = %v", f.alerts.alerts[0].Data)
	}
}

func TestProcess_PaymentCallbacksOnlyLog(t *testing.T) {
	f := newFixture()
	p := f.processor("")

	for _, c := range []Category{CategoryPaymentSuccess, CategoryPaymentFailure, CategoryPaymentNotify} {
		if err := process(t, p, c, `{"data":{"payment_id":"pay_1","customer_id":"cust_1","status":"done"}}`); err != nil {
			t.Errorf("%s: Process() error = %v", c, err)
		}
	}
	if len(f.sync.calls) != 0 || len(f.connections.updates) != 0 || len(f.alerts.alerts) != 0 {
		t.Error("payment callbacks must not have side effects")
	}
}

func TestProcess_LegacyRouting(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantSync   bool
		wantStatus string
	}{
		{"finish routes to success", `{"data":{"stage":"finish","connection_id":"conn_1","customer_id":"cust_1"}}`, true, connection.StatusActive},
		{"error stage routes to failure", `{"data":{"stage":"error","connection_id":"conn_1"}}`, false, connection.StatusError},
		{"error key routes to failure", `{"data":{"stage":"fetching","error":"boom","connection_id":"conn_1"}}`, false, connection.StatusError},
		{"notify stage only logs", `{"data":{"stage":"notify","connection_id":"conn_1"}}`, false, ""},
		{"unknown stage dropped", `{"data":{"stage":"interactive","connection_id":"conn_1"}}`, false, ""},
		{"no stage dropped", `{"data":{}}`, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			p := f.processor("")

			if err := process(t, p, CategoryLegacy, tt.body); err != nil {
				t.Fatalf("Process() error = %v", err)
			}
			if got := len(f.sync.calls) == 1; got != tt.wantSync {
				t.Errorf("synced = %v, want %v", got, tt.wantSync)
			}
			if tt.wantStatus == "" {
				if len(f.connections.updates) != 0 {
					t.Errorf("updates = %+v, want none", f.connections.updates)
				}
				return
			}
			if len(f.connections.updates) != 1 || f.connections.updates[0].status != tt.wantStatus {
				t.Errorf("updates = %+v, want status %s", f.connections.updates, tt.wantStatus)
			}
		})
	}
}

func TestAckStatus(t *testing.T) {
	tests := map[Category]string{
		CategorySuccess:         "success_received",
		CategoryFailure:         "failure_received",
		CategoryNotify:          "notify_received",
		CategoryDestroy:         "destroy_received",
		CategoryProviderChanges: "provider_changes_received",
		CategoryPaymentSuccess:  "payment_success_received",
		CategoryPaymentFailure:  "payment_failure_received",
		CategoryPaymentNotify:   "payment_notify_received",
		CategoryLegacy:          "legacy_callback_received",
	}
	for c, want := range tests {
		if got := c.AckStatus(); got != want {
			t.Errorf("%s.AckStatus() = %q, want %q", c, got, want)
		}
	}

	ack := NewAck(CategorySuccess, fixedNow.In(time.FixedZone("X", 3600)))
	if ack.Timestamp.Location() != time.UTC {
		t.Error("ack timestamp should be UTC")
	}
}
