package banksync

import (
	"testing"
	"time"

	"bankmirror/internal/infrastructure/saltedge"

	"github.com/shopspring/decimal"
)

func TestConnectionParams(t *testing.T) {
	conn := &saltedge.Connection{
		ID:            "conn_1",
		ProviderCode:  "fake_client_xf",
		Status:        "Active",
		LastConsentID: "cons_old",
		Consent: &saltedge.Consent{
			ID:        "cons_1",
			CreatedAt: "2024-01-01T12:00:00+02:00",
			ExpiresAt: "2024-04-01T10:00:00Z",
		},
		NextRefreshPossibleAt: "2024-01-02T00:00:00",
	}

	params, err := connectionParams(7, conn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if params.CustomerID != 7 || params.Status != "active" || params.ConsentID != "cons_1" {
		t.Errorf("unexpected params: %+v", params)
	}
	if params.ConsentGivenAt == nil || !params.ConsentGivenAt.Equal(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("expected offset timestamp normalized to UTC, got %v", params.ConsentGivenAt)
	}
	if params.ConsentGivenAt.Location() != time.UTC {
		t.Errorf("expected UTC location, got %v", params.ConsentGivenAt.Location())
	}
	if params.NextRefreshPossibleAt == nil || !params.NextRefreshPossibleAt.Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("expected naive timestamp read as UTC, got %v", params.NextRefreshPossibleAt)
	}
	if params.LastSuccessAt != nil {
		t.Errorf("expected empty last_success_at to stay nil, got %v", params.LastSuccessAt)
	}
}

func TestConnectionParams_DefaultsStatus(t *testing.T) {
	params, err := connectionParams(1, &saltedge.Connection{ID: "c", ProviderCode: "p"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if params.Status != "active" {
		t.Errorf("expected active, got %q", params.Status)
	}
}

func TestAccountParams_UsesExtraIdentifiers(t *testing.T) {
	acc := &saltedge.Account{
		ID:           "acc_1",
		Name:         "Current",
		Nature:       "Checking",
		Balance:      decimal.RequireFromString("12.34"),
		CurrencyCode: "gbp",
		Extra:        []byte(`{"iban":"GB29NWBK60161331926819","sort_code":"60-16-13"}`),
	}

	params, err := accountParams(3, acc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if params.IBAN != "GB29NWBK60161331926819" || params.SortCode != "60-16-13" {
		t.Errorf("expected identifiers from extra, got %+v", params)
	}
	if params.Nature != "checking" || params.CurrencyCode != "GBP" {
		t.Errorf("expected normalized nature and currency, got %q %q", params.Nature, params.CurrencyCode)
	}
}

func TestTransactionParams(t *testing.T) {
	tests := []struct {
		name    string
		tx      saltedge.Transaction
		want    time.Time
		wantErr bool
	}{
		{
			name: "calendar date",
			tx:   saltedge.Transaction{ID: "t1", MadeOn: "2024-02-29", CurrencyCode: "EUR"},
			want: time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "utc timestamp",
			tx:   saltedge.Transaction{ID: "t2", MadeOn: "2024-02-29T23:59:59Z", CurrencyCode: "EUR"},
			want: time.Date(2024, 2, 29, 23, 59, 59, 0, time.UTC),
		},
		{
			name:    "invalid status",
			tx:      saltedge.Transaction{ID: "t3", MadeOn: "2024-02-29", CurrencyCode: "EUR", Status: "settled"},
			wantErr: true,
		},
		{
			name:    "missing date",
			tx:      saltedge.Transaction{ID: "t4", CurrencyCode: "EUR"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params, err := transactionParams(5, &tt.tx)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %+v", params)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !params.MadeOn.Equal(tt.want) {
				t.Errorf("expected %v, got %v", tt.want, params.MadeOn)
			}
			if params.AccountID != 5 {
				t.Errorf("expected account id 5, got %d", params.AccountID)
			}
		})
	}
}
