package banksync

import (
	"fmt"
	"strings"

	"bankmirror/internal/domain/account"
	"bankmirror/internal/domain/connection"
	"bankmirror/internal/domain/transaction"
	"bankmirror/internal/infrastructure/saltedge"
)

func connectionParams(customerID int64, c *saltedge.Connection) (connection.UpsertParams, error) {
	params := connection.UpsertParams{
		RemoteID:                c.ID,
		CustomerID:              customerID,
		ProviderCode:            c.ProviderCode,
		ProviderName:            c.ProviderName,
		CountryCode:             c.CountryCode,
		Status:                  strings.ToLower(c.Status),
		Categorization:          c.Categorization,
		ShowConsentConfirmation: c.ShowConsentConfirmation,
		ConsentID:               c.ConsentID(),
		CustomFields:            c.CustomFields,
	}

	var err error
	if params.ConsentGivenAt, err = c.GetConsentGivenAt(); err != nil {
		return params, fmt.Errorf("consent created_at: %w", err)
	}
	if params.ConsentExpiresAt, err = c.GetConsentExpiresAt(); err != nil {
		return params, fmt.Errorf("consent expires_at: %w", err)
	}
	if params.LastSuccessAt, err = c.GetLastSuccessAt(); err != nil {
		return params, fmt.Errorf("last_success_at: %w", err)
	}
	if params.NextRefreshPossibleAt, err = c.GetNextRefreshPossibleAt(); err != nil {
		return params, fmt.Errorf("next_refresh_possible_at: %w", err)
	}
	if params.Status == "" {
		params.Status = connection.StatusActive
	}

	return params, params.Validate()
}

func accountParams(connectionID int64, a *saltedge.Account) (account.UpsertParams, error) {
	ids := a.Identifiers()
	params := account.UpsertParams{
		RemoteID:      a.ID,
		ConnectionID:  connectionID,
		Name:          a.Name,
		Nature:        strings.ToLower(a.Nature),
		Balance:       a.Balance,
		CurrencyCode:  strings.ToUpper(a.CurrencyCode),
		IBAN:          ids.IBAN,
		SWIFT:         ids.SWIFT,
		SortCode:      ids.SortCode,
		AccountNumber: ids.AccountNumber,
		Extra:         a.Extra,
	}
	return params, params.Validate()
}

func transactionParams(accountID int64, t *saltedge.Transaction) (transaction.UpsertParams, error) {
	madeOn, err := t.GetMadeOn()
	if err != nil {
		return transaction.UpsertParams{}, err
	}
	params := transaction.UpsertParams{
		RemoteID:     t.ID,
		AccountID:    accountID,
		Mode:         t.Mode,
		Status:       strings.ToLower(t.Status),
		MadeOn:       madeOn,
		Amount:       t.Amount,
		CurrencyCode: strings.ToUpper(t.CurrencyCode),
		Description:  t.Description,
		Category:     t.Category,
		CategoryCode: t.GetCategoryCode(),
		Duplicated:   t.Duplicated,
		Extra:        t.Extra,
	}
	return params, params.Validate()
}
