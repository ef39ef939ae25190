// Package statusprobe estimates what the aggregator account is allowed to do.
package statusprobe

import (
	"context"
	"slices"
	"time"

	"bankmirror/internal/infrastructure/saltedge"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Tiers
const (
	TierInvalidCredentials = "invalid_credentials"
	TierPending            = "pending"
	TierTest               = "test"
	TierLive               = "live"
	TierUnknown            = "unknown"
)

// Remote is the subset of the aggregator client the probe calls.
type Remote interface {
	ListCountries(ctx context.Context) ([]saltedge.Country, error)
	ListProviders(ctx context.Context, query saltedge.ProviderQuery) (*saltedge.Page[saltedge.Provider], error)
	CreateCustomer(ctx context.Context, params saltedge.CreateCustomerParams) (*saltedge.Customer, error)
	RemoveCustomer(ctx context.Context, customerID string) (*saltedge.RemovedCustomer, error)
}

// Report is the outcome of one probe run.
type Report struct {
	APIAccessible          bool      `json:"api_accessible"`
	CanListProviders       bool      `json:"can_list_providers"`
	CanCreateCustomers     bool      `json:"can_create_customers"`
	CanAccessRealProviders bool      `json:"can_access_real_providers"`
	FakeProvidersAvailable bool      `json:"fake_providers_available"`
	CountriesCount         int       `json:"countries_count"`
	ProvidersCount         int       `json:"providers_count"`
	FakeProvidersCount     int       `json:"fake_providers_count"`
	RealProvidersCount     int       `json:"real_providers_count"`
	APIError               string    `json:"api_error,omitempty"`
	ProviderError          string    `json:"provider_error,omitempty"`
	CustomerError          string    `json:"customer_error,omitempty"`
	EstimatedStatus        string    `json:"estimated_status"`
	Recommendations        []string  `json:"recommendations"`
	CheckedAt              time.Time `json:"checked_at"`
}

// TestProviders lists the sandbox providers available to the account.
type TestProviders struct {
	Providers   []saltedge.Provider `json:"fake_providers"`
	Count       int                 `json:"count"`
	Recommended []saltedge.Provider `json:"recommended_for_testing"`
}

var recommendedTestProviders = []string{"fake_client_xf", "faux_banque_xf", "fake_oauth_client_xf"}

// Probe runs low-risk calls against the aggregator and classifies the
// account. A failing sub-probe lowers the estimate rather than aborting.
type Probe struct {
	remote Remote
	logger zerolog.Logger
	now    func() time.Time
}

func NewProbe(remote Remote, logger zerolog.Logger) *Probe {
	return &Probe{
		remote: remote,
		logger: logger.With().Str("component", "statusprobe").Logger(),
		now:    time.Now,
	}
}

// Check runs every sub-probe. When the account cannot even list countries
// the remaining probes are skipped.
func (p *Probe) Check(ctx context.Context) *Report {
	r := &Report{CheckedAt: p.now().UTC()}

	countries, err := p.remote.ListCountries(ctx)
	if err != nil {
		p.logger.Warn().Err(err).Msg("Country probe failed")
		r.APIError = err.Error()
		r.EstimatedStatus = estimate(r)
		r.Recommendations = recommendations(r.EstimatedStatus)
		return r
	}
	r.APIAccessible = true
	r.CountriesCount = len(countries)

	if page, err := p.remote.ListProviders(ctx, saltedge.ProviderQuery{}); err != nil {
		p.logger.Warn().Err(err).Msg("Provider probe failed")
		r.ProviderError = err.Error()
	} else {
		r.CanListProviders = true
		r.ProvidersCount = len(page.Data)
		for i := range page.Data {
			if page.Data[i].IsFake() {
				r.FakeProvidersCount++
			} else {
				r.RealProvidersCount++
			}
		}
		r.FakeProvidersAvailable = r.FakeProvidersCount > 0
		r.CanAccessRealProviders = r.RealProvidersCount > 0
	}

	created, err := p.remote.CreateCustomer(ctx, saltedge.CreateCustomerParams{
		Identifier: "status_probe_" + uuid.NewString(),
		Email:      "status-probe@example.com",
	})
	if err != nil {
		p.logger.Warn().Err(err).Msg("Customer probe failed")
		r.CustomerError = err.Error()
	} else {
		r.CanCreateCustomers = true
		if _, err := p.remote.RemoveCustomer(ctx, created.ID); err != nil {
			p.logger.Debug().Err(err).Str("customer", created.ID).Msg("Could not remove probe customer")
		}
	}

	r.EstimatedStatus = estimate(r)
	r.Recommendations = recommendations(r.EstimatedStatus)
	p.logger.Info().Str("tier", r.EstimatedStatus).Msg("Status probe finished")
	return r
}

// TestProviders returns the sandbox providers on the first provider page.
func (p *Probe) TestProviders(ctx context.Context) (*TestProviders, error) {
	page, err := p.remote.ListProviders(ctx, saltedge.ProviderQuery{})
	if err != nil {
		return nil, err
	}

	out := &TestProviders{Providers: []saltedge.Provider{}, Recommended: []saltedge.Provider{}}
	for _, prov := range page.Data {
		if !prov.IsFake() {
			continue
		}
		out.Providers = append(out.Providers, prov)
		if slices.Contains(recommendedTestProviders, prov.Code) {
			out.Recommended = append(out.Recommended, prov)
		}
	}
	out.Count = len(out.Providers)
	return out, nil
}

func estimate(r *Report) string {
	switch {
	case !r.APIAccessible:
		return TierInvalidCredentials
	case !r.CanCreateCustomers:
		return TierPending
	case r.FakeProvidersAvailable && !r.CanAccessRealProviders:
		return TierTest
	case r.CanAccessRealProviders:
		return TierLive
	}
	return TierUnknown
}

func recommendations(tier string) []string {
	switch tier {
	case TierInvalidCredentials:
		return []string{
			"Check SALTEDGE_APP_ID and SALTEDGE_SECRET",
			"Verify the credentials in the aggregator dashboard",
		}
	case TierPending:
		return []string{
			"Complete the company profile in the aggregator dashboard",
			"Ask the aggregator to move the account to test status",
			"Review the go-live checklist",
		}
	case TierTest:
		return []string{
			"Use fake providers to exercise the full connect and sync flow",
			"Configure callback URLs and confirm signatures verify",
			"Request live access once the integration is tested",
		}
	case TierLive:
		return []string{
			"Keep request signing and callback verification enabled",
			"Monitor usage against rate limits",
			"Subscribe to the aggregator status page",
		}
	}
	return []string{}
}
