package statusprobe

import "time"

// Settings is the slice of deployment configuration that readiness looks at.
type Settings struct {
	CredentialsSet       bool
	CallbackVerification bool
	APIKeyRequired       bool
	HTTPSRequired        bool
}

// Check names
const (
	CheckCredentials          = "credentials_set"
	CheckDatabase             = "database_reachable"
	CheckCallbackVerification = "callback_verification_enabled"
	CheckAPIKey               = "api_key_required"
	CheckHTTPS                = "https_required"
)

// ReadinessCheck is one pass/fail line of a readiness report.
type ReadinessCheck struct {
	Name     string `json:"name"`
	Passed   bool   `json:"passed"`
	Required bool   `json:"required"`
	Detail   string `json:"detail,omitempty"`
}

// Readiness says whether this deployment can take live traffic.
type Readiness struct {
	ReadyForLive bool             `json:"ready_for_live"`
	Checks       []ReadinessCheck `json:"checks"`
	Missing      []string         `json:"missing_requirements"`
	Advice       []string         `json:"recommendations_for_live"`
	CheckedAt    time.Time        `json:"checked_at"`
}

// AssessReadiness builds a report from local settings and the result of a
// database ping. It makes no aggregator calls. Only required checks gate
// ReadyForLive; the rest end up as advice.
func AssessReadiness(s Settings, dbErr error, now time.Time) *Readiness {
	checks := []ReadinessCheck{
		{Name: CheckCredentials, Passed: s.CredentialsSet, Required: true},
		{Name: CheckDatabase, Passed: dbErr == nil, Required: true},
		{Name: CheckCallbackVerification, Passed: s.CallbackVerification, Required: true},
		{Name: CheckAPIKey, Passed: s.APIKeyRequired},
		{Name: CheckHTTPS, Passed: s.HTTPSRequired},
	}
	if dbErr != nil {
		checks[1].Detail = dbErr.Error()
	}

	r := &Readiness{
		ReadyForLive: true,
		Checks:       checks,
		Missing:      []string{},
		Advice:       []string{},
		CheckedAt:    now.UTC(),
	}
	for _, c := range checks {
		switch {
		case c.Passed:
		case c.Required:
			r.ReadyForLive = false
			r.Missing = append(r.Missing, c.Name)
		default:
			r.Advice = append(r.Advice, advice[c.Name])
		}
	}
	return r
}

var advice = map[string]string{
	CheckAPIKey: "Set ADMIN_API_KEY_HASH so the read and sync API needs a key",
	CheckHTTPS:  "Set SERVER_REQUIRE_HTTPS when the service sits behind a TLS proxy",
}

// NextSteps lists what to do next for an estimated account tier.
func NextSteps(tier string) []string {
	switch tier {
	case TierInvalidCredentials:
		return []string{
			"Verify the credentials in the aggregator dashboard",
			"Check SALTEDGE_APP_ID, SALTEDGE_SECRET and SALTEDGE_BASE_URL",
			"Contact aggregator support if the credentials are correct",
		}
	case TierPending:
		return []string{
			"Complete the company profile in the aggregator dashboard",
			"Ask the aggregator to move the account to test status",
			"Exercise the catalog endpoints with the current credentials",
		}
	case TierTest:
		return []string{
			"List sandbox banks with GET /api/v1/status/test-providers",
			"Create a customer and connect it to a fake provider",
			"Point the aggregator callbacks at /api/v1/callbacks and check signatures verify",
			"Prepare a test account for the aggregator review",
			"Request live access when the flow works end to end",
		}
	case TierLive:
		return []string{
			"Watch usage against the aggregator rate limits",
			"Keep callbacks enabled for near real time updates",
			"Alert on failed scheduled syncs",
		}
	}
	return []string{"Contact aggregator support for assistance"}
}
