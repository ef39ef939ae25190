package saltedge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultBaseURL  = "https://www.saltedge.com/api/v6"
	defaultTimeout  = 30 * time.Second
	defaultMaxPages = 1000
	signatureWindow = 60 * time.Second
)

var apiTracer = otel.Tracer("bankmirror/saltedge")

type Config struct {
	BaseURL  string
	AppID    string
	Secret   string
	ClientID string
	Timeout  time.Duration
	MaxPages int
	// HTTPClient overrides the instrumented default client.
	HTTPClient *http.Client
}

// Client talks to the aggregator REST API. Every request is signed with a
// fresh Expires-at/Signature pair.
type Client struct {
	httpClient *http.Client
	baseURL    string
	appID      string
	secret     string
	clientID   string
	maxPages   int
	now        func() time.Time
}

var _ ClientInterface = (*Client)(nil)

func NewClient(cfg Config) (*Client, error) {
	if cfg.AppID == "" || cfg.Secret == "" {
		return nil, ErrMissingCredentials
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	maxPages := cfg.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		appID:      cfg.AppID,
		secret:     cfg.Secret,
		clientID:   cfg.ClientID,
		maxPages:   maxPages,
		now:        time.Now,
	}, nil
}

func (c *Client) CreateCustomer(ctx context.Context, params CreateCustomerParams) (*Customer, error) {
	var out envelope[Customer]
	if err := c.do(ctx, http.MethodPost, "/customers", nil, envelope[CreateCustomerParams]{Data: params}, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

func (c *Client) ListCustomers(ctx context.Context, fromID string) (*Page[Customer], error) {
	q := url.Values{}
	setIf(q, "from_id", fromID)
	var out Page[Customer]
	if err := c.do(ctx, http.MethodGet, "/customers", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetCustomer(ctx context.Context, customerID string) (*Customer, error) {
	var out envelope[Customer]
	if err := c.do(ctx, http.MethodGet, "/customers/"+url.PathEscape(customerID), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

func (c *Client) RemoveCustomer(ctx context.Context, customerID string) (*RemovedCustomer, error) {
	var out envelope[RemovedCustomer]
	if err := c.do(ctx, http.MethodDelete, "/customers/"+url.PathEscape(customerID), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

func (c *Client) ListConnections(ctx context.Context, customerID, fromID string) (*Page[Connection], error) {
	q := url.Values{}
	q.Set("customer_id", customerID)
	setIf(q, "from_id", fromID)
	var out Page[Connection]
	if err := c.do(ctx, http.MethodGet, "/connections", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetConnection(ctx context.Context, connectionID string) (*Connection, error) {
	var out envelope[Connection]
	if err := c.do(ctx, http.MethodGet, "/connections/"+url.PathEscape(connectionID), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

func (c *Client) CreateConnection(ctx context.Context, params CreateConnectionParams) (*CreatedConnection, error) {
	var out envelope[CreatedConnection]
	if err := c.do(ctx, http.MethodPost, "/connections", nil, envelope[CreateConnectionParams]{Data: params}, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

func (c *Client) RefreshConnection(ctx context.Context, connectionID string, params RefreshParams) (*Connection, error) {
	var payload any
	if !params.empty() {
		payload = envelope[RefreshParams]{Data: params}
	}
	var out envelope[Connection]
	path := "/connections/" + url.PathEscape(connectionID) + "/refresh"
	if err := c.do(ctx, http.MethodPut, path, nil, payload, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

func (c *Client) RemoveConnection(ctx context.Context, connectionID string) (*RemovedConnection, error) {
	var out envelope[RemovedConnection]
	if err := c.do(ctx, http.MethodDelete, "/connections/"+url.PathEscape(connectionID), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

func (c *Client) ListAccounts(ctx context.Context, connectionID, fromID string) (*Page[Account], error) {
	q := url.Values{}
	q.Set("connection_id", connectionID)
	setIf(q, "from_id", fromID)
	var out Page[Account]
	if err := c.do(ctx, http.MethodGet, "/accounts", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListTransactions(ctx context.Context, query TransactionQuery) (*Page[Transaction], error) {
	q := url.Values{}
	q.Set("connection_id", query.ConnectionID)
	setIf(q, "account_id", query.AccountID)
	setIf(q, "from_id", query.FromID)
	setIf(q, "from_date", query.FromDate)
	setIf(q, "to_date", query.ToDate)
	var out Page[Transaction]
	if err := c.do(ctx, http.MethodGet, "/transactions", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListCountries(ctx context.Context) ([]Country, error) {
	var out envelope[[]Country]
	if err := c.do(ctx, http.MethodGet, "/countries", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *Client) ListProviders(ctx context.Context, query ProviderQuery) (*Page[Provider], error) {
	q := url.Values{}
	setIf(q, "country_code", query.CountryCode)
	setIf(q, "mode", query.Mode)
	setIf(q, "from_id", query.FromID)
	var out Page[Provider]
	if err := c.do(ctx, http.MethodGet, "/providers", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetProvider(ctx context.Context, code string) (*Provider, error) {
	var out envelope[Provider]
	if err := c.do(ctx, http.MethodGet, "/providers/"+url.PathEscape(code), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

func (c *Client) ListCategories(ctx context.Context) (Categories, error) {
	var out envelope[Categories]
	if err := c.do(ctx, http.MethodGet, "/categories", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// do signs and sends one request, decoding a 2xx body into out.
func (c *Client) do(ctx context.Context, method, endpoint string, query url.Values, payload, out any) error {
	target := c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var body string
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode %s %s request: %w", method, endpoint, err)
		}
		body = string(raw)
	}

	ctx, span := apiTracer.Start(ctx, "saltedge."+method+" "+endpointName(endpoint),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("saltedge.endpoint", endpoint),
		),
	)
	defer span.End()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	expiresAt := strconv.FormatInt(c.now().Add(signatureWindow).Unix(), 10)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("App-id", c.appID)
	req.Header.Set("Secret", c.secret)
	req.Header.Set("Expires-at", expiresAt)
	req.Header.Set("Signature", Sign(c.secret, StringToSign(expiresAt, method, target, body)))
	if c.clientID != "" {
		req.Header.Set("Client-id", c.clientID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		apiErr := &APIError{Method: method, Path: endpoint, Err: err}
		recordSpanError(span, apiErr)
		return apiErr
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		apiErr := &APIError{Method: method, Path: endpoint, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response body: %w", err)}
		recordSpanError(span, apiErr)
		return apiErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := newAPIError(method, endpoint, resp.StatusCode, raw)
		recordSpanError(span, apiErr)
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, endpoint, err)
	}
	return nil
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// endpointName drops ids from a path so span names stay low-cardinality.
func endpointName(endpoint string) string {
	parts := strings.Split(strings.Trim(endpoint, "/"), "/")
	if len(parts) > 1 {
		parts[1] = "{id}"
	}
	return "/" + strings.Join(parts, "/")
}

func setIf(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}
