package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

const (
	defaultBaseURL              = "https://api.mercadopago.com"
	defaultTimeout              = 10 * time.Second
	responseBodyReadLimit int64 = 1024
)

var errAccessTokenRequired = errors.New("gateway access token is required")

// Client talks to the payment gateway REST API.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	accessToken string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the gateway API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithTimeout sets the HTTP timeout on the default client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 && c.httpClient != nil {
			c.httpClient.Timeout = timeout
		}
	}
}

// NewClient builds a gateway client authenticated with the seller access token.
func NewClient(accessToken string, opts ...Option) (*Client, error) {
	token := strings.TrimSpace(accessToken)
	if token == "" {
		return nil, errAccessTokenRequired
	}

	client := &Client{
		accessToken: token,
		baseURL:     defaultBaseURL,
		httpClient:  &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// GetPayment fetches the authoritative state of a payment.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "gateway client not configured")
	}
	id := strings.TrimSpace(paymentID)
	if id == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}

	var out apiPayment
	if err := c.do(ctx, http.MethodGet, "v1/payments/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	payment := out.normalize()
	return &payment, nil
}

// SearchPayments lists payments tagged with the provided external reference, newest first.
func (c *Client) SearchPayments(ctx context.Context, externalReference string) ([]Payment, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "gateway client not configured")
	}
	ref := strings.TrimSpace(externalReference)
	if ref == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "external reference is required")
	}

	q := url.Values{}
	q.Set("external_reference", ref)
	q.Set("sort", "date_created")
	q.Set("criteria", "desc")

	var out struct {
		Results []apiPayment `json:"results"`
	}
	if err := c.do(ctx, http.MethodGet, "v1/payments/search?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}

	payments := make([]Payment, 0, len(out.Results))
	for _, p := range out.Results {
		payments = append(payments, p.normalize())
	}
	return payments, nil
}

// CreatePreference opens a hosted checkout session for an order.
func (c *Client) CreatePreference(ctx context.Context, req PreferenceRequest) (*Preference, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "gateway client not configured")
	}
	if len(req.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "preference requires at least one item")
	}
	if strings.TrimSpace(req.ExternalReference) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "external reference is required")
	}

	var out Preference
	if err := c.do(ctx, http.MethodPost, "checkout/preferences", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal gateway request")
		}
		reader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.buildURL(path), reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build gateway request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.accessToken)
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeGateway, err, "execute gateway request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return pkgerrors.New(pkgerrors.CodeNotFound, "gateway resource not found")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return pkgerrors.Wrap(pkgerrors.CodeGateway, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "gateway request failed")
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeGateway, err, "decode gateway response")
	}
	return nil
}

func (c *Client) buildURL(path string) string {
	return fmt.Sprintf("%s/%s", strings.TrimRight(c.baseURL, "/"), strings.TrimLeft(path, "/"))
}
