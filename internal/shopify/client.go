package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/config"
	"github.com/arben-grepi/ecomm-storefront-generator-sub004/pkg/errors"
)

// API selects one of the two platform GraphQL endpoints
type API string

const (
	// AdminAPI is the management API (strongly consistent writes, inventory)
	AdminAPI API = "admin"
	// StorefrontAPI is the read/storefront API; it lags the Admin API while indexing
	StorefrontAPI API = "storefront"
)

// RequestObserver receives the timing of every platform call
type RequestObserver interface {
	ObserveShopifyRequest(api, operation string, elapsed time.Duration, err error)
}

type Client struct {
	baseURL         string
	accessToken     string
	storefrontToken string
	apiVersion      string
	httpClient      *http.Client
	limiter         *rate.Limiter
	observer        RequestObserver
	logger          *zap.Logger
}

// Option customizes a Client
type Option func(*Client)

// WithBaseURL points the client at another origin (tests, proxies)
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(baseURL, "/") }
}

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithObserver registers a request observer (metrics)
func WithObserver(o RequestObserver) Option {
	return func(c *Client) { c.observer = o }
}

// NewClient creates a new Shopify GraphQL client for both the Admin and Storefront APIs
func NewClient(cfg config.ShopifyConfig, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	// Normalize shop domain - remove https://, http://, and trailing slashes
	shopDomain := cfg.ShopDomain
	shopDomain = strings.TrimPrefix(shopDomain, "https://")
	shopDomain = strings.TrimPrefix(shopDomain, "http://")
	shopDomain = strings.TrimSuffix(shopDomain, "/")

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	c := &Client{
		baseURL:         "https://" + shopDomain,
		accessToken:     cfg.AccessToken,
		storefrontToken: cfg.StorefrontToken,
		apiVersion:      cfg.APIVersion,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GraphQLRequest represents a GraphQL request
type GraphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

// GraphQLResponse represents a GraphQL response
type GraphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []GraphQLError  `json:"errors,omitempty"`
}

// GraphQLError represents a GraphQL error
type GraphQLError struct {
	Message    string                 `json:"message"`
	Path       []interface{}          `json:"path,omitempty"`
	Extensions map[string]interface{} `json:"extensions,omitempty"`
}

func (e GraphQLError) code() string {
	if e.Extensions == nil {
		return ""
	}
	code, _ := e.Extensions["code"].(string)
	return code
}

// UserError is a mutation-level error returned in a payload's userErrors list
type UserError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
	Code    string   `json:"code"`
}

// UserErrors is returned when a mutation answers with userErrors
type UserErrors struct {
	Operation string
	Errors    []UserError
}

func (e *UserErrors) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, ue := range e.Errors {
		msgs[i] = ue.Message
	}
	return fmt.Sprintf("shopify %s user errors: %s", e.Operation, strings.Join(msgs, "; "))
}

func (c *Client) endpoint(api API) string {
	if api == StorefrontAPI {
		return fmt.Sprintf("%s/api/%s/graphql.json", c.baseURL, c.apiVersion)
	}
	return fmt.Sprintf("%s/admin/api/%s/graphql.json", c.baseURL, c.apiVersion)
}

// Execute executes a GraphQL query/mutation against one API. Network failures, throttling
// and 5xx responses are returned as *errors.ErrUpstream.
func (c *Client) Execute(ctx context.Context, api API, operation, query string, variables map[string]interface{}) (resp *GraphQLResponse, err error) {
	start := time.Now()
	defer func() {
		if c.observer != nil {
			c.observer.ObserveShopifyRequest(string(api), operation, time.Since(start), err)
		}
	}()

	// Wait fails early when the next token lands past ctx's deadline; that is our own
	// throttle, not the platform declining
	if err := c.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &errors.ErrUpstream{Service: "shopify " + string(api), Err: fmt.Errorf("rate limiter: %w", err)}
	}

	reqBody := GraphQLRequest{
		Query:     query,
		Variables: variables,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(api), bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if api == StorefrontAPI {
		req.Header.Set("X-Shopify-Storefront-Access-Token", c.storefrontToken)
	} else {
		req.Header.Set("X-Shopify-Access-Token", c.accessToken)
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &errors.ErrUpstream{Service: "shopify " + string(api), Err: err}
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &errors.ErrUpstream{Service: "shopify " + string(api), Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if httpResp.StatusCode == http.StatusTooManyRequests || httpResp.StatusCode >= 500 {
		return nil, &errors.ErrUpstream{
			Service: "shopify " + string(api),
			Err:     fmt.Errorf("status %d: %s", httpResp.StatusCode, truncate(body)),
		}
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("shopify %s API error: status %d, body: %s", api, httpResp.StatusCode, truncate(body))
	}

	var graphQLResp GraphQLResponse
	if err := json.Unmarshal(body, &graphQLResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w, body: %s", err, truncate(body))
	}

	if len(graphQLResp.Errors) > 0 {
		errorMessages := make([]string, len(graphQLResp.Errors))
		throttled := false
		for i, gqlErr := range graphQLResp.Errors {
			errorMessages[i] = gqlErr.Message
			if gqlErr.code() == "THROTTLED" {
				throttled = true
			}
		}
		gqlErr := fmt.Errorf("graphQL errors: %s", strings.Join(errorMessages, "; "))
		if throttled {
			return nil, &errors.ErrUpstream{Service: "shopify " + string(api), Err: gqlErr}
		}
		return nil, gqlErr
	}

	return &graphQLResp, nil
}

func truncate(body []byte) string {
	const max = 512
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
