// Package chroma talks to a Chroma server (1.x) over its v2 REST API.
// Embeddings are always computed client-side: the server does not embed
// documents or query texts sent over REST.
package chroma

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

	"github.com/flowbaker/triage/pkg/vectorstore"
	"github.com/rs/zerolog/log"
)

const (
	DefaultBaseURL  = "http://localhost:8000"
	DefaultTimeout  = 30 * time.Second
	DefaultTenant   = "default_tenant"
	DefaultDatabase = "default_database"

	apiPrefix = "/api/v2"
)

type ClientConfig struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Embedder   vectorstore.Embedder
	Tenant     string
	Database   string
}

type ClientOption func(*ClientConfig)

func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:  DefaultBaseURL,
		Timeout:  DefaultTimeout,
		Tenant:   DefaultTenant,
		Database: DefaultDatabase,
	}
}

func WithBaseURL(baseURL string) ClientOption {
	return func(c *ClientConfig) {
		c.BaseURL = strings.TrimRight(baseURL, "/")
	}
}

func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *ClientConfig) {
		c.Timeout = timeout
	}
}

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *ClientConfig) {
		c.HTTPClient = httpClient
	}
}

func WithEmbedder(embedder vectorstore.Embedder) ClientOption {
	return func(c *ClientConfig) {
		c.Embedder = embedder
	}
}

// WithTenant scopes collections to a tenant and database. Empty values keep
// the server defaults.
func WithTenant(tenant, database string) ClientOption {
	return func(c *ClientConfig) {
		if tenant != "" {
			c.Tenant = tenant
		}
		if database != "" {
			c.Database = database
		}
	}
}

type Client struct {
	config     *ClientConfig
	httpClient *http.Client
}

func NewClient(options ...ClientOption) *Client {
	config := DefaultConfig()

	for _, option := range options {
		option(config)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: config.Timeout,
		}
	}

	return &Client{
		config:     config,
		httpClient: httpClient,
	}
}

// Error is returned for non-2xx responses.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("chroma: status %d: %s", e.StatusCode, e.Message)
}

// Heartbeat checks that the server is reachable.
func (c *Client) Heartbeat(ctx context.Context) error {
	resp, err := c.doRequest(ctx, http.MethodGet, apiPrefix+"/heartbeat", nil)
	if err != nil {
		return fmt.Errorf("failed to reach chroma: %w", err)
	}

	var result struct {
		Heartbeat int64 `json:"nanosecond heartbeat"`
	}

	return c.handleResponse(resp, &result)
}

type collectionResponse struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Metadata map[string]any `json:"metadata"`
}

// Collection resolves an existing collection by name.
func (c *Client) Collection(ctx context.Context, name string) (*Collection, error) {
	if name == "" {
		return nil, fmt.Errorf("collection name is required")
	}

	resp, err := c.doRequest(ctx, http.MethodGet, c.collectionsPath()+"/"+url.PathEscape(name), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get collection %s: %w", name, err)
	}

	var result collectionResponse
	if err := c.handleResponse(resp, &result); err != nil {
		var apiErr *Error
		if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusNotFound || apiErr.StatusCode == http.StatusBadRequest) {
			return nil, fmt.Errorf("%w: %s", vectorstore.ErrCollectionNotFound, name)
		}

		return nil, fmt.Errorf("failed to process collection response: %w", err)
	}

	log.Debug().Str("collection", result.Name).Str("id", result.ID).Msg("Resolved chroma collection")

	return &Collection{
		client: c,
		id:     result.ID,
		name:   result.Name,
	}, nil
}

func (c *Client) collectionsPath() string {
	return fmt.Sprintf("%s/tenants/%s/databases/%s/collections",
		apiPrefix, url.PathEscape(c.config.Tenant), url.PathEscape(c.config.Database))
}

func (c *Client) embed(ctx context.Context, texts []string) ([][]float32, error) {
	if c.config.Embedder == nil {
		return nil, vectorstore.ErrEmbedderRequired
	}

	embeddings, err := c.config.Embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed texts: %w", err)
	}

	return embeddings, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var requestBody io.Reader

	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		requestBody = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) handleResponse(resp *http.Response, result any) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errorResponse struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}

		message := strings.TrimSpace(string(body))
		if json.Unmarshal(body, &errorResponse) == nil {
			if errorResponse.Message != "" {
				message = errorResponse.Message
			} else if errorResponse.Error != "" {
				message = errorResponse.Error
			}
		}

		return &Error{StatusCode: resp.StatusCode, Message: message}
	}

	if result == nil || len(body) == 0 {
		return nil
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return nil
}
