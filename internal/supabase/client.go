package supabase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client is the Supabase REST client. It is safe for concurrent use.
type Client struct {
	baseURL    string
	anonKey    string
	serviceKey string
	httpClient *http.Client

	auth     *AuthClient
	database *DatabaseClient
	storage  *StorageClient
}

// New creates a client from cfg.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("project URL is required")
	}
	if cfg.AnonKey == "" {
		return nil, fmt.Errorf("anon key is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	c := &Client{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		anonKey:    cfg.AnonKey,
		serviceKey: cfg.ServiceKey,
		httpClient: httpClient,
	}
	c.auth = &AuthClient{client: c}
	c.database = &DatabaseClient{client: c}
	c.storage = &StorageClient{client: c}
	return c, nil
}

// Auth returns the auth client.
func (c *Client) Auth() *AuthClient { return c.auth }

// Database returns the database client.
func (c *Client) Database() *DatabaseClient { return c.database }

// Storage returns the storage client.
func (c *Client) Storage() *StorageClient { return c.storage }

// response is a raw API response.
type response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// request performs a request authorized with the anon key, or with token
// when one is supplied (RLS applies to the token's identity).
func (c *Client) request(ctx context.Context, method, urlStr string, body []byte, headers map[string]string, token string) (*response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, urlStr, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("apikey", c.anonKey)
	if token == "" {
		token = c.anonKey
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return &response{StatusCode: resp.StatusCode, Body: data, Headers: resp.Header}, nil
}

// requestWithServiceKey performs a request with the service role key.
func (c *Client) requestWithServiceKey(ctx context.Context, method, urlStr string, body []byte, headers map[string]string) (*response, error) {
	if c.serviceKey == "" {
		return nil, fmt.Errorf("service key not configured")
	}
	return c.request(ctx, method, urlStr, body, headers, c.serviceKey)
}
