// Package graph is a small client for the Microsoft Graph REST API.
package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const DefaultEndpoint = "https://graph.microsoft.com/v1.0"

// AuthProvider supplies the bearer token for each request.
type AuthProvider func(ctx context.Context) (string, error)

type Client struct {
	endpoint   string
	auth       AuthProvider
	httpClient *http.Client
}

// NewClient creates a client for endpoint. A nil httpClient uses one with a 30 second timeout.
func NewClient(endpoint string, auth AuthProvider, httpClient *http.Client) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		endpoint:   strings.TrimSuffix(endpoint, "/"),
		auth:       auth,
		httpClient: httpClient,
	}
}

// Request is a call to one Graph resource.
type Request struct {
	client *Client
	path   string
}

// API starts a request for the resource at path, e.g. "/me".
func (c *Client) API(path string) *Request {
	return &Request{client: c, path: "/" + strings.TrimPrefix(path, "/")}
}

// Get fetches the resource and decodes it into target.
// Non-2xx responses are returned as *Error.
func (r *Request) Get(ctx context.Context, target any) error {
	token, err := r.client.auth(ctx)
	if err != nil {
		return fmt.Errorf("[graph.Request.Get] auth provider: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.client.endpoint+r.path, nil)
	if err != nil {
		return fmt.Errorf("[graph.Request.Get] create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.authorized(token).Do(req)
	if err != nil {
		return fmt.Errorf("[graph.Request.Get] GET %s: %w", r.path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseError(resp)
	}

	if target != nil {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return fmt.Errorf("[graph.Request.Get] decode %s: %w", r.path, err)
		}
	}
	return nil
}

// authorized returns an HTTP client that attaches token as a bearer credential.
func (c *Client) authorized(token string) *http.Client {
	return &http.Client{
		Timeout: c.httpClient.Timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
			Base:   c.httpClient.Transport,
		},
	}
}

func parseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	graphErr := &Error{
		StatusCode: resp.StatusCode,
		RequestID:  resp.Header.Get("request-id"),
	}

	var envelope struct {
		Error struct {
			Code       string `json:"code"`
			Message    string `json:"message"`
			InnerError struct {
				RequestID string `json:"request-id"`
			} `json:"innerError"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Code != "" {
		graphErr.Code = envelope.Error.Code
		graphErr.Message = envelope.Error.Message
		if graphErr.RequestID == "" {
			graphErr.RequestID = envelope.Error.InnerError.RequestID
		}
		return graphErr
	}

	graphErr.Code = http.StatusText(resp.StatusCode)
	graphErr.Message = strings.TrimSpace(string(body))
	return graphErr
}
