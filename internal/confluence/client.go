// Package confluence is a minimal client for the Confluence content REST
// API: fetch a page's storage-format body and push an updated body back
// with an incremented version number. Authentication is Basic auth with an
// Atlassian username and API token.
package confluence

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

	"go.uber.org/zap"
)

// Sentinel errors for the Confluence responses callers branch on.
var (
	// ErrNotFound means the page ID does not exist or is not visible to
	// the authenticated user.
	ErrNotFound = errors.New("page not found")

	// ErrUnauthorized means the credentials were rejected.
	ErrUnauthorized = errors.New("authentication failed")

	// ErrConflict means the page was edited between our GET and PUT, so
	// the version number we sent is stale.
	ErrConflict = errors.New("page version conflict")
)

// maxResponseBytes caps how much of a response body we read.
const maxResponseBytes = 4 << 20

// Page is a Confluence page with the fields the updater needs.
type Page struct {
	ID      string
	Title   string
	Version int
	Body    string // raw storage-format markup
}

// PageUpdate is the payload for a page content update. Version must be the
// fetched version plus one or Confluence rejects the write.
type PageUpdate struct {
	ID        string
	Title     string
	Version   int
	Body      string
	MinorEdit bool
}

// ClientConfig configures a Client.
type ClientConfig struct {
	BaseURL  string
	Username string
	APIToken string
	Timeout  time.Duration
	Logger   *zap.Logger
}

// DefaultClientConfig returns sensible defaults for the given endpoint.
func DefaultClientConfig(baseURL, username, apiToken string) ClientConfig {
	return ClientConfig{
		BaseURL:  baseURL,
		Username: username,
		APIToken: apiToken,
		Timeout:  30 * time.Second,
	}
}

// Client talks to one Confluence site.
type Client struct {
	baseURL    string
	username   string
	apiToken   string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a Client with default settings.
func NewClient(baseURL, username, apiToken string) *Client {
	return NewClientWithConfig(DefaultClientConfig(baseURL, username, apiToken))
}

// NewClientWithConfig creates a Client with custom settings.
func NewClientWithConfig(config ClientConfig) *Client {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:  strings.TrimRight(config.BaseURL, "/"),
		username: config.Username,
		apiToken: config.APIToken,
		logger:   logger,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Wire types for the content API. Shape follows the v1 REST responses.
type contentPayload struct {
	ID      string         `json:"id"`
	Type    string         `json:"type"`
	Title   string         `json:"title"`
	Version versionPayload `json:"version"`
	Body    bodyWrapper    `json:"body"`
}

type versionPayload struct {
	Number    int  `json:"number"`
	MinorEdit bool `json:"minorEdit,omitempty"`
}

type bodyWrapper struct {
	Storage storagePayload `json:"storage"`
}

type storagePayload struct {
	Value          string `json:"value"`
	Representation string `json:"representation"`
}

// GetPage fetches a page's title, version number, and storage-format body.
func (c *Client) GetPage(ctx context.Context, pageID string) (*Page, error) {
	if pageID == "" {
		return nil, fmt.Errorf("page ID is required")
	}

	reqURL := fmt.Sprintf("%s/rest/api/content/%s?expand=%s",
		c.baseURL, url.PathEscape(pageID), url.QueryEscape("body.storage,version"))

	c.logger.Debug("Fetching page content", zap.String("page_id", pageID))

	body, err := c.do(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	var payload contentPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode page response: %w", err)
	}

	page := &Page{
		ID:      payload.ID,
		Title:   payload.Title,
		Version: payload.Version.Number,
		Body:    payload.Body.Storage.Value,
	}

	c.logger.Debug("Page fetched",
		zap.String("page_id", page.ID),
		zap.Int("version", page.Version),
		zap.Int("body_len", len(page.Body)))

	return page, nil
}

// UpdatePage submits new page content. The remote service enforces that
// upd.Version is exactly one past the stored version.
func (c *Client) UpdatePage(ctx context.Context, upd PageUpdate) error {
	if upd.ID == "" {
		return fmt.Errorf("page ID is required")
	}

	payload := contentPayload{
		ID:    upd.ID,
		Type:  "page",
		Title: upd.Title,
		Version: versionPayload{
			Number:    upd.Version,
			MinorEdit: upd.MinorEdit,
		},
		Body: bodyWrapper{
			Storage: storagePayload{
				Value:          upd.Body,
				Representation: "storage",
			},
		},
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal update: %w", err)
	}

	reqURL := fmt.Sprintf("%s/rest/api/content/%s", c.baseURL, url.PathEscape(upd.ID))

	c.logger.Debug("Updating page content",
		zap.String("page_id", upd.ID),
		zap.Int("version", upd.Version))

	if _, err := c.do(ctx, http.MethodPut, reqURL, data); err != nil {
		return err
	}

	return nil
}

// do runs one authenticated request and returns the response body. The
// client timeout is applied as a context deadline when the caller's
// context has none.
func (c *Client) do(ctx context.Context, method, reqURL string, body []byte) ([]byte, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.SetBasicAuth(c.username, c.apiToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if err := statusError(resp.StatusCode, respBody); err != nil {
		c.logger.Debug("Confluence request rejected",
			zap.String("method", method),
			zap.Int("status", resp.StatusCode))
		return nil, err
	}

	return respBody, nil
}

// statusError maps HTTP status codes to the sentinel errors.
func statusError(status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}

	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("HTTP %d: %w", status, ErrUnauthorized)
	case http.StatusNotFound:
		return fmt.Errorf("HTTP %d: %w", status, ErrNotFound)
	case http.StatusConflict:
		return fmt.Errorf("HTTP %d: %w", status, ErrConflict)
	}

	snippet := strings.TrimSpace(string(body))
	if len(snippet) > 200 {
		snippet = snippet[:200]
	}
	return fmt.Errorf("HTTP %d: %s", status, snippet)
}
