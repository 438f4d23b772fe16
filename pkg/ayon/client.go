// Package ayon provides a small REST client for the AYON server endpoints
// used by the test fixtures.
package ayon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zitadel/logging"
)

const (
	// APIKeyHeader carries the API key on every request
	APIKeyHeader = "x-api-key"
	// DefaultTimeout is the default HTTP timeout
	DefaultTimeout = 30 * time.Second
)

// Client talks to one AYON server with one API key
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
	customHTTP bool
	timeout    time.Duration
}

// Option configures the Client
type Option func(*Client)

// WithHTTPClient replaces the HTTP client. hc itself is never modified.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
			c.customHTTP = true
		}
	}
}

// WithTimeout sets the HTTP client timeout. With WithHTTPClient the
// timeout applies to a copy of that client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a client for serverURL authenticated with apiKey
func NewClient(serverURL, apiKey string, opts ...Option) (*Client, error) {
	if serverURL == "" {
		return nil, fmt.Errorf("AYON server URL is required")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("AYON API key is required")
	}
	if _, err := url.ParseRequestURI(serverURL); err != nil {
		return nil, fmt.Errorf("invalid AYON server URL '%s': %w", serverURL, err)
	}

	c := &Client{
		baseURL: strings.TrimRight(serverURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 {
		hc := *c.httpClient
		hc.Timeout = c.timeout
		c.httpClient = &hc
	}
	c.logger = c.logger.With("component", "ayon-client", "server", c.baseURL)

	if !c.customHTTP {
		logging.EnableHTTPClient(c.httpClient, logging.WithClientGroup("ayon-client"))
	}

	return c, nil
}

// BaseURL returns the server URL without a trailing slash
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Info returns the server information from /api/info
func (c *Client) Info(ctx context.Context) (*Info, error) {
	var info Info
	if err := c.doJSON(ctx, http.MethodGet, "/api/info", nil, http.StatusOK, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Connect verifies the server is reachable and reports a version
func (c *Client) Connect(ctx context.Context) (*Info, error) {
	info, err := c.Info(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to AYON server: %w", err)
	}
	if info.Version == "" {
		return nil, fmt.Errorf("AYON server at %s did not report a version", c.baseURL)
	}
	c.logger.Debug("connected", "version", info.Version)
	return info, nil
}

// Close releases idle connections
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// CreateProject creates a project
func (c *Client) CreateProject(ctx context.Context, req ProjectRequest) error {
	return c.doJSON(ctx, http.MethodPost, "/api/projects", req, http.StatusCreated, nil)
}

// DeleteProject deletes a project and everything in it
func (c *Client) DeleteProject(ctx context.Context, project string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/projects/"+url.PathEscape(project), nil, http.StatusNoContent, nil)
}

// UpsertLinkType creates or updates a link type in a project
func (c *Client) UpsertLinkType(ctx context.Context, project, linkType string, data map[string]any) error {
	path := fmt.Sprintf("/api/projects/%s/links/types/%s", url.PathEscape(project), url.PathEscape(linkType))
	return c.doJSON(ctx, http.MethodPut, path, map[string]any{"data": data}, http.StatusNoContent, nil)
}

// CreateFolder creates a folder and returns its id
func (c *Client) CreateFolder(ctx context.Context, project string, req FolderRequest) (string, error) {
	return c.createEntity(ctx, project, "folders", req, http.StatusCreated)
}

// CreateTask creates a task and returns its id
func (c *Client) CreateTask(ctx context.Context, project string, req TaskRequest) (string, error) {
	return c.createEntity(ctx, project, "tasks", req, http.StatusCreated)
}

// CreateProduct creates a product and returns its id
func (c *Client) CreateProduct(ctx context.Context, project string, req ProductRequest) (string, error) {
	return c.createEntity(ctx, project, "products", req, http.StatusCreated)
}

// CreateVersion creates a version and returns its id
func (c *Client) CreateVersion(ctx context.Context, project string, req VersionRequest) (string, error) {
	return c.createEntity(ctx, project, "versions", req, http.StatusCreated)
}

// CreateRepresentation creates a representation and returns its id
func (c *Client) CreateRepresentation(ctx context.Context, project string, rep Representation) (string, error) {
	return c.createEntity(ctx, project, "representations", rep, http.StatusCreated)
}

// CreateLink links two entities and returns the link id
func (c *Client) CreateLink(ctx context.Context, project string, req LinkRequest) (string, error) {
	return c.createEntity(ctx, project, "links", req, http.StatusOK)
}

func (c *Client) createEntity(ctx context.Context, project, kind string, body any, want int) (string, error) {
	var created struct {
		ID string `json:"id"`
	}
	path := fmt.Sprintf("/api/projects/%s/%s", url.PathEscape(project), kind)
	if err := c.doJSON(ctx, http.MethodPost, path, body, want, &created); err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", fmt.Errorf("AYON server did not return an id for the new %s", strings.TrimSuffix(kind, "s"))
	}
	return created.ID, nil
}

// InstallAddon uploads an addon zip and returns the id of the install event
func (c *Client) InstallAddon(ctx context.Context, name, version, zipPath string) (string, error) {
	f, err := os.Open(zipPath)
	if err != nil {
		return "", fmt.Errorf("failed to open addon package: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("addonName", name); err != nil {
		return "", err
	}
	if err := w.WriteField("addonVersion", version); err != nil {
		return "", err
	}
	part, err := w.CreateFormFile("upload_file", filepath.Base(zipPath))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("failed to read addon package: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	var resp struct {
		EventID string `json:"eventId"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/addons/install", &buf, w.FormDataContentType(), http.StatusOK, &resp); err != nil {
		return "", err
	}
	if resp.EventID == "" {
		return "", fmt.Errorf("AYON server did not return an install event id")
	}
	return resp.EventID, nil
}

// InstalledAddons lists the addon install records
func (c *Client) InstalledAddons(ctx context.Context) ([]InstalledAddon, error) {
	var resp struct {
		Items []InstalledAddon `json:"items"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/addons/install", nil, http.StatusOK, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// Event returns a server event
func (c *Client) Event(ctx context.Context, id string) (*Event, error) {
	var ev Event
	if err := c.doJSON(ctx, http.MethodGet, "/api/events/"+url.PathEscape(id), nil, http.StatusOK, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// Restart asks the server to restart itself
func (c *Client) Restart(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, "/api/system/restart", nil, http.StatusNoContent, nil)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, want int, out any) error {
	var reader io.Reader
	contentType := ""
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
		contentType = "application/json"
	}
	return c.do(ctx, method, path, reader, contentType, want, out)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, want int, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set(APIKeyHeader, c.apiKey)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != want {
		return &APIError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: string(data)}
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode response of %s %s: %w", method, path, err)
		}
	}
	return nil
}
