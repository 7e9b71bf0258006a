// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// maxResponseSize caps how much of a backend response is read.
const maxResponseSize = 4 << 20

// BackendConfig holds configuration for creating a Backend.
type BackendConfig struct {
	// URL is the base URL of the REST backend (e.g., "https://chat.example/api").
	URL string
	// HTTPClient is used for all requests. If nil, http.DefaultClient is used.
	HTTPClient *http.Client
	// Logger is used for structured logging. If nil, logs are discarded.
	Logger *slog.Logger
}

// Backend is a client for the chat service's REST API. The engine
// only uses it to probe reachability; the CRUD surface lives
// elsewhere.
type Backend struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewBackend creates a Backend client.
func NewBackend(config BackendConfig) (*Backend, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("session: backend URL is required")
	}
	// Request URLs are built by concatenation onto the trimmed string
	// form, so only structural validity is checked here.
	parsed, err := url.Parse(config.URL)
	if err != nil {
		return nil, fmt.Errorf("session: invalid backend URL %q: %w", config.URL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("session: backend URL %q must be http or https", config.URL)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Backend{
		baseURL:    strings.TrimRight(config.URL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// CloseIdleConnections closes pooled connections so the next request
// after a network change dials fresh.
func (b *Backend) CloseIdleConnections() {
	b.httpClient.CloseIdleConnections()
}

// StatusResponse is the body of the backend's status endpoint.
type StatusResponse struct {
	Version string `json:"version"`
	Time    int64  `json:"time,omitempty"`
}

// Status fetches the backend status. Any successful response means
// the backend is reachable.
func (b *Backend) Status(ctx context.Context) (*StatusResponse, error) {
	body, err := b.doRequest(ctx, http.MethodGet, "/status")
	if err != nil {
		return nil, fmt.Errorf("session: backend status failed: %w", err)
	}
	var response StatusResponse
	if len(body) > 0 {
		if err := json.Unmarshal(body, &response); err != nil {
			return nil, fmt.Errorf("session: failed to parse status response: %w", err)
		}
	}
	return &response, nil
}

// doRequest performs a request against the backend and returns the
// response body. Non-2xx responses become a *BackendError.
func (b *Backend) doRequest(ctx context.Context, method, path string) ([]byte, error) {
	request, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("session: failed to create request: %w", err)
	}
	request.Header.Set("Accept", "application/json")

	response, err := b.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("session: request to %s %s failed: %w", method, path, err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(io.LimitReader(response.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("session: failed to read response body: %w", err)
	}

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return body, nil
	}

	backendErr := &BackendError{StatusCode: response.StatusCode}
	if jsonErr := json.Unmarshal(body, backendErr); jsonErr != nil {
		backendErr.Message = strings.TrimSpace(string(body))
	}
	b.logger.Debug("backend request failed",
		"method", method,
		"path", path,
		"status", response.StatusCode,
		"code", backendErr.Code,
	)
	return nil, backendErr
}

// BackendError is a non-2xx response from the REST backend.
// Callers can use errors.As to inspect it.
type BackendError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
}

func (e *BackendError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("backend: %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("backend: %s (%d): %s", e.Code, e.StatusCode, e.Message)
}

// IsBackendError reports whether err is a *BackendError with the
// given HTTP status.
func IsBackendError(err error, statusCode int) bool {
	var backendErr *BackendError
	if errors.As(err, &backendErr) {
		return backendErr.StatusCode == statusCode
	}
	return false
}
