// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewBackend(t *testing.T) {
	t.Run("valid URL", func(t *testing.T) {
		if _, err := NewBackend(BackendConfig{URL: "https://chat.example/api/"}); err != nil {
			t.Fatalf("NewBackend failed: %v", err)
		}
	})
	t.Run("empty URL", func(t *testing.T) {
		if _, err := NewBackend(BackendConfig{}); err == nil {
			t.Fatal("expected error for empty URL")
		}
	})
	t.Run("not http", func(t *testing.T) {
		if _, err := NewBackend(BackendConfig{URL: "xmpp://chat.example"}); err == nil {
			t.Fatal("expected error for non-http URL")
		}
	})
}

func TestBackendStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if request.URL.Path != "/api/status" {
			t.Errorf("unexpected path: %s", request.URL.Path)
		}
		writer.Header().Set("Content-Type", "application/json")
		writer.Write([]byte(`{"version":"4.2.0","time":1772366400000}`))
	}))
	defer server.Close()

	backend, err := NewBackend(BackendConfig{URL: server.URL + "/api/"})
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	status, err := backend.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Version != "4.2.0" || status.Time != 1772366400000 {
		t.Errorf("status = %+v", status)
	}
}

func TestBackendErrors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantMessage string
		wantCode    string
	}{
		{"json error", http.StatusServiceUnavailable, `{"code":"maintenance","message":"back soon"}`, "back soon", "maintenance"},
		{"plain error", http.StatusBadGateway, "upstream down\n", "upstream down", ""},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
				writer.WriteHeader(test.status)
				writer.Write([]byte(test.body))
			}))
			defer server.Close()

			backend, err := NewBackend(BackendConfig{URL: server.URL})
			if err != nil {
				t.Fatalf("NewBackend: %v", err)
			}
			_, err = backend.Status(context.Background())
			if !IsBackendError(err, test.status) {
				t.Fatalf("error = %v, want BackendError with status %d", err, test.status)
			}
			if IsBackendError(err, http.StatusOK) {
				t.Error("IsBackendError matched the wrong status")
			}
			var backendErr *BackendError
			if !errors.As(err, &backendErr) {
				t.Fatal("errors.As failed")
			}
			if backendErr.Message != test.wantMessage || backendErr.Code != test.wantCode {
				t.Errorf("error = %+v", backendErr)
			}
		})
	}
}
