package integrations

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	wwerrors "github.com/matzehuels/wheelwright/pkg/errors"
	"github.com/matzehuels/wheelwright/pkg/httputil"
)

func TestNewClient(t *testing.T) {
	headers := map[string]string{"User-Agent": "wheelwright/test"}
	client := NewClient(nil, headers)

	if client.http != SharedHTTPClient() {
		t.Error("NewClient(nil) should use the shared HTTP client")
	}
	if client.headers["User-Agent"] != "wheelwright/test" {
		t.Error("NewClient() headers not set correctly")
	}

	custom := &http.Client{}
	if NewClient(custom, nil).http != custom {
		t.Error("NewClient() should keep an explicit http client")
	}
}

func TestClientGet(t *testing.T) {
	type response struct {
		Message string `json:"message"`
	}

	var gotUA, gotAccept string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		json.NewEncoder(w).Encode(response{Message: "hello"})
	}))
	defer server.Close()

	client := NewClient(server.Client(), map[string]string{"User-Agent": "default", "Accept": "text/plain"})

	var resp response
	err := client.GetWithHeaders(context.Background(), server.URL, map[string]string{"Accept": "application/json"}, &resp)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if resp.Message != "hello" {
		t.Errorf("Get() message = %q, want %q", resp.Message, "hello")
	}
	if gotUA != "default" || gotAccept != "application/json" {
		t.Errorf("headers = %q/%q, request headers should override defaults", gotUA, gotAccept)
	}
}

func TestClientStatusClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		retryable bool
		target    error
	}{
		{"not found", http.StatusNotFound, false, ErrNotFound},
		{"server error", http.StatusBadGateway, true, ErrNetwork},
		{"rate limited", http.StatusTooManyRequests, true, ErrNetwork},
		{"forbidden", http.StatusForbidden, false, ErrNetwork},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.status == http.StatusTooManyRequests {
					w.Header().Set("Retry-After", "7")
				}
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			var v any
			err := NewClient(server.Client(), nil).Get(context.Background(), server.URL, &v)
			if !errors.Is(err, tt.target) {
				t.Errorf("err = %v, want %v", err, tt.target)
			}
			if httputil.IsRetryable(err) != tt.retryable {
				t.Errorf("IsRetryable = %v, want %v", httputil.IsRetryable(err), tt.retryable)
			}
			if tt.status == http.StatusTooManyRequests {
				var rl *wwerrors.RateLimitedError
				if !errors.As(err, &rl) || rl.RetryAfter != 7 {
					t.Errorf("expected RateLimitedError with RetryAfter 7, got %v", err)
				}
			}
		})
	}
}

func TestClientTimeoutIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	var v any
	err := NewClient(server.Client(), nil).Get(ctx, server.URL, &v)
	if !errors.Is(err, ErrTimeout) || !httputil.IsRetryable(err) {
		t.Errorf("err = %v, want retryable ErrTimeout", err)
	}
}

func TestClientNetworkErrorIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	var v any
	err := NewClient(nil, nil).Get(context.Background(), url, &v)
	if !errors.Is(err, ErrNetwork) || !httputil.IsRetryable(err) {
		t.Errorf("err = %v, want retryable ErrNetwork", err)
	}
}
