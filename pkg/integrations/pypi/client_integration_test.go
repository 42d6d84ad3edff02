//go:build integration

package pypi

import (
	"context"
	"testing"
	"time"

	"github.com/matzehuels/wheelwright/pkg/fetch"
)

func TestFetch_Integration(t *testing.T) {
	client := NewClient(DefaultBaseURL, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tests := []struct {
		name    string
		req     fetch.Request
		wantErr bool
	}{
		{"requests listing", fetch.Request{Name: "requests"}, false},
		{"flask release", fetch.Request{Name: "flask", Version: "3.0.0"}, false},
		{"nonexistent", fetch.Request{Name: "this-package-should-not-exist-12345"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			releases, err := client.Fetch(ctx, tt.req)
			if (err != nil) != tt.wantErr {
				t.Errorf("Fetch(%s) error = %v, wantErr %v", tt.req, err, tt.wantErr)
				return
			}
			if !tt.wantErr && len(releases) == 0 {
				t.Error("expected at least one release")
			}
		})
	}
}

func TestFetchReleaseDeps_Integration(t *testing.T) {
	client := NewClient(DefaultBaseURL, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	r, err := client.FetchRelease(ctx, "requests", "2.31.0")
	if err != nil {
		t.Fatalf("FetchRelease(requests==2.31.0) error: %v", err)
	}
	if len(r.Dependencies) == 0 {
		t.Error("requests should have dependencies")
	}
	if r.Digest == "" {
		t.Error("expected a sha256 digest")
	}
}
