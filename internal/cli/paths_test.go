package cli

import (
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestCacheDir(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	tests := []struct {
		name     string
		env      string
		xdg      string
		expected string
	}{
		{"default", "", "", filepath.Join(home, ".cache", appName)},
		{"xdg", "", "/tmp/custom-cache", filepath.Join("/tmp/custom-cache", appName)},
		{"explicit env wins", "/srv/ww", "/tmp/custom-cache", "/srv/ww"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(envCacheDir, tt.env)
			t.Setenv("XDG_CACHE_HOME", tt.xdg)

			dir, err := cacheDir()
			if err != nil {
				t.Fatalf("cacheDir() error: %v", err)
			}
			if dir != tt.expected {
				t.Errorf("cacheDir() = %q, want %q", dir, tt.expected)
			}
		})
	}
}

func TestCacheDirFlag(t *testing.T) {
	t.Setenv(envCacheDir, "/srv/ww")
	c := New(io.Discard, LogInfo)
	c.global.cacheDir = "/opt/ww"

	meta, err := c.metadataDir()
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join("/opt/ww", "metadata"); meta != want {
		t.Errorf("metadataDir() = %q, want %q", meta, want)
	}
	hist, err := c.historyDir()
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join("/opt/ww", "history"); hist != want {
		t.Errorf("historyDir() = %q, want %q", hist, want)
	}
}

func TestIndexURL(t *testing.T) {
	tests := []struct {
		name    string
		flag    string
		env     string
		wantErr bool
	}{
		{"default", "", "", false},
		{"env", "", "https://mirror.example/pypi", false},
		{"flag", "http://localhost:3141/root/pypi", "", false},
		{"bad scheme", "ftp://mirror.example", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(envIndexURL, tt.env)
			c := New(io.Discard, LogInfo)
			c.global.indexURL = tt.flag
			_, err := c.index()
			if (err != nil) != tt.wantErr {
				t.Errorf("index() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
