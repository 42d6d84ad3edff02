package integrations

import (
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/matzehuels/wheelwright/pkg/metadata"
	"github.com/matzehuels/wheelwright/pkg/pep508"
)

const httpTimeout = 10 * time.Second

var (
	// ErrNotFound is returned when a package or release doesn't exist on the index.
	ErrNotFound = metadata.ErrNotFound

	// ErrNetwork is returned for HTTP failures (connection errors, 5xx responses).
	ErrNetwork = errors.New("network error")

	// ErrTimeout is returned when a request exceeds its deadline.
	ErrTimeout = errors.New("request timed out")
)

var sharedHTTP = sync.OnceValue(func() *http.Client {
	return NewHTTPClient()
})

// SharedHTTPClient returns the process-wide HTTP client. Every index client
// built without an explicit http.Client uses it, so all requests share one
// connection pool.
func SharedHTTPClient() *http.Client {
	return sharedHTTP()
}

// NewHTTPClient creates an HTTP client with a standard timeout for index
// requests and a connection pool sized for concurrent metadata fetches.
func NewHTTPClient() *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:   true,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 64,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &http.Client{Timeout: httpTimeout, Transport: transport}
}

// NormalizePkgName converts a package name to its canonical PEP 503 form.
func NormalizePkgName(name string) string {
	return pep508.NormalizeName(name)
}
