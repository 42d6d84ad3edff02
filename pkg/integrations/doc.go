// Package integrations provides HTTP clients for package index APIs.
//
// # Overview
//
// The [pypi] subpackage talks to the PyPI JSON API and turns its responses
// into [metadata.Release] values. This package holds the shared plumbing:
//
//   - [Client]: GET + JSON decode with default headers and HTTP hooks
//   - [SharedHTTPClient]: one connection pool for the whole process
//   - Status classification: 404 becomes [ErrNotFound]; 429, 5xx and
//     network failures become [httputil.RetryableError]
//
// Clients make a single attempt per call. Caching, retries, per-request
// timeouts and the concurrency bound all live in the fetcher.
//
// [pypi]: github.com/matzehuels/wheelwright/pkg/integrations/pypi
// [metadata.Release]: github.com/matzehuels/wheelwright/pkg/metadata.Release
// [httputil.RetryableError]: github.com/matzehuels/wheelwright/pkg/httputil.RetryableError
package integrations
