// Package pkg provides the core libraries of Wheelwright, a Python
// dependency resolver.
//
// # Overview
//
// Wheelwright takes a set of requirements and selects one version of every
// package they need, consistent with all version constraints, reading
// release metadata from a package index through a two-tier cache.
//
// # Architecture
//
// The data flow of a resolution:
//
//	requirements (arguments, requirements.txt, pyproject.toml)
//	         ↓
//	    [manifest], [pep508] (parse requirements and markers)
//	         ↓
//	    [resolve] (backtracking search over candidates)
//	         ↕
//	    [fetch] (bounded, deduplicated index requests with retry)
//	         ↕
//	    [metadata] (memory tier over a persisted [cache] tier)
//	         ↕
//	    [integrations/pypi] (PyPI JSON API)
//	         ↓
//	    text, JSON, [lockfile], [depgraph] DOT/SVG, [store] records
//
// # Main Packages
//
// ## Versions and Requirements
//
// [pep440] - Version parsing, total ordering and specifier matching.
//
// [pep508] - Requirement strings, extras, environment markers and name
// normalization.
//
// [manifest] - requirements.txt (with -r and -c includes) and pyproject.toml
// readers. Bad lines are reported per line and never abort a file.
//
// ## Resolution
//
// [resolve] - The resolver. Conflicts and dependency cycles are reported
// with every requirement involved.
//
// [depgraph] - The resolved graph: install order, cycle detection and
// Graphviz output.
//
// [lockfile] - TOML lock files with hashes, readable back as pins.
//
// ## Metadata Acquisition
//
// [fetch] - Concurrency-bounded fetcher with single-flight deduplication and
// retry of transient failures.
//
// [metadata] - Release metadata and the two-tier cache with negative
// entries.
//
// [cache] - Persisted byte caches: file, Redis and null.
//
// [integrations] - Shared HTTP client for index APIs, with the PyPI client
// in [integrations/pypi].
//
// [httputil] - Retry policy with exponential backoff.
//
// ## Infrastructure
//
// [store] - Resolution records in memory, on disk or in MongoDB.
//
// [observability] - Hook interfaces for resolver, fetch, cache and HTTP
// events.
//
// [errors] - Error codes, user messages and exit codes.
//
// [buildinfo] - Version information injected at build time.
//
// # Common Workflows
//
// Resolve requirements against PyPI:
//
//	mc := metadata.NewCache(metadata.Options{Store: fileCache})
//	f, _ := fetch.New(pypi.NewClient(pypi.DefaultBaseURL, nil), mc, fetch.Options{})
//	res, err := resolve.New(f, resolve.Options{PythonVersion: "3.12"}).Resolve(ctx, roots)
//
// Write a lock file:
//
//	lock := lockfile.FromResolution(res, "3.12", "wheelwright", time.Now())
//	_ = lock.WriteFile(lockfile.DefaultName)
//
// # Testing
//
//	go test ./...                        # All tests
//	go test -run Example ./pkg/...       # Examples only
//	go test -tags integration ./pkg/...  # Live PyPI, Redis and MongoDB
//
// [pep440]: https://pkg.go.dev/github.com/matzehuels/wheelwright/pkg/pep440
// [pep508]: https://pkg.go.dev/github.com/matzehuels/wheelwright/pkg/pep508
// [manifest]: https://pkg.go.dev/github.com/matzehuels/wheelwright/pkg/manifest
// [resolve]: https://pkg.go.dev/github.com/matzehuels/wheelwright/pkg/resolve
// [depgraph]: https://pkg.go.dev/github.com/matzehuels/wheelwright/pkg/depgraph
// [lockfile]: https://pkg.go.dev/github.com/matzehuels/wheelwright/pkg/lockfile
// [fetch]: https://pkg.go.dev/github.com/matzehuels/wheelwright/pkg/fetch
// [metadata]: https://pkg.go.dev/github.com/matzehuels/wheelwright/pkg/metadata
// [cache]: https://pkg.go.dev/github.com/matzehuels/wheelwright/pkg/cache
// [integrations]: https://pkg.go.dev/github.com/matzehuels/wheelwright/pkg/integrations
// [integrations/pypi]: https://pkg.go.dev/github.com/matzehuels/wheelwright/pkg/integrations/pypi
// [httputil]: https://pkg.go.dev/github.com/matzehuels/wheelwright/pkg/httputil
// [store]: https://pkg.go.dev/github.com/matzehuels/wheelwright/pkg/store
// [observability]: https://pkg.go.dev/github.com/matzehuels/wheelwright/pkg/observability
// [errors]: https://pkg.go.dev/github.com/matzehuels/wheelwright/pkg/errors
// [buildinfo]: https://pkg.go.dev/github.com/matzehuels/wheelwright/pkg/buildinfo
package pkg
