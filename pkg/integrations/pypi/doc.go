// Package pypi provides an HTTP client for the Python Package Index JSON API.
//
// # Overview
//
// [Client] implements [fetch.Index] against https://pypi.org/pypi or any
// mirror exposing the same API:
//
//	client := pypi.NewClient(pypi.DefaultBaseURL, nil)
//	releases, err := client.Fetch(ctx, fetch.Request{Name: "fastapi"})
//
// # Listings and releases
//
// A listing request (empty Version) reads /{name}/json and returns one
// [metadata.Release] per version that has distribution files. PyPI only
// reports requires_dist for the latest version, so every other release has
// HasDependencies false. A versioned request reads /{name}/{version}/json
// and always carries dependencies.
//
// For each version a representative artifact supplies the URL, filename and
// sha256 digest: a universal (none-any) wheel when one exists, then the
// sdist, then the first file.
//
// Package names are normalized following PEP 503.
//
// [fetch.Index]: github.com/matzehuels/wheelwright/pkg/fetch.Index
// [metadata.Release]: github.com/matzehuels/wheelwright/pkg/metadata.Release
package pypi
