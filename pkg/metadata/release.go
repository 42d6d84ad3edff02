package metadata

import (
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/opencontainers/go-digest"

	"github.com/matzehuels/wheelwright/pkg/pep440"
)

// ErrNotFound is returned by index clients when a project or release does
// not exist. The fetcher records it as a negative cache entry.
var ErrNotFound = errors.New("not found on index")

// Release describes one published version of a project as reported by the
// index.
//
// Dependencies holds raw requirement strings; they are parsed by the
// resolver only when the release is selected. HasDependencies is false when
// the index listing did not include per-release dependency data, in which
// case the release's own metadata must be fetched before its dependencies
// are known.
//
// Releases are immutable once produced and safe for concurrent reads.
type Release struct {
	Name            string        `json:"name"`
	Version         string        `json:"version"`
	Dependencies    []string      `json:"dependencies,omitempty"`
	HasDependencies bool          `json:"has_dependencies"`
	RequiresPython  string        `json:"requires_python,omitempty"`
	Yanked          bool          `json:"yanked,omitempty"`
	YankedReason    string        `json:"yanked_reason,omitempty"`
	URL             string        `json:"url,omitempty"`
	Filename        string        `json:"filename,omitempty"`
	Digest          digest.Digest `json:"digest,omitempty"`
	UploadTime      time.Time     `json:"upload_time"`
}

// ParsedVersion parses the release version. Malformed versions parse
// leniently, so only an empty version yields the zero Version.
func (r Release) ParsedVersion() pep440.Version {
	v, _ := pep440.Parse(r.Version)
	return v
}

// SortReleases orders releases by version, highest first, breaking ties by
// URL ascending so the order is deterministic.
func SortReleases(rs []Release) {
	slices.SortStableFunc(rs, func(a, b Release) int {
		if c := pep440.Compare(b.ParsedVersion(), a.ParsedVersion()); c != 0 {
			return c
		}
		return strings.Compare(a.URL, b.URL)
	})
}

// Key returns the cache key for a project's release listing (version empty)
// or for a single release's full metadata.
func Key(name, version string) string {
	if version == "" {
		return name
	}
	return name + "==" + version
}

// Entry is one cached index answer: either a set of releases or a negative
// marker recording that the project does not exist.
type Entry struct {
	Releases  []Release     `json:"releases,omitempty"`
	Missing   bool          `json:"missing,omitempty"`
	FetchedAt time.Time     `json:"fetched_at"`
	TTL       time.Duration `json:"ttl"`
}

// Expired reports whether the entry is older than its TTL at now. A zero
// TTL never expires.
func (e Entry) Expired(now time.Time) bool {
	return e.TTL > 0 && now.After(e.FetchedAt.Add(e.TTL))
}
