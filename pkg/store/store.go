// Package store keeps a history of resolution runs.
//
// Backends:
//   - MemoryStore: in-process, for tests and a single API server
//   - FileStore: JSON files in a directory, for the CLI history
//   - MongoStore: a MongoDB collection shared by API server replicas
//
// Records expire after their TTL. Get never returns an expired record.
package store

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	wwerrors "github.com/matzehuels/wheelwright/pkg/errors"
	"github.com/matzehuels/wheelwright/pkg/resolve"
)

// ErrNotFound is returned by Get when no live record has the given ID.
var ErrNotFound = wwerrors.New(wwerrors.ErrCodeNotFound, "resolution not found")

// DefaultTTL is how long records are kept.
const DefaultTTL = 7 * 24 * time.Hour

// Record statuses.
const (
	StatusResolved = "resolved"
	StatusConflict = "conflict"
	StatusFailed   = "failed"
)

// Record is the stored outcome of one resolution run.
type Record struct {
	ID            string            `json:"id" bson:"_id"`
	CreatedAt     time.Time         `json:"created_at" bson:"created_at"`
	ExpiresAt     time.Time         `json:"expires_at" bson:"expires_at"`
	Requirements  []string          `json:"requirements" bson:"requirements"`
	PythonVersion string            `json:"python_version,omitempty" bson:"python_version,omitempty"`
	Status        string            `json:"status" bson:"status"`
	Versions      map[string]string `json:"versions,omitempty" bson:"versions,omitempty"`
	Plan          []resolve.Install `json:"plan,omitempty" bson:"plan,omitempty"`
	Error         string            `json:"error,omitempty" bson:"error,omitempty"`
	ErrorCode     string            `json:"error_code,omitempty" bson:"error_code,omitempty"`
	Implicated    []string          `json:"implicated,omitempty" bson:"implicated,omitempty"` // Packages named by a conflict
	Stats         resolve.Stats     `json:"stats" bson:"stats"`
}

// IsExpired reports whether the record has outlived its TTL.
func (r *Record) IsExpired() bool {
	return !r.ExpiresAt.IsZero() && time.Now().After(r.ExpiresAt)
}

// NewRecord summarizes a resolution run. Exactly one of res and err is
// expected to be non-nil.
func NewRecord(id string, roots []string, pythonVersion string, res *resolve.Resolution, err error, ttl time.Duration) *Record {
	now := time.Now().UTC()
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	rec := &Record{
		ID:            id,
		CreatedAt:     now,
		ExpiresAt:     now.Add(ttl),
		Requirements:  slices.Clone(roots),
		PythonVersion: pythonVersion,
	}
	if err != nil {
		rec.Status = StatusFailed
		rec.Error = err.Error()
		rec.ErrorCode = string(wwerrors.GetCode(err))
		var pe interface{ Packages() []string }
		if errors.As(err, &pe) {
			rec.Status = StatusConflict
			rec.Implicated = pe.Packages()
		}
		return rec
	}
	rec.Status = StatusResolved
	rec.Versions = res.Versions()
	rec.Plan = res.Plan()
	rec.Stats = res.Stats
	return rec
}

// Store persists resolution records.
type Store interface {
	// Get returns the record with the given ID, or ErrNotFound.
	Get(ctx context.Context, id string) (*Record, error)

	// Put inserts or replaces a record.
	Put(ctx context.Context, rec *Record) error

	// List returns up to limit live records, newest first. A limit of zero
	// or less returns all of them.
	List(ctx context.Context, limit int) ([]*Record, error)

	// Delete removes a record. Deleting a missing record is not an error.
	Delete(ctx context.Context, id string) error

	// Cleanup removes expired records (may be a no-op).
	Cleanup(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// newestFirst sorts records by creation time, newest first, and truncates
// to limit.
func newestFirst(recs []*Record, limit int) []*Record {
	slices.SortFunc(recs, func(a, b *Record) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return recs
}
