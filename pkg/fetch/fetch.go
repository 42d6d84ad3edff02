package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/matzehuels/wheelwright/pkg/httputil"
	"github.com/matzehuels/wheelwright/pkg/metadata"
	"github.com/matzehuels/wheelwright/pkg/observability"
)

const (
	DefaultConcurrency = 10               // Default number of in-flight index requests
	MaxConcurrency     = 64               // Upper bound accepted for Concurrency
	DefaultTimeout     = 10 * time.Second // Default per-attempt deadline
)

// ErrInvalidConcurrency is returned by [New] for a concurrency outside
// 1..[MaxConcurrency].
var ErrInvalidConcurrency = errors.New("concurrency must be between 1 and 64")

// Request asks for a project's release listing (Version empty) or for one
// release's full metadata.
type Request struct {
	Name    string
	Version string
}

// Key returns the metadata cache key for the request.
func (r Request) Key() string { return metadata.Key(r.Name, r.Version) }

func (r Request) String() string { return r.Key() }

// Result is the outcome of one Request. Exactly one of Releases and Err is
// meaningful. Cached reports that the answer came from the metadata cache.
type Result struct {
	Request  Request
	Releases []metadata.Release
	Err      *FetchError
	Cached   bool
}

// Index is a package index that can answer a Request with a single attempt.
// Implementations signal a missing project with [metadata.ErrNotFound] and
// transient failures with [httputil.RetryableError].
type Index interface {
	Fetch(ctx context.Context, req Request) ([]metadata.Release, error)
}

// Options configures a [Fetcher].
type Options struct {
	Concurrency int             // Max in-flight index requests, 1..64 (default: 10)
	Retry       httputil.Policy // Backoff for transient failures (default: httputil.DefaultPolicy)
	Timeout     time.Duration   // Per-attempt deadline (default: 10s)
	Refresh     bool            // Skip cache reads; results are still written back
	Logger      *log.Logger     // Debug logging of attempts and retries (optional)
}

// WithDefaults returns a copy of Options with zero values replaced by defaults.
func (o Options) WithDefaults() Options {
	opts := o
	if opts.Concurrency == 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Retry.Attempts <= 0 {
		opts.Retry = httputil.DefaultPolicy()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return opts
}

// Stats counts fetcher activity since creation.
type Stats struct {
	Requests  int64 `json:"requests"`   // Requests passed to FetchAll
	CacheHits int64 `json:"cache_hits"` // Requests answered from the cache
	Fetches   int64 `json:"fetches"`    // Index attempts made
	Retries   int64 `json:"retries"`    // Attempts that were retries
	Failures  int64 `json:"failures"`   // Requests that ended in an error
}

// Fetcher resolves metadata requests through the cache and, on a miss, the
// index, with at most Concurrency index calls in flight.
//
// A Fetcher is safe for concurrent use.
type Fetcher struct {
	index Index
	cache *metadata.Cache
	opts  Options

	sem    *semaphore.Weighted
	flight singleflight.Group

	mu    sync.Mutex
	calls map[string]*flightCall

	requests, cacheHits, fetches, retries, failures atomic.Int64
}

// New creates a Fetcher. A nil cache gets a private in-memory cache.
func New(index Index, cache *metadata.Cache, opts Options) (*Fetcher, error) {
	opts = opts.WithDefaults()
	if opts.Concurrency < 1 || opts.Concurrency > MaxConcurrency {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidConcurrency, opts.Concurrency)
	}
	if cache == nil {
		cache = metadata.NewCache(metadata.Options{})
	}
	return &Fetcher{
		index: index,
		cache: cache,
		opts:  opts,
		sem:   semaphore.NewWeighted(int64(opts.Concurrency)),
		calls: make(map[string]*flightCall),
	}, nil
}

// Cache returns the metadata cache the fetcher reads and writes.
func (f *Fetcher) Cache() *metadata.Cache { return f.cache }

// FetchAll resolves every request and streams the results in completion
// order. Cache lookups run concurrently and take no admission slot. The
// channel is closed once every request has produced exactly one result; if
// ctx is done, pending requests complete promptly with a cancellation error.
//
// Concurrent requests for the same key, from this call or any other, share
// one index call. Canceling ctx abandons only this caller's wait.
//
// The channel is buffered for all results, so a caller that stops reading
// early does not leak goroutines.
func (f *Fetcher) FetchAll(ctx context.Context, reqs []Request) <-chan Result {
	out := make(chan Result, len(reqs))
	var wg sync.WaitGroup

	for _, req := range reqs {
		f.requests.Add(1)
		wg.Add(1)
		go func(req Request) {
			defer wg.Done()
			if !f.opts.Refresh {
				if res, ok := f.cached(ctx, req); ok {
					out <- res
					return
				}
			}
			out <- f.fetch(ctx, req)
		}(req)
	}

	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

// Fetch resolves a single request synchronously.
func (f *Fetcher) Fetch(ctx context.Context, req Request) Result {
	return <-f.FetchAll(ctx, []Request{req})
}

// Stats returns a snapshot of the fetcher's counters.
func (f *Fetcher) Stats() Stats {
	return Stats{
		Requests:  f.requests.Load(),
		CacheHits: f.cacheHits.Load(),
		Fetches:   f.fetches.Load(),
		Retries:   f.retries.Load(),
		Failures:  f.failures.Load(),
	}
}

func (f *Fetcher) cached(ctx context.Context, req Request) (Result, bool) {
	e, ok := f.cache.Lookup(ctx, req.Key())
	if !ok {
		return Result{}, false
	}
	f.cacheHits.Add(1)
	res := Result{Request: req, Cached: true}
	if e.Missing {
		f.failures.Add(1)
		res.Err = &FetchError{Name: req.Name, Version: req.Version, Err: metadata.ErrNotFound}
		return res, true
	}
	res.Releases = e.Releases
	return res, true
}

type flightResult struct {
	releases []metadata.Release
	err      *FetchError
}

// flightCall is the context shared by every caller waiting on one key. It
// is detached from the callers' contexts and canceled when the last of
// them stops waiting.
type flightCall struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

func (f *Fetcher) join(ctx context.Context, key string) *flightCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.calls[key]
	if c == nil {
		cctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		c = &flightCall{ctx: cctx, cancel: cancel}
		f.calls[key] = c
	}
	c.waiters++
	return c
}

func (f *Fetcher) leave(key string, c *flightCall) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c.waiters--
	if c.waiters > 0 {
		return
	}
	c.cancel()
	if f.calls[key] == c {
		delete(f.calls, key)
	}
}

func (f *Fetcher) fetch(ctx context.Context, req Request) Result {
	key := req.Key()
	for {
		c := f.join(ctx, key)
		ch := f.flight.DoChan(key, func() (any, error) {
			releases, err := f.fetchIndex(c.ctx, req)
			return flightResult{releases: releases, err: err}, nil
		})

		select {
		case <-ctx.Done():
			f.leave(key, c)
			f.failures.Add(1)
			return Result{Request: req, Err: &FetchError{Name: req.Name, Version: req.Version, Err: ctx.Err()}}
		case r := <-ch:
			f.leave(key, c)
			fr := r.Val.(flightResult)
			// A flight abandoned by its other waiters ends canceled; a caller
			// that is still waiting starts a new one.
			if fr.err != nil && errors.Is(fr.err.Err, context.Canceled) && ctx.Err() == nil {
				continue
			}
			if fr.err != nil {
				f.failures.Add(1)
			}
			return Result{Request: req, Releases: fr.releases, Err: fr.err}
		}
	}
}

func (f *Fetcher) fetchIndex(ctx context.Context, req Request) ([]metadata.Release, *FetchError) {
	key := req.Key()
	logger := f.opts.Logger.With("pkg", key)

	var releases []metadata.Release
	attempts, err := f.opts.Retry.Do(ctx, func(attempt int) error {
		if attempt > 1 {
			f.retries.Add(1)
		}
		if err := f.sem.Acquire(ctx, 1); err != nil {
			return err
		}
		defer f.sem.Release(1)

		f.fetches.Add(1)
		observability.Fetch().OnFetchStart(ctx, key)
		start := time.Now()

		actx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
		defer cancel()

		var err error
		releases, err = f.index.Fetch(actx, req)
		observability.Fetch().OnFetchComplete(ctx, key, attempt, time.Since(start), err)

		if err != nil && httputil.IsRetryable(err) && attempt < f.opts.Retry.Attempts {
			logger.Debug("retrying", "attempt", attempt, "err", err)
			observability.Fetch().OnRetry(ctx, key, attempt, err)
		}
		return err
	})

	if err != nil {
		if errors.Is(err, metadata.ErrNotFound) {
			f.cache.PutMissing(ctx, key)
		}
		logger.Debug("fetch failed", "attempts", attempts, "err", err)
		return nil, &FetchError{Name: req.Name, Version: req.Version, Attempts: attempts, Err: err}
	}

	releases = slices.Clone(releases)
	metadata.SortReleases(releases)
	f.cache.Put(ctx, key, releases)
	logger.Debug("fetched", "releases", len(releases), "attempts", attempts)
	return releases, nil
}
