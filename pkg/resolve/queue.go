package resolve

import (
	"context"

	"github.com/matzehuels/wheelwright/pkg/fetch"
)

// fetchQueue issues metadata requests ahead of need and hands results to
// the single resolver goroutine by key, whatever order they arrive in.
type fetchQueue struct {
	src       Source
	merged    chan fetch.Result
	requested map[string]bool
	results   map[string]fetch.Result

	fetches, cacheHits int
}

func newFetchQueue(src Source) *fetchQueue {
	return &fetchQueue{
		src:       src,
		merged:    make(chan fetch.Result),
		requested: make(map[string]bool),
		results:   make(map[string]fetch.Result),
	}
}

// request starts fetching every request not already asked for. It does not
// wait for results.
func (q *fetchQueue) request(ctx context.Context, reqs ...fetch.Request) {
	var todo []fetch.Request
	for _, r := range reqs {
		if k := r.Key(); !q.requested[k] {
			q.requested[k] = true
			todo = append(todo, r)
		}
	}
	if len(todo) == 0 {
		return
	}
	ch := q.src.FetchAll(ctx, todo)
	go func() {
		for res := range ch {
			select {
			case q.merged <- res:
			case <-ctx.Done():
				return
			}
		}
	}()
}

// await blocks until the result for req is available, requesting it first
// if needed. Results for other keys that arrive meanwhile are kept.
func (q *fetchQueue) await(ctx context.Context, req fetch.Request) (fetch.Result, error) {
	key := req.Key()
	q.request(ctx, req)
	for {
		if res, ok := q.results[key]; ok {
			return res, nil
		}
		select {
		case res := <-q.merged:
			if res.Cached {
				q.cacheHits++
			} else {
				q.fetches++
			}
			q.results[res.Request.Key()] = res
		case <-ctx.Done():
			return fetch.Result{}, ctx.Err()
		}
	}
}
