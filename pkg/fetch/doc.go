// Package fetch acquires package metadata concurrently.
//
// A [Fetcher] answers [Request] values from the metadata cache when it can
// and from an [Index] otherwise. At most Concurrency index calls are in
// flight at once, identical in-flight requests share one call, and
// transient failures are retried with bounded exponential backoff:
//
//	f, _ := fetch.New(pypi.NewClient(pypi.DefaultBaseURL, nil), mc, fetch.Options{Logger: logger})
//	for res := range f.FetchAll(ctx, []fetch.Request{{Name: "requests"}, {Name: "flask"}}) {
//	    if res.Err != nil {
//	        // res.Err is a *FetchError for this request only
//	    }
//	}
//
// Results arrive in completion order, not request order.
package fetch
