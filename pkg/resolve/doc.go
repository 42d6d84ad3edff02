// Package resolve selects a consistent set of package versions.
//
// # Overview
//
// A [Resolver] takes root requirements and reads release metadata through
// a [Source], normally a [fetch.Fetcher] backed by the metadata cache:
//
//	f, _ := fetch.New(pypi.NewClient(pypi.DefaultBaseURL, nil), cache, fetch.Options{})
//	r := resolve.New(f, resolve.Options{PythonVersion: "3.12"})
//	res, err := r.Resolve(ctx, roots)
//
// # Algorithm
//
// Requirements wait in a FIFO frontier seeded from the roots. When a
// package is first taken from the frontier, every other pending
// requirement on it is folded in, and the highest candidate allowed by all
// of them is selected. Candidates exclude yanked releases (unless pinned
// with == or ===), releases whose requires-python rejects the target
// interpreter, and pre-releases (unless allowed, named by a constraint, or
// the only option). Selecting a release enqueues its dependencies whose
// markers hold, honoring requested extras.
//
// A requirement on an already-selected package that the selection does not
// satisfy undoes the most recent decision that still has untried
// candidates. Each decision keeps an immutable snapshot of the state it
// started from, so undoing is a matter of restoring it. When the requirer
// lies on the package's own selection path the failure is a dependency
// cycle; a cycle whose versions agree is harmless.
//
// Listing requests for every newly referenced package are issued as soon
// as the package appears, so independent packages download concurrently
// while the resolver works. Results are matched by key; arrival order does
// not affect the outcome.
//
// # Errors
//
// Resolution fails with [*ConflictError], [*CycleError], a
// [*fetch.FetchError] for the package whose metadata could not be
// obtained, or an error wrapping [ErrCanceled]. All of them carry an error
// code for [errors.GetCode].
//
// [fetch.Fetcher]: github.com/matzehuels/wheelwright/pkg/fetch.Fetcher
// [*fetch.FetchError]: github.com/matzehuels/wheelwright/pkg/fetch.FetchError
// [errors.GetCode]: github.com/matzehuels/wheelwright/pkg/errors.GetCode
package resolve
