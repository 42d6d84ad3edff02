package resolve

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/wheelwright/pkg/fetch"
	"github.com/matzehuels/wheelwright/pkg/metadata"
	"github.com/matzehuels/wheelwright/pkg/observability"
	"github.com/matzehuels/wheelwright/pkg/pep440"
	"github.com/matzehuels/wheelwright/pkg/pep508"
)

// Resolver selects one version per required package such that every
// requirement holds.
//
// A Resolver is safe for concurrent use; each Resolve call runs
// independently and shares only the Source (and its cache).
type Resolver struct {
	src  Source
	opts Options
}

// New creates a Resolver reading metadata from src.
func New(src Source, opts Options) *Resolver {
	return &Resolver{src: src, opts: opts.WithDefaults()}
}

// WithConstraints returns a copy of r that also applies cs. Constraints
// restrict the versions of packages that end up required but never add a
// package to the resolution.
func (r *Resolver) WithConstraints(cs []pep508.Requirement) *Resolver {
	opts := r.opts
	opts.Constraints = slices.Concat(opts.Constraints, cs)
	return &Resolver{src: r.src, opts: opts}
}

// Resolve finds a consistent set of releases for roots.
//
// On failure the error is a *ConflictError or *CycleError when no
// selection exists, a *fetch.FetchError when metadata for a package could
// not be obtained, or wraps [ErrCanceled] when ctx is done. Partial
// results are never returned.
func (r *Resolver) Resolve(ctx context.Context, roots []pep508.Requirement) (*Resolution, error) {
	start := time.Now()
	runID := uuid.NewString()
	hooks := observability.Resolve()
	hooks.OnResolveStart(ctx, runID, len(roots))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	rn := newRun(runCtx, r, runID)
	res, err := rn.resolve(roots)
	if err != nil && ctx.Err() != nil {
		err = &canceledError{cause: ctx.Err()}
	}

	packages := 0
	if res != nil {
		packages = len(res.Packages)
		res.Stats.Duration = time.Since(start)
	}
	hooks.OnResolveComplete(ctx, runID, packages, rn.backtracks, time.Since(start), err)
	if err != nil {
		rn.logger.Debug("resolution failed", "err", err, "backtracks", rn.backtracks)
		return nil, err
	}
	rn.logger.Debug("resolved", "packages", packages, "backtracks", rn.backtracks, "duration", res.Stats.Duration)
	return res, nil
}

// run holds the working data of one Resolve call. It is only touched by
// the goroutine running Resolve.
type run struct {
	ctx    context.Context
	opts   Options
	runID  string
	logger *log.Logger
	q      *fetchQueue

	python      pep440.Version
	constraints map[string]pep440.Specifier
	pySpecs     map[string]pep440.Specifier
	releases    map[string]releaseInfo // by metadata key

	stack      []decision
	backtracks int
	last       error
}

type releaseInfo struct {
	release metadata.Release
	deps    []pep508.Requirement
}

func newRun(ctx context.Context, r *Resolver, runID string) *run {
	opts := r.opts
	env := opts.Environment
	python, _ := pep440.Parse(env.PythonFullVersion)
	if python.Release == nil {
		python, _ = pep440.Parse(opts.PythonVersion)
	}

	constraints := make(map[string]pep440.Specifier)
	for _, c := range opts.Constraints {
		if c.AppliesTo(env, nil) {
			constraints[c.Name] = constraints[c.Name].And(c.Specifier)
		}
	}

	return &run{
		ctx:         ctx,
		opts:        opts,
		runID:       runID,
		logger:      opts.Logger.With("run", runID[:8]),
		q:           newFetchQueue(r.src),
		python:      python,
		constraints: constraints,
		pySpecs:     make(map[string]pep440.Specifier),
		releases:    make(map[string]releaseInfo),
	}
}

func (rn *run) resolve(roots []pep508.Requirement) (*Resolution, error) {
	st := newState()
	for _, req := range roots {
		if req.AppliesTo(rn.opts.Environment, nil) {
			st.frontier = append(st.frontier, Edge{Requirement: req})
		}
	}
	rn.prefetch(st.frontier)

	for len(st.frontier) > 0 {
		if err := rn.ctx.Err(); err != nil {
			return nil, err
		}
		e := st.frontier[0]
		st.frontier = st.frontier[1:]

		failure, err := rn.step(st, e)
		if err != nil {
			return nil, err
		}
		if failure != nil {
			if st, err = rn.backtrack(failure); err != nil {
				return nil, err
			}
		}
	}
	return rn.resolution(st, roots), nil
}

// step processes one requirement edge. It returns a non-nil failure when
// the edge cannot be satisfied in the current state, and an error when
// resolution must abort.
func (rn *run) step(st *state, e Edge) (failure error, err error) {
	name := e.Requirement.Name

	if sel, ok := st.selected[name]; ok {
		st.addEdge(name, e)
		if !e.Requirement.Specifier.Allows(sel.version) {
			return rn.conflict(st, name, e), nil
		}
		rn.addExtras(st, name, sel)
		return nil, nil
	}

	for _, g := range slices.Concat([]Edge{e}, st.takeAll(name)) {
		st.addEdge(name, g)
	}
	cands, err := rn.candidates(st, name)
	if err != nil {
		return nil, err
	}
	if len(cands) == 0 {
		return rn.conflict(st, name, e), nil
	}

	rn.stack = append(rn.stack, decision{
		snap:   st.clone(),
		name:   name,
		via:    e,
		chosen: cands[0].Version,
		rest:   cands[1:],
	})
	return nil, rn.choose(st, name, cands[0], e)
}

// choose selects rel for name and enqueues its dependencies.
func (rn *run) choose(st *state, name string, rel metadata.Release, via Edge) error {
	info, err := rn.release(rel)
	if err != nil {
		return err
	}
	sel := &selection{
		release: info.release,
		version: info.release.ParsedVersion(),
		extras:  st.extras(name),
		chain:   via.Chain,
		deps:    info.deps,
	}
	st.selected[name] = sel

	observability.Resolve().OnDecision(rn.ctx, name, rel.Version)
	rn.logger.Debug("select", "pkg", name, "version", rel.Version, "depth", len(via.Chain))

	var added []Edge
	for _, d := range sel.deps {
		if d.AppliesTo(rn.opts.Environment, sel.extras) {
			added = append(added, rn.child(name, sel, d))
		}
	}
	st.frontier = append(st.frontier, added...)
	rn.prefetch(added)
	return nil
}

// addExtras enqueues the dependencies that become active when a later
// requirement asks for extras the selection did not have yet.
func (rn *run) addExtras(st *state, name string, sel *selection) {
	extras := st.extras(name)
	if slices.Equal(extras, sel.extras) {
		return
	}
	next := sel.withExtras(extras)
	st.selected[name] = next

	var added []Edge
	for _, d := range sel.deps {
		env := rn.opts.Environment
		if d.AppliesTo(env, extras) && !d.AppliesTo(env, sel.extras) {
			added = append(added, rn.child(name, next, d))
		}
	}
	st.frontier = append(st.frontier, added...)
	rn.prefetch(added)
}

func (rn *run) child(parent string, sel *selection, req pep508.Requirement) Edge {
	chain := make([]string, len(sel.chain)+1)
	copy(chain, sel.chain)
	chain[len(sel.chain)] = parent
	return Edge{
		Parent:        parent,
		ParentVersion: sel.release.Version,
		Requirement:   req,
		Chain:         chain,
	}
}

// candidates returns the releases of name that satisfy every accepted
// requirement and constraint, best first.
func (rn *run) candidates(st *state, name string) ([]metadata.Release, error) {
	res, err := rn.q.await(rn.ctx, fetch.Request{Name: name})
	if err != nil {
		return nil, err
	}
	if res.Err != nil {
		return nil, res.Err
	}

	spec := st.specifier(name).And(rn.constraints[name])
	pinned := spec.Pins()
	allowPre := rn.opts.AllowPrereleases || spec.HasPrerelease()

	var finals, pres []metadata.Release
	var prev *pep440.Version
	for _, rel := range res.Releases {
		v := rel.ParsedVersion()
		if prev != nil && pep440.Compare(*prev, v) == 0 {
			continue
		}
		if !spec.Allows(v) || (rel.Yanked && !pinned) || !rn.pythonAllows(rel) {
			continue
		}
		prev = &v
		if v.IsPrerelease() && !allowPre {
			pres = append(pres, rel)
			continue
		}
		finals = append(finals, rel)
	}
	if len(finals) == 0 {
		return pres, nil
	}
	return finals, nil
}

func (rn *run) pythonAllows(rel metadata.Release) bool {
	if rel.RequiresPython == "" || rn.python.Release == nil {
		return true
	}
	spec, ok := rn.pySpecs[rel.RequiresPython]
	if !ok {
		var err error
		if spec, err = pep440.ParseSpecifier(rel.RequiresPython); err != nil {
			rn.logger.Debug("ignoring malformed requires-python", "pkg", rel.Name, "version", rel.Version, "value", rel.RequiresPython)
		}
		rn.pySpecs[rel.RequiresPython] = spec
	}
	return spec.Allows(rn.python)
}

// release returns rel with its dependencies parsed, fetching the release's
// own metadata when the listing did not carry them. Requirements that fail
// to parse are skipped.
func (rn *run) release(rel metadata.Release) (releaseInfo, error) {
	key := metadata.Key(rel.Name, rel.Version)
	if info, ok := rn.releases[key]; ok {
		return info, nil
	}

	full := rel
	if !rel.HasDependencies {
		res, err := rn.q.await(rn.ctx, fetch.Request{Name: rel.Name, Version: rel.Version})
		if err != nil {
			return releaseInfo{}, err
		}
		if res.Err != nil {
			return releaseInfo{}, res.Err
		}
		if len(res.Releases) == 0 {
			return releaseInfo{}, fmt.Errorf("index returned no metadata for %s", key)
		}
		full = mergeRelease(rel, res.Releases[0])
	}

	reqs, errs := pep508.ParseRequirements(full.Dependencies)
	for _, err := range errs {
		rn.logger.Debug("skipping dependency", "pkg", key, "err", err)
	}
	info := releaseInfo{release: full, deps: reqs}
	rn.releases[key] = info
	return info, nil
}

// mergeRelease fills dependency data from detail into the listing entry,
// keeping the listing's artifact where detail has none.
func mergeRelease(listing, detail metadata.Release) metadata.Release {
	out := listing
	out.Dependencies = detail.Dependencies
	out.HasDependencies = true
	if out.URL == "" {
		out.URL, out.Filename, out.Digest = detail.URL, detail.Filename, detail.Digest
	}
	if out.RequiresPython == "" {
		out.RequiresPython = detail.RequiresPython
	}
	return out
}

func (rn *run) prefetch(edges []Edge) {
	reqs := make([]fetch.Request, 0, len(edges))
	for _, e := range edges {
		reqs = append(reqs, fetch.Request{Name: e.Requirement.Name})
	}
	rn.q.request(rn.ctx, reqs...)
}

// conflict builds the failure for a requirement e on name that the current
// state cannot satisfy.
func (rn *run) conflict(st *state, name string, e Edge) error {
	edges := slices.Clone(st.edges[name])
	sel, selected := st.selected[name]
	if selected {
		if i := slices.Index(e.Chain, name); i >= 0 {
			return &CycleError{
				Package:      name,
				Selected:     sel.release.Version,
				Requirement:  e,
				Cycle:        slices.Clone(e.Chain[i:]),
				Requirements: edges,
			}
		}
	}
	ce := &ConflictError{Package: name, Requirements: edges}
	if selected {
		ce.Selected = sel.release.Version
	}
	if res, ok := rn.q.results[name]; ok {
		ce.Available = len(res.Releases)
	}
	return ce
}

// backtrack undoes the most recent decision that still has untried
// candidates and returns the state with the next candidate selected.
func (rn *run) backtrack(failure error) (*state, error) {
	rn.last = failure
	rn.logger.Debug("conflict", "err", failure)

	for len(rn.stack) > 0 {
		d := &rn.stack[len(rn.stack)-1]
		observability.Resolve().OnBacktrack(rn.ctx, d.name, d.chosen)
		if len(d.rest) == 0 {
			rn.stack = rn.stack[:len(rn.stack)-1]
			continue
		}
		if rn.backtracks >= rn.opts.MaxBacktracks {
			return nil, rn.exhausted(true)
		}
		rn.backtracks++

		next := d.rest[0]
		d.rest = d.rest[1:]
		d.chosen = next.Version
		rn.logger.Debug("backtrack", "pkg", d.name, "version", next.Version, "remaining", len(d.rest))

		st := d.snap.clone()
		if err := rn.choose(st, d.name, next, d.via); err != nil {
			return nil, err
		}
		return st, nil
	}
	return nil, rn.exhausted(false)
}

func (rn *run) exhausted(limit bool) error {
	switch err := rn.last.(type) {
	case *ConflictError:
		err.LimitReached = limit
	case *CycleError:
		err.LimitReached = limit
	}
	return rn.last
}

func (rn *run) resolution(st *state, roots []pep508.Requirement) *Resolution {
	res := &Resolution{
		RunID:    rn.runID,
		Roots:    slices.Clone(roots),
		Packages: make(map[string]*Node, len(st.selected)),
		Stats: Stats{
			Packages:   len(st.selected),
			Fetches:    rn.q.fetches,
			CacheHits:  rn.q.cacheHits,
			Backtracks: rn.backtracks,
		},
	}
	for name, sel := range st.selected {
		res.Packages[name] = &Node{
			Name:       name,
			Version:    sel.release.Version,
			Release:    sel.release,
			Extras:     sel.extras,
			RequiredBy: slices.Clone(st.edges[name]),
			Chain:      sel.chain,
		}
	}
	for name, n := range res.Packages {
		for _, e := range n.RequiredBy {
			if e.Parent == "" {
				n.Root = true
				continue
			}
			if p, ok := res.Packages[e.Parent]; ok && !slices.Contains(p.Dependencies, name) {
				p.Dependencies = append(p.Dependencies, name)
			}
		}
	}
	for _, n := range res.Packages {
		slices.Sort(n.Dependencies)
	}
	return res
}
