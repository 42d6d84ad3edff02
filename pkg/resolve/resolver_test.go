package resolve

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	wwerrors "github.com/matzehuels/wheelwright/pkg/errors"
	"github.com/matzehuels/wheelwright/pkg/fetch"
	"github.com/matzehuels/wheelwright/pkg/httputil"
	"github.com/matzehuels/wheelwright/pkg/metadata"
	"github.com/matzehuels/wheelwright/pkg/pep508"
)

// pkg describes one release in a test universe.
type pkg struct {
	version  string
	deps     []string
	yanked   bool
	python   string
	noDeps   bool // listing omits dependencies; they come from name==version
	filename string
}

// testIndex is a fetch.Index over a fixed universe.
type testIndex struct {
	mu       sync.Mutex
	universe map[string][]pkg
	failures map[string]int // transient failures before success, by key
	calls    map[string]int
	block    chan struct{} // when set, every call waits on it
}

func newTestIndex(u map[string][]pkg) *testIndex {
	return &testIndex{universe: u, failures: map[string]int{}, calls: map[string]int{}}
}

func (ix *testIndex) Fetch(ctx context.Context, req fetch.Request) ([]metadata.Release, error) {
	if ix.block != nil {
		select {
		case <-ix.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	key := req.Key()
	ix.calls[key]++
	if ix.failures[key] > 0 {
		ix.failures[key]--
		return nil, httputil.Retryable(errors.New("502 bad gateway"))
	}
	pkgs, ok := ix.universe[req.Name]
	if !ok {
		return nil, metadata.ErrNotFound
	}
	var out []metadata.Release
	for _, p := range pkgs {
		if req.Version != "" && p.version != req.Version {
			continue
		}
		r := metadata.Release{
			Name:            req.Name,
			Version:         p.version,
			Yanked:          p.yanked,
			RequiresPython:  p.python,
			URL:             fmt.Sprintf("https://files.example/%s-%s.tar.gz", req.Name, p.version),
			Filename:        p.filename,
			HasDependencies: req.Version != "" || !p.noDeps,
		}
		if r.HasDependencies {
			r.Dependencies = p.deps
		}
		out = append(out, r)
	}
	if req.Version != "" && len(out) == 0 {
		return nil, metadata.ErrNotFound
	}
	return out, nil
}

func (ix *testIndex) callCount(key string) int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.calls[key]
}

func newResolver(t *testing.T, ix fetch.Index, opts Options) *Resolver {
	t.Helper()
	f, err := fetch.New(ix, nil, fetch.Options{
		Retry: httputil.Policy{Attempts: 4, BaseDelay: time.Millisecond, MaxDelay: 4 * time.Millisecond},
	})
	if err != nil {
		t.Fatal(err)
	}
	return New(f, opts)
}

func reqs(t *testing.T, lines ...string) []pep508.Requirement {
	t.Helper()
	out := make([]pep508.Requirement, len(lines))
	for i, l := range lines {
		r, err := pep508.ParseRequirement(l)
		if err != nil {
			t.Fatalf("ParseRequirement(%q): %v", l, err)
		}
		out[i] = r
	}
	return out
}

func assertVersions(t *testing.T, res *Resolution, want map[string]string) {
	t.Helper()
	if got := res.Versions(); !maps.Equal(got, want) {
		t.Errorf("Versions() = %v, want %v", got, want)
	}
}

func TestResolveSelectsHighestInRange(t *testing.T) {
	ix := newTestIndex(map[string][]pkg{
		"a": {{version: "1.0"}, {version: "1.5"}, {version: "2.0"}},
	})
	res, err := newResolver(t, ix, Options{}).Resolve(context.Background(), reqs(t, "a>=1.0,<2.0"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	assertVersions(t, res, map[string]string{"a": "1.5"})
	if !res.Packages["a"].Root {
		t.Error("a should be marked as a root")
	}
	if res.RunID == "" {
		t.Error("RunID not set")
	}
}

func TestResolveConflict(t *testing.T) {
	ix := newTestIndex(map[string][]pkg{
		"a": {{version: "1.0", deps: []string{"c>=2.0"}}},
		"b": {{version: "1.0", deps: []string{"c<2.0"}}},
		"c": {{version: "1.0"}, {version: "2.0"}},
	})
	_, err := newResolver(t, ix, Options{}).Resolve(context.Background(), reqs(t, "a", "b"))

	var ce *ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want *ConflictError", err)
	}
	if ce.Package != "c" {
		t.Errorf("Package = %s, want c", ce.Package)
	}
	if got := ce.Packages(); !slices.Equal(got, []string{"a", "b", "c"}) {
		t.Errorf("Packages() = %v, want [a b c]", got)
	}
	if wwerrors.GetCode(err) != wwerrors.ErrCodeConflict || wwerrors.ExitCode(err) != 2 {
		t.Errorf("code = %s, exit = %d", wwerrors.GetCode(err), wwerrors.ExitCode(err))
	}
	for _, want := range []string{"a==1.0 requires c>=2.0", "b==1.0 requires c<2.0"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q should mention %q", err, want)
		}
	}
}

func TestResolveMutualDependency(t *testing.T) {
	ix := newTestIndex(map[string][]pkg{
		"a": {{version: "1.0", deps: []string{"b>=1.0"}}},
		"b": {{version: "1.0", deps: []string{"a>=1.0"}}},
	})
	res, err := newResolver(t, ix, Options{}).Resolve(context.Background(), reqs(t, "a"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	assertVersions(t, res, map[string]string{"a": "1.0", "b": "1.0"})
	if got := res.Graph().Cycles(); len(got) != 1 {
		t.Errorf("Cycles() = %v, want the a/b cycle", got)
	}
	if !slices.Equal(res.Packages["b"].Chain, []string{"a"}) {
		t.Errorf("b chain = %v, want [a]", res.Packages["b"].Chain)
	}
}

func TestResolveRetriesTransientFailures(t *testing.T) {
	ix := newTestIndex(map[string][]pkg{
		"x": {{version: "3.1", deps: []string{"y"}}},
		"y": {{version: "0.9"}},
	})
	ix.failures["x"] = 3
	res, err := newResolver(t, ix, Options{}).Resolve(context.Background(), reqs(t, "x"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	assertVersions(t, res, map[string]string{"x": "3.1", "y": "0.9"})
	if n := ix.callCount("x"); n != 4 {
		t.Errorf("index calls for x = %d, want 4", n)
	}
}

func TestResolveCycleEscalation(t *testing.T) {
	u := map[string][]pkg{
		"a": {{version: "2.0", deps: []string{"b"}}, {version: "1.0", deps: []string{"b"}}},
		"b": {{version: "1.0", deps: []string{"a<2"}}},
	}
	res, err := newResolver(t, newTestIndex(u), Options{}).Resolve(context.Background(), reqs(t, "a"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	assertVersions(t, res, map[string]string{"a": "1.0", "b": "1.0"})
	if res.Stats.Backtracks != 1 {
		t.Errorf("Backtracks = %d, want 1", res.Stats.Backtracks)
	}

	u["a"] = u["a"][:1]
	_, err = newResolver(t, newTestIndex(u), Options{}).Resolve(context.Background(), reqs(t, "a"))
	var cyc *CycleError
	if !errors.As(err, &cyc) {
		t.Fatalf("err = %v, want *CycleError", err)
	}
	if cyc.Package != "a" || !slices.Equal(cyc.Cycle, []string{"a", "b"}) {
		t.Errorf("cycle = %s via %v", cyc.Package, cyc.Cycle)
	}
	if wwerrors.GetCode(err) != wwerrors.ErrCodeCycleEscalation {
		t.Errorf("code = %s", wwerrors.GetCode(err))
	}
}

func TestResolveBacktracksOnTightening(t *testing.T) {
	// The newest web pulls in a lib that needs a newer core than the root allows.
	ix := newTestIndex(map[string][]pkg{
		"web":  {{version: "2.0", deps: []string{"lib>=2"}}, {version: "1.0", deps: []string{"lib>=1"}}},
		"lib":  {{version: "2.0", deps: []string{"core>=2"}}, {version: "1.0", deps: []string{"core>=1"}}},
		"core": {{version: "1.0"}, {version: "2.0"}},
		"app":  {{version: "1.0", deps: []string{"web", "core<2"}}},
	})
	res, err := newResolver(t, ix, Options{}).Resolve(context.Background(), reqs(t, "app"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	assertVersions(t, res, map[string]string{"app": "1.0", "web": "1.0", "lib": "1.0", "core": "1.0"})
	if res.Stats.Backtracks == 0 {
		t.Error("expected at least one backtrack")
	}
}

func TestResolveBacktrackLimit(t *testing.T) {
	ix := newTestIndex(map[string][]pkg{
		"a": {{version: "3", deps: []string{"c>=9"}}, {version: "2", deps: []string{"c>=9"}}, {version: "1", deps: []string{"c>=9"}}},
		"c": {{version: "1"}},
	})
	_, err := newResolver(t, ix, Options{MaxBacktracks: 1}).Resolve(context.Background(), reqs(t, "a"))
	var ce *ConflictError
	if !errors.As(err, &ce) || !ce.LimitReached {
		t.Fatalf("err = %v, want conflict with limit reached", err)
	}
}

func TestResolveCandidateFiltering(t *testing.T) {
	u := map[string][]pkg{
		"lib": {
			{version: "3.0", python: ">=3.12"},
			{version: "2.1", yanked: true},
			{version: "2.0rc1"},
			{version: "2.0"},
			{version: "1.0"},
		},
		"beta": {{version: "0.2b1"}, {version: "0.1a1"}},
		"tool": {{version: "1.1b2"}, {version: "1.0"}},
	}
	tests := []struct {
		name string
		root string
		opts Options
		want string
	}{
		{"skips requires-python, yanked and prereleases", "lib", Options{}, "2.0"},
		{"newer python admits 3.0", "lib", Options{PythonVersion: "3.12"}, "3.0"},
		{"pin selects yanked", "lib==2.1", Options{}, "2.1"},
		{"prerelease in constraint", "lib>=2.0rc1,!=2.0,<2.1", Options{}, "2.0rc1"},
		{"final preferred over prerelease", "tool", Options{}, "1.0"},
		{"allow prereleases", "tool", Options{AllowPrereleases: true}, "1.1b2"},
		{"only prereleases exist", "beta", Options{}, "0.2b1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := newResolver(t, newTestIndex(u), tt.opts).Resolve(context.Background(), reqs(t, tt.root))
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			for _, n := range res.Packages {
				if n.Version != tt.want {
					t.Errorf("%s = %s, want %s", n.Name, n.Version, tt.want)
				}
			}
		})
	}
}

func TestResolveExtrasAndMarkers(t *testing.T) {
	ix := newTestIndex(map[string][]pkg{
		"app": {{version: "1.0", deps: []string{
			"http[socks]>=1",
			"winonly; sys_platform == 'win32'",
			"legacy; python_version < '3.0'",
		}}},
		"http": {{version: "1.2", deps: []string{
			"pysocks>=1.5; extra == 'socks'",
			"brotli; extra == 'compress'",
		}}},
		"pysocks": {{version: "1.7.1"}},
		"brotli":  {{version: "1.1"}},
		"winonly": {{version: "1.0"}},
		"legacy":  {{version: "1.0"}},
	})
	env := pep508.DefaultEnvironment("3.11")
	env.SysPlatform = "linux"
	res, err := newResolver(t, ix, Options{Environment: env}).Resolve(context.Background(), reqs(t, "app"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	assertVersions(t, res, map[string]string{"app": "1.0", "http": "1.2", "pysocks": "1.7.1"})
	if !slices.Equal(res.Packages["http"].Extras, []string{"socks"}) {
		t.Errorf("http extras = %v", res.Packages["http"].Extras)
	}
}

func TestResolveExtraAddedLater(t *testing.T) {
	ix := newTestIndex(map[string][]pkg{
		"a":      {{version: "1.0", deps: []string{"http"}}},
		"b":      {{version: "1.0", deps: []string{"http[compress]"}}},
		"http":   {{version: "1.2", deps: []string{"brotli; extra == 'compress'"}}},
		"brotli": {{version: "1.1"}},
	})
	res, err := newResolver(t, ix, Options{}).Resolve(context.Background(), reqs(t, "a", "b"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if _, ok := res.Packages["brotli"]; !ok {
		t.Errorf("brotli should be pulled in by http[compress], got %v", res.Versions())
	}
}

func TestResolveConstraints(t *testing.T) {
	ix := newTestIndex(map[string][]pkg{
		"a": {{version: "1.0", deps: []string{"c"}}},
		"c": {{version: "1.0"}, {version: "2.0"}},
		"d": {{version: "1.0"}},
	})
	r := newResolver(t, ix, Options{}).WithConstraints(reqs(t, "c<2", "d==1.0"))
	res, err := r.Resolve(context.Background(), reqs(t, "a"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	assertVersions(t, res, map[string]string{"a": "1.0", "c": "1.0"})
	if ix.callCount("d") != 0 {
		t.Error("constraints must not add packages")
	}
}

func TestResolveLazyDependencies(t *testing.T) {
	ix := newTestIndex(map[string][]pkg{
		"a": {{version: "2.0", deps: []string{"b"}, noDeps: true}},
		"b": {{version: "1.0"}},
	})
	res, err := newResolver(t, ix, Options{}).Resolve(context.Background(), reqs(t, "a"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	assertVersions(t, res, map[string]string{"a": "2.0", "b": "1.0"})
	if ix.callCount("a==2.0") != 1 {
		t.Error("release metadata should be fetched for a listing without dependencies")
	}
}

func TestResolveFetchFailureAborts(t *testing.T) {
	ix := newTestIndex(map[string][]pkg{
		"a": {{version: "1.0", deps: []string{"ghost>=1"}}},
	})
	_, err := newResolver(t, ix, Options{}).Resolve(context.Background(), reqs(t, "a"))
	var fe *fetch.FetchError
	if !errors.As(err, &fe) || fe.Name != "ghost" || !fe.NotFound() {
		t.Fatalf("err = %v, want not-found FetchError for ghost", err)
	}
	if wwerrors.ExitCode(err) != 3 {
		t.Errorf("exit code = %d, want 3", wwerrors.ExitCode(err))
	}
}

func TestResolveCanceled(t *testing.T) {
	ix := newTestIndex(map[string][]pkg{"a": {{version: "1.0"}}})
	ix.block = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := newResolver(t, ix, Options{}).Resolve(ctx, reqs(t, "a"))
	if !errors.Is(err, ErrCanceled) || !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want ErrCanceled wrapping context.Canceled", err)
	}
	var ce *ConflictError
	if errors.As(err, &ce) {
		t.Error("cancellation must not be reported as a conflict")
	}
	if wwerrors.ExitCode(err) != 130 {
		t.Errorf("exit code = %d, want 130", wwerrors.ExitCode(err))
	}
}

func TestResolveDeterministicOnCachedUniverse(t *testing.T) {
	ix := newTestIndex(map[string][]pkg{
		"app":   {{version: "1.0", deps: []string{"web>=1", "db", "cli"}}},
		"web":   {{version: "2.0", deps: []string{"core>=2"}}, {version: "1.0", deps: []string{"core"}}},
		"db":    {{version: "1.1", deps: []string{"core<3"}}},
		"cli":   {{version: "0.9", deps: []string{"core"}}},
		"core":  {{version: "3.0"}, {version: "2.5"}, {version: "1.0"}},
		"extra": {{version: "1.0"}},
	})
	r := newResolver(t, ix, Options{})
	ctx := context.Background()

	first, err := r.Resolve(ctx, reqs(t, "app"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := r.Resolve(ctx, reqs(t, "app"))
		if err != nil {
			t.Fatalf("Resolve #%d: %v", i+2, err)
		}
		if !maps.Equal(first.Versions(), again.Versions()) {
			t.Fatalf("run %d = %v, want %v", i+2, again.Versions(), first.Versions())
		}
		if !slices.Equal(planNames(first), planNames(again)) {
			t.Fatalf("plan order changed: %v vs %v", planNames(again), planNames(first))
		}
		if again.Stats.Fetches != 0 {
			t.Errorf("run %d made %d index fetches on a cached universe", i+2, again.Stats.Fetches)
		}
	}
	assertVersions(t, first, map[string]string{"app": "1.0", "web": "2.0", "db": "1.1", "cli": "0.9", "core": "2.5"})
}

func TestResolutionPlan(t *testing.T) {
	ix := newTestIndex(map[string][]pkg{
		"flask":      {{version: "3.0.0", deps: []string{"werkzeug>=3", "click"}, filename: "flask-3.0.0-py3-none-any.whl"}},
		"werkzeug":   {{version: "3.0.1", deps: []string{"markupsafe"}}},
		"click":      {{version: "8.1.7"}},
		"markupsafe": {{version: "2.1.3"}},
	})
	res, err := newResolver(t, ix, Options{}).Resolve(context.Background(), reqs(t, "flask"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got := planNames(res); !slices.Equal(got, []string{"click", "markupsafe", "werkzeug", "flask"}) {
		t.Errorf("Plan order = %v", got)
	}
	plan := res.Plan()
	last := plan[len(plan)-1]
	if last.Filename != "flask-3.0.0-py3-none-any.whl" || last.URL == "" {
		t.Errorf("flask install = %+v", last)
	}
	if got := res.Packages["flask"].Dependencies; !slices.Equal(got, []string{"click", "werkzeug"}) {
		t.Errorf("flask dependencies = %v", got)
	}
	g := res.Graph()
	if g.NodeCount() != 4 || g.EdgeCount() != 3 {
		t.Errorf("graph has %d nodes, %d edges", g.NodeCount(), g.EdgeCount())
	}
}

func planNames(res *Resolution) []string {
	var names []string
	for _, in := range res.Plan() {
		names = append(names, in.Name)
	}
	return names
}
