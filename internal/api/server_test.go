package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matzehuels/wheelwright/internal/metrics"
	"github.com/matzehuels/wheelwright/pkg/fetch"
	"github.com/matzehuels/wheelwright/pkg/metadata"
	"github.com/matzehuels/wheelwright/pkg/store"
)

// universe is a fetch.Index over a fixed set of releases keyed by name.
type universe struct {
	pkgs  map[string][]metadata.Release
	calls atomic.Int64
}

func (u *universe) Fetch(_ context.Context, req fetch.Request) ([]metadata.Release, error) {
	u.calls.Add(1)
	rels, ok := u.pkgs[req.Name]
	if !ok {
		return nil, metadata.ErrNotFound
	}
	return rels, nil
}

func rel(name, version string, deps ...string) metadata.Release {
	return metadata.Release{Name: name, Version: version, Dependencies: deps, HasDependencies: true}
}

func newTestServer(t *testing.T) (*Server, *universe, *httptest.Server) {
	t.Helper()
	u := &universe{pkgs: map[string][]metadata.Release{
		"a": {rel("a", "1.0", "c>=2.0")},
		"b": {rel("b", "1.0", "c<2.0")},
		"c": {rel("c", "1.5"), rel("c", "2.0"), rel("c", "2.1")},
		"x": {rel("x", "1.0"), rel("x", "1.1"), rel("x", "2.0")},
	}}
	srv, err := New(Config{Index: u, Metrics: metrics.New()})
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, u, ts
}

func post(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, _ := json.Marshal(body)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func do(t *testing.T, method, url string) *http.Response {
	t.Helper()
	req, _ := http.NewRequest(method, url, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func TestResolveAndFetchRecord(t *testing.T) {
	_, _, ts := newTestServer(t)

	resp := post(t, ts.URL+"/v1/resolve", ResolveRequest{Requirements: []string{"x>=1.0,<2.0"}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	rec := decode[store.Record](t, resp)
	if rec.Status != store.StatusResolved || rec.Versions["x"] != "1.1" {
		t.Fatalf("record = %+v", rec)
	}
	if loc := resp.Header.Get("Location"); loc != "/v1/resolutions/"+rec.ID {
		t.Errorf("Location = %q", loc)
	}

	got := decode[store.Record](t, do(t, http.MethodGet, ts.URL+"/v1/resolutions/"+rec.ID))
	if got.ID != rec.ID || got.Versions["x"] != "1.1" {
		t.Errorf("stored record = %+v", got)
	}

	list := decode[[]store.Record](t, do(t, http.MethodGet, ts.URL+"/v1/resolutions?limit=10"))
	if len(list) != 1 {
		t.Errorf("list = %d records", len(list))
	}

	if resp := do(t, http.MethodDelete, ts.URL+"/v1/resolutions/"+rec.ID); resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete status = %d", resp.StatusCode)
	}
	resp = do(t, http.MethodGet, ts.URL+"/v1/resolutions/"+rec.ID)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("get after delete status = %d", resp.StatusCode)
	}
	if e := decode[ErrorResponse](t, resp); e.Code != "NOT_FOUND" {
		t.Errorf("error code = %q", e.Code)
	}
}

func TestResolveConflict(t *testing.T) {
	_, _, ts := newTestServer(t)

	resp := post(t, ts.URL+"/v1/resolve", ResolveRequest{Requirements: []string{"a", "b"}})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
	rec := decode[store.Record](t, resp)
	if rec.Status != store.StatusConflict || rec.ErrorCode != "CONFLICT" {
		t.Errorf("record = %+v", rec)
	}
	if strings.Join(rec.Implicated, ",") != "a,b,c" {
		t.Errorf("Implicated = %v", rec.Implicated)
	}
}

func TestResolveRejectsBadInput(t *testing.T) {
	_, _, ts := newTestServer(t)
	tests := []struct {
		name string
		body string
		code string
	}{
		{"malformed json", `{"requirements":`, "INVALID_INPUT"},
		{"unknown field", `{"requirements":["x"],"bogus":1}`, "INVALID_INPUT"},
		{"empty", `{"requirements":[]}`, "INVALID_INPUT"},
		{"bad requirement", `{"requirements":["x>>1"]}`, "INVALID_REQUIREMENT"},
		{"bad python", `{"requirements":["x"],"python_version":"three"}`, "INVALID_VERSION"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(ts.URL+"/v1/resolve", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d", resp.StatusCode)
			}
			if e := decode[ErrorResponse](t, resp); e.Code != tt.code {
				t.Errorf("code = %q, want %q", e.Code, tt.code)
			}
		})
	}
}

func TestResolveConstraintsAndRefresh(t *testing.T) {
	_, u, ts := newTestServer(t)

	rec := decode[store.Record](t, post(t, ts.URL+"/v1/resolve", ResolveRequest{
		Requirements: []string{"x"},
		Constraints:  []string{"x<1.1"},
	}))
	if rec.Versions["x"] != "1.0" {
		t.Errorf("constrained x = %q", rec.Versions["x"])
	}
	calls := u.calls.Load()

	post(t, ts.URL+"/v1/resolve", ResolveRequest{Requirements: []string{"x"}})
	if got := u.calls.Load(); got != calls {
		t.Errorf("cached run hit the index: %d calls, want %d", got, calls)
	}
	post(t, ts.URL+"/v1/resolve", ResolveRequest{Requirements: []string{"x"}, Refresh: true})
	if got := u.calls.Load(); got == calls {
		t.Errorf("refresh did not hit the index")
	}
}

func TestCacheEndpoints(t *testing.T) {
	srv, u, ts := newTestServer(t)
	post(t, ts.URL+"/v1/resolve", ResolveRequest{Requirements: []string{"x"}})

	stats := decode[CacheStats](t, do(t, http.MethodGet, ts.URL+"/v1/cache/stats"))
	if stats.Memory.Entries == 0 || stats.Fetcher.Fetches == 0 {
		t.Errorf("stats = %+v", stats)
	}

	if resp := do(t, http.MethodDelete, ts.URL+"/v1/cache/X"); resp.StatusCode != http.StatusNoContent {
		t.Errorf("invalidate status = %d", resp.StatusCode)
	}
	if _, ok := srv.cfg.Cache.Get(context.Background(), "x"); ok {
		t.Errorf("x still cached after invalidate")
	}
	if resp := do(t, http.MethodDelete, ts.URL+"/v1/cache/-bad"); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid name status = %d", resp.StatusCode)
	}

	calls := u.calls.Load()
	if resp := do(t, http.MethodDelete, ts.URL+"/v1/cache"); resp.StatusCode != http.StatusNoContent {
		t.Errorf("clear status = %d", resp.StatusCode)
	}
	post(t, ts.URL+"/v1/resolve", ResolveRequest{Requirements: []string{"x"}})
	if u.calls.Load() == calls {
		t.Errorf("resolve after clear did not refetch")
	}
}

func TestHealthVersionMetrics(t *testing.T) {
	_, _, ts := newTestServer(t)

	if resp := do(t, http.MethodGet, ts.URL+"/healthz"); resp.StatusCode != http.StatusOK {
		t.Errorf("healthz status = %d", resp.StatusCode)
	}
	v := decode[map[string]string](t, do(t, http.MethodGet, ts.URL+"/version"))
	if v["version"] == "" {
		t.Errorf("version = %v", v)
	}
	if resp := do(t, http.MethodGet, ts.URL+"/metrics"); resp.StatusCode != http.StatusOK {
		t.Errorf("metrics status = %d", resp.StatusCode)
	}
}

func TestNewRequiresIndex(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("New without index succeeded")
	}
}

func TestServeShutsDownOnCancel(t *testing.T) {
	srv, _, _ := newTestServer(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/healthz"
	var resp *http.Response
	for i := 0; i < 50; i++ {
		if resp, err = http.Get(url); err == nil {
			resp.Body.Close()
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("server never answered: %v", err)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
