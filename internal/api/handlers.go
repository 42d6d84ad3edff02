package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/matzehuels/wheelwright/pkg/buildinfo"
	wwerrors "github.com/matzehuels/wheelwright/pkg/errors"
	"github.com/matzehuels/wheelwright/pkg/fetch"
	"github.com/matzehuels/wheelwright/pkg/metadata"
	"github.com/matzehuels/wheelwright/pkg/pep440"
	"github.com/matzehuels/wheelwright/pkg/pep508"
	"github.com/matzehuels/wheelwright/pkg/resolve"
	"github.com/matzehuels/wheelwright/pkg/store"
)

// ResolveRequest is the body of POST /v1/resolve.
type ResolveRequest struct {
	Requirements     []string `json:"requirements"`
	Constraints      []string `json:"constraints,omitempty"`
	PythonVersion    string   `json:"python_version,omitempty"`
	AllowPrereleases bool     `json:"allow_prereleases,omitempty"`
	Refresh          bool     `json:"refresh,omitempty"`
}

// ErrorResponse is the body of every non-2xx answer that has no record.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Code    string   `json:"code"`
	Details []string `json:"details,omitempty"`
}

// CacheStats is the body of GET /v1/cache/stats.
type CacheStats struct {
	Memory    metadata.Stats `json:"memory"`
	Persisted struct {
		Entries int   `json:"entries"`
		Bytes   int64 `json:"bytes"`
	} `json:"persisted"`
	Fetcher fetch.Stats `json:"fetcher"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error, details ...string) {
	code := wwerrors.GetCode(err)
	if code == "" {
		code = wwerrors.ErrCodeInternal
	}
	writeJSON(w, wwerrors.HTTPStatus(code), ErrorResponse{
		Error:   wwerrors.UserMessage(err),
		Code:    string(code),
		Details: details,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version": buildinfo.Version,
		"commit":  buildinfo.Commit,
		"date":    buildinfo.Date,
	})
}

func parseAll(lines []string) ([]pep508.Requirement, []string) {
	reqs, errs := pep508.ParseRequirements(lines)
	details := make([]string, 0, len(errs))
	for _, err := range errs {
		details = append(details, err.Error())
	}
	return reqs, details
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var body ResolveRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeError(w, wwerrors.Wrap(wwerrors.ErrCodeInvalidInput, err, "invalid request body"))
		return
	}
	if len(body.Requirements) == 0 {
		writeError(w, wwerrors.New(wwerrors.ErrCodeInvalidInput, "at least one requirement is needed"))
		return
	}
	if body.PythonVersion != "" && !pep440.IsValid(body.PythonVersion) {
		writeError(w, wwerrors.New(wwerrors.ErrCodeInvalidVersion, "invalid python_version %q", body.PythonVersion))
		return
	}
	roots, rootErrs := parseAll(body.Requirements)
	constraints, constraintErrs := parseAll(body.Constraints)
	if details := append(rootErrs, constraintErrs...); len(details) > 0 {
		writeError(w, wwerrors.New(wwerrors.ErrCodeInvalidRequirement, "invalid requirements"), details...)
		return
	}

	src := s.fetcher
	if body.Refresh {
		opts := s.cfg.Fetch
		opts.Refresh = true
		if opts.Logger == nil {
			opts.Logger = s.cfg.Logger
		}
		f, err := fetch.New(s.cfg.Index, s.cfg.Cache, opts)
		if err != nil {
			writeError(w, wwerrors.Wrap(wwerrors.ErrCodeInternal, err, "create fetcher"))
			return
		}
		src = f
	}

	ropts := s.cfg.Resolve
	ropts.AllowPrereleases = ropts.AllowPrereleases || body.AllowPrereleases
	if body.PythonVersion != "" {
		ropts.PythonVersion = body.PythonVersion
		ropts.Environment = pep508.Environment{}
	}
	if ropts.Logger == nil {
		ropts.Logger = s.cfg.Logger
	}
	ropts = ropts.WithDefaults()
	resolver := resolve.New(src, ropts).WithConstraints(constraints)

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.ResolveTimeout)
	defer cancel()
	res, err := resolver.Resolve(ctx, roots)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && r.Context().Err() == nil {
		err = wwerrors.Wrap(wwerrors.ErrCodeTimeout, err, "resolution timed out after %s", s.cfg.ResolveTimeout)
	}

	rec := store.NewRecord(uuid.NewString(), body.Requirements, ropts.PythonVersion, res, err, s.cfg.RecordTTL)
	if perr := s.cfg.Store.Put(r.Context(), rec); perr != nil {
		s.cfg.Logger.Warn("store resolution failed", "id", rec.ID, "err", perr)
	}
	w.Header().Set("Location", "/v1/resolutions/"+rec.ID)

	if err != nil {
		s.cfg.Logger.Info("resolution failed", "id", rec.ID, "err", err)
		writeJSON(w, wwerrors.HTTPStatus(wwerrors.GetCode(err)), rec)
		return
	}
	s.cfg.Logger.Info("resolved", "id", rec.ID, "packages", len(res.Packages), "backtracks", res.Stats.Backtracks)
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleListResolutions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, wwerrors.New(wwerrors.ErrCodeInvalidInput, "invalid limit %q", v))
			return
		}
		limit = n
	}
	recs, err := s.cfg.Store.List(r.Context(), limit)
	if err != nil {
		writeError(w, wwerrors.Wrap(wwerrors.ErrCodeInternal, err, "list resolutions"))
		return
	}
	if recs == nil {
		recs = []*store.Record{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleGetResolution(w http.ResponseWriter, r *http.Request) {
	rec, err := s.cfg.Store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteResolution(w http.ResponseWriter, r *http.Request) {
	if err := s.cfg.Store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	var out CacheStats
	out.Memory = s.cfg.Cache.Stats()
	out.Fetcher = s.fetcher.Stats()
	u, err := s.cfg.Cache.Usage(r.Context())
	if err != nil {
		writeError(w, wwerrors.Wrap(wwerrors.ErrCodeInternal, err, "cache usage"))
		return
	}
	out.Persisted.Entries = u.Entries
	out.Persisted.Bytes = u.Bytes
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	if err := s.cfg.Cache.Clear(r.Context()); err != nil {
		writeError(w, wwerrors.Wrap(wwerrors.ErrCodeInternal, err, "clear cache"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCacheInvalidate drops the listing for {name} and, with ?version=,
// that release's detail entry.
func (s *Server) handleCacheInvalidate(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "name")
	if err := wwerrors.ValidatePythonPackageName(raw); err != nil {
		writeError(w, err)
		return
	}
	name := pep508.NormalizeName(raw)
	s.cfg.Cache.Invalidate(r.Context(), metadata.Key(name, ""))
	if v := r.URL.Query().Get("version"); v != "" {
		s.cfg.Cache.Invalidate(r.Context(), metadata.Key(name, v))
	}
	w.WriteHeader(http.StatusNoContent)
}
