package pypi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/opencontainers/go-digest"

	"github.com/matzehuels/wheelwright/pkg/fetch"
	"github.com/matzehuels/wheelwright/pkg/integrations"
	"github.com/matzehuels/wheelwright/pkg/metadata"
)

// DefaultBaseURL is the PyPI JSON API root.
const DefaultBaseURL = "https://pypi.org/pypi"

// Client provides access to the PyPI JSON API.
//
// Client implements [fetch.Index]: it makes one attempt per call and leaves
// retries, caching and the concurrency bound to the fetcher.
//
// All methods are safe for concurrent use by multiple goroutines.
type Client struct {
	*integrations.Client
	baseURL string
}

// NewClient creates a PyPI client rooted at baseURL (typically
// [DefaultBaseURL] or a mirror exposing the same JSON API). A nil
// httpClient selects [integrations.SharedHTTPClient].
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		Client: integrations.NewClient(httpClient, map[string]string{
			"Accept":     "application/json",
			"User-Agent": "wheelwright",
		}),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// BaseURL returns the index root the client queries.
func (c *Client) BaseURL() string { return c.baseURL }

// Fetch answers a listing request (empty Version) with every published
// release of the project, or a versioned request with that release's full
// metadata.
//
// Listings carry dependency data only for the project's latest release;
// the others have HasDependencies false and must be fetched individually
// once selected.
//
// Returns [integrations.ErrNotFound] if the project or release does not exist.
func (c *Client) Fetch(ctx context.Context, req fetch.Request) ([]metadata.Release, error) {
	name := integrations.NormalizePkgName(req.Name)
	if req.Version == "" {
		return c.FetchProject(ctx, name)
	}
	r, err := c.FetchRelease(ctx, name, req.Version)
	if err != nil {
		return nil, err
	}
	return []metadata.Release{r}, nil
}

// FetchProject lists every release of a project that has at least one
// distribution file.
func (c *Client) FetchProject(ctx context.Context, name string) ([]metadata.Release, error) {
	var data projectResponse
	if err := c.Get(ctx, fmt.Sprintf("%s/%s/json", c.baseURL, url.PathEscape(name)), &data); err != nil {
		if errors.Is(err, integrations.ErrNotFound) {
			return nil, fmt.Errorf("%w: pypi project %s", err, name)
		}
		return nil, err
	}

	out := make([]metadata.Release, 0, len(data.Releases))
	for version, files := range data.Releases {
		if len(files) == 0 {
			continue
		}
		r := releaseFromFiles(name, version, files)
		if version == data.Info.Version {
			r.Dependencies = slices.Clone(data.Info.RequiresDist)
			r.HasDependencies = true
			if r.RequiresPython == "" {
				r.RequiresPython = data.Info.RequiresPython
			}
		}
		out = append(out, r)
	}
	metadata.SortReleases(out)
	return out, nil
}

// FetchRelease returns the full metadata of one release, including its
// declared dependencies.
func (c *Client) FetchRelease(ctx context.Context, name, version string) (metadata.Release, error) {
	var data releaseResponse
	u := fmt.Sprintf("%s/%s/%s/json", c.baseURL, url.PathEscape(name), url.PathEscape(version))
	if err := c.Get(ctx, u, &data); err != nil {
		if errors.Is(err, integrations.ErrNotFound) {
			return metadata.Release{}, fmt.Errorf("%w: pypi release %s==%s", err, name, version)
		}
		return metadata.Release{}, err
	}

	r := releaseFromFiles(name, version, data.URLs)
	r.Dependencies = slices.Clone(data.Info.RequiresDist)
	r.HasDependencies = true
	if r.RequiresPython == "" {
		r.RequiresPython = data.Info.RequiresPython
	}
	if data.Info.Yanked {
		r.Yanked = true
		r.YankedReason = data.Info.YankedReason
	}
	return r, nil
}

// releaseFromFiles builds a Release from the distribution files of one
// version. The representative artifact is a universal wheel when one
// exists, then the sdist, then the first file. A release counts as yanked
// only when every file is.
func releaseFromFiles(name, version string, files []apiFile) metadata.Release {
	r := metadata.Release{Name: name, Version: version}
	if len(files) == 0 {
		return r
	}

	best := pickFile(files)
	r.URL = best.URL
	r.Filename = best.Filename
	r.RequiresPython = best.RequiresPython
	if best.Digests.SHA256 != "" {
		r.Digest = digest.NewDigestFromEncoded(digest.SHA256, best.Digests.SHA256)
	}
	if t, err := time.Parse(time.RFC3339Nano, best.UploadTime); err == nil {
		r.UploadTime = t.UTC()
	}

	r.Yanked = true
	for _, f := range files {
		if !f.Yanked {
			r.Yanked = false
			break
		}
	}
	if r.Yanked {
		r.YankedReason = files[0].YankedReason
	}
	return r
}

func pickFile(files []apiFile) apiFile {
	for _, f := range files {
		if f.PackageType == "bdist_wheel" && strings.HasSuffix(f.Filename, "-none-any.whl") {
			return f
		}
	}
	for _, f := range files {
		if f.PackageType == "sdist" {
			return f
		}
	}
	return files[0]
}

type projectResponse struct {
	Info     apiInfo              `json:"info"`
	Releases map[string][]apiFile `json:"releases"`
}

type releaseResponse struct {
	Info apiInfo   `json:"info"`
	URLs []apiFile `json:"urls"`
}

type apiInfo struct {
	Name           string   `json:"name"`
	Version        string   `json:"version"`
	RequiresDist   []string `json:"requires_dist"`
	RequiresPython string   `json:"requires_python"`
	Yanked         bool     `json:"yanked"`
	YankedReason   string   `json:"yanked_reason"`
}

type apiFile struct {
	Filename       string     `json:"filename"`
	URL            string     `json:"url"`
	PackageType    string     `json:"packagetype"`
	RequiresPython string     `json:"requires_python"`
	Yanked         bool       `json:"yanked"`
	YankedReason   string     `json:"yanked_reason"`
	UploadTime     string     `json:"upload_time_iso_8601"`
	Digests        apiDigests `json:"digests"`
}

type apiDigests struct {
	SHA256 string `json:"sha256"`
}
