package ics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	appLog "slotcal/internal/log"
)

const (
	defaultFetchTimeout = 15 * time.Second
	defaultMemoryTTL    = 5 * time.Minute
	memoryCacheSize     = 64
	maxBodyBytes        = 16 << 20
)

var ErrEmptySource = errors.New("busy calendar source has no url")

// Source is one busy calendar feed.
type Source struct {
	ID   string
	Name string
	// URL is http(s), file:// or a plain filesystem path.
	URL string
}

// SourceError ties a fetch failure to its source.
type SourceError struct {
	Source Source
	Err    error
}

func (e *SourceError) Error() string { return fmt.Sprintf("source %s: %v", e.Source.ID, e.Err) }

func (e *SourceError) Unwrap() error { return e.Err }

// FetchResult is the body of one source and where it came from.
type FetchResult struct {
	Source    Source
	Body      []byte
	FromCache bool
}

// diskMeta holds the validators of the last good response.
type diskMeta struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// FetcherOptions tune a Fetcher. Zero values pick defaults.
type FetcherOptions struct {
	CacheDir  string
	MemoryTTL time.Duration
	Client    *http.Client
}

// Fetcher downloads busy calendars. Recent bodies are served from memory;
// older ones are revalidated with ETag/Last-Modified against a disk copy,
// which also covers network failures.
type Fetcher struct {
	client   *http.Client
	cacheDir string
	memory   *expirable.LRU[string, []byte]
}

func NewFetcher(opts FetcherOptions) *Fetcher {
	if opts.CacheDir == "" {
		opts.CacheDir = filepath.Join(os.TempDir(), "slotcal-ics")
	}
	if opts.MemoryTTL <= 0 {
		opts.MemoryTTL = defaultMemoryTTL
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: defaultFetchTimeout}
	}
	return &Fetcher{
		client:   opts.Client,
		cacheDir: opts.CacheDir,
		memory:   expirable.NewLRU[string, []byte](memoryCacheSize, nil, opts.MemoryTTL),
	}
}

// FetchAll fetches every source. Failed sources are logged and reported in
// the error slice; the rest still come back.
func (f *Fetcher) FetchAll(ctx context.Context, sources []Source) ([]FetchResult, []error) {
	results := make([]FetchResult, 0, len(sources))
	var errs []error
	for _, src := range sources {
		res, err := f.FetchOne(ctx, src)
		if err != nil {
			appLog.Error("ics fetch failed", err, "id", src.ID, "url", redactURL(src.URL))
			errs = append(errs, &SourceError{Source: src, Err: err})
			continue
		}
		results = append(results, res)
	}
	return results, errs
}

// FetchOne returns the body of a single source.
func (f *Fetcher) FetchOne(ctx context.Context, src Source) (FetchResult, error) {
	if strings.TrimSpace(src.URL) == "" {
		return FetchResult{}, ErrEmptySource
	}
	if body, ok := f.memory.Get(src.URL); ok {
		return FetchResult{Source: src, Body: body, FromCache: true}, nil
	}

	if path, ok := localPath(src.URL); ok {
		body, err := os.ReadFile(path)
		if err != nil {
			return FetchResult{}, fmt.Errorf("read %s: %w", path, err)
		}
		f.memory.Add(src.URL, body)
		return FetchResult{Source: src, Body: body}, nil
	}
	return f.fetchHTTP(ctx, src)
}

func (f *Fetcher) fetchHTTP(ctx context.Context, src Source) (FetchResult, error) {
	dir := f.cachePath(src.URL)
	meta, _ := loadMeta(dir)
	cached, _ := os.ReadFile(filepath.Join(dir, "body.ics"))

	fallback := func(cause error) (FetchResult, error) {
		if len(cached) == 0 {
			return FetchResult{}, cause
		}
		appLog.Warn("ics fetch failed, using disk copy", "id", src.ID, "url", redactURL(src.URL), "cause", cause.Error())
		return FetchResult{Source: src, Body: cached, FromCache: true}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return FetchResult{}, fmt.Errorf("build request: %w", err)
	}
	if len(cached) > 0 {
		if meta.ETag != "" {
			req.Header.Set("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.Header.Set("If-Modified-Since", meta.LastModified)
		}
	}

	appLog.Debug("ics fetch start", "id", src.ID, "url", redactURL(src.URL))
	resp, err := f.client.Do(req)
	if err != nil {
		return fallback(err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return fallback(fmt.Errorf("read body: %w", err))
		}
		next := diskMeta{
			URL:          src.URL,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		}
		if err := saveCache(dir, next, body); err != nil {
			appLog.Error("ics cache save failed", err, "id", src.ID)
		}
		f.memory.Add(src.URL, body)
		appLog.Info("ics fetch success", "id", src.ID, "url", redactURL(src.URL), "bytes", len(body))
		return FetchResult{Source: src, Body: body}, nil

	case http.StatusNotModified:
		if len(cached) == 0 {
			return FetchResult{}, errors.New("304 Not Modified without a cached body")
		}
		f.memory.Add(src.URL, cached)
		appLog.Debug("ics not modified", "id", src.ID)
		return FetchResult{Source: src, Body: cached, FromCache: true}, nil

	default:
		return fallback(fmt.Errorf("unexpected status %s", resp.Status))
	}
}

// Invalidate drops the in-memory copy of a source so the next fetch
// revalidates it.
func (f *Fetcher) Invalidate(rawURL string) {
	f.memory.Remove(rawURL)
}

func localPath(raw string) (string, bool) {
	if strings.HasPrefix(raw, "file://") {
		return strings.TrimPrefix(raw, "file://"), true
	}
	if !strings.Contains(raw, "://") {
		return raw, true
	}
	return "", false
}

func (f *Fetcher) cachePath(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func loadMeta(dir string) (diskMeta, error) {
	var meta diskMeta
	data, err := os.ReadFile(filepath.Join(dir, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return diskMeta{}, err
	}
	return meta, nil
}

func saveCache(dir string, meta diskMeta, body []byte) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	// Body first so meta never points at a missing body.
	if err := os.WriteFile(filepath.Join(dir, "body.ics"), body, 0o600); err != nil {
		return err
	}
	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "meta.json"), data, 0o600)
}

// redactURL keeps only scheme and host; feed URLs usually embed secrets.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "ics://...(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}
