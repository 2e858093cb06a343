// Package remote fetches repository listings and file bodies from the GitHub
// contents API, memoizing every payload in a cache.Store.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/temirov/repoview/internal/cache"
	"github.com/temirov/repoview/internal/metrics"
	"github.com/temirov/repoview/internal/types"
)

const (
	contentTypeDirectory   = "dir"
	defaultAPITimeout      = 30 * time.Second
	defaultAPIBaseURL      = "https://api.github.com"
	defaultUserAgent       = "repoview"
	headerAccept           = "Accept"
	headerUserAgent        = "User-Agent"
	headerGitHubAPIVersion = "X-GitHub-Api-Version"
	acceptGitHubJSON       = "application/vnd.github+json"
	githubAPIVersionValue  = "2022-11-28"
	errorBodyLimit         = 8 * 1024
)

var (
	errMissingOwner      = errors.New("repository owner is required")
	errMissingRepository = errors.New("repository name is required")
	errMissingURL        = errors.New("download URL is required")
)

// NetworkError reports a failed remote fetch. Status is zero when no response
// was received.
type NetworkError struct {
	URL    string
	Status int
	Err    error
}

// Error returns the error string.
func (networkError *NetworkError) Error() string {
	if networkError.Status != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d: %v", networkError.URL, networkError.Status, networkError.Err)
	}
	return fmt.Sprintf("fetch %s: %v", networkError.URL, networkError.Err)
}

// Unwrap exposes the wrapped error.
func (networkError *NetworkError) Unwrap() error {
	return networkError.Err
}

type httpClient interface {
	Do(request *http.Request) (*http.Response, error)
}

// apiContent is the subset of a contents API record the viewer uses.
type apiContent struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Type        string `json:"type"`
	DownloadURL string `json:"download_url"`
}

// Client lists directories and reads files, cache first.
type Client struct {
	client    httpClient
	store     cache.Store
	logger    *zap.Logger
	apiBase   string
	userAgent string
}

// NewClient returns a Client. A nil http client gets a default one with a
// timeout, a nil store an in-memory one.
func NewClient(client httpClient, store cache.Store, logger *zap.Logger) *Client {
	if client == nil {
		client = &http.Client{Timeout: defaultAPITimeout}
	}
	if store == nil {
		store = cache.NewMemoryStore()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		client:    client,
		store:     store,
		logger:    logger,
		apiBase:   defaultAPIBaseURL,
		userAgent: defaultUserAgent,
	}
}

// WithAPIBase overrides the API host.
func (client *Client) WithAPIBase(base string) *Client {
	if base == "" {
		return client
	}
	client.apiBase = strings.TrimRight(base, "/")
	return client
}

// WithUserAgent sets the User-Agent sent on listing requests.
func (client *Client) WithUserAgent(agent string) *Client {
	if agent == "" {
		return client
	}
	client.userAgent = agent
	return client
}

// WithTimeout sets the per-request timeout when the default http client is in use.
func (client *Client) WithTimeout(duration time.Duration) *Client {
	if duration <= 0 {
		return client
	}
	if clientWithTimeout, ok := client.client.(*http.Client); ok {
		clientWithTimeout.Timeout = duration
	}
	return client
}

// ListDirectory returns the entries of path in owner/repo. The root is the empty path.
func (client *Client) ListDirectory(ctx context.Context, owner string, repo string, path string) ([]types.Entry, error) {
	if owner == "" {
		return nil, errMissingOwner
	}
	if repo == "" {
		return nil, errMissingRepository
	}
	key := cache.ListingKey(owner, repo, path)
	if payload, found := client.store.Get(key); found {
		metrics.RecordCacheLookup(metrics.KindListing, true)
		return decodeListing(payload)
	}
	metrics.RecordCacheLookup(metrics.KindListing, false)

	apiURL, buildErr := client.buildContentsURL(owner, repo, path)
	if buildErr != nil {
		return nil, buildErr
	}
	request, requestErr := client.buildRequest(ctx, apiURL, true)
	if requestErr != nil {
		return nil, requestErr
	}
	body, fetchErr := client.fetch(request, metrics.KindListing)
	if fetchErr != nil {
		return nil, fetchErr
	}
	entries, decodeErr := decodeListing(body)
	if decodeErr != nil {
		return nil, &NetworkError{URL: apiURL, Status: http.StatusOK, Err: decodeErr}
	}
	client.store.Set(key, body)
	client.logger.Debug("listing fetched", zap.String("owner", owner), zap.String("repo", repo), zap.String("path", path), zap.Int("entries", len(entries)))
	return entries, nil
}

// ReadFile returns the text served at downloadURL.
func (client *Client) ReadFile(ctx context.Context, downloadURL string) (string, error) {
	if downloadURL == "" {
		return "", errMissingURL
	}
	key := cache.FileKey(downloadURL)
	if payload, found := client.store.Get(key); found {
		metrics.RecordCacheLookup(metrics.KindFile, true)
		return payload, nil
	}
	metrics.RecordCacheLookup(metrics.KindFile, false)

	request, requestErr := client.buildRequest(ctx, downloadURL, false)
	if requestErr != nil {
		return "", requestErr
	}
	body, fetchErr := client.fetch(request, metrics.KindFile)
	if fetchErr != nil {
		return "", fetchErr
	}
	client.store.Set(key, body)
	client.logger.Debug("file fetched", zap.String("url", downloadURL))
	return body, nil
}

// fetch issues the request and returns the full body of a 200 response.
func (client *Client) fetch(request *http.Request, kind string) (string, error) {
	requestURL := request.URL.String()
	startedAt := time.Now()
	response, responseErr := client.client.Do(request)
	if responseErr != nil {
		metrics.RecordRemoteRequest(kind, 0, 0, time.Since(startedAt))
		return "", &NetworkError{URL: requestURL, Err: responseErr}
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		metrics.RecordRemoteRequest(kind, response.StatusCode, 0, time.Since(startedAt))
		body, _ := io.ReadAll(io.LimitReader(response.Body, errorBodyLimit))
		return "", &NetworkError{URL: requestURL, Status: response.StatusCode, Err: errors.New(strings.TrimSpace(string(body)))}
	}
	contentBytes, readErr := io.ReadAll(response.Body)
	metrics.RecordRemoteRequest(kind, response.StatusCode, len(contentBytes), time.Since(startedAt))
	if readErr != nil {
		return "", &NetworkError{URL: requestURL, Status: response.StatusCode, Err: readErr}
	}
	return string(contentBytes), nil
}

func (client *Client) buildRequest(ctx context.Context, rawURL string, apiRequest bool) (*http.Request, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	request, requestErr := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if requestErr != nil {
		return nil, requestErr
	}
	if apiRequest {
		if client.userAgent != "" {
			request.Header.Set(headerUserAgent, client.userAgent)
		}
		request.Header.Set(headerAccept, acceptGitHubJSON)
		request.Header.Set(headerGitHubAPIVersion, githubAPIVersionValue)
	}
	return request, nil
}

func (client *Client) buildContentsURL(owner string, repo string, itemPath string) (string, error) {
	parsedURL, parseErr := url.Parse(client.apiBase)
	if parseErr != nil {
		return "", parseErr
	}
	var builder strings.Builder
	builder.WriteString(strings.TrimSuffix(parsedURL.Path, "/"))
	builder.WriteString("/repos/")
	builder.WriteString(owner)
	builder.WriteByte('/')
	builder.WriteString(repo)
	builder.WriteString("/contents/")
	builder.WriteString(strings.Trim(strings.TrimSpace(itemPath), "/"))
	parsedURL.Path = builder.String()
	parsedURL.RawPath = ""
	return parsedURL.String(), nil
}

// decodeListing parses a contents API payload: an array for directories or a
// single object when the path names a file.
func decodeListing(payload string) ([]types.Entry, error) {
	trimmed := strings.TrimSpace(payload)
	var records []apiContent
	if strings.HasPrefix(trimmed, "{") {
		var single apiContent
		if err := json.Unmarshal([]byte(trimmed), &single); err != nil {
			return nil, fmt.Errorf("decode listing: %w", err)
		}
		records = []apiContent{single}
	} else if err := json.Unmarshal([]byte(trimmed), &records); err != nil {
		return nil, fmt.Errorf("decode listing: %w", err)
	}
	entries := make([]types.Entry, 0, len(records))
	for _, record := range records {
		entries = append(entries, toEntry(record))
	}
	return entries, nil
}

func toEntry(record apiContent) types.Entry {
	kind := types.EntryKindFile
	if record.Type == contentTypeDirectory {
		kind = types.EntryKindDirectory
	}
	return types.Entry{
		Name:        record.Name,
		Path:        record.Path,
		Kind:        kind,
		DownloadURL: record.DownloadURL,
	}
}
