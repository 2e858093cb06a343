package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/temirov/repoview/internal/navigator"
	"github.com/temirov/repoview/internal/remote"
	"github.com/temirov/repoview/internal/services/server"
	"github.com/temirov/repoview/internal/types"
	"github.com/temirov/repoview/internal/viewer"
)

type stubSource struct {
	listCalls atomic.Int64
	failPath  string
}

func (source *stubSource) ListDirectory(ctx context.Context, owner string, repo string, path string) ([]types.Entry, error) {
	source.listCalls.Add(1)
	if source.failPath != "" && path == source.failPath {
		return nil, &remote.NetworkError{URL: "https://api.example/" + path, Status: http.StatusForbidden, Err: errors.New("rate limited")}
	}
	switch path {
	case "":
		return []types.Entry{
			{Name: "src", Kind: types.EntryKindDirectory},
			{Name: "broken", Kind: types.EntryKindDirectory},
			{Name: "README.md", Kind: types.EntryKindFile, DownloadURL: "raw/README.md"},
		}, nil
	case "src":
		return []types.Entry{{Name: "main.ts", Kind: types.EntryKindFile, DownloadURL: "raw/src/main.ts"}}, nil
	}
	return nil, errors.New("unexpected listing " + path)
}

func (source *stubSource) ReadFile(ctx context.Context, downloadURL string) (string, error) {
	return "content of " + downloadURL, nil
}

func newTestServer(t *testing.T, source *stubSource) *httptest.Server {
	t.Helper()
	defaults := viewer.Parameters{Owner: "octo", Repo: "viewer", SelectedTab: viewer.TabPreview}
	viewerServer := server.NewServer(server.Config{
		Defaults: &defaults,
		NewSession: func(parameters viewer.Parameters) *viewer.Session {
			return viewer.NewSession(parameters, viewer.Options{Source: source, Navigator: navigator.New(0, nil)})
		},
	})
	httpServer := httptest.NewServer(viewerServer.Handler())
	t.Cleanup(httpServer.Close)
	return httpServer
}

func perform(t *testing.T, method string, target string) (int, string, string) {
	t.Helper()
	request, err := http.NewRequest(method, target, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	response, err := http.DefaultClient.Do(request)
	if err != nil {
		t.Fatalf("perform request: %v", err)
	}
	defer response.Body.Close()
	body, err := io.ReadAll(response.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return response.StatusCode, response.Header.Get("Content-Type"), string(body)
}

func TestRoutes(t *testing.T) {
	t.Parallel()
	source := &stubSource{failPath: "broken"}
	httpServer := newTestServer(t, source)

	testCases := []struct {
		name           string
		method         string
		target         string
		expectedStatus int
		expectedType   string
		expectedBody   string
	}{
		{name: "state", method: http.MethodGet, target: "/api/state", expectedStatus: http.StatusOK, expectedBody: `"selectedTab":"Preview"`},
		{name: "expand", method: http.MethodPost, target: "/api/expand?path=src", expectedStatus: http.StatusOK, expectedBody: `"state":"expanded"`},
		{name: "tree", method: http.MethodGet, target: "/api/tree", expectedStatus: http.StatusOK, expectedBody: `"path":"src/main.ts"`},
		{name: "file", method: http.MethodGet, target: "/api/file?path=src/main.ts", expectedStatus: http.StatusOK, expectedBody: `"content":"content of raw/src/main.ts"`},
		{name: "render", method: http.MethodGet, target: "/api/render?path=README.md", expectedStatus: http.StatusOK, expectedType: "text/html; charset=utf-8", expectedBody: "content of raw/README.md"},
		{name: "tab", method: http.MethodPost, target: "/api/tab?name=code", expectedStatus: http.StatusOK, expectedBody: `"selectedTab":"Code"`},
		{name: "stylesheet", method: http.MethodGet, target: "/api/stylesheet", expectedStatus: http.StatusOK, expectedType: "text/css; charset=utf-8", expectedBody: ".chroma"},
		{name: "unknown path", method: http.MethodPost, target: "/api/expand?path=missing", expectedStatus: http.StatusNotFound, expectedBody: "unknown path"},
		{name: "file as directory", method: http.MethodPost, target: "/api/expand?path=README.md", expectedStatus: http.StatusBadRequest},
		{name: "invalid tab", method: http.MethodPost, target: "/api/tab?name=Files", expectedStatus: http.StatusBadRequest},
		{name: "upstream failure", method: http.MethodPost, target: "/api/expand?path=broken", expectedStatus: http.StatusBadGateway, expectedBody: "rate limited"},
		{name: "wrong method", method: http.MethodGet, target: "/api/expand?path=src", expectedStatus: http.StatusMethodNotAllowed},
		{name: "bad repository", method: http.MethodGet, target: "/api/state?github=viewer", expectedStatus: http.StatusBadRequest},
		{name: "metrics", method: http.MethodGet, target: "/metrics", expectedStatus: http.StatusOK, expectedBody: "repoview_http_requests_total"},
	}
	for _, testCase := range testCases {
		status, contentType, body := perform(t, testCase.method, httpServer.URL+testCase.target)
		if status != testCase.expectedStatus {
			t.Fatalf("%s: expected status %d, got %d (%s)", testCase.name, testCase.expectedStatus, status, body)
		}
		if testCase.expectedType != "" && contentType != testCase.expectedType {
			t.Fatalf("%s: expected content type %q, got %q", testCase.name, testCase.expectedType, contentType)
		}
		if !strings.Contains(body, testCase.expectedBody) {
			t.Fatalf("%s: expected body to contain %q, got %s", testCase.name, testCase.expectedBody, body)
		}
	}
}

func TestSessionsAreSharedPerRepository(t *testing.T) {
	t.Parallel()
	source := &stubSource{}
	httpServer := newTestServer(t, source)

	for attempt := 0; attempt < 3; attempt++ {
		status, _, body := perform(t, http.MethodGet, httpServer.URL+"/api/state?github=https://github.com/octo/other")
		if status != http.StatusOK {
			t.Fatalf("unexpected status %d: %s", status, body)
		}
		var state viewer.State
		if err := json.Unmarshal([]byte(body), &state); err != nil {
			t.Fatalf("decode state: %v", err)
		}
		if state.Owner != "octo" || state.Repo != "other" {
			t.Fatalf("unexpected state %+v", state)
		}
	}
	if source.listCalls.Load() != 1 {
		t.Fatalf("expected the root listed once, got %d", source.listCalls.Load())
	}
}

func TestLaterRequestsUpdatePaneState(t *testing.T) {
	t.Parallel()
	source := &stubSource{}
	httpServer := newTestServer(t, source)
	base := httpServer.URL + "/api/state?github=octo/panes"

	testCases := []struct {
		name           string
		query          string
		expectedStatus int
		expected       viewer.State
	}{
		{name: "initial", query: "&preview=https://octo.dev", expectedStatus: http.StatusOK, expected: viewer.State{PreviewURL: "https://octo.dev", SelectedTab: viewer.TabPreview}},
		{name: "code tab hidden toolbar", query: "&tab=code&hideToolbar=true", expectedStatus: http.StatusOK, expected: viewer.State{PreviewURL: "https://octo.dev", HideToolbar: true, SelectedTab: viewer.TabCode}},
		{name: "absent values kept", query: "", expectedStatus: http.StatusOK, expected: viewer.State{PreviewURL: "https://octo.dev", HideToolbar: true, SelectedTab: viewer.TabCode}},
		{name: "other preview", query: "&preview=https://other.dev&hideToolbar=false", expectedStatus: http.StatusOK, expected: viewer.State{PreviewURL: "https://other.dev", SelectedTab: viewer.TabCode}},
	}
	for _, testCase := range testCases {
		status, _, body := perform(t, http.MethodGet, base+testCase.query)
		if status != testCase.expectedStatus {
			t.Fatalf("%s: unexpected status %d: %s", testCase.name, status, body)
		}
		var state viewer.State
		if err := json.Unmarshal([]byte(body), &state); err != nil {
			t.Fatalf("%s: decode state: %v", testCase.name, err)
		}
		if state.PreviewURL != testCase.expected.PreviewURL || state.HideToolbar != testCase.expected.HideToolbar || state.SelectedTab != testCase.expected.SelectedTab {
			t.Fatalf("%s: unexpected state %+v", testCase.name, state)
		}
	}
	if source.listCalls.Load() != 1 {
		t.Fatalf("expected one session, got %d root listings", source.listCalls.Load())
	}
}

func TestDefaultRepositoryRejectsInvalidPaneValue(t *testing.T) {
	t.Parallel()
	httpServer := newTestServer(t, &stubSource{})
	status, _, body := perform(t, http.MethodGet, httpServer.URL+"/api/state?tab=Files")
	if status != http.StatusBadRequest {
		t.Fatalf("expected bad request, got %d: %s", status, body)
	}
}

func TestServerRunServesUntilCanceled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	viewerServer := server.NewServer(server.Config{Address: "127.0.0.1:0"})
	addressCh := make(chan string, 1)
	errorCh := make(chan error, 1)
	go func() {
		errorCh <- viewerServer.Run(ctx, func(address string) {
			addressCh <- address
		})
	}()

	select {
	case address := <-addressCh:
		client := http.Client{Timeout: 2 * time.Second}
		response, err := client.Get("http://" + address + "/metrics")
		if err != nil {
			t.Fatalf("perform request: %v", err)
		}
		response.Body.Close()
		if response.StatusCode != http.StatusOK {
			t.Fatalf("unexpected status: %d", response.StatusCode)
		}
	case err := <-errorCh:
		t.Fatalf("server exited early: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatalf("server did not report its address")
	}

	cancel()
	select {
	case err := <-errorCh:
		if err != nil {
			t.Fatalf("unexpected run error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not shut down")
	}
}
