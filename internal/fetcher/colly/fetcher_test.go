package collyfetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/bookharvest/internal/book"
)

var testAgents = []string{"agent-a", "agent-b", "agent-c"}

func TestFetcherURL(t *testing.T) {
	t.Parallel()

	f := New(Config{BaseURL: "https://www.goodreads.com/book/show/"}, nil)
	assert.Equal(t, "https://www.goodreads.com/book/show/42", f.URL(42))
}

func TestFetchSuccessUsesRotatingIdentity(t *testing.T) {
	t.Parallel()

	var (
		mu     sync.Mutex
		agents []string
		paths  []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		agents = append(agents, r.Header.Get("User-Agent"))
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>book</html>"))
	}))
	defer srv.Close()

	f := New(Config{BaseURL: srv.URL + "/book/show", UserAgents: testAgents, Timeout: time.Second}, nil)
	for _, id := range []int64{1, 2, 2} {
		doc, err := f.Fetch(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, id, doc.BookID)
		assert.Equal(t, http.StatusOK, doc.StatusCode)
		assert.Equal(t, "<html>book</html>", string(doc.Body))
		assert.Contains(t, testAgents, doc.UserAgent)
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"/book/show/1", "/book/show/2", "/book/show/2"}, paths)
	for _, ua := range agents {
		assert.Contains(t, testAgents, ua)
	}
}

func TestFetchCarriesNoCookies(t *testing.T) {
	t.Parallel()

	var (
		mu      sync.Mutex
		cookies []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		cookies = append(cookies, r.Header.Get("Cookie"))
		mu.Unlock()
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc", Path: "/"})
		_, _ = w.Write([]byte("<html>book</html>"))
	}))
	defer srv.Close()

	f := New(Config{BaseURL: srv.URL, UserAgents: testAgents, Timeout: time.Second}, nil)
	for _, id := range []int64{1, 2} {
		_, err := f.Fetch(context.Background(), id)
		require.NoError(t, err)
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"", ""}, cookies)
}

func TestFetchNonOKStatus(t *testing.T) {
	t.Parallel()

	for _, code := range []int{http.StatusNotFound, http.StatusAccepted, http.StatusServiceUnavailable} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(code)
		}))
		f := New(Config{BaseURL: srv.URL, UserAgents: testAgents, Timeout: time.Second}, nil)
		_, err := f.Fetch(context.Background(), 9)
		srv.Close()
		require.Error(t, err, "status %d", code)
		assert.True(t, errors.Is(err, ErrUnexpectedStatus), "status %d: %v", code, err)
	}
}

func TestFetchTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		select {
		case <-release:
		case <-time.After(2 * time.Second):
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	defer close(release)

	f := New(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, nil)
	_, err := f.Fetch(context.Background(), 1)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrUnexpectedStatus))
}

func TestFetchThrottleErrorSkipsRequest(t *testing.T) {
	t.Parallel()

	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f := New(Config{BaseURL: srv.URL}, throttleFunc(func(context.Context) error {
		return errors.New("stop")
	}))
	_, err := f.Fetch(context.Background(), 1)
	require.Error(t, err)
	assert.False(t, called)
}

func TestFetchCanceledContext(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f := New(Config{BaseURL: srv.URL, Timeout: time.Second}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := f.Fetch(ctx, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	f := New(Config{}, nil)
	start := time.Unix(0, 0)
	var (
		result   book.Document
		status   int
		fetchErr error
	)

	hooks := &stubHooks{}
	f.configureCollectorHooks(hooks, start, &result, &status, &fetchErr)
	if hooks.onResponse == nil || hooks.onError == nil {
		t.Fatal("expected hooks to be registered")
	}

	hooks.onResponse(&colly.Response{
		StatusCode: http.StatusOK,
		Body:       []byte("body"),
		Request: &colly.Request{
			URL: mustParseURL(t, "https://example.com/book/show/1"),
		},
	})
	if status != http.StatusOK || string(result.Body) != "body" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.URL != "https://example.com/book/show/1" || result.StatusCode != http.StatusOK {
		t.Fatalf("expected url and status copied, got %+v", result)
	}

	hooks.onError(&colly.Response{StatusCode: http.StatusNotFound}, errors.New("Not Found"))
	if fetchErr == nil || status != http.StatusNotFound {
		t.Fatalf("expected fetchErr and status set, got %v / %d", fetchErr, status)
	}
}

func TestUserAgentEmptyPool(t *testing.T) {
	t.Parallel()

	f := New(Config{}, nil)
	assert.Equal(t, "", f.userAgent())

	f = New(Config{UserAgents: testAgents}, nil)
	f.pick = func(int) int { return 2 }
	assert.Equal(t, "agent-c", f.userAgent())
}

type throttleFunc func(ctx context.Context) error

func (fn throttleFunc) Wait(ctx context.Context) error { return fn(ctx) }

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("failed to parse url %q: %v", raw, err)
	}
	return u
}

type stubHooks struct {
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) {
	s.onResponse = cb
}

func (s *stubHooks) OnError(cb colly.ErrorCallback) {
	s.onError = cb
}
