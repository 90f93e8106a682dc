package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/atinyakov/shorturl-microservice/internal/app/server"
	"github.com/atinyakov/shorturl-microservice/internal/app/service"
	"github.com/atinyakov/shorturl-microservice/internal/models"
	"github.com/atinyakov/shorturl-microservice/internal/storage"
)

type testResolver struct{}

func (testResolver) LookupHost(_ context.Context, host string) ([]string, error) {
	if strings.HasSuffix(host, ".invalid") {
		return nil, errors.New("no such host")
	}
	return []string{"93.184.216.34"}, nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	logger := zaptest.NewLogger(t)
	registry, err := storage.CreateMemoryStorage()
	require.NoError(t, err)

	svc := service.NewURL(service.NewValidator(testResolver{}, 0, logger), registry, logger)
	ts := httptest.NewServer(server.Init(logger, "10.0.0.0/8", svc))
	t.Cleanup(ts.Close)
	return ts
}

func noRedirect(*http.Request, []*http.Request) error {
	return http.ErrUseLastResponse
}

func submit(t *testing.T, ts *httptest.Server, raw string) map[string]any {
	t.Helper()

	resp, err := ts.Client().PostForm(ts.URL+"/api/shorturl", url.Values{"url": {raw}})
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func resolve(t *testing.T, ts *httptest.Server, id string) *http.Response {
	t.Helper()

	client := ts.Client()
	client.CheckRedirect = noRedirect

	resp, err := client.Get(ts.URL + "/api/shorturl/" + id)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestRoundTrip(t *testing.T) {
	ts := newTestServer(t)

	out := submit(t, ts, "https://www.freecodecamp.org")
	assert.Equal(t, "https://www.freecodecamp.org/", out["original_url"])
	assert.EqualValues(t, 1, out["short_url"])

	resp := resolve(t, ts, "1")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "https://www.freecodecamp.org/", resp.Header.Get("Location"))

	resp = resolve(t, ts, "2")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"No short URL found"}`, string(body))
}

func TestSubmitIdempotent(t *testing.T) {
	ts := newTestServer(t)

	first := submit(t, ts, "https://www.freecodecamp.org")
	second := submit(t, ts, "HTTPS://WWW.freecodecamp.org:443")
	other := submit(t, ts, "https://example.com/path?q=1")

	assert.Equal(t, first, second)
	assert.EqualValues(t, 2, other["short_url"])
}

func TestSubmitRejected(t *testing.T) {
	ts := newTestServer(t)

	for _, raw := range []string{"ftp:/john-doe.invalid", "not a url", "", "https://john-doe.invalid"} {
		out := submit(t, ts, raw)
		assert.Equal(t, map[string]any{"error": "invalid url"}, out, raw)
	}

	resp := resolve(t, ts, "1")
	body, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"error":"No short URL found"}`, string(body))
}

func TestSubmitJSONNonString(t *testing.T) {
	ts := newTestServer(t)

	for _, body := range []string{`{"url":123}`, `[]`, `{"url":null}`} {
		resp, err := ts.Client().Post(ts.URL+"/api/shorturl", "application/json", strings.NewReader(body))
		require.NoError(t, err)

		out, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode, body)
		assert.JSONEq(t, `{"error":"invalid url"}`, string(out), body)
	}

	resp, err := ts.Client().Post(ts.URL+"/api/shorturl", "application/json", strings.NewReader(`{"url":`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestResolveMalformedIDs(t *testing.T) {
	ts := newTestServer(t)
	submit(t, ts, "https://www.freecodecamp.org")

	for _, id := range []string{"0", "-1", "abc", "1abc", "0x1", "99999999999999999999"} {
		resp := resolve(t, ts, id)
		body, _ := io.ReadAll(resp.Body)
		assert.JSONEq(t, `{"error":"No short URL found"}`, string(body), id)
	}
}

func TestConcurrentSubmissions(t *testing.T) {
	ts := newTestServer(t)

	const n = 32
	ids := make([]int64, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			resp, err := ts.Client().PostForm(ts.URL+"/api/shorturl", url.Values{"url": {"https://example.com"}})
			if !assert.NoError(t, err) {
				return
			}
			defer resp.Body.Close()

			var out models.Response
			if assert.NoError(t, json.NewDecoder(resp.Body).Decode(&out)) {
				ids[i] = out.ShortURL
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.EqualValues(t, 1, id)
	}
}

func TestStatsSubnet(t *testing.T) {
	ts := newTestServer(t)
	submit(t, ts, "https://www.freecodecamp.org")

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/internal/stats", nil)
	require.NoError(t, err)

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	req.Header.Set("X-Real-IP", "10.1.2.3")
	resp, err = ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stats models.Stats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, 1, stats.URLs)
}

func TestRoutes(t *testing.T) {
	ts := newTestServer(t)

	resp, err := ts.Client().Get(ts.URL + "/ping")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = ts.Client().Get(ts.URL + "/nowhere")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/shorturl", nil)
	resp, err = ts.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
