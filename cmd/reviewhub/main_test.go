package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokmz/reviewhub"
	"github.com/tokmz/reviewhub/middleware"
	"github.com/tokmz/reviewhub/pkg/config"
	"github.com/tokmz/reviewhub/pkg/logger"
	"github.com/tokmz/reviewhub/pkg/review"
)

const testConfig = `
server:
  mode: test
log:
  level: error
  format: console
database:
  type: sqlite
  dsn: "file:%s?mode=memory&cache=shared"
  max_open_conns: 1
  tracing: false
cache:
  driver: memory
  default_ttl: 1m
tracing:
  exporter: noop
admin:
  secret: s3cret
ratelimit:
  enabled: false
seed:
  file: %s
`

const testSeed = `
reviews:
  - title: Dune
    content_type: book
    cover_image_url: https://img.example/dune.png
    review_markdown: "# Dune"
    rating: PEAK_FICTION
`

type envelope struct {
	Code    int             `json:"code"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func newTestServer(t *testing.T) (*app, *httptest.Server) {
	t.Helper()
	return newTestServerWith(t, "")
}

// newTestServerWith extra 追加到测试配置末尾
func newTestServerWith(t *testing.T, extra string) (*app, *httptest.Server) {
	t.Helper()
	dir := t.TempDir()
	seed := filepath.Join(dir, "seed.yaml")
	require.NoError(t, os.WriteFile(seed, []byte(testSeed), 0o644))
	path := filepath.Join(dir, "config.yaml")
	cfg := fmt.Sprintf(testConfig, strings.ReplaceAll(t.Name(), "/", "_"), seed) + extra
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))

	a, engine, err := setup(context.Background(), path)
	require.NoError(t, err)

	srv := httptest.NewServer(engine.Handler())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = engine.Shutdown(ctx)
		srv.Close()
		a.loader.Close()
	})
	return a, srv
}

func doJSON(t *testing.T, method, url, body string, admin bool) (int, envelope) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if admin {
		req.Header.Set(middleware.AdminTokenHeader, "s3cret")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func TestServer_StatusAndHealth(t *testing.T) {
	_, srv := newTestServer(t)

	code, env := doJSON(t, http.MethodGet, srv.URL+"/", "", false)
	require.Equal(t, http.StatusOK, code)
	var status StatusResp
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.Equal(t, "online", status.Status)
	assert.NotEmpty(t, status.Msg)

	code, env = doJSON(t, http.MethodGet, srv.URL+"/healthz", "", false)
	require.Equal(t, http.StatusOK, code)
	var health HealthResp
	require.NoError(t, json.Unmarshal(env.Data, &health))
	assert.Equal(t, "ok", health.Database)
	assert.Equal(t, "ok", health.Cache)
}

func TestServer_SeededList(t *testing.T) {
	_, srv := newTestServer(t)

	code, env := doJSON(t, http.MethodGet, srv.URL+"/reviews/", "", false)
	require.Equal(t, http.StatusOK, code)
	var page struct {
		List  []review.Review `json:"list"`
		Total int             `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.Equal(t, 1, page.Total)
	assert.Equal(t, "Dune", page.List[0].Title)
}

func TestServer_BareReviews(t *testing.T) {
	_, srv := newTestServerWith(t, "reviews:\n  response_mode: bare\n")

	resp, err := http.Get(srv.URL + "/reviews/")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get(reviewhub.HeaderTotalCount))
	var list []review.Review
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, "Dune", list[0].Title)

	missing, err := http.Get(srv.URL + "/reviews/999")
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
	var detail reviewhub.ErrorDetail
	require.NoError(t, json.NewDecoder(missing.Body).Decode(&detail))
	assert.Equal(t, review.ErrReviewNotFound.Code, detail.Code)
	assert.NotEmpty(t, detail.Detail)

	// 根路径仍使用统一响应
	code, env := doJSON(t, http.MethodGet, srv.URL+"/", "", false)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, http.StatusOK, env.Code)
}

func TestServer_Metrics(t *testing.T) {
	_, srv := newTestServer(t)

	doJSON(t, http.MethodGet, srv.URL+"/reviews/", "", false)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "reviewhub_http_requests_total")
	assert.Contains(t, string(body), "reviewhub_ws_")
}

func TestServer_CreateNotifiesListRoom(t *testing.T) {
	a, srv := newTestServer(t)

	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/alice?page=" + review.ListRoom
	header := http.Header{"Origin": []string{"http://localhost:4321"}}
	conn, resp, err := websocket.DefaultDialer.Dial(u, header)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	defer conn.Close()

	require.Eventually(t, func() bool {
		return a.hub.Registry().MemberCount(review.ListRoom) == 1
	}, 2*time.Second, 5*time.Millisecond)

	body := `{"title":"Hades","content_type":"game","cover_image_url":"https://img.example/h.png","review_markdown":"run it back","rating":5}`
	code, env := doJSON(t, http.MethodPost, srv.URL+"/reviews/", body, true)
	require.Equal(t, http.StatusOK, code, env.Message)
	var created review.Review
	require.NoError(t, json.Unmarshal(env.Data, &created))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg map[string]any
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, review.EventCreated, msg["type"])
	assert.EqualValues(t, created.ID, msg["review_id"])
}

func TestServer_WSRejectsForeignOrigin(t *testing.T) {
	_, srv := newTestServer(t)

	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/bob"
	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(u, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestApp_Reload(t *testing.T) {
	a, _ := newTestServer(t)

	next := *a.cfg
	next.Log.Level = "debug"
	next.Admin.Secret = "rotated"
	a.reload(&next)

	assert.Equal(t, logger.DebugLevel, a.log.Level())
	assert.Equal(t, "rotated", a.secret())
}

func TestApp_Jobs(t *testing.T) {
	a, _ := newTestServer(t)
	require.NotNil(t, a.jobs)

	names := make([]string, 0, 2)
	for _, e := range a.jobs.Entries() {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"relay-stats", "review-ids-rebuild"}, names)
	assert.NoError(t, a.jobs.Run("review-ids-rebuild"))
	assert.NoError(t, a.jobs.Run("relay-stats"))
}

func TestNewBus(t *testing.T) {
	bus, err := newBus(context.Background(), config.BusConfig{Driver: "none"}, nil, logger.NewNop())
	require.NoError(t, err)
	assert.Nil(t, bus)

	_, err = newBus(context.Background(), config.BusConfig{Driver: "carrier-pigeon"}, nil, logger.NewNop())
	assert.Error(t, err)
}

func TestNewHub_InvalidPolicy(t *testing.T) {
	_, err := newHub(config.RelayConfig{MalformedPolicy: "ignore", MaxConnections: 1}, nil, nil, logger.NewNop())
	assert.Error(t, err)
}
