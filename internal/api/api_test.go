package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codex-k8s/localaictl/internal/catalog"
	"github.com/codex-k8s/localaictl/internal/engine"
	"github.com/codex-k8s/localaictl/internal/lifecycle"
	"github.com/codex-k8s/localaictl/internal/metrics"
	"github.com/codex-k8s/localaictl/internal/monitor"
	"github.com/codex-k8s/localaictl/internal/prefs"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubGateway struct {
	started []lifecycle.StartRequest
}

func (g *stubGateway) Start(_ context.Context, req lifecycle.StartRequest) (lifecycle.Outcome, error) {
	g.started = append(g.started, req)
	return lifecycle.NewOutcome("start", req.Services).Finish(nil), nil
}

func (g *stubGateway) Stop(_ context.Context, req lifecycle.StopRequest) (lifecycle.Outcome, error) {
	return lifecycle.NewOutcome("stop", req.Services).Finish(nil), nil
}

func (g *stubGateway) Status(_ context.Context, ids []string) (map[string]lifecycle.State, error) {
	out := make(map[string]lifecycle.State, len(ids))
	for _, id := range ids {
		out[id] = lifecycle.StateRunning
	}
	return out, nil
}

type stubMonitor struct{}

func (stubMonitor) ListContainers(context.Context) ([]monitor.Container, error) {
	return []monitor.Container{
		{ID: "c1", Name: "localai-caddy-1", Service: "caddy", Status: monitor.StatusRunning},
		{ID: "c2", Name: "localai-ollama-cpu-1", Service: "ollama-cpu", Status: monitor.StatusRunning},
	}, nil
}

func (stubMonitor) Stats(_ context.Context, id string) (monitor.Stats, error) {
	if id == "c1" {
		return monitor.Stats{CPUPercent: 7}, nil
	}
	return monitor.Stats{}, errors.New("container gone")
}

func (stubMonitor) Logs(_ context.Context, _ string, opts monitor.LogOptions) ([]monitor.LogRecord, error) {
	return []monitor.LogRecord{{Message: strings.Repeat("x", opts.Tail), Level: monitor.LevelInfo}}, nil
}

func (stubMonitor) Act(context.Context, string, monitor.Action) error { return nil }

type fixture struct {
	store   *prefs.MemoryStore
	gateway *stubGateway
	handler http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := prefs.NewMemoryStore(prefs.State{})
	gw := &stubGateway{}
	m := metrics.New()
	e, err := engine.New(engine.Options{
		Catalog: catalog.Default(),
		Store:   store,
		Gateway: gw,
		Monitor: stubMonitor{},
		Metrics: m,
	})
	require.NoError(t, err)
	return &fixture{store: store, gateway: gw, handler: NewServer(e, m, nil).Handler()}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	f.do(t, http.MethodPost, "/api/services/n8n/enable", "")
	rec = f.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `localai_services_toggles_total{action="enable",result="ok"} 1`)
}

func TestGetConfig(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/config", "")
	require.Equal(t, http.StatusOK, rec.Code)

	cfg := decode[ConfigView](t, rec)
	assert.Equal(t, "cpu", cfg.Profile)
	assert.Equal(t, "private", cfg.Environment)
	require.NotEmpty(t, cfg.Categories)
	assert.Equal(t, "infrastructure", cfg.Categories[0].Category)
	assert.Equal(t, "caddy", cfg.Categories[0].Services[0].ID)
	assert.True(t, cfg.Categories[0].Services[0].Enabled)
}

func TestToggleEndpoints(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/services/langfuse-web/enable", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[toggleResponse](t, rec)
	assert.Equal(t, "langfuse-web", resp.Change.Service)
	assert.ElementsMatch(t, []string{"langfuse-worker", "postgres", "clickhouse", "minio", "redis"}, resp.Change.AutoEnabled)

	rec = f.do(t, http.MethodPost, "/api/services/redis/disable", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decode[toggleResponse](t, rec)
	assert.Equal(t, []string{"langfuse-web", "langfuse-worker"}, resp.Change.AutoDisabled)
	assert.ElementsMatch(t, []string{"postgres", "clickhouse", "minio"}, resp.Change.Released)

	rec = f.do(t, http.MethodPost, "/api/services/caddy/disable", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	errResp := decode[errorResponse](t, rec)
	require.NotNil(t, errResp.Rejection)
	assert.Equal(t, "required", errResp.Rejection.Reason)

	rec = f.do(t, http.MethodPost, "/api/services/unknown/enable", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestToggleStoreFailureReturnsOptimisticConfig(t *testing.T) {
	f := newFixture(t)
	f.store.SaveErr = errors.New("read-only file system")

	rec := f.do(t, http.MethodPost, "/api/services/flowise/enable", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	resp := decode[errorResponse](t, rec)
	require.NotNil(t, resp.Config)
	assert.Contains(t, resp.Error, "read-only file system")

	var flowise *ServiceView
	for _, cv := range resp.Config.Categories {
		for i := range cv.Services {
			if cv.Services[i].ID == "flowise" {
				flowise = &cv.Services[i]
			}
		}
	}
	require.NotNil(t, flowise)
	assert.True(t, flowise.Enabled)
}

func TestToggleRefusedWhenPreferencesUnreadable(t *testing.T) {
	f := newFixture(t)
	f.store.LoadErr = errors.New("permission denied")

	rec := f.do(t, http.MethodPost, "/api/services/flowise/enable", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	resp := decode[errorResponse](t, rec)
	assert.Nil(t, resp.Config)
	assert.Contains(t, resp.Error, "permission denied")
	assert.Zero(t, f.store.Saves())
}

func TestBulkEndpoints(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/categories/database/enable", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[bulkResponse](t, rec)
	assert.Equal(t, "database", resp.Category)
	assert.Len(t, resp.Changes, 6)

	rec = f.do(t, http.MethodPost, "/api/services/disable-all", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decode[bulkResponse](t, rec)
	require.Len(t, resp.Rejected, 1)
	assert.Equal(t, "caddy", resp.Rejected[0].Subject)

	rec = f.do(t, http.MethodPost, "/api/categories/games/enable", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSelections(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPut, "/api/profile", `{"name":"gpu-nvidia"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "gpu-nvidia", decode[ConfigView](t, rec).Profile)

	rec = f.do(t, http.MethodPut, "/api/environment", `{"name":"public"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "public", decode[ConfigView](t, rec).Environment)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPut, "/api/profile", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPut, "/api/profile", `not json`).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPut, "/api/profile", `{"name":"tpu"}`).Code)
}

func TestEffectiveAndApply(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/services/ollama/enable", "")

	rec := f.do(t, http.MethodGet, "/api/effective?profile=gpu-nvidia", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ollama-gpu"`)
	assert.Contains(t, rec.Body.String(), `"ollama-pull-llama-gpu"`)

	rec = f.do(t, http.MethodPost, "/api/apply", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, f.gateway.started, 1)
	assert.Equal(t, []string{"caddy", "ollama-cpu", "ollama-pull-llama-cpu"}, f.gateway.started[0].Services)

	rec = f.do(t, http.MethodPost, "/api/stop", `{"all":true}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = f.do(t, http.MethodPost, "/api/stop", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStatusEndpoint(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	report := decode[engine.StatusReport](t, rec)
	require.Len(t, report.Services, 1)
	assert.Equal(t, lifecycle.StateRunning, report.Services[0].State)
}

func TestContainerEndpoints(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/containers?service=ollama", "")
	require.Equal(t, http.StatusOK, rec.Code)
	views := decode[[]engine.ContainerView](t, rec)
	require.Len(t, views, 1)
	assert.Equal(t, "ollama", views[0].Logical)

	rec = f.do(t, http.MethodGet, "/api/containers/c1/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"cpuPercent":7`)

	rec = f.do(t, http.MethodGet, "/api/containers/c2/stats", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/containers/c1/logs?tail=3&since=5m", "")
	require.Equal(t, http.StatusOK, rec.Code)
	records := decode[[]monitor.LogRecord](t, rec)
	require.Len(t, records, 1)
	assert.Equal(t, "xxx", records[0].Message)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/containers/c1/logs?since=yesterday", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/containers/c1/logs?tail=-1", "").Code)

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/containers/c1/actions/restart", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/containers/c1/actions/kill", "").Code)
}
