package setup_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/jonboulle/clockwork"
	"github.com/robalyx/vaultstats/internal/rest"
	"github.com/robalyx/vaultstats/internal/setup"
	"github.com/robalyx/vaultstats/internal/setup/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const upstream = "http://vaultwarden.test"

func newTestApp(t *testing.T, token string, diagnostics bool) (*setup.App, *httpmock.MockTransport, *clockwork.FakeClock) {
	t.Helper()

	cfg := config.Default()
	cfg.Vaultwarden.URL = upstream
	cfg.Vaultwarden.AdminToken = token
	cfg.Cache.Diagnostics = diagnostics

	clock := clockwork.NewFakeClockAt(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	app := setup.NewApp(cfg, zap.NewNop(), clock)

	transport := httpmock.NewMockTransport()
	app.Client.GetRestyClient().SetTransport(transport)

	transport.RegisterResponder(http.MethodPost, upstream+"/admin", func(*http.Request) (*http.Response, error) {
		resp := httpmock.NewStringResponse(http.StatusFound, "")
		resp.Header.Set("Location", "/admin")
		resp.Header.Add("Set-Cookie", "VW_ADMIN=session; Path=/admin; HttpOnly")
		return resp, nil
	})
	transport.RegisterResponder(http.MethodGet, upstream+"/admin/users", httpmock.NewStringResponder(http.StatusOK, `[
		{"email": "a@example.com", "lastActive": "2024-01-30 08:00:00 +00"},
		{"email": "b@example.com", "lastActive": "2023-11-01 08:00:00 +00"},
		{"email": "c@example.com", "lastActive": null}
	]`))
	transport.RegisterResponder(http.MethodGet, upstream+"/admin/diagnostics/config",
		httpmock.NewStringResponder(http.StatusNotFound, ""))

	return app, transport, clock
}

func get(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestStatsEndToEnd(t *testing.T) {
	t.Parallel()

	app, transport, clock := newTestApp(t, "secret", true)
	handler := rest.NewServer(app.Stats, app.Logger)

	rec := get(t, handler, "/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"total_users":3,"active_users":1}`, rec.Body.String())

	// Diagnostics 404 is swallowed
	app.Stats.Wait()
	info := transport.GetCallCountInfo()
	assert.Equal(t, 1, info["POST "+upstream+"/admin"])
	assert.Equal(t, 1, info["GET "+upstream+"/admin/users"])
	assert.Equal(t, 1, info["GET "+upstream+"/admin/diagnostics/config"])

	// Served from cache inside the window
	clock.Advance(4 * time.Minute)
	rec = get(t, handler, "/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, transport.GetTotalCallCount())

	// Refetched after it, reusing the session
	clock.Advance(time.Minute)
	rec = get(t, handler, "/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	app.Stats.Wait()
	info = transport.GetCallCountInfo()
	assert.Equal(t, 1, info["POST "+upstream+"/admin"])
	assert.Equal(t, 2, info["GET "+upstream+"/admin/users"])
}

func TestStatsEndToEndMissingToken(t *testing.T) {
	t.Parallel()

	app, transport, _ := newTestApp(t, "", false)
	handler := rest.NewServer(app.Stats, app.Logger)

	rec := get(t, handler, "/stats")

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"ADMIN_TOKEN environment variable is required"}`, rec.Body.String())
	assert.Zero(t, transport.GetTotalCallCount())

	rec = get(t, handler, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStatsEndToEndDoesNotLeakSecrets(t *testing.T) {
	t.Parallel()

	app, transport, _ := newTestApp(t, "hunter2", false)
	transport.RegisterResponder(http.MethodGet, upstream+"/admin/users",
		httpmock.NewStringResponder(http.StatusBadGateway, "upstream down"))

	rec := get(t, rest.NewServer(app.Stats, app.Logger), "/stats")

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "hunter2")
	assert.NotContains(t, rec.Body.String(), "session")
	assert.Contains(t, rec.Body.String(), "502")
}
