package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strikearr/internal/api"
	"strikearr/internal/config"
	"strikearr/internal/ledger"
	"strikearr/internal/poller"
	"strikearr/internal/strike"
)

type querySourceStub struct {
	status     Status
	records    []strike.Record
	actions    []strike.Action
	channels   []string
	testErr    error
	lastFilter ledger.Filter
	lastLimit  int
}

func (s *querySourceStub) Status(context.Context) Status { return s.status }

func (s *querySourceStub) Strikes(_ context.Context, filter ledger.Filter) ([]strike.Record, error) {
	s.lastFilter = filter
	return s.records, nil
}

func (s *querySourceStub) Actions(_ context.Context, limit int) ([]strike.Action, error) {
	s.lastLimit = limit
	return s.actions, nil
}

func (s *querySourceStub) TestNotification(context.Context) ([]string, error) {
	return s.channels, s.testErr
}

func serve(t *testing.T, srv *apiServer, method, target, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	return w
}

func TestAPIServerHealthzSkipsAuth(t *testing.T) {
	srv := newAPIServer(config.API{Token: "secret"}, &querySourceStub{}, nil)
	w := serve(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAPIServerRequiresBearerToken(t *testing.T) {
	srv := newAPIServer(config.API{Token: "secret"}, &querySourceStub{}, nil)

	w := serve(t, srv, http.MethodGet, "/api/status", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(t, srv, http.MethodGet, "/api/status", "wrong")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(t, srv, http.MethodGet, "/api/status", "secret")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAPIServerStatus(t *testing.T) {
	started := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	stub := &querySourceStub{status: Status{
		Running:   true,
		PID:       42,
		StartedAt: started,
		Instances: []poller.Status{{Instance: "sonarr", State: poller.StateIdle, Cycles: 3}},
		Totals:    map[string]map[strike.Category]int{"sonarr": {strike.Stalled: 2}},
		Database:  ledger.DatabaseHealth{DBPath: "/tmp/ledger.db", IntegrityCheck: true},
	}}
	srv := newAPIServer(config.API{}, stub, nil)

	w := serve(t, srv, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp api.StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Running)
	assert.Equal(t, 42, resp.PID)
	assert.Equal(t, started, api.ParseTime(resp.StartedAt))
	require.Len(t, resp.Instances, 1)
	assert.EqualValues(t, 3, resp.Instances[0].Cycles)
	assert.Equal(t, 2, resp.Totals["sonarr"][string(strike.Stalled)])
	assert.Equal(t, []string{}, resp.Channels)
	assert.True(t, resp.Database.IntegrityCheck)
}

func TestAPIServerStrikesFilter(t *testing.T) {
	stub := &querySourceStub{records: []strike.Record{{
		Key:   strike.Key{InstanceID: "sonarr", Identity: "abc|Show", Category: strike.ImportFailed},
		Count: 2,
	}}}
	srv := newAPIServer(config.API{}, stub, nil)

	w := serve(t, srv, http.MethodGet, "/api/strikes?instance=sonarr&category=import-failed", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "sonarr", stub.lastFilter.InstanceID)
	assert.Equal(t, strike.ImportFailed, stub.lastFilter.Category)

	var resp api.StrikesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Records, 1)
	assert.Equal(t, 2, resp.Records[0].Count)

	w = serve(t, srv, http.MethodGet, "/api/strikes?category=bogus", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAPIServerActionsLimit(t *testing.T) {
	stub := &querySourceStub{}
	srv := newAPIServer(config.API{}, stub, nil)

	w := serve(t, srv, http.MethodGet, "/api/actions?limit=5000", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, maxActionsLimit, stub.lastLimit)

	var resp api.ActionsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotNil(t, resp.Actions)

	w = serve(t, srv, http.MethodGet, "/api/actions?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAPIServerTestNotify(t *testing.T) {
	stub := &querySourceStub{}
	srv := newAPIServer(config.API{}, stub, nil)

	w := serve(t, srv, http.MethodPost, "/api/test-notify", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp api.TestNotifyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Sent)

	stub.channels = []string{"ntfy"}
	stub.testErr = errors.New("ntfy returned 500")
	w = serve(t, srv, http.MethodPost, "/api/test-notify", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)

	stub.testErr = nil
	w = serve(t, srv, http.MethodPost, "/api/test-notify", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Sent)
	assert.Equal(t, []string{"ntfy"}, resp.Channels)

	w = serve(t, srv, http.MethodGet, "/api/test-notify", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestAPIServerServesMetrics(t *testing.T) {
	srv := newAPIServer(config.API{Token: "secret"}, &querySourceStub{}, nil)
	serve(t, srv, http.MethodGet, "/healthz", "")

	w := serve(t, srv, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "strikearr_api_requests_total")
}
