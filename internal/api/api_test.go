package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strikearr/internal/api"
	"strikearr/internal/poller"
	"strikearr/internal/strike"
)

func TestFromActionConvertsCategoriesAndCounts(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	dto := api.FromAction(strike.Action{
		ID:         "a1",
		InstanceID: "sonarr",
		Identity:   "abc|Show",
		Kind:       strike.RemoveAndBlock,
		Categories: []strike.Category{strike.Stalled},
		Counts:     map[strike.Category]int{strike.Stalled: 3},
		Removed:    true,
		At:         at,
	})

	assert.Equal(t, "sonarr", dto.Instance)
	assert.Equal(t, string(strike.RemoveAndBlock), dto.Kind)
	assert.Equal(t, []string{string(strike.Stalled)}, dto.Categories)
	assert.Equal(t, 3, dto.Counts[string(strike.Stalled)])
	assert.Equal(t, "2026-03-01T12:00:00.000Z", dto.At)
	assert.Equal(t, at, api.ParseTime(dto.At))
}

func TestFromPollerStatusOmitsZeroTimes(t *testing.T) {
	dto := api.FromPollerStatus(poller.Status{Instance: "radarr", State: poller.StateIdle, LastDuration: 1500 * time.Millisecond})
	assert.Equal(t, "idle", dto.State)
	assert.Empty(t, dto.LastCycleAt)
	assert.Empty(t, dto.LastErrorAt)
	assert.EqualValues(t, 1500, dto.LastDurationMs)
}

func TestFromRecordsNeverNil(t *testing.T) {
	assert.NotNil(t, api.FromRecords(nil))
	assert.NotNil(t, api.FromActions(nil))
}

func TestBaseURL(t *testing.T) {
	cases := map[string]string{
		"127.0.0.1:9797": "http://127.0.0.1:9797",
		"0.0.0.0:9797":   "http://127.0.0.1:9797",
		":9797":          "http://127.0.0.1:9797",
		"localhost:80":   "http://localhost:80",
	}
	for bind, want := range cases {
		got, err := api.BaseURL(bind)
		require.NoError(t, err, bind)
		assert.Equal(t, want, got, bind)
	}
	_, err := api.BaseURL("")
	assert.Error(t, err)
}

func TestClientSendsBearerAndQuery(t *testing.T) {
	var gotAuth, gotInstance string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotInstance = r.URL.Query().Get("instance")
		_ = json.NewEncoder(w).Encode(api.StrikesResponse{Records: []api.StrikeRecord{{Instance: "sonarr", Count: 2}}})
	}))
	defer srv.Close()

	client, err := api.NewClient(strings.TrimPrefix(srv.URL, "http://"), "secret", time.Second)
	require.NoError(t, err)

	resp, err := client.Strikes(context.Background(), "sonarr")
	require.NoError(t, err)
	require.Len(t, resp.Records, 1)
	assert.Equal(t, 2, resp.Records[0].Count)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "sonarr", gotInstance)
}

func TestClientSurfacesStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: "unauthorized"})
	}))
	defer srv.Close()

	client, err := api.NewClient(strings.TrimPrefix(srv.URL, "http://"), "", time.Second)
	require.NoError(t, err)

	_, err = client.Status(context.Background())
	var statusErr *api.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusUnauthorized, statusErr.Code)
	assert.Equal(t, "unauthorized", statusErr.Message)
	assert.False(t, errors.Is(err, api.ErrUnavailable))
}

func TestClientUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := strings.TrimPrefix(srv.URL, "http://")
	srv.Close()

	client, err := api.NewClient(addr, "", time.Second)
	require.NoError(t, err)
	_, err = client.Actions(context.Background(), 5)
	assert.ErrorIs(t, err, api.ErrUnavailable)
}
