package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"booktrack/pkg/models"
)

func TestLeaderboardDecodesEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/rankings", r.URL.Path)
		assert.Equal(t, "badge", r.URL.Query().Get("sort"))
		assert.Equal(t, "Bearer tkn", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(models.NewSuccessResponse([]models.RankingEntry{{Rank: 1, UserID: "u1", Value: "3 badges"}}))
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/api/v1", "tkn")
	entries, err := client.Leaderboard(context.Background(), models.MetricBadge, models.ScopeMonth)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "3 badges", entries[0].Value)
}

func TestErrorCarriesCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(models.ErrNoRunningTimer.ToHTTPError())
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "tkn").StopTimer(context.Background(), 10)
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "NO_RUNNING_TIMER", apiErr.Code)
}
