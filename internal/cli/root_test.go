package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"booktrack/pkg/models"
)

func writeConfig(t *testing.T, serverURL string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "booktrack.yaml")
	body := fmt.Sprintf("server:\n  url: %s\nuser:\n  token: tkn\n", serverURL)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func run(t *testing.T, args ...string) error {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	RootCmd.SetArgs(args)
	return RootCmd.Execute()
}

func TestPlanListHitsAPI(t *testing.T) {
	var gotStatus, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotStatus = r.URL.Query().Get("status")
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(models.NewSuccessResponse([]models.PlanSummary{
			{PlanID: 3, Title: "Dune", Status: models.PlanStatusReading, CurrentPage: 40, TotalPages: 400},
		}))
	}))
	defer srv.Close()

	err := run(t, "--config", writeConfig(t, srv.URL), "plan", "list", "--status", "reading")
	require.NoError(t, err)
	assert.Equal(t, "READING", gotStatus)
	assert.Equal(t, "Bearer tkn", gotAuth)
}

func TestPlanListRejectsUnknownStatus(t *testing.T) {
	err := run(t, "--config", writeConfig(t, "http://127.0.0.1:1"), "plan", "list", "--status", "paused")
	assert.Error(t, err)
}

func TestTimerStopReportsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(models.ErrNoRunningTimer.ToHTTPError())
	}))
	defer srv.Close()

	err := run(t, "--config", writeConfig(t, srv.URL), "timer", "stop", "--page", "12")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NO_RUNNING_TIMER")
}
