package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"application-tracker/internal/common/logger"
	"application-tracker/internal/common/observability"
	"application-tracker/internal/models"
	"application-tracker/internal/storage"
	"application-tracker/internal/tracker"
)

func TestHealthMux(t *testing.T) {
	obs := observability.New("tracker", nil)
	defer obs.Shutdown()
	store := tracker.New(storage.NewMemoryStorage(), logger.NewTestLogger(t), tracker.WithObservability(obs))
	require.NoError(t, store.Load(context.Background()))
	store.Add(context.Background(), models.NewApplication{JobTitle: "Go Dev", Company: "Acme", Location: "Remote"})

	srv := httptest.NewServer(newHealthMux(store))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/ready")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ready", body["status"])
	assert.EqualValues(t, store.Revision(), body["revision"])

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	types := map[string]int{}
	for _, line := range strings.Split(string(raw), "\n") {
		if fields := strings.Fields(line); len(fields) >= 3 && fields[0] == "#" && fields[1] == "TYPE" {
			types[fields[2]]++
		}
	}
	for name, n := range types {
		assert.Equal(t, 1, n, "metric family %s exposed more than once", name)
	}
	assert.Contains(t, types, "tracker_mutations_total")
	var otelMutations bool
	for name := range types {
		otelMutations = otelMutations || strings.HasPrefix(name, "tracker_store_mutations")
	}
	assert.True(t, otelMutations, "otel mutation counter missing from /metrics")
}

func TestRun_UsageErrors(t *testing.T) {
	assert.Equal(t, 2, run(nil))
	assert.Equal(t, 2, run([]string{"-no-such-flag"}))
}

func TestRun_OneShotCommands(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "file")
	t.Setenv("STORAGE_FILE_DIR", t.TempDir())
	t.Setenv("SYNC_ENABLED", "false")
	t.Setenv("LOGGING_LEVEL", "error")

	assert.Equal(t, 0, run([]string{"add", "-title", "Go Dev", "-company", "Acme", "-location", "Remote"}))
	assert.Equal(t, 0, run([]string{"list"}))
	assert.Equal(t, 2, run([]string{"status", "nope", "ghosted"}))
	assert.Equal(t, 2, run([]string{"frobnicate"}))
}
