package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goran-ethernal/IndexGraph/internal/logger"
	"github.com/goran-ethernal/IndexGraph/pkg/config"
	"github.com/stretchr/testify/require"
)

func TestServer_Handler(t *testing.T) {
	cfg := &config.MetricsConfig{Enabled: true}
	cfg.ApplyDefaults()

	SafeHeightSet("metrics-test", 3600)
	UpdateOutcomeInc("metrics-test", "complete")

	srv := httptest.NewServer(NewServer(cfg, logger.NewNopLogger()).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `indexgraph_safe_height{indexer="metrics-test"} 3600`)
}

func TestServer_Disabled(t *testing.T) {
	s := NewServer(&config.MetricsConfig{Enabled: false}, logger.NewNopLogger())
	require.NoError(t, s.Start(t.Context()))
	require.NoError(t, s.Stop(t.Context()))
}
