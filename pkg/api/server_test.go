package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apimocks "github.com/goran-ethernal/IndexGraph/internal/api/mocks"
	"github.com/goran-ethernal/IndexGraph/internal/common"
	"github.com/goran-ethernal/IndexGraph/internal/logger"
	"github.com/goran-ethernal/IndexGraph/pkg/config"
	"github.com/goran-ethernal/IndexGraph/pkg/indexer"
	"github.com/stretchr/testify/require"
)

func testAPIConfig(addr string, cors bool) *config.APIConfig {
	return &config.APIConfig{
		Enabled:       true,
		ListenAddress: addr,
		ReadTimeout:   common.Duration{Duration: 5 * time.Second},
		WriteTimeout:  common.Duration{Duration: 10 * time.Second},
		IdleTimeout:   common.Duration{Duration: 60 * time.Second},
		CORS: config.CORSConfig{
			Enabled:        cors,
			AllowedOrigins: []string{"https://example.com"},
		},
	}
}

func TestNewServer(t *testing.T) {
	t.Parallel()

	server := NewServer(testAPIConfig("localhost:8080", false), apimocks.NewStatusProvider(t), logger.NewNopLogger())

	require.NotNil(t, server.handler)
	require.NotNil(t, server.provider)
	require.Equal(t, "localhost:8080", server.server.Addr)
	require.Equal(t, 5*time.Second, server.server.ReadTimeout)
	require.Equal(t, 10*time.Second, server.server.WriteTimeout)
	require.Equal(t, 60*time.Second, server.server.IdleTimeout)
}

func TestServer_Routes(t *testing.T) {
	t.Parallel()

	provider := apimocks.NewStatusProvider(t)
	provider.EXPECT().Status().Return(testStatuses).Maybe()
	provider.EXPECT().StatusByID("prices::eth").Return(testStatuses[1], true).Maybe()

	server := NewServer(testAPIConfig(":0", true), provider, logger.NewNopLogger())
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)

	tests := []struct {
		name           string
		method         string
		path           string
		expectedStatus int
	}{
		{name: "health", method: http.MethodGet, path: "/health", expectedStatus: http.StatusOK},
		{name: "list", method: http.MethodGet, path: "/api/v1/indexers", expectedStatus: http.StatusOK},
		{name: "one", method: http.MethodGet, path: "/api/v1/indexers/prices::eth", expectedStatus: http.StatusOK},
		{name: "read only", method: http.MethodPost, path: "/api/v1/indexers", expectedStatus: http.StatusMethodNotAllowed},
		{name: "unknown route", method: http.MethodGet, path: "/api/v1/unknown", expectedStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequestWithContext(t.Context(), tt.method, ts.URL+tt.path, nil)
			require.NoError(t, err)
			req.Header.Set("Origin", "https://example.com")

			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			require.Equal(t, tt.expectedStatus, resp.StatusCode)
			require.Equal(t, "https://example.com", resp.Header.Get("Access-Control-Allow-Origin"))
		})
	}

	resp, err := http.Get(ts.URL + "/api/v1/indexers/prices::eth") //nolint:noctx
	require.NoError(t, err)
	defer resp.Body.Close()

	var got indexer.Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Equal(t, []string{"clock"}, got.Parents)
}

func TestServer_Start_Disabled(t *testing.T) {
	t.Parallel()

	cfg := testAPIConfig(":0", false)
	cfg.Enabled = false

	server := NewServer(cfg, apimocks.NewStatusProvider(t), logger.NewNopLogger())
	require.NoError(t, server.Start(t.Context()))
}

func TestServer_Start_GracefulShutdown(t *testing.T) {
	t.Parallel()

	// reserve a free port
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	provider := apimocks.NewStatusProvider(t)
	provider.EXPECT().Status().Return(testStatuses).Maybe()

	server := NewServer(testAPIConfig(addr, false), provider, logger.NewNopLogger())

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- server.Start(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/health") //nolint:noctx
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
