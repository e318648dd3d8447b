package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propshare/internal/access"
	"propshare/internal/platform/config"
	"propshare/internal/registry/service"
	"propshare/pkg/domain"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBuildRoles(t *testing.T) {
	admin := "0x00000000000000000000000000000000000000a1"
	kyc := "0x00000000000000000000000000000000000000a3"
	path := filepath.Join(t.TempDir(), "roles.yaml")
	require.NoError(t, os.WriteFile(path, []byte("roles:\n  kyc_admin:\n    - "+kyc+"\n"), 0o600))

	roles, err := buildRoles(config.Server{AdminAddress: admin, RolesFile: path}, quietLogger())
	require.NoError(t, err)
	assert.True(t, roles.Has(access.RoleDefaultAdmin, domain.MustParseAddress(admin)))
	assert.True(t, roles.Has(access.RoleKYCAdmin, domain.MustParseAddress(kyc)))
	assert.False(t, roles.Has(access.RoleMinter, domain.MustParseAddress(kyc)))

	_, err = buildRoles(config.Server{AdminAddress: "admin"}, quietLogger())
	assert.Error(t, err)
}

func TestInMemoryWiring(t *testing.T) {
	ctx := context.Background()
	cfg := config.Server{
		JWTSigningKey: "wiring-test-signing-key",
		JWTIssuer:     "propshare",
		JWTAudience:   "propshare-api",
		Limits:        config.RateLimitConfig{Requests: 5, Window: time.Minute},
	}

	store, closeJournal, err := buildJournal(ctx, cfg, quietLogger())
	require.NoError(t, err)
	defer closeJournal()

	sinks, closeSinks, err := buildSinks(ctx, cfg, store, quietLogger())
	require.NoError(t, err)
	defer closeSinks()
	require.Len(t, sinks.all, 1)
	assert.Nil(t, sinks.projection)

	dispatcher := newDispatcher(cfg, sinks, quietLogger(), nil)
	svc := service.New(access.NewRoleTable(domain.Address{}), store, service.WithDispatcher(dispatcher))
	require.NoError(t, svc.Restore(ctx))

	limiter := newLimiter(cfg, sinks, quietLogger(), nil)
	require.NotNil(t, limiter)
	srv := httptest.NewServer(newRouter(cfg, svc, dispatcher, sinks, limiter, quietLogger()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	metricsResp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer metricsResp.Body.Close()
	assert.Equal(t, http.StatusOK, metricsResp.StatusCode)

	anon, err := http.Post(srv.URL+"/admin/pause", "application/json", nil)
	require.NoError(t, err)
	defer anon.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, anon.StatusCode)
}
