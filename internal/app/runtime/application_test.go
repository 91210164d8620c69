package runtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hbnb-network/catalog_layer/internal/config"
	"github.com/hbnb-network/catalog_layer/internal/platform/migrations"
	"github.com/hbnb-network/catalog_layer/pkg/logger"
)

func fileConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Storage: config.StorageConfig{Type: config.StorageFile, FilePath: filepath.Join(t.TempDir(), "file.json")},
		Server:  config.ServerConfig{Host: "127.0.0.1", Port: 5000, CORSOrigins: "*"},
	}
}

func TestNewWithFileStorage(t *testing.T) {
	cfg := fileConfig(t)
	cfg.RateLimit = config.RateLimitConfig{RPS: 100, Burst: 10}
	app, err := New(context.Background(), cfg, logger.NewDefault("test"))
	require.NoError(t, err)
	assert.Equal(t, "memory", app.Engine().Name())

	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/states", strings.NewReader(`{"name": "Nevada"}`)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))
	assert.JSONEq(t, `{"amenities":0,"cities":0,"places":0,"reviews":0,"states":1,"users":0}`, rec.Body.String())

	require.NoError(t, app.Shutdown(context.Background()))
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := fileConfig(t)
	cfg.Storage.Type = "db"
	_, err := New(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, "CATALOG_DB_DSN")
}

func TestNewWithDatabase(t *testing.T) {
	db, mock, err := sqlmock.NewWithDSN("runtime_catalog_test")
	require.NoError(t, err)
	defer db.Close()
	for i := 0; i < migrations.Count(); i++ {
		mock.ExpectExec(".*").WillReturnResult(sqlmock.NewResult(0, 0))
	}
	mock.ExpectClose()

	cfg := fileConfig(t)
	cfg.Storage.Type = config.StorageDB
	cfg.Database = config.DatabaseConfig{Driver: "sqlmock", DSN: "runtime_catalog_test", MaxOpenConns: 2, MaxIdleConns: 1, ConnMaxLifetime: 60}

	app, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "postgres", app.Engine().Name())

	require.NoError(t, app.Shutdown(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpenDatabaseRequiresSettings(t *testing.T) {
	_, err := openDatabase(context.Background(), config.DatabaseConfig{DSN: "x"})
	assert.ErrorContains(t, err, "driver")
	_, err = openDatabase(context.Background(), config.DatabaseConfig{Driver: "postgres"})
	assert.ErrorContains(t, err, "dsn")
}

func TestRunStopsOnCancel(t *testing.T) {
	app, err := New(context.Background(), fileConfig(t), nil)
	require.NoError(t, err)
	app.server.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, app.Run(ctx))
	assert.NoError(t, app.Shutdown(context.Background()))
}
