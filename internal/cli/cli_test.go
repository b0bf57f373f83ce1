package cli

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/pribylovaa/drrm-datacore/internal/metrics"
	"github.com/pribylovaa/drrm-datacore/internal/models"
	"github.com/pribylovaa/drrm-datacore/internal/seed"
	"github.com/pribylovaa/drrm-datacore/internal/storage/direct"
	"github.com/pribylovaa/drrm-datacore/migrations"
)

// Тесты команд:
//   - состав команд и глобальные флаги;
//   - seed: json/yaml, фильтр по коллекции;
//   - probe: none -> ошибка, direct поверх SQLite-файла со схемой -> connected,
//     без схемы -> error и ненулевой выход;
//   - служебные эндпойнты serve: /livez, /healthz, /metrics.

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

// sqliteFile — файл SQLite; withSchema — применить DDL прямого хранилища.
func sqliteFile(t *testing.T, withSchema bool) string {
	t.Helper()

	p := filepath.Join(t.TempDir(), "drrm.db")
	db, err := sql.Open(direct.DriverSQLite, p)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Ping())
	if withSchema {
		stmts, err := migrations.Direct()
		require.NoError(t, err)
		for _, stmt := range stmts {
			_, err := db.Exec(stmt)
			require.NoError(t, err, stmt)
		}
	}

	return p
}

func directConfig(dbPath string) string {
	return fmt.Sprintf(`
env: "prod"
store: { kind: "direct" }
direct:
  driver: "sqlite"
  host: "localhost"
  user: "portal"
  database: %q
`, dbPath)
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "datacore", cmd.Use)

	for _, name := range []string{"serve", "probe", "seed"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
	require.NotNil(t, cmd.PersistentFlags().Lookup("config"))
}

func TestInvalidFormat(t *testing.T) {
	_, err := execute(t, "seed", "--format", "xml")
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid format")
}

func TestSeed_JSON(t *testing.T) {
	out, err := execute(t, "seed", "--format", "json")
	require.NoError(t, err)

	var ds seed.Dataset
	require.NoError(t, json.Unmarshal([]byte(out), &ds))
	require.Equal(t, seed.MustLoad(), ds)
}

func TestSeed_CollectionYAML(t *testing.T) {
	out, err := execute(t, "seed", "-c", "services")
	require.NoError(t, err)

	var services []models.Service
	require.NoError(t, yaml.Unmarshal([]byte(out), &services))
	require.Equal(t, seed.MustLoad().Services, services)

	_, err = execute(t, "seed", "-c", "alerts")
	require.Error(t, err)
}

func TestPick(t *testing.T) {
	ds := seed.MustLoad()

	tests := []struct {
		entity models.Entity
		want   any
	}{
		{models.EntityNews, ds.News},
		{models.EntityServices, ds.Services},
		{models.EntityIncidents, ds.Incidents},
		{models.EntityGallery, ds.Gallery},
	}
	for _, tt := range tests {
		t.Run(string(tt.entity), func(t *testing.T) {
			got, err := pick(ds, tt.entity)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}

	_, err := pick(ds, models.Entity("alerts"))
	require.Error(t, err)
}

func TestProbe_NoneIsError(t *testing.T) {
	_, err := execute(t, "probe", "--config", writeConfig(t, `store: { kind: "none" }`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "nothing to probe")
}

func TestProbe_DirectSQLite(t *testing.T) {
	cfg := writeConfig(t, directConfig(sqliteFile(t, true)))

	out, err := execute(t, "probe", "--config", cfg, "--format", "json")
	require.NoError(t, err)

	var state models.ConnectionState
	require.NoError(t, json.Unmarshal([]byte(out), &state))
	require.Equal(t, models.ConnectionState{Kind: models.KindDirect, Status: models.StatusConnected}, state)
}

func TestProbe_DirectWithoutSchemaFails(t *testing.T) {
	cfg := writeConfig(t, directConfig(sqliteFile(t, false)))

	out, err := execute(t, "probe", "--config", cfg)
	require.Error(t, err)
	require.Contains(t, out, "kind=none status=error error=Failed to connect to the direct store")
}

func TestOpsMux(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics.New(reg).ObserveState(models.ConnectionState{Kind: models.KindNone, Status: models.StatusDisconnected})

	var ready atomic.Bool
	srv := httptest.NewServer(opsMux(&ready, reg))
	defer srv.Close()

	get := func(path string) (int, string) {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()

		var buf bytes.Buffer
		_, err = buf.ReadFrom(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, buf.String()
	}

	code, _ := get("/livez")
	require.Equal(t, http.StatusOK, code)

	code, _ = get("/healthz")
	require.Equal(t, http.StatusServiceUnavailable, code)

	ready.Store(true)
	code, _ = get("/healthz")
	require.Equal(t, http.StatusOK, code)

	code, body := get("/metrics")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, `datacore_connection_state{kind="none",status="disconnected"} 1`)
}
