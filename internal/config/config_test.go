package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pribylovaa/drrm-datacore/internal/models"

	"github.com/stretchr/testify/require"
)

// Тесты загрузки конфигурации:
//   - выбор источника: --config > CONFIG_PATH > local.yaml > ENV;
//   - ENV поверх файла;
//   - значения по умолчанию и validate;
//   - Configured: пустые значения и заглушки из шаблона;
//   - преобразования в hosted.Config и SwitchConfig.

const fullYAML = `
env: "prod"
http: { host: "0.0.0.0", port: "8080" }
metrics: { host: "127.0.0.1", port: "9090" }
hosted:
  url: "https://portal.example.org"
  key: "anon-key-123456"
direct:
  driver: "mysql"
  host: "db.internal"
  user: "portal"
  password: "s3cret"
  database: "drrm"
  port: 3307
store: { kind: "direct" }
timeouts: { service: "3s", connect: "4s" }
`

// put пишет файл в dir и возвращает путь.
func put(t *testing.T, dir, name, body string) string {
	t.Helper()

	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

// inDir переключает рабочий каталог на время теста.
func inDir(t *testing.T, dir string) {
	t.Helper()

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoad_FullFile(t *testing.T) {
	t.Parallel()

	cfg, err := Load(put(t, t.TempDir(), "config.yaml", fullYAML))
	require.NoError(t, err)

	require.Equal(t, "prod", cfg.Env)
	require.Equal(t, "0.0.0.0:8080", cfg.HTTP.Addr())
	require.Equal(t, "127.0.0.1:9090", cfg.Metrics.Addr())
	require.Equal(t, "/rest/v1", cfg.Hosted.RestPath)
	require.True(t, cfg.HostedConfigured())
	require.Equal(t, 3307, cfg.Direct.Port)
	require.Equal(t, models.KindDirect, cfg.StoreKind())
	require.Equal(t, 3*time.Second, cfg.Timeouts.Service)
	require.Equal(t, 4*time.Second, cfg.Timeouts.Connect)
}

func TestLoad_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(put(t, t.TempDir(), "min.yaml", `env: "dev"`))
	require.NoError(t, err)

	require.Equal(t, Config{
		Env:      "dev",
		HTTP:     HTTPConfig{Host: "0.0.0.0", Port: "50090"},
		Metrics:  MetricsConfig{Host: "0.0.0.0", Port: "50085"},
		Hosted:   HostedConfig{RestPath: "/rest/v1"},
		Direct:   DirectConfig{Driver: "mysql", Port: 3306},
		Store:    StoreConfig{Kind: "hosted"},
		Timeouts: TimeoutConfig{Service: 15 * time.Second, Connect: 10 * time.Second},
	}, *cfg)
}

// Тесты источников меняют окружение и рабочий каталог, поэтому не параллельны.
func TestLoad_Sources(t *testing.T) {
	tests := []struct {
		name     string
		explicit bool
		envPath  bool
		local    bool
		wantEnv  string
	}{
		{name: "explicit wins", explicit: true, envPath: true, local: true, wantEnv: "explicit"},
		{name: "CONFIG_PATH over local.yaml", envPath: true, local: true, wantEnv: "from-env-path"},
		{name: "local.yaml", local: true, wantEnv: "local-file"},
		{name: "env only", wantEnv: "from-env"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			inDir(t, dir)
			t.Setenv("CONFIG_PATH", "")

			var path string
			if tt.explicit {
				path = put(t, dir, "explicit.yaml", `env: "explicit"`)
			}
			if tt.envPath {
				t.Setenv("CONFIG_PATH", put(t, dir, "env.yaml", `env: "from-env-path"`))
			}
			if tt.local {
				put(t, dir, localFile, `env: "local-file"`)
			}
			if !tt.explicit && !tt.envPath && !tt.local {
				t.Setenv("ENV", "from-env")
			}

			cfg, err := Load(path)
			require.NoError(t, err)
			require.Equal(t, tt.wantEnv, cfg.Env)
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want string
	}{
		{"broken yaml", "env: [unclosed", "failed to read config"},
		{"store kind", `store: { kind: "oracle" }`, "invalid config"},
		{"driver", `direct: { driver: "postgres" }`, "invalid config"},
		{"port", `direct: { port: 70000 }`, "invalid config"},
		{"connect timeout", `timeouts: { connect: "-1s" }`, "invalid config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Load(put(t, t.TempDir(), "c.yaml", tt.body))
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.want)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := put(t, t.TempDir(), "config.yaml", fullYAML)

	t.Setenv("HTTP_PORT", "18080")
	t.Setenv("HOSTED_KEY", "your-anon-key")
	t.Setenv("STORE_KIND", "none")
	t.Setenv("CONNECT_TIMEOUT", "250ms")
	t.Setenv("DIRECT_DRIVER", "sqlite")

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "18080", cfg.HTTP.Port)
	require.False(t, cfg.HostedConfigured(), "ключ из шаблона")
	require.Equal(t, models.KindNone, cfg.StoreKind())
	require.Equal(t, 250*time.Millisecond, cfg.Timeouts.Connect)
	require.Equal(t, "sqlite", cfg.Direct.Driver)
	require.Equal(t, "db.internal", cfg.Direct.Host, "значение из файла сохраняется")
}

func TestHostedConfig_Configured(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  HostedConfig
		want bool
	}{
		{"ok", HostedConfig{URL: "https://x.example.co", Key: "k-1"}, true},
		{"empty url", HostedConfig{Key: "k-1"}, false},
		{"blank key", HostedConfig{URL: "https://x.example.co", Key: "  "}, false},
		{"placeholder url", HostedConfig{URL: "https://placeholder.example.co", Key: "k"}, false},
		{"template key", HostedConfig{URL: "https://x.example.co", Key: "YOUR-ANON-KEY"}, false},
	}

	for _, tt := range tests {
		require.Equal(t, tt.want, tt.cfg.Configured(), tt.name)
	}
}

func TestConversions(t *testing.T) {
	t.Parallel()

	hc := HostedConfig{URL: "https://x.example.co", Key: "k", RestPath: "/rest/v1"}.Client(5 * time.Second)
	require.Equal(t, "https://x.example.co", hc.URL)
	require.Equal(t, "/rest/v1", hc.RestPath)
	require.Equal(t, 5*time.Second, hc.Timeout)

	d := DirectConfig{Host: "db", User: "u", Password: "p", Database: "drrm", Port: 3307}
	require.Equal(t, models.SwitchConfig{
		Kind: models.KindDirect, Host: "db", User: "u", Password: "p", Database: "drrm", Port: 3307,
	}, d.SwitchConfig())
}

func TestMustLoad(t *testing.T) {
	t.Parallel()

	require.Equal(t, "dev", MustLoad(put(t, t.TempDir(), "ok.yaml", `env: "dev"`)).Env)
	require.Panics(t, func() { _ = MustLoad(filepath.Join(t.TempDir(), "nope.yaml")) })
}
