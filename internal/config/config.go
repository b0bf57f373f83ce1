// config - источник загрузки конфигурации datacore.
//
// Источники (по убыванию приоритета):
//  1. явный путь --config;
//  2. CONFIG_PATH;
//  3. ./local.yaml;
//  4. только ENV (cleanenv).
package config

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/pribylovaa/drrm-datacore/internal/models"
	"github.com/pribylovaa/drrm-datacore/internal/storage/direct"
	"github.com/pribylovaa/drrm-datacore/internal/storage/hosted"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env      string        `yaml:"env" env:"ENV" env-default:"local"`
	HTTP     HTTPConfig    `yaml:"http"`
	Metrics  MetricsConfig `yaml:"metrics"`
	Hosted   HostedConfig  `yaml:"hosted"`
	Direct   DirectConfig  `yaml:"direct"`
	Store    StoreConfig   `yaml:"store"`
	Timeouts TimeoutConfig `yaml:"timeouts"`
}

// TimeoutConfig — таймауты сервиса и подключения к хранилищу.
type TimeoutConfig struct {
	Service time.Duration `yaml:"service" env:"SERVICE" env-default:"15s"`
	Connect time.Duration `yaml:"connect" env:"CONNECT_TIMEOUT" env-default:"10s"`
}

// HTTPConfig — REST-сервер администрирования.
type HTTPConfig struct {
	Host string `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"HTTP_PORT" env-default:"50090"`
}

func (h HTTPConfig) Addr() string { return net.JoinHostPort(h.Host, h.Port) }

// MetricsConfig — отдельный HTTP для Prometheus.
type MetricsConfig struct {
	Host string `yaml:"host"   env:"METRICS_HOST"   env-default:"0.0.0.0"`
	Port string `yaml:"port"   env:"METRICS_PORT"   env-default:"50085"`
}

func (m MetricsConfig) Addr() string { return net.JoinHostPort(m.Host, m.Port) }

// HostedConfig — управляемое хранилище (URL + ключ доступа).
type HostedConfig struct {
	URL      string `yaml:"url"       env:"HOSTED_URL"`
	Key      string `yaml:"key"       env:"HOSTED_KEY"`
	RestPath string `yaml:"rest_path" env:"HOSTED_REST_PATH" env-default:"/rest/v1"`
}

// placeholderMarkers — признаки незаполненного шаблона конфигурации.
var placeholderMarkers = []string{"placeholder", "your-"}

// Configured — URL и ключ заданы и не являются заглушками из шаблона.
func (h HostedConfig) Configured() bool {
	for _, v := range []string{h.URL, h.Key} {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			return false
		}
		for _, m := range placeholderMarkers {
			if strings.Contains(v, m) {
				return false
			}
		}
	}

	return true
}

// Client — параметры клиента hosted-хранилища.
func (h HostedConfig) Client(timeout time.Duration) hosted.Config {
	return hosted.Config{URL: h.URL, Key: h.Key, RestPath: h.RestPath, Timeout: timeout}
}

// DirectConfig — прямое подключение к реляционной БД при старте.
type DirectConfig struct {
	Driver   string `yaml:"driver"   env:"DIRECT_DRIVER"   env-default:"mysql"`
	Host     string `yaml:"host"     env:"DIRECT_HOST"`
	User     string `yaml:"user"     env:"DIRECT_USER"`
	Password string `yaml:"password" env:"DIRECT_PASSWORD"`
	Database string `yaml:"database" env:"DIRECT_DATABASE"`
	Port     int    `yaml:"port"     env:"DIRECT_PORT"     env-default:"3306"`
}

// SwitchConfig — параметры переключения на direct из конфигурации.
func (d DirectConfig) SwitchConfig() models.SwitchConfig {
	return models.SwitchConfig{
		Kind:     models.KindDirect,
		Host:     d.Host,
		User:     d.User,
		Password: d.Password,
		Database: d.Database,
		Port:     d.Port,
	}
}

// StoreConfig — какое хранилище подключать при старте (hosted|direct|none).
type StoreConfig struct {
	Kind string `yaml:"kind" env:"STORE_KIND" env-default:"hosted"`
}

// StoreKind — разобранное значение store.kind (валидируется в Load).
func (c *Config) StoreKind() models.StoreKind {
	k, _ := models.ParseStoreKind(c.Store.Kind)
	return k
}

// HostedConfigured — можно ли подключать hosted-хранилище.
func (c *Config) HostedConfigured() bool { return c.Hosted.Configured() }

// MustLoad — паника при ошибке загрузки.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}

	return cfg
}

// Load читает и проверяет конфигурацию.
func Load(path string) (*Config, error) {
	cfg, err := read(path)
	if err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// localFile — файл конфигурации в рабочем каталоге.
const localFile = "local.yaml"

// source выбирает файл конфигурации: --config, затем CONFIG_PATH, затем
// ./local.yaml. Пустая строка означает конфигурацию только из окружения.
func source(path string) string {
	if path != "" {
		return path
	}
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	if _, err := os.Stat(localFile); err == nil {
		return localFile
	}

	return ""
}

// read читает файл и накладывает поверх него переменные окружения.
func read(path string) (*Config, error) {
	var cfg Config

	file := source(path)
	if file == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to read env: %w", err)
		}
		return &cfg, nil
	}

	if _, err := os.Stat(file); err != nil {
		return nil, fmt.Errorf("config file %q: %w", file, err)
	}
	if err := cleanenv.ReadConfig(file, &cfg); err != nil {
		return nil, fmt.Errorf("failed to read config %q: %w", file, err)
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if _, ok := models.ParseStoreKind(c.Store.Kind); !ok {
		return fmt.Errorf("store.kind %q: want hosted, direct or none", c.Store.Kind)
	}

	switch c.Direct.Driver {
	case direct.DriverMySQL, direct.DriverSQLite:
	default:
		return fmt.Errorf("direct.driver %q: want %s or %s", c.Direct.Driver, direct.DriverMySQL, direct.DriverSQLite)
	}

	if c.Direct.Port < 0 || c.Direct.Port > 65535 {
		return fmt.Errorf("direct.port %d out of range", c.Direct.Port)
	}

	if c.Timeouts.Service <= 0 {
		return fmt.Errorf("timeouts.service must be positive")
	}
	if c.Timeouts.Connect <= 0 {
		return fmt.Errorf("timeouts.connect must be positive")
	}

	return nil
}
