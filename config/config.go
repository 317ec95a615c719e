// Package config loads server settings from a YAML file, .env files and the
// process environment, in that order of increasing precedence.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/freekieb7/bytegate/http"
	"github.com/freekieb7/bytegate/logger"
)

const (
	EnvHost         = "BYTEGATE_HOST"
	EnvPort         = "BYTEGATE_PORT"
	EnvPoolSize     = "BYTEGATE_POOL_SIZE"
	EnvLogLevel     = "BYTEGATE_LOG_LEVEL"
	EnvOTLPEndpoint = "BYTEGATE_OTLP_ENDPOINT"

	DefaultServiceName = "bytegate"
	DefaultSaveDelay   = 5 * time.Second
)

type Config struct {
	Server struct {
		Host      string        `yaml:"host"`
		Port      int           `yaml:"port"`
		PoolSize  int           `yaml:"pool_size"`
		Panic500  bool          `yaml:"panic_500"`
		IOTimeout time.Duration `yaml:"io_timeout"`
	} `yaml:"server"`
	Logging struct {
		Level logger.Level `yaml:"level"`
	} `yaml:"logging"`
	Telemetry struct {
		Endpoint    string `yaml:"endpoint"`
		ServiceName string `yaml:"service_name"`
	} `yaml:"telemetry"`
	Demo struct {
		SaveDelay time.Duration `yaml:"save_delay"`
	} `yaml:"demo"`
}

// Default returns the settings used when nothing is configured.
func Default() *Config {
	cfg := &Config{}
	cfg.Server.Port = http.DefaultPort
	cfg.Server.PoolSize = http.DefaultPoolSize
	cfg.Logging.Level = logger.Info
	cfg.Telemetry.ServiceName = DefaultServiceName
	cfg.Demo.SaveDelay = DefaultSaveDelay
	return cfg
}

// Load reads the YAML file at path on top of Default. Keys absent from the
// file keep their default. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Errorf("config file not found: %s", path)
		}
		return nil, errors.Wrapf(err, "read config %s", path)
	}

	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, cfg.Validate()
}

// LoadEnv loads the given .env files, skipping missing ones, and then applies
// the BYTEGATE_* variables onto cfg. Variables already present in the
// environment win over .env entries.
func LoadEnv(cfg *Config, files ...string) error {
	for _, file := range files {
		if _, err := os.Stat(file); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return errors.Wrapf(err, "load env file %s", file)
		}
	}

	if v, ok := lookup(EnvHost); ok {
		cfg.Server.Host = v
	}
	if v, ok := lookup(EnvPort); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "invalid %s", EnvPort)
		}
		cfg.Server.Port = port
	}
	if v, ok := lookup(EnvPoolSize); ok {
		size, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "invalid %s", EnvPoolSize)
		}
		cfg.Server.PoolSize = size
	}
	if v, ok := lookup(EnvLogLevel); ok {
		level, err := logger.ParseLevel(v)
		if err != nil {
			return errors.Wrapf(err, "invalid %s", EnvLogLevel)
		}
		cfg.Logging.Level = level
	}
	if v, ok := lookup(EnvOTLPEndpoint); ok {
		cfg.Telemetry.Endpoint = v
	}

	return cfg.Validate()
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (cfg *Config) Validate() error {
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return errors.Errorf("server port out of range: %d", cfg.Server.Port)
	}
	if cfg.Server.PoolSize < 1 {
		return errors.Errorf("server pool size must be at least 1, got %d", cfg.Server.PoolSize)
	}
	if cfg.Server.IOTimeout < 0 {
		return errors.Errorf("server io timeout must not be negative, got %s", cfg.Server.IOTimeout)
	}
	if cfg.Demo.SaveDelay < 0 {
		return errors.Errorf("demo save delay must not be negative, got %s", cfg.Demo.SaveDelay)
	}
	return nil
}

// HTTP converts cfg into the server configuration.
func (cfg *Config) HTTP() http.Config {
	return http.Config{
		Host:                 cfg.Server.Host,
		Port:                 cfg.Server.Port,
		PoolSize:             cfg.Server.PoolSize,
		LogLevel:             cfg.Logging.Level,
		InternalErrorOnPanic: cfg.Server.Panic500,
		IOTimeout:            cfg.Server.IOTimeout,
	}
}
