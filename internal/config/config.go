package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const configPathEnvVar = "CONFIG_PATH"

type Config interface {
	EnvConfig
	CorsConfig
	APIConfig
	SessionConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetSentryDSN() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type APIConfig interface {
	GetAPIBaseURL() string
	GetAPITimeout() time.Duration
}

type SessionConfig interface {
	GetTokenStorage() TokenStorage
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
	GetRedirectPathTTL() time.Duration
	GetGuardPollInterval() time.Duration
	GetSecureCookies() bool
}

// Settings is the loaded configuration. Values come from an optional YAML file
// overlaid by environment variables.
type Settings struct {
	EnvVars `yaml:",inline"`
	Cors    `yaml:",inline"`
	API     `yaml:",inline"`
	Session `yaml:",inline"`
}

var _ Config = Settings{}

// New loads the configuration from CONFIG_PATH (when set) and the environment.
func New() Config {
	return MustLoad(os.Getenv(configPathEnvVar))
}

// MustLoad panics when the configuration cannot be loaded.
func MustLoad(path string) *Settings {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads the YAML file at path (if any) and overlays environment variables.
// An empty path reads the environment only.
func Load(path string) (*Settings, error) {
	var cfg Settings

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("[config Load] config file %q stat failed: %w", path, err)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("[config Load] failed to read config: %w", err)
		}
		return &cfg, nil
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("[config Load] failed to read env: %w", err)
	}
	return &cfg, nil
}
