package config

import (
	"fmt"
	"strings"
)

type EnvVars struct {
	Port      string `yaml:"port" env:"PORT" env-default:"8080"`
	AppName   string `yaml:"app_name" env:"APP_NAME" env-default:"Reconfile"`
	Env       string `yaml:"env" env:"ENV" env-default:"DEV"`
	LogLevel  string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	SentryDSN string `yaml:"sentry_dsn" env:"SENTRY_DSN"`
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetPort() string {
	port := e.Port
	if port == "" {
		port = "8080"
	}
	if !strings.HasPrefix(port, ":") {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (e EnvVars) GetAppName() string {
	return e.AppName
}

func (e EnvVars) GetEnv() string {
	if e.Env == "" {
		return "DEV"
	}
	return e.Env
}

func (e EnvVars) GetLogLevel() string {
	return e.LogLevel
}

// GetSentryDSN returns an empty string when error reporting is disabled
func (e EnvVars) GetSentryDSN() string {
	return e.SentryDSN
}
