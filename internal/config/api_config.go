package config

import (
	"strings"
	"time"
)

// API describes the remote billing API the dashboard talks to.
type API struct {
	BaseURL string        `yaml:"api_base_url" env:"API_BASE_URL" env-default:"http://localhost:3333/"`
	Timeout time.Duration `yaml:"api_timeout" env:"API_TIMEOUT" env-default:"20s"`
}

var _ APIConfig = API{}

// GetAPIBaseURL always ends with a slash so relative paths resolve under it
func (a API) GetAPIBaseURL() string {
	if strings.HasSuffix(a.BaseURL, "/") {
		return a.BaseURL
	}
	return a.BaseURL + "/"
}

func (a API) GetAPITimeout() time.Duration {
	if a.Timeout <= 0 {
		return 20 * time.Second
	}
	return a.Timeout
}
