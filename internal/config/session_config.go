package config

import (
	"strings"
	"time"
)

// TokenStorage selects where the browser's tokens are kept.
type TokenStorage string

const (
	// TokenStorageCookie keeps the tokens themselves in browser cookies
	TokenStorageCookie TokenStorage = "cookie"
	// TokenStorageMemory keeps a session id cookie and the tokens in process memory
	TokenStorageMemory TokenStorage = "memory"
	// TokenStorageRedis keeps a session id cookie and the tokens in Redis
	TokenStorageRedis TokenStorage = "redis"
)

type Session struct {
	Storage           string        `yaml:"token_storage" env:"TOKEN_STORAGE" env-default:"cookie"`
	RedisAddr         string        `yaml:"redis_addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	RedisPassword     string        `yaml:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB           int           `yaml:"redis_db" env:"REDIS_DB" env-default:"0"`
	RedirectPathTTL   time.Duration `yaml:"redirect_path_ttl" env:"REDIRECT_PATH_TTL" env-default:"5m"`
	GuardPollInterval time.Duration `yaml:"guard_poll_interval" env:"GUARD_POLL_INTERVAL" env-default:"5s"`
	SecureCookies     bool          `yaml:"secure_cookies" env:"SECURE_COOKIES" env-default:"false"`
}

var _ SessionConfig = Session{}

func (s Session) GetTokenStorage() TokenStorage {
	switch TokenStorage(strings.ToLower(s.Storage)) {
	case TokenStorageMemory:
		return TokenStorageMemory
	case TokenStorageRedis:
		return TokenStorageRedis
	default:
		return TokenStorageCookie
	}
}

func (s Session) GetRedisAddr() string {
	return s.RedisAddr
}

func (s Session) GetRedisPassword() string {
	return s.RedisPassword
}

func (s Session) GetRedisDB() int {
	return s.RedisDB
}

func (s Session) GetRedirectPathTTL() time.Duration {
	if s.RedirectPathTTL <= 0 {
		return 5 * time.Minute
	}
	return s.RedirectPathTTL
}

func (s Session) GetGuardPollInterval() time.Duration {
	if s.GuardPollInterval <= 0 {
		return 5 * time.Second
	}
	return s.GuardPollInterval
}

// GetSecureCookies forces the Secure flag even when the request arrived over plain HTTP
func (s Session) GetSecureCookies() bool {
	return s.SecureCookies
}
