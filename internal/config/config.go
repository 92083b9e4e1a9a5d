// Package config loads the server configuration from YAML with environment
// overrides on top.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		// dev | staging | prod
		Env string `yaml:"env"`
	} `yaml:"app"`

	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	Storage struct {
		// memory | redis | postgres
		Driver   string `yaml:"driver"`
		Postgres struct {
			DSN             string `yaml:"dsn"`
			MaxConns        int    `yaml:"max_conns"`
			MinConns        int    `yaml:"min_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"storage"`

	JWT struct {
		Issuer string `yaml:"issuer"`
		// Base64 32-byte Ed25519 seed. Empty generates an ephemeral key.
		SigningSeed string `yaml:"signing_seed"`
		AccessTTL   string `yaml:"access_ttl"`
	} `yaml:"jwt"`

	OAuth struct {
		CodeTTL            string `yaml:"code_ttl"`
		ConsentTTL         string `yaml:"consent_ttl"`
		DevicePollInterval string `yaml:"device_poll_interval"`
		RefreshTokenBytes  int    `yaml:"refresh_token_bytes"`
	} `yaml:"oauth"`

	Clients []ClientSeed `yaml:"clients"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// ClientSeed is a statically registered OAuth client.
type ClientSeed struct {
	ClientID            string   `yaml:"client_id"`
	Name                string   `yaml:"name"`
	Secret              string   `yaml:"secret"`
	AuthMethods         []string `yaml:"auth_methods"`
	GrantTypes          []string `yaml:"grant_types"`
	RedirectURIs        []string `yaml:"redirect_uris"`
	Scopes              []string `yaml:"scopes"`
	AccessTokenTTL      string   `yaml:"access_token_ttl"`
	RefreshTokenTTL     string   `yaml:"refresh_token_ttl"`
	RotateRefreshTokens bool     `yaml:"rotate_refresh_tokens"`
	RequireConsent      bool     `yaml:"require_consent"`
}

// Load reads the YAML file and applies defaults and env overrides. An empty
// path yields defaults plus env only.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, err
		}
	}

	// sane defaults
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.JWT.Issuer == "" {
		c.JWT.Issuer = "http://localhost:8080"
	}
	if c.JWT.AccessTTL == "" {
		c.JWT.AccessTTL = "15m"
	}
	if c.OAuth.CodeTTL == "" {
		c.OAuth.CodeTTL = "5m"
	}
	if c.OAuth.ConsentTTL == "" {
		c.OAuth.ConsentTTL = "10m"
	}
	if c.OAuth.DevicePollInterval == "" {
		c.OAuth.DevicePollInterval = "5s"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	c.applyEnvOverrides()
	return &c, nil
}

// Duration parses one of the config's duration strings, falling back to def
// when unset or malformed.
func Duration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// applyEnvOverrides lets AUTHGATE_* environment variables win over YAML.
func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("AUTHGATE_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("AUTHGATE_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvStr("AUTHGATE_STORAGE_DRIVER"); ok {
		c.Storage.Driver = v
	}
	if v, ok := getEnvStr("AUTHGATE_POSTGRES_DSN"); ok {
		c.Storage.Postgres.DSN = v
	}
	if v, ok := getEnvInt("AUTHGATE_POSTGRES_MAX_CONNS"); ok {
		c.Storage.Postgres.MaxConns = v
	}
	if v, ok := getEnvStr("AUTHGATE_REDIS_ADDR"); ok {
		c.Storage.Redis.Addr = v
	}
	if v, ok := getEnvStr("AUTHGATE_REDIS_PASSWORD"); ok {
		c.Storage.Redis.Password = v
	}
	if v, ok := getEnvInt("AUTHGATE_REDIS_DB"); ok {
		c.Storage.Redis.DB = v
	}
	if v, ok := getEnvStr("AUTHGATE_REDIS_PREFIX"); ok {
		c.Storage.Redis.Prefix = v
	}
	if v, ok := getEnvStr("AUTHGATE_JWT_ISSUER"); ok {
		c.JWT.Issuer = v
	}
	if v, ok := getEnvStr("AUTHGATE_JWT_SIGNING_SEED"); ok {
		c.JWT.SigningSeed = v
	}
	if v, ok := getEnvStr("AUTHGATE_JWT_ACCESS_TTL"); ok {
		c.JWT.AccessTTL = v
	}
	if v, ok := getEnvStr("AUTHGATE_LOG_LEVEL"); ok {
		c.Log.Level = v
	}
}

func getEnvStr(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	v, ok := getEnvStr(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
