// Package config loads maxreward settings from a TOML or YAML file, a .env
// file and MAXREWARD_* environment variables, in that order of precedence
// from lowest to highest, on top of [Default].
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/finobytes/maxreward/pkg/api"
	pkgerrors "github.com/finobytes/maxreward/pkg/errors"
)

const appName = "maxreward"

// Backends.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
	BackendBolt  = "bolt"
	BackendMongo = "mongo"
	BackendNone  = "none"
)

// Environment variables that override file settings.
const (
	EnvAPIURL   = "MAXREWARD_API_URL"
	EnvAPIToken = "MAXREWARD_API_TOKEN"
	EnvRedisURL = "MAXREWARD_REDIS_URL"
	EnvMongoURI = "MAXREWARD_MONGO_URI"
	EnvAddr     = "MAXREWARD_ADDR"
)

type Config struct {
	API    APIConfig    `toml:"api" yaml:"api"`
	Cache  CacheConfig  `toml:"cache" yaml:"cache"`
	Store  StoreConfig  `toml:"store" yaml:"store"`
	Server ServerConfig `toml:"server" yaml:"server"`
}

// APIConfig describes the upstream back-office API.
type APIConfig struct {
	BaseURL   string        `toml:"base_url" yaml:"base_url"`
	TreePath  string        `toml:"tree_path" yaml:"tree_path"`
	Token     string        `toml:"token" yaml:"token"`
	Timeout   time.Duration `toml:"timeout" yaml:"timeout"`
	RateLimit float64       `toml:"rate_limit" yaml:"rate_limit"` // requests per second, 0 = unlimited
	Burst     int           `toml:"burst" yaml:"burst"`
}

type CacheConfig struct {
	Backend  string        `toml:"backend" yaml:"backend"`
	Dir      string        `toml:"dir" yaml:"dir"`
	RedisURL string        `toml:"redis_url" yaml:"redis_url"`
	Prefix   string        `toml:"prefix" yaml:"prefix"`
	TTL      time.Duration `toml:"ttl" yaml:"ttl"`
}

type StoreConfig struct {
	Backend       string `toml:"backend" yaml:"backend"`
	Path          string `toml:"path" yaml:"path"`
	MongoURI      string `toml:"mongo_uri" yaml:"mongo_uri"`
	MongoDatabase string `toml:"mongo_database" yaml:"mongo_database"`
}

type ServerConfig struct {
	Addr            string        `toml:"addr" yaml:"addr"`
	ReadTimeout     time.Duration `toml:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `toml:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// Default returns a configuration that works without a file: local file
// cache, local bolt snapshots and no upstream API.
func Default() Config {
	return Config{
		API: APIConfig{
			TreePath: api.DefaultTreePath,
			Timeout:  10 * time.Second,
			Burst:    1,
		},
		Cache: CacheConfig{
			Backend: BackendFile,
			Dir:     CacheDir(),
			Prefix:  appName,
			TTL:     10 * time.Minute,
		},
		Store: StoreConfig{
			Backend:       BackendBolt,
			Path:          filepath.Join(DataDir(), "snapshots.db"),
			MongoDatabase: appName,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
	}
}

// Load reads the file at path over [Default], then applies a .env file from
// the working directory and the environment, and validates the result.
// An empty path means [DefaultPath]; a missing default file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if err := decodeFile(path, &cfg); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return cfg, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}
	cfg.applyEnv(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported config format %q (use .toml, .yaml or .yml)", ext)
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&c.API.BaseURL, EnvAPIURL)
	set(&c.API.Token, EnvAPIToken)
	set(&c.Server.Addr, EnvAddr)

	if v := strings.TrimSpace(getenv(EnvRedisURL)); v != "" {
		c.Cache.RedisURL = v
		if c.Cache.Backend == BackendFile {
			c.Cache.Backend = BackendRedis
		}
	}
	if v := strings.TrimSpace(getenv(EnvMongoURI)); v != "" {
		c.Store.MongoURI = v
		if c.Store.Backend == BackendBolt {
			c.Store.Backend = BackendMongo
		}
	}
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var ve ValidationError

	if c.API.BaseURL != "" {
		if err := pkgerrors.ValidateURL(c.API.BaseURL); err != nil {
			ve.Add("api.base_url", "%s", pkgerrors.UserMessage(err))
		}
	}
	if !strings.Contains(c.API.TreePath, "{id}") {
		ve.Add("api.tree_path", "must contain {id}")
	} else if !strings.HasPrefix(c.API.TreePath, "/") {
		ve.Add("api.tree_path", "must start with '/'")
	}
	if c.API.Timeout < 0 {
		ve.Add("api.timeout", "must not be negative")
	}
	if c.API.RateLimit < 0 {
		ve.Add("api.rate_limit", "must not be negative")
	}

	switch c.Cache.Backend {
	case BackendFile:
		if strings.TrimSpace(c.Cache.Dir) == "" {
			ve.Add("cache.dir", "must not be empty for the file backend")
		}
	case BackendRedis:
		if c.Cache.RedisURL == "" {
			ve.Add("cache.redis_url", "must be set for the redis backend")
		}
	case BackendNone:
	default:
		ve.Add("cache.backend", "must be 'file', 'redis' or 'none', got %q", c.Cache.Backend)
	}
	if c.Cache.TTL < 0 {
		ve.Add("cache.ttl", "must not be negative")
	}

	switch c.Store.Backend {
	case BackendBolt:
		if strings.TrimSpace(c.Store.Path) == "" {
			ve.Add("store.path", "must not be empty for the bolt backend")
		}
	case BackendMongo:
		if c.Store.MongoURI == "" {
			ve.Add("store.mongo_uri", "must be set for the mongo backend")
		}
		if c.Store.MongoDatabase == "" {
			ve.Add("store.mongo_database", "must not be empty")
		}
	case BackendNone:
	default:
		ve.Add("store.backend", "must be 'bolt', 'mongo' or 'none', got %q", c.Store.Backend)
	}

	if strings.TrimSpace(c.Server.Addr) == "" {
		ve.Add("server.addr", "must not be empty")
	}

	if ve.HasAny() {
		return ve
	}
	return nil
}

// APIClientConfig converts the api section for [api.NewClient].
func (c Config) APIClientConfig() api.Config {
	return api.Config{
		BaseURL:   c.API.BaseURL,
		TreePath:  c.API.TreePath,
		Token:     c.API.Token,
		Timeout:   c.API.Timeout,
		RateLimit: c.API.RateLimit,
		Burst:     c.API.Burst,
		CacheTTL:  c.Cache.TTL,
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/maxreward/config.toml.
func DefaultPath() string {
	return filepath.Join(xdgDir("XDG_CONFIG_HOME", ".config"), appName, "config.toml")
}

// CacheDir returns $XDG_CACHE_HOME/maxreward.
func CacheDir() string {
	return filepath.Join(xdgDir("XDG_CACHE_HOME", ".cache"), appName)
}

// DataDir returns $XDG_DATA_HOME/maxreward.
func DataDir() string {
	return filepath.Join(xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share")), appName)
}

func xdgDir(env, fallback string) string {
	if dir := os.Getenv(env); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), fallback)
	}
	return filepath.Join(home, fallback)
}
