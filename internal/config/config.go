// Package config provides memoria configuration.
//
// Values are layered, later layers winning:
//
//  1. built-in defaults
//  2. a .env file in the working directory (optional)
//  3. a YAML or TOML config file chosen by extension (optional)
//  4. MEMORIA_* environment variables
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/HendryAvila/memoria/internal/memory"
	"github.com/HendryAvila/memoria/internal/search"
)

// Config holds all application configuration.
type Config struct {
	DataDir          string   `yaml:"data_dir" toml:"data_dir"`
	DBName           string   `yaml:"db_name" toml:"db_name"`
	BusyTimeout      Duration `yaml:"busy_timeout" toml:"busy_timeout"`
	MaxContentLength int      `yaml:"max_content_length" toml:"max_content_length"`

	Search  SearchConfig  `yaml:"search" toml:"search"`
	Context ContextConfig `yaml:"context" toml:"context"`
	Server  ServerConfig  `yaml:"server" toml:"server"`
	Log     LogConfig     `yaml:"log" toml:"log"`

	ExternalServers []ExternalServer `yaml:"external_servers" toml:"external_servers"`
}

// SearchConfig tunes the search engine.
type SearchConfig struct {
	CacheSize  int      `yaml:"cache_size" toml:"cache_size"`
	FuzzyLayer bool     `yaml:"fuzzy_layer" toml:"fuzzy_layer"`
	Timeout    Duration `yaml:"timeout" toml:"timeout"`
	MaxResults int      `yaml:"max_results" toml:"max_results"`
}

// ContextConfig tunes context injection.
type ContextConfig struct {
	Timeout Duration `yaml:"timeout" toml:"timeout"`
}

// ServerConfig controls the tool protocol transports.
type ServerConfig struct {
	HTTPAddr       string `yaml:"http_addr" toml:"http_addr"`
	WorkerPoolSize int    `yaml:"worker_pool_size" toml:"worker_pool_size"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// ExternalServer describes another tool server the host application may
// launch. memoria only keeps the record; it never executes Command.
type ExternalServer struct {
	Name    string   `json:"name" yaml:"name" toml:"name"`
	Command string   `json:"command" yaml:"command" toml:"command"`
	Args    []string `json:"args,omitempty" yaml:"args,omitempty" toml:"args,omitempty"`
	Enabled bool     `json:"enabled" yaml:"enabled" toml:"enabled"`
}

// Duration is a time.Duration that reads and writes as "250ms", "5s", etc.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for YAML and TOML.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Default returns the built-in configuration.
func Default() Config {
	mem := memory.DefaultConfig()
	s := search.DefaultConfig()
	return Config{
		DataDir:          mem.DataDir,
		DBName:           mem.DBName,
		BusyTimeout:      Duration(mem.BusyTimeout),
		MaxContentLength: mem.MaxContentLength,
		Search: SearchConfig{
			CacheSize:  s.CacheSize,
			FuzzyLayer: s.FuzzyLayer,
			Timeout:    Duration(s.Timeout),
			MaxResults: s.MaxLimit,
		},
		Context: ContextConfig{Timeout: Duration(250 * time.Millisecond)},
		Server:  ServerConfig{WorkerPoolSize: 5},
		Log:     LogConfig{Level: "info", Format: "text"},
	}
}

// Load builds a Config from defaults, .env, the file at path (if path is
// non-empty) and the environment, then validates it. A missing .env is
// fine; a missing config file named explicitly is an error.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("ignoring unreadable .env", "error", err)
	}

	cfg := Default()
	if path == "" {
		path = os.Getenv("MEMORIA_CONFIG")
	}
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// mergeFile decodes the file over cfg, so keys absent from the file keep
// their current values.
func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	case ".toml":
		err = toml.Unmarshal(data, c)
	default:
		return fmt.Errorf("config %s: unsupported extension %q (want .yaml, .yml or .toml)", path, ext)
	}
	if err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.DataDir = getEnv("MEMORIA_DATA_DIR", c.DataDir)
	c.DBName = getEnv("MEMORIA_DB_NAME", c.DBName)
	c.BusyTimeout = getEnvDuration("MEMORIA_BUSY_TIMEOUT", c.BusyTimeout)
	c.MaxContentLength = getEnvInt("MEMORIA_MAX_CONTENT_LENGTH", c.MaxContentLength)

	c.Search.CacheSize = getEnvInt("MEMORIA_SEARCH_CACHE_SIZE", c.Search.CacheSize)
	c.Search.FuzzyLayer = getEnvBool("MEMORIA_SEARCH_FUZZY", c.Search.FuzzyLayer)
	c.Search.Timeout = getEnvDuration("MEMORIA_SEARCH_TIMEOUT", c.Search.Timeout)
	c.Search.MaxResults = getEnvInt("MEMORIA_SEARCH_MAX_RESULTS", c.Search.MaxResults)

	c.Context.Timeout = getEnvDuration("MEMORIA_CONTEXT_TIMEOUT", c.Context.Timeout)

	c.Server.HTTPAddr = getEnv("MEMORIA_HTTP_ADDR", c.Server.HTTPAddr)
	c.Server.WorkerPoolSize = getEnvInt("MEMORIA_WORKERS", c.Server.WorkerPoolSize)

	c.Log.Level = getEnv("MEMORIA_LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("MEMORIA_LOG_FORMAT", c.Log.Format)
}

// Validate checks that all configuration fields are usable.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("data_dir cannot be empty")
	}
	if strings.ContainsAny(c.DBName, `/\`) || c.DBName == "" {
		return fmt.Errorf("db_name must be a plain file name, got %q", c.DBName)
	}
	if c.BusyTimeout < 0 || c.Search.Timeout < 0 || c.Context.Timeout < 0 {
		return fmt.Errorf("timeouts cannot be negative")
	}
	if c.MaxContentLength < 0 {
		return fmt.Errorf("max_content_length cannot be negative")
	}
	if c.Search.CacheSize < 0 {
		return fmt.Errorf("search.cache_size cannot be negative")
	}
	if c.Search.MaxResults < 0 {
		return fmt.Errorf("search.max_results cannot be negative")
	}
	if c.Server.WorkerPoolSize <= 0 {
		return fmt.Errorf("server.worker_pool_size must be > 0")
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	seen := make(map[string]bool, len(c.ExternalServers))
	for _, es := range c.ExternalServers {
		if es.Name == "" || es.Command == "" {
			return fmt.Errorf("external server entries need a name and a command")
		}
		if seen[es.Name] {
			return fmt.Errorf("external server %q listed twice", es.Name)
		}
		seen[es.Name] = true
	}
	return nil
}

// Memory returns the observation store configuration.
func (c Config) Memory() memory.Config {
	return memory.Config{
		DataDir:          c.DataDir,
		DBName:           c.DBName,
		BusyTimeout:      c.BusyTimeout.Std(),
		MaxContentLength: c.MaxContentLength,
	}
}

// SearchEngine returns the search engine configuration.
func (c Config) SearchEngine() search.Config {
	return search.Config{
		CacheSize:  c.Search.CacheSize,
		FuzzyLayer: c.Search.FuzzyLayer,
		Timeout:    c.Search.Timeout.Std(),
		MaxLimit:   c.Search.MaxResults,
	}
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return lvl, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback Duration) Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return Duration(d)
}
