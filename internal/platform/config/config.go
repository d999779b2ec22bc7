package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "AIRLOCK_"

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Log       LogConfig       `koanf:"log"`
	Auth      AuthConfig      `koanf:"auth"`
	RateLimit RateLimitConfig `koanf:"ratelimit"`
	Jobs      JobsConfig      `koanf:"jobs"`
	Audit     AuditConfig     `koanf:"audit"`
	Database  DatabaseConfig  `koanf:"database"`
	Model     ModelConfig     `koanf:"model"`
	Router    RouterConfig    `koanf:"router"`
	Tribunal  TribunalConfig  `koanf:"tribunal"`
	NER       NERConfig       `koanf:"ner"`
}

type ServerConfig struct {
	Host        string   `koanf:"host"`
	Port        int      `koanf:"port"`
	CORSOrigins []string `koanf:"corsorigins"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// AuthConfig holds API keys. APIKey is registered under the name "default";
// Keys adds named keys (AIRLOCK_AUTH_KEYS_CI → auth.keys.ci).
type AuthConfig struct {
	APIKey string            `koanf:"apikey"`
	Keys   map[string]string `koanf:"keys"`
}

// AllKeys merges APIKey into Keys.
func (a AuthConfig) AllKeys() map[string]string {
	out := make(map[string]string, len(a.Keys)+1)
	for name, key := range a.Keys {
		out[name] = key
	}
	if a.APIKey != "" {
		out["default"] = a.APIKey
	}
	return out
}

type RateLimitConfig struct {
	Enabled   bool `koanf:"enabled"`
	PerMinute int  `koanf:"perminute"`
	Burst     int  `koanf:"burst"`
}

type JobsConfig struct {
	Workers        int           `koanf:"workers"`
	QueueSize      int           `koanf:"queuesize"`
	MaxInputTokens int           `koanf:"maxinputtokens"`
	AuditTimeout   time.Duration `koanf:"audittimeout"`
}

// AuditConfig selects the audit backend: "sqlite" or "postgres".
type AuditConfig struct {
	Engine     string `koanf:"engine"`
	SQLitePath string `koanf:"sqlitepath"`
}

type DatabaseConfig struct {
	URL      string `koanf:"url"`
	MaxConns int    `koanf:"maxconns"`
}

type ModelConfig struct {
	BaseURL     string        `koanf:"baseurl"`
	APIKey      string        `koanf:"apikey"`
	FastModel   string        `koanf:"fastmodel"`
	SmartModel  string        `koanf:"smartmodel"`
	Timeout     time.Duration `koanf:"timeout"`
	MaxAttempts int           `koanf:"maxattempts"`
	MinBackoff  time.Duration `koanf:"minbackoff"`
	MaxBackoff  time.Duration `koanf:"maxbackoff"`
	Temperature float64       `koanf:"temperature"`
	MaxTokens   int           `koanf:"maxtokens"`
}

// RouterConfig selects the classifier: "keyword" or "embedding".
type RouterConfig struct {
	Mode             string   `koanf:"mode"`
	FastSavings      float64  `koanf:"fastsavings"`
	SmartDepartments []string `koanf:"smartdepartments"`
	Keywords         []string `koanf:"keywords"`
	EmbeddingModel   string   `koanf:"embeddingmodel"`
}

type TribunalConfig struct {
	Enabled     bool          `koanf:"enabled"`
	BaseURL     string        `koanf:"baseurl"`
	Model       string        `koanf:"model"`
	Timeout     time.Duration `koanf:"timeout"`
	PolicyFile  string        `koanf:"policyfile"`
	WatchPolicy bool          `koanf:"watchpolicy"`
}

type NERConfig struct {
	Enabled bool          `koanf:"enabled"`
	URL     string        `koanf:"url"`
	Timeout time.Duration `koanf:"timeout"`
}

// Addr returns host:port for the HTTP listener.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func defaults() map[string]any {
	return map[string]any{
		"server.host":             "0.0.0.0",
		"server.port":             8000,
		"log.level":               "info",
		"log.format":              "json",
		"ratelimit.enabled":       true,
		"ratelimit.perminute":     60,
		"ratelimit.burst":         10,
		"jobs.workers":            4,
		"jobs.queuesize":          256,
		"jobs.maxinputtokens":     4000,
		"jobs.audittimeout":       "5s",
		"audit.engine":            "sqlite",
		"audit.sqlitepath":        "gateway_vault.db",
		"database.maxconns":       10,
		"model.baseurl":           "https://api.openai.com",
		"model.fastmodel":         "gpt-4o-mini",
		"model.smartmodel":        "gpt-4o",
		"model.timeout":           "30s",
		"model.maxattempts":       3,
		"model.minbackoff":        "1s",
		"model.maxbackoff":        "10s",
		"model.temperature":       0.7,
		"router.mode":             "keyword",
		"router.fastsavings":      0.027,
		"router.smartdepartments": []string{"engineering"},
		"router.embeddingmodel":   "text-embedding-3-small",
		"tribunal.enabled":        true,
		"tribunal.baseurl":        "http://localhost:11434",
		"tribunal.model":          "llama3.2",
		"tribunal.timeout":        "10s",
		"tribunal.policyfile":     "policies.json",
		"tribunal.watchpolicy":    true,
		"ner.enabled":             false,
		"ner.url":                 "http://localhost:8001",
		"ner.timeout":             "2s",
	}
}

// Load builds the configuration from defaults, then each path in order, then
// the process environment. A path ending in ".env" is read as a dotenv file;
// any other path as YAML. Missing files are skipped.
func Load(paths ...string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	for _, path := range paths {
		var err error
		if isDotenv(path) {
			err = loadDotenv(k, path)
		} else {
			err = k.Load(file.Provider(path), yaml.Parser())
		}
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", path, err)
		}
	}

	// AIRLOCK_SERVER_PORT -> server.port
	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return &cfg, nil
}

func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "_", ".")
}

func isDotenv(path string) bool {
	base := filepath.Base(path)
	return base == ".env" || strings.HasSuffix(base, ".env")
}

// loadDotenv merges AIRLOCK_ entries from a dotenv file without touching the
// process environment.
func loadDotenv(k *koanf.Koanf, path string) error {
	vars, err := godotenv.Read(path)
	if err != nil {
		return err
	}
	m := make(map[string]any, len(vars))
	for name, value := range vars {
		if strings.HasPrefix(name, envPrefix) {
			m[envKey(name)] = value
		}
	}
	return k.Load(confmap.Provider(m, "."), nil)
}
