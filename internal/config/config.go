// Package config provides configuration management for cantor.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults for tunables that have a single canonical value.
const (
	// DefaultPageSize is the number of songs returned per search or "more"
	// page. The bot uses one page size everywhere.
	DefaultPageSize = 5

	// DefaultThemeMatchLimit caps how many candidates a single theme may
	// contribute before filtering.
	DefaultThemeMatchLimit = 10

	// DefaultSessionTTL is the sliding inactivity window after which a
	// user's session is considered expired.
	DefaultSessionTTL = 60 * time.Minute

	// DefaultParserTimeout bounds a single LLM parse call.
	DefaultParserTimeout = 10 * time.Second

	// DefaultOpsAddr is the listen address for the ops/health server.
	DefaultOpsAddr = ":8600"

	// DefaultOllamaURL is the local Ollama endpoint used for query parsing.
	DefaultOllamaURL = "http://localhost:11434"

	// DefaultOllamaModel is used when the config names no model.
	DefaultOllamaModel = "mistral-small3.1:latest"
)

// Config holds all runtime configuration for the bot.
type Config struct {
	DBPath        string              `yaml:"db_path"`
	CatalogPath   string              `yaml:"catalog_path"`
	TelegramToken string              `yaml:"telegram_token"`
	OpsAddr       string              `yaml:"ops_addr"`
	OllamaURL     string              `yaml:"ollama_url"`
	OllamaModel   string              `yaml:"ollama_model"`
	ParserTimeout time.Duration       `yaml:"parser_timeout"`
	UseMockParser bool                `yaml:"use_mock_parser"`
	PageSize      int                 `yaml:"page_size"`
	ThemeLimit    int                 `yaml:"theme_limit"`
	SessionTTL    time.Duration       `yaml:"session_ttl"`
	MaxConns      int                 `yaml:"max_conns"`
	Debug         bool                `yaml:"debug"`
	ThemeSynonyms map[string][]string `yaml:"theme_synonyms"`
}

// Default returns a configuration with all defaults applied, including the
// built-in theme synonym table.
func Default() *Config {
	return &Config{
		DBPath:        DBPath(),
		OpsAddr:       DefaultOpsAddr,
		OllamaURL:     DefaultOllamaURL,
		OllamaModel:   DefaultOllamaModel,
		ParserTimeout: DefaultParserTimeout,
		PageSize:      DefaultPageSize,
		ThemeLimit:    DefaultThemeMatchLimit,
		SessionTTL:    DefaultSessionTTL,
		MaxConns:      4,
		ThemeSynonyms: DefaultThemeSynonyms(),
	}
}

// DefaultThemeSynonyms maps each canonical theme to the surface forms that
// should resolve to it. Loaded configs may replace or extend this table.
func DefaultThemeSynonyms() map[string][]string {
	return map[string][]string{
		"surrender":    {"surrender", "yielding", "giving up", "submission"},
		"worship":      {"worship", "praise", "adoration", "honor"},
		"grace":        {"grace", "mercy", "forgiveness", "undeserved"},
		"love":         {"love", "loving", "beloved", "affection"},
		"peace":        {"peace", "calm", "rest", "tranquil", "still"},
		"hope":         {"hope", "hopeful", "future", "expectation"},
		"faith":        {"faith", "trust", "belief", "confidence"},
		"joy":          {"joy", "joyful", "happiness", "celebration"},
		"redemption":   {"redemption", "salvation", "saved", "redeemed"},
		"commitment":   {"commitment", "dedication", "devoted"},
		"consecration": {"consecration", "holy", "sacred", "set apart"},
		"altar-call":   {"altar call", "altar-call", "invitation", "response"},
		"blood":        {"blood", "cross", "sacrifice", "calvary"},
		"cleansing":    {"cleansing", "clean", "wash", "pure", "purify"},
		"healing":      {"healing", "restoration", "breakthrough"},
	}
}

// DataDir returns the directory that holds the database and settings.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cantor"
	}
	return filepath.Join(home, ".cantor")
}

// DBPath returns the default SQLite database path.
func DBPath() string {
	return filepath.Join(DataDir(), "cantor.db")
}

// SettingsPath returns the default YAML settings file path.
func SettingsPath() string {
	return filepath.Join(DataDir(), "settings.yaml")
}

// EnsureDataDir creates the data directory if it does not exist.
func EnsureDataDir() error {
	return os.MkdirAll(DataDir(), 0o755)
}

// Load reads the YAML settings file at path (SettingsPath() when empty),
// layers it over defaults, then applies environment overrides. A missing
// file is not an error; the defaults simply stand.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = SettingsPath()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read settings: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

// applyEnv layers environment variables over the loaded values.
func (c *Config) applyEnv() {
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.TelegramToken = v
	}
	if v := os.Getenv("CANTOR_DB_PATH"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("CANTOR_CATALOG_PATH"); v != "" {
		c.CatalogPath = v
	}
	if v := os.Getenv("OLLAMA_URL"); v != "" {
		c.OllamaURL = v
	}
	if v := os.Getenv("OLLAMA_MODEL"); v != "" {
		c.OllamaModel = v
	}
	if v := os.Getenv("CANTOR_OPS_ADDR"); v != "" {
		c.OpsAddr = v
	}
	if v := os.Getenv("CANTOR_USE_MOCK_PARSER"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.UseMockParser = b
		}
	}
	if v := os.Getenv("CANTOR_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Debug = b
		}
	}
}

// applyDefaults backfills zero values a partial YAML file may have left.
func (c *Config) applyDefaults() {
	if c.DBPath == "" {
		c.DBPath = DBPath()
	}
	if c.OpsAddr == "" {
		c.OpsAddr = DefaultOpsAddr
	}
	if c.OllamaURL == "" {
		c.OllamaURL = DefaultOllamaURL
	}
	if c.OllamaModel == "" {
		c.OllamaModel = DefaultOllamaModel
	}
	if c.ParserTimeout <= 0 {
		c.ParserTimeout = DefaultParserTimeout
	}
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.ThemeLimit <= 0 {
		c.ThemeLimit = DefaultThemeMatchLimit
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = DefaultSessionTTL
	}
	if c.MaxConns <= 0 {
		c.MaxConns = 4
	}
	if len(c.ThemeSynonyms) == 0 {
		c.ThemeSynonyms = DefaultThemeSynonyms()
	}
}
