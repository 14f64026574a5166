// Package util provides common utilities for netmap.
package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/user/netmap/internal/model"
)

// Config holds all application configuration.
type Config struct {
	DataDir  string `mapstructure:"data_dir"`
	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`

	// Web server
	Listen string `mapstructure:"listen"`

	Auth AuthConfig `mapstructure:"auth"`
	Hass HassConfig `mapstructure:"hass"`

	// Snapshot history
	SnapshotRetention time.Duration `mapstructure:"snapshot_retention"`

	Entries []EntryConfig `mapstructure:"-"`
}

// AuthConfig guards the HTTP API.
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// Enabled reports whether requests must carry a bearer token.
func (a AuthConfig) Enabled() bool {
	return a.JWTSecret != ""
}

// HassConfig points at the Home Assistant instance providing entity registries.
type HassConfig struct {
	URL   string `mapstructure:"url"`
	Token string `mapstructure:"token"`
}

// EntryConfig is one controller entry as written in the config file.
type EntryConfig struct {
	ID        string        `mapstructure:"id"`
	URL       string        `mapstructure:"url"`
	Username  string        `mapstructure:"username"`
	Password  string        `mapstructure:"password"`
	Site      string        `mapstructure:"site"`
	VerifySSL bool          `mapstructure:"verify_ssl"`
	Options   model.Options `mapstructure:"options"`
}

// Entry converts the config block into a model entry with a normalized URL.
func (e EntryConfig) Entry() model.Entry {
	return model.Entry{
		ID:        e.ID,
		BaseURL:   NormalizeURL(e.URL),
		Username:  e.Username,
		Password:  e.Password,
		Site:      e.Site,
		VerifySSL: e.VerifySSL,
		Options:   e.Options.Normalized(),
	}
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".netmap")

	return &Config{
		DataDir:           dataDir,
		LogLevel:          "info",
		LogFile:           filepath.Join(dataDir, "netmap.log"),
		Listen:            ":8099",
		Auth:              AuthConfig{TokenTTL: 24 * time.Hour},
		SnapshotRetention: 7 * 24 * time.Hour,
	}
}

// LoadConfig loads configuration from file and environment.
func LoadConfig(cfgFile string) (*Config, error) {
	cfg := DefaultConfig()

	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(cfg.DataDir)
		v.AddConfigPath(".")
	}

	v.SetDefault("data_dir", cfg.DataDir)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_file", cfg.LogFile)
	v.SetDefault("listen", cfg.Listen)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", cfg.Auth.TokenTTL)
	v.SetDefault("hass.url", "")
	v.SetDefault("hass.token", "")
	v.SetDefault("snapshot_retention", cfg.SnapshotRetention)

	v.SetEnvPrefix("NETMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	entries, err := decodeEntries(v.Get("entries"))
	if err != nil {
		return nil, err
	}
	cfg.Entries = entries

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	return cfg, nil
}

// decodeEntries decodes each entry on top of the option defaults so that
// omitted options keep their default rather than the zero value.
func decodeEntries(raw interface{}) ([]EntryConfig, error) {
	if raw == nil {
		return nil, nil
	}
	items, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("entries: expected a list, got %T", raw)
	}

	entries := make([]EntryConfig, 0, len(items))
	seen := make(map[string]bool)
	for i, item := range items {
		e := EntryConfig{Site: "default", VerifySSL: true, Options: model.DefaultOptions()}
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           &e,
			WeaklyTypedInput: true,
			DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		})
		if err != nil {
			return nil, err
		}
		if err := dec.Decode(item); err != nil {
			return nil, fmt.Errorf("entries[%d]: %w", i, err)
		}
		if e.ID == "" {
			e.ID = fmt.Sprintf("entry%d", i+1)
		}
		if seen[e.ID] {
			return nil, fmt.Errorf("entries[%d]: duplicate id %q", i, e.ID)
		}
		seen[e.ID] = true
		entries = append(entries, e)
	}
	return entries, nil
}

// FindEntry returns the entry with the given id.
func (c *Config) FindEntry(id string) (EntryConfig, bool) {
	for _, e := range c.Entries {
		if e.ID == id {
			return e, true
		}
	}
	return EntryConfig{}, false
}

// EnsureDir ensures a directory exists.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// FileExists checks if a file exists.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return !info.IsDir()
}
