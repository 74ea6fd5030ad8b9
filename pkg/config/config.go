// Package config provides YAML-based configuration loading for fastdrop.
package config

import (
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "strings"

    "github.com/spf13/viper"
)

// Config is the root application configuration.
type Config struct {
    // AppName is the display name broadcast over the out-of-band channel.
    AppName string `mapstructure:"app_name"`

    // Log holds logging configuration.
    Log LogConfig `mapstructure:"log"`

    // Identity controls the local cryptographic identity.
    Identity IdentityConfig `mapstructure:"identity"`

    // Discovery holds out-of-band channel options.
    Discovery DiscoveryConfig `mapstructure:"discovery"`

    // Transfer holds data-channel options.
    Transfer TransferConfig `mapstructure:"transfer"`
}

// LogConfig defines logger settings.
type LogConfig struct {
    // Level: debug, info, warn, error
    Level string `mapstructure:"level"`
    // Format: console or json
    Format string `mapstructure:"format"`
    // Outputs: list of outputs: stdout, stderr, or file paths
    Outputs []string `mapstructure:"outputs"`

    // Rotation controls file rotation when writing to files
    Rotation RotationConfig `mapstructure:"rotation"`
    // Development toggles development-friendly logging options
    Development bool `mapstructure:"development"`
}

// RotationConfig controls log file rotation for file outputs.
type RotationConfig struct {
    Enable     bool   `mapstructure:"enable"`
    Filename   string `mapstructure:"filename"`
    MaxSizeMB  int    `mapstructure:"max_size_mb"`
    MaxBackups int    `mapstructure:"max_backups"`
    MaxAgeDays int    `mapstructure:"max_age_days"`
    Compress   bool   `mapstructure:"compress"`
}

// IdentityConfig selects the local key material.
type IdentityConfig struct {
    Alg            string `mapstructure:"alg"`
    PrivateKey     string `mapstructure:"private_key"`      // base64url, no padding
    PrivateKeyFile string `mapstructure:"private_key_file"` // path to key file
}

// DiscoveryConfig tunes the out-of-band scan/advertise behavior.
type DiscoveryConfig struct {
    // ScanWindowSec is how long a receiver scans before listing candidates.
    ScanWindowSec int `mapstructure:"scan_window_sec"`
}

// TransferConfig tunes the data channel.
type TransferConfig struct {
    // DownloadDir is where received files are written.
    DownloadDir string `mapstructure:"download_dir"`
    // IdleTimeoutSec tears down a peer session after this much inactivity.
    IdleTimeoutSec int `mapstructure:"idle_timeout_sec"`
}

// Default returns a Config populated with sensible defaults.
func Default() *Config {
    return &Config{
        AppName: "Fastdrop",
        Log: LogConfig{
            Level:       "info",
            Format:      "console",
            Outputs:     []string{"stderr"},
            Development: true,
            Rotation: RotationConfig{
                Enable:     false,
                Filename:   "logs/fastdrop.log",
                MaxSizeMB:  50,
                MaxBackups: 3,
                MaxAgeDays: 28,
                Compress:   true,
            },
        },
        Identity:  IdentityConfig{Alg: "ed25519"},
        Discovery: DiscoveryConfig{ScanWindowSec: 15},
        Transfer:  TransferConfig{DownloadDir: ".", IdleTimeoutSec: 300},
    }
}

// Load reads configuration from the provided path (if non-empty), otherwise
// it searches common locations and supports environment overrides. Environment
// variables use the prefix FASTDROP and `.`/`-` are replaced with `_`.
// Example: FASTDROP_LOG_LEVEL=debug
func Load(path string) (*Config, error) {
    cfg := Default()

    v := viper.New()
    v.SetConfigType("yaml")
    v.SetEnvPrefix("FASTDROP")
    v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
    v.AutomaticEnv()

    // seed defaults for viper so env-only configs work
    v.SetDefault("app_name", cfg.AppName)
    v.SetDefault("log.level", cfg.Log.Level)
    v.SetDefault("log.format", cfg.Log.Format)
    v.SetDefault("log.outputs", cfg.Log.Outputs)
    v.SetDefault("log.development", cfg.Log.Development)
    v.SetDefault("log.rotation.enable", cfg.Log.Rotation.Enable)
    v.SetDefault("log.rotation.filename", cfg.Log.Rotation.Filename)
    v.SetDefault("log.rotation.max_size_mb", cfg.Log.Rotation.MaxSizeMB)
    v.SetDefault("log.rotation.max_backups", cfg.Log.Rotation.MaxBackups)
    v.SetDefault("log.rotation.max_age_days", cfg.Log.Rotation.MaxAgeDays)
    v.SetDefault("log.rotation.compress", cfg.Log.Rotation.Compress)
    v.SetDefault("identity.alg", cfg.Identity.Alg)
    v.SetDefault("identity.private_key", cfg.Identity.PrivateKey)
    v.SetDefault("identity.private_key_file", cfg.Identity.PrivateKeyFile)
    v.SetDefault("discovery.scan_window_sec", cfg.Discovery.ScanWindowSec)
    v.SetDefault("transfer.download_dir", cfg.Transfer.DownloadDir)
    v.SetDefault("transfer.idle_timeout_sec", cfg.Transfer.IdleTimeoutSec)

    if path == "" {
        if envPath := os.Getenv("FASTDROP_CONFIG"); envPath != "" {
            path = envPath
        }
    }

    if path != "" {
        v.SetConfigFile(path)
    } else {
        // Search common locations with base name `fastdrop`
        v.SetConfigName("fastdrop")
        v.AddConfigPath(".")
        v.AddConfigPath("./configs")
        if home, err := os.UserHomeDir(); err == nil {
            v.AddConfigPath(filepath.Join(home, ".fastdrop"))
        }
    }

    // Read config file if present; if not found, continue with defaults/env
    if err := v.ReadInConfig(); err != nil {
        var notFound viper.ConfigFileNotFoundError
        if !errors.As(err, &notFound) {
            return nil, fmt.Errorf("read config: %w", err)
        }
    }

    if err := v.Unmarshal(&cfg); err != nil {
        return nil, fmt.Errorf("decode config: %w", err)
    }

    if err := cfg.validate(); err != nil {
        return nil, err
    }
    return cfg, nil
}

func (c *Config) validate() error {
    lvl := strings.ToLower(strings.TrimSpace(c.Log.Level))
    switch lvl {
    case "debug", "info", "warn", "warning", "error":
        // ok
    default:
        return fmt.Errorf("invalid log.level: %q", c.Log.Level)
    }

    if c.Log.Format == "" {
        c.Log.Format = "console"
    }
    if len(c.Log.Outputs) == 0 {
        c.Log.Outputs = []string{"stderr"}
    }
    if strings.TrimSpace(c.AppName) == "" {
        c.AppName = "Fastdrop"
    }
    if c.Discovery.ScanWindowSec <= 0 {
        c.Discovery.ScanWindowSec = 15
    }
    if c.Transfer.IdleTimeoutSec <= 0 {
        c.Transfer.IdleTimeoutSec = 300
    }
    if strings.TrimSpace(c.Transfer.DownloadDir) == "" {
        c.Transfer.DownloadDir = "."
    }
    return nil
}

// MustLoad is a convenience that panics on error.
func MustLoad(path string) *Config {
    cfg, err := Load(path)
    if err != nil {
        panic(err)
    }
    return cfg
}
