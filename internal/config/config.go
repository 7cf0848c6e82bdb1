package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/loykin/upgradr/internal/auth"
	"github.com/loykin/upgradr/internal/env"
	"github.com/loykin/upgradr/internal/history"
	"github.com/loykin/upgradr/internal/logger"
	"github.com/loykin/upgradr/internal/metrics"
	"github.com/loykin/upgradr/internal/presenter"
	"github.com/loykin/upgradr/internal/updater"
	"github.com/spf13/viper"
)

// Config represents the top-level TOML structure.
type Config struct {
	Env       []string        `toml:"env" mapstructure:"env"`
	EnvFiles  []string        `toml:"env_files" mapstructure:"env_files"`
	Updater   UpdaterConfig   `toml:"updater" mapstructure:"updater"`
	Settings  SettingsConfig  `toml:"settings" mapstructure:"settings"`
	Presenter PresenterConfig `toml:"presenter" mapstructure:"presenter"`
	Guard     GuardConfig     `toml:"guard" mapstructure:"guard"`
	Log       logger.Config   `toml:"log" mapstructure:"log"`
	History   HistoryConfig   `toml:"history" mapstructure:"history"`
	Metrics   MetricsConfig   `toml:"metrics" mapstructure:"metrics"`
	Server    ServerConfig    `toml:"server" mapstructure:"server"`
}

// UpdaterConfig describes the external updater binary.
type UpdaterConfig struct {
	BinDir        string        `toml:"bin_dir" mapstructure:"bin_dir"`
	Binary        string        `toml:"binary" mapstructure:"binary"`
	DataDir       string        `toml:"data_dir" mapstructure:"data_dir"`
	StartTimeout  time.Duration `toml:"start_timeout" mapstructure:"start_timeout"`
	FinishTimeout time.Duration `toml:"finish_timeout" mapstructure:"finish_timeout"`
	Env           []string      `toml:"env" mapstructure:"env"`
}

// SettingsConfig locates the persisted preference file.
type SettingsConfig struct {
	Path string `toml:"path" mapstructure:"path"`
}

// PresenterConfig selects how update offers are surfaced.
type PresenterConfig struct {
	Mode            string        `toml:"mode" mapstructure:"mode"` // "queue" or "log"
	DecisionTimeout time.Duration `toml:"decision_timeout" mapstructure:"decision_timeout"`
}

// GuardConfig locates the installer pidfile.
type GuardConfig struct {
	PIDFile string `toml:"pidfile" mapstructure:"pidfile"`
}

// HistoryConfig configures the audit trail.
type HistoryConfig struct {
	RingSize int      `toml:"ring_size" mapstructure:"ring_size"`
	Sinks    []string `toml:"sinks" mapstructure:"sinks"` // DSNs, e.g. sqlite:///var/lib/upgradr/history.db
}

// MetricsConfig configures the Prometheus surface.
type MetricsConfig struct {
	Enabled bool                      `toml:"enabled" mapstructure:"enabled"`
	Host    metrics.HostMonitorConfig `toml:"host" mapstructure:"host"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Enabled       bool        `toml:"enabled" mapstructure:"enabled"`
	Listen        string      `toml:"listen" mapstructure:"listen"`
	BasePath      string      `toml:"base_path" mapstructure:"base_path"`
	TLSMinVersion string      `toml:"tls_min_version" mapstructure:"tls_min_version"`
	TLSMaxVersion string      `toml:"tls_max_version" mapstructure:"tls_max_version"`
	TLS           *TLSConfig  `toml:"tls" mapstructure:"tls"`
	Auth          auth.Config `toml:"auth" mapstructure:"auth"`
}

// TLSConfig configures transport security for the HTTP API.
type TLSConfig struct {
	Enabled      bool        `toml:"enabled" mapstructure:"enabled"`
	CertFile     string      `toml:"cert_file" mapstructure:"cert_file"`
	KeyFile      string      `toml:"key_file" mapstructure:"key_file"`
	Dir          string      `toml:"dir" mapstructure:"dir"`
	AutoGenerate bool        `toml:"auto_generate" mapstructure:"auto_generate"`
	AutoGen      *AutoGenTLS `toml:"auto_gen" mapstructure:"auto_gen"`
}

// AutoGenTLS tunes self-signed certificate generation.
type AutoGenTLS struct {
	CommonName   string   `toml:"common_name" mapstructure:"common_name"`
	Organization string   `toml:"organization" mapstructure:"organization"`
	DNSNames     []string `toml:"dns_names" mapstructure:"dns_names"`
	IPAddresses  []string `toml:"ip_addresses" mapstructure:"ip_addresses"`
	ValidDays    int      `toml:"valid_days" mapstructure:"valid_days"`
}

// Load reads and validates the TOML configuration at path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Updater.Binary == "" {
		c.Updater.Binary = "updater"
	}
	if c.Settings.Path == "" && c.Updater.DataDir != "" {
		c.Settings.Path = filepath.Join(c.Updater.DataDir, "upgradr.toml")
	}
	if c.Guard.PIDFile == "" && c.Updater.DataDir != "" {
		c.Guard.PIDFile = filepath.Join(c.Updater.DataDir, "upgradr-install.pid")
	}
	if c.Presenter.Mode == "" {
		if c.Server.Enabled {
			c.Presenter.Mode = presenter.ModeQueue
		} else {
			c.Presenter.Mode = presenter.ModeLog
		}
	}
	if c.History.RingSize == 0 {
		c.History.RingSize = history.DefaultRingSize
	}
	if c.Server.Listen == "" {
		c.Server.Listen = "127.0.0.1:8080"
	}
}

// Validate reports configuration errors that would make startup fail.
func (c *Config) Validate() error {
	spec := updater.Spec{Binary: c.Updater.Binary, DataDir: c.Updater.DataDir}
	if err := spec.Validate(); err != nil {
		return err
	}
	switch c.Presenter.Mode {
	case presenter.ModeQueue, presenter.ModeLog:
	default:
		return fmt.Errorf("unknown presenter mode %q", c.Presenter.Mode)
	}
	if c.Server.Enabled && c.Server.Listen == "" {
		return fmt.Errorf("server enabled without listen address")
	}
	return nil
}

// GlobalEnv builds the configured environment overlay: env_files in order,
// then top-level env entries overriding last.
func (c *Config) GlobalEnv() (*env.Env, error) {
	e := env.New()
	for _, p := range c.EnvFiles {
		pairs, err := loadEnvFile(p)
		if err != nil {
			return nil, err
		}
		for k, v := range pairs {
			e.Set(k, v)
		}
	}
	for _, kv := range c.Env {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			e.Set(kv[:i], kv[i+1:])
		}
	}
	return e, nil
}

// UpdaterSpec builds the invocation spec, expanding ${VAR} placeholders in
// configured paths from the global environment. Transcripts share the
// daemon's log file settings.
func (c *Config) UpdaterSpec() (updater.Spec, error) {
	e, err := c.GlobalEnv()
	if err != nil {
		return updater.Spec{}, err
	}
	spec := updater.Spec{
		BinDir:        e.Expand(c.Updater.BinDir),
		Binary:        c.Updater.Binary,
		DataDir:       e.Expand(c.Updater.DataDir),
		Env:           c.Updater.Env,
		StartTimeout:  c.Updater.StartTimeout,
		FinishTimeout: c.Updater.FinishTimeout,
		Log:           c.Log.File,
	}
	if err := spec.Validate(); err != nil {
		return updater.Spec{}, err
	}
	return spec, nil
}

// loadEnvFile parses a simple .env file with KEY=VALUE lines (no export, no quotes). Lines starting with # are ignored.
func loadEnvFile(path string) (map[string]string, error) {
	// Mitigate G304: sanitize user-provided path by cleaning it before use.
	clean := filepath.Clean(path)
	b, err := os.ReadFile(clean)
	if err != nil {
		return nil, err
	}
	m := make(map[string]string)
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if i := strings.IndexByte(line, '='); i >= 0 {
			k := strings.TrimSpace(line[:i])
			v := strings.TrimSpace(line[i+1:])
			m[k] = v
		}
	}
	return m, nil
}
