package template

import (
	"fmt"

	"github.com/pelletier/go-toml/v2"
)

// TemplateType represents the type of configuration template to generate
type TemplateType string

const (
	TypeDesktop TemplateType = "desktop"
	TypeGUI     TemplateType = "gui"
	TypeServer  TemplateType = "server"
	TypeDaemon  TemplateType = "daemon"
	TypeMinimal TemplateType = "minimal"
	TypeBasic   TemplateType = "basic"
)

// ConfigTemplate is a starter daemon configuration. Field names mirror the
// TOML the daemon loads, so generated output can be used as-is.
type ConfigTemplate struct {
	Updater   UpdaterTemplate    `toml:"updater"`
	Settings  *SettingsTemplate  `toml:"settings,omitempty"`
	Presenter *PresenterTemplate `toml:"presenter,omitempty"`
	Log       *LogTemplate       `toml:"log,omitempty"`
	History   *HistoryTemplate   `toml:"history,omitempty"`
	Metrics   *MetricsTemplate   `toml:"metrics,omitempty"`
	Server    *ServerTemplate    `toml:"server,omitempty"`
}

// UpdaterTemplate locates the external updater binary. Timeouts are duration
// strings ("5s") because that is what the config loader accepts.
type UpdaterTemplate struct {
	BinDir        string `toml:"bin_dir"`
	Binary        string `toml:"binary"`
	DataDir       string `toml:"data_dir"`
	StartTimeout  string `toml:"start_timeout,omitempty"`
	FinishTimeout string `toml:"finish_timeout,omitempty"`
}

// SettingsTemplate locates the persisted preference file.
type SettingsTemplate struct {
	Path string `toml:"path"`
}

// PresenterTemplate selects how update offers are surfaced.
type PresenterTemplate struct {
	Mode            string `toml:"mode"`
	DecisionTimeout string `toml:"decision_timeout,omitempty"`
}

// LogTemplate configures structured logging and updater transcripts.
type LogTemplate struct {
	Slog *SlogTemplate    `toml:"slog,omitempty"`
	File *FileLogTemplate `toml:"file,omitempty"`
}

// SlogTemplate configures the daemon's structured logger.
type SlogTemplate struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	Color  bool   `toml:"color,omitempty"`
}

// FileLogTemplate configures rotated transcript files.
type FileLogTemplate struct {
	Dir string `toml:"dir"`
}

// HistoryTemplate configures the audit trail.
type HistoryTemplate struct {
	RingSize int      `toml:"ring_size"`
	Sinks    []string `toml:"sinks,omitempty"`
}

// MetricsTemplate configures the Prometheus surface.
type MetricsTemplate struct {
	Enabled bool             `toml:"enabled"`
	Host    *HostMonTemplate `toml:"host,omitempty"`
}

// HostMonTemplate configures host resource sampling.
type HostMonTemplate struct {
	Enabled    bool   `toml:"enabled"`
	Interval   string `toml:"interval,omitempty"`
	MaxHistory int    `toml:"max_history,omitempty"`
}

// ServerTemplate configures the HTTP API.
type ServerTemplate struct {
	Enabled  bool          `toml:"enabled"`
	Listen   string        `toml:"listen"`
	BasePath string        `toml:"base_path,omitempty"`
	Auth     *AuthTemplate `toml:"auth,omitempty"`
}

// AuthTemplate configures API authentication.
type AuthTemplate struct {
	Enabled   bool           `toml:"enabled"`
	JWTSecret string         `toml:"jwt_secret,omitempty"`
	TokenTTL  string         `toml:"token_ttl,omitempty"`
	Users     []UserTemplate `toml:"users,omitempty"`
}

// UserTemplate declares one API account.
type UserTemplate struct {
	Username string   `toml:"username"`
	Password string   `toml:"password"`
	Roles    []string `toml:"roles"`
}

// Generator provides template generation functionality
type Generator struct{}

// NewGenerator creates a new template generator
func NewGenerator() *Generator {
	return &Generator{}
}

// Generate creates a configuration template based on the specified type. The
// name parameterizes install paths.
func (g *Generator) Generate(templateType TemplateType, name string) (*ConfigTemplate, error) {
	switch templateType {
	case TypeDesktop, TypeGUI:
		return g.generateDesktopTemplate(name), nil
	case TypeServer, TypeDaemon:
		return g.generateServerTemplate(name), nil
	case TypeMinimal, TypeBasic:
		return g.generateMinimalTemplate(name), nil
	default:
		return nil, fmt.Errorf("unknown template type: %s (supported: desktop, server, minimal)", templateType)
	}
}

// GenerateTOML creates a TOML representation of the template
func (g *Generator) GenerateTOML(templateType TemplateType, name string) ([]byte, error) {
	template, err := g.Generate(templateType, name)
	if err != nil {
		return nil, err
	}

	data, err := toml.Marshal(template)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal template: %w", err)
	}

	return data, nil
}

// GetSupportedTypes returns a list of all supported template types
func (g *Generator) GetSupportedTypes() []string {
	return []string{
		string(TypeDesktop),
		string(TypeServer),
		string(TypeMinimal),
	}
}

// Helper functions to create specific templates

// generateDesktopTemplate targets an interactive application: offers are
// queued for a UI to pick up over the loopback API, no authentication.
func (g *Generator) generateDesktopTemplate(name string) *ConfigTemplate {
	return &ConfigTemplate{
		Updater: UpdaterTemplate{
			BinDir:  "/opt/" + name,
			Binary:  "updater",
			DataDir: "/var/lib/" + name,
		},
		Presenter: &PresenterTemplate{
			Mode:            "queue",
			DecisionTimeout: "10m",
		},
		Log: &LogTemplate{
			Slog: &SlogTemplate{
				Level:  "info",
				Format: "text",
				Color:  true,
			},
		},
		Server: &ServerTemplate{
			Enabled: true,
			Listen:  "127.0.0.1:8080",
		},
	}
}

/// generateServerTemplate targets an unattended host: decisions arrive via the
// authenticated API, checks are logged, history lands in sqlite.
func (g *Generator) generateServerTemplate(name string) *ConfigTemplate {
	return &ConfigTemplate{
		Updater: UpdaterTemplate{
			BinDir:        "/opt/" + name + "/bin",
			Binary:        "updater",
			DataDir:       "/var/lib/" + name,
			StartTimeout:  "5s",
			FinishTimeout: "60s",
		},
		Settings: &SettingsTemplate{
			Path: "/var/lib/" + name + "/settings.toml",
		},
		Presenter: &PresenterTemplate{
			Mode: "log",
		},
		Log: &LogTemplate{
			Slog: &SlogTemplate{
				Level:  "info",
				Format: "json",
			},
			File: &FileLogTemplate{
				Dir: "/var/log/" + name,
			},
		},
		History: &HistoryTemplate{
			RingSize: 256,
			Sinks:    []string{"sqlite:///var/lib/" + name + "/history.db"},
		},
		Metrics: &MetricsTemplate{
			Enabled: true,
			Host: &HostMonTemplate{
				Enabled:    true,
				Interval:   "5s",
				MaxHistory: 100,
			},
		},
		Server: &ServerTemplate{
			Enabled:  true,
			Listen:   "0.0.0.0:8080",
			BasePath: "/api",
			Auth: &AuthTemplate{
				Enabled:   true,
				JWTSecret: "change-me",
				TokenTTL:  "24h",
				Users: []UserTemplate{
					{Username: "admin", Password: "change-me", Roles: []string{"admin"}},
				},
			},
		},
	}
}

func (g *Generator) generateMinimalTemplate(name string) *ConfigTemplate {
	return &ConfigTemplate{
		Updater: UpdaterTemplate{
			BinDir:  "/opt/" + name,
			Binary:  "updater",
			DataDir: "/var/lib/" + name,
		},
	}
}
