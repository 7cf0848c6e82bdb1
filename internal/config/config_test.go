package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/loykin/upgradr/internal/presenter"
)

func writeConfig(t *testing.T, data string) string {
	t.Helper()
	file := filepath.Join(t.TempDir(), "upgradr.toml")
	if err := os.WriteFile(file, []byte(data), 0o644); err != nil {
		t.Fatalf("write toml: %v", err)
	}
	return file
}

func TestLoadMinimal(t *testing.T) {
	file := writeConfig(t, `
[updater]
bin_dir = "/opt/app"
data_dir = "/var/lib/app"
`)
	c, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Updater.Binary != "updater" {
		t.Fatalf("binary default = %q, want updater", c.Updater.Binary)
	}
	if c.Settings.Path != filepath.Join("/var/lib/app", "upgradr.toml") {
		t.Fatalf("settings path default = %q", c.Settings.Path)
	}
	if c.Guard.PIDFile != filepath.Join("/var/lib/app", "upgradr-install.pid") {
		t.Fatalf("guard pidfile default = %q", c.Guard.PIDFile)
	}
	if c.Presenter.Mode != presenter.ModeLog {
		t.Fatalf("presenter mode default = %q, want log", c.Presenter.Mode)
	}
	if c.History.RingSize == 0 {
		t.Fatalf("ring size should default to a positive value")
	}
}

func TestLoadFull(t *testing.T) {
	file := writeConfig(t, `
env = ["APP_ROOT=/srv/app"]

[updater]
bin_dir = "${APP_ROOT}/bin"
binary = "app-updater"
data_dir = "${APP_ROOT}/data"
start_timeout = "2s"
finish_timeout = "90s"
env = ["UPDATER_MIRROR=https://mirror.example.com"]

[settings]
path = "/etc/upgradr/settings.toml"

[presenter]
mode = "queue"
decision_timeout = "5m"

[guard]
pidfile = "/run/upgradr/install.pid"

[log.slog]
level = "debug"
format = "json"

[log.file]
dir = "/var/log/upgradr"
max_size_mb = 20

[history]
ring_size = 64
sinks = ["sqlite:///var/lib/upgradr/history.db"]

[metrics]
enabled = true

[metrics.host]
enabled = true
interval = "10s"
max_history = 50

[server]
enabled = true
listen = "127.0.0.1:9443"
tls_min_version = "1.2"

[server.tls]
enabled = true
dir = "/etc/upgradr/tls"
auto_generate = true

[server.auth]
enabled = true
jwt_secret = "sekrit"
token_ttl = "1h"

[[server.auth.users]]
username = "admin"
password = "pw"
roles = ["admin"]
`)
	c, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Updater.Binary != "app-updater" || c.Updater.StartTimeout != 2*time.Second || c.Updater.FinishTimeout != 90*time.Second {
		t.Fatalf("unexpected updater config: %+v", c.Updater)
	}
	if c.Presenter.Mode != presenter.ModeQueue || c.Presenter.DecisionTimeout != 5*time.Minute {
		t.Fatalf("unexpected presenter config: %+v", c.Presenter)
	}
	if c.Settings.Path != "/etc/upgradr/settings.toml" {
		t.Fatalf("settings path = %q", c.Settings.Path)
	}
	if c.Log.Slog.Level != "debug" || c.Log.Slog.Format != "json" {
		t.Fatalf("unexpected slog config: %+v", c.Log.Slog)
	}
	if c.Log.File.Dir != "/var/log/upgradr" || c.Log.File.MaxSizeMB != 20 {
		t.Fatalf("unexpected file log config: %+v", c.Log.File)
	}
	if c.History.RingSize != 64 || len(c.History.Sinks) != 1 {
		t.Fatalf("unexpected history config: %+v", c.History)
	}
	if !c.Metrics.Enabled || !c.Metrics.Host.Enabled || c.Metrics.Host.Interval != 10*time.Second {
		t.Fatalf("unexpected metrics config: %+v", c.Metrics)
	}
	if !c.Server.Enabled || c.Server.Listen != "127.0.0.1:9443" || c.Server.TLSMinVersion != "1.2" {
		t.Fatalf("unexpected server config: %+v", c.Server)
	}
	if c.Server.TLS == nil || !c.Server.TLS.AutoGenerate || c.Server.TLS.Dir != "/etc/upgradr/tls" {
		t.Fatalf("unexpected tls config: %+v", c.Server.TLS)
	}
	if !c.Server.Auth.Enabled || c.Server.Auth.TokenTTL != time.Hour || len(c.Server.Auth.Users) != 1 {
		t.Fatalf("unexpected auth config: %+v", c.Server.Auth)
	}
	if c.Server.Auth.Users[0].Username != "admin" || c.Server.Auth.Users[0].Roles[0] != "admin" {
		t.Fatalf("unexpected auth user: %+v", c.Server.Auth.Users[0])
	}
}

func TestLoadRejectsMissingDataDir(t *testing.T) {
	file := writeConfig(t, `
[updater]
bin_dir = "/opt/app"
`)
	if _, err := Load(file); err == nil {
		t.Fatalf("expected error without data_dir")
	}
}

func TestLoadRejectsUnknownPresenterMode(t *testing.T) {
	file := writeConfig(t, `
[updater]
data_dir = "/var/lib/app"

[presenter]
mode = "carrier-pigeon"
`)
	if _, err := Load(file); err == nil {
		t.Fatalf("expected error for unknown presenter mode")
	}
}

func TestLoadRejectsBadTOML(t *testing.T) {
	file := writeConfig(t, `{{{{ not toml`)
	if _, err := Load(file); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestQueueModeDefaultWithServer(t *testing.T) {
	file := writeConfig(t, `
[updater]
data_dir = "/var/lib/app"

[server]
enabled = true
`)
	c, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Presenter.Mode != presenter.ModeQueue {
		t.Fatalf("presenter mode = %q, want queue when server enabled", c.Presenter.Mode)
	}
	if c.Server.Listen == "" {
		t.Fatalf("server listen should default")
	}
}

func TestUpdaterSpecExpandsEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "app.env")
	if err := os.WriteFile(envFile, []byte("# comment\nAPP_HOME=/srv/demo\n"), 0o644); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	file := writeConfig(t, `
env_files = ["`+strings.ReplaceAll(envFile, `\`, `\\`)+`"]

[updater]
bin_dir = "${APP_HOME}/bin"
data_dir = "${APP_HOME}/data"
env = ["UPDATER_CHANNEL=stable"]
`)
	c, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	spec, err := c.UpdaterSpec()
	if err != nil {
		t.Fatalf("spec: %v", err)
	}
	if spec.BinDir != "/srv/demo/bin" || spec.DataDir != "/srv/demo/data" {
		t.Fatalf("paths not expanded: bin=%q data=%q", spec.BinDir, spec.DataDir)
	}
	if len(spec.Env) != 1 || spec.Env[0] != "UPDATER_CHANNEL=stable" {
		t.Fatalf("unexpected spec env: %v", spec.Env)
	}
}

func TestUpdaterSpecMissingEnvFile(t *testing.T) {
	file := writeConfig(t, `
env_files = ["/nonexistent/app.env"]

[updater]
data_dir = "/var/lib/app"
`)
	c, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := c.UpdaterSpec(); err == nil {
		t.Fatalf("expected error for missing env file")
	}
}

func TestGlobalEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "base.env")
	if err := os.WriteFile(envFile, []byte("CHANNEL=file\nREGION=eu\n"), 0o644); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	file := writeConfig(t, `
env = ["CHANNEL=toplevel"]
env_files = ["`+strings.ReplaceAll(envFile, `\`, `\\`)+`"]

[updater]
data_dir = "/var/lib/app"
`)
	c, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	e, err := c.GlobalEnv()
	if err != nil {
		t.Fatalf("global env: %v", err)
	}
	if e.Var["CHANNEL"] != "toplevel" {
		t.Fatalf("top-level env should override env_files, got %q", e.Var["CHANNEL"])
	}
	if e.Var["REGION"] != "eu" {
		t.Fatalf("env file vars should load, got %q", e.Var["REGION"])
	}
}
