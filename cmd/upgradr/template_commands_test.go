package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestTemplateCreate(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	defer func() { _ = os.Chdir(oldWd) }()

	c := command{}

	t.Run("desktop with name", func(t *testing.T) {
		err := c.TemplateCreate(TemplateCreateFlags{Type: "desktop", Name: "myapp"})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		data, err := os.ReadFile(filepath.Join("templates", "myapp.toml"))
		if err != nil {
			t.Fatalf("read generated template: %v", err)
		}
		content := string(data)
		if !strings.Contains(content, "[updater]") {
			t.Fatalf("template missing updater section: %s", content)
		}
		if !strings.Contains(content, "myapp") {
			t.Fatalf("template should parameterize paths with the name: %s", content)
		}
	})

	t.Run("default name from type", func(t *testing.T) {
		if err := c.TemplateCreate(TemplateCreateFlags{Type: "minimal"}); err != nil {
			t.Fatalf("create: %v", err)
		}
		if _, err := os.Stat(filepath.Join("templates", "minimal-sample.toml")); err != nil {
			t.Fatalf("expected templates/minimal-sample.toml: %v", err)
		}
	})

	t.Run("custom output path", func(t *testing.T) {
		out := filepath.Join(tmpDir, "svc.toml")
		err := c.TemplateCreate(TemplateCreateFlags{Type: "server", Name: "svc", Output: out})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if _, err := os.Stat(out); err != nil {
			t.Fatalf("expected %s: %v", out, err)
		}
	})

	t.Run("existing file without force", func(t *testing.T) {
		err := c.TemplateCreate(TemplateCreateFlags{Type: "desktop", Name: "myapp"})
		if err == nil || !strings.Contains(err.Error(), "already exists") {
			t.Fatalf("expected already-exists error, got %v", err)
		}
	})

	t.Run("existing file with force", func(t *testing.T) {
		err := c.TemplateCreate(TemplateCreateFlags{Type: "server", Name: "myapp", Force: true})
		if err != nil {
			t.Fatalf("force overwrite: %v", err)
		}
		data, _ := os.ReadFile(filepath.Join("templates", "myapp.toml"))
		if !strings.Contains(string(data), "[server]") {
			t.Fatal("force overwrite should replace the content")
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		err := c.TemplateCreate(TemplateCreateFlags{Type: "mainframe", Name: "x"})
		if err == nil || !strings.Contains(err.Error(), "unknown template type") {
			t.Fatalf("expected unknown type error, got %v", err)
		}
	})
}
