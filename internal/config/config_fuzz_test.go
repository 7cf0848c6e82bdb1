package config

import (
	"os"
	"strings"
	"testing"
)

// FuzzLoadTOML feeds random-ish fields into a tiny TOML and ensures the
// loader does not panic and handles constraints reasonably.
func FuzzLoadTOML(f *testing.F) {
	f.Add("/opt/app", "updater", "/var/lib/app", "queue", "5s")
	f.Add("", "", "", "log", "")
	f.Add("${HOME}/bin", "app-updater", "${HOME}/data", "carrier-pigeon", "-3s")

	f.Fuzz(func(t *testing.T, binDir, binary, dataDir, mode, timeout string) {
		clean := func(s string) string {
			s = strings.ReplaceAll(s, "\"", "")
			return strings.ReplaceAll(s, "\n", "")
		}
		b := strings.Builder{}
		b.WriteString("[updater]\n")
		b.WriteString("bin_dir = \"" + clean(binDir) + "\"\n")
		b.WriteString("binary = \"" + clean(binary) + "\"\n")
		b.WriteString("data_dir = \"" + clean(dataDir) + "\"\n")
		b.WriteString("[presenter]\n")
		b.WriteString("mode = \"" + clean(mode) + "\"\n")
		if timeout != "" {
			b.WriteString("decision_timeout = \"" + clean(timeout) + "\"\n")
		}
		tmp := t.TempDir() + "/fuzz.toml"
		if err := os.WriteFile(tmp, []byte(b.String()), 0o644); err != nil {
			t.Skip()
		}
		_, _ = Load(tmp) // must not panic
	})
}

// FuzzEnvFile exercises the .env parser with arbitrary content.
func FuzzEnvFile(f *testing.F) {
	f.Add("KEY=VALUE\n# comment\nOTHER=x")
	f.Add("=novalue\nNOEQUALS\n\n")
	f.Add("A = spaced \nB=${A}")

	f.Fuzz(func(t *testing.T, content string) {
		tmp := t.TempDir() + "/fuzz.env"
		if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
			t.Skip()
		}
		m, err := loadEnvFile(tmp)
		if err != nil {
			t.Fatalf("read back of written file failed: %v", err)
		}
		for k := range m {
			if strings.ContainsRune(k, '\n') {
				t.Fatalf("key contains newline: %q", k)
			}
		}
	})
}
