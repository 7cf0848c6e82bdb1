package env

import (
	"sort"
	"strings"
	"testing"
)

func lookup(list []string, key string) (string, bool) {
	for _, kv := range list {
		if strings.HasPrefix(kv, key+"=") {
			return strings.TrimPrefix(kv, key+"="), true
		}
	}
	return "", false
}

func TestMergeOrder(t *testing.T) {
	e := New()
	e.env = Var{"BASE": "os", "SHARED": "os"}
	e.Set("SHARED", "cfg")
	e.Set("CFG", "1")

	out := e.Merge([]string{"SHARED=run", "RUN=2"})
	if v, _ := lookup(out, "BASE"); v != "os" {
		t.Fatalf("BASE = %q", v)
	}
	if v, _ := lookup(out, "SHARED"); v != "run" {
		t.Fatalf("SHARED = %q, want per-run override", v)
	}
	if v, _ := lookup(out, "CFG"); v != "1" {
		t.Fatalf("CFG = %q", v)
	}
	if v, _ := lookup(out, "RUN"); v != "2" {
		t.Fatalf("RUN = %q", v)
	}
}

func TestMergeExpansion(t *testing.T) {
	e := New()
	e.env = Var{"HOME": "/home/u"}
	e.Set("DATA", "${HOME}/data")

	out := e.Merge([]string{"BIN=${DATA}/bin"})
	if v, _ := lookup(out, "DATA"); v != "/home/u/data" {
		t.Fatalf("DATA = %q", v)
	}
	if v, _ := lookup(out, "BIN"); v != "/home/u/data/bin" {
		t.Fatalf("BIN = %q", v)
	}
}

func TestMergeSkipsMalformed(t *testing.T) {
	e := New()
	e.env = Var{}
	out := e.Merge([]string{"=bad", "ok=1", "noequals"})
	sort.Strings(out)
	if len(out) != 1 || out[0] != "ok=1" {
		t.Fatalf("unexpected merge output: %v", out)
	}
}

func TestExpandPath(t *testing.T) {
	e := New()
	e.env = Var{"APPDIR": "/opt/app"}
	if got := e.Expand("${APPDIR}/updater"); got != "/opt/app/updater" {
		t.Fatalf("Expand = %q", got)
	}
	if got := e.Expand("plain"); got != "plain" {
		t.Fatalf("Expand(plain) = %q", got)
	}
}

func TestUnset(t *testing.T) {
	e := New()
	e.env = Var{}
	e.Set("K", "v")
	e.Unset("K")
	if _, ok := lookup(e.Merge(nil), "K"); ok {
		t.Fatalf("K should be gone after Unset")
	}
}
