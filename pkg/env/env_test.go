package env

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestOr(t *testing.T) {
	t.Setenv("CENTINELA_TEST_OR", "")
	if got := Or("CENTINELA_TEST_OR", "dflt"); got != "dflt" {
		t.Errorf("empty: got %q", got)
	}
	t.Setenv("CENTINELA_TEST_OR", "set")
	if got := Or("CENTINELA_TEST_OR", "dflt"); got != "set" {
		t.Errorf("set: got %q", got)
	}
}

func TestTypedGetters(t *testing.T) {
	t.Setenv("T_INT", "42")
	t.Setenv("T_BAD_INT", "x")
	t.Setenv("T_FLOAT", "2.5")
	t.Setenv("T_BOOL", "true")
	t.Setenv("T_DUR", "90s")
	t.Setenv("T_LIST", " Gaza, ,Jenin ")

	if Int("T_INT", 1) != 42 || Int("T_BAD_INT", 7) != 7 || Int("T_UNSET", 3) != 3 {
		t.Error("Int")
	}
	if Float("T_FLOAT", 0) != 2.5 {
		t.Error("Float")
	}
	if !Bool("T_BOOL", false) || !Bool("T_UNSET", true) {
		t.Error("Bool")
	}
	if Duration("T_DUR", time.Second) != 90*time.Second {
		t.Error("Duration")
	}
	if got := List("T_LIST", nil); !reflect.DeepEqual(got, []string{"Gaza", "Jenin"}) {
		t.Errorf("List = %v", got)
	}
	if got := List("T_UNSET", []string{"x"}); !reflect.DeepEqual(got, []string{"x"}) {
		t.Errorf("List fallback = %v", got)
	}
}

func TestLevel(t *testing.T) {
	cases := map[string]slog.Level{"debug": slog.LevelDebug, "WARN": slog.LevelWarn, "error": slog.LevelError, "": slog.LevelInfo}
	for in, want := range cases {
		t.Setenv("LOG_LEVEL", in)
		if got := Level(); got != want {
			t.Errorf("LOG_LEVEL=%q: got %v want %v", in, got, want)
		}
	}
}

func TestNewLogger(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	var buf bytes.Buffer
	log := NewLogger(&buf, "api")
	log.Info("dropped")
	log.Warn("kept")
	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("want exactly one JSON line, got %q: %v", buf.String(), err)
	}
	if rec["service"] != "api" || rec["msg"] != "kept" {
		t.Errorf("record = %v", rec)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	wd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(wd) })

	if got := Load(nil); len(got) != 0 {
		t.Errorf("no files: loaded %v", got)
	}
	os.WriteFile(filepath.Join(dir, ".env"), []byte("CENTINELA_TEST_LOAD=one\n"), 0o600)
	os.WriteFile(filepath.Join(dir, ".env.local"), []byte("CENTINELA_TEST_LOAD=two\n"), 0o600)
	t.Setenv("CENTINELA_TEST_LOAD", "")
	if got := Load(nil); len(got) != 2 {
		t.Errorf("loaded %v", got)
	}
	if got := os.Getenv("CENTINELA_TEST_LOAD"); got != "two" {
		t.Errorf("override: got %q", got)
	}
}
