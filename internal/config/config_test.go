package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gyaneshwarpardhi/questgraph/internal/quest"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "weaver.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoader_Defaults(t *testing.T) {
	t.Setenv(EnvDBPath, "")
	l, err := NewLoader(writeConfig(t, "version: v1\n"))
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}
	cfg := l.Config()
	if cfg.Server.Addr != ":8080" || cfg.Storage.SaveDebounceMs != 500 || cfg.Graph.IDStrategy != "sequential" {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if len(cfg.QuestTypes) != len(quest.DefaultQuestTypes) {
		t.Errorf("quest types = %v", cfg.QuestTypes)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
	if err := Validate(Default()); err != nil {
		t.Errorf("Default() should validate: %v", err)
	}
}

func TestLoader_ParsesFile(t *testing.T) {
	t.Setenv(EnvDBPath, "")
	path := writeConfig(t, `
version: v1
server:
  addr: ":9090"
storage:
  path: /tmp/worlds.db
  save_debounce_ms: 250
graph:
  id_strategy: uuid
log:
  level: debug
quest_types:
  - label: Heist
    color: "#ff0000"
`)
	l, err := NewLoader(path)
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}
	cfg := l.Config()
	if cfg.Server.Addr != ":9090" || cfg.Storage.Path != "/tmp/worlds.db" || cfg.Storage.SaveDebounceMs != 250 {
		t.Errorf("unexpected config %+v", cfg)
	}
	if cfg.Graph.IDStrategy != "uuid" {
		t.Errorf("id strategy = %q", cfg.Graph.IDStrategy)
	}
	if len(cfg.QuestTypes) != 1 || cfg.QuestTypes[0].Label != "Heist" {
		t.Errorf("quest types = %v", cfg.QuestTypes)
	}
	if cfg.Log.SlogLevel() != slog.LevelDebug {
		t.Errorf("level = %v", cfg.Log.SlogLevel())
	}
}

func TestLoader_EnvOverridesDBPath(t *testing.T) {
	t.Setenv(EnvDBPath, "/data/env.db")
	l, err := NewLoader(writeConfig(t, "version: v1\nstorage:\n  path: file.db\n"))
	if err != nil {
		t.Fatal(err)
	}
	if got := l.Config().Storage.Path; got != "/data/env.db" {
		t.Errorf("path = %q", got)
	}
}

func TestLoader_Errors(t *testing.T) {
	if _, err := NewLoader(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file should fail")
	}
	if _, err := NewLoader(writeConfig(t, "version: [unclosed")); err == nil {
		t.Error("bad yaml should fail")
	}
}

func TestLoader_ReloadNotifies(t *testing.T) {
	path := writeConfig(t, "version: v1\n")
	l, err := NewLoader(path)
	if err != nil {
		t.Fatal(err)
	}
	var got *Config
	l.OnChange(func(c *Config) { got = c })

	if err := os.WriteFile(path, []byte("version: v2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if got == nil || got.Version != "v2" || l.Config().Version != "v2" {
		t.Errorf("callback config = %+v", got)
	}
}

func TestLoader_WatchPicksUpWrites(t *testing.T) {
	path := writeConfig(t, "version: v1\n")
	l, err := NewLoader(path)
	if err != nil {
		t.Fatal(err)
	}
	changed := make(chan string, 4)
	l.OnChange(func(c *Config) { changed <- c.Version })

	stop, err := l.Watch()
	if err != nil {
		t.Skipf("fsnotify unavailable: %v", err)
	}
	defer stop()

	if err := os.WriteFile(path, []byte("version: v3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	deadline := time.After(3 * time.Second)
	for {
		select {
		case v := <-changed:
			if v == "v3" {
				return
			}
		case <-deadline:
			t.Fatal("watcher never reported the change")
		}
	}
}

func TestLoader_NoPath(t *testing.T) {
	l, err := NewLoader("")
	if err != nil {
		t.Fatal(err)
	}
	if l.Config().Version != "v1" {
		t.Errorf("version = %q", l.Config().Version)
	}
	if _, err := l.Watch(); err == nil {
		t.Error("Watch without a file should fail")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "ok", mutate: func(*Config) {}},
		{name: "no version", mutate: func(c *Config) { c.Version = "" }, wantErr: "version is required"},
		{name: "no path", mutate: func(c *Config) { c.Storage.Path = "" }, wantErr: "storage.path"},
		{name: "memory needs no path", mutate: func(c *Config) { c.Storage.Path = ""; c.Storage.Memory = true }},
		{name: "bad strategy", mutate: func(c *Config) { c.Graph.IDStrategy = "random" }, wantErr: "id_strategy"},
		{name: "bad level", mutate: func(c *Config) { c.Log.Level = "loud" }, wantErr: "log.level"},
		{name: "negative debounce", mutate: func(c *Config) { c.Storage.SaveDebounceMs = -1 }, wantErr: "save_debounce_ms"},
		{name: "bad color", mutate: func(c *Config) {
			c.QuestTypes = []quest.QuestType{{Label: "X", Color: "red"}}
		}, wantErr: "not a hex color"},
		{name: "duplicate label", mutate: func(c *Config) {
			c.QuestTypes = []quest.QuestType{{Label: "X", Color: "#111"}, {Label: "x", Color: "#222"}}
		}, wantErr: "duplicate quest type label"},
		{name: "duplicate color", mutate: func(c *Config) {
			c.QuestTypes = []quest.QuestType{{Label: "X", Color: "#111111"}, {Label: "Y", Color: "#111111"}}
		}, wantErr: "duplicate quest type color"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := Validate(cfg)
			if tc.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error = %v, want containing %q", err, tc.wantErr)
			}
		})
	}
}
