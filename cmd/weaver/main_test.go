package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gyaneshwarpardhi/questgraph/internal/storage"
)

const castleYAML = `nodes:
  - id: "0"
    title: World
    text: This is your world.
    color: "#000000"
    assets: []
    position: {x: 0, y: 0}
  - id: "1"
    title: Find the gate
    text: Write something here.
    color: "#e9d5ff"
    assets: [Old Sage]
    position: {x: 120, y: 200}
edges:
  - {source: "0", target: "1"}
viewport: {x: 0, y: 0, zoom: 1}
`

func run(t *testing.T, args ...string) error {
	t.Helper()
	cfgPath, dbPath, inMemory, jsonOut = "", "", false, false
	exportFormat, importWorld = "json", ""
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func TestImportNamesWorldAfterFile(t *testing.T) {
	t.Setenv("WEAVER_DB", "")
	dir := t.TempDir()
	db := filepath.Join(dir, "weaver.db")
	file := filepath.Join(dir, "castle.yaml")
	if err := os.WriteFile(file, []byte(castleYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := run(t, "--db", db, "import", file); err != nil {
		t.Fatalf("import: %v", err)
	}

	s, err := storage.OpenSQLite(db)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	data, err := s.Load(context.Background(), "castle")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	snap, err := storage.DecodeSnapshot(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Nodes) != 2 || snap.Nodes[1].Assets[0] != "Old Sage" || len(snap.Edges) != 1 {
		t.Errorf("imported snapshot = %+v", snap)
	}
}

func TestOfflineCommandErrors(t *testing.T) {
	t.Setenv("WEAVER_DB", "")
	db := filepath.Join(t.TempDir(), "weaver.db")

	if err := run(t, "--db", db, "tree", "nowhere"); err == nil || !strings.Contains(err.Error(), "no saved snapshot") {
		t.Errorf("tree on missing world: %v", err)
	}
	if err := run(t, "--memory", "worlds"); err == nil {
		t.Error("offline command in memory mode should fail")
	}
	bad := filepath.Join(t.TempDir(), "empty.json")
	os.WriteFile(bad, []byte(`{"nodes":[]}`), 0o644)
	if err := run(t, "--db", db, "import", bad); err == nil {
		t.Error("importing an empty snapshot should fail")
	}
}

const keepYAML = `nodes:
  - {id: "0", title: Keep, color: "#000000", position: {x: 0, y: 0}}
  - {id: "1", title: Gate, color: "#e9d5ff", position: {x: 0, y: 0}}
  - {id: "2", title: Old Sage, color: "#ffffff", is_asset: true, position: {x: 0, y: 0}}
  - {id: "3", title: Tower, color: "#e9d5ff", position: {x: 0, y: 0}}
edges:
  - {source: "0", target: "1"}
  - {source: "1", target: "2"}
  - {source: "1", target: "3"}
  - {source: "3", target: "1"}
viewport: {x: 0, y: 0, zoom: 1}
`

func TestTreeMarksAssetsAndCycles(t *testing.T) {
	t.Setenv("WEAVER_DB", "")
	dir := t.TempDir()
	db := filepath.Join(dir, "weaver.db")
	file := filepath.Join(dir, "keep.yaml")
	if err := os.WriteFile(file, []byte(keepYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := run(t, "--db", db, "import", "--world", "keep", file); err != nil {
		t.Fatalf("import: %v", err)
	}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	defer rootCmd.SetOut(nil)
	if err := run(t, "--db", db, "tree", "keep"); err != nil {
		t.Fatalf("tree: %v", err)
	}
	want := "+ Keep (0)\n" +
		"  + Gate (1)\n" +
		"    - Old Sage (2) [asset]\n" +
		"    + Tower (3)\n" +
		"      - Gate (1) [cycle]\n"
	if out.String() != want {
		t.Errorf("tree output:\n%s\nwant:\n%s", out.String(), want)
	}
}

func TestLoadConfigLogsToGivenWriter(t *testing.T) {
	t.Setenv("WEAVER_DB", "")
	prev := slog.Default()
	defer slog.SetDefault(prev)
	cfgPath, dbPath, inMemory = "", "", true

	var logs bytes.Buffer
	if _, _, err := loadConfig(&logs); err != nil {
		t.Fatal(err)
	}
	slog.Info("server starting", "addr", ":8080")
	if !strings.Contains(logs.String(), "msg=\"server starting\" addr=:8080") {
		t.Errorf("log output = %q", logs.String())
	}
}
