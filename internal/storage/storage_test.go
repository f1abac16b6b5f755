package storage

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gyaneshwarpardhi/questgraph/internal/asset"
	"github.com/gyaneshwarpardhi/questgraph/internal/quest"
)

func setupTestDB(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "weaver.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleSnapshot() *quest.Snapshot {
	return &quest.Snapshot{
		Nodes: []*quest.Node{
			{ID: "0", Title: "World", Text: "This is your world.", Color: "#000000", Assets: []string{}},
			{ID: "1", Title: "Quest1", Text: "Write something here.", Color: "#e9d5ff", Assets: []string{"Old Sage"},
				Position: quest.Position{X: 120, Y: 340}},
		},
		Edges:    []quest.Edge{{Source: "0", Target: "1"}},
		Viewport: quest.Viewport{X: 3, Y: 4, Zoom: 0.75},
	}
}

func TestCodec_JSONRoundTrip(t *testing.T) {
	want := sampleSnapshot()
	data, err := EncodeSnapshot(want)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !strings.Contains(string(data), `"viewport"`) {
		t.Errorf("encoded form missing viewport: %s", data)
	}
	got, err := DecodeSnapshot(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestCodec_Malformed(t *testing.T) {
	for _, in := range []string{``, `not json`, `{"nodes": []}`, `{"nodes":[{"id":""}]}`, `[1,2,3]`} {
		if _, err := DecodeSnapshot([]byte(in)); err == nil {
			t.Errorf("DecodeSnapshot(%q) should fail", in)
		}
	}
}

func TestCodec_YAML(t *testing.T) {
	data, err := EncodeYAML(sampleSnapshot())
	if err != nil {
		t.Fatalf("EncodeYAML: %v", err)
	}
	if !strings.Contains(string(data), "title: Quest1") {
		t.Errorf("unexpected yaml:\n%s", data)
	}
	back, err := DecodeYAML(data)
	if err != nil {
		t.Fatalf("DecodeYAML: %v", err)
	}
	if len(back.Nodes) != 2 || back.Edges[0].Target != "1" || back.Viewport.Zoom != 0.75 {
		t.Errorf("yaml round trip lost data: %+v", back)
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	if _, err := m.Load(ctx, "castle"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := m.Save(ctx, "castle", []byte("abc")); err != nil {
		t.Fatal(err)
	}
	got, err := m.Load(ctx, "castle")
	if err != nil || string(got) != "abc" {
		t.Errorf("Load = %q, %v", got, err)
	}
	if m.Saves() != 1 {
		t.Errorf("Saves = %d", m.Saves())
	}
}

func TestSQLite_Snapshots(t *testing.T) {
	ctx := context.Background()
	s := setupTestDB(t)

	if _, err := s.Load(ctx, "castle"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.Save(ctx, "castle", []byte(`{"v":1}`)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Save(ctx, "castle", []byte(`{"v":2}`)); err != nil {
		t.Fatalf("Save overwrite: %v", err)
	}
	if err := s.Save(ctx, "isle", []byte(`{}`)); err != nil {
		t.Fatalf("Save isle: %v", err)
	}
	got, err := s.Load(ctx, "castle")
	if err != nil || string(got) != `{"v":2}` {
		t.Errorf("Load = %s, %v", got, err)
	}
	worlds, err := s.Worlds(ctx)
	if err != nil || !reflect.DeepEqual(worlds, []string{"castle", "isle"}) {
		t.Errorf("Worlds = %v, %v", worlds, err)
	}
}

func TestSQLite_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "weaver.db")
	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Save(ctx, "castle", []byte("persisted")); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s2, err := OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	got, err := s2.Load(ctx, "castle")
	if err != nil || string(got) != "persisted" {
		t.Errorf("after reopen Load = %q, %v", got, err)
	}
}

func TestSQLite_Assets(t *testing.T) {
	ctx := context.Background()
	s := setupTestDB(t)
	var _ asset.Registry = s

	if err := s.Put(ctx, &asset.Asset{World: "castle", Name: "Old Sage", Kind: "asset-npc",
		Cards: []asset.Card{{Title: "Bio", Text: "Keeps the archive."}}}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put(ctx, &asset.Asset{World: "castle", Name: "Iron Keep", Kind: asset.KindLocation}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put(ctx, &asset.Asset{World: "castle", Name: "Nope", Kind: "dragon"}); err == nil {
		t.Error("invalid kind accepted")
	}

	names, err := s.Names(ctx, "castle")
	if err != nil || !reflect.DeepEqual(names, []string{"Iron Keep", "Old Sage"}) {
		t.Errorf("Names = %v, %v", names, err)
	}
	empty, err := s.Names(ctx, "isle")
	if err != nil || len(empty) != 0 {
		t.Errorf("Names(isle) = %v, %v", empty, err)
	}

	a, err := s.Get(ctx, "castle", "Old Sage")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if a.Kind != asset.KindCharacter || len(a.Cards) != 1 || a.Cards[0].Title != "Bio" {
		t.Errorf("Get = %+v", a)
	}
	keep, _ := s.Get(ctx, "castle", "Iron Keep")
	if keep == nil || len(keep.Cards) != 0 {
		t.Errorf("Iron Keep cards = %+v", keep)
	}
	if _, err := s.Get(ctx, "castle", "Ghost"); !errors.Is(err, asset.ErrNotFound) {
		t.Errorf("expected asset.ErrNotFound, got %v", err)
	}
}

func TestDebouncer_CoalescesBurst(t *testing.T) {
	var calls atomic.Int32
	d := NewDebouncer(40*time.Millisecond, func() { calls.Add(1) })
	for i := 0; i < 5; i++ {
		d.Trigger()
	}
	if !d.pending() {
		t.Fatal("expected a pending run")
	}
	time.Sleep(200 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
	if d.pending() {
		t.Error("nothing should be pending after firing")
	}
}

func TestDebouncer_flushAndStop(t *testing.T) {
	var calls atomic.Int32
	d := NewDebouncer(time.Hour, func() { calls.Add(1) })

	d.flush()
	if calls.Load() != 0 {
		t.Fatal("flush with nothing pending must not run")
	}
	d.Trigger()
	d.flush()
	if calls.Load() != 1 {
		t.Fatalf("flush should run pending call, calls=%d", calls.Load())
	}

	d.Trigger()
	d.Stop()
	d.Trigger()
	d.flush()
	if calls.Load() != 1 {
		t.Errorf("stopped debouncer ran, calls=%d", calls.Load())
	}
}

type failingStore struct{ *Memory }

func (failingStore) Save(context.Context, string, []byte) error { return errors.New("disk full") }

func TestWriter_SavesInOrder(t *testing.T) {
	m := NewMemory()
	w := NewWriter(context.Background(), m, 8, time.Second)
	for _, v := range []string{"v1", "v2", "v3"} {
		if !w.Submit(SaveJob{World: "castle", Data: []byte(v)}) {
			t.Fatalf("submit %s rejected", v)
		}
	}
	w.Drain()

	got, err := m.Load(context.Background(), "castle")
	if err != nil || string(got) != "v3" {
		t.Errorf("last write = %q, %v", got, err)
	}
	if m.Saves() != 3 {
		t.Errorf("saves = %d, want 3", m.Saves())
	}
	if w.Submit(SaveJob{World: "castle"}) {
		t.Error("submit after drain should be refused")
	}
	w.Drain()
}

func TestWriter_ReportsErrors(t *testing.T) {
	w := NewWriter(context.Background(), failingStore{NewMemory()}, 1, time.Second)
	done := make(chan error, 1)
	w.Submit(SaveJob{World: "castle", Data: []byte("x"), Done: func(err error) { done <- err }})
	select {
	case err := <-done:
		if err == nil {
			t.Error("expected save error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("save never completed")
	}
	w.Drain()
}

type blockingStore struct {
	*Memory
	release chan struct{}
}

func (b blockingStore) Save(ctx context.Context, world string, data []byte) error {
	<-b.release
	return b.Memory.Save(ctx, world, data)
}

func TestWriter_DropsWhenFull(t *testing.T) {
	bs := blockingStore{Memory: NewMemory(), release: make(chan struct{})}
	w := NewWriter(context.Background(), bs, 1, time.Second)

	started := make(chan struct{})
	w.Submit(SaveJob{World: "a", Data: []byte("1")})
	// Wait until the worker has taken the first job off the queue.
	go func() {
		for w.QueueLen() != 0 {
			time.Sleep(time.Millisecond)
		}
		close(started)
	}()
	<-started

	if !w.Submit(SaveJob{World: "a", Data: []byte("2")}) {
		t.Fatal("queue slot should be free")
	}
	if w.Submit(SaveJob{World: "a", Data: []byte("3")}) {
		t.Error("full queue should drop")
	}
	close(bs.release)
	w.Drain()
	if got, _ := bs.Load(context.Background(), "a"); string(got) != "2" {
		t.Errorf("last write = %q, want 2", got)
	}
}

type slowStore struct {
	*Memory
	delay time.Duration
}

func (s slowStore) Save(ctx context.Context, world string, data []byte) error {
	time.Sleep(s.delay)
	return s.Memory.Save(ctx, world, data)
}

func TestWriter_SaveWaitsForStore(t *testing.T) {
	m := NewMemory()
	w := NewWriter(context.Background(), slowStore{m, 50 * time.Millisecond}, 4, time.Second)
	ctx := context.Background()

	w.Submit(SaveJob{World: "castle", Data: []byte("v1")})
	if err := w.Save(ctx, SaveJob{World: "castle", Data: []byte("v2")}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if m.Saves() != 2 {
		t.Errorf("saves = %d when Save returned, want 2", m.Saves())
	}
	got, _ := m.Load(ctx, "castle")
	if string(got) != "v2" {
		t.Errorf("stored %q, want v2", got)
	}

	w.Drain()
	if err := w.Save(ctx, SaveJob{World: "castle"}); !errors.Is(err, ErrWriterClosed) {
		t.Errorf("Save after drain err = %v", err)
	}
}

func TestWriter_SaveReturnsStoreError(t *testing.T) {
	w := NewWriter(context.Background(), failingStore{NewMemory()}, 1, time.Second)
	defer w.Drain()
	if err := w.Save(context.Background(), SaveJob{World: "castle"}); err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Errorf("Save err = %v", err)
	}
}
