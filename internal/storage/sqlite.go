package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/gyaneshwarpardhi/questgraph/internal/asset"
)

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
    world TEXT PRIMARY KEY,
    data TEXT NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS assets (
    world TEXT NOT NULL,
    name TEXT NOT NULL,
    kind TEXT NOT NULL,
    cards TEXT NOT NULL DEFAULT '[]',
    updated_at INTEGER NOT NULL,
    PRIMARY KEY (world, name)
);
`

// SQLite stores snapshots and assets in a SQLite database. It also serves
// as an asset.Registry.
type SQLite struct {
	conn *sql.DB
	Path string
}

// OpenSQLite opens (and creates if needed) the database at path.
func OpenSQLite(path string) (*SQLite, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	conn.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLite{conn: conn, Path: path}, nil
}

func (s *SQLite) Close() error {
	return s.conn.Close()
}

func (s *SQLite) Load(ctx context.Context, world string) ([]byte, error) {
	var data string
	err := s.conn.QueryRowContext(ctx, `SELECT data FROM snapshots WHERE world = ?`, world).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("world %s: %w", world, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading world %s: %w", world, err)
	}
	return []byte(data), nil
}

func (s *SQLite) Save(ctx context.Context, world string, data []byte) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO snapshots (world, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(world) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
	`, world, string(data), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("saving world %s: %w", world, err)
	}
	return nil
}

// Worlds lists every world with a saved snapshot.
func (s *SQLite) Worlds(ctx context.Context) ([]string, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT world FROM snapshots ORDER BY world`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var worlds []string
	for rows.Next() {
		var w string
		if err := rows.Scan(&w); err != nil {
			return nil, err
		}
		worlds = append(worlds, w)
	}
	return worlds, rows.Err()
}

func (s *SQLite) Names(ctx context.Context, world string) ([]string, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT name FROM assets WHERE world = ? ORDER BY name`, world)
	if err != nil {
		return nil, fmt.Errorf("listing assets for %s: %w", world, err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

func (s *SQLite) Get(ctx context.Context, world, name string) (*asset.Asset, error) {
	var kind, cards string
	err := s.conn.QueryRowContext(ctx,
		`SELECT kind, cards FROM assets WHERE world = ? AND name = ?`, world, name,
	).Scan(&kind, &cards)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s/%s: %w", world, name, asset.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading asset %s/%s: %w", world, name, err)
	}
	a := &asset.Asset{World: world, Name: name, Kind: asset.Kind(kind)}
	if err := json.Unmarshal([]byte(cards), &a.Cards); err != nil {
		return nil, fmt.Errorf("asset %s/%s: parsing cards: %w", world, name, err)
	}
	return a, nil
}

func (s *SQLite) Put(ctx context.Context, a *asset.Asset) error {
	if err := a.Validate(); err != nil {
		return err
	}
	kind, _ := asset.ParseKind(string(a.Kind))
	cards := a.Cards
	if cards == nil {
		cards = []asset.Card{}
	}
	data, err := json.Marshal(cards)
	if err != nil {
		return fmt.Errorf("asset %s: encoding cards: %w", a.Name, err)
	}
	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO assets (world, name, kind, cards, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(world, name) DO UPDATE SET kind = excluded.kind, cards = excluded.cards,
			updated_at = excluded.updated_at
	`, a.World, a.Name, string(kind), string(data), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("saving asset %s/%s: %w", a.World, a.Name, err)
	}
	return nil
}
