// Package personadb keeps a persona pool in SQLite so large pools can
// be imported once and sampled per run.
package personadb

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"selfplay/internal/persona"
)

var ErrNotFound = errors.New("persona not found")

const defaultBusyTimeout = 5 * time.Second

// Store is a persona pool backed by a single SQLite file. Reads may
// run concurrently; SQLite allows one writer, so the pool is capped at
// a single connection.
type Store struct {
	db *sql.DB

	upsertStmt *sql.Stmt
	getStmt    *sql.Stmt
	countStmt  *sql.Stmt
}

func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("db path cannot be empty")
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d&_synchronous=NORMAL",
		path, defaultBusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Single writer only.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	if err := store.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("prepare statements: %w", err)
	}
	return store, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS personas (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL,
		style TEXT,
		interests TEXT,
		traits TEXT,
		created_at INTEGER NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) prepareStatements() error {
	var err error

	s.upsertStmt, err = s.db.Prepare(`
		INSERT INTO personas (id, name, description, style, interests, traits, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			style = excluded.style,
			interests = excluded.interests,
			traits = excluded.traits
	`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}

	s.getStmt, err = s.db.Prepare(`
		SELECT id, name, description, style, interests, traits
		FROM personas WHERE id = ?
	`)
	if err != nil {
		return fmt.Errorf("prepare get: %w", err)
	}

	s.countStmt, err = s.db.Prepare(`SELECT COUNT(*) FROM personas`)
	if err != nil {
		return fmt.Errorf("prepare count: %w", err)
	}
	return nil
}

// Put validates and upserts one persona.
func (s *Store) Put(ctx context.Context, p persona.Persona) error {
	normalized, err := persona.NormalizeAndValidate([]persona.Persona{p})
	if err != nil {
		return err
	}
	p = normalized[0]

	interests, err := json.Marshal(p.Interests)
	if err != nil {
		return fmt.Errorf("marshal interests: %w", err)
	}
	traits, err := json.Marshal(p.Traits)
	if err != nil {
		return fmt.Errorf("marshal traits: %w", err)
	}

	_, err = s.upsertStmt.ExecContext(ctx,
		p.ID, p.Name, p.Description, p.Style,
		string(interests), string(traits), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("upsert persona %s: %w", p.ID, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (persona.Persona, error) {
	row := s.getStmt.QueryRowContext(ctx, id)
	p, err := scanPersona(row)
	if errors.Is(err, sql.ErrNoRows) {
		return persona.Persona{}, fmt.Errorf("persona %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return persona.Persona{}, fmt.Errorf("get persona %s: %w", id, err)
	}
	return p, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.countStmt.QueryRowContext(ctx).Scan(&count); err != nil {
		return 0, fmt.Errorf("count personas: %w", err)
	}
	return count, nil
}

// ImportJSONL reads one persona JSON object per line and upserts each.
// Blank lines are skipped; the first malformed line aborts the import.
func (s *Store) ImportJSONL(ctx context.Context, r io.Reader) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	imported := 0
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var p persona.Persona
		if err := json.Unmarshal([]byte(line), &p); err != nil {
			return imported, fmt.Errorf("line %d: parse persona: %w", lineNo, err)
		}
		if err := s.Put(ctx, p); err != nil {
			return imported, fmt.Errorf("line %d: %w", lineNo, err)
		}
		imported++
	}
	if err := scanner.Err(); err != nil {
		return imported, fmt.Errorf("read jsonl: %w", err)
	}
	return imported, nil
}

// SampleRandom returns up to n distinct personas in random order.
func (s *Store) SampleRandom(ctx context.Context, n int) ([]persona.Persona, error) {
	if n <= 0 {
		return nil, errors.New("sample size must be > 0")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, style, interests, traits
		FROM personas ORDER BY RANDOM() LIMIT ?
	`, n)
	if err != nil {
		return nil, fmt.Errorf("sample personas: %w", err)
	}
	defer rows.Close()

	return collectPersonas(rows)
}

// SampleSeeded returns up to n distinct personas chosen by a seeded
// shuffle over the id set, so the same seed picks the same personas.
func (s *Store) SampleSeeded(ctx context.Context, n int, seed int64) ([]persona.Persona, error) {
	if n <= 0 {
		return nil, errors.New("sample size must be > 0")
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id FROM personas ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list persona ids: %w", err)
	}
	ids := make([]string, 0, n)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan persona id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list persona ids: %w", err)
	}

	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	if n < len(ids) {
		ids = ids[:n]
	}

	out := make([]persona.Persona, 0, len(ids))
	for _, id := range ids {
		p, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPersona(row rowScanner) (persona.Persona, error) {
	var p persona.Persona
	var style, interests, traits sql.NullString

	if err := row.Scan(&p.ID, &p.Name, &p.Description, &style, &interests, &traits); err != nil {
		return persona.Persona{}, err
	}

	p.Style = style.String
	if interests.Valid && interests.String != "" && interests.String != "null" {
		if err := json.Unmarshal([]byte(interests.String), &p.Interests); err != nil {
			return persona.Persona{}, fmt.Errorf("decode interests: %w", err)
		}
	}
	if traits.Valid && traits.String != "" && traits.String != "null" {
		if err := json.Unmarshal([]byte(traits.String), &p.Traits); err != nil {
			return persona.Persona{}, fmt.Errorf("decode traits: %w", err)
		}
	}
	return p, nil
}

func collectPersonas(rows *sql.Rows) ([]persona.Persona, error) {
	var out []persona.Persona
	for rows.Next() {
		p, err := scanPersona(rows)
		if err != nil {
			return nil, fmt.Errorf("scan persona: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate personas: %w", err)
	}
	return out, nil
}
