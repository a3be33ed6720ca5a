// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package archive persists corpus snapshots to SQLite so a restart can serve
// articles while the feed is down. The archive never sits on the per-turn
// path; it seeds startup and backs operator commands.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/corpus-engine/pkg/types"
)

// ErrNoSnapshots reports an archive with nothing stored in it.
var ErrNoSnapshots = errors.New("archive holds no snapshots")

// Store manages the snapshot archive database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the archive database at path, creating the schema if
// it does not exist.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating archive directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			fetched_at TEXT NOT NULL,
			total_count INTEGER NOT NULL,
			degraded INTEGER NOT NULL,
			dropped INTEGER NOT NULL,
			source TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS articles (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			snapshot_id INTEGER NOT NULL REFERENCES snapshots(id),
			idx INTEGER NOT NULL,
			title TEXT NOT NULL,
			author TEXT,
			published_at TEXT,
			url TEXT,
			body TEXT NOT NULL,
			tags TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_articles_snapshot ON articles(snapshot_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	// FTS5 virtual table with triggers for sync.
	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='articles_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}

	if ftsExists == 0 {
		ftsStatements := []string{
			`CREATE VIRTUAL TABLE articles_fts USING fts5(title, body, content=articles, content_rowid=rowid)`,
			`CREATE TRIGGER articles_ai AFTER INSERT ON articles BEGIN
				INSERT INTO articles_fts(rowid, title, body) VALUES (new.rowid, new.title, new.body);
			END`,
			`CREATE TRIGGER articles_ad AFTER DELETE ON articles BEGIN
				INSERT INTO articles_fts(articles_fts, rowid, title, body) VALUES('delete', old.rowid, old.title, old.body);
			END`,
			`CREATE TRIGGER articles_au AFTER UPDATE ON articles BEGIN
				INSERT INTO articles_fts(articles_fts, rowid, title, body) VALUES('delete', old.rowid, old.title, old.body);
				INSERT INTO articles_fts(rowid, title, body) VALUES (new.rowid, new.title, new.body);
			END`,
		}
		for _, stmt := range ftsStatements {
			if _, err := s.db.Exec(stmt); err != nil {
				return fmt.Errorf("creating FTS infrastructure: %w", err)
			}
		}
	}

	return nil
}

// Store persists one corpus as a new snapshot and returns its id. Tags are
// stored for grep visibility only; loads re-derive them because pattern
// lists may have changed since archiving.
func (s *Store) Store(ctx context.Context, corpus types.Corpus) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO snapshots (fetched_at, total_count, degraded, dropped, source)
		 VALUES (?, ?, ?, ?, ?)`,
		corpus.FetchedAt.UTC().Format(time.RFC3339Nano),
		corpus.TotalCount, corpus.Degraded, corpus.Dropped, string(corpus.Source),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting snapshot: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading snapshot id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO articles (snapshot_id, idx, title, author, published_at, url, body, tags)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, a := range corpus.Articles {
		dateStr := ""
		if !a.PublishedAt.IsZero() {
			dateStr = a.PublishedAt.UTC().Format(time.RFC3339)
		}
		tagsJSON, _ := json.Marshal(a.Tags)
		if _, err := stmt.ExecContext(ctx,
			id, a.Index, a.Title, a.Author, dateStr, a.URL, a.Body, string(tagsJSON),
		); err != nil {
			return 0, fmt.Errorf("inserting article %d: %w", a.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing snapshot: %w", err)
	}
	return id, nil
}

// Prune deletes all but the newest keep snapshots and returns how many were
// removed.
func (s *Store) Prune(ctx context.Context, keep int) (int, error) {
	if keep < 1 {
		return 0, fmt.Errorf("keep must be positive, got %d", keep)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	// Articles first so the FTS delete triggers fire for every pruned row.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM articles WHERE snapshot_id NOT IN
			(SELECT id FROM snapshots ORDER BY id DESC LIMIT ?)`, keep,
	); err != nil {
		return 0, fmt.Errorf("pruning articles: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`DELETE FROM snapshots WHERE id NOT IN
			(SELECT id FROM snapshots ORDER BY id DESC LIMIT ?)`, keep,
	)
	if err != nil {
		return 0, fmt.Errorf("pruning snapshots: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting pruned snapshots: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing prune: %w", err)
	}
	return int(removed), nil
}
