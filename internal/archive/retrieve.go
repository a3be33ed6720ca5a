// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pdiddy/corpus-engine/pkg/types"
)

// SnapshotInfo summarizes one stored snapshot.
type SnapshotInfo struct {
	ID         int64     `json:"id" yaml:"id"`
	FetchedAt  time.Time `json:"fetched_at" yaml:"fetched_at"`
	TotalCount int       `json:"total_count" yaml:"total_count"`
	Degraded   bool      `json:"degraded" yaml:"degraded"`
	Dropped    int       `json:"dropped" yaml:"dropped"`
	Source     string    `json:"source" yaml:"source"`
}

// GrepResult is one full-text hit across archived articles.
type GrepResult struct {
	SnapshotID int64  `json:"snapshot_id" yaml:"snapshot_id"`
	Index      int    `json:"index" yaml:"index"`
	Title      string `json:"title" yaml:"title"`
	Author     string `json:"author" yaml:"author"`
}

// LoadLatest returns the most recently stored corpus exactly as archived.
// Callers serving it decide how to mark provenance.
func (s *Store) LoadLatest(ctx context.Context) (types.Corpus, error) {
	var (
		id        int64
		fetchedAt string
		corpus    types.Corpus
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, fetched_at, total_count, degraded, dropped, source
		 FROM snapshots ORDER BY id DESC LIMIT 1`,
	).Scan(&id, &fetchedAt, &corpus.TotalCount, &corpus.Degraded, &corpus.Dropped, &corpus.Source)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Corpus{}, ErrNoSnapshots
	}
	if err != nil {
		return types.Corpus{}, fmt.Errorf("querying latest snapshot: %w", err)
	}
	if t, perr := time.Parse(time.RFC3339Nano, fetchedAt); perr == nil {
		corpus.FetchedAt = t
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT idx, title, author, published_at, url, body, tags
		 FROM articles WHERE snapshot_id = ? ORDER BY idx`, id,
	)
	if err != nil {
		return types.Corpus{}, fmt.Errorf("querying articles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			a         types.Article
			author    sql.NullString
			published sql.NullString
			url       sql.NullString
			tagsJSON  sql.NullString
		)
		if err := rows.Scan(&a.Index, &a.Title, &author, &published, &url, &a.Body, &tagsJSON); err != nil {
			return types.Corpus{}, fmt.Errorf("scanning article: %w", err)
		}
		a.Author = author.String
		a.URL = url.String
		if published.String != "" {
			if t, perr := time.Parse(time.RFC3339, published.String); perr == nil {
				a.PublishedAt = t
			}
		}
		if tagsJSON.String != "" {
			if err := json.Unmarshal([]byte(tagsJSON.String), &a.Tags); err != nil {
				return types.Corpus{}, fmt.Errorf("parsing tags for article %d: %w", a.Index, err)
			}
		}
		corpus.Articles = append(corpus.Articles, a)
	}
	if err := rows.Err(); err != nil {
		return types.Corpus{}, fmt.Errorf("iterating articles: %w", err)
	}
	return corpus, nil
}

// List returns all snapshots, newest first.
func (s *Store) List(ctx context.Context) ([]SnapshotInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, fetched_at, total_count, degraded, dropped, source
		 FROM snapshots ORDER BY id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying snapshots: %w", err)
	}
	defer rows.Close()

	var infos []SnapshotInfo
	for rows.Next() {
		var (
			info      SnapshotInfo
			fetchedAt string
		)
		if err := rows.Scan(&info.ID, &fetchedAt, &info.TotalCount, &info.Degraded, &info.Dropped, &info.Source); err != nil {
			return nil, fmt.Errorf("scanning snapshot: %w", err)
		}
		if t, perr := time.Parse(time.RFC3339Nano, fetchedAt); perr == nil {
			info.FetchedAt = t
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating snapshots: %w", err)
	}
	return infos, nil
}

// Grep runs an FTS5 match over archived article titles and bodies. The term
// uses FTS5 query syntax and is passed through verbatim.
func (s *Store) Grep(ctx context.Context, term string, limit int) ([]GrepResult, error) {
	if limit < 1 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT a.snapshot_id, a.idx, a.title, a.author
		 FROM articles_fts
		 JOIN articles a ON a.rowid = articles_fts.rowid
		 WHERE articles_fts MATCH ?
		 ORDER BY rank LIMIT ?`, term, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying FTS index: %w", err)
	}
	defer rows.Close()

	var results []GrepResult
	for rows.Next() {
		var (
			r      GrepResult
			author sql.NullString
		)
		if err := rows.Scan(&r.SnapshotID, &r.Index, &r.Title, &author); err != nil {
			return nil, fmt.Errorf("scanning result: %w", err)
		}
		r.Author = author.String
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating results: %w", err)
	}
	return results, nil
}
