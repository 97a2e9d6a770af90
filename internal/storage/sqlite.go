package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/text/unicode/norm"

	"github.com/hyperjump/pdfscope/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db, path: dbPath}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS ocr_pages (
		pdf_name TEXT NOT NULL,
		dpi INTEGER NOT NULL,
		tile INTEGER NOT NULL,
		overlap REAL NOT NULL,
		page INTEGER NOT NULL,
		width REAL NOT NULL,
		height REAL NOT NULL,
		hits TEXT NOT NULL,
		hit_count INTEGER NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (pdf_name, dpi, tile, overlap, page)
	);

	CREATE TABLE IF NOT EXISTS suggestions (
		scope TEXT NOT NULL,
		query TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (scope, query)
	);
	`
	_, err := db.Exec(schema)
	return err
}

// docKey normalizes a locator the way the OCR service names its cache entries.
func docKey(name string) string {
	return strings.ReplaceAll(norm.NFC.String(name), "/", "_")
}

// SavePages upserts pages; pages not in the update keep their stored value.
func (s *SQLiteStorage) SavePages(ctx context.Context, pdfName string, p models.OCRParams, pages models.PageIndex) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO ocr_pages (pdf_name, dpi, tile, overlap, page, width, height, hits, hit_count, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	key := docKey(pdfName)
	now := time.Now()
	for _, page := range pages {
		hits := page.Hits
		if hits == nil {
			hits = []models.Detection{}
		}
		hitsJSON, err := json.Marshal(hits)
		if err != nil {
			return fmt.Errorf("failed to marshal hits of page %d: %w", page.Page, err)
		}
		if _, err := stmt.ExecContext(ctx, key, p.DPI, p.Tile, p.Overlap, page.Page, page.W, page.H, string(hitsJSON), len(hits), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// LoadPages returns the stored pages ordered by page number, or ErrNotFound.
func (s *SQLiteStorage) LoadPages(ctx context.Context, pdfName string, p models.OCRParams) (models.PageIndex, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT page, width, height, hits FROM ocr_pages
		 WHERE pdf_name = ? AND dpi = ? AND tile = ? AND overlap = ? ORDER BY page`,
		docKey(pdfName), p.DPI, p.Tile, p.Overlap,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pages models.PageIndex
	for rows.Next() {
		var page models.OCRPage
		var hitsJSON string
		if err := rows.Scan(&page.Page, &page.W, &page.H, &hitsJSON); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(hitsJSON), &page.Hits); err != nil {
			return nil, fmt.Errorf("failed to unmarshal hits of page %d: %w", page.Page, err)
		}
		pages = append(pages, page)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("ocr pages for %s: %w", pdfName, ErrNotFound)
	}
	return pages, nil
}

// DeletePages removes the stored pages of a document for the given parameters.
func (s *SQLiteStorage) DeletePages(ctx context.Context, pdfName string, p models.OCRParams) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM ocr_pages WHERE pdf_name = ? AND dpi = ? AND tile = ? AND overlap = ?`,
		docKey(pdfName), p.DPI, p.Tile, p.Overlap,
	)
	return err
}

// PageStats counts stored pages and detections of a document.
func (s *SQLiteStorage) PageStats(ctx context.Context, pdfName string, p models.OCRParams) (*PageStats, error) {
	var st PageStats
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN hit_count > 0 THEN 1 ELSE 0 END), 0), COALESCE(SUM(hit_count), 0)
		 FROM ocr_pages WHERE pdf_name = ? AND dpi = ? AND tile = ? AND overlap = ?`,
		docKey(pdfName), p.DPI, p.Tile, p.Overlap,
	).Scan(&st.Pages, &st.NonzeroPages, &st.Detections)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// GetSuggestion returns a cached suggestion and the time it was stored, or ErrNotFound.
func (s *SQLiteStorage) GetSuggestion(ctx context.Context, scope, query string) (*models.Suggestion, time.Time, error) {
	var payload string
	var created int64
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, created_at FROM suggestions WHERE scope = ? AND query = ?`,
		docKey(scope), query,
	).Scan(&payload, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, fmt.Errorf("suggestion %q: %w", query, ErrNotFound)
	}
	if err != nil {
		return nil, time.Time{}, err
	}
	var sug models.Suggestion
	if err := json.Unmarshal([]byte(payload), &sug); err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to unmarshal suggestion: %w", err)
	}
	return &sug, time.Unix(0, created), nil
}

// PutSuggestion stores a suggestion, replacing any previous one.
func (s *SQLiteStorage) PutSuggestion(ctx context.Context, scope, query string, sug *models.Suggestion, at time.Time) error {
	payload, err := json.Marshal(sug)
	if err != nil {
		return fmt.Errorf("failed to marshal suggestion: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO suggestions (scope, query, payload, created_at) VALUES (?, ?, ?, ?)`,
		docKey(scope), query, string(payload), at.UnixNano(),
	)
	return err
}

// CountDocuments returns the number of documents with stored OCR pages.
func (s *SQLiteStorage) CountDocuments(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT pdf_name) FROM ocr_pages`).Scan(&count)
	return count, err
}

// CountPages returns the total number of stored OCR pages.
func (s *SQLiteStorage) CountPages(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ocr_pages`).Scan(&count)
	return count, err
}

// SizeBytes returns the on-disk size of the database including its WAL files.
func (s *SQLiteStorage) SizeBytes() (int64, error) {
	var total int64
	for _, p := range []string{s.path, s.path + "-wal", s.path + "-shm"} {
		info, err := os.Stat(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return 0, err
		}
		total += info.Size()
	}
	return total, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
