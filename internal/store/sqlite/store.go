// Package sqlitestore implements the worklist store on an embedded
// SQLite database, for deployments that outgrow a flat worklist file.
// Row identity stays the content digest of reference+link, so the two
// backends are interchangeable.
package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/amzdeals/postbot/internal/hash/sha256"
	"github.com/amzdeals/postbot/internal/poster"
)

const schema = `
CREATE TABLE IF NOT EXISTS products (
	product_url    TEXT NOT NULL,
	affiliate_link TEXT NOT NULL,
	posted         INTEGER NOT NULL DEFAULT 0
);`

// Store is a SQLite-backed poster.Store. Single owner, not safe for
// concurrent use.
type Store struct {
	db       *sql.DB
	origin   string
	logger   *zap.Logger
	products []poster.Product
}

// Open opens (creating if needed) the database at path.
func Open(path, origin string, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db, origin: origin, logger: logger}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Insert appends a worklist row.
func (s *Store) Insert(ctx context.Context, productURL, affiliateLink string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO products (product_url, affiliate_link, posted) VALUES (?, ?, 0)`,
		productURL, affiliateLink)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

// Reload replaces the in-memory list from the table in insertion order.
func (s *Store) Reload(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT product_url, affiliate_link, posted FROM products ORDER BY rowid`)
	if err != nil {
		return fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var total, dropped, invalid int
	var products []poster.Product
	for rows.Next() {
		total++
		var url, link string
		var posted bool
		if err := rows.Scan(&url, &link, &posted); err != nil {
			return fmt.Errorf("scan product: %w", err)
		}
		if url == "" || link == "" {
			dropped++
			continue
		}
		if _, err := poster.Canonicalize(s.origin, url); err != nil {
			invalid++
			continue
		}
		products = append(products, poster.Product{
			ID:            sha256.RowID(url, link),
			ProductURL:    url,
			AffiliateLink: link,
			Posted:        posted,
		})
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate products: %w", err)
	}
	s.products = products

	pending := 0
	for _, p := range products {
		if !p.Posted {
			pending++
		}
	}
	s.logger.Info("worklist loaded",
		zap.Int("rows", total),
		zap.Int("loaded", len(products)),
		zap.Int("dropped", dropped),
		zap.Int("invalid", invalid),
		zap.Int("pending", pending),
	)
	return nil
}

// Pending returns the unposted items in insertion order.
func (s *Store) Pending() []poster.Product {
	out := make([]poster.Product, 0, len(s.products))
	for _, p := range s.products {
		if !p.Posted {
			out = append(out, p)
		}
	}
	return out
}

// Len reports the number of loaded items.
func (s *Store) Len() int {
	return len(s.products)
}

// MarkCompleted flags every row whose content digest matches id. The
// UPDATE commits before the in-memory flag is set. Idempotent.
func (s *Store) MarkCompleted(ctx context.Context, id string) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT rowid, product_url, affiliate_link FROM products ORDER BY rowid`)
	if err != nil {
		return fmt.Errorf("query products: %w", err)
	}

	var matches []int64
	for rows.Next() {
		var rowid int64
		var url, link string
		if err := rows.Scan(&rowid, &url, &link); err != nil {
			rows.Close()
			return fmt.Errorf("scan product: %w", err)
		}
		if sha256.RowID(url, link) == id {
			matches = append(matches, rowid)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("iterate products: %w", err)
	}
	rows.Close()

	if len(matches) == 0 {
		return fmt.Errorf("mark completed %s: %w", id, poster.ErrNotFound)
	}
	for _, rowid := range matches {
		if _, err := s.db.ExecContext(ctx,
			`UPDATE products SET posted = 1 WHERE rowid = ?`, rowid); err != nil {
			return fmt.Errorf("update product: %w", err)
		}
	}

	for i := range s.products {
		if s.products[i].ID == id {
			s.products[i].Posted = true
		}
	}
	return nil
}
