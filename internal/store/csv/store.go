// Package csvstore implements the worklist store on a CSV file.
//
// The file is the source of truth: it is read in full on every reload
// and rewritten in full on every status update. Rows the loader drops
// (missing fields, un-normalizable references) stay in the file
// untouched; only the in-memory view excludes them.
package csvstore

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/amzdeals/postbot/internal/hash/sha256"
	"github.com/amzdeals/postbot/internal/poster"
)

var header = []string{"product_url", "affiliate_link", "posted"}

type row struct {
	productURL    string
	affiliateLink string
	posted        bool
}

// Store is a CSV-backed poster.Store. It has a single owner, the
// progress engine, and is not safe for concurrent use.
type Store struct {
	path     string
	origin   string
	logger   *zap.Logger
	products []poster.Product
}

// New builds a Store for the worklist file at path. References are
// validated against origin at load time.
func New(path, origin string, logger *zap.Logger) *Store {
	return &Store{
		path:   path,
		origin: origin,
		logger: logger,
	}
}

// Reload replaces the in-memory list from the file. On a read error the
// previous list is kept.
func (s *Store) Reload(_ context.Context) error {
	rows, err := readRows(s.path)
	if err != nil {
		return fmt.Errorf("read worklist: %w", err)
	}

	var dropped, invalid int
	products := make([]poster.Product, 0, len(rows))
	for _, r := range rows {
		if r.productURL == "" || r.affiliateLink == "" {
			dropped++
			continue
		}
		if _, err := poster.Canonicalize(s.origin, r.productURL); err != nil {
			invalid++
			continue
		}
		products = append(products, poster.Product{
			ID:            sha256.RowID(r.productURL, r.affiliateLink),
			ProductURL:    r.productURL,
			AffiliateLink: r.affiliateLink,
			Posted:        r.posted,
		})
	}
	s.products = products

	pending := 0
	for _, p := range products {
		if !p.Posted {
			pending++
		}
	}
	s.logger.Info("worklist loaded",
		zap.Int("rows", len(rows)),
		zap.Int("loaded", len(products)),
		zap.Int("dropped", dropped),
		zap.Int("invalid", invalid),
		zap.Int("pending", pending),
	)
	return nil
}

// Pending returns the unposted items in file order.
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

// MarkCompleted flags the row with the given ID as posted. The file is
// re-read so rows appended or hidden since the last reload survive, the
// row is matched by digest, and the whole file is rewritten atomically.
// The in-memory flag is only set once the file write has succeeded.
func (s *Store) MarkCompleted(_ context.Context, id string) error {
	rows, err := readRows(s.path)
	if err != nil {
		return fmt.Errorf("read worklist: %w", err)
	}

	found := false
	for i := range rows {
		if sha256.RowID(rows[i].productURL, rows[i].affiliateLink) == id {
			rows[i].posted = true
			found = true
		}
	}
	if !found {
		return fmt.Errorf("mark completed %s: %w", id, poster.ErrNotFound)
	}

	if err := writeRows(s.path, rows); err != nil {
		return fmt.Errorf("write worklist: %w", err)
	}

	for i := range s.products {
		if s.products[i].ID == id {
			s.products[i].Posted = true
		}
	}
	return nil
}

func readRows(path string) ([]row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var rows []row
	first := true
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse csv: %w", err)
		}
		if first {
			first = false
			if isHeader(rec) {
				continue
			}
		}
		rows = append(rows, parseRow(rec))
	}
	return rows, nil
}

func isHeader(rec []string) bool {
	return len(rec) > 0 && strings.EqualFold(strings.TrimSpace(rec[0]), header[0])
}

func parseRow(rec []string) row {
	var r row
	if len(rec) > 0 {
		r.productURL = strings.TrimSpace(rec[0])
	}
	if len(rec) > 1 {
		r.affiliateLink = strings.TrimSpace(rec[1])
	}
	if len(rec) > 2 {
		v := strings.TrimSpace(rec[2])
		r.posted = strings.EqualFold(v, "true") || v == "1"
	}
	return r
}

// writeRows rewrites the worklist through a temp file in the same
// directory, synced before rename, so a crash mid-write never leaves a
// truncated worklist behind.
func writeRows(path string, rows []row) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".worklist-*.csv")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		tmp.Close()
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range rows {
		posted := "false"
		if r.posted {
			posted = "true"
		}
		if err := w.Write([]string{r.productURL, r.affiliateLink, posted}); err != nil {
			tmp.Close()
			return fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush csv: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replace worklist: %w", err)
	}
	return nil
}

// Seed writes a starter worklist with example rows, refusing to clobber
// an existing file.
func Seed(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("worklist %s already exists", path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat worklist: %w", err)
	}
	return writeRows(path, []row{
		{productURL: "https://www.amazon.in/dp/B001EXAMPLE", affiliateLink: "https://amzn.to/example1"},
		{productURL: "https://www.amazon.in/dp/B002EXAMPLE", affiliateLink: "https://amzn.to/example2"},
	})
}
