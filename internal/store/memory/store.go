// Package memory provides an in-memory worklist store for
// development and testing.
package memory

import (
	"context"
	"fmt"

	"github.com/amzdeals/postbot/internal/hash/sha256"
	"github.com/amzdeals/postbot/internal/poster"
)

// Store holds the worklist in memory. Reload is a no-op.
type Store struct {
	products []poster.Product
}

// New builds a Store from raw (reference, link) pairs.
func New(pairs ...[2]string) *Store {
	s := &Store{}
	for _, p := range pairs {
		s.products = append(s.products, poster.Product{
			ID:            sha256.RowID(p[0], p[1]),
			ProductURL:    p[0],
			AffiliateLink: p[1],
		})
	}
	return s
}

// Reload is a no-op; the in-memory list is already authoritative.
func (s *Store) Reload(_ context.Context) error {
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

// Len reports the number of items.
func (s *Store) Len() int {
	return len(s.products)
}

// MarkCompleted flags the item with the given ID.
func (s *Store) MarkCompleted(_ context.Context, id string) error {
	for i := range s.products {
		if s.products[i].ID == id {
			s.products[i].Posted = true
			return nil
		}
	}
	return fmt.Errorf("mark completed %s: %w", id, poster.ErrNotFound)
}
