package csvstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/amzdeals/postbot/internal/hash/sha256"
	"github.com/amzdeals/postbot/internal/poster"
)

const origin = "https://example.test"

func writeWorklist(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "products.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestReloadFiltersBadRows(t *testing.T) {
	t.Parallel()

	path := writeWorklist(t, `product_url,affiliate_link,posted
https://example.test/dp/B001,https://amzn.to/a,false
,https://amzn.to/missing-url,false
https://example.test/dp/B002,,false
not a url at all,https://amzn.to/invalid,false
https://example.test/dp/B003,https://amzn.to/c,true
`)
	s := New(path, origin, zap.NewNop())
	require.NoError(t, s.Reload(context.Background()))

	require.Equal(t, 2, s.Len())
	pending := s.Pending()
	require.Len(t, pending, 1)
	require.Equal(t, "https://example.test/dp/B001", pending[0].ProductURL)
}

func TestReloadKeepsFileOrder(t *testing.T) {
	t.Parallel()

	path := writeWorklist(t, `product_url,affiliate_link,posted
https://example.test/dp/B002,https://amzn.to/b,false
https://example.test/dp/B001,https://amzn.to/a,false
`)
	s := New(path, origin, zap.NewNop())
	require.NoError(t, s.Reload(context.Background()))

	pending := s.Pending()
	require.Len(t, pending, 2)
	require.Equal(t, "https://example.test/dp/B002", pending[0].ProductURL)
	require.Equal(t, "https://example.test/dp/B001", pending[1].ProductURL)
}

func TestMarkCompletedPersists(t *testing.T) {
	t.Parallel()

	path := writeWorklist(t, `product_url,affiliate_link,posted
https://example.test/dp/B001,https://amzn.to/a,false
https://example.test/dp/B002,https://amzn.to/b,false
`)
	s := New(path, origin, zap.NewNop())
	require.NoError(t, s.Reload(context.Background()))

	id := s.Pending()[0].ID
	require.NoError(t, s.MarkCompleted(context.Background(), id))

	// In-memory flag is set.
	require.Len(t, s.Pending(), 1)
	require.Equal(t, "https://example.test/dp/B002", s.Pending()[0].ProductURL)

	// The flag survives a fresh load from disk.
	reloaded := New(path, origin, zap.NewNop())
	require.NoError(t, reloaded.Reload(context.Background()))
	require.Len(t, reloaded.Pending(), 1)
}

func TestMarkCompletedIsIdempotent(t *testing.T) {
	t.Parallel()

	path := writeWorklist(t, `product_url,affiliate_link,posted
https://example.test/dp/B001,https://amzn.to/a,false
`)
	s := New(path, origin, zap.NewNop())
	require.NoError(t, s.Reload(context.Background()))

	id := s.Pending()[0].ID
	require.NoError(t, s.MarkCompleted(context.Background(), id))

	before, err := os.ReadFile(path)
	require.NoError(t, err)

	require.NoError(t, s.MarkCompleted(context.Background(), id))

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, string(before), string(after))
	require.Empty(t, s.Pending())
}

func TestMarkCompletedUnknownID(t *testing.T) {
	t.Parallel()

	path := writeWorklist(t, `product_url,affiliate_link,posted
https://example.test/dp/B001,https://amzn.to/a,false
`)
	s := New(path, origin, zap.NewNop())
	require.NoError(t, s.Reload(context.Background()))

	err := s.MarkCompleted(context.Background(), "no-such-id")
	require.ErrorIs(t, err, poster.ErrNotFound)
}

func TestMarkCompletedFailureLeavesMemoryPending(t *testing.T) {
	t.Parallel()

	path := writeWorklist(t, `product_url,affiliate_link,posted
https://example.test/dp/B001,https://amzn.to/a,false
`)
	s := New(path, origin, zap.NewNop())
	require.NoError(t, s.Reload(context.Background()))
	id := s.Pending()[0].ID

	require.NoError(t, os.Remove(path))

	require.Error(t, s.MarkCompleted(context.Background(), id))
	require.Len(t, s.Pending(), 1, "item must stay pending when the durable write fails")
}

func TestMarkCompletedPreservesFilteredRows(t *testing.T) {
	t.Parallel()

	path := writeWorklist(t, `product_url,affiliate_link,posted
https://example.test/dp/B001,https://amzn.to/a,false
not a url at all,https://amzn.to/invalid,false
`)
	s := New(path, origin, zap.NewNop())
	require.NoError(t, s.Reload(context.Background()))
	require.Equal(t, 1, s.Len())

	require.NoError(t, s.MarkCompleted(context.Background(), s.Pending()[0].ID))

	rows, err := readRows(path)
	require.NoError(t, err)
	require.Len(t, rows, 2, "rewrite must keep rows the loader filtered")
	require.Equal(t, "not a url at all", rows[1].productURL)
	require.False(t, rows[1].posted)
}

func TestReloadPicksUpAppendedRows(t *testing.T) {
	t.Parallel()

	path := writeWorklist(t, `product_url,affiliate_link,posted
https://example.test/dp/B001,https://amzn.to/a,true
`)
	s := New(path, origin, zap.NewNop())
	require.NoError(t, s.Reload(context.Background()))
	require.Empty(t, s.Pending())

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, err = f.WriteString("https://example.test/dp/B009,https://amzn.to/new,false\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.NoError(t, s.Reload(context.Background()))
	pending := s.Pending()
	require.Len(t, pending, 1)
	require.Equal(t, "https://example.test/dp/B009", pending[0].ProductURL)
	require.Equal(t, sha256.RowID("https://example.test/dp/B009", "https://amzn.to/new"), pending[0].ID)
}

func TestSeedRefusesExistingFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "products.csv")
	require.NoError(t, Seed(path))

	s := New(path, poster.DefaultOrigin, zap.NewNop())
	require.NoError(t, s.Reload(context.Background()))
	require.Equal(t, 2, s.Len())

	require.Error(t, Seed(path))
}
