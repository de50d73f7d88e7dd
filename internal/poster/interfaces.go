package poster

import (
	"context"
	"time"
)

// Store owns the durable worklist and its in-memory mirror.
type Store interface {
	// Reload replaces the in-memory list from the durable source,
	// picking up externally appended rows.
	Reload(ctx context.Context) error
	// Pending returns the unposted items in store order.
	Pending() []Product
	// Len reports the number of loaded items.
	Len() int
	// MarkCompleted durably flags the row with the given ID as posted,
	// then updates the in-memory mirror. The durable write completes
	// before the in-memory flag is trusted. Idempotent.
	MarkCompleted(ctx context.Context, id string) error
}

// Fetcher turns a canonical product URL into extracted display fields.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (ProductDetails, error)
}

// Notifier delivers an announcement to the messaging destination.
// At most one outbound message is sent per successful call.
type Notifier interface {
	Notify(ctx context.Context, a Announcement) error
}

// Clock supplies time and context-aware sleeping (useful for testing).
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until the context finishes, returning the
	// context error in the latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

// IDGenerator produces pass IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
