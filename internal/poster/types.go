// Package poster defines core types shared across subsystems.
package poster

// Product is one worklist row: a raw product reference, the affiliate
// link forwarded with the announcement, and the durable completion flag.
type Product struct {
	// ID is the stable row identity, a digest of the reference and the
	// affiliate link. Status updates target rows by ID, never by position.
	ID            string `json:"id"`
	ProductURL    string `json:"product_url"`
	AffiliateLink string `json:"affiliate_link"`
	Posted        bool   `json:"posted"`
}

// ProductDetails holds the fields extracted from a product page.
// They are ephemeral, used once per attempt.
type ProductDetails struct {
	Title    string
	ImageURL string
}

// Announcement is the payload handed to a Notifier.
type Announcement struct {
	Title    string
	ImageURL string
	Link     string
}
