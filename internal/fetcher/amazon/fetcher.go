// Package amazonfetcher extracts product display fields from retail
// product pages using Colly and goquery.
package amazonfetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"golang.org/x/time/rate"

	"github.com/amzdeals/postbot/internal/poster"
)

// Selector lists are ordered; the first rule yielding a non-empty value
// wins. Product pages vary by category, hence the fallbacks.
var (
	titleSelectors = []string{
		"#productTitle",
		".product-title-word-break",
		".a-size-large.product-title-word-break",
	}
	imageSelectors = []string{
		"#landingImage",
		"#imgBlkFront",
		"#main-image",
		"img[data-old-hires]",
		"img[data-a-dynamic-image]",
	}
	imageAttrs = []string{"data-old-hires", "src", "data-a-dynamic-image"}
)

// Config controls fetcher behavior.
type Config struct {
	Origin       string
	UserAgent    string
	Timeout      time.Duration
	RateLimitRPS float64
}

// Fetcher implements poster.Fetcher using a Colly collector.
type Fetcher struct {
	cfg           Config
	transport     *http.Transport
	baseCollector *colly.Collector
	limiter       *rate.Limiter
}

// New builds a Fetcher. The pooled transport is created here and held
// for the fetcher's lifetime; Close releases it.
func New(cfg Config) *Fetcher {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	transport := newHTTPTransport()
	c := colly.NewCollector(colly.Async(false))
	c.WithTransport(transport)

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), 1)
	}

	return &Fetcher{
		cfg:           cfg,
		transport:     transport,
		baseCollector: c,
		limiter:       limiter,
	}
}

// Close releases pooled connections.
func (f *Fetcher) Close() {
	f.transport.CloseIdleConnections()
}

// Fetch gets the page at url and extracts title and image. It returns
// poster.ErrFetchTimeout when the request timed out, and an error for
// non-200 responses or when either field cannot be extracted.
func (f *Fetcher) Fetch(ctx context.Context, url string) (poster.ProductDetails, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return poster.ProductDetails{}, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	body, err := f.get(ctx, url)
	if err != nil {
		if isTimeout(err) {
			return poster.ProductDetails{}, fmt.Errorf("%w: %s", poster.ErrFetchTimeout, url)
		}
		return poster.ProductDetails{}, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return poster.ProductDetails{}, fmt.Errorf("parse page: %w", err)
	}

	title := firstText(doc, titleSelectors)
	if title == "" {
		return poster.ProductDetails{}, fmt.Errorf("no title found at %s", url)
	}

	image, err := f.extractImage(doc)
	if err != nil {
		return poster.ProductDetails{}, fmt.Errorf("extract image at %s: %w", url, err)
	}

	return poster.ProductDetails{Title: title, ImageURL: image}, nil
}

func (f *Fetcher) get(ctx context.Context, url string) ([]byte, error) {
	var (
		body     []byte
		fetchErr error
	)
	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.IgnoreRobotsTxt = true
	collector.SetRequestTimeout(f.cfg.Timeout)

	collector.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.5")
		r.Headers.Set("Cache-Control", "no-cache")
	})
	collector.OnResponse(func(r *colly.Response) {
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			fetchErr = fmt.Errorf("unexpected status %d: %w", r.StatusCode, err)
			return
		}
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if fetchErr != nil {
			return nil, fmt.Errorf("fetch %s: %w", url, fetchErr)
		}
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", url, err)
		}
		return body, nil
	}
}

func (f *Fetcher) extractImage(doc *goquery.Document) (string, error) {
	raw := ""
	for _, sel := range imageSelectors {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		for _, attr := range imageAttrs {
			if v, ok := node.Attr(attr); ok && strings.TrimSpace(v) != "" {
				raw = strings.TrimSpace(v)
				break
			}
		}
		if raw != "" {
			break
		}
	}
	if raw == "" {
		return "", errors.New("no image found")
	}

	// data-a-dynamic-image carries a JSON map of candidate URL to
	// dimensions; the first key is the primary image.
	if strings.HasPrefix(raw, "{") {
		first, err := firstJSONKey(raw)
		if err != nil {
			return "", fmt.Errorf("parse image candidates: %w", err)
		}
		raw = first
	}

	return f.absoluteImageURL(raw), nil
}

func (f *Fetcher) absoluteImageURL(v string) string {
	switch {
	case strings.HasPrefix(v, "http"):
		return v
	case strings.HasPrefix(v, "//"):
		return "https:" + v
	case strings.HasPrefix(v, "/"):
		return strings.TrimRight(f.cfg.Origin, "/") + v
	default:
		return strings.TrimRight(f.cfg.Origin, "/") + "/" + v
	}
}

func firstText(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		if text := strings.TrimSpace(node.Text()); text != "" {
			return text
		}
	}
	return ""
}

// firstJSONKey returns the first object key in document order, which a
// plain map unmarshal would not preserve.
func firstJSONKey(raw string) (string, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return "", err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return "", errors.New("not a JSON object")
	}
	tok, err = dec.Token()
	if err != nil {
		return "", err
	}
	key, ok := tok.(string)
	if !ok {
		return "", errors.New("empty image candidate map")
	}
	return key, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
