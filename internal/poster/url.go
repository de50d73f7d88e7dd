package poster

import (
	"net/url"
	"strings"
)

// DefaultOrigin is the site origin used when none is configured.
const DefaultOrigin = "https://www.amazon.in"

// Canonicalize standardizes a raw worklist reference into a minimal
// fetchable URL rooted at origin. The same product is reachable through
// many decorated URLs (title slugs, ref suffixes, tracking parameters);
// canonicalizing them up front keeps fetches equivalent and avoids
// forwarding tracking cruft upstream.
//
// The reference is percent-decoded and trimmed first. A /dp/{id} segment
// wins and rebuilds origin/dp/{id}. Otherwise a reference containing the
// origin host keeps its path, minus query string and any trailing
// colon-delimited suffix, re-encoded. Anything else is rejected with
// ErrInvalidReference. Pure and deterministic, no I/O.
func Canonicalize(origin, raw string) (string, error) {
	origin = strings.TrimRight(origin, "/")

	decoded := raw
	if d, err := url.PathUnescape(raw); err == nil {
		decoded = d
	}
	decoded = strings.TrimSpace(decoded)
	if decoded == "" {
		return "", ErrInvalidReference
	}

	if id := productID(decoded); id != "" {
		return origin + "/dp/" + id, nil
	}

	host := originHost(origin)
	if host == "" {
		return "", ErrInvalidReference
	}
	idx := strings.Index(decoded, host)
	if idx < 0 {
		return "", ErrInvalidReference
	}

	path := decoded[idx+len(host):]
	if q := strings.IndexByte(path, '?'); q >= 0 {
		path = path[:q]
	}
	if c := strings.IndexByte(path, ':'); c >= 0 {
		path = path[:c]
	}
	path = strings.Trim(path, "/")
	if path == "" {
		return origin, nil
	}

	segments := strings.Split(path, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return origin + "/" + strings.Join(segments, "/"), nil
}

func productID(s string) string {
	_, rest, ok := strings.Cut(s, "/dp/")
	if !ok {
		return ""
	}
	rest, _, _ = strings.Cut(rest, "/")
	rest, _, _ = strings.Cut(rest, "?")
	return strings.TrimSpace(rest)
}

func originHost(origin string) string {
	host := origin
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	return strings.TrimRight(host, "/")
}
