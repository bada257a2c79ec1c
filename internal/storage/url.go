package storage

import (
	"fmt"
	"net/url"
	"strings"
)

// URLBuilder turns a relative object path into a publicly fetchable URL.
type URLBuilder interface {
	PublicURL(relativePath string) string
}

// URLBuilderFunc adapts a function to URLBuilder.
type URLBuilderFunc func(relativePath string) string

// PublicURL calls f.
func (f URLBuilderFunc) PublicURL(relativePath string) string {
	return f(relativePath)
}

// BaseURL joins relative paths onto a fixed base such as a CDN origin.
type BaseURL struct {
	base string
}

// NewBaseURL validates raw as an absolute http(s) URL.
func NewBaseURL(raw string) (*BaseURL, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("storage: parse public url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("storage: public url %q must use http or https", raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("storage: public url %q has no host", raw)
	}
	u.RawQuery = ""
	u.Fragment = ""

	base := u.String()
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return &BaseURL{base: base}, nil
}

// PublicURL implements URLBuilder. Each path segment is escaped; the path is otherwise
// used verbatim.
func (b *BaseURL) PublicURL(relativePath string) string {
	segments := strings.Split(stripLeading(relativePath), "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return b.base + strings.Join(segments, "/")
}

// String returns the normalised base.
func (b *BaseURL) String() string {
	return b.base
}
