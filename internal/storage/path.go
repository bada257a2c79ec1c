package storage

import (
	"strings"

	"github.com/charlesng35/ftpstore/internal/thumbnail"
)

const leadingSeparators = `/\`

// Resolver performs the pure path math of the adapter. It is immutable once built.
//
// Object paths are trusted application input: ".." segments are passed through as-is.
type Resolver struct {
	prefix string
	urls   URLBuilder
}

// NewResolver builds a resolver for the given root prefix. urls may be nil, in which
// case public URLs degrade to the stripped object path.
func NewResolver(root string, urls URLBuilder) Resolver {
	return Resolver{prefix: NormalizePrefix(root), urls: urls}
}

// NormalizePrefix reads backslashes in root as "/" and appends a single "/" to a
// non-empty root lacking a trailing separator.
func NormalizePrefix(root string) string {
	if root == "" {
		return ""
	}
	root = strings.ReplaceAll(root, `\`, "/")
	if strings.HasSuffix(root, "/") {
		return root
	}
	return root + "/"
}

// Prefix returns the normalised root prefix.
func (r Resolver) Prefix() string {
	return r.prefix
}

// ApplyPrefix strips leading "/" and "\" from objectPath and places it under the prefix.
// Remaining backslashes are read as separators, so "\\a\\b", "/a/b" and "a/b" agree.
func (r Resolver) ApplyPrefix(objectPath string) string {
	return r.prefix + stripLeading(objectPath)
}

// PublicURL maps the unprefixed object path into public URL space.
func (r Resolver) PublicURL(objectPath string) string {
	rel := stripLeading(objectPath)
	if r.urls == nil {
		return rel
	}
	return r.urls.PublicURL(rel)
}

// ThumbnailLocation returns the variant path for sizeKey.
func (r Resolver) ThumbnailLocation(p, sizeKey string) string {
	return thumbnail.Location(p, sizeKey)
}

// Resolve returns OriginalKey plus one entry per size key, each mapped to a public URL.
func (r Resolver) Resolve(objectPath string, sizes thumbnail.Sizes) map[string]string {
	rel := stripLeading(objectPath)
	out := make(map[string]string, len(sizes)+1)
	out[OriginalKey] = r.PublicURL(rel)
	for key := range sizes {
		out[key] = r.PublicURL(r.ThumbnailLocation(rel, key))
	}
	return out
}

func stripLeading(p string) string {
	return strings.ReplaceAll(strings.TrimLeft(p, leadingSeparators), `\`, "/")
}
