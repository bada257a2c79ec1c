package thumbnail

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Size describes one thumbnail variant. A zero Width or Height leaves that axis
// unconstrained. Crop fills the full box and trims the overflow instead of fitting.
type Size struct {
	Width  int
	Height int
	Crop   bool
}

func (s Size) String() string {
	out := fmt.Sprintf("%dx%d", s.Width, s.Height)
	if s.Crop {
		out += "^"
	}
	return out
}

// Validate rejects negative dimensions and sizes without any bound.
func (s Size) Validate() error {
	if s.Width < 0 || s.Height < 0 {
		return fmt.Errorf("thumbnail: negative dimension in %s", s)
	}
	if s.Width == 0 && s.Height == 0 {
		return fmt.Errorf("thumbnail: size %s has no bound", s)
	}
	if s.Crop && (s.Width == 0 || s.Height == 0) {
		return fmt.Errorf("thumbnail: crop size %s needs both dimensions", s)
	}
	return nil
}

// ParseSize parses "WxH" (fit inside the box) or "WxH^" (fill the box and crop).
func ParseSize(spec string) (Size, error) {
	raw := strings.ToLower(strings.TrimSpace(spec))
	var size Size
	if strings.HasSuffix(raw, "^") {
		size.Crop = true
		raw = strings.TrimSuffix(raw, "^")
	}

	w, h, ok := strings.Cut(raw, "x")
	if !ok {
		return Size{}, fmt.Errorf("thumbnail: invalid size %q, want WxH", spec)
	}
	var err error
	if size.Width, err = parseDimension(w); err != nil {
		return Size{}, fmt.Errorf("thumbnail: invalid width in %q: %w", spec, err)
	}
	if size.Height, err = parseDimension(h); err != nil {
		return Size{}, fmt.Errorf("thumbnail: invalid height in %q: %w", spec, err)
	}
	if err := size.Validate(); err != nil {
		return Size{}, err
	}
	return size, nil
}

func parseDimension(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

// Sizes maps a size key (for example "small") to its specification.
type Sizes map[string]Size

// Keys returns the size keys in sorted order.
func (s Sizes) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var keyPattern = regexp.MustCompile(`^[a-z0-9_-]+$`)

// ValidateKey accepts lowercase letters, digits, "_" and "-". The key becomes part of
// a file name, so separators and dot segments are refused.
func ValidateKey(key string) error {
	if !keyPattern.MatchString(key) {
		return fmt.Errorf("thumbnail: invalid size key %q, want [a-z0-9_-]+", key)
	}
	return nil
}

// ParseSizes parses a key -> spec map such as the storage.thumbnails config section.
// Keys are lowercased.
func ParseSizes(specs map[string]string) (Sizes, error) {
	out := make(Sizes, len(specs))
	for key, spec := range specs {
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" {
			return nil, fmt.Errorf("thumbnail: empty size key for %q", spec)
		}
		if err := ValidateKey(key); err != nil {
			return nil, err
		}
		size, err := ParseSize(spec)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		out[key] = size
	}
	return out, nil
}
