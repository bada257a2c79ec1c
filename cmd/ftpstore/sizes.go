package main

import (
	"fmt"
	"strings"

	"github.com/charlesng35/ftpstore/internal/thumbnail"
)

// parseSizeFlags turns --size values into the sizes for one call. A value is either
// "key=WxH" for an ad-hoc size or a bare key naming a configured size. With no values
// every configured size applies; skip drops thumbnails entirely.
func parseSizeFlags(values []string, configured thumbnail.Sizes, skip bool) (thumbnail.Sizes, error) {
	if skip {
		return thumbnail.Sizes{}, nil
	}
	if len(values) == 0 {
		if configured == nil {
			return thumbnail.Sizes{}, nil
		}
		return configured, nil
	}

	out := make(thumbnail.Sizes, len(values))
	for _, value := range values {
		key, spec, adHoc := strings.Cut(value, "=")
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" {
			return nil, fmt.Errorf("--size %q: missing key", value)
		}
		if err := thumbnail.ValidateKey(key); err != nil {
			return nil, fmt.Errorf("--size %q: %w", value, err)
		}
		if _, dup := out[key]; dup {
			return nil, fmt.Errorf("--size %q: duplicate key", key)
		}

		if !adHoc {
			size, ok := configured[key]
			if !ok {
				return nil, fmt.Errorf("--size %q: not a configured thumbnail size", key)
			}
			out[key] = size
			continue
		}

		size, err := thumbnail.ParseSize(spec)
		if err != nil {
			return nil, fmt.Errorf("--size %q: %w", value, err)
		}
		out[key] = size
	}
	return out, nil
}
