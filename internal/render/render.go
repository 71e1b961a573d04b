// Package render turns a generation-ready template plus a resolved
// field-value map into certificate bytes. Two backends share one contract:
// the flat-document renderer rewrites an uploaded DOCX, the canvas renderer
// composites a raster image from positioned elements.
package render

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// Output format tags.
const (
	FormatDocx = "docx"
	FormatPNG  = "png"
	FormatPDF  = "pdf"
)

var (
	// ErrMissingFieldValue reports a referenced field key absent from the
	// resolved value map.
	ErrMissingFieldValue = errors.New("missing field value")
	// ErrAssetUnavailable reports a background, image, or font reference
	// that could not be loaded.
	ErrAssetUnavailable = errors.New("asset unavailable")
	// ErrRenderFailure reports a format-specific encode error.
	ErrRenderFailure = errors.New("render failure")
)

// Renderer is the capability both backends implement.
type Renderer interface {
	Render(ctx context.Context, values map[string]string) (data []byte, format string, err error)
}

// AssetLoader fetches referenced assets (backgrounds, images, fonts) by their
// storage reference.
type AssetLoader interface {
	Load(ctx context.Context, ref string) ([]byte, error)
}

// tokenPattern accepts dotted tokens so canvas content can reference field
// keys like participant.name directly, without a mapping entry.
var tokenPattern = regexp.MustCompile(`\{\{([A-Za-z0-9_.]+)\}\}`)

// substitute applies the placeholder substitution rule to content: every
// {{token}} resolves through the template mapping (or, unmapped, the token is
// taken as a field key directly) and is replaced with the field value.
// Content without tokens passes through as literal text.
func substitute(content string, mapping, values map[string]string) (string, error) {
	var missing string
	out := tokenPattern.ReplaceAllStringFunc(content, func(match string) string {
		token := match[2 : len(match)-2]
		key := token
		if mapped, ok := mapping[token]; ok && mapped != "" {
			key = mapped
		}
		value, ok := values[key]
		if !ok {
			if missing == "" {
				missing = key
			}
			return match
		}
		return value
	})
	if missing != "" {
		return "", fmt.Errorf("%w: %s", ErrMissingFieldValue, missing)
	}
	return out, nil
}
