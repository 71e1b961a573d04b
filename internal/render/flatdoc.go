package render

import (
	"context"
	"fmt"

	"certforge/internal/processor"
)

// FlatDocumentRenderer rewrites an uploaded DOCX template, substituting every
// {{placeholder}} with its mapped field value. The output container format is
// the same as the input. The mapping-completeness gate runs before any batch,
// so an unmapped-but-present placeholder cannot occur here.
type FlatDocumentRenderer struct {
	doc     *processor.Docx
	mapping map[string]string
}

func NewFlatDocumentRenderer(content []byte, mapping map[string]string) (*FlatDocumentRenderer, error) {
	doc, err := processor.Open(content)
	if err != nil {
		return nil, err
	}
	return &FlatDocumentRenderer{doc: doc, mapping: mapping}, nil
}

func (r *FlatDocumentRenderer) Render(ctx context.Context, values map[string]string) ([]byte, string, error) {
	replacements := make(map[string]string, len(r.mapping))
	for placeholder, key := range r.mapping {
		value, ok := values[key]
		if !ok {
			return nil, "", fmt.Errorf("%w: %s", ErrMissingFieldValue, key)
		}
		replacements[placeholder] = value
	}

	data, err := r.doc.Replace(replacements)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrRenderFailure, err)
	}
	return data, FormatDocx, nil
}

// Landscape reports the source document's page orientation, used when the
// artifact is converted to PDF.
func (r *FlatDocumentRenderer) Landscape() bool {
	return r.doc.DetectOrientation()
}
