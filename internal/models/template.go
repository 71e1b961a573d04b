package models

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// Template kinds. FlatDocument templates carry an uploaded DOCX with
// {{placeholder}} tokens embedded in the text; Canvas templates are an
// explicit list of positioned drawing elements.
const (
	TemplateKindFlatDocument = "flatDocument"
	TemplateKindCanvas       = "canvas"
)

type CertificateTemplate struct {
	ID      string `gorm:"type:varchar(36);primaryKey" json:"id"`
	EventID string `gorm:"type:varchar(36);index" json:"event_id,omitempty"` // empty = global template
	Name    string `gorm:"not null" json:"name"`
	Kind    string `gorm:"type:varchar(20);not null" json:"kind"`

	// RawContentRef points at the stored source file; only set for flatDocument.
	RawContentRef string `json:"raw_content_ref,omitempty"`
	FileSize      int64  `json:"file_size,omitempty"`
	MimeType      string `json:"mime_type,omitempty"`

	Placeholders       string `gorm:"type:json" json:"placeholders"`        // JSON array, first-seen order
	PlaceholderMapping string `gorm:"type:json" json:"placeholder_mapping"` // JSON object placeholder -> field key
	CanvasSpec         string `gorm:"type:json" json:"canvas_spec,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (CertificateTemplate) TableName() string {
	return "certificate_templates"
}

func (t *CertificateTemplate) ExtractedPlaceholders() ([]string, error) {
	if t.Placeholders == "" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(t.Placeholders), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (t *CertificateTemplate) Mapping() (map[string]string, error) {
	if t.PlaceholderMapping == "" {
		return map[string]string{}, nil
	}
	out := make(map[string]string)
	if err := json.Unmarshal([]byte(t.PlaceholderMapping), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (t *CertificateTemplate) Canvas() (*CanvasSpec, error) {
	if t.CanvasSpec == "" {
		return nil, nil
	}
	var spec CanvasSpec
	if err := json.Unmarshal([]byte(t.CanvasSpec), &spec); err != nil {
		return nil, err
	}
	return &spec, nil
}

// Canvas element types.
const (
	ElementText   = "text"
	ElementImage  = "image"
	ElementQRCode = "qrCode"
)

// CanvasSpec describes a canvas template: a background image reference plus
// an ordered element list. Elements render in list order, so later elements
// overlay earlier ones.
type CanvasSpec struct {
	BackgroundRef string          `json:"background_ref"`
	Width         int             `json:"width,omitempty"`  // pixels; 0 = background size
	Height        int             `json:"height,omitempty"` // pixels; 0 = background size
	Elements      []CanvasElement `json:"elements"`
}

type CanvasElement struct {
	Type string  `json:"type"` // text | image | qrCode
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	W    float64 `json:"w,omitempty"`
	H    float64 `json:"h,omitempty"`

	// Content is literal text or a {{placeholder}} token for text elements,
	// and the payload to encode for qrCode elements.
	Content  string  `json:"content,omitempty"`
	FontRef  string  `json:"font_ref,omitempty"`
	FontSize float64 `json:"font_size,omitempty"`
	Color    string  `json:"color,omitempty"` // #rrggbb

	// ImageRef points at a stored bitmap for image elements.
	ImageRef string `json:"image_ref,omitempty"`
}
