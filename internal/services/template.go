package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"certforge/internal/fields"
	"certforge/internal/models"
	"certforge/internal/processor"
	"certforge/internal/storage"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TemplateService ingests uploaded templates, holds the placeholder mapping,
// and gates generation on mapping completeness.
type TemplateService struct {
	db       *gorm.DB
	store    storage.Backend
	registry *fields.Registry
}

func NewTemplateService(db *gorm.DB, store storage.Backend, registry *fields.Registry) *TemplateService {
	return &TemplateService{db: db, store: store, registry: registry}
}

// IngestFlatDocument validates the uploaded DOCX, extracts its placeholder
// tokens, stores the raw file, and persists the template row.
func (s *TemplateService) IngestFlatDocument(ctx context.Context, content []byte, name, eventID, filename, contentType string) (*models.CertificateTemplate, error) {
	doc, err := processor.Open(content)
	if err != nil {
		return nil, err
	}
	placeholders := doc.ExtractPlaceholders()

	placeholdersJSON, err := json.Marshal(placeholders)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal placeholders: %w", err)
	}

	templateID := uuid.New().String()
	objectName := storage.TemplateObjectName(templateID, filename)
	result, err := s.store.Upload(ctx, bytes.NewReader(content), objectName, contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to store template file: %w", err)
	}

	template := &models.CertificateTemplate{
		ID:                 templateID,
		EventID:            eventID,
		Name:               name,
		Kind:               models.TemplateKindFlatDocument,
		RawContentRef:      objectName,
		FileSize:           result.Size,
		MimeType:           contentType,
		Placeholders:       string(placeholdersJSON),
		PlaceholderMapping: "{}",
	}
	if err := s.db.Create(template).Error; err != nil {
		s.store.Delete(ctx, objectName)
		return nil, fmt.Errorf("failed to save template: %w", err)
	}
	return template, nil
}

// IngestCanvas accepts a caller-supplied element list. No extraction occurs;
// {{token}} content in text elements is resolved at render time.
func (s *TemplateService) IngestCanvas(ctx context.Context, name, eventID string, spec models.CanvasSpec) (*models.CertificateTemplate, error) {
	if spec.BackgroundRef == "" {
		return nil, fmt.Errorf("canvas template requires a background reference")
	}
	for i, el := range spec.Elements {
		switch el.Type {
		case models.ElementText, models.ElementImage, models.ElementQRCode:
		default:
			return nil, fmt.Errorf("canvas element %d has unknown type %q", i, el.Type)
		}
	}

	specJSON, err := json.Marshal(spec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal canvas spec: %w", err)
	}

	template := &models.CertificateTemplate{
		ID:                 uuid.New().String(),
		EventID:            eventID,
		Name:               name,
		Kind:               models.TemplateKindCanvas,
		Placeholders:       "[]",
		PlaceholderMapping: "{}",
		CanvasSpec:         string(specJSON),
	}
	if err := s.db.Create(template).Error; err != nil {
		return nil, fmt.Errorf("failed to save template: %w", err)
	}
	return template, nil
}

func (s *TemplateService) Get(templateID string) (*models.CertificateTemplate, error) {
	var template models.CertificateTemplate
	if err := s.db.First(&template, "id = ?", templateID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("template %s: %w", templateID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load template: %w", err)
	}
	return &template, nil
}

// SetMapping validates and stores the placeholder mapping. Every mapping key
// must be an extracted placeholder and every value a registry field.
func (s *TemplateService) SetMapping(templateID string, mapping map[string]string) (*models.CertificateTemplate, error) {
	template, err := s.Get(templateID)
	if err != nil {
		return nil, err
	}

	extracted, err := template.ExtractedPlaceholders()
	if err != nil {
		return nil, fmt.Errorf("failed to decode placeholders: %w", err)
	}
	known := make(map[string]bool, len(extracted))
	for _, p := range extracted {
		known[p] = true
	}

	for placeholder, key := range mapping {
		if !known[placeholder] {
			return nil, fmt.Errorf("%w: placeholder %q is not present in the template", ErrUnknownField, placeholder)
		}
		if key != "" && !s.registry.Has(key) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownField, key)
		}
	}

	mappingJSON, err := json.Marshal(mapping)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal mapping: %w", err)
	}
	if err := s.db.Model(template).Update("placeholder_mapping", string(mappingJSON)).Error; err != nil {
		return nil, fmt.Errorf("failed to save mapping: %w", err)
	}
	template.PlaceholderMapping = string(mappingJSON)
	return template, nil
}

// MissingMappings returns the extracted placeholders that still lack a
// non-empty mapping. A template is generation-ready iff this is empty.
func (s *TemplateService) MissingMappings(template *models.CertificateTemplate) ([]string, error) {
	extracted, err := template.ExtractedPlaceholders()
	if err != nil {
		return nil, fmt.Errorf("failed to decode placeholders: %w", err)
	}
	mapping, err := template.Mapping()
	if err != nil {
		return nil, fmt.Errorf("failed to decode mapping: %w", err)
	}

	var missing []string
	for _, p := range extracted {
		if mapping[p] == "" {
			missing = append(missing, p)
		}
	}
	return missing, nil
}

func (s *TemplateService) IsReady(template *models.CertificateTemplate) (bool, error) {
	missing, err := s.MissingMappings(template)
	if err != nil {
		return false, err
	}
	return len(missing) == 0, nil
}

// RequireReady is the single precondition gate every batch passes before any
// rendering work begins.
func (s *TemplateService) RequireReady(template *models.CertificateTemplate) error {
	missing, err := s.MissingMappings(template)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return &IncompleteMappingError{Missing: missing}
	}
	return nil
}
