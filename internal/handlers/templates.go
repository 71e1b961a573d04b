package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"certforge/internal/fields"
	"certforge/internal/models"
	"certforge/internal/processor"
	"certforge/internal/services"

	"github.com/gin-gonic/gin"
)

// TemplateHandler exposes the data-field catalog, template ingestion, and
// placeholder mapping.
type TemplateHandler struct {
	templates *services.TemplateService
	registry  *fields.Registry
}

func NewTemplateHandler(templates *services.TemplateService, registry *fields.Registry) *TemplateHandler {
	return &TemplateHandler{templates: templates, registry: registry}
}

func (h *TemplateHandler) ListDataFields(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data_fields": h.registry.List()})
}

const maxTemplateSize = 20 << 20 // 20 MiB

// UploadTemplate ingests a template. flatDocument uploads carry the DOCX in
// the "template" form file; canvas uploads carry the element list as a JSON
// "canvas_spec" form field.
func (h *TemplateHandler) UploadTemplate(c *gin.Context) {
	name := c.PostForm("name")
	kind := c.PostForm("kind")
	eventID := c.PostForm("event_id")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Template name is required"})
		return
	}

	switch kind {
	case models.TemplateKindFlatDocument:
		h.uploadFlatDocument(c, name, eventID)
	case models.TemplateKindCanvas:
		h.uploadCanvas(c, name, eventID)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be flatDocument or canvas"})
	}
}

func (h *TemplateHandler) uploadFlatDocument(c *gin.Context, name, eventID string) {
	file, header, err := c.Request.FormFile("template")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No template file uploaded"})
		return
	}
	defer file.Close()

	if header.Size > maxTemplateSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Template file too large"})
		return
	}
	content, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read uploaded file"})
		return
	}

	template, err := h.templates.IngestFlatDocument(c.Request.Context(), content, name, eventID,
		header.Filename, header.Header.Get("Content-Type"))
	if err != nil {
		if errors.Is(err, processor.ErrUnsupportedFormat) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Uploaded file is not a valid document"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to ingest template"})
		return
	}

	placeholders, _ := template.ExtractedPlaceholders()
	c.JSON(http.StatusOK, gin.H{
		"template":     template,
		"placeholders": placeholders,
	})
}

func (h *TemplateHandler) uploadCanvas(c *gin.Context, name, eventID string) {
	rawSpec := c.PostForm("canvas_spec")
	if rawSpec == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "canvas_spec is required for canvas templates"})
		return
	}
	var spec models.CanvasSpec
	if err := json.Unmarshal([]byte(rawSpec), &spec); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid canvas_spec JSON"})
		return
	}

	template, err := h.templates.IngestCanvas(c.Request.Context(), name, eventID, spec)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"template": template})
}

func (h *TemplateHandler) GetTemplate(c *gin.Context) {
	template, err := h.templates.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Template not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load template"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"template": template})
}

type mappingRequest struct {
	PlaceholderMapping map[string]string `json:"placeholder_mapping" binding:"required"`
}

func (h *TemplateHandler) SetMapping(c *gin.Context) {
	var req mappingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}

	template, err := h.templates.SetMapping(c.Param("id"), req.PlaceholderMapping)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Template not found"})
		case errors.Is(err, services.ErrUnknownField):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save mapping"})
		}
		return
	}

	ready, err := h.templates.IsReady(template)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to evaluate readiness"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"template": template, "generation_ready": ready})
}
