package handlers

import (
	"errors"
	"net/http"

	"certforge/internal/services"

	"github.com/gin-gonic/gin"
)

type GenerationHandler struct {
	generator    *services.BatchGenerator
	verification *services.VerificationService
}

func NewGenerationHandler(generator *services.BatchGenerator, verification *services.VerificationService) *GenerationHandler {
	return &GenerationHandler{generator: generator, verification: verification}
}

type generateRequest struct {
	TemplateID     string   `json:"template_id" binding:"required"`
	ParticipantIDs []string `json:"participant_ids"`
	Format         string   `json:"format"`
}

// Generate runs one batch. Per-participant failures are reported inside the
// result list with a 200 response; only batch-level precondition violations
// produce an error status.
func (h *GenerationHandler) Generate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}

	outcome, err := h.generator.GenerateBatch(c.Request.Context(), c.Param("eventId"), req.TemplateID, req.ParticipantIDs, req.Format)
	if err != nil {
		var incomplete *services.IncompleteMappingError
		switch {
		case errors.As(err, &incomplete):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":                "Template mapping is incomplete",
				"missing_placeholders": incomplete.Missing,
			})
		case errors.Is(err, services.ErrNoEligibleParticipants):
			c.JSON(http.StatusBadRequest, gin.H{"error": "No eligible participants for this event"})
		case errors.Is(err, services.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to run generation batch"})
		}
		return
	}

	c.JSON(http.StatusOK, outcome)
}

func (h *GenerationHandler) ListEventCertificates(c *gin.Context) {
	certificates, err := h.verification.ListByEvent(c.Param("eventId"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list certificates"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"certificates": certificates, "total": len(certificates)})
}
