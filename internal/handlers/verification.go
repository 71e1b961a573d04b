package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"certforge/internal/services"

	"github.com/gin-gonic/gin"
)

type VerificationHandler struct {
	verification *services.VerificationService
}

func NewVerificationHandler(verification *services.VerificationService) *VerificationHandler {
	return &VerificationHandler{verification: verification}
}

// Verify is the public lookup by verification code. An unknown code is a
// normal outcome, answered with 404 and no internal detail.
func (h *VerificationHandler) Verify(c *gin.Context) {
	view, err := h.verification.Verify(c.Param("code"))
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Certificate not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to verify certificate"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"certificate": view})
}

// Download streams the rendered artifact for a certificate code.
func (h *VerificationHandler) Download(c *gin.Context) {
	certificate, err := h.verification.Download(c.Param("code"))
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Certificate not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load certificate"})
		return
	}

	reader, err := h.verification.OpenArtifact(c.Request.Context(), certificate)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to open certificate file"})
		return
	}
	defer reader.Close()

	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Transfer-Encoding", "binary")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=certificate-%s.%s", certificate.CertificateCode, certificate.FileFormat))
	c.Header("Content-Type", contentTypeFor(certificate.FileFormat))
	c.Status(http.StatusOK)
	io.Copy(c.Writer, reader)
}

func contentTypeFor(format string) string {
	switch format {
	case "docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case "pdf":
		return "application/pdf"
	case "png":
		return "image/png"
	default:
		return "application/octet-stream"
	}
}
