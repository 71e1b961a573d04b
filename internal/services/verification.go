package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"certforge/internal/models"
	"certforge/internal/storage"

	"gorm.io/gorm"
)

// VerificationService answers the public lookup paths. NotFound is a normal
// outcome here (it covers the public "invalid code" case), not something to
// log loudly.
type VerificationService struct {
	db    *gorm.DB
	store storage.Backend
}

func NewVerificationService(db *gorm.DB, store storage.Backend) *VerificationService {
	return &VerificationService{db: db, store: store}
}

// Verify resolves a verification code to a denormalized certificate view.
// The view exposes neither the certificate code nor internal identifiers.
func (s *VerificationService) Verify(verificationCode string) (*models.CertificateView, error) {
	certificate, err := s.byColumn("verification_code", verificationCode)
	if err != nil {
		return nil, err
	}

	var registration models.Registration
	if err := s.db.First(&registration, "id = ?", certificate.RegistrationID).Error; err != nil {
		return nil, fmt.Errorf("failed to load registration: %w", err)
	}
	var event models.Event
	if err := s.db.First(&event, "id = ?", certificate.EventID).Error; err != nil {
		return nil, fmt.Errorf("failed to load event: %w", err)
	}

	return &models.CertificateView{
		ParticipantName:  registration.Name,
		ParticipantEmail: registration.Email,
		EventTitle:       event.Title,
		EventDate:        event.StartsAt,
		EventLocation:    event.Location,
		IssuedAt:         certificate.IssuedAt,
		DownloadRef:      certificate.VerificationCode,
	}, nil
}

// Download is the narrower lookup path for authorized retrieval, keyed by
// the certificate code the recipient holds.
func (s *VerificationService) Download(certificateCode string) (*models.Certificate, error) {
	return s.byColumn("certificate_code", certificateCode)
}

// OpenArtifact streams the rendered bytes for a certificate.
func (s *VerificationService) OpenArtifact(ctx context.Context, certificate *models.Certificate) (io.ReadCloser, error) {
	return s.store.Read(ctx, certificate.FileRef)
}

// ListByEvent returns every persisted certificate for an event.
func (s *VerificationService) ListByEvent(eventID string) ([]models.Certificate, error) {
	var certificates []models.Certificate
	if err := s.db.Where("event_id = ?", eventID).Order("serial_number").Find(&certificates).Error; err != nil {
		return nil, fmt.Errorf("failed to list certificates: %w", err)
	}
	return certificates, nil
}

func (s *VerificationService) byColumn(column, value string) (*models.Certificate, error) {
	if value == "" {
		return nil, ErrNotFound
	}
	var certificate models.Certificate
	err := s.db.Where(column+" = ?", value).First(&certificate).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to look up certificate: %w", err)
	}
	return &certificate, nil
}
