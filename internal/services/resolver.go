package services

import (
	"strconv"
	"time"

	"certforge/internal/fields"
	"certforge/internal/models"
)

const dateLayout = "02 January 2006"

// DataResolver builds the per-participant field-value map consumed by the
// render engine. Every registry key gets a value so any mapped placeholder
// can be satisfied; the code fields are filled in by the batch once the
// certificate codes exist.
type DataResolver struct {
	registry *fields.Registry
}

func NewDataResolver(registry *fields.Registry) *DataResolver {
	return &DataResolver{registry: registry}
}

func (r *DataResolver) Resolve(event *models.Event, registration *models.Registration, serialNumber int) map[string]string {
	values := map[string]string{
		fields.KeyParticipantName:  registration.Name,
		fields.KeyParticipantEmail: registration.Email,
		fields.KeyParticipantPhone: registration.Phone,
		fields.KeyEventTitle:       event.Title,
		fields.KeyEventDate:        event.StartsAt.Format(dateLayout),
		fields.KeyEventLocation:    event.Location,
		fields.KeyRegistrationID:   registration.ID,
		fields.KeyRegistrationDate: registration.CreatedAt.Format(dateLayout),
		fields.KeySerialNumber:     strconv.Itoa(serialNumber),
	}

	// Unknown until the batch assigns codes; present so the map always
	// covers the full registry.
	values[fields.KeyCertificateCode] = ""
	values[fields.KeyVerificationCode] = ""
	values[fields.KeyIssueDate] = ""

	return values
}

// AddCodes completes the map once the certificate's codes are assigned.
func (r *DataResolver) AddCodes(values map[string]string, codes CodePair, issuedAt time.Time) {
	values[fields.KeyCertificateCode] = codes.CertificateCode
	values[fields.KeyVerificationCode] = codes.VerificationCode
	values[fields.KeyIssueDate] = issuedAt.Format(dateLayout)
}
