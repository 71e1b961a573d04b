package models

import (
	"time"

	"gorm.io/gorm"
)

// Certificate is the issued artifact record. Codes are globally unique and a
// registration can hold at most one certificate per event, both enforced by
// database constraints rather than in-process locks.
type Certificate struct {
	ID             string `gorm:"type:varchar(36);primaryKey" json:"id"`
	EventID        string `gorm:"type:varchar(36);not null;uniqueIndex:idx_certificates_event_registration" json:"event_id"`
	RegistrationID string `gorm:"type:varchar(36);not null;uniqueIndex:idx_certificates_event_registration" json:"registration_id"`
	TemplateID     string `gorm:"type:varchar(36);not null;index" json:"template_id"`

	CertificateCode  string `gorm:"type:varchar(20);not null;uniqueIndex" json:"certificate_code"`
	VerificationCode string `gorm:"type:varchar(20);not null;uniqueIndex" json:"verification_code"`
	SerialNumber     int    `gorm:"not null" json:"serial_number"`

	FileRef             string    `gorm:"not null" json:"file_ref"`
	FileFormat          string    `gorm:"type:varchar(10);not null" json:"file_format"` // docx | pdf | png
	UsedFallbackStorage bool      `json:"used_fallback_storage"`
	IssuedAt            time.Time `json:"issued_at"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Certificate) TableName() string {
	return "certificates"
}

// Event and Registration are collaborator tables owned by the surrounding
// application; the engine only reads them.
type Event struct {
	ID       string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Title    string    `gorm:"not null" json:"title"`
	Location string    `json:"location"`
	StartsAt time.Time `json:"starts_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Event) TableName() string {
	return "events"
}

type Registration struct {
	ID      string `gorm:"type:varchar(36);primaryKey" json:"id"`
	EventID string `gorm:"type:varchar(36);not null;index" json:"event_id"`
	Name    string `gorm:"not null" json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`

	// Attended is the opaque eligibility flag recorded by the check-in
	// collaborator; AttendedAt gives batches a stable processing order.
	Attended   bool       `json:"attended"`
	AttendedAt *time.Time `json:"attended_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Registration) TableName() string {
	return "registrations"
}

// CertificateView is the public verification response. It deliberately omits
// the certificate code and internal identifiers.
type CertificateView struct {
	ParticipantName  string    `json:"participant_name"`
	ParticipantEmail string    `json:"participant_email"`
	EventTitle       string    `json:"event_title"`
	EventDate        time.Time `json:"event_date"`
	EventLocation    string    `json:"event_location"`
	IssuedAt         time.Time `json:"issued_at"`
	DownloadRef      string    `json:"download_ref"`
}
