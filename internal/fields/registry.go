// Package fields holds the static catalog of data fields that template
// placeholders can be mapped to.
package fields

import "fmt"

// Field categories group fields in the mapping UI; they carry no behavioral
// weight in the engine.
const (
	CategoryParticipant  = "participant"
	CategoryEvent        = "event"
	CategoryRegistration = "registration"
	CategorySystem       = "system"
)

// Data types for display hints.
const (
	TypeText   = "text"
	TypeDate   = "date"
	TypeNumber = "number"
	TypeEmail  = "email"
	TypePhone  = "phone"
)

type DataField struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	Category string `json:"category"`
	DataType string `json:"data_type"`
	Example  string `json:"example,omitempty"`
}

// Registry is an immutable, process-wide field catalog. It is constructed
// once and passed explicitly into the resolver and mapping code.
type Registry struct {
	ordered []DataField
	byKey   map[string]DataField
}

// Field keys understood by the resolver.
const (
	KeyParticipantName  = "participant.name"
	KeyParticipantEmail = "participant.email"
	KeyParticipantPhone = "participant.phone"
	KeyEventTitle       = "event.title"
	KeyEventDate        = "event.date"
	KeyEventLocation    = "event.location"
	KeyRegistrationID   = "registration.id"
	KeyRegistrationDate = "registration.date"
	KeySerialNumber     = "certificate.serialNumber"
	KeyCertificateCode  = "certificate.code"
	KeyVerificationCode = "certificate.verificationCode"
	KeyIssueDate        = "certificate.issueDate"
)

// DefaultRegistry returns the catalog of every field the resolver can fill.
func DefaultRegistry() *Registry {
	return NewRegistry([]DataField{
		{Key: KeyParticipantName, Label: "Participant name", Category: CategoryParticipant, DataType: TypeText, Example: "Ada Lovelace"},
		{Key: KeyParticipantEmail, Label: "Participant email", Category: CategoryParticipant, DataType: TypeEmail, Example: "ada@example.com"},
		{Key: KeyParticipantPhone, Label: "Participant phone", Category: CategoryParticipant, DataType: TypePhone, Example: "+62 812 0000 0000"},
		{Key: KeyEventTitle, Label: "Event title", Category: CategoryEvent, DataType: TypeText, Example: "Go Conference 2026"},
		{Key: KeyEventDate, Label: "Event date", Category: CategoryEvent, DataType: TypeDate, Example: "17 August 2026"},
		{Key: KeyEventLocation, Label: "Event location", Category: CategoryEvent, DataType: TypeText, Example: "Jakarta"},
		{Key: KeyRegistrationID, Label: "Registration ID", Category: CategoryRegistration, DataType: TypeText},
		{Key: KeyRegistrationDate, Label: "Registration date", Category: CategoryRegistration, DataType: TypeDate},
		{Key: KeySerialNumber, Label: "Serial number", Category: CategorySystem, DataType: TypeNumber, Example: "42"},
		{Key: KeyCertificateCode, Label: "Certificate code", Category: CategorySystem, DataType: TypeText},
		{Key: KeyVerificationCode, Label: "Verification code", Category: CategorySystem, DataType: TypeText},
		{Key: KeyIssueDate, Label: "Issue date", Category: CategorySystem, DataType: TypeDate},
	})
}

func NewRegistry(list []DataField) *Registry {
	byKey := make(map[string]DataField, len(list))
	ordered := make([]DataField, len(list))
	copy(ordered, list)
	for _, f := range list {
		byKey[f.Key] = f
	}
	return &Registry{ordered: ordered, byKey: byKey}
}

// List returns the fields in declaration order. The returned slice is a copy.
func (r *Registry) List() []DataField {
	out := make([]DataField, len(r.ordered))
	copy(out, r.ordered)
	return out
}

func (r *Registry) Resolve(key string) (DataField, error) {
	f, ok := r.byKey[key]
	if !ok {
		return DataField{}, fmt.Errorf("unknown data field %q", key)
	}
	return f, nil
}

func (r *Registry) Has(key string) bool {
	_, ok := r.byKey[key]
	return ok
}
