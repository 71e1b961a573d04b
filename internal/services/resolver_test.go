package services

import (
	"testing"
	"time"

	"certforge/internal/fields"
	"certforge/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolverCoversEveryRegistryField(t *testing.T) {
	registry := fields.DefaultRegistry()
	resolver := NewDataResolver(registry)

	event := &models.Event{
		ID:       "ev-1",
		Title:    "Go Conference 2026",
		Location: "Jakarta",
		StartsAt: time.Date(2026, 8, 17, 9, 0, 0, 0, time.UTC),
	}
	registration := &models.Registration{
		ID:        "reg-1",
		EventID:   "ev-1",
		Name:      "Ada Lovelace",
		Email:     "ada@example.com",
		Phone:     "+62 812 0000 0000",
		CreatedAt: time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC),
	}

	values := resolver.Resolve(event, registration, 7)
	for _, field := range registry.List() {
		_, ok := values[field.Key]
		assert.True(t, ok, "missing value for %s", field.Key)
	}

	assert.Equal(t, "Ada Lovelace", values[fields.KeyParticipantName])
	assert.Equal(t, "ada@example.com", values[fields.KeyParticipantEmail])
	assert.Equal(t, "Go Conference 2026", values[fields.KeyEventTitle])
	assert.Equal(t, "17 August 2026", values[fields.KeyEventDate])
	assert.Equal(t, "01 July 2026", values[fields.KeyRegistrationDate])
	assert.Equal(t, "7", values[fields.KeySerialNumber])

	// Code fields stay empty until the batch assigns them.
	assert.Empty(t, values[fields.KeyCertificateCode])
	assert.Empty(t, values[fields.KeyVerificationCode])
	assert.Empty(t, values[fields.KeyIssueDate])
}

func TestResolverAddCodes(t *testing.T) {
	resolver := NewDataResolver(fields.DefaultRegistry())
	values := resolver.Resolve(&models.Event{}, &models.Registration{}, 1)

	pair := CodePair{CertificateCode: "AAAA-BBBB-CCCC", VerificationCode: "0123456789"}
	issuedAt := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	resolver.AddCodes(values, pair, issuedAt)

	require.Equal(t, "AAAA-BBBB-CCCC", values[fields.KeyCertificateCode])
	require.Equal(t, "0123456789", values[fields.KeyVerificationCode])
	require.Equal(t, "29 August 2026", values[fields.KeyIssueDate])
}
