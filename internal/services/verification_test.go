package services

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyReturnsPublicView(t *testing.T) {
	f := newBatchFixture(t)
	event := seedEvent(t, f.db)
	template := f.seedFlatTemplate(t, event.ID)
	registration := seedRegistration(t, f.db, event.ID, "Ada Lovelace", true, time.Now())

	outcome, err := f.generator.GenerateBatch(context.Background(), event.ID, template.ID, nil, "")
	require.NoError(t, err)
	require.Equal(t, 1, outcome.Summary.Successful)
	result := outcome.Results[0]

	svc := NewVerificationService(f.db, f.store)
	view, err := svc.Verify(result.VerificationCode)
	require.NoError(t, err)

	assert.Equal(t, registration.Name, view.ParticipantName)
	assert.Equal(t, registration.Email, view.ParticipantEmail)
	assert.Equal(t, event.Title, view.EventTitle)
	assert.Equal(t, event.Location, view.EventLocation)
	assert.Equal(t, result.VerificationCode, view.DownloadRef)
	assert.False(t, view.IssuedAt.IsZero())
}

func TestVerifyUnknownCode(t *testing.T) {
	f := newBatchFixture(t)
	svc := NewVerificationService(f.db, f.store)

	_, err := svc.Verify("ZZZZZZZZZZ")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Verify("")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDownloadStreamsArtifact(t *testing.T) {
	f := newBatchFixture(t)
	event := seedEvent(t, f.db)
	template := f.seedFlatTemplate(t, event.ID)
	seedRegistration(t, f.db, event.ID, "Ada Lovelace", true, time.Now())

	outcome, err := f.generator.GenerateBatch(context.Background(), event.ID, template.ID, nil, "")
	require.NoError(t, err)
	result := outcome.Results[0]

	svc := NewVerificationService(f.db, f.store)
	certificate, err := svc.Download(result.CertificateCode)
	require.NoError(t, err)
	assert.Equal(t, result.FileRef, certificate.FileRef)
	assert.Equal(t, result.FileFormat, certificate.FileFormat)

	rc, err := svc.OpenArtifact(context.Background(), certificate)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, f.readArtifact(t, result.FileRef), data)

	// The verification code does not serve the download path.
	_, err = svc.Download(result.VerificationCode)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListByEventOrdersBySerial(t *testing.T) {
	f := newBatchFixture(t)
	event := seedEvent(t, f.db)
	template := f.seedFlatTemplate(t, event.ID)

	base := time.Now()
	seedRegistration(t, f.db, event.ID, "First", true, base)
	seedRegistration(t, f.db, event.ID, "Second", true, base.Add(time.Minute))
	seedRegistration(t, f.db, event.ID, "Third", true, base.Add(2*time.Minute))

	_, err := f.generator.GenerateBatch(context.Background(), event.ID, template.ID, nil, "")
	require.NoError(t, err)

	svc := NewVerificationService(f.db, f.store)
	certificates, err := svc.ListByEvent(event.ID)
	require.NoError(t, err)
	require.Len(t, certificates, 3)
	for i, c := range certificates {
		assert.Equal(t, i+1, c.SerialNumber)
	}

	other, err := svc.ListByEvent("other-event")
	require.NoError(t, err)
	assert.Empty(t, other)
}
