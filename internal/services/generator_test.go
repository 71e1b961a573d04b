package services

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"testing"
	"time"

	"certforge/internal/fields"
	"certforge/internal/models"
	"certforge/internal/render"
	"certforge/internal/storage"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type batchFixture struct {
	db        *gorm.DB
	store     *storage.LocalBackend
	templates *TemplateService
	generator *BatchGenerator
}

func newBatchFixture(t *testing.T) *batchFixture {
	t.Helper()
	db := newTestDB(t)
	store := newTestStore(t)
	registry := fields.DefaultRegistry()
	templates := NewTemplateService(db, store, registry)
	generator := NewBatchGenerator(db, store, templates, NewDataResolver(registry), NewCodeGenerator(), nil, 1, time.Minute)
	return &batchFixture{db: db, store: store, templates: templates, generator: generator}
}

// seedFlatTemplate ingests a mapped flat-document template for the event.
func (f *batchFixture) seedFlatTemplate(t *testing.T, eventID string) *models.CertificateTemplate {
	t.Helper()
	content := buildDocxTemplate(t, `<w:p><w:r><w:t>Awarded to {{name}}, serial {{serial}}, verify {{verify}}</w:t></w:r></w:p>`)
	template, err := f.templates.IngestFlatDocument(context.Background(), content, "Attendance", eventID, "attendance.docx", docxMimeType)
	require.NoError(t, err)
	template, err = f.templates.SetMapping(template.ID, map[string]string{
		"name":   fields.KeyParticipantName,
		"serial": fields.KeySerialNumber,
		"verify": fields.KeyVerificationCode,
	})
	require.NoError(t, err)
	return template
}

func (f *batchFixture) readArtifact(t *testing.T, fileRef string) []byte {
	t.Helper()
	rc, err := f.store.Read(context.Background(), fileRef)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return data
}

func TestGenerateBatchIssuesForAllAttended(t *testing.T) {
	f := newBatchFixture(t)
	event := seedEvent(t, f.db)
	template := f.seedFlatTemplate(t, event.ID)

	base := time.Date(2026, 8, 17, 10, 0, 0, 0, time.UTC)
	first := seedRegistration(t, f.db, event.ID, "Ada Lovelace", true, base)
	second := seedRegistration(t, f.db, event.ID, "Grace Hopper", true, base.Add(time.Minute))
	third := seedRegistration(t, f.db, event.ID, "Barbara Liskov", true, base.Add(2*time.Minute))
	seedRegistration(t, f.db, event.ID, "No Show", false, time.Time{})

	outcome, err := f.generator.GenerateBatch(context.Background(), event.ID, template.ID, nil, "")
	require.NoError(t, err)

	assert.Equal(t, 3, outcome.Summary.Total)
	assert.Equal(t, 3, outcome.Summary.Successful)
	assert.Equal(t, 0, outcome.Summary.Failed)

	// Serial numbers follow attendance order.
	require.Len(t, outcome.Results, 3)
	assert.Equal(t, first.ID, outcome.Results[0].RegistrationID)
	assert.Equal(t, 1, outcome.Results[0].SerialNumber)
	assert.Equal(t, second.ID, outcome.Results[1].RegistrationID)
	assert.Equal(t, 2, outcome.Results[1].SerialNumber)
	assert.Equal(t, third.ID, outcome.Results[2].RegistrationID)
	assert.Equal(t, 3, outcome.Results[2].SerialNumber)

	// Codes are distinct across the batch.
	certCodes := make(map[string]bool)
	verifyCodes := make(map[string]bool)
	for _, r := range outcome.Results {
		assert.False(t, certCodes[r.CertificateCode])
		assert.False(t, verifyCodes[r.VerificationCode])
		certCodes[r.CertificateCode] = true
		verifyCodes[r.VerificationCode] = true
	}

	// The stored artifact carries the substituted values.
	doc := documentText(t, f.readArtifact(t, outcome.Results[0].FileRef))
	assert.Contains(t, doc, "Awarded to Ada Lovelace")
	assert.Contains(t, doc, "serial 1")
	assert.Contains(t, doc, outcome.Results[0].VerificationCode)
	assert.NotContains(t, doc, "{{")

	var count int64
	require.NoError(t, f.db.Model(&models.Certificate{}).Where("event_id = ?", event.ID).Count(&count).Error)
	assert.EqualValues(t, 3, count)
}

func TestGenerateBatchRerunReportsAlreadyIssued(t *testing.T) {
	f := newBatchFixture(t)
	event := seedEvent(t, f.db)
	template := f.seedFlatTemplate(t, event.ID)
	seedRegistration(t, f.db, event.ID, "Ada Lovelace", true, time.Now())

	first, err := f.generator.GenerateBatch(context.Background(), event.ID, template.ID, nil, "")
	require.NoError(t, err)
	require.Equal(t, 1, first.Summary.Successful)

	var before models.Certificate
	require.NoError(t, f.db.Where("event_id = ?", event.ID).First(&before).Error)

	second, err := f.generator.GenerateBatch(context.Background(), event.ID, template.ID, nil, "")
	require.NoError(t, err)
	assert.Equal(t, 0, second.Summary.Successful)
	assert.Equal(t, 1, second.Summary.Failed)
	assert.Equal(t, ReasonAlreadyIssued, second.Results[0].Reason)

	// The persisted certificate is untouched by the rerun.
	var after models.Certificate
	require.NoError(t, f.db.Where("event_id = ?", event.ID).First(&after).Error)
	assert.Equal(t, before.ID, after.ID)
	assert.Equal(t, before.CertificateCode, after.CertificateCode)
	assert.Equal(t, before.FileRef, after.FileRef)
}

func TestGenerateBatchIsolatesPerItemFailures(t *testing.T) {
	f := newBatchFixture(t)
	event := seedEvent(t, f.db)
	template := f.seedFlatTemplate(t, event.ID)

	base := time.Now()
	blocked := seedRegistration(t, f.db, event.ID, "Already Done", true, base)
	seedRegistration(t, f.db, event.ID, "Fresh One", true, base.Add(time.Minute))
	seedRegistration(t, f.db, event.ID, "Fresh Two", true, base.Add(2*time.Minute))

	// Pre-issue one participant so the batch hits a mid-stream failure.
	require.NoError(t, f.db.Create(&models.Certificate{
		ID:               uuid.New().String(),
		EventID:          event.ID,
		RegistrationID:   blocked.ID,
		TemplateID:       template.ID,
		CertificateCode:  "AAAA-BBBB-CCCC",
		VerificationCode: "0123456789",
		SerialNumber:     1,
		FileRef:          "certificates/existing/certificate.docx",
		FileFormat:       "docx",
		IssuedAt:         time.Now(),
	}).Error)

	outcome, err := f.generator.GenerateBatch(context.Background(), event.ID, template.ID, nil, "")
	require.NoError(t, err)

	assert.Equal(t, 3, outcome.Summary.Total)
	assert.Equal(t, 2, outcome.Summary.Successful)
	assert.Equal(t, 1, outcome.Summary.Failed)

	byRegistration := make(map[string]GenerationResult)
	for _, r := range outcome.Results {
		byRegistration[r.RegistrationID] = r
	}
	assert.Equal(t, StatusFailed, byRegistration[blocked.ID].Status)
	assert.Equal(t, ReasonAlreadyIssued, byRegistration[blocked.ID].Reason)
}

func TestGenerateBatchExplicitParticipantsOverrideAttendance(t *testing.T) {
	f := newBatchFixture(t)
	event := seedEvent(t, f.db)
	template := f.seedFlatTemplate(t, event.ID)

	absent := seedRegistration(t, f.db, event.ID, "Invited Anyway", false, time.Time{})
	seedRegistration(t, f.db, event.ID, "Attended But Skipped", true, time.Now())

	outcome, err := f.generator.GenerateBatch(context.Background(), event.ID, template.ID, []string{absent.ID}, "")
	require.NoError(t, err)

	require.Len(t, outcome.Results, 1)
	assert.Equal(t, absent.ID, outcome.Results[0].RegistrationID)
	assert.Equal(t, StatusSuccess, outcome.Results[0].Status)
}

func TestGenerateBatchContinuesSerialSequence(t *testing.T) {
	f := newBatchFixture(t)
	event := seedEvent(t, f.db)
	template := f.seedFlatTemplate(t, event.ID)

	first := seedRegistration(t, f.db, event.ID, "First", true, time.Now())
	_, err := f.generator.GenerateBatch(context.Background(), event.ID, template.ID, []string{first.ID}, "")
	require.NoError(t, err)

	second := seedRegistration(t, f.db, event.ID, "Second", true, time.Now())
	outcome, err := f.generator.GenerateBatch(context.Background(), event.ID, template.ID, []string{second.ID}, "")
	require.NoError(t, err)

	require.Len(t, outcome.Results, 1)
	assert.Equal(t, 2, outcome.Results[0].SerialNumber)
}

func TestGenerateBatchPreconditions(t *testing.T) {
	f := newBatchFixture(t)
	event := seedEvent(t, f.db)
	template := f.seedFlatTemplate(t, event.ID)

	t.Run("unknown event", func(t *testing.T) {
		_, err := f.generator.GenerateBatch(context.Background(), "missing", template.ID, nil, "")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("unknown template", func(t *testing.T) {
		_, err := f.generator.GenerateBatch(context.Background(), event.ID, "missing", nil, "")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("template bound to another event", func(t *testing.T) {
		other := seedEvent(t, f.db)
		_, err := f.generator.GenerateBatch(context.Background(), other.ID, template.ID, nil, "")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("no eligible participants", func(t *testing.T) {
		_, err := f.generator.GenerateBatch(context.Background(), event.ID, template.ID, nil, "")
		require.ErrorIs(t, err, ErrNoEligibleParticipants)
	})

	t.Run("unsupported format", func(t *testing.T) {
		seedRegistration(t, f.db, event.ID, "Someone", true, time.Now())
		_, err := f.generator.GenerateBatch(context.Background(), event.ID, template.ID, nil, "gif")
		require.Error(t, err)
	})

	t.Run("pdf without converter", func(t *testing.T) {
		_, err := f.generator.GenerateBatch(context.Background(), event.ID, template.ID, nil, render.FormatPDF)
		require.Error(t, err)
	})
}

func TestGenerateBatchRejectsIncompleteMapping(t *testing.T) {
	f := newBatchFixture(t)
	event := seedEvent(t, f.db)
	seedRegistration(t, f.db, event.ID, "Ada Lovelace", true, time.Now())

	content := buildDocxTemplate(t, `<w:p><w:r><w:t>{{name}} and {{unmapped}}</w:t></w:r></w:p>`)
	template, err := f.templates.IngestFlatDocument(context.Background(), content, "Partial", event.ID, "partial.docx", docxMimeType)
	require.NoError(t, err)
	_, err = f.templates.SetMapping(template.ID, map[string]string{"name": fields.KeyParticipantName})
	require.NoError(t, err)

	_, err = f.generator.GenerateBatch(context.Background(), event.ID, template.ID, nil, "")
	var incomplete *IncompleteMappingError
	require.ErrorAs(t, err, &incomplete)
	assert.Equal(t, []string{"unmapped"}, incomplete.Missing)

	// Nothing was issued behind the failed gate.
	var count int64
	require.NoError(t, f.db.Model(&models.Certificate{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestGenerateBatchCanvas(t *testing.T) {
	f := newBatchFixture(t)
	event := seedEvent(t, f.db)
	seedRegistration(t, f.db, event.ID, "Ada Lovelace", true, time.Now())

	// Upload the canvas background through the same store the batch reads from.
	background := image.NewRGBA(image.Rect(0, 0, 320, 240))
	for y := 0; y < 240; y++ {
		for x := 0; x < 320; x++ {
			background.Set(x, y, color.RGBA{R: 240, G: 240, B: 255, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, background))
	backgroundRef := storage.AssetObjectName(uuid.New().String(), "background.png")
	_, err := f.store.Upload(context.Background(), bytes.NewReader(buf.Bytes()), backgroundRef, "image/png")
	require.NoError(t, err)

	template, err := f.templates.IngestCanvas(context.Background(), "Canvas", event.ID, models.CanvasSpec{
		BackgroundRef: backgroundRef,
		Elements: []models.CanvasElement{
			{Type: models.ElementText, Content: "{{participant.name}}", X: 40, Y: 120, FontSize: 18, Color: "#1a1a1a"},
			{Type: models.ElementQRCode, Content: "{{certificate.verificationCode}}", X: 220, Y: 130, W: 80},
		},
	})
	require.NoError(t, err)

	outcome, err := f.generator.GenerateBatch(context.Background(), event.ID, template.ID, nil, "")
	require.NoError(t, err)

	require.Equal(t, 1, outcome.Summary.Successful)
	result := outcome.Results[0]
	assert.Equal(t, render.FormatPNG, result.FileFormat)

	rendered := f.readArtifact(t, result.FileRef)
	img, err := png.Decode(bytes.NewReader(rendered))
	require.NoError(t, err)
	assert.Equal(t, 320, img.Bounds().Dx())
	assert.Equal(t, 240, img.Bounds().Dy())
}

func TestReasonForClassification(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		reason string
	}{
		{"already issued", ErrAlreadyIssued, ReasonAlreadyIssued},
		{"code space", ErrCodeSpaceExhausted, ReasonCodeSpaceExhausted},
		{"missing value", render.ErrMissingFieldValue, ReasonMissingFieldValue},
		{"asset", render.ErrAssetUnavailable, ReasonAssetUnavailable},
		{"render", render.ErrRenderFailure, ReasonRenderFailure},
		{"timeout", context.DeadlineExceeded, ReasonTimeout},
		{"other", io.ErrUnexpectedEOF, ReasonInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.reason, reasonFor(tc.err))
		})
	}
}
