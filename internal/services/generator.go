package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"certforge/internal/models"
	"certforge/internal/render"
	"certforge/internal/storage"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// Failure reason tokens recorded per participant.
const (
	ReasonAlreadyIssued      = "AlreadyIssued"
	ReasonCodeSpaceExhausted = "CodeSpaceExhausted"
	ReasonMissingFieldValue  = "MissingFieldValue"
	ReasonAssetUnavailable   = "AssetUnavailable"
	ReasonRenderFailure      = "RenderFailure"
	ReasonTimeout            = "Timeout"
	ReasonInternal           = "Internal"
)

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// GenerationResult is the per-participant outcome of one batch. It is never
// persisted; failures carry a reason token plus detail for the caller.
type GenerationResult struct {
	RegistrationID      string `json:"registration_id"`
	ParticipantName     string `json:"participant_name"`
	SerialNumber        int    `json:"serial_number"`
	Status              string `json:"status"`
	Reason              string `json:"reason,omitempty"`
	Detail              string `json:"detail,omitempty"`
	CertificateCode     string `json:"certificate_code,omitempty"`
	VerificationCode    string `json:"verification_code,omitempty"`
	FileRef             string `json:"file_ref,omitempty"`
	FileFormat          string `json:"file_format,omitempty"`
	UsedFallbackStorage bool   `json:"used_fallback_storage,omitempty"`
}

type BatchSummary struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

type BatchOutcome struct {
	Results []GenerationResult `json:"results"`
	Summary BatchSummary       `json:"summary"`
}

// DocxConverter is the optional PDF conversion capability; PDFService
// satisfies it.
type DocxConverter interface {
	ConvertDocx(ctx context.Context, docx []byte, filename string, landscape bool) ([]byte, error)
}

// BatchGenerator orchestrates resolve -> codes -> render -> persist for each
// participant of a batch, with per-item failure isolation: no single
// participant's failure aborts the batch. Already-persisted certificates are
// never rolled back, so an interrupted batch is resumable by re-running it.
type BatchGenerator struct {
	db        *gorm.DB
	store     storage.Backend
	assets    render.AssetLoader
	templates *TemplateService
	resolver  *DataResolver
	codes     *CodeGenerator
	pdf       DocxConverter

	workers     int
	itemTimeout time.Duration
}

func NewBatchGenerator(db *gorm.DB, store storage.Backend, templates *TemplateService, resolver *DataResolver, codes *CodeGenerator, pdf DocxConverter, workers int, itemTimeout time.Duration) *BatchGenerator {
	if workers < 1 {
		workers = 1
	}
	return &BatchGenerator{
		db:          db,
		store:       store,
		assets:      storage.NewAssetStore(store),
		templates:   templates,
		resolver:    resolver,
		codes:       codes,
		pdf:         pdf,
		workers:     workers,
		itemTimeout: itemTimeout,
	}
}

// GenerateBatch issues certificates for the given participants, or for every
// attended registration of the event when participantIDs is empty. format may
// be "pdf" to convert flat-document output; empty keeps the renderer's native
// format.
func (g *BatchGenerator) GenerateBatch(ctx context.Context, eventID, templateID string, participantIDs []string, format string) (*BatchOutcome, error) {
	var event models.Event
	if err := g.db.First(&event, "id = ?", eventID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("event %s: %w", eventID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load event: %w", err)
	}

	template, err := g.templates.Get(templateID)
	if err != nil {
		return nil, err
	}
	if template.EventID != "" && template.EventID != eventID {
		return nil, fmt.Errorf("template %s is bound to another event: %w", templateID, ErrNotFound)
	}

	// Single readiness gate for the whole batch; a partially configured
	// template never produces partially wrong certificates.
	if err := g.templates.RequireReady(template); err != nil {
		return nil, err
	}

	if format != "" && format != render.FormatPDF {
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
	if format == render.FormatPDF && template.Kind != models.TemplateKindFlatDocument {
		return nil, fmt.Errorf("pdf output requires a flat-document template")
	}
	if format == render.FormatPDF && g.pdf == nil {
		return nil, fmt.Errorf("pdf conversion is not configured")
	}

	registrations, err := g.eligibleRegistrations(eventID, participantIDs)
	if err != nil {
		return nil, err
	}
	if len(registrations) == 0 {
		return nil, ErrNoEligibleParticipants
	}

	renderer, err := g.buildRenderer(ctx, template)
	if err != nil {
		return nil, err
	}

	var issued int64
	if err := g.db.Model(&models.Certificate{}).Where("event_id = ?", eventID).Count(&issued).Error; err != nil {
		return nil, fmt.Errorf("failed to count issued certificates: %w", err)
	}
	serialStart := int(issued) + 1

	results := make([]GenerationResult, len(registrations))
	pool := &errgroup.Group{}
	pool.SetLimit(g.workers)
	for i := range registrations {
		reg := registrations[i]
		serial := serialStart + i
		idx := i
		pool.Go(func() error {
			results[idx] = g.generateOne(ctx, &event, template, renderer, &reg, serial, format)
			return nil
		})
	}
	_ = pool.Wait() // workers never return errors; failures live in results

	outcome := &BatchOutcome{Results: results}
	outcome.Summary.Total = len(results)
	for _, r := range results {
		if r.Status == StatusSuccess {
			outcome.Summary.Successful++
		} else {
			outcome.Summary.Failed++
		}
	}
	return outcome, nil
}

func (g *BatchGenerator) eligibleRegistrations(eventID string, participantIDs []string) ([]models.Registration, error) {
	var registrations []models.Registration
	query := g.db.Where("event_id = ?", eventID).Order("attended_at, created_at, id")
	if len(participantIDs) > 0 {
		query = query.Where("id IN ?", participantIDs)
	} else {
		query = query.Where("attended = ?", true)
	}
	if err := query.Find(&registrations).Error; err != nil {
		return nil, fmt.Errorf("failed to load registrations: %w", err)
	}
	return registrations, nil
}

func (g *BatchGenerator) buildRenderer(ctx context.Context, template *models.CertificateTemplate) (render.Renderer, error) {
	mapping, err := template.Mapping()
	if err != nil {
		return nil, fmt.Errorf("failed to decode mapping: %w", err)
	}

	switch template.Kind {
	case models.TemplateKindFlatDocument:
		rc, err := g.store.Read(ctx, template.RawContentRef)
		if err != nil {
			return nil, fmt.Errorf("failed to load template file: %w", err)
		}
		defer rc.Close()
		content, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("failed to read template file: %w", err)
		}
		return render.NewFlatDocumentRenderer(content, mapping)
	case models.TemplateKindCanvas:
		spec, err := template.Canvas()
		if err != nil || spec == nil {
			return nil, fmt.Errorf("failed to decode canvas spec: %v", err)
		}
		return render.NewCanvasRenderer(spec, mapping, g.assets), nil
	default:
		return nil, fmt.Errorf("unknown template kind %q", template.Kind)
	}
}

// generateOne runs a single participant through the per-item state machine.
// Every error is caught here and folded into the result; only the batch-level
// preconditions above can fail the enclosing call.
func (g *BatchGenerator) generateOne(ctx context.Context, event *models.Event, template *models.CertificateTemplate, renderer render.Renderer, registration *models.Registration, serial int, format string) GenerationResult {
	result := GenerationResult{
		RegistrationID:  registration.ID,
		ParticipantName: registration.Name,
		SerialNumber:    serial,
		Status:          StatusFailed,
	}

	itemCtx := ctx
	if g.itemTimeout > 0 {
		var cancel context.CancelFunc
		itemCtx, cancel = context.WithTimeout(ctx, g.itemTimeout)
		defer cancel()
	}

	var existing models.Certificate
	err := g.db.Where("event_id = ? AND registration_id = ?", event.ID, registration.ID).First(&existing).Error
	if err == nil {
		result.Reason = ReasonAlreadyIssued
		result.Detail = fmt.Sprintf("certificate %s already issued", existing.ID)
		return result
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return g.fail(result, err)
	}

	values := g.resolver.Resolve(event, registration, serial)

	pair, err := g.uniqueCodes()
	if err != nil {
		return g.fail(result, err)
	}
	issuedAt := time.Now()
	g.resolver.AddCodes(values, pair, issuedAt)

	data, formatTag, err := renderer.Render(itemCtx, values)
	if err != nil {
		return g.fail(result, err)
	}

	if format == render.FormatPDF && formatTag == render.FormatDocx {
		landscape := false
		if flat, ok := renderer.(*render.FlatDocumentRenderer); ok {
			landscape = flat.Landscape()
		}
		data, err = g.pdf.ConvertDocx(itemCtx, data, "certificate.docx", landscape)
		if err != nil {
			return g.fail(result, fmt.Errorf("%w: %v", render.ErrRenderFailure, err))
		}
		formatTag = render.FormatPDF
	}

	certificateID := uuid.New().String()
	objectName := storage.CertificateObjectName(certificateID, formatTag)
	upload, err := g.store.Upload(itemCtx, bytes.NewReader(data), objectName, contentTypeFor(formatTag))
	if err != nil {
		return g.fail(result, err)
	}

	certificate := &models.Certificate{
		ID:                  certificateID,
		EventID:             event.ID,
		RegistrationID:      registration.ID,
		TemplateID:          template.ID,
		CertificateCode:     pair.CertificateCode,
		VerificationCode:    pair.VerificationCode,
		SerialNumber:        serial,
		FileRef:             objectName,
		FileFormat:          formatTag,
		UsedFallbackStorage: upload.UsedFallback,
		IssuedAt:            issuedAt,
	}
	if err := g.db.Create(certificate).Error; err != nil {
		g.store.Delete(itemCtx, objectName)
		if isDuplicateKey(err) {
			// A concurrent batch won the (event, registration) row; the
			// constraint makes the duplicate explicit instead of silent.
			result.Reason = ReasonAlreadyIssued
			result.Detail = err.Error()
			return result
		}
		return g.fail(result, err)
	}

	result.Status = StatusSuccess
	result.Reason = ""
	result.CertificateCode = pair.CertificateCode
	result.VerificationCode = pair.VerificationCode
	result.FileRef = objectName
	result.FileFormat = formatTag
	result.UsedFallbackStorage = upload.UsedFallback
	return result
}

// uniqueCodes draws code pairs until neither code exists in the certificates
// table, bounded by MaxCodeAttempts.
func (g *BatchGenerator) uniqueCodes() (CodePair, error) {
	for attempt := 0; attempt < MaxCodeAttempts; attempt++ {
		pair, err := g.codes.Generate()
		if err != nil {
			return CodePair{}, err
		}
		var count int64
		err = g.db.Model(&models.Certificate{}).
			Where("certificate_code = ? OR verification_code = ?", pair.CertificateCode, pair.VerificationCode).
			Count(&count).Error
		if err != nil {
			return CodePair{}, fmt.Errorf("failed to check code uniqueness: %w", err)
		}
		if count == 0 {
			return pair, nil
		}
	}
	return CodePair{}, ErrCodeSpaceExhausted
}

func (g *BatchGenerator) fail(result GenerationResult, err error) GenerationResult {
	result.Status = StatusFailed
	result.Reason = reasonFor(err)
	result.Detail = err.Error()
	return result
}

func reasonFor(err error) string {
	switch {
	case errors.Is(err, ErrAlreadyIssued):
		return ReasonAlreadyIssued
	case errors.Is(err, ErrCodeSpaceExhausted):
		return ReasonCodeSpaceExhausted
	case errors.Is(err, render.ErrMissingFieldValue):
		return ReasonMissingFieldValue
	case errors.Is(err, render.ErrAssetUnavailable):
		return ReasonAssetUnavailable
	case errors.Is(err, render.ErrRenderFailure):
		return ReasonRenderFailure
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		return ReasonTimeout
	default:
		return ReasonInternal
	}
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") || strings.Contains(msg, "UNIQUE constraint failed")
}

func contentTypeFor(format string) string {
	switch format {
	case render.FormatDocx:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case render.FormatPDF:
		return "application/pdf"
	case render.FormatPNG:
		return "image/png"
	default:
		return "application/octet-stream"
	}
}
