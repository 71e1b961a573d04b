package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/starwalkn/gotenberg-go-client/v8"
	"github.com/starwalkn/gotenberg-go-client/v8/document"
)

// PDFService converts rendered DOCX artifacts to PDF through Gotenberg's
// LibreOffice route.
type PDFService struct {
	client  *gotenberg.Client
	timeout time.Duration
}

func NewPDFService(gotenbergURL string, timeoutStr string) (*PDFService, error) {
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil {
		timeout = 30 * time.Second
		fmt.Printf("Warning: failed to parse timeout '%s', using default 30s: %v\n", timeoutStr, err)
	}

	httpClient := &http.Client{Timeout: timeout}
	client, err := gotenberg.NewClient(gotenbergURL, httpClient)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gotenberg client: %w", err)
	}

	return &PDFService{client: client, timeout: timeout}, nil
}

// ConvertDocx converts one DOCX document, retrying transient Gotenberg
// failures with linear backoff.
func (s *PDFService) ConvertDocx(ctx context.Context, docx []byte, filename string, landscape bool) ([]byte, error) {
	const maxRetries = 3
	var lastErr error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		convertCtx, cancel := context.WithTimeout(ctx, s.timeout)

		doc, err := document.FromReader(filename, bytes.NewReader(docx))
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to create document from reader: %w", err)
		}

		req := gotenberg.NewLibreOfficeRequest(doc)
		if landscape {
			req.Landscape()
		}

		resp, err := s.client.Send(convertCtx, req)
		if err == nil {
			data, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			cancel()
			if readErr != nil {
				return nil, fmt.Errorf("failed to read converted document: %w", readErr)
			}
			return data, nil
		}
		cancel()

		lastErr = err
		if attempt < maxRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}
	}

	return nil, fmt.Errorf("failed to convert document after %d attempts: %w", maxRetries, lastErr)
}
