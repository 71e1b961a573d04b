// Package storage abstracts blob persistence behind one Backend capability,
// with GCS as the primary backend and local disk as a declared fallback.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"time"
)

type UploadResult struct {
	ObjectName   string `json:"object_name"`
	Size         int64  `json:"size"`
	UsedFallback bool   `json:"used_fallback"`
}

type Backend interface {
	Upload(ctx context.Context, reader io.Reader, objectName, contentType string) (*UploadResult, error)
	Read(ctx context.Context, objectName string) (io.ReadCloser, error)
	Delete(ctx context.Context, objectName string) error
}

// Fallback chains a primary and a secondary backend. A failed primary upload
// is retried against the secondary and surfaced via UploadResult.UsedFallback
// rather than hidden; reads try the primary first so objects written during a
// primary outage stay reachable.
type Fallback struct {
	primary   Backend
	secondary Backend
}

func NewFallback(primary, secondary Backend) *Fallback {
	return &Fallback{primary: primary, secondary: secondary}
}

func (f *Fallback) Upload(ctx context.Context, reader io.Reader, objectName, contentType string) (*UploadResult, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to buffer upload: %w", err)
	}

	result, primaryErr := f.primary.Upload(ctx, bytes.NewReader(data), objectName, contentType)
	if primaryErr == nil {
		return result, nil
	}
	log.Printf("primary storage upload failed for %s, using fallback: %v", objectName, primaryErr)

	result, err = f.secondary.Upload(ctx, bytes.NewReader(data), objectName, contentType)
	if err != nil {
		return nil, fmt.Errorf("primary failed (%v), fallback failed: %w", primaryErr, err)
	}
	result.UsedFallback = true
	return result, nil
}

func (f *Fallback) Read(ctx context.Context, objectName string) (io.ReadCloser, error) {
	rc, err := f.primary.Read(ctx, objectName)
	if err == nil {
		return rc, nil
	}
	return f.secondary.Read(ctx, objectName)
}

func (f *Fallback) Delete(ctx context.Context, objectName string) error {
	primaryErr := f.primary.Delete(ctx, objectName)
	if err := f.secondary.Delete(ctx, objectName); err != nil && primaryErr != nil {
		return primaryErr
	}
	return nil
}

// AssetStore adapts a Backend to whole-object reads for the render engine.
type AssetStore struct {
	backend Backend
}

func NewAssetStore(backend Backend) *AssetStore {
	return &AssetStore{backend: backend}
}

func (a *AssetStore) Load(ctx context.Context, ref string) ([]byte, error) {
	rc, err := a.backend.Read(ctx, ref)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func TemplateObjectName(templateID, filename string) string {
	return fmt.Sprintf("templates/%s/%d_%s", templateID, time.Now().Unix(), filename)
}

func CertificateObjectName(certificateID, format string) string {
	return fmt.Sprintf("certificates/%s/certificate.%s", certificateID, format)
}

func AssetObjectName(assetID, filename string) string {
	return fmt.Sprintf("assets/%s/%d_%s", assetID, time.Now().Unix(), filename)
}
