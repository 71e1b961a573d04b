package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

type GCSBackend struct {
	client     *storage.Client
	bucketName string
}

func NewGCSBackend(ctx context.Context, bucketName, credentialsPath string) (*GCSBackend, error) {
	var client *storage.Client
	var err error

	if credentialsPath != "" {
		client, err = storage.NewClient(ctx, option.WithCredentialsFile(credentialsPath))
	} else {
		client, err = storage.NewClient(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &GCSBackend{client: client, bucketName: bucketName}, nil
}

func (g *GCSBackend) Upload(ctx context.Context, reader io.Reader, objectName, contentType string) (*UploadResult, error) {
	obj := g.client.Bucket(g.bucketName).Object(objectName)
	writer := obj.NewWriter(ctx)
	if contentType != "" {
		writer.ContentType = contentType
	}

	size, err := io.Copy(writer, reader)
	if err != nil {
		writer.Close()
		return nil, fmt.Errorf("failed to copy data to GCS: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close GCS writer: %w", err)
	}

	return &UploadResult{ObjectName: objectName, Size: size}, nil
}

func (g *GCSBackend) Read(ctx context.Context, objectName string) (io.ReadCloser, error) {
	return g.client.Bucket(g.bucketName).Object(objectName).NewReader(ctx)
}

func (g *GCSBackend) Delete(ctx context.Context, objectName string) error {
	return g.client.Bucket(g.bucketName).Object(objectName).Delete(ctx)
}

// SignedURL returns a time-limited download URL for authorized retrieval.
func (g *GCSBackend) SignedURL(objectName string, expiry time.Duration) (string, error) {
	opts := &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(expiry),
	}
	return g.client.Bucket(g.bucketName).SignedURL(objectName, opts)
}

func (g *GCSBackend) Close() error {
	return g.client.Close()
}
