//go:build gcp

package export

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"

	"retail-analytics/pkg/models"
)

// GCSSink uploads artifacts to a Google Cloud Storage bucket.
type GCSSink struct {
	client *storage.Client
	bucket string
	prefix string
	format Format
}

// NewGCSSink uses Application Default Credentials.
func NewGCSSink(ctx context.Context, bucket, prefix string, f Format) (*GCSSink, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return &GCSSink{client: client, bucket: bucket, prefix: prefix, format: f}, nil
}

func newGCSSink(ctx context.Context, opts Options) (Sink, error) {
	return NewGCSSink(ctx, opts.Bucket, opts.Prefix, opts.Format)
}

func (s *GCSSink) Export(ctx context.Context, t *models.Table) (string, error) {
	if t.Empty() {
		return "", nil
	}
	data, err := Encode(t, s.format)
	if err != nil {
		return "", err
	}
	objectPath := objectName(s.prefix, t, s.format)

	w := s.client.Bucket(s.bucket).Object(objectPath).NewWriter(ctx)
	w.ContentType = s.format.ContentType()
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("gcs write failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("gcs close failed: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, objectPath), nil
}

// Close closes the GCS client.
func (s *GCSSink) Close() error {
	return s.client.Close()
}
