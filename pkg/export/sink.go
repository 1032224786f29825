// Package export writes report tables to a filesystem directory or an object store.
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"retail-analytics/pkg/models"
)

// Sink receives finished report tables.
type Sink interface {
	// Export writes the table and returns where it went. Empty tables are
	// not written and return ("", nil).
	Export(ctx context.Context, t *models.Table) (string, error)
}

// SinkType selects the export backend.
type SinkType string

const (
	SinkTypeFS  SinkType = "fs"
	SinkTypeS3  SinkType = "s3"
	SinkTypeGCS SinkType = "gcs"
)

// Options configures NewSink.
type Options struct {
	Type     SinkType
	Format   Format
	Dir      string // fs
	Bucket   string // s3, gcs
	Prefix   string // object key prefix
	Region   string // s3
	Endpoint string // s3, optional (MinIO, LocalStack)
}

// NewSink builds the sink selected by opts.Type (default fs).
func NewSink(ctx context.Context, opts Options) (Sink, error) {
	if opts.Format == "" {
		opts.Format = FormatCSV
	}
	switch opts.Type {
	case "", SinkTypeFS:
		dir := opts.Dir
		if dir == "" {
			dir = "outputs"
		}
		return NewFileSink(dir, opts.Format)
	case SinkTypeS3:
		if opts.Bucket == "" {
			return nil, fmt.Errorf("bucket is required for S3 export")
		}
		region := opts.Region
		if region == "" {
			region = os.Getenv("AWS_REGION")
		}
		if region == "" {
			region = "us-east-1"
		}
		return NewS3Sink(ctx, S3SinkConfig{
			Bucket:   opts.Bucket,
			Region:   region,
			Endpoint: opts.Endpoint,
			Prefix:   opts.Prefix,
			Format:   opts.Format,
		})
	case SinkTypeGCS:
		if opts.Bucket == "" {
			return nil, fmt.Errorf("bucket is required for GCS export")
		}
		return newGCSSink(ctx, opts)
	default:
		return nil, fmt.Errorf("unsupported export sink type: %s", opts.Type)
	}
}

// objectName is the file or key name of an artifact.
func objectName(prefix string, t *models.Table, f Format) string {
	return prefix + t.Name + "." + string(f)
}

// FileSink writes one file per artifact into a directory.
type FileSink struct {
	dir    string
	format Format
	mu     sync.Mutex
}

// NewFileSink creates the output directory if needed.
func NewFileSink(dir string, f Format) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}
	return &FileSink{dir: dir, format: f}, nil
}

// Export writes to a temp file, then renames it into place.
func (s *FileSink) Export(ctx context.Context, t *models.Table) (string, error) {
	if t.Empty() {
		return "", nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := Encode(t, s.format)
	if err != nil {
		return "", err
	}

	path := filepath.Join(s.dir, objectName("", t, s.format))
	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, "."+t.Name+"-*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to commit %s: %w", path, err)
	}
	return path, nil
}
