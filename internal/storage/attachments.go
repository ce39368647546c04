// Package storage supplies the resume file attached to outreach emails,
// from local disk or S3.
package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/reachify/beacon/internal/config"
)

// File is a fetched attachment.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// AttachmentSource fetches the configured resume.
type AttachmentSource interface {
	Fetch(ctx context.Context) (*File, error)
}

// NewAttachmentSource builds the source selected by cfg.Source. Returns
// (nil, nil) when no attachment is configured; sends then go out without one.
func NewAttachmentSource(ctx context.Context, cfg config.AttachmentsConfig) (AttachmentSource, error) {
	switch cfg.Source {
	case "local":
		if cfg.ResumePath == "" {
			return nil, nil
		}
		return &LocalSource{path: cfg.ResumePath}, nil
	case "s3":
		if cfg.S3Bucket == "" || cfg.S3Key == "" {
			return nil, nil
		}
		return NewS3Source(ctx, cfg)
	default:
		return nil, fmt.Errorf("storage: unknown attachment source %q", cfg.Source)
	}
}

// LocalSource reads the resume from disk on every fetch, so a replaced file
// is picked up without a restart.
type LocalSource struct {
	path string
}

// Fetch reads the file.
func (s *LocalSource) Fetch(ctx context.Context) (*File, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("reading attachment %s: %w", s.path, err)
	}
	return &File{
		Name:        filepath.Base(s.path),
		ContentType: contentTypeFor(s.path),
		Data:        data,
	}, nil
}

// S3Source fetches the resume object once and holds it for the life of the
// process.
type S3Source struct {
	client *s3.Client
	bucket string
	key    string

	mu     sync.Mutex
	cached *File
}

// NewS3Source creates an S3-backed source.
func NewS3Source(ctx context.Context, cfg config.AttachmentsConfig) (*S3Source, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return &S3Source{
		client: s3.NewFromConfig(awsCfg),
		bucket: cfg.S3Bucket,
		key:    cfg.S3Key,
	}, nil
}

// Fetch downloads the object on first use and serves the cached copy after.
func (s *S3Source) Fetch(ctx context.Context) (*File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil {
		return s.cached, nil
	}

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		return nil, fmt.Errorf("getting object from S3: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("reading S3 object body: %w", err)
	}

	contentType := contentTypeFor(s.key)
	if result.ContentType != nil && *result.ContentType != "" {
		contentType = *result.ContentType
	}

	s.cached = &File{
		Name:        filepath.Base(s.key),
		ContentType: contentType,
		Data:        data,
	}
	return s.cached, nil
}

func contentTypeFor(path string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
