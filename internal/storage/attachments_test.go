package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/reachify/beacon/internal/config"
)

func TestLocalSourceFetch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "resume.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4 fake"), 0o644); err != nil {
		t.Fatal(err)
	}

	src := &LocalSource{path: path}
	file, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if file.Name != "resume.pdf" {
		t.Errorf("Name = %q, want resume.pdf", file.Name)
	}
	if file.ContentType != "application/pdf" {
		t.Errorf("ContentType = %q, want application/pdf", file.ContentType)
	}
	if string(file.Data) != "%PDF-1.4 fake" {
		t.Errorf("Data = %q", file.Data)
	}
}

func TestLocalSourceFetchMissing(t *testing.T) {
	src := &LocalSource{path: filepath.Join(t.TempDir(), "gone.pdf")}
	if _, err := src.Fetch(context.Background()); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestNewAttachmentSourceSelection(t *testing.T) {
	ctx := context.Background()

	src, err := NewAttachmentSource(ctx, config.AttachmentsConfig{Source: "local", ResumePath: "/tmp/resume.pdf"})
	if err != nil {
		t.Fatalf("NewAttachmentSource() error = %v", err)
	}
	if _, ok := src.(*LocalSource); !ok {
		t.Errorf("source = %T, want *LocalSource", src)
	}

	src, err = NewAttachmentSource(ctx, config.AttachmentsConfig{Source: "local"})
	if err != nil || src != nil {
		t.Errorf("unconfigured local source = (%v, %v), want (nil, nil)", src, err)
	}

	src, err = NewAttachmentSource(ctx, config.AttachmentsConfig{Source: "s3"})
	if err != nil || src != nil {
		t.Errorf("unconfigured s3 source = (%v, %v), want (nil, nil)", src, err)
	}

	if _, err = NewAttachmentSource(ctx, config.AttachmentsConfig{Source: "ftp"}); err == nil {
		t.Error("expected error for unknown source")
	}
}

func TestContentTypeFor(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"resume.pdf", "application/pdf"},
		{"notes.txt", "text/plain; charset=utf-8"},
		{"blob.unknownext", "application/octet-stream"},
	}
	for _, tt := range tests {
		if got := contentTypeFor(tt.path); got != tt.want {
			t.Errorf("contentTypeFor(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
