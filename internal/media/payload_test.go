package media

import (
	"context"
	"encoding/base64"
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

type fakeUploader struct {
	calls int
	err   error
}

func (u *fakeUploader) UploadFile(ctx context.Context, path, mimeType string) (string, error) {
	u.calls++
	if u.err != nil {
		return "", u.err
	}
	return "https://generativelanguage.googleapis.com/v1beta/files/" + filepath.Base(path), nil
}

func stage(t *testing.T, m *Manager, name string, data []byte) StagedFile {
	t.Helper()
	staged, err := m.StageBytes("s", name, data)
	if err != nil {
		t.Fatalf("stage %s: %v", name, err)
	}
	return *staged
}

func TestBuildParts_InlinesSmallMedia(t *testing.T) {
	m := NewManager(t.TempDir(), 0, 0)
	f := stage(t, m, "pic.jpg", []byte("jpeg-data"))

	payload, err := m.BuildParts(context.Background(), nil, []StagedFile{f})
	if err != nil {
		t.Fatalf("BuildParts: %v", err)
	}
	if len(payload.Parts) != 1 {
		t.Fatalf("expected 1 part, got %d", len(payload.Parts))
	}
	part := payload.Parts[0]
	if part.InlineData == nil {
		t.Fatal("expected inline data")
	}
	if part.InlineData.MIMEType != "image/jpeg" {
		t.Errorf("mime = %q", part.InlineData.MIMEType)
	}
	decoded, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
	if err != nil {
		t.Fatalf("decode inline data: %v", err)
	}
	if string(decoded) != "jpeg-data" {
		t.Errorf("inline data = %q", decoded)
	}
	if payload.Bytes != f.Size {
		t.Errorf("payload bytes = %d, want %d", payload.Bytes, f.Size)
	}
}

func TestBuildParts_InlinesText(t *testing.T) {
	m := NewManager(t.TempDir(), 0, 0)
	f := stage(t, m, "notes.txt", []byte("remember the milk"))

	payload, err := m.BuildParts(context.Background(), nil, []StagedFile{f})
	if err != nil {
		t.Fatalf("BuildParts: %v", err)
	}
	if len(payload.Parts) != 1 {
		t.Fatalf("expected 1 part, got %d", len(payload.Parts))
	}
	text := payload.Parts[0].Text
	if !strings.Contains(text, "Content from notes.txt:") {
		t.Errorf("text part missing header: %q", text)
	}
	if !strings.Contains(text, "remember the milk") {
		t.Errorf("text part missing content: %q", text)
	}
}

func TestBuildParts_SmallPDFInlinesAsPDF(t *testing.T) {
	m := NewManager(t.TempDir(), 0, 0)
	f := stage(t, m, "paper.pdf", []byte("%PDF-1.4 fake"))

	payload, err := m.BuildParts(context.Background(), nil, []StagedFile{f})
	if err != nil {
		t.Fatalf("BuildParts: %v", err)
	}
	if len(payload.Parts) != 1 {
		t.Fatalf("expected 1 part, got %d", len(payload.Parts))
	}
	part := payload.Parts[0]
	if part.InlineData == nil || part.InlineData.MIMEType != "application/pdf" {
		t.Fatalf("expected inline application/pdf, got %+v", part)
	}
}

func TestBuildParts_UploadsLargeFiles(t *testing.T) {
	m := NewManager(t.TempDir(), 0, 0)
	m.inlineLimit = 4
	f := stage(t, m, "movie.mp4", []byte("not-really-a-video"))

	up := &fakeUploader{}
	payload, err := m.BuildParts(context.Background(), up, []StagedFile{f})
	if err != nil {
		t.Fatalf("BuildParts: %v", err)
	}
	if up.calls != 1 {
		t.Errorf("uploader calls = %d, want 1", up.calls)
	}
	if len(payload.Parts) != 1 {
		t.Fatalf("expected 1 part, got %d", len(payload.Parts))
	}
	part := payload.Parts[0]
	if part.FileData == nil {
		t.Fatal("expected file data")
	}
	if part.FileData.MIMEType != "video/mp4" {
		t.Errorf("mime = %q", part.FileData.MIMEType)
	}
	if !strings.Contains(part.FileData.FileURI, "files/") {
		t.Errorf("uri = %q", part.FileData.FileURI)
	}
	// Uploaded files travel by reference, not in the request body.
	if payload.Bytes != 0 {
		t.Errorf("payload bytes = %d, want 0", payload.Bytes)
	}
}

func TestBuildParts_UploadFailureSkips(t *testing.T) {
	m := NewManager(t.TempDir(), 0, 0)
	m.inlineLimit = 4
	big := stage(t, m, "movie.mp4", []byte("not-really-a-video"))
	small := stage(t, m, "pic.jpg", []byte("ok"))

	up := &fakeUploader{err: errors.New("quota exceeded")}
	payload, err := m.BuildParts(context.Background(), up, []StagedFile{big, small})
	if err != nil {
		t.Fatalf("BuildParts: %v", err)
	}
	if len(payload.Parts) != 1 {
		t.Fatalf("expected the small file to survive, got %d parts", len(payload.Parts))
	}
	if len(payload.Skipped) != 1 || payload.Skipped[0] != "movie.mp4" {
		t.Errorf("skipped = %v", payload.Skipped)
	}
}

func TestBuildParts_NoUploaderSkipsLarge(t *testing.T) {
	m := NewManager(t.TempDir(), 0, 0)
	m.inlineLimit = 4
	f := stage(t, m, "movie.mp4", []byte("not-really-a-video"))

	payload, err := m.BuildParts(context.Background(), nil, []StagedFile{f})
	if err != nil {
		t.Fatalf("BuildParts: %v", err)
	}
	if len(payload.Parts) != 0 || len(payload.Skipped) != 1 {
		t.Errorf("parts = %d, skipped = %v", len(payload.Parts), payload.Skipped)
	}
}

func TestBuildParts_BudgetSkipsOverflow(t *testing.T) {
	m := NewManager(t.TempDir(), 0, 10)
	first := stage(t, m, "a.jpg", []byte("12345678"))
	second := stage(t, m, "b.jpg", []byte("87654321"))

	payload, err := m.BuildParts(context.Background(), nil, []StagedFile{first, second})
	if err != nil {
		t.Fatalf("BuildParts: %v", err)
	}
	if len(payload.Parts) != 1 {
		t.Fatalf("expected only the first file to fit, got %d parts", len(payload.Parts))
	}
	if len(payload.Skipped) != 1 || payload.Skipped[0] != "b.jpg" {
		t.Errorf("skipped = %v", payload.Skipped)
	}
	if payload.Bytes != first.Size {
		t.Errorf("payload bytes = %d, want %d", payload.Bytes, first.Size)
	}
}

func TestBuildParts_CancelledContext(t *testing.T) {
	m := NewManager(t.TempDir(), 0, 0)
	f := stage(t, m, "pic.jpg", []byte("data"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.BuildParts(ctx, nil, []StagedFile{f}); err == nil {
		t.Fatal("expected a context error")
	}
}
