// Package media stages chat attachments in session-local storage and
// converts them into Gemini request parts. Files are named by content
// hash so re-attaching the same file is harmless, and each session
// keeps its media in its own directory for easy cleanup.
package media

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"omnichat/internal/logging"
)

// ===== TYPES =====

// Kind classifies an attachment by extension.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
	KindText  Kind = "text"
)

const (
	// DefaultMaxFileBytes caps a single attachment at 15MB, leaving
	// room for text and metadata inside the request budget.
	DefaultMaxFileBytes int64 = 15 * 1024 * 1024

	// DefaultMaxPayloadBytes is the total request budget.
	DefaultMaxPayloadBytes int64 = 20 * 1024 * 1024

	// defaultInlineLimit is the largest attachment embedded as base64
	// inline data. Anything bigger goes through the Files API.
	defaultInlineLimit int64 = 4 * 1024 * 1024
)

// StagedFile is an attachment copied into session-local storage.
type StagedFile struct {
	OriginalName string
	Path         string
	Hash         string
	Kind         Kind
	MIME         string
	Size         int64
}

// Manager owns the media root directory and its per-session layout.
type Manager struct {
	root        string
	maxFile     int64
	maxPayload  int64
	inlineLimit int64
}

// NewManager creates a manager rooted at dir. Zero limits select the
// defaults.
func NewManager(dir string, maxFile, maxPayload int64) *Manager {
	if maxFile <= 0 {
		maxFile = DefaultMaxFileBytes
	}
	if maxPayload <= 0 {
		maxPayload = DefaultMaxPayloadBytes
	}
	return &Manager{
		root:        dir,
		maxFile:     maxFile,
		maxPayload:  maxPayload,
		inlineLimit: defaultInlineLimit,
	}
}

// Root returns the media root directory.
func (m *Manager) Root() string {
	return m.root
}

// ===== CLASSIFICATION =====

// KindForPath classifies a file by extension.
func KindForPath(path string) (Kind, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg":
		return KindImage, nil
	case ".mp4", ".avi", ".mov":
		return KindVideo, nil
	case ".mp3", ".wav":
		return KindAudio, nil
	case ".txt", ".pdf":
		return KindText, nil
	}
	return "", fmt.Errorf("unsupported file type %q (accepted: png jpg jpeg mp4 avi mov mp3 wav txt pdf)",
		filepath.Ext(path))
}

// MIMEForPath returns the MIME type the API expects for a file.
func MIMEForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".mp4":
		return "video/mp4"
	case ".avi":
		return "video/x-msvideo"
	case ".mov":
		return "video/quicktime"
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".txt":
		return "text/plain"
	case ".pdf":
		return "application/pdf"
	}
	return "application/octet-stream"
}

// ===== STAGING =====

// Attach copies a file into the session's media directory under a
// content-derived name. The same content always lands on the same
// path, so attaching a file twice is a no-op.
func (m *Manager) Attach(sessionID, srcPath string) (*StagedFile, error) {
	info, err := os.Stat(srcPath)
	if err != nil {
		return nil, fmt.Errorf("stat attachment: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", srcPath)
	}
	if info.Size() > m.maxFile {
		return nil, fmt.Errorf("%s is %.1fMB, over the %dMB attachment limit",
			filepath.Base(srcPath), float64(info.Size())/(1024*1024), m.maxFile/(1024*1024))
	}
	if _, err := KindForPath(srcPath); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return nil, fmt.Errorf("read attachment: %w", err)
	}
	return m.StageBytes(sessionID, filepath.Base(srcPath), data)
}

// StageBytes stages in-memory content under a session. Used by Attach
// and for captured frames and recorded audio that never existed as a
// user file.
func (m *Manager) StageBytes(sessionID, name string, data []byte) (*StagedFile, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("empty session id")
	}
	if int64(len(data)) > m.maxFile {
		return nil, fmt.Errorf("%s is %.1fMB, over the %dMB attachment limit",
			name, float64(len(data))/(1024*1024), m.maxFile/(1024*1024))
	}
	kind, err := KindForPath(name)
	if err != nil {
		return nil, err
	}

	sum := md5.Sum(data)
	hash := hex.EncodeToString(sum[:])

	dir := filepath.Join(m.root, sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	dest := filepath.Join(dir, hash+strings.ToLower(filepath.Ext(name)))
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return nil, fmt.Errorf("stage attachment: %w", err)
	}

	staged := &StagedFile{
		OriginalName: name,
		Path:         dest,
		Hash:         hash,
		Kind:         kind,
		MIME:         MIMEForPath(name),
		Size:         int64(len(data)),
	}
	logging.Media("staged %s as %s (%s, %d bytes)", name, filepath.Base(dest), kind, staged.Size)
	return staged, nil
}

// SessionFiles lists everything staged for a session, oldest first.
func (m *Manager) SessionFiles(sessionID string) ([]StagedFile, error) {
	dir := filepath.Join(m.root, sessionID)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list media dir: %w", err)
	}

	type timed struct {
		file StagedFile
		mod  int64
	}
	var found []timed
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		kind, err := KindForPath(e.Name())
		if err != nil {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		name := e.Name()
		found = append(found, timed{
			file: StagedFile{
				OriginalName: name,
				Path:         filepath.Join(dir, name),
				Hash:         strings.TrimSuffix(name, filepath.Ext(name)),
				Kind:         kind,
				MIME:         MIMEForPath(name),
				Size:         info.Size(),
			},
			mod: info.ModTime().UnixNano(),
		})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].mod < found[j].mod })

	files := make([]StagedFile, len(found))
	for i, f := range found {
		files[i] = f.file
	}
	return files, nil
}

// ===== CLEANUP =====

// CleanupSession deletes all media staged for a session.
func (m *Manager) CleanupSession(sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("empty session id")
	}
	dir := filepath.Join(m.root, sessionID)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("cleanup session media: %w", err)
	}
	logging.Media("cleaned up media for session %s", sessionID)
	return nil
}

// RemoveStaged deletes a single staged file. Paths outside the media
// root are refused.
func (m *Manager) RemoveStaged(path string) error {
	rel, err := filepath.Rel(m.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%s is outside the media root", path)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove staged file: %w", err)
	}
	logging.MediaDebug("removed staged file %s", path)
	return nil
}
