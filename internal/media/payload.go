package media

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"omnichat/internal/gemini"
	"omnichat/internal/logging"
)

// ===== PAYLOAD ASSEMBLY =====

// Uploader pushes attachments too large to inline through the Files
// API. *gemini.Client satisfies it.
type Uploader interface {
	UploadFile(ctx context.Context, path string, mimeType string) (string, error)
}

// Payload is the outcome of converting staged files into request
// parts. Bytes counts only what travels inside the request body:
// inline media and inlined text. Uploaded files contribute a URI.
type Payload struct {
	Parts   []gemini.Part
	Bytes   int64
	Skipped []string
}

// BuildParts converts staged files into request parts. A file that
// would push the request over budget, or that fails to convert, is
// skipped with a warning rather than failing the whole message. Plain
// text is inlined into the prompt, small media is embedded as base64,
// and anything larger is uploaded through the Files API.
func (m *Manager) BuildParts(ctx context.Context, up Uploader, files []StagedFile) (*Payload, error) {
	p := &Payload{}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		part, cost, err := m.filePart(ctx, up, f)
		if err != nil {
			logging.MediaWarn("skipping %s: %v", f.OriginalName, err)
			p.Skipped = append(p.Skipped, f.OriginalName)
			continue
		}
		if p.Bytes+cost > m.maxPayload {
			logging.MediaWarn("skipping %s: payload would exceed the %dMB limit",
				f.OriginalName, m.maxPayload/(1024*1024))
			p.Skipped = append(p.Skipped, f.OriginalName)
			continue
		}
		p.Parts = append(p.Parts, part)
		p.Bytes += cost
	}
	if len(p.Parts) > 0 {
		logging.Media("built %d part(s), %d bytes inline, %d skipped",
			len(p.Parts), p.Bytes, len(p.Skipped))
	}
	return p, nil
}

// filePart converts one staged file and reports how many request
// bytes it costs.
func (m *Manager) filePart(ctx context.Context, up Uploader, f StagedFile) (gemini.Part, int64, error) {
	// Plain text goes straight into the prompt. PDFs keep their bytes
	// so the model reads them natively.
	if f.MIME == "text/plain" {
		content, err := readTextFile(f.Path)
		if err != nil {
			return gemini.Part{}, 0, err
		}
		text := fmt.Sprintf("Content from %s:\n%s", f.OriginalName, content)
		return gemini.Part{Text: text}, int64(len(text)), nil
	}

	if f.Size <= m.inlineLimit {
		data, err := os.ReadFile(f.Path)
		if err != nil {
			return gemini.Part{}, 0, err
		}
		return gemini.Part{InlineData: &gemini.Blob{
			MIMEType: f.MIME,
			Data:     base64.StdEncoding.EncodeToString(data),
		}}, f.Size, nil
	}

	if up == nil {
		return gemini.Part{}, 0, fmt.Errorf("%d bytes is too large to inline and no uploader is configured", f.Size)
	}
	uri, err := up.UploadFile(ctx, f.Path, f.MIME)
	if err != nil {
		return gemini.Part{}, 0, fmt.Errorf("upload: %w", err)
	}
	logging.MediaDebug("uploaded %s as %s", f.OriginalName, uri)
	return gemini.Part{FileData: &gemini.FileData{MIMEType: f.MIME, FileURI: uri}}, 0, nil
}

// readTextFile reads a file as text, replacing bytes that are not
// valid UTF-8 instead of failing on odd encodings.
func readTextFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.ToValidUTF8(string(data), "\uFFFD"), nil
}
