package media

import (
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"omnichat/internal/logging"
)

// ===== IMAGE COMPRESSION =====

// DefaultJPEGQuality trades detail for size aggressively. Chat
// attachments rarely need more.
const DefaultJPEGQuality = 20

// CompressResult records one recompressed image.
type CompressResult struct {
	Name       string
	SizeBefore int64
	SizeAfter  int64
}

// Savings returns the size reduction as a percentage.
func (r CompressResult) Savings() float64 {
	if r.SizeBefore == 0 {
		return 0
	}
	return float64(r.SizeBefore-r.SizeAfter) / float64(r.SizeBefore) * 100
}

// CompressReport summarizes a directory compression run.
type CompressReport struct {
	Results []CompressResult
	Failed  []string
	OutDir  string
}

// CompressDir re-encodes every JPEG and PNG in dir as a low-quality
// JPEG under dir/compressed. Files that fail to decode are reported,
// not fatal.
func CompressDir(dir string, quality int) (*CompressReport, error) {
	if quality <= 0 || quality > 95 {
		quality = DefaultJPEGQuality
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	outDir := filepath.Join(dir, "compressed")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	report := &CompressReport{OutDir: outDir}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg", ".png":
		default:
			continue
		}
		src := filepath.Join(dir, e.Name())
		res, err := compressImage(src, outDir, quality)
		if err != nil {
			logging.MediaError("compress %s: %v", e.Name(), err)
			report.Failed = append(report.Failed, e.Name())
			continue
		}
		logging.Media("compressed %s: %.1fKB -> %.1fKB (%.1f%% reduction)",
			res.Name, float64(res.SizeBefore)/1024, float64(res.SizeAfter)/1024, res.Savings())
		report.Results = append(report.Results, *res)
	}
	return report, nil
}

func compressImage(src, outDir string, quality int) (*CompressResult, error) {
	f, err := os.Open(src)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	name := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src)) + ".jpg"
	dest := filepath.Join(outDir, name)
	out, err := os.Create(dest)
	if err != nil {
		return nil, err
	}
	if err := jpeg.Encode(out, img, &jpeg.Options{Quality: quality}); err != nil {
		out.Close()
		return nil, fmt.Errorf("encode: %w", err)
	}
	if err := out.Close(); err != nil {
		return nil, err
	}

	outInfo, err := os.Stat(dest)
	if err != nil {
		return nil, err
	}
	return &CompressResult{
		Name:       name,
		SizeBefore: info.Size(),
		SizeAfter:  outInfo.Size(),
	}, nil
}
