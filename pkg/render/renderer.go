package render

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
)

// Renderer converts generated prose into a paginated PDF artifact.
// It is state-free per call; the output directory is created once at
// construction so concurrent startup attempts cannot race-fail.
type Renderer struct {
	dir      string
	fontPath string
}

// NewRenderer creates the output directory if missing. fontPath may name
// a TTF file for scripts the built-in fonts cannot cover; empty uses the
// core serif font.
func NewRenderer(dir, fontPath string) (*Renderer, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("pdf output directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create pdf dir: %w", err)
	}
	return &Renderer{dir: dir, fontPath: fontPath}, nil
}

// OutputDir returns the directory rendered artifacts are written to.
func (r *Renderer) OutputDir() string {
	return r.dir
}

// Render produces the PDF for a book and returns the artifact path.
// Filenames embed the book id and a generation timestamp, so re-renders
// never clobber an artifact a reader may still be downloading.
func (r *Renderer) Render(bookID, content, bookName, language string) (string, error) {
	htmlDoc := ToHTML(content, language)
	name := fmt.Sprintf("book_%s_%d.pdf", bookID, time.Now().UnixMilli())
	path := filepath.Join(r.dir, name)
	if err := writePDF(htmlDoc, bookName, r.fontPath, path); err != nil {
		return "", fmt.Errorf("write pdf: %w", err)
	}
	if err := VerifyArtifact(path); err != nil {
		return "", fmt.Errorf("verify pdf: %w", err)
	}
	return path, nil
}

// VerifyArtifact checks that the written file is a readable, non-empty
// PDF. Readiness must never be announced for a partial artifact.
func VerifyArtifact(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		return errors.New("artifact is empty")
	}
	f, reader, err := pdf.Open(path)
	if err != nil {
		return fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()
	if reader.NumPage() < 1 {
		return errors.New("artifact has no pages")
	}
	return nil
}
