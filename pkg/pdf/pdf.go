// Package pdf reads plain text page ranges from PDF documents and from
// text files that mark pages with a separator line.
package pdf

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/xhad/narrator/internal/types"
	"github.com/xhad/narrator/pkg/processor"
)

var ErrPageRange = errors.New("page out of range")

// Reader extracts text from PDF files.
type Reader struct{}

func (Reader) PageCount(path string) (int, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return r.NumPage(), nil
}

// ReadPages returns the text of count pages starting at the zero-based
// page start, pages separated by a blank line. The range is clipped to
// the end of the document.
func (Reader) ReadPages(path string, start, count int) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	total := r.NumPage()
	if start < 0 || start >= total {
		return "", fmt.Errorf("%w: %d of %d", ErrPageRange, start, total)
	}
	end := min(start+count, total)

	var sb strings.Builder
	for i := start; i < end; i++ {
		page := r.Page(i + 1)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("failed to read page %d of %s: %w", i+1, path, err)
		}
		sb.WriteString(text)
		sb.WriteString("\n\n")
	}
	return sb.String(), nil
}

// TextReader reads page ranges from text files split by
// processor.PageSeparator.
type TextReader struct{}

func (TextReader) pages(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return processor.SplitPages(string(data)), nil
}

func (t TextReader) PageCount(path string) (int, error) {
	pages, err := t.pages(path)
	if err != nil {
		return 0, err
	}
	return len(pages), nil
}

func (t TextReader) ReadPages(path string, start, count int) (string, error) {
	pages, err := t.pages(path)
	if err != nil {
		return "", err
	}
	if start < 0 || start >= len(pages) {
		return "", fmt.Errorf("%w: %d of %d", ErrPageRange, start, len(pages))
	}
	end := min(start+count, len(pages))
	return strings.Join(pages[start:end], "\n\n"), nil
}

// ForPath picks the reader matching the file extension.
func ForPath(path string) types.PageReader {
	if strings.HasSuffix(strings.ToLower(path), ".pdf") {
		return Reader{}
	}
	return TextReader{}
}
