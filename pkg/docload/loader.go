// Package docload turns local files into plain text ready for
// embedding. Plain text and markdown pass through unchanged; PDF pages
// are concatenated in order.
package docload

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// UnsupportedTypeError reports a file extension the loader does not
// handle. It is returned before any file content is touched.
type UnsupportedTypeError struct {
	Path string
	Ext  string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported document type %q for %s (supported: %s)", e.Ext, e.Path, strings.Join(SupportedExtensions(), ", "))
}

// UnreadableDocumentError reports a file of a supported type whose
// content could not be extracted.
type UnreadableDocumentError struct {
	Path string
	Err  error
}

func (e *UnreadableDocumentError) Error() string {
	return fmt.Sprintf("cannot read document %s: %v", e.Path, e.Err)
}

func (e *UnreadableDocumentError) Unwrap() error { return e.Err }

// Document is a loaded file, identified by its lowercased base name.
type Document struct {
	ID   string
	Path string
	Text string
}

func SupportedExtensions() []string {
	return []string{".txt", ".md", ".pdf"}
}

// IDFromFilename derives the stable document identifier used for
// upserts: the lowercased base name, extension included.
func IDFromFilename(path string) string {
	return strings.ToLower(filepath.Base(path))
}

// Load extracts the text of the file at path. The extension decides the
// extraction method; an unknown extension fails before any I/O.
func Load(path string) (*Document, error) {
	ext := strings.ToLower(filepath.Ext(path))

	var text string
	var err error
	switch ext {
	case ".txt", ".md":
		text, err = loadPlainText(path)
	case ".pdf":
		text, err = loadPDF(path)
	default:
		return nil, &UnsupportedTypeError{Path: path, Ext: ext}
	}
	if err != nil {
		return nil, err
	}

	return &Document{
		ID:   IDFromFilename(path),
		Path: path,
		Text: text,
	}, nil
}

func loadPlainText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &UnreadableDocumentError{Path: path, Err: err}
	}
	return string(data), nil
}

func loadPDF(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", &UnreadableDocumentError{Path: path, Err: err}
	}
	defer f.Close()

	total := reader.NumPage()
	pages := make([]string, 0, total)
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// a single bad page yields no text, the rest still load
			continue
		}
		pages = append(pages, text)
	}
	return joinPages(pages), nil
}

// joinPages concatenates page text with no separator, so the document
// length is exactly the sum of the per-page lengths. Empty pages
// contribute nothing.
func joinPages(pages []string) string {
	var sb strings.Builder
	for _, p := range pages {
		sb.WriteString(p)
	}
	return sb.String()
}
