package search

import (
	"path/filepath"
	"strings"
)

// Kind is how a document's text is obtained.
type Kind int

const (
	KindPDF  Kind = iota // paged, searched page by page
	KindText             // plain text or HTML, searched as a whole
)

// KindOf classifies a file by its extension. Anything that is not
// plain text or HTML is treated as a PDF.
func KindOf(filename string) Kind {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".htm", ".html":
		return KindText
	default:
		return KindPDF
	}
}
