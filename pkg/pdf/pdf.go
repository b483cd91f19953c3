// Package pdf extracts plain text from PDF attachments so it can be fed
// into the classifier alongside the message body.
package pdf

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"
)

// Extractor pulls text from PDF data.
type Extractor struct {
	maxPages int // 0 = all pages
}

// NewExtractor creates an Extractor with a page limit. Classification only
// needs the first pages of a statement or invoice, so callers usually cap it.
func NewExtractor(maxPages int) *Extractor {
	return &Extractor{maxPages: maxPages}
}

// ExtractText returns the concatenated text of the PDF's pages.
func (e *Extractor) ExtractText(data []byte) (string, error) {
	pdfReader, err := model.NewPdfReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}

	numPages, err := pdfReader.GetNumPages()
	if err != nil {
		return "", fmt.Errorf("failed to get page count: %w", err)
	}

	pageLimit := numPages
	if e.maxPages > 0 && e.maxPages < numPages {
		pageLimit = e.maxPages
	}

	var builder strings.Builder
	for i := 1; i <= pageLimit; i++ {
		page, err := pdfReader.GetPage(i)
		if err != nil {
			return "", fmt.Errorf("failed to get page %d: %w", i, err)
		}

		ex, err := extractor.New(page)
		if err != nil {
			return "", fmt.Errorf("failed to create extractor for page %d: %w", i, err)
		}

		text, err := ex.ExtractText()
		if err != nil {
			return "", fmt.Errorf("failed to extract text from page %d: %w", i, err)
		}

		builder.WriteString(text)
		builder.WriteString("\n")
	}

	return strings.TrimSpace(builder.String()), nil
}
