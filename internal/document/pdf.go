package document

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"

	"veritas/internal/textutil"
)

// extractPDFPages pulls per-page plain text from raw PDF bytes. A page whose
// extraction fails contributes an empty page rather than failing the
// document: page numbering downstream must match the physical document.
func extractPDFPages(raw []byte) ([]Page, error) {
	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	total := reader.NumPage()
	if total == 0 {
		return nil, fmt.Errorf("pdf has no pages")
	}

	pages := make([]Page, 0, total)
	for i := 1; i <= total; i++ {
		p := reader.Page(i)
		text := ""
		if !p.V.IsNull() {
			if t, err := p.GetPlainText(nil); err == nil {
				text = t
			}
		}
		pages = append(pages, Page{Number: i, Text: textutil.Sanitize(text)})
	}
	return pages, nil
}
