package pdfdoc

import (
	"bytes"
	"fmt"
	"strings"

	lpdf "github.com/ledongthuc/pdf"
)

// ParseTextLayer returns the embedded text of every page in order. Pages that
// fail to decode yield "". The error is non-nil only when the document as a
// whole could not be parsed; pages is then nil.
func ParseTextLayer(data []byte) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("text layer parser panic: %v", r)
		}
	}()

	r, err := lpdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open text layer: %w", err)
	}

	n := r.NumPage()
	pages = make([]string, n)
	for i := 1; i <= n; i++ {
		pages[i-1] = pageText(r, i)
	}
	return pages, nil
}

func pageText(r *lpdf.Reader, num int) (text string) {
	defer func() {
		if recover() != nil {
			text = ""
		}
	}()

	page := r.Page(num)
	if page.V.IsNull() {
		return ""
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}
