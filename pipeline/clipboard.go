package pipeline

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"sync"

	"github.com/aluiziolira/go-scrape-listings/models"
	"github.com/atotto/clipboard"
)

// ClipboardWriter copies the table written so far to the system clipboard as
// tab separated text, ready to paste into a spreadsheet.
type ClipboardWriter struct {
	copy   func(string) error
	rows   [][]string
	copied bool
	mu     sync.Mutex
}

// NewClipboardWriter fails when no clipboard utility is available.
func NewClipboardWriter() (*ClipboardWriter, error) {
	if clipboard.Unsupported {
		return nil, fmt.Errorf("clipboard is not supported on this system")
	}
	return &ClipboardWriter{copy: clipboard.WriteAll}, nil
}

// Write replaces the clipboard contents with the header and all rows so far.
func (cw *ClipboardWriter) Write(listings []*models.Listing) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	for _, l := range listings {
		cw.rows = append(cw.rows, l.Row())
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = '\t'
	if err := w.Write(models.Header); err != nil {
		return fmt.Errorf("encode clipboard header: %w", err)
	}
	if err := w.WriteAll(cw.rows); err != nil {
		return fmt.Errorf("encode clipboard rows: %w", err)
	}

	if err := cw.copy(buf.String()); err != nil {
		return fmt.Errorf("copy to clipboard: %w", err)
	}
	cw.copied = true
	return nil
}

func (cw *ClipboardWriter) Close() error {
	return nil
}

// Validate reports whether anything reached the clipboard.
func (cw *ClipboardWriter) Validate() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	if !cw.copied {
		return fmt.Errorf("nothing copied to clipboard")
	}
	return nil
}
