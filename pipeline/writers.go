package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/aluiziolira/go-scrape-listings/models"
)

// CSVWriter writes records to CSV.
type CSVWriter struct {
	file   *os.File
	writer *csv.Writer
	mu     sync.Mutex
}

// NewCSVWriter initialises a CSV writer and writes the header row.
func NewCSVWriter(filename string) (*CSVWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create csv file: %w", err)
	}

	writer := csv.NewWriter(f)
	if err := writer.Write(models.Header); err != nil {
		f.Close()
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		f.Close()
		return nil, fmt.Errorf("flush csv header: %w", err)
	}

	return &CSVWriter{
		file:   f,
		writer: writer,
	}, nil
}

// Write appends listings to the CSV output.
func (cw *CSVWriter) Write(listings []*models.Listing) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	for _, l := range listings {
		if err := cw.writer.Write(l.Row()); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	return nil
}

// Close flushes and closes the file handle.
func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv writer: %w", err)
	}
	return cw.file.Close()
}

// Validate ensures the file has content besides the header.
func (cw *CSVWriter) Validate() error {
	info, err := cw.file.Stat()
	if err != nil {
		return fmt.Errorf("stat csv file: %w", err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("csv file is empty")
	}
	return nil
}

type jsonListing struct {
	SerialNo        int      `json:"s_no"`
	ASIN            string   `json:"asin"`
	Link            string   `json:"link"`
	Title           *string  `json:"title"`
	Price           *float64 `json:"price"`
	PriceText       string   `json:"price_text"`
	Availability    *string  `json:"availability"`
	Rating          *string  `json:"rating"`
	Reviews         *string  `json:"reviews"`
	BestSeller      string   `json:"best_seller"`
	InStock         string   `json:"in_stock"`
	Sponsored       string   `json:"sponsored"`
	BoughtLastMonth *string  `json:"bought_last_month"`
	Timestamp       string   `json:"timestamp"`
}

func optional(t models.Text) *string {
	if !t.Valid {
		return nil
	}
	v := t.Value
	return &v
}

func newJSONListing(l *models.Listing) jsonListing {
	r := &l.Record
	out := jsonListing{
		SerialNo:        r.SerialNo,
		ASIN:            r.ASIN,
		Link:            r.Link,
		Title:           optional(r.Title),
		PriceText:       l.Price.String(),
		Availability:    optional(r.Availability),
		Rating:          optional(r.Rating),
		Reviews:         optional(r.Reviews),
		BestSeller:      r.BestSeller.String(),
		InStock:         r.InStock.String(),
		Sponsored:       r.Sponsored.String(),
		BoughtLastMonth: optional(r.BoughtLastMonth),
		Timestamp:       r.CapturedAt.Format(models.TimestampLayout),
	}
	if l.Price.Kind == models.PriceAmount {
		amount := l.Price.Amount
		out.Price = &amount
	}
	return out
}

// JSONWriter writes newline-delimited JSON records. Absent values are null.
type JSONWriter struct {
	file    *os.File
	writer  *bufio.Writer
	encoder *json.Encoder
	mu      sync.Mutex
}

// NewJSONWriter initialises the JSON writer.
func NewJSONWriter(filename string) (*JSONWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create json file: %w", err)
	}

	buffer := bufio.NewWriter(f)
	return &JSONWriter{
		file:    f,
		writer:  buffer,
		encoder: json.NewEncoder(buffer),
	}, nil
}

// Write appends listings in JSONL format.
func (jw *JSONWriter) Write(listings []*models.Listing) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	for _, l := range listings {
		if err := jw.encoder.Encode(newJSONListing(l)); err != nil {
			return fmt.Errorf("encode json record: %w", err)
		}
	}

	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}

	return nil
}

// Close flushes buffers and closes the underlying file.
func (jw *JSONWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	return jw.file.Close()
}

// Validate ensures the JSON file has data.
func (jw *JSONWriter) Validate() error {
	info, err := jw.file.Stat()
	if err != nil {
		return fmt.Errorf("stat json file: %w", err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("json file is empty")
	}
	return nil
}

// DiscardWriter drops everything it is given.
type DiscardWriter struct{}

func (DiscardWriter) Write([]*models.Listing) error { return nil }
func (DiscardWriter) Close() error                  { return nil }
func (DiscardWriter) Validate() error               { return nil }

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
