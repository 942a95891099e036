package pipeline

import (
	"errors"
	"fmt"
	"sync"

	"github.com/aluiziolira/go-scrape-listings/config"
	"github.com/aluiziolira/go-scrape-listings/models"
	"github.com/aluiziolira/go-scrape-listings/parser"
)

var (
	// ErrPipelineClosed is returned when Process is called after shutdown.
	ErrPipelineClosed = errors.New("pipeline: closed")
)

// OutputWriter defines the interface for data output.
type OutputWriter interface {
	Write(listings []*models.Listing) error
	Close() error
	Validate() error
}

// Pipeline normalises scraped records into listings and hands them to the
// configured writer. It runs on the caller's goroutine.
type Pipeline struct {
	writer   OutputWriter
	currency string

	metrics metrics

	mu      sync.Mutex // guards closed/err/written
	closed  bool
	err     error
	written int
}

// NewPipeline builds a pipeline writing to writer. A nil writer discards output.
func NewPipeline(writer OutputWriter, cfg *config.Config) *Pipeline {
	if writer == nil {
		writer = DiscardWriter{}
	}
	currency := parser.DefaultCurrency
	if cfg != nil {
		currency = cfg.CurrencySymbol
	}
	return &Pipeline{
		writer:   writer,
		currency: currency,
		metrics:  newMetrics(),
	}
}

// Process derives listings from records and writes them as one batch. The
// records are left untouched.
func (p *Pipeline) Process(records []*models.ProductRecord) ([]*models.Listing, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.err != nil {
		return nil, p.err
	}
	if p.closed {
		return nil, ErrPipelineClosed
	}

	listings := parser.NormalizeRecords(records, p.currency)
	for _, l := range listings {
		p.metrics.observe(l.Price.Kind)
	}
	if len(listings) == 0 {
		return listings, nil
	}

	if err := p.writer.Write(listings); err != nil {
		p.err = fmt.Errorf("write batch: %w", err)
		return nil, p.err
	}
	p.written += len(listings)
	return listings, nil
}

// Close prevents more submissions and returns the first write error.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return p.err
}

// Shutdown closes the pipeline and releases the writer. The output is only
// validated when something was written; an empty run is not an error. The
// writer is closed on every path.
func (p *Pipeline) Shutdown() error {
	errs := []error{p.Close()}

	p.mu.Lock()
	written := p.written
	p.mu.Unlock()
	if written > 0 && errs[0] == nil {
		if err := p.writer.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("validate output: %w", err))
		}
	}
	if err := p.writer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close writer: %w", err))
	}
	return errors.Join(errs...)
}

// Err returns the first error encountered during processing.
func (p *Pipeline) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// GetMetrics returns a snapshot of the internal counters.
func (p *Pipeline) GetMetrics() map[string]interface{} {
	return p.metrics.snapshot()
}

type metrics struct {
	mu        sync.Mutex
	processed int64
	prices    map[string]int
}

func newMetrics() metrics {
	return metrics{
		prices: make(map[string]int),
	}
}

func (m *metrics) observe(kind models.PriceKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processed++
	switch kind {
	case models.PriceAmount:
		m.prices["numeric"]++
	case models.PriceUnavailable:
		m.prices["unavailable"]++
	default:
		m.prices["not_a_number"]++
	}
}

func (m *metrics) snapshot() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	prices := make(map[string]int, len(m.prices))
	for k, v := range m.prices {
		prices[k] = v
	}

	return map[string]interface{}{
		"processed_records": m.processed,
		"prices":            prices,
	}
}
