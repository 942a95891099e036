package scraper

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/go-scrape-listings/config"
	"github.com/aluiziolira/go-scrape-listings/models"
	"github.com/aluiziolira/go-scrape-listings/parser"
	"github.com/gocolly/colly/v2"
	"golang.org/x/time/rate"
)

// colly context keys
const (
	ctxASIN   = "asin"
	ctxLink   = "link"
	ctxStart  = "start"
	ctxStatus = "status"
	ctxRecord = "record"
	ctxErr    = "err"
)

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Scraper fetches product detail pages one at a time.
type Scraper struct {
	cfg       *config.Config
	collector *colly.Collector
	limiter   *rate.Limiter
	rng       *rand.Rand
	sleep     SleepFunc
	now       func() time.Time
	Metrics   *Metrics

	handlersOnce sync.Once
}

// Option customises a Scraper.
type Option func(*Scraper)

// WithRand sets the source used for delays and user agent rotation.
func WithRand(r *rand.Rand) Option {
	return func(s *Scraper) {
		s.rng = r
	}
}

// WithSleep replaces the courtesy delay implementation.
func WithSleep(fn SleepFunc) Option {
	return func(s *Scraper) {
		s.sleep = fn
	}
}

// WithClock sets the clock used for capture timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Scraper) {
		s.now = now
	}
}

// WithMetrics shares a metrics bundle with the caller.
func WithMetrics(m *Metrics) Option {
	return func(s *Scraper) {
		s.Metrics = m
	}
}

// NewScraper builds a scraper instance configured from cfg.
func NewScraper(cfg *config.Config, opts ...Option) (*Scraper, error) {
	parsed, err := url.Parse(cfg.ProductURL("X"))
	if err != nil {
		return nil, fmt.Errorf("parse product url template: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("product url template must include a host")
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(parsed.Hostname()),
		colly.AllowURLRevisit(),
	)
	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = true
	collector.ParseHTTPErrorResponse = false

	s := &Scraper{
		cfg:       cfg,
		collector: collector,
		rng:       rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		sleep:     sleepContext,
		now:       time.Now,
		Metrics:   NewMetrics(),
	}
	s.setTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify}, //nolint:gosec // listing pages only
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	s.limiter = rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerMinute > 0 {
		s.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run fetches every identifier in order. Records are numbered from 1 in the
// order they succeed; failed identifiers are logged, counted and skipped.
// A cancelled ctx stops the run before the next identifier and the records
// gathered so far are returned together with the context error.
func (s *Scraper) Run(ctx context.Context, asins []string) (*models.ScrapeResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	result := &models.ScrapeResult{
		Records:      make([]*models.ProductRecord, 0, len(asins)),
		StartTime:    s.now(),
		Requested:    len(asins),
		ErrorsByType: make(map[string]int),
	}
	finish := func(err error) (*models.ScrapeResult, error) {
		result.EndTime = s.now()
		return result, err
	}

	total := len(asins)
	serial := 0
	for i, asin := range asins {
		if err := ctx.Err(); err != nil {
			slog.Warn("run interrupted", slog.Int("item", i+1), slog.Int("total", total))
			return finish(err)
		}

		record, err := s.Fetch(ctx, asin)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				slog.Warn("run interrupted", slog.Int("item", i+1), slog.Int("total", total))
				return finish(ctxErr)
			}
			category := errorTypeLabel(err)
			result.ErrorCount++
			result.ErrorsByType[category]++
			result.FailedASINs = append(result.FailedASINs, asin)
			s.Metrics.IncError(category)
			slog.Error("fetch failed",
				slog.String("asin", asin),
				slog.String("category", category),
				slog.Int("item", i+1),
				slog.Int("total", total),
				slog.Any("error", err),
			)
			continue
		}

		serial++
		record.SerialNo = serial
		result.Records = append(result.Records, record)
		s.Metrics.IncItems()
		slog.Info("scraped item",
			slog.Int("item", i+1),
			slog.Int("total", total),
			slog.Int("s_no", serial),
			slog.String("asin", asin),
		)
	}

	return finish(nil)
}

// Fetch retrieves and parses the detail page of one identifier. It returns a
// nil record and a typed error for non-200 responses, transport failures and
// pages that cannot be parsed. Nothing is retried.
func (s *Scraper) Fetch(ctx context.Context, asin string) (*models.ProductRecord, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.configureHandlers()

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("wait for request slot: %w", err)
	}
	delay := s.delay()
	s.Metrics.ObserveDelay(delay)
	if err := s.sleep(ctx, delay); err != nil {
		return nil, err
	}

	link := s.cfg.ProductURL(asin)
	hdr := http.Header{}
	hdr.Set("User-Agent", s.userAgent())
	hdr.Set("Accept-Language", s.cfg.AcceptLanguage)
	hdr.Set("Accept-Encoding", "gzip, br")

	reqCtx := colly.NewContext()
	reqCtx.Put(ctxASIN, asin)
	reqCtx.Put(ctxLink, link)

	if err := s.collector.Request(http.MethodGet, link, nil, reqCtx, hdr); err != nil {
		status, _ := reqCtx.GetAny(ctxStatus).(int)
		return nil, classifyError(err, status)
	}
	if err, ok := reqCtx.GetAny(ctxErr).(error); ok {
		return nil, err
	}
	record, ok := reqCtx.GetAny(ctxRecord).(*models.ProductRecord)
	if !ok || record == nil {
		return nil, ErrParse{Err: errors.New("no record produced")}
	}
	return record, nil
}

func (s *Scraper) configureHandlers() {
	s.handlersOnce.Do(func() {
		s.collector.OnRequest(func(r *colly.Request) {
			r.Ctx.Put(ctxStart, time.Now())
			s.Metrics.IncRequest("started")
			slog.Debug("requesting product page",
				slog.String("url", r.URL.String()),
				slog.String("user_agent", r.Headers.Get("User-Agent")),
			)
		})

		s.collector.OnResponse(func(r *colly.Response) {
			s.observe(r.Ctx)
			r.Ctx.Put(ctxStatus, r.StatusCode)
			if r.StatusCode != http.StatusOK {
				r.Ctx.Put(ctxErr, classifyError(nil, r.StatusCode))
				s.Metrics.IncRequest("failed")
				return
			}
			record, err := s.parse(r)
			if err != nil {
				r.Ctx.Put(ctxErr, err)
				s.Metrics.IncRequest("failed")
				return
			}
			r.Ctx.Put(ctxRecord, record)
			s.Metrics.IncRequest("succeeded")
		})

		s.collector.OnError(func(r *colly.Response, err error) {
			s.Metrics.IncRequest("failed")
			if r == nil || r.Ctx == nil {
				return
			}
			s.observe(r.Ctx)
			r.Ctx.Put(ctxStatus, r.StatusCode)
		})
	})
}

func (s *Scraper) observe(ctx *colly.Context) {
	if start, ok := ctx.GetAny(ctxStart).(time.Time); ok {
		s.Metrics.ObserveDuration(time.Since(start))
	}
}

func (s *Scraper) parse(r *colly.Response) (record *models.ProductRecord, err error) {
	defer func() {
		if p := recover(); p != nil {
			record = nil
			err = ErrParse{Err: fmt.Errorf("panic: %v", p)}
		}
	}()

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(r.Body))
	if err != nil {
		return nil, ErrParse{Err: err}
	}

	capturedAt := s.now().Truncate(time.Second)
	return parser.ParseProduct(doc, r.Ctx.Get(ctxASIN), r.Ctx.Get(ctxLink), capturedAt), nil
}

func (s *Scraper) delay() time.Duration {
	span := s.cfg.MaxDelay - s.cfg.MinDelay
	if span <= 0 {
		return s.cfg.MinDelay
	}
	return s.cfg.MinDelay + time.Duration(s.rng.Int64N(int64(span)+1))
}

func (s *Scraper) userAgent() string {
	return s.cfg.UserAgents[s.rng.IntN(len(s.cfg.UserAgents))]
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func classifyError(err error, statusCode int) error {
	if err == nil && statusCode == 0 {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout{Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrConnection{Err: err}
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ErrConnection{Err: err}
	}

	if statusCode != 0 && statusCode != http.StatusOK {
		wrapped := err
		if wrapped == nil {
			wrapped = fmt.Errorf("http status %d", statusCode)
		}
		switch statusCode {
		case http.StatusForbidden:
			return ErrForbidden{Err: wrapped}
		case http.StatusNotFound:
			return ErrNotFound{Err: wrapped}
		case http.StatusTooManyRequests:
			return ErrRateLimited{Err: wrapped}
		default:
			return ErrStatus{StatusCode: statusCode, Err: wrapped}
		}
	}

	return err
}
