package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/aluiziolira/go-scrape-listings/config"
	"github.com/aluiziolira/go-scrape-listings/models"
	"google.golang.org/api/option"
)

var plainSheetName = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Result describes a finished upload.
type Result struct {
	AnchorCell   string
	Rows         int
	UpdatedCells int64
}

// Uploader writes a header row and listings below the last used row of the
// anchor column. The read and the write are separate calls, so concurrent
// writers to the same sheet can overlap.
type Uploader struct {
	cfg     config.SheetsConfig
	connect func(ctx context.Context) (ValuesService, error)
}

// NewUploader authenticates through creds on every upload.
func NewUploader(creds Credentials, cfg config.SheetsConfig, opts ...option.ClientOption) *Uploader {
	return &Uploader{
		cfg: cfg,
		connect: func(ctx context.Context) (ValuesService, error) {
			ts, err := creds.TokenSource(ctx)
			if err != nil {
				return nil, err
			}
			return NewValuesService(ctx, append([]option.ClientOption{option.WithTokenSource(ts)}, opts...)...)
		},
	}
}

// NewUploaderWithService uploads through an already connected service.
func NewUploaderWithService(values ValuesService, cfg config.SheetsConfig) *Uploader {
	return &Uploader{
		cfg: cfg,
		connect: func(context.Context) (ValuesService, error) {
			return values, nil
		},
	}
}

// Upload appends the header and listings starting at the anchor cell.
func (u *Uploader) Upload(ctx context.Context, listings []*models.Listing) (*Result, error) {
	values, err := u.connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}

	row, err := u.findAnchorRow(ctx, values)
	if err != nil {
		return nil, fmt.Errorf("read anchor column: %w", err)
	}
	anchor := fmt.Sprintf("%s%d", u.column(), row)
	slog.Info("found first blank cell", slog.String("sheet", u.cfg.SheetName), slog.String("cell", anchor))

	rows := Rows(listings)
	writeRange := fmt.Sprintf("%s!%s", quoteSheetName(u.cfg.SheetName), anchor)
	cells, err := values.Update(ctx, u.cfg.SpreadsheetID, writeRange, rows)
	if err != nil {
		return nil, fmt.Errorf("write values at %s: %w", writeRange, err)
	}

	return &Result{
		AnchorCell:   anchor,
		Rows:         len(rows),
		UpdatedCells: cells,
	}, nil
}

func (u *Uploader) findAnchorRow(ctx context.Context, values ValuesService) (int, error) {
	col := u.column()
	readRange := fmt.Sprintf("%s!%s:%s", quoteSheetName(u.cfg.SheetName), col, col)
	existing, err := values.Get(ctx, u.cfg.SpreadsheetID, readRange)
	if err != nil {
		return 0, err
	}
	return FirstBlankRow(existing), nil
}

func (u *Uploader) column() string {
	if u.cfg.AnchorColumn == "" {
		return "A"
	}
	return u.cfg.AnchorColumn
}

// FirstBlankRow returns the 1-based row of the first row whose first cell is
// empty, or the row after the last one when every row is filled.
func FirstBlankRow(values [][]interface{}) int {
	for i, row := range values {
		if len(row) == 0 || cellString(row[0]) == "" {
			return i + 1
		}
	}
	return len(values) + 1
}

// Rows renders the header and listings as strings.
func Rows(listings []*models.Listing) [][]interface{} {
	out := make([][]interface{}, 0, len(listings)+1)
	out = append(out, toCells(models.Header))
	for _, l := range listings {
		out = append(out, toCells(l.Row()))
	}
	return out
}

func toCells(values []string) []interface{} {
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return cells
}

func cellString(v interface{}) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return c
	default:
		return fmt.Sprint(c)
	}
}

func quoteSheetName(name string) string {
	if plainSheetName.MatchString(name) {
		return name
	}
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}
