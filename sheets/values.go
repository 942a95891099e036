// Package sheets appends listings to a Google Sheets worksheet.
package sheets

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"
)

// ValueInputRaw stores values exactly as sent, without formula parsing.
const ValueInputRaw = "RAW"

// ValuesService is the part of the spreadsheet values API the uploader uses.
type ValuesService interface {
	Get(ctx context.Context, spreadsheetID, readRange string) ([][]interface{}, error)
	Update(ctx context.Context, spreadsheetID, writeRange string, values [][]interface{}) (int64, error)
}

type apiValues struct {
	values *sheetsapi.SpreadsheetsValuesService
}

// NewValuesService connects to the Sheets v4 API.
func NewValuesService(ctx context.Context, opts ...option.ClientOption) (ValuesService, error) {
	svc, err := sheetsapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &apiValues{values: svc.Spreadsheets.Values}, nil
}

func (a *apiValues) Get(ctx context.Context, spreadsheetID, readRange string) ([][]interface{}, error) {
	resp, err := a.values.Get(spreadsheetID, readRange).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (a *apiValues) Update(ctx context.Context, spreadsheetID, writeRange string, values [][]interface{}) (int64, error) {
	resp, err := a.values.Update(spreadsheetID, writeRange, &sheetsapi.ValueRange{Values: values}).
		ValueInputOption(ValueInputRaw).
		Context(ctx).
		Do()
	if err != nil {
		return 0, err
	}
	return resp.UpdatedCells, nil
}
