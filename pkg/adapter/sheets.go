package adapter

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Sheets is the interface to the property's spreadsheet, which serves as an
// ad-hoc relational store: knowledge base, menu, campaigns, communication
// rules, tickets, and room-service orders are each a named sheet.
type Sheets interface {
	// Rows returns every data row of the named sheet as header->value maps.
	Rows(ctx context.Context, sheetName string) ([]map[string]string, error)

	// Append adds one row to the named sheet, ordered by the sheet's header.
	Append(ctx context.Context, sheetName string, row map[string]string) error

	// UpdateByID updates columns of the first row whose idColumn cell equals
	// id.
	UpdateByID(ctx context.Context, sheetName, idColumn, id string, updates map[string]string) error
}

// sheetsClient implements Sheets using the Google Sheets API
type sheetsClient struct {
	svc           *sheets.Service
	spreadsheetID string
}

// NewSheets creates a Sheets client for one spreadsheet. Credentials come
// from application default credentials or the given client options.
func NewSheets(ctx context.Context, spreadsheetID string, opts ...option.ClientOption) (Sheets, error) {
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create sheets service")
	}

	return &sheetsClient{
		svc:           svc,
		spreadsheetID: spreadsheetID,
	}, nil
}

// fetch reads the raw value grid of a sheet, header row first.
func (s *sheetsClient) fetch(ctx context.Context, sheetName string) ([][]any, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, sheetName).Context(ctx).Do()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get sheet values", goerr.V("sheet", sheetName))
	}
	return resp.Values, nil
}

func cellString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func (s *sheetsClient) Rows(ctx context.Context, sheetName string) ([]map[string]string, error) {
	values, err := s.fetch(ctx, sheetName)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, nil
	}

	headers := make([]string, len(values[0]))
	for i, h := range values[0] {
		headers[i] = cellString(h)
	}

	rows := make([]map[string]string, 0, len(values)-1)
	for _, raw := range values[1:] {
		row := make(map[string]string, len(headers))
		for i, header := range headers {
			if header == "" {
				continue
			}
			if i < len(raw) {
				row[header] = cellString(raw[i])
			} else {
				row[header] = ""
			}
		}
		rows = append(rows, row)
	}

	return rows, nil
}

func (s *sheetsClient) Append(ctx context.Context, sheetName string, row map[string]string) error {
	values, err := s.fetch(ctx, sheetName)
	if err != nil {
		return err
	}
	if len(values) == 0 {
		return goerr.New("sheet has no header row", goerr.V("sheet", sheetName))
	}

	ordered := make([]any, len(values[0]))
	for i, h := range values[0] {
		ordered[i] = row[cellString(h)]
	}

	_, err = s.svc.Spreadsheets.Values.
		Append(s.spreadsheetID, sheetName, &sheets.ValueRange{Values: [][]any{ordered}}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return goerr.Wrap(err, "failed to append row", goerr.V("sheet", sheetName))
	}

	return nil
}

func (s *sheetsClient) UpdateByID(ctx context.Context, sheetName, idColumn, id string, updates map[string]string) error {
	values, err := s.fetch(ctx, sheetName)
	if err != nil {
		return err
	}
	if len(values) == 0 {
		return goerr.New("sheet has no header row", goerr.V("sheet", sheetName))
	}

	idIdx := -1
	for i, h := range values[0] {
		if cellString(h) == idColumn {
			idIdx = i
			break
		}
	}
	if idIdx < 0 {
		return goerr.New("id column not found", goerr.V("sheet", sheetName), goerr.V("column", idColumn))
	}

	for rowIdx, raw := range values[1:] {
		if idIdx >= len(raw) || cellString(raw[idIdx]) != id {
			continue
		}

		updated := make([]any, len(values[0]))
		for i, h := range values[0] {
			header := cellString(h)
			if v, ok := updates[header]; ok {
				updated[i] = v
			} else if i < len(raw) {
				updated[i] = raw[i]
			} else {
				updated[i] = ""
			}
		}

		// +2: one for the header row, one for 1-based A1 notation.
		rng := fmt.Sprintf("%s!A%d", sheetName, rowIdx+2)
		_, err := s.svc.Spreadsheets.Values.
			Update(s.spreadsheetID, rng, &sheets.ValueRange{Values: [][]any{updated}}).
			ValueInputOption("RAW").
			Context(ctx).
			Do()
		if err != nil {
			return goerr.Wrap(err, "failed to update row", goerr.V("sheet", sheetName), goerr.V("id", id))
		}
		return nil
	}

	return goerr.New("row not found", goerr.V("sheet", sheetName), goerr.V("id", id))
}
