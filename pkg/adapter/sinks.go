package adapter

import (
	"context"
	"strconv"
	"time"

	"github.com/ilora-retreats/concierge/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// Default staff-facing sheet tabs.
const (
	DefaultTicketSheet = "ticket_management"
	DefaultOrderSheet  = "Room_Service_Orders"
)

// SheetTicketSink stores ticket records as rows of the staff ticket sheet.
type SheetTicketSink struct {
	sheets    Sheets
	sheetName string
}

// NewSheetTicketSink creates a ticket sink on the given sheet tab. An empty
// name uses the default tab.
func NewSheetTicketSink(sheets Sheets, sheetName string) *SheetTicketSink {
	if sheetName == "" {
		sheetName = DefaultTicketSheet
	}
	return &SheetTicketSink{
		sheets:    sheets,
		sheetName: sheetName,
	}
}

func (s *SheetTicketSink) Append(ctx context.Context, rec *model.TicketRecord) error {
	resolvedAt := ""
	if rec.ResolvedAt != nil {
		resolvedAt = rec.ResolvedAt.UTC().Format(time.RFC3339)
	}

	row := map[string]string{
		"Ticket ID":   string(rec.ID),
		"Email":       rec.Email,
		"Name":        rec.Name,
		"Room No":     rec.RoomNo,
		"Request":     rec.Request,
		"Category":    rec.Category,
		"Assigned To": rec.AssignedTo,
		"Status":      string(rec.Status),
		"Created At":  rec.CreatedAt.UTC().Format(time.RFC3339),
		"Resolved At": resolvedAt,
		"Notes":       rec.Notes,
	}

	if err := s.sheets.Append(ctx, s.sheetName, row); err != nil {
		return goerr.Wrap(err, "failed to append ticket row", goerr.V("ticket", rec.ID))
	}
	return nil
}

// Recent returns the newest rows of the ticket sheet, oldest first within the
// window, for the duplicate check.
func (s *SheetTicketSink) Recent(ctx context.Context, limit int) ([]model.TicketRecord, error) {
	rows, err := s.sheets.Rows(ctx, s.sheetName)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read ticket sheet")
	}

	if limit > 0 && len(rows) > limit {
		rows = rows[len(rows)-limit:]
	}

	records := make([]model.TicketRecord, 0, len(rows))
	for _, row := range rows {
		rec := model.TicketRecord{
			ID:         model.TicketID(row["Ticket ID"]),
			Email:      row["Email"],
			Name:       row["Name"],
			RoomNo:     row["Room No"],
			Request:    row["Request"],
			Category:   row["Category"],
			AssignedTo: row["Assigned To"],
			Status:     model.TicketStatus(row["Status"]),
			Notes:      row["Notes"],
		}
		if ts, err := time.Parse(time.RFC3339, row["Created At"]); err == nil {
			rec.CreatedAt = ts
		}
		if ts, err := time.Parse(time.RFC3339, row["Resolved At"]); err == nil {
			rec.ResolvedAt = &ts
		}
		records = append(records, rec)
	}
	return records, nil
}

// SheetOrderSink stores room-service orders as rows of the order sheet.
type SheetOrderSink struct {
	sheets    Sheets
	sheetName string
}

// NewSheetOrderSink creates an order sink on the given sheet tab. An empty
// name uses the default tab.
func NewSheetOrderSink(sheets Sheets, sheetName string) *SheetOrderSink {
	if sheetName == "" {
		sheetName = DefaultOrderSheet
	}
	return &SheetOrderSink{
		sheets:    sheets,
		sheetName: sheetName,
	}
}

func (s *SheetOrderSink) Append(ctx context.Context, order *model.Order) error {
	row := map[string]string{
		"Email":           order.Email,
		"Name":            order.Name,
		"Room No":         order.RoomNo,
		"Orders":          order.Summary(),
		"Pending Balance": formatBalance(order.Total()),
	}

	if err := s.sheets.Append(ctx, s.sheetName, row); err != nil {
		return goerr.Wrap(err, "failed to append order row", goerr.V("room", order.RoomNo))
	}
	return nil
}

// formatBalance keeps whole amounts whole: 220 not 220.00.
func formatBalance(amount float64) string {
	return strconv.FormatFloat(amount, 'f', -1, 64)
}
