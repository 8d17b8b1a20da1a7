package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"conductor/internal/domain/models"
	"conductor/internal/utils"

	"github.com/phpdave11/gofpdf"
)

// DocsService renders the ticket receipt and trip report handed to the printer.
type DocsService struct {
	Ledger    *LedgerService
	Currency  string
	DeviceID  string
	RequestID string

	ReceiptLoader func(ctx context.Context, tripID string, seq int) (receiptData, error)
	ReportLoader  func(ctx context.Context, tripID string) (reportData, error)
}

type receiptData struct {
	Ticket      models.Ticket
	Trip        models.Trip
	RouteName   string
	Origin      string
	Destination string
}

type reportData struct {
	Trip      models.Trip
	RouteName string
	Seats     models.SeatUsage
	Breakdown models.TripBreakdown
	Expenses  []models.Expense
}

func (s DocsService) GenerateReceipt(ctx context.Context, tripID string, seq int) ([]byte, string, error) {
	load := s.ReceiptLoader
	if load == nil {
		load = s.loadReceipt
	}
	data, err := load(ctx, tripID, seq)
	if err != nil {
		return nil, "", err
	}
	utils.LogEvent(s.RequestID, "docs", "generate_receipt", "ticket="+data.Ticket.BusinessID())
	return buildReceiptPDF(data, s.currency(), s.DeviceID)
}

func (s DocsService) GenerateTripReport(ctx context.Context, tripID string) ([]byte, string, error) {
	load := s.ReportLoader
	if load == nil {
		load = s.loadReport
	}
	data, err := load(ctx, tripID)
	if err != nil {
		return nil, "", err
	}
	utils.LogEvent(s.RequestID, "docs", "generate_trip_report", "trip="+data.Trip.ID)
	return buildTripReportPDF(data, s.currency())
}

func (s DocsService) currency() string {
	if s.Currency == "" {
		return "$"
	}
	return s.Currency
}

func (s DocsService) loadReceipt(ctx context.Context, tripID string, seq int) (receiptData, error) {
	trip, err := s.Ledger.GetTrip(ctx, tripID)
	if err != nil {
		return receiptData{}, err
	}
	t, err := s.Ledger.GetTicket(ctx, tripID, seq)
	if err != nil {
		return receiptData{}, err
	}
	d := receiptData{Ticket: t, Trip: trip, Origin: t.OriginStopID, Destination: t.DestinationStopID}
	if route, err := s.Ledger.Route(ctx, trip.RouteID); err == nil {
		d.RouteName = route.Name
		if st, ok := route.StopByID(t.OriginStopID); ok {
			d.Origin = st.Name
		}
		if st, ok := route.StopByID(t.DestinationStopID); ok {
			d.Destination = st.Name
		}
	}
	return d, nil
}

func (s DocsService) loadReport(ctx context.Context, tripID string) (reportData, error) {
	trip, err := s.Ledger.GetTrip(ctx, tripID)
	if err != nil {
		return reportData{}, err
	}
	seats, err := s.Ledger.SeatUsage(ctx, tripID)
	if err != nil {
		return reportData{}, err
	}
	breakdown, err := s.Ledger.Breakdown(ctx, tripID)
	if err != nil {
		return reportData{}, err
	}
	expenses, err := s.Ledger.ListExpenses(ctx, tripID)
	if err != nil {
		return reportData{}, err
	}
	d := reportData{Trip: trip, Seats: seats, Breakdown: breakdown, Expenses: expenses}
	if route, err := s.Ledger.Route(ctx, trip.RouteID); err == nil {
		d.RouteName = route.Name
	}
	return d, nil
}

// buildReceiptPDF lays the receipt out on an 80mm roll.
func buildReceiptPDF(d receiptData, currency, deviceID string) ([]byte, string, error) {
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           gofpdf.SizeType{Wd: 80, Ht: 120},
	})
	pdf.SetTitle("Ticket", false)
	pdf.SetMargins(4, 4, 4)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, "TICKET", "", 1, "C", false, 0, "")

	pdf.SetFont("Courier", "", 9)
	lines := []string{
		fmt.Sprintf("No     : %s", d.Ticket.BusinessID()),
		fmt.Sprintf("Route  : %s", safe(d.RouteName, d.Trip.RouteID)),
		fmt.Sprintf("Vehicle: %s", safe(d.Trip.VehicleID, "-")),
		fmt.Sprintf("From   : %s", safe(d.Origin, "-")),
		fmt.Sprintf("To     : %s", safe(d.Destination, "-")),
		fmt.Sprintf("Class  : %s", strings.ToUpper(string(d.Ticket.FareClass))),
		fmt.Sprintf("Issued : %s", d.Ticket.IssuedAt.Format("2006-01-02 15:04")),
	}
	if deviceID != "" {
		lines = append(lines, fmt.Sprintf("Device : %s", deviceID))
	}
	for _, l := range lines {
		pdf.CellFormat(0, 5, l, "", 1, "L", false, 0, "")
	}

	pdf.Ln(2)
	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(0, 8, "TOTAL "+utils.FormatAmount(currency, d.Ticket.Amount), "", 1, "C", false, 0, "")

	if d.Ticket.Cancelled() {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(0, 7, "*** CANCELLED ***", "", 1, "C", false, 0, "")
		if d.Ticket.CancelReason != "" {
			pdf.SetFont("Helvetica", "I", 8)
			pdf.MultiCell(0, 4, d.Ticket.CancelReason, "", "C", false)
		}
	}

	pdf.Ln(2)
	pdf.SetFont("Helvetica", "I", 7)
	pdf.MultiCell(0, 4, "Valid for one journey on this trip only. Keep until you alight.", "", "C", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, "", err
	}
	filename := fmt.Sprintf("TICKET_%s_%d.pdf", safeFilenamePart(d.Ticket.TripID), d.Ticket.Seq)
	return buf.Bytes(), filename, nil
}

func buildTripReportPDF(d reportData, currency string) ([]byte, string, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Trip report", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "TRIP REPORT")
	pdf.Ln(12)

	completed := "-"
	if d.Trip.CompletedAt != nil {
		completed = d.Trip.CompletedAt.Format("2006-01-02 15:04")
	}
	pdf.SetFont("Helvetica", "", 12)
	header := []string{
		fmt.Sprintf("Trip      : %s", d.Trip.ID),
		fmt.Sprintf("Route     : %s", safe(d.RouteName, d.Trip.RouteID)),
		fmt.Sprintf("Vehicle   : %s", d.Trip.VehicleID),
		fmt.Sprintf("Status    : %s", d.Trip.Status),
		fmt.Sprintf("Opened    : %s", d.Trip.CreatedAt.Format("2006-01-02 15:04")),
		fmt.Sprintf("Completed : %s", completed),
		fmt.Sprintf("Seats     : %d sold / %d capacity, %d departed, %d luggage",
			d.Seats.SoldPassengers, d.Seats.Capacity, d.Seats.Departed, d.Seats.Luggage),
	}
	for _, l := range header {
		pdf.Cell(0, 7, l)
		pdf.Ln(7)
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(60, 8, "Fare class", "B", 0, "L", false, 0, "")
	pdf.CellFormat(40, 8, "Tickets", "B", 0, "R", false, 0, "")
	pdf.CellFormat(50, 8, "Revenue", "B", 1, "R", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	for _, c := range d.Breakdown.Classes {
		pdf.CellFormat(60, 7, string(c.FareClass), "", 0, "L", false, 0, "")
		pdf.CellFormat(40, 7, fmt.Sprintf("%d", c.Count), "", 0, "R", false, 0, "")
		pdf.CellFormat(50, 7, utils.FormatAmount(currency, c.Revenue), "", 1, "R", false, 0, "")
	}
	pdf.CellFormat(60, 7, "cancelled", "", 0, "L", false, 0, "")
	pdf.CellFormat(40, 7, fmt.Sprintf("%d", d.Breakdown.Cancelled), "", 1, "R", false, 0, "")

	if len(d.Expenses) > 0 {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "B", 12)
		pdf.Cell(0, 8, "Expenses")
		pdf.Ln(8)
		pdf.SetFont("Helvetica", "", 11)
		for _, e := range d.Expenses {
			pdf.CellFormat(100, 7, safe(e.Category+" "+e.Note, e.Category), "", 0, "L", false, 0, "")
			pdf.CellFormat(50, 7, utils.FormatAmount(currency, e.Amount), "", 1, "R", false, 0, "")
		}
	}

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 7, "Revenue  : "+utils.FormatAmount(currency, d.Breakdown.Revenue))
	pdf.Ln(7)
	pdf.Cell(0, 7, "Expenses : "+utils.FormatAmount(currency, d.Breakdown.ExpenseTotal))
	pdf.Ln(7)
	pdf.Cell(0, 7, "Net      : "+utils.FormatAmount(currency, d.Breakdown.Net))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), fmt.Sprintf("TRIP_%s.pdf", safeFilenamePart(d.Trip.ID)), nil
}

func safe(v, fallback string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return fallback
	}
	return v
}

func safeFilenamePart(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "NA"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "_", "\\", "_", ":", "_", "*", "_", "?", "_", "\"", "_", "<", "_", ">", "_", "|", "_", "#", "_")
	s = replacer.Replace(s)
	if len(s) > 60 {
		s = s[:60]
	}
	return s
}
