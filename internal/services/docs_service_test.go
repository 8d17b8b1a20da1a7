package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"conductor/internal/domain"
	"conductor/internal/domain/models"
)

func TestDocsServiceGenerate(t *testing.T) {
	now := time.Now().UTC()
	trip := models.Trip{ID: "R1-V1-20250101T080000", RouteID: "R1", VehicleID: "V1", Capacity: 2, Status: domain.TripActive, CreatedAt: now}
	ticket := models.Ticket{TripID: trip.ID, Seq: 1, OriginStopID: "harare", DestinationStopID: "belvedere", FareClass: domain.FareAdult, Amount: 300, IssuedAt: now}

	svc := DocsService{
		Currency: "$",
		DeviceID: "dev-1",
		ReceiptLoader: func(_ context.Context, tripID string, seq int) (receiptData, error) {
			return receiptData{Ticket: ticket, Trip: trip, RouteName: "City loop", Origin: "Harare", Destination: "Belvedere"}, nil
		},
		ReportLoader: func(_ context.Context, tripID string) (reportData, error) {
			return reportData{
				Trip:      trip,
				RouteName: "City loop",
				Seats:     models.SeatUsage{TripID: trip.ID, Capacity: 2, SoldPassengers: 1, RemainingSeats: 1},
				Breakdown: models.TripBreakdown{
					TripID:  trip.ID,
					Classes: []models.ClassBreakdown{{FareClass: domain.FareAdult, Count: 1, Revenue: 300}},
					Issued:  1,
					Revenue: 300,
					Net:     300,
				},
				Expenses: []models.Expense{{ID: "e1", TripID: trip.ID, Category: "fuel", Amount: 100}},
			}, nil
		},
	}

	pdf, filename, err := svc.GenerateReceipt(context.Background(), trip.ID, 1)
	if err != nil {
		t.Fatalf("GenerateReceipt returned error: %v", err)
	}
	if len(pdf) == 0 || filename == "" {
		t.Fatalf("GenerateReceipt returned empty data")
	}
	if strings.ContainsAny(filename, "#:/") {
		t.Fatalf("unsafe filename %q", filename)
	}

	report, reportName, err := svc.GenerateTripReport(context.Background(), trip.ID)
	if err != nil {
		t.Fatalf("GenerateTripReport returned error: %v", err)
	}
	if len(report) == 0 || reportName == "" {
		t.Fatalf("GenerateTripReport returned empty data")
	}
	if !strings.HasPrefix(string(report), "%PDF") {
		t.Fatalf("report is not a PDF")
	}
}
