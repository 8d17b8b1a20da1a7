package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"conductor/internal/domain"
	"conductor/internal/domain/models"
)

func TestValidateReferenceRejectsBrokenDocuments(t *testing.T) {
	cases := map[string]func(d *models.ReferenceData){
		"duplicate stop":       func(d *models.ReferenceData) { d.Stops = append(d.Stops, d.Stops[0]) },
		"bad coordinate":       func(d *models.ReferenceData) { d.Stops[0].Lat = 91 },
		"unknown route stop":   func(d *models.ReferenceData) { d.Routes[0].StopIDs = append(d.Routes[0].StopIDs, "mbare") },
		"single stop route":    func(d *models.ReferenceData) { d.Routes[0].StopIDs = d.Routes[0].StopIDs[:1] },
		"zero capacity":        func(d *models.ReferenceData) { d.Vehicles[0].Capacity = 0 },
		"unknown fare class":   func(d *models.ReferenceData) { d.Prices[0].FareClass = "vip" },
		"same origin and dest": func(d *models.ReferenceData) { d.Prices[0].DestinationStopID = d.Prices[0].OriginStopID },
		"duplicate price":      func(d *models.ReferenceData) { d.Prices = append(d.Prices, d.Prices[0]) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			d := referenceFixture()
			mutate(&d)
			if err := validateReference(d); !domain.IsValidation(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
	if err := validateReference(referenceFixture()); err != nil {
		t.Fatalf("fixture should validate: %v", err)
	}
}

func TestImportRefusedWhileTripActive(t *testing.T) {
	env := newTestEnv(t)
	env.openTrip(t, "R", "V")

	ref := ReferenceService{Store: env.store}
	_, err := ref.Import(context.Background(), referenceFixture())
	mustErrIs(t, err, domain.ErrActiveTripExists)
}

func TestImportFileReplacesPrices(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	doc := `{
		"stops": [
			{"id": "harare", "name": "Harare", "lat": -17.8292, "lon": 31.0522},
			{"id": "causeway", "name": "Causeway", "lat": -17.82, "lon": 31.06}
		],
		"routes": [{"id": "R", "name": "Shuttle", "stop_ids": ["harare", "causeway"]}],
		"vehicles": [{"id": "V", "plate": "AAA-1111", "capacity": 14}],
		"prices": [{"origin_stop_id": "harare", "destination_stop_id": "causeway", "fare_class": "adult", "amount": 150}]
	}`
	path := filepath.Join(t.TempDir(), "reference.json")
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	sum, err := ReferenceService{Store: env.store}.ImportFile(ctx, path)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if sum.Stops != 2 || sum.Routes != 1 || sum.Vehicles != 1 || sum.Prices != 1 {
		t.Fatalf("unexpected summary %+v", sum)
	}

	prices := PriceTable{Store: env.store}
	amount, err := prices.Lookup(ctx, "harare", "causeway", domain.FareAdult)
	if err != nil || amount != 150 {
		t.Fatalf("lookup = %d, %v", amount, err)
	}
	_, err = prices.Lookup(ctx, "harare", "belvedere", domain.FareAdult)
	mustErrIs(t, err, domain.ErrFareNotFound)

	// Directional: the reverse leg has no entry.
	_, err = prices.Lookup(ctx, "causeway", "harare", domain.FareAdult)
	mustErrIs(t, err, domain.ErrFareNotFound)

	route, err := env.ledger.Route(ctx, "R")
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if len(route.Stops) != 2 || route.Stops[0].ID != "harare" || route.Stops[1].ID != "causeway" {
		t.Fatalf("route order lost: %+v", route.Stops)
	}
}
