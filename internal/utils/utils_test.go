package utils

import (
	"math"
	"testing"
	"time"
)

func TestFormatAmount(t *testing.T) {
	cases := map[int64]string{
		0:         "$0.00",
		5:         "$0.05",
		30000:     "$300.00",
		123456789: "$1,234,567.89",
		-250:      "-$2.50",
	}
	for in, want := range cases {
		if got := FormatAmount("$", in); got != want {
			t.Errorf("FormatAmount(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestHaversineKm(t *testing.T) {
	if d := HaversineKm(0, 0, 0, 0); d != 0 {
		t.Fatalf("same point distance = %f", d)
	}
	// One degree of longitude at the equator.
	if d := HaversineKm(0, 0, 0, 1); math.Abs(d-111.19) > 0.1 {
		t.Fatalf("equator degree = %f", d)
	}
	if a, b := HaversineKm(-17.8, 31.0, -17.9, 31.1), HaversineKm(-17.9, 31.1, -17.8, 31.0); math.Abs(a-b) > 1e-9 {
		t.Fatalf("distance not symmetric: %f vs %f", a, b)
	}
}

func TestValidateCoordinate(t *testing.T) {
	if err := ValidateCoordinate(-17.8, 31.0); err != nil {
		t.Fatalf("valid coordinate rejected: %v", err)
	}
	for _, c := range [][2]float64{{91, 0}, {0, -181}, {math.NaN(), 0}, {0, math.Inf(1)}} {
		if ValidateCoordinate(c[0], c[1]) == nil {
			t.Errorf("coordinate %v accepted", c)
		}
	}
}

func TestSafeToken(t *testing.T) {
	if got := SafeToken(" R1-V#3 trip.x "); got != "R1-V_3_trip_x" {
		t.Fatalf("SafeToken = %q", got)
	}
	if got := SafeToken("  "); got != "_" {
		t.Fatalf("empty SafeToken = %q", got)
	}
	if got := NormalizeSpace("  wrong \t stop  "); got != "wrong stop" {
		t.Fatalf("NormalizeSpace = %q", got)
	}
}

func TestStampPrecisionSurvivesRoundTrip(t *testing.T) {
	in := time.Date(2025, 3, 1, 6, 0, 0, 123456789, time.FixedZone("CAT", 2*3600))
	got := StampPrecision(in)
	if got.Location() != time.UTC || got.Nanosecond() != 123456000 {
		t.Fatalf("StampPrecision = %v", got)
	}
	back, err := ParseStamp(FormatStamp(got))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !back.Equal(got) {
		t.Fatalf("round trip %v -> %v", got, back)
	}
	if n := NowUTC(); n.Nanosecond()%1000 != 0 {
		t.Fatalf("NowUTC keeps sub-microsecond digits: %v", n)
	}
}
