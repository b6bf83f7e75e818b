package services

import (
	"encoding/json"
	"math"
	"testing"
)

func TestToFloat(t *testing.T) {
	tests := []struct {
		name   string
		in     any
		want   float64
		wantOK bool
	}{
		{"nil", nil, 0, false},
		{"float", 12.5, 12.5, true},
		{"int", 7, 7, true},
		{"json number", json.Number("1602"), 1602, true},
		{"thousands", "1,602", 1602, true},
		{"decimal thousands", "1,234.56 sqft", 1234.56, true},
		{"range text", "0 - 700", 700, true},
		{"hyphen range", "900-1200 sqft", 1200, true},
		{"plus suffix", "5000+", 5000, true},
		{"less than", "< 700", 700, true},
		{"negative", "-73.56", -73.56, true},
		{"plain integer", "1200 sqft", 1200, true},
		{"nbsp splits tokens", "1\u00a0200", 200, true},
		{"empty", "   ", 0, false},
		{"no digits", "n/a", 0, false},
		{"range max", map[string]any{"min": 30.0, "max": 45.0}, 45, true},
		{"range min only", map[string]any{"minValue": "30"}, 30, true},
		{"range value", map[string]any{"value": 88.0}, 88, true},
		{"range empty", map[string]any{"unit": "sqft"}, 0, false},
		{"list max", []any{"700", 1200.0, nil, "x"}, 1200, true},
		{"list empty", []any{}, 0, false},
		{"bool", true, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ToFloat(tt.in)
			if ok != tt.wantOK {
				t.Fatalf("ToFloat(%v) ok = %v; want %v", tt.in, ok, tt.wantOK)
			}
			if ok && math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("ToFloat(%v) = %v; want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestToInt(t *testing.T) {
	tests := []struct {
		in     any
		want   int
		wantOK bool
	}{
		{3.0, 3, true},
		{2.7, 2, true},
		{"4", 4, true},
		{" 5 ", 5, true},
		{"3.5", 0, false},
		{nil, 0, false},
		{json.Number("6"), 6, true},
	}
	for _, tt := range tests {
		got, ok := ToInt(tt.in)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("ToInt(%v) = %d, %v; want %d, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestAreaConversions(t *testing.T) {
	if got := SqftToSquareMeters(1000); math.Abs(got-92.90304) > 1e-9 {
		t.Errorf("SqftToSquareMeters(1000) = %v; want 92.90304", got)
	}
	if got := AcresToSquareMeters(2); math.Abs(got-8093.7128448) > 1e-9 {
		t.Errorf("AcresToSquareMeters(2) = %v; want 8093.7128448", got)
	}
	back := SqftToSquareMeters(1500) / SqftToSqm
	if math.Abs(back-1500) > 1e-9 {
		t.Errorf("sqft round trip: got %v, want 1500", back)
	}
}
