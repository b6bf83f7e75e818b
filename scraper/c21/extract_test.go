package c21

import (
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"realestate-scraper/models"
	"realestate-scraper/services"
	"realestate-scraper/utils"
)

const wxPage = `<html><head>
<script>window.dataLayer = [];</script>
<script>
var Wx = {"page": "detail", "listing_detail": {
	"title": "Lovely {family} home",
	"location": {"address": "12 Main St", "city": "Toronto", "state": "ON", "zip": "M5V 1A1", "country_code": "CA",
		"latitude": 43.65, "longitude": -79.38},
	"features": [
		{"feature_name": "Heating", "subfeatures": [{"subfeature_name": "Forced Air"}, {"subfeature_name": "Gas"}]},
		{"feature_name": "", "subfeatures": [{"subfeature_name": "Pool"}]}
	],
	"bedrooms": "3",
	"living_area": 1500,
	"price": 749900,
	"comments": "Bright home close to transit.",
	"property_type": "Single Family",
}};
</script></head><body><h1>Ignored title</h1></body></html>`

const jsonLDPage = `<html><head>
<script type="application/ld+json">{not json</script>
<script type="application/ld+json">[
	{"@type": "BreadcrumbList", "name": "crumbs"},
	{"@type": ["Product", "RealEstateListing"],
	 "name": "Condo downtown",
	 "url": "https://www.c21.ca/listing/condo-downtown",
	 "offers": [{"@type": "Offer"}, {"@type": "Offer", "price": "1 850"}],
	 "address": {"streetAddress": "5 King St", "addressLocality": "Toronto", "addressRegion": "ON"},
	 "numberOfBedrooms": "2 beds",
	 "floorSize": {"value": 75, "unitCode": "MTK"},
	 "geo": {"latitude": 43.6, "longitude": -79.4},
	 "description": "  Nice condo  "}
]</script>
</head><body></body></html>`

const cssPage = `<html><body>
<h1> 99 Elm Rd </h1>
<div class="price"><span>$2,300/mo</span></div>
<div class="listing-address"><span>99 Elm Rd</span> <span>Ottawa, ON</span></div>
<div class="listing-info-item"><span>Beds</span><span class="listing-info-item-value">4</span></div>
<div class="listing-info-item"><span>Lot Size</span><span class="listing-info-item-value">0.5 acres</span></div>
<div class="description"><p>Line one.</p><p>Line two.</p></div>
<iframe src="https://www.google.com/maps/embed?pb=!1m18!3d45.4215!4d-75.6972!5e0"></iframe>
</body></html>`

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func floatPtr(f float64) *float64 { return &f }

func mustDoc(t *testing.T, page string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		t.Fatalf("parse page: %v", err)
	}
	return doc
}

func TestExtractWxEndToEnd(t *testing.T) {
	e := NewExtractor(utils.NewDiscardLogger())
	raw, err := e.Extract([]byte(wxPage), "https://www.c21.ca/listing/12-main")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	cleaner := services.NewCleaner(utils.NewDiscardLogger(), "c21", "run-1")
	l := cleaner.Normalize(raw, "https://www.c21.ca/listing/12-main")

	if l.Title != "12 Main St, Toronto, ON, M5V 1A1, CA" {
		t.Errorf("Title: got %q", l.Title)
	}
	if l.Address != l.Title {
		t.Errorf("Address: got %q", l.Address)
	}
	if l.SurfaceSqm == nil || !approx(*l.SurfaceSqm, 1500*0.09290304) {
		t.Errorf("SurfaceSqm: got %v, want %v", l.SurfaceSqm, 1500*0.09290304)
	}
	if l.Rooms == nil || *l.Rooms != 3 {
		t.Errorf("Rooms: got %v, want 3", l.Rooms)
	}
	wantFeatures := []string{"heating:forced_air", "heating:gas", "pool"}
	if !reflect.DeepEqual(l.Features, wantFeatures) {
		t.Errorf("Features: got %v, want %v", l.Features, wantFeatures)
	}
	if l.Price == nil || *l.Price != 749900 {
		t.Errorf("Price: got %v", l.Price)
	}
	if l.PropertyType != models.PropertyHouse {
		t.Errorf("PropertyType: got %q", l.PropertyType)
	}
	if l.ListingType != models.ListingSale {
		t.Errorf("ListingType: got %q", l.ListingType)
	}
	if l.Latitude == nil || *l.Latitude != 43.65 || l.Geohash == "" {
		t.Errorf("coordinates: lat=%v geohash=%q", l.Latitude, l.Geohash)
	}
	if l.URL != "https://www.c21.ca/listing/12-main" {
		t.Errorf("URL: got %q", l.URL)
	}
}

func TestExtractWxSurfaceFallbacks(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]any
		want    *float64
	}{
		{"living area", map[string]any{"living_area": 1000.0}, floatPtr(1000 * services.SqftToSqm)},
		{"sqr footage", map[string]any{"sqr_footage": "1,200"}, floatPtr(1200 * services.SqftToSqm)},
		{"display range", map[string]any{"display_sqft": "900-1200"}, floatPtr(1200 * services.SqftToSqm)},
		{"implausible direct", map[string]any{"living_area": 25000.0, "display_square_feet": "5000+"}, floatPtr(5000 * services.SqftToSqm)},
		{"acreage", map[string]any{"acreage": 2.0}, floatPtr(2 * 4046.8564224)},
		{"zero display falls to acreage", map[string]any{"display_sqft": "0", "acreage": 1.0}, floatPtr(4046.8564224)},
		{"nothing", map[string]any{}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := wxSurface(tt.payload)
			if tt.want == nil {
				if got != nil {
					t.Fatalf("got %v, want nil", *got)
				}
				return
			}
			if got == nil || !approx(*got, *tt.want) {
				t.Fatalf("got %v, want %v", got, *tt.want)
			}
		})
	}
}

func TestDecodeWxPayload(t *testing.T) {
	t.Run("trailing commas", func(t *testing.T) {
		obj, err := decodeWxPayload(`var Wx = {listing_detail: {"a": [1, 2,], "b": "x",}};`)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if obj["b"] != "x" {
			t.Errorf("got %v", obj)
		}
	})

	t.Run("unrecoverable", func(t *testing.T) {
		if _, err := decodeWxPayload(`var Wx = {listing_detail: {"a": nope}};`); err == nil {
			t.Fatal("expected decode error")
		}
	})

	t.Run("unbalanced", func(t *testing.T) {
		_, err := decodeWxPayload(`var Wx = {listing_detail: {"a": {"b": 1}`)
		if !errors.Is(err, utils.ErrNotFound) {
			t.Fatalf("got %v, want ErrNotFound", err)
		}
	})
}

func TestExtractWxTitleFallback(t *testing.T) {
	r := mapWxPayload(map[string]any{"title": "Condo for sale"})
	if r.Title != "Condo for sale" {
		t.Errorf("Title: got %q", r.Title)
	}
	if r.PropertyType != models.PropertyApartment {
		t.Errorf("PropertyType: got %q", r.PropertyType)
	}

	r = mapWxPayload(map[string]any{})
	if r.Title != "Listing" {
		t.Errorf("Title: got %q, want Listing", r.Title)
	}
}

func TestExtractJSONLD(t *testing.T) {
	r, err := extractJSONLD(mustDoc(t, jsonLDPage))
	if err != nil {
		t.Fatalf("extractJSONLD: %v", err)
	}

	if r.Title != "Condo downtown" {
		t.Errorf("Title: got %q", r.Title)
	}
	if r.URL != "https://www.c21.ca/listing/condo-downtown" {
		t.Errorf("URL: got %q", r.URL)
	}
	if r.Price == nil || *r.Price != 1850 {
		t.Errorf("Price: got %v", r.Price)
	}
	if r.Address != "5 King St, Toronto, ON" {
		t.Errorf("Address: got %q", r.Address)
	}
	if r.Rooms == nil || *r.Rooms != 2 {
		t.Errorf("Rooms: got %v", r.Rooms)
	}
	if r.SurfaceSqm == nil || *r.SurfaceSqm != 75 {
		t.Errorf("SurfaceSqm: got %v", r.SurfaceSqm)
	}
	if r.Latitude == nil || *r.Latitude != 43.6 || r.Longitude == nil || *r.Longitude != -79.4 {
		t.Errorf("coordinates: got %v, %v", r.Latitude, r.Longitude)
	}
	if r.Description != "Nice condo" {
		t.Errorf("Description: got %q", r.Description)
	}
}

func TestExtractJSONLDNoListing(t *testing.T) {
	page := `<script type="application/ld+json">{"@type": "Organization", "name": "C21"}</script>`
	if _, err := extractJSONLD(mustDoc(t, page)); err == nil {
		t.Fatal("expected error when no listing-typed object is present")
	}
}

func TestFloorSizeUnits(t *testing.T) {
	tests := []struct {
		in   any
		want float64
	}{
		{map[string]any{"value": 100.0, "unitCode": "MTK"}, 100},
		{map[string]any{"value": 1.0, "unitCode": "ACR"}, 4046.8564224},
		{map[string]any{"value": 1000.0, "unitCode": "FTK"}, 1000 * services.SqftToSqm},
		{map[string]any{"value": "1,000"}, 1000 * services.SqftToSqm},
	}
	for _, tt := range tests {
		got := floorSize(tt.in)
		if got == nil || !approx(*got, tt.want) {
			t.Errorf("floorSize(%v) = %v; want %v", tt.in, got, tt.want)
		}
	}
	if floorSize(map[string]any{"unitCode": "MTK"}) != nil {
		t.Error("missing value should give nil")
	}
}

func TestExtractCSS(t *testing.T) {
	r, err := extractCSS(mustDoc(t, cssPage))
	if err != nil {
		t.Fatalf("extractCSS: %v", err)
	}

	if r.Title != "99 Elm Rd" {
		t.Errorf("Title: got %q", r.Title)
	}
	if r.Price == nil || *r.Price != 2300 {
		t.Errorf("Price: got %v", r.Price)
	}
	if r.Address != "99 Elm Rd Ottawa, ON" {
		t.Errorf("Address: got %q", r.Address)
	}
	if r.Rooms == nil || *r.Rooms != 4 {
		t.Errorf("Rooms: got %v", r.Rooms)
	}
	if r.SurfaceSqm == nil || !approx(*r.SurfaceSqm, 0.5*4046.8564224) {
		t.Errorf("SurfaceSqm: got %v", r.SurfaceSqm)
	}
	if r.Description != "Line one.\nLine two." {
		t.Errorf("Description: got %q", r.Description)
	}
	if r.Latitude == nil || *r.Latitude != 45.4215 || r.Longitude == nil || *r.Longitude != -75.6972 {
		t.Errorf("coordinates: got %v, %v", r.Latitude, r.Longitude)
	}
}

func TestExtractCSSSquareFeet(t *testing.T) {
	page := `<div><span>SQFT</span><span class="listing-info-item-value">1,100</span></div>`
	r, _ := extractCSS(mustDoc(t, page))
	if r.SurfaceSqm == nil || !approx(*r.SurfaceSqm, 1100*services.SqftToSqm) {
		t.Errorf("SurfaceSqm: got %v", r.SurfaceSqm)
	}
}

func staticStrategy(name string, r *models.RawExtraction, err error) Strategy {
	return Strategy{Name: name, Extract: func(*goquery.Document) (*models.RawExtraction, error) {
		return r, err
	}}
}

func TestMergePriority(t *testing.T) {
	two := 2
	e := NewExtractor(utils.NewDiscardLogger(),
		staticStrategy("first", &models.RawExtraction{Title: "From payload", Price: floatPtr(0)}, nil),
		staticStrategy("broken", nil, errors.New("boom")),
		staticStrategy("second", &models.RawExtraction{Title: "From linked data", Rooms: &two, Price: floatPtr(5), Features: []string{"a"}}, nil),
		staticStrategy("third", &models.RawExtraction{Rooms: intPtr(7), Description: "dom"}, nil),
	)

	r, err := e.Extract([]byte("<html></html>"), "https://x/listing/1")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if r.Title != "From payload" {
		t.Errorf("Title: got %q, want first strategy's value", r.Title)
	}
	if r.Rooms == nil || *r.Rooms != 2 {
		t.Errorf("Rooms: got %v, want 2", r.Rooms)
	}
	if r.Price == nil || *r.Price != 0 {
		t.Errorf("explicit zero price must survive, got %v", r.Price)
	}
	if r.Description != "dom" {
		t.Errorf("Description: got %q", r.Description)
	}
	if !reflect.DeepEqual(r.Features, []string{"a"}) {
		t.Errorf("Features: got %v", r.Features)
	}
	if r.URL != "https://x/listing/1" || r.PropertyType != models.PropertyApartment {
		t.Errorf("defaults not applied: url=%q type=%q", r.URL, r.PropertyType)
	}
}

func TestMergeEmptySliceIsAbsent(t *testing.T) {
	dst := &models.RawExtraction{Features: []string{}}
	Merge(dst, &models.RawExtraction{Features: []string{"x"}})
	if !reflect.DeepEqual(dst.Features, []string{"x"}) {
		t.Errorf("Features: got %v", dst.Features)
	}
}

func TestExtractEmptyPageKeepsDefaults(t *testing.T) {
	e := NewExtractor(utils.NewDiscardLogger())
	r, err := e.Extract([]byte("<html><body><p>Nothing here</p></body></html>"), "https://x/listing/2")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if r.URL != "https://x/listing/2" || r.PropertyType != models.PropertyApartment {
		t.Errorf("defaults not applied: url=%q type=%q", r.URL, r.PropertyType)
	}
	if r.Features == nil || len(r.Features) != 0 {
		t.Errorf("Features: got %#v, want empty non-nil slice", r.Features)
	}
	if r.Price != nil || r.Rooms != nil || r.SurfaceSqm != nil || r.Title != "" {
		t.Errorf("unexpected fields: %+v", r)
	}
}
