package c21

import (
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"realestate-scraper/models"
	"realestate-scraper/services"
)

// linkedDataTypes are the @type fragments that mark a listing-like object.
var linkedDataTypes = []string{"product", "offer", "realestate", "apartment", "house", "singlefamily"}

var (
	errNoLinkedData = errors.New("jsonld: no listing object")

	nonDigitRe = regexp.MustCompile(`\D`)
)

// extractJSONLD reads every application/ld+json block. The first
// listing-typed object to provide a field wins it.
func extractJSONLD(doc *goquery.Document) (*models.RawExtraction, error) {
	r := &models.RawExtraction{}
	found := false

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return
		}
		var payload any
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return
		}

		objs, ok := payload.([]any)
		if !ok {
			objs = []any{payload}
		}
		for _, o := range objs {
			obj := object(o)
			if obj == nil || !isListingType(obj["@type"]) {
				continue
			}
			found = true
			fillFromLinkedData(r, obj)
		}
	})

	if !found {
		return nil, errNoLinkedData
	}
	return r, nil
}

func isListingType(v any) bool {
	var t string
	switch x := v.(type) {
	case string:
		t = x
	case []any:
		parts := make([]string, 0, len(x))
		for _, p := range x {
			if s, ok := p.(string); ok {
				parts = append(parts, s)
			}
		}
		t = strings.Join(parts, ",")
	default:
		return false
	}

	t = strings.ToLower(t)
	for _, k := range linkedDataTypes {
		if strings.Contains(t, k) {
			return true
		}
	}
	return false
}

func fillFromLinkedData(r *models.RawExtraction, obj map[string]any) {
	if r.Title == "" {
		r.Title = text(first(obj, "name", "title"))
	}
	if r.URL == "" {
		r.URL = text(obj["url"])
	}
	if r.Price == nil {
		r.Price = offerPrice(obj["offers"])
	}
	if r.Address == "" {
		if addr := object(obj["address"]); addr != nil {
			r.Address = joinNonEmpty(
				text(addr["streetAddress"]),
				text(addr["addressLocality"]),
				text(addr["addressRegion"]),
				text(addr["postalCode"]),
				text(addr["addressCountry"]),
			)
		}
	}
	if r.Rooms == nil {
		r.Rooms = linkedDataRooms(first(obj, "numberOfBedrooms", "numberOfRooms"))
	}
	if r.SurfaceSqm == nil {
		r.SurfaceSqm = floorSize(first(obj, "floorSize", "area"))
	}

	geo := object(obj["geo"])
	if r.Latitude == nil {
		lat := obj["latitude"]
		if lat == nil {
			lat = geo["latitude"]
		}
		r.Latitude = services.FloatPtr(lat)
	}
	if r.Longitude == nil {
		lon := obj["longitude"]
		if lon == nil {
			lon = geo["longitude"]
		}
		r.Longitude = services.FloatPtr(lon)
	}

	if r.Description == "" {
		if desc, ok := obj["description"].(string); ok {
			r.Description = strings.TrimSpace(desc)
		}
	}
}

// offerPrice accepts a single Offer or a list of them; the first offer
// with a price wins.
func offerPrice(v any) *float64 {
	switch x := v.(type) {
	case map[string]any:
		if p, ok := x["price"]; ok && p != nil {
			return services.ParsePrice(p)
		}
	case []any:
		for _, o := range x {
			if p := offerPrice(o); p != nil {
				return p
			}
		}
	}
	return nil
}

func linkedDataRooms(v any) *int {
	switch x := v.(type) {
	case float64:
		return intPtr(int(x))
	case string:
		digits := nonDigitRe.ReplaceAllString(x, "")
		if n, err := strconv.Atoi(digits); err == nil {
			return intPtr(n)
		}
	case map[string]any:
		if f, ok := services.ToFloat(x); ok {
			return intPtr(int(f))
		}
	}
	return nil
}

// floorSize converts a QuantitativeValue to square meters using its
// UN/CEFACT unit code. Square feet is assumed when the code is missing.
func floorSize(v any) *float64 {
	var (
		value float64
		ok    bool
		unit  string
	)
	switch x := v.(type) {
	case map[string]any:
		value, ok = services.ToFloat(x["value"])
		unit = strings.ToUpper(text(x["unitCode"]))
	case float64, string:
		value, ok = services.ToFloat(x)
	}
	if !ok {
		return nil
	}

	var sqm float64
	switch unit {
	case "MTK":
		sqm = value
	case "ACR":
		sqm = services.AcresToSquareMeters(value)
	default:
		sqm = services.SqftToSquareMeters(value)
	}
	return &sqm
}
