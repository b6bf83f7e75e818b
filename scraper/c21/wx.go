package c21

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"realestate-scraper/models"
	"realestate-scraper/services"
	"realestate-scraper/utils"
)

const (
	wxMarker  = "var Wx"
	wxPayload = "listing_detail"

	// Living-area values at or above this many square feet are not trusted.
	maxPlausibleSqft = 20000
)

var (
	errNoWxScript = errors.New("wx: no listing_detail script")

	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
)

// extractWx reads the listing_detail object assigned inside the page's
// "var Wx = {...}" script.
func extractWx(doc *goquery.Document) (*models.RawExtraction, error) {
	var script string
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		t := s.Text()
		if strings.Contains(t, wxMarker) && strings.Contains(t, wxPayload) {
			script = t
			return false
		}
		return true
	})
	if script == "" {
		return nil, errNoWxScript
	}

	obj, err := decodeWxPayload(script)
	if err != nil {
		return nil, err
	}
	return mapWxPayload(obj), nil
}

// decodeWxPayload locates the object after the listing_detail key and
// decodes it, retrying once with trailing commas removed.
func decodeWxPayload(script string) (map[string]any, error) {
	keyIdx := strings.Index(script, wxPayload)
	if keyIdx == -1 {
		return nil, errNoWxScript
	}
	colon := strings.Index(script[keyIdx:], ":")
	if colon == -1 {
		return nil, fmt.Errorf("wx: no colon after %s", wxPayload)
	}

	raw, err := utils.ExtractJSONObject(script, keyIdx+colon+1)
	if err != nil {
		return nil, fmt.Errorf("wx: %w", err)
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		cleaned := trailingCommaRe.ReplaceAllString(raw, "$1")
		if err2 := json.Unmarshal([]byte(cleaned), &obj); err2 != nil {
			return nil, fmt.Errorf("wx: decode payload: %w", err2)
		}
	}
	return obj, nil
}

func mapWxPayload(obj map[string]any) *models.RawExtraction {
	r := &models.RawExtraction{}

	loc := object(obj["location"])
	r.Address = joinNonEmpty(
		text(loc["address"]),
		text(loc["city"]),
		text(loc["state"]),
		text(loc["zip"]),
		text(loc["country_code"]),
	)
	r.Latitude = services.FloatPtr(loc["latitude"])
	r.Longitude = services.FloatPtr(loc["longitude"])

	r.Features = wxFeatures(obj["features"])

	r.Title = r.Address
	if r.Title == "" {
		r.Title = text(first(obj, "title"))
	}
	if r.Title == "" {
		r.Title = "Listing"
	}

	if n, ok := services.ToInt(obj["bedrooms"]); ok {
		r.Rooms = intPtr(n)
	}

	r.SurfaceSqm = wxSurface(obj)
	r.Price = services.FloatPtr(first(obj, "price", "list_price"))

	if desc, ok := obj["comments"].(string); ok {
		r.Description = desc
	}

	r.PropertyType = models.PropertyApartment
	if src, ok := first(obj, "property_type", "title").(string); ok {
		r.PropertyType = services.ClassifyProperty(src)
	}
	return r
}

// wxFeatures flattens feature groups into "group:item" tags.
func wxFeatures(v any) []string {
	groups, _ := v.([]any)
	var out []string
	for _, g := range groups {
		group := object(g)
		fname := text(group["feature_name"])
		subs, _ := group["subfeatures"].([]any)
		for _, s := range subs {
			sname := text(object(s)["subfeature_name"])
			switch {
			case fname != "" && sname != "":
				out = append(out, tag(fname+":"+sname))
			case sname != "":
				out = append(out, tag(sname))
			}
		}
	}
	return out
}

func tag(s string) string {
	return strings.ReplaceAll(strings.ToLower(s), " ", "_")
}

// wxSurface resolves the floor area in square meters: a direct living
// area in square feet, then the display range, then the lot acreage.
func wxSurface(obj map[string]any) *float64 {
	var surface *float64

	if sqft, ok := services.ToFloat(first(obj, "living_area", "sqr_footage")); ok && sqft > 0 && sqft < maxPlausibleSqft {
		sqm := services.SqftToSquareMeters(sqft)
		surface = &sqm
	}

	if surface == nil {
		disp := first(obj, "display_sqft", "display_square_feet", "display_square_footage")
		if sqft, ok := services.ToFloat(disp); ok {
			sqm := services.SqftToSquareMeters(sqft)
			surface = &sqm
		}
	}

	if surface == nil || *surface == 0 {
		if acres, ok := services.ToFloat(obj["acreage"]); ok {
			sqm := services.AcresToSquareMeters(acres)
			surface = &sqm
		}
	}
	return surface
}
