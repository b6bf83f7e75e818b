package services

import (
	"strings"
	"time"
	"unicode"

	"github.com/mmcloughlin/geohash"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"realestate-scraper/models"
	"realestate-scraper/utils"
)

// Cleaner turns a merged RawExtraction into a finished Listing.
type Cleaner struct {
	logger *utils.Logger
	source string
	runID  string
	now    func() time.Time
}

// NewCleaner creates a Cleaner stamping records with source and runID.
func NewCleaner(logger *utils.Logger, source, runID string) *Cleaner {
	return &Cleaner{
		logger: logger,
		source: source,
		runID:  runID,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Normalize builds the immutable record for one page. pageURL is used when
// the extraction did not find a canonical URL.
func (c *Cleaner) Normalize(raw *models.RawExtraction, pageURL string) *models.Listing {
	if raw == nil {
		raw = &models.RawExtraction{}
	}

	l := &models.Listing{
		RunID:        c.runID,
		Source:       c.source,
		URL:          strings.TrimSpace(raw.URL),
		Title:        normaliseText(raw.Title),
		Price:        nonNegative(raw.Price),
		Address:      normaliseText(raw.Address),
		SurfaceSqm:   nonNegative(raw.SurfaceSqm),
		Rooms:        raw.Rooms,
		PropertyType: raw.PropertyType,
		Latitude:     raw.Latitude,
		Longitude:    raw.Longitude,
		Description:  strings.TrimSpace(raw.Description),
		Features:     normaliseFeatures(raw.Features),
		ScrapedAt:    c.now(),
	}

	if l.URL == "" {
		l.URL = pageURL
	}
	if l.PropertyType == "" {
		l.PropertyType = models.PropertyApartment
	}
	if l.Rooms != nil && *l.Rooms < 0 {
		c.logger.Debug("[cleaner] Dropping negative room count %d for %s", *l.Rooms, l.URL)
		l.Rooms = nil
	}
	if !validCoordinates(l.Latitude, l.Longitude) {
		l.Latitude, l.Longitude = nil, nil
	} else if l.Latitude != nil {
		l.Geohash = geohash.Encode(*l.Latitude, *l.Longitude)
	}

	l.ListingType = ClassifyListing(l.Title, l.Description, l.URL, l.Price)
	return l
}

func nonNegative(f *float64) *float64 {
	if f == nil || *f < 0 {
		return nil
	}
	v := *f
	return &v
}

// validCoordinates accepts a complete, in-range pair or no pair at all.
func validCoordinates(lat, lon *float64) bool {
	if lat == nil && lon == nil {
		return true
	}
	if lat == nil || lon == nil {
		return false
	}
	return *lat >= -90 && *lat <= 90 && *lon >= -180 && *lon <= 180
}

// normaliseFeatures lower-cases, trims and de-duplicates tags, keeping
// first-seen order. The result is never nil.
func normaliseFeatures(in []string) []string {
	lower := cases.Lower(language.Und)
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, f := range in {
		f = lower.String(strings.TrimSpace(f))
		if f == "" {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r)
	})
	return strings.Join(fields, " ")
}
