// Package c21 scrapes Century 21 listing pages: site-map discovery, the
// three extraction strategies and the per-URL pipeline that ties them to a
// fetcher and a storage sink.
package c21

import (
	"bytes"
	"fmt"
	"reflect"

	"github.com/PuerkitoBio/goquery"

	"realestate-scraper/models"
	"realestate-scraper/utils"
)

// Strategy is one independent way of reading listing fields from a page.
// It returns a sparse record; unset fields are left zero.
type Strategy struct {
	Name    string
	Extract func(doc *goquery.Document) (*models.RawExtraction, error)
}

// DefaultStrategies lists the strategies in trust order: the in-page Wx
// payload, then linked-data blocks, then DOM selectors.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: "wx", Extract: extractWx},
		{Name: "jsonld", Extract: extractJSONLD},
		{Name: "css", Extract: extractCSS},
	}
}

// Extractor runs strategies in order and merges their output.
type Extractor struct {
	strategies []Strategy
	logger     *utils.Logger
}

// NewExtractor creates an Extractor. With no strategies given it uses
// DefaultStrategies.
func NewExtractor(logger *utils.Logger, strategies ...Strategy) *Extractor {
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}
	return &Extractor{strategies: strategies, logger: logger}
}

// Extract parses page and returns the merged record with defaults applied.
// A failing strategy is logged and skipped. A page where no strategy found
// anything still yields a record carrying only the defaults.
func (e *Extractor) Extract(page []byte, pageURL string) (*models.RawExtraction, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("c21: parse html: %w", err)
	}

	merged := &models.RawExtraction{}
	for _, s := range e.strategies {
		part, err := s.Extract(doc)
		if err != nil {
			e.logger.Debug("[extract] %s strategy failed for %s: %v", s.Name, pageURL, err)
			continue
		}
		Merge(merged, part)
	}

	if isEmpty(merged) {
		e.logger.Warn("[extract] nothing extracted from %s, keeping defaults only", pageURL)
	}

	applyDefaults(merged, pageURL)
	return merged, nil
}

// Merge copies every field of src into dst that dst does not know yet.
// Nil pointers, empty strings and empty slices or maps count as unknown;
// a zero behind a pointer is a known value and is never overwritten.
func Merge(dst, src *models.RawExtraction) {
	if dst == nil || src == nil {
		return
	}

	dv := reflect.ValueOf(dst).Elem()
	sv := reflect.ValueOf(src).Elem()
	for i := 0; i < dv.NumField(); i++ {
		df, sf := dv.Field(i), sv.Field(i)
		if absent(df) && !absent(sf) {
			df.Set(sf)
		}
	}
}

func absent(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		return v.IsNil()
	case reflect.String, reflect.Slice, reflect.Map:
		return v.Len() == 0
	}
	return false
}

func isEmpty(r *models.RawExtraction) bool {
	v := reflect.ValueOf(r).Elem()
	for i := 0; i < v.NumField(); i++ {
		if !absent(v.Field(i)) {
			return false
		}
	}
	return true
}

func applyDefaults(r *models.RawExtraction, pageURL string) {
	if r.URL == "" {
		r.URL = pageURL
	}
	if r.PropertyType == "" {
		r.PropertyType = models.PropertyApartment
	}
	if r.Features == nil {
		r.Features = []string{}
	}
}
