package models

import "time"

// ListingType is the side of the market a listing belongs to.
type ListingType string

const (
	ListingRent ListingType = "rent"
	ListingSale ListingType = "sale"
)

// PropertyType is the coarse building category of a listing.
type PropertyType string

const (
	PropertyApartment PropertyType = "apartment"
	PropertyHouse     PropertyType = "house"
)

// RawExtraction is the sparse field bag produced by one extraction strategy.
// Empty strings, empty slices and nil pointers all mean "not known yet";
// an explicit zero behind a pointer is a known value.
type RawExtraction struct {
	Title        string
	URL          string
	Address      string
	Description  string
	Price        *float64
	SurfaceSqm   *float64
	Latitude     *float64
	Longitude    *float64
	Rooms        *int
	PropertyType PropertyType
	Features     []string
}

// Listing is the finished, normalized record handed to a storage sink.
// SurfaceSqm is always in square meters and ListingType is always set.
type Listing struct {
	RunID        string
	Source       string
	URL          string
	Title        string
	Price        *float64
	Address      string
	SurfaceSqm   *float64
	Rooms        *int
	PropertyType PropertyType
	Latitude     *float64
	Longitude    *float64
	Geohash      string
	Description  string
	Features     []string
	ListingType  ListingType
	ScrapedAt    time.Time
}

// SiteMapEntry is a discovered listing URL and the site-map it came from.
type SiteMapEntry struct {
	URL     string
	Sitemap string
}
