package services

import (
	"strings"

	"realestate-scraper/models"
)

// Price bands used by ClassifyListing. Anything in between is decided by
// text signals.
const (
	RentPriceCeiling = 10000
	SalePriceFloor   = 100000
)

// rentTokens are matched as substrings of the padded, lower-cased text.
// The leading space on " lease" keeps "please" out.
var rentTokens = []string{"for rent", " rent ", "rental", " lease", "per month", "/mo"}

// ClassifyListing decides rent vs sale. A clear price wins; otherwise rent
// wording in the title, description or URL marks a rental; the default is
// sale.
func ClassifyListing(title, description, url string, price *float64) models.ListingType {
	if price != nil {
		p := *price
		if p < RentPriceCeiling {
			return models.ListingRent
		}
		if p >= SalePriceFloor {
			return models.ListingSale
		}
	}

	text := " " + strings.ToLower(title+" "+description) + " "
	for _, tok := range rentTokens {
		if strings.Contains(text, tok) {
			return models.ListingRent
		}
	}
	// The URL only counts as a path segment; "/mo" would match "/montreal".
	u := strings.ToLower(url)
	if strings.Contains(u, "/rent") || strings.Contains(u, "/lease") {
		return models.ListingRent
	}
	return models.ListingSale
}

var houseKeywords = []string{"single", "residential", "bungalow", "house"}

// ClassifyProperty maps a free-form property type or title to a category.
func ClassifyProperty(s string) models.PropertyType {
	lower := strings.ToLower(s)
	for _, k := range houseKeywords {
		if strings.Contains(lower, k) {
			return models.PropertyHouse
		}
	}
	return models.PropertyApartment
}
