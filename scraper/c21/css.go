package c21

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"realestate-scraper/models"
	"realestate-scraper/services"
)

const (
	priceSelector       = ".price span, .price-value, [class*='price'] span"
	addressSelector     = "[class*='address'], .address-block, .listing-address"
	descriptionSelector = ".description, [class*='description'], .remarks, .listing-description"
	infoValueSelector   = "span[class*='listing-info-item-value']"
	mapsFrameSelector   = "iframe[src*='google.com/maps']"
)

var (
	bedsLabelRe = regexp.MustCompile(`(?i)^BED(S)?|BEDROOMS?$`)
	areaLabelRe = regexp.MustCompile(`(?i)SQFT|AREA|SIZE`)
	lotLabelRe  = regexp.MustCompile(`(?i)LOT\s*SIZE|ACREAGE|LOT\s*AREA`)
	acreRe      = regexp.MustCompile(`(?i)acre`)
	mapsCoordRe = regexp.MustCompile(`!3d(-?\d+(?:\.\d+)?)!4d(-?\d+(?:\.\d+)?)`)
)

// extractCSS reads what it can from the rendered markup. It never fails;
// a page without any of the expected nodes yields an empty record.
func extractCSS(doc *goquery.Document) (*models.RawExtraction, error) {
	r := &models.RawExtraction{}

	if h1 := doc.Find("h1").First(); h1.Length() > 0 {
		r.Title = strings.TrimSpace(h1.Text())
	}

	if node := doc.Find(priceSelector).First(); node.Length() > 0 {
		r.Price = services.ParsePrice(strings.TrimSpace(node.Text()))
	}

	if node := doc.Find(addressSelector).First(); node.Length() > 0 {
		r.Address = joinText(node, " ")
	}

	if beds, ok := infoValue(doc, bedsLabelRe, nil); ok {
		if digits := nonDigitRe.ReplaceAllString(beds, ""); digits != "" {
			if n, err := strconv.Atoi(digits); err == nil {
				r.Rooms = intPtr(n)
			}
		}
	}

	if area, ok := infoValue(doc, areaLabelRe, lotLabelRe); ok {
		if sqft, ok := services.ToFloat(area); ok {
			sqm := services.SqftToSquareMeters(sqft)
			r.SurfaceSqm = &sqm
		}
	}
	if r.SurfaceSqm == nil {
		if lot, ok := infoValue(doc, lotLabelRe, nil); ok && acreRe.MatchString(lot) {
			if acres, ok := services.ToFloat(lot); ok {
				sqm := services.AcresToSquareMeters(acres)
				r.SurfaceSqm = &sqm
			}
		}
	}

	if node := doc.Find(descriptionSelector).First(); node.Length() > 0 {
		r.Description = joinText(node, "\n")
	}

	if src, ok := doc.Find(mapsFrameSelector).First().Attr("src"); ok {
		if m := mapsCoordRe.FindStringSubmatch(src); m != nil {
			r.Latitude = services.FloatPtr(m[1])
			r.Longitude = services.FloatPtr(m[2])
		}
	}

	return r, nil
}

// infoValue finds the first span whose text matches label, and not
// exclude when given, and returns the value span sitting next to it under
// the same parent.
func infoValue(doc *goquery.Document, label, exclude *regexp.Regexp) (string, bool) {
	var value string
	found := false
	doc.Find("span").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.Children().Length() > 0 || s.Is(infoValueSelector) {
			return true
		}
		t := strings.TrimSpace(s.Text())
		if !label.MatchString(t) || (exclude != nil && exclude.MatchString(t)) {
			return true
		}
		val := s.Parent().Find(infoValueSelector).First()
		if val.Length() > 0 {
			value, found = strings.TrimSpace(val.Text()), true
		}
		return false
	})
	return value, found
}

// joinText joins the trimmed, non-empty text nodes under the first node of
// sel with sep. Script and style contents are skipped.
func joinText(sel *goquery.Selection, sep string) string {
	if sel.Length() == 0 {
		return ""
	}

	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
			return
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(sel.Get(0))
	return strings.Join(parts, sep)
}
