package c21

import (
	"bytes"
	"context"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/temoto/robotstxt"

	"realestate-scraper/models"
	"realestate-scraper/scraper/fetch"
	"realestate-scraper/utils"
)

const (
	listingPathMarker = "/listing/"
	maxSitemapDepth   = 3
)

var listingSitemapRe = regexp.MustCompile(`(?i)sitemap.*listings.*\.xml$`)

// DiscoverOptions bounds a discovery pass.
type DiscoverOptions struct {
	// Limit caps the number of listing URLs. Zero or less means no cap.
	Limit int
	// RespectRobots reads robots.txt for extra site-maps and drops
	// listing URLs disallowed for UserAgent.
	RespectRobots bool
	UserAgent     string
}

// Discoverer walks a site-map tree collecting listing URLs.
type Discoverer struct {
	fetcher fetch.Fetcher
	opts    DiscoverOptions
	logger  *utils.Logger
}

// NewDiscoverer creates a Discoverer reading documents through fetcher.
func NewDiscoverer(fetcher fetch.Fetcher, opts DiscoverOptions, logger *utils.Logger) *Discoverer {
	return &Discoverer{fetcher: fetcher, opts: opts, logger: logger}
}

// discovery is the state of one Discover call.
type discovery struct {
	seen     *utils.URLSet
	visited  *utils.URLSet
	robots   *robotstxt.Group
	entries  []models.SiteMapEntry
	limit    int
	children int
}

func (d *discovery) full() bool {
	return d.limit > 0 && len(d.entries) >= d.limit
}

// Discover returns the de-duplicated listing URLs reachable from rootURL,
// in site-map order. A site-map that cannot be fetched or parsed is
// logged and skipped; Discover itself never fails.
func (d *Discoverer) Discover(ctx context.Context, rootURL string) []models.SiteMapEntry {
	st := &discovery{
		seen:    utils.NewURLSet(),
		visited: utils.NewURLSet(),
		limit:   d.opts.Limit,
	}

	roots := []string{rootURL}
	if d.opts.RespectRobots {
		if robots := d.loadRobots(ctx, rootURL); robots != nil {
			st.robots = robots.FindGroup(d.opts.UserAgent)
			for _, sm := range robots.Sitemaps {
				if sm != rootURL {
					roots = append(roots, sm)
				}
			}
		}
	}

	for _, root := range roots {
		if st.full() || ctx.Err() != nil {
			break
		}
		d.walk(ctx, st, root, 0)
	}

	if st.full() {
		d.logger.Info("[sitemap] %d URLs found (limit reached)", len(st.entries))
	} else {
		d.logger.Info("[sitemap] %d URLs found in %d listing site-maps", len(st.entries), st.children)
	}
	return st.entries
}

func (d *Discoverer) walk(ctx context.Context, st *discovery, smURL string, depth int) {
	if !st.visited.Add(smURL) {
		return
	}

	body, err := d.fetcher.Fetch(ctx, smURL)
	if err != nil {
		d.logger.Warn("[sitemap] Skipping %s: %v", smURL, err)
		return
	}
	doc, err := xmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		d.logger.Warn("[sitemap] Skipping %s: malformed xml: %v", smURL, err)
		return
	}

	if xmlquery.FindOne(doc, "//sitemapindex") != nil {
		if depth >= maxSitemapDepth {
			d.logger.Warn("[sitemap] Not descending into %s: depth %d reached", smURL, depth)
			return
		}

		var children []string
		for _, n := range xmlquery.Find(doc, "//sitemap/loc") {
			if loc := strings.TrimSpace(n.InnerText()); listingSitemapRe.MatchString(loc) {
				children = append(children, loc)
			}
		}
		sort.Strings(children)

		for _, child := range children {
			if st.full() || ctx.Err() != nil {
				return
			}
			d.logger.Info("[sitemap] %s", child)
			d.walk(ctx, st, child, depth+1)
		}
		return
	}

	st.children++
	for _, n := range xmlquery.Find(doc, "//url/loc") {
		pageURL := strings.TrimSpace(n.InnerText())
		if !strings.Contains(pageURL, listingPathMarker) || !d.allowed(st, pageURL) {
			continue
		}
		if !st.seen.Add(pageURL) {
			continue
		}
		st.entries = append(st.entries, models.SiteMapEntry{URL: pageURL, Sitemap: smURL})
		if st.full() {
			return
		}
	}
}

func (d *Discoverer) allowed(st *discovery, pageURL string) bool {
	if st.robots == nil {
		return true
	}
	u, err := url.Parse(pageURL)
	if err != nil {
		return false
	}
	return st.robots.Test(u.Path)
}

// loadRobots reads robots.txt from the origin of rootURL. A missing or
// unreadable file disables the check.
func (d *Discoverer) loadRobots(ctx context.Context, rootURL string) *robotstxt.RobotsData {
	u, err := url.Parse(rootURL)
	if err != nil || u.Host == "" {
		return nil
	}
	robotsURL := u.Scheme + "://" + u.Host + "/robots.txt"

	body, err := d.fetcher.Fetch(ctx, robotsURL)
	if err != nil {
		d.logger.Warn("[sitemap] robots.txt unavailable at %s: %v", robotsURL, err)
		return nil
	}
	robots, err := robotstxt.FromBytes(body)
	if err != nil {
		d.logger.Warn("[sitemap] robots.txt at %s unparseable: %v", robotsURL, err)
		return nil
	}
	return robots
}
