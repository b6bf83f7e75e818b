package services

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"realestate-scraper/models"
	"realestate-scraper/utils"
)

const cellPrecision = 4

type InsightService struct {
	logger *utils.Logger
}

func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger}
}

func (s *InsightService) Generate(listings []*models.Listing) *models.InsightReport {
	report := &models.InsightReport{
		ListingsByCell: make(map[string]int),
	}

	if len(listings) == 0 {
		return report
	}

	report.TotalListings = len(listings)

	var priced []*models.Listing
	var surfaceTotal float64
	var surfaceCount int

	for _, l := range listings {
		switch l.ListingType {
		case models.ListingRent:
			report.RentListings++
		case models.ListingSale:
			report.SaleListings++
		}
		if l.PropertyType == models.PropertyHouse {
			report.HouseListings++
		}
		if l.Price != nil && *l.Price > 0 {
			priced = append(priced, l)
		}
		if l.SurfaceSqm != nil && *l.SurfaceSqm > 0 {
			surfaceTotal += *l.SurfaceSqm
			surfaceCount++
		}
		if len(l.Geohash) >= cellPrecision {
			report.ListingsByCell[l.Geohash[:cellPrecision]]++
		}
	}

	// Price stats (only listings with a positive price)
	if len(priced) > 0 {
		report.MinPrice = *priced[0].Price
		report.MaxPrice = *priced[0].Price
		report.MostExpensive = priced[0]
		var total float64
		for _, l := range priced {
			p := *l.Price
			total += p
			if p < report.MinPrice {
				report.MinPrice = p
			}
			if p > report.MaxPrice {
				report.MaxPrice = p
				report.MostExpensive = l
			}
		}
		report.AveragePrice = round2(total / float64(len(priced)))
		report.MinPrice = round2(report.MinPrice)
		report.MaxPrice = round2(report.MaxPrice)
	}

	if surfaceCount > 0 {
		report.AverageSurface = round2(surfaceTotal / float64(surfaceCount))
	}

	s.logger.Debug("[insights] %d listings: %d rent, %d sale, %d priced",
		report.TotalListings, report.RentListings, report.SaleListings, len(priced))
	return report
}

// Print writes the end-of-run summary to w.
func (s *InsightService) Print(w io.Writer, sum *models.RunSummary) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  LISTING SCRAPE SUMMARY\033[0m\n")
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	fmt.Fprintf(w, "\033[1;33m  Run\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Run ID           : %s\n", sum.RunID)
	fmt.Fprintf(w, "  URLs discovered  : \033[1m%d\033[0m\n", sum.Discovered)
	fmt.Fprintf(w, "  Records persisted: \033[1m%d/%d\033[0m dispatched\n", sum.Persisted, sum.Dispatched)
	if sum.Duplicates > 0 {
		fmt.Fprintf(w, "  Duplicates       : %d\n", sum.Duplicates)
	}
	if !sum.FinishedAt.IsZero() {
		fmt.Fprintf(w, "  Duration         : %s\n", sum.FinishedAt.Sub(sum.StartedAt).Round(1e6))
	}
	if len(sum.SkippedByStage) > 0 {
		stages := make([]models.TaskState, 0, len(sum.SkippedByStage))
		for st := range sum.SkippedByStage {
			stages = append(stages, st)
		}
		sort.Slice(stages, func(i, j int) bool { return stages[i] < stages[j] })
		for _, st := range stages {
			fmt.Fprintf(w, "  Skipped at %-12s: %d\n", st, sum.SkippedByStage[st])
		}
	}
	fmt.Fprintln(w)

	r := sum.Insights
	if r == nil || r.TotalListings == 0 {
		fmt.Fprintf(w, "  No listings persisted\n\n\033[1;35m%s\033[0m\n\n", sep)
		return
	}

	fmt.Fprintf(w, "\033[1;33m  Listings\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Rent / Sale : %d / %d\n", r.RentListings, r.SaleListings)
	fmt.Fprintf(w, "  Houses      : %d\n", r.HouseListings)
	if r.AverageSurface > 0 {
		fmt.Fprintf(w, "  Avg surface : %.2f m²\n", r.AverageSurface)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Price Statistics\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if r.AveragePrice > 0 {
		fmt.Fprintf(w, "  Average price : \033[1;32m%.2f\033[0m\n", r.AveragePrice)
		fmt.Fprintf(w, "  Minimum price : \033[1;32m%.2f\033[0m\n", r.MinPrice)
		fmt.Fprintf(w, "  Maximum price : \033[1;32m%.2f\033[0m\n", r.MaxPrice)
	} else {
		fmt.Fprintf(w, "  No price data available\n")
	}
	if r.MostExpensive != nil {
		fmt.Fprintf(w, "  Most expensive: %s\n", truncate(r.MostExpensive.Title, 50))
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Busiest Areas (geohash cells)\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.ListingsByCell) == 0 {
		fmt.Fprintf(w, "  No location data\n")
	} else {
		type cellCount struct {
			cell  string
			count int
		}
		var cells []cellCount
		for cell, cnt := range r.ListingsByCell {
			cells = append(cells, cellCount{cell, cnt})
		}
		sort.Slice(cells, func(i, j int) bool {
			if cells[i].count == cells[j].count {
				return cells[i].cell < cells[j].cell
			}
			return cells[i].count > cells[j].count
		})
		if len(cells) > 5 {
			cells = cells[:5]
		}
		for _, cc := range cells {
			bar := strings.Repeat("█", min(cc.count, 40))
			fmt.Fprintf(w, "  %-8s %s (%d)\n", cc.cell, bar, cc.count)
		}
	}

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
