package storage

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"realestate-scraper/models"
)

var csvHeader = []string{
	"run_id", "source", "title", "price", "address", "surface_sqm", "rooms",
	"property_type", "latitude", "longitude", "geohash", "description",
	"features", "url", "listing_type", "scraped_at",
}

// CSVWriter appends listings to a CSV file as they are inserted.
// It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// NewCSVWriter opens the CSV file at the given path for appending and writes
// the header row when the file is new. Intermediate directories are created
// automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("csv: open file %q: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: stat %q: %w", path, err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(csvHeader); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("csv: write header: %w", err)
		}
		w.Flush()
	}

	return &CSVWriter{file: f, writer: w}, nil
}

// Insert appends one row and flushes it.
func (c *CSVWriter) Insert(_ context.Context, l *models.Listing) error {
	row := []string{
		l.RunID,
		l.Source,
		l.Title,
		formatFloat(l.Price),
		l.Address,
		formatFloat(l.SurfaceSqm),
		formatInt(l.Rooms),
		string(l.PropertyType),
		formatFloat(l.Latitude),
		formatFloat(l.Longitude),
		l.Geohash,
		l.Description,
		strings.Join(l.Features, "|"),
		l.URL,
		string(l.ListingType),
		l.ScrapedAt.Format(time.RFC3339),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.writer.Write(row); err != nil {
		return fmt.Errorf("csv: write row: %w", err)
	}
	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writer.Flush()
	return c.file.Close()
}

func formatFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

func formatInt(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}
