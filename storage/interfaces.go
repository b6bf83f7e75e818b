package storage

import (
	"context"
	"errors"

	"realestate-scraper/models"
)

// ErrDuplicate is returned by a de-duplicating writer for a listing URL it
// has already stored.
var ErrDuplicate = errors.New("storage: listing already stored")

// ListingWriter is the interface any storage backend must satisfy.
// Insert is called concurrently by every worker.
type ListingWriter interface {
	Insert(ctx context.Context, l *models.Listing) error
	Close() error
}

// MultiWriter fans every insert out to several writers in order. The first
// failing writer stops the insert.
type MultiWriter struct {
	writers []ListingWriter
}

// NewMultiWriter combines writers into one.
func NewMultiWriter(writers ...ListingWriter) *MultiWriter {
	return &MultiWriter{writers: writers}
}

func (m *MultiWriter) Insert(ctx context.Context, l *models.Listing) error {
	for _, w := range m.writers {
		if err := w.Insert(ctx, l); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every writer and returns the joined errors.
func (m *MultiWriter) Close() error {
	var errs []error
	for _, w := range m.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
