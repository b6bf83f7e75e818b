package c21

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"realestate-scraper/models"
	"realestate-scraper/scraper/fetch"
	"realestate-scraper/services"
	"realestate-scraper/storage"
	"realestate-scraper/utils"
)

// Sink persists one finished listing.
type Sink interface {
	Insert(ctx context.Context, l *models.Listing) error
}

// Options tunes a run.
type Options struct {
	RunID      string
	SitemapURL string
	// Concurrency is the number of pages processed at once.
	Concurrency int
	// MinInterval spaces out task starts across all workers. Zero disables it.
	MinInterval time.Duration
}

// Scraper drives discovery and the fetch, extract, normalize, persist
// pipeline for every discovered listing.
type Scraper struct {
	opts       Options
	discoverer *Discoverer
	fetcher    fetch.Fetcher
	extractor  *Extractor
	cleaner    *services.Cleaner
	insights   *services.InsightService
	sink       Sink
	logger     *utils.Logger
}

// New wires a Scraper from its collaborators.
func New(
	opts Options,
	discoverer *Discoverer,
	fetcher fetch.Fetcher,
	extractor *Extractor,
	cleaner *services.Cleaner,
	sink Sink,
	logger *utils.Logger,
) *Scraper {
	return &Scraper{
		opts:       opts,
		discoverer: discoverer,
		fetcher:    fetcher,
		extractor:  extractor,
		cleaner:    cleaner,
		insights:   services.NewInsightService(logger),
		sink:       sink,
		logger:     logger,
	}
}

// Run discovers listing URLs, processes them on a bounded pool and returns
// the aggregated summary. Task failures never abort the run; the returned
// error is only set when ctx ended the run early.
func (s *Scraper) Run(ctx context.Context) (*models.RunSummary, error) {
	summary := &models.RunSummary{
		RunID:          s.opts.RunID,
		SkippedByStage: make(map[models.TaskState]int),
		StartedAt:      time.Now().UTC(),
	}

	s.logger.Info("[c21] Discovering listings from %s", s.opts.SitemapURL)
	entries := s.discoverer.Discover(ctx, s.opts.SitemapURL)
	summary.Discovered = len(entries)
	s.logger.Info("[c21] URLs listed: %d", len(entries))

	pool := utils.NewWorkerPool(s.opts.Concurrency, s.opts.MinInterval)

	var (
		mu       sync.Mutex
		outcomes = make([]models.TaskOutcome, 0, len(entries))
	)
	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		pool.Submit(func() {
			out := s.runTask(ctx, entry)
			mu.Lock()
			outcomes = append(outcomes, out)
			mu.Unlock()
		})
	}
	pool.Wait()

	persisted := make([]*models.Listing, 0, len(outcomes))
	for _, out := range outcomes {
		summary.Dispatched++
		switch {
		case out.State == models.TaskDone:
			summary.Persisted++
			persisted = append(persisted, out.Listing)
		case out.Duplicate:
			summary.Duplicates++
		default:
			summary.SkippedByStage[out.Stage]++
		}
	}
	summary.Insights = s.insights.Generate(persisted)
	summary.FinishedAt = time.Now().UTC()

	s.logger.Info("[c21] %d/%d listings saved (%d duplicates) in %v",
		summary.Persisted, summary.Dispatched, summary.Duplicates,
		summary.FinishedAt.Sub(summary.StartedAt).Round(time.Millisecond))

	if err := ctx.Err(); err != nil {
		return summary, fmt.Errorf("c21: run interrupted: %w", err)
	}
	return summary, nil
}

// runTask moves one URL through the pipeline. It always returns an outcome;
// a panic inside any stage is turned into a skip.
func (s *Scraper) runTask(ctx context.Context, entry models.SiteMapEntry) (out models.TaskOutcome) {
	out = models.TaskOutcome{URL: entry.URL, State: models.TaskPending, Stage: models.TaskPending}
	log := s.logger.With("url", entry.URL)

	defer func() {
		if r := recover(); r != nil {
			out.State = models.TaskSkipped
			out.Err = fmt.Errorf("panic in %s: %v", out.Stage, r)
			log.Error("[task] %v", out.Err)
		}
	}()

	skip := func(err error) models.TaskOutcome {
		out.State = models.TaskSkipped
		out.Err = err
		log.Warn("[task] Skipped at %s: %v", out.Stage, err)
		return out
	}
	enter := func(stage models.TaskState) {
		out.Stage, out.State = stage, stage
		log.Debug("[task] %s", stage)
	}

	enter(models.TaskFetching)
	body, err := s.fetcher.Fetch(ctx, entry.URL)
	if err != nil {
		return skip(err)
	}

	enter(models.TaskExtracting)
	raw, err := s.extractor.Extract(body, entry.URL)
	if err != nil {
		return skip(err)
	}

	enter(models.TaskNormalizing)
	listing := s.cleaner.Normalize(raw, entry.URL)
	out.Listing = listing

	enter(models.TaskPersisting)
	if err := s.sink.Insert(ctx, listing); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			out.Duplicate = true
			out.State = models.TaskSkipped
			out.Err = err
			log.Debug("[task] Already stored")
			return out
		}
		return skip(err)
	}

	enter(models.TaskDone)
	return out
}
