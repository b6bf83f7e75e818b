package models

import "time"

// TaskState is the lifecycle position of one URL task.
type TaskState int

const (
	TaskPending TaskState = iota
	TaskFetching
	TaskExtracting
	TaskNormalizing
	TaskPersisting
	TaskDone
	TaskSkipped
)

func (s TaskState) String() string {
	switch s {
	case TaskPending:
		return "pending"
	case TaskFetching:
		return "fetching"
	case TaskExtracting:
		return "extracting"
	case TaskNormalizing:
		return "normalizing"
	case TaskPersisting:
		return "persisting"
	case TaskDone:
		return "done"
	case TaskSkipped:
		return "skipped"
	}
	return "unknown"
}

// TaskOutcome is what a worker reports for a single URL. Stage is the last
// stage entered before the task ended; for a skipped task it is the stage
// that failed.
type TaskOutcome struct {
	URL       string
	State     TaskState
	Stage     TaskState
	Duplicate bool
	Listing   *Listing
	Err       error
}

// RunSummary aggregates the outcomes of one scrape run.
type RunSummary struct {
	RunID      string
	Discovered int
	Dispatched int
	Persisted  int
	Duplicates int
	// SkippedByStage counts skipped tasks keyed by the stage they failed in.
	SkippedByStage map[TaskState]int
	StartedAt      time.Time
	FinishedAt     time.Time
	Insights       *InsightReport
}

// InsightReport holds statistics over the listings persisted by a run.
type InsightReport struct {
	TotalListings  int
	RentListings   int
	SaleListings   int
	HouseListings  int
	AveragePrice   float64
	MinPrice       float64
	MaxPrice       float64
	AverageSurface float64
	MostExpensive  *Listing
	// ListingsByCell is keyed by a short geohash prefix (roughly 20km cells).
	ListingsByCell map[string]int
}
