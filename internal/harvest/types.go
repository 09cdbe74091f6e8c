// Package harvest defines core types shared across the crawl and extraction
// subsystems.
package harvest

import "time"

// JobStatus represents the lifecycle state of a crawl job.
type JobStatus string

// Job status values held in the job registry.
const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusError     JobStatus = "error"
	JobStatusCanceled  JobStatus = "canceled"
)

// IsTerminal reports whether a status admits no further transitions.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusError, JobStatusCanceled:
		return true
	default:
		return false
	}
}

// JobConfig captures the immutable per-job crawl parameters.
type JobConfig struct {
	SeedURL  string `json:"seed_url"`
	MaxPages int    `json:"max_pages"`
	MaxDepth int    `json:"max_depth"`
}

// Progress is the mutable snapshot reported while a job runs. Counters are
// monotonically non-decreasing for the lifetime of a job.
type Progress struct {
	PagesProcessed int    `json:"pages_processed"`
	TotalPages     int    `json:"total_pages"`
	ScriptsFound   int    `json:"scripts_found"`
	ScriptsSaved   int    `json:"scripts_saved"`
	CurrentURL     string `json:"current_url,omitempty"`
	Stage          string `json:"stage,omitempty"`
}

// Result aggregates what a finished job actually persisted.
type Result struct {
	DocumentsSaved int `json:"documents_saved"`
	ScriptsFound   int `json:"scripts_found"`
	ScriptsSaved   int `json:"scripts_saved"`
}

// Job is the full lifecycle record for one crawl request. Records live only
// in process memory and may be evicted after a TTL.
type Job struct {
	ID        string     `json:"id"`
	Status    JobStatus  `json:"status"`
	Config    JobConfig  `json:"config"`
	Progress  Progress   `json:"progress"`
	Created   time.Time  `json:"created_at"`
	Started   *time.Time `json:"started_at,omitempty"`
	Finished  *time.Time `json:"finished_at,omitempty"`
	Canceled  bool       `json:"canceled"`
	Result    *Result    `json:"result,omitempty"`
	ErrorText string     `json:"error,omitempty"`
}

// Document is built while walking a single page and then persisted. URL is
// the natural key: unique within a run via the visited set, global via the
// DocumentStore's upsert semantics.
type Document struct {
	ID          string    `json:"id,omitempty"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Content     string    `json:"content"`
	Summary     string    `json:"summary"`
	Source      string    `json:"source"`
	Category    string    `json:"category"`
	Tags        []string  `json:"tags"`
	Commands    []string  `json:"extracted_commands"`
	Modules     []string  `json:"extracted_modules"`
	CrawlDepth  int       `json:"crawled_depth"`
	Insights    []string  `json:"ai_insights"`
	CodeExample string    `json:"code_example,omitempty"`
	ScriptIDs   []string  `json:"saved_script_ids"`
	CrawledAt   time.Time `json:"crawled_at"`
}

// Script is one extracted code sample, deduplicated globally by Hash before
// it is persisted.
type Script struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Code        string `json:"code"`
	Hash        string `json:"hash"`
	SourceURL   string `json:"source_url"`
}

// FetchRequest captures everything needed to fetch one page.
type FetchRequest struct {
	JobID string
	URL   string
	Depth int
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
}
