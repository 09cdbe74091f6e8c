// Package progress defines the event stream emitted by the crawl walker and
// fans it out to observability sinks. The job registry's snapshot remains
// the source of truth for API polling; this stream feeds logs and metrics.
package progress

import (
	"errors"
	"fmt"
	"time"
)

// Stage denotes the milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageJobStart          Stage = "JOB_START"
	StageJobDone           Stage = "JOB_DONE"
	StageJobError          Stage = "JOB_ERROR"
	StageJobCanceled       Stage = "JOB_CANCELED"
	StagePageSaved         Stage = "PAGE_SAVED"
	StagePageSkipped       Stage = "PAGE_SKIPPED"
	StageScriptSaved       Stage = "SCRIPT_SAVED"
	StageScriptDedup       Stage = "SCRIPT_DEDUP"
	StageScriptError       Stage = "SCRIPT_ERROR"
	StageSummarizeFallback Stage = "SUMMARIZE_FALLBACK"
)

// Event captures a single milestone of crawl progress.
type Event struct {
	// JobID identifies the job run.
	JobID string
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which milestone occurred.
	Stage Stage
	// URL is the page the milestone refers to, when page-scoped.
	URL string
	// Depth is the crawl depth of the page, when page-scoped.
	Depth int
	// Dur captures fetch latency for page events and total runtime for
	// job-terminal events.
	Dur time.Duration
	// Reason is a bounded outcome token for skip events ("fetch_error",
	// "too_short", ...) suitable as a metric label; free-form detail
	// belongs in Note.
	Reason string
	// Note carries low-volume context such as a skip reason or error text.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.JobID == "" {
		return errors.New("job id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageJobStart, StageJobDone, StageJobError, StageJobCanceled, StageSummarizeFallback:
	case StagePageSaved, StagePageSkipped, StageScriptSaved, StageScriptDedup, StageScriptError:
		if e.URL == "" {
			return fmt.Errorf("stage %s requires a url", e.Stage)
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}
