package sinks

import (
	"context"

	"github.com/psdocs/doc-harvester/internal/metrics"
	"github.com/psdocs/doc-harvester/internal/progress"
)

// Prometheus translates progress events into the service's Prometheus
// collectors. The event stream is the only source of crawl and job metrics;
// producers never update the collectors directly.
type Prometheus struct{}

// NewPrometheus builds the sink and ensures the collectors exist.
func NewPrometheus() *Prometheus {
	metrics.Init()
	return &Prometheus{}
}

// Consume updates the collectors for one event.
func (s *Prometheus) Consume(_ context.Context, evt progress.Event) error {
	switch evt.Stage {
	case progress.StageJobStart:
		metrics.IncActiveJobs()
	case progress.StageJobDone:
		metrics.DecActiveJobs()
		metrics.ObserveJob("completed")
	case progress.StageJobError:
		metrics.DecActiveJobs()
		metrics.ObserveJob("error")
	case progress.StageJobCanceled:
		metrics.DecActiveJobs()
		metrics.ObserveJob("canceled")
	case progress.StagePageSaved:
		metrics.ObservePage(evt.URL, "saved", evt.Dur)
	case progress.StagePageSkipped:
		outcome := evt.Reason
		if outcome == "" {
			outcome = "skipped"
		}
		metrics.ObservePage(evt.URL, outcome, evt.Dur)
	case progress.StageScriptSaved:
		metrics.ObserveScript("saved")
	case progress.StageScriptDedup:
		metrics.ObserveScript("dedup")
	case progress.StageScriptError:
		metrics.ObserveScript("error")
	case progress.StageSummarizeFallback:
		metrics.ObserveSummarizeFallback()
	}
	return nil
}

// Close implements progress.Sink.
func (s *Prometheus) Close(context.Context) error {
	return nil
}
