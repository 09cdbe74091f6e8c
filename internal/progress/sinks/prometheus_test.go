package sinks

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psdocs/doc-harvester/internal/metrics"
	"github.com/psdocs/doc-harvester/internal/progress"
)

func scrape(t *testing.T) string {
	t.Helper()
	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	return rec.Body.String()
}

// The event stream is the sole metrics source, so one event must move each
// collector by exactly one.
func TestConsumeCountsEachMilestoneOnce(t *testing.T) {
	sink := NewPrometheus()
	ctx := context.Background()

	events := []progress.Event{
		{Stage: progress.StageJobStart, JobID: "job-1"},
		{Stage: progress.StagePageSaved, URL: "https://docs.example.com/a", Dur: 10 * time.Millisecond},
		{Stage: progress.StagePageSkipped, URL: "https://docs.example.com/b", Reason: "fetch_error"},
		{Stage: progress.StagePageSkipped, URL: "https://docs.example.com/c"},
		{Stage: progress.StageScriptSaved, URL: "https://docs.example.com/a"},
		{Stage: progress.StageScriptDedup, URL: "https://docs.example.com/a"},
		{Stage: progress.StageScriptError, URL: "https://docs.example.com/a"},
		{Stage: progress.StageSummarizeFallback, URL: "https://docs.example.com/a"},
	}
	for _, evt := range events {
		require.NoError(t, sink.Consume(ctx, evt))
	}

	body := scrape(t)
	assert.Contains(t, body, "harvester_active_jobs 1\n")
	assert.Contains(t, body, `harvester_pages_total{outcome="saved",site="docs.example.com"} 1`+"\n")
	assert.Contains(t, body, `harvester_pages_total{outcome="fetch_error",site="docs.example.com"} 1`+"\n")
	assert.Contains(t, body, `harvester_pages_total{outcome="skipped",site="docs.example.com"} 1`+"\n")
	assert.Contains(t, body, `harvester_scripts_total{outcome="saved"} 1`+"\n")
	assert.Contains(t, body, `harvester_scripts_total{outcome="dedup"} 1`+"\n")
	assert.Contains(t, body, `harvester_scripts_total{outcome="error"} 1`+"\n")
	assert.Contains(t, body, "harvester_summarize_fallback_total 1\n")

	require.NoError(t, sink.Consume(ctx, progress.Event{Stage: progress.StageJobDone, JobID: "job-1"}))
	body = scrape(t)
	assert.Contains(t, body, "harvester_active_jobs 0\n")
	assert.Contains(t, body, `harvester_jobs_total{status="completed"} 1`+"\n")
}
