package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeSite(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"https://Docs.Example.COM/path", "docs.example.com"},
		{"docs.example.com/path", "docs.example.com"},
		{"http://localhost:8080/x", "localhost"},
		{"::::", "unknown"},
		{"", "unknown"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, SanitizeSite(tc.in), tc.in)
	}
}

func TestHandlerServesMetrics(t *testing.T) {
	Init()
	ObservePage("https://docs.example.com/a", "saved", 120*time.Millisecond)
	ObserveScript("saved")
	ObserveScript("dedup")
	ObserveSummarizeFallback()
	ObserveJob("completed")
	IncActiveJobs()
	DecActiveJobs()
	ObserveHTTPRequest("GET", "/v1/crawl/jobs/{id}", 200, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	assert.Contains(t, body, "harvester_pages_total")
	assert.Contains(t, body, "harvester_scripts_total")
	assert.Contains(t, body, "harvester_jobs_total")
}
