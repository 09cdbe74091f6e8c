package walker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/psdocs/doc-harvester/internal/dedup"
	"github.com/psdocs/doc-harvester/internal/extract"
	"github.com/psdocs/doc-harvester/internal/harvest"
	"github.com/psdocs/doc-harvester/internal/hash/md5"
	"github.com/psdocs/doc-harvester/internal/progress"
	"github.com/psdocs/doc-harvester/internal/storage/memory"
	"github.com/psdocs/doc-harvester/internal/summarize"
)

type stubFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	fail  map[string]bool
	calls []string
}

func (f *stubFetcher) Fetch(_ context.Context, req harvest.FetchRequest) (harvest.FetchResponse, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req.URL)
	f.mu.Unlock()

	if f.fail[req.URL] {
		return harvest.FetchResponse{}, errors.New("connection reset")
	}
	body, ok := f.pages[req.URL]
	if !ok {
		return harvest.FetchResponse{}, errors.New("status 404")
	}
	return harvest.FetchResponse{
		URL:        req.URL,
		StatusCode: 200,
		Body:       []byte(body),
		Duration:   5 * time.Millisecond,
	}, nil
}

func (f *stubFetcher) fetchCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, call := range f.calls {
		if call == url {
			n++
		}
	}
	return n
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type captureEmitter struct {
	mu     sync.Mutex
	events []progress.Event
}

func (e *captureEmitter) Emit(evt progress.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, evt)
}

func (e *captureEmitter) stages() []progress.Stage {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]progress.Stage, 0, len(e.events))
	for _, evt := range e.events {
		out = append(out, evt.Stage)
	}
	return out
}

// pageHTML builds a documentation page with enough prose to clear the
// minimum content threshold.
func pageHTML(title, code string, links ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<html><head><title>%s</title></head><body><main>", title)
	b.WriteString("<h1>" + title + "</h1>")
	b.WriteString("<p>This reference page explains how administrators automate routine tasks. ")
	b.WriteString("It covers parameter binding, pipeline input, and common error handling patterns ")
	b.WriteString("used across production automation scripts.</p>")
	if code != "" {
		b.WriteString("<pre>" + code + "</pre>")
	}
	for i, link := range links {
		fmt.Fprintf(&b, `<a href="%s">link %d</a>`, link, i)
	}
	b.WriteString("</main></body></html>")
	return b.String()
}

const (
	seedURL   = "https://docs.example.com/a"
	pageB     = "https://docs.example.com/b"
	pageC     = "https://docs.example.com/c"
	crossSite = "https://other.example.com/d"
	scriptA   = `Get-Process | Where-Object { $_.CPU -gt 10 } | Format-Table -AutoSize`
	scriptBC  = `Get-Something -Name "demo" | ConvertTo-Json -Depth 3`
	shortBody = "<html><body><main><p>tiny</p></main></body></html>"
	testJobID = "job-1"
)

type testEnv struct {
	walker    *Walker
	fetcher   *stubFetcher
	documents *memory.DocumentStore
	scripts   *memory.ScriptStore
	emitter   *captureEmitter
}

func newTestEnv(pages map[string]string) *testEnv {
	fetcher := &stubFetcher{pages: pages, fail: map[string]bool{}}
	documents := memory.NewDocumentStore()
	scripts := memory.NewScriptStore()
	emitter := &captureEmitter{}

	w := New(
		fetcher,
		extract.New(),
		summarize.NewAdapter(nil, zap.NewNop()),
		dedup.New(scripts, md5.New(), zap.NewNop()),
		documents,
		memory.NewSnapshotStore(),
		fixedClock{t: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)},
		emitter,
		zap.NewNop(),
		Config{},
	)
	return &testEnv{walker: w, fetcher: fetcher, documents: documents, scripts: scripts, emitter: emitter}
}

func TestWalkSavesDocumentsAndDedupsScripts(t *testing.T) {
	t.Parallel()

	env := newTestEnv(map[string]string{
		seedURL: pageHTML("Automation Overview", scriptA, pageB, pageC, crossSite),
		pageB:   pageHTML("Working With JSON", scriptBC),
		pageC:   pageHTML("Converting Output", scriptBC),
	})

	result, err := env.walker.Walk(context.Background(), Request{
		JobID:    testJobID,
		SeedURL:  seedURL,
		MaxPages: 3,
		MaxDepth: 1,
	})
	require.NoError(t, err)

	assert.Equal(t, 3, result.DocumentsSaved)
	assert.Equal(t, 3, result.ScriptsFound)
	assert.Equal(t, 2, result.ScriptsSaved)
	assert.Equal(t, 2, env.scripts.Len())

	// The cross-origin link is discovered but never fetched.
	assert.Zero(t, env.fetcher.fetchCount(crossSite))

	docB, ok := env.documents.Get(context.Background(), pageB)
	require.True(t, ok)
	docC, ok := env.documents.Get(context.Background(), pageC)
	require.True(t, ok)

	// Identical code on two pages resolves to the same stored script.
	require.Len(t, docB.ScriptIDs, 1)
	require.Len(t, docC.ScriptIDs, 1)
	assert.Equal(t, docB.ScriptIDs[0], docC.ScriptIDs[0])

	// Heuristic summarization still yields complete documents.
	for _, doc := range env.documents.All() {
		assert.NotEmpty(t, doc.Title)
		assert.NotEmpty(t, doc.Summary)
		assert.NotEmpty(t, doc.Category)
		assert.Equal(t, "docs.example.com", doc.Source)
	}

	stages := env.emitter.stages()
	assert.Contains(t, stages, progress.StagePageSaved)
	assert.Contains(t, stages, progress.StageScriptSaved)
	assert.Contains(t, stages, progress.StageScriptDedup)
}

func TestWalkNeverFetchesSameURLTwice(t *testing.T) {
	t.Parallel()

	// a and b link to each other; the visited set breaks the cycle.
	env := newTestEnv(map[string]string{
		seedURL: pageHTML("Page A", "", pageB),
		pageB:   pageHTML("Page B", "", seedURL),
	})

	result, err := env.walker.Walk(context.Background(), Request{
		JobID:    testJobID,
		SeedURL:  seedURL,
		MaxPages: 10,
		MaxDepth: 5,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.DocumentsSaved)
	assert.Equal(t, 1, env.fetcher.fetchCount(seedURL))
	assert.Equal(t, 1, env.fetcher.fetchCount(pageB))
}

func TestWalkDepthZeroCrawlsOnlySeed(t *testing.T) {
	t.Parallel()

	env := newTestEnv(map[string]string{
		seedURL: pageHTML("Page A", "", pageB, pageC),
		pageB:   pageHTML("Page B", ""),
	})

	result, err := env.walker.Walk(context.Background(), Request{
		JobID:    testJobID,
		SeedURL:  seedURL,
		MaxPages: 10,
		MaxDepth: 0,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.DocumentsSaved)
	assert.Len(t, env.fetcher.calls, 1)
}

func TestWalkStopsAtPageBudget(t *testing.T) {
	t.Parallel()

	env := newTestEnv(map[string]string{
		seedURL: pageHTML("Page A", "", pageB, pageC),
		pageB:   pageHTML("Page B", ""),
		pageC:   pageHTML("Page C", ""),
	})

	result, err := env.walker.Walk(context.Background(), Request{
		JobID:    testJobID,
		SeedURL:  seedURL,
		MaxPages: 2,
		MaxDepth: 3,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.DocumentsSaved)
	assert.Len(t, env.fetcher.calls, 2)
}

func TestWalkContainsPageFailures(t *testing.T) {
	t.Parallel()

	env := newTestEnv(map[string]string{
		seedURL: pageHTML("Page A", "", pageB, pageC),
		pageC:   pageHTML("Page C", ""),
	})
	env.fetcher.fail[pageB] = true

	result, err := env.walker.Walk(context.Background(), Request{
		JobID:    testJobID,
		SeedURL:  seedURL,
		MaxPages: 5,
		MaxDepth: 1,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.DocumentsSaved)
	assert.Contains(t, env.emitter.stages(), progress.StagePageSkipped)
}

func TestWalkSkipsThinPages(t *testing.T) {
	t.Parallel()

	env := newTestEnv(map[string]string{
		seedURL: pageHTML("Page A", "", pageB),
		pageB:   shortBody,
	})

	result, err := env.walker.Walk(context.Background(), Request{
		JobID:    testJobID,
		SeedURL:  seedURL,
		MaxPages: 5,
		MaxDepth: 1,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.DocumentsSaved)
	_, ok := env.documents.Get(context.Background(), pageB)
	assert.False(t, ok)
}

func TestWalkCancellationUnwinds(t *testing.T) {
	t.Parallel()

	env := newTestEnv(map[string]string{
		seedURL: pageHTML("Page A", "", pageB, pageC),
		pageB:   pageHTML("Page B", ""),
		pageC:   pageHTML("Page C", ""),
	})

	var saved int
	result, err := env.walker.Walk(context.Background(), Request{
		JobID:    testJobID,
		SeedURL:  seedURL,
		MaxPages: 5,
		MaxDepth: 1,
		Canceled: func() bool { return saved >= 1 },
		OnProgress: func(p harvest.Progress) {
			saved = p.PagesProcessed
		},
	})
	require.ErrorIs(t, err, harvest.ErrCanceled)

	// The seed was persisted before cancellation was observed.
	assert.Equal(t, 1, result.DocumentsSaved)
	assert.Less(t, len(env.fetcher.calls), 3)
}

func TestWalkContextCancellation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(map[string]string{
		seedURL: pageHTML("Page A", "", pageB),
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := env.walker.Walk(ctx, Request{
		JobID:    testJobID,
		SeedURL:  seedURL,
		MaxPages: 5,
		MaxDepth: 1,
	})
	require.ErrorIs(t, err, harvest.ErrCanceled)
	assert.Zero(t, result.DocumentsSaved)
	assert.Empty(t, env.fetcher.calls)
}

func TestWalkRejectsInvalidSeed(t *testing.T) {
	t.Parallel()

	env := newTestEnv(nil)

	_, err := env.walker.Walk(context.Background(), Request{
		JobID:    testJobID,
		SeedURL:  "ftp://example.com/docs",
		MaxPages: 1,
		MaxDepth: 0,
	})
	require.Error(t, err)
}

func TestWalkProgressCountersNeverDecrease(t *testing.T) {
	t.Parallel()

	env := newTestEnv(map[string]string{
		seedURL: pageHTML("Page A", scriptA, pageB),
		pageB:   pageHTML("Page B", scriptBC),
	})

	var snapshots []harvest.Progress
	_, err := env.walker.Walk(context.Background(), Request{
		JobID:    testJobID,
		SeedURL:  seedURL,
		MaxPages: 5,
		MaxDepth: 1,
		OnProgress: func(p harvest.Progress) {
			snapshots = append(snapshots, p)
		},
	})
	require.NoError(t, err)
	require.NotEmpty(t, snapshots)

	prev := harvest.Progress{}
	for _, snap := range snapshots {
		assert.GreaterOrEqual(t, snap.PagesProcessed, prev.PagesProcessed)
		assert.GreaterOrEqual(t, snap.ScriptsFound, prev.ScriptsFound)
		assert.GreaterOrEqual(t, snap.ScriptsSaved, prev.ScriptsSaved)
		prev = snap
	}
}

func TestWalkLimitsLinksPerPage(t *testing.T) {
	t.Parallel()

	links := make([]string, 0, 5)
	pages := map[string]string{}
	for i := 0; i < 5; i++ {
		u := fmt.Sprintf("https://docs.example.com/child-%d", i)
		links = append(links, u)
		pages[u] = pageHTML(fmt.Sprintf("Child %d", i), "")
	}
	pages[seedURL] = pageHTML("Page A", "", links...)

	env := newTestEnv(pages)
	result, err := env.walker.Walk(context.Background(), Request{
		JobID:    testJobID,
		SeedURL:  seedURL,
		MaxPages: 10,
		MaxDepth: 1,
	})
	require.NoError(t, err)

	// Seed plus the first three same-origin children.
	assert.Equal(t, 4, result.DocumentsSaved)
	assert.Equal(t, 1, env.fetcher.fetchCount(links[0]))
	assert.Equal(t, 1, env.fetcher.fetchCount(links[1]))
	assert.Equal(t, 1, env.fetcher.fetchCount(links[2]))
	assert.Zero(t, env.fetcher.fetchCount(links[3]))
}
