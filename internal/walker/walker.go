// Package walker implements the crawl engine: a bounded, same-origin,
// depth-first traversal that turns documentation pages into persisted
// documents and deduplicated scripts.
package walker

import (
	"context"
	"crypto/md5"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/psdocs/doc-harvester/internal/dedup"
	"github.com/psdocs/doc-harvester/internal/extract"
	"github.com/psdocs/doc-harvester/internal/harvest"
	"github.com/psdocs/doc-harvester/internal/progress"
	"github.com/psdocs/doc-harvester/internal/summarize"
)

// Traversal bounds. Link and script caps are per page; the page budget
// counts persisted documents, not fetch attempts.
const (
	defaultMaxLinksPerPage   = 3
	defaultMaxScriptsPerPage = 5
	maxDocumentContentChars  = 5000
)

// Config tunes per-page traversal limits.
type Config struct {
	MaxLinksPerPage   int
	MaxScriptsPerPage int
}

func (c Config) withDefaults() Config {
	if c.MaxLinksPerPage <= 0 {
		c.MaxLinksPerPage = defaultMaxLinksPerPage
	}
	if c.MaxScriptsPerPage <= 0 {
		c.MaxScriptsPerPage = defaultMaxScriptsPerPage
	}
	return c
}

// Request describes one crawl run. Canceled is polled at every checkpoint;
// OnProgress receives monotonic snapshots after each meaningful step. Both
// are optional.
type Request struct {
	JobID      string
	SeedURL    string
	MaxPages   int
	MaxDepth   int
	Canceled   func() bool
	OnProgress func(harvest.Progress)
}

// Walker walks a documentation site from a seed URL. It is safe for
// concurrent use; all per-run state lives in the run struct.
type Walker struct {
	fetcher    harvest.Fetcher
	extractor  *extract.Extractor
	summarizer *summarize.Adapter
	scripts    *dedup.Deduper
	documents  harvest.DocumentStore
	snapshots  harvest.SnapshotStore
	clock      harvest.Clock
	emitter    progress.Emitter
	logger     *zap.Logger
	cfg        Config
}

// New builds a Walker. snapshots may be nil to disable raw page archiving;
// emitter may be nil to disable the progress stream.
func New(
	fetcher harvest.Fetcher,
	extractor *extract.Extractor,
	summarizer *summarize.Adapter,
	scripts *dedup.Deduper,
	documents harvest.DocumentStore,
	snapshots harvest.SnapshotStore,
	clock harvest.Clock,
	emitter progress.Emitter,
	logger *zap.Logger,
	cfg Config,
) *Walker {
	if emitter == nil {
		emitter = progress.NopEmitter{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Walker{
		fetcher:    fetcher,
		extractor:  extractor,
		summarizer: summarizer,
		scripts:    scripts,
		documents:  documents,
		snapshots:  snapshots,
		clock:      clock,
		emitter:    emitter,
		logger:     logger,
		cfg:        cfg.withDefaults(),
	}
}

// frame is one pending page on the traversal stack.
type frame struct {
	url   string
	depth int
}

// run holds the mutable state of a single Walk call.
type run struct {
	req      Request
	seed     string
	visited  map[string]struct{}
	stack    []frame
	result   harvest.Result
	progress harvest.Progress
}

// Walk crawls from req.SeedURL until the page budget, the depth bound, or
// the frontier is exhausted. Failures on individual pages and scripts are
// contained; only an invalid seed fails the whole run. When cancellation is
// observed the partial result is returned alongside harvest.ErrCanceled.
func (w *Walker) Walk(ctx context.Context, req Request) (harvest.Result, error) {
	seed, err := harvest.NormalizeURL(req.SeedURL)
	if err != nil {
		return harvest.Result{}, fmt.Errorf("invalid seed url: %w", err)
	}

	r := &run{
		req:     req,
		seed:    seed,
		visited: make(map[string]struct{}),
		stack:   []frame{{url: seed, depth: 0}},
		progress: harvest.Progress{
			TotalPages: req.MaxPages,
		},
	}

	for len(r.stack) > 0 {
		if err := w.checkpoint(ctx, r.req); err != nil {
			return r.result, err
		}

		// Depth-first: pop the most recently discovered page.
		top := len(r.stack) - 1
		fr := r.stack[top]
		r.stack = r.stack[:top]

		if _, seen := r.visited[fr.url]; seen {
			continue
		}
		if r.result.DocumentsSaved >= r.req.MaxPages {
			break
		}
		r.visited[fr.url] = struct{}{}

		links, err := w.visitPage(ctx, r, fr)
		if err != nil {
			return r.result, err
		}

		if fr.depth < r.req.MaxDepth {
			w.pushChildren(r, fr, links)
		}
	}

	return r.result, nil
}

// checkpoint observes cancellation, both cooperative and context-driven.
func (w *Walker) checkpoint(ctx context.Context, req Request) error {
	if req.Canceled != nil && req.Canceled() {
		return harvest.ErrCanceled
	}
	if ctx.Err() != nil {
		return harvest.ErrCanceled
	}
	return nil
}

// pushChildren queues up to MaxLinksPerPage same-origin links. They are
// pushed in reverse so the first link on the page is crawled first.
func (w *Walker) pushChildren(r *run, fr frame, links []string) {
	var children []string
	for _, link := range links {
		if len(children) >= w.cfg.MaxLinksPerPage {
			break
		}
		if !harvest.SameOrigin(r.seed, link) {
			continue
		}
		if _, seen := r.visited[link]; seen {
			continue
		}
		children = append(children, link)
	}
	for i := len(children) - 1; i >= 0; i-- {
		r.stack = append(r.stack, frame{url: children[i], depth: fr.depth + 1})
	}
}

// visitPage fetches, extracts, summarizes, and persists one page. It
// returns the page's outgoing links for frontier expansion. A non-nil error
// means cancellation; every other failure is logged, reported as a skip,
// and swallowed.
func (w *Walker) visitPage(ctx context.Context, r *run, fr frame) ([]string, error) {
	w.setStage(r, "fetching", fr.url)

	resp, err := w.fetcher.Fetch(ctx, harvest.FetchRequest{
		JobID: r.req.JobID,
		URL:   fr.url,
		Depth: fr.depth,
	})
	if err != nil {
		w.skipPage(r, fr, resp.Duration, "fetch_error", fmt.Sprintf("fetch failed: %v", err))
		return nil, nil
	}

	content, err := w.extractor.Extract(fr.url, resp.Body)
	if err != nil {
		w.skipPage(r, fr, resp.Duration, "extract_error", fmt.Sprintf("extract failed: %v", err))
		return nil, nil
	}
	if content.TooShort() {
		w.skipPage(r, fr, resp.Duration, "too_short", "content too short")
		return nil, nil
	}

	w.setStage(r, "summarizing", fr.url)
	card := w.summarizer.Summarize(ctx, summarize.PageInput{
		URL:        fr.url,
		Text:       content.Text,
		Headings:   content.Headings,
		CodeBlocks: content.CodeBlocks,
	})
	if card.Degraded {
		w.emit(r, progress.Event{Stage: progress.StageSummarizeFallback, URL: fr.url, Depth: fr.depth})
	}

	scriptIDs, err := w.saveScripts(ctx, r, fr, content)
	if err != nil {
		return nil, err
	}

	doc := w.buildDocument(r, fr, content, card, scriptIDs)
	if w.snapshots != nil {
		w.archiveSnapshot(ctx, r, fr, resp.Body)
	}

	if _, _, err := w.documents.Upsert(ctx, doc); err != nil {
		w.skipPage(r, fr, resp.Duration, "store_error", fmt.Sprintf("persist failed: %v", err))
		return nil, nil
	}

	r.result.DocumentsSaved++
	r.progress.PagesProcessed++
	w.setStage(r, "saved", fr.url)
	w.emit(r, progress.Event{Stage: progress.StagePageSaved, URL: fr.url, Depth: fr.depth, Dur: resp.Duration})
	w.logger.Info("page saved",
		zap.String("job_id", r.req.JobID),
		zap.String("url", fr.url),
		zap.Int("depth", fr.depth),
		zap.Int("scripts", len(scriptIDs)),
	)
	return content.Links, nil
}

// saveScripts analyzes and persists at most MaxScriptsPerPage code blocks,
// checking for cancellation before each save. Every extracted block counts
// toward ScriptsFound; only newly created records count toward ScriptsSaved.
func (w *Walker) saveScripts(ctx context.Context, r *run, fr frame, content extract.Content) ([]string, error) {
	var ids []string
	for i, code := range content.CodeBlocks {
		r.result.ScriptsFound++
		r.progress.ScriptsFound++
		if i >= w.cfg.MaxScriptsPerPage {
			continue
		}
		if err := w.checkpoint(ctx, r.req); err != nil {
			return ids, err
		}

		scriptCard := w.summarizer.AnalyzeScript(ctx, code, fr.url)
		script := harvest.Script{
			Name:        scriptName(scriptCard, code),
			Description: scriptCard.Purpose,
			Code:        code,
			SourceURL:   fr.url,
		}

		id, created, err := w.scripts.SaveIfNew(ctx, script)
		if err != nil {
			w.logger.Warn("script save failed",
				zap.String("job_id", r.req.JobID),
				zap.String("url", fr.url),
				zap.Error(err),
			)
			w.emit(r, progress.Event{Stage: progress.StageScriptError, URL: fr.url, Depth: fr.depth, Note: err.Error()})
			continue
		}
		ids = append(ids, id)
		if created {
			r.result.ScriptsSaved++
			r.progress.ScriptsSaved++
			w.emit(r, progress.Event{Stage: progress.StageScriptSaved, URL: fr.url, Depth: fr.depth})
		} else {
			w.emit(r, progress.Event{Stage: progress.StageScriptDedup, URL: fr.url, Depth: fr.depth})
		}
		w.report(r)
	}
	return ids, nil
}

func (w *Walker) buildDocument(r *run, fr frame, content extract.Content, card summarize.Card, scriptIDs []string) harvest.Document {
	return harvest.Document{
		Title:       card.Title,
		URL:         fr.url,
		Content:     truncateContent(content.Text),
		Summary:     card.Summary,
		Source:      hostOf(fr.url),
		Category:    card.Category,
		Tags:        buildTags(content, card),
		Commands:    content.Commands,
		Modules:     content.Modules,
		CrawlDepth:  fr.depth,
		Insights:    card.Insights,
		CodeExample: card.CodeExample,
		ScriptIDs:   scriptIDs,
		CrawledAt:   w.clock.Now(),
	}
}

// archiveSnapshot stores the raw HTML body. Archive failures never affect
// the crawl.
func (w *Walker) archiveSnapshot(ctx context.Context, r *run, fr frame, body []byte) {
	name := snapshotPath(w.clock.Now(), fr.url)
	if _, err := w.snapshots.Save(ctx, name, "text/html; charset=utf-8", body); err != nil {
		w.logger.Warn("snapshot save failed",
			zap.String("job_id", r.req.JobID),
			zap.String("url", fr.url),
			zap.Error(err),
		)
	}
}

func (w *Walker) skipPage(r *run, fr frame, dur time.Duration, reason, note string) {
	r.progress.PagesProcessed++
	w.setStage(r, "skipped", fr.url)
	w.emit(r, progress.Event{Stage: progress.StagePageSkipped, URL: fr.url, Depth: fr.depth, Dur: dur, Reason: reason, Note: note})
	w.logger.Warn("page skipped",
		zap.String("job_id", r.req.JobID),
		zap.String("url", fr.url),
		zap.Int("depth", fr.depth),
		zap.String("reason", note),
	)
}

func (w *Walker) setStage(r *run, stage, url string) {
	r.progress.Stage = stage
	r.progress.CurrentURL = url
	w.report(r)
}

func (w *Walker) report(r *run) {
	if r.req.OnProgress != nil {
		r.req.OnProgress(r.progress)
	}
}

func (w *Walker) emit(r *run, evt progress.Event) {
	evt.JobID = r.req.JobID
	evt.TS = w.clock.Now()
	w.emitter.Emit(evt)
}

// scriptName prefers the analyzer's name, then the declared function name,
// then a stable default.
func scriptName(card summarize.ScriptCard, code string) string {
	if card.Name != "" {
		return card.Name
	}
	if name := extract.FunctionName(code); name != "" {
		return name
	}
	return "PowerShell Script"
}

// buildTags merges the category with discovered commands and modules into a
// deduplicated, order-preserving tag list.
func buildTags(content extract.Content, card summarize.Card) []string {
	seen := make(map[string]struct{})
	var tags []string
	add := func(tag string) {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			return
		}
		key := strings.ToLower(tag)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		tags = append(tags, tag)
	}
	add(card.Category)
	for _, cmd := range content.Commands {
		add(cmd)
	}
	for _, mod := range content.Modules {
		add(mod)
	}
	return tags
}

func truncateContent(text string) string {
	if len(text) <= maxDocumentContentChars {
		return text
	}
	return text[:maxDocumentContentChars]
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}

// snapshotPath shapes archive object names as pages/<date>/<urlhash>.html so
// listings group by crawl day and names stay filesystem-safe.
func snapshotPath(now time.Time, pageURL string) string {
	digest := md5.Sum([]byte(pageURL)) //nolint:gosec // object naming, not security
	return fmt.Sprintf("pages/%s/%x.html", now.UTC().Format("2006-01-02"), digest)
}
