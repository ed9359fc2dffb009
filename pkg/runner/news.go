package runner

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xhad/narrator/internal/models"
	"github.com/xhad/narrator/internal/types"
	"github.com/xhad/narrator/pkg/llm"
	"github.com/xhad/narrator/pkg/logger"
	"github.com/xhad/narrator/pkg/metrics"
	"github.com/xhad/narrator/pkg/processor"
	"github.com/xhad/narrator/pkg/report"
	"github.com/xhad/narrator/pkg/snapshot"
)

const (
	DefaultDelay    = 5 * time.Second
	DefaultMaxPages = 5
)

// Web is what a source runner needs from the scraper.
type Web interface {
	types.Fetcher
	types.Extractor
	types.LinkFinder
	IsRelevant(link string, keywords []string) bool
}

// Sampler picks at most n of links.
type Sampler func(links []string, n int) []string

// RandomSampler samples without replacement. The order of the result is
// random.
func RandomSampler(rng *rand.Rand) Sampler {
	return func(links []string, n int) []string {
		if len(links) <= n {
			return links
		}
		picked := make([]string, len(links))
		copy(picked, links)
		rng.Shuffle(len(picked), func(i, j int) { picked[i], picked[j] = picked[j], picked[i] })
		return picked[:n]
	}
}

// FirstSampler keeps the first n links.
func FirstSampler(links []string, n int) []string {
	return links[:min(n, len(links))]
}

type NewsConfig struct {
	Sources  []models.Source
	Delay    time.Duration
	Deep     bool
	MaxPages int
	Language string
	// SystemMessage returns the persona for a category.
	SystemMessage func(category string) string
}

type NewsRunner struct {
	config    NewsConfig
	web       Web
	store     types.SnapshotStore
	generator types.Generator
	sampler   Sampler
	embedder  types.Embedder
	archive   types.Archive
	sink      types.EventSink
	log       logger.Logger
	metrics   *metrics.Metrics
}

type NewsOption func(*NewsRunner)

func WithSampler(s Sampler) NewsOption {
	return func(r *NewsRunner) { r.sampler = s }
}

// WithArchive stores every analysis with its embedding.
func WithArchive(e types.Embedder, a types.Archive) NewsOption {
	return func(r *NewsRunner) {
		r.embedder = e
		r.archive = a
	}
}

func WithNewsEvents(sink types.EventSink) NewsOption {
	return func(r *NewsRunner) { r.sink = sink }
}

func WithNewsLogger(l logger.Logger) NewsOption {
	return func(r *NewsRunner) { r.log = l }
}

func WithNewsMetrics(m *metrics.Metrics) NewsOption {
	return func(r *NewsRunner) { r.metrics = m }
}

func NewNewsRunner(config NewsConfig, web Web, store types.SnapshotStore, generator types.Generator, opts ...NewsOption) *NewsRunner {
	if config.Delay < 0 {
		config.Delay = 0
	}
	if config.MaxPages <= 0 {
		config.MaxPages = DefaultMaxPages
	}
	if config.SystemMessage == nil {
		config.SystemMessage = func(string) string { return llm.DefaultAnalystSystem }
	}

	r := &NewsRunner{
		config:    config,
		web:       web,
		store:     store,
		generator: generator,
		sampler:   RandomSampler(rand.New(rand.NewSource(time.Now().UnixNano()))),
		log:       logger.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *NewsRunner) Config() NewsConfig {
	return r.config
}

// Run processes the sources one after another. Errors are kept in the
// result of the source or page they belong to. Cancellation stops the pass
// before the next source.
func (r *NewsRunner) Run(ctx context.Context) ([]models.SourceResult, error) {
	ev := newEvents(r.sink)
	ev.publish(models.EventPassStarted, "news", "", fmt.Sprintf("%d sources", len(r.config.Sources)))

	results := make([]models.SourceResult, 0, len(r.config.Sources))
	for i, source := range r.config.Sources {
		if i > 0 && r.config.Delay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(r.config.Delay):
			}
		}
		if ctx.Err() != nil {
			break
		}

		ev.publish(models.EventItemStatus, source.ID, models.StatusProcessing, "")
		var res models.SourceResult
		if r.config.Deep {
			res = r.processDeep(ctx, source)
		} else {
			res = r.processSource(ctx, source)
		}
		results = append(results, res)

		status, outcome := models.StatusCompleted, metrics.OutcomeSuccess
		if res.Error != "" {
			status, outcome = models.StatusFailed, metrics.OutcomeFailure
		}
		r.metrics.Item("source", outcome)
		ev.publish(models.EventItemStatus, source.ID, status, res.Error)
	}

	ev.publish(models.EventPassFinished, "news", "", fmt.Sprintf("%d sources processed", len(results)))
	return results, ctx.Err()
}

func (r *NewsRunner) processSource(ctx context.Context, source models.Source) models.SourceResult {
	res := models.SourceResult{Source: source}
	page, err := r.processPage(ctx, source, source.ID)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	if page != nil {
		res.Pages = append(res.Pages, *page)
	}
	return res
}

// processDeep analyzes the keyword-relevant subpages linked from the source.
func (r *NewsRunner) processDeep(ctx context.Context, source models.Source) models.SourceResult {
	res := models.SourceResult{Source: source}
	log := r.log.With(logger.String("source", source.ID))

	html, err := r.web.Fetch(ctx, source.ID)
	if err != nil {
		res.Error = fmt.Sprintf("failed to fetch main page: %v", err)
		return res
	}
	links, err := r.web.Links(html, source.ID)
	if err != nil {
		res.Error = fmt.Sprintf("failed to extract links: %v", err)
		return res
	}

	var relevant []string
	for _, link := range links {
		if r.web.IsRelevant(link, source.Keywords) {
			relevant = append(relevant, link)
		}
	}
	selected := r.sampler(relevant, r.config.MaxPages)
	log.Info("links selected",
		logger.Int("found", len(links)),
		logger.Int("relevant", len(relevant)),
		logger.Int("selected", len(selected)))

	for _, link := range selected {
		if ctx.Err() != nil {
			break
		}
		page, err := r.processPage(ctx, source, link)
		if err != nil {
			log.Warn("subpage failed", logger.String("url", link), logger.Error(err))
			res.Pages = append(res.Pages, models.PageResult{URL: link, Error: err.Error()})
			r.metrics.Item("page", metrics.OutcomeFailure)
			continue
		}
		if page == nil {
			r.metrics.Item("page", metrics.OutcomeSkipped)
			continue
		}
		r.metrics.Item("page", metrics.OutcomeSuccess)
		res.Pages = append(res.Pages, *page)
	}
	return res
}

// processPage fetches url, diffs it against its snapshot and analyzes the
// new lines. It returns nil when there is nothing new. The snapshot is
// replaced after every successful fetch.
func (r *NewsRunner) processPage(ctx context.Context, source models.Source, url string) (*models.PageResult, error) {
	log := r.log.With(logger.String("url", url))

	html, err := r.web.Fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch: %w", err)
	}
	text, err := r.web.ExtractText(html)
	if err != nil {
		return nil, fmt.Errorf("failed to extract text: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		log.Info("no content found")
		return nil, nil
	}

	previous, err := r.store.Load(ctx, url)
	if err != nil && !errors.Is(err, snapshot.ErrCorrupt) {
		return nil, err
	}
	if err != nil {
		log.Warn("ignoring corrupt snapshot", logger.Error(err))
	}

	delta := snapshot.Diff(previous.Content, text)
	if err := r.store.Save(ctx, url, text); err != nil {
		return nil, fmt.Errorf("failed to save snapshot: %w", err)
	}
	if delta == "" {
		log.Info("no new content")
		return nil, nil
	}

	prompt := llm.NewsAnalysis(url, source.Category, source.Keywords, r.config.Language, delta)
	gen := r.generator.Generate(ctx, r.config.SystemMessage(source.Category), prompt)
	if gen.Err != nil {
		return nil, fmt.Errorf("analysis failed: %w", gen.Err)
	}

	r.archiveAnalysis(ctx, source, url, gen.Text)
	return &models.PageResult{URL: url, Analysis: gen.Text}, nil
}

func (r *NewsRunner) archiveAnalysis(ctx context.Context, source models.Source, url, analysis string) {
	if r.archive == nil || r.embedder == nil {
		return
	}
	log := r.log.With(logger.String("url", url))

	embeddings, err := r.embedder.CreateEmbedding(ctx, []string{analysis})
	if err != nil {
		log.Warn("failed to embed analysis", logger.Error(err))
		return
	}
	if len(embeddings) == 0 {
		log.Warn("embedder returned no vector")
		return
	}
	rec := models.ArchiveRecord{
		ID:        uuid.NewString(),
		Source:    source.ID,
		URL:       url,
		Category:  source.Category,
		Content:   analysis,
		CreatedAt: time.Now(),
	}
	if err := r.archive.Store(ctx, rec, embeddings[0]); err != nil {
		log.Warn("failed to archive analysis", logger.Error(err))
	}
}

// NarrateResults chunks the analyses of results and writes them as one
// audio file, keeping the segments in segmentDir until the file is written.
// It writes nothing when there is no analysis.
func NarrateResults(ctx context.Context, results []models.SourceResult, proc processor.Processor, narrator NarratorFor, segmentDir, path string) (bool, error) {
	text := report.Transcript(results)
	if text == "" {
		return false, nil
	}
	if err := narrateTo(ctx, narrator, segmentDir, proc.Process(text), path); err != nil {
		return false, err
	}
	return true, nil
}
