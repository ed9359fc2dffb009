package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/xhad/narrator/internal/models"
	"github.com/xhad/narrator/internal/types"
	"github.com/xhad/narrator/pkg/llm"
	"github.com/xhad/narrator/pkg/logger"
	"github.com/xhad/narrator/pkg/processor"
	"github.com/xhad/narrator/pkg/runner"
	"github.com/xhad/narrator/pkg/scraper"
	"github.com/xhad/narrator/pkg/snapshot"
	"github.com/xhad/narrator/pkg/store"
	"github.com/xhad/narrator/pkg/tts"
)

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("chunks"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// console prints runner events as coloured status lines.
type console struct{}

func (console) Publish(evt models.Event) {
	switch evt.Kind {
	case models.EventPassStarted:
		color.Cyan("\n▶ %s: %s", evt.Item, evt.Message)
	case models.EventPassFinished:
		color.Cyan("■ %s", evt.Message)
	case models.EventItemSkipped:
		color.White("· %s (%s)", filepath.Base(evt.Item), evt.Message)
	case models.EventItemStatus:
		switch evt.Status {
		case models.StatusProcessing:
			color.Blue("→ %s", evt.Item)
		case models.StatusCompleted:
			color.Green("✓ %s", evt.Item)
		case models.StatusFailed:
			color.Red("✗ %s: %s", evt.Item, evt.Message)
		}
	}
}

// progressNarrator shows a progress bar over the chunks of one narration.
type progressNarrator struct {
	description string
	bar         *progressbar.ProgressBar
	next        types.Narrator
}

func (p *progressNarrator) Narrate(ctx context.Context, chunks []models.Chunk) ([][]byte, error) {
	p.bar = getProgressBar(len(chunks), p.description)
	defer p.bar.Finish()
	return p.next.Narrate(ctx, chunks)
}

func (p *progressNarrator) segmentDone(int, error) {
	if p.bar != nil {
		p.bar.Add(1)
	}
}

func (a *app) generator(ctx context.Context) (types.Generator, func(), error) {
	client, err := llm.New(ctx, a.cfg.LLM, a.cfg.Keys,
		llm.WithLogger(a.log),
		llm.WithMetrics(a.metrics),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize %s client: %w", a.cfg.LLM.Provider, err)
	}
	closeFn := func() {
		if err := client.Close(); err != nil {
			a.log.Warn("failed to close llm client", logger.Error(err))
		}
	}
	return llm.NewThrottled(client, a.cfg.RequestsPerSecond, 1), closeFn, nil
}

func (a *app) processor() processor.Processor {
	return processor.NewWithConfig(processor.ProcessorConfig{
		ChunkSize:      a.cfg.Processor.ChunkSize,
		Strategy:       processor.Strategy(a.cfg.Processor.Strategy),
		TargetChunks:   a.cfg.Processor.TargetChunks,
		AllowHardSplit: a.cfg.Processor.AllowHardSplit,
	})
}

func (a *app) scraper() *scraper.Scraper {
	return scraper.NewWithConfig(scraper.ScraperConfig{
		UserAgent:       a.cfg.Scraper.UserAgent,
		RateLimit:       a.cfg.Scraper.RateLimit,
		Timeout:         a.cfg.Scraper.Timeout,
		ExcludePatterns: a.cfg.Scraper.ExcludePatterns,
	})
}

func (a *app) snapshotStore() (types.SnapshotStore, func(), error) {
	if a.cfg.State.Backend == "redis" {
		s, err := snapshot.NewRedisStore(snapshot.RedisConfig{
			Addr:     a.cfg.State.Redis.Addr,
			Password: a.cfg.State.Redis.Password,
			DB:       a.cfg.State.Redis.DB,
			Prefix:   a.cfg.State.Redis.Prefix,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	}
	s, err := snapshot.NewFileStore(a.cfg.State.Dir)
	if err != nil {
		return nil, nil, err
	}
	return s, func() {}, nil
}

func (a *app) voices() tts.VoiceSelector {
	if a.cfg.Speech.Voice != "" {
		return tts.FixedSelector{Name: a.cfg.Speech.Voice}
	}
	return tts.NewRandomSelector(nil)
}

// narrators returns a factory of progress-reporting speech pipelines that
// keep their segments in the given directory.
func (a *app) narrators() (runner.NarratorFor, error) {
	synth, err := tts.NewOpenAI(tts.OpenAIConfig{
		APIKey:  a.cfg.Keys.OpenAI,
		Timeout: a.cfg.Speech.Timeout,
	}, a.metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize speech client: %w", err)
	}
	voices := a.voices()

	return func(dir string) types.Narrator {
		p := &progressNarrator{description: " Synthesizing " + filepath.Base(dir)}
		p.next = tts.NewPipeline(synth, voices, tts.PipelineConfig{
			Concurrency: a.cfg.Speech.Concurrency,
			Models:      a.cfg.Speech.Models,
			Retries:     a.cfg.Speech.Retries,
			WorkDir:     dir,
			OnSegment:   p.segmentDone,
		}, a.log)
		return p
	}, nil
}

// archive connects the analysis archive if a database is configured.
func (a *app) archive(ctx context.Context) (*store.VectorStore, *llm.Embedder, error) {
	if a.cfg.Database.URL == "" {
		return nil, nil, nil
	}
	vs, err := store.NewWithConfig(ctx, store.VectorStoreConfig{
		ConnString: a.cfg.Database.URL,
		TableName:  a.cfg.Database.TableName,
		VectorDim:  a.cfg.Database.VectorDim,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize vector store: %w", err)
	}
	emb, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Model:   a.cfg.Database.EmbeddingModel,
		BaseURL: a.cfg.Database.EmbeddingURL,
	})
	if err != nil {
		vs.Close()
		return nil, nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	return vs, emb, nil
}

func (a *app) sources() []models.Source {
	out := make([]models.Source, len(a.cfg.Sources))
	for i, s := range a.cfg.Sources {
		out[i] = models.Source{ID: s.URL, Category: s.Category, Keywords: s.Keywords}
	}
	return out
}

// loop runs pass once, n times, forever or on a schedule.
func (a *app) loop(ctx context.Context, n int, schedule string, pass runner.Pass) error {
	if schedule != "" {
		return runner.Schedule(ctx, schedule, pass, a.log)
	}
	err := runner.Loop(ctx, n, pass, a.log)
	if ctx.Err() != nil {
		color.Yellow("\nInterrupted")
		return nil
	}
	return err
}
