package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/xhad/narrator/internal/models"
	"github.com/xhad/narrator/internal/types"
	"github.com/xhad/narrator/pkg/fileutil"
	"github.com/xhad/narrator/pkg/logger"
	"github.com/xhad/narrator/pkg/processor"
	"github.com/xhad/narrator/pkg/report"
	"github.com/xhad/narrator/pkg/runner"
	"github.com/xhad/narrator/pkg/snapshot"
	"github.com/xhad/narrator/pkg/tts"
	"github.com/xhad/narrator/server"
)

func (a *app) newsCommand() *cobra.Command {
	var (
		deep     bool
		maxPages int
		narrate  bool
		loops    int
		schedule string
	)
	cmd := &cobra.Command{
		Use:   "news",
		Short: "Analyze what is new on the configured sources and write a report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			flags := cmd.Flags()
			if flags.Changed("deep") {
				a.cfg.News.Deep = deep
			}
			if flags.Changed("max-pages") {
				a.cfg.News.MaxPages = maxPages
			}
			if flags.Changed("narrate") {
				a.cfg.News.Narrate = narrate
			}
			if flags.Changed("schedule") {
				a.cfg.News.Schedule = schedule
			}
			if err := validate(a.cfg); err != nil {
				return err
			}
			if len(a.cfg.Sources) == 0 {
				return fmt.Errorf("no sources configured")
			}

			pass, cleanup, err := a.newsPass(ctx, console{})
			if err != nil {
				return err
			}
			defer cleanup()
			return a.loop(ctx, loops, a.cfg.News.Schedule, pass)
		},
	}
	cmd.Flags().BoolVar(&deep, "deep", false, "Follow keyword-relevant links of every source")
	cmd.Flags().IntVarP(&maxPages, "max-pages", "m", runner.DefaultMaxPages, "Maximum number of subpages per source in deep mode")
	cmd.Flags().BoolVar(&narrate, "narrate", false, "Read the analyses aloud into an mp3")
	cmd.Flags().IntVar(&loops, "loop", 1, "Number of passes, 0 runs until interrupted")
	cmd.Flags().StringVar(&schedule, "schedule", "", "Cron expression for unattended runs")
	return cmd
}

// newsPass wires a source runner and returns one pass of it: run, write
// the HTML report and optionally the narration.
func (a *app) newsPass(ctx context.Context, sink types.EventSink) (runner.Pass, func(), error) {
	if err := os.MkdirAll(a.cfg.OutputDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create output dir: %w", err)
	}
	gen, closeGen, err := a.generator(ctx)
	if err != nil {
		return nil, nil, err
	}
	states, closeStates, err := a.snapshotStore()
	if err != nil {
		closeGen()
		return nil, nil, err
	}

	opts := []runner.NewsOption{
		runner.WithNewsEvents(sink),
		runner.WithNewsLogger(a.log),
		runner.WithNewsMetrics(a.metrics),
	}
	archive, embedder, err := a.archive(ctx)
	if err != nil {
		a.log.Warn("archive disabled", logger.Error(err))
	} else if archive != nil {
		opts = append(opts, runner.WithArchive(embedder, archive))
	}

	var narrators runner.NarratorFor
	if a.cfg.News.Narrate {
		if narrators, err = a.narrators(); err != nil {
			closeGen()
			closeStates()
			return nil, nil, err
		}
	}

	news := runner.NewNewsRunner(runner.NewsConfig{
		Sources:       a.sources(),
		Delay:         a.cfg.News.Delay,
		Deep:          a.cfg.News.Deep,
		MaxPages:      a.cfg.News.MaxPages,
		Language:      a.cfg.Language,
		SystemMessage: a.cfg.SystemMessage,
	}, a.scraper(), states, gen, opts...)

	pass := func(ctx context.Context) error {
		started := time.Now()
		results, runErr := news.Run(ctx)
		base := filepath.Join(a.cfg.OutputDir, fmt.Sprintf("%s_%d", a.cfg.OutputPrefix, started.Unix()))

		if err := report.WriteHTMLFile(base+".html", results, a.cfg.Categories, started); err != nil {
			return err
		}
		color.Green("✓ Report saved as %s", base+".html")
		fmt.Print(report.Summary(results))

		if narrators != nil && runErr == nil {
			wrote, err := runner.NarrateResults(ctx, results, a.processor(), narrators,
				filepath.Join(a.cfg.State.Dir, "audio", filepath.Base(base)), base+".mp3")
			switch {
			case err != nil:
				color.Red("✗ Narration failed: %v", err)
			case wrote:
				color.Green("✓ Audio saved as %s", base+".mp3")
			default:
				color.Yellow("Nothing new to narrate")
			}
		}
		return runErr
	}
	cleanup := func() {
		closeGen()
		closeStates()
		if archive != nil {
			archive.Close()
		}
	}
	return pass, cleanup, nil
}

func (a *app) booksCommand() *cobra.Command {
	var (
		chunkSize   int
		concurrency int
		mode        string
		loops       int
	)
	cmd := &cobra.Command{
		Use:   "books <input-dir> <work-dir>",
		Short: "Turn every new or changed text file into an mp3 next to it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			flags := cmd.Flags()
			if flags.Changed("chunk-size") {
				a.cfg.Processor.ChunkSize = chunkSize
			}
			if flags.Changed("concurrency") {
				a.cfg.Speech.Concurrency = concurrency
			}
			if flags.Changed("mode") {
				a.cfg.Books.Mode = mode
			}
			if err := validate(a.cfg); err != nil {
				return err
			}

			pass, cleanup, err := a.booksPass(ctx, args[0], args[1], console{})
			if err != nil {
				return err
			}
			defer cleanup()
			return a.loop(ctx, loops, "", pass)
		},
	}
	cmd.Flags().IntVar(&chunkSize, "chunk-size", processor.DefaultChunkSize, "Maximum characters per chunk")
	cmd.Flags().IntVar(&concurrency, "concurrency", tts.DefaultConcurrency, "Concurrent speech requests")
	cmd.Flags().StringVar(&mode, "mode", string(runner.ModeAudio), "audio or correct")
	cmd.Flags().IntVar(&loops, "loop", 1, "Number of passes, 0 runs until interrupted")
	return cmd
}

func (a *app) booksPass(ctx context.Context, input, work string, sink types.EventSink) (runner.Pass, func(), error) {
	opts := []runner.BatchOption{
		runner.WithEvents(sink),
		runner.WithLogger(a.log),
		runner.WithMetrics(a.metrics),
	}
	cleanup := func() {}

	mode := runner.Mode(a.cfg.Books.Mode)
	if mode == runner.ModeCorrect {
		gen, closeGen, err := a.generator(ctx)
		if err != nil {
			return nil, nil, err
		}
		cleanup = closeGen
		opts = append(opts, runner.WithGenerator(gen))
	} else {
		narrators, err := a.narrators()
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, runner.WithNarrator(narrators))
	}

	batch, err := runner.NewBatchRunner(runner.BatchConfig{
		InputDir: input,
		WorkDir:  work,
		Patterns: a.cfg.Books.Patterns,
		Mode:     mode,
	}, a.processor(), opts...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	pass := func(ctx context.Context) error {
		results, err := batch.Run(ctx)
		var failed int
		for _, r := range results {
			if r.Status == models.StatusFailed {
				failed++
			}
		}
		if failed > 0 {
			color.Yellow("%d of %d files failed", failed, len(results))
		}
		return err
	}
	return pass, cleanup, nil
}

func (a *app) chunkCommand() *cobra.Command {
	var (
		chunkSize int
		numChunks int
		strategy  string
	)
	cmd := &cobra.Command{
		Use:   "chunk <input-file> <output-dir>",
		Short: "Split a text file into part_NNN.txt files",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			p := processor.NewWithConfig(processor.ProcessorConfig{
				ChunkSize:      chunkSize,
				Strategy:       processor.Strategy(strategy),
				TargetChunks:   numChunks,
				AllowHardSplit: a.cfg.Processor.AllowHardSplit,
			})
			chunks := p.Process(string(data))

			dir := args[1]
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
			old, _ := filepath.Glob(filepath.Join(dir, "part_*.txt"))
			for _, f := range old {
				os.Remove(f)
			}
			for _, c := range chunks {
				path := filepath.Join(dir, fmt.Sprintf("part_%03d.txt", c.Index+1))
				if err := fileutil.WriteFileAtomic(path, []byte(c.Text), 0o644); err != nil {
					return err
				}
				fmt.Printf("Chunk %d: %d characters\n", c.Index+1, len([]rune(c.Text)))
			}
			color.Green("✓ Split into %d parts", len(chunks))
			return nil
		},
	}
	cmd.Flags().IntVarP(&chunkSize, "chunk-size", "s", processor.DefaultChunkSize, "Maximum characters per chunk")
	cmd.Flags().IntVarP(&numChunks, "num-chunks", "n", 0, "Merge the chunks into this many parts")
	cmd.Flags().StringVar(&strategy, "strategy", string(processor.StrategySentence), "paragraph, sentence, word or char")
	return cmd
}

func (a *app) randomCommand() *cobra.Command {
	var pages int
	cmd := &cobra.Command{
		Use:   "random <pdf-dir> [text-dir]",
		Short: "Explain a random excerpt of a random document and read it aloud",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if cmd.Flags().Changed("pages") {
				a.cfg.Random.Pages = pages
			}
			if err := os.MkdirAll(a.cfg.OutputDir, 0o755); err != nil {
				return fmt.Errorf("failed to create output dir: %w", err)
			}
			gen, closeGen, err := a.generator(ctx)
			if err != nil {
				return err
			}
			defer closeGen()
			narrators, err := a.narrators()
			if err != nil {
				return err
			}

			reader := runner.NewRandomReader(runner.RandomConfig{
				Dirs:      args,
				Pages:     a.cfg.Random.Pages,
				Language:  a.cfg.Language,
				OutputDir: a.cfg.OutputDir,
				WorkDir:   filepath.Join(a.cfg.State.Dir, "random"),
			}, rand.New(rand.NewSource(time.Now().UnixNano())), gen, narrators, a.processor(), a.log)

			spinner := getSpinner(" Reading a random excerpt...")
			res, err := reader.Read(ctx)
			spinner.Finish()
			if err != nil {
				return err
			}
			color.Cyan("\n%s, pages %d-%d", filepath.Base(res.File), res.StartPage, res.EndPage)
			fmt.Println(res.Text)
			color.Green("✓ Audio saved as %s", res.Output)
			return nil
		},
	}
	cmd.Flags().IntVarP(&pages, "pages", "p", runner.DefaultRandomPages, "Number of pages to read")
	return cmd
}

func (a *app) diffCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "diff <previous-file> <current-file>",
		Short: "Print the lines of the current file that are new",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			previous, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			current, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			if delta := snapshot.Diff(string(previous), string(current)); delta != "" {
				fmt.Println(delta)
			}
			return nil
		},
	}
}

func (a *app) searchCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find archived analyses similar to a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			archive, embedder, err := a.archive(ctx)
			if err != nil {
				return err
			}
			if archive == nil {
				return fmt.Errorf("no database configured, set DATABASE_URL")
			}
			defer archive.Close()

			spinner := getSpinner(" Searching archive...")
			embeddings, err := embedder.CreateEmbedding(ctx, []string{args[0]})
			if err != nil {
				spinner.Finish()
				return fmt.Errorf("failed to create query embedding: %w", err)
			}
			recs, err := archive.Query(ctx, embeddings[0], limit)
			spinner.Finish()
			if err != nil {
				return err
			}

			for _, r := range recs {
				color.Cyan("\n%s  %s  [%s]  %.3f", r.CreatedAt.Format("2006-01-02 15:04"), r.URL, r.Category, r.Distance)
				fmt.Println(r.Content)
			}
			if len(recs) == 0 {
				color.Yellow("Nothing found")
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "Number of results")
	return cmd
}

func (a *app) serveCommand() *cobra.Command {
	var (
		addr  string
		input string
		work  string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve live progress over a websocket and metrics over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if cmd.Flags().Changed("addr") {
				a.cfg.Server.Addr = addr
			}

			passes := make(map[string]server.Pass)
			var srv *server.WSServer
			sink := runner.Sinks{console{}, runner.SinkFunc(func(evt models.Event) { srv.Publish(evt) })}

			if len(a.cfg.Sources) > 0 {
				pass, cleanup, err := a.newsPass(ctx, sink)
				if err != nil {
					return err
				}
				defer cleanup()
				passes["news"] = server.Pass(pass)
			}
			if input != "" && work != "" {
				pass, cleanup, err := a.booksPass(ctx, input, work, sink)
				if err != nil {
					return err
				}
				defer cleanup()
				passes["books"] = server.Pass(pass)
			}

			srv = server.NewWSServer(server.Config{Addr: a.cfg.Server.Addr, Passes: passes}, a.metrics, a.log)
			color.Cyan("Serving on %s (passes: %d)", a.cfg.Server.Addr, len(passes))
			return srv.ListenAndServe(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address")
	cmd.Flags().StringVar(&input, "books-input", "", "Input directory of the books pass")
	cmd.Flags().StringVar(&work, "books-work", "", "Work directory of the books pass")
	return cmd
}
