package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/xhad/narrator/pkg/config"
	"github.com/xhad/narrator/pkg/llm"
	"github.com/xhad/narrator/pkg/logger"
	"github.com/xhad/narrator/pkg/metrics"
)

// app carries the global flags and everything built from them.
type app struct {
	configPath string
	provider   string
	model      string
	logLevel   string

	cfg      *config.Config
	log      logger.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{}
	root := a.rootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "narrator",
		Short:         "Track web sources and books, summarize what changed and read it aloud",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "Path to config file")
	flags.StringVar(&a.provider, "provider", "", "LLM provider ("+providerNames()+")")
	flags.StringVar(&a.model, "model", "", "LLM model to use")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	root.AddCommand(
		a.newsCommand(),
		a.booksCommand(),
		a.chunkCommand(),
		a.randomCommand(),
		a.diffCommand(),
		a.searchCommand(),
		a.serveCommand(),
	)
	return root
}

func providerNames() string {
	names := make([]string, len(llm.Providers))
	for i, p := range llm.Providers {
		names[i] = string(p)
	}
	return strings.Join(names, ", ")
}

// setup loads the configuration, applies the global flags and validates
// the result.
func (a *app) setup() error {
	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	if a.provider != "" {
		cfg.LLM.Provider = llm.Provider(a.provider)
		if a.model == "" {
			cfg.LLM.Model = ""
		}
	}
	if a.model != "" {
		cfg.LLM.Model = a.model
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}

	if err := validate(cfg); err != nil {
		return err
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.log = log
	a.registry = prometheus.NewRegistry()
	a.metrics = metrics.New(a.registry)
	return nil
}

// validate joins the validation errors of cfg. Commands call it again after
// applying their own flags.
func validate(cfg *config.Config) error {
	errs := cfg.Validate()
	if len(errs) == 0 {
		return nil
	}
	joined := make([]error, len(errs))
	for i, e := range errs {
		joined[i] = e
	}
	return fmt.Errorf("invalid configuration: %w", errors.Join(joined...))
}
