package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"

	"pressbrief/pkg/config"
	"pressbrief/pkg/content"
	"pressbrief/pkg/email"
	"pressbrief/pkg/feed"
	"pressbrief/pkg/image"
	"pressbrief/pkg/llm"
	"pressbrief/pkg/newsletter"
	"pressbrief/pkg/repository"
	"pressbrief/pkg/scheduler"
	"pressbrief/pkg/service"
	"pressbrief/server"
)

// Opts with all CLI options
type Opts struct {
	Config string `short:"f" long:"config" env:"CONFIG" default:"config.yml" description:"config file path"`

	// Common options
	Debug   bool `long:"dbg" env:"DEBUG" description:"debug mode"`
	Version bool `short:"V" long:"version" description:"show version info"`
	NoColor bool `long:"no-color" env:"NO_COLOR" description:"disable color output"`
}

var revision = "unknown"

func main() {
	var opts Opts
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if opts.Version {
		fmt.Printf("Version: %s\nGolang: %s\n", revision, runtime.Version())
		os.Exit(0)
	}

	// Load validates against the embedded schema as part of parsing
	cfg, err := config.Load(opts.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	setupLog(opts.Debug, opts.NoColor, cfg.LLM.APIKey, cfg.Email.APIKey, cfg.Image.FallbackAPIKey, cfg.Image.HostAPIKey)

	log.Printf("[INFO] starting pressbrief version %s", revision)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// handle termination signals
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		log.Print("[INFO] termination signal received")
		cancel()
	}()

	if err := run(ctx, cfg, opts.Debug); err != nil {
		log.Printf("[ERROR] %v", err)
		os.Exit(1)
	}

	log.Print("[INFO] shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, dbg bool) error {
	repos, err := repository.NewRepositories(ctx, repository.Config{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Database.ConnMaxLifetime) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	defer func() {
		if closeErr := repos.Close(); closeErr != nil {
			log.Printf("[WARN] failed to close database: %v", closeErr)
		}
	}()

	// judges share one API client
	llmClient := llm.NewClient(cfg.LLM)
	copyJudge := llm.NewDecorator(llmClient)

	compiler, err := newsletter.NewCompiler(repos.Decoration, repos.Issue, cfg.Newsletter)
	if err != nil {
		return fmt.Errorf("init compiler: %w", err)
	}

	location := cfg.Location()

	weekdays := make([]time.Weekday, 0, len(cfg.Schedule.Weekdays))
	for _, d := range cfg.Schedule.Weekdays {
		weekdays = append(weekdays, time.Weekday(d))
	}

	sched := scheduler.NewScheduler(scheduler.Deps{
		Feeds:      repos.Feed,
		Articles:   repos.Article,
		Candidates: repos.Candidate,
		Issues:     repos.Issue,
		Images:     repos.Decoration,

		Parser:    feed.NewParser(cfg.Ingest.Timeout, cfg.Ingest.UserAgent),
		Scraper:   feed.NewScraper(cfg.Ingest.Timeout, cfg.Ingest.UserAgent),
		Extractor: content.NewHTTPExtractor(cfg.Ingest.Timeout, cfg.Ingest.UserAgent, cfg.Ingest.MinTextLength),
		Scorer:    llm.NewScorer(llmClient),

		Aggregator: newsletter.NewAggregator(repos.Article, repos.Source, repos.Issue, cfg.Newsletter),
		PreFilter:  newsletter.NewPreFilter(llm.NewPreFilterJudge(llmClient), repos.PreFilter, repos.Issue, cfg.Newsletter),
		Selector: newsletter.NewSelector(llm.NewSelectJudge(llmClient), llm.NewSubjectWriter(llmClient),
			repos.PreFilter, repos.Candidate, repos.Issue, cfg.Newsletter),
		Decorator:   newsletter.NewDecorator(copyJudge, repos.Article, repos.Decoration, repos.Issue, cfg.Newsletter),
		Compiler:    compiler,
		Distributor: newsletter.NewDistributor(email.NewClient(cfg.Email), repos.Issue),

		Generator: image.NewGenerator(cfg.Image, cfg.LLM),
		Host:      image.NewHostClient(cfg.Image.HostEndpoint, cfg.Image.HostAPIKey, cfg.Image.Timeout),
		Social:    service.NewSocialService(repos.Decoration),
	}, scheduler.Config{
		IngestInterval: time.Duration(cfg.Schedule.IngestInterval) * time.Minute,
		ScoreInterval:  time.Duration(cfg.Schedule.ScoreInterval) * time.Minute,
		ImageInterval:  time.Duration(cfg.Schedule.ImageInterval) * time.Minute,
		PipelineHour:   cfg.Schedule.PipelineHour,
		SendHour:       cfg.Schedule.SendHour,
		MaxWorkers:     cfg.Schedule.MaxWorkers,
		MinInterest:    cfg.LLM.Scoring.MinInterest,
		BatchSize:      cfg.LLM.Scoring.BatchSize,
		TargetWidth:    cfg.Image.TargetWidth,
		Weekdays:       weekdays,
		Location:       location,
	})

	sched.Start(ctx)
	defer sched.Stop()

	srv := server.New(server.Config{
		Listen:  cfg.Server.Listen,
		Timeout: cfg.Server.Timeout,
		Version: revision,
		Debug:   dbg,
	}, repos.Issue, repos.Candidate, sched)

	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

func setupLog(dbg, noColor bool, secs ...string) {
	logOpts := []lgr.Option{lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	if dbg {
		logOpts = append(logOpts, lgr.Debug)
	}

	if !noColor {
		colorizer := lgr.Mapper{
			ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
			WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
			InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
			DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
			CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
			TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
		}
		logOpts = append(logOpts, lgr.Map(colorizer))
	}

	for _, sec := range secs {
		if sec != "" {
			logOpts = append(logOpts, lgr.Secret(sec))
		}
	}

	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
