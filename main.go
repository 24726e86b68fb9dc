package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/Conceptual-Machines/magda-composer/internal/api"
	apimiddleware "github.com/Conceptual-Machines/magda-composer/internal/api/middleware"
	"github.com/Conceptual-Machines/magda-composer/internal/config"
	"github.com/Conceptual-Machines/magda-composer/internal/database"
	"github.com/Conceptual-Machines/magda-composer/internal/logger"
	"github.com/Conceptual-Machines/magda-composer/internal/metrics"
	"github.com/Conceptual-Machines/magda-composer/internal/observability"
	"github.com/Conceptual-Machines/magda-composer/internal/publish"
	"github.com/Conceptual-Machines/magda-composer/internal/services"
)

const (
	sentryFlushTimeout    = 2 * time.Second
	environmentProduction = "production"
	defaultTokenTTL       = 24 * time.Hour
	readHeaderTimeout     = 10 * time.Second
	shutdownTimeout       = 15 * time.Second
)

// releaseVersion is set via ldflags during build
var releaseVersion = "dev"

// GetVersion returns the current release version
func GetVersion() string {
	return releaseVersion
}

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()

	if flush := initSentry(cfg); flush != nil {
		defer flush()
	}

	app := &cli.App{
		Name:    "magda-composer",
		Usage:   "learn a MIDI corpus and compose new pieces with an LSTM",
		Version: releaseVersion,
		Flags:   pipelineFlags(),
		Before: func(c *cli.Context) error {
			applyFlags(c, cfg)
			return nil
		},
		Action: func(c *cli.Context) error {
			return serve(c.Context, cfg)
		},
		Commands: []*cli.Command{
			{
				Name:  "extract",
				Usage: "scan the corpus and write the vocabulary and token stream",
				Flags: pipelineFlags(),
				Action: func(c *cli.Context) error {
					applyFlags(c, cfg)
					return extract(c.Context, cfg)
				},
			},
			{
				Name:  "train",
				Usage: "fit the model on the extracted corpus and write a checkpoint",
				Flags: append(pipelineFlags(), &cli.IntFlag{Name: "epochs", Usage: "training epochs"}),
				Action: func(c *cli.Context) error {
					applyFlags(c, cfg)
					return train(c.Context, cfg, c.Int("epochs"))
				},
			},
			{
				Name:  "generate",
				Usage: "compose new pieces from the trained checkpoint",
				Flags: pipelineFlags(),
				Action: func(c *cli.Context) error {
					applyFlags(c, cfg)
					return generate(c.Context, cfg)
				},
			},
			{
				Name:  "serve",
				Usage: "run the HTTP API",
				Flags: pipelineFlags(),
				Action: func(c *cli.Context) error {
					applyFlags(c, cfg)
					return serve(c.Context, cfg)
				},
			},
			{
				Name:  "token",
				Usage: "issue a bearer token for AUTH_MODE=jwt",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "subject", Value: "cli", Usage: "token subject"},
					&cli.DurationFlag{Name: "ttl", Value: defaultTokenTTL, Usage: "token lifetime"},
				},
				Action: func(c *cli.Context) error {
					token, err := apimiddleware.IssueToken(cfg.JWTSecret, c.String("subject"), c.Duration("ttl"))
					if err != nil {
						return err
					}
					fmt.Println(token)
					return nil
				},
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		sentry.CaptureException(err)
		logger.Error("Command failed", err, nil)
		sentry.Flush(sentryFlushTimeout)
		os.Exit(1)
	}
}

// pipelineFlags override the matching config keys when set
func pipelineFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "weights", Aliases: []string{"w"}, Usage: "checkpoint path (CHECKPOINT_PATH)"},
		&cli.IntFlag{Name: "number", Aliases: []string{"n"}, Usage: "number of pieces to generate (OUTPUT_COUNT)"},
		&cli.IntFlag{Name: "cells", Aliases: []string{"c"}, Usage: "LSTM width (CELLS)"},
		&cli.BoolFlag{Name: "optimizer", Aliases: []string{"o"}, Usage: "regroup parts into measures before writing (MAKE_NOTATION)"},
		&cli.StringFlag{Name: "corpus", Usage: "corpus directory (CORPUS_DIR)"},
		&cli.StringFlag{Name: "output", Usage: "output directory (OUTPUT_DIR)"},
	}
}

func applyFlags(c *cli.Context, cfg *config.Config) {
	if c.IsSet("weights") {
		cfg.CheckpointPath = c.String("weights")
	}
	if c.IsSet("number") {
		cfg.OutputCount = c.Int("number")
	}
	if c.IsSet("cells") {
		cfg.Cells = c.Int("cells")
	}
	if c.IsSet("optimizer") {
		cfg.MakeNotation = c.Bool("optimizer")
	}
	if c.IsSet("corpus") {
		cfg.CorpusDir = c.String("corpus")
	}
	if c.IsSet("output") {
		cfg.OutputDir = c.String("output")
	}
}

// newComposer wires the pipeline and its optional collaborators
func newComposer(ctx context.Context, cfg *config.Config) (*services.Composer, *metrics.Client, error) {
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	cw, err := metrics.NewClient(ctx, cfg.Environment)
	if err != nil {
		return nil, nil, err
	}
	publisher, err := publish.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	tracer := observability.NewLangfuse(ctx, cfg)

	seed := time.Now().UnixNano()
	composer := services.NewComposer(cfg,
		services.NewNamer(ctx, cfg, tracer, seed),
		services.WithRunService(services.NewRunService(db)),
		services.WithPublisher(publisher),
		services.WithMetrics(cw, metrics.NewSentryMetrics()),
		services.WithTracer(tracer),
		services.WithSeed(seed),
	)
	return composer, cw, nil
}

func extract(ctx context.Context, cfg *config.Config) error {
	composer, _, err := newComposer(ctx, cfg)
	if err != nil {
		return err
	}
	res, err := composer.Extract(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("✅ %d files (%d skipped, %s), %d tokens, vocabulary %d -> %s\n",
		len(res.Artifact.Files), res.Scan.Skipped, humanize.Bytes(res.Scan.Bytes),
		len(res.Artifact.IDs), len(res.Artifact.Vocabulary), cfg.ArtifactPath)
	return nil
}

func train(ctx context.Context, cfg *config.Config, epochs int) error {
	composer, _, err := newComposer(ctx, cfg)
	if err != nil {
		return err
	}
	res, err := composer.Train(ctx, services.TrainOptions{Epochs: epochs})
	if err != nil {
		return err
	}
	fmt.Printf("✅ trained on %d samples for %d epochs in %s (loss %.4f) -> %s\n",
		res.Samples, res.Epochs, logger.HumanDuration(res.Duration), res.FinalLoss, res.Checkpoint)
	return nil
}

func generate(ctx context.Context, cfg *config.Config) error {
	composer, _, err := newComposer(ctx, cfg)
	if err != nil {
		return err
	}
	outputs, err := composer.Generate(ctx, services.GenerateOptions{})
	for _, out := range outputs {
		fmt.Printf("✅ %s (%d parts, %d events)\n", out.Path, len(out.Parts), out.Events)
		for _, w := range out.Warnings {
			fmt.Printf("   ⚠️  %s\n", w.Message)
		}
	}
	return err
}

func serve(ctx context.Context, cfg *config.Config) error {
	composer, cw, err := newComposer(ctx, cfg)
	if err != nil {
		return err
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.IsJWTMode() && cfg.JWTSecret == "" {
		return fmt.Errorf("AUTH_MODE=jwt requires JWT_SECRET")
	}

	router := api.SetupRouter(cfg, composer, cw, GetVersion())

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", srv.Addr, err)
	}

	log.Printf("🚀 Starting server on port %s", cfg.Port)
	return runServer(ctx, srv, ln)
}

// runServer serves until ctx is canceled, then drains in-flight requests
func runServer(ctx context.Context, srv *http.Server, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Println("🛑 Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

func initSentry(cfg *config.Config) func() {
	if cfg.SentryDSN == "" {
		log.Println("⚠️  Sentry not configured (SENTRY_DSN not set)")
		return nil
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.SentryDSN,
		Environment:      cfg.Environment,
		Release:          "magda-composer@" + releaseVersion,
		EnableTracing:    true,
		TracesSampleRate: 1.0,
		EnableLogs:       true,
		Debug:            cfg.Environment != environmentProduction,
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			if event.Request != nil {
				event.Request.Headers = filterSensitiveHeaders(event.Request.Headers)
			}
			return event
		},
	}); err != nil {
		log.Printf("Failed to initialize Sentry: %v", err)
		return nil
	}

	log.Printf("✅ Sentry initialized (environment: %s, release: %s)", cfg.Environment, releaseVersion)
	return func() { sentry.Flush(sentryFlushTimeout) }
}

func filterSensitiveHeaders(headers map[string]string) map[string]string {
	filtered := make(map[string]string)
	sensitiveKeys := map[string]bool{
		"authorization": true,
		"cookie":        true,
		"x-api-key":     true,
	}

	for k, v := range headers {
		if sensitiveKeys[k] {
			filtered[k] = "[REDACTED]"
		} else {
			filtered[k] = v
		}
	}
	return filtered
}
