package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/bdougie/framevocab/internal/analyzer"
	"github.com/bdougie/framevocab/internal/config"
	"github.com/bdougie/framevocab/internal/extractor"
	"github.com/bdougie/framevocab/internal/logging"
	"github.com/bdougie/framevocab/internal/metrics"
	"github.com/bdougie/framevocab/internal/models"
	"github.com/bdougie/framevocab/internal/notify"
	"github.com/bdougie/framevocab/internal/pipeline"
	"github.com/bdougie/framevocab/internal/recognizer"
	"github.com/bdougie/framevocab/internal/storage"
	"github.com/bdougie/framevocab/internal/tracing"
)

// Exit codes.
const (
	exitOK          = 0
	exitVideoFailed = 1
	exitUsage       = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cfg, err := config.Load(args)
	if errors.Is(err, config.ErrHelp) {
		fmt.Fprint(stdout, config.Usage)
		return exitOK
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n\n%s", err, config.Usage)
		return exitUsage
	}

	files, err := storage.NewFiles(cfg.OutputDir)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	logFile, err := logging.OpenLogFile(cfg.LogPath())
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}
	defer logFile.Close()

	runID := uuid.New()
	base := logging.New(stderr, logFile, cfg.Debug)
	logger := base.With(slog.String("run_id", runID.String()))

	// The first signal stops the batch at the next frame boundary; a second
	// one kills the process.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		stop()
	}()

	if cfg.OTLPEndpoint != "" {
		tp, err := tracing.InitTracer(ctx, cfg.OTLPEndpoint)
		if err != nil {
			logger.Warn("tracing disabled", slog.Any("error", err))
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				tp.Shutdown(shutdownCtx)
			}()
		}
	}

	engine, err := newEngine(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize recognition engine", slog.Any("error", err))
		return exitUsage
	}

	var opts []recognizer.Option
	if cfg.Debug {
		opts = append(opts, recognizer.WithDebugWriter(files))
	}

	sinks := openSinks(ctx, cfg, logger)
	defer func() {
		for _, s := range sinks {
			if err := s.Close(); err != nil {
				logger.Warn("failed to close sink", slog.String("sink", s.Name()), slog.Any("error", err))
			}
		}
	}()

	videos, err := extractor.ExpandInputs(cfg.Videos)
	if err != nil {
		logger.Error("failed to expand inputs", slog.Any("error", err))
		return exitUsage
	}

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	ffmpeg := extractor.NewFFmpeg(cfg.FFmpeg.Path, cfg.FFmpeg.ProbePath, logger)
	m := metrics.New()
	orch := pipeline.New(pipeline.Config{
		Gap:       cfg.Gap(),
		Languages: cfg.LanguageSet(),
		Outputs:   cfg.Outputs(),
		Workers:   cfg.Workers,
	}, pipeline.Deps{
		Prober:     ffmpeg,
		Decoder:    ffmpeg,
		Recognizer: recognizer.NewAdapter(engine, logger, opts...),
		Writer:     files,
		Sinks:      sinks,
		Metrics:    m,
		Logger:     base,
		RunID:      runID,
	})

	logger.Info("starting batch",
		slog.Int("videos", len(videos)),
		slog.String("languages", cfg.LanguageSet().String()),
		slog.Float64("frame_gap", cfg.FrameGap),
		slog.String("engine", cfg.Engine),
		slog.Int("workers", cfg.Workers),
	)
	start := time.Now()
	outcomes := orch.Run(ctx, videos)

	printSummary(stdout, outcomes, time.Since(start))

	if cfg.MetricsFile != "" {
		if err := m.WriteTextfile(cfg.MetricsFile); err != nil {
			logger.Warn("failed to write metrics", slog.Any("error", err))
		}
	}

	for _, o := range outcomes {
		if o.Status == models.StatusFailed {
			return exitVideoFailed
		}
	}
	return exitOK
}

func newEngine(ctx context.Context, cfg config.Config, logger *slog.Logger) (recognizer.Engine, error) {
	switch cfg.Engine {
	case config.EngineOllama:
		a, err := analyzer.NewAgent(ctx, analyzer.AgentConfig{
			BaseURL: cfg.Ollama.BaseURL,
			Port:    cfg.Ollama.Port,
			Model:   cfg.Ollama.Model,
		}, logger)
		if err != nil {
			return nil, err
		}
		return analyzer.NewEngine(a, logger), nil
	default:
		return recognizer.NewTesseract(cfg.Tesseract.Path, cfg.Tesseract.Args, logger), nil
	}
}

// openSinks connects every configured sink. A sink that cannot be reached
// is skipped; the batch runs without it.
func openSinks(ctx context.Context, cfg config.Config, logger *slog.Logger) []storage.Sink {
	var sinks []storage.Sink

	if cfg.Postgres.URL != "" {
		pg, err := storage.NewPostgres(ctx, cfg.Postgres.URL)
		if err != nil {
			logger.Warn("postgres sink disabled", slog.Any("error", err))
		} else {
			sinks = append(sinks, pg)
		}
	}

	if cfg.S3.Endpoint != "" {
		store, err := storage.NewObjectStore(ctx, storage.ObjectConfig{
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			UseSSL:    cfg.S3.UseSSL,
			Bucket:    cfg.S3.Bucket,
			Prefix:    cfg.S3.Prefix,
		})
		if err != nil {
			logger.Warn("object storage sink disabled", slog.Any("error", err))
		} else {
			sinks = append(sinks, store)
		}
	}

	if cfg.AMQP.URL != "" {
		pub, err := notify.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Queue)
		if err != nil {
			logger.Warn("rabbitmq sink disabled", slog.Any("error", err))
		} else {
			sinks = append(sinks, pub)
		}
	}

	return sinks
}

func printSummary(w io.Writer, outcomes []models.ProcessingOutcome, elapsed time.Duration) {
	counts := map[models.Status]int{}
	fmt.Fprintln(w)
	for _, o := range outcomes {
		counts[o.Status]++
		switch o.Status {
		case models.StatusFailed:
			fmt.Fprintf(w, "✗ %s: %s (%v)\n", o.Video, o.Reason(), o.Err)
		case models.StatusPartiallyCompleted:
			fmt.Fprintf(w, "~ %s: %d words, %d/%d frames failed -> %s\n",
				o.Video, len(o.Words), len(o.Failures), o.Frames, o.OutputPath)
		default:
			fmt.Fprintf(w, "✓ %s: %d words -> %s\n", o.Video, len(o.Words), o.OutputPath)
		}
	}
	fmt.Fprintf(w, "\nProcessed %d videos in %s: %d completed, %d partial, %d failed\n",
		len(outcomes), elapsed.Round(time.Millisecond),
		counts[models.StatusCompleted], counts[models.StatusPartiallyCompleted], counts[models.StatusFailed])
}
