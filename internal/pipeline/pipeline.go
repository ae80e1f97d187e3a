// Package pipeline drives each video through sampling, recognition and
// aggregation, and turns every outcome into exactly one ProcessingOutcome.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/bdougie/framevocab/internal/extractor"
	"github.com/bdougie/framevocab/internal/metrics"
	"github.com/bdougie/framevocab/internal/models"
	"github.com/bdougie/framevocab/internal/sampler"
	"github.com/bdougie/framevocab/internal/storage"
	"github.com/bdougie/framevocab/internal/vocabulary"
)

const (
	sinkTimeout  = 30 * time.Second
	similarLimit = 3
)

// Prober reports a video's duration.
type Prober interface {
	Probe(ctx context.Context, videoPath string) (time.Duration, error)
}

// Recognizer runs one combined recognition pass over a frame.
type Recognizer interface {
	Recognize(ctx context.Context, frame models.Frame, langs models.LanguageSet) (models.RecognitionResult, error)
}

// Writer persists the vocabulary and the optional per-frame artifacts.
type Writer interface {
	WriteWords(video string, words []string) (string, error)
	SaveFrame(frame models.Frame) error
	SaveFrameText(video string, result models.RecognitionResult) error
}

// SimilarFinder is a sink that can look up stored videos with overlapping
// vocabulary.
type SimilarFinder interface {
	SimilarVideos(ctx context.Context, name string, limit int) ([]storage.SimilarVideo, error)
}

var _ SimilarFinder = (*storage.Postgres)(nil)

// Config holds the per-run settings shared by every video.
type Config struct {
	Gap       time.Duration
	Languages models.LanguageSet
	Outputs   models.OutputOptions
	Workers   int
}

// Deps are the collaborators of an Orchestrator. Sinks, Metrics and RunID
// are optional.
type Deps struct {
	Prober     Prober
	Decoder    sampler.Decoder
	Recognizer Recognizer
	Writer     Writer
	Sinks      []storage.Sink
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
	RunID      uuid.UUID
}

// Orchestrator processes videos one at a time. Frames of a single video may
// be recognized in parallel; results are always aggregated in frame order.
type Orchestrator struct {
	cfg        Config
	prober     Prober
	decoder    sampler.Decoder
	recognizer Recognizer
	writer     Writer
	tokenizer  *vocabulary.Tokenizer
	sinks      []storage.Sink
	metrics    *metrics.Metrics
	logger     *slog.Logger
	tracer     trace.Tracer
	runID      uuid.UUID

	mu      sync.Mutex
	claimed map[string]string // output name -> input path
}

func New(cfg Config, deps Deps) *Orchestrator {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.RunID == uuid.Nil {
		deps.RunID = uuid.New()
	}
	logger := deps.Logger.With(slog.String("run_id", deps.RunID.String()))

	return &Orchestrator{
		cfg:        cfg,
		prober:     deps.Prober,
		decoder:    deps.Decoder,
		recognizer: deps.Recognizer,
		writer:     deps.Writer,
		tokenizer:  vocabulary.NewTokenizer(),
		sinks:      deps.Sinks,
		metrics:    deps.Metrics,
		logger:     logger,
		tracer:     otel.Tracer("github.com/bdougie/framevocab/internal/pipeline"),
		runID:      deps.RunID,
		claimed:    make(map[string]string),
	}
}

// RunID identifies this batch in logs, events and stored runs.
func (o *Orchestrator) RunID() uuid.UUID { return o.runID }

// Run processes paths in order. A failing video never prevents the next one
// from being attempted; one outcome is returned per path.
func (o *Orchestrator) Run(ctx context.Context, paths []string) []models.ProcessingOutcome {
	outcomes := make([]models.ProcessingOutcome, 0, len(paths))
	for i, path := range paths {
		o.logger.Info("processing video",
			slog.String("path", path),
			slog.Int("video", i+1),
			slog.Int("total", len(paths)),
		)
		outcomes = append(outcomes, o.ProcessVideo(ctx, path))
	}
	return outcomes
}

// ProcessVideo runs one video to a terminal status. ctx is checked between
// frames only; when it ends the video fails with models.ErrTimedOut.
func (o *Orchestrator) ProcessVideo(ctx context.Context, path string) models.ProcessingOutcome {
	start := time.Now()
	name := models.VideoName(path)
	log := o.logger.With(slog.String("video", name))

	ctx, span := o.tracer.Start(ctx, "ProcessVideo", trace.WithAttributes(
		attribute.String("video.path", path),
		attribute.String("run.id", o.runID.String()),
	))
	defer span.End()

	run := &videoRun{
		o:   o,
		log: log,
		out: models.ProcessingOutcome{Video: name, Path: path, Status: models.StatusPending},
	}
	out := run.process(ctx, path)
	out.Elapsed = time.Since(start)

	span.SetAttributes(
		attribute.String("video.status", string(out.Status)),
		attribute.Int("video.frames", out.Frames),
		attribute.Int("video.words", len(out.Words)),
	)
	if out.Err != nil {
		span.RecordError(out.Err)
		span.SetStatus(codes.Error, out.Reason())
	}

	o.record(out, log)
	o.publish(ctx, out, log)
	o.logSimilar(ctx, out, log)
	return out
}

// claim reserves the output name of path for this batch. A second input
// with the same name would overwrite the first one's artifacts.
func (o *Orchestrator) claim(name, path string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if prev, ok := o.claimed[name]; ok && prev != path {
		return fmt.Errorf("%w: output name %q is already used by %s", models.ErrOutputWriteFailed, name, prev)
	}
	o.claimed[name] = path
	return nil
}

// videoRun carries the state of one video through the state machine.
type videoRun struct {
	o   *Orchestrator
	log *slog.Logger
	out models.ProcessingOutcome
}

func (r *videoRun) transition(to models.Status) {
	r.log.Debug("video state changed",
		slog.String("from", string(r.out.Status)),
		slog.String("to", string(to)),
	)
	r.out.Status = to
}

func (r *videoRun) fail(err error) models.ProcessingOutcome {
	r.transition(models.StatusFailed)
	r.out.Err = err
	r.out.Words = nil
	r.out.OutputPath = ""
	return r.out
}

func (r *videoRun) process(ctx context.Context, path string) models.ProcessingOutcome {
	o := r.o
	if err := ctx.Err(); err != nil {
		return r.fail(timedOut(err))
	}
	if err := extractor.CheckVideo(path); err != nil {
		return r.fail(err)
	}
	if err := o.claim(r.out.Video, path); err != nil {
		return r.fail(err)
	}

	duration, err := o.prober.Probe(context.WithoutCancel(ctx), path)
	if err != nil {
		r.log.Warn("could not read video duration, sampling the first frame only", slog.Any("error", err))
		duration = 0
	}
	job := models.NewVideoJob(path, duration, o.cfg.Gap, o.cfg.Languages, o.cfg.Outputs)

	stamps, err := sampler.Timestamps(job.Duration, job.Gap)
	if err != nil {
		return r.fail(err)
	}
	r.out.Frames = len(stamps)

	r.transition(models.StatusSampling)
	results, sampled, err := r.sampleAndRecognize(ctx, job, len(stamps))

	failures := append([]models.FrameFailure(nil), sampled.Failures...)
	failures = append(failures, results.failures...)
	sort.Slice(failures, func(i, j int) bool { return failures[i].Index < failures[j].Index })
	r.out.Failures = failures
	r.out.Recognized = len(results.byIndex)

	switch {
	case err != nil && errors.Is(err, models.ErrRecognitionUnavailable):
		return r.fail(err)
	case err != nil && ctx.Err() != nil:
		return r.fail(timedOut(ctx.Err()))
	case err != nil:
		return r.fail(err)
	case sampled.Extracted == 0:
		return r.fail(fmt.Errorf("%w: none of %d timestamps could be decoded", models.ErrNoFramesExtracted, len(stamps)))
	case len(results.byIndex) == 0:
		return r.fail(fmt.Errorf("%w: none of %d extracted frames was recognized", models.ErrRecognitionFailed, sampled.Extracted))
	}

	r.transition(models.StatusAggregating)
	aggStart := time.Now()
	agg := vocabulary.NewAggregator(o.tokenizer)
	for _, idx := range results.indices() {
		res := results.byIndex[idx]
		if job.Outputs.SaveFrameText {
			if err := o.writer.SaveFrameText(job.Name, res); err != nil {
				r.log.Warn("failed to save frame text", slog.Int("frame", idx), slog.Any("error", err))
			}
		}
		if _, err := agg.Add(res); err != nil {
			return r.fail(err)
		}
	}
	vocab := agg.Finalize()

	outputPath, err := o.writer.WriteWords(job.Name, vocab.Words())
	if err != nil {
		return r.fail(err)
	}
	o.metrics.StageDuration.WithLabelValues("aggregate").Observe(time.Since(aggStart).Seconds())

	r.out.Words = vocab.Words()
	r.out.OutputPath = outputPath
	if len(failures) == 0 {
		r.transition(models.StatusCompleted)
	} else {
		r.transition(models.StatusPartiallyCompleted)
	}
	return r.out
}

// recognized collects per-frame results from the workers.
type recognized struct {
	mu       sync.Mutex
	byIndex  map[int]models.RecognitionResult
	failures []models.FrameFailure
}

func (c *recognized) indices() []int {
	idx := make([]int, 0, len(c.byIndex))
	for i := range c.byIndex {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	return idx
}

// sampleAndRecognize streams frames from the sampler into recognition. With a
// single worker every frame is recognized before the next one is decoded;
// otherwise a bounded pool drains a work channel, as frames are decoded.
func (r *videoRun) sampleAndRecognize(ctx context.Context, job models.VideoJob, total int) (*recognized, sampler.Result, error) {
	o := r.o
	results := &recognized{byIndex: make(map[int]models.RecognitionResult)}

	var done atomic.Int64

	// In-flight recognitions run to completion even after ctx ends.
	callCtx := context.WithoutCancel(ctx)

	recognize := func(work models.WorkItem) error {
		f := work.Frame
		defer func() {
			r.log.Debug("frame done",
				slog.Int("frame", f.Index),
				slog.Int64("done", done.Add(1)),
				slog.Int("total", work.Total),
			)
		}()

		started := time.Now()
		res, err := o.recognizer.Recognize(callCtx, f, job.Languages)
		o.metrics.StageDuration.WithLabelValues("recognize").Observe(time.Since(started).Seconds())

		if err != nil {
			if errors.Is(err, models.ErrRecognitionUnavailable) {
				return err
			}
			r.log.Warn("frame recognition failed",
				slog.Int("frame", f.Index),
				slog.Duration("timestamp", f.Timestamp),
				slog.Any("error", err),
			)
			results.mu.Lock()
			results.failures = append(results.failures, models.FrameFailure{
				Index:     f.Index,
				Timestamp: f.Timestamp,
				Stage:     "recognize",
				Err:       err,
			})
			results.mu.Unlock()
			return nil
		}

		results.mu.Lock()
		results.byIndex[f.Index] = res
		results.mu.Unlock()
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	var workChan chan models.WorkItem
	if o.cfg.Workers > 1 {
		workChan = make(chan models.WorkItem, o.cfg.Workers)
		for i := 0; i < o.cfg.Workers; i++ {
			g.Go(func() error {
				for work := range workChan {
					if gctx.Err() != nil {
						continue
					}
					if err := recognize(work); err != nil {
						return err
					}
				}
				return nil
			})
		}
	}

	first := true
	framesStart := time.Now()
	sampled, sampleErr := sampler.New(o.decoder, r.log).Sample(gctx, job, func(f models.Frame) error {
		if first {
			r.transition(models.StatusRecognizing)
			first = false
		}
		if job.Outputs.SaveFrames {
			if err := o.writer.SaveFrame(f); err != nil {
				r.log.Warn("failed to save frame", slog.Int("frame", f.Index), slog.Any("error", err))
			}
		}

		work := models.WorkItem{Frame: f, Total: total}
		if workChan == nil {
			return recognize(work)
		}
		select {
		case workChan <- work:
			return nil
		case <-gctx.Done():
			return gctx.Err()
		}
	})
	if workChan != nil {
		close(workChan)
	}
	poolErr := g.Wait()
	o.metrics.StageDuration.WithLabelValues("frames").Observe(time.Since(framesStart).Seconds())

	extractFailed := len(sampled.Failures)
	o.metrics.Frames.WithLabelValues("extracted").Add(float64(sampled.Extracted))
	o.metrics.Frames.WithLabelValues("extract_failed").Add(float64(extractFailed))
	o.metrics.Frames.WithLabelValues("recognized").Add(float64(len(results.byIndex)))
	o.metrics.Frames.WithLabelValues("recognize_failed").Add(float64(len(results.failures)))

	r.log.Debug("frames finished",
		slog.Int("total", total),
		slog.Int("extracted", sampled.Extracted),
		slog.Int("extract_failed", extractFailed),
		slog.Int64("recognize_attempted", done.Load()),
		slog.Int("recognized", len(results.byIndex)),
		slog.Int("recognize_failed", len(results.failures)),
	)

	// A pool error is the root cause; the sampler then only saw the
	// cancellation it triggered.
	if poolErr != nil {
		return results, sampled, poolErr
	}
	return results, sampled, sampleErr
}

func timedOut(err error) error {
	return fmt.Errorf("%w: %v", models.ErrTimedOut, err)
}

func (o *Orchestrator) record(out models.ProcessingOutcome, log *slog.Logger) {
	o.metrics.VideosProcessed.WithLabelValues(string(out.Status), out.Reason()).Inc()

	if !out.Status.Succeeded() {
		log.Error("video failed",
			slog.String("reason", out.Reason()),
			slog.Any("error", out.Err),
			slog.Int("frames", out.Frames),
			slog.Duration("elapsed", out.Elapsed),
		)
		return
	}

	o.metrics.VocabularySize.Observe(float64(len(out.Words)))
	log.Info("video processed",
		slog.String("status", string(out.Status)),
		slog.Int("words", len(out.Words)),
		slog.Int("frames", out.Frames),
		slog.Int("failed_frames", len(out.Failures)),
		slog.String("output", out.OutputPath),
		slog.Duration("elapsed", out.Elapsed),
	)
}

// publish hands the outcome to every sink. Sink errors are logged and
// counted; they never change the outcome.
func (o *Orchestrator) publish(ctx context.Context, out models.ProcessingOutcome, log *slog.Logger) {
	if len(o.sinks) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sinkTimeout)
	defer cancel()

	for _, sink := range o.sinks {
		if err := sink.Publish(ctx, o.runID, out); err != nil {
			o.metrics.SinkErrors.WithLabelValues(sink.Name()).Inc()
			log.Warn("failed to publish outcome", slog.String("sink", sink.Name()), slog.Any("error", err))
		}
	}
}

// logSimilar reports the stored videos closest to a finished one. Lookup
// errors are logged only.
func (o *Orchestrator) logSimilar(ctx context.Context, out models.ProcessingOutcome, log *slog.Logger) {
	if !out.Status.Succeeded() {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sinkTimeout)
	defer cancel()

	for _, sink := range o.sinks {
		finder, ok := sink.(SimilarFinder)
		if !ok {
			continue
		}
		matches, err := finder.SimilarVideos(ctx, out.Video, similarLimit)
		if err != nil {
			log.Warn("failed to look up similar videos", slog.String("sink", sink.Name()), slog.Any("error", err))
			continue
		}
		for _, m := range matches {
			log.Info("similar video",
				slog.String("sink", sink.Name()),
				slog.String("match", m.Name),
				slog.String("match_path", m.Path),
				slog.Float64("similarity", m.Similarity),
			)
		}
	}
}
