// Package worker drives queued analysis jobs through alignment, variant
// calling, annotation, and persistence.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ciromunive-dev/snp-bioinfo-service/internal/domain"
	"github.com/ciromunive-dev/snp-bioinfo-service/internal/ports"
	"github.com/ciromunive-dev/snp-bioinfo-service/internal/variantcall"
)

const (
	defaultPollInterval = 5 * time.Second
	defaultErrorPause   = 5 * time.Second
)

const noHitsMessage = "no significant alignments found; verify the sequence is from Homo sapiens"

// Deps wires the worker's collaborators.
type Deps struct {
	Queue     ports.JobQueue
	Store     ports.JobStore
	Aligner   ports.Aligner
	Annotator ports.Annotator
}

// Options tunes the polling cadence.
type Options struct {
	PollInterval time.Duration
	ErrorPause   time.Duration
}

// Worker is the top-level state machine. One job is processed at a time;
// scale-out means running more worker instances against the same queue, each
// relying on the queue's atomic pop for mutual exclusion.
type Worker struct {
	id           string
	queue        ports.JobQueue
	store        ports.JobStore
	aligner      ports.Aligner
	annotator    ports.Annotator
	pollInterval time.Duration
	errorPause   time.Duration
	sleep        func(ctx context.Context, d time.Duration) error
	logger       *slog.Logger
}

// New constructs a worker with a fresh instance identity for its log context.
func New(deps Deps, opts Options, logger *slog.Logger) *Worker {
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.ErrorPause <= 0 {
		opts.ErrorPause = defaultErrorPause
	}
	if logger == nil {
		logger = slog.Default()
	}

	id := uuid.NewString()
	return &Worker{
		id:           id,
		queue:        deps.Queue,
		store:        deps.Store,
		aligner:      deps.Aligner,
		annotator:    deps.Annotator,
		pollInterval: opts.PollInterval,
		errorPause:   opts.ErrorPause,
		sleep:        sleepContext,
		logger:       logger.With("worker_id", id),
	}
}

// Run polls the queue until the context is cancelled. Cancellation is checked
// at loop-iteration boundaries only; an in-flight job always runs to
// completion before the worker exits.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started", "poll_interval", w.pollInterval.String())

	for {
		if ctx.Err() != nil {
			w.logger.Info("worker stopped")
			return nil
		}

		jobID, err := w.queue.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			w.logger.Error("queue pop failed", "error", err)
			_ = w.sleep(ctx, w.errorPause)
			continue
		}

		if jobID == "" {
			_ = w.sleep(ctx, w.pollInterval)
			continue
		}

		w.logger.Info("job received", "job_id", jobID)
		w.processJob(context.WithoutCancel(ctx), jobID)
	}
}

// processJob drives one job through the pipeline. Any error or panic inside
// marks the job FAILED with the triggering message and never escapes, so a
// single bad job cannot terminate the worker.
func (w *Worker) processJob(ctx context.Context, jobID string) {
	err := w.runPipeline(ctx, jobID)
	if err == nil {
		return
	}

	w.logger.Error("job failed", "job_id", jobID, "error", err)
	msg := err.Error()
	if updateErr := w.store.UpdateStatus(ctx, jobID, domain.StatusFailed, &msg); updateErr != nil {
		w.logger.Error("cannot persist FAILED status", "job_id", jobID, "error", updateErr)
	}
}

func (w *Worker) runPipeline(ctx context.Context, jobID string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()

	job, err := w.store.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("fetch job: %w", err)
	}
	if job == nil {
		w.logger.Warn("job not found, skipping", "job_id", jobID)
		return nil
	}
	if job.Status.Terminal() {
		// Producer re-enqueue: reprocess, variants are appended.
		w.logger.Info("job already in terminal state, reprocessing", "job_id", jobID, "status", job.Status)
	}

	if err := w.store.UpdateStatus(ctx, jobID, domain.StatusProcessing, nil); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}
	w.logger.Info("processing job", "job_id", jobID, "sequence_name", job.SequenceName)

	result, err := w.aligner.Align(ctx, job.Sequence)
	if err != nil {
		return fmt.Errorf("alignment: %w", err)
	}

	if !result.HasHits() {
		msg := noHitsMessage
		if err := w.store.UpdateStatus(ctx, jobID, domain.StatusFailed, &msg); err != nil {
			return fmt.Errorf("mark failed: %w", err)
		}
		w.logger.Info("job failed without hits", "job_id", jobID)
		return nil
	}

	best := result.BestHit()
	if err := w.store.UpdateAlignmentSummary(ctx, jobID, best.EValue, best.Identity, best.Chromosome); err != nil {
		return fmt.Errorf("persist alignment summary: %w", err)
	}

	variants := variantcall.Detect(result)
	w.logger.Info("variants detected", "job_id", jobID, "count", len(variants))

	if len(variants) > 0 {
		annotated := w.annotator.AnnotateAll(ctx, variants)
		if err := w.store.SaveVariants(ctx, jobID, annotated); err != nil {
			return fmt.Errorf("save variants: %w", err)
		}
	}

	if err := w.store.UpdateStatus(ctx, jobID, domain.StatusCompleted, nil); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}

	w.logger.Info("job completed", "job_id", jobID, "variants_found", len(variants))
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
