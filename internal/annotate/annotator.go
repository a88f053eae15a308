// Package annotate composes the three annotation upstreams into a per-job
// fallback chain with bounded concurrency.
package annotate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/ciromunive-dev/snp-bioinfo-service/internal/domain"
	"github.com/ciromunive-dev/snp-bioinfo-service/internal/ports"
)

// Options tunes batching and fan-out.
type Options struct {
	BatchSize     int
	BatchPause    time.Duration
	MaxConcurrent int64
}

// Deps wires the three annotation stages.
type Deps struct {
	Functional ports.FunctionalSource
	Identifier ports.IdentifierSource
	Clinical   ports.ClinicalSource
}

// Annotator drives the per-variant pipeline: functional lookup, identifier
// fallback, clinical significance. It never fails a job; each item the
// upstreams could not serve comes back carrying only its original fields.
type Annotator struct {
	functional ports.FunctionalSource
	identifier ports.IdentifierSource
	clinical   ports.ClinicalSource
	batchSize  int
	batchPause time.Duration
	permits    *semaphore.Weighted
	sleep      func(ctx context.Context, d time.Duration) error
	logger     *slog.Logger
}

var _ ports.Annotator = (*Annotator)(nil)

// NewAnnotator constructs the orchestrator with its shared permit pool.
func NewAnnotator(deps Deps, opts Options, logger *slog.Logger) *Annotator {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}
	if opts.BatchPause <= 0 {
		opts.BatchPause = 500 * time.Millisecond
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 5
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Annotator{
		functional: deps.Functional,
		identifier: deps.Identifier,
		clinical:   deps.Clinical,
		batchSize:  opts.BatchSize,
		batchPause: opts.BatchPause,
		permits:    semaphore.NewWeighted(opts.MaxConcurrent),
		sleep:      sleepContext,
		logger:     logger,
	}
}

// AnnotateAll annotates every variant, preserving input length and order.
// Work runs in batches with a pause between them to respect upstream burst
// quotas; each batch fans out under the shared permit pool and results land
// in index-addressed slots so one item's failure cannot reorder the rest.
func (a *Annotator) AnnotateAll(ctx context.Context, variants []domain.Variant) []domain.AnnotatedVariant {
	if len(variants) == 0 {
		return nil
	}

	a.logger.Info("annotation started", "total_variants", len(variants))

	annotated := make([]domain.AnnotatedVariant, len(variants))

	for offset := 0; offset < len(variants); offset += a.batchSize {
		end := offset + a.batchSize
		if end > len(variants) {
			end = len(variants)
		}

		var wg sync.WaitGroup
		for i := offset; i < end; i++ {
			wg.Add(1)
			go func(index int) {
				defer wg.Done()
				annotated[index] = a.annotateOne(ctx, variants[index], index)
			}(i)
		}
		wg.Wait()

		if end < len(variants) {
			if err := a.sleep(ctx, a.batchPause); err != nil {
				// Shutdown mid-job: remaining items stay minimal.
				for i := end; i < len(variants); i++ {
					annotated[i] = domain.NewAnnotatedVariant(variants[i])
				}
				break
			}
		}
	}

	a.logger.Info("annotation completed",
		"total_annotated", len(annotated),
		"with_rsid", countSet(annotated, func(v domain.AnnotatedVariant) bool { return v.RSID != nil }),
		"with_clinical", countSet(annotated, func(v domain.AnnotatedVariant) bool { return v.ClinicalSignificance != nil }),
		"with_consequence", countSet(annotated, func(v domain.AnnotatedVariant) bool { return v.Consequence != nil }))

	return annotated
}

// annotateOne runs the three-stage fallback chain for a single variant under
// a permit. A panic or stage error downgrades the item to a minimal record.
func (a *Annotator) annotateOne(ctx context.Context, variant domain.Variant, index int) (result domain.AnnotatedVariant) {
	result = domain.NewAnnotatedVariant(variant)

	defer func() {
		if r := recover(); r != nil {
			a.logger.Warn("annotation panicked, keeping minimal record",
				"variant_index", index, "error", fmt.Sprint(r))
			result = domain.NewAnnotatedVariant(variant)
		}
	}()

	if err := a.permits.Acquire(ctx, 1); err != nil {
		return result
	}
	defer a.permits.Release(1)

	a.applyFunctional(ctx, variant, index, &result)
	a.applyIdentifier(ctx, variant, index, &result)
	a.applyClinical(ctx, index, &result)

	return result
}

func (a *Annotator) applyFunctional(ctx context.Context, variant domain.Variant, index int, result *domain.AnnotatedVariant) {
	if a.functional == nil {
		return
	}

	functional, err := a.functional.Lookup(ctx, variant)
	if err != nil {
		a.logger.Debug("functional lookup failed", "variant_index", index, "error", err)
		return
	}
	if functional == nil {
		return
	}

	result.Consequence = functional.Consequence
	result.GeneSymbol = functional.GeneSymbol
	result.HGVSNotation = functional.HGVSNotation
	result.SiftPrediction = functional.SiftPrediction
	result.PolyphenPrediction = functional.PolyphenPrediction
	result.CaddScore = functional.CaddScore
	result.PopulationFrequency = functional.PopulationFrequency
	if functional.RSID != nil {
		result.RSID = functional.RSID
	}
}

func (a *Annotator) applyIdentifier(ctx context.Context, variant domain.Variant, index int, result *domain.AnnotatedVariant) {
	if result.RSID != nil || a.identifier == nil {
		return
	}

	rsID, err := a.identifier.FindRSID(ctx, variant.Chromosome, variant.Position)
	if err != nil {
		a.logger.Debug("identifier lookup failed", "variant_index", index, "error", err)
		return
	}
	if rsID != "" {
		result.RSID = &rsID
	}
}

func (a *Annotator) applyClinical(ctx context.Context, index int, result *domain.AnnotatedVariant) {
	if result.RSID == nil || result.ClinicalSignificance != nil || a.clinical == nil {
		return
	}

	significance, err := a.clinical.Significance(ctx, *result.RSID)
	if err != nil {
		a.logger.Debug("clinical lookup failed", "variant_index", index, "error", err)
		return
	}
	if significance != "" {
		result.ClinicalSignificance = &significance
	}
}

func countSet(variants []domain.AnnotatedVariant, isSet func(domain.AnnotatedVariant) bool) int {
	count := 0
	for _, v := range variants {
		if isSet(v) {
			count++
		}
	}
	return count
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
