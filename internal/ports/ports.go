package ports

import (
	"context"

	"github.com/ciromunive-dev/snp-bioinfo-service/internal/domain"
)

// JobQueue pops job identifiers enqueued by the producer side. Pop is
// non-blocking: an empty queue returns "" with a nil error and the caller
// manages its own polling cadence.
type JobQueue interface {
	Pop(ctx context.Context) (string, error)
}

// JobStore persists analysis jobs and their called variants.
type JobStore interface {
	GetJob(ctx context.Context, id string) (*domain.AnalysisJob, error)
	UpdateStatus(ctx context.Context, id string, status domain.JobStatus, errMsg *string) error
	UpdateAlignmentSummary(ctx context.Context, id string, evalue, identity float64, chromosome string) error
	SaveVariants(ctx context.Context, id string, variants []domain.AnnotatedVariant) error
}

// Aligner runs the submitted sequence against the reference genome.
type Aligner interface {
	Align(ctx context.Context, sequence string) (domain.AlignmentResult, error)
}

// Annotator enriches called variants with functional and clinical data. It
// never fails: items the upstreams could not annotate come back minimal.
type Annotator interface {
	AnnotateAll(ctx context.Context, variants []domain.Variant) []domain.AnnotatedVariant
}

// FunctionalSource is the primary per-variant annotation lookup (stage one of
// the fallback chain). A nil result with nil error means "no data".
type FunctionalSource interface {
	Lookup(ctx context.Context, v domain.Variant) (*domain.FunctionalAnnotation, error)
}

// IdentifierSource resolves a variant identifier by genomic coordinate
// (stage two). Empty string with nil error means "no data".
type IdentifierSource interface {
	FindRSID(ctx context.Context, chromosome string, position int64) (string, error)
}

// ClinicalSource resolves clinical significance for a known identifier
// (stage three). Empty string with nil error means "no data".
type ClinicalSource interface {
	Significance(ctx context.Context, rsID string) (string, error)
}
