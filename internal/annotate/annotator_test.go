package annotate

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ciromunive-dev/snp-bioinfo-service/internal/domain"
)

type fakeFunctional struct {
	fn func(v domain.Variant) (*domain.FunctionalAnnotation, error)
}

func (f *fakeFunctional) Lookup(_ context.Context, v domain.Variant) (*domain.FunctionalAnnotation, error) {
	return f.fn(v)
}

type fakeIdentifier struct {
	fn func(chromosome string, position int64) (string, error)
}

func (f *fakeIdentifier) FindRSID(_ context.Context, chromosome string, position int64) (string, error) {
	return f.fn(chromosome, position)
}

type fakeClinical struct {
	fn func(rsID string) (string, error)
}

func (f *fakeClinical) Significance(_ context.Context, rsID string) (string, error) {
	return f.fn(rsID)
}

func testVariants(n int) []domain.Variant {
	variants := make([]domain.Variant, n)
	for i := range variants {
		variants[i] = domain.Variant{
			Chromosome:      "chr17",
			Position:        int64(100 + i),
			ReferenceAllele: "A",
			AlternateAllele: "G",
			Type:            domain.VariantSNP,
		}
	}
	return variants
}

func fastAnnotator(deps Deps) *Annotator {
	a := NewAnnotator(deps, Options{BatchSize: 10, BatchPause: time.Millisecond, MaxConcurrent: 5}, slog.Default())
	a.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return a
}

func TestAnnotateAllEmpty(t *testing.T) {
	t.Parallel()

	a := fastAnnotator(Deps{})
	if got := a.AnnotateAll(context.Background(), nil); got != nil {
		t.Fatalf("expected nil for empty input, got %v", got)
	}
}

func TestAnnotateAllPreservesLengthAndOrder(t *testing.T) {
	t.Parallel()

	variants := testVariants(25)
	a := fastAnnotator(Deps{
		Functional: &fakeFunctional{fn: func(v domain.Variant) (*domain.FunctionalAnnotation, error) {
			gene := "BRCA1"
			return &domain.FunctionalAnnotation{GeneSymbol: &gene}, nil
		}},
	})

	annotated := a.AnnotateAll(context.Background(), variants)
	if len(annotated) != len(variants) {
		t.Fatalf("expected %d annotated variants, got %d", len(variants), len(annotated))
	}

	for i, av := range annotated {
		if av.Position != variants[i].Position {
			t.Fatalf("order broken at index %d: position %d", i, av.Position)
		}
		if av.GeneSymbol == nil || *av.GeneSymbol != "BRCA1" {
			t.Fatalf("expected gene symbol at index %d", i)
		}
	}
}

func TestAnnotateAllFailureDowngradesToMinimal(t *testing.T) {
	t.Parallel()

	variants := testVariants(12)
	a := fastAnnotator(Deps{
		Functional: &fakeFunctional{fn: func(v domain.Variant) (*domain.FunctionalAnnotation, error) {
			if v.Position == 105 {
				return nil, errors.New("upstream exploded")
			}
			consequence := "missense_variant"
			return &domain.FunctionalAnnotation{Consequence: &consequence}, nil
		}},
	})

	annotated := a.AnnotateAll(context.Background(), variants)
	if len(annotated) != len(variants) {
		t.Fatalf("expected %d results, got %d", len(variants), len(annotated))
	}

	for i, av := range annotated {
		if av.Position == 105 {
			if av.Consequence != nil {
				t.Fatal("failed item should carry only original fields")
			}
			continue
		}
		if av.Consequence == nil {
			t.Fatalf("expected consequence at index %d", i)
		}
	}
}

func TestAnnotateAllRecoversFromPanic(t *testing.T) {
	t.Parallel()

	variants := testVariants(3)
	a := fastAnnotator(Deps{
		Functional: &fakeFunctional{fn: func(v domain.Variant) (*domain.FunctionalAnnotation, error) {
			if v.Position == 101 {
				panic("boom")
			}
			return nil, nil
		}},
	})

	annotated := a.AnnotateAll(context.Background(), variants)
	if len(annotated) != 3 {
		t.Fatalf("expected 3 results, got %d", len(annotated))
	}
	if annotated[1].Chromosome != "chr17" || annotated[1].Position != 101 {
		t.Fatal("panicked item lost its original fields")
	}
}

func TestIdentifierFallbackOnlyWithoutRSID(t *testing.T) {
	t.Parallel()

	var lookups atomic.Int32
	rsFromVEP := "rs111"
	a := fastAnnotator(Deps{
		Functional: &fakeFunctional{fn: func(v domain.Variant) (*domain.FunctionalAnnotation, error) {
			if v.Position == 100 {
				return &domain.FunctionalAnnotation{RSID: &rsFromVEP}, nil
			}
			return nil, nil
		}},
		Identifier: &fakeIdentifier{fn: func(chromosome string, position int64) (string, error) {
			lookups.Add(1)
			return "rs222", nil
		}},
	})

	annotated := a.AnnotateAll(context.Background(), testVariants(2))
	if annotated[0].RSID == nil || *annotated[0].RSID != "rs111" {
		t.Fatal("expected rsID from functional stage")
	}
	if annotated[1].RSID == nil || *annotated[1].RSID != "rs222" {
		t.Fatal("expected rsID from identifier fallback")
	}
	if lookups.Load() != 1 {
		t.Fatalf("expected exactly 1 fallback lookup, got %d", lookups.Load())
	}
}

func TestClinicalOnlyWithIdentifier(t *testing.T) {
	t.Parallel()

	var clinicalCalls atomic.Int32
	rsID := "rs333"
	a := fastAnnotator(Deps{
		Functional: &fakeFunctional{fn: func(v domain.Variant) (*domain.FunctionalAnnotation, error) {
			if v.Position == 100 {
				return &domain.FunctionalAnnotation{RSID: &rsID}, nil
			}
			return nil, nil
		}},
		Clinical: &fakeClinical{fn: func(got string) (string, error) {
			clinicalCalls.Add(1)
			if got != "rs333" {
				t.Errorf("unexpected rsID: %s", got)
			}
			return domain.SignificancePathogenic, nil
		}},
	})

	annotated := a.AnnotateAll(context.Background(), testVariants(2))
	if annotated[0].ClinicalSignificance == nil || *annotated[0].ClinicalSignificance != domain.SignificancePathogenic {
		t.Fatal("expected clinical significance on the identified variant")
	}
	if annotated[1].ClinicalSignificance != nil {
		t.Fatal("no clinical lookup expected without an identifier")
	}
	if clinicalCalls.Load() != 1 {
		t.Fatalf("expected exactly 1 clinical call, got %d", clinicalCalls.Load())
	}
}

func TestClinicalFailureDoesNotDropFunctionalData(t *testing.T) {
	t.Parallel()

	rsID := "rs444"
	gene := "TP53"
	a := fastAnnotator(Deps{
		Functional: &fakeFunctional{fn: func(v domain.Variant) (*domain.FunctionalAnnotation, error) {
			return &domain.FunctionalAnnotation{RSID: &rsID, GeneSymbol: &gene}, nil
		}},
		Clinical: &fakeClinical{fn: func(string) (string, error) {
			return "", errors.New("clinvar unavailable")
		}},
	})

	annotated := a.AnnotateAll(context.Background(), testVariants(1))
	if annotated[0].GeneSymbol == nil || *annotated[0].GeneSymbol != "TP53" {
		t.Fatal("stage failure must not discard earlier stage data")
	}
	if annotated[0].ClinicalSignificance != nil {
		t.Fatal("expected no significance after clinical failure")
	}
}
