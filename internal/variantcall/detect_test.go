package variantcall

import (
	"testing"

	"github.com/ciromunive-dev/snp-bioinfo-service/internal/domain"
)

func resultWith(query, subject string, start int64) domain.AlignmentResult {
	return domain.AlignmentResult{
		Hits: []domain.AlignmentHit{
			{
				Chromosome: "chr17",
				Start:      start,
				End:        start + int64(len(subject)),
				Identity:   99.0,
				EValue:     1e-30,
				QuerySeq:   query,
				SubjectSeq: subject,
				Length:     len(query),
			},
		},
	}
}

func TestDetectNoHits(t *testing.T) {
	t.Parallel()

	variants := Detect(domain.AlignmentResult{})
	if len(variants) != 0 {
		t.Fatalf("expected no variants without hits, got %d", len(variants))
	}
}

func TestDetectIdenticalSequences(t *testing.T) {
	t.Parallel()

	variants := Detect(resultWith("ATGC", "ATGC", 100))
	if len(variants) != 0 {
		t.Fatalf("expected no variants for identical sequences, got %d", len(variants))
	}
}

func TestDetectSNP(t *testing.T) {
	t.Parallel()

	variants := Detect(resultWith("ATGC", "ATCC", 100))
	if len(variants) != 1 {
		t.Fatalf("expected 1 variant, got %d", len(variants))
	}

	v := variants[0]
	if v.Type != domain.VariantSNP {
		t.Fatalf("expected SNP, got %s", v.Type)
	}
	if v.Position != 102 {
		t.Fatalf("expected position 102, got %d", v.Position)
	}
	if v.ReferenceAllele != "C" || v.AlternateAllele != "G" {
		t.Fatalf("expected C>G, got %s>%s", v.ReferenceAllele, v.AlternateAllele)
	}
}

func TestDetectInsertion(t *testing.T) {
	t.Parallel()

	variants := Detect(resultWith("ATGC", "AT-C", 100))
	if len(variants) != 1 {
		t.Fatalf("expected 1 variant, got %d", len(variants))
	}

	v := variants[0]
	if v.Type != domain.VariantInsertion {
		t.Fatalf("expected insertion, got %s", v.Type)
	}
	if v.ReferenceAllele != "-" || v.AlternateAllele != "G" {
		t.Fatalf("expected ->G, got %s>%s", v.ReferenceAllele, v.AlternateAllele)
	}
	if v.Position != 102 {
		t.Fatalf("expected position 102, got %d", v.Position)
	}
}

func TestDetectDeletion(t *testing.T) {
	t.Parallel()

	variants := Detect(resultWith("AT-C", "ATGC", 100))
	if len(variants) != 1 {
		t.Fatalf("expected 1 variant, got %d", len(variants))
	}

	v := variants[0]
	if v.Type != domain.VariantDeletion {
		t.Fatalf("expected deletion, got %s", v.Type)
	}
	if v.ReferenceAllele != "G" || v.AlternateAllele != "-" {
		t.Fatalf("expected G>-, got %s>%s", v.ReferenceAllele, v.AlternateAllele)
	}
	if v.Position != 102 {
		t.Fatalf("expected position 102, got %d", v.Position)
	}
}

func TestDetectPositionsNonDecreasing(t *testing.T) {
	t.Parallel()

	variants := Detect(resultWith("A-GTTC", "ACG-TA", 50))
	if len(variants) == 0 {
		t.Fatal("expected variants")
	}

	for i := 1; i < len(variants); i++ {
		if variants[i].Position < variants[i-1].Position {
			t.Fatalf("positions decreased: %d after %d", variants[i].Position, variants[i-1].Position)
		}
	}
}

func TestDetectLowercaseInput(t *testing.T) {
	t.Parallel()

	variants := Detect(resultWith("atgc", "atcc", 100))
	if len(variants) != 1 {
		t.Fatalf("expected 1 variant, got %d", len(variants))
	}
	if variants[0].AlternateAllele != "G" {
		t.Fatalf("expected upper-cased alternate allele, got %s", variants[0].AlternateAllele)
	}
}

func TestDetectUsesBestHit(t *testing.T) {
	t.Parallel()

	result := domain.AlignmentResult{
		Hits: []domain.AlignmentHit{
			{Chromosome: "chr1", Start: 10, EValue: 1e-5, QuerySeq: "AAAA", SubjectSeq: "AAAA"},
			{Chromosome: "chr2", Start: 20, EValue: 1e-9, QuerySeq: "ATGC", SubjectSeq: "ATCC"},
		},
	}

	variants := Detect(result)
	if len(variants) != 1 {
		t.Fatalf("expected 1 variant from best hit, got %d", len(variants))
	}
	if variants[0].Chromosome != "chr2" {
		t.Fatalf("expected variant from chr2 hit, got %s", variants[0].Chromosome)
	}
}
