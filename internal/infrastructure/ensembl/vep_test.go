package ensembl

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ciromunive-dev/snp-bioinfo-service/internal/domain"
	"github.com/ciromunive-dev/snp-bioinfo-service/internal/httpx"
)

func testClient(serverURL string) *VEPClient {
	return NewVEPClient(
		httpx.NewClient(httpx.Options{}, slog.Default()),
		httpx.NewLimiter("ensembl", 15),
		serverURL,
	)
}

func testVariant() domain.Variant {
	return domain.Variant{
		Chromosome:      "chr17",
		Position:        43094692,
		ReferenceAllele: "C",
		AlternateAllele: "G",
		Type:            domain.VariantSNP,
	}
}

func TestLookupStripsChrPrefix(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/vep/human/region/17:43094692:43094692/G" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	annotation, err := testClient(server.URL).Lookup(context.Background(), testVariant())
	if err != nil {
		t.Fatalf("Lookup error: %v", err)
	}
	if annotation != nil {
		t.Fatal("empty response must yield no data")
	}
}

func TestLookupFullAnnotation(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
		  {
		    "most_severe_consequence": "missense_variant",
		    "colocated_variants": [
		      {"id": "COSV12345"},
		      {"id": "rs80357906", "frequencies": {"G": {"gnomad": 0.0001, "gnomade": 0.0002}}}
		    ],
		    "transcript_consequences": [
		      {"gene_symbol": "WRONG", "hgvsc": "ENST01.1:c.1A>G"},
		      {"canonical": 1, "gene_symbol": "BRCA1", "hgvsc": "ENST00000357654.9:c.68_69del",
		       "sift_prediction": "deleterious", "polyphen_prediction": "probably_damaging",
		       "cadd_phred": 28.4}
		    ]
		  }
		]`))
	}))
	defer server.Close()

	annotation, err := testClient(server.URL).Lookup(context.Background(), testVariant())
	if err != nil {
		t.Fatalf("Lookup error: %v", err)
	}
	if annotation == nil {
		t.Fatal("expected annotation")
	}

	if annotation.RSID == nil || *annotation.RSID != "rs80357906" {
		t.Fatalf("expected first rs-prefixed identifier, got %v", annotation.RSID)
	}
	if annotation.Consequence == nil || *annotation.Consequence != "missense_variant" {
		t.Fatalf("unexpected consequence: %v", annotation.Consequence)
	}
	if annotation.GeneSymbol == nil || *annotation.GeneSymbol != "BRCA1" {
		t.Fatalf("expected canonical transcript's gene, got %v", annotation.GeneSymbol)
	}
	if annotation.CaddScore == nil || *annotation.CaddScore != 28.4 {
		t.Fatalf("unexpected cadd score: %v", annotation.CaddScore)
	}
	if annotation.PopulationFrequency == nil || *annotation.PopulationFrequency != 0.0002 {
		t.Fatalf("expected gnomade panel to win, got %v", annotation.PopulationFrequency)
	}
	if annotation.SiftPrediction == nil || *annotation.SiftPrediction != "deleterious" {
		t.Fatalf("unexpected sift: %v", annotation.SiftPrediction)
	}
}

func TestLookupSkipsNullFrequencyPanel(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
		  {
		    "colocated_variants": [
		      {"id": "rs1", "frequencies": {"G": {"gnomade": null, "gnomad": 0.25}}}
		    ]
		  }
		]`))
	}))
	defer server.Close()

	annotation, err := testClient(server.URL).Lookup(context.Background(), testVariant())
	if err != nil {
		t.Fatalf("Lookup error: %v", err)
	}
	if annotation.PopulationFrequency == nil || *annotation.PopulationFrequency != 0.25 {
		t.Fatalf("expected null panel to fall through to the next one, got %v", annotation.PopulationFrequency)
	}
}

func TestLookupFirstTranscriptWithoutCanonical(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
		  {
		    "transcript_consequences": [
		      {"gene_symbol": "FIRST", "hgvsp": "ENSP01.1:p.Met1?"},
		      {"gene_symbol": "SECOND"}
		    ]
		  }
		]`))
	}))
	defer server.Close()

	annotation, err := testClient(server.URL).Lookup(context.Background(), testVariant())
	if err != nil {
		t.Fatalf("Lookup error: %v", err)
	}
	if annotation.GeneSymbol == nil || *annotation.GeneSymbol != "FIRST" {
		t.Fatalf("expected first transcript, got %v", annotation.GeneSymbol)
	}
	if annotation.HGVSNotation == nil || *annotation.HGVSNotation != "ENSP01.1:p.Met1?" {
		t.Fatalf("expected hgvsp fallback, got %v", annotation.HGVSNotation)
	}
}

func TestLookupUpstreamFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	_, err := testClient(server.URL).Lookup(context.Background(), testVariant())
	if err == nil {
		t.Fatal("expected error from upstream failure")
	}
}
