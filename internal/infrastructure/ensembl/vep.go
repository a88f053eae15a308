// Package ensembl queries the Ensembl REST VEP endpoint for functional
// annotation of single variants.
package ensembl

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ciromunive-dev/snp-bioinfo-service/internal/domain"
	"github.com/ciromunive-dev/snp-bioinfo-service/internal/httpx"
	"github.com/ciromunive-dev/snp-bioinfo-service/internal/ports"
)

const defaultBaseURL = "https://rest.ensembl.org"

// frequencyPanels is the fixed priority order for population frequencies.
var frequencyPanels = []string{"gnomade", "gnomad", "gnomad_exomes", "gnomad_genomes"}

// VEPClient resolves consequence, gene, transcript notation, pathogenicity
// predictions and population frequency by genomic coordinate.
type VEPClient struct {
	http    *httpx.Client
	limiter *httpx.Limiter
	baseURL string
}

var _ ports.FunctionalSource = (*VEPClient)(nil)

// NewVEPClient wires the shared request executor and the Ensembl permit pool.
func NewVEPClient(httpClient *httpx.Client, limiter *httpx.Limiter, baseURL string) *VEPClient {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &VEPClient{http: httpClient, limiter: limiter, baseURL: baseURL}
}

// vepResult mirrors the subset of the VEP region response the lookup
// consumes. Optional fields are pointers so absent and null both map to nil.
type vepResult struct {
	MostSevereConsequence *string            `json:"most_severe_consequence"`
	ColocatedVariants     []colocatedVariant `json:"colocated_variants"`
	TranscriptConseqs     []transcriptConseq `json:"transcript_consequences"`
}

type colocatedVariant struct {
	ID string `json:"id"`
	// Panel values are pointers so a null panel decodes to nil rather
	// than a present zero.
	Frequencies map[string]map[string]*float64 `json:"frequencies"`
}

type transcriptConseq struct {
	Canonical          int      `json:"canonical"`
	GeneSymbol         *string  `json:"gene_symbol"`
	HGVSc              *string  `json:"hgvsc"`
	HGVSp              *string  `json:"hgvsp"`
	SiftPrediction     *string  `json:"sift_prediction"`
	PolyphenPrediction *string  `json:"polyphen_prediction"`
	CaddPhred          *float64 `json:"cadd_phred"`
	CaddRaw            *float64 `json:"cadd_raw"`
}

// Lookup queries the VEP region endpoint for the variant's coordinate and
// alternate allele. An empty response yields (nil, nil) so the orchestrator
// treats the stage as "no data".
func (c *VEPClient) Lookup(ctx context.Context, v domain.Variant) (*domain.FunctionalAnnotation, error) {
	chrom := strings.TrimPrefix(v.Chromosome, "chr")
	url := fmt.Sprintf("%s/vep/human/region/%s:%d:%d/%s", c.baseURL, chrom, v.Position, v.Position, v.AlternateAllele)

	resp, err := c.http.Get(ctx, url, nil, nil, c.limiter)
	if err != nil {
		return nil, err
	}

	var results []vepResult
	if err := json.Unmarshal(resp.Body, &results); err != nil {
		return nil, fmt.Errorf("parse VEP response: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	return interpretVEP(results[0], v.AlternateAllele), nil
}

func interpretVEP(result vepResult, alt string) *domain.FunctionalAnnotation {
	annotation := &domain.FunctionalAnnotation{
		Consequence: result.MostSevereConsequence,
	}

	// First co-located record whose identifier follows the rs naming scheme.
	for _, cv := range result.ColocatedVariants {
		if strings.HasPrefix(cv.ID, "rs") {
			id := cv.ID
			annotation.RSID = &id
			break
		}
	}

	if tc := pickTranscript(result.TranscriptConseqs); tc != nil {
		annotation.GeneSymbol = tc.GeneSymbol
		if tc.HGVSc != nil {
			annotation.HGVSNotation = tc.HGVSc
		} else {
			annotation.HGVSNotation = tc.HGVSp
		}
		annotation.SiftPrediction = tc.SiftPrediction
		annotation.PolyphenPrediction = tc.PolyphenPrediction
		if tc.CaddPhred != nil {
			annotation.CaddScore = tc.CaddPhred
		} else {
			annotation.CaddScore = tc.CaddRaw
		}
	}

	annotation.PopulationFrequency = pickFrequency(result.ColocatedVariants, alt)

	return annotation
}

// pickTranscript prefers the record flagged canonical, else the first one.
func pickTranscript(transcripts []transcriptConseq) *transcriptConseq {
	if len(transcripts) == 0 {
		return nil
	}
	for i := range transcripts {
		if transcripts[i].Canonical != 0 {
			return &transcripts[i]
		}
	}
	return &transcripts[0]
}

// pickFrequency walks co-located records and takes the first non-null value
// in the fixed panel priority order.
func pickFrequency(colocated []colocatedVariant, alt string) *float64 {
	for _, cv := range colocated {
		panels, ok := cv.Frequencies[alt]
		if !ok {
			continue
		}
		for _, panel := range frequencyPanels {
			if freq := panels[panel]; freq != nil {
				return freq
			}
		}
	}
	return nil
}
