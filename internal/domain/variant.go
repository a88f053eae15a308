package domain

// GapAllele stands in for the allele on the side of an indel with no base.
const GapAllele = "-"

// VariantType classifies a called variant.
type VariantType string

const (
	VariantSNP       VariantType = "SNP"
	VariantInsertion VariantType = "insertion"
	VariantDeletion  VariantType = "deletion"
)

// AlignmentHit is one aligned region reported by the aligner, immutable once
// parsed. Start and End are reference coordinates; QuerySeq and SubjectSeq
// are the gapped aligned strings of equal length.
type AlignmentHit struct {
	Chromosome string
	Start      int64
	End        int64
	Identity   float64
	EValue     float64
	QuerySeq   string
	SubjectSeq string
	Length     int
}

// AlignmentResult holds all hits for one query, ordered ascending by e-value.
type AlignmentResult struct {
	Hits        []AlignmentHit
	QueryLength int
}

// HasHits reports whether the aligner found anything.
func (r AlignmentResult) HasHits() bool {
	return len(r.Hits) > 0
}

// BestHit returns the hit with the minimum e-value, or nil when there are no
// hits. Ties keep the earliest hit.
func (r AlignmentResult) BestHit() *AlignmentHit {
	if len(r.Hits) == 0 {
		return nil
	}
	best := 0
	for i := 1; i < len(r.Hits); i++ {
		if r.Hits[i].EValue < r.Hits[best].EValue {
			best = i
		}
	}
	return &r.Hits[best]
}

// Variant is a single difference between the query and the reference,
// produced in memory per job and never mutated after creation.
type Variant struct {
	Chromosome      string
	Position        int64
	ReferenceAllele string
	AlternateAllele string
	Type            VariantType
}

// AnnotatedVariant enriches a Variant with functional and clinical data.
// Pointer fields are nil when the upstream had no data. RevelScore exists in
// the persisted schema but no wired upstream currently fills it.
type AnnotatedVariant struct {
	Variant
	RSID                 *string
	HGVSNotation         *string
	GeneSymbol           *string
	Consequence          *string
	ClinicalSignificance *string
	PopulationFrequency  *float64
	RevelScore           *float64
	CaddScore            *float64
	SiftPrediction       *string
	PolyphenPrediction   *string
}

// NewAnnotatedVariant returns the minimal annotation carrying only the
// original variant fields.
func NewAnnotatedVariant(v Variant) AnnotatedVariant {
	return AnnotatedVariant{Variant: v}
}

// FunctionalAnnotation is the typed outcome of the primary functional lookup
// for one variant. Nil fields mean the upstream had nothing for them.
type FunctionalAnnotation struct {
	RSID                *string
	Consequence         *string
	GeneSymbol          *string
	HGVSNotation        *string
	SiftPrediction      *string
	PolyphenPrediction  *string
	CaddScore           *float64
	PopulationFrequency *float64
}
