// Package variantcall turns a pairwise alignment into positioned variant
// records by walking the gapped query and subject strings column by column.
package variantcall

import (
	"strings"

	"github.com/ciromunive-dev/snp-bioinfo-service/internal/domain"
)

// Detect compares the best hit's aligned strings and emits every difference
// in scan order. The reference coordinate starts at the hit's start and
// advances only when a reference base is consumed, so insertion positions
// equal the position of the next reference column. An empty result means the
// query matched the reference exactly, or there was no hit at all.
func Detect(result domain.AlignmentResult) []domain.Variant {
	best := result.BestHit()
	if best == nil {
		return nil
	}

	query := strings.ToUpper(best.QuerySeq)
	subject := strings.ToUpper(best.SubjectSeq)

	length := len(query)
	if len(subject) < length {
		length = len(subject)
	}

	var variants []domain.Variant
	position := best.Start

	for i := 0; i < length; i++ {
		queryBase := string(query[i])
		refBase := string(subject[i])

		switch {
		case refBase != domain.GapAllele && queryBase == domain.GapAllele:
			variants = append(variants, domain.Variant{
				Chromosome:      best.Chromosome,
				Position:        position,
				ReferenceAllele: refBase,
				AlternateAllele: domain.GapAllele,
				Type:            domain.VariantDeletion,
			})
			position++
		case refBase == domain.GapAllele && queryBase != domain.GapAllele:
			variants = append(variants, domain.Variant{
				Chromosome:      best.Chromosome,
				Position:        position,
				ReferenceAllele: domain.GapAllele,
				AlternateAllele: queryBase,
				Type:            domain.VariantInsertion,
			})
			// No reference base consumed, coordinate stays put.
		case refBase != queryBase:
			variants = append(variants, domain.Variant{
				Chromosome:      best.Chromosome,
				Position:        position,
				ReferenceAllele: refBase,
				AlternateAllele: queryBase,
				Type:            domain.VariantSNP,
			})
			position++
		default:
			position++
		}
	}

	return variants
}
