package domain

import "strings"

// Canonical clinical-significance values persisted with a variant.
const (
	SignificancePathogenic       = "pathogenic"
	SignificanceLikelyPathogenic = "likely_pathogenic"
	SignificanceBenign           = "benign"
	SignificanceLikelyBenign     = "likely_benign"
	SignificanceUncertain        = "uncertain_significance"
	SignificanceConflicting      = "conflicting_interpretations"
)

// significanceAliases is checked in order: more specific phrases must come
// before their substrings ("likely pathogenic" before "pathogenic").
var significanceAliases = []struct {
	needle    string
	canonical string
}{
	{"likely pathogenic", SignificanceLikelyPathogenic},
	{"likely_pathogenic", SignificanceLikelyPathogenic},
	{"likely benign", SignificanceLikelyBenign},
	{"likely_benign", SignificanceLikelyBenign},
	{"uncertain significance", SignificanceUncertain},
	{"uncertain_significance", SignificanceUncertain},
	{"vus", SignificanceUncertain},
	{"conflicting interpretations", SignificanceConflicting},
	{"conflicting", SignificanceConflicting},
	{"pathogenic", SignificancePathogenic},
	{"benign", SignificanceBenign},
}

// NormalizeSignificance maps free-text clinical significance to a canonical
// value. Unrecognized text falls back to its lower-cased, underscore-joined
// form so downstream consumers still get a stable token.
func NormalizeSignificance(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	for _, alias := range significanceAliases {
		if strings.Contains(lowered, alias.needle) {
			return alias.canonical
		}
	}
	return strings.ReplaceAll(lowered, " ", "_")
}
