package domain

import (
	"strings"
)

// Confidence values attached to classification predictions are a display
// ranking only. The service returns unscored codes; the pipeline assigns a
// fixed value to the primary code and a fixed decrement to each secondary
// code. Do not treat them as calibrated probabilities.
const (
	PrimaryConfidence        = 0.92
	FirstSecondaryConfidence = 0.87
	SecondaryConfidenceStep  = 0.06
	MaxSecondaryPredictions  = 4
)

const (
	TechnologySoftware   = "Software/ML"
	TechnologyMechanical = "Mechanical/Electrical"
	TechnologyChemical   = "Chemical/Biotech"
	TechnologyUnknown    = "Unknown"
)

type ClassificationPrediction struct {
	Code       string  `json:"code"`
	Class      string  `json:"class,omitempty"`
	Confidence float64 `json:"confidence"`
	IsPrimary  bool    `json:"is_primary"`
}

type CandidatePOD struct {
	Text      string `json:"text"`
	Rationale string `json:"rationale"`
	IsPrimary bool   `json:"is_primary"`
}

type ClassificationResult struct {
	PrimaryClassification    string                     `json:"primary_classification"`
	PrimaryConfidence        float64                    `json:"primary_confidence"`
	SecondaryClassifications []ClassificationPrediction `json:"secondary_classifications"`
	TechnologyArea           string                     `json:"technology_area"`
	CandidatePods            []CandidatePOD             `json:"candidate_pods"`
	GeneratedTitle           string                     `json:"generated_title,omitempty"`
}

// Predictions returns the primary prediction followed by the secondaries.
func (r ClassificationResult) Predictions() []ClassificationPrediction {
	out := make([]ClassificationPrediction, 0, len(r.SecondaryClassifications)+1)
	out = append(out, ClassificationPrediction{
		Code:       r.PrimaryClassification,
		Class:      CPCClass(r.PrimaryClassification),
		Confidence: r.PrimaryConfidence,
		IsPrimary:  true,
	})
	return append(out, r.SecondaryClassifications...)
}

// NormalizeCPCCode trims, upper-cases and strips a leading "CPC:" label.
// It does not check that the code exists.
func NormalizeCPCCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	code = strings.TrimSpace(strings.TrimPrefix(code, "CPC:"))
	return strings.Join(strings.Fields(code), " ")
}

// CPCClass returns the subclass part of a code ("G06F 40/169" -> "G06F").
func CPCClass(code string) string {
	code = NormalizeCPCCode(code)
	if len(code) >= 4 {
		return code[:4]
	}
	return code
}

// NormalizeTechnologyArea maps free text onto the known areas. Unknown
// non-empty values are kept as given.
func NormalizeTechnologyArea(area string) string {
	area = strings.TrimSpace(area)
	if area == "" {
		return TechnologyUnknown
	}
	for _, known := range []string{TechnologySoftware, TechnologyMechanical, TechnologyChemical} {
		if strings.EqualFold(area, known) {
			return known
		}
	}
	return area
}
