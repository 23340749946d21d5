package usecase

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/kirillkom/patent-pod-intake/internal/core/domain"
)

const (
	codeFence          = "```"
	maxGeneratedTitle  = 50
	parseOperationName = "parse classification"
)

type classificationPayload struct {
	PrimaryClassification    string            `json:"primary_classification"`
	PrimaryCPCPrediction     string            `json:"primary_cpc_prediction"`
	SecondaryClassifications []json.RawMessage `json:"secondary_classifications"`
	SecondaryCPCPredictions  []json.RawMessage `json:"secondary_cpc_predictions"`
	TechnologyArea           string            `json:"technology_area"`
	CandidatePods            []podPayload      `json:"candidate_pods"`
	Pods                     []podPayload      `json:"pods"`
	GeneratedTitle           string            `json:"generated_title"`
}

type podPayload struct {
	Text      string `json:"text"`
	PodText   string `json:"pod_text"`
	Rationale string `json:"rationale"`
	IsPrimary bool   `json:"is_primary"`
}

type secondaryPayload struct {
	Code    string `json:"code"`
	CPCCode string `json:"cpc_code"`
}

// SanitizeResponse removes one leading fence line (optionally with a language
// tag) and one trailing fence, but only when both are present.
func SanitizeResponse(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if len(trimmed) < 2*len(codeFence) ||
		!strings.HasPrefix(trimmed, codeFence) ||
		!strings.HasSuffix(trimmed, codeFence) {
		return trimmed
	}

	body := trimmed[len(codeFence) : len(trimmed)-len(codeFence)]
	if idx := strings.IndexByte(body, '\n'); idx >= 0 {
		if tag := strings.TrimSpace(body[:idx]); tag == "" || isFenceTag(tag) {
			body = body[idx+1:]
		}
	}
	return strings.TrimSpace(body)
}

func isFenceTag(tag string) bool {
	for _, r := range tag {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_' {
			return false
		}
	}
	return true
}

// ParseClassification validates the sanitized payload and assigns the
// presentation confidences described on domain.PrimaryConfidence.
func ParseClassification(payload string) (domain.ClassificationResult, error) {
	var raw classificationPayload
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return domain.ClassificationResult{}, domain.WrapError(domain.ErrClassificationParse, parseOperationName, err)
	}

	primary := domain.NormalizeCPCCode(firstNonEmpty(raw.PrimaryClassification, raw.PrimaryCPCPrediction))
	if primary == "" {
		return domain.ClassificationResult{}, domain.WrapError(
			domain.ErrClassificationParse,
			parseOperationName,
			errors.New("primary_classification is missing"),
		)
	}

	pods := collectPods(raw.CandidatePods, raw.Pods)
	if len(pods) == 0 {
		return domain.ClassificationResult{}, domain.WrapError(
			domain.ErrClassificationParse,
			parseOperationName,
			errors.New("candidate_pods is missing or empty"),
		)
	}

	secondaryRaw := raw.SecondaryClassifications
	if len(secondaryRaw) == 0 {
		secondaryRaw = raw.SecondaryCPCPredictions
	}
	secondaries, err := rankSecondaries(primary, secondaryRaw)
	if err != nil {
		return domain.ClassificationResult{}, domain.WrapError(domain.ErrClassificationParse, parseOperationName, err)
	}

	return domain.ClassificationResult{
		PrimaryClassification:    primary,
		PrimaryConfidence:        domain.PrimaryConfidence,
		SecondaryClassifications: secondaries,
		TechnologyArea:           domain.NormalizeTechnologyArea(raw.TechnologyArea),
		CandidatePods:            pods,
		GeneratedTitle:           generatedTitle(raw.GeneratedTitle, pods),
	}, nil
}

func collectPods(groups ...[]podPayload) []domain.CandidatePOD {
	for _, group := range groups {
		out := make([]domain.CandidatePOD, 0, len(group))
		for _, item := range group {
			text := strings.TrimSpace(firstNonEmpty(item.Text, item.PodText))
			if text == "" {
				continue
			}
			out = append(out, domain.CandidatePOD{
				Text:      text,
				Rationale: strings.TrimSpace(item.Rationale),
				IsPrimary: item.IsPrimary,
			})
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

func rankSecondaries(primary string, items []json.RawMessage) ([]domain.ClassificationPrediction, error) {
	seen := map[string]struct{}{primary: {}}
	out := make([]domain.ClassificationPrediction, 0, domain.MaxSecondaryPredictions)
	for _, item := range items {
		if len(out) == domain.MaxSecondaryPredictions {
			break
		}
		code, err := decodeSecondaryCode(item)
		if err != nil {
			return nil, err
		}
		code = domain.NormalizeCPCCode(code)
		if code == "" {
			continue
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, domain.ClassificationPrediction{
			Code:       code,
			Class:      domain.CPCClass(code),
			Confidence: secondaryConfidence(len(out)),
		})
	}
	return out, nil
}

func decodeSecondaryCode(item json.RawMessage) (string, error) {
	var code string
	if err := json.Unmarshal(item, &code); err == nil {
		return code, nil
	}
	var obj secondaryPayload
	if err := json.Unmarshal(item, &obj); err != nil {
		return "", fmt.Errorf("secondary classification: %w", err)
	}
	return firstNonEmpty(obj.Code, obj.CPCCode), nil
}

func secondaryConfidence(index int) float64 {
	value := domain.FirstSecondaryConfidence - float64(index)*domain.SecondaryConfidenceStep
	return math.Round(value*100) / 100
}

func generatedTitle(title string, pods []domain.CandidatePOD) string {
	if title = strings.TrimSpace(title); title != "" {
		return truncateRunes(title, maxTitleChars)
	}
	for _, pod := range pods {
		if pod.IsPrimary {
			return truncateRunes(pod.Text, maxGeneratedTitle)
		}
	}
	return domain.DefaultTitle
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
