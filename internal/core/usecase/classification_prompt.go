package usecase

import (
	"fmt"
	"strings"
)

const truncationMarker = "\n\n[TRUNCATED]"

// BuildClassificationPrompt embeds the title and at most maxChars characters
// of the corpus together with the extraction instructions and the exact
// response shape.
func BuildClassificationPrompt(combinedText, title string, maxChars int) string {
	snippet := combinedText
	if maxChars > 0 && len([]rune(snippet)) > maxChars {
		snippet = truncateRunes(snippet, maxChars) + truncationMarker
	}
	if strings.TrimSpace(title) == "" {
		title = "(not provided)"
	}

	return fmt.Sprintf(`You are a patent analyst preparing a prior-art search.
Read the patent specification below and return a strict JSON object.

A Point of Distinction (POD) is a technical feature that distinguishes the
invention from prior art and can be used as a search term.
Requirements for PODs:
- Return 3 to 5 PODs, each 1 to 3 sentences.
- Describe the mechanism before the function: how it works, not what it is used for.
- Ignore the application context (industry, use case) and focus on the novel technical mechanism.
- Mark exactly one POD as primary: the feature most central to novelty.

Classify the invention with CPC codes (for example "G06F 40/169"). Return one
primary code and up to 4 secondary codes ordered by relevance.
technology_area must be one of "Software/ML", "Mechanical/Electrical", "Chemical/Biotech".

Response shape (no markdown, no extra keys):
{
  "primary_classification": "string",
  "secondary_classifications": ["string"],
  "technology_area": "string",
  "candidate_pods": [
    {"text": "string", "rationale": "string", "is_primary": true}
  ],
  "generated_title": "string"
}

Title: %s

Specification:
%s
`, title, snippet)
}
