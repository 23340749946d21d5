package usecase

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/kirillkom/patent-pod-intake/internal/core/domain"
)

const (
	maxTitleChars      = 200
	minFilenameTitle   = 5
	titleScanLines     = 10
	minTitleLineChars  = 10
	maxTitleLineChars  = 100
	publicationMonths  = 18
	provenancePrefix   = "=== "
	provenanceSuffix   = " ==="
	corpusDocSeparator = "\n\n"
)

var genericTitleWords = map[string]struct{}{
	"specification": {},
	"spec":          {},
	"application":   {},
	"document":      {},
	"doc":           {},
	"drawing":       {},
	"drawings":      {},
	"provisional":   {},
	"patent":        {},
	"untitled":      {},
	"draft":         {},
	"file":          {},
	"disclosure":    {},
	"final":         {},
	"copy":          {},
}

var sectionHeaderPrefixes = []string{
	"background",
	"summary",
	"field",
	"abstract",
	"detailed description",
	"brief description",
	"description",
	"technical field",
	"cross-reference",
	"cross reference",
	"claims",
	"what is claimed",
}

// BuildCorpus concatenates non-empty documents in order, each preceded by a
// provenance header with its filename. It fails with ErrCorpusTooShort when
// the summed text length is below minChars.
func BuildCorpus(docs []domain.ExtractedDocument, minChars int) (domain.Corpus, error) {
	parts := make([]string, 0, len(docs))
	total := 0
	for _, doc := range docs {
		if strings.TrimSpace(doc.Text) == "" {
			continue
		}
		parts = append(parts, provenancePrefix+doc.SourceFilename+provenanceSuffix+"\n"+doc.Text)
		total += utf8.RuneCountInString(doc.Text)
	}

	corpus := domain.Corpus{
		CombinedText:    strings.Join(parts, corpusDocSeparator),
		FileCount:       len(docs),
		TotalTextLength: total,
	}
	if total < minChars {
		return corpus, domain.WrapError(
			domain.ErrCorpusTooShort,
			"build corpus",
			fmt.Errorf("extracted %d characters from %d file(s), at least %d required", total, len(docs), minChars),
		)
	}
	return corpus, nil
}

// DeriveTitle picks the application title. An explicit title wins; then a
// non-generic first filename; then a plausible line from the start of the
// corpus; then domain.DefaultTitle.
func DeriveTitle(explicit, firstFilename, combinedText string) string {
	if title := strings.TrimSpace(explicit); title != "" {
		return truncateRunes(title, maxTitleChars)
	}

	if candidate := titleFromFilename(firstFilename); candidate != "" {
		return normalizeTitle(candidate)
	}

	if line := titleFromText(combinedText); line != "" {
		return normalizeTitle(line)
	}
	return domain.DefaultTitle
}

func titleFromFilename(filename string) string {
	base := filepath.Base(strings.TrimSpace(filename))
	if base == "." || base == "/" {
		return ""
	}
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(base)
	candidate := strings.Join(strings.Fields(base), " ")

	if utf8.RuneCountInString(candidate) < minFilenameTitle || isGenericTitle(candidate) {
		return ""
	}
	return candidate
}

// isGenericTitle reports whether nothing meaningful is left after removing
// denylisted words and tokens without letters ("spec_v2_final").
func isGenericTitle(candidate string) bool {
	for _, word := range strings.Fields(strings.ToLower(candidate)) {
		if _, generic := genericTitleWords[word]; generic {
			continue
		}
		if !strings.ContainsFunc(word, unicode.IsLetter) {
			continue
		}
		if len(word) <= 1 || isVersionToken(word) {
			continue
		}
		return false
	}
	return true
}

func isVersionToken(word string) bool {
	if len(word) < 2 || word[0] != 'v' {
		return false
	}
	for _, r := range word[1:] {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func titleFromText(text string) string {
	seen := 0
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, provenancePrefix) && strings.HasSuffix(line, provenanceSuffix) {
			continue
		}
		seen++
		if seen > titleScanLines {
			break
		}
		if isSectionHeader(line) {
			continue
		}
		n := utf8.RuneCountInString(line)
		if n < minTitleLineChars || n > maxTitleLineChars {
			continue
		}
		if isAllUpper(line) {
			words := len(strings.Fields(line))
			if words < 3 || words > 10 {
				continue
			}
		}
		return line
	}
	return ""
}

func isSectionHeader(line string) bool {
	lower := strings.ToLower(line)
	for _, prefix := range sectionHeaderPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

func isAllUpper(line string) bool {
	hasLetter := false
	for _, r := range line {
		if !unicode.IsLetter(r) {
			continue
		}
		hasLetter = true
		if !unicode.IsUpper(r) {
			return false
		}
	}
	return hasLetter
}

func normalizeTitle(candidate string) string {
	title := cases.Title(language.English, cases.NoLower).String(candidate)
	return truncateRunes(strings.TrimSpace(title), maxTitleChars)
}

// PublicationDeadline returns filingDate + 18 months, clamped to the last day
// of the target month. It is nil when pre-filing or when no date is given.
func PublicationDeadline(filingDate *time.Time, preFiling bool) *time.Time {
	if preFiling || filingDate == nil || filingDate.IsZero() {
		return nil
	}
	y, m, d := filingDate.Date()
	firstOfTarget := time.Date(y, m+publicationMonths, 1, 0, 0, 0, 0, time.UTC)
	lastDay := firstOfTarget.AddDate(0, 1, -1).Day()
	if d > lastDay {
		d = lastDay
	}
	deadline := time.Date(firstOfTarget.Year(), firstOfTarget.Month(), d, 0, 0, 0, 0, time.UTC)
	return &deadline
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
