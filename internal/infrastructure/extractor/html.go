package extractor

import (
	"errors"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var skippedElements = map[atom.Atom]struct{}{
	atom.Script:   {},
	atom.Style:    {},
	atom.Noscript: {},
	atom.Template: {},
	atom.Svg:      {},
}

var blockElements = map[atom.Atom]struct{}{
	atom.P: {}, atom.Div: {}, atom.Br: {}, atom.Li: {}, atom.Tr: {},
	atom.H1: {}, atom.H2: {}, atom.H3: {}, atom.H4: {}, atom.H5: {}, atom.H6: {},
	atom.Section: {}, atom.Article: {}, atom.Header: {}, atom.Footer: {},
	atom.Title: {}, atom.Table: {}, atom.Ul: {}, atom.Ol: {}, atom.Blockquote: {}, atom.Pre: {},
}

// extractHTML keeps visible text and breaks lines at block elements.
func extractHTML(source string) (string, error) {
	tokenizer := html.NewTokenizer(strings.NewReader(source))
	var (
		b    strings.Builder
		skip int
	)
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			if err := tokenizer.Err(); err != nil && !errors.Is(err, io.EOF) {
				return "", err
			}
			return collapseSpaces(b.String()), nil
		case html.StartTagToken, html.SelfClosingTagToken:
			token := tokenizer.Token()
			if _, ok := skippedElements[token.DataAtom]; ok && token.Type == html.StartTagToken {
				skip++
				continue
			}
			if _, ok := blockElements[token.DataAtom]; ok {
				b.WriteByte('\n')
			}
			if token.DataAtom == atom.Td || token.DataAtom == atom.Th {
				b.WriteByte('\t')
			}
		case html.EndTagToken:
			token := tokenizer.Token()
			if _, ok := skippedElements[token.DataAtom]; ok {
				if skip > 0 {
					skip--
				}
				continue
			}
			if _, ok := blockElements[token.DataAtom]; ok {
				b.WriteByte('\n')
			}
		case html.TextToken:
			if skip > 0 {
				continue
			}
			b.WriteString(string(tokenizer.Text()))
		}
	}
}

// collapseSpaces squeezes runs of horizontal whitespace inside each line.
func collapseSpaces(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	return strings.Join(lines, "\n")
}
