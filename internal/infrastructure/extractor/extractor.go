// Package extractor recovers readable text from uploaded specification files.
package extractor

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/patent-pod-intake/internal/core/domain"
)

type format string

const (
	formatUnknown  format = ""
	formatText     format = "txt"
	formatPDF      format = "pdf"
	formatDOCX     format = "docx"
	formatXLSX     format = "xlsx"
	formatHTML     format = "html"
	formatMarkdown format = "md"
	formatImage    format = "image"
)

var canonicalMediaTypes = map[format]string{
	formatText:     "text/plain",
	formatPDF:      "application/pdf",
	formatDOCX:     "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	formatXLSX:     "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	formatHTML:     "text/html",
	formatMarkdown: "text/markdown",
}

var mediaTypeFormats = map[string]format{
	"text/plain":            formatText,
	"application/pdf":       formatPDF,
	"application/x-pdf":     formatPDF,
	"text/html":             formatHTML,
	"application/xhtml+xml": formatHTML,
	"text/markdown":         formatMarkdown,
	"text/x-markdown":       formatMarkdown,

	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": formatDOCX,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":       formatXLSX,
}

var extensionFormats = map[string]format{
	".txt":      formatText,
	".text":     formatText,
	".pdf":      formatPDF,
	".docx":     formatDOCX,
	".xlsx":     formatXLSX,
	".xlsm":     formatXLSX,
	".html":     formatHTML,
	".htm":      formatHTML,
	".md":       formatMarkdown,
	".markdown": formatMarkdown,
	".png":      formatImage,
	".jpg":      formatImage,
	".jpeg":     formatImage,
	".gif":      formatImage,
	".tif":      formatImage,
	".tiff":     formatImage,
	".bmp":      formatImage,
	".webp":     formatImage,
	".svg":      formatImage,
}

// genericMediaTypes say nothing about the payload; the extension decides.
var genericMediaTypes = map[string]struct{}{
	"":                           {},
	"application/octet-stream":   {},
	"binary/octet-stream":        {},
	"application/unknown":        {},
	"application/x-download":     {},
	"application/force-download": {},
	"application/binary":         {},
}

type Extractor struct {
	maxTextBytes int
}

// New returns an extractor. maxTextBytes bounds the text kept per file; zero
// keeps everything.
func New(maxTextBytes int) *Extractor {
	return &Extractor{maxTextBytes: maxTextBytes}
}

// Extract dispatches on the declared media type, falling back to the filename
// extension when the declared type is generic or unknown. Image files yield
// empty text and no error. Formats without a strategy fail with
// domain.ErrUnsupportedFormat.
func (e *Extractor) Extract(ctx context.Context, data []byte, declaredMediaType, filename string) (domain.ExtractedDocument, error) {
	if err := ctx.Err(); err != nil {
		return domain.ExtractedDocument{}, err
	}

	kind := detectFormat(declaredMediaType, filename, data)
	doc := domain.ExtractedDocument{
		SourceFilename: filename,
		MediaType:      mediaTypeFor(kind, declaredMediaType),
		ByteLength:     len(data),
	}

	var (
		text string
		err  error
	)
	switch kind {
	case formatText:
		text = decodePlainText(data)
	case formatPDF:
		text, err = extractPDF(data)
	case formatDOCX:
		text, err = extractDOCX(data)
	case formatXLSX:
		text, err = extractXLSX(data)
	case formatHTML:
		text, err = extractHTML(decodePlainText(data))
	case formatMarkdown:
		text = extractMarkdown([]byte(decodePlainText(data)))
	case formatImage:
		return doc, nil
	default:
		return doc, domain.WrapError(
			domain.ErrUnsupportedFormat,
			"extract text",
			fmt.Errorf("file %q with media type %q", filename, declaredMediaType),
		)
	}
	if err != nil {
		return doc, fmt.Errorf("extract %s text from %q: %w", kind, filename, err)
	}

	doc.Text = e.bound(normalizeText(text))
	doc.TextLength = utf8.RuneCountInString(doc.Text)
	return doc, nil
}

func (e *Extractor) bound(text string) string {
	if e.maxTextBytes <= 0 || len(text) <= e.maxTextBytes {
		return text
	}
	cut := e.maxTextBytes
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

func detectFormat(declaredMediaType, filename string, data []byte) format {
	mediaType := normalizeMediaType(declaredMediaType)
	if _, generic := genericMediaTypes[mediaType]; !generic {
		if kind, ok := mediaTypeFormats[mediaType]; ok {
			return kind
		}
		if strings.HasPrefix(mediaType, "image/") {
			return formatImage
		}
	}

	if kind, ok := extensionFormats[strings.ToLower(filepath.Ext(filename))]; ok {
		return kind
	}
	if strings.HasPrefix(mediaType, "text/") {
		return formatText
	}
	if bytes.HasPrefix(data, []byte("%PDF-")) {
		return formatPDF
	}
	return formatUnknown
}

func normalizeMediaType(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if parsed, _, err := mime.ParseMediaType(value); err == nil {
		return parsed
	}
	base, _, _ := strings.Cut(value, ";")
	return strings.ToLower(strings.TrimSpace(base))
}

func mediaTypeFor(kind format, declared string) string {
	if canonical, ok := canonicalMediaTypes[kind]; ok {
		return canonical
	}
	return normalizeMediaType(declared)
}

// normalizeText unifies line endings and drops NULs and trailing blanks.
func normalizeText(text string) string {
	text = strings.ReplaceAll(text, "\x00", "")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	out := lines[:0]
	blank := 0
	for _, line := range lines {
		line = strings.TrimRight(line, " \t\u00a0")
		if line == "" {
			blank++
			if blank > 1 {
				continue
			}
		} else {
			blank = 0
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
