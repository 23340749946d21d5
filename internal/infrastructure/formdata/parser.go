// Package formdata splits multipart/form-data bodies into named parts.
//
// The parser works on raw bytes so binary payloads survive untouched, and it
// skips malformed segments instead of failing the whole body. Only a missing
// boundary aborts parsing.
package formdata

import (
	"bytes"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"strings"

	"github.com/kirillkom/patent-pod-intake/internal/core/domain"
)

var (
	crlfcrlf = []byte("\r\n\r\n")
	lflf     = []byte("\n\n")
)

// BoundaryFromContentType returns the boundary token of a multipart content
// type. A header without a usable boundary is a malformed request.
func BoundaryFromContentType(contentType string) (string, error) {
	if _, params, err := mime.ParseMediaType(contentType); err == nil {
		if boundary := strings.TrimSpace(params["boundary"]); boundary != "" {
			return boundary, nil
		}
	}

	// mime.ParseMediaType rejects some real-world headers (unquoted special
	// characters); fall back to a plain attribute scan.
	for _, param := range splitParams(contentType) {
		key, value, ok := strings.Cut(param, "=")
		if !ok || !strings.EqualFold(strings.TrimSpace(key), "boundary") {
			continue
		}
		if boundary := unquote(strings.TrimSpace(value)); boundary != "" {
			return boundary, nil
		}
	}
	return "", domain.WrapError(
		domain.ErrMalformedRequest,
		"parse content type",
		fmt.Errorf("no boundary in %q", contentType),
	)
}

// ParseRequest combines BoundaryFromContentType and Split.
func ParseRequest(contentType string, body []byte) ([]domain.UploadedPart, error) {
	boundary, err := BoundaryFromContentType(contentType)
	if err != nil {
		return nil, err
	}
	return Split(body, boundary), nil
}

// Split returns one part per Content-Disposition segment, in body order.
// A part carrying a filename attribute, even an empty one, is a file.
func Split(body []byte, boundary string) []domain.UploadedPart {
	if boundary == "" {
		return nil
	}
	delimiter := []byte("--" + boundary)

	segments := bytes.Split(body, delimiter)
	parts := make([]domain.UploadedPart, 0, len(segments))
	for _, segment := range segments {
		part, ok := parseSegment(segment)
		if !ok {
			continue
		}
		parts = append(parts, part)
	}
	return parts
}

func parseSegment(segment []byte) (domain.UploadedPart, bool) {
	if len(bytes.TrimSpace(segment)) == 0 || bytes.HasPrefix(segment, []byte("--")) {
		return domain.UploadedPart{}, false
	}
	segment = trimLeadingLineBreak(segment)

	rawHeaders, payload, ok := cutHeaders(segment)
	if !ok {
		return domain.UploadedPart{}, false
	}

	var (
		part        domain.UploadedPart
		disposition bool
	)
	for _, line := range strings.Split(string(rawHeaders), "\n") {
		key, value, found := strings.Cut(strings.TrimRight(line, "\r"), ":")
		if !found {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "content-disposition":
			attrs := dispositionAttributes(value)
			name, hasName := attrs["name"]
			if !hasName || name == "" {
				return domain.UploadedPart{}, false
			}
			disposition = true
			part.Name = name
			if filename, hasFilename := attrs["filename"]; hasFilename {
				part.IsFile = true
				part.Filename = filename
			}
		case "content-type":
			part.DeclaredMediaType = strings.TrimSpace(value)
		}
	}
	if !disposition {
		return domain.UploadedPart{}, false
	}

	part.RawBytes = trimTrailingLineBreak(payload)
	return part, true
}

// cutHeaders splits at whichever blank line comes first, so a CRLF pair
// inside the payload of a bare-LF part stays part of the body.
func cutHeaders(segment []byte) ([]byte, []byte, bool) {
	sep := crlfcrlf
	idx := bytes.Index(segment, crlfcrlf)
	if lf := bytes.Index(segment, lflf); lf >= 0 && (idx < 0 || lf < idx) {
		sep, idx = lflf, lf
	}
	if idx < 0 {
		return nil, nil, false
	}
	return segment[:idx], segment[idx+len(sep):], true
}

func trimLeadingLineBreak(b []byte) []byte {
	if bytes.HasPrefix(b, []byte("\r\n")) {
		return b[2:]
	}
	if bytes.HasPrefix(b, []byte("\n")) {
		return b[1:]
	}
	return b
}

func trimTrailingLineBreak(b []byte) []byte {
	if bytes.HasSuffix(b, []byte("\r\n")) {
		b = b[:len(b)-2]
	} else if bytes.HasSuffix(b, []byte("\n")) {
		b = b[:len(b)-1]
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// dispositionAttributes parses `form-data; name="files"; filename="a b.pdf"`.
// filename* (RFC 5987) wins over filename when both are present.
func dispositionAttributes(value string) map[string]string {
	attrs := map[string]string{}
	for _, param := range splitParams(value) {
		key, raw, ok := strings.Cut(param, "=")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		raw = strings.TrimSpace(raw)
		if key == "filename*" {
			if decoded, err := decodeExtendedValue(raw); err == nil {
				attrs["filename"] = decoded
				attrs["filename*"] = decoded
			}
			continue
		}
		if _, extended := attrs[key+"*"]; extended {
			continue
		}
		attrs[key] = unquote(raw)
	}
	return attrs
}

// splitParams splits on semicolons outside double quotes.
func splitParams(value string) []string {
	var (
		params  []string
		current strings.Builder
		quoted  bool
		escaped bool
	)
	for _, r := range value {
		switch {
		case escaped:
			escaped = false
		case r == '\\' && quoted:
			escaped = true
		case r == '"':
			quoted = !quoted
		case r == ';' && !quoted:
			params = append(params, current.String())
			current.Reset()
			continue
		}
		current.WriteRune(r)
	}
	return append(params, current.String())
}

func unquote(value string) string {
	if len(value) < 2 || value[0] != '"' || value[len(value)-1] != '"' {
		return value
	}
	inner := value[1 : len(value)-1]
	if !strings.Contains(inner, `\`) {
		return inner
	}
	var b strings.Builder
	escaped := false
	for _, r := range inner {
		if r == '\\' && !escaped {
			escaped = true
			continue
		}
		escaped = false
		b.WriteRune(r)
	}
	return b.String()
}

func decodeExtendedValue(value string) (string, error) {
	parts := strings.SplitN(unquote(value), "'", 3)
	if len(parts) != 3 {
		return "", errors.New("extended value must be charset'lang'value")
	}
	return url.PathUnescape(parts[2])
}
