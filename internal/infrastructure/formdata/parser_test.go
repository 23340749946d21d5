package formdata

import (
	"bytes"
	"mime/multipart"
	"strings"
	"testing"

	"github.com/kirillkom/patent-pod-intake/internal/core/domain"
)

func TestBoundaryFromContentType(t *testing.T) {
	cases := map[string]string{
		"multipart/form-data; boundary=abc123":                    "abc123",
		`multipart/form-data; boundary="quoted:boundary"`:         "quoted:boundary",
		"multipart/form-data; charset=utf-8; BOUNDARY=----WebKit": "----WebKit",
		"multipart/form-data; boundary=a?b@c":                     "a?b@c",
	}
	for header, want := range cases {
		got, err := BoundaryFromContentType(header)
		if err != nil {
			t.Fatalf("BoundaryFromContentType(%q) error = %v", header, err)
		}
		if got != want {
			t.Fatalf("BoundaryFromContentType(%q) = %q, want %q", header, got, want)
		}
	}

	for _, header := range []string{"", "multipart/form-data", "multipart/form-data; boundary=", "text/plain"} {
		if _, err := BoundaryFromContentType(header); !domain.IsKind(err, domain.ErrMalformedRequest) {
			t.Fatalf("expected malformed request for %q, got %v", header, err)
		}
	}
}

func TestSplitMatchesStandardWriter(t *testing.T) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("title", "Steering Linkage"); err != nil {
		t.Fatalf("WriteField: %v", err)
	}
	binary := []byte{0x25, 0x50, 0x44, 0x46, 0x00, 0xff, '\r', '\n', 0x10}
	fw, err := writer.CreateFormFile("files", "spec one.pdf")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := fw.Write(binary); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := writer.WriteField("isPreFiling", "true"); err != nil {
		t.Fatalf("WriteField: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	parts, err := ParseRequest(writer.FormDataContentType(), body.Bytes())
	if err != nil {
		t.Fatalf("ParseRequest() error = %v", err)
	}
	if len(parts) != 3 {
		t.Fatalf("expected 3 parts, got %d", len(parts))
	}

	if parts[0].Name != "title" || parts[0].IsFile || string(parts[0].RawBytes) != "Steering Linkage" {
		t.Fatalf("unexpected field part %+v", parts[0])
	}
	file := parts[1]
	if !file.IsFile || file.Filename != "spec one.pdf" || file.DeclaredMediaType != "application/octet-stream" {
		t.Fatalf("unexpected file part %+v", file)
	}
	if !bytes.Equal(file.RawBytes, binary) {
		t.Fatalf("binary payload corrupted: %v", file.RawBytes)
	}
	if parts[2].Name != "isPreFiling" || string(parts[2].RawBytes) != "true" {
		t.Fatalf("unexpected trailing part %+v", parts[2])
	}
}

func TestSplitEdgeCases(t *testing.T) {
	body := strings.Join([]string{
		"preamble ignored",
		"--XYZ",
		`Content-Disposition: form-data; name="empty"; filename=""`,
		"Content-Type: application/octet-stream",
		"",
		"",
		"--XYZ",
		"Content-Disposition: form-data; filename=\"nameless.txt\"",
		"",
		"dropped",
		"--XYZ",
		"no header separator here",
		"--XYZ",
		`Content-Disposition: form-data; name="note"; filename*=UTF-8''r%C3%A9sum%C3%A9.txt`,
		"Content-Type: text/plain; charset=utf-8",
		"",
		"line one",
		"line two",
		"--XYZ--",
		"",
	}, "\r\n")

	parts := Split([]byte(body), "XYZ")
	if len(parts) != 2 {
		t.Fatalf("expected 2 parts, got %d: %+v", len(parts), parts)
	}
	if !parts[0].IsFile || parts[0].Filename != "" || len(parts[0].RawBytes) != 0 {
		t.Fatalf("empty filename must still be a file part: %+v", parts[0])
	}
	if parts[1].Filename != "résumé.txt" || parts[1].DeclaredMediaType != "text/plain; charset=utf-8" {
		t.Fatalf("unexpected extended filename part %+v", parts[1])
	}
	if string(parts[1].RawBytes) != "line one\r\nline two" {
		t.Fatalf("unexpected payload %q", parts[1].RawBytes)
	}
}

func TestSplitBareLineFeeds(t *testing.T) {
	body := "--b\nContent-Disposition: form-data; name=\"files\"; filename=\"a.txt\"\n\nhello\n--b--\n"
	parts := Split([]byte(body), "b")
	if len(parts) != 1 || string(parts[0].RawBytes) != "hello" || parts[0].Filename != "a.txt" {
		t.Fatalf("unexpected parts %+v", parts)
	}
}

func TestSplitBareLineFeedsKeepsCRLFInPayload(t *testing.T) {
	body := "--XB\nContent-Disposition: form-data; name=\"file\"; filename=\"d.bin\"\nContent-Type: application/octet-stream\n\nAB\r\n\r\nCD\n--XB--\n"
	parts := Split([]byte(body), "XB")
	if len(parts) != 1 {
		t.Fatalf("expected one part, got %+v", parts)
	}
	if got := string(parts[0].RawBytes); got != "AB\r\n\r\nCD" {
		t.Fatalf("payload = %q, want %q", got, "AB\r\n\r\nCD")
	}
	if parts[0].Filename != "d.bin" {
		t.Fatalf("unexpected filename %q", parts[0].Filename)
	}
}

func TestDispositionAttributesQuotedSemicolon(t *testing.T) {
	attrs := dispositionAttributes(`form-data; name="files"; filename="a; b \"c\".txt"`)
	if attrs["name"] != "files" || attrs["filename"] != `a; b "c".txt` {
		t.Fatalf("unexpected attributes %#v", attrs)
	}
}
