package localfs

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/kirillkom/patent-pod-intake/internal/core/domain"
)

func TestSaveAndOpenRoundTrip(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	locator, err := store.Save(context.Background(), "abc_spec.pdf", strings.NewReader("payload"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if locator != "file://abc_spec.pdf" {
		t.Fatalf("unexpected locator %q", locator)
	}

	rc, err := store.Open(context.Background(), locator)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	if string(body) != "payload" {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestKeysCannotEscapeBasePath(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	path, err := store.resolve("../../etc/passwd")
	if err != nil {
		t.Fatalf("resolve() error = %v", err)
	}
	if !strings.HasPrefix(path, dir) {
		t.Fatalf("path %q escaped %q", path, dir)
	}
}

func TestOpenMissingIsNotFound(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	_, err = store.Open(context.Background(), "file://missing.txt")
	if !domain.IsKind(err, domain.ErrApplicationNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
