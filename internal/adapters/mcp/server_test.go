package mcpadapter

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kirillkom/patent-pod-intake/internal/core/domain"
)

type readerFake struct {
	apps       []domain.Application
	view       *domain.ApplicationView
	err        error
	lastFilter domain.ApplicationFilter
	lastOwner  string
	archived   []string
}

func (f *readerFake) Get(_ context.Context, ownerID, id string) (*domain.ApplicationView, error) {
	f.lastOwner = ownerID
	if f.err != nil {
		return nil, f.err
	}
	return f.view, nil
}

func (f *readerFake) List(_ context.Context, filter domain.ApplicationFilter) ([]domain.Application, error) {
	f.lastFilter = filter
	if f.err != nil {
		return nil, f.err
	}
	return f.apps, nil
}

func (f *readerFake) Archive(_ context.Context, ownerID, id string) error {
	f.lastOwner = ownerID
	if f.err != nil {
		return f.err
	}
	f.archived = append(f.archived, id)
	return nil
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if res == nil || len(res.Content) == 0 {
		t.Fatalf("expected content in result")
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", res.Content[0])
	}
	return text.Text
}

func TestListApplicationsPassesFilter(t *testing.T) {
	fake := &readerFake{apps: []domain.Application{{ID: "app-1", Title: "Rotor brake"}}}
	tools := NewTools(fake, nil)

	res, err := tools.ListApplications(context.Background(), callRequest(map[string]any{
		"owner_id": " user-7 ",
		"archived": true,
	}))
	if err != nil {
		t.Fatalf("ListApplications() error = %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error %q", resultText(t, res))
	}
	if fake.lastFilter.OwnerID != "user-7" || !fake.lastFilter.Archived {
		t.Fatalf("unexpected filter %+v", fake.lastFilter)
	}
	if !strings.Contains(resultText(t, res), `"id":"app-1"`) {
		t.Fatalf("expected application in payload, got %s", resultText(t, res))
	}
}

func TestGetApplicationRequiresID(t *testing.T) {
	tools := NewTools(&readerFake{}, nil)
	res, err := tools.GetApplication(context.Background(), callRequest(map[string]any{}))
	if err != nil {
		t.Fatalf("GetApplication() error = %v", err)
	}
	if !res.IsError {
		t.Fatalf("expected tool error for missing id")
	}
}

func TestGetApplicationReturnsView(t *testing.T) {
	fake := &readerFake{view: &domain.ApplicationView{
		Application: &domain.Application{ID: "app-1", Title: "Rotor brake"},
		Pods:        []domain.PointOfDistinction{{ID: "pod-1", Text: "Ceramic pad", IsPrimary: true}},
		State:       domain.StateCommitted,
	}}
	tools := NewTools(fake, nil)

	res, err := tools.GetApplication(context.Background(), callRequest(map[string]any{"id": "app-1", "owner_id": "user-7"}))
	if err != nil {
		t.Fatalf("GetApplication() error = %v", err)
	}
	text := resultText(t, res)
	if res.IsError || !strings.Contains(text, `"state":"committed"`) || !strings.Contains(text, "Ceramic pad") {
		t.Fatalf("unexpected payload %s", text)
	}
	if fake.lastOwner != "user-7" {
		t.Fatalf("expected owner to be forwarded, got %q", fake.lastOwner)
	}
}

func TestGetApplicationNotFoundIsToolError(t *testing.T) {
	fake := &readerFake{err: domain.WrapError(domain.ErrApplicationNotFound, "get application", errors.New("app-9"))}
	res, err := NewTools(fake, nil).GetApplication(context.Background(), callRequest(map[string]any{"id": "app-9"}))
	if err != nil {
		t.Fatalf("GetApplication() error = %v", err)
	}
	if !res.IsError || !strings.Contains(resultText(t, res), "not found") {
		t.Fatalf("expected not found tool error, got %+v", res)
	}
}

func TestArchiveApplication(t *testing.T) {
	fake := &readerFake{}
	res, err := NewTools(fake, nil).ArchiveApplication(context.Background(), callRequest(map[string]any{"id": "app-1"}))
	if err != nil {
		t.Fatalf("ArchiveApplication() error = %v", err)
	}
	if res.IsError || len(fake.archived) != 1 || fake.archived[0] != "app-1" {
		t.Fatalf("unexpected archive result %+v, archived %v", res, fake.archived)
	}
}

func TestUnexpectedFailureIsMasked(t *testing.T) {
	fake := &readerFake{err: errors.New("connection reset by peer")}
	res, err := NewTools(fake, nil).ListApplications(context.Background(), callRequest(nil))
	if err != nil {
		t.Fatalf("ListApplications() error = %v", err)
	}
	if !res.IsError || resultText(t, res) != "internal error" {
		t.Fatalf("expected masked internal error, got %+v", res)
	}
}

func TestNewServerRegistersTools(t *testing.T) {
	s := NewServer(NewTools(&readerFake{}, nil), "test")
	for _, name := range []string{"list_applications", "get_application", "archive_application"} {
		if s.GetTool(name) == nil {
			t.Fatalf("expected tool %s to be registered", name)
		}
	}
}
