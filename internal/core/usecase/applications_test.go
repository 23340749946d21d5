package usecase

import (
	"context"
	"testing"

	"github.com/kirillkom/patent-pod-intake/internal/core/domain"
	"github.com/kirillkom/patent-pod-intake/internal/core/ports"
)

func TestApplicationsGetDerivesState(t *testing.T) {
	repo := newMemRepoFake()
	repo.put(&domain.Application{ID: "a1", OwnerID: "u1", SpecificationText: "text", PredictedPrimaryClassification: "G06F 1/00"})
	repo.pods["a1"] = []domain.PointOfDistinction{{ID: "p1", DisplayOrder: 1}}
	uc := NewApplicationsUseCase(repo)

	view, err := uc.Get(context.Background(), "u1", "a1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if view.State != domain.StateCommitted || len(view.Pods) != 1 {
		t.Fatalf("unexpected view %+v", view)
	}

	if _, err := uc.Get(context.Background(), "u1", "missing"); !domain.IsKind(err, domain.ErrApplicationNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := uc.Get(context.Background(), "u1", " "); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestApplicationsArchiveKeepsPods(t *testing.T) {
	repo := newMemRepoFake()
	repo.put(&domain.Application{ID: "a1", SpecificationText: "text"})
	repo.pods["a1"] = []domain.PointOfDistinction{{ID: "p1"}, {ID: "p2"}, {ID: "p3"}}
	uc := NewApplicationsUseCase(repo)

	if err := uc.Archive(context.Background(), "", "a1"); err != nil {
		t.Fatalf("Archive() error = %v", err)
	}
	if err := uc.Archive(context.Background(), "", "a1"); err != nil {
		t.Fatalf("second Archive() error = %v", err)
	}
	view, err := uc.Get(context.Background(), "", "a1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if view.State != domain.StateRejected || len(view.Pods) != 3 {
		t.Fatalf("expected archived application to keep pods, got %+v", view)
	}

	active, _ := uc.List(context.Background(), domain.ApplicationFilter{})
	archived, _ := uc.List(context.Background(), domain.ApplicationFilter{Archived: true})
	if len(active) != 0 || len(archived) != 1 {
		t.Fatalf("unexpected list result active=%d archived=%d", len(active), len(archived))
	}
}

func TestApplicationsAnonymousCallerCannotReachOwnedRecord(t *testing.T) {
	repo := newMemRepoFake()
	repo.put(&domain.Application{ID: "a1", OwnerID: "u1", SpecificationText: "text"})
	repo.put(&domain.Application{ID: "a2", SpecificationText: "text"})
	uc := NewApplicationsUseCase(repo)
	classify := NewClassifyUseCase(repo, &classifierFake{}, nil, domain.IntakeLimits{})

	if _, err := uc.Get(context.Background(), "", "a1"); !domain.IsKind(err, domain.ErrApplicationNotFound) {
		t.Fatalf("expected not found for anonymous get, got %v", err)
	}
	if err := uc.Archive(context.Background(), "", "a1"); !domain.IsKind(err, domain.ErrApplicationNotFound) {
		t.Fatalf("expected not found for anonymous archive, got %v", err)
	}
	if _, err := classify.Classify(context.Background(), ports.ClassifyRequest{ApplicationID: "a1"}); !domain.IsKind(err, domain.ErrApplicationNotFound) {
		t.Fatalf("expected not found for anonymous classify, got %v", err)
	}
	if app, _ := repo.GetByID(context.Background(), "a1"); app.Archived {
		t.Fatalf("anonymous archive must not touch an owned record")
	}

	apps, err := uc.List(context.Background(), domain.ApplicationFilter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(apps) != 1 || apps[0].ID != "a2" {
		t.Fatalf("anonymous list must only see unowned records, got %+v", apps)
	}
}
