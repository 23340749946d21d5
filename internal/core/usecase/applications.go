package usecase

import (
	"context"
	"fmt"

	"github.com/kirillkom/patent-pod-intake/internal/core/domain"
	"github.com/kirillkom/patent-pod-intake/internal/core/ports"
)

type ApplicationsUseCase struct {
	repo ports.ApplicationRepository
}

func NewApplicationsUseCase(repo ports.ApplicationRepository) *ApplicationsUseCase {
	return &ApplicationsUseCase{repo: repo}
}

func (uc *ApplicationsUseCase) Get(ctx context.Context, ownerID, id string) (*domain.ApplicationView, error) {
	app, err := loadOwnedApplication(ctx, uc.repo, ownerID, id, "get application")
	if err != nil {
		return nil, err
	}
	pods, err := uc.repo.ListPODs(ctx, app.ID)
	if err != nil {
		return nil, fmt.Errorf("list pods: %w", err)
	}
	if pods == nil {
		pods = []domain.PointOfDistinction{}
	}
	return &domain.ApplicationView{
		Application: app,
		Pods:        pods,
		State:       domain.DeriveState(app, len(pods)),
	}, nil
}

func (uc *ApplicationsUseCase) List(ctx context.Context, filter domain.ApplicationFilter) ([]domain.Application, error) {
	apps, err := uc.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	if apps == nil {
		apps = []domain.Application{}
	}
	return apps, nil
}

// Archive is a soft delete. PODs stay for audit and archiving twice is a no-op.
func (uc *ApplicationsUseCase) Archive(ctx context.Context, ownerID, id string) error {
	app, err := loadOwnedApplication(ctx, uc.repo, ownerID, id, "archive application")
	if err != nil {
		return err
	}
	if app.Archived {
		return nil
	}
	if err := uc.repo.SetArchived(ctx, app.ID, true); err != nil {
		return fmt.Errorf("archive application: %w", err)
	}
	return nil
}
