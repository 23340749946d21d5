package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/patent-pod-intake/internal/core/domain"
	"github.com/kirillkom/patent-pod-intake/internal/core/ports"
)

type ReviewUseCase struct {
	repo      ports.ApplicationRepository
	publisher ports.EventPublisher
	metrics   ports.PipelineMetrics
	logger    *slog.Logger
	now       func() time.Time
}

func NewReviewUseCase(
	repo ports.ApplicationRepository,
	publisher ports.EventPublisher,
	metrics ports.PipelineMetrics,
	logger *slog.Logger,
) *ReviewUseCase {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ReviewUseCase{
		repo:      repo,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Commit replaces the persisted POD set with the approved one. Validation
// failures never touch the datastore.
func (uc *ReviewUseCase) Commit(ctx context.Context, req ports.CommitRequest) (*domain.ApplicationView, error) {
	view, err := uc.commit(ctx, req)
	uc.metrics.RecordCommit(outcomeLabel(err))
	return view, err
}

func (uc *ReviewUseCase) commit(ctx context.Context, req ports.CommitRequest) (*domain.ApplicationView, error) {
	if err := validateApprovedPods(req.Pods); err != nil {
		return nil, err
	}

	app, err := loadOwnedApplication(ctx, uc.repo, req.OwnerID, req.ApplicationID, "commit pods")
	if err != nil {
		return nil, err
	}
	if app.Archived {
		return nil, domain.WrapError(domain.ErrInvalidState, "commit pods", fmt.Errorf("application %s is archived", app.ID))
	}
	if !app.Classified() {
		return nil, domain.WrapError(domain.ErrInvalidState, "commit pods", fmt.Errorf("application %s has not been classified", app.ID))
	}

	fields := domain.CommitFields{
		Title:                          firstNonEmpty(strings.TrimSpace(req.Title), app.Title),
		PredictedPrimaryClassification: firstNonEmpty(domain.NormalizeCPCCode(req.PrimaryClassification), app.PredictedPrimaryClassification),
		TechnologyArea:                 app.TechnologyArea,
	}
	if strings.TrimSpace(req.TechnologyArea) != "" {
		fields.TechnologyArea = domain.NormalizeTechnologyArea(req.TechnologyArea)
	}
	fields.Title = truncateRunes(fields.Title, maxTitleChars)

	now := uc.now()
	pods := make([]domain.PointOfDistinction, 0, len(req.Pods))
	for i, pod := range req.Pods {
		pods = append(pods, domain.PointOfDistinction{
			ID:                uuid.NewString(),
			ApplicationID:     app.ID,
			Text:              strings.TrimSpace(pod.Text),
			Rationale:         strings.TrimSpace(pod.Rationale),
			IsPrimary:         pod.IsPrimary,
			SuggestedBySystem: pod.SuggestedBySystem,
			UserApproved:      true,
			DisplayOrder:      i + 1,
			CreatedAt:         now,
		})
	}

	if err := uc.repo.ReplacePODs(ctx, app.ID, pods, fields); err != nil {
		return nil, fmt.Errorf("replace pods: %w", err)
	}

	app.Title = fields.Title
	app.PredictedPrimaryClassification = fields.PredictedPrimaryClassification
	app.TechnologyArea = fields.TechnologyArea
	app.UpdatedAt = now

	uc.publishCommitted(ctx, app, len(pods), now)

	return &domain.ApplicationView{
		Application: app,
		Pods:        pods,
		State:       domain.DeriveState(app, len(pods)),
	}, nil
}

func validateApprovedPods(pods []ports.CommitPOD) error {
	if len(pods) < domain.MinCommittedPods {
		return domain.WrapError(
			domain.ErrInsufficientPods,
			"commit pods",
			fmt.Errorf("%d approved, at least %d required", len(pods), domain.MinCommittedPods),
		)
	}

	primaries := 0
	for i, pod := range pods {
		if strings.TrimSpace(pod.Text) == "" {
			return domain.WrapError(domain.ErrInvalidInput, "commit pods", fmt.Errorf("pod %d has empty text", i+1))
		}
		if pod.IsPrimary {
			primaries++
		}
	}
	if primaries != 1 {
		return domain.WrapError(
			domain.ErrInvalidInput,
			"commit pods",
			fmt.Errorf("exactly one primary pod is required, got %d", primaries),
		)
	}
	return nil
}

// publishCommitted is best-effort: the commit is already durable.
func (uc *ReviewUseCase) publishCommitted(ctx context.Context, app *domain.Application, podCount int, at time.Time) {
	if uc.publisher == nil {
		return
	}
	event := domain.ApplicationCommitted{
		ApplicationID:         app.ID,
		OwnerID:               app.OwnerID,
		Title:                 app.Title,
		PrimaryClassification: app.PredictedPrimaryClassification,
		PodCount:              podCount,
		CommittedAt:           at,
	}
	if err := uc.publisher.PublishApplicationCommitted(ctx, event); err != nil && !errors.Is(err, context.Canceled) {
		uc.logger.Warn("publish application committed failed",
			"application_id", app.ID,
			"error", err,
		)
	}
}
