package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/patent-pod-intake/internal/core/domain"
	"github.com/kirillkom/patent-pod-intake/internal/core/ports"
)

type ClassifyUseCase struct {
	repo    ports.ApplicationRepository
	service ports.ClassificationService
	metrics ports.PipelineMetrics
	limits  domain.IntakeLimits
}

func NewClassifyUseCase(
	repo ports.ApplicationRepository,
	service ports.ClassificationService,
	metrics ports.PipelineMetrics,
	limits domain.IntakeLimits,
) *ClassifyUseCase {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &ClassifyUseCase{
		repo:    repo,
		service: service,
		metrics: metrics,
		limits:  limits.WithDefaults(),
	}
}

// Classify calls the classification service exactly once. A failure leaves
// the stored record untouched so the call can be retried without re-upload.
func (uc *ClassifyUseCase) Classify(ctx context.Context, req ports.ClassifyRequest) (*domain.ClassificationResult, error) {
	result, err := uc.classify(ctx, req)
	uc.metrics.RecordClassification(outcomeLabel(err))
	return result, err
}

func (uc *ClassifyUseCase) classify(ctx context.Context, req ports.ClassifyRequest) (*domain.ClassificationResult, error) {
	app, err := loadOwnedApplication(ctx, uc.repo, req.OwnerID, req.ApplicationID, "classify")
	if err != nil {
		return nil, err
	}
	if app.Archived {
		return nil, domain.WrapError(domain.ErrInvalidState, "classify", fmt.Errorf("application %s is archived", app.ID))
	}

	text := app.SpecificationText
	if override := strings.TrimSpace(req.TextOverride); override != "" {
		text = override
	}
	if n := utf8.RuneCountInString(text); n < uc.limits.MinCorpusChars {
		return nil, domain.WrapError(
			domain.ErrCorpusTooShort,
			"classify",
			fmt.Errorf("specification has %d characters, at least %d required", n, uc.limits.MinCorpusChars),
		)
	}

	prompt := BuildClassificationPrompt(text, app.Title, uc.limits.PromptMaxChars)
	raw, err := uc.callService(ctx, prompt)
	if err != nil {
		return nil, err
	}

	result, err := ParseClassification(SanitizeResponse(raw))
	if err != nil {
		return nil, err
	}

	title := app.Title
	if title == "" || title == domain.DefaultTitle {
		title = result.GeneratedTitle
	}
	if err := uc.repo.SaveClassification(
		ctx,
		app.ID,
		result.Predictions(),
		result.PrimaryClassification,
		result.TechnologyArea,
		title,
	); err != nil {
		return nil, fmt.Errorf("save classification: %w", err)
	}
	return &result, nil
}

func (uc *ClassifyUseCase) callService(ctx context.Context, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, uc.limits.ClassifyTimeout)
	defer cancel()

	raw, err := uc.service.GenerateJSONFromPrompt(callCtx, prompt)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return "", domain.WrapError(domain.ErrClassificationTimeout, "call classification service", err)
		}
		return "", fmt.Errorf("call classification service: %w", err)
	}
	return raw, nil
}

func loadOwnedApplication(ctx context.Context, repo ports.ApplicationRepository, ownerID, id, operation string) (*domain.Application, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, operation, errors.New("application id is required"))
	}
	app, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch application by id: %w", err)
	}
	// An empty identity is its own principal and never sees another owner's record.
	if app.OwnerID != strings.TrimSpace(ownerID) {
		return nil, domain.WrapError(domain.ErrApplicationNotFound, operation, fmt.Errorf("application %s", id))
	}
	return app, nil
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case domain.IsUserCorrectable(err):
		return "rejected"
	case domain.IsKind(err, domain.ErrClassificationTimeout):
		return "timeout"
	case domain.IsKind(err, domain.ErrClassificationParse):
		return "parse_error"
	default:
		return "error"
	}
}

type noopMetrics struct{}

func (noopMetrics) RecordUpload(string)             {}
func (noopMetrics) RecordClassification(string)     {}
func (noopMetrics) RecordCommit(string)             {}
func (noopMetrics) RecordExtraction(string, string) {}
