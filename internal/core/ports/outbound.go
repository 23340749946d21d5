package ports

import (
	"context"
	"io"

	"github.com/kirillkom/patent-pod-intake/internal/core/domain"
)

// ApplicationRepository persists intake records and committed PODs.
type ApplicationRepository interface {
	Create(ctx context.Context, app *domain.Application) error
	GetByID(ctx context.Context, id string) (*domain.Application, error)
	List(ctx context.Context, filter domain.ApplicationFilter) ([]domain.Application, error)
	// UpdateIntake rewrites text, file references, dates and title and clears
	// any previous classification.
	UpdateIntake(ctx context.Context, app *domain.Application) error
	SaveClassification(ctx context.Context, id string, predictions []domain.ClassificationPrediction, primary, technologyArea, title string) error
	SetArchived(ctx context.Context, id string, archived bool) error
	ListPODs(ctx context.Context, applicationID string) ([]domain.PointOfDistinction, error)
	// ReplacePODs deletes existing PODs, inserts pods and updates fields in one transaction.
	ReplacePODs(ctx context.Context, applicationID string, pods []domain.PointOfDistinction, fields domain.CommitFields) error
}

// ObjectStorage stores raw uploaded files and returns an opaque locator.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) (string, error)
	Open(ctx context.Context, locator string) (io.ReadCloser, error)
}

// TextExtractor recovers plain text from one uploaded file.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte, declaredMediaType, filename string) (domain.ExtractedDocument, error)
}

// ClassificationService is the external language-model call. It returns the
// raw response text, which may be wrapped in code fences.
type ClassificationService interface {
	GenerateJSONFromPrompt(ctx context.Context, prompt string) (string, error)
}

// EventPublisher announces committed applications to downstream consumers.
type EventPublisher interface {
	PublishApplicationCommitted(ctx context.Context, event domain.ApplicationCommitted) error
}

type EventSubscriber interface {
	SubscribeApplicationCommitted(ctx context.Context, handler func(context.Context, domain.ApplicationCommitted) error) error
}

// PipelineMetrics records intake pipeline outcomes.
type PipelineMetrics interface {
	RecordUpload(status string)
	RecordClassification(status string)
	RecordCommit(status string)
	RecordExtraction(format, outcome string)
}
