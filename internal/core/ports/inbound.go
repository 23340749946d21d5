package ports

import (
	"context"
	"time"

	"github.com/kirillkom/patent-pod-intake/internal/core/domain"
)

// UploadRequest carries the demultiplexed parts of one intake request.
// OwnerID is the caller identity resolved by the transport layer.
type UploadRequest struct {
	OwnerID       string
	ApplicationID string
	Title         string
	FilingDate    *time.Time
	IsPreFiling   bool
	IsProvisional bool
	Files         []domain.UploadedPart
}

type UploadResult struct {
	Application *domain.Application        `json:"application"`
	Corpus      domain.Corpus              `json:"corpus"`
	Documents   []domain.ExtractedDocument `json:"documents"`
	TextPreview string                     `json:"text_preview"`
}

type ClassifyRequest struct {
	OwnerID       string
	ApplicationID string
	// TextOverride replaces the stored specification text for this call only.
	TextOverride string
}

type CommitPOD struct {
	Text              string `json:"text"`
	Rationale         string `json:"rationale"`
	IsPrimary         bool   `json:"isPrimary"`
	SuggestedBySystem bool   `json:"suggestedBySystem"`
}

type CommitRequest struct {
	OwnerID               string
	ApplicationID         string
	Pods                  []CommitPOD
	Title                 string
	PrimaryClassification string
	TechnologyArea        string
}

// IntakeService is the inbound contract for document upload and record creation.
type IntakeService interface {
	Upload(ctx context.Context, req UploadRequest) (*UploadResult, error)
}

// ClassificationOrchestrator turns stored specification text into a classification.
type ClassificationOrchestrator interface {
	Classify(ctx context.Context, req ClassifyRequest) (*domain.ClassificationResult, error)
}

// ReviewService commits the user-approved POD set.
type ReviewService interface {
	Commit(ctx context.Context, req CommitRequest) (*domain.ApplicationView, error)
}

// ApplicationReader is the inbound read model plus the archive transition.
type ApplicationReader interface {
	Get(ctx context.Context, ownerID, id string) (*domain.ApplicationView, error)
	List(ctx context.Context, filter domain.ApplicationFilter) ([]domain.Application, error)
	Archive(ctx context.Context, ownerID, id string) error
}
