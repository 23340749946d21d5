package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/patent-pod-intake/internal/core/domain"
	"github.com/kirillkom/patent-pod-intake/internal/core/ports"
)

type IntakeUseCase struct {
	repo      ports.ApplicationRepository
	storage   ports.ObjectStorage
	extractor ports.TextExtractor
	metrics   ports.PipelineMetrics
	logger    *slog.Logger
	limits    domain.IntakeLimits
	now       func() time.Time
}

func NewIntakeUseCase(
	repo ports.ApplicationRepository,
	storage ports.ObjectStorage,
	extractor ports.TextExtractor,
	metrics ports.PipelineMetrics,
	logger *slog.Logger,
	limits domain.IntakeLimits,
) *IntakeUseCase {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &IntakeUseCase{
		repo:      repo,
		storage:   storage,
		extractor: extractor,
		metrics:   metrics,
		logger:    logger,
		limits:    limits.WithDefaults(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Upload extracts every file, rejects short corpora before any write, stores
// the raw files and creates or refreshes the application record.
func (uc *IntakeUseCase) Upload(ctx context.Context, req ports.UploadRequest) (*ports.UploadResult, error) {
	result, err := uc.upload(ctx, req)
	uc.metrics.RecordUpload(outcomeLabel(err))
	return result, err
}

func (uc *IntakeUseCase) upload(ctx context.Context, req ports.UploadRequest) (*ports.UploadResult, error) {
	files := attachedFiles(req.Files)
	if len(files) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload", errors.New("at least one file is required"))
	}

	var existing *domain.Application
	if strings.TrimSpace(req.ApplicationID) != "" {
		app, err := loadOwnedApplication(ctx, uc.repo, req.OwnerID, req.ApplicationID, "upload")
		if err != nil {
			return nil, err
		}
		if app.Archived {
			return nil, domain.WrapError(domain.ErrInvalidState, "upload", fmt.Errorf("application %s is archived", app.ID))
		}
		existing = app
	}

	docs, err := uc.extractAll(ctx, files)
	if err != nil {
		return nil, err
	}

	corpus, err := BuildCorpus(docs, uc.limits.MinCorpusChars)
	if err != nil {
		return nil, err
	}

	refs, err := uc.storeFiles(ctx, files, docs)
	if err != nil {
		return nil, err
	}

	app, err := uc.persist(ctx, req, existing, files, corpus, refs)
	if err != nil {
		return nil, err
	}

	return &ports.UploadResult{
		Application: app,
		Corpus:      corpus,
		Documents:   docs,
		TextPreview: truncateRunes(corpus.CombinedText, uc.limits.PreviewChars),
	}, nil
}

// attachedFiles drops field parts and empty file inputs (a form file field
// submitted with nothing selected).
func attachedFiles(parts []domain.UploadedPart) []domain.UploadedPart {
	files := make([]domain.UploadedPart, 0, len(parts))
	for _, part := range parts {
		if !part.IsFile {
			continue
		}
		if strings.TrimSpace(part.Filename) == "" && len(part.RawBytes) == 0 {
			continue
		}
		files = append(files, part)
	}
	return files
}

// extractAll runs extraction with bounded parallelism. Output order matches
// input order. Per-file failures degrade to empty text.
func (uc *IntakeUseCase) extractAll(ctx context.Context, files []domain.UploadedPart) ([]domain.ExtractedDocument, error) {
	docs := make([]domain.ExtractedDocument, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uc.limits.ExtractWorkers)
	for i := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			docs[i] = uc.extractOne(gctx, files[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("extract files: %w", err)
	}
	return docs, nil
}

func (uc *IntakeUseCase) extractOne(ctx context.Context, file domain.UploadedPart) domain.ExtractedDocument {
	format := formatLabel(file)
	doc, err := uc.extractor.Extract(ctx, file.RawBytes, file.DeclaredMediaType, file.Filename)
	if err != nil {
		outcome := "failed"
		if domain.IsKind(err, domain.ErrUnsupportedFormat) {
			outcome = "unsupported"
		}
		uc.logger.Warn("text extraction failed",
			"filename", file.Filename,
			"media_type", file.DeclaredMediaType,
			"bytes", len(file.RawBytes),
			"error", err,
		)
		uc.metrics.RecordExtraction(format, outcome)
		return domain.ExtractedDocument{
			SourceFilename: file.Filename,
			MediaType:      file.DeclaredMediaType,
			ByteLength:     len(file.RawBytes),
		}
	}

	doc.SourceFilename = file.Filename
	doc.ByteLength = len(file.RawBytes)
	doc.TextLength = utf8.RuneCountInString(doc.Text)
	if strings.TrimSpace(doc.Text) == "" {
		uc.metrics.RecordExtraction(format, "empty")
	} else {
		uc.metrics.RecordExtraction(format, "ok")
	}
	return doc
}

func formatLabel(file domain.UploadedPart) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(file.Filename)), ".")
	if ext == "" {
		return "unknown"
	}
	return ext
}

func (uc *IntakeUseCase) storeFiles(
	ctx context.Context,
	files []domain.UploadedPart,
	docs []domain.ExtractedDocument,
) ([]domain.FileReference, error) {
	refs := make([]domain.FileReference, 0, len(files))
	for i, file := range files {
		key := fmt.Sprintf("%s_%s", uuid.NewString(), sanitizeFilename(file.Filename))
		locator, err := uc.storage.Save(ctx, key, bytes.NewReader(file.RawBytes))
		if err != nil {
			return nil, fmt.Errorf("save to object storage: %w", err)
		}
		refs = append(refs, domain.FileReference{
			Locator:    locator,
			Filename:   file.Filename,
			MediaType:  docs[i].MediaType,
			ByteLength: len(file.RawBytes),
			TextLength: docs[i].TextLength,
		})
	}
	return refs, nil
}

func (uc *IntakeUseCase) persist(
	ctx context.Context,
	req ports.UploadRequest,
	existing *domain.Application,
	files []domain.UploadedPart,
	corpus domain.Corpus,
	refs []domain.FileReference,
) (*domain.Application, error) {
	filingDate := req.FilingDate
	if req.IsPreFiling {
		filingDate = nil
	}
	deadline := PublicationDeadline(filingDate, req.IsPreFiling)
	now := uc.now()

	if existing != nil {
		app := *existing
		if strings.TrimSpace(req.Title) != "" || app.Title == "" || app.Title == domain.DefaultTitle {
			app.Title = DeriveTitle(req.Title, files[0].Filename, corpus.CombinedText)
		}
		app.FilingDate = filingDate
		app.PublicationDeadline = deadline
		app.IsProvisional = req.IsProvisional
		app.SpecificationText = corpus.CombinedText
		app.FileReferences = append(append([]domain.FileReference{}, existing.FileReferences...), refs...)
		app.ClassificationPredictions = nil
		app.PredictedPrimaryClassification = ""
		app.TechnologyArea = ""
		app.UpdatedAt = now
		if err := uc.repo.UpdateIntake(ctx, &app); err != nil {
			return nil, fmt.Errorf("update application intake: %w", err)
		}
		return &app, nil
	}

	app := &domain.Application{
		ID:                        uuid.NewString(),
		OwnerID:                   req.OwnerID,
		Title:                     DeriveTitle(req.Title, files[0].Filename, corpus.CombinedText),
		FilingDate:                filingDate,
		PublicationDeadline:       deadline,
		IsProvisional:             req.IsProvisional,
		SpecificationText:         corpus.CombinedText,
		FileReferences:            refs,
		ClassificationPredictions: []domain.ClassificationPrediction{},
		CreatedAt:                 now,
		UpdatedAt:                 now,
	}
	if err := uc.repo.Create(ctx, app); err != nil {
		return nil, fmt.Errorf("create application: %w", err)
	}
	return app, nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." || base == "/" {
		return "document.bin"
	}
	return base
}
