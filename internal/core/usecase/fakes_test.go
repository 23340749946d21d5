package usecase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/kirillkom/patent-pod-intake/internal/core/domain"
)

type memRepoFake struct {
	mu          sync.Mutex
	apps        map[string]*domain.Application
	pods        map[string][]domain.PointOfDistinction
	writes      int
	replaceErr  error
	savedFields domain.CommitFields
}

func newMemRepoFake() *memRepoFake {
	return &memRepoFake{
		apps: map[string]*domain.Application{},
		pods: map[string][]domain.PointOfDistinction{},
	}
}

func (f *memRepoFake) put(app *domain.Application) {
	f.mu.Lock()
	defer f.mu.Unlock()
	copyApp := *app
	f.apps[app.ID] = &copyApp
}

func (f *memRepoFake) Create(_ context.Context, app *domain.Application) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	copyApp := *app
	f.apps[app.ID] = &copyApp
	return nil
}

func (f *memRepoFake) GetByID(_ context.Context, id string) (*domain.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	app, ok := f.apps[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrApplicationNotFound, "get application", fmt.Errorf("id=%s", id))
	}
	copyApp := *app
	return &copyApp, nil
}

func (f *memRepoFake) List(_ context.Context, filter domain.ApplicationFilter) ([]domain.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Application, 0, len(f.apps))
	for _, app := range f.apps {
		if app.Archived != filter.Archived {
			continue
		}
		if app.OwnerID != filter.OwnerID {
			continue
		}
		out = append(out, *app)
	}
	return out, nil
}

func (f *memRepoFake) UpdateIntake(_ context.Context, app *domain.Application) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.apps[app.ID]; !ok {
		return domain.ErrApplicationNotFound
	}
	f.writes++
	copyApp := *app
	f.apps[app.ID] = &copyApp
	return nil
}

func (f *memRepoFake) SaveClassification(
	_ context.Context,
	id string,
	predictions []domain.ClassificationPrediction,
	primary, technologyArea, title string,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	app, ok := f.apps[id]
	if !ok {
		return domain.ErrApplicationNotFound
	}
	f.writes++
	app.ClassificationPredictions = predictions
	app.PredictedPrimaryClassification = primary
	app.TechnologyArea = technologyArea
	app.Title = title
	return nil
}

func (f *memRepoFake) SetArchived(_ context.Context, id string, archived bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	app, ok := f.apps[id]
	if !ok {
		return domain.ErrApplicationNotFound
	}
	f.writes++
	app.Archived = archived
	return nil
}

func (f *memRepoFake) ListPODs(_ context.Context, applicationID string) ([]domain.PointOfDistinction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.PointOfDistinction(nil), f.pods[applicationID]...), nil
}

func (f *memRepoFake) ReplacePODs(
	_ context.Context,
	applicationID string,
	pods []domain.PointOfDistinction,
	fields domain.CommitFields,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.replaceErr != nil {
		return f.replaceErr
	}
	f.writes++
	f.pods[applicationID] = append([]domain.PointOfDistinction(nil), pods...)
	f.savedFields = fields
	return nil
}

type memStorageFake struct {
	mu    sync.Mutex
	saved map[string][]byte
}

func (f *memStorageFake) Save(_ context.Context, key string, data io.Reader) (string, error) {
	raw, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saved == nil {
		f.saved = map[string][]byte{}
	}
	f.saved[key] = raw
	return "mem://" + key, nil
}

func (f *memStorageFake) Open(_ context.Context, locator string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.saved[strings.TrimPrefix(locator, "mem://")]
	if !ok {
		return nil, domain.ErrApplicationNotFound
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

// extractorFake returns the raw bytes as text for .txt files, empty text for
// .pdf files and an unsupported-format error for everything else.
type extractorFake struct{}

func (extractorFake) Extract(_ context.Context, data []byte, mediaType, filename string) (domain.ExtractedDocument, error) {
	switch {
	case strings.HasSuffix(filename, ".txt"):
		return domain.ExtractedDocument{MediaType: "text/plain", Text: string(data)}, nil
	case strings.HasSuffix(filename, ".pdf"):
		return domain.ExtractedDocument{MediaType: "application/pdf", Text: ""}, nil
	default:
		return domain.ExtractedDocument{}, domain.WrapError(domain.ErrUnsupportedFormat, "extract", fmt.Errorf("%s", mediaType))
	}
}

type classifierFake struct {
	response string
	err      error
	calls    int
	prompt   string
	block    bool
}

func (f *classifierFake) GenerateJSONFromPrompt(ctx context.Context, prompt string) (string, error) {
	f.calls++
	f.prompt = prompt
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.response, f.err
}

type publisherFake struct {
	events []domain.ApplicationCommitted
	err    error
}

func (f *publisherFake) PublishApplicationCommitted(_ context.Context, event domain.ApplicationCommitted) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

type metricsFake struct {
	mu          sync.Mutex
	uploads     []string
	classifies  []string
	commits     []string
	extractions []string
}

func (f *metricsFake) RecordUpload(status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, status)
}

func (f *metricsFake) RecordClassification(status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.classifies = append(f.classifies, status)
}

func (f *metricsFake) RecordCommit(status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commits = append(f.commits, status)
}

func (f *metricsFake) RecordExtraction(format, outcome string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.extractions = append(f.extractions, format+":"+outcome)
}

func longText(n int) string {
	const sentence = "A rotor assembly with offset pivots produces a non-linear steering ratio. "
	var b strings.Builder
	for b.Len() < n {
		b.WriteString(sentence)
	}
	return b.String()[:n]
}
