package httpadapter

import (
	"context"
	"net/http"

	"github.com/kirillkom/patent-pod-intake/internal/config"
	"github.com/kirillkom/patent-pod-intake/internal/core/domain"
	"github.com/kirillkom/patent-pod-intake/internal/core/ports"
)

type intakeFake struct {
	got ports.UploadRequest
	err error
}

func (f *intakeFake) Upload(_ context.Context, req ports.UploadRequest) (*ports.UploadResult, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &ports.UploadResult{
		Application: &domain.Application{ID: "app-1", Title: req.Title},
		Corpus:      domain.Corpus{FileCount: len(req.Files), TotalTextLength: 120},
	}, nil
}

type classifierFake struct {
	got ports.ClassifyRequest
	err error
}

func (f *classifierFake) Classify(_ context.Context, req ports.ClassifyRequest) (*domain.ClassificationResult, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &domain.ClassificationResult{
		PrimaryClassification: "F16D 65/12",
		PrimaryConfidence:     domain.PrimaryConfidence,
		TechnologyArea:        domain.TechnologyMechanical,
		CandidatePods:         []domain.CandidatePOD{{Text: "ceramic rotor", IsPrimary: true}},
	}, nil
}

type reviewFake struct {
	got ports.CommitRequest
	err error
}

func (f *reviewFake) Commit(_ context.Context, req ports.CommitRequest) (*domain.ApplicationView, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &domain.ApplicationView{
		Application: &domain.Application{ID: req.ApplicationID},
		State:       domain.StateCommitted,
	}, nil
}

type appsFake struct {
	filter     domain.ApplicationFilter
	archivedID string
	owner      string
	err        error
}

func (f *appsFake) Get(_ context.Context, ownerID, id string) (*domain.ApplicationView, error) {
	f.owner = ownerID
	if f.err != nil {
		return nil, f.err
	}
	return &domain.ApplicationView{Application: &domain.Application{ID: id}, State: domain.StateAwaitingReview}, nil
}

func (f *appsFake) List(_ context.Context, filter domain.ApplicationFilter) ([]domain.Application, error) {
	f.filter = filter
	if f.err != nil {
		return nil, f.err
	}
	return nil, nil
}

func (f *appsFake) Archive(_ context.Context, ownerID, id string) error {
	f.owner = ownerID
	f.archivedID = id
	return f.err
}

type testRouter struct {
	intake     *intakeFake
	classifier *classifierFake
	review     *reviewFake
	apps       *appsFake
	handler    http.Handler
}

func newTestRouter(cfg config.Config) *testRouter {
	tr := &testRouter{
		intake:     &intakeFake{},
		classifier: &classifierFake{},
		review:     &reviewFake{},
		apps:       &appsFake{},
	}
	tr.handler = NewRouter(cfg, tr.intake, tr.classifier, tr.review, tr.apps).Handler()
	return tr
}
