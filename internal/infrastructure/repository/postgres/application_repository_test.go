package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/patent-pod-intake/internal/core/domain"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newRepoWithMock(t *testing.T) (*ApplicationRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	repo := NewApplicationRepository(db)
	repo.now = func() time.Time { return fixedNow }
	return repo, mock, func() { _ = db.Close() }
}

var applicationColumnNames = []string{
	"id", "owner_id", "title", "filing_date", "publication_deadline", "is_provisional", "specification_text",
	"file_references", "classification_predictions", "predicted_primary_classification", "technology_area",
	"archived", "created_at", "updated_at",
}

func TestGetByIDReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, owner_id, title").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrApplicationNotFound) {
		t.Fatalf("expected ErrApplicationNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByIDDecodesJSONColumnsAndNullDates(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	rows := sqlmock.NewRows(applicationColumnNames).AddRow(
		"app-1", "user-1", "Rotor Brake", nil, nil, false, "spec text",
		[]byte(`[{"locator":"file://a_spec.pdf","filename":"spec.pdf","byte_length":10,"text_length":4}]`),
		[]byte(`[{"code":"F16D 65/12","class":"F16D","confidence":0.92,"is_primary":true}]`),
		"F16D 65/12", "Mechanical/Electrical", false, fixedNow, fixedNow,
	)
	mock.ExpectQuery("SELECT id, owner_id, title").WithArgs("app-1").WillReturnRows(rows)

	app, err := repo.GetByID(context.Background(), "app-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if app.FilingDate != nil || app.PublicationDeadline != nil {
		t.Fatalf("expected nil dates, got %v %v", app.FilingDate, app.PublicationDeadline)
	}
	if len(app.FileReferences) != 1 || app.FileReferences[0].Filename != "spec.pdf" {
		t.Fatalf("unexpected file references %+v", app.FileReferences)
	}
	if len(app.ClassificationPredictions) != 1 || !app.ClassificationPredictions[0].IsPrimary {
		t.Fatalf("unexpected predictions %+v", app.ClassificationPredictions)
	}
	if !app.Classified() {
		t.Fatalf("expected classified application")
	}
}

func TestListFiltersByOwner(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("FROM applications").
		WithArgs(false, "user-1").
		WillReturnRows(sqlmock.NewRows(applicationColumnNames))

	apps, err := repo.List(context.Background(), domain.ApplicationFilter{OwnerID: "user-1"})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(apps) != 0 {
		t.Fatalf("expected empty list, got %d", len(apps))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSetArchivedReturnsDomainNotFoundWhenNoRowsAffected(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE applications").
		WithArgs("missing", true, fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SetArchived(context.Background(), "missing", true)
	if !domain.IsKind(err, domain.ErrApplicationNotFound) {
		t.Fatalf("expected ErrApplicationNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveClassificationWritesPredictions(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE applications").
		WithArgs("app-1", sqlmock.AnyArg(), "G06N 3/08", "Software/ML", "Neural Pruning", fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SaveClassification(context.Background(), "app-1", []domain.ClassificationPrediction{
		{Code: "G06N 3/08", Class: "G06N", Confidence: 0.92, IsPrimary: true},
	}, "G06N 3/08", "Software/ML", "Neural Pruning")
	if err != nil {
		t.Fatalf("SaveClassification() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func commitPods() []domain.PointOfDistinction {
	pods := make([]domain.PointOfDistinction, 0, 3)
	for i := 1; i <= 3; i++ {
		pods = append(pods, domain.PointOfDistinction{
			ID:           "pod-" + string(rune('0'+i)),
			Text:         "mechanism",
			IsPrimary:    i == 1,
			UserApproved: true,
			DisplayOrder: i,
			CreatedAt:    fixedNow,
		})
	}
	return pods
}

func TestReplacePODsRunsInOneTransaction(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	fields := domain.CommitFields{Title: "Rotor", PredictedPrimaryClassification: "F16D 65/12", TechnologyArea: "Mechanical/Electrical"}
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE applications").
		WithArgs("app-1", "Rotor", "F16D 65/12", "Mechanical/Electrical", fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM points_of_distinction").
		WithArgs("app-1").
		WillReturnResult(sqlmock.NewResult(0, 5))
	for _, pod := range commitPods() {
		mock.ExpectExec("INSERT INTO points_of_distinction").
			WithArgs(pod.ID, "app-1", pod.Text, "", pod.IsPrimary, false, true, pod.DisplayOrder, fixedNow).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	if err := repo.ReplacePODs(context.Background(), "app-1", commitPods(), fields); err != nil {
		t.Fatalf("ReplacePODs() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestReplacePODsRollsBackOnInsertFailure(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE applications").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM points_of_distinction").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO points_of_distinction").WillReturnError(errors.New("constraint violation"))
	mock.ExpectRollback()

	err := repo.ReplacePODs(context.Background(), "app-1", commitPods(), domain.CommitFields{Title: "Rotor"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestReplacePODsMissingApplicationIsNotFound(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE applications").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.ReplacePODs(context.Background(), "missing", commitPods(), domain.CommitFields{})
	if !domain.IsKind(err, domain.ErrApplicationNotFound) {
		t.Fatalf("expected ErrApplicationNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListWithoutOwnerBindsEmptyOwner(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("AND owner_id = \\$2").
		WithArgs(true, "").
		WillReturnRows(sqlmock.NewRows(applicationColumnNames))

	if _, err := repo.List(context.Background(), domain.ApplicationFilter{Archived: true}); err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
