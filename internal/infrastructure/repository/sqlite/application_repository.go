// Package sqlite is an embedded ApplicationRepository for podctl and local
// development. Timestamps are stored as RFC3339 text.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/kirillkom/patent-pod-intake/internal/core/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS applications (
	id                               TEXT PRIMARY KEY,
	owner_id                         TEXT NOT NULL DEFAULT '',
	title                            TEXT NOT NULL,
	filing_date                      TEXT NOT NULL DEFAULT '',
	publication_deadline             TEXT NOT NULL DEFAULT '',
	is_provisional                   INTEGER NOT NULL DEFAULT 0,
	specification_text               TEXT NOT NULL DEFAULT '',
	file_references                  TEXT NOT NULL DEFAULT '[]',
	classification_predictions       TEXT NOT NULL DEFAULT '[]',
	predicted_primary_classification TEXT NOT NULL DEFAULT '',
	technology_area                  TEXT NOT NULL DEFAULT '',
	archived                         INTEGER NOT NULL DEFAULT 0,
	created_at                       TEXT NOT NULL,
	updated_at                       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS points_of_distinction (
	id                  TEXT PRIMARY KEY,
	application_id      TEXT NOT NULL REFERENCES applications(id) ON DELETE CASCADE,
	text                TEXT NOT NULL,
	rationale           TEXT NOT NULL DEFAULT '',
	is_primary          INTEGER NOT NULL DEFAULT 0,
	suggested_by_system INTEGER NOT NULL DEFAULT 0,
	user_approved       INTEGER NOT NULL DEFAULT 1,
	display_order       INTEGER NOT NULL,
	created_at          TEXT NOT NULL,
	UNIQUE (application_id, display_order)
);
`

type applicationRow struct {
	ID                             string `db:"id"`
	OwnerID                        string `db:"owner_id"`
	Title                          string `db:"title"`
	FilingDate                     string `db:"filing_date"`
	PublicationDeadline            string `db:"publication_deadline"`
	IsProvisional                  bool   `db:"is_provisional"`
	SpecificationText              string `db:"specification_text"`
	FileReferences                 string `db:"file_references"`
	ClassificationPredictions      string `db:"classification_predictions"`
	PredictedPrimaryClassification string `db:"predicted_primary_classification"`
	TechnologyArea                 string `db:"technology_area"`
	Archived                       bool   `db:"archived"`
	CreatedAt                      string `db:"created_at"`
	UpdatedAt                      string `db:"updated_at"`
}

type podRow struct {
	ID                string `db:"id"`
	ApplicationID     string `db:"application_id"`
	Text              string `db:"text"`
	Rationale         string `db:"rationale"`
	IsPrimary         bool   `db:"is_primary"`
	SuggestedBySystem bool   `db:"suggested_by_system"`
	UserApproved      bool   `db:"user_approved"`
	DisplayOrder      int    `db:"display_order"`
	CreatedAt         string `db:"created_at"`
}

type ApplicationRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

func Open(path string) (*ApplicationRepository, error) {
	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &ApplicationRepository{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (r *ApplicationRepository) Close() error {
	return r.db.Close()
}

func (r *ApplicationRepository) Create(ctx context.Context, app *domain.Application) error {
	row, err := toRow(app)
	if err != nil {
		return err
	}
	_, err = r.db.NamedExecContext(ctx, `
INSERT INTO applications (
	id, owner_id, title, filing_date, publication_deadline, is_provisional, specification_text,
	file_references, classification_predictions, predicted_primary_classification, technology_area,
	archived, created_at, updated_at
) VALUES (
	:id, :owner_id, :title, :filing_date, :publication_deadline, :is_provisional, :specification_text,
	:file_references, :classification_predictions, :predicted_primary_classification, :technology_area,
	:archived, :created_at, :updated_at
)`, row)
	if err != nil {
		return fmt.Errorf("insert application: %w", err)
	}
	return nil
}

func (r *ApplicationRepository) GetByID(ctx context.Context, id string) (*domain.Application, error) {
	var row applicationRow
	if err := r.db.GetContext(ctx, &row, `SELECT * FROM applications WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrApplicationNotFound, "get application", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("get application: %w", err)
	}
	return fromRow(row)
}

func (r *ApplicationRepository) List(ctx context.Context, filter domain.ApplicationFilter) ([]domain.Application, error) {
	const query = `SELECT * FROM applications WHERE archived = ? AND owner_id = ? ORDER BY updated_at DESC`

	var rows []applicationRow
	if err := r.db.SelectContext(ctx, &rows, query, filter.Archived, filter.OwnerID); err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	out := make([]domain.Application, 0, len(rows))
	for _, row := range rows {
		app, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, *app)
	}
	return out, nil
}

func (r *ApplicationRepository) UpdateIntake(ctx context.Context, app *domain.Application) error {
	row, err := toRow(app)
	if err != nil {
		return err
	}
	row.UpdatedAt = formatTime(r.now())
	res, err := r.db.NamedExecContext(ctx, `
UPDATE applications
SET title = :title, filing_date = :filing_date, publication_deadline = :publication_deadline,
	is_provisional = :is_provisional, specification_text = :specification_text, file_references = :file_references,
	classification_predictions = '[]', predicted_primary_classification = '', technology_area = '',
	updated_at = :updated_at
WHERE id = :id`, row)
	if err != nil {
		return fmt.Errorf("update application intake: %w", err)
	}
	return requireAffected(res, "update application intake", app.ID)
}

func (r *ApplicationRepository) SaveClassification(
	ctx context.Context,
	id string,
	predictions []domain.ClassificationPrediction,
	primary, technologyArea, title string,
) error {
	if predictions == nil {
		predictions = []domain.ClassificationPrediction{}
	}
	raw, err := json.Marshal(predictions)
	if err != nil {
		return fmt.Errorf("marshal predictions: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE applications
SET classification_predictions = ?, predicted_primary_classification = ?, technology_area = ?, title = ?, updated_at = ?
WHERE id = ?`, string(raw), primary, technologyArea, title, formatTime(r.now()), id)
	if err != nil {
		return fmt.Errorf("save classification: %w", err)
	}
	return requireAffected(res, "save classification", id)
}

func (r *ApplicationRepository) SetArchived(ctx context.Context, id string, archived bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE applications SET archived = ?, updated_at = ? WHERE id = ?`,
		archived, formatTime(r.now()), id)
	if err != nil {
		return fmt.Errorf("set archived: %w", err)
	}
	return requireAffected(res, "set archived", id)
}

func (r *ApplicationRepository) ListPODs(ctx context.Context, applicationID string) ([]domain.PointOfDistinction, error) {
	var rows []podRow
	if err := r.db.SelectContext(ctx, &rows, `
SELECT * FROM points_of_distinction WHERE application_id = ? ORDER BY display_order ASC`, applicationID); err != nil {
		return nil, fmt.Errorf("list pods: %w", err)
	}
	out := make([]domain.PointOfDistinction, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.PointOfDistinction{
			ID:                row.ID,
			ApplicationID:     row.ApplicationID,
			Text:              row.Text,
			Rationale:         row.Rationale,
			IsPrimary:         row.IsPrimary,
			SuggestedBySystem: row.SuggestedBySystem,
			UserApproved:      row.UserApproved,
			DisplayOrder:      row.DisplayOrder,
			CreatedAt:         parseTime(row.CreatedAt),
		})
	}
	return out, nil
}

func (r *ApplicationRepository) ReplacePODs(
	ctx context.Context,
	applicationID string,
	pods []domain.PointOfDistinction,
	fields domain.CommitFields,
) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin commit tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.ExecContext(ctx, `
UPDATE applications
SET title = ?, predicted_primary_classification = ?, technology_area = ?, updated_at = ?
WHERE id = ?`, fields.Title, fields.PredictedPrimaryClassification, fields.TechnologyArea, formatTime(r.now()), applicationID)
	if err != nil {
		return fmt.Errorf("update committed fields: %w", err)
	}
	if err := requireAffected(res, "update committed fields", applicationID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM points_of_distinction WHERE application_id = ?`, applicationID); err != nil {
		return fmt.Errorf("delete pods: %w", err)
	}
	for _, pod := range pods {
		row := podRow{
			ID:                pod.ID,
			ApplicationID:     applicationID,
			Text:              pod.Text,
			Rationale:         pod.Rationale,
			IsPrimary:         pod.IsPrimary,
			SuggestedBySystem: pod.SuggestedBySystem,
			UserApproved:      pod.UserApproved,
			DisplayOrder:      pod.DisplayOrder,
			CreatedAt:         formatTime(pod.CreatedAt),
		}
		if _, err := tx.NamedExecContext(ctx, `
INSERT INTO points_of_distinction (
	id, application_id, text, rationale, is_primary, suggested_by_system, user_approved, display_order, created_at
) VALUES (
	:id, :application_id, :text, :rationale, :is_primary, :suggested_by_system, :user_approved, :display_order, :created_at
)`, row); err != nil {
			return fmt.Errorf("insert pod %d: %w", pod.DisplayOrder, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit pods tx: %w", err)
	}
	return nil
}

func toRow(app *domain.Application) (applicationRow, error) {
	refs := app.FileReferences
	if refs == nil {
		refs = []domain.FileReference{}
	}
	refsJSON, err := json.Marshal(refs)
	if err != nil {
		return applicationRow{}, fmt.Errorf("marshal file references: %w", err)
	}
	predictions := app.ClassificationPredictions
	if predictions == nil {
		predictions = []domain.ClassificationPrediction{}
	}
	predictionsJSON, err := json.Marshal(predictions)
	if err != nil {
		return applicationRow{}, fmt.Errorf("marshal predictions: %w", err)
	}
	return applicationRow{
		ID:                             app.ID,
		OwnerID:                        app.OwnerID,
		Title:                          app.Title,
		FilingDate:                     formatOptionalTime(app.FilingDate),
		PublicationDeadline:            formatOptionalTime(app.PublicationDeadline),
		IsProvisional:                  app.IsProvisional,
		SpecificationText:              app.SpecificationText,
		FileReferences:                 string(refsJSON),
		ClassificationPredictions:      string(predictionsJSON),
		PredictedPrimaryClassification: app.PredictedPrimaryClassification,
		TechnologyArea:                 app.TechnologyArea,
		Archived:                       app.Archived,
		CreatedAt:                      formatTime(app.CreatedAt),
		UpdatedAt:                      formatTime(app.UpdatedAt),
	}, nil
}

func fromRow(row applicationRow) (*domain.Application, error) {
	app := &domain.Application{
		ID:                             row.ID,
		OwnerID:                        row.OwnerID,
		Title:                          row.Title,
		FilingDate:                     parseOptionalTime(row.FilingDate),
		PublicationDeadline:            parseOptionalTime(row.PublicationDeadline),
		IsProvisional:                  row.IsProvisional,
		SpecificationText:              row.SpecificationText,
		PredictedPrimaryClassification: row.PredictedPrimaryClassification,
		TechnologyArea:                 row.TechnologyArea,
		Archived:                       row.Archived,
		CreatedAt:                      parseTime(row.CreatedAt),
		UpdatedAt:                      parseTime(row.UpdatedAt),
	}
	if err := json.Unmarshal([]byte(row.FileReferences), &app.FileReferences); err != nil {
		return nil, fmt.Errorf("unmarshal file references: %w", err)
	}
	if err := json.Unmarshal([]byte(row.ClassificationPredictions), &app.ClassificationPredictions); err != nil {
		return nil, fmt.Errorf("unmarshal predictions: %w", err)
	}
	return app, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func parseOptionalTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil
	}
	return &t
}

func requireAffected(res sql.Result, op, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrApplicationNotFound, op, fmt.Errorf("id=%s", id))
	}
	return nil
}
