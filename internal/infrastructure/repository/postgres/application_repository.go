package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/patent-pod-intake/internal/core/domain"
)

type ApplicationRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewApplicationRepository(db *sql.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *ApplicationRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across concurrent api startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101801)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS applications (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL DEFAULT '',
	title TEXT NOT NULL,
	filing_date TIMESTAMPTZ,
	publication_deadline TIMESTAMPTZ,
	is_provisional BOOLEAN NOT NULL DEFAULT FALSE,
	specification_text TEXT NOT NULL DEFAULT '',
	file_references JSONB NOT NULL DEFAULT '[]'::jsonb,
	classification_predictions JSONB NOT NULL DEFAULT '[]'::jsonb,
	predicted_primary_classification TEXT NOT NULL DEFAULT '',
	technology_area TEXT NOT NULL DEFAULT '',
	archived BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_applications_owner_archived ON applications(owner_id, archived, updated_at DESC);

CREATE TABLE IF NOT EXISTS points_of_distinction (
	id TEXT PRIMARY KEY,
	application_id TEXT NOT NULL REFERENCES applications(id) ON DELETE CASCADE,
	text TEXT NOT NULL,
	rationale TEXT NOT NULL DEFAULT '',
	is_primary BOOLEAN NOT NULL DEFAULT FALSE,
	suggested_by_system BOOLEAN NOT NULL DEFAULT FALSE,
	user_approved BOOLEAN NOT NULL DEFAULT TRUE,
	display_order INTEGER NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	UNIQUE (application_id, display_order)
);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

const applicationColumns = `id, owner_id, title, filing_date, publication_deadline, is_provisional, specification_text,
	file_references, classification_predictions, predicted_primary_classification, technology_area, archived, created_at, updated_at`

func (r *ApplicationRepository) Create(ctx context.Context, app *domain.Application) error {
	refsJSON, predictionsJSON, err := marshalApplicationJSON(app)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO applications (`+applicationColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
`,
		app.ID, app.OwnerID, app.Title, app.FilingDate, app.PublicationDeadline, app.IsProvisional, app.SpecificationText,
		refsJSON, predictionsJSON, app.PredictedPrimaryClassification, app.TechnologyArea, app.Archived, app.CreatedAt, app.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert application: %w", err)
	}
	return nil
}

func (r *ApplicationRepository) GetByID(ctx context.Context, id string) (*domain.Application, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+applicationColumns+`
FROM applications
WHERE id = $1
`, id)

	app, err := scanApplication(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrApplicationNotFound, "get application", fmt.Errorf("id=%s", id))
		}
		return nil, err
	}
	return app, nil
}

func (r *ApplicationRepository) List(ctx context.Context, filter domain.ApplicationFilter) ([]domain.Application, error) {
	query := `
SELECT ` + applicationColumns + `
FROM applications
WHERE archived = $1
  AND owner_id = $2
ORDER BY updated_at DESC
`
	rows, err := r.db.QueryContext(ctx, query, filter.Archived, filter.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Application, 0)
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applications: %w", err)
	}
	return out, nil
}

func (r *ApplicationRepository) UpdateIntake(ctx context.Context, app *domain.Application) error {
	refsJSON, _, err := marshalApplicationJSON(app)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE applications
SET title = $2, filing_date = $3, publication_deadline = $4, is_provisional = $5, specification_text = $6,
	file_references = $7, classification_predictions = '[]'::jsonb, predicted_primary_classification = '',
	technology_area = '', updated_at = $8
WHERE id = $1
`, app.ID, app.Title, app.FilingDate, app.PublicationDeadline, app.IsProvisional, app.SpecificationText, refsJSON, r.now())
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
	predictionsJSON, err := json.Marshal(nonNilPredictions(predictions))
	if err != nil {
		return fmt.Errorf("marshal predictions: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE applications
SET classification_predictions = $2, predicted_primary_classification = $3, technology_area = $4, title = $5, updated_at = $6
WHERE id = $1
`, id, predictionsJSON, primary, technologyArea, title, r.now())
	if err != nil {
		return fmt.Errorf("save classification: %w", err)
	}
	return requireAffected(res, "save classification", id)
}

func (r *ApplicationRepository) SetArchived(ctx context.Context, id string, archived bool) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE applications
SET archived = $2, updated_at = $3
WHERE id = $1
`, id, archived, r.now())
	if err != nil {
		return fmt.Errorf("set archived: %w", err)
	}
	return requireAffected(res, "set archived", id)
}

func (r *ApplicationRepository) ListPODs(ctx context.Context, applicationID string) ([]domain.PointOfDistinction, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, application_id, text, rationale, is_primary, suggested_by_system, user_approved, display_order, created_at
FROM points_of_distinction
WHERE application_id = $1
ORDER BY display_order ASC
`, applicationID)
	if err != nil {
		return nil, fmt.Errorf("list pods: %w", err)
	}
	defer rows.Close()

	out := make([]domain.PointOfDistinction, 0)
	for rows.Next() {
		var pod domain.PointOfDistinction
		if err := rows.Scan(
			&pod.ID, &pod.ApplicationID, &pod.Text, &pod.Rationale, &pod.IsPrimary,
			&pod.SuggestedBySystem, &pod.UserApproved, &pod.DisplayOrder, &pod.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan pod: %w", err)
		}
		out = append(out, pod)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pods: %w", err)
	}
	return out, nil
}

// ReplacePODs swaps the committed POD set and the denormalized fields in one
// transaction. Either everything lands or nothing does.
func (r *ApplicationRepository) ReplacePODs(
	ctx context.Context,
	applicationID string,
	pods []domain.PointOfDistinction,
	fields domain.CommitFields,
) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin commit tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.ExecContext(ctx, `
UPDATE applications
SET title = $2, predicted_primary_classification = $3, technology_area = $4, updated_at = $5
WHERE id = $1
`, applicationID, fields.Title, fields.PredictedPrimaryClassification, fields.TechnologyArea, r.now())
	if err != nil {
		return fmt.Errorf("update committed fields: %w", err)
	}
	if err := requireAffected(res, "update committed fields", applicationID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM points_of_distinction WHERE application_id = $1`, applicationID); err != nil {
		return fmt.Errorf("delete pods: %w", err)
	}

	for _, pod := range pods {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO points_of_distinction (
	id, application_id, text, rationale, is_primary, suggested_by_system, user_approved, display_order, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`, pod.ID, applicationID, pod.Text, pod.Rationale, pod.IsPrimary, pod.SuggestedBySystem, pod.UserApproved, pod.DisplayOrder, pod.CreatedAt); err != nil {
			return fmt.Errorf("insert pod %d: %w", pod.DisplayOrder, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit pods tx: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApplication(row rowScanner) (*domain.Application, error) {
	var app domain.Application
	var filingDate, deadline sql.NullTime
	var refsRaw, predictionsRaw []byte

	err := row.Scan(
		&app.ID, &app.OwnerID, &app.Title, &filingDate, &deadline, &app.IsProvisional, &app.SpecificationText,
		&refsRaw, &predictionsRaw, &app.PredictedPrimaryClassification, &app.TechnologyArea, &app.Archived,
		&app.CreatedAt, &app.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan application: %w", err)
	}
	if filingDate.Valid {
		t := filingDate.Time.UTC()
		app.FilingDate = &t
	}
	if deadline.Valid {
		t := deadline.Time.UTC()
		app.PublicationDeadline = &t
	}
	if err := unmarshalJSONColumn(refsRaw, &app.FileReferences); err != nil {
		return nil, fmt.Errorf("unmarshal file references: %w", err)
	}
	if err := unmarshalJSONColumn(predictionsRaw, &app.ClassificationPredictions); err != nil {
		return nil, fmt.Errorf("unmarshal predictions: %w", err)
	}
	return &app, nil
}

func marshalApplicationJSON(app *domain.Application) ([]byte, []byte, error) {
	refs := app.FileReferences
	if refs == nil {
		refs = []domain.FileReference{}
	}
	refsJSON, err := json.Marshal(refs)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal file references: %w", err)
	}
	predictionsJSON, err := json.Marshal(nonNilPredictions(app.ClassificationPredictions))
	if err != nil {
		return nil, nil, fmt.Errorf("marshal predictions: %w", err)
	}
	return refsJSON, predictionsJSON, nil
}

func nonNilPredictions(in []domain.ClassificationPrediction) []domain.ClassificationPrediction {
	if in == nil {
		return []domain.ClassificationPrediction{}
	}
	return in
}

func unmarshalJSONColumn(raw []byte, out any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
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
