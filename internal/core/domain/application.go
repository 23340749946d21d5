package domain

import "time"

const (
	DefaultTitle = "Untitled Patent Application"

	// MinCommittedPods is the smallest POD set a commit accepts.
	MinCommittedPods = 3
)

type FileReference struct {
	Locator    string `json:"locator"`
	Filename   string `json:"filename"`
	MediaType  string `json:"media_type,omitempty"`
	ByteLength int    `json:"byte_length"`
	TextLength int    `json:"text_length"`
}

// Application is the durable intake record. FilingDate == nil means the
// specification has not been filed yet, in which case PublicationDeadline is
// nil as well.
type Application struct {
	ID                             string                     `json:"id"`
	OwnerID                        string                     `json:"owner_id,omitempty"`
	Title                          string                     `json:"title"`
	FilingDate                     *time.Time                 `json:"filing_date"`
	PublicationDeadline            *time.Time                 `json:"publication_deadline"`
	IsProvisional                  bool                       `json:"is_provisional"`
	SpecificationText              string                     `json:"-"`
	FileReferences                 []FileReference            `json:"file_references"`
	ClassificationPredictions      []ClassificationPrediction `json:"classification_predictions"`
	PredictedPrimaryClassification string                     `json:"predicted_primary_classification,omitempty"`
	TechnologyArea                 string                     `json:"technology_area,omitempty"`
	Archived                       bool                       `json:"archived"`
	CreatedAt                      time.Time                  `json:"created_at"`
	UpdatedAt                      time.Time                  `json:"updated_at"`
}

// Classified reports whether a classification result has been attached.
func (a *Application) Classified() bool {
	return a.PredictedPrimaryClassification != ""
}

// PointOfDistinction is a user-approved POD row owned by an Application.
type PointOfDistinction struct {
	ID                string    `json:"id"`
	ApplicationID     string    `json:"application_id"`
	Text              string    `json:"text"`
	Rationale         string    `json:"rationale,omitempty"`
	IsPrimary         bool      `json:"is_primary"`
	SuggestedBySystem bool      `json:"suggested_by_system"`
	UserApproved      bool      `json:"user_approved"`
	DisplayOrder      int       `json:"display_order"`
	CreatedAt         time.Time `json:"created_at"`
}

type ApplicationFilter struct {
	Archived bool
	OwnerID  string
}

// CommitFields are the denormalized classification fields rewritten on commit.
type CommitFields struct {
	Title                          string
	PredictedPrimaryClassification string
	TechnologyArea                 string
}

// ApplicationView is an application with its committed PODs and derived state.
type ApplicationView struct {
	Application *Application         `json:"application"`
	Pods        []PointOfDistinction `json:"pods"`
	State       IntakeState          `json:"state"`
}
