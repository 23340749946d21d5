package domain

type IntakeState string

const (
	StateUploading      IntakeState = "uploading"
	StateExtracting     IntakeState = "extracting"
	StateClassifying    IntakeState = "classifying"
	StateAwaitingReview IntakeState = "awaiting_review"
	StateCommitted      IntakeState = "committed"
	StateRejected       IntakeState = "rejected"
)

// DeriveState computes the intake state from persisted data only.
// StateExtracting and StateClassifying live inside a single request and are
// never returned: a record without a stored classification reads as
// uploading, whether classification failed or new text replaced it after a
// commit.
func DeriveState(app *Application, podCount int) IntakeState {
	switch {
	case app == nil:
		return StateUploading
	case app.Archived:
		return StateRejected
	case !app.Classified():
		return StateUploading
	case podCount > 0:
		return StateCommitted
	default:
		return StateAwaitingReview
	}
}

// Terminal reports whether no further transition is allowed.
func (s IntakeState) Terminal() bool {
	return s == StateRejected
}
