package domain

import "time"

// ApplicationCommitted is published after a POD set is committed.
type ApplicationCommitted struct {
	ApplicationID         string    `json:"application_id"`
	OwnerID               string    `json:"owner_id,omitempty"`
	Title                 string    `json:"title"`
	PrimaryClassification string    `json:"primary_classification"`
	PodCount              int       `json:"pod_count"`
	CommittedAt           time.Time `json:"committed_at"`
}
