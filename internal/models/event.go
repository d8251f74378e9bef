package models

import "time"

// Event names emitted by the teams domain.
const (
	EventLearnerAdded = "edx.team.learner_added"
)

// Add-method attributions carried in learner_added payloads.
const (
	AddMethodAnotherUser = "added_by_another_user"
)

// TeamEvent is a persisted domain event for audit and analytics.
type TeamEvent struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CourseID  string    `db:"course_id" json:"course_id"`
	Payload   []byte    `db:"payload" json:"payload"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// LearnerAddedPayload is the payload of a learner_added event.
type LearnerAddedPayload struct {
	TeamID    string `json:"team_id"`
	UserID    string `json:"user_id"`
	AddMethod string `json:"add_method"`
}
