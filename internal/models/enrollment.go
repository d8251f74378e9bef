package models

import "time"

// Enrollment captures a user's registration in a course.
type Enrollment struct {
	ID       string    `db:"id" json:"id"`
	UserID   string    `db:"user_id" json:"user_id"`
	CourseID string    `db:"course_id" json:"course_id"`
	Mode     string    `db:"mode" json:"mode"`
	Active   bool      `db:"active" json:"active"`
	JoinedAt time.Time `db:"joined_at" json:"joined_at"`
}
