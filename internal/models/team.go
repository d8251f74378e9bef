package models

import "time"

// Team is a named group of learners within one teamset of a course.
type Team struct {
	ID          string    `db:"id" json:"id"`
	CourseID    string    `db:"course_id" json:"course_id"`
	TeamsetID   string    `db:"teamset_id" json:"teamset_id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// TeamDetail enriches Team with its current membership count.
type TeamDetail struct {
	Team
	MemberCount int `db:"member_count" json:"member_count"`
}

// TeamMembership records that a user belongs to a team.
type TeamMembership struct {
	ID      string    `db:"id" json:"id"`
	TeamID  string    `db:"team_id" json:"team_id"`
	UserID  string    `db:"user_id" json:"user_id"`
	AddedAt time.Time `db:"added_at" json:"added_at"`
}

// MembershipOutcome is the result of attempting to add a member.
type MembershipOutcome int

// Possible outcomes of a membership insert.
const (
	MembershipAdded MembershipOutcome = iota
	MembershipAlreadyMember
	MembershipNotEnrolled
)

func (o MembershipOutcome) String() string {
	switch o {
	case MembershipAdded:
		return "added"
	case MembershipAlreadyMember:
		return "already_member"
	case MembershipNotEnrolled:
		return "not_enrolled"
	default:
		return "unknown"
	}
}

// TeamMember is one roster entry with the joined user record.
type TeamMember struct {
	UserID   string    `db:"user_id" json:"user_id"`
	Username string    `db:"username" json:"username"`
	Email    string    `db:"email" json:"email"`
	FullName string    `db:"full_name" json:"full_name"`
	AddedAt  time.Time `db:"added_at" json:"added_at"`
}

// TeamFilter captures filtering criteria for listing teams.
type TeamFilter struct {
	TeamsetID string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
