package models

// Course represents a course hosting teamsets.
type Course struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// TeamsetConfig describes one configured teamset within a course. A nil
// MaxTeamSize means the teamset has no capacity limit.
type TeamsetConfig struct {
	ID          string `db:"id" json:"id"`
	CourseID    string `db:"course_id" json:"course_id"`
	Name        string `db:"name" json:"name"`
	MaxTeamSize *int   `db:"max_team_size" json:"max_team_size,omitempty"`
}
