package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-teams-api/internal/models"
)

// CourseRepository reads course and teamset configuration.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// FindByID returns a course by its ID.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	const query = `SELECT id, name FROM courses WHERE id = $1 LIMIT 1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find course: %w", err)
	}
	return &course, nil
}

// ListTeamsets returns the teamsets configured for a course, including
// per-teamset capacity limits (NULL max_team_size means unbounded).
func (r *CourseRepository) ListTeamsets(ctx context.Context, courseID string) ([]models.TeamsetConfig, error) {
	const query = `SELECT id, course_id, name, max_team_size FROM teamsets WHERE course_id = $1 ORDER BY id`
	var teamsets []models.TeamsetConfig
	if err := r.db.SelectContext(ctx, &teamsets, query, courseID); err != nil {
		return nil, fmt.Errorf("list teamsets: %w", err)
	}
	return teamsets, nil
}
