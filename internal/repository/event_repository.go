package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-teams-api/internal/models"
)

// EventRepository persists team domain events.
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository constructs the repository.
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Insert stores one event record.
func (r *EventRepository) Insert(ctx context.Context, event *models.TeamEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO team_events (id, name, course_id, payload, created_at)
        VALUES (:id, :name, :course_id, :payload, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("insert team event: %w", err)
	}
	return nil
}

// ListByCourse returns events of a course, most recent first.
func (r *EventRepository) ListByCourse(ctx context.Context, courseID string, limit int) ([]models.TeamEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	const query = `SELECT id, name, course_id, payload, created_at FROM team_events WHERE course_id = $1 ORDER BY created_at DESC LIMIT $2`
	var events []models.TeamEvent
	if err := r.db.SelectContext(ctx, &events, query, courseID, limit); err != nil {
		return nil, fmt.Errorf("list team events: %w", err)
	}
	return events, nil
}
