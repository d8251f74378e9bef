package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-teams-api/internal/models"
	"github.com/noah-isme/lms-teams-api/pkg/config"
	"github.com/noah-isme/lms-teams-api/pkg/jobs"
)

type eventWriter interface {
	Insert(ctx context.Context, event *models.TeamEvent) error
}

// EventService is the sink for team domain events. Events are persisted
// through a background worker queue so emitters never block on the store;
// with the queue disabled they are written inline instead.
type EventService struct {
	repo   eventWriter
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewEventService constructs the sink. Call Start before emitting and Stop on
// shutdown when the queue is enabled.
func NewEventService(repo eventWriter, cfg config.EventsConfig, logger *zap.Logger) *EventService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &EventService{repo: repo, logger: logger}
	if cfg.Enabled {
		s.queue = jobs.NewQueue("team-events", s.persist, jobs.QueueConfig{
			Workers:    cfg.Workers,
			BufferSize: cfg.BufferSize,
			MaxRetries: cfg.MaxRetries,
			RetryDelay: cfg.RetryDelay,
			Logger:     logger,
		})
	}
	return s
}

// Start launches the worker pool. No-op when the queue is disabled.
func (s *EventService) Start(ctx context.Context) {
	if s.queue != nil {
		s.queue.Start(ctx)
	}
}

// Stop drains the worker pool.
func (s *EventService) Stop() {
	if s.queue != nil {
		s.queue.Stop()
	}
}

// Emit records a domain event. Marshal failures and queue overflow are logged,
// never surfaced to the emitter.
func (s *EventService) Emit(name, courseID string, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("failed to marshal event payload", zap.String("event", name), zap.Error(err))
		return
	}
	event := &models.TeamEvent{
		ID:       uuid.NewString(),
		Name:     name,
		CourseID: courseID,
		Payload:  raw,
	}

	if s.queue == nil {
		if err := s.repo.Insert(context.Background(), event); err != nil {
			s.logger.Error("failed to persist event", zap.String("event", name), zap.Error(err))
		}
		return
	}

	job := jobs.Job{ID: event.ID, Type: name, Payload: event}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("event queue rejected job, writing inline", zap.String("event", name), zap.Error(err))
		if err := s.repo.Insert(context.Background(), event); err != nil {
			s.logger.Error("failed to persist event", zap.String("event", name), zap.Error(err))
		}
	}
}

func (s *EventService) persist(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(*models.TeamEvent)
	if !ok {
		return fmt.Errorf("unexpected payload type %T", job.Payload)
	}
	return s.repo.Insert(ctx, event)
}
