package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-teams-api/internal/models"
	appErrors "github.com/noah-isme/lms-teams-api/pkg/errors"
	"github.com/noah-isme/lms-teams-api/pkg/export"
)

type teamRepository interface {
	FindByID(ctx context.Context, id string) (*models.Team, error)
	FindByNameAndTeamset(ctx context.Context, name, teamsetID string) (*models.Team, error)
	Create(ctx context.Context, team *models.Team) error
	List(ctx context.Context, courseID string, filter models.TeamFilter) ([]models.TeamDetail, int, error)
	MemberCount(ctx context.Context, teamID string) (int, error)
	Members(ctx context.Context, teamID string) ([]models.TeamMember, error)
	TeamForUser(ctx context.Context, userID, courseID, teamsetID string) (*models.Team, error)
}

type lookupCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

type rosterExporter interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// TeamServiceConfig carries lookup-shim tuning.
type TeamServiceConfig struct {
	DashboardBaseURL string
	LookupCacheTTL   time.Duration
	AnonIDNamespace  string
}

// TeamService exposes team data to dashboards and plugin content modules: team
// listing, the team-for-user lookup, detail URLs, anonymized member IDs and
// roster export.
type TeamService struct {
	teams     teamRepository
	users     userDirectory
	courses   courseConfigStore
	cache     lookupCache
	exporter  rosterExporter
	cfg       TeamServiceConfig
	anonNS    uuid.UUID
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTeamService constructs TeamService.
func NewTeamService(teams teamRepository, users userDirectory, courses courseConfigStore, cache lookupCache, exporter rosterExporter, cfg TeamServiceConfig, validate *validator.Validate, logger *zap.Logger) *TeamService {
	if cfg.LookupCacheTTL <= 0 {
		cfg.LookupCacheTTL = 5 * time.Minute
	}
	if cfg.AnonIDNamespace == "" {
		cfg.AnonIDNamespace = "lms-teams"
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TeamService{
		teams:     teams,
		users:     users,
		courses:   courses,
		cache:     cache,
		exporter:  exporter,
		cfg:       cfg,
		anonNS:    uuid.NewSHA1(uuid.NameSpaceDNS, []byte(cfg.AnonIDNamespace)),
		validator: validate,
		logger:    logger,
	}
}

// CreateTeamRequest describes the payload for manual team creation.
type CreateTeamRequest struct {
	TeamsetID   string `json:"teamset_id" validate:"required"`
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description" validate:"max=1000"`
}

func lookupCacheKey(courseID, teamsetID, userID string) string {
	return fmt.Sprintf("teams:lookup:%s:%s:%s", courseID, teamsetID, userID)
}

func lookupCachePattern(courseID string) string {
	return fmt.Sprintf("teams:lookup:%s:*", courseID)
}

// List returns the teams of a course with membership counts.
func (s *TeamService) List(ctx context.Context, courseID string, filter models.TeamFilter) ([]models.TeamDetail, *models.Pagination, error) {
	if _, err := s.courses.FindByID(ctx, courseID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	teams, total, err := s.teams.List(ctx, courseID, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teams")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return teams, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one team with its membership count.
func (s *TeamService) Get(ctx context.Context, id string) (*models.TeamDetail, error) {
	team, err := s.teams.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "team not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load team")
	}
	count, err := s.teams.MemberCount(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count team members")
	}
	return &models.TeamDetail{Team: *team, MemberCount: count}, nil
}

// Create adds a team to a configured teamset. Team names are unique within
// their teamset.
func (s *TeamService) Create(ctx context.Context, courseID string, req CreateTeamRequest) (*models.Team, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	if _, err := s.courses.FindByID(ctx, courseID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	teamsets, err := s.courses.ListTeamsets(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teamsets")
	}
	known := false
	for _, ts := range teamsets {
		if ts.ID == req.TeamsetID {
			known = true
			break
		}
	}
	if !known {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("Teamset %s does not exist.", req.TeamsetID))
	}

	if _, err := s.teams.FindByNameAndTeamset(ctx, req.Name, req.TeamsetID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("Team %s already exists in teamset %s.", req.Name, req.TeamsetID))
	} else if err != sql.ErrNoRows {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check team name")
	}

	team := &models.Team{
		CourseID:    courseID,
		TeamsetID:   req.TeamsetID,
		Name:        req.Name,
		Description: req.Description,
	}
	if err := s.teams.Create(ctx, team); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create team")
	}
	return team, nil
}

// TeamForUser resolves the team an identifier's user belongs to within a
// (course, teamset). Positive lookups are cached; imports invalidate the
// course's lookup keys.
func (s *TeamService) TeamForUser(ctx context.Context, courseID, teamsetID, identifier string) (*models.Team, error) {
	user, err := s.users.FindByUsername(ctx, identifier)
	if err == sql.ErrNoRows {
		user, err = s.users.FindByEmail(ctx, identifier)
	}
	if err == sql.ErrNoRows {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("Username or email %s does not exist.", identifier))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve user")
	}

	key := lookupCacheKey(courseID, teamsetID, user.ID)
	if s.cache != nil {
		var cached models.Team
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		} else if err != appErrors.ErrCacheMiss {
			s.logger.Warn("team lookup cache read failed", zap.String("key", key), zap.Error(err))
		}
	}

	team, err := s.teams.TeamForUser(ctx, user.ID, courseID, teamsetID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user has no team in this teamset")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up team")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, team, s.cfg.LookupCacheTTL); err != nil {
			s.logger.Warn("team lookup cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return team, nil
}

// DetailURL returns the dashboard URL of a team's detail view.
func (s *TeamService) DetailURL(team *models.Team) string {
	return fmt.Sprintf("%s/%s#teams/%s/%s", s.cfg.DashboardBaseURL, team.CourseID, team.TeamsetID, team.ID)
}

// AnonymousMemberIDs returns opaque per-member identifiers for a team,
// derived deterministically from user IDs under the configured namespace so
// plugin content modules never see real account IDs.
func (s *TeamService) AnonymousMemberIDs(ctx context.Context, teamID string) ([]string, error) {
	if _, err := s.teams.FindByID(ctx, teamID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "team not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load team")
	}
	members, err := s.teams.Members(ctx, teamID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load team members")
	}
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, uuid.NewSHA1(s.anonNS, []byte(m.UserID)).String())
	}
	return ids, nil
}

// RosterPDF renders the team roster as a tabular PDF document.
func (s *TeamService) RosterPDF(ctx context.Context, teamID string) ([]byte, string, error) {
	team, err := s.teams.FindByID(ctx, teamID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "team not found")
		}
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load team")
	}
	members, err := s.teams.Members(ctx, teamID)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load team members")
	}

	data := export.Dataset{Headers: []string{"Username", "Full Name", "Email", "Joined"}}
	for _, m := range members {
		data.Rows = append(data.Rows, map[string]string{
			"Username":  m.Username,
			"Full Name": m.FullName,
			"Email":     m.Email,
			"Joined":    m.AddedAt.UTC().Format("2006-01-02"),
		})
	}
	payload, err := s.exporter.Render(data, fmt.Sprintf("Team %s Roster", team.Name))
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster")
	}
	filename := fmt.Sprintf("team-%s-roster.pdf", team.ID)
	return payload, filename, nil
}
