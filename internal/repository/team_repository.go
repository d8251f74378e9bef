package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/lms-teams-api/internal/models"
)

const pqUniqueViolation = "23505"

// TeamRepository handles persistence of teams and team memberships.
type TeamRepository struct {
	db *sqlx.DB
}

// NewTeamRepository constructs the repository.
func NewTeamRepository(db *sqlx.DB) *TeamRepository {
	return &TeamRepository{db: db}
}

// FindByID returns a team by its ID.
func (r *TeamRepository) FindByID(ctx context.Context, id string) (*models.Team, error) {
	const query = `SELECT id, course_id, teamset_id, name, description, created_at FROM teams WHERE id = $1 LIMIT 1`
	var team models.Team
	if err := r.db.GetContext(ctx, &team, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find team: %w", err)
	}
	return &team, nil
}

// FindByNameAndTeamset returns the team with the given name inside a teamset.
func (r *TeamRepository) FindByNameAndTeamset(ctx context.Context, name, teamsetID string) (*models.Team, error) {
	const query = `SELECT id, course_id, teamset_id, name, description, created_at FROM teams WHERE name = $1 AND teamset_id = $2 LIMIT 1`
	var team models.Team
	if err := r.db.GetContext(ctx, &team, query, name, teamsetID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find team by name: %w", err)
	}
	return &team, nil
}

// Create persists a new team.
func (r *TeamRepository) Create(ctx context.Context, team *models.Team) error {
	if team.ID == "" {
		team.ID = uuid.NewString()
	}
	if team.CreatedAt.IsZero() {
		team.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO teams (id, course_id, teamset_id, name, description, created_at)
        VALUES (:id, :course_id, :teamset_id, :name, :description, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, team); err != nil {
		return fmt.Errorf("create team: %w", err)
	}
	return nil
}

// List returns teams of a course with membership counts, filtered and paginated.
func (r *TeamRepository) List(ctx context.Context, courseID string, filter models.TeamFilter) ([]models.TeamDetail, int, error) {
	base := `FROM teams t`
	conditions := []string{"t.course_id = $1"}
	args := []interface{}{courseID}

	if filter.TeamsetID != "" {
		conditions = append(conditions, fmt.Sprintf("t.teamset_id = $%d", len(args)+1))
		args = append(args, filter.TeamsetID)
	}
	clause := " WHERE " + strings.Join(conditions, " AND ")

	allowedSorts := map[string]string{
		"name":       "t.name",
		"created_at": "t.created_at",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "t.name"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT t.id, t.course_id, t.teamset_id, t.name, t.description, t.created_at,
        (SELECT COUNT(*) FROM team_memberships m WHERE m.team_id = t.id) AS member_count
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var teams []models.TeamDetail
	if err := r.db.SelectContext(ctx, &teams, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list teams: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count teams: %w", err)
	}
	return teams, total, nil
}

// MemberCount returns the current number of members of a team.
func (r *TeamRepository) MemberCount(ctx context.Context, teamID string) (int, error) {
	const query = `SELECT COUNT(*) FROM team_memberships WHERE team_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, teamID); err != nil {
		return 0, fmt.Errorf("count team members: %w", err)
	}
	return count, nil
}

// Members returns the roster of a team joined with user records.
func (r *TeamRepository) Members(ctx context.Context, teamID string) ([]models.TeamMember, error) {
	const query = `SELECT m.user_id, u.username, u.email, u.full_name, m.added_at
        FROM team_memberships m
        JOIN users u ON u.id = m.user_id
        WHERE m.team_id = $1
        ORDER BY m.added_at`
	var members []models.TeamMember
	if err := r.db.SelectContext(ctx, &members, query, teamID); err != nil {
		return nil, fmt.Errorf("list team members: %w", err)
	}
	return members, nil
}

// MemberUserIDsByTeamset returns the IDs of every user holding a membership in
// any team of the given teamset. The importer preloads this set once per
// teamset column instead of querying per row.
func (r *TeamRepository) MemberUserIDsByTeamset(ctx context.Context, courseID, teamsetID string) ([]string, error) {
	const query = `SELECT m.user_id FROM team_memberships m
        JOIN teams t ON t.id = m.team_id
        WHERE t.course_id = $1 AND t.teamset_id = $2`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, courseID, teamsetID); err != nil {
		return nil, fmt.Errorf("list teamset member ids: %w", err)
	}
	return ids, nil
}

// TeamForUser returns the team the user belongs to within a (course, teamset),
// or sql.ErrNoRows when the user holds no membership there.
func (r *TeamRepository) TeamForUser(ctx context.Context, userID, courseID, teamsetID string) (*models.Team, error) {
	const query = `SELECT t.id, t.course_id, t.teamset_id, t.name, t.description, t.created_at
        FROM teams t
        JOIN team_memberships m ON m.team_id = t.id
        WHERE m.user_id = $1 AND t.course_id = $2 AND t.teamset_id = $3
        LIMIT 1`
	var team models.Team
	if err := r.db.GetContext(ctx, &team, query, userID, courseID, teamsetID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find team for user: %w", err)
	}
	return &team, nil
}

// AddMember records a membership. The outcome enum replaces exception
// identity: a unique violation reports AlreadyMember, a missing active
// enrollment reports NotEnrolled, both without an error.
func (r *TeamRepository) AddMember(ctx context.Context, team *models.Team, userID string) (models.MembershipOutcome, error) {
	const enrolledQuery = `SELECT 1 FROM enrollments WHERE user_id = $1 AND course_id = $2 AND active LIMIT 1`
	var enrolled int
	if err := r.db.GetContext(ctx, &enrolled, enrolledQuery, userID, team.CourseID); err != nil {
		if err == sql.ErrNoRows {
			return models.MembershipNotEnrolled, nil
		}
		return models.MembershipNotEnrolled, fmt.Errorf("check member enrollment: %w", err)
	}

	membership := models.TeamMembership{
		ID:      uuid.NewString(),
		TeamID:  team.ID,
		UserID:  userID,
		AddedAt: time.Now().UTC(),
	}
	const query = `INSERT INTO team_memberships (id, team_id, user_id, added_at)
        VALUES (:id, :team_id, :user_id, :added_at)`
	if _, err := r.db.NamedExecContext(ctx, query, membership); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
			return models.MembershipAlreadyMember, nil
		}
		return models.MembershipAlreadyMember, fmt.Errorf("add team member: %w", err)
	}
	return models.MembershipAdded, nil
}
