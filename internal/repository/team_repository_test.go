package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-teams-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestTeamRepositoryFindByNameAndTeamset(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTeamRepository(db)

	rows := sqlmock.NewRows([]string{"id", "course_id", "teamset_id", "name", "description", "created_at"}).
		AddRow("t1", "course-1", "ts1", "teamA", "imported", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, course_id, teamset_id, name, description, created_at FROM teams WHERE name = $1 AND teamset_id = $2")).
		WithArgs("teamA", "ts1").
		WillReturnRows(rows)

	team, err := repo.FindByNameAndTeamset(context.Background(), "teamA", "ts1")
	require.NoError(t, err)
	assert.Equal(t, "t1", team.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTeamRepositoryMemberCount(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTeamRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM team_memberships WHERE team_id = $1")).
		WithArgs("t1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	count, err := repo.MemberCount(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, 4, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTeamRepositoryMemberUserIDsByTeamset(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTeamRepository(db)

	rows := sqlmock.NewRows([]string{"user_id"}).AddRow("u1").AddRow("u2")
	mock.ExpectQuery("SELECT m.user_id FROM team_memberships m").
		WithArgs("course-1", "ts1").
		WillReturnRows(rows)

	ids, err := repo.MemberUserIDsByTeamset(context.Background(), "course-1", "ts1")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTeamRepositoryAddMember(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTeamRepository(db)
	team := &models.Team{ID: "t1", CourseID: "course-1"}

	mock.ExpectQuery("SELECT 1 FROM enrollments").
		WithArgs("u1", "course-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectExec("INSERT INTO team_memberships").
		WithArgs(sqlmock.AnyArg(), "t1", "u1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	outcome, err := repo.AddMember(context.Background(), team, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.MembershipAdded, outcome)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTeamRepositoryAddMemberDuplicate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTeamRepository(db)
	team := &models.Team{ID: "t1", CourseID: "course-1"}

	mock.ExpectQuery("SELECT 1 FROM enrollments").
		WithArgs("u1", "course-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectExec("INSERT INTO team_memberships").
		WillReturnError(&pq.Error{Code: "23505"})

	outcome, err := repo.AddMember(context.Background(), team, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.MembershipAlreadyMember, outcome)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTeamRepositoryAddMemberNotEnrolled(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTeamRepository(db)
	team := &models.Team{ID: "t1", CourseID: "course-1"}

	mock.ExpectQuery("SELECT 1 FROM enrollments").
		WithArgs("u1", "course-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	outcome, err := repo.AddMember(context.Background(), team, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.MembershipNotEnrolled, outcome)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTeamRepositoryTeamForUser(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTeamRepository(db)

	rows := sqlmock.NewRows([]string{"id", "course_id", "teamset_id", "name", "description", "created_at"}).
		AddRow("t1", "course-1", "ts1", "teamA", "", time.Now())
	mock.ExpectQuery("SELECT t.id, t.course_id, t.teamset_id, t.name, t.description, t.created_at\\s+FROM teams t\\s+JOIN team_memberships m").
		WithArgs("u1", "course-1", "ts1").
		WillReturnRows(rows)

	team, err := repo.TeamForUser(context.Background(), "u1", "course-1", "ts1")
	require.NoError(t, err)
	assert.Equal(t, "teamA", team.Name)
	require.NoError(t, mock.ExpectationsWereMet())
}
