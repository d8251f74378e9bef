package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCourseRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name FROM courses WHERE id = $1")).
		WithArgs("course-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow("course-1", "Intro to Go"))

	course, err := repo.FindByID(context.Background(), "course-1")
	require.NoError(t, err)
	assert.Equal(t, "Intro to Go", course.Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectQuery("FROM courses WHERE id = ").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))

	course, err := repo.FindByID(context.Background(), "missing")
	assert.Nil(t, course)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryListTeamsets(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	rows := sqlmock.NewRows([]string{"id", "course_id", "name", "max_team_size"}).
		AddRow("ts1", "course-1", "Project Alpha", 5).
		AddRow("ts2", "course-1", "Project Beta", nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, course_id, name, max_team_size FROM teamsets WHERE course_id = $1")).
		WithArgs("course-1").
		WillReturnRows(rows)

	teamsets, err := repo.ListTeamsets(context.Background(), "course-1")
	require.NoError(t, err)
	require.Len(t, teamsets, 2)
	require.NotNil(t, teamsets[0].MaxTeamSize)
	assert.Equal(t, 5, *teamsets[0].MaxTeamSize)
	assert.Nil(t, teamsets[1].MaxTeamSize)
	require.NoError(t, mock.ExpectationsWereMet())
}
