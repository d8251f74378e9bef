package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-teams-api/internal/models"
	appErrors "github.com/noah-isme/lms-teams-api/pkg/errors"
	"github.com/noah-isme/lms-teams-api/pkg/export"
)

type mockTeamReader struct {
	byID         map[string]*models.Team
	byName       map[string]*models.Team
	created      []*models.Team
	list         []models.TeamDetail
	listTotal    int
	memberCounts map[string]int
	members      map[string][]models.TeamMember
	userTeams    map[string]*models.Team
	lookupCalls  int
}

func (m *mockTeamReader) FindByID(ctx context.Context, id string) (*models.Team, error) {
	if team, ok := m.byID[id]; ok {
		return team, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockTeamReader) FindByNameAndTeamset(ctx context.Context, name, teamsetID string) (*models.Team, error) {
	if team, ok := m.byName[name+":"+teamsetID]; ok {
		return team, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockTeamReader) Create(ctx context.Context, team *models.Team) error {
	team.ID = "generated-" + team.Name
	m.created = append(m.created, team)
	m.byID[team.ID] = team
	m.byName[team.Name+":"+team.TeamsetID] = team
	return nil
}

func (m *mockTeamReader) List(ctx context.Context, courseID string, filter models.TeamFilter) ([]models.TeamDetail, int, error) {
	return m.list, m.listTotal, nil
}

func (m *mockTeamReader) MemberCount(ctx context.Context, teamID string) (int, error) {
	return m.memberCounts[teamID], nil
}

func (m *mockTeamReader) Members(ctx context.Context, teamID string) ([]models.TeamMember, error) {
	return m.members[teamID], nil
}

func (m *mockTeamReader) TeamForUser(ctx context.Context, userID, courseID, teamsetID string) (*models.Team, error) {
	m.lookupCalls++
	if team, ok := m.userTeams[userID+":"+courseID+":"+teamsetID]; ok {
		return team, nil
	}
	return nil, sql.ErrNoRows
}

type mapCache struct {
	entries map[string][]byte
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string][]byte)}
}

func (m *mapCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *mapCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = raw
	return nil
}

type captureExporter struct {
	data  export.Dataset
	title string
}

func (e *captureExporter) Render(data export.Dataset, title string) ([]byte, error) {
	e.data = data
	e.title = title
	return []byte("%PDF-fake"), nil
}

func newTeamFixture() (*mockTeamReader, *mockDirectory, *mapCache, *captureExporter, *TeamService) {
	teams := &mockTeamReader{
		byID:         make(map[string]*models.Team),
		byName:       make(map[string]*models.Team),
		memberCounts: make(map[string]int),
		members:      make(map[string][]models.TeamMember),
		userTeams:    make(map[string]*models.Team),
	}
	users := &mockDirectory{users: []*models.User{
		{ID: "u1", Username: "alice", Email: "alice@example.com", FullName: "Alice A."},
	}}
	courses := &mockCourses{
		course: &models.Course{ID: "course-1"},
		teamsets: []models.TeamsetConfig{
			{ID: "ts1", CourseID: "course-1", Name: "Project Alpha"},
		},
	}
	cache := newMapCache()
	exporter := &captureExporter{}
	svc := NewTeamService(teams, users, courses, cache, exporter, TeamServiceConfig{
		DashboardBaseURL: "/courses",
		LookupCacheTTL:   time.Minute,
		AnonIDNamespace:  "test-ns",
	}, nil, zap.NewNop())
	return teams, users, cache, exporter, svc
}

func TestTeamServiceTeamForUserCachesLookups(t *testing.T) {
	teams, _, _, _, svc := newTeamFixture()
	team := &models.Team{ID: "t1", CourseID: "course-1", TeamsetID: "ts1", Name: "teamA"}
	teams.userTeams["u1:course-1:ts1"] = team

	got, err := svc.TeamForUser(context.Background(), "course-1", "ts1", "alice")
	require.NoError(t, err)
	assert.Equal(t, "t1", got.ID)
	assert.Equal(t, 1, teams.lookupCalls)

	got, err = svc.TeamForUser(context.Background(), "course-1", "ts1", "alice")
	require.NoError(t, err)
	assert.Equal(t, "t1", got.ID)
	assert.Equal(t, 1, teams.lookupCalls, "second lookup should be served from cache")
}

func TestTeamServiceTeamForUserFallsBackToEmail(t *testing.T) {
	teams, _, _, _, svc := newTeamFixture()
	teams.userTeams["u1:course-1:ts1"] = &models.Team{ID: "t1", CourseID: "course-1", TeamsetID: "ts1"}

	got, err := svc.TeamForUser(context.Background(), "course-1", "ts1", "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "t1", got.ID)
}

func TestTeamServiceTeamForUserNoMembership(t *testing.T) {
	_, _, _, _, svc := newTeamFixture()

	_, err := svc.TeamForUser(context.Background(), "course-1", "ts1", "alice")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestTeamServiceTeamForUserUnknownIdentifier(t *testing.T) {
	_, _, _, _, svc := newTeamFixture()

	_, err := svc.TeamForUser(context.Background(), "course-1", "ts1", "ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}

func TestTeamServiceDetailURL(t *testing.T) {
	_, _, _, _, svc := newTeamFixture()
	team := &models.Team{ID: "t1", CourseID: "course-1", TeamsetID: "ts1"}

	assert.Equal(t, "/courses/course-1#teams/ts1/t1", svc.DetailURL(team))
}

func TestTeamServiceAnonymousMemberIDs(t *testing.T) {
	teams, _, _, _, svc := newTeamFixture()
	teams.byID["t1"] = &models.Team{ID: "t1"}
	teams.members["t1"] = []models.TeamMember{
		{UserID: "u1", Username: "alice"},
		{UserID: "u2", Username: "bob"},
	}

	ids, err := svc.AnonymousMemberIDs(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.NotEqual(t, "u1", ids[0])
	assert.NotEqual(t, ids[0], ids[1])

	again, err := svc.AnonymousMemberIDs(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, ids, again, "anonymous ids must be deterministic")
}

func TestTeamServiceRosterPDF(t *testing.T) {
	teams, _, _, exporter, svc := newTeamFixture()
	teams.byID["t1"] = &models.Team{ID: "t1", Name: "teamA"}
	teams.members["t1"] = []models.TeamMember{
		{UserID: "u1", Username: "alice", FullName: "Alice A.", Email: "alice@example.com", AddedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
	}

	payload, filename, err := svc.RosterPDF(context.Background(), "t1")
	require.NoError(t, err)
	assert.NotEmpty(t, payload)
	assert.Equal(t, "team-t1-roster.pdf", filename)
	require.Len(t, exporter.data.Rows, 1)
	assert.Equal(t, "alice", exporter.data.Rows[0]["Username"])
	assert.Contains(t, exporter.title, "teamA")
}

func TestTeamServiceGet(t *testing.T) {
	teams, _, _, _, svc := newTeamFixture()
	teams.byID["t1"] = &models.Team{ID: "t1", Name: "teamA"}
	teams.memberCounts["t1"] = 3

	detail, err := svc.Get(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, 3, detail.MemberCount)
}

func TestTeamServiceListPaginationDefaults(t *testing.T) {
	teams, _, _, _, svc := newTeamFixture()
	teams.list = []models.TeamDetail{{Team: models.Team{ID: "t1"}}}
	teams.listTotal = 1

	list, pagination, err := svc.List(context.Background(), "course-1", models.TeamFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	require.NotNil(t, pagination)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 20, pagination.PageSize)
	assert.Equal(t, 1, pagination.TotalCount)
}

func TestTeamServiceCreate(t *testing.T) {
	teams, _, _, _, svc := newTeamFixture()

	team, err := svc.Create(context.Background(), "course-1", CreateTeamRequest{
		TeamsetID: "ts1",
		Name:      "teamA",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, team.ID)
	assert.Equal(t, "course-1", team.CourseID)
	require.Len(t, teams.created, 1)
}

func TestTeamServiceCreateRejectsMissingName(t *testing.T) {
	_, _, _, _, svc := newTeamFixture()

	_, err := svc.Create(context.Background(), "course-1", CreateTeamRequest{TeamsetID: "ts1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestTeamServiceCreateRejectsUnknownTeamset(t *testing.T) {
	_, _, _, _, svc := newTeamFixture()

	_, err := svc.Create(context.Background(), "course-1", CreateTeamRequest{
		TeamsetID: "bogus",
		Name:      "teamA",
	})
	require.Error(t, err)
	assert.Equal(t, "Teamset bogus does not exist.", appErrors.FromError(err).Message)
}

func TestTeamServiceCreateRejectsDuplicateName(t *testing.T) {
	teams, _, _, _, svc := newTeamFixture()
	teams.byName["teamA:ts1"] = &models.Team{ID: "t1", TeamsetID: "ts1", Name: "teamA"}

	_, err := svc.Create(context.Background(), "course-1", CreateTeamRequest{
		TeamsetID: "ts1",
		Name:      "teamA",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Empty(t, teams.created)
}
