package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-teams-api/internal/models"
	"github.com/noah-isme/lms-teams-api/internal/service"
	appErrors "github.com/noah-isme/lms-teams-api/pkg/errors"
)

type fakeTeamProvider struct {
	teams      []models.TeamDetail
	pagination *models.Pagination
	listErr    error
	lastFilter models.TeamFilter

	detail     *models.TeamDetail
	getErr     error
	createErr  error
	team       *models.Team
	lookupErr  error
	anonIDs    []string
	rosterPDF  []byte
	rosterName string
}

func (f *fakeTeamProvider) List(_ context.Context, _ string, filter models.TeamFilter) ([]models.TeamDetail, *models.Pagination, error) {
	f.lastFilter = filter
	return f.teams, f.pagination, f.listErr
}

func (f *fakeTeamProvider) Create(_ context.Context, courseID string, req service.CreateTeamRequest) (*models.Team, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &models.Team{ID: "t-new", CourseID: courseID, TeamsetID: req.TeamsetID, Name: req.Name}, nil
}

func (f *fakeTeamProvider) Get(context.Context, string) (*models.TeamDetail, error) {
	return f.detail, f.getErr
}

func (f *fakeTeamProvider) TeamForUser(context.Context, string, string, string) (*models.Team, error) {
	return f.team, f.lookupErr
}

func (f *fakeTeamProvider) DetailURL(team *models.Team) string {
	return "https://lms.example.com/" + team.CourseID + "#teams/" + team.TeamsetID + "/" + team.ID
}

func (f *fakeTeamProvider) AnonymousMemberIDs(context.Context, string) ([]string, error) {
	return f.anonIDs, nil
}

func (f *fakeTeamProvider) RosterPDF(context.Context, string) ([]byte, string, error) {
	return f.rosterPDF, f.rosterName, nil
}

func TestTeamHandlerList(t *testing.T) {
	gin.SetMode(gin.TestMode)
	provider := &fakeTeamProvider{
		teams:      []models.TeamDetail{{Team: models.Team{ID: "t1", Name: "teamA"}, MemberCount: 3}},
		pagination: &models.Pagination{Page: 2, PageSize: 10, TotalCount: 11},
	}
	handler := NewTeamHandler(provider)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/courses/course-1/teams?teamsetId=ts1&page=2&limit=10&sort=name&order=desc", nil)
	c.Params = gin.Params{{Key: "courseId", Value: "course-1"}}

	handler.List(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ts1", provider.lastFilter.TeamsetID)
	assert.Equal(t, 2, provider.lastFilter.Page)
	assert.Equal(t, 10, provider.lastFilter.PageSize)
	assert.Equal(t, "name", provider.lastFilter.SortBy)
	assert.Equal(t, "desc", provider.lastFilter.SortOrder)
}

func TestTeamHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewTeamHandler(&fakeTeamProvider{})

	body := bytes.NewBufferString(`{"teamset_id":"ts1","name":"teamA"}`)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/courses/course-1/teams", body)
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "courseId", Value: "course-1"}}

	handler.Create(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	var envelope struct {
		Data models.Team `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "t-new", envelope.Data.ID)
	assert.Equal(t, "course-1", envelope.Data.CourseID)
}

func TestTeamHandlerCreateInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewTeamHandler(&fakeTeamProvider{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/courses/course-1/teams", bytes.NewBufferString("not json"))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Create(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTeamHandlerTeamForUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	provider := &fakeTeamProvider{
		team: &models.Team{ID: "t1", CourseID: "course-1", TeamsetID: "ts1", Name: "teamA"},
	}
	handler := NewTeamHandler(provider)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/courses/course-1/teamsets/ts1/team?user=alice", nil)
	c.Params = gin.Params{{Key: "courseId", Value: "course-1"}, {Key: "teamsetId", Value: "ts1"}}

	handler.TeamForUser(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	var envelope struct {
		Data struct {
			Team      models.Team `json:"team"`
			DetailURL string      `json:"detail_url"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "t1", envelope.Data.Team.ID)
	assert.Equal(t, "https://lms.example.com/course-1#teams/ts1/t1", envelope.Data.DetailURL)
}

func TestTeamHandlerTeamForUserMissingIdentifier(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewTeamHandler(&fakeTeamProvider{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/courses/course-1/teamsets/ts1/team", nil)

	handler.TeamForUser(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTeamHandlerTeamForUserNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	provider := &fakeTeamProvider{lookupErr: appErrors.Clone(appErrors.ErrNotFound, "user has no team in this teamset")}
	handler := NewTeamHandler(provider)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/courses/course-1/teamsets/ts1/team?user=alice", nil)

	handler.TeamForUser(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTeamHandlerAnonymousMemberIDs(t *testing.T) {
	gin.SetMode(gin.TestMode)
	provider := &fakeTeamProvider{anonIDs: []string{"id-1", "id-2"}}
	handler := NewTeamHandler(provider)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/teams/t1/anonymous-member-ids", nil)
	c.Params = gin.Params{{Key: "id", Value: "t1"}}

	handler.AnonymousMemberIDs(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	var envelope struct {
		Data struct {
			IDs []string `json:"anonymous_user_ids"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, []string{"id-1", "id-2"}, envelope.Data.IDs)
}

func TestTeamHandlerRoster(t *testing.T) {
	gin.SetMode(gin.TestMode)
	provider := &fakeTeamProvider{rosterPDF: []byte("%PDF-1.4"), rosterName: "team-t1-roster.pdf"}
	handler := NewTeamHandler(provider)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/teams/t1/roster.pdf", nil)
	c.Params = gin.Params{{Key: "id", Value: "t1"}}

	handler.Roster(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "team-t1-roster.pdf")
	assert.Equal(t, "%PDF-1.4", rec.Body.String())
}
