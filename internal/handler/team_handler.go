package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-teams-api/internal/models"
	"github.com/noah-isme/lms-teams-api/internal/service"
	appErrors "github.com/noah-isme/lms-teams-api/pkg/errors"
	"github.com/noah-isme/lms-teams-api/pkg/response"
)

type teamProvider interface {
	List(ctx context.Context, courseID string, filter models.TeamFilter) ([]models.TeamDetail, *models.Pagination, error)
	Create(ctx context.Context, courseID string, req service.CreateTeamRequest) (*models.Team, error)
	Get(ctx context.Context, id string) (*models.TeamDetail, error)
	TeamForUser(ctx context.Context, courseID, teamsetID, identifier string) (*models.Team, error)
	DetailURL(team *models.Team) string
	AnonymousMemberIDs(ctx context.Context, teamID string) ([]string, error)
	RosterPDF(ctx context.Context, teamID string) ([]byte, string, error)
}

// TeamHandler exposes team listing, detail, the lookup shim and roster export.
type TeamHandler struct {
	teams teamProvider
}

// NewTeamHandler constructs TeamHandler.
func NewTeamHandler(teams teamProvider) *TeamHandler {
	return &TeamHandler{teams: teams}
}

// List godoc
// @Summary List teams of a course
// @Tags Teams
// @Produce json
// @Param courseId path string true "Course ID"
// @Param teamsetId query string false "Filter by teamset"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Param sort query string false "Sort field (name, created_at)"
// @Param order query string false "Sort order (asc, desc)"
// @Success 200 {object} response.Envelope
// @Router /courses/{courseId}/teams [get]
func (h *TeamHandler) List(c *gin.Context) {
	var filter models.TeamFilter
	filter.TeamsetID = c.Query("teamsetId")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	teams, pagination, err := h.teams.List(c.Request.Context(), c.Param("courseId"), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, teams, pagination)
}

// Create godoc
// @Summary Create a team in a teamset
// @Tags Teams
// @Accept json
// @Produce json
// @Param courseId path string true "Course ID"
// @Param payload body service.CreateTeamRequest true "Team payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /courses/{courseId}/teams [post]
func (h *TeamHandler) Create(c *gin.Context) {
	var req service.CreateTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	team, err := h.teams.Create(c.Request.Context(), c.Param("courseId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, team)
}

// Get godoc
// @Summary Get one team with its member count
// @Tags Teams
// @Produce json
// @Param id path string true "Team ID"
// @Success 200 {object} response.Envelope
// @Router /teams/{id} [get]
func (h *TeamHandler) Get(c *gin.Context) {
	team, err := h.teams.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, team, nil)
}

// TeamForUser godoc
// @Summary Resolve the team a user belongs to within a teamset
// @Tags Teams
// @Produce json
// @Param courseId path string true "Course ID"
// @Param teamsetId path string true "Teamset ID"
// @Param user query string true "Username or email"
// @Success 200 {object} response.Envelope
// @Router /courses/{courseId}/teamsets/{teamsetId}/team [get]
func (h *TeamHandler) TeamForUser(c *gin.Context) {
	identifier := c.Query("user")
	if identifier == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "user query parameter is required"))
		return
	}
	team, err := h.teams.TeamForUser(c.Request.Context(), c.Param("courseId"), c.Param("teamsetId"), identifier)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{
		"team":       team,
		"detail_url": h.teams.DetailURL(team),
	}, nil)
}

// AnonymousMemberIDs godoc
// @Summary List anonymized member IDs of a team
// @Tags Teams
// @Produce json
// @Param id path string true "Team ID"
// @Success 200 {object} response.Envelope
// @Router /teams/{id}/anonymous-member-ids [get]
func (h *TeamHandler) AnonymousMemberIDs(c *gin.Context) {
	ids, err := h.teams.AnonymousMemberIDs(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"anonymous_user_ids": ids}, nil)
}

// Roster godoc
// @Summary Download the team roster as PDF
// @Tags Teams
// @Produce application/pdf
// @Param id path string true "Team ID"
// @Success 200 {file} binary
// @Router /teams/{id}/roster.pdf [get]
func (h *TeamHandler) Roster(c *gin.Context) {
	payload, filename, err := h.teams.RosterPDF(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/pdf", payload)
}
