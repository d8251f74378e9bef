package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-teams-api/internal/models"
	appErrors "github.com/noah-isme/lms-teams-api/pkg/errors"
	"github.com/noah-isme/lms-teams-api/pkg/response"
)

type membershipImporter interface {
	Import(ctx context.Context, courseID string, input io.Reader) (*models.ImportReport, error)
}

// ImportHandler exposes the CSV membership import endpoint.
type ImportHandler struct {
	importer    membershipImporter
	maxFileSize int64
}

// NewImportHandler constructs ImportHandler.
func NewImportHandler(importer membershipImporter, maxFileSize int64) *ImportHandler {
	return &ImportHandler{importer: importer, maxFileSize: maxFileSize}
}

// Import godoc
// @Summary Import team memberships from CSV
// @Tags Teams
// @Accept mpfd
// @Produce json
// @Param courseId path string true "Course ID"
// @Param file formData file true "Membership CSV"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /courses/{courseId}/teams/memberships/import [post]
func (h *ImportHandler) Import(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "missing file upload"))
		return
	}
	if h.maxFileSize > 0 && fileHeader.Size > h.maxFileSize {
		response.Error(c, appErrors.Clone(appErrors.ErrPayloadTooLarge, "import file exceeds size limit"))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable file upload"))
		return
	}
	defer file.Close()

	report, err := h.importer.Import(c.Request.Context(), c.Param("courseId"), file)
	if err != nil {
		response.Error(c, err)
		return
	}

	status := http.StatusOK
	if !report.Success {
		status = http.StatusUnprocessableEntity
	}
	response.JSON(c, status, report, nil)
}
