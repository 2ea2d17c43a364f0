package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gradeflow/gradeflow-api/internal/models"
	"github.com/gradeflow/gradeflow-api/internal/service"
	appErrors "github.com/gradeflow/gradeflow-api/pkg/errors"
	"github.com/gradeflow/gradeflow-api/pkg/response"
)

// ImportHandler accepts vendor CSV uploads for raw score ingestion.
type ImportHandler struct {
	service *service.RawScoreService
}

// NewImportHandler creates a new handler.
func NewImportHandler(svc *service.RawScoreService) *ImportHandler {
	return &ImportHandler{service: svc}
}

// Upload godoc
// @Summary Import raw scores from a vendor CSV
// @Description Parses a Gradescope or PrairieLearn export into raw score storage. Only legal once per migration.
// @Tags Imports
// @Accept mpfd
// @Produce json
// @Param migrationId path string true "Migration id"
// @Param source path string true "Raw score source" Enums(gradescope, prairielearn)
// @Param file formData file true "CSV export"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /migrations/{masterId}/migrations/{migrationId}/scores/{source} [post]
func (h *ImportHandler) Upload(c *gin.Context) {
	source := models.RawScoreSource(c.Param("source"))

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "a csv file upload is required"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "could not read uploaded file"))
		return
	}
	defer file.Close() //nolint:errcheck

	count, err := h.service.Import(c.Request.Context(), c.Param("migrationId"), source, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"imported": count}, nil)
}
