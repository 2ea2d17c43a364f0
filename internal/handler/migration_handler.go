package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gradeflow/gradeflow-api/internal/dto"
	"github.com/gradeflow/gradeflow-api/internal/middleware"
	"github.com/gradeflow/gradeflow-api/internal/models"
	"github.com/gradeflow/gradeflow-api/internal/service"
	appErrors "github.com/gradeflow/gradeflow-api/pkg/errors"
	"github.com/gradeflow/gradeflow-api/pkg/response"
)

// MigrationHandler maps the workflow state machine onto HTTP endpoints.
type MigrationHandler struct {
	service *service.MigrationService
}

// NewMigrationHandler creates a new handler.
func NewMigrationHandler(svc *service.MigrationService) *MigrationHandler {
	return &MigrationHandler{service: svc}
}

func masterResponse(m *models.MasterMigration) dto.MasterMigrationResponse {
	return dto.MasterMigrationResponse{
		ID:          m.ID,
		CourseID:    m.CourseID,
		Status:      m.Status,
		DateStarted: m.DateStarted,
		Migrations:  m.Migrations,
	}
}

func taskResponses(tasks []models.TaskRecord) []dto.TaskResponse {
	out := make([]dto.TaskResponse, 0, len(tasks))
	for i := range tasks {
		out = append(out, dto.TaskFromModel(&tasks[i]))
	}
	return out
}

// CreateMaster godoc
// @Summary Create a grading cycle
// @Description Open a new master migration for a course
// @Tags Migrations
// @Accept json
// @Produce json
// @Param courseId path string true "Course id"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /courses/{courseId}/migrations [post]
func (h *MigrationHandler) CreateMaster(c *gin.Context) {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	master, err := h.service.CreateMasterMigration(c.Request.Context(), c.Param("courseId"), claims.CWID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, masterResponse(master))
}

// ListMasters godoc
// @Summary List grading cycles
// @Tags Migrations
// @Produce json
// @Param courseId path string true "Course id"
// @Success 200 {object} response.Envelope
// @Router /courses/{courseId}/migrations [get]
func (h *MigrationHandler) ListMasters(c *gin.Context) {
	masters, err := h.service.ListMasterMigrations(c.Request.Context(), c.Param("courseId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, masters, nil)
}

// GetMaster godoc
// @Summary Get one grading cycle
// @Tags Migrations
// @Produce json
// @Param masterId path string true "Master migration id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /migrations/{masterId} [get]
func (h *MigrationHandler) GetMaster(c *gin.Context) {
	master, err := h.service.GetMasterMigration(c.Request.Context(), c.Param("masterId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, masterResponse(master), nil)
}

// DeleteMaster godoc
// @Summary Delete a grading cycle
// @Description Only legal before raw scores have been loaded
// @Tags Migrations
// @Param masterId path string true "Master migration id"
// @Success 204 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /migrations/{masterId} [delete]
func (h *MigrationHandler) DeleteMaster(c *gin.Context) {
	if err := h.service.DeleteMasterMigration(c.Request.Context(), c.Param("masterId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// AddMigration godoc
// @Summary Attach an assignment to a grading cycle
// @Tags Migrations
// @Accept json
// @Produce json
// @Param masterId path string true "Master migration id"
// @Param payload body dto.AddMigrationRequest true "Assignment"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /migrations/{masterId}/migrations [post]
func (h *MigrationHandler) AddMigration(c *gin.Context) {
	var req dto.AddMigrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	migration, err := h.service.AddMigration(c.Request.Context(), c.Param("masterId"), req.AssignmentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, migration)
}

// SetPolicy godoc
// @Summary Set the late policy for a migration
// @Tags Migrations
// @Accept json
// @Produce json
// @Param masterId path string true "Master migration id"
// @Param migrationId path string true "Migration id"
// @Param payload body dto.SetPolicyRequest true "Policy"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /migrations/{masterId}/migrations/{migrationId}/policy [put]
func (h *MigrationHandler) SetPolicy(c *gin.Context) {
	var req dto.SetPolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	migration, err := h.service.SetPolicy(c.Request.Context(), c.Param("migrationId"), req.PolicyID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, migration, nil)
}

// ValidateLoad godoc
// @Summary Validate raw score loading
// @Description Requires raw scores PRESENT on every migration; advances CREATED to LOADED
// @Tags Migrations
// @Produce json
// @Param masterId path string true "Master migration id"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /migrations/{masterId}/load/validate [post]
func (h *MigrationHandler) ValidateLoad(c *gin.Context) {
	master, err := h.service.ValidateLoad(c.Request.Context(), c.Param("masterId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, masterResponse(master), nil)
}

// StartProcessing godoc
// @Summary Start score processing
// @Description Advances LOADED to STARTED and spawns zero-out and process-scores tasks per migration
// @Tags Migrations
// @Produce json
// @Param masterId path string true "Master migration id"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /migrations/{masterId}/start [post]
func (h *MigrationHandler) StartProcessing(c *gin.Context) {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	tasks, err := h.service.StartProcessing(c.Request.Context(), c.Param("masterId"), claims.CWID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, taskResponses(tasks), nil)
}

// Review godoc
// @Summary Get migrations to review
// @Description Returns current per-student scores; first read moves STARTED to AWAITING_REVIEW
// @Tags Migrations
// @Produce json
// @Param masterId path string true "Master migration id"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /migrations/{masterId}/review [get]
func (h *MigrationHandler) Review(c *gin.Context) {
	migrations, err := h.service.GetMigrationsToReview(c.Request.Context(), c.Param("masterId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, migrations, nil)
}

// OverrideScore godoc
// @Summary Override a student's score
// @Description Appends a manual correction as a new ledger revision
// @Tags Migrations
// @Accept json
// @Produce json
// @Param masterId path string true "Master migration id"
// @Param migrationId path string true "Migration id"
// @Param payload body dto.ScoreChangeRequest true "Score change"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /migrations/{masterId}/migrations/{migrationId}/review [put]
func (h *MigrationHandler) OverrideScore(c *gin.Context) {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.ScoreChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	entry, err := h.service.OverrideScore(c.Request.Context(), c.Param("masterId"), c.Param("migrationId"), claims.CWID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}

// FinalizeReview godoc
// @Summary Finalize review
// @Description Advances AWAITING_REVIEW to READY_TO_POST
// @Tags Migrations
// @Produce json
// @Param masterId path string true "Master migration id"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /migrations/{masterId}/review/finalize [post]
func (h *MigrationHandler) FinalizeReview(c *gin.Context) {
	master, err := h.service.FinalizeReview(c.Request.Context(), c.Param("masterId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, masterResponse(master), nil)
}

// StartPost godoc
// @Summary Post scores to the gradebook
// @Description Advances READY_TO_POST to POSTING and spawns one post task per migration
// @Tags Migrations
// @Produce json
// @Param masterId path string true "Master migration id"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /migrations/{masterId}/post [post]
func (h *MigrationHandler) StartPost(c *gin.Context) {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	tasks, err := h.service.StartPost(c.Request.Context(), c.Param("masterId"), claims.CWID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, taskResponses(tasks), nil)
}

// FinalizePost godoc
// @Summary Finalize posting
// @Description Advances POSTING to COMPLETED
// @Tags Migrations
// @Produce json
// @Param masterId path string true "Master migration id"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /migrations/{masterId}/post/finalize [post]
func (h *MigrationHandler) FinalizePost(c *gin.Context) {
	master, err := h.service.FinalizePost(c.Request.Context(), c.Param("masterId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, masterResponse(master), nil)
}
