package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gradeflow/gradeflow-api/internal/middleware"
	"github.com/gradeflow/gradeflow-api/internal/service"
	appErrors "github.com/gradeflow/gradeflow-api/pkg/errors"
	"github.com/gradeflow/gradeflow-api/pkg/response"
)

// TaskHandler exposes background task polling.
type TaskHandler struct {
	service *service.TaskService
}

// NewTaskHandler creates a new handler.
func NewTaskHandler(svc *service.TaskService) *TaskHandler {
	return &TaskHandler{service: svc}
}

// List godoc
// @Summary List background tasks
// @Description List the requesting user's background tasks, newest first
// @Tags Tasks
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /tasks [get]
func (h *TaskHandler) List(c *gin.Context) {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	tasks, err := h.service.ListForUser(c.Request.Context(), claims.CWID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tasks, nil)
}

// Get godoc
// @Summary Get one background task
// @Description Get a task by id; another user's task reads as not found
// @Tags Tasks
// @Produce json
// @Param id path string true "Task id"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /tasks/{id} [get]
func (h *TaskHandler) Get(c *gin.Context) {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	task, err := h.service.GetForUser(c.Request.Context(), c.Param("id"), claims.CWID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, task, nil)
}
