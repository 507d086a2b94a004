package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/knowledge-forum-service/internal/models"
	"github.com/SAP-F-2025/knowledge-forum-service/internal/policy"
	"github.com/SAP-F-2025/knowledge-forum-service/internal/repositories"
	"github.com/SAP-F-2025/knowledge-forum-service/internal/services"
	"github.com/SAP-F-2025/knowledge-forum-service/internal/utils"
	"github.com/SAP-F-2025/knowledge-forum-service/internal/validator"
)

type AdminHandler struct {
	BaseHandler
	admissionService services.AdmissionService
}

func NewAdminHandler(admissionService services.AdmissionService, logger utils.Logger) *AdminHandler {
	return &AdminHandler{
		BaseHandler:      NewBaseHandler(logger),
		admissionService: admissionService,
	}
}

// ListApplications lists teacher applications, pending first
// @Summary List teacher applications
// @Tags admin
// @Produce json
// @Success 200 {object} services.ApplicationListResponse
// @Failure 403 {object} ErrorResponse
// @Router /admin/teacher-applications [get]
func (h *AdminHandler) ListApplications(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	limit, offset := h.parsePagination(c)
	filters := repositories.ApplicationFilters{
		Limit:  limit,
		Offset: offset,
	}
	if v := c.Query("status"); v != "" {
		status := models.ApplicationStatus(v)
		filters.Status = &status
	}

	apps, err := h.admissionService.List(c.Request.Context(), filters, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, apps)
}

// GetApplication retrieves one application
// @Summary Get teacher application
// @Tags admin
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} services.ApplicationResponse
// @Failure 404 {object} ErrorResponse
// @Router /admin/teacher-applications/{id} [get]
func (h *AdminHandler) GetApplication(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	app, err := h.admissionService.GetByID(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, app)
}

// ReviewApplication approves or rejects a pending application
// @Summary Review teacher application
// @Tags admin
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param review body services.ReviewApplicationRequest true "Verdict"
// @Success 200 {object} services.ApplicationResponse
// @Failure 403 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /admin/teacher-applications/{id}/review [put]
func (h *AdminHandler) ReviewApplication(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req services.ReviewApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Reviewing application", "application_id", id, "action", req.Action)

	app, err := h.admissionService.Review(c.Request.Context(), id, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, app)
}

func (h *AdminHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: validationErrors,
		})
		return
	}

	var permissionError *services.PermissionError
	if errors.As(err, &permissionError) {
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: "Access denied",
			Details: permissionError.Reason,
		})
		return
	}

	var deniedError *policy.DeniedError
	if errors.As(err, &deniedError) {
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: "Access denied",
			Details: deniedError.Reason,
		})
		return
	}

	var stateError *policy.StateError
	if errors.As(err, &stateError) {
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Application has already been reviewed",
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrApplicationNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Teacher application not found",
		})
	case errors.Is(err, services.ErrAlreadyReviewed):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Application has already been reviewed",
		})
	case errors.Is(err, services.ErrUserNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "User not found",
		})
	default:
		h.LogError(c, err, "Unexpected admission service error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
		})
	}
}
