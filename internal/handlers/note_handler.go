package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/SAP-F-2025/knowledge-forum-service/internal/models"
	"github.com/SAP-F-2025/knowledge-forum-service/internal/policy"
	"github.com/SAP-F-2025/knowledge-forum-service/internal/repositories"
	"github.com/SAP-F-2025/knowledge-forum-service/internal/services"
	"github.com/SAP-F-2025/knowledge-forum-service/internal/utils"
	"github.com/SAP-F-2025/knowledge-forum-service/internal/validator"
)

type NoteHandler struct {
	BaseHandler
	noteService services.NoteService
}

func NewNoteHandler(noteService services.NoteService, logger utils.Logger) *NoteHandler {
	return &NoteHandler{
		BaseHandler: NewBaseHandler(logger),
		noteService: noteService,
	}
}

// CreateNote creates a new note in a course
// @Summary Create note
// @Tags notes
// @Accept json
// @Produce json
// @Param note body services.CreateNoteRequest true "Note data"
// @Success 201 {object} services.NoteResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /notes [post]
func (h *NoteHandler) CreateNote(c *gin.Context) {
	var req services.CreateNoteRequest
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

	note, err := h.noteService.Create(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, note)
}

// GetNote retrieves a note by ID
// @Summary Get note
// @Tags notes
// @Produce json
// @Param id path string true "Note ID"
// @Success 200 {object} services.NoteResponse
// @Failure 404 {object} ErrorResponse
// @Router /notes/{id} [get]
func (h *NoteHandler) GetNote(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	note, err := h.noteService.GetByID(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, note)
}

// UpdateNote updates a note's title, content or tags
// @Summary Update note
// @Tags notes
// @Accept json
// @Produce json
// @Param id path string true "Note ID"
// @Param note body services.UpdateNoteRequest true "Fields to update"
// @Success 200 {object} services.NoteResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /notes/{id} [put]
func (h *NoteHandler) UpdateNote(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req services.UpdateNoteRequest
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

	note, err := h.noteService.Update(c.Request.Context(), id, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, note)
}

// ListCourseNotes lists notes in a course
// @Summary List course notes
// @Tags notes
// @Produce json
// @Param course_id path string true "Course ID"
// @Success 200 {object} services.NoteListResponse
// @Failure 403 {object} ErrorResponse
// @Router /courses/{course_id}/notes [get]
func (h *NoteHandler) ListCourseNotes(c *gin.Context) {
	courseID, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	h.listNotes(c, courseID)
}

// ListNotes lists notes in the course given by the course_id query parameter
// @Summary List notes
// @Tags notes
// @Produce json
// @Param course_id query string true "Course ID"
// @Success 200 {object} services.NoteListResponse
// @Failure 403 {object} ErrorResponse
// @Router /notes [get]
func (h *NoteHandler) ListNotes(c *gin.Context) {
	courseID, err := uuid.Parse(c.Query("course_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid course_id parameter",
			Details: err.Error(),
		})
		return
	}
	h.listNotes(c, courseID)
}

func (h *NoteHandler) listNotes(c *gin.Context, courseID uuid.UUID) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	limit, offset := h.parsePagination(c)
	filters := repositories.NoteFilters{
		Limit:  limit,
		Offset: offset,
	}
	if v := c.Query("note_type"); v != "" {
		noteType := models.NoteType(v)
		filters.NoteType = &noteType
	}
	if v := c.Query("tag"); v != "" {
		filters.Tag = &v
	}
	if v := c.Query("date_from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filters.DateFrom = &t
		}
	}
	if v := c.Query("date_to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filters.DateTo = &t
		}
	}

	notes, err := h.noteService.ListByCourse(c.Request.Context(), courseID, filters, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, notes)
}

// GetNoteThread returns a note with its full build-on subtree
// @Summary Get note thread
// @Tags notes
// @Produce json
// @Param id path string true "Note ID"
// @Success 200 {object} services.NoteThreadNode
// @Failure 404 {object} ErrorResponse
// @Router /notes/{id}/thread [get]
func (h *NoteHandler) GetNoteThread(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	thread, err := h.noteService.GetThread(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, thread)
}

func (h *NoteHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: validationErrors,
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

	switch {
	case errors.Is(err, services.ErrNoteNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Note not found",
		})
	case errors.Is(err, services.ErrCourseNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Course not found",
		})
	case errors.Is(err, services.ErrCourseInactive):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Course is not active",
		})
	case errors.Is(err, services.ErrParentNoteInvalid):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Parent note does not belong to the same course",
		})
	case errors.Is(err, services.ErrNotCourseMember):
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: "Not a member of this course",
		})
	case errors.Is(err, services.ErrUserNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "User not found",
		})
	default:
		h.LogError(c, err, "Unexpected note service error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
		})
	}
}
