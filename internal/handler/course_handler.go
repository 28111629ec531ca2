package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/HarshBti1805/Einstein-Academic-Concierge/internal/dto"
	"github.com/HarshBti1805/Einstein-Academic-Concierge/internal/service"
	appErrors "github.com/HarshBti1805/Einstein-Academic-Concierge/pkg/errors"
	"github.com/HarshBti1805/Einstein-Academic-Concierge/pkg/response"
)

// CourseHandler exposes course registry, lifecycle and export endpoints.
type CourseHandler struct {
	registrations *service.RegistrationService
	exports       *service.ExportService
}

// NewCourseHandler constructs CourseHandler.
func NewCourseHandler(registrations *service.RegistrationService, exports *service.ExportService) *CourseHandler {
	return &CourseHandler{registrations: registrations, exports: exports}
}

// Create godoc
// @Summary Register or update a course
// @Tags Courses
// @Accept json
// @Produce json
// @Param payload body dto.AddCourseRequest true "Course payload"
// @Success 201 {object} response.Envelope
// @Router /courses [post]
func (h *CourseHandler) Create(c *gin.Context) {
	var req dto.AddCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	course, err := h.registrations.AddCourse(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, course)
}

// Get godoc
// @Summary Fetch a course definition
// @Tags Courses
// @Produce json
// @Param courseId path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{courseId} [get]
func (h *CourseHandler) Get(c *gin.Context) {
	course, err := h.registrations.GetCourse(c.Param("courseId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// Status godoc
// @Summary Enrollment and waitlist status for a course
// @Tags Courses
// @Produce json
// @Param courseId path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{courseId}/status [get]
func (h *CourseHandler) Status(c *gin.Context) {
	status, err := h.registrations.CourseStatus(c.Request.Context(), c.Param("courseId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// OpenBooking godoc
// @Summary Open booking for a course
// @Tags Courses
// @Produce json
// @Param courseId path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{courseId}/open [post]
func (h *CourseHandler) OpenBooking(c *gin.Context) {
	h.lifecycle(c, h.registrations.OpenBooking, "BOOKING_OPEN")
}

// CloseBooking godoc
// @Summary Close booking for a course
// @Tags Courses
// @Produce json
// @Param courseId path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{courseId}/close [post]
func (h *CourseHandler) CloseBooking(c *gin.Context) {
	h.lifecycle(c, h.registrations.CloseBooking, "COURSE_STARTED")
}

// CompleteCourse godoc
// @Summary Mark a course as completed
// @Tags Courses
// @Produce json
// @Param courseId path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{courseId}/complete [post]
func (h *CourseHandler) CompleteCourse(c *gin.Context) {
	h.lifecycle(c, h.registrations.CompleteCourse, "COURSE_COMPLETED")
}

// ExportRoster godoc
// @Summary Download the enrolled roster as CSV or PDF
// @Tags Courses
// @Produce text/csv
// @Param courseId path string true "Course ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Router /courses/{courseId}/roster/export [get]
func (h *CourseHandler) ExportRoster(c *gin.Context) {
	courseID := c.Param("courseId")
	format := c.DefaultQuery("format", "csv")

	var (
		data     []byte
		filename string
		mime     string
		err      error
	)
	switch format {
	case "pdf":
		data, filename, err = h.exports.RosterPDF(c.Request.Context(), courseID)
		mime = "application/pdf"
	default:
		data, filename, err = h.exports.RosterCSV(c.Request.Context(), courseID)
		mime = "text/csv"
	}
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Download(c, mime, filename, data)
}

// ExportWaitlist godoc
// @Summary Download the ranked waitlist as CSV or PDF
// @Tags Courses
// @Produce text/csv
// @Param courseId path string true "Course ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Router /courses/{courseId}/waitlist/export [get]
func (h *CourseHandler) ExportWaitlist(c *gin.Context) {
	courseID := c.Param("courseId")
	format := c.DefaultQuery("format", "csv")

	var (
		data     []byte
		filename string
		mime     string
		err      error
	)
	switch format {
	case "pdf":
		data, filename, err = h.exports.WaitlistPDF(c.Request.Context(), courseID)
		mime = "application/pdf"
	default:
		data, filename, err = h.exports.WaitlistCSV(c.Request.Context(), courseID)
		mime = "text/csv"
	}
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Download(c, mime, filename, data)
}

func (h *CourseHandler) lifecycle(c *gin.Context, transition func(ctx context.Context, courseID string) bool, state string) {
	courseID := c.Param("courseId")
	if !transition(c.Request.Context(), courseID) {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "course not found"))
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"course_id": courseID, "booking_state": state}, nil)
}
