package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/HarshBti1805/Einstein-Academic-Concierge/internal/dto"
	"github.com/HarshBti1805/Einstein-Academic-Concierge/internal/service"
	appErrors "github.com/HarshBti1805/Einstein-Academic-Concierge/pkg/errors"
	"github.com/HarshBti1805/Einstein-Academic-Concierge/pkg/response"
)

// StudentHandler exposes student registry endpoints.
type StudentHandler struct {
	registrations *service.RegistrationService
}

// NewStudentHandler constructs StudentHandler.
func NewStudentHandler(registrations *service.RegistrationService) *StudentHandler {
	return &StudentHandler{registrations: registrations}
}

// Create godoc
// @Summary Register or update a student
// @Tags Students
// @Accept json
// @Produce json
// @Param payload body dto.AddStudentRequest true "Student payload"
// @Success 201 {object} response.Envelope
// @Router /students [post]
func (h *StudentHandler) Create(c *gin.Context) {
	var req dto.AddStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	student, err := h.registrations.AddStudent(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, student)
}

// Get godoc
// @Summary Fetch a student profile
// @Tags Students
// @Produce json
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{studentId} [get]
func (h *StudentHandler) Get(c *gin.Context) {
	student, err := h.registrations.GetStudent(c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// Status godoc
// @Summary Enrollment and waitlist status for a student
// @Tags Students
// @Produce json
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{studentId}/status [get]
func (h *StudentHandler) Status(c *gin.Context) {
	status, err := h.registrations.StudentStatus(c.Request.Context(), c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// SetPreferences godoc
// @Summary Replace a student's ordered course preferences
// @Tags Students
// @Accept json
// @Produce json
// @Param studentId path string true "Student ID"
// @Param payload body dto.SetPreferencesRequest true "Preference payload"
// @Success 200 {object} response.Envelope
// @Router /students/{studentId}/preferences [put]
func (h *StudentHandler) SetPreferences(c *gin.Context) {
	var req dto.SetPreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req.StudentID = c.Param("studentId")

	if err := h.registrations.SetPreferences(c.Request.Context(), req); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"student_id": req.StudentID, "course_ids": req.CourseIDs}, nil)
}
