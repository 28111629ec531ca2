package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/HarshBti1805/Einstein-Academic-Concierge/internal/dto"
	"github.com/HarshBti1805/Einstein-Academic-Concierge/internal/service"
	appErrors "github.com/HarshBti1805/Einstein-Academic-Concierge/pkg/errors"
	"github.com/HarshBti1805/Einstein-Academic-Concierge/pkg/response"
)

// RegistrationHandler exposes application, allocation and waitlist
// endpoints.
type RegistrationHandler struct {
	registrations *service.RegistrationService
}

// NewRegistrationHandler constructs RegistrationHandler.
func NewRegistrationHandler(registrations *service.RegistrationService) *RegistrationHandler {
	return &RegistrationHandler{registrations: registrations}
}

// Apply godoc
// @Summary Submit a course application
// @Tags Registrations
// @Accept json
// @Produce json
// @Param payload body dto.ApplyRequest true "Application payload"
// @Success 200 {object} response.Envelope
// @Router /registrations/apply [post]
func (h *RegistrationHandler) Apply(c *gin.Context) {
	var req dto.ApplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	result, err := h.registrations.Apply(c.Request.Context(), req.StudentID, req.CourseID, appliedAt(req.AppliedAt))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ApplyAll godoc
// @Summary Apply to every course in the student's preference list
// @Tags Registrations
// @Accept json
// @Produce json
// @Param payload body dto.ApplyAllRequest true "Application payload"
// @Success 200 {object} response.Envelope
// @Router /registrations/apply-all [post]
func (h *RegistrationHandler) ApplyAll(c *gin.Context) {
	var req dto.ApplyAllRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	results, err := h.registrations.ApplyAll(c.Request.Context(), req.StudentID, appliedAt(req.AppliedAt))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, results, nil)
}

// ManualRegister godoc
// @Summary Attempt immediate enrollment into an open course
// @Tags Registrations
// @Accept json
// @Produce json
// @Param payload body dto.ManualRegisterRequest true "Registration payload"
// @Success 200 {object} response.Envelope
// @Router /registrations/manual [post]
func (h *RegistrationHandler) ManualRegister(c *gin.Context) {
	var req dto.ManualRegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	result, err := h.registrations.ManualRegister(c.Request.Context(), req.StudentID, req.CourseID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Dropout godoc
// @Summary Drop an enrolled student and backfill the seat
// @Tags Registrations
// @Accept json
// @Produce json
// @Param payload body dto.DropoutRequest true "Dropout payload"
// @Success 200 {object} response.Envelope
// @Router /registrations/dropout [post]
func (h *RegistrationHandler) Dropout(c *gin.Context) {
	var req dto.DropoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	result, err := h.registrations.ProcessDropout(c.Request.Context(), req.StudentID, req.CourseID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if result == nil {
		response.JSON(c, http.StatusOK, gin.H{"filled": false}, nil)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// RunAllocation godoc
// @Summary Run one batch allocation
// @Tags Allocations
// @Accept json
// @Produce json
// @Param payload body dto.RunAllocationRequest false "Optional course scope"
// @Success 200 {object} response.Envelope
// @Router /allocations/run [post]
func (h *RegistrationHandler) RunAllocation(c *gin.Context) {
	var req dto.RunAllocationRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
	}

	results, summary, err := h.registrations.RunAllocation(c.Request.Context(), req.CourseIDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, results, nil, map[string]interface{}{
		"students_allocated": summary.StudentsAllocated,
		"courses_considered": summary.CoursesConsidered,
	})
}

// RecomputeScores godoc
// @Summary Rescore all pending applications and re-rank waitlists
// @Tags Allocations
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /allocations/recompute [post]
func (h *RegistrationHandler) RecomputeScores(c *gin.Context) {
	reranked, err := h.registrations.RecomputeScores(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"reranked": reranked}, nil)
}

// WaitlistStatus godoc
// @Summary Waitlist standing for one student on one course
// @Tags Registrations
// @Produce json
// @Param courseId path string true "Course ID"
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{courseId}/waitlist/{studentId} [get]
func (h *RegistrationHandler) WaitlistStatus(c *gin.Context) {
	status, err := h.registrations.WaitlistStatus(c.Request.Context(), c.Param("studentId"), c.Param("courseId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// StartAutoBatch godoc
// @Summary Start the periodic batch allocation worker
// @Tags Allocations
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /allocations/auto-batch/start [post]
func (h *RegistrationHandler) StartAutoBatch(c *gin.Context) {
	h.registrations.StartAutoBatch(context.Background())
	response.JSON(c, http.StatusOK, gin.H{"auto_batch": "started"}, nil)
}

// StopAutoBatch godoc
// @Summary Stop the periodic batch allocation worker
// @Tags Allocations
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /allocations/auto-batch/stop [post]
func (h *RegistrationHandler) StopAutoBatch(c *gin.Context) {
	h.registrations.StopAutoBatch()
	response.JSON(c, http.StatusOK, gin.H{"auto_batch": "stopped"}, nil)
}

func appliedAt(t *time.Time) time.Time {
	if t == nil {
		return time.Now().UTC()
	}
	return *t
}
