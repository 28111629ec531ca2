package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HarshBti1805/Einstein-Academic-Concierge/internal/dto"
	"github.com/HarshBti1805/Einstein-Academic-Concierge/internal/repository"
	"github.com/HarshBti1805/Einstein-Academic-Concierge/internal/service"
	"github.com/HarshBti1805/Einstein-Academic-Concierge/pkg/config"
)

func newTestServices(t *testing.T) *service.RegistrationService {
	store := repository.NewMemoryWaitlistStore()
	scorer, err := service.NewScoringService(config.ScoringConfig{
		Preset:             config.PresetDefault,
		GPAWeight:          0.35,
		InterestWeight:     0.30,
		TimeWeight:         0.20,
		YearFitWeight:      0.10,
		PrerequisiteWeight: 0.05,
		TimeDecayHours:     168,
		MaxTimeBonus:       1.0,
	}, nil)
	require.NoError(t, err)

	allocator := service.NewAllocationService(store, scorer, config.AllocationConfig{Strategy: config.StrategyBalanced}, time.Second, nil)
	return service.NewRegistrationService(scorer, allocator, store, config.BatchConfig{Interval: time.Minute}, nil, nil)
}

func seedOpenCourse(t *testing.T, svc *service.RegistrationService, courseID string, capacity int) {
	ctx := context.Background()
	_, err := svc.AddCourse(ctx, dto.AddCourseRequest{CourseID: courseID, Name: "Course " + courseID, Capacity: capacity})
	require.NoError(t, err)
	require.True(t, svc.OpenBooking(ctx, courseID))
}

func seedStudent(t *testing.T, svc *service.RegistrationService, studentID string, gpa float64) {
	_, err := svc.AddStudent(context.Background(), dto.AddStudentRequest{StudentID: studentID, Name: "Student " + studentID, GPA: gpa, Year: 2})
	require.NoError(t, err)
}

func postJSON(t *testing.T, handle gin.HandlerFunc, target string, payload interface{}) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, target, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handle(c)
	return w
}

func TestRegistrationHandlerApply(t *testing.T) {
	svc := newTestServices(t)
	seedStudent(t, svc, "S1", 3.4)
	seedOpenCourse(t, svc, "C1", 5)
	handler := NewRegistrationHandler(svc)

	w := postJSON(t, handler.Apply, "/registrations/apply", dto.ApplyRequest{StudentID: "S1", CourseID: "C1"})
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data struct {
			Status           string `json:"status"`
			WaitlistPosition int    `json:"waitlist_position"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "WAITLISTED", envelope.Data.Status)
	assert.Equal(t, 1, envelope.Data.WaitlistPosition)
}

func TestRegistrationHandlerApplyInvalidBody(t *testing.T) {
	handler := NewRegistrationHandler(newTestServices(t))

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/registrations/apply", bytes.NewReader([]byte(`not-json`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Apply(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegistrationHandlerDropoutWithoutFill(t *testing.T) {
	svc := newTestServices(t)
	seedStudent(t, svc, "S1", 3.4)
	seedOpenCourse(t, svc, "C1", 5)
	handler := NewRegistrationHandler(svc)

	// S1 never enrolled, so the dropout is a no-op with no backfill.
	w := postJSON(t, handler.Dropout, "/registrations/dropout", dto.DropoutRequest{StudentID: "S1", CourseID: "C1"})
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, false, envelope.Data["filled"])
}

func TestRegistrationHandlerRunAllocation(t *testing.T) {
	svc := newTestServices(t)
	seedStudent(t, svc, "S1", 3.4)
	seedOpenCourse(t, svc, "C1", 5)
	handler := NewRegistrationHandler(svc)

	_, err := svc.Apply(context.Background(), "S1", "C1", time.Now())
	require.NoError(t, err)

	w := postJSON(t, handler.RunAllocation, "/allocations/run", dto.RunAllocationRequest{})
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data map[string][]struct {
			Status string `json:"status"`
		} `json:"data"`
		Meta map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data["S1"], 1)
	assert.Equal(t, "REGISTERED", envelope.Data["S1"][0].Status)
	assert.EqualValues(t, 1, envelope.Meta["students_allocated"])
	assert.EqualValues(t, 1, envelope.Meta["courses_considered"])
}

func TestCourseHandlerLifecycleUnknownCourse(t *testing.T) {
	svc := newTestServices(t)
	handler := NewCourseHandler(svc, service.NewExportService(svc, nil))

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/courses/ghost/open", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "courseId", Value: "ghost"}}

	handler.OpenBooking(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCourseHandlerExportRosterCSV(t *testing.T) {
	svc := newTestServices(t)
	seedStudent(t, svc, "S1", 3.9)
	seedOpenCourse(t, svc, "C1", 1)
	handler := NewCourseHandler(svc, service.NewExportService(svc, nil))

	_, err := svc.ManualRegister(context.Background(), "S1", "C1")
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/courses/C1/roster/export?format=csv", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "courseId", Value: "C1"}}

	handler.ExportRoster(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, w.Body.String(), "S1")
}
