package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportRosterAndWaitlist(t *testing.T) {
	svc, _ := newTestRegistrationService(t)
	ctx := context.Background()

	addCourse(t, svc, "C1", 1)
	require.True(t, svc.OpenBooking(ctx, "C1"))
	addStudent(t, svc, "S1", 3.8)
	addStudent(t, svc, "S2", 3.0)

	for _, id := range []string{"S1", "S2"} {
		_, err := svc.Apply(ctx, id, "C1", time.Now())
		require.NoError(t, err)
	}
	_, _, err := svc.RunAllocation(ctx, nil)
	require.NoError(t, err)

	exports := NewExportService(svc, nil)

	data, filename, err := exports.RosterCSV(ctx, "C1")
	require.NoError(t, err)
	assert.Equal(t, "roster_C1.csv", filename)
	assert.Contains(t, string(data), "S1")
	assert.NotContains(t, string(data), "S2", "waitlisted students are not on the roster")

	data, filename, err = exports.WaitlistCSV(ctx, "C1")
	require.NoError(t, err)
	assert.Equal(t, "waitlist_C1.csv", filename)
	assert.Contains(t, string(data), "S2")

	data, filename, err = exports.RosterPDF(ctx, "C1")
	require.NoError(t, err)
	assert.Equal(t, "roster_C1.pdf", filename)
	assert.True(t, strings.HasPrefix(string(data), "%PDF"))

	_, _, err = exports.RosterCSV(ctx, "ghost")
	require.Error(t, err)
}
