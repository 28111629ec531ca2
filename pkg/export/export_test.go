package export

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVExporterRender(t *testing.T) {
	exporter := NewCSVExporter()

	data, err := exporter.Render(Table{
		Columns: []string{"Student ID", "Name"},
		Rows: [][]string{
			{"S1", "Ada"},
			{"S2", "Grace, Hopper"},
		},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Student ID,Name", lines[0])
	assert.Equal(t, `S2,"Grace, Hopper"`, lines[2])
}

func TestCSVExporterRejectsMisshapenRows(t *testing.T) {
	exporter := NewCSVExporter()

	_, err := exporter.Render(Table{
		Columns: []string{"A", "B"},
		Rows:    [][]string{{"only one"}},
	})
	require.Error(t, err)

	_, err = exporter.Render(Table{})
	require.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	exporter := NewPDFExporter()

	data, err := exporter.Render(Table{
		Columns: []string{"Position", "Student ID", "Score"},
		Rows: [][]string{
			{"1", "S1", "0.9512"},
			{"2", "S2", "0.8734"},
		},
	}, "Waitlist C1", "Generated 2026-03-01")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "%PDF"), "output must be a PDF document")
}
