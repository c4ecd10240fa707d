package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVExporterRender(t *testing.T) {
	data := Dataset{
		Headers: []string{"Metric", "Value"},
		Rows: [][]string{
			{"Attendance Rate", "87%"},
			{"Note, with comma"},
		},
	}
	out, err := NewCSVExporter().Render(data)
	require.NoError(t, err)
	assert.Equal(t, "Metric,Value\nAttendance Rate,87%\n\"Note, with comma\",\n", string(out))
}

func TestCSVExporterRejectsWideRows(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{Headers: []string{"a"}, Rows: [][]string{{"1", "2"}}})
	assert.Error(t, err)

	_, err = NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	data := Dataset{
		Title:   "Module Hotspots",
		Headers: []string{"Course", "Absence Rate"},
		Rows:    [][]string{{"CS101", "22%"}, {"MA201", "18%"}},
	}
	out, err := NewPDFExporter().Render(data)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestTruncate(t *testing.T) {
	long := "Introduction to Computational Thinking and Problem Solving"
	got := truncate(long)
	assert.Len(t, []rune(got), maxCellRunes)
	assert.Equal(t, "short", truncate("short"))
}
