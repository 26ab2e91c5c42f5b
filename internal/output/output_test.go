package output

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter_Status_PrintsIconAndMessage(t *testing.T) {
	// Given: a writer with a buffer
	buf := &bytes.Buffer{}
	w := New(buf)

	// When: printing a status message
	w.Status(">", "Recovering store...")

	// Then: output contains icon and message
	assert.Equal(t, "> Recovering store...\n", buf.String())
}

func TestWriter_Levels_PlainIcons(t *testing.T) {
	tests := []struct {
		name  string
		write func(w *Writer)
		want  string
	}{
		{"success", func(w *Writer) { w.Successf("created index %d", 3) }, "✓ created index 3\n"},
		{"warning", func(w *Writer) { w.Warning("daemon not running") }, "! daemon not running\n"},
		{"error", func(w *Writer) { w.Errorf("bad %s", "apikey") }, "✗ bad apikey\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			tt.write(NewWithColor(buf, false))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestNew_BufferIsNotTTY(t *testing.T) {
	// Given: a writer over a buffer
	buf := &bytes.Buffer{}

	// Then: color stays off
	assert.False(t, IsTTY(buf))
	assert.False(t, New(buf).useColor)
}

func TestDetectNoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	assert.True(t, DetectNoColor())

	require.NoError(t, os.Unsetenv("NO_COLOR"))
	assert.False(t, DetectNoColor())
}

func TestWriter_KeyValue_Aligns(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewWithColor(buf, false)

	w.KeyValue("documents", 12)
	w.KeyValue("similarity", "bm25")

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, strings.Index(lines[0], "12"), strings.Index(lines[1], "bm25"))
}

func TestWriter_Table_PadsColumns(t *testing.T) {
	// Given: rows wider than their headers
	buf := &bytes.Buffer{}
	w := NewWithColor(buf, false)

	// When: rendering the table
	w.Table([]string{"ID", "NAME"}, [][]string{{"0", "books"}, {"12", "films"}})

	// Then: every column starts at the same offset
	assert.Equal(t, "ID  NAME\n0   books\n12  films\n", buf.String())
}

func TestWriter_JSON_Indents(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewWithColor(buf, false)

	require.NoError(t, w.JSON(map[string]any{"title": "Dune"}))

	assert.Equal(t, "{\n  \"title\": \"Dune\"\n}\n", buf.String())
}

func TestWriter_Code_PrintsCodeBlock(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Code(`{"key": "value"}`)

	assert.Contains(t, buf.String(), `  {"key": "value"}`)
}

func TestWriter_Progress_PrintsProgressBar(t *testing.T) {
	// Given: a writer with a buffer
	buf := &bytes.Buffer{}
	w := NewWithColor(buf, false)

	// When: printing progress at 50%
	w.Progress(50, 100, "Indexing documents")

	// Then: output contains progress indicator and message
	out := buf.String()
	assert.Contains(t, out, "50%")
	assert.Contains(t, out, "Indexing documents")
	assert.NotContains(t, out, "\n")

	w.Progress(100, 100, "Indexing documents")
	assert.True(t, strings.HasSuffix(buf.String(), "\n"))
}

func TestWriter_Progress_ZeroTotal_NoOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Progress(0, 0, "Processing")

	assert.Empty(t, buf.String())
}

func TestProgressBar_Render(t *testing.T) {
	tests := []struct {
		name     string
		current  int
		total    int
		width    int
		wantFull int // number of filled characters
	}{
		{
			name:     "0 percent",
			current:  0,
			total:    100,
			width:    10,
			wantFull: 0,
		},
		{
			name:     "50 percent",
			current:  50,
			total:    100,
			width:    10,
			wantFull: 5,
		},
		{
			name:     "100 percent",
			current:  100,
			total:    100,
			width:    10,
			wantFull: 10,
		},
		{
			name:     "25 percent",
			current:  25,
			total:    100,
			width:    20,
			wantFull: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bar := renderProgressBar(tt.current, tt.total, tt.width)

			// Count filled characters (█)
			filled := strings.Count(bar, "█")
			assert.Equal(t, tt.wantFull, filled)

			// Total width should be correct
			assert.Equal(t, tt.width, len([]rune(bar)))
		})
	}
}

func TestWriter_Newline_PrintsEmptyLine(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Newline()

	assert.Equal(t, "\n", buf.String())
}
