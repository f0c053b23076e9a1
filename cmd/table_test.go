package cmd

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"DubFlow/model"
	"DubFlow/storage"
)

func TestRenderTableVoices(t *testing.T) {
	catalog := model.VoiceCatalog()
	out := renderTable([]string{"Name", "Characteristics", "Recommended for"}, voiceRows(catalog), nil)

	assert.Contains(t, out, "Name")
	assert.Contains(t, out, "Recommended for")
	assert.Contains(t, out, "╭", "rounded style")
	for _, v := range catalog {
		assert.Contains(t, out, string(v.Name))
	}
	// header, rule, one line per voice, plus top and bottom borders
	assert.Equal(t, len(catalog)+4, len(strings.Split(out, "\n")))
}

func TestRenderTablePadsShortRows(t *testing.T) {
	out := renderTable([]string{"A", "B"}, [][]string{{"only"}}, []columnAlignment{alignLeft, alignRight})
	assert.Contains(t, out, "only")
	assert.Empty(t, renderTable(nil, [][]string{{"x"}}, nil))
}

func TestResultAndObjectRows(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rows := resultRows([]*model.DubbingResult{{RequestID: "req-1", Status: model.StatusCompleted, CreatedAt: created}})
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"req-1", "completed", "2026-01-02 03:04:05"}, rows[0])

	objRows := objectRows([]storage.ObjectInfo{{Key: "outputs/req-1.wav", Size: 2048, LastModified: created}})
	require.Len(t, objRows, 1)
	assert.Equal(t, []string{"outputs/req-1.wav", "2.0 KB", "2026-01-02 03:04:05"}, objRows[0])
}
