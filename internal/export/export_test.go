package export

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/verte-zerg/rtscope/internal/model"
	"github.com/verte-zerg/rtscope/internal/stats"
)

func sampleReport() stats.Report {
	results := []model.ParticipantResult{{
		ID:        "P01",
		File:      "P01-run.csv",
		RawTrials: 6,
		Conditions: []model.ConditionSummary{
			{Label: "2", N: 3, Mean: 500, StdDev: 5, StdErr: 2},
			{Label: "4", N: 3, Mean: 550, StdDev: 5, StdErr: 2},
		},
		Fits: []model.SegmentFit{{Name: "left", Slope: 50, Intercept: 450, R2: 1}},
	}}
	return stats.BuildReport("data", stats.DefaultAnalysis(), results, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
}

func TestFormatFor(t *testing.T) {
	assert.Equal(t, FormatJSON, FormatFor("out/report.JSON"))
	assert.Equal(t, FormatYAML, FormatFor("report.yaml"))
	assert.Equal(t, FormatYAML, FormatFor("report"))
}

func TestEncodeYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, FormatYAML, sampleReport()))

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "data", decoded["input_dir"])
	participants := decoded["participants"].([]any)
	require.Len(t, participants, 1)
	p := participants[0].(map[string]any)
	assert.Equal(t, "P01", p["id"])
	assert.Contains(t, buf.String(), "delay_ms: 150")
}

func TestWriteFileJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "run.json")
	require.NoError(t, WriteFile(path, sampleReport()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var rep stats.Report
	require.NoError(t, json.Unmarshal(data, &rep))
	require.Len(t, rep.Participants, 1)
	assert.Equal(t, 3.92, rep.Participants[0].Conditions[1].CI)
	assert.Equal(t, "left", rep.Participants[0].Fits[0].Segment)
}

func TestEncodeRejectsUnknownFormat(t *testing.T) {
	require.Error(t, Encode(&bytes.Buffer{}, "toml", sampleReport()))
}
