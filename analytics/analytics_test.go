package analytics

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mohitkumar/carepath/action"
	"github.com/mohitkumar/carepath/flow"
	"github.com/mohitkumar/carepath/model"
	"github.com/stretchr/testify/require"
)

func readLines(t *testing.T, path string) []map[string]any {
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	var lines []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var line map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &line))
		lines = append(lines, line)
	}
	require.NoError(t, scanner.Err())
	return lines
}

func TestLogFileRecorder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	recorder, err := NewRecorder(RecorderConfig{FileName: path, RecorderType: LOG_FILE_RECORDER})
	require.NoError(t, err)

	current := "si-1"
	instance := &model.WorkflowInstance{Id: "wi-1", TemplateId: "wt-1", PatientId: "p-1", Status: model.ACTIVE, CurrentStepId: &current, Version: 2}
	recorder.RecordAdvance(instance, action.StartWorkflow{}, []flow.Operation{
		flow.SetWorkflowStatus{Status: model.ACTIVE},
		flow.SetStepStatus{StepId: "si-1", Status: model.ACTIVE},
	})
	recorder.RecordRejected("wi-1", action.CompleteStep{StepId: "si-2"}, "not available")
	require.NoError(t, recorder.Close())

	lines := readLines(t, path)
	require.Len(t, lines, 2)
	require.Equal(t, "advance", lines[0]["msg"])
	require.Equal(t, "wi-1", lines[0]["instance"])
	require.Equal(t, float64(2), lines[0]["version"])
	require.Equal(t, map[string]any{"type": "StartWorkflow"}, lines[0]["action"])
	require.Len(t, lines[0]["operations"], 2)
	require.Equal(t, "rejected", lines[1]["msg"])
	require.Equal(t, map[string]any{"type": "CompleteStep", "stepId": "si-2"}, lines[1]["action"])
	require.Contains(t, lines[1], "ts")
}

func TestNoopRecorderByDefault(t *testing.T) {
	recorder, err := NewRecorder(RecorderConfig{})
	require.NoError(t, err)
	require.Equal(t, NoopRecorder{}, recorder)
	require.NoError(t, recorder.Close())
}
