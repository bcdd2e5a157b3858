package action

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestContains(t *testing.T) {
	available := []Action{StartStep{StepId: "si-1"}}
	require.True(t, Contains(available, StartStep{StepId: "si-1"}))
	require.False(t, Contains(available, StartStep{StepId: "si-2"}))
	require.False(t, Contains(available, CompleteStep{StepId: "si-1"}))
	require.False(t, Contains(nil, StartWorkflow{}))
}

func TestRequest(t *testing.T) {
	for scenario, a := range map[string]Action{
		"start workflow": StartWorkflow{},
		"start step":     StartStep{StepId: "si-1"},
		"complete step":  CompleteStep{StepId: "si-2"},
	} {
		t.Run(scenario, func(t *testing.T) {
			got, err := FromRequest(ToRequest(a))
			require.NoError(t, err)
			require.Equal(t, a, got)
		})
	}
}

func TestDecode(t *testing.T) {
	a, err := Decode([]byte(`{"type": "CompleteStep", "stepId": "si-3"}`))
	require.NoError(t, err)
	require.Equal(t, CompleteStep{StepId: "si-3"}, a)
	require.Equal(t, "CompleteStep(si-3)", a.String())

	_, err = Decode([]byte(`{"type": "StartStep"}`))
	require.Error(t, err)
	_, err = Decode([]byte(`{"type": "Skip", "stepId": "si-1"}`))
	require.Error(t, err)
	_, err = Decode([]byte(`not json`))
	require.Error(t, err)
}
