// Package analytics keeps an audit trail of the operations applied to
// workflow instances.
package analytics

import (
	"github.com/mohitkumar/carepath/action"
	"github.com/mohitkumar/carepath/flow"
	"github.com/mohitkumar/carepath/model"
)

type RecorderConfig struct {
	FileName     string
	RecorderType RecorderType
}

type RecorderType string

const LOG_FILE_RECORDER RecorderType = "LOG_FILE"
const NOOP_RECORDER RecorderType = "NOOP"

type OperationRecorder interface {
	// RecordAdvance is called after the instance was saved.
	RecordAdvance(instance *model.WorkflowInstance, act action.Action, ops []flow.Operation)
	RecordRejected(instanceId string, act action.Action, reason string)
	Close() error
}

func NewRecorder(config RecorderConfig) (OperationRecorder, error) {
	switch config.RecorderType {
	case LOG_FILE_RECORDER:
		r, err := NewLogFileRecorder(config.FileName)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
	return NoopRecorder{}, nil
}

type NoopRecorder struct{}

var _ OperationRecorder = NoopRecorder{}

func (NoopRecorder) RecordAdvance(instance *model.WorkflowInstance, act action.Action, ops []flow.Operation) {
}

func (NoopRecorder) RecordRejected(instanceId string, act action.Action, reason string) {}

func (NoopRecorder) Close() error { return nil }
