package flow

import (
	"fmt"

	"github.com/mohitkumar/carepath/model"
)

type OperationType string

const SET_WORKFLOW_STATUS OperationType = "SetWorkflowStatus"
const SET_CURRENT_STEP OperationType = "SetCurrentStep"
const SET_STEP_STATUS OperationType = "SetStepStatus"

type OperationVisitor interface {
	VisitSetWorkflowStatus(op SetWorkflowStatus) error
	VisitSetCurrentStep(op SetCurrentStep) error
	VisitSetStepStatus(op SetStepStatus) error
}

// Operation is a single state mutation emitted by the planner. Operations of
// one plan must be applied in order.
type Operation interface {
	GetType() OperationType
	Accept(v OperationVisitor) error
	String() string
	sealed()
}

type SetWorkflowStatus struct {
	Status model.Status
}

// SetCurrentStep with a nil StepId clears the current step.
type SetCurrentStep struct {
	StepId *string
}

type SetStepStatus struct {
	StepId string
	Status model.Status
}

var _ Operation = SetWorkflowStatus{}
var _ Operation = SetCurrentStep{}
var _ Operation = SetStepStatus{}

func (SetWorkflowStatus) GetType() OperationType { return SET_WORKFLOW_STATUS }
func (SetCurrentStep) GetType() OperationType    { return SET_CURRENT_STEP }
func (SetStepStatus) GetType() OperationType     { return SET_STEP_STATUS }

func (op SetWorkflowStatus) Accept(v OperationVisitor) error { return v.VisitSetWorkflowStatus(op) }
func (op SetCurrentStep) Accept(v OperationVisitor) error    { return v.VisitSetCurrentStep(op) }
func (op SetStepStatus) Accept(v OperationVisitor) error     { return v.VisitSetStepStatus(op) }

func (op SetWorkflowStatus) String() string {
	return fmt.Sprintf("SetWorkflowStatus(%s)", op.Status)
}

func (op SetCurrentStep) String() string {
	if op.StepId == nil {
		return "SetCurrentStep(nil)"
	}
	return fmt.Sprintf("SetCurrentStep(%s)", *op.StepId)
}

func (op SetStepStatus) String() string {
	return fmt.Sprintf("SetStepStatus(%s, %s)", op.StepId, op.Status)
}

func (SetWorkflowStatus) sealed() {}
func (SetCurrentStep) sealed()    {}
func (SetStepStatus) sealed()     {}

func setCurrentStep(stepId string) SetCurrentStep {
	return SetCurrentStep{StepId: &stepId}
}

type applier struct {
	instance *model.WorkflowInstance
}

func (a *applier) VisitSetWorkflowStatus(op SetWorkflowStatus) error {
	a.instance.Status = op.Status
	return nil
}

func (a *applier) VisitSetCurrentStep(op SetCurrentStep) error {
	if op.StepId == nil {
		a.instance.CurrentStepId = nil
		return nil
	}
	id := *op.StepId
	a.instance.CurrentStepId = &id
	return nil
}

func (a *applier) VisitSetStepStatus(op SetStepStatus) error {
	for i := range a.instance.Steps {
		if a.instance.Steps[i].Id == op.StepId {
			a.instance.Steps[i].Status = op.Status
			return nil
		}
	}
	return &NotFoundError{Kind: "instance step", Id: op.StepId}
}

// Apply mutates instance in place. The planner already validated the
// operation; the only failure is a step id the instance does not have.
func Apply(op Operation, instance *model.WorkflowInstance) error {
	return op.Accept(&applier{instance: instance})
}

func ApplyAll(ops []Operation, instance *model.WorkflowInstance) error {
	for _, op := range ops {
		if err := Apply(op, instance); err != nil {
			return fmt.Errorf("applying %s: %w", op, err)
		}
	}
	return nil
}

// OperationRecord is the wire and audit form of an operation.
type OperationRecord struct {
	Type   OperationType `json:"type"`
	StepId *string       `json:"stepId,omitempty"`
	Status model.Status  `json:"status,omitempty"`
}

type recordBuilder struct {
	rec OperationRecord
}

func (b *recordBuilder) VisitSetWorkflowStatus(op SetWorkflowStatus) error {
	b.rec = OperationRecord{Type: SET_WORKFLOW_STATUS, Status: op.Status}
	return nil
}

func (b *recordBuilder) VisitSetCurrentStep(op SetCurrentStep) error {
	b.rec = OperationRecord{Type: SET_CURRENT_STEP, StepId: op.StepId}
	return nil
}

func (b *recordBuilder) VisitSetStepStatus(op SetStepStatus) error {
	id := op.StepId
	b.rec = OperationRecord{Type: SET_STEP_STATUS, StepId: &id, Status: op.Status}
	return nil
}

func ToRecords(ops []Operation) []OperationRecord {
	out := make([]OperationRecord, 0, len(ops))
	for _, op := range ops {
		b := &recordBuilder{}
		_ = op.Accept(b)
		out = append(out, b.rec)
	}
	return out
}

// FromRecord rebuilds an operation from its record, for replaying an audit
// trail against a freshly generated instance.
func FromRecord(rec OperationRecord) (Operation, error) {
	switch rec.Type {
	case SET_WORKFLOW_STATUS:
		if !rec.Status.Valid() {
			return nil, fmt.Errorf("invalid status %q", rec.Status)
		}
		return SetWorkflowStatus{Status: rec.Status}, nil
	case SET_CURRENT_STEP:
		if rec.StepId == nil {
			return SetCurrentStep{}, nil
		}
		return setCurrentStep(*rec.StepId), nil
	case SET_STEP_STATUS:
		if rec.StepId == nil || !rec.Status.Valid() {
			return nil, fmt.Errorf("SetStepStatus requires stepId and a valid status")
		}
		return SetStepStatus{StepId: *rec.StepId, Status: rec.Status}, nil
	}
	return nil, fmt.Errorf("invalid operation type %s", rec.Type)
}
