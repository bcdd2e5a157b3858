// Package action defines the caller facing intents that advance a workflow
// instance. The set of actions is closed: every consumer handles them through
// Visitor, so adding a kind breaks every consumer until it is handled.
package action

import (
	"encoding/json"
	"fmt"
)

type ActionType string

const START_WORKFLOW ActionType = "StartWorkflow"
const START_STEP ActionType = "StartStep"
const COMPLETE_STEP ActionType = "CompleteStep"

type Visitor interface {
	VisitStartWorkflow(a StartWorkflow) error
	VisitStartStep(a StartStep) error
	VisitCompleteStep(a CompleteStep) error
}

// Action values are comparable with ==.
type Action interface {
	GetType() ActionType
	Accept(v Visitor) error
	String() string
	sealed()
}

type StartWorkflow struct{}

type StartStep struct {
	StepId string
}

type CompleteStep struct {
	StepId string
}

var _ Action = StartWorkflow{}
var _ Action = StartStep{}
var _ Action = CompleteStep{}

func (StartWorkflow) GetType() ActionType { return START_WORKFLOW }
func (StartStep) GetType() ActionType     { return START_STEP }
func (CompleteStep) GetType() ActionType  { return COMPLETE_STEP }

func (a StartWorkflow) Accept(v Visitor) error { return v.VisitStartWorkflow(a) }
func (a StartStep) Accept(v Visitor) error     { return v.VisitStartStep(a) }
func (a CompleteStep) Accept(v Visitor) error  { return v.VisitCompleteStep(a) }

func (StartWorkflow) String() string  { return "StartWorkflow" }
func (a StartStep) String() string    { return fmt.Sprintf("StartStep(%s)", a.StepId) }
func (a CompleteStep) String() string { return fmt.Sprintf("CompleteStep(%s)", a.StepId) }

func (StartWorkflow) sealed() {}
func (StartStep) sealed()     {}
func (CompleteStep) sealed()  {}

func Contains(actions []Action, a Action) bool {
	for _, candidate := range actions {
		if candidate == a {
			return true
		}
	}
	return false
}

// Request is the wire form of an action.
type Request struct {
	Type   ActionType `json:"type"`
	StepId string     `json:"stepId,omitempty"`
}

type requestBuilder struct {
	req Request
}

func (b *requestBuilder) VisitStartWorkflow(a StartWorkflow) error {
	b.req = Request{Type: START_WORKFLOW}
	return nil
}

func (b *requestBuilder) VisitStartStep(a StartStep) error {
	b.req = Request{Type: START_STEP, StepId: a.StepId}
	return nil
}

func (b *requestBuilder) VisitCompleteStep(a CompleteStep) error {
	b.req = Request{Type: COMPLETE_STEP, StepId: a.StepId}
	return nil
}

func ToRequest(a Action) Request {
	b := &requestBuilder{}
	_ = a.Accept(b)
	return b.req
}

func ToRequests(actions []Action) []Request {
	out := make([]Request, 0, len(actions))
	for _, a := range actions {
		out = append(out, ToRequest(a))
	}
	return out
}

func FromRequest(r Request) (Action, error) {
	switch r.Type {
	case START_WORKFLOW:
		return StartWorkflow{}, nil
	case START_STEP:
		if len(r.StepId) == 0 {
			return nil, fmt.Errorf("action %s requires stepId", r.Type)
		}
		return StartStep{StepId: r.StepId}, nil
	case COMPLETE_STEP:
		if len(r.StepId) == 0 {
			return nil, fmt.Errorf("action %s requires stepId", r.Type)
		}
		return CompleteStep{StepId: r.StepId}, nil
	}
	return nil, fmt.Errorf("invalid action type %s", r.Type)
}

func Decode(data []byte) (Action, error) {
	var r Request
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return FromRequest(r)
}
