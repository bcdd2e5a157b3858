package flow

import (
	"context"
	"fmt"

	"github.com/mohitkumar/carepath/action"
	"github.com/mohitkumar/carepath/logger"
	"github.com/mohitkumar/carepath/model"
	"github.com/mohitkumar/carepath/rule"
	"go.uber.org/zap"
)

// Planner decides which actions are available for a view and which operations
// realize an action. It never mutates the view; the only state it holds is
// the resolver used to evaluate branch conditions.
type Planner struct {
	resolver VariableResolver
}

func NewPlanner(resolver VariableResolver) *Planner {
	return &Planner{resolver: resolver}
}

func (p *Planner) AvailableActions(ctx context.Context, view *View) ([]action.Action, error) {
	if view.Status() == model.PENDING {
		return []action.Action{action.StartWorkflow{}}, nil
	}
	current, err := view.CurrentStep()
	if err != nil {
		return nil, err
	}
	if current == nil {
		return []action.Action{}, nil
	}
	switch current.Status {
	case model.PENDING:
		return []action.Action{action.StartStep{StepId: current.Id}}, nil
	case model.ACTIVE:
		return []action.Action{action.CompleteStep{StepId: current.Id}}, nil
	case model.COMPLETED:
		next, err := p.nextInstanceStep(ctx, view, current.TemplateStepId)
		if err != nil {
			return nil, err
		}
		if next == nil {
			return []action.Action{}, nil
		}
		return []action.Action{action.StartStep{StepId: next.Id}}, nil
	}
	return nil, fmt.Errorf("instance step %s has invalid status %q", current.Id, current.Status)
}

// Operations fails with *InvalidActionError, before computing anything, when
// act is not currently available.
func (p *Planner) Operations(ctx context.Context, view *View, act action.Action) ([]Operation, error) {
	available, err := p.AvailableActions(ctx, view)
	if err != nil {
		return nil, err
	}
	if !action.Contains(available, act) {
		return nil, &InvalidActionError{Action: act, Available: available}
	}
	op := &operationPlanner{ctx: ctx, planner: p, view: view}
	if err := act.Accept(op); err != nil {
		return nil, err
	}
	return op.ops, nil
}

// NextStep explains which branch of a template step would be taken for the
// instance's patient.
func (p *Planner) NextStep(ctx context.Context, view *View, templateStepId string) (*BranchSelection, error) {
	step, err := view.TemplateStep(templateStepId)
	if err != nil {
		return nil, err
	}
	return SelectBranch(ctx, step, view.Instance().PatientId, p.resolver)
}

func (p *Planner) EvaluateBranch(ctx context.Context, branch model.Branch, patientId string) (BranchEvaluation, error) {
	return EvaluateBranch(ctx, branch, patientId, p.resolver)
}

func (p *Planner) nextInstanceStep(ctx context.Context, view *View, templateStepId string) (*model.InstanceStep, error) {
	sel, err := p.NextStep(ctx, view, templateStepId)
	if err != nil {
		return nil, err
	}
	for _, ev := range sel.Evaluations {
		if ev.Status == rule.UNKNOWN {
			logger.Info("branch condition undecided, skipping branch",
				zap.String("instance", view.Instance().Id),
				zap.String("step", templateStepId),
				zap.String("target", ev.TargetStepId),
				zap.Strings("missing", ev.MissingVariables))
		}
	}
	if sel.TargetStepId == nil {
		return nil, nil
	}
	next, err := view.InstanceStepForTemplateStep(*sel.TargetStepId)
	if err != nil {
		return nil, err
	}
	if next.Status != model.PENDING {
		return nil, fmt.Errorf("%w: instance step %s is %s", ErrStepRegression, next.Id, next.Status)
	}
	return next, nil
}

type operationPlanner struct {
	ctx     context.Context
	planner *Planner
	view    *View
	ops     []Operation
}

func (o *operationPlanner) VisitStartWorkflow(a action.StartWorkflow) error {
	start, err := o.view.StartingStep()
	if err != nil {
		return err
	}
	step, err := o.view.InstanceStepForTemplateStep(start.Id)
	if err != nil {
		return err
	}
	o.ops = []Operation{
		SetWorkflowStatus{Status: model.ACTIVE},
		setCurrentStep(step.Id),
		SetStepStatus{StepId: step.Id, Status: model.ACTIVE},
	}
	return nil
}

func (o *operationPlanner) VisitStartStep(a action.StartStep) error {
	current := o.view.CurrentStepId()
	if current == nil || *current != a.StepId {
		o.ops = append(o.ops, setCurrentStep(a.StepId))
	}
	o.ops = append(o.ops, SetStepStatus{StepId: a.StepId, Status: model.ACTIVE})
	return nil
}

func (o *operationPlanner) VisitCompleteStep(a action.CompleteStep) error {
	step, err := o.view.InstanceStep(a.StepId)
	if err != nil {
		return err
	}
	o.ops = []Operation{SetStepStatus{StepId: a.StepId, Status: model.COMPLETED}}
	next, err := o.planner.nextInstanceStep(o.ctx, o.view, step.TemplateStepId)
	if err != nil {
		return err
	}
	if next == nil {
		o.ops = append(o.ops, SetCurrentStep{}, SetWorkflowStatus{Status: model.COMPLETED})
	}
	return nil
}
