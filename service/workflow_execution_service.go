package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/mohitkumar/carepath/action"
	"github.com/mohitkumar/carepath/analytics"
	"github.com/mohitkumar/carepath/catalogue"
	"github.com/mohitkumar/carepath/flow"
	"github.com/mohitkumar/carepath/logger"
	"github.com/mohitkumar/carepath/metadata"
	"github.com/mohitkumar/carepath/model"
	"github.com/mohitkumar/carepath/persistence"
	"go.uber.org/zap"
)

var ErrInvalidRequest = errors.New("invalid request")

// WorkflowExecutionService loads an instance, plans an action against it,
// applies the plan and saves the result. Saves are version checked, so of
// two callers advancing the same instance one gets ErrVersionConflict.
type WorkflowExecutionService struct {
	metadataService metadata.MetadataService
	instances       persistence.InstanceStorage
	records         persistence.RecordStorage
	cache           *catalogue.QueryCache
	planner         *flow.Planner
	recorder        analytics.OperationRecorder
}

// NewWorkflowExecutionService accepts a nil cache when queries are not
// cached.
func NewWorkflowExecutionService(metadataService metadata.MetadataService, storage persistence.Storage,
	resolver flow.VariableResolver, cache *catalogue.QueryCache, recorder analytics.OperationRecorder) *WorkflowExecutionService {
	return &WorkflowExecutionService{
		metadataService: metadataService,
		instances:       storage,
		records:         storage,
		cache:           cache,
		planner:         flow.NewPlanner(resolver),
		recorder:        recorder,
	}
}

func (s *WorkflowExecutionService) CreateInstance(ctx context.Context, templateId string, patientId string) (*model.WorkflowInstance, error) {
	if len(templateId) == 0 || len(patientId) == 0 {
		return nil, fmt.Errorf("%w: templateId and patientId are required", ErrInvalidRequest)
	}
	template, err := s.metadataService.GetTemplate(ctx, templateId)
	if err != nil {
		return nil, err
	}
	instance := flow.GenerateInstance(template, patientId)
	if err := s.instances.SaveInstance(ctx, instance); err != nil {
		return nil, err
	}
	logger.Info("created workflow instance", zap.String("template", templateId), zap.String("instance", instance.Id))
	return instance, nil
}

func (s *WorkflowExecutionService) GetInstance(ctx context.Context, instanceId string) (*model.WorkflowInstance, error) {
	return s.instances.GetInstance(ctx, instanceId)
}

func (s *WorkflowExecutionService) AvailableActions(ctx context.Context, instanceId string) ([]action.Action, error) {
	view, err := s.load(ctx, instanceId)
	if err != nil {
		return nil, err
	}
	return s.planner.AvailableActions(ctx, view)
}

// Preview returns the operations act would apply without saving anything.
func (s *WorkflowExecutionService) Preview(ctx context.Context, instanceId string, act action.Action) ([]flow.Operation, error) {
	view, err := s.load(ctx, instanceId)
	if err != nil {
		return nil, err
	}
	return s.planner.Operations(ctx, view, act)
}

func (s *WorkflowExecutionService) Advance(ctx context.Context, instanceId string, act action.Action) (*model.WorkflowInstance, []flow.Operation, error) {
	view, err := s.load(ctx, instanceId)
	if err != nil {
		return nil, nil, err
	}
	ops, err := s.planner.Operations(ctx, view, act)
	if err != nil {
		if errors.Is(err, flow.ErrInvalidAction) {
			s.recorder.RecordRejected(instanceId, act, err.Error())
		}
		return nil, nil, err
	}
	instance := view.Instance()
	if err := flow.ApplyAll(ops, instance); err != nil {
		return nil, nil, err
	}
	if err := s.instances.SaveInstance(ctx, instance); err != nil {
		logger.Error("error saving workflow instance", zap.String("instance", instanceId), zap.String("action", act.String()), zap.Error(err))
		return nil, nil, err
	}
	s.recorder.RecordAdvance(instance, act, ops)
	logger.Debug("advanced workflow instance", zap.String("instance", instanceId), zap.String("action", act.String()), zap.Int("operations", len(ops)))
	return instance, ops, nil
}

// NextStep explains which branch the instance would take out of a template
// step.
func (s *WorkflowExecutionService) NextStep(ctx context.Context, instanceId string, templateStepId string) (*flow.BranchSelection, error) {
	view, err := s.load(ctx, instanceId)
	if err != nil {
		return nil, err
	}
	return s.planner.NextStep(ctx, view, templateStepId)
}

func (s *WorkflowExecutionService) EvaluateBranch(ctx context.Context, templateId string, stepId string, index int, patientId string) (flow.BranchEvaluation, error) {
	if len(patientId) == 0 {
		return flow.BranchEvaluation{}, fmt.Errorf("%w: patientId is required", ErrInvalidRequest)
	}
	template, err := s.metadataService.GetTemplate(ctx, templateId)
	if err != nil {
		return flow.BranchEvaluation{}, err
	}
	view, err := flow.NewView(template, &model.WorkflowInstance{TemplateId: template.Id})
	if err != nil {
		return flow.BranchEvaluation{}, err
	}
	step, err := view.TemplateStep(stepId)
	if err != nil {
		return flow.BranchEvaluation{}, err
	}
	if index < 0 || index >= len(step.Branches) {
		return flow.BranchEvaluation{}, &flow.NotFoundError{Kind: "branch", Id: fmt.Sprintf("%s[%d]", stepId, index)}
	}
	return s.planner.EvaluateBranch(ctx, step.Branches[index], patientId)
}

// SaveRecord stores a clinical record and drops its cached query result.
func (s *WorkflowExecutionService) SaveRecord(ctx context.Context, object string, patientId string, record catalogue.Record) error {
	if err := s.records.SaveRecord(ctx, object, patientId, record); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.Invalidate(object, patientId)
	}
	return nil
}

func (s *WorkflowExecutionService) load(ctx context.Context, instanceId string) (*flow.View, error) {
	instance, err := s.instances.GetInstance(ctx, instanceId)
	if err != nil {
		return nil, err
	}
	template, err := s.metadataService.GetTemplate(ctx, instance.TemplateId)
	if err != nil {
		return nil, err
	}
	return flow.NewView(template, instance)
}
