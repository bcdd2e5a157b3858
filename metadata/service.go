package metadata

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mohitkumar/carepath/catalogue"
	"github.com/mohitkumar/carepath/logger"
	"github.com/mohitkumar/carepath/model"
	"github.com/mohitkumar/carepath/persistence"
	"github.com/mohitkumar/carepath/rule"
	"go.uber.org/zap"
)

var ErrInvalidTemplate = errors.New("invalid template")

// ValidationError lists every problem found in a template, not only the first.
type ValidationError struct {
	TemplateId string
	Problems   []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("template %s is invalid: %s", e.TemplateId, strings.Join(e.Problems, "; "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidTemplate
}

type MetadataService interface {
	GetTemplate(ctx context.Context, id string) (*model.WorkflowTemplate, error)
	SaveTemplate(ctx context.Context, template model.WorkflowTemplate) error
	ValidateTemplate(template model.WorkflowTemplate) error
}

type MetadataServiceImpl struct {
	storage   persistence.TemplateStorage
	catalogue *catalogue.Catalogue
}

// NewMetadataService checks condition variables against cat when it is not
// nil.
func NewMetadataService(storage persistence.TemplateStorage, cat *catalogue.Catalogue) MetadataService {
	return &MetadataServiceImpl{
		storage:   storage,
		catalogue: cat,
	}
}

func (s *MetadataServiceImpl) GetTemplate(ctx context.Context, id string) (*model.WorkflowTemplate, error) {
	return s.storage.GetTemplate(ctx, id)
}

func (s *MetadataServiceImpl) SaveTemplate(ctx context.Context, template model.WorkflowTemplate) error {
	if err := s.ValidateTemplate(template); err != nil {
		return err
	}
	return s.storage.SaveTemplate(ctx, template)
}

func (s *MetadataServiceImpl) ValidateTemplate(template model.WorkflowTemplate) error {
	var problems []string
	report := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}
	if len(template.Id) == 0 {
		report("template id is empty")
	}
	steps := make(map[string]*model.TemplateStep, len(template.Steps))
	for i := range template.Steps {
		step := &template.Steps[i]
		if len(step.Id) == 0 {
			report("step at index %d has no id", i)
			continue
		}
		if _, ok := steps[step.Id]; ok {
			report("step id %s is duplicate", step.Id)
			continue
		}
		steps[step.Id] = step
	}
	if _, ok := steps[template.StartingStepId]; !ok {
		report("no step with starting step id %s in template", template.StartingStepId)
	}
	for _, step := range template.Steps {
		for i, branch := range step.Branches {
			if _, ok := steps[branch.TargetStepId]; !ok {
				report("step %s branch %d targets undefined step %s", step.Id, i, branch.TargetStepId)
			}
			if branch.Condition != nil {
				for _, p := range s.validateCondition(*branch.Condition) {
					report("step %s branch %d: %s", step.Id, i, p)
				}
			}
		}
	}
	if len(problems) == 0 {
		if cycle := findCycle(template, steps); cycle != nil {
			report("steps form a cycle: %s", strings.Join(cycle, " -> "))
		}
	}
	if len(problems) > 0 {
		return &ValidationError{TemplateId: template.Id, Problems: problems}
	}
	for _, id := range unreachable(template, steps) {
		logger.Warn("template step is unreachable from the starting step", zap.String("template", template.Id), zap.String("step", id))
	}
	return nil
}

func (s *MetadataServiceImpl) validateCondition(cond model.Condition) []string {
	var problems []string
	expr, err := rule.Parse(cond.Rule)
	if err != nil {
		return []string{err.Error()}
	}
	if missing := rule.CheckDatasources(expr, cond.DataSources); len(missing) > 0 {
		problems = append(problems, fmt.Sprintf("variables missing from datasources: %s", strings.Join(missing, ", ")))
	}
	for _, name := range cond.DataSources {
		object, _, ok := catalogue.SplitVariable(name)
		if !ok {
			problems = append(problems, fmt.Sprintf("datasource %s is not of the form object.attribute", name))
			continue
		}
		if s.catalogue == nil {
			continue
		}
		if _, ok := s.catalogue.Object(object); !ok {
			problems = append(problems, fmt.Sprintf("datasource %s refers to unknown object %s", name, object))
		}
	}
	return problems
}

// findCycle returns the step ids of one cycle, or nil. Steps are assumed to
// exist; callers check targets first.
func findCycle(template model.WorkflowTemplate, steps map[string]*model.TemplateStep) []string {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(steps))
	var path []string
	var visit func(id string) []string
	visit = func(id string) []string {
		switch state[id] {
		case visiting:
			for i, p := range path {
				if p == id {
					return append(append([]string{}, path[i:]...), id)
				}
			}
		case done:
			return nil
		}
		state[id] = visiting
		path = append(path, id)
		for _, b := range steps[id].Branches {
			if cycle := visit(b.TargetStepId); cycle != nil {
				return cycle
			}
		}
		path = path[:len(path)-1]
		state[id] = done
		return nil
	}
	for _, step := range template.Steps {
		if cycle := visit(step.Id); cycle != nil {
			return cycle
		}
	}
	return nil
}

func unreachable(template model.WorkflowTemplate, steps map[string]*model.TemplateStep) []string {
	seen := map[string]bool{}
	queue := []string{template.StartingStepId}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if seen[id] {
			continue
		}
		seen[id] = true
		for _, b := range steps[id].Branches {
			queue = append(queue, b.TargetStepId)
		}
	}
	var out []string
	for _, step := range template.Steps {
		if !seen[step.Id] {
			out = append(out, step.Id)
		}
	}
	return out
}
