package flow

import (
	"fmt"

	"github.com/mohitkumar/carepath/model"
)

// View is a read only index over a template and one of its instances. It
// borrows both; after operations are applied to the instance call Refresh or
// build a new View.
type View struct {
	template                   *model.WorkflowTemplate
	instance                   *model.WorkflowInstance
	templateSteps              map[string]*model.TemplateStep
	instanceSteps              map[string]*model.InstanceStep
	instanceStepByTemplateStep map[string]string
}

func NewView(template *model.WorkflowTemplate, instance *model.WorkflowInstance) (*View, error) {
	if template == nil || instance == nil {
		return nil, fmt.Errorf("view requires both template and instance")
	}
	if instance.TemplateId != template.Id {
		return nil, fmt.Errorf("instance %s belongs to template %s, not %s", instance.Id, instance.TemplateId, template.Id)
	}
	v := &View{
		template: template,
		instance: instance,
	}
	v.Refresh()
	return v, nil
}

func (v *View) Refresh() {
	v.templateSteps = make(map[string]*model.TemplateStep, len(v.template.Steps))
	for i := range v.template.Steps {
		step := &v.template.Steps[i]
		v.templateSteps[step.Id] = step
	}
	v.instanceSteps = make(map[string]*model.InstanceStep, len(v.instance.Steps))
	v.instanceStepByTemplateStep = make(map[string]string, len(v.instance.Steps))
	for i := range v.instance.Steps {
		step := &v.instance.Steps[i]
		v.instanceSteps[step.Id] = step
		v.instanceStepByTemplateStep[step.TemplateStepId] = step.Id
	}
}

func (v *View) Template() *model.WorkflowTemplate {
	return v.template
}

func (v *View) Instance() *model.WorkflowInstance {
	return v.instance
}

func (v *View) Status() model.Status {
	return v.instance.Status
}

func (v *View) CurrentStepId() *string {
	return v.instance.CurrentStepId
}

func (v *View) InstanceStep(stepId string) (*model.InstanceStep, error) {
	step, ok := v.instanceSteps[stepId]
	if !ok {
		return nil, &NotFoundError{Kind: "instance step", Id: stepId}
	}
	return step, nil
}

func (v *View) TemplateStep(stepId string) (*model.TemplateStep, error) {
	step, ok := v.templateSteps[stepId]
	if !ok {
		return nil, &NotFoundError{Kind: "template step", Id: stepId}
	}
	return step, nil
}

// InstanceStepForTemplateStep fails only on a corrupted instance, one that
// is missing the step generated for a template step.
func (v *View) InstanceStepForTemplateStep(templateStepId string) (*model.InstanceStep, error) {
	id, ok := v.instanceStepByTemplateStep[templateStepId]
	if !ok {
		return nil, &NotFoundError{Kind: "instance step for template step", Id: templateStepId}
	}
	return v.InstanceStep(id)
}

func (v *View) StartingStep() (*model.TemplateStep, error) {
	return v.TemplateStep(v.template.StartingStepId)
}

// CurrentStep returns nil when the instance has not started or has completed.
func (v *View) CurrentStep() (*model.InstanceStep, error) {
	if v.instance.CurrentStepId == nil {
		return nil, nil
	}
	return v.InstanceStep(*v.instance.CurrentStepId)
}
