package flow

import (
	"github.com/google/uuid"
	"github.com/mohitkumar/carepath/model"
)

// GenerateInstance creates a Pending instance with one Pending step per
// template step, in template order.
func GenerateInstance(template *model.WorkflowTemplate, patientId string) *model.WorkflowInstance {
	return generateInstance(template, patientId, func() string { return uuid.New().String() })
}

func generateInstance(template *model.WorkflowTemplate, patientId string, newId func() string) *model.WorkflowInstance {
	instanceId := newId()
	steps := make([]model.InstanceStep, 0, len(template.Steps))
	for _, ts := range template.Steps {
		steps = append(steps, model.InstanceStep{
			Id:             newId(),
			TemplateStepId: ts.Id,
			Status:         model.PENDING,
		})
	}
	return &model.WorkflowInstance{
		Id:         instanceId,
		TemplateId: template.Id,
		PatientId:  patientId,
		Status:     model.PENDING,
		Steps:      steps,
	}
}
