package model

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

type Status string

const PENDING Status = "Pending"
const ACTIVE Status = "Active"
const COMPLETED Status = "Completed"

func (s Status) Valid() bool {
	switch s {
	case PENDING, ACTIVE, COMPLETED:
		return true
	}
	return false
}

type WorkflowTemplate struct {
	Id             string         `json:"id" yaml:"id"`
	Name           string         `json:"name" yaml:"name"`
	StartingStepId string         `json:"startingStepId" yaml:"startingStepId"`
	Steps          []TemplateStep `json:"steps" yaml:"steps"`
}

type TemplateStep struct {
	Id       string   `json:"id" yaml:"id"`
	Name     string   `json:"name" yaml:"name"`
	FormId   *string  `json:"formId,omitempty" yaml:"formId,omitempty"`
	Branches []Branch `json:"branches,omitempty" yaml:"branches,omitempty"`
}

// IsTerminal reports whether the step has no outgoing branches.
func (s TemplateStep) IsTerminal() bool {
	return len(s.Branches) == 0
}

type Branch struct {
	TargetStepId string     `json:"targetStepId" yaml:"targetStepId"`
	Condition    *Condition `json:"condition,omitempty" yaml:"condition,omitempty"`
}

// Condition is a rule in JSON logic form plus the datasource variables
// the template author declared for it.
type Condition struct {
	Rule        json.RawMessage `json:"rule" yaml:"-"`
	DataSources []string        `json:"dataSources" yaml:"dataSources"`
}

type WorkflowInstance struct {
	Id            string         `json:"id"`
	TemplateId    string         `json:"templateId"`
	PatientId     string         `json:"patientId"`
	Status        Status         `json:"status"`
	CurrentStepId *string        `json:"currentStepId"`
	Steps         []InstanceStep `json:"steps"`
	Version       int64          `json:"version"`
}

type InstanceStep struct {
	Id             string `json:"id"`
	TemplateStepId string `json:"templateStepId"`
	Status         Status `json:"status"`
}

type CreateInstanceRequest struct {
	TemplateId string `json:"templateId"`
	PatientId  string `json:"patientId"`
}

func (c *Condition) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Rule        any      `yaml:"rule"`
		DataSources []string `yaml:"dataSources"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	if raw.Rule == nil {
		return fmt.Errorf("condition at line %d has no rule", node.Line)
	}
	rule, err := json.Marshal(raw.Rule)
	if err != nil {
		return fmt.Errorf("condition rule is not representable as json: %w", err)
	}
	c.Rule = rule
	c.DataSources = raw.DataSources
	return nil
}
