package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mohitkumar/carepath/catalogue"
	"github.com/mohitkumar/carepath/model"
	"github.com/mohitkumar/carepath/persistence"
	"github.com/mohitkumar/carepath/persistence/memory"
	"github.com/stretchr/testify/require"
)

func validTemplate() model.WorkflowTemplate {
	return model.WorkflowTemplate{
		Id:             "wt-1",
		StartingStepId: "st-1",
		Steps: []model.TemplateStep{
			{Id: "st-1", Branches: []model.Branch{
				{TargetStepId: "st-2", Condition: &model.Condition{
					Rule:        json.RawMessage(`{">=": [{"var": "patient.age"}, 65]}`),
					DataSources: []string{"patient.age"},
				}},
				{TargetStepId: "st-3"},
			}},
			{Id: "st-2", Branches: []model.Branch{{TargetStepId: "st-3"}}},
			{Id: "st-3"},
		},
	}
}

func testService(t *testing.T) MetadataService {
	cat := catalogue.New()
	require.NoError(t, cat.Register("patient", catalogue.Object{Query: func(ctx context.Context, patientId string) (catalogue.Record, error) {
		return nil, nil
	}}))
	return NewMetadataService(memory.NewStorage(), cat)
}

func TestValidateTemplate(t *testing.T) {
	for scenario, tc := range map[string]struct {
		mutate  func(wt *model.WorkflowTemplate)
		problem string
	}{
		"duplicate step": {
			mutate:  func(wt *model.WorkflowTemplate) { wt.Steps[2].Id = "st-2" },
			problem: "step id st-2 is duplicate",
		},
		"missing starting step": {
			mutate:  func(wt *model.WorkflowTemplate) { wt.StartingStepId = "st-9" },
			problem: "no step with starting step id st-9 in template",
		},
		"undefined target": {
			mutate:  func(wt *model.WorkflowTemplate) { wt.Steps[1].Branches[0].TargetStepId = "st-9" },
			problem: "step st-2 branch 0 targets undefined step st-9",
		},
		"unparseable rule": {
			mutate: func(wt *model.WorkflowTemplate) {
				wt.Steps[0].Branches[0].Condition.Rule = json.RawMessage(`{"nope": 1}`)
			},
			problem: "step st-1 branch 0: ",
		},
		"null rule": {
			mutate: func(wt *model.WorkflowTemplate) {
				wt.Steps[0].Branches[0].Condition.Rule = json.RawMessage(`null`)
			},
			problem: "step st-1 branch 0: rule parse error: rule must be an operation or literal, got null",
		},
		"condition without rule": {
			mutate: func(wt *model.WorkflowTemplate) {
				wt.Steps[0].Branches[0].Condition = &model.Condition{DataSources: []string{"patient.age"}}
			},
			problem: "step st-1 branch 0: rule parse error: empty rule",
		},
		"undeclared variable": {
			mutate: func(wt *model.WorkflowTemplate) {
				wt.Steps[0].Branches[0].Condition.Rule = json.RawMessage(`{"and": [{"var": "patient.age"}, {"var": "patient.sex"}]}`)
			},
			problem: "step st-1 branch 0: variables missing from datasources: patient.sex",
		},
		"unknown object": {
			mutate: func(wt *model.WorkflowTemplate) {
				wt.Steps[0].Branches[0].Condition = &model.Condition{
					Rule:        json.RawMessage(`{"var": "pregnancy.weeks"}`),
					DataSources: []string{"pregnancy.weeks"},
				}
			},
			problem: "step st-1 branch 0: datasource pregnancy.weeks refers to unknown object pregnancy",
		},
		"malformed datasource": {
			mutate: func(wt *model.WorkflowTemplate) {
				wt.Steps[0].Branches[0].Condition.DataSources = append(wt.Steps[0].Branches[0].Condition.DataSources, "age")
			},
			problem: "step st-1 branch 0: datasource age is not of the form object.attribute",
		},
		"cycle": {
			mutate:  func(wt *model.WorkflowTemplate) { wt.Steps[2].Branches = []model.Branch{{TargetStepId: "st-1"}} },
			problem: "steps form a cycle: st-1 -> st-2 -> st-3 -> st-1",
		},
	} {
		t.Run(scenario, func(t *testing.T) {
			wt := validTemplate()
			tc.mutate(&wt)
			err := testService(t).ValidateTemplate(wt)
			require.True(t, errors.Is(err, ErrInvalidTemplate))
			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			require.Equal(t, "wt-1", ve.TemplateId)
			found := false
			for _, p := range ve.Problems {
				if len(p) >= len(tc.problem) && p[:len(tc.problem)] == tc.problem {
					found = true
				}
			}
			require.True(t, found, "problems %v do not contain %q", ve.Problems, tc.problem)
		})
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	wt := validTemplate()
	wt.StartingStepId = "st-9"
	wt.Steps[1].Branches[0].TargetStepId = "st-8"
	err := testService(t).ValidateTemplate(wt)
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	require.Len(t, ve.Problems, 2)
}

func TestSaveTemplate(t *testing.T) {
	ctx := context.Background()
	service := testService(t)
	require.NoError(t, service.SaveTemplate(ctx, validTemplate()))
	got, err := service.GetTemplate(ctx, "wt-1")
	require.NoError(t, err)
	require.Equal(t, "st-1", got.StartingStepId)

	bad := validTemplate()
	bad.Id = "wt-2"
	bad.StartingStepId = ""
	require.True(t, errors.Is(service.SaveTemplate(ctx, bad), ErrInvalidTemplate))
	_, err = service.GetTemplate(ctx, "wt-2")
	require.True(t, errors.Is(err, persistence.ErrNotFound))
}

const yamlTemplate = `
id: wt-yaml
name: hypertension review
startingStepId: st-1
steps:
  - id: st-1
    formId: bp-form
    branches:
      - targetStepId: st-2
        condition:
          rule:
            ">=": [{var: patient.age}, 65]
          dataSources: [patient.age]
      - targetStepId: st-3
  - id: st-2
  - id: st-3
`

func TestLoadTemplateFile(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "template.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(yamlTemplate), 0644))

	fromYaml, err := LoadTemplateFile(yamlPath)
	require.NoError(t, err)
	require.Equal(t, "wt-yaml", fromYaml.Id)
	require.Equal(t, "bp-form", *fromYaml.Steps[0].FormId)
	require.JSONEq(t, `{">=": [{"var": "patient.age"}, 65]}`, string(fromYaml.Steps[0].Branches[0].Condition.Rule))
	require.Nil(t, fromYaml.Steps[0].Branches[1].Condition)

	data, err := json.Marshal(fromYaml)
	require.NoError(t, err)
	jsonPath := filepath.Join(dir, "template.json")
	require.NoError(t, os.WriteFile(jsonPath, data, 0644))
	fromJson, err := LoadTemplateFile(jsonPath)
	require.NoError(t, err)
	require.Equal(t, fromYaml.Steps[0].Branches[0].Condition.DataSources, fromJson.Steps[0].Branches[0].Condition.DataSources)

	_, err = LoadTemplateFile(filepath.Join(dir, "template.txt"))
	require.Error(t, err)

	noRulePath := filepath.Join(dir, "no-rule.yaml")
	require.NoError(t, os.WriteFile(noRulePath, []byte(`
id: wt-no-rule
startingStepId: st-1
steps:
  - id: st-1
    branches:
      - targetStepId: st-2
        condition:
          dataSources: [patient.age]
  - id: st-2
`), 0644))
	_, err = LoadTemplateFile(noRulePath)
	require.Error(t, err)
	require.Contains(t, err.Error(), "has no rule")

	nullRulePath := filepath.Join(dir, "null-rule.yaml")
	require.NoError(t, os.WriteFile(nullRulePath, []byte(`
id: wt-null-rule
startingStepId: st-1
steps:
  - id: st-1
    branches:
      - targetStepId: st-2
        condition:
          rule: null
  - id: st-2
`), 0644))
	_, err = LoadTemplateFile(nullRulePath)
	require.Error(t, err)

	service := testService(t)
	require.NoError(t, ImportTemplates(context.Background(), service, []string{yamlPath}))
	_, err = service.GetTemplate(context.Background(), "wt-yaml")
	require.NoError(t, err)
}
