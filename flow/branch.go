package flow

import (
	"context"
	"sort"

	"github.com/mohitkumar/carepath/catalogue"
	"github.com/mohitkumar/carepath/model"
	"github.com/mohitkumar/carepath/rule"
)

// VariableResolver is satisfied by *catalogue.Resolver.
type VariableResolver interface {
	Resolve(ctx context.Context, patientId string, names []string) catalogue.Values
}

type BranchEvaluation struct {
	TargetStepId     string           `json:"targetStepId"`
	Status           rule.Status      `json:"status"`
	ResolvedData     catalogue.Values `json:"resolvedData"`
	MissingVariables []string         `json:"missingVariables"`
}

// BranchSelection explains a next step decision. Evaluations holds one entry
// per branch tried, in declaration order, ending with the selected branch.
type BranchSelection struct {
	Selected     int                `json:"selected"`
	TargetStepId *string            `json:"targetStepId"`
	Evaluations  []BranchEvaluation `json:"evaluations"`
}

type compiledBranch struct {
	branch    model.Branch
	expr      rule.Expr
	variables []string
}

func compile(branch model.Branch) (compiledBranch, error) {
	cb := compiledBranch{branch: branch}
	if branch.Condition == nil {
		return cb, nil
	}
	expr, err := rule.Parse(branch.Condition.Rule)
	if err != nil {
		return cb, err
	}
	cb.expr = expr
	cb.variables = union(branch.Condition.DataSources, rule.ExtractVariables(expr))
	return cb, nil
}

func (cb compiledBranch) evaluate(values catalogue.Values) BranchEvaluation {
	ev := BranchEvaluation{
		TargetStepId:     cb.branch.TargetStepId,
		ResolvedData:     catalogue.Values{},
		MissingVariables: []string{},
	}
	if cb.expr == nil {
		ev.Status = rule.TRUE
		return ev
	}
	bindings := make(rule.Bindings, len(cb.variables))
	for _, name := range cb.variables {
		v := values[name]
		ev.ResolvedData[name] = v
		bindings[name] = v
	}
	res := rule.Evaluate(cb.expr, bindings)
	ev.Status = res.Status
	ev.MissingVariables = res.Missing
	return ev
}

// EvaluateBranch resolves the variables a branch needs for the patient and
// evaluates its condition. A branch without a condition evaluates TRUE.
func EvaluateBranch(ctx context.Context, branch model.Branch, patientId string, resolver VariableResolver) (BranchEvaluation, error) {
	cb, err := compile(branch)
	if err != nil {
		return BranchEvaluation{}, err
	}
	values := catalogue.Values{}
	if len(cb.variables) > 0 {
		values = resolver.Resolve(ctx, patientId, cb.variables)
	}
	return cb.evaluate(values), nil
}

// SelectBranch resolves every variable of the step's branches in one pass, then
// folds over the branches in order and stops at the first one evaluating TRUE.
// UNKNOWN counts as no match.
func SelectBranch(ctx context.Context, step *model.TemplateStep, patientId string, resolver VariableResolver) (*BranchSelection, error) {
	compiled := make([]compiledBranch, 0, len(step.Branches))
	var names []string
	for _, b := range step.Branches {
		cb, err := compile(b)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, cb)
		names = union(names, cb.variables)
	}
	values := catalogue.Values{}
	if len(names) > 0 {
		values = resolver.Resolve(ctx, patientId, names)
	}
	return fold(compiled, func(cb compiledBranch) BranchEvaluation {
		return cb.evaluate(values)
	}), nil
}

func fold(branches []compiledBranch, evaluate func(compiledBranch) BranchEvaluation) *BranchSelection {
	sel := &BranchSelection{Selected: -1, Evaluations: []BranchEvaluation{}}
	for i, cb := range branches {
		ev := evaluate(cb)
		sel.Evaluations = append(sel.Evaluations, ev)
		if ev.Status == rule.TRUE {
			target := cb.branch.TargetStepId
			sel.Selected = i
			sel.TargetStepId = &target
			return sel
		}
	}
	return sel
}

// TemplateVariables lists every variable the template's conditions need, so
// a caller can resolve them for a whole template in one pass.
func TemplateVariables(template *model.WorkflowTemplate) ([]string, error) {
	var names []string
	for _, step := range template.Steps {
		for _, b := range step.Branches {
			cb, err := compile(b)
			if err != nil {
				return nil, err
			}
			names = union(names, cb.variables)
		}
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

func union(a []string, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, s := range list {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
