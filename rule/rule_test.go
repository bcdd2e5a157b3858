package rule

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseErrors(t *testing.T) {
	for scenario, raw := range map[string]string{
		"empty":              "",
		"null":               "null",
		"blank null":         "  null ",
		"invalid json":       `{"and": [`,
		"unknown operator":   `{"xor": [true, false]}`,
		"two keys":           `{"and": [true], "or": [false]}`,
		"empty var":          `{"var": ""}`,
		"non string var":     `{"var": 3}`,
		"var too many args":  `{"var": ["a", 1, 2]}`,
		"comparison arity":   `{">=": [1]}`,
		"not arity":          `{"!": [true, false]}`,
		"nested bad operand": `{"and": [{"==": [1, 2, 3]}]}`,
	} {
		t.Run(scenario, func(t *testing.T) {
			_, err := ParseString(raw)
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrRuleParse))
			var pe *ParseError
			require.True(t, errors.As(err, &pe))
			require.Equal(t, raw, pe.Rule)
		})
	}
}

func TestEvaluate(t *testing.T) {
	for scenario, tc := range map[string]struct {
		rule     string
		bindings Bindings
		want     Status
	}{
		"gte true":            {`{">=": [{"var": "patient.age"}, 65]}`, Bindings{"patient.age": 70}, TRUE},
		"gte false":           {`{">=": [{"var": "patient.age"}, 65]}`, Bindings{"patient.age": int64(10)}, FALSE},
		"gte boundary":        {`{">=": [{"var": "patient.age"}, 65]}`, Bindings{"patient.age": 65.0}, TRUE},
		"and":                 {`{"and": [{">": [{"var": "a.x"}, 1]}, {"==": [{"var": "a.y"}, "yes"]}]}`, Bindings{"a.x": 2, "a.y": "yes"}, TRUE},
		"or":                  {`{"or": [{"<": [{"var": "a.x"}, 1]}, {"==": [{"var": "a.y"}, "yes"]}]}`, Bindings{"a.x": 2, "a.y": "yes"}, TRUE},
		"not":                 {`{"!": {"var": "a.flag"}}`, Bindings{"a.flag": false}, TRUE},
		"not alias":           {`{"not": [{"var": "a.flag"}]}`, Bindings{"a.flag": true}, FALSE},
		"between":             {`{"<": [1, {"var": "a.x"}, 10]}`, Bindings{"a.x": 5}, TRUE},
		"between outside":     {`{"<=": [1, {"var": "a.x"}, 10]}`, Bindings{"a.x": 11}, FALSE},
		"in list":             {`{"in": [{"var": "a.code"}, ["X", "Y"]]}`, Bindings{"a.code": "Y"}, TRUE},
		"in bound list":       {`{"in": ["high", {"var": "a.tags"}]}`, Bindings{"a.tags": []string{"low", "high"}}, TRUE},
		"in string":           {`{"in": ["pre", {"var": "a.name"}]}`, Bindings{"a.name": "preeclampsia"}, TRUE},
		"neq mixed types":     {`{"!=": [{"var": "a.x"}, "1"]}`, Bindings{"a.x": 1}, TRUE},
		"string compare":      {`{">": [{"var": "a.date"}, "2020-01-01"]}`, Bindings{"a.date": "2021-05-05"}, TRUE},
		"mismatched compare":  {`{">": [{"var": "a.x"}, "1"]}`, Bindings{"a.x": 2}, FALSE},
		"default used":        {`{"==": [{"var": ["a.x", 3]}, 3]}`, Bindings{}, TRUE},
		"literal only":        {`true`, Bindings{}, TRUE},
		"missing":             {`{">=": [{"var": "patient.age"}, 65]}`, Bindings{}, UNKNOWN},
		"unresolved sentinel": {`{">=": [{"var": "patient.age"}, 65]}`, Bindings{"patient.age": nil}, UNKNOWN},
		"missing in or":       {`{"or": [true, {"var": "a.x"}]}`, Bindings{}, UNKNOWN},
		"missing in and":      {`{"and": [false, {"var": "a.x"}]}`, Bindings{}, UNKNOWN},
		"null operand":        {`{"==": [{"var": "a.x"}, null]}`, Bindings{"a.x": 1}, FALSE},
	} {
		t.Run(scenario, func(t *testing.T) {
			res := Evaluate(MustParse(tc.rule), tc.bindings)
			require.Equal(t, tc.want, res.Status)
		})
	}
}

func TestEvaluateReportsAllMissing(t *testing.T) {
	expr := MustParse(`{"and": [{"var": "b.y"}, {"or": [{"var": "a.x"}, {"var": "b.y"}]}, {"var": "c.z"}]}`)
	res := Evaluate(expr, Bindings{"c.z": true})
	require.Equal(t, UNKNOWN, res.Status)
	require.Equal(t, []string{"a.x", "b.y"}, res.Missing)
}

func TestEvaluateIsDeterministic(t *testing.T) {
	expr := MustParse(`{"or": [{"var": "z.z"}, {"var": "a.a"}, {"var": "m.m"}]}`)
	first := Evaluate(expr, Bindings{})
	for i := 0; i < 20; i++ {
		require.Equal(t, first, Evaluate(expr, Bindings{}))
	}
}

func TestExtractVariables(t *testing.T) {
	expr := MustParse(`{"and": [
		{">=": [{"var": "patient.age"}, 65]},
		{"or": [{"in": [{"var": "reading.colour"}, ["RED", "YELLOW"]]}, {"!": {"var": "pregnancy.is_pregnant"}}]},
		{"==": [{"var": ["patient.age", 0]}, {"var": "patient.sex"}]}
	]}`)
	require.Equal(t, []string{"patient.age", "patient.sex", "pregnancy.is_pregnant", "reading.colour"}, ExtractVariables(expr))
	require.Empty(t, ExtractVariables(MustParse(`{"==": [1, 1]}`)))
}

func TestCheckDatasources(t *testing.T) {
	expr := MustParse(`{"and": [{">=": [{"var": "patient.age"}, 65]}, {"var": "pregnancy.is_pregnant"}]}`)
	require.Equal(t, []string{"pregnancy.is_pregnant"}, CheckDatasources(expr, []string{"patient.age", "patient.name"}))
	require.Empty(t, CheckDatasources(expr, []string{"patient.age", "pregnancy.is_pregnant"}))
}

func TestExtractedBindingsNeverUnknown(t *testing.T) {
	for _, raw := range []string{
		`{">=": [{"var": "patient.age"}, 65]}`,
		`{"or": [{"var": "a.x"}, {"and": [{"var": "b.y"}, {"!": {"var": "c.z"}}]}]}`,
		`{"in": [{"var": "a.code"}, [{"var": "b.code"}, "X"]]}`,
	} {
		expr := MustParse(raw)
		bindings := Bindings{}
		for _, name := range ExtractVariables(expr) {
			bindings[name] = 1
		}
		require.NotEqual(t, UNKNOWN, Evaluate(expr, bindings).Status, raw)
	}
}
