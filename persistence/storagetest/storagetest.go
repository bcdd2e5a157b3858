// Package storagetest checks a persistence.Storage implementation against the
// behaviour the service relies on.
package storagetest

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mohitkumar/carepath/catalogue"
	"github.com/mohitkumar/carepath/model"
	"github.com/mohitkumar/carepath/persistence"
	"github.com/stretchr/testify/require"
)

func Run(t *testing.T, newStorage func(t *testing.T) persistence.Storage) {
	for scenario, fn := range map[string]func(t *testing.T, storage persistence.Storage){
		"template round trip":           testTemplateRoundTrip,
		"missing template":              testMissingTemplate,
		"instance versions":             testInstanceVersions,
		"stale instance write rejected": testStaleInstanceWrite,
		"new instance must be unsaved":  testDuplicateNewInstance,
		"missing instance":              testMissingInstance,
		"records":                       testRecords,
		"records query source":          testQuerySource,
	} {
		t.Run(scenario, func(t *testing.T) {
			fn(t, newStorage(t))
		})
	}
}

func template() model.WorkflowTemplate {
	return model.WorkflowTemplate{
		Id:             "wt-1",
		Name:           "antenatal",
		StartingStepId: "st-1",
		Steps: []model.TemplateStep{
			{Id: "st-1", Branches: []model.Branch{{TargetStepId: "st-2", Condition: &model.Condition{
				Rule:        json.RawMessage(`{">=":[{"var":"patient.age"},65]}`),
				DataSources: []string{"patient.age"},
			}}}},
			{Id: "st-2"},
		},
	}
}

func instance() *model.WorkflowInstance {
	return &model.WorkflowInstance{
		Id:         "wi-1",
		TemplateId: "wt-1",
		PatientId:  "p-1",
		Status:     model.PENDING,
		Steps: []model.InstanceStep{
			{Id: "si-1", TemplateStepId: "st-1", Status: model.PENDING},
			{Id: "si-2", TemplateStepId: "st-2", Status: model.PENDING},
		},
	}
}

func testTemplateRoundTrip(t *testing.T, storage persistence.Storage) {
	ctx := context.Background()
	require.NoError(t, storage.SaveTemplate(ctx, template()))
	got, err := storage.GetTemplate(ctx, "wt-1")
	require.NoError(t, err)
	require.Equal(t, "st-1", got.StartingStepId)
	require.Len(t, got.Steps, 2)
	require.JSONEq(t, `{">=":[{"var":"patient.age"},65]}`, string(got.Steps[0].Branches[0].Condition.Rule))
	require.Equal(t, []string{"patient.age"}, got.Steps[0].Branches[0].Condition.DataSources)
}

func testMissingTemplate(t *testing.T, storage persistence.Storage) {
	_, err := storage.GetTemplate(context.Background(), "nope")
	require.True(t, errors.Is(err, persistence.ErrNotFound))
}

func testInstanceVersions(t *testing.T, storage persistence.Storage) {
	ctx := context.Background()
	wi := instance()
	require.NoError(t, storage.SaveInstance(ctx, wi))
	require.Equal(t, int64(1), wi.Version)

	loaded, err := storage.GetInstance(ctx, "wi-1")
	require.NoError(t, err)
	require.Equal(t, wi, loaded)

	current := "si-1"
	loaded.Status = model.ACTIVE
	loaded.CurrentStepId = &current
	require.NoError(t, storage.SaveInstance(ctx, loaded))
	require.Equal(t, int64(2), loaded.Version)

	again, err := storage.GetInstance(ctx, "wi-1")
	require.NoError(t, err)
	require.Equal(t, model.ACTIVE, again.Status)
	require.Equal(t, "si-1", *again.CurrentStepId)
}

func testStaleInstanceWrite(t *testing.T, storage persistence.Storage) {
	ctx := context.Background()
	require.NoError(t, storage.SaveInstance(ctx, instance()))
	first, err := storage.GetInstance(ctx, "wi-1")
	require.NoError(t, err)
	second, err := storage.GetInstance(ctx, "wi-1")
	require.NoError(t, err)

	first.Status = model.ACTIVE
	require.NoError(t, storage.SaveInstance(ctx, first))
	second.Status = model.COMPLETED
	err = storage.SaveInstance(ctx, second)
	require.True(t, errors.Is(err, persistence.ErrVersionConflict))
	require.Equal(t, int64(1), second.Version)

	stored, err := storage.GetInstance(ctx, "wi-1")
	require.NoError(t, err)
	require.Equal(t, model.ACTIVE, stored.Status)
}

func testDuplicateNewInstance(t *testing.T, storage persistence.Storage) {
	ctx := context.Background()
	require.NoError(t, storage.SaveInstance(ctx, instance()))
	err := storage.SaveInstance(ctx, instance())
	require.True(t, errors.Is(err, persistence.ErrVersionConflict))
}

func testMissingInstance(t *testing.T, storage persistence.Storage) {
	_, err := storage.GetInstance(context.Background(), "nope")
	require.True(t, errors.Is(err, persistence.ErrNotFound))
}

func testRecords(t *testing.T, storage persistence.Storage) {
	ctx := context.Background()
	rec, err := storage.GetRecord(ctx, "patient", "p-1")
	require.NoError(t, err)
	require.Nil(t, rec)

	require.NoError(t, storage.SaveRecord(ctx, "patient", "p-1", catalogue.Record{"age": 70, "name": "Asha"}))
	rec, err = storage.GetRecord(ctx, "patient", "p-1")
	require.NoError(t, err)
	require.Equal(t, catalogue.Record{"age": float64(70), "name": "Asha"}, rec)

	rec, err = storage.GetRecord(ctx, "pregnancy", "p-1")
	require.NoError(t, err)
	require.Nil(t, rec)
}

func testQuerySource(t *testing.T, storage persistence.Storage) {
	ctx := context.Background()
	require.NoError(t, storage.SaveRecord(ctx, "patient", "p-1", catalogue.Record{"age": 70}))
	cat := catalogue.New()
	require.NoError(t, cat.Register("patient", catalogue.Object{Query: persistence.QuerySource(storage)("patient")}))

	values := catalogue.NewResolver(cat, 1).Resolve(ctx, "p-1", []string{"patient.age", "patient.height"})
	require.Equal(t, catalogue.Values{"patient.age": float64(70), "patient.height": nil}, values)
}
