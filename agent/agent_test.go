package agent

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/mohitkumar/carepath/action"
	"github.com/mohitkumar/carepath/analytics"
	"github.com/mohitkumar/carepath/catalogue"
	"github.com/mohitkumar/carepath/config"
	"github.com/stretchr/testify/require"
)

const template = `
id: antenatal
startingStepId: booking
steps:
  - id: booking
    branches:
      - targetStepId: high-risk
        condition:
          rule: {">=": [{var: patient.age}, 40]}
          dataSources: [patient.age]
      - targetStepId: routine
  - id: high-risk
  - id: routine
`

func testConfig(t *testing.T) config.Config {
	dir := t.TempDir()
	templateFile := filepath.Join(dir, "antenatal.yaml")
	require.NoError(t, os.WriteFile(templateFile, []byte(template), 0644))
	return config.Config{
		StorageType:         config.STORAGE_TYPE_INMEM,
		TemplateFiles:       []string{templateFile},
		ResolverParallelism: 2,
		QueryCacheTTL:       time.Minute,
		AnalyticsConfig: analytics.RecorderConfig{
			FileName:     filepath.Join(dir, "audit.log"),
			RecorderType: analytics.LOG_FILE_RECORDER,
		},
	}
}

func TestAgent(t *testing.T) {
	for scenario, configure := range map[string]func(t *testing.T, conf *config.Config){
		"memory": func(t *testing.T, conf *config.Config) {},
		"redis": func(t *testing.T, conf *config.Config) {
			mr := miniredis.RunT(t)
			conf.StorageType = config.STORAGE_TYPE_REDIS
			conf.RedisConfig = config.RedisStorageConfig{Addrs: []string{mr.Addr()}, Namespace: "carepath"}
		},
	} {
		t.Run(scenario, func(t *testing.T) {
			conf := testConfig(t)
			configure(t, &conf)
			a, err := New(conf)
			require.NoError(t, err)
			defer a.Shutdown()

			ctx := context.Background()
			svc := a.workflowExecutionService
			dob := time.Now().AddDate(-45, 0, -1).Format("2006-01-02")
			require.NoError(t, svc.SaveRecord(ctx, "patient", "p-1", catalogue.Record{"date_of_birth": dob}))

			instance, err := svc.CreateInstance(ctx, "antenatal", "p-1")
			require.NoError(t, err)
			instance, _, err = svc.Advance(ctx, instance.Id, action.StartWorkflow{})
			require.NoError(t, err)
			instance, _, err = svc.Advance(ctx, instance.Id, action.CompleteStep{StepId: *instance.CurrentStepId})
			require.NoError(t, err)

			sel, err := svc.NextStep(ctx, instance.Id, "booking")
			require.NoError(t, err)
			require.Equal(t, "high-risk", *sel.TargetStepId)
		})
	}
}

func TestInvalidConfig(t *testing.T) {
	conf := testConfig(t)
	conf.StorageType = "dynamo"
	_, err := New(conf)
	require.Error(t, err)

	conf = testConfig(t)
	conf.CatalogueFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = New(conf)
	require.Error(t, err)
}
