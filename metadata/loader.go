package metadata

import (
	"context"
	"fmt"
	"os"

	"github.com/mohitkumar/carepath/logger"
	"github.com/mohitkumar/carepath/model"
	"github.com/mohitkumar/carepath/util"
	"go.uber.org/zap"
)

// LoadTemplateFile reads a template from a .json, .yaml or .yml file. In
// YAML the condition rule is written as a plain mapping.
func LoadTemplateFile(path string) (*model.WorkflowTemplate, error) {
	encdec, err := util.EncoderDecoderForFile[model.WorkflowTemplate](path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	template, err := encdec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decoding template %s: %w", path, err)
	}
	return template, nil
}

// ImportTemplates validates and saves every template file, stopping at the
// first failure.
func ImportTemplates(ctx context.Context, service MetadataService, paths []string) error {
	for _, path := range paths {
		template, err := LoadTemplateFile(path)
		if err != nil {
			return err
		}
		if err := service.SaveTemplate(ctx, *template); err != nil {
			return fmt.Errorf("importing %s: %w", path, err)
		}
		logger.Info("imported template", zap.String("template", template.Id), zap.String("file", path))
	}
	return nil
}
