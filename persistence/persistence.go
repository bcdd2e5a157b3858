package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/mohitkumar/carepath/catalogue"
	"github.com/mohitkumar/carepath/model"
)

var ErrNotFound = errors.New("not found")

// ErrVersionConflict is returned when an instance was written by someone
// else since it was loaded.
var ErrVersionConflict = errors.New("version conflict")

type StorageLayerError struct {
	Message string
}

func (e StorageLayerError) Error() string {
	return fmt.Sprintf("storage layer error %s", e.Message)
}

func NotFound(kind string, id string) error {
	return fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
}

func VersionConflict(instanceId string, expected int64) error {
	return fmt.Errorf("%w: instance %s is no longer at version %d", ErrVersionConflict, instanceId, expected)
}

type TemplateStorage interface {
	SaveTemplate(ctx context.Context, template model.WorkflowTemplate) error
	GetTemplate(ctx context.Context, id string) (*model.WorkflowTemplate, error)
}

// InstanceStorage saves with optimistic concurrency. SaveInstance succeeds
// only when the stored version equals instance.Version (zero for a new
// instance) and then bumps instance.Version.
type InstanceStorage interface {
	SaveInstance(ctx context.Context, instance *model.WorkflowInstance) error
	GetInstance(ctx context.Context, id string) (*model.WorkflowInstance, error)
}

// RecordStorage holds the clinical records the catalogue queries. A missing
// record is not an error, GetRecord returns nil.
type RecordStorage interface {
	SaveRecord(ctx context.Context, object string, patientId string, record catalogue.Record) error
	GetRecord(ctx context.Context, object string, patientId string) (catalogue.Record, error)
}

type Storage interface {
	TemplateStorage
	InstanceStorage
	RecordStorage
}

// QuerySource adapts records to catalogue queries, one per object.
func QuerySource(records RecordStorage) func(object string) catalogue.QueryFunc {
	return func(object string) catalogue.QueryFunc {
		return func(ctx context.Context, patientId string) (catalogue.Record, error) {
			return records.GetRecord(ctx, object, patientId)
		}
	}
}
