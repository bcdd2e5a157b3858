package redis

import (
	"context"
	"errors"

	rd "github.com/go-redis/redis/v9"
	"github.com/mohitkumar/carepath/catalogue"
	"github.com/mohitkumar/carepath/logger"
	"github.com/mohitkumar/carepath/model"
	"github.com/mohitkumar/carepath/persistence"
	"github.com/mohitkumar/carepath/util"
	"go.uber.org/zap"
)

const TEMPLATE_KEY string = "TEMPLATE"
const INSTANCE_KEY string = "INSTANCE"
const RECORD_KEY string = "RECORD"

var _ persistence.Storage = new(redisStorage)

type redisStorage struct {
	*baseDao
	templateEncoderDecoder util.EncoderDecoder[model.WorkflowTemplate]
	instanceEncoderDecoder util.EncoderDecoder[model.WorkflowInstance]
	recordEncoderDecoder   util.EncoderDecoder[catalogue.Record]
}

func NewRedisStorage(conf Config) *redisStorage {
	return &redisStorage{
		baseDao:                newBaseDao(conf),
		templateEncoderDecoder: util.NewJsonEncoderDecoder[model.WorkflowTemplate](),
		instanceEncoderDecoder: util.NewJsonEncoderDecoder[model.WorkflowInstance](),
		recordEncoderDecoder:   util.NewJsonEncoderDecoder[catalogue.Record](),
	}
}

func (r *redisStorage) SaveTemplate(ctx context.Context, template model.WorkflowTemplate) error {
	key := r.getNamespaceKey(TEMPLATE_KEY, template.Id)
	data, err := r.templateEncoderDecoder.Encode(template)
	if err != nil {
		return err
	}
	if err := r.redisClient.Set(ctx, key, data, 0).Err(); err != nil {
		logger.Error("error in saving template", zap.String("template", template.Id), zap.Error(err))
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (r *redisStorage) GetTemplate(ctx context.Context, id string) (*model.WorkflowTemplate, error) {
	key := r.getNamespaceKey(TEMPLATE_KEY, id)
	val, err := r.redisClient.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, persistence.NotFound("template", id)
		}
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return r.templateEncoderDecoder.Decode([]byte(val))
}

// SaveInstance watches the instance key so a write racing between the
// version read and the EXEC aborts the transaction.
func (r *redisStorage) SaveInstance(ctx context.Context, instance *model.WorkflowInstance) error {
	key := r.getNamespaceKey(INSTANCE_KEY, instance.Id)
	next := *instance
	next.Version++
	data, err := r.instanceEncoderDecoder.Encode(next)
	if err != nil {
		return err
	}
	err = r.redisClient.Watch(ctx, func(tx *rd.Tx) error {
		stored, err := r.storedVersion(ctx, tx, key)
		if err != nil {
			return err
		}
		if stored != instance.Version {
			return persistence.VersionConflict(instance.Id, instance.Version)
		}
		_, err = tx.TxPipelined(ctx, func(pipe rd.Pipeliner) error {
			return pipe.Set(ctx, key, data, 0).Err()
		})
		return err
	}, key)
	if err != nil {
		if errors.Is(err, persistence.ErrVersionConflict) {
			return err
		}
		if errors.Is(err, rd.TxFailedErr) {
			return persistence.VersionConflict(instance.Id, instance.Version)
		}
		logger.Error("error in saving instance", zap.String("instance", instance.Id), zap.Error(err))
		return persistence.StorageLayerError{Message: err.Error()}
	}
	instance.Version = next.Version
	return nil
}

func (r *redisStorage) storedVersion(ctx context.Context, tx *rd.Tx, key string) (int64, error) {
	val, err := tx.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return 0, nil
		}
		return 0, err
	}
	current, err := r.instanceEncoderDecoder.Decode([]byte(val))
	if err != nil {
		return 0, err
	}
	return current.Version, nil
}

func (r *redisStorage) GetInstance(ctx context.Context, id string) (*model.WorkflowInstance, error) {
	key := r.getNamespaceKey(INSTANCE_KEY, id)
	val, err := r.redisClient.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, persistence.NotFound("instance", id)
		}
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return r.instanceEncoderDecoder.Decode([]byte(val))
}

func (r *redisStorage) SaveRecord(ctx context.Context, object string, patientId string, record catalogue.Record) error {
	key := r.getNamespaceKey(RECORD_KEY, object)
	data, err := r.recordEncoderDecoder.Encode(record)
	if err != nil {
		return err
	}
	if err := r.redisClient.HSet(ctx, key, []string{patientId, string(data)}).Err(); err != nil {
		logger.Error("error in saving record", zap.String("object", object), zap.String("patient", patientId), zap.Error(err))
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (r *redisStorage) GetRecord(ctx context.Context, object string, patientId string) (catalogue.Record, error) {
	key := r.getNamespaceKey(RECORD_KEY, object)
	val, err := r.redisClient.HGet(ctx, key, patientId).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, nil
		}
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	rec, err := r.recordEncoderDecoder.Decode([]byte(val))
	if err != nil {
		return nil, err
	}
	return *rec, nil
}
