// Package memory keeps templates, instances and records in process. Values
// are copied on the way in and out so callers never share state with the
// store.
package memory

import (
	"context"
	"sync"

	"github.com/mohitkumar/carepath/catalogue"
	"github.com/mohitkumar/carepath/model"
	"github.com/mohitkumar/carepath/persistence"
	"github.com/mohitkumar/carepath/util"
)

var _ persistence.Storage = new(memoryStorage)

type memoryStorage struct {
	mu        sync.RWMutex
	templates map[string][]byte
	instances map[string][]byte
	records   map[string]map[string][]byte

	templateEncoderDecoder util.EncoderDecoder[model.WorkflowTemplate]
	instanceEncoderDecoder util.EncoderDecoder[model.WorkflowInstance]
	recordEncoderDecoder   util.EncoderDecoder[catalogue.Record]
}

func NewStorage() *memoryStorage {
	return &memoryStorage{
		templates:              make(map[string][]byte),
		instances:              make(map[string][]byte),
		records:                make(map[string]map[string][]byte),
		templateEncoderDecoder: util.NewJsonEncoderDecoder[model.WorkflowTemplate](),
		instanceEncoderDecoder: util.NewJsonEncoderDecoder[model.WorkflowInstance](),
		recordEncoderDecoder:   util.NewJsonEncoderDecoder[catalogue.Record](),
	}
}

func (m *memoryStorage) SaveTemplate(ctx context.Context, template model.WorkflowTemplate) error {
	data, err := m.templateEncoderDecoder.Encode(template)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.templates[template.Id] = data
	return nil
}

func (m *memoryStorage) GetTemplate(ctx context.Context, id string) (*model.WorkflowTemplate, error) {
	m.mu.RLock()
	data, ok := m.templates[id]
	m.mu.RUnlock()
	if !ok {
		return nil, persistence.NotFound("template", id)
	}
	return m.templateEncoderDecoder.Decode(data)
}

func (m *memoryStorage) SaveInstance(ctx context.Context, instance *model.WorkflowInstance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var stored int64
	if data, ok := m.instances[instance.Id]; ok {
		current, err := m.instanceEncoderDecoder.Decode(data)
		if err != nil {
			return err
		}
		stored = current.Version
	}
	if stored != instance.Version {
		return persistence.VersionConflict(instance.Id, instance.Version)
	}
	next := *instance
	next.Version++
	data, err := m.instanceEncoderDecoder.Encode(next)
	if err != nil {
		return err
	}
	m.instances[instance.Id] = data
	instance.Version = next.Version
	return nil
}

func (m *memoryStorage) GetInstance(ctx context.Context, id string) (*model.WorkflowInstance, error) {
	m.mu.RLock()
	data, ok := m.instances[id]
	m.mu.RUnlock()
	if !ok {
		return nil, persistence.NotFound("instance", id)
	}
	return m.instanceEncoderDecoder.Decode(data)
}

func (m *memoryStorage) SaveRecord(ctx context.Context, object string, patientId string, record catalogue.Record) error {
	data, err := m.recordEncoderDecoder.Encode(record)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.records[object] == nil {
		m.records[object] = make(map[string][]byte)
	}
	m.records[object][patientId] = data
	return nil
}

func (m *memoryStorage) GetRecord(ctx context.Context, object string, patientId string) (catalogue.Record, error) {
	m.mu.RLock()
	data, ok := m.records[object][patientId]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	rec, err := m.recordEncoderDecoder.Decode(data)
	if err != nil {
		return nil, err
	}
	return *rec, nil
}
