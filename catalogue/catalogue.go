// Package catalogue resolves dotted variable names such as "patient.age" to
// values. A Catalogue maps an object name to the query that loads its record
// for a patient, plus computed attributes derived from that record.
package catalogue

import (
	"context"
	"fmt"
	"sort"
)

type Record map[string]any

// QueryFunc loads the record of one object for a patient. A nil record with a
// nil error means the patient has no such record.
type QueryFunc func(ctx context.Context, patientId string) (Record, error)

type AttributeFunc func(record Record) (any, error)

type Object struct {
	Query  QueryFunc
	Custom map[string]AttributeFunc
}

// Catalogue is filled by Register before it is handed to a Resolver and is
// read only afterwards.
type Catalogue struct {
	objects map[string]Object
}

func New() *Catalogue {
	return &Catalogue{objects: make(map[string]Object)}
}

func (c *Catalogue) Register(name string, obj Object) error {
	if len(name) == 0 {
		return fmt.Errorf("object name can not be empty")
	}
	if obj.Query == nil {
		return fmt.Errorf("object %s has no query", name)
	}
	if _, ok := c.objects[name]; ok {
		return fmt.Errorf("object %s already registered", name)
	}
	custom := make(map[string]AttributeFunc, len(obj.Custom))
	for k, v := range obj.Custom {
		custom[k] = v
	}
	obj.Custom = custom
	c.objects[name] = obj
	return nil
}

func (c *Catalogue) Object(name string) (Object, bool) {
	obj, ok := c.objects[name]
	return obj, ok
}

func (c *Catalogue) Names() []string {
	names := make([]string, 0, len(c.objects))
	for name := range c.objects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
