package catalogue

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// Definitions declares the objects of a catalogue and their computed
// attributes. Queries are supplied separately when building.
//
//	objects:
//	  patient:
//	    ages:
//	      age: date_of_birth
//	    custom:
//	      full_name: record.first_name + " " + record.last_name
//	  pregnancy: {}
type Definitions struct {
	Objects map[string]ObjectDefinition `yaml:"objects"`
}

type ObjectDefinition struct {
	Ages   map[string]string `yaml:"ages"`
	Custom map[string]string `yaml:"custom"`
}

func ParseDefinitions(data []byte) (*Definitions, error) {
	var defs Definitions
	if err := yaml.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("invalid catalogue definitions: %w", err)
	}
	if len(defs.Objects) == 0 {
		return nil, fmt.Errorf("catalogue definitions declare no objects")
	}
	return &defs, nil
}

func LoadDefinitions(path string) (*Definitions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseDefinitions(data)
}

// Build registers every declared object with the query returned by source.
func (d *Definitions) Build(source func(object string) QueryFunc, now func() time.Time) (*Catalogue, error) {
	cat := New()
	names := make([]string, 0, len(d.Objects))
	for name := range d.Objects {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		def := d.Objects[name]
		custom := make(map[string]AttributeFunc)
		for attr, field := range def.Ages {
			custom[attr] = Age(field, now)
		}
		for attr, src := range def.Custom {
			fn, err := ScriptAttribute(src)
			if err != nil {
				return nil, fmt.Errorf("object %s attribute %s: %w", name, attr, err)
			}
			custom[attr] = fn
		}
		if err := cat.Register(name, Object{Query: source(name), Custom: custom}); err != nil {
			return nil, err
		}
	}
	return cat, nil
}
