// Package asyncapi checks CloudEvent payloads against the JSON schemas of an
// AsyncAPI document.
package asyncapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// schemaBaseURL only names compiled resources; nothing is fetched from it
const schemaBaseURL = "https://contracts.wms.local/asyncapi/schemas/"

// Spec is the part of an AsyncAPI document the validator reads. A schema is
// bound to event types through its x-event-type or x-event-types extension.
type Spec struct {
	AsyncAPI string `yaml:"asyncapi"`
	Info     struct {
		Title   string `yaml:"title"`
		Version string `yaml:"version"`
	} `yaml:"info"`
	Channels   map[string]any `yaml:"channels"`
	Components struct {
		Schemas map[string]map[string]any `yaml:"schemas"`
	} `yaml:"components"`
}

// EventValidator validates event data by event type
type EventValidator struct {
	spec    Spec
	schemas map[string]*jsonschema.Schema
}

// NewEventValidator loads an AsyncAPI document from disk
func NewEventValidator(path string) (*EventValidator, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read AsyncAPI spec: %w", err)
	}
	return NewEventValidatorFromBytes(raw)
}

// NewEventValidatorFromBytes compiles every bound schema of the document.
// Unlike a lenient loader it fails on the first schema that does not compile.
func NewEventValidatorFromBytes(raw []byte) (*EventValidator, error) {
	var spec Spec
	if err := yaml.Unmarshal(raw, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse AsyncAPI spec: %w", err)
	}

	v := &EventValidator{spec: spec, schemas: make(map[string]*jsonschema.Schema)}
	compiler := jsonschema.NewCompiler()

	names := make([]string, 0, len(spec.Components.Schemas))
	for name := range spec.Components.Schemas {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		schema := spec.Components.Schemas[name]
		eventTypes := boundEventTypes(schema)
		if len(eventTypes) == 0 {
			continue
		}

		doc, err := toJSONValue(stripExtensions(schema))
		if err != nil {
			return nil, fmt.Errorf("schema %s: %w", name, err)
		}
		url := schemaBaseURL + name + ".json"
		if err := compiler.AddResource(url, doc); err != nil {
			return nil, fmt.Errorf("schema %s: %w", name, err)
		}
		compiled, err := compiler.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("failed to compile schema %s: %w", name, err)
		}
		for _, eventType := range eventTypes {
			if _, dup := v.schemas[eventType]; dup {
				return nil, fmt.Errorf("event type %s is bound to more than one schema", eventType)
			}
			v.schemas[eventType] = compiled
		}
	}
	return v, nil
}

// Title returns the document title
func (v *EventValidator) Title() string {
	return v.spec.Info.Title
}

// Validate checks one payload. data may be any value that marshals to JSON.
func (v *EventValidator) Validate(eventType string, data any) error {
	if eventType == "" {
		return fmt.Errorf("event type is required")
	}
	schema, ok := v.schemas[eventType]
	if !ok {
		return fmt.Errorf("no schema found for event type: %s", eventType)
	}
	if data == nil {
		return fmt.Errorf("event data is required")
	}

	instance, err := toJSONValue(data)
	if err != nil {
		return fmt.Errorf("failed to encode event data: %w", err)
	}
	if err := schema.Validate(instance); err != nil {
		return fmt.Errorf("event data validation failed for type %s: %w", eventType, err)
	}
	return nil
}

// HasSchema reports whether eventType is bound to a schema
func (v *EventValidator) HasSchema(eventType string) bool {
	_, ok := v.schemas[eventType]
	return ok
}

// SupportedEventTypes lists the bound event types in order
func (v *EventValidator) SupportedEventTypes() []string {
	types := make([]string, 0, len(v.schemas))
	for t := range v.schemas {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

func boundEventTypes(schema map[string]any) []string {
	var types []string
	if t, ok := schema["x-event-type"].(string); ok && t != "" {
		types = append(types, t)
	}
	if list, ok := schema["x-event-types"].([]any); ok {
		for _, item := range list {
			if t, ok := item.(string); ok && t != "" {
				types = append(types, t)
			}
		}
	}
	return types
}

func stripExtensions(schema map[string]any) map[string]any {
	out := make(map[string]any, len(schema))
	for k, val := range schema {
		if k == "x-event-type" || k == "x-event-types" {
			continue
		}
		out[k] = val
	}
	return out
}

// toJSONValue round-trips through JSON into the value model the schema
// library expects, numbers included.
func toJSONValue(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(bytes.NewReader(raw))
}
