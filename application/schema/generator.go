// Package schema renders JSON schemas for configuration structs, parameter
// sets and unit protocols.
package schema

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"

	"github.com/invopop/jsonschema"

	"github.com/reglet-dev/reglet-compose/domain/ports"
)

type generatorConfig struct {
	fieldNameTag string
	title        string
}

// Option configures schema generation.
type Option func(*generatorConfig)

// WithFieldNameTag names properties after the given struct tag instead of
// `json` (e.g. "mapstructure" for config structs).
func WithFieldNameTag(tag string) Option {
	return func(c *generatorConfig) {
		c.fieldNameTag = tag
	}
}

// WithTitle sets the schema title.
func WithTitle(title string) Option {
	return func(c *generatorConfig) {
		c.title = title
	}
}

func buildConfig(opts []Option) generatorConfig {
	var cfg generatorConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// GenerateSchema creates a JSON schema (Draft 2020-12) from a Go struct
// with nested structs expanded inline.
func GenerateSchema(v any, opts ...Option) ([]byte, error) {
	cfg := buildConfig(opts)
	reflector := jsonschema.Reflector{
		ExpandedStruct: true,
		FieldNameTag:   cfg.fieldNameTag,
	}
	s := reflector.Reflect(v)
	if cfg.title != "" {
		s.Title = cfg.title
	}
	return marshal(s)
}

// ParametersSchema describes a parameter snapshot: one property per key,
// typed after the stored value.
func ParametersSchema(values map[string]any, opts ...Option) ([]byte, error) {
	cfg := buildConfig(opts)
	reflector := jsonschema.Reflector{DoNotReference: true, AllowAdditionalProperties: true}

	s := &jsonschema.Schema{
		Version:    jsonschema.Version,
		Type:       "object",
		Title:      cfg.title,
		Properties: jsonschema.NewProperties(),
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		s.Properties.Set(k, valueSchema(&reflector, values[k]))
	}
	return marshal(s)
}

func valueSchema(r *jsonschema.Reflector, v any) *jsonschema.Schema {
	if v == nil {
		return &jsonschema.Schema{Type: "null"}
	}
	if m, ok := v.(map[string]any); ok {
		props := jsonschema.NewProperties()
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			props.Set(k, valueSchema(r, m[k]))
		}
		return &jsonschema.Schema{Type: "object", Properties: props}
	}
	s := r.ReflectFromType(reflect.TypeOf(v))
	s.Version = ""
	return s
}

// Document merges the protocol schemas of every unit in the registry into
// one object keyed by unit name.
func Document(registry ports.SchemaRegistry) ([]byte, error) {
	doc := make(map[string]json.RawMessage)
	for _, unit := range registry.List() {
		raw, ok := registry.Schema(unit)
		if !ok {
			continue
		}
		doc[unit] = json.RawMessage(raw)
	}
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema document: %w", err)
	}
	return out, nil
}

func marshal(s *jsonschema.Schema) ([]byte, error) {
	jsonBytes, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return jsonBytes, nil
}
