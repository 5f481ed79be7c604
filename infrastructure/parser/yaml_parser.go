package parser

import (
	"fmt"

	"github.com/reglet-dev/reglet-compose/domain/ports"
	"gopkg.in/yaml.v3"
)

// YamlParamsParser implements ParamsParser for YAML.
type YamlParamsParser struct{}

// NewYamlParamsParser creates a new YamlParamsParser.
func NewYamlParamsParser() ports.ParamsParser {
	return &YamlParamsParser{}
}

// Parse unmarshals YAML bytes into a parameter map. An empty document
// yields an empty map.
func (p *YamlParamsParser) Parse(data []byte) (map[string]any, error) {
	values := make(map[string]any)
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to parse parameters: %w", err)
	}
	return values, nil
}

// Format marshals a parameter map to YAML. Keys are emitted in sorted
// order.
func (p *YamlParamsParser) Format(values map[string]any) ([]byte, error) {
	if values == nil {
		values = map[string]any{}
	}
	data, err := yaml.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("failed to format parameters: %w", err)
	}
	return data, nil
}
