package capability

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sync"

	"github.com/invopop/jsonschema"

	"github.com/reglet-dev/reglet-compose/domain/ports"
)

// registryConfig holds configuration for the Registry.
type registryConfig struct {
	strictMode bool // Fail on duplicate registrations
}

func defaultRegistryConfig() registryConfig {
	return registryConfig{
		strictMode: true,
	}
}

// RegistryOption configures a Registry instance.
type RegistryOption func(*registryConfig)

// WithStrictMode enables/disables strict mode for duplicate registrations.
// Default is true (fail on duplicates).
func WithStrictMode(enabled bool) RegistryOption {
	return func(c *registryConfig) {
		c.strictMode = enabled
	}
}

// Registry records the protocol each unit of a host requires and renders
// them as JSON schemas.
type Registry struct {
	config    registryConfig
	mu        sync.RWMutex
	order     []string
	protocols map[string]Protocol
	schemas   map[string]string
}

var _ ports.SchemaRegistry = (*Registry)(nil)

// NewRegistry creates a new Registry with the given options.
func NewRegistry(opts ...RegistryOption) *Registry {
	cfg := defaultRegistryConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Registry{
		config:    cfg,
		protocols: make(map[string]Protocol),
		schemas:   make(map[string]string),
	}
}

// Register records the protocol of unit.
func (r *Registry) Register(unit string, p Protocol) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, exists := r.protocols[unit]
	if exists && r.config.strictMode {
		return fmt.Errorf("unit %q already registered", unit)
	}

	data, err := json.Marshal(BuildSchema(unit, p))
	if err != nil {
		return fmt.Errorf("failed to marshal schema for %s: %w", unit, err)
	}

	if !exists {
		r.order = append(r.order, unit)
	}
	r.protocols[unit] = p
	r.schemas[unit] = string(data)
	return nil
}

// Protocol returns the protocol registered for unit.
func (r *Registry) Protocol(unit string) (Protocol, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.protocols[unit]
	return p, ok
}

// Schema retrieves the JSON Schema for a unit's requirements.
func (r *Registry) Schema(unit string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[unit]
	return s, ok
}

// List returns the registered unit names in registration order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Row is one requirement of one unit, flattened for tabular output.
type Row struct {
	Unit     string
	Member   string
	Expected string
	Strategy string
	Doc      string
}

// Rows flattens every registered requirement.
func (r *Registry) Rows() []Row {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var rows []Row
	for _, unit := range r.order {
		for _, req := range r.protocols[unit].reqs {
			rows = append(rows, Row{
				Unit:     unit,
				Member:   req.Name,
				Expected: req.Expected(),
				Strategy: req.Strategy.String(),
				Doc:      req.Doc,
			})
		}
	}
	return rows
}

// BuildSchema renders a protocol as a JSON object schema. Typed
// requirements carry the schema reflected from their Go type.
func BuildSchema(unit string, p Protocol) *jsonschema.Schema {
	reflector := &jsonschema.Reflector{DoNotReference: true}
	s := &jsonschema.Schema{
		Version:    jsonschema.Version,
		Title:      unit,
		Type:       "object",
		Properties: jsonschema.NewProperties(),
	}

	for _, req := range p.reqs {
		prop := &jsonschema.Schema{}
		if req.Type != nil && req.Kind != KindMethod && reflectable(req.Type) {
			prop = reflector.ReflectFromType(req.Type)
			prop.Version = ""
		}
		prop.Description = req.Expected()
		if req.Doc != "" {
			prop.Description += ": " + req.Doc
		}
		s.Properties.Set(req.Name, prop)
		s.Required = append(s.Required, req.Name)
	}
	return s
}

func reflectable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Interface, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return false
	}
	return true
}
