package ports

// SchemaRegistry exposes the JSON schemas describing what each unit
// requires from its host.
type SchemaRegistry interface {
	// Schema retrieves the JSON Schema for a unit's requirements.
	Schema(unit string) (string, bool)

	// List returns all registered unit names.
	List() []string
}
