package ports

// ParamsParser parses raw bytes into a parameter map.
type ParamsParser interface {
	// Parse unmarshals bytes into a map of parameter values.
	Parse(data []byte) (map[string]any, error)

	// Format marshals a parameter map.
	Format(values map[string]any) ([]byte, error)
}
