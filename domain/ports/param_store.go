package ports

// ParamStore provides persistence for parameter snapshots.
type ParamStore interface {
	// Load retrieves the stored parameters.
	// Returns an empty map (not error) if nothing was stored yet.
	Load() (map[string]any, error)

	// Save persists the parameters.
	Save(values map[string]any) error

	// Path returns the path to the backing store (for user messaging).
	Path() string
}
