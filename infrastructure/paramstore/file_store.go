// Package paramstore persists parameter snapshots on disk.
package paramstore

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/reglet-dev/reglet-compose/domain/ports"
	"github.com/reglet-dev/reglet-compose/infrastructure/parser"
)

type fileStoreConfig struct {
	path     string
	dirPerm  os.FileMode
	filePerm os.FileMode
	parser   ports.ParamsParser
}

func defaultFileStoreConfig() fileStoreConfig {
	return fileStoreConfig{
		path:     filepath.Join(".", "backup", "parameters.yaml"),
		dirPerm:  0o755,
		filePerm: 0o644,
		parser:   parser.NewYamlParamsParser(),
	}
}

// FileStoreOption configures a FileStore instance.
type FileStoreOption func(*fileStoreConfig)

// WithPath sets the path to the snapshot file.
func WithPath(path string) FileStoreOption {
	return func(c *fileStoreConfig) {
		c.path = path
	}
}

// WithFilePermissions sets the permissions of the snapshot file.
// Default is 0o644.
func WithFilePermissions(perm os.FileMode) FileStoreOption {
	return func(c *fileStoreConfig) {
		c.filePerm = perm
	}
}

// WithDirPermissions sets the permissions of created directories.
// Default is 0o755.
func WithDirPermissions(perm os.FileMode) FileStoreOption {
	return func(c *fileStoreConfig) {
		c.dirPerm = perm
	}
}

// WithParser sets the encoding of the snapshot file. Default is YAML.
func WithParser(p ports.ParamsParser) FileStoreOption {
	return func(c *fileStoreConfig) {
		if p != nil {
			c.parser = p
		}
	}
}

// FileStore provides file-based persistence for parameter snapshots.
type FileStore struct {
	config fileStoreConfig
}

// NewFileStore creates a new FileStore with the given options.
func NewFileStore(opts ...FileStoreOption) *FileStore {
	cfg := defaultFileStoreConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &FileStore{config: cfg}
}

var _ ports.ParamStore = (*FileStore)(nil)

// Load retrieves the stored snapshot.
func (s *FileStore) Load() (map[string]any, error) {
	data, err := os.ReadFile(s.config.path)
	if os.IsNotExist(err) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read parameter store: %w", err)
	}

	values, err := s.config.parser.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse parameter store: %w", err)
	}
	return values, nil
}

// Save persists the snapshot, replacing any previous one.
func (s *FileStore) Save(values map[string]any) error {
	data, err := s.config.parser.Format(values)
	if err != nil {
		return fmt.Errorf("failed to marshal parameters: %w", err)
	}

	dir := filepath.Dir(s.config.path)
	if err := os.MkdirAll(dir, s.config.dirPerm); err != nil {
		return fmt.Errorf("failed to create parameter store directory: %w", err)
	}

	if err := os.WriteFile(s.config.path, data, s.config.filePerm); err != nil {
		return fmt.Errorf("failed to write parameter store: %w", err)
	}
	return nil
}

// Path returns the path to the snapshot file.
func (s *FileStore) Path() string {
	return s.config.path
}
