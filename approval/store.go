// Package approval decides whether an update escalation may proceed: it
// loads remembered approvals, applies the configured security level,
// prompts interactively for the rest, and issues the approval token the
// Loader consumes.
package approval

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/veilbrowser/extension-host/registry"
)

// Store persists remembered escalation approvals: install id -> approved
// grant fingerprint. An approval remembers exactly one grant shape; any
// different escalation prompts again.
type Store interface {
	Load() (map[registry.InstallID]string, error)
	Save(map[registry.InstallID]string) error
	Path() string
}

type fileStoreConfig struct {
	path     string
	dirPerm  os.FileMode
	filePerm os.FileMode
}

func defaultFileStoreConfig() fileStoreConfig {
	return fileStoreConfig{
		path:     filepath.Join(os.Getenv("HOME"), ".veilbrowser", "approvals.yaml"),
		dirPerm:  0o755,
		filePerm: 0o600,
	}
}

// FileStoreOption configures a FileStore instance.
type FileStoreOption func(*fileStoreConfig)

// WithPath sets the path to the approvals file.
func WithPath(path string) FileStoreOption {
	return func(c *fileStoreConfig) {
		if path != "" {
			c.path = path
		}
	}
}

// WithFilePermissions sets the file permissions for the approvals file.
func WithFilePermissions(perm os.FileMode) FileStoreOption {
	return func(c *fileStoreConfig) {
		c.filePerm = perm
	}
}

// WithDirPermissions sets the directory permissions for the approvals
// directory.
func WithDirPermissions(perm os.FileMode) FileStoreOption {
	return func(c *fileStoreConfig) {
		c.dirPerm = perm
	}
}

// FileStore provides file-based persistence for remembered approvals.
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

// Load retrieves all remembered approvals.
func (s *FileStore) Load() (map[registry.InstallID]string, error) {
	data, err := os.ReadFile(s.config.path)
	if os.IsNotExist(err) {
		return map[registry.InstallID]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read approval store: %w", err)
	}

	var approvals map[registry.InstallID]string
	if err := yaml.Unmarshal(data, &approvals); err != nil {
		return nil, fmt.Errorf("failed to parse approval store: %w", err)
	}
	if approvals == nil {
		approvals = map[registry.InstallID]string{}
	}
	return approvals, nil
}

// Save persists the remembered approvals.
func (s *FileStore) Save(approvals map[registry.InstallID]string) error {
	if approvals == nil {
		approvals = map[registry.InstallID]string{}
	}

	data, err := yaml.Marshal(approvals)
	if err != nil {
		return fmt.Errorf("failed to marshal approvals: %w", err)
	}

	dir := filepath.Dir(s.config.path)
	if err := os.MkdirAll(dir, s.config.dirPerm); err != nil {
		return fmt.Errorf("failed to create approval store directory: %w", err)
	}

	if err := os.WriteFile(s.config.path, data, s.config.filePerm); err != nil {
		return fmt.Errorf("failed to write approval store: %w", err)
	}
	return nil
}

// Path returns the path to the backing store.
func (s *FileStore) Path() string {
	return s.config.path
}
