package fs

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/bft-labs/groupcast/internal/ports"
)

const registryFileName = "registry.json"

// RegistryFileRepository implements ports.RegistryRepository using a JSON file.
type RegistryFileRepository struct {
	dir string
}

// NewRegistryFileRepository creates a new RegistryFileRepository for the given directory.
func NewRegistryFileRepository(dir string) *RegistryFileRepository {
	return &RegistryFileRepository{dir: dir}
}

type registryFile struct {
	Sessions []ports.SessionRecord `json:"sessions"`
}

// Load retrieves the last saved snapshot from disk.
// Returns an empty snapshot and nil error if no file exists.
func (r *RegistryFileRepository) Load(ctx context.Context) ([]ports.SessionRecord, error) {
	data, err := os.ReadFile(r.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var f registryFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return f.Sessions, nil
}

// Save persists the snapshot atomically.
// Uses atomic write (write to temp file, then rename) to prevent corruption.
func (r *RegistryFileRepository) Save(ctx context.Context, records []ports.SessionRecord) error {
	if err := os.MkdirAll(r.dir, 0o700); err != nil {
		return err
	}

	path := r.Path()
	tmp := path + ".tmp"

	if records == nil {
		records = []ports.SessionRecord{}
	}
	data, err := json.MarshalIndent(registryFile{Sessions: records}, "", "  ")
	if err != nil {
		return err
	}

	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Path returns the full path to the registry file.
func (r *RegistryFileRepository) Path() string {
	return filepath.Join(r.dir, registryFileName)
}

var _ ports.RegistryRepository = (*RegistryFileRepository)(nil)
