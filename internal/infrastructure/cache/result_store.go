// Package cache persists compiled program results next to the program they
// belong to.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/doeshing/litvis-go/internal/domain"
	"github.com/doeshing/litvis-go/internal/ports"
)

// FileResultStore stores CachedProgramResults as indented JSON documents.
// Writes go through a temporary file and a rename, so readers in other
// processes see either nothing or the whole document.
type FileResultStore struct{}

// NewFileResultStore returns a store addressed by absolute result paths.
func NewFileResultStore() *FileResultStore {
	return &FileResultStore{}
}

// Load reads the result at path. A missing file is a miss, not an error.
func (s *FileResultStore) Load(path string) (domain.CachedProgramResult, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.CachedProgramResult{}, false, nil
		}
		return domain.CachedProgramResult{}, false, err
	}
	var result domain.CachedProgramResult
	if err := json.Unmarshal(data, &result); err != nil {
		return domain.CachedProgramResult{}, false, fmt.Errorf("%w: %s: %v", domain.ErrMalformedCache, path, err)
	}
	switch result.Status {
	case domain.ProgramSucceeded, domain.ProgramFailed:
	default:
		return domain.CachedProgramResult{}, false, fmt.Errorf("%w: %s: unknown status %q", domain.ErrMalformedCache, path, result.Status)
	}
	return result, true, nil
}

// Save writes result to path, creating parent directories.
func (s *FileResultStore) Save(path string, result domain.CachedProgramResult) error {
	if result.Errors == nil {
		result.Errors = []domain.RawCompilerError{}
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, domain.DirectoryPermissions); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), domain.FilePermissions); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

var _ ports.ResultStore = (*FileResultStore)(nil)
