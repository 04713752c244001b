package snapshot

import (
	"os"
	"path/filepath"
)

// Store keeps the last successful response of each upstream API on disk so a
// run can fall back to it when the API is down or rate limited.
type Store struct {
	dir string
}

func New(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) Save(name string, data []byte) error {
	err := os.MkdirAll(s.dir, 0755)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.dir, name), data, 0644)
}

func (s *Store) Load(name string) ([]byte, error) {
	return os.ReadFile(filepath.Join(s.dir, name))
}
