package credentials

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

const storageFileName = "credentials.json"

// FileStorage persists the credential map as a single JSON file under the
// data folder. A missing or corrupt file reads as empty; the portal then
// simply requires a fresh sign-in.
type FileStorage struct {
	path string

	mu     sync.Mutex
	values map[string]string
}

func NewFileStorage(dataFolder string) (*FileStorage, error) {
	if dataFolder == "" {
		return nil, errors.New("[NewFileStorage] data folder is required")
	}
	if err := os.MkdirAll(dataFolder, 0o700); err != nil {
		return nil, errors.Wrap(err, "[NewFileStorage] MkdirAll")
	}

	s := &FileStorage{
		path:   filepath.Join(dataFolder, storageFileName),
		values: make(map[string]string),
	}
	s.load()
	return s, nil
}

func (s *FileStorage) Get(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[key], nil
}

func (s *FileStorage) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return s.persistLocked()
}

func (s *FileStorage) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[key]; !ok {
		return nil
	}
	delete(s.values, key)
	return s.persistLocked()
}

func (s *FileStorage) load() {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return
	}
	var values map[string]string
	if err := json.Unmarshal(b, &values); err != nil {
		return
	}
	s.values = values
}

func (s *FileStorage) persistLocked() error {
	b, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return errors.Wrap(err, "[FileStorage.persistLocked] MarshalIndent")
	}
	if err := os.WriteFile(s.path, b, 0o600); err != nil {
		return errors.Wrap(err, "[FileStorage.persistLocked] WriteFile")
	}
	return nil
}
