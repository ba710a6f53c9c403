package storefake

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/srinivas112004/go-employee-portal/credentials"
)

var _ credentials.Storage = (*FakeStorage)(nil)

// FakeStorage is an in-memory Storage for tests. FailReads/FailWrites
// simulate an unavailable backing store.
type FakeStorage struct {
	lock   sync.RWMutex
	values map[string]string

	FailReads  bool
	FailWrites bool
}

func NewFakeStorage() *FakeStorage {
	return &FakeStorage{values: make(map[string]string)}
}

func (f *FakeStorage) Get(key string) (string, error) {
	f.lock.RLock()
	defer f.lock.RUnlock()
	if f.FailReads {
		return "", errors.New("storage unavailable")
	}
	return f.values[key], nil
}

func (f *FakeStorage) Set(key, value string) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.FailWrites {
		return errors.New("storage unavailable")
	}
	f.values[key] = value
	return nil
}

func (f *FakeStorage) Delete(key string) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.FailWrites {
		return errors.New("storage unavailable")
	}
	delete(f.values, key)
	return nil
}

// Seed writes a raw value directly, bypassing failure toggles.
func (f *FakeStorage) Seed(key, value string) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.values[key] = value
}
