package credentials

import (
	"encoding/json"
	"strings"
)

// Storage is the raw key/value persistence behind the credential store.
// Implementations must treat missing keys as empty values.
type Storage interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

const (
	accessKey  = "access_token"
	refreshKey = "refresh_token"
)

// Earlier portal builds saved the access token under different names and
// shapes. Reads tolerate all of them so an upgrade never signs users out.
var legacyAccessKeys = []string{accessKey, "access", "token", "authToken"}

var legacyObjectFields = []string{"access", "token", "auth"}

var schemePrefixes = []string{"Bearer ", "Token "}

// Store owns the (access, refresh) credential pair. All other components
// read through it; only the store and the refresh coordinator write.
type Store struct {
	storage Storage
}

func NewStore(storage Storage) *Store {
	return &Store{storage: storage}
}

// Read returns the access token, or empty when none is stored or the
// storage is unavailable. If the stored value carries a scheme prefix
// ("Bearer " or "Token ") the prefix is preserved.
func (s *Store) Read() string {
	for _, key := range legacyAccessKeys {
		value, err := s.storage.Get(key)
		if err != nil || value == "" {
			continue
		}
		if token := normaliseStored(value); token != "" {
			return token
		}
	}
	return ""
}

// ReadRefresh returns the refresh token or empty.
func (s *Store) ReadRefresh() string {
	value, err := s.storage.Get(refreshKey)
	if err != nil {
		return ""
	}
	return normaliseStored(value)
}

// Write persists a new credential pair. An empty refresh keeps any
// existing refresh token, so it works whether or not the server rotates
// refresh tokens. Writes are best-effort.
func (s *Store) Write(access, refresh string) {
	_ = s.storage.Set(accessKey, access)
	if refresh != "" {
		_ = s.storage.Set(refreshKey, refresh)
	}
}

// Clear removes the credential pair, including any legacy keys.
func (s *Store) Clear() {
	for _, key := range legacyAccessKeys {
		_ = s.storage.Delete(key)
	}
	_ = s.storage.Delete(refreshKey)
}

// HasScheme reports whether a token already carries an authorization
// scheme prefix.
func HasScheme(token string) bool {
	for _, prefix := range schemePrefixes {
		if strings.HasPrefix(token, prefix) {
			return true
		}
	}
	return false
}

// normaliseStored unpacks the recognised legacy value shapes: a raw token,
// a serialised object holding the token in one of a few fields, or a value
// already prefixed with a scheme.
func normaliseStored(value string) string {
	value = strings.TrimSpace(value)
	if value == "" || value == "null" || value == "undefined" {
		return ""
	}
	if strings.HasPrefix(value, "{") {
		var obj map[string]any
		if err := json.Unmarshal([]byte(value), &obj); err != nil {
			return value
		}
		for _, field := range legacyObjectFields {
			if token, ok := obj[field].(string); ok && token != "" {
				return token
			}
		}
		return ""
	}
	if strings.HasPrefix(value, `"`) {
		var unquoted string
		if err := json.Unmarshal([]byte(value), &unquoted); err == nil {
			return unquoted
		}
	}
	return value
}

// StripScheme returns the bare token without any scheme prefix. Used where
// the token travels as a query parameter rather than a header.
func StripScheme(token string) string {
	for _, prefix := range schemePrefixes {
		if strings.HasPrefix(token, prefix) {
			return strings.TrimPrefix(token, prefix)
		}
	}
	return token
}
