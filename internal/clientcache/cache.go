// Package clientcache holds the client-side session persistence helpers: a
// small file-backed flag store mirroring what the web client keeps in local
// storage, and the best-effort sign-out cleanup sequence.
package clientcache

import (
	"os"
	"path/filepath"
	"strings"
)

// Flag and mirror keys kept in the local store.
const (
	KeyRememberMe    = "remember_me"
	KeyManualSignOut = "manual_signout"
)

// ProviderTokenKeys are the provider token mirror entries removed on
// sign-out.
var ProviderTokenKeys = []string{
	"sb-access-token",
	"sb-refresh-token",
	"supabase-auth-token",
}

const sessionDir = "session"

// Store is a directory-backed key/value store. All operations degrade to
// no-ops (and lookups to false) when the directory is not writable, e.g. on a
// locked-down profile.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Available probes whether the backing directory is usable by writing and
// removing a marker entry.
func (s *Store) Available() bool {
	if s == nil || s.dir == "" {
		return false
	}
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return false
	}

	probe := filepath.Join(s.dir, ".probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o600); err != nil {
		return false
	}
	_ = os.Remove(probe)
	return true
}

// Set stores a value under key. No-op when storage is unavailable.
func (s *Store) Set(key, value string) {
	if !s.Available() {
		return
	}
	_ = os.WriteFile(s.path(key), []byte(value), 0o600)
}

// Get returns the stored value, or "" when absent or unavailable.
func (s *Store) Get(key string) string {
	if !s.Available() {
		return ""
	}
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		return ""
	}
	return string(data)
}

// Remove deletes a key. No-op when absent or unavailable.
func (s *Store) Remove(key string) {
	if !s.Available() {
		return
	}
	_ = os.Remove(s.path(key))
}

func (s *Store) SetRememberMe(on bool) {
	if on {
		s.Set(KeyRememberMe, "true")
	} else {
		s.Remove(KeyRememberMe)
	}
}

func (s *Store) HasRememberMe() bool {
	return s.Get(KeyRememberMe) == "true"
}

func (s *Store) SetManualSignOut(on bool) {
	if on {
		s.Set(KeyManualSignOut, "true")
	} else {
		s.Remove(KeyManualSignOut)
	}
}

func (s *Store) HasManualSignOut() bool {
	return s.Get(KeyManualSignOut) == "true"
}

// SetSessionValue stores a value in the volatile session area, which is
// wiped wholesale on sign-out.
func (s *Store) SetSessionValue(key, value string) {
	if !s.Available() {
		return
	}
	dir := filepath.Join(s.dir, sessionDir)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return
	}
	_ = os.WriteFile(filepath.Join(dir, sanitize(key)), []byte(value), 0o600)
}

// ClearSession wipes the volatile session area.
func (s *Store) ClearSession() error {
	if !s.Available() {
		return nil
	}
	return os.RemoveAll(filepath.Join(s.dir, sessionDir))
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, sanitize(key))
}

func sanitize(key string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':':
			return '_'
		}
		return r
	}, key)
}
