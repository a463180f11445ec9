// Package store persists the small values one pipeline stage hands to a
// later, separately invoked stage (a declared class hash, a deployed
// address). Each key maps to a plain-text file under target/<flavour>/.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"bargo/internal/logging"
	"bargo/internal/paths"
)

// Key names a breadcrumb.
type Key string

const (
	ClassIdentifier Key = "class_identifier"
	ContractAddress Key = "contract_address"
)

// schema maps every known key to its file name.
var schema = map[Key]string{
	ClassIdentifier: ".bargo_class_hash",
	ContractAddress: ".bargo_contract_address",
}

// Keys returns every declared key, sorted.
func Keys() []Key {
	keys := make([]Key, 0, len(schema))
	for k := range schema {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// ErrNotFound is returned by Get for an absent breadcrumb.
var ErrNotFound = errors.New("breadcrumb not found")

// ErrUnknownKey is returned for keys outside the schema.
var ErrUnknownKey = errors.New("unknown breadcrumb key")

// Store reads and writes the breadcrumbs of one flavour.
type Store struct {
	dir     string
	flavour paths.Flavour
}

// New returns the store rooted at target/<flavour>.
func New(l paths.Layout, f paths.Flavour) *Store {
	return &Store{dir: l.TargetDir(f), flavour: f}
}

// Flavour returns the flavour the store belongs to.
func (s *Store) Flavour() paths.Flavour { return s.flavour }

// Path returns the file backing key.
func (s *Store) Path(key Key) (string, error) {
	name, ok := schema[key]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	return filepath.Join(s.dir, name), nil
}

// Get returns the trimmed value for key.
func (s *Store) Get(key Key) (string, error) {
	p, err := s.Path(key)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return "", err
	}
	v := strings.TrimSpace(string(data))
	if v == "" {
		return "", fmt.Errorf("%w: %s is empty", ErrNotFound, key)
	}
	logging.StoreDebug("read %s/%s from %s", s.flavour, key, p)
	return v, nil
}

// Lookup is Get with a boolean instead of ErrNotFound.
func (s *Store) Lookup(key Key) (string, bool, error) {
	v, err := s.Get(key)
	if errors.Is(err, ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// Put writes value for key, creating the flavour directory if needed. The
// file is replaced atomically.
func (s *Store) Put(key Key, value string) error {
	p, err := s.Path(key)
	if err != nil {
		return err
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return fmt.Errorf("refusing to store empty %s", key)
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", s.dir, err)
	}

	tmp, err := os.CreateTemp(s.dir, ".breadcrumb-*")
	if err != nil {
		return err
	}
	if _, err := tmp.WriteString(value); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	logging.Store("%s/%s = %s", s.flavour, key, value)
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *Store) Delete(key Key) error {
	p, err := s.Path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return err
	}
	logging.StoreDebug("deleted %s/%s", s.flavour, key)
	return nil
}

// Snapshot returns every present breadcrumb.
func (s *Store) Snapshot() (map[Key]string, error) {
	out := make(map[Key]string)
	for _, k := range Keys() {
		v, ok, err := s.Lookup(k)
		if err != nil {
			return nil, err
		}
		if ok {
			out[k] = v
		}
	}
	return out, nil
}
