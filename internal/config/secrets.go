package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"bargo/internal/logging"
)

// Secrets resolves deployment values (RPC urls, keys, accounts). The process
// environment wins; dotenv files fill the gaps.
type Secrets struct {
	values map[string]string
	files  []string
}

// LoadSecrets reads the given dotenv files in order; later files override
// earlier ones. Missing files are skipped.
func LoadSecrets(files ...string) (*Secrets, error) {
	s := &Secrets{values: make(map[string]string)}
	for _, f := range files {
		if f == "" {
			continue
		}
		if _, err := os.Stat(f); os.IsNotExist(err) {
			logging.ConfigDebug("secrets: %s not present", f)
			continue
		}

		v := viper.New()
		v.SetConfigFile(f)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", f, err)
		}
		for _, k := range v.AllKeys() {
			s.values[strings.ToUpper(k)] = v.GetString(k)
		}
		s.files = append(s.files, f)
		logging.Config("secrets: loaded %d values from %s", len(v.AllKeys()), f)
	}
	return s, nil
}

// StaticSecrets builds Secrets from a map, for callers that already hold the
// values.
func StaticSecrets(values map[string]string) *Secrets {
	s := &Secrets{values: make(map[string]string, len(values))}
	for k, v := range values {
		s.values[k] = v
	}
	return s
}

// Files lists the dotenv files that were actually read.
func (s *Secrets) Files() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.files...)
}

// Lookup returns the value for key.
func (s *Secrets) Lookup(key string) (string, bool) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v, true
	}
	if s == nil {
		return "", false
	}
	v, ok := s.values[key]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// Require returns the value for key or a ConfigurationError naming it.
func (s *Secrets) Require(key string) (string, error) {
	if v, ok := s.Lookup(key); ok {
		return v, nil
	}
	return "", MissingEnv(key, s.Files()...)
}
