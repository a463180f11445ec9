package paths

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"bargo/internal/logging"
)

// ErrManifestNotFound is returned when no Nargo.toml exists at or above the
// starting directory.
var ErrManifestNotFound = errors.New("could not find Nargo.toml in current directory or any parent directory")

// Manifest is the subset of Nargo.toml bargo cares about.
type Manifest struct {
	Path             string
	PackageName      string
	WorkspaceMembers []string
}

// IsWorkspace reports whether the manifest declares a [workspace] instead of
// a [package].
func (m Manifest) IsWorkspace() bool {
	return m.PackageName == "" && m.WorkspaceMembers != nil
}

// FindProjectRoot walks up from start looking for Nargo.toml.
func FindProjectRoot(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}
	for {
		if fi, err := os.Stat(filepath.Join(dir, ManifestName)); err == nil && !fi.IsDir() {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrManifestNotFound
		}
		dir = parent
	}
}

// ReadManifest parses <root>/Nargo.toml.
func ReadManifest(root string) (Manifest, error) {
	path := filepath.Join(root, ManifestName)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return Manifest{}, ErrManifestNotFound
		}
		return Manifest{}, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return Manifest{}, fmt.Errorf("failed to parse Nargo.toml: %w", err)
	}

	m := Manifest{
		Path:        path,
		PackageName: strings.TrimSpace(v.GetString("package.name")),
	}
	if v.IsSet("workspace") {
		m.WorkspaceMembers = v.GetStringSlice("workspace.members")
		if m.WorkspaceMembers == nil {
			m.WorkspaceMembers = []string{}
		}
	}
	return m, nil
}

// ResolvePackageName returns override when set, otherwise the package name
// from <root>/Nargo.toml. A workspace manifest falls back to the name of the
// project directory.
func ResolvePackageName(root, override string) (string, error) {
	if override = strings.TrimSpace(override); override != "" {
		return override, nil
	}

	m, err := ReadManifest(root)
	if err != nil {
		return "", err
	}
	if m.PackageName != "" {
		return m.PackageName, nil
	}

	if m.IsWorkspace() {
		abs, err := filepath.Abs(root)
		if err != nil {
			return "", err
		}
		name := filepath.Base(abs)
		logging.BuildWarn("Nargo.toml declares a workspace; using directory name %q as package name (pass --pkg to override)", name)
		return name, nil
	}

	return "", fmt.Errorf("failed to parse Nargo.toml: missing [package] name")
}
