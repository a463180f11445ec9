// Package rebuild decides whether the compiled circuit under target/bb is
// older than any of its inputs.
package rebuild

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"bargo/internal/logging"
	"bargo/internal/paths"
)

// Reason explains a NeedsRebuild verdict.
type Reason struct {
	Stale bool
	// Trigger is the path that caused the verdict, empty when up to date.
	Trigger string
	Why     string
}

// errStop ends the source walk at the first newer file.
var errStop = errors.New("stop")

// NeedsRebuild reports whether pkg must be recompiled.
func NeedsRebuild(l paths.Layout, pkg string) (bool, error) {
	r, err := Check(l, pkg)
	return r.Stale, err
}

// Check is NeedsRebuild with the triggering path attached.
func Check(l paths.Layout, pkg string) (Reason, error) {
	bytecode := l.Bytecode(pkg, paths.FlavourBB)
	witness := l.Witness(pkg, paths.FlavourBB)

	bt, ok, err := modTime(bytecode)
	if err != nil {
		return Reason{}, err
	}
	if !ok {
		return stale(bytecode, "bytecode missing"), nil
	}
	wt, ok, err := modTime(witness)
	if err != nil {
		return Reason{}, err
	}
	if !ok {
		return stale(witness, "witness missing"), nil
	}

	target := bt
	if wt.Before(target) {
		target = wt
	}

	mt, ok, err := modTime(l.Manifest())
	if err != nil {
		return Reason{}, err
	}
	if ok && mt.After(target) {
		return stale(l.Manifest(), "manifest changed"), nil
	}

	pt, ok, err := modTime(l.ProverInput())
	if err != nil {
		return Reason{}, err
	}
	if ok && pt.After(target) {
		return stale(l.ProverInput(), "prover inputs changed"), nil
	}

	src := l.SourceDir()
	if _, err := os.Stat(src); os.IsNotExist(err) {
		logging.BuildDebug("staleness: %s missing, skipping source scan", src)
		return Reason{Why: "up to date"}, nil
	}

	var newer string
	err = filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().After(target) {
			newer = path
			return errStop
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStop) {
		return Reason{}, err
	}
	if newer != "" {
		return stale(newer, "source changed"), nil
	}
	return Reason{Why: "up to date"}, nil
}

func stale(path, why string) Reason {
	logging.BuildDebug("staleness: rebuild needed, %s (%s)", why, path)
	return Reason{Stale: true, Trigger: path, Why: why}
}

// modTime returns the mtime of path, ok=false when it does not exist.
func modTime(path string) (time.Time, bool, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	return fi.ModTime(), true, nil
}
