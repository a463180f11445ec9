package paths

import (
	"fmt"
	"os"

	"bargo/internal/logging"
)

// OrganizeResult reports what OrganizeBuildArtifacts did.
type OrganizeResult struct {
	Moved   []string // destination paths
	Skipped []string // source paths that did not exist
}

// OrganizeBuildArtifacts moves target/<pkg>.json and target/<pkg>.gz into
// target/<flavour>/. A source file that is absent is skipped, not an error;
// callers decide whether an empty Moved list matters.
func (l Layout) OrganizeBuildArtifacts(pkg string, f Flavour) (OrganizeResult, error) {
	var res OrganizeResult

	if err := l.EnsureDir(f); err != nil {
		return res, err
	}

	moves := []struct{ src, dst string }{
		{l.CompilerOutput(pkg, ".json"), l.Bytecode(pkg, f)},
		{l.CompilerOutput(pkg, ".gz"), l.Witness(pkg, f)},
	}
	for _, m := range moves {
		if _, err := os.Stat(m.src); os.IsNotExist(err) {
			logging.BuildWarn("organize: %s not found, skipping", m.src)
			res.Skipped = append(res.Skipped, m.src)
			continue
		}
		if err := os.Rename(m.src, m.dst); err != nil {
			return res, fmt.Errorf("failed to move %s to %s: %w", m.src, m.dst, err)
		}
		logging.BuildDebug("organize: %s -> %s", m.src, m.dst)
		res.Moved = append(res.Moved, m.dst)
	}
	return res, nil
}
