package health

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// DirWritable returns a [Checker] that verifies dir exists and accepts
// writes by creating and removing a probe file. The ingestion server uses it
// against the recordings root: a session cannot be recorded when the root is
// missing or read-only.
func DirWritable(name, dir string) Checker {
	return Checker{
		Name: name,
		Check: func(_ context.Context) error {
			info, err := os.Stat(dir)
			if err != nil {
				return fmt.Errorf("stat %s: %w", dir, err)
			}
			if !info.IsDir() {
				return fmt.Errorf("%s is not a directory", dir)
			}
			probe := filepath.Join(dir, ".health-probe")
			if err := os.WriteFile(probe, nil, 0o644); err != nil {
				return fmt.Errorf("write probe: %w", err)
			}
			return os.Remove(probe)
		},
	}
}
