package health

import (
	"context"
	"path/filepath"
	"testing"
)

func TestDirWritable_OK(t *testing.T) {
	c := DirWritable("recordings_root", t.TempDir())
	if err := c.Check(context.Background()); err != nil {
		t.Errorf("Check: %v", err)
	}
}

func TestDirWritable_MissingDir(t *testing.T) {
	c := DirWritable("recordings_root", filepath.Join(t.TempDir(), "nope"))
	if err := c.Check(context.Background()); err == nil {
		t.Error("expected error for missing directory")
	}
}
