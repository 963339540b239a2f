package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestMeetingSlug(t *testing.T) {
	tests := []struct {
		url, want string
	}{
		{"https://meet.example/xyz", "xyz"},
		{"https://meet.example/team/weekly-sync/", "weekly-sync"},
		{"https://meet.example/Họp%20Tuần", "hop-tuan"},
		{"https://meet.example/", "meet-example"},
		{"", "unknown"},
		{"://bad url", "unknown"},
	}
	for _, tc := range tests {
		if got := meetingSlug(tc.url); got != tc.want {
			t.Errorf("meetingSlug(%q): got %q, want %q", tc.url, got, tc.want)
		}
	}
}

func TestSanitizeSlug(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Weekly Sync!", "weekly-sync"},
		{"--a--b--", "a-b"},
		{"çà-va", "ca-va"},
		{"###", ""},
	}
	for _, tc := range tests {
		if got := sanitizeSlug(tc.in); got != tc.want {
			t.Errorf("sanitizeSlug(%q): got %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestArchiveBaseName(t *testing.T) {
	started := time.Date(2024, 6, 7, 14, 30, 5, 123456789, time.UTC)
	got := archiveBaseName("https://meet.example/xyz", started, "0f8fad5b-d9cb-469f-a165-70867728950e")
	want := "meeting_xyz_20240607T143005Z_0f8fad5b"
	if got != want {
		t.Errorf("archiveBaseName: got %q, want %q", got, want)
	}
}

func TestClaimArchiveDir_Collisions(t *testing.T) {
	root := t.TempDir()
	completed := filepath.Join(root, "completed")
	for _, existing := range []string{"m", "m_01"} {
		if err := os.MkdirAll(filepath.Join(completed, existing), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	live := filepath.Join(root, "live")
	if err := os.MkdirAll(live, 0o755); err != nil {
		t.Fatal(err)
	}

	target, err := claimArchiveDir(completed, "m", live)
	if err != nil {
		t.Fatalf("claimArchiveDir: %v", err)
	}
	if filepath.Base(target) != "m_02" {
		t.Errorf("target: got %q, want m_02", filepath.Base(target))
	}
	if _, err := os.Stat(live); !os.IsNotExist(err) {
		t.Error("live dir was not moved")
	}
}

func TestListFiles_SortedRelative(t *testing.T) {
	dir := t.TempDir()
	for _, f := range []string{"b.txt", "participants/p1/a.wav", "a.json"} {
		path := filepath.Join(dir, f)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("xy"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	files, err := listFiles(dir)
	if err != nil {
		t.Fatalf("listFiles: %v", err)
	}
	want := []string{"a.json", "b.txt", "participants/p1/a.wav"}
	if len(files) != len(want) {
		t.Fatalf("file count: got %d, want %d", len(files), len(want))
	}
	for i, f := range files {
		if f.Path != want[i] {
			t.Errorf("files[%d]: got %q, want %q", i, f.Path, want[i])
		}
		if f.Size != 2 {
			t.Errorf("files[%d] size: got %d, want 2", i, f.Size)
		}
	}
}
