package session

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// File names written during finalisation and archival.
const (
	summaryFileName  = "session-summary.json"
	manifestFileName = "archive.json"
)

// archiveTimeFormat renders the session start as compact ISO-8601 UTC,
// e.g. 20240607T143005Z.
const archiveTimeFormat = "20060102T150405Z"

// Manifest is archive.json: the sealed inventory of a completed directory.
type Manifest struct {
	SessionID  string         `json:"sessionId"`
	MeetingURL string         `json:"meetingUrl,omitempty"`
	BotName    string         `json:"botName,omitempty"`
	StartedAt  string         `json:"startedAt"`
	ArchivedAt string         `json:"archivedAt"`
	Files      []ManifestFile `json:"files"`
}

// ManifestFile is one manifest entry, path relative to the archive root.
type ManifestFile struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// archive promotes the live directory to recordings/completed, writes the
// manifest, and rewrites the summary with the archive paths. Returns the
// final archive directory.
func (s *Session) archive(sum *Summary) (string, error) {
	completedRoot := filepath.Join(s.opts.Root, "completed")
	if err := os.MkdirAll(completedRoot, 0o755); err != nil {
		return "", fmt.Errorf("create completed dir: %w", err)
	}

	base := archiveBaseName(s.meta.MeetingURL, s.start, s.id.String())
	target, err := claimArchiveDir(completedRoot, base, s.liveDir)
	if err != nil {
		return "", err
	}

	files, err := listFiles(target)
	if err != nil {
		return "", fmt.Errorf("enumerate archive: %w", err)
	}
	manifest := &Manifest{
		SessionID:  s.id.String(),
		MeetingURL: s.meta.MeetingURL,
		BotName:    s.meta.BotName,
		StartedAt:  s.start.UTC().Format(time.RFC3339),
		ArchivedAt: time.Now().UTC().Format(time.RFC3339),
		Files:      files,
	}
	manifestPath := filepath.Join(target, manifestFileName)
	if err := writeJSONFile(manifestPath, manifest); err != nil {
		return "", fmt.Errorf("write manifest: %w", err)
	}

	sum.ArchivePath = target
	sum.ManifestPath = manifestPath
	if err := writeJSONFile(filepath.Join(target, summaryFileName), sum); err != nil {
		return "", fmt.Errorf("enrich summary: %w", err)
	}
	return target, nil
}

// claimArchiveDir renames liveDir to completedRoot/base, appending _NN
// (starting at _01) while the target name is taken.
func claimArchiveDir(completedRoot, base, liveDir string) (string, error) {
	target := filepath.Join(completedRoot, base)
	for n := 0; ; n++ {
		if n > 0 {
			target = filepath.Join(completedRoot, fmt.Sprintf("%s_%02d", base, n))
		}
		if n > 99 {
			return "", fmt.Errorf("no free archive name for %q after 99 attempts", base)
		}
		if _, err := os.Stat(target); err == nil {
			continue
		} else if !os.IsNotExist(err) {
			return "", fmt.Errorf("probe archive name: %w", err)
		}
		if err := os.Rename(liveDir, target); err != nil {
			return "", fmt.Errorf("move to completed: %w", err)
		}
		return target, nil
	}
}

// listFiles walks dir recursively and returns every regular file with its
// size, paths relative to dir and sorted.
func listFiles(dir string) ([]ManifestFile, error) {
	var files []ManifestFile
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
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
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, ManifestFile{Path: filepath.ToSlash(rel), Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// archiveBaseName composes meeting_<slug>_<timestamp>_<shortId>.
func archiveBaseName(meetingURL string, started time.Time, sessionID string) string {
	shortID := sessionID
	if len(shortID) > 8 {
		shortID = shortID[:8]
	}
	return fmt.Sprintf("meeting_%s_%s_%s",
		meetingSlug(meetingURL),
		started.UTC().Format(archiveTimeFormat),
		shortID,
	)
}

// meetingSlug derives a filesystem-safe slug from the meeting URL: the last
// non-empty path segment, else the host, else "unknown".
func meetingSlug(meetingURL string) string {
	if meetingURL == "" {
		return "unknown"
	}
	u, err := url.Parse(meetingURL)
	if err != nil {
		return "unknown"
	}
	segments := strings.Split(u.Path, "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if s := sanitizeSlug(segments[i]); s != "" {
			return s
		}
	}
	if s := sanitizeSlug(u.Host); s != "" {
		return s
	}
	return "unknown"
}

// slugMarkStripper removes combining marks after NFKD decomposition.
var slugMarkStripper = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))

// sanitizeSlug lowercases and replaces non-alphanumeric runs with single
// dashes, trimming leading and trailing dashes.
func sanitizeSlug(s string) string {
	decomposed, _, err := transform.String(slugMarkStripper, s)
	if err != nil {
		decomposed = s
	}
	var b strings.Builder
	lastDash := true
	for _, r := range decomposed {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		case r >= 'A' && r <= 'Z':
			b.WriteRune(unicode.ToLower(r))
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

// writeJSONFile marshals v with indentation and writes it atomically enough
// for a single-writer directory.
func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
