package session

import (
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// maxLabelNameLen bounds the sanitised name portion of a participant label.
const maxLabelNameLen = 48

// stripMarks removes Unicode combining marks after NFKD decomposition, so
// "Trần" sanitises to "tran" rather than being dropped.
var stripMarks = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))

var trailingDigits = regexp.MustCompile(`(\d+)$`)

// sanitizeName normalises a display or full name into a filesystem-safe
// label fragment: NFKD, marks stripped, alphanumerics only, lowercase,
// truncated. Falls back to "participant" when nothing survives.
func sanitizeName(name string) string {
	decomposed, _, err := transform.String(stripMarks, name)
	if err != nil {
		decomposed = name
	}
	var b strings.Builder
	for _, r := range decomposed {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	s := b.String()
	if len(s) > maxLabelNameLen {
		s = s[:maxLabelNameLen]
	}
	if s == "" {
		return "participant"
	}
	return s
}

// deviceSuffix derives a stable short suffix from a participant device id:
// the trailing run of decimal digits, else the last three digits found
// anywhere in the id, else "id".
func deviceSuffix(participantID string) string {
	if m := trailingDigits.FindStringSubmatch(participantID); m != nil {
		return m[1]
	}
	var digits []byte
	for i := 0; i < len(participantID); i++ {
		if c := participantID[i]; c >= '0' && c <= '9' {
			digits = append(digits, c)
		}
	}
	if len(digits) > 3 {
		digits = digits[len(digits)-3:]
	}
	if len(digits) > 0 {
		return string(digits)
	}
	return "id"
}

// makeLabel composes a participant label of the form name_suffix_rand. The
// random digits keep two same-named participants from sharing a directory.
func makeLabel(info ParticipantInfo, participantID string) string {
	name := info.FullName
	if name == "" {
		name = info.DisplayName
	}
	if name == "" {
		name = "participant"
	}
	return fmt.Sprintf("%s_%s_%03d", sanitizeName(name), deviceSuffix(participantID), rand.Intn(1000))
}
