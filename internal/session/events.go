package session

import (
	"encoding/json"
	"log/slog"
)

// Recognised telemetry event types. Everything else is persisted to the
// telemetry log and otherwise ignored.
const (
	eventSessionStarted      = "SessionStarted"
	eventAudioFormatUpdate   = "AudioFormatUpdate"
	eventUsersUpdate         = "UsersUpdate"
	eventMeetingStatusChange = "MeetingStatusChange"
)

// changeRemovedFromMeeting is the MeetingStatusChange value that terminates
// the session.
const changeRemovedFromMeeting = "removed_from_meeting"

// Event is the decoded shape of an inbound JSON frame. The protocol is
// open-ended; unknown fields are ignored and unknown types pass through to
// telemetry untouched.
type Event struct {
	Type       string `json:"type"`
	MeetingURL string `json:"meetingUrl"`
	BotName    string `json:"botName"`
	StartedAt  string `json:"startedAt"`
	Change     string `json:"change"`

	Format *FormatUpdate `json:"format"`

	// User arrays are decoded element by element so a single malformed
	// entry does not discard the rest of the update.
	NewUsers     []json.RawMessage `json:"newUsers"`
	UpdatedUsers []json.RawMessage `json:"updatedUsers"`
	RemovedUsers []json.RawMessage `json:"removedUsers"`
}

// FormatUpdate is the payload of an AudioFormatUpdate event. Numbers arrive
// as JSON numbers, so they decode as float64 and are normalised later.
type FormatUpdate struct {
	SampleRate       float64 `json:"sampleRate"`
	NumberOfChannels float64 `json:"numberOfChannels"`
	NumberOfFrames   float64 `json:"numberOfFrames"`
	Format           string  `json:"format"`
}

// ParticipantInfo is the registry entry for one meeting participant, keyed by
// deviceId.
type ParticipantInfo struct {
	DeviceID      string `json:"deviceId"`
	DisplayName   string `json:"displayName,omitempty"`
	FullName      string `json:"fullName,omitempty"`
	IsCurrentUser bool   `json:"isCurrentUser,omitempty"`
}

// parseEvent decodes one telemetry line. A nil return with ok=false means the
// JSON was unparseable; the raw line still belongs in the telemetry log.
func parseEvent(raw []byte) (*Event, bool) {
	ev := &Event{}
	if err := json.Unmarshal(raw, ev); err != nil {
		return nil, false
	}
	return ev, true
}

// decodeUsers decodes each element of a user array, skipping entries that are
// not objects with a string deviceId.
func decodeUsers(log *slog.Logger, raw []json.RawMessage) []ParticipantInfo {
	users := make([]ParticipantInfo, 0, len(raw))
	for _, r := range raw {
		var u ParticipantInfo
		if err := json.Unmarshal(r, &u); err != nil {
			log.Debug("skipping malformed user entry", "error", err)
			continue
		}
		if u.DeviceID == "" {
			continue
		}
		users = append(users, u)
	}
	return users
}
