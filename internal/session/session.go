// Package session implements the per-connection recording engine: frame
// dispatch, participant registry, WAV writers, telemetry capture, the
// inactivity watchdog, and end-of-session archival.
package session

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/meetscribe/meetscribe/internal/observe"
	"github.com/meetscribe/meetscribe/pkg/wav"
	"github.com/meetscribe/meetscribe/pkg/wire"
)

// Close reasons recorded in the session summary.
const (
	ReasonClientClose        = "client_close"
	ReasonSocketError        = "socket_error"
	ReasonInactivityTimeout  = "inactivity_timeout"
	ReasonRemovedFromMeeting = "removed_from_meeting"
	ReasonShutdown           = "shutdown"
)

// telemetryFileName is the line-delimited JSON event log inside the live
// directory.
const telemetryFileName = "telemetry.ndjson"

// mixedFileName is the mixed-channel WAV inside the live directory.
const mixedFileName = "mixed_audio.wav"

// pendingReferenceRate is the sample rate assumed when sizing pending
// buffers. Audio buffered before the format descriptor has no known rate, so
// the cap is computed against the common capture rate.
const pendingReferenceRate = 48000

// Options configures a new Session.
type Options struct {
	// Root is the recordings root holding live/ and completed/.
	Root string

	// EnableMixedAudio gates the mixed-channel writer.
	EnableMixedAudio bool

	// EnableParticipantAudio gates per-participant writers.
	EnableParticipantAudio bool

	// InactivityTimeout closes the session after this long without frames.
	// Defaults to 5 minutes.
	InactivityTimeout time.Duration

	// PendingAudioWindow caps pre-format buffering per audio channel.
	// Defaults to 30 seconds.
	PendingAudioWindow time.Duration

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Metrics defaults to observe.DefaultMetrics().
	Metrics *observe.Metrics

	// OnTerminate, when set, is invoked exactly once during close so the
	// owner can shut the network connection. It must not call back into the
	// session from the same goroutine.
	OnTerminate func(reason string)

	// OnArchived, when set, is invoked synchronously at the end of the close
	// path with the sealed archive directory after a successful move. The
	// callback must return quickly and hand long work to its own goroutine;
	// running it inline lets the owner register that work before Close
	// returns.
	OnArchived func(archiveDir string)
}

// Stats counts accepted frames by kind. Every frame whose 4-byte header could
// be read increments exactly one field.
type Stats struct {
	JSONMessages           int64 `json:"jsonMessages"`
	MixedAudioFrames       int64 `json:"mixedAudioFrames"`
	ParticipantAudioFrames int64 `json:"participantAudioFrames"`
	VideoFrames            int64 `json:"videoFrames"`
	EncodedVideoChunks     int64 `json:"encodedVideoChunks"`
	UnknownFrames          int64 `json:"unknownFrames"`
}

// AudioFormat is the session-wide format announced by the browser agent.
type AudioFormat struct {
	SampleRate       int    `json:"sampleRate"`
	NumberOfChannels int    `json:"numberOfChannels"`
	NumberOfFrames   int    `json:"numberOfFrames,omitempty"`
	Format           string `json:"format,omitempty"`
}

// AudioFiles records the relative paths of audio artifacts in the session
// directory.
type AudioFiles struct {
	Mixed        string              `json:"mixed,omitempty"`
	Participants map[string][]string `json:"participants,omitempty"`
}

// Metadata is the frozen snapshot of meeting-level facts written into the
// session summary.
type Metadata struct {
	MeetingURL   string                     `json:"meetingUrl,omitempty"`
	BotName      string                     `json:"botName,omitempty"`
	StartedAt    string                     `json:"startedAt,omitempty"`
	StartedAtISO string                     `json:"startedAtIso"`
	AudioFormat  *AudioFormat               `json:"audioFormat,omitempty"`
	AudioFiles   AudioFiles                 `json:"audioFiles"`
	Participants map[string]ParticipantInfo `json:"participants,omitempty"`
}

// Summary is session-summary.json: written once at close, then rewritten with
// archive paths after a successful move.
type Summary struct {
	SessionID         string   `json:"sessionId"`
	Reason            string   `json:"reason"`
	DurationMs        int64    `json:"durationMs"`
	IdleMsBeforeClose int64    `json:"idleMsBeforeClose"`
	Stats             Stats    `json:"stats"`
	Metadata          Metadata `json:"metadata"`
	Error             string   `json:"error,omitempty"`
	ArchivePath       string   `json:"archivePath,omitempty"`
	ManifestPath      string   `json:"manifestPath,omitempty"`
}

// participantWriter pairs a stable label with its WAV writer.
type participantWriter struct {
	label string
	w     *wav.Writer
	files []string
}

// Session owns all state for one WebSocket connection. All mutation is
// serialised behind mu: the read loop calls HandleMessage, while Close may
// arrive from the inactivity timer or an operator shutdown.
type Session struct {
	id      uuid.UUID
	opts    Options
	log     *slog.Logger
	metrics *observe.Metrics

	liveDir    string
	telemetryF *os.File
	telemetryW *bufio.Writer

	start     time.Time
	lastFrame time.Time
	timer     *time.Timer

	mu     sync.Mutex
	closed bool

	stats Stats
	meta  Metadata
	info  map[string]ParticipantInfo

	format       *wav.Format
	mixedWriter  *wav.Writer
	participants map[string]*participantWriter
	labels       map[string]string

	pendingMixed      [][]byte
	pendingMixedBytes int
	pendingByID       map[string]*pendingQueue
	pendingOrder      []string
	maxPendingBytes   int

	warnedPendingMixed       bool
	warnedPendingParticipant bool
	warnedShortFrame         bool
	warnedBadParticipant     bool
	warnedPartialSample      bool
	warnedFormatMismatch     bool
	warnedTelemetryWrite     bool
	warnedUnknownType        map[wire.FrameType]bool
}

// pendingQueue buffers raw float PCM for one participant until the format
// descriptor arrives.
type pendingQueue struct {
	chunks [][]byte
	bytes  int
}

// New creates the live directory and telemetry log and starts the inactivity
// watchdog.
func New(opts Options) (*Session, error) {
	if opts.InactivityTimeout <= 0 {
		opts.InactivityTimeout = 5 * time.Minute
	}
	if opts.PendingAudioWindow <= 0 {
		opts.PendingAudioWindow = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = observe.DefaultMetrics()
	}

	id := uuid.New()
	liveDir := filepath.Join(opts.Root, "live", "session_"+id.String())
	if err := os.MkdirAll(liveDir, 0o755); err != nil {
		return nil, fmt.Errorf("session: create live dir: %w", err)
	}
	f, err := os.Create(filepath.Join(liveDir, telemetryFileName))
	if err != nil {
		return nil, fmt.Errorf("session: create telemetry log: %w", err)
	}

	now := time.Now()
	s := &Session{
		id:                id,
		opts:              opts,
		log:               opts.Logger.With("session_id", id.String()),
		metrics:           opts.Metrics,
		liveDir:           liveDir,
		telemetryF:        f,
		telemetryW:        bufio.NewWriter(f),
		start:             now,
		lastFrame:         now,
		info:              make(map[string]ParticipantInfo),
		participants:      make(map[string]*participantWriter),
		labels:            make(map[string]string),
		pendingByID:       make(map[string]*pendingQueue),
		maxPendingBytes:   int(opts.PendingAudioWindow.Seconds()) * pendingReferenceRate * 4,
		warnedUnknownType: make(map[wire.FrameType]bool),
	}
	s.meta.StartedAtISO = now.UTC().Format(time.RFC3339)
	s.timer = time.AfterFunc(opts.InactivityTimeout, func() {
		s.Close(ReasonInactivityTimeout, nil)
	})
	s.metrics.ActiveSessions.Add(context.Background(), 1)
	s.log.Info("session started", "live_dir", liveDir)
	return s, nil
}

// ID returns the session UUID.
func (s *Session) ID() uuid.UUID { return s.id }

// LiveDir returns the session's working directory under recordings/live.
func (s *Session) LiveDir() string { return s.liveDir }

// Stats returns a snapshot of the frame counters.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Closed reports whether the session has been finalised.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// HandleMessage processes one inbound WebSocket binary message. Malformed
// frames are counted and dropped; the session always continues.
func (s *Session) HandleMessage(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.lastFrame = time.Now()
	s.timer.Reset(s.opts.InactivityTimeout)

	fr, err := wire.Parse(data)
	if err != nil {
		s.stats.UnknownFrames++
		if !s.warnedShortFrame {
			s.warnedShortFrame = true
			s.log.Warn("dropping frame shorter than header; further occurrences suppressed")
		}
		return
	}
	if !fr.Type.Known() {
		s.stats.UnknownFrames++
		if !s.warnedUnknownType[fr.Type] {
			s.warnedUnknownType[fr.Type] = true
			s.log.Warn("dropping frames of unknown type", "frame_type", int32(fr.Type))
		}
		return
	}
	s.metrics.RecordFrame(context.Background(), fr.Type.String())

	switch fr.Type {
	case wire.FrameJSON:
		s.handleJSON(fr.Payload)
	case wire.FrameMixedAudio:
		s.handleMixedAudio(fr.Payload)
	case wire.FrameParticipantAudio:
		s.handleParticipantAudio(fr.Payload)
	case wire.FrameVideo:
		s.stats.VideoFrames++
	case wire.FrameEncodedVideo:
		s.stats.EncodedVideoChunks++
	}
}

// handleJSON appends the raw line to the telemetry log and dispatches the
// decoded event. An unparseable line is still persisted.
func (s *Session) handleJSON(payload []byte) {
	s.stats.JSONMessages++
	_, err := s.telemetryW.Write(payload)
	if err == nil {
		err = s.telemetryW.WriteByte('\n')
	}
	if err != nil && !s.warnedTelemetryWrite {
		// bufio errors are sticky, so every line from here on is lost.
		s.warnedTelemetryWrite = true
		s.log.Error("telemetry log write failed; subsequent lines will be dropped", "error", err)
	}

	ev, ok := parseEvent(payload)
	if !ok {
		s.log.Warn("unparseable telemetry event; raw line persisted")
		return
	}
	if s.meta.MeetingURL == "" && ev.MeetingURL != "" {
		s.meta.MeetingURL = ev.MeetingURL
	}

	switch ev.Type {
	case eventSessionStarted:
		if ev.BotName != "" {
			s.meta.BotName = ev.BotName
		}
		if ev.StartedAt != "" {
			s.meta.StartedAt = ev.StartedAt
		}
	case eventAudioFormatUpdate:
		s.handleFormatUpdate(ev.Format)
	case eventUsersUpdate:
		for _, u := range decodeUsers(s.log, ev.NewUsers) {
			s.info[u.DeviceID] = u
		}
		for _, u := range decodeUsers(s.log, ev.UpdatedUsers) {
			s.info[u.DeviceID] = u
		}
		// removedUsers is non-authoritative: participants can rejoin, so
		// writers stay open until session close.
		if n := len(ev.RemovedUsers); n > 0 {
			s.log.Debug("users removed from meeting", "count", n)
		}
	case eventMeetingStatusChange:
		if ev.Change == changeRemovedFromMeeting {
			s.closeLocked(ReasonRemovedFromMeeting, nil)
		}
	}
}

// handleFormatUpdate normalises the announced format. The first valid format
// enables the writers and drains pending audio; later updates only overwrite
// the stored descriptor.
func (s *Session) handleFormatUpdate(f *FormatUpdate) {
	if f == nil || f.SampleRate <= 0 {
		s.log.Warn("ignoring audio format update without a positive sample rate")
		return
	}
	channels := int(f.NumberOfChannels)
	if channels <= 0 {
		channels = 1
	}
	next := AudioFormat{
		SampleRate:       int(f.SampleRate),
		NumberOfChannels: channels,
		NumberOfFrames:   int(f.NumberOfFrames),
		Format:           f.Format,
	}
	if s.format == nil {
		s.format = &wav.Format{SampleRate: next.SampleRate, Channels: next.NumberOfChannels}
		s.meta.AudioFormat = &next
		s.drainPending()
		return
	}
	if s.format.SampleRate != next.SampleRate || s.format.Channels != next.NumberOfChannels {
		if !s.warnedFormatMismatch {
			s.warnedFormatMismatch = true
			s.log.Warn("audio format changed mid-session; writers keep streaming, header reflects the last format",
				"old_rate", s.format.SampleRate, "new_rate", next.SampleRate)
		}
	}
	s.format = &wav.Format{SampleRate: next.SampleRate, Channels: next.NumberOfChannels}
	s.meta.AudioFormat = &next
	if s.mixedWriter != nil {
		s.mixedWriter.SetFormat(*s.format)
	}
	for _, pw := range s.participants {
		pw.w.SetFormat(*s.format)
	}
}

// drainPending flushes buffered audio in insertion order: mixed first, then
// each participant in observed order. Runs exactly once, when the first valid
// format arrives.
func (s *Session) drainPending() {
	for _, chunk := range s.pendingMixed {
		s.writeMixed(chunk)
	}
	s.pendingMixed = nil
	s.pendingMixedBytes = 0

	for _, id := range s.pendingOrder {
		q := s.pendingByID[id]
		for _, chunk := range q.chunks {
			s.writeParticipant(id, chunk)
		}
	}
	s.pendingByID = make(map[string]*pendingQueue)
	s.pendingOrder = nil
}

// handleMixedAudio buffers or writes one mixed audio frame.
func (s *Session) handleMixedAudio(payload []byte) {
	if len(payload)%4 != 0 {
		s.stats.UnknownFrames++
		s.warnPartialSample()
		return
	}
	s.stats.MixedAudioFrames++
	if !s.opts.EnableMixedAudio || len(payload) == 0 {
		return
	}
	if s.format == nil {
		if !s.warnedPendingMixed {
			s.warnedPendingMixed = true
			s.log.Warn("mixed audio arrived before format descriptor; buffering")
		}
		s.bufferMixed(payload)
		return
	}
	s.writeMixed(payload)
}

// handleParticipantAudio decodes the sub-envelope and buffers or writes it.
func (s *Session) handleParticipantAudio(payload []byte) {
	pf, err := wire.ParseParticipant(payload)
	if err != nil {
		s.stats.UnknownFrames++
		if !s.warnedBadParticipant {
			s.warnedBadParticipant = true
			s.log.Warn("dropping malformed participant audio frames", "error", err)
		}
		return
	}
	if len(pf.Audio)%4 != 0 {
		s.stats.UnknownFrames++
		s.warnPartialSample()
		return
	}
	s.stats.ParticipantAudioFrames++
	if !s.opts.EnableParticipantAudio || len(pf.Audio) == 0 {
		return
	}
	if s.format == nil {
		if !s.warnedPendingParticipant {
			s.warnedPendingParticipant = true
			s.log.Warn("participant audio arrived before format descriptor; buffering")
		}
		s.bufferParticipant(pf.ID, pf.Audio)
		return
	}
	s.writeParticipant(pf.ID, pf.Audio)
}

func (s *Session) warnPartialSample() {
	if !s.warnedPartialSample {
		s.warnedPartialSample = true
		s.log.Warn("dropping audio frames with a trailing partial sample")
	}
}

// bufferMixed enqueues a copy of raw float PCM, evicting the oldest chunks
// when the pending window is full.
func (s *Session) bufferMixed(payload []byte) {
	for s.pendingMixedBytes+len(payload) > s.maxPendingBytes && len(s.pendingMixed) > 0 {
		s.pendingMixedBytes -= len(s.pendingMixed[0])
		s.pendingMixed = s.pendingMixed[1:]
		s.metrics.PendingAudioDropped.Add(context.Background(), 1)
	}
	chunk := make([]byte, len(payload))
	copy(chunk, payload)
	s.pendingMixed = append(s.pendingMixed, chunk)
	s.pendingMixedBytes += len(chunk)
}

// bufferParticipant enqueues raw float PCM for one participant with the same
// eviction policy as bufferMixed, per participant.
func (s *Session) bufferParticipant(id string, audio []byte) {
	q, ok := s.pendingByID[id]
	if !ok {
		q = &pendingQueue{}
		s.pendingByID[id] = q
		s.pendingOrder = append(s.pendingOrder, id)
	}
	for q.bytes+len(audio) > s.maxPendingBytes && len(q.chunks) > 0 {
		q.bytes -= len(q.chunks[0])
		q.chunks = q.chunks[1:]
		s.metrics.PendingAudioDropped.Add(context.Background(), 1)
	}
	chunk := make([]byte, len(audio))
	copy(chunk, audio)
	q.chunks = append(q.chunks, chunk)
	q.bytes += len(chunk)
}

// writeMixed converts and appends float PCM to the mixed writer, creating it
// on first use.
func (s *Session) writeMixed(payload []byte) {
	if s.mixedWriter == nil {
		w, err := wav.NewWriter(filepath.Join(s.liveDir, mixedFileName), *s.format)
		if err != nil {
			s.log.Error("creating mixed audio writer", "error", err)
			return
		}
		s.mixedWriter = w
		s.meta.AudioFiles.Mixed = mixedFileName
	}
	pcm, err := wire.Float32ToInt16LE(payload)
	if err != nil {
		s.stats.UnknownFrames++
		s.warnPartialSample()
		return
	}
	if _, err := s.mixedWriter.Write(pcm); err != nil {
		s.log.Error("writing mixed audio", "error", err)
		return
	}
	s.metrics.RecordAudioBytes(context.Background(), "mixed", int64(len(pcm)))
}

// writeParticipant converts and appends float PCM to the participant's
// writer, creating writer and label on first use.
func (s *Session) writeParticipant(id string, audio []byte) {
	pw, err := s.participantWriterFor(id)
	if err != nil {
		s.log.Error("creating participant writer", "participant_id", id, "error", err)
		return
	}
	pcm, err := wire.Float32ToInt16LE(audio)
	if err != nil {
		s.stats.UnknownFrames++
		s.warnPartialSample()
		return
	}
	if _, err := pw.w.Write(pcm); err != nil {
		s.log.Error("writing participant audio", "label", pw.label, "error", err)
		return
	}
	s.metrics.RecordAudioBytes(context.Background(), "participant", int64(len(pcm)))
}

// participantWriterFor returns the writer for one participant id, creating
// directory, label, and WAV file on first sighting.
func (s *Session) participantWriterFor(id string) (*participantWriter, error) {
	if pw, ok := s.participants[id]; ok {
		return pw, nil
	}
	label := s.labelFor(id)
	rel := filepath.Join("participants", label, "combined_"+label+".wav")
	w, err := wav.NewWriter(filepath.Join(s.liveDir, rel), *s.format)
	if err != nil {
		return nil, err
	}
	pw := &participantWriter{label: label, w: w, files: []string{rel}}
	s.participants[id] = pw
	if s.meta.AudioFiles.Participants == nil {
		s.meta.AudioFiles.Participants = make(map[string][]string)
	}
	s.meta.AudioFiles.Participants[label] = pw.files
	s.metrics.ActiveParticipants.Add(context.Background(), 1)
	s.log.Info("participant writer created", "participant_id", id, "label", label)
	return pw, nil
}

// labelFor returns the cached label for a participant id, generating one on
// first sighting. A generated label that would land on an existing directory
// is re-rolled with fresh random digits.
func (s *Session) labelFor(id string) string {
	if label, ok := s.labels[id]; ok {
		return label
	}
	info := s.info[id]
	taken := func(label string) bool {
		_, err := os.Stat(filepath.Join(s.liveDir, "participants", label))
		return !os.IsNotExist(err)
	}
	label := makeLabel(info, id)
	for i := 0; i < 10 && taken(label); i++ {
		label = makeLabel(info, id)
	}
	// Random re-rolls exhausted: append a monotonic suffix rather than
	// reusing a colliding label, which would truncate another participant's
	// file.
	for base, n := label, 2; taken(label); n++ {
		label = fmt.Sprintf("%s_%d", base, n)
	}
	s.labels[id] = label
	return label
}

// Close finalises the session. It is idempotent: the first reason wins and
// later calls are no-ops.
func (s *Session) Close(reason string, cause error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked(reason, cause)
}

func (s *Session) closeLocked(reason string, cause error) error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.timer.Stop()

	now := time.Now()
	durationMs := now.Sub(s.start).Milliseconds()
	idleMs := now.Sub(s.lastFrame).Milliseconds()
	s.log.Info("closing session", "reason", reason, "duration_ms", durationMs, "error", cause)

	if s.opts.OnTerminate != nil {
		s.opts.OnTerminate(reason)
	}

	if s.format == nil && (len(s.pendingMixed) > 0 || len(s.pendingOrder) > 0) {
		s.log.Warn("audio format never arrived; discarding buffered audio",
			"mixed_chunks", len(s.pendingMixed), "participants", len(s.pendingOrder))
	}

	if err := s.telemetryW.Flush(); err != nil {
		s.log.Error("flushing telemetry log", "error", err)
	}
	if err := s.telemetryF.Close(); err != nil {
		s.log.Error("closing telemetry log", "error", err)
	}

	// Header fix-ups run in parallel; one failing writer must not stop the
	// others from finalising.
	var g errgroup.Group
	if s.mixedWriter != nil {
		w := s.mixedWriter
		g.Go(func() error { return w.Close() })
	}
	for _, pw := range s.participants {
		w := pw.w
		g.Go(func() error { return w.Close() })
	}
	if err := g.Wait(); err != nil {
		s.log.Error("closing audio writers", "error", err)
	}

	ctx := context.Background()
	s.metrics.ActiveSessions.Add(ctx, -1)
	if n := len(s.participants); n > 0 {
		s.metrics.ActiveParticipants.Add(ctx, -int64(n))
	}
	s.metrics.RecordSessionClosed(ctx, reason)

	sum := &Summary{
		SessionID:         s.id.String(),
		Reason:            reason,
		DurationMs:        durationMs,
		IdleMsBeforeClose: idleMs,
		Stats:             s.stats,
		Metadata:          s.meta,
	}
	if len(s.info) > 0 {
		sum.Metadata.Participants = s.info
	}
	if cause != nil {
		sum.Error = cause.Error()
	}
	summaryPath := filepath.Join(s.liveDir, summaryFileName)
	if err := writeJSONFile(summaryPath, sum); err != nil {
		s.log.Error("writing session summary; retrying once", "error", err)
		if err := writeJSONFile(summaryPath, sum); err != nil {
			s.log.Error("writing session summary failed; leaving live directory intact", "error", err)
			return nil
		}
	}

	archiveStart := time.Now()
	archiveDir, err := s.archive(sum)
	if err != nil {
		s.log.Error("archival failed; session finalised in live directory", "error", err)
		return nil
	}
	s.metrics.ArchiveDuration.Record(ctx, time.Since(archiveStart).Seconds())
	s.log.Info("session archived", "archive_dir", archiveDir)

	if s.opts.OnArchived != nil {
		s.opts.OnArchived(archiveDir)
	}
	return nil
}
