// Package wire implements the binary framing protocol spoken by the in-browser
// recording agent. Every inbound WebSocket message is one frame: a 4-byte
// little-endian signed type tag followed by a type-specific payload.
//
// Frame types:
//
//	1  JSON            UTF-8 encoded JSON event
//	2  Video           opaque video frame (counted, never decoded)
//	3  MixedAudio      32-bit LE IEEE-754 float PCM, mono, one sample per float
//	4  EncodedVideo    opaque encoded video chunk (counted, never decoded)
//	5  ParticipantAudio  idLen(uint8) + participantId(UTF-8) + float PCM
//
// All multi-byte integers on the wire are little-endian.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// FrameType identifies the payload kind of a single wire frame.
type FrameType int32

const (
	FrameJSON             FrameType = 1
	FrameVideo            FrameType = 2
	FrameMixedAudio       FrameType = 3
	FrameEncodedVideo     FrameType = 4
	FrameParticipantAudio FrameType = 5
)

// String returns a short lowercase name suitable for logs and metric labels.
func (t FrameType) String() string {
	switch t {
	case FrameJSON:
		return "json"
	case FrameVideo:
		return "video"
	case FrameMixedAudio:
		return "mixed_audio"
	case FrameEncodedVideo:
		return "encoded_video"
	case FrameParticipantAudio:
		return "participant_audio"
	}
	return fmt.Sprintf("unknown(%d)", int32(t))
}

// Known reports whether t is one of the recognised frame types.
func (t FrameType) Known() bool {
	return t >= FrameJSON && t <= FrameParticipantAudio
}

var (
	// ErrShortFrame is returned when a message is too short to carry the
	// 4-byte type header.
	ErrShortFrame = errors.New("wire: frame shorter than 4-byte header")

	// ErrShortParticipantHeader is returned when a ParticipantAudio payload
	// is too short to carry its id sub-envelope.
	ErrShortParticipantHeader = errors.New("wire: participant audio payload shorter than id header")

	// ErrPartialSample is returned when a float PCM payload length is not a
	// multiple of 4. A trailing partial sample indicates a corrupted frame.
	ErrPartialSample = errors.New("wire: float PCM payload is not a multiple of 4 bytes")
)

// Frame is a decoded envelope. Payload aliases the input buffer; callers that
// retain it past the next read must copy.
type Frame struct {
	Type    FrameType
	Payload []byte
}

// Parse decodes the 4-byte envelope from data. Unknown frame types parse
// successfully; the caller decides how to account for them.
func Parse(data []byte) (Frame, error) {
	if len(data) < 4 {
		return Frame{}, ErrShortFrame
	}
	return Frame{
		Type:    FrameType(int32(binary.LittleEndian.Uint32(data))),
		Payload: data[4:],
	}, nil
}

// ParticipantFrame is the decoded sub-envelope of a ParticipantAudio frame.
type ParticipantFrame struct {
	// ID is the participant device id. An empty id is valid on the wire and
	// is treated as a distinct participant.
	ID string

	// Audio is the raw float32 PCM following the id. Aliases the input.
	Audio []byte
}

// ParseParticipant decodes the ParticipantAudio sub-envelope from a frame
// payload: one uint8 id length, that many UTF-8 bytes of participant id, then
// float PCM audio.
func ParseParticipant(payload []byte) (ParticipantFrame, error) {
	if len(payload) < 1 {
		return ParticipantFrame{}, ErrShortParticipantHeader
	}
	idLen := int(payload[0])
	if len(payload) < 1+idLen {
		return ParticipantFrame{}, ErrShortParticipantHeader
	}
	return ParticipantFrame{
		ID:    string(payload[1 : 1+idLen]),
		Audio: payload[1+idLen:],
	}, nil
}

// Float32ToInt16LE converts a payload of 32-bit little-endian IEEE-754 float
// samples to 16-bit little-endian signed PCM. Non-finite samples become 0,
// everything else is clamped to [-1, 1] and scaled by 32767 with rounding.
//
// Returns ErrPartialSample when the payload length is not a multiple of 4.
func Float32ToInt16LE(payload []byte) ([]byte, error) {
	if len(payload)%4 != 0 {
		return nil, ErrPartialSample
	}
	n := len(payload) / 4
	out := make([]byte, n*2)
	for i := 0; i < n; i++ {
		f := math.Float32frombits(binary.LittleEndian.Uint32(payload[i*4:]))
		binary.LittleEndian.PutUint16(out[i*2:], uint16(sampleToInt16(f)))
	}
	return out, nil
}

// sampleToInt16 maps one float sample to its int16 PCM value.
func sampleToInt16(f float32) int16 {
	f64 := float64(f)
	if math.IsNaN(f64) || math.IsInf(f64, 0) {
		return 0
	}
	if f64 > 1 {
		f64 = 1
	} else if f64 < -1 {
		f64 = -1
	}
	return int16(math.Round(f64 * 32767))
}
