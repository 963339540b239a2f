package wav_test

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/meetscribe/meetscribe/pkg/wav"
)

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return data
}

func TestWriter_HeaderLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	w, err := wav.NewWriter(path, wav.Format{SampleRate: 48000, Channels: 1})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	pcm := make([]byte, 9600) // 4800 samples of silence
	if _, err := w.Write(pcm); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data := readFile(t, path)
	if len(data) != wav.HeaderSize+9600 {
		t.Fatalf("file size: got %d, want %d", len(data), wav.HeaderSize+9600)
	}

	if !bytes.Equal(data[0:4], []byte("RIFF")) {
		t.Errorf("bytes 0..3: got %q, want RIFF", data[0:4])
	}
	if got := binary.LittleEndian.Uint32(data[4:8]); got != 36+9600 {
		t.Errorf("chunk size: got %d, want %d", got, 36+9600)
	}
	if !bytes.Equal(data[8:12], []byte("WAVE")) {
		t.Errorf("bytes 8..11: got %q, want WAVE", data[8:12])
	}
	if !bytes.Equal(data[12:16], []byte("fmt ")) {
		t.Errorf("bytes 12..15: got %q, want 'fmt '", data[12:16])
	}
	if got := binary.LittleEndian.Uint32(data[16:20]); got != 16 {
		t.Errorf("fmt chunk size: got %d, want 16", got)
	}
	if got := binary.LittleEndian.Uint16(data[20:22]); got != 1 {
		t.Errorf("format code: got %d, want 1", got)
	}
	if got := binary.LittleEndian.Uint16(data[22:24]); got != 1 {
		t.Errorf("channels: got %d, want 1", got)
	}
	if got := binary.LittleEndian.Uint32(data[24:28]); got != 48000 {
		t.Errorf("sample rate: got %d, want 48000", got)
	}
	if got := binary.LittleEndian.Uint32(data[28:32]); got != 96000 {
		t.Errorf("byte rate: got %d, want 96000", got)
	}
	if got := binary.LittleEndian.Uint16(data[32:34]); got != 2 {
		t.Errorf("block align: got %d, want 2", got)
	}
	if got := binary.LittleEndian.Uint16(data[34:36]); got != 16 {
		t.Errorf("bits per sample: got %d, want 16", got)
	}
	if !bytes.Equal(data[36:40], []byte("data")) {
		t.Errorf("bytes 36..39: got %q, want data", data[36:40])
	}
	if got := binary.LittleEndian.Uint32(data[40:44]); got != 9600 {
		t.Errorf("data length: got %d, want 9600", got)
	}
}

func TestWriter_ZeroDataFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.wav")
	w, err := wav.NewWriter(path, wav.Format{SampleRate: 16000, Channels: 1})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data := readFile(t, path)
	if len(data) != wav.HeaderSize {
		t.Fatalf("file size: got %d, want %d", len(data), wav.HeaderSize)
	}
	if got := binary.LittleEndian.Uint32(data[40:44]); got != 0 {
		t.Errorf("data length: got %d, want 0", got)
	}
	if got := binary.LittleEndian.Uint32(data[4:8]); got != 36 {
		t.Errorf("chunk size: got %d, want 36", got)
	}
}

func TestWriter_CloseIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twice.wav")
	w, err := wav.NewWriter(path, wav.Format{SampleRate: 8000, Channels: 1})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if _, err := w.Write([]byte{0x12, 0x34}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	before := readFile(t, path)

	if err := w.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	after := readFile(t, path)

	if !bytes.Equal(before, after) {
		t.Errorf("file changed between Close calls")
	}
}

func TestWriter_WriteAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "closed.wav")
	w, err := wav.NewWriter(path, wav.Format{SampleRate: 8000, Channels: 1})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := w.Write([]byte{1, 2}); err == nil {
		t.Errorf("expected error writing to closed writer")
	}
}

func TestWriter_DegenerateFormat(t *testing.T) {
	// A zero-value format must still yield a parseable file.
	path := filepath.Join(t.TempDir(), "degenerate.wav")
	w, err := wav.NewWriter(path, wav.Format{})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data := readFile(t, path)
	if got := binary.LittleEndian.Uint16(data[22:24]); got != 1 {
		t.Errorf("channels: got %d, want 1", got)
	}
	if got := binary.LittleEndian.Uint32(data[24:28]); got != 1 {
		t.Errorf("sample rate: got %d, want 1", got)
	}
}

func TestWriter_CreatesParentDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "c.wav")
	w, err := wav.NewWriter(path, wav.Format{SampleRate: 16000, Channels: 2})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("file missing: %v", err)
	}
}

func TestWriter_DataLengthMatchesFileSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sized.wav")
	w, err := wav.NewWriter(path, wav.Format{SampleRate: 44100, Channels: 2})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	for i := 0; i < 7; i++ {
		if _, err := w.Write(make([]byte, 1000)); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data := readFile(t, path)
	declared := binary.LittleEndian.Uint32(data[40:44])
	if int(declared) != len(data)-wav.HeaderSize {
		t.Errorf("declared data length %d, actual %d", declared, len(data)-wav.HeaderSize)
	}
	if w.BytesWritten() != 7000 {
		t.Errorf("BytesWritten: got %d, want 7000", w.BytesWritten())
	}
}

func TestWriter_SetFormatOverridesHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.wav")
	w, err := wav.NewWriter(path, wav.Format{SampleRate: 48000, Channels: 1})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if _, err := w.Write(make([]byte, 4)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	w.SetFormat(wav.Format{SampleRate: 44100, Channels: 2})
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data := readFile(t, path)
	if rate := binary.LittleEndian.Uint32(data[24:28]); rate != 44100 {
		t.Errorf("sample rate: got %d, want 44100", rate)
	}
	if channels := binary.LittleEndian.Uint16(data[22:24]); channels != 2 {
		t.Errorf("channels: got %d, want 2", channels)
	}
}
