// Package wav implements a streaming writer for 16-bit PCM WAV files.
//
// The writer emits a 44-byte placeholder header up front and appends raw
// little-endian signed 16-bit sample data as it arrives. Close rewrites the
// header in place with the final byte counts, so a file is well-formed only
// after Close has returned. A file closed before any write is a valid
// zero-length-data container.
package wav

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
)

// HeaderSize is the fixed size of the canonical PCM WAV header.
const HeaderSize = 44

// Format describes the PCM stream written to a file. SampleRate and Channels
// below 1 are lifted to 1 when the header is encoded, so a writer created
// from a degenerate format still produces a parseable file.
type Format struct {
	SampleRate int
	Channels   int
}

// Writer streams 16-bit LE PCM to a single file. It is intentionally not
// safe for concurrent use: one session goroutine owns each writer.
type Writer struct {
	path         string
	format       Format
	file         *os.File
	buf          *bufio.Writer
	bytesWritten int64
	closed       bool
}

// NewWriter creates path (and any missing parent directories) and writes the
// placeholder header. The caller must eventually call Close.
func NewWriter(path string, format Format) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("wav: create directory for %q: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("wav: create %q: %w", path, err)
	}

	w := &Writer{
		path:   path,
		format: format,
		file:   f,
		buf:    bufio.NewWriterSize(f, 64*1024),
	}
	if _, err := w.buf.Write(encodeHeader(format, 0)); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("wav: write header for %q: %w", path, err)
	}
	return w, nil
}

// Write appends pcm verbatim to the data region. pcm must already be 16-bit
// little-endian samples.
func (w *Writer) Write(pcm []byte) (int, error) {
	if w.closed {
		return 0, fmt.Errorf("wav: write to closed writer %q", w.path)
	}
	n, err := w.buf.Write(pcm)
	w.bytesWritten += int64(n)
	if err != nil {
		return n, fmt.Errorf("wav: write %q: %w", w.path, err)
	}
	return n, nil
}

// Close flushes buffered data, rewrites the header with the final data
// length, and closes the file. Close is idempotent; the second and later
// calls are no-ops returning nil.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	flushErr := w.buf.Flush()

	if _, err := w.file.Seek(0, 0); err != nil {
		w.file.Close()
		return fmt.Errorf("wav: seek for header rewrite %q: %w", w.path, err)
	}
	if _, err := w.file.Write(encodeHeader(w.format, uint32(w.bytesWritten))); err != nil {
		w.file.Close()
		return fmt.Errorf("wav: rewrite header %q: %w", w.path, err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("wav: close %q: %w", w.path, err)
	}
	if flushErr != nil {
		return fmt.Errorf("wav: flush %q: %w", w.path, flushErr)
	}
	return nil
}

// SetFormat replaces the format encoded into the header at Close. A format
// announced mid-stream overrides the one the writer was created with.
func (w *Writer) SetFormat(format Format) {
	w.format = format
}

// Path returns the file path the writer was created with.
func (w *Writer) Path() string { return w.path }

// BytesWritten returns the number of data bytes accepted so far.
func (w *Writer) BytesWritten() int64 { return w.bytesWritten }

// encodeHeader produces the canonical 44-byte PCM WAV header for the given
// format and data length.
func encodeHeader(format Format, dataLen uint32) []byte {
	channels := format.Channels
	if channels < 1 {
		channels = 1
	}
	sampleRate := format.SampleRate
	if sampleRate < 1 {
		sampleRate = 1
	}
	blockAlign := channels * 2
	byteRate := sampleRate * blockAlign

	h := make([]byte, HeaderSize)
	copy(h[0:4], "RIFF")
	binary.LittleEndian.PutUint32(h[4:8], 36+dataLen)
	copy(h[8:12], "WAVE")
	copy(h[12:16], "fmt ")
	binary.LittleEndian.PutUint32(h[16:20], 16) // fmt chunk size
	binary.LittleEndian.PutUint16(h[20:22], 1)  // PCM format code
	binary.LittleEndian.PutUint16(h[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(h[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(h[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(h[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(h[34:36], 16) // bits per sample
	copy(h[36:40], "data")
	binary.LittleEndian.PutUint32(h[40:44], dataLen)
	return h
}
