package output

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"vlink-go/internal/types"
)

// FrameLogMagic opens every frame log. Records follow as a 12-byte little
// endian header (unix nanos, payload size) and a CBOR FrameRecord.
const FrameLogMagic = "VLNKLOG1"

var ErrBadMagic = errors.New("not a frame log")

type FrameLogWriter struct {
	mu   sync.Mutex
	f    *os.File
	w    *bufio.Writer
	path string
}

// NewFrameLogWriter creates <dir>/<timestamp>_<runID>.vlog.
func NewFrameLogWriter(dir string, runID string) (*FrameLogWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	name := fmt.Sprintf("%s_%s.vlog", time.Now().Format("20060102_150405"), runID)
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := bufio.NewWriterSize(f, 256*1024)
	if _, err := w.WriteString(FrameLogMagic); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &FrameLogWriter{f: f, w: w, path: path}, nil
}

func (l *FrameLogWriter) Path() string { return l.path }

func (l *FrameLogWriter) Record(r types.FrameRecord) error {
	payload, err := cbor.Marshal(r)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.w == nil {
		return fmt.Errorf("frame log writer is closed")
	}
	var header [12]byte
	binary.LittleEndian.PutUint64(header[:8], uint64(time.Now().UnixNano()))
	binary.LittleEndian.PutUint32(header[8:12], uint32(len(payload)))
	if _, err := l.w.Write(header[:]); err != nil {
		return err
	}
	_, err = l.w.Write(payload)
	return err
}

func (l *FrameLogWriter) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.w == nil {
		return nil
	}
	err := l.w.Flush()
	if cerr := l.f.Close(); err == nil {
		err = cerr
	}
	l.w = nil
	return err
}

// LogEntry is one record read back from a frame log.
type LogEntry struct {
	Written time.Time
	Record  types.FrameRecord
}

type FrameLogReader struct {
	r io.Reader
}

// NewFrameLogReader checks the magic and positions r at the first record.
func NewFrameLogReader(r io.Reader) (*FrameLogReader, error) {
	magic := make([]byte, len(FrameLogMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, fmt.Errorf("read magic: %w", err)
	}
	if string(magic) != FrameLogMagic {
		return nil, fmt.Errorf("%w: magic %q", ErrBadMagic, string(magic))
	}
	return &FrameLogReader{r: bufio.NewReader(r)}, nil
}

// Next returns io.EOF after the last complete record. A truncated trailing
// record also ends the log.
func (l *FrameLogReader) Next() (LogEntry, error) {
	var header [12]byte
	if _, err := io.ReadFull(l.r, header[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return LogEntry{}, io.EOF
		}
		return LogEntry{}, err
	}
	ts := int64(binary.LittleEndian.Uint64(header[:8]))
	size := binary.LittleEndian.Uint32(header[8:12])
	payload := make([]byte, size)
	if _, err := io.ReadFull(l.r, payload); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return LogEntry{}, io.EOF
		}
		return LogEntry{}, err
	}
	var rec types.FrameRecord
	if err := cbor.Unmarshal(payload, &rec); err != nil {
		return LogEntry{}, fmt.Errorf("decode record: %w", err)
	}
	return LogEntry{Written: time.Unix(0, ts), Record: rec}, nil
}
