package measlog

import (
	"encoding/binary"
	"io"
	"os"
	"sync"
)

const (
	logMagic     = 0xA1B2C3D4
	globalHdrLen = 24
	recordHdrLen = 16
)

// Writer appends timestamped raw payloads to a binary measurement log.
// The framing follows the classic capture-file layout: a fixed global
// header followed by (sec, usec, incl_len, orig_len) records.
type Writer struct {
	mu sync.Mutex
	w  io.WriteCloser
}

// NewWriter creates the log file at path and writes the global header.
func NewWriter(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	lw := &Writer{w: f}
	if err := lw.writeGlobalHeader(); err != nil {
		f.Close()
		return nil, err
	}
	return lw, nil
}

func (lw *Writer) writeGlobalHeader() error {
	b := make([]byte, globalHdrLen)
	binary.LittleEndian.PutUint32(b[0:], logMagic)
	binary.LittleEndian.PutUint16(b[4:], 2) // version major
	binary.LittleEndian.PutUint16(b[6:], 4) // version minor
	binary.LittleEndian.PutUint32(b[16:], 65535)
	binary.LittleEndian.PutUint32(b[20:], 1)
	_, err := lw.w.Write(b)
	return err
}

// WriteRecord appends one payload stamped with tsUs microseconds.
func (lw *Writer) WriteRecord(tsUs int64, payload []byte) error {
	lw.mu.Lock()
	defer lw.mu.Unlock()

	hdr := make([]byte, recordHdrLen)
	binary.LittleEndian.PutUint32(hdr[0:], uint32(tsUs/1e6))
	binary.LittleEndian.PutUint32(hdr[4:], uint32(tsUs%1e6))
	binary.LittleEndian.PutUint32(hdr[8:], uint32(len(payload)))
	binary.LittleEndian.PutUint32(hdr[12:], uint32(len(payload)))

	if _, err := lw.w.Write(hdr); err != nil {
		return err
	}
	_, err := lw.w.Write(payload)
	return err
}

// Close flushes and closes the underlying file.
func (lw *Writer) Close() error {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.w.Close()
}
