package measlog

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

const maxRecordLen = 1 << 16

// Reader streams records out of a binary measurement log.
type Reader struct {
	f  *os.File
	br *bufio.Reader
}

// OpenLog opens a log written by Writer and validates its global header.
func OpenLog(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	br := bufio.NewReader(f)

	hdr := make([]byte, globalHdrLen)
	if _, err := io.ReadFull(br, hdr); err != nil {
		f.Close()
		return nil, fmt.Errorf("log header: %w", err)
	}
	if magic := binary.LittleEndian.Uint32(hdr[0:4]); magic != logMagic {
		f.Close()
		return nil, fmt.Errorf("bad log magic 0x%x", magic)
	}
	return &Reader{f: f, br: br}, nil
}

// Next returns the next record's timestamp (microseconds) and payload.
// It returns io.EOF at the end of the log.
func (r *Reader) Next() (tsUs int64, payload []byte, err error) {
	hdr := make([]byte, recordHdrLen)
	if _, err := io.ReadFull(r.br, hdr); err != nil {
		if errors.Is(err, io.EOF) {
			return 0, nil, io.EOF
		}
		return 0, nil, fmt.Errorf("record header: %w", err)
	}

	sec := binary.LittleEndian.Uint32(hdr[0:4])
	usec := binary.LittleEndian.Uint32(hdr[4:8])
	inclLen := binary.LittleEndian.Uint32(hdr[8:12])
	if inclLen > maxRecordLen {
		return 0, nil, fmt.Errorf("record length %d exceeds limit", inclLen)
	}

	payload = make([]byte, inclLen)
	if _, err := io.ReadFull(r.br, payload); err != nil {
		return 0, nil, fmt.Errorf("record payload: %w", err)
	}
	return int64(sec)*1e6 + int64(usec), payload, nil
}

// Close closes the underlying file.
func (r *Reader) Close() error { return r.f.Close() }
