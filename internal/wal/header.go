package wal

import (
	"encoding/binary"
	"fmt"
	"io"
)

var walMagic = [4]byte{'L', 'Q', 'W', 'L'}

const (
	walHeaderVersion = uint16(1)
	walHeaderLen     = 16
	flagCompressed   = uint16(1)
)

type header struct {
	Compressed       bool
	CompressionLevel int
}

// [0:4] magic [4:6] version [6:8] flags [8] level [9:16] reserved
func writeHeader(w io.Writer, h header) error {
	var buf [walHeaderLen]byte
	copy(buf[0:4], walMagic[:])
	binary.LittleEndian.PutUint16(buf[4:6], walHeaderVersion)
	if h.Compressed {
		binary.LittleEndian.PutUint16(buf[6:8], flagCompressed)
		buf[8] = uint8(h.CompressionLevel)
	}
	if _, err := w.Write(buf[:]); err != nil {
		return fmt.Errorf("failed to write WAL header: %w", err)
	}
	return nil
}

// readHeader returns io.EOF if r is empty.
func readHeader(r io.Reader) (header, error) {
	var buf [walHeaderLen]byte
	n, err := io.ReadFull(r, buf[:])
	if n == 0 && err == io.EOF {
		return header{}, io.EOF
	}
	if err != nil {
		return header{}, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}
	if [4]byte(buf[0:4]) != walMagic {
		return header{}, fmt.Errorf("%w: bad magic", ErrInvalidHeader)
	}
	if v := binary.LittleEndian.Uint16(buf[4:6]); v != walHeaderVersion {
		return header{}, fmt.Errorf("%w: unsupported version %d", ErrInvalidHeader, v)
	}
	flags := binary.LittleEndian.Uint16(buf[6:8])
	return header{
		Compressed:       flags&flagCompressed != 0,
		CompressionLevel: int(buf[8]),
	}, nil
}
