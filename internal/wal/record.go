package wal

import (
	"encoding/binary"
	"io"

	"github.com/hupe1980/ledgerq/internal/hash"
)

const (
	frameHeaderLen = 4 + 1 + 8 + 4
	maxPayloadLen  = 16 << 20
)

func (r *Record) payloadLen() int {
	n := 4 + len(r.ID)
	if r.Type == RecordRegister {
		n += 8 + 4 + len(r.Metadata)
	}
	return n
}

// appendPayload encodes the payload:
//
//	Register:   [idLen u32][id][registeredAt i64][metaLen u32][meta]
//	Unregister: [idLen u32][id]
func (r *Record) appendPayload(buf []byte) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(r.ID)))
	buf = append(buf, r.ID...)
	if r.Type == RecordRegister {
		buf = binary.LittleEndian.AppendUint64(buf, uint64(r.RegisteredAt))
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(r.Metadata)))
		buf = append(buf, r.Metadata...)
	}
	return buf
}

// Encode appends the framed record to buf.
func (r *Record) Encode(buf []byte) ([]byte, error) {
	if r.Type != RecordRegister && r.Type != RecordUnregister {
		return buf, ErrInvalidType
	}
	plen := r.payloadLen()
	if plen > maxPayloadLen {
		return buf, ErrRecordTooLarge
	}

	start := len(buf)
	buf = append(buf, 0, 0, 0, 0) // checksum placeholder
	buf = append(buf, byte(r.Type))
	buf = binary.LittleEndian.AppendUint64(buf, r.LSN)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(plen))
	buf = r.appendPayload(buf)

	binary.LittleEndian.PutUint32(buf[start:], hash.CRC32C(buf[start+4:]))
	return buf, nil
}

// Decode reads one framed record from r. It returns io.EOF only when r
// ends exactly at a record boundary.
func Decode(r io.Reader) (*Record, error) {
	var hdr [frameHeaderLen]byte
	n, err := io.ReadFull(r, hdr[:])
	if err != nil {
		if n == 0 && err == io.EOF {
			return nil, io.EOF
		}
		return nil, io.ErrUnexpectedEOF
	}

	checksum := binary.LittleEndian.Uint32(hdr[0:4])
	length := binary.LittleEndian.Uint32(hdr[13:17])
	if length > maxPayloadLen {
		return nil, ErrRecordTooLarge
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, io.ErrUnexpectedEOF
	}
	if hash.Extend(hash.CRC32C(hdr[4:]), payload) != checksum {
		return nil, ErrInvalidCRC
	}

	rec := &Record{
		Type: RecordType(hdr[4]),
		LSN:  binary.LittleEndian.Uint64(hdr[5:13]),
	}
	if err := rec.parsePayload(payload); err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *Record) parsePayload(p []byte) error {
	if r.Type != RecordRegister && r.Type != RecordUnregister {
		return ErrInvalidType
	}
	id, p, ok := readBytes(p)
	if !ok {
		return ErrShortRead
	}
	r.ID = string(id)

	if r.Type == RecordRegister {
		if len(p) < 8 {
			return ErrShortRead
		}
		r.RegisteredAt = int64(binary.LittleEndian.Uint64(p))
		meta, _, ok := readBytes(p[8:])
		if !ok {
			return ErrShortRead
		}
		if len(meta) > 0 {
			r.Metadata = meta
		}
	}
	return nil
}

func readBytes(p []byte) ([]byte, []byte, bool) {
	if len(p) < 4 {
		return nil, nil, false
	}
	n := binary.LittleEndian.Uint32(p)
	p = p[4:]
	if uint32(len(p)) < n {
		return nil, nil, false
	}
	return p[:n], p[n:], true
}
