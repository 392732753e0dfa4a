package checkpoint

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"

	"github.com/hupe1980/ledgerq/codec"
	"github.com/hupe1980/ledgerq/internal/hash"
	"github.com/hupe1980/ledgerq/model"
)

var magic = [4]byte{'L', 'Q', 'C', 'P'}

const (
	formatVersion = uint16(1)
	headerLen     = 4 + 2 + 8 + 8 + 4 + 8
	maxFieldLen   = 16 << 20
)

var (
	ErrInvalidHeader = errors.New("invalid checkpoint header")
	ErrChecksum      = errors.New("checkpoint checksum mismatch")
	ErrCorrupt       = errors.New("corrupt checkpoint payload")
)

// Checkpoint is a decoded checkpoint.
type Checkpoint struct {
	LSN     uint64
	Records []model.Record
}

// Encode writes a checkpoint of records at lsn to w.
func Encode(w io.Writer, lsn uint64, records []model.Record, c codec.Codec) error {
	if c == nil {
		c = codec.Default
	}

	var payload bytes.Buffer
	zw := lz4.NewWriter(&payload)
	bw := bufio.NewWriter(zw)

	name := c.Name()
	if err := bw.WriteByte(byte(len(name))); err != nil {
		return err
	}
	if _, err := bw.WriteString(name); err != nil {
		return err
	}

	var scratch []byte
	for i := range records {
		meta, err := codec.EncodeMetadata(c, records[i].Metadata)
		if err != nil {
			return err
		}
		scratch = appendRecord(scratch[:0], &records[i], meta)
		if _, err := bw.Write(scratch); err != nil {
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("compress checkpoint: %w", err)
	}

	var hdr [headerLen]byte
	copy(hdr[0:4], magic[:])
	binary.LittleEndian.PutUint16(hdr[4:6], formatVersion)
	binary.LittleEndian.PutUint64(hdr[6:14], lsn)
	binary.LittleEndian.PutUint64(hdr[14:22], uint64(len(records)))
	binary.LittleEndian.PutUint32(hdr[22:26], hash.CRC32C(payload.Bytes()))
	binary.LittleEndian.PutUint64(hdr[26:34], uint64(payload.Len()))

	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := payload.WriteTo(w)
	return err
}

func appendRecord(buf []byte, r *model.Record, meta []byte) []byte {
	id := r.ID.String()
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(id)))
	buf = append(buf, id...)
	buf = binary.LittleEndian.AppendUint64(buf, r.LSN)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(model.UnixNano(r.RegisteredAt)))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(meta)))
	return append(buf, meta...)
}

// Decode reads a checkpoint from r and verifies its checksum.
func Decode(r io.Reader) (*Checkpoint, error) {
	var hdr [headerLen]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}
	if [4]byte(hdr[0:4]) != magic {
		return nil, fmt.Errorf("%w: bad magic", ErrInvalidHeader)
	}
	if v := binary.LittleEndian.Uint16(hdr[4:6]); v != formatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidHeader, v)
	}
	lsn := binary.LittleEndian.Uint64(hdr[6:14])
	count := binary.LittleEndian.Uint64(hdr[14:22])
	sum := binary.LittleEndian.Uint32(hdr[22:26])
	plen := binary.LittleEndian.Uint64(hdr[26:34])

	payload, err := io.ReadAll(io.LimitReader(r, int64(plen)))
	if err != nil {
		return nil, err
	}
	if uint64(len(payload)) != plen {
		return nil, fmt.Errorf("%w: payload truncated", ErrCorrupt)
	}
	if hash.CRC32C(payload) != sum {
		return nil, ErrChecksum
	}

	br := bufio.NewReader(lz4.NewReader(bytes.NewReader(payload)))
	c, err := readCodec(br)
	if err != nil {
		return nil, err
	}

	cp := &Checkpoint{LSN: lsn, Records: make([]model.Record, 0, min(count, 1<<20))}
	for i := uint64(0); i < count; i++ {
		rec, err := readRecord(br, c)
		if err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", ErrCorrupt, i, err)
		}
		cp.Records = append(cp.Records, rec)
	}
	return cp, nil
}

func readCodec(br *bufio.Reader) (codec.Codec, error) {
	n, err := br.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	name := make([]byte, n)
	if _, err := io.ReadFull(br, name); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	c, ok := codec.ByName(string(name))
	if !ok {
		return nil, fmt.Errorf("%w: unknown codec %q", ErrCorrupt, name)
	}
	return c, nil
}

func readField(br *bufio.Reader) ([]byte, error) {
	var lb [4]byte
	if _, err := io.ReadFull(br, lb[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(lb[:])
	if n > maxFieldLen {
		return nil, fmt.Errorf("field length %d too large", n)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(br, b); err != nil {
		return nil, err
	}
	return b, nil
}

func readRecord(br *bufio.Reader, c codec.Codec) (model.Record, error) {
	id, err := readField(br)
	if err != nil {
		return model.Record{}, err
	}
	accountID, err := model.ParseAccountID(string(id))
	if err != nil {
		return model.Record{}, err
	}

	var fixed [16]byte
	if _, err := io.ReadFull(br, fixed[:]); err != nil {
		return model.Record{}, err
	}

	meta, err := readField(br)
	if err != nil {
		return model.Record{}, err
	}
	m, err := codec.DecodeMetadata(c, meta)
	if err != nil {
		return model.Record{}, err
	}

	return model.Record{
		ID:           accountID,
		LSN:          binary.LittleEndian.Uint64(fixed[0:8]),
		RegisteredAt: model.FromUnixNano(int64(binary.LittleEndian.Uint64(fixed[8:16]))),
		Metadata:     m,
	}, nil
}
