package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Protocol identifiers, the stable wire contract of spec.md §4.1.
type ProtocolID uint16

const (
	ProtoRequestBlock ProtocolID = iota + 1
	ProtoDataBlock
	ProtoNextProtocol
	ProtoDataSystem
	ProtoSystemConfig
	ProtoDataSource
	ProtoSignal
	ProtoSignalDesc
	ProtoClientBlock
	ProtoServerBlock
	ProtoPutdataBlockList
	ProtoMeta
	ProtoStructures
	ProtoEfit
)

// endOfRecord is the explicit marker that closes every record, letting a
// receiver synchronise on record boundaries without having parsed the
// payload (spec.md §4.1: "the receiver can skip to the next record boundary
// without parsing").
const endOfRecord uint32 = 0x55444145 // "UDAE"

// sizeofRecordHeader is {protocol_id uint16, version uint16, length uint32}.
const sizeofRecordHeader = 2 + 2 + 4

// CurrentVersion is this build's protocol version. Negotiated version is
// min(client, server) (spec.md §4.1, §4.2).
const CurrentVersion = 9

// Negotiate returns min(client, server) per spec.md's "Negotiated version"
// glossary entry.
func Negotiate(client, server int) int {
	if client < server {
		return client
	}
	return server
}

// WriteRecord frames protocolID/version/payload and appends the
// end-of-record marker to w in one shot. Callers build payload with an
// Encoder first.
func WriteRecord(w io.Writer, protocolID ProtocolID, version int, payload []byte) error {
	hdr := make([]byte, sizeofRecordHeader)
	binary.BigEndian.PutUint16(hdr[0:2], uint16(protocolID))
	binary.BigEndian.PutUint16(hdr[2:4], uint16(version))
	binary.BigEndian.PutUint32(hdr[4:8], uint32(len(payload)))
	if _, err := w.Write(hdr); err != nil {
		return fmt.Errorf("wire: write record header: %w", err)
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return fmt.Errorf("wire: write record payload: %w", err)
		}
	}
	marker := make([]byte, 4)
	binary.BigEndian.PutUint32(marker, endOfRecord)
	if _, err := w.Write(marker); err != nil {
		return fmt.Errorf("wire: write end-of-record marker: %w", err)
	}
	return nil
}

// RecordHeader is the decoded {protocol_id, version, length} of one record.
type RecordHeader struct {
	ProtocolID ProtocolID
	Version    int
	Length     uint32
}

// ReadRecordHeader reads and decodes just the fixed-size header, leaving the
// payload and end-of-record marker unread.
func ReadRecordHeader(r io.Reader) (RecordHeader, error) {
	hdr := make([]byte, sizeofRecordHeader)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return RecordHeader{}, fmt.Errorf("wire: read record header: %w", err)
	}
	return RecordHeader{
		ProtocolID: ProtocolID(binary.BigEndian.Uint16(hdr[0:2])),
		Version:    int(binary.BigEndian.Uint16(hdr[2:4])),
		Length:     binary.BigEndian.Uint32(hdr[4:8]),
	}, nil
}

// ReadRecordPayload reads exactly Length bytes of payload plus the trailing
// end-of-record marker, verifying the marker.
func ReadRecordPayload(r io.Reader, h RecordHeader) ([]byte, error) {
	payload := make([]byte, h.Length)
	if h.Length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, fmt.Errorf("wire: read record payload: %w", err)
		}
	}
	marker := make([]byte, 4)
	if _, err := io.ReadFull(r, marker); err != nil {
		return nil, fmt.Errorf("wire: read end-of-record marker: %w", err)
	}
	if binary.BigEndian.Uint32(marker) != endOfRecord {
		return nil, fmt.Errorf("wire: corrupt record: missing end-of-record marker")
	}
	return payload, nil
}

// ReadRecord reads one full record: header, payload, and verified marker.
func ReadRecord(r io.Reader) (RecordHeader, []byte, error) {
	h, err := ReadRecordHeader(r)
	if err != nil {
		return RecordHeader{}, nil, err
	}
	payload, err := ReadRecordPayload(r, h)
	if err != nil {
		return RecordHeader{}, nil, err
	}
	return h, payload, nil
}

// SkipRecord discards a record's payload and marker without decoding it,
// letting the codec resynchronise after a benign plugin error (spec.md §5).
func SkipRecord(r io.Reader, h RecordHeader) error {
	if _, err := ReadRecordPayload(r, h); err != nil {
		return err
	}
	return nil
}

// Encoder builds one record's payload from a sequence of typed fields.
// Atomic types are big-endian fixed width; variable-length vectors are
// (length, bytes); strings are length-prefixed with an explicit terminator
// byte checked on decode (spec.md §4.1).
type Encoder struct {
	buf []byte
}

// NewEncoder returns an empty field encoder.
func NewEncoder() *Encoder { return &Encoder{buf: make([]byte, 0, 256)} }

func (e *Encoder) PutU8(v uint8)   { e.buf = append(e.buf, v) }
func (e *Encoder) PutBool(v bool) {
	if v {
		e.PutU8(1)
	} else {
		e.PutU8(0)
	}
}

func (e *Encoder) PutU16(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

func (e *Encoder) PutU32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

func (e *Encoder) PutU64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

func (e *Encoder) PutI32(v int32) { e.PutU32(uint32(v)) }
func (e *Encoder) PutI64(v int64) { e.PutU64(uint64(v)) }

func (e *Encoder) PutF32(v float32) { e.PutU32(f32bits(v)) }
func (e *Encoder) PutF64(v float64) { e.PutU64(f64bits(v)) }

// PutBytes writes a 32-bit length followed by the raw bytes.
func (e *Encoder) PutBytes(v []byte) {
	e.PutU32(uint32(len(v)))
	e.buf = append(e.buf, v...)
}

// PutString writes a 32-bit length, the UTF-8 bytes, then an explicit
// terminator byte (0x00) that Decoder.GetString checks for on the way out
// (spec.md §4.1, "explicit terminator check on decode").
func (e *Encoder) PutString(v string) {
	e.PutU32(uint32(len(v)))
	e.buf = append(e.buf, v...)
	e.buf = append(e.buf, 0)
}

// Bytes returns the accumulated payload.
func (e *Encoder) Bytes() []byte { return e.buf }

// Decoder reads fields back out of a payload in the same order they were
// written, gated by a negotiated version outside this type's concern
// (callers wrap each field read in `if negotiated >= N`).
type Decoder struct {
	buf []byte
	off int
	err error
}

// NewDecoder wraps a fully-read record payload for field-by-field decoding.
func NewDecoder(payload []byte) *Decoder { return &Decoder{buf: payload} }

// Err returns the first error encountered during decoding, if any. Callers
// should check Err once after a sequence of Get* calls rather than after
// every call.
func (d *Decoder) Err() error { return d.err }

func (d *Decoder) need(n int) bool {
	if d.err != nil {
		return false
	}
	if d.off+n > len(d.buf) {
		d.err = fmt.Errorf("wire: decode: need %d bytes at offset %d, have %d", n, d.off, len(d.buf))
		return false
	}
	return true
}

func (d *Decoder) GetU8() uint8 {
	if !d.need(1) {
		return 0
	}
	v := d.buf[d.off]
	d.off++
	return v
}

func (d *Decoder) GetBool() bool { return d.GetU8() != 0 }

func (d *Decoder) GetU16() uint16 {
	if !d.need(2) {
		return 0
	}
	v := binary.BigEndian.Uint16(d.buf[d.off : d.off+2])
	d.off += 2
	return v
}

func (d *Decoder) GetU32() uint32 {
	if !d.need(4) {
		return 0
	}
	v := binary.BigEndian.Uint32(d.buf[d.off : d.off+4])
	d.off += 4
	return v
}

func (d *Decoder) GetU64() uint64 {
	if !d.need(8) {
		return 0
	}
	v := binary.BigEndian.Uint64(d.buf[d.off : d.off+8])
	d.off += 8
	return v
}

func (d *Decoder) GetI32() int32 { return int32(d.GetU32()) }
func (d *Decoder) GetI64() int64 { return int64(d.GetU64()) }

func (d *Decoder) GetF32() float32 { return f32frombits(d.GetU32()) }
func (d *Decoder) GetF64() float64 { return f64frombits(d.GetU64()) }

func (d *Decoder) GetBytes() []byte {
	n := d.GetU32()
	if d.err != nil || !d.need(int(n)) {
		return nil
	}
	v := make([]byte, n)
	copy(v, d.buf[d.off:d.off+int(n)])
	d.off += int(n)
	return v
}

// GetString reads a length-prefixed string and verifies the explicit
// terminator byte written by PutString.
func (d *Decoder) GetString() string {
	n := d.GetU32()
	if d.err != nil || !d.need(int(n)+1) {
		return ""
	}
	v := string(d.buf[d.off : d.off+int(n)])
	d.off += int(n)
	if d.buf[d.off] != 0 {
		d.err = fmt.Errorf("wire: decode: missing string terminator at offset %d", d.off)
		return ""
	}
	d.off++
	return v
}
