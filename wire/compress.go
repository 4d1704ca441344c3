package wire

import (
	"fmt"
	"io"

	"github.com/pierrec/lz4/v3"
)

// ClientFlag bits carried in ClientBlock.ClientFlags (spec.md §4.8
// "client_flags"). Only the bits the core itself interprets are named
// here; plugin- or deployment-specific bits are free to use the rest.
const (
	FlagCompressData uint32 = 1 << iota
)

// compressedMarker distinguishes an lz4-compressed DATA_BLOCK payload from
// a raw one so a peer that didn't negotiate compression still fails loudly
// instead of silently misparsing.
const (
	markerRaw byte = iota
	markerLZ4
)

// WriteDataBlockRecord encodes and frames a DATA_BLOCK record, optionally
// lz4-compressing the encoded payload when compress is true (the same
// role as a transport.Extra.Compression knob, applied here to the one
// message type large enough to benefit: the flat atomic array a DataBlock
// carries).
func WriteDataBlockRecord(w io.Writer, negotiated int, db *DataBlock, compress bool) error {
	payload := EncodeDataBlock(db, negotiated)
	if compress {
		compressed, err := compressLZ4(payload)
		if err != nil {
			return fmt.Errorf("wire: compress data block: %w", err)
		}
		payload = append([]byte{markerLZ4}, compressed...)
	} else {
		payload = append([]byte{markerRaw}, payload...)
	}
	return WriteRecord(w, ProtoDataBlock, negotiated, payload)
}

// ReadDataBlockRecord reads a DATA_BLOCK record previously written by
// WriteDataBlockRecord, transparently decompressing if the sender marked
// it compressed.
func ReadDataBlockRecord(r io.Reader, negotiated int) (*DataBlock, error) {
	h, payload, err := ReadRecord(r)
	if err != nil {
		return nil, err
	}
	if h.ProtocolID != ProtoDataBlock {
		return nil, fmt.Errorf("wire: expected DATA_BLOCK, got protocol %d", h.ProtocolID)
	}
	if len(payload) == 0 {
		return nil, fmt.Errorf("wire: empty data block record")
	}
	marker, body := payload[0], payload[1:]
	if marker == markerLZ4 {
		decompressed, err := decompressLZ4(body)
		if err != nil {
			return nil, fmt.Errorf("wire: decompress data block: %w", err)
		}
		body = decompressed
	}
	return DecodeDataBlock(body, negotiated)
}

// compressLZ4 returns [1-byte sub-marker][4-byte little-endian original
// length][body]. The sub-marker distinguishes a genuinely lz4-compressed
// body (1) from a raw fallback (0) used when the input didn't compress,
// since lz4.CompressBlock reports that case by returning n == 0.
func compressLZ4(src []byte) ([]byte, error) {
	dst := make([]byte, lz4.CompressBlockBound(len(src)))
	var c lz4.Compressor
	n, err := c.CompressBlock(src, dst)
	if err != nil {
		return nil, err
	}
	hdr := []byte{0, byte(len(src)), byte(len(src) >> 8), byte(len(src) >> 16), byte(len(src) >> 24)}
	if n == 0 || n >= len(src) {
		return append(hdr, src...), nil
	}
	hdr[0] = 1
	return append(hdr, dst[:n]...), nil
}

func decompressLZ4(src []byte) ([]byte, error) {
	if len(src) < 5 {
		return nil, fmt.Errorf("wire: truncated lz4 frame")
	}
	sub := src[0]
	origLen := int(src[1]) | int(src[2])<<8 | int(src[3])<<16 | int(src[4])<<24
	body := src[5:]
	if sub == 0 {
		return body, nil
	}
	dst := make([]byte, origLen)
	n, err := lz4.UncompressBlock(body, dst)
	if err != nil {
		return nil, err
	}
	return dst[:n], nil
}
