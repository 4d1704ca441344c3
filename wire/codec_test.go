package wire

import (
	"bytes"
	"testing"

	"github.com/nvidia-uda/uda/structs"
	"github.com/stretchr/testify/require"
)

func TestNegotiateIsMin(t *testing.T) {
	require.Equal(t, 7, Negotiate(7, 9))
	require.Equal(t, 7, Negotiate(9, 7))
	require.Equal(t, 9, Negotiate(9, 9))
}

func sampleRequestBlock() *RequestBlock {
	return &RequestBlock{
		PluginID:  PluginGenericCatalog,
		Archive:   "mast",
		Signal:    "ip",
		ExpNumber: 12345,
		APIDelim:  "::",
		Subset: DataSubset{
			Rank: 2, Start: []int64{0, 0}, Stop: []int64{99, -1},
			Count: []int64{50, -1}, Stride: []int64{2, 1}, SubsetFlag: []bool{true, false},
		},
		NameValueList: NameValueList{Pairs: []NameValue{{Name: "foo", Value: "bar", Quoted: true}}},
	}
}

func TestRequestBlockRoundTripAllVersions(t *testing.T) {
	rb := sampleRequestBlock()
	for _, ver := range []int{5, 6, 7, 8, 9} {
		payload := EncodeRequestBlock(rb, ver)
		got, err := DecodeRequestBlock(payload, ver)
		require.NoError(t, err)
		require.Equal(t, rb, got)
	}
}

func sampleDataBlock() *DataBlock {
	return &DataBlock{
		DataType:  TypeFloat64,
		Rank:      1,
		DataN:     3,
		Order:     -1,
		DataLabel: "ip",
		DataUnits: "A",
		DataDesc:  "plasma current",
		Data:      []byte{1, 2, 3, 4, 5, 6, 7, 8},
		Dims: []Dimension{
			{N: 3, Label: "time", Units: "s", Coords: []float64{0, 1, 2}},
			{N: 3, Label: "time2", Units: "s", Compressed: &CompressedDim{Dim0: 0, Diff: 0.5, N: 3}},
		},
		Handle: 4,
	}
}

func TestDataBlockRoundTripVersionGating(t *testing.T) {
	db := sampleDataBlock()
	payload9 := EncodeDataBlock(db, 9)
	got9, err := DecodeDataBlock(payload9, 9)
	require.NoError(t, err)
	require.Equal(t, db.DataDesc, got9.DataDesc)
	require.Equal(t, db.Dims[1].Compressed.Diff, got9.Dims[1].Compressed.Diff)

	payloadOld := EncodeDataBlock(db, 4)
	gotOld, err := DecodeDataBlock(payloadOld, 4)
	require.NoError(t, err)
	require.Empty(t, gotOld.DataDesc, "DataDesc is gated at version 5")
	require.Nil(t, gotOld.Dims[1].Compressed, "compressed dims are gated at version 6")
	require.Equal(t, gotOld.Dims[1].Coordinates(), []float64{0, 0.5, 1})
}

func TestRecordFramingRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := EncodeRequestBlock(sampleRequestBlock(), CurrentVersion)
	require.NoError(t, WriteRecord(&buf, ProtoRequestBlock, CurrentVersion, payload))

	h, got, err := ReadRecord(&buf)
	require.NoError(t, err)
	require.Equal(t, ProtoRequestBlock, h.ProtocolID)
	require.Equal(t, CurrentVersion, h.Version)
	require.Equal(t, payload, got)
}

func TestSkipRecordResynchronises(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRecord(&buf, ProtoDataBlock, CurrentVersion, []byte{1, 2, 3, 4}))
	require.NoError(t, WriteRecord(&buf, ProtoNextProtocol, CurrentVersion, EncodeNextProtocol(NextSleep)))

	h1, err := ReadRecordHeader(&buf)
	require.NoError(t, err)
	require.Equal(t, ProtoDataBlock, h1.ProtocolID)
	require.NoError(t, SkipRecord(&buf, h1))

	h2, payload2, err := ReadRecord(&buf)
	require.NoError(t, err)
	require.Equal(t, ProtoNextProtocol, h2.ProtocolID)
	np, err := DecodeNextProtocol(payload2)
	require.NoError(t, err)
	require.Equal(t, NextSleep, np)
}

func TestCorruptEndOfRecordMarkerDetected(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRecord(&buf, ProtoNextProtocol, CurrentVersion, EncodeNextProtocol(NextClosedown)))
	corrupt := buf.Bytes()
	corrupt[len(corrupt)-1] ^= 0xFF
	_, _, err := ReadRecord(bytes.NewReader(corrupt))
	require.Error(t, err)
}

func TestClientServerBlockRoundTrip(t *testing.T) {
	cb := &ClientBlock{Version: 9, ClientFlags: 3, PrivateFlags: 1, OSName: "linux", DOI: "10.1/x", AuthToken: "tok"}
	payload := EncodeClientBlock(cb, 9)
	got, err := DecodeClientBlock(payload, 9)
	require.NoError(t, err)
	require.Equal(t, cb, got)

	oldPayload := EncodeClientBlock(cb, 7)
	gotOld, err := DecodeClientBlock(oldPayload, 7)
	require.NoError(t, err)
	require.Empty(t, gotOld.AuthToken, "auth token gated at version 8")

	sb := &ServerBlock{Version: 9, ServerID: "srv-1", Benign: false,
		Errors: []ErrorEntry{{Kind: 2, Where: "netcdf", Code: 7, Message: "bad var"}}}
	sp := EncodeServerBlock(sb, 9)
	gotSB, err := DecodeServerBlock(sp, 9)
	require.NoError(t, err)
	require.Equal(t, sb, gotSB)
}

func TestStructuresRoundTrip(t *testing.T) {
	pt := &structs.UserDefinedType{Name: "Point", Size: 8, Fields: []structs.CompoundField{
		{Name: "X", Atomic: structs.TagInt32, Offset: 0},
		{Name: "Y", Atomic: structs.TagInt32, Offset: 4},
	}}
	types := &structs.UserDefinedTypeList{}
	require.NoError(t, types.Register(pt))
	n := &structs.Node{Type: pt, Scalars: map[string]any{"X": int64(1), "Y": int64(2)}}
	log := structs.NewMallocLog()
	root, err := structs.Materialize(log, n)
	require.NoError(t, err)
	gb := &structs.GeneralBlock{Types: types, Log: log, Root: root}

	payload := EncodeStructures(gb)
	got, err := DecodeStructures(payload)
	require.NoError(t, err)
	require.Equal(t, gb.Root, got.Root)

	rebuilt, err := structs.Rebuild(got.Types, got.Log, got.Root)
	require.NoError(t, err)
	require.EqualValues(t, 1, rebuilt.Scalars["X"])
	require.EqualValues(t, 2, rebuilt.Scalars["Y"])
}

func TestPutDataBlockListRoundTrip(t *testing.T) {
	list := []PutDataBlock{{Name: "arr", Type: "float64", Shape: []int64{2, 3}, Bytes: []byte{1, 2, 3, 4}}}
	payload := EncodePutDataBlockList(list)
	got, err := DecodePutDataBlockList(payload)
	require.NoError(t, err)
	require.Equal(t, list, got)
}

func TestMetaRoundTrip(t *testing.T) {
	xml := "<root><a>1</a></root>"
	payload := EncodeMeta(xml)
	got, err := DecodeMeta(payload)
	require.NoError(t, err)
	require.Equal(t, xml, got)
}
