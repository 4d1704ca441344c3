package structs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func pointType() *UserDefinedType {
	return &UserDefinedType{
		Name: "Point",
		Size: 8,
		Fields: []CompoundField{
			{Name: "X", Atomic: TagInt32, Offset: 0},
			{Name: "Y", Atomic: TagInt32, Offset: 4},
		},
	}
}

func polylineType() *UserDefinedType {
	return &UserDefinedType{
		Name: "Polyline",
		Size: 24,
		Fields: []CompoundField{
			{Name: "N", Atomic: TagInt32, Offset: 0},
			{Name: "Head", TypeName: "Point", IsPointer: true, Offset: 8},
			{Name: "Points", TypeName: "Point", IsPointer: true, Rank: 1, Offset: 16},
		},
	}
}

func TestMaterializeRebuildRoundTrip(t *testing.T) {
	types := &UserDefinedTypeList{}
	require.NoError(t, types.Register(pointType()))
	require.NoError(t, types.Register(polylineType()))

	head := &Node{Type: pointType(), Scalars: map[string]any{"X": int64(1), "Y": int64(2)}}
	p1 := &Node{Type: pointType(), Scalars: map[string]any{"X": int64(10), "Y": int64(20)}}
	p2 := &Node{Type: pointType(), Scalars: map[string]any{"X": int64(30), "Y": int64(40)}}

	root := &Node{
		Type:     polylineType(),
		Scalars:  map[string]any{"N": int64(2)},
		Children: map[string]*Node{"Head": head},
		Arrays:   map[string][]*Node{"Points": {p1, nil, p2}},
	}

	log := NewMallocLog()
	rootIdx, err := Materialize(log, root)
	require.NoError(t, err)
	require.Equal(t, 5, log.Len()) // head, p1, p2, the array vector, the root

	rebuilt, err := Rebuild(types, log, rootIdx)
	require.NoError(t, err)
	require.EqualValues(t, 2, rebuilt.Scalars["N"])
	require.EqualValues(t, 1, rebuilt.Children["Head"].Scalars["X"])
	require.EqualValues(t, 2, rebuilt.Children["Head"].Scalars["Y"])

	pts := rebuilt.Arrays["Points"]
	require.Len(t, pts, 3)
	require.EqualValues(t, 10, pts[0].Scalars["X"])
	require.Nil(t, pts[1])
	require.EqualValues(t, 40, pts[2].Scalars["Y"])
}

func TestGeneralBlockFreeWalksLogInReverse(t *testing.T) {
	g := NewGeneralBlock()
	require.NoError(t, g.Types.Register(pointType()))
	n := &Node{Type: pointType(), Scalars: map[string]any{"X": int64(5), "Y": int64(6)}}
	idx, err := Materialize(g.Log, n)
	require.NoError(t, err)
	g.Root = idx
	require.Equal(t, 1, g.Log.Len())
	g.Free()
	require.Equal(t, 0, g.Log.Len())
}

func TestDuplicateTypeRegistrationRejected(t *testing.T) {
	types := &UserDefinedTypeList{}
	require.NoError(t, types.Register(pointType()))
	require.Error(t, types.Register(pointType()))
}
