package request

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStripSubsetBrackets(t *testing.T) {
	rest, expr, ok := stripSubset("te[0:99:2, *]")
	require.True(t, ok)
	require.Equal(t, "te", rest)
	require.Equal(t, "0:99:2, *", expr)
}

func TestStripSubsetNone(t *testing.T) {
	rest, _, ok := stripSubset("ip")
	require.False(t, ok)
	require.Equal(t, "ip", rest)
}

func TestParseSubsetExplicitAndWildcard(t *testing.T) {
	s, err := parseSubset("0:99:2, *")
	require.NoError(t, err)
	require.Equal(t, 2, s.Rank)
	require.Equal(t, []int64{0, 0}, s.Start)
	require.Equal(t, []int64{99, -1}, s.Stop)
	require.Equal(t, []int64{2, 1}, s.Stride)
	require.Equal(t, []int64{50, -1}, s.Count)
	require.Equal(t, []bool{true, false}, s.SubsetFlag)
}

func TestParseSubsetSingleIndex(t *testing.T) {
	s, err := parseSubset("5")
	require.NoError(t, err)
	require.Equal(t, []int64{5}, s.Start)
	require.Equal(t, []int64{5}, s.Stop)
	require.Equal(t, []int64{1}, s.Count)
}

func TestParseSubsetOpenRange(t *testing.T) {
	s, err := parseSubset("10:")
	require.NoError(t, err)
	require.Equal(t, int64(10), s.Start[0])
	require.Equal(t, int64(-1), s.Stop[0])
	require.Equal(t, int64(-1), s.Count[0])
}

func TestParseSubsetRejectsBadRange(t *testing.T) {
	_, err := parseSubset("10:5")
	require.Error(t, err)
	require.True(t, Is(err, BadSubset))
}

func TestParseSubsetRejectsExcessRank(t *testing.T) {
	expr := "0,0,0,0,0,0,0,0,0"
	_, err := parseSubset(expr)
	require.Error(t, err)
	require.True(t, Is(err, BadSubset))
}
