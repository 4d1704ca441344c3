package request

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseNameValueListBasic(t *testing.T) {
	nv, err := parseNameValueList(`foo=bar, baz="quoted value"`)
	require.NoError(t, err)
	require.Len(t, nv.Pairs, 2)
	require.Equal(t, "foo", nv.Pairs[0].Name)
	require.Equal(t, "bar", nv.Pairs[0].Value)
	require.False(t, nv.Pairs[0].Quoted)
	require.Equal(t, "baz", nv.Pairs[1].Name)
	require.Equal(t, "quoted value", nv.Pairs[1].Value)
	require.True(t, nv.Pairs[1].Quoted)
}

func TestParseNameValueListBooleanShorthand(t *testing.T) {
	nv, err := parseNameValueList("/verbose, name=1")
	require.NoError(t, err)
	require.Equal(t, "verbose", nv.Pairs[0].Name)
	require.Equal(t, "true", nv.Pairs[0].Value)
	require.Equal(t, "name", nv.Pairs[1].Name)
}

func TestParseNameValueListDelimiterOverride(t *testing.T) {
	nv, err := parseNameValueList("delimiter=';',foo=bar;baz=qux")
	require.NoError(t, err)
	require.Len(t, nv.Pairs, 2)
	require.Equal(t, "foo", nv.Pairs[0].Name)
	require.Equal(t, "baz", nv.Pairs[1].Name)
}

func TestParseNameValueListRejectsMalformed(t *testing.T) {
	_, err := parseNameValueList("notapair")
	require.Error(t, err)
	require.True(t, Is(err, NameValueSyntax))
}
