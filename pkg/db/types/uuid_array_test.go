package dbtypes

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestUUIDArrayRoundTripsThroughArrayLiteral(t *testing.T) {
	a := uuid.New()
	b := uuid.New()

	v, err := UUIDArray{a, b}.Value()
	require.NoError(t, err)
	require.Equal(t, `{"`+a.String()+`","`+b.String()+`"}`, v)

	var out UUIDArray
	require.NoError(t, out.Scan(v))
	require.Equal(t, UUIDArray{a, b}, out)
	require.True(t, out.Contains(b))
	require.False(t, out.Contains(uuid.New()))
}

func TestUUIDArrayScansUnquotedPostgresOutput(t *testing.T) {
	id := uuid.New()
	var out UUIDArray
	require.NoError(t, out.Scan([]byte("{" + id.String() + "}")))
	require.Equal(t, UUIDArray{id}, out)
}

func TestUUIDArrayEmptyAndNull(t *testing.T) {
	v, err := UUIDArray(nil).Value()
	require.NoError(t, err)
	require.Equal(t, "{}", v)

	var out UUIDArray
	require.NoError(t, out.Scan(nil))
	require.NotNil(t, out)
	require.Empty(t, out)
	require.NoError(t, out.Scan([]byte("{}")))
	require.Empty(t, out)
}

func TestUUIDArrayScanRejectsGarbage(t *testing.T) {
	var out UUIDArray
	require.Error(t, out.Scan("{not-a-uuid}"))
	require.Error(t, out.Scan(42))
}
