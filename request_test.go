package contig

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllocRequestRoundTrip(t *testing.T) {
	in := AllocRequest{
		Name:      "camera0",
		Kind:      "firmware",
		Size:      2 << 20,
		Alignment: 1 << 20,
		Start:     0xdeadb000,
	}
	wire, err := in.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, wire, RequestSize)
	require.Equal(t, []byte{'c', 'M', 'a', 0x42}, wire[:4])

	var out AllocRequest
	require.NoError(t, out.UnmarshalBinary(wire))
	require.Equal(t, in, out)
}

func TestAllocRequestDecode(t *testing.T) {
	wire := make([]byte, RequestSize)
	binary.BigEndian.PutUint32(wire[0:4], RequestMagic)
	copy(wire[4:], "dev\x00")
	copy(wire[21:], "\x00")
	binary.NativeEndian.PutUint64(wire[40:48], 4096)

	var req AllocRequest
	require.NoError(t, req.UnmarshalBinary(wire))
	require.Equal(t, "dev", req.Name)
	require.Equal(t, "", req.Kind)
	require.EqualValues(t, 4096, req.Size)
	require.Zero(t, req.Alignment)
	require.Zero(t, req.Start)
}

func TestAllocRequestErrors(t *testing.T) {
	var req AllocRequest

	require.ErrorIs(t, req.UnmarshalBinary(make([]byte, 63)), ErrInvalidArgument)

	wire := make([]byte, RequestSize)
	require.ErrorIs(t, req.UnmarshalBinary(wire), ErrInvalidArgument, "zero magic")

	binary.BigEndian.PutUint32(wire[0:4], RequestMagic)
	for i := 4; i < 21; i++ {
		wire[i] = 'x' // name field without a terminating NUL
	}
	require.ErrorIs(t, req.UnmarshalBinary(wire), ErrInvalidArgument)

	long := AllocRequest{Name: "seventeen-bytes-x"}
	_, err := long.MarshalBinary()
	require.ErrorIs(t, err, ErrInvalidArgument)
}
