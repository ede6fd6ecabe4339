package contig

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// RequestMagic is the first word of every allocation request, packed
// big-end-first so the wire bytes read 'c', 'M', 'a', 0x42.
const RequestMagic uint32 = 'c'<<24 | 'M'<<16 | 'a'<<8 | 0x42

// RequestSize is the exact wire size of an allocation request.
const RequestSize = 64

// maxNameLen bounds the device name and kind fields; both occupy 17 bytes on
// the wire including the terminating NUL.
const maxNameLen = 16

// AllocRequest is the user-space allocation record exchanged across the
// ioctl-style boundary. Size, Alignment and Start travel native-endian as
// 64-bit words so the layout is identical for 32- and 64-bit callers; Start
// is filled in by the allocator on success.
type AllocRequest struct {
	Name      string
	Kind      string
	Size      uint64
	Alignment uint64
	Start     uint64
}

// MarshalBinary encodes the request into its 64-byte wire form.
func (r *AllocRequest) MarshalBinary() ([]byte, error) {
	if len(r.Name) > maxNameLen {
		return nil, fmt.Errorf("%w: device name %q too long", ErrInvalidArgument, r.Name)
	}
	if len(r.Kind) > maxNameLen {
		return nil, fmt.Errorf("%w: kind %q too long", ErrInvalidArgument, r.Kind)
	}
	buf := make([]byte, RequestSize)
	binary.BigEndian.PutUint32(buf[0:4], RequestMagic)
	copy(buf[4:21], r.Name)
	copy(buf[21:38], r.Kind)
	binary.NativeEndian.PutUint64(buf[40:48], r.Size)
	binary.NativeEndian.PutUint64(buf[48:56], r.Alignment)
	binary.NativeEndian.PutUint64(buf[56:64], r.Start)
	return buf, nil
}

// UnmarshalBinary decodes a 64-byte wire request, validating the magic and
// the NUL termination of both name fields.
func (r *AllocRequest) UnmarshalBinary(data []byte) error {
	if len(data) != RequestSize {
		return fmt.Errorf("%w: request is %d bytes, want %d", ErrInvalidArgument, len(data), RequestSize)
	}
	if magic := binary.BigEndian.Uint32(data[0:4]); magic != RequestMagic {
		return fmt.Errorf("%w: bad request magic %#x", ErrInvalidArgument, magic)
	}
	name, err := cString(data[4:21])
	if err != nil {
		return fmt.Errorf("%w: device name is not NUL-terminated", ErrInvalidArgument)
	}
	kind, err := cString(data[21:38])
	if err != nil {
		return fmt.Errorf("%w: kind is not NUL-terminated", ErrInvalidArgument)
	}
	r.Name = name
	r.Kind = kind
	r.Size = binary.NativeEndian.Uint64(data[40:48])
	r.Alignment = binary.NativeEndian.Uint64(data[48:56])
	r.Start = binary.NativeEndian.Uint64(data[56:64])
	return nil
}

func cString(field []byte) (string, error) {
	end := bytes.IndexByte(field, 0)
	if end < 0 {
		return "", fmt.Errorf("missing NUL")
	}
	return string(field[:end]), nil
}
