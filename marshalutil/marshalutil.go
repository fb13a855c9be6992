// Package marshalutil provides bounds-checked reads and writes for the
// canonical wire encodings used throughout the protocol core.
// every read takes the input buffer and returns the remainder, so decoders
// chain reads and finish by checking the remainder is empty.
// all input is untrusted network bytes: reads never panic, and length
// prefixes are checked against the remaining buffer before allocating.
package marshalutil

import (
	"errors"

	"github.com/tchajed/marshal"
)

// ErrEndOfBuffer reports a read past the end of the input.
var ErrEndOfBuffer = errors.New("marshalutil: unexpected end of buffer")

// ErrNonCanonical reports an encoding that decodes but is not the unique
// canonical form (e.g., a bool byte other than 0 or 1).
// signatures cover canonical bytes, so non-canonical input is rejected
// rather than normalized.
var ErrNonCanonical = errors.New("marshalutil: non-canonical encoding")

func ReadInt(b []byte) (data uint64, rem []byte, err error) {
	rem = b
	if uint64(len(rem)) < 8 {
		err = ErrEndOfBuffer
		return
	}
	data, rem = marshal.ReadInt(rem)
	return
}

func ReadByte(b []byte) (data byte, rem []byte, err error) {
	rem = b
	if len(rem) < 1 {
		err = ErrEndOfBuffer
		return
	}
	data = rem[0]
	rem = rem[1:]
	return
}

func ReadUint16(b []byte) (data uint16, rem []byte, err error) {
	rem = b
	if len(rem) < 2 {
		err = ErrEndOfBuffer
		return
	}
	data = uint16(rem[0]) | uint16(rem[1])<<8
	rem = rem[2:]
	return
}

func ReadUint32(b []byte) (data uint32, rem []byte, err error) {
	rem = b
	if len(rem) < 4 {
		err = ErrEndOfBuffer
		return
	}
	data = uint32(rem[0]) | uint32(rem[1])<<8 | uint32(rem[2])<<16 | uint32(rem[3])<<24
	rem = rem[4:]
	return
}

func ReadBool(b []byte) (data bool, rem []byte, err error) {
	var x byte
	x, rem, err = ReadByte(b)
	if err != nil {
		return
	}
	if x > 1 {
		err = ErrNonCanonical
		return
	}
	data = x == 1
	return
}

// ReadBytes reads exactly length bytes.
func ReadBytes(b []byte, length uint64) (data []byte, rem []byte, err error) {
	rem = b
	if uint64(len(rem)) < length {
		err = ErrEndOfBuffer
		return
	}
	data, rem = marshal.ReadBytes(rem, length)
	return
}

// ReadSlice1D reads a length-prefixed byte slice.
func ReadSlice1D(b []byte) (data []byte, rem []byte, err error) {
	var length uint64
	length, rem, err = ReadInt(b)
	if err != nil {
		return
	}
	// the prefix is attacker-controlled; bound it before allocating.
	if length > uint64(len(rem)) {
		err = ErrEndOfBuffer
		return
	}
	data, rem, err = ReadBytes(rem, length)
	return
}

// ReadString reads a length-prefixed UTF-8 string.
func ReadString(b []byte) (data string, rem []byte, err error) {
	var raw []byte
	raw, rem, err = ReadSlice1D(b)
	if err != nil {
		return
	}
	data = string(raw)
	return
}

func WriteInt(b []byte, data uint64) []byte {
	return marshal.WriteInt(b, data)
}

func WriteByte(b []byte, data byte) []byte {
	return marshal.WriteBytes(b, []byte{data})
}

func WriteUint16(b []byte, data uint16) []byte {
	return marshal.WriteBytes(b, []byte{byte(data), byte(data >> 8)})
}

func WriteUint32(b []byte, data uint32) []byte {
	return marshal.WriteBytes(b, []byte{
		byte(data), byte(data >> 8), byte(data >> 16), byte(data >> 24)})
}

func WriteBool(b []byte, data bool) []byte {
	if data {
		return WriteByte(b, 1)
	}
	return WriteByte(b, 0)
}

func WriteBytes(b []byte, data []byte) []byte {
	return marshal.WriteBytes(b, data)
}

func WriteSlice1D(b []byte, data []byte) []byte {
	b = marshal.WriteInt(b, uint64(len(data)))
	b = marshal.WriteBytes(b, data)
	return b
}

func WriteString(b []byte, data string) []byte {
	return WriteSlice1D(b, []byte(data))
}
