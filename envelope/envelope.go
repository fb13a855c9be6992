// Package envelope implements the versioned binary envelope wrapping every
// protocol message: [type-tag:u16][major:u8][minor:u8][payload].
//
// the header makes each message self-describing. the decode gate:
//   - the tag must match the type the caller expects,
//   - the major version must equal the decoder's major,
//   - the minor version must not exceed the decoder's known minor
//     (minor upgrades are additive-only, so an older payload always
//     decodes; a newer one carries fields this decoder cannot name).
//
// decoding is total over arbitrary input: malformed bytes yield an error,
// never a panic.
package envelope

import (
	"errors"
	"fmt"

	"github.com/derekpierre/nucypher-core/marshalutil"
)

// Type tags every protocol message on the wire.
type Type uint16

const (
	TypeMessageKit           Type = 1
	TypeEncryptedKeyFrag     Type = 2
	TypeTreasureMap          Type = 3
	TypeEncryptedTreasureMap Type = 4
	TypeReencryptionRequest  Type = 5
	TypeReencryptionResponse Type = 6
	TypeRetrievalKit         Type = 7
	TypeRevocationOrder      Type = 8
	TypeNodeMetadata         Type = 9
	TypeMetadataRequest      Type = 10
	TypeMetadataResponse     Type = 11
)

// HeaderLen is the fixed envelope header size.
const HeaderLen = 4

// ErrMalformed reports input that does not parse as a protocol message.
var ErrMalformed = errors.New("envelope: malformed input")

// ErrType reports a type tag other than the one the caller expected.
var ErrType = errors.New("envelope: unexpected message type")

// ErrVersion reports a message from an incompatible protocol version.
var ErrVersion = errors.New("envelope: version mismatch")

// Version is a message format version. Major bumps are breaking; minor
// bumps only append optional fields.
type Version struct {
	Major uint8
	Minor uint8
}

// Seal wraps payload in an envelope header.
func Seal(t Type, v Version, payload []byte) []byte {
	b := make([]byte, 0, HeaderLen+len(payload))
	b = marshalutil.WriteUint16(b, uint16(t))
	b = marshalutil.WriteByte(b, v.Major)
	b = marshalutil.WriteByte(b, v.Minor)
	b = marshalutil.WriteBytes(b, payload)
	return b
}

// Peek reads the type tag without decoding the rest, for dispatch on
// incoming buffers of unknown type.
func Peek(b []byte) (Type, error) {
	tag, _, err := marshalutil.ReadUint16(b)
	if err != nil {
		return 0, fmt.Errorf("%w: truncated header", ErrMalformed)
	}
	return Type(tag), nil
}

// Open checks the envelope header and returns the payload.
// supported is the decoder's own version for this type: the payload's
// major must equal it and the payload's minor must be known to it.
// the returned Version lets decoders treat fields added after the
// payload's minor as absent.
func Open(b []byte, want Type, supported Version) (payload []byte, got Version, err error) {
	tag, rem, err := marshalutil.ReadUint16(b)
	if err != nil {
		return nil, Version{}, fmt.Errorf("%w: truncated header", ErrMalformed)
	}
	if Type(tag) != want {
		return nil, Version{}, fmt.Errorf("%w: got tag %d, want %d", ErrType, tag, want)
	}
	major, rem, err := marshalutil.ReadByte(rem)
	if err != nil {
		return nil, Version{}, fmt.Errorf("%w: truncated header", ErrMalformed)
	}
	minor, rem, err := marshalutil.ReadByte(rem)
	if err != nil {
		return nil, Version{}, fmt.Errorf("%w: truncated header", ErrMalformed)
	}
	got = Version{Major: major, Minor: minor}
	if major != supported.Major {
		return nil, got, fmt.Errorf("%w: major %d, decoder supports %d",
			ErrVersion, major, supported.Major)
	}
	if minor > supported.Minor {
		return nil, got, fmt.Errorf("%w: minor %d, decoder knows up to %d.%d",
			ErrVersion, minor, supported.Major, supported.Minor)
	}
	return rem, got, nil
}
