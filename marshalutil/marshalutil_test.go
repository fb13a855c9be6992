package marshalutil

import (
	"bytes"
	"errors"
	"testing"
)

func TestIntRoundTrip(t *testing.T) {
	b := WriteInt(nil, 0xdeadbeefcafe)
	data, rem, err := ReadInt(b)
	if err != nil {
		t.Fatal(err)
	}
	if data != 0xdeadbeefcafe {
		t.Fatal()
	}
	if len(rem) != 0 {
		t.Fatal()
	}

	// short buffer errors.
	if _, _, err := ReadInt(b[:7]); !errors.Is(err, ErrEndOfBuffer) {
		t.Fatal(err)
	}
}

func TestUint16RoundTrip(t *testing.T) {
	b := WriteUint16(nil, 0xbeef)
	data, rem, err := ReadUint16(b)
	if err != nil {
		t.Fatal(err)
	}
	if data != 0xbeef || len(rem) != 0 {
		t.Fatal()
	}
	if _, _, err := ReadUint16([]byte{1}); !errors.Is(err, ErrEndOfBuffer) {
		t.Fatal(err)
	}
}

func TestUint32RoundTrip(t *testing.T) {
	b := WriteUint32(nil, 0xdeadbeef)
	data, rem, err := ReadUint32(b)
	if err != nil {
		t.Fatal(err)
	}
	if data != 0xdeadbeef || len(rem) != 0 {
		t.Fatal()
	}
}

func TestBoolCanonical(t *testing.T) {
	b := WriteBool(WriteBool(nil, true), false)
	v0, rem, err := ReadBool(b)
	if err != nil || !v0 {
		t.Fatal(err)
	}
	v1, rem, err := ReadBool(rem)
	if err != nil || v1 || len(rem) != 0 {
		t.Fatal(err)
	}

	// only 0 and 1 are valid bool bytes.
	if _, _, err := ReadBool([]byte{2}); !errors.Is(err, ErrNonCanonical) {
		t.Fatal(err)
	}
}

func TestSlice1DRoundTrip(t *testing.T) {
	data := []byte("treasure")
	b := WriteSlice1D(nil, data)
	got, rem, err := ReadSlice1D(b)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) || len(rem) != 0 {
		t.Fatal()
	}

	// empty slice round-trips.
	got, rem, err = ReadSlice1D(WriteSlice1D(nil, nil))
	if err != nil || len(got) != 0 || len(rem) != 0 {
		t.Fatal(err)
	}
}

func TestSlice1DBadPrefix(t *testing.T) {
	// length prefix claiming more bytes than remain must not allocate
	// or succeed.
	b := WriteInt(nil, 1<<40)
	b = append(b, 0xff)
	if _, _, err := ReadSlice1D(b); !errors.Is(err, ErrEndOfBuffer) {
		t.Fatal(err)
	}
}

func TestStringRoundTrip(t *testing.T) {
	b := WriteString(nil, "example.com")
	got, rem, err := ReadString(b)
	if err != nil || got != "example.com" || len(rem) != 0 {
		t.Fatal(err)
	}
}
