package envelope

import (
	"bytes"
	"errors"
	"testing"
)

var v10 = Version{Major: 1, Minor: 0}

func TestSealOpen(t *testing.T) {
	payload := []byte("payload")
	b := Seal(TypeMessageKit, v10, payload)
	got, ver, err := Open(b, TypeMessageKit, v10)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatal()
	}
	if ver != v10 {
		t.Fatal()
	}
}

func TestOpenWrongType(t *testing.T) {
	b := Seal(TypeMessageKit, v10, []byte("payload"))
	if _, _, err := Open(b, TypeTreasureMap, v10); !errors.Is(err, ErrType) {
		t.Fatal(err)
	}
}

func TestOpenMajorGate(t *testing.T) {
	// a decoder that only knows major 1 must reject major 2,
	// regardless of payload content.
	b := Seal(TypeMessageKit, Version{Major: 2, Minor: 0}, []byte("future"))
	if _, _, err := Open(b, TypeMessageKit, v10); !errors.Is(err, ErrVersion) {
		t.Fatal(err)
	}
}

func TestOpenMinorGate(t *testing.T) {
	// newer minor within the same major: reject. the decoder cannot
	// name the trailing optional fields, so it must not guess.
	b := Seal(TypeMessageKit, Version{Major: 1, Minor: 3}, []byte("p"))
	if _, _, err := Open(b, TypeMessageKit, v10); !errors.Is(err, ErrVersion) {
		t.Fatal(err)
	}

	// older minor decodes fine; the decoder treats absent optional
	// fields as absent.
	b = Seal(TypeMessageKit, Version{Major: 1, Minor: 1}, []byte("p"))
	payload, ver, err := Open(b, TypeMessageKit, Version{Major: 1, Minor: 2})
	if err != nil {
		t.Fatal(err)
	}
	if ver.Minor != 1 || !bytes.Equal(payload, []byte("p")) {
		t.Fatal()
	}
}

func TestOpenTruncated(t *testing.T) {
	b := Seal(TypeMessageKit, v10, []byte("payload"))
	for cut := 0; cut < HeaderLen; cut++ {
		if _, _, err := Open(b[:cut], TypeMessageKit, v10); !errors.Is(err, ErrMalformed) {
			t.Fatal(err)
		}
	}
	// empty payload is legal at the envelope layer.
	if _, _, err := Open(b[:HeaderLen], TypeMessageKit, v10); err != nil {
		t.Fatal(err)
	}
}

func TestPeek(t *testing.T) {
	b := Seal(TypeRevocationOrder, v10, nil)
	tag, err := Peek(b)
	if err != nil || tag != TypeRevocationOrder {
		t.Fatal(err)
	}
	if _, err := Peek([]byte{0x01}); !errors.Is(err, ErrMalformed) {
		t.Fatal(err)
	}
}

func FuzzOpen(f *testing.F) {
	f.Add([]byte{})
	f.Add(Seal(TypeMessageKit, v10, []byte("payload")))
	f.Add([]byte{0x01, 0x00, 0x01, 0x00})
	f.Fuzz(func(t *testing.T, data []byte) {
		// must never panic; errors are fine.
		payload, _, err := Open(data, TypeMessageKit, v10)
		if err == nil && len(data) < HeaderLen {
			t.Fatal("accepted short buffer")
		}
		_ = payload
	})
}
