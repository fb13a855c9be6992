package protocol

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/derekpierre/nucypher-core/umbral"
)

// HRACSize is the byte length of a policy identifier.
const HRACSize = 16

// hracTag domain-separates the HRAC derivation from every other hash in
// the protocol.
const hracTag = "nucypher-core/hrac"

// HRAC (hierarchical randomized access codename) identifies a policy:
// a deterministic digest of the publisher's verifying key, the
// recipient's verifying key, and an application-chosen label. the same
// triple always yields the same HRAC; the label never appears on the
// wire in the clear.
type HRAC [HRACSize]byte

// NewHRAC derives the policy identifier for (publisher, recipient, label).
func NewHRAC(publisher, recipient *umbral.VerifyingKey, label []byte) HRAC {
	h := blake3.New()
	h.Write([]byte(hracTag))
	h.Write(publisher.Bytes())
	h.Write(recipient.Bytes())
	h.Write(label)
	var out HRAC
	copy(out[:], h.Sum(nil)[:HRACSize])
	return out
}

func HRACFromBytes(b []byte) (HRAC, error) {
	var h HRAC
	if len(b) != HRACSize {
		return h, fmt.Errorf("protocol: hrac is %d bytes, want %d", len(b), HRACSize)
	}
	copy(h[:], b)
	return h, nil
}

func (h HRAC) Bytes() []byte {
	out := make([]byte, HRACSize)
	copy(out, h[:])
	return out
}

func (h HRAC) String() string {
	return hex.EncodeToString(h[:])
}
