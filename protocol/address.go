package protocol

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/derekpierre/nucypher-core/umbral"
)

// AddressSize is the byte length of a node address.
const AddressSize = 20

// Address identifies a node (a re-encrypting proxy's staking provider)
// on the wire. it is derived deterministically from the node's verifying
// key, so the same key always yields the same address.
type Address [AddressSize]byte

// AddressFromVerifyingKey derives the node address for a verifying key.
func AddressFromVerifyingKey(vk *umbral.VerifyingKey) Address {
	sum := blake3.Sum256(vk.Bytes())
	var a Address
	copy(a[:], sum[:AddressSize])
	return a
}

func AddressFromBytes(b []byte) (Address, error) {
	var a Address
	if len(b) != AddressSize {
		return a, fmt.Errorf("protocol: address is %d bytes, want %d", len(b), AddressSize)
	}
	copy(a[:], b)
	return a, nil
}

func (a Address) Bytes() []byte {
	out := make([]byte, AddressSize)
	copy(out, a[:])
	return out
}

func (a Address) String() string {
	return hex.EncodeToString(a[:])
}

// Less gives the canonical ordering used wherever addresses are listed
// on the wire (lexicographic on the raw bytes).
func (a Address) Less(other Address) bool {
	return bytes.Compare(a[:], other[:]) < 0
}
