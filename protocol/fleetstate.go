package protocol

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/zeebo/blake3"
)

// FleetStateChecksumSize is the byte length of a fleet state checksum.
const FleetStateChecksumSize = 32

// fleetStateTag domain-separates the fleet state digest.
const fleetStateTag = "nucypher-core/fleet-state"

// FleetStateChecksum summarizes a node's current view of the fleet as a
// single digest, for cheap divergence detection during metadata
// exchange. the digest is order-independent: two nodes that know the
// same set of announcements compute the same checksum regardless of
// discovery order.
type FleetStateChecksum [FleetStateChecksumSize]byte

// NewFleetStateChecksum digests the fleet view. thisNode, when non-nil,
// is the local node's own announcement (a node includes itself in its
// view); otherNodes is everyone else.
func NewFleetStateChecksum(thisNode *NodeMetadata, otherNodes []*NodeMetadata) FleetStateChecksum {
	encoded := make([][]byte, 0, len(otherNodes)+1)
	if thisNode != nil {
		encoded = append(encoded, thisNode.bytesInner())
	}
	for _, nm := range otherNodes {
		encoded = append(encoded, nm.bytesInner())
	}
	sort.Slice(encoded, func(i, j int) bool {
		return bytes.Compare(encoded[i], encoded[j]) < 0
	})

	h := blake3.New()
	h.Write([]byte(fleetStateTag))
	for _, e := range encoded {
		sum := blake3.Sum256(e)
		h.Write(sum[:])
	}
	var out FleetStateChecksum
	copy(out[:], h.Sum(nil)[:FleetStateChecksumSize])
	return out
}

func FleetStateChecksumFromBytes(b []byte) (FleetStateChecksum, error) {
	var c FleetStateChecksum
	if len(b) != FleetStateChecksumSize {
		return c, fmt.Errorf("protocol: fleet state checksum is %d bytes, want %d",
			len(b), FleetStateChecksumSize)
	}
	copy(c[:], b)
	return c, nil
}

func (c FleetStateChecksum) Bytes() []byte {
	out := make([]byte, FleetStateChecksumSize)
	copy(out, c[:])
	return out
}

func (c FleetStateChecksum) String() string {
	return hex.EncodeToString(c[:])
}
