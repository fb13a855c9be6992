package protocol

import (
	"fmt"

	"github.com/derekpierre/nucypher-core/envelope"
	"github.com/derekpierre/nucypher-core/marshalutil"
	"github.com/derekpierre/nucypher-core/umbral"
)

var (
	metadataRequestVersion  = envelope.Version{Major: 1, Minor: 0}
	metadataResponseVersion = envelope.Version{Major: 1, Minor: 0}
)

// metadataSigTag domain-separates metadata response signatures.
const metadataSigTag byte = 0x07

// MetadataRequest asks a peer for fleet announcements. the checksum is
// the requester's current fleet view, letting the peer skip a full
// response when views agree; announceNodes piggybacks announcements the
// requester believes the peer lacks.
type MetadataRequest struct {
	FleetStateChecksum FleetStateChecksum
	AnnounceNodes      []*NodeMetadata
}

func writeNodeList(b []byte, nodes []*NodeMetadata) []byte {
	b = marshalutil.WriteUint32(b, uint32(len(nodes)))
	for _, nm := range nodes {
		b = marshalutil.WriteSlice1D(b, nm.bytesInner())
	}
	return b
}

func readNodeList(b []byte) (nodes []*NodeMetadata, rem []byte, err error) {
	var count uint32
	count, rem, err = marshalutil.ReadUint32(b)
	if err != nil {
		return
	}
	// each entry carries at least a length prefix; bound before allocating.
	if uint64(count)*8 > uint64(len(rem)) {
		err = fmt.Errorf("node count %d exceeds input", count)
		return
	}
	for i := uint32(0); i < count; i++ {
		var inner []byte
		inner, rem, err = marshalutil.ReadSlice1D(rem)
		if err != nil {
			return
		}
		var nm *NodeMetadata
		var nmRem []byte
		nm, nmRem, err = nodeMetadataDecode(inner)
		if err == nil && len(nmRem) != 0 {
			err = fmt.Errorf("trailing bytes in node %d", i)
		}
		if err != nil {
			return
		}
		nodes = append(nodes, nm)
	}
	return
}

func (mr *MetadataRequest) Bytes() []byte {
	var b []byte
	b = marshalutil.WriteBytes(b, mr.FleetStateChecksum.Bytes())
	b = writeNodeList(b, mr.AnnounceNodes)
	return envelope.Seal(envelope.TypeMetadataRequest, metadataRequestVersion, b)
}

func MetadataRequestFromBytes(b []byte) (*MetadataRequest, error) {
	payload, _, err := envelope.Open(b, envelope.TypeMetadataRequest, metadataRequestVersion)
	if err != nil {
		return nil, err
	}
	mr := &MetadataRequest{}
	var raw, rem []byte
	raw, rem, err = marshalutil.ReadBytes(payload, FleetStateChecksumSize)
	if err == nil {
		mr.FleetStateChecksum, err = FleetStateChecksumFromBytes(raw)
	}
	if err == nil {
		mr.AnnounceNodes, rem, err = readNodeList(rem)
	}
	if err := finishDecode("metadata request", rem, err); err != nil {
		return nil, err
	}
	return mr, nil
}

// MetadataResponsePayload is the peer's answer: its announcements as of
// a timestamp.
type MetadataResponsePayload struct {
	Timestamp     uint32 // epoch seconds
	AnnounceNodes []*NodeMetadata
}

func (p *MetadataResponsePayload) encode(b []byte) []byte {
	b = marshalutil.WriteUint32(b, p.Timestamp)
	return writeNodeList(b, p.AnnounceNodes)
}

// MetadataResponse is the payload signed by the responding node, so
// gossip relayed through third parties stays attributable.
type MetadataResponse struct {
	Payload   *MetadataResponsePayload
	Signature umbral.Signature
}

func metadataSigBytes(p *MetadataResponsePayload) []byte {
	return p.encode([]byte{metadataSigTag})
}

// NewMetadataResponse signs the payload with the responding node's key.
func NewMetadataResponse(signer *umbral.Signer, payload *MetadataResponsePayload) *MetadataResponse {
	return &MetadataResponse{
		Payload:   payload,
		Signature: signer.Sign(metadataSigBytes(payload)),
	}
}

// Verify checks the responder's signature and returns the payload.
func (mr *MetadataResponse) Verify(responder *umbral.VerifyingKey) (*MetadataResponsePayload, error) {
	if !responder.Verify(metadataSigBytes(mr.Payload), mr.Signature) {
		return nil, fmt.Errorf("%w: metadata response", ErrInvalidSignature)
	}
	return mr.Payload, nil
}

func (mr *MetadataResponse) Bytes() []byte {
	b := mr.Payload.encode(nil)
	b = marshalutil.WriteBytes(b, mr.Signature)
	return envelope.Seal(envelope.TypeMetadataResponse, metadataResponseVersion, b)
}

func MetadataResponseFromBytes(b []byte) (*MetadataResponse, error) {
	payload, _, err := envelope.Open(b, envelope.TypeMetadataResponse, metadataResponseVersion)
	if err != nil {
		return nil, err
	}
	mr := &MetadataResponse{Payload: &MetadataResponsePayload{}}
	var rem []byte
	mr.Payload.Timestamp, rem, err = marshalutil.ReadUint32(payload)
	if err == nil {
		mr.Payload.AnnounceNodes, rem, err = readNodeList(rem)
	}
	if err == nil {
		mr.Signature, rem, err = readSignature(rem)
	}
	if err := finishDecode("metadata response", rem, err); err != nil {
		return nil, err
	}
	return mr, nil
}
