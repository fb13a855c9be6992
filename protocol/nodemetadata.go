package protocol

import (
	"errors"
	"fmt"

	"github.com/derekpierre/nucypher-core/envelope"
	"github.com/derekpierre/nucypher-core/marshalutil"
	"github.com/derekpierre/nucypher-core/umbral"
)

var nodeMetadataVersion = envelope.Version{Major: 1, Minor: 0}

// nodeSigTag domain-separates node metadata signatures.
const nodeSigTag byte = 0x06

// NodeMetadataPayload is everything a node announces about itself:
// identity, network endpoint, keys, and the operator's authorization.
// OperatorSignature is opaque to the protocol core; it is produced and
// checked by the chain layer above.
type NodeMetadataPayload struct {
	StakingProviderAddress Address
	Domain                 string
	Timestamp              uint32 // epoch seconds
	VerifyingKey           *umbral.VerifyingKey
	EncryptingKey          *umbral.PublicKey
	CertificateDER         []byte
	Host                   string
	Port                   uint16
	OperatorSignature      []byte
}

func (p *NodeMetadataPayload) encode(b []byte) []byte {
	b = marshalutil.WriteBytes(b, p.StakingProviderAddress.Bytes())
	b = marshalutil.WriteString(b, p.Domain)
	b = marshalutil.WriteUint32(b, p.Timestamp)
	b = marshalutil.WriteBytes(b, p.VerifyingKey.Bytes())
	b = marshalutil.WriteBytes(b, p.EncryptingKey.Bytes())
	b = marshalutil.WriteSlice1D(b, p.CertificateDER)
	b = marshalutil.WriteString(b, p.Host)
	b = marshalutil.WriteUint16(b, p.Port)
	b = marshalutil.WriteSlice1D(b, p.OperatorSignature)
	return b
}

func nodeMetadataPayloadDecode(b []byte) (p *NodeMetadataPayload, rem []byte, err error) {
	p = &NodeMetadataPayload{}
	p.StakingProviderAddress, rem, err = readAddress(b)
	if err == nil {
		p.Domain, rem, err = marshalutil.ReadString(rem)
	}
	if err == nil {
		p.Timestamp, rem, err = marshalutil.ReadUint32(rem)
	}
	if err == nil {
		p.VerifyingKey, rem, err = readVerifyingKey(rem)
	}
	if err == nil {
		p.EncryptingKey, rem, err = readPublicKey(rem)
	}
	if err == nil {
		p.CertificateDER, rem, err = marshalutil.ReadSlice1D(rem)
	}
	if err == nil {
		p.Host, rem, err = marshalutil.ReadString(rem)
	}
	if err == nil {
		p.Port, rem, err = marshalutil.ReadUint16(rem)
	}
	if err == nil {
		p.OperatorSignature, rem, err = marshalutil.ReadSlice1D(rem)
	}
	return
}

func nodeSigBytes(p *NodeMetadataPayload) []byte {
	return p.encode([]byte{nodeSigTag})
}

// NodeMetadata is a self-certifying node announcement: the payload
// signed by the payload's own verifying key. anyone can check it with
// no external trust anchor.
type NodeMetadata struct {
	Payload   *NodeMetadataPayload
	Signature umbral.Signature
}

// NewNodeMetadata signs payload with the node's own signer. the signer
// must match the key the payload announces; a metadata record that does
// not certify itself would be unverifiable.
func NewNodeMetadata(signer *umbral.Signer, payload *NodeMetadataPayload) (*NodeMetadata, error) {
	if !signer.VerifyingKey().Equal(payload.VerifyingKey) {
		return nil, errors.New("protocol: signer does not match announced verifying key")
	}
	return &NodeMetadata{
		Payload:   payload,
		Signature: signer.Sign(nodeSigBytes(payload)),
	}, nil
}

// Verify checks the self-certification. expected, when non-nil, pins the
// announced key (e.g., to a key learned out of band); a pin mismatch is
// ErrAuthentication.
func (nm *NodeMetadata) Verify(expected *umbral.VerifyingKey) error {
	if expected != nil && !nm.Payload.VerifyingKey.Equal(expected) {
		return fmt.Errorf("%w: announced key differs from pinned key", ErrAuthentication)
	}
	if !nm.Payload.VerifyingKey.Verify(nodeSigBytes(nm.Payload), nm.Signature) {
		return fmt.Errorf("%w: node metadata", ErrInvalidSignature)
	}
	return nil
}

func (nm *NodeMetadata) bytesInner() []byte {
	b := nm.Payload.encode(nil)
	return marshalutil.WriteBytes(b, nm.Signature)
}

func (nm *NodeMetadata) Bytes() []byte {
	return envelope.Seal(envelope.TypeNodeMetadata, nodeMetadataVersion, nm.bytesInner())
}

func nodeMetadataDecode(b []byte) (nm *NodeMetadata, rem []byte, err error) {
	nm = &NodeMetadata{}
	nm.Payload, rem, err = nodeMetadataPayloadDecode(b)
	if err == nil {
		nm.Signature, rem, err = readSignature(rem)
	}
	return
}

func NodeMetadataFromBytes(b []byte) (*NodeMetadata, error) {
	payload, _, err := envelope.Open(b, envelope.TypeNodeMetadata, nodeMetadataVersion)
	if err != nil {
		return nil, err
	}
	nm, rem, err := nodeMetadataDecode(payload)
	if err := finishDecode("node metadata", rem, err); err != nil {
		return nil, err
	}
	return nm, nil
}
