package protocol

import (
	"fmt"

	"github.com/derekpierre/nucypher-core/envelope"
	"github.com/derekpierre/nucypher-core/marshalutil"
	"github.com/derekpierre/nucypher-core/umbral"
)

var revocationOrderVersion = envelope.Version{Major: 1, Minor: 0}

// revocationSigTag domain-separates revocation-order signatures.
const revocationSigTag byte = 0x04

// RevocationOrder is the publisher's signed instruction to one proxy to
// discard its sealed key fragment. verifying the same order twice gives
// the same result; revocation is idempotent by construction.
type RevocationOrder struct {
	StakingProviderAddress Address
	EncryptedKFrag         *EncryptedKeyFrag
	Signature              umbral.Signature
}

func revocationSigBytes(addr Address, ek *EncryptedKeyFrag) []byte {
	b := []byte{revocationSigTag}
	b = marshalutil.WriteBytes(b, addr.Bytes())
	b = marshalutil.WriteSlice1D(b, ek.bytesInner())
	return b
}

// NewRevocationOrder signs a revocation of the fragment held at addr.
func NewRevocationOrder(signer *umbral.Signer, addr Address,
	ek *EncryptedKeyFrag) *RevocationOrder {
	return &RevocationOrder{
		StakingProviderAddress: addr,
		EncryptedKFrag:         ek,
		Signature:              signer.Sign(revocationSigBytes(addr, ek)),
	}
}

// Verify checks the publisher's signature and returns the revoked
// address/fragment pair the proxy should act on.
func (ro *RevocationOrder) Verify(publisher *umbral.VerifyingKey) (Address, *EncryptedKeyFrag, error) {
	if !publisher.Verify(revocationSigBytes(ro.StakingProviderAddress, ro.EncryptedKFrag), ro.Signature) {
		return Address{}, nil, fmt.Errorf("%w: revocation order", ErrInvalidSignature)
	}
	return ro.StakingProviderAddress, ro.EncryptedKFrag, nil
}

func (ro *RevocationOrder) Bytes() []byte {
	var b []byte
	b = marshalutil.WriteBytes(b, ro.StakingProviderAddress.Bytes())
	b = marshalutil.WriteSlice1D(b, ro.EncryptedKFrag.bytesInner())
	b = marshalutil.WriteBytes(b, ro.Signature)
	return envelope.Seal(envelope.TypeRevocationOrder, revocationOrderVersion, b)
}

func RevocationOrderFromBytes(b []byte) (*RevocationOrder, error) {
	payload, _, err := envelope.Open(b, envelope.TypeRevocationOrder, revocationOrderVersion)
	if err != nil {
		return nil, err
	}
	ro := &RevocationOrder{}
	var rem []byte
	ro.StakingProviderAddress, rem, err = readAddress(payload)
	var inner []byte
	if err == nil {
		inner, rem, err = marshalutil.ReadSlice1D(rem)
	}
	if err == nil {
		var ekRem []byte
		ro.EncryptedKFrag, ekRem, err = encryptedKeyFragDecode(inner)
		if err == nil && len(ekRem) != 0 {
			err = fmt.Errorf("trailing bytes in encrypted kfrag")
		}
	}
	if err == nil {
		ro.Signature, rem, err = readSignature(rem)
	}
	if err := finishDecode("revocation order", rem, err); err != nil {
		return nil, err
	}
	return ro, nil
}
