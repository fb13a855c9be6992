package umbral

import (
	"fmt"

	"github.com/derekpierre/nucypher-core/marshalutil"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/share"
)

// # Key fragments

// kfragSigTag domain-separates kfrag signatures from every other
// signature in the protocol.
const kfragSigTag byte = 0x01

// KeyFragSize is the byte length of a serialized KeyFrag.
const KeyFragSize = 4 + ScalarSize + 3*PointSize + SignatureSize

// KeyFrag is one Shamir share of a delegating key, bound to the
// delegating/receiving key pair and authorized by the delegator's
// signature. only the proxy it is (separately) encrypted for should
// ever hold one.
type KeyFrag struct {
	index      uint32
	share      kyber.Scalar
	commitment kyber.Point // share*B, lets others verify frags without the share
	delegating *PublicKey
	receiving  *PublicKey
	signature  Signature
}

// VerifiedKeyFrag is a KeyFrag whose authorization signature and
// commitment have been checked. re-encryption only accepts verified
// frags.
type VerifiedKeyFrag struct {
	kf *KeyFrag
}

func kfragSigBytes(index uint32, commitment kyber.Point, delegating, receiving *PublicKey) []byte {
	b := make([]byte, 0, 1+4+3*PointSize)
	b = marshalutil.WriteByte(b, kfragSigTag)
	b = marshalutil.WriteUint32(b, index)
	b = marshalutil.WriteBytes(b, pointBytes(commitment))
	b = marshalutil.WriteBytes(b, delegating.Bytes())
	b = marshalutil.WriteBytes(b, receiving.Bytes())
	return b
}

// GenerateKFrags Shamir-splits the delegating key into shares key
// fragments with the given threshold, each signed by signer (the
// delegator's authorization). pass-through to the library's polynomial
// sampling; this function adds only binding and signatures.
func GenerateKFrags(delegating *SecretKey, receiving *PublicKey, signer *Signer,
	threshold, shares int) ([]*VerifiedKeyFrag, error) {
	if threshold < 1 || threshold > shares {
		return nil, fmt.Errorf("umbral: threshold %d out of range for %d shares", threshold, shares)
	}
	delegatingPK := delegating.PublicKey()
	poly := share.NewPriPoly(suite, threshold, delegating.s, suite.RandomStream())
	priShares := poly.Shares(shares)

	out := make([]*VerifiedKeyFrag, 0, shares)
	for _, ps := range priShares {
		commitment := suite.Point().Mul(ps.V, nil)
		kf := &KeyFrag{
			index:      uint32(ps.I),
			share:      ps.V,
			commitment: commitment,
			delegating: delegatingPK,
			receiving:  receiving,
		}
		kf.signature = signer.Sign(kfragSigBytes(kf.index, commitment, delegatingPK, receiving))
		out = append(out, &VerifiedKeyFrag{kf: kf})
	}
	return out, nil
}

// Verify checks the delegator's authorization signature and the share
// commitment. delegating and receiving, when non-nil, must match the
// keys the frag was generated for.
func (kf *KeyFrag) Verify(verifying *VerifyingKey, delegating, receiving *PublicKey) (*VerifiedKeyFrag, error) {
	if delegating != nil && !kf.delegating.Equal(delegating) {
		return nil, fmt.Errorf("%w: delegating key mismatch", ErrInvalidKeyFrag)
	}
	if receiving != nil && !kf.receiving.Equal(receiving) {
		return nil, fmt.Errorf("%w: receiving key mismatch", ErrInvalidKeyFrag)
	}
	if !suite.Point().Mul(kf.share, nil).Equal(kf.commitment) {
		return nil, fmt.Errorf("%w: commitment does not match share", ErrInvalidKeyFrag)
	}
	if !verifying.Verify(kfragSigBytes(kf.index, kf.commitment, kf.delegating, kf.receiving), kf.signature) {
		return nil, fmt.Errorf("%w: bad authorization signature", ErrInvalidKeyFrag)
	}
	return &VerifiedKeyFrag{kf: kf}, nil
}

// Unverified drops the verified marker, e.g. for serialization.
func (v *VerifiedKeyFrag) Unverified() *KeyFrag {
	return v.kf
}

func (kf *KeyFrag) Bytes() []byte {
	b := make([]byte, 0, KeyFragSize)
	b = marshalutil.WriteUint32(b, kf.index)
	b = marshalutil.WriteBytes(b, scalarBytes(kf.share))
	b = marshalutil.WriteBytes(b, pointBytes(kf.commitment))
	b = marshalutil.WriteBytes(b, kf.delegating.Bytes())
	b = marshalutil.WriteBytes(b, kf.receiving.Bytes())
	b = marshalutil.WriteBytes(b, kf.signature)
	return b
}

func KeyFragFromBytes(b []byte) (*KeyFrag, error) {
	if len(b) != KeyFragSize {
		return nil, fmt.Errorf("umbral: key fragment encoding is %d bytes, want %d", len(b), KeyFragSize)
	}
	index, rem, err := marshalutil.ReadUint32(b)
	if err != nil {
		return nil, err
	}
	shareRaw, rem, err := marshalutil.ReadBytes(rem, ScalarSize)
	if err != nil {
		return nil, err
	}
	s, err := scalarFromBytes(shareRaw)
	if err != nil {
		return nil, err
	}
	commitRaw, rem, err := marshalutil.ReadBytes(rem, PointSize)
	if err != nil {
		return nil, err
	}
	commitment, err := pointFromBytes(commitRaw)
	if err != nil {
		return nil, err
	}
	delegatingRaw, rem, err := marshalutil.ReadBytes(rem, PointSize)
	if err != nil {
		return nil, err
	}
	delegating, err := PublicKeyFromBytes(delegatingRaw)
	if err != nil {
		return nil, err
	}
	receivingRaw, rem, err := marshalutil.ReadBytes(rem, PointSize)
	if err != nil {
		return nil, err
	}
	receiving, err := PublicKeyFromBytes(receivingRaw)
	if err != nil {
		return nil, err
	}
	sigRaw, _, err := marshalutil.ReadBytes(rem, SignatureSize)
	if err != nil {
		return nil, err
	}
	sig, err := SignatureFromBytes(sigRaw)
	if err != nil {
		return nil, err
	}
	return &KeyFrag{
		index:      index,
		share:      s,
		commitment: commitment,
		delegating: delegating,
		receiving:  receiving,
		signature:  sig,
	}, nil
}
