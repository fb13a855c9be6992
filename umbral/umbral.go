// Package umbral adapts the external threshold-cryptography library
// (kyber) behind fixed byte encodings and structural validation.
//
// the protocol core treats every value here as an opaque immutable black
// box: the adapter serializes, validates, and passes through to the
// library for the actual math (Shamir splitting, re-encryption shares,
// DLEQ proofs, threshold recovery). it never reinterprets or weakens the
// library's guarantees.
//
// the scheme over the edwards25519 group:
//
//	policy key     s, X = s*B
//	capsule        E = r*B, DEM key from r*X
//	key frag i     Shamir share s_i of s, commitment V_i = s_i*B
//	capsule frag i U_i = s_i*(E + Xb), DLEQ-proved against V_i
//	combine        t frags recover s*(E + Xb); the recipient removes
//	               xb*X with its secret to re-derive the DEM key
package umbral

import (
	"errors"
	"fmt"

	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/group/edwards25519"
)

var suite = edwards25519.NewBlakeSHA256Ed25519()

const (
	// ScalarSize is the byte length of a serialized scalar.
	ScalarSize = 32
	// PointSize is the byte length of a serialized curve point.
	PointSize = 32
)

// ErrDecryption reports a ciphertext/key mismatch or tampered ciphertext.
var ErrDecryption = errors.New("umbral: decryption failed")

// ErrInvalidKeyFrag reports a key fragment failing cryptographic validity.
var ErrInvalidKeyFrag = errors.New("umbral: invalid key fragment")

// ErrInvalidCapsuleFrag reports a capsule fragment failing cryptographic
// validity.
var ErrInvalidCapsuleFrag = errors.New("umbral: invalid capsule fragment")

// SecretKey is a decryption/delegation key.
// the backing scalar is unexported and can't be accessed outside the
// package, without reflection or unsafe.
type SecretKey struct {
	s kyber.Scalar
}

// PublicKey is the public half of a SecretKey.
type PublicKey struct {
	p kyber.Point
}

// GenerateSecretKey picks a fresh key from the suite's random stream.
func GenerateSecretKey() *SecretKey {
	return &SecretKey{s: suite.Scalar().Pick(suite.RandomStream())}
}

// PublicKey derives the matching public key.
func (sk *SecretKey) PublicKey() *PublicKey {
	return &PublicKey{p: suite.Point().Mul(sk.s, nil)}
}

func (sk *SecretKey) Bytes() []byte {
	return scalarBytes(sk.s)
}

func SecretKeyFromBytes(b []byte) (*SecretKey, error) {
	s, err := scalarFromBytes(b)
	if err != nil {
		return nil, err
	}
	return &SecretKey{s: s}, nil
}

func (pk *PublicKey) Bytes() []byte {
	return pointBytes(pk.p)
}

// PublicKeyFromBytes validates the curve-point encoding before accepting.
func PublicKeyFromBytes(b []byte) (*PublicKey, error) {
	p, err := pointFromBytes(b)
	if err != nil {
		return nil, err
	}
	return &PublicKey{p: p}, nil
}

func (pk *PublicKey) Equal(other *PublicKey) bool {
	return pk.p.Equal(other.p)
}

// # internal point/scalar encoding

func pointBytes(p kyber.Point) []byte {
	b, err := p.MarshalBinary()
	if err != nil {
		// marshaling an in-memory point cannot fail.
		panic("umbral: point marshal: " + err.Error())
	}
	return b
}

func pointFromBytes(b []byte) (kyber.Point, error) {
	if len(b) != PointSize {
		return nil, fmt.Errorf("umbral: point encoding is %d bytes, want %d", len(b), PointSize)
	}
	p := suite.Point()
	if err := p.UnmarshalBinary(b); err != nil {
		return nil, fmt.Errorf("umbral: bad point encoding: %v", err)
	}
	return p, nil
}

func scalarBytes(s kyber.Scalar) []byte {
	b, err := s.MarshalBinary()
	if err != nil {
		panic("umbral: scalar marshal: " + err.Error())
	}
	return b
}

func scalarFromBytes(b []byte) (kyber.Scalar, error) {
	if len(b) != ScalarSize {
		return nil, fmt.Errorf("umbral: scalar encoding is %d bytes, want %d", len(b), ScalarSize)
	}
	s := suite.Scalar()
	if err := s.UnmarshalBinary(b); err != nil {
		return nil, fmt.Errorf("umbral: bad scalar encoding: %v", err)
	}
	return s, nil
}
