package umbral

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
)

// # Signatures

const (
	// VerifyingKeySize is the byte length of a serialized verifying key.
	VerifyingKeySize = ed25519.PublicKeySize
	// SignatureSize is the byte length of a signature.
	SignatureSize = ed25519.SignatureSize
)

// Signer holds a message-signing key.
// the backing sk is unexported and can't be accessed outside the package,
// without reflection or unsafe.
type Signer struct {
	sk ed25519.PrivateKey
}

// VerifyingKey checks signatures made by the matching Signer.
type VerifyingKey struct {
	pk ed25519.PublicKey
}

// Signature is a detached signature over canonical message bytes.
type Signature []byte

// NewSigner generates a fresh signing key.
func NewSigner() *Signer {
	_, sk, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		// don't care about recovering from crypto/rand failures.
		panic("umbral: ed25519 keygen failed")
	}
	return &Signer{sk: sk}
}

func (s *Signer) Sign(message []byte) Signature {
	return Signature(ed25519.Sign(s.sk, message))
}

func (s *Signer) VerifyingKey() *VerifyingKey {
	return &VerifyingKey{pk: s.sk.Public().(ed25519.PublicKey)}
}

// Verify rets okay if sig is a valid signature by vk over message.
func (vk *VerifyingKey) Verify(message []byte, sig Signature) bool {
	if len(sig) != SignatureSize {
		return false
	}
	return ed25519.Verify(vk.pk, message, []byte(sig))
}

func (vk *VerifyingKey) Bytes() []byte {
	out := make([]byte, VerifyingKeySize)
	copy(out, vk.pk)
	return out
}

func VerifyingKeyFromBytes(b []byte) (*VerifyingKey, error) {
	if len(b) != VerifyingKeySize {
		return nil, fmt.Errorf("umbral: verifying key is %d bytes, want %d", len(b), VerifyingKeySize)
	}
	pk := make(ed25519.PublicKey, VerifyingKeySize)
	copy(pk, b)
	return &VerifyingKey{pk: pk}, nil
}

func (vk *VerifyingKey) Equal(other *VerifyingKey) bool {
	return vk.pk.Equal(other.pk)
}

func SignatureFromBytes(b []byte) (Signature, error) {
	if len(b) != SignatureSize {
		return nil, fmt.Errorf("umbral: signature is %d bytes, want %d", len(b), SignatureSize)
	}
	sig := make(Signature, SignatureSize)
	copy(sig, b)
	return sig, nil
}

// RandBytes returns n random bytes.
func RandBytes(n uint64) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		// don't care about recovering from crypto/rand failures.
		panic("umbral: crypto/rand call failed")
	}
	return b
}
