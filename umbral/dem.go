package umbral

import (
	"fmt"
	"hash"
	"io"

	"github.com/tink-crypto/tink-go/v2/aead/subtle"
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/hkdf"
)

// # Data encapsulation (DEM)
//
// XChaCha20-Poly1305 keyed from the KEM shared secret. associated data
// binds the ciphertext to its capsule and any caller-supplied context
// (e.g. access conditions), so moving a ciphertext between capsules or
// stripping its conditions breaks decryption.

const demKeySize = 32

// demKey derives the symmetric key for one (capsule, delegating key) pair.
func demKey(shared []byte, capsule *Capsule, delegating *PublicKey) []byte {
	salt := append(capsule.Bytes(), delegating.Bytes()...)
	kdf := hkdf.New(func() hash.Hash { return blake3.New() }, shared, salt, []byte("nucypher-core/dem"))
	key := make([]byte, demKeySize)
	if _, err := io.ReadFull(kdf, key); err != nil {
		panic("umbral: hkdf read failed")
	}
	return key
}

func demEncrypt(key, plaintext, ad []byte) ([]byte, error) {
	aead, err := subtle.NewXChaCha20Poly1305(key)
	if err != nil {
		return nil, fmt.Errorf("umbral: dem init: %v", err)
	}
	ct, err := aead.Encrypt(plaintext, ad)
	if err != nil {
		return nil, fmt.Errorf("umbral: dem encrypt: %v", err)
	}
	return ct, nil
}

func demDecrypt(key, ciphertext, ad []byte) ([]byte, error) {
	aead, err := subtle.NewXChaCha20Poly1305(key)
	if err != nil {
		return nil, fmt.Errorf("umbral: dem init: %v", err)
	}
	pt, err := aead.Decrypt(ciphertext, ad)
	if err != nil {
		// wrong key, wrong associated data, or tampered bytes all
		// land here; the AEAD does not distinguish them.
		return nil, ErrDecryption
	}
	return pt, nil
}
