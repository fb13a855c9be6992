package umbral

import (
	"go.dedis.ch/kyber/v3"
)

// Capsule is the key-encapsulation half of an encryption: the ephemeral
// group element a recipient (or a threshold of re-encrypting proxies)
// needs to recover the DEM key. capsules are immutable and travel with
// their ciphertext.
type Capsule struct {
	e kyber.Point
}

func (c *Capsule) Bytes() []byte {
	return pointBytes(c.e)
}

func CapsuleFromBytes(b []byte) (*Capsule, error) {
	e, err := pointFromBytes(b)
	if err != nil {
		return nil, err
	}
	return &Capsule{e: e}, nil
}

func (c *Capsule) Equal(other *Capsule) bool {
	return c.e.Equal(other.e)
}

// Encrypt encrypts plaintext under the delegating (policy) public key.
// encryption is probabilistic: every call draws fresh randomness, so
// identical plaintexts yield distinct capsules and ciphertexts.
// ad is bound as associated data along with the capsule itself.
func Encrypt(delegating *PublicKey, plaintext, ad []byte) (*Capsule, []byte, error) {
	r := suite.Scalar().Pick(suite.RandomStream())
	capsule := &Capsule{e: suite.Point().Mul(r, nil)}
	shared := suite.Point().Mul(r, delegating.p)
	key := demKey(pointBytes(shared), capsule, delegating)
	ct, err := demEncrypt(key, plaintext, demAD(capsule, ad))
	if err != nil {
		return nil, nil, err
	}
	return capsule, ct, nil
}

// Decrypt opens a ciphertext with the delegating secret key directly
// (no re-encryption involved). fails with ErrDecryption on any
// capsule/key mismatch or tampering; it never returns partial plaintext.
func Decrypt(sk *SecretKey, capsule *Capsule, ciphertext, ad []byte) ([]byte, error) {
	shared := suite.Point().Mul(sk.s, capsule.e)
	key := demKey(pointBytes(shared), capsule, sk.PublicKey())
	return demDecrypt(key, ciphertext, demAD(capsule, ad))
}

func demAD(capsule *Capsule, ad []byte) []byte {
	out := capsule.Bytes()
	return append(out, ad...)
}
