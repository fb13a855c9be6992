package protocol

import (
	"fmt"

	"github.com/derekpierre/nucypher-core/envelope"
	"github.com/derekpierre/nucypher-core/marshalutil"
	"github.com/derekpierre/nucypher-core/umbral"
)

var encryptedKeyFragVersion = envelope.Version{Major: 1, Minor: 0}

// ekfragSigTag domain-separates the publisher's kfrag-to-policy binding
// signature.
const ekfragSigTag byte = 0x02

// ekfragAD is the fixed associated data for key-fragment ciphertexts.
// the HRAC binding lives inside the plaintext instead, so a kit opened
// under the wrong policy is reported as an authentication failure rather
// than a decryption failure.
var ekfragAD = []byte("nucypher-core/ekfrag")

// EncryptedKeyFrag is a key fragment sealed for exactly one proxy: only
// the holder of the matching decrypting key can open it. the plaintext
// carries the policy HRAC and the publisher's binding signature, so the
// proxy can check, after opening, that the fragment belongs to the
// policy it was handed for.
type EncryptedKeyFrag struct {
	Capsule    *umbral.Capsule
	Ciphertext []byte
}

func ekfragSigBytes(hrac HRAC, kfrag []byte) []byte {
	b := make([]byte, 0, 1+HRACSize+len(kfrag))
	b = marshalutil.WriteByte(b, ekfragSigTag)
	b = marshalutil.WriteBytes(b, hrac.Bytes())
	b = marshalutil.WriteBytes(b, kfrag)
	return b
}

// NewEncryptedKeyFrag seals a verified key fragment for the proxy that
// owns recipientKey, bound to the policy hrac and authorized by the
// publisher's signer.
func NewEncryptedKeyFrag(signer *umbral.Signer, recipientKey *umbral.PublicKey,
	hrac HRAC, vkfrag *umbral.VerifiedKeyFrag) (*EncryptedKeyFrag, error) {
	kfBytes := vkfrag.Unverified().Bytes()
	sig := signer.Sign(ekfragSigBytes(hrac, kfBytes))

	pt := make([]byte, 0, HRACSize+umbral.SignatureSize+len(kfBytes))
	pt = marshalutil.WriteBytes(pt, hrac.Bytes())
	pt = marshalutil.WriteBytes(pt, sig)
	pt = marshalutil.WriteBytes(pt, kfBytes)

	capsule, ct, err := umbral.Encrypt(recipientKey, pt, ekfragAD)
	if err != nil {
		return nil, err
	}
	return &EncryptedKeyFrag{Capsule: capsule, Ciphertext: ct}, nil
}

// Decrypt opens the fragment with the proxy's secret key and checks the
// policy binding. expected is the HRAC of the policy the caller received
// this fragment for; a mismatch is ErrAuthentication. the inner kfrag is
// verified against the publisher's key before being returned.
func (ek *EncryptedKeyFrag) Decrypt(sk *umbral.SecretKey, expected HRAC,
	publisher *umbral.VerifyingKey) (*umbral.VerifiedKeyFrag, error) {
	pt, err := umbral.Decrypt(sk, ek.Capsule, ek.Ciphertext, ekfragAD)
	if err != nil {
		return nil, err
	}
	hrac, rem, err := readHRAC(pt)
	if err == nil && len(rem) != umbral.SignatureSize+umbral.KeyFragSize {
		err = fmt.Errorf("inner payload is %d bytes", len(rem))
	}
	var sig umbral.Signature
	if err == nil {
		sig, rem, err = readSignature(rem)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: encrypted kfrag payload: %v", envelope.ErrMalformed, err)
	}
	if hrac != expected {
		return nil, fmt.Errorf("%w: kfrag sealed for policy %s, want %s",
			ErrAuthentication, hrac, expected)
	}
	if !publisher.Verify(ekfragSigBytes(hrac, rem), sig) {
		return nil, fmt.Errorf("%w: kfrag policy binding", ErrInvalidSignature)
	}
	kf, err := umbral.KeyFragFromBytes(rem)
	if err != nil {
		return nil, fmt.Errorf("%w: inner kfrag: %v", envelope.ErrMalformed, err)
	}
	return kf.Verify(publisher, nil, nil)
}

func (ek *EncryptedKeyFrag) bytesInner() []byte {
	var b []byte
	b = marshalutil.WriteBytes(b, ek.Capsule.Bytes())
	b = marshalutil.WriteSlice1D(b, ek.Ciphertext)
	return b
}

func (ek *EncryptedKeyFrag) Bytes() []byte {
	return envelope.Seal(envelope.TypeEncryptedKeyFrag, encryptedKeyFragVersion, ek.bytesInner())
}

func encryptedKeyFragDecode(b []byte) (ek *EncryptedKeyFrag, rem []byte, err error) {
	ek = &EncryptedKeyFrag{}
	ek.Capsule, rem, err = readCapsule(b)
	if err == nil {
		ek.Ciphertext, rem, err = marshalutil.ReadSlice1D(rem)
	}
	return
}

func EncryptedKeyFragFromBytes(b []byte) (*EncryptedKeyFrag, error) {
	payload, _, err := envelope.Open(b, envelope.TypeEncryptedKeyFrag, encryptedKeyFragVersion)
	if err != nil {
		return nil, err
	}
	ek, rem, err := encryptedKeyFragDecode(payload)
	if err := finishDecode("encrypted kfrag", rem, err); err != nil {
		return nil, err
	}
	return ek, nil
}
