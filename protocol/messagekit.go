package protocol

import (
	"github.com/derekpierre/nucypher-core/envelope"
	"github.com/derekpierre/nucypher-core/marshalutil"
	"github.com/derekpierre/nucypher-core/umbral"
)

var messageKitVersion = envelope.Version{Major: 1, Minor: 0}

// MessageKit is an encrypted message under a policy's encrypting key:
// the capsule, the DEM ciphertext, and the (optional) access conditions
// the ciphertext was bound to. the conditions ride in the clear but are
// covered by the DEM's associated data, so stripping or swapping them
// makes decryption fail.
type MessageKit struct {
	Capsule    *umbral.Capsule
	Ciphertext []byte
	Conditions *Conditions
}

// NewMessageKit encrypts plaintext under the policy encrypting key.
// encryption is probabilistic; identical inputs yield distinct kits.
func NewMessageKit(policyKey *umbral.PublicKey, plaintext []byte,
	conditions *Conditions) (*MessageKit, error) {
	capsule, ct, err := umbral.Encrypt(policyKey, plaintext, conditionsAD(conditions))
	if err != nil {
		return nil, err
	}
	return &MessageKit{Capsule: capsule, Ciphertext: ct, Conditions: conditions}, nil
}

// Decrypt opens the kit with the policy secret key directly (the
// delegator reading its own message). fails with umbral.ErrDecryption on
// key mismatch, tampering, or altered conditions.
func (mk *MessageKit) Decrypt(sk *umbral.SecretKey) ([]byte, error) {
	return umbral.Decrypt(sk, mk.Capsule, mk.Ciphertext, conditionsAD(mk.Conditions))
}

// DecryptReencrypted opens the kit as the recipient, combining a
// threshold of verified capsule fragments collected from proxies.
func (mk *MessageKit) DecryptReencrypted(sk *umbral.SecretKey, policyKey *umbral.PublicKey,
	vcfrags []*umbral.VerifiedCapsuleFrag) ([]byte, error) {
	return umbral.DecryptReencrypted(sk, policyKey, mk.Capsule, vcfrags,
		mk.Ciphertext, conditionsAD(mk.Conditions))
}

func (mk *MessageKit) Bytes() []byte {
	var b []byte
	b = marshalutil.WriteBytes(b, mk.Capsule.Bytes())
	b = marshalutil.WriteSlice1D(b, mk.Ciphertext)
	b = writeOptionalConditions(b, mk.Conditions)
	return envelope.Seal(envelope.TypeMessageKit, messageKitVersion, b)
}

func MessageKitFromBytes(b []byte) (*MessageKit, error) {
	payload, _, err := envelope.Open(b, envelope.TypeMessageKit, messageKitVersion)
	if err != nil {
		return nil, err
	}
	mk := &MessageKit{}
	var rem []byte
	mk.Capsule, rem, err = readCapsule(payload)
	if err == nil {
		mk.Ciphertext, rem, err = marshalutil.ReadSlice1D(rem)
	}
	if err == nil {
		mk.Conditions, rem, err = readOptionalConditions(rem)
	}
	if err := finishDecode("message kit", rem, err); err != nil {
		return nil, err
	}
	return mk, nil
}
