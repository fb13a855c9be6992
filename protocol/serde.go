package protocol

import (
	"fmt"

	"github.com/derekpierre/nucypher-core/envelope"
	"github.com/derekpierre/nucypher-core/marshalutil"
	"github.com/derekpierre/nucypher-core/umbral"
)

// # shared wire-encoding helpers
//
// every message encodes as fixed fields in declaration order, wrapped in
// the versioned envelope by its Bytes/FromBytes pair. the helpers below
// read the crypto-adapter types with structural validation; decode errors
// bubble up and the FromBytes wrapper folds them into envelope.ErrMalformed.

func readAddress(b []byte) (a Address, rem []byte, err error) {
	var raw []byte
	raw, rem, err = marshalutil.ReadBytes(b, AddressSize)
	if err != nil {
		return
	}
	a, err = AddressFromBytes(raw)
	return
}

func readHRAC(b []byte) (h HRAC, rem []byte, err error) {
	var raw []byte
	raw, rem, err = marshalutil.ReadBytes(b, HRACSize)
	if err != nil {
		return
	}
	h, err = HRACFromBytes(raw)
	return
}

func readVerifyingKey(b []byte) (vk *umbral.VerifyingKey, rem []byte, err error) {
	var raw []byte
	raw, rem, err = marshalutil.ReadBytes(b, umbral.VerifyingKeySize)
	if err != nil {
		return
	}
	vk, err = umbral.VerifyingKeyFromBytes(raw)
	return
}

func readPublicKey(b []byte) (pk *umbral.PublicKey, rem []byte, err error) {
	var raw []byte
	raw, rem, err = marshalutil.ReadBytes(b, umbral.PointSize)
	if err != nil {
		return
	}
	pk, err = umbral.PublicKeyFromBytes(raw)
	return
}

func readCapsule(b []byte) (c *umbral.Capsule, rem []byte, err error) {
	var raw []byte
	raw, rem, err = marshalutil.ReadBytes(b, umbral.PointSize)
	if err != nil {
		return
	}
	c, err = umbral.CapsuleFromBytes(raw)
	return
}

func readSignature(b []byte) (sig umbral.Signature, rem []byte, err error) {
	var raw []byte
	raw, rem, err = marshalutil.ReadBytes(b, umbral.SignatureSize)
	if err != nil {
		return
	}
	sig, err = umbral.SignatureFromBytes(raw)
	return
}

// optional strings encode as a presence bool followed by the value.

func writeOptionalConditions(b []byte, c *Conditions) []byte {
	if c == nil {
		return marshalutil.WriteBool(b, false)
	}
	b = marshalutil.WriteBool(b, true)
	return marshalutil.WriteString(b, string(*c))
}

func readOptionalConditions(b []byte) (c *Conditions, rem []byte, err error) {
	var present bool
	present, rem, err = marshalutil.ReadBool(b)
	if err != nil || !present {
		return
	}
	var s string
	s, rem, err = marshalutil.ReadString(rem)
	if err != nil {
		return
	}
	cc := Conditions(s)
	c = &cc
	return
}

func writeOptionalContext(b []byte, c *Context) []byte {
	if c == nil {
		return marshalutil.WriteBool(b, false)
	}
	b = marshalutil.WriteBool(b, true)
	return marshalutil.WriteString(b, string(*c))
}

func readOptionalContext(b []byte) (c *Context, rem []byte, err error) {
	var present bool
	present, rem, err = marshalutil.ReadBool(b)
	if err != nil || !present {
		return
	}
	var s string
	s, rem, err = marshalutil.ReadString(rem)
	if err != nil {
		return
	}
	cc := Context(s)
	c = &cc
	return
}

// finishDecode folds a decoder's terminal state into the malformed-input
// sentinel: any structural error, or trailing bytes after the last field.
func finishDecode(what string, rem []byte, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %s: %v", envelope.ErrMalformed, what, err)
	}
	if len(rem) != 0 {
		return fmt.Errorf("%w: %s: %d trailing bytes", envelope.ErrMalformed, what, len(rem))
	}
	return nil
}
