package protocol

import (
	"errors"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/derekpierre/nucypher-core/envelope"
	"github.com/derekpierre/nucypher-core/marshalutil"
	"github.com/derekpierre/nucypher-core/umbral"
)

var (
	reencryptionRequestVersion  = envelope.Version{Major: 1, Minor: 0}
	reencryptionResponseVersion = envelope.Version{Major: 1, Minor: 0}
)

// responseSigTag domain-separates re-encryption response signatures.
const responseSigTag byte = 0x05

// ReencryptionRequest asks one proxy to re-encrypt a batch of capsules
// under a policy. the proxy opens the sealed key fragment with its own
// key, checks the policy binding against Hrac, and (above this layer)
// evaluates Conditions with the supplied Context before serving.
type ReencryptionRequest struct {
	Hrac                  HRAC
	Capsules              []*umbral.Capsule
	EncryptedKFrag        *EncryptedKeyFrag
	PublisherVerifyingKey *umbral.VerifyingKey
	BobVerifyingKey       *umbral.VerifyingKey
	Conditions            *Conditions
	Context               *Context
}

// NewReencryptionRequest builds a request; at least one capsule is
// required.
func NewReencryptionRequest(hrac HRAC, capsules []*umbral.Capsule,
	ekfrag *EncryptedKeyFrag, publisher, bob *umbral.VerifyingKey,
	conditions *Conditions, context *Context) (*ReencryptionRequest, error) {
	if len(capsules) == 0 {
		return nil, errors.New("protocol: reencryption request needs at least one capsule")
	}
	return &ReencryptionRequest{
		Hrac:                  hrac,
		Capsules:              capsules,
		EncryptedKFrag:        ekfrag,
		PublisherVerifyingKey: publisher,
		BobVerifyingKey:       bob,
		Conditions:            conditions,
		Context:               context,
	}, nil
}

// capsulesDigest collapses the ordered capsule list to a fixed-size
// digest; the response signature binds to it rather than to the raw
// list.
func capsulesDigest(hrac HRAC, capsules []*umbral.Capsule) []byte {
	h := blake3.New()
	h.Write([]byte{responseSigTag})
	h.Write(hrac.Bytes())
	var count [4]byte
	count[0] = byte(len(capsules))
	count[1] = byte(len(capsules) >> 8)
	count[2] = byte(len(capsules) >> 16)
	count[3] = byte(len(capsules) >> 24)
	h.Write(count[:])
	for _, c := range capsules {
		h.Write(c.Bytes())
	}
	return h.Sum(nil)
}

func (rr *ReencryptionRequest) Bytes() []byte {
	var b []byte
	b = marshalutil.WriteBytes(b, rr.Hrac.Bytes())
	b = marshalutil.WriteUint32(b, uint32(len(rr.Capsules)))
	for _, c := range rr.Capsules {
		b = marshalutil.WriteBytes(b, c.Bytes())
	}
	b = marshalutil.WriteSlice1D(b, rr.EncryptedKFrag.bytesInner())
	b = marshalutil.WriteBytes(b, rr.PublisherVerifyingKey.Bytes())
	b = marshalutil.WriteBytes(b, rr.BobVerifyingKey.Bytes())
	b = writeOptionalConditions(b, rr.Conditions)
	b = writeOptionalContext(b, rr.Context)
	return envelope.Seal(envelope.TypeReencryptionRequest, reencryptionRequestVersion, b)
}

func ReencryptionRequestFromBytes(b []byte) (*ReencryptionRequest, error) {
	payload, _, err := envelope.Open(b, envelope.TypeReencryptionRequest, reencryptionRequestVersion)
	if err != nil {
		return nil, err
	}
	rr := &ReencryptionRequest{}
	var rem []byte
	rr.Hrac, rem, err = readHRAC(payload)
	var count uint32
	if err == nil {
		count, rem, err = marshalutil.ReadUint32(rem)
	}
	if err == nil && count == 0 {
		err = errors.New("no capsules")
	}
	if err == nil && uint64(count)*umbral.PointSize > uint64(len(rem)) {
		err = fmt.Errorf("capsule count %d exceeds input", count)
	}
	for i := uint32(0); err == nil && i < count; i++ {
		var c *umbral.Capsule
		c, rem, err = readCapsule(rem)
		if err == nil {
			rr.Capsules = append(rr.Capsules, c)
		}
	}
	var inner []byte
	if err == nil {
		inner, rem, err = marshalutil.ReadSlice1D(rem)
	}
	if err == nil {
		var ekRem []byte
		rr.EncryptedKFrag, ekRem, err = encryptedKeyFragDecode(inner)
		if err == nil && len(ekRem) != 0 {
			err = errors.New("trailing bytes in encrypted kfrag")
		}
	}
	if err == nil {
		rr.PublisherVerifyingKey, rem, err = readVerifyingKey(rem)
	}
	if err == nil {
		rr.BobVerifyingKey, rem, err = readVerifyingKey(rem)
	}
	if err == nil {
		rr.Conditions, rem, err = readOptionalConditions(rem)
	}
	if err == nil {
		rr.Context, rem, err = readOptionalContext(rem)
	}
	if err := finishDecode("reencryption request", rem, err); err != nil {
		return nil, err
	}
	return rr, nil
}

// ReencryptionResponse carries the proxy's capsule fragments back to the
// requester, signed by the proxy over the request's capsules and the
// fragments, so a response cannot be spliced onto a different request.
type ReencryptionResponse struct {
	CapsuleFrags []*umbral.CapsuleFrag
	Signature    umbral.Signature
}

func responseSigBytes(digest []byte, cfrags []*umbral.CapsuleFrag) []byte {
	b := []byte{responseSigTag}
	b = marshalutil.WriteBytes(b, digest)
	b = marshalutil.WriteUint32(b, uint32(len(cfrags)))
	for _, cf := range cfrags {
		b = marshalutil.WriteBytes(b, cf.Bytes())
	}
	return b
}

// NewReencryptionResponse signs the proxy's fragments, one per request
// capsule, in request order.
func NewReencryptionResponse(signer *umbral.Signer, hrac HRAC,
	capsules []*umbral.Capsule, vcfrags []*umbral.VerifiedCapsuleFrag) (*ReencryptionResponse, error) {
	if len(capsules) != len(vcfrags) {
		return nil, fmt.Errorf("protocol: %d fragments for %d capsules",
			len(vcfrags), len(capsules))
	}
	cfrags := make([]*umbral.CapsuleFrag, 0, len(vcfrags))
	for _, v := range vcfrags {
		cfrags = append(cfrags, v.Unverified())
	}
	return &ReencryptionResponse{
		CapsuleFrags: cfrags,
		Signature:    signer.Sign(responseSigBytes(capsulesDigest(hrac, capsules), cfrags)),
	}, nil
}

// Verify checks the response against the capsules the caller actually
// sent. in order: the proxy's signature (ErrInvalidSignature), the
// fragment count (ErrMalformedResponse), then each fragment's
// cryptographic validity against its capsule; a fragment failure names
// the offending index and wraps umbral.ErrInvalidCapsuleFrag.
func (rr *ReencryptionResponse) Verify(hrac HRAC, capsules []*umbral.Capsule,
	proxy, publisher *umbral.VerifyingKey, policyKey, bobKey *umbral.PublicKey) ([]*umbral.VerifiedCapsuleFrag, error) {
	msg := responseSigBytes(capsulesDigest(hrac, capsules), rr.CapsuleFrags)
	if !proxy.Verify(msg, rr.Signature) {
		return nil, fmt.Errorf("%w: reencryption response", ErrInvalidSignature)
	}
	if len(rr.CapsuleFrags) != len(capsules) {
		return nil, fmt.Errorf("%w: %d fragments for %d capsules",
			ErrMalformedResponse, len(rr.CapsuleFrags), len(capsules))
	}
	out := make([]*umbral.VerifiedCapsuleFrag, 0, len(capsules))
	for i, cf := range rr.CapsuleFrags {
		vcf, err := cf.Verify(capsules[i], publisher, policyKey, bobKey)
		if err != nil {
			return nil, fmt.Errorf("fragment %d: %w", i, err)
		}
		out = append(out, vcf)
	}
	return out, nil
}

func (rr *ReencryptionResponse) Bytes() []byte {
	var b []byte
	b = marshalutil.WriteUint32(b, uint32(len(rr.CapsuleFrags)))
	for _, cf := range rr.CapsuleFrags {
		b = marshalutil.WriteBytes(b, cf.Bytes())
	}
	b = marshalutil.WriteBytes(b, rr.Signature)
	return envelope.Seal(envelope.TypeReencryptionResponse, reencryptionResponseVersion, b)
}

func ReencryptionResponseFromBytes(b []byte) (*ReencryptionResponse, error) {
	payload, _, err := envelope.Open(b, envelope.TypeReencryptionResponse, reencryptionResponseVersion)
	if err != nil {
		return nil, err
	}
	rr := &ReencryptionResponse{}
	count, rem, err := marshalutil.ReadUint32(payload)
	if err == nil && uint64(count)*umbral.CapsuleFragSize > uint64(len(rem)) {
		err = fmt.Errorf("fragment count %d exceeds input", count)
	}
	for i := uint32(0); err == nil && i < count; i++ {
		var raw []byte
		raw, rem, err = marshalutil.ReadBytes(rem, umbral.CapsuleFragSize)
		if err != nil {
			break
		}
		var cf *umbral.CapsuleFrag
		cf, err = umbral.CapsuleFragFromBytes(raw)
		if err == nil {
			rr.CapsuleFrags = append(rr.CapsuleFrags, cf)
		}
	}
	if err == nil {
		rr.Signature, rem, err = readSignature(rem)
	}
	if err := finishDecode("reencryption response", rem, err); err != nil {
		return nil, err
	}
	return rr, nil
}
