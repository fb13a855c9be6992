package umbral

import (
	"fmt"

	"github.com/derekpierre/nucypher-core/marshalutil"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/proof/dleq"
	"go.dedis.ch/kyber/v3/share"
)

// # Capsule fragments

// CapsuleFragSize is the byte length of a serialized CapsuleFrag.
const CapsuleFragSize = 4 + 6*PointSize + SignatureSize

// CapsuleFrag is one proxy's partial re-encryption of a capsule:
// U_i = s_i*(E + Xb), with a DLEQ proof that the same share s_i underlies
// both the kfrag commitment and U_i. the proof is bound to the exact
// capsule and receiving key through the proof's second base point, so a
// fragment cannot be replayed against another capsule or policy.
type CapsuleFrag struct {
	index      uint32
	point      kyber.Point // s_i*(E + Xb)
	commitment kyber.Point // s_i*B, from the kfrag
	proof      *dleq.Proof
	kfragSig   Signature // delegator's kfrag authorization
}

// VerifiedCapsuleFrag is a CapsuleFrag that passed Verify. decryption
// accepts only verified frags; callers must never bypass verification.
type VerifiedCapsuleFrag struct {
	cf *CapsuleFrag
}

// Reencrypt produces this proxy's capsule fragment for one capsule.
// pure pass-through to the library's exponentiation and proof
// generation; fresh proof randomness is drawn per call. the producing
// proxy gets the fragment back pre-verified: it computed it itself.
func Reencrypt(capsule *Capsule, vkf *VerifiedKeyFrag) (*VerifiedCapsuleFrag, error) {
	kf := vkf.kf
	h := suite.Point().Add(capsule.e, kf.receiving.p)
	proof, xG, xH, err := dleq.NewDLEQProof(suite, suite.Point().Base(), h, kf.share)
	if err != nil {
		return nil, fmt.Errorf("umbral: reencrypt proof: %v", err)
	}
	// xG is share*B, which must agree with the kfrag commitment.
	if !xG.Equal(kf.commitment) {
		panic("umbral: proof commitment diverged from kfrag")
	}
	return &VerifiedCapsuleFrag{cf: &CapsuleFrag{
		index:      kf.index,
		point:      xH,
		commitment: kf.commitment,
		proof:      proof,
		kfragSig:   kf.signature,
	}}, nil
}

// Verify checks the fragment against the capsule it claims to
// re-encrypt and the policy's key triple: the delegator's kfrag
// authorization under verifying, then the DLEQ proof against
// (B, E + receiving). trust anchors are explicit parameters; nothing
// is ambient.
func (cf *CapsuleFrag) Verify(capsule *Capsule, verifying *VerifyingKey,
	delegating, receiving *PublicKey) (*VerifiedCapsuleFrag, error) {
	if !verifying.Verify(kfragSigBytes(cf.index, cf.commitment, delegating, receiving), cf.kfragSig) {
		return nil, fmt.Errorf("%w: bad kfrag authorization", ErrInvalidCapsuleFrag)
	}
	// the challenge must be the Fiat-Shamir hash of the statement and
	// commitments; a proof with a free-standing challenge is forgeable.
	if !dleqChallenge(cf.commitment, cf.point, cf.proof.VG, cf.proof.VH).Equal(cf.proof.C) {
		return nil, fmt.Errorf("%w: dleq challenge mismatch", ErrInvalidCapsuleFrag)
	}
	h := suite.Point().Add(capsule.e, receiving.p)
	if err := cf.proof.Verify(suite, suite.Point().Base(), h, cf.commitment, cf.point); err != nil {
		return nil, fmt.Errorf("%w: dleq proof rejected", ErrInvalidCapsuleFrag)
	}
	return &VerifiedCapsuleFrag{cf: cf}, nil
}

// dleqChallenge re-derives the proof challenge the way the library's
// prover computes it.
func dleqChallenge(xG, xH, vG, vH kyber.Point) kyber.Scalar {
	h := suite.Hash()
	_, _ = xG.MarshalTo(h)
	_, _ = xH.MarshalTo(h)
	_, _ = vG.MarshalTo(h)
	_, _ = vH.MarshalTo(h)
	return suite.Scalar().Pick(suite.XOF(h.Sum(nil)))
}

// Unverified drops the verified marker, e.g. for serialization.
func (v *VerifiedCapsuleFrag) Unverified() *CapsuleFrag {
	return v.cf
}

// DecryptReencrypted combines a threshold of verified capsule fragments
// and opens the ciphertext for the receiving key. the combine step is
// the library's Lagrange recovery; duplicate share indices contribute
// once. fails with ErrDecryption if the fragments do not reconstruct
// the capsule's DEM key.
func DecryptReencrypted(receiving *SecretKey, delegating *PublicKey, capsule *Capsule,
	vcfrags []*VerifiedCapsuleFrag, ciphertext, ad []byte) ([]byte, error) {
	seen := make(map[uint32]bool, len(vcfrags))
	pubShares := make([]*share.PubShare, 0, len(vcfrags))
	for _, v := range vcfrags {
		if seen[v.cf.index] {
			continue
		}
		seen[v.cf.index] = true
		pubShares = append(pubShares, &share.PubShare{I: int(v.cf.index), V: v.cf.point})
	}
	t := len(pubShares)
	if t == 0 {
		return nil, fmt.Errorf("%w: no capsule fragments", ErrDecryption)
	}
	recovered, err := share.RecoverCommit(suite, pubShares, t, t)
	if err != nil {
		return nil, fmt.Errorf("%w: combine: %v", ErrDecryption, err)
	}
	// recovered = s*(E + Xb); strip the receiving half to get s*E = r*X.
	sE := suite.Point().Sub(recovered, suite.Point().Mul(receiving.s, delegating.p))
	key := demKey(pointBytes(sE), capsule, delegating)
	return demDecrypt(key, ciphertext, demAD(capsule, ad))
}

func (cf *CapsuleFrag) Bytes() []byte {
	b := make([]byte, 0, CapsuleFragSize)
	b = marshalutil.WriteUint32(b, cf.index)
	b = marshalutil.WriteBytes(b, pointBytes(cf.point))
	b = marshalutil.WriteBytes(b, pointBytes(cf.commitment))
	b = marshalutil.WriteBytes(b, scalarBytes(cf.proof.C))
	b = marshalutil.WriteBytes(b, scalarBytes(cf.proof.R))
	b = marshalutil.WriteBytes(b, pointBytes(cf.proof.VG))
	b = marshalutil.WriteBytes(b, pointBytes(cf.proof.VH))
	b = marshalutil.WriteBytes(b, cf.kfragSig)
	return b
}

func CapsuleFragFromBytes(b []byte) (*CapsuleFrag, error) {
	if len(b) != CapsuleFragSize {
		return nil, fmt.Errorf("umbral: capsule fragment encoding is %d bytes, want %d", len(b), CapsuleFragSize)
	}
	index, rem, err := marshalutil.ReadUint32(b)
	if err != nil {
		return nil, err
	}
	readPoint := func() (kyber.Point, error) {
		var raw []byte
		raw, rem, err = marshalutil.ReadBytes(rem, PointSize)
		if err != nil {
			return nil, err
		}
		return pointFromBytes(raw)
	}
	readScalar := func() (kyber.Scalar, error) {
		var raw []byte
		raw, rem, err = marshalutil.ReadBytes(rem, ScalarSize)
		if err != nil {
			return nil, err
		}
		return scalarFromBytes(raw)
	}
	point, err := readPoint()
	if err != nil {
		return nil, err
	}
	commitment, err := readPoint()
	if err != nil {
		return nil, err
	}
	proofC, err := readScalar()
	if err != nil {
		return nil, err
	}
	proofR, err := readScalar()
	if err != nil {
		return nil, err
	}
	proofVG, err := readPoint()
	if err != nil {
		return nil, err
	}
	proofVH, err := readPoint()
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
	return &CapsuleFrag{
		index:      index,
		point:      point,
		commitment: commitment,
		proof:      &dleq.Proof{C: proofC, R: proofR, VG: proofVG, VH: proofVH},
		kfragSig:   sig,
	}, nil
}
