package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/derekpierre/nucypher-core/umbral"
)

// TestPolicyEndToEnd walks the whole policy lifecycle: delegation,
// fragment distribution through a treasure map, per-proxy re-encryption
// over the wire encodings, threshold aggregation, and final decryption
// by the recipient.
func TestPolicyEndToEnd(t *testing.T) {
	f := newPolicyFixture(t, 2, 3)
	conditions := Conditions(`{"method": "eth_getBalance"}`)
	context := Context(`{"signature": "0xdead"}`)
	plaintext := []byte("the rendezvous is at noon")

	// the publisher encrypts under the policy key and hands the
	// recipient the sealed map.
	mk, err := NewMessageKit(f.delegating.PublicKey(), plaintext, &conditions)
	require.NoError(t, err)
	tm, err := NewTreasureMap(f.publisher, f.hrac, f.delegating.PublicKey(), f.assigned, 2)
	require.NoError(t, err)
	etm, err := tm.Encrypt(f.recipient.PublicKey())
	require.NoError(t, err)

	// the recipient opens the map and learns who holds fragments.
	tmGot, err := etm.DecryptAndVerify(f.recipient, f.publisher.VerifyingKey())
	require.NoError(t, err)

	pool := NewFragmentPool(int(tmGot.Threshold))
	rk := RetrievalKitFromMessageKit(mk)
	capsules := []*umbral.Capsule{rk.Capsule}

	for _, dest := range tmGot.Destinations[:2] {
		// recipient side: build and serialize the request.
		req, err := NewReencryptionRequest(tmGot.Hrac, capsules, dest.KFrag,
			f.publisher.VerifyingKey(), f.recipientSig.VerifyingKey(),
			rk.Conditions, &context)
		require.NoError(t, err)
		wire := req.Bytes()

		// proxy side: decode, open the sealed fragment, re-encrypt.
		p := f.proxyAt(t, dest.Address)
		reqGot, err := ReencryptionRequestFromBytes(wire)
		require.NoError(t, err)
		require.Equal(t, f.hrac, reqGot.Hrac)
		require.NotNil(t, reqGot.Conditions)
		require.NotNil(t, reqGot.Context)

		vkf, err := reqGot.EncryptedKFrag.Decrypt(p.sk, reqGot.Hrac, reqGot.PublisherVerifyingKey)
		require.NoError(t, err)
		vcfs := make([]*umbral.VerifiedCapsuleFrag, 0, len(reqGot.Capsules))
		for _, c := range reqGot.Capsules {
			vcf, err := umbral.Reencrypt(c, vkf)
			require.NoError(t, err)
			vcfs = append(vcfs, vcf)
		}
		resp, err := NewReencryptionResponse(p.signer, reqGot.Hrac, reqGot.Capsules, vcfs)
		require.NoError(t, err)

		// recipient side: decode and verify against what was sent.
		respGot, err := ReencryptionResponseFromBytes(resp.Bytes())
		require.NoError(t, err)
		verified, err := respGot.Verify(f.hrac, capsules,
			p.signer.VerifyingKey(), f.publisher.VerifyingKey(),
			f.delegating.PublicKey(), f.recipient.PublicKey())
		require.NoError(t, err)
		require.Len(t, verified, 1)

		pool.Add(dest.Address, verified[0])
		rk = rk.WithQueried(dest.Address)
	}

	frags, err := pool.Fragments()
	require.NoError(t, err)
	got, err := mk.DecryptReencrypted(f.recipient, f.delegating.PublicKey(), frags)
	require.NoError(t, err)
	require.Equal(t, plaintext, got)
	require.Len(t, rk.QueriedAddresses, 2)
}

func (f *policyFixture) proxyAt(t testing.TB, addr Address) *proxy {
	t.Helper()
	for _, p := range f.proxies {
		if p.address == addr {
			return p
		}
	}
	t.Fatalf("no proxy at %s", addr)
	return nil
}

// reencryptOnce has one proxy serve one capsule, returning everything
// the recipient-side checks need.
func reencryptOnce(t *testing.T, f *policyFixture, i int,
	capsules []*umbral.Capsule) (*proxy, *ReencryptionResponse) {
	t.Helper()
	p := f.proxies[i]
	vkf, err := f.assigned[p.address].Decrypt(p.sk, f.hrac, f.publisher.VerifyingKey())
	require.NoError(t, err)
	vcfs := make([]*umbral.VerifiedCapsuleFrag, 0, len(capsules))
	for _, c := range capsules {
		vcf, err := umbral.Reencrypt(c, vkf)
		require.NoError(t, err)
		vcfs = append(vcfs, vcf)
	}
	resp, err := NewReencryptionResponse(p.signer, f.hrac, capsules, vcfs)
	require.NoError(t, err)
	return p, resp
}

func TestReencryptionResponseChecks(t *testing.T) {
	f := newPolicyFixture(t, 2, 3)
	mk, err := NewMessageKit(f.delegating.PublicKey(), []byte("pt"), nil)
	require.NoError(t, err)
	capsules := []*umbral.Capsule{mk.Capsule}
	p, resp := reencryptOnce(t, f, 0, capsules)

	// the happy path.
	_, err = resp.Verify(f.hrac, capsules, p.signer.VerifyingKey(),
		f.publisher.VerifyingKey(), f.delegating.PublicKey(), f.recipient.PublicKey())
	require.NoError(t, err)

	// signed by someone other than the expected proxy.
	_, err = resp.Verify(f.hrac, capsules, umbral.NewSigner().VerifyingKey(),
		f.publisher.VerifyingKey(), f.delegating.PublicKey(), f.recipient.PublicKey())
	require.ErrorIs(t, err, ErrInvalidSignature)

	// spliced onto a different request: the signature binds the capsules.
	otherKit, err := NewMessageKit(f.delegating.PublicKey(), []byte("pt2"), nil)
	require.NoError(t, err)
	_, err = resp.Verify(f.hrac, []*umbral.Capsule{otherKit.Capsule}, p.signer.VerifyingKey(),
		f.publisher.VerifyingKey(), f.delegating.PublicKey(), f.recipient.PublicKey())
	require.ErrorIs(t, err, ErrInvalidSignature)

	// a count mismatch that the proxy did sign is a malformed response.
	short := &ReencryptionResponse{CapsuleFrags: resp.CapsuleFrags}
	short.Signature = p.signer.Sign(responseSigBytes(
		capsulesDigest(f.hrac, []*umbral.Capsule{mk.Capsule, otherKit.Capsule}), short.CapsuleFrags))
	_, err = short.Verify(f.hrac, []*umbral.Capsule{mk.Capsule, otherKit.Capsule},
		p.signer.VerifyingKey(), f.publisher.VerifyingKey(),
		f.delegating.PublicKey(), f.recipient.PublicKey())
	require.ErrorIs(t, err, ErrMalformedResponse)

	// a fragment failure names the offending index.
	_, err = resp.Verify(f.hrac, capsules, p.signer.VerifyingKey(),
		f.publisher.VerifyingKey(), f.delegating.PublicKey(),
		umbral.GenerateSecretKey().PublicKey())
	require.ErrorIs(t, err, umbral.ErrInvalidCapsuleFrag)
	require.ErrorContains(t, err, "fragment 0")
}

func TestReencryptionRequestNeedsCapsules(t *testing.T) {
	f := newPolicyFixture(t, 2, 3)
	_, err := NewReencryptionRequest(f.hrac, nil, f.assigned[f.proxies[0].address],
		f.publisher.VerifyingKey(), f.recipientSig.VerifyingKey(), nil, nil)
	require.Error(t, err)
}

// # Aggregation

func TestFragmentPoolThreshold(t *testing.T) {
	f := newPolicyFixture(t, 3, 5)
	mk, err := NewMessageKit(f.delegating.PublicKey(), []byte("pt"), nil)
	require.NoError(t, err)
	capsules := []*umbral.Capsule{mk.Capsule}

	pool := NewFragmentPool(3)

	// two honest proxies.
	for i := 0; i < 2; i++ {
		p, resp := reencryptOnce(t, f, i, capsules)
		verified, err := resp.Verify(f.hrac, capsules, p.signer.VerifyingKey(),
			f.publisher.VerifyingKey(), f.delegating.PublicKey(), f.recipient.PublicKey())
		require.NoError(t, err)
		pool.Add(p.address, verified[0])
	}

	// a duplicate from an already-counted proxy does not advance the pool.
	p0, resp := reencryptOnce(t, f, 0, capsules)
	verified, err := resp.Verify(f.hrac, capsules, p0.signer.VerifyingKey(),
		f.publisher.VerifyingKey(), f.delegating.PublicKey(), f.recipient.PublicKey())
	require.NoError(t, err)
	pool.Add(p0.address, verified[0])
	require.Equal(t, 2, pool.Len())

	// a corrupted response never reaches the pool: verification rejects it.
	p2, resp2 := reencryptOnce(t, f, 2, capsules)
	bad, err := ReencryptionResponseFromBytes(resp2.Bytes())
	require.NoError(t, err)
	_, err = bad.Verify(f.hrac, capsules, p2.signer.VerifyingKey(),
		f.publisher.VerifyingKey(), f.delegating.PublicKey(),
		umbral.GenerateSecretKey().PublicKey())
	require.ErrorIs(t, err, umbral.ErrInvalidCapsuleFrag)

	// below threshold: the pool says how far short it is.
	_, err = pool.Fragments()
	require.ErrorIs(t, err, ErrInsufficientFragments)

	// a third distinct proxy completes the set and decryption succeeds.
	p3, resp3 := reencryptOnce(t, f, 3, capsules)
	verified3, err := resp3.Verify(f.hrac, capsules, p3.signer.VerifyingKey(),
		f.publisher.VerifyingKey(), f.delegating.PublicKey(), f.recipient.PublicKey())
	require.NoError(t, err)
	pool.Add(p3.address, verified3[0])

	frags, err := pool.Fragments()
	require.NoError(t, err)
	got, err := mk.DecryptReencrypted(f.recipient, f.delegating.PublicKey(), frags)
	require.NoError(t, err)
	require.Equal(t, []byte("pt"), got)
}

func TestThresholdExactBounds(t *testing.T) {
	for _, tc := range []struct{ threshold, shares int }{
		{1, 1}, {1, 3}, {3, 3},
	} {
		f := newPolicyFixture(t, tc.threshold, tc.shares)
		mk, err := NewMessageKit(f.delegating.PublicKey(), []byte("pt"), nil)
		require.NoError(t, err)
		capsules := []*umbral.Capsule{mk.Capsule}

		pool := NewFragmentPool(tc.threshold)
		for i := 0; i < tc.threshold; i++ {
			p, resp := reencryptOnce(t, f, i, capsules)
			verified, err := resp.Verify(f.hrac, capsules, p.signer.VerifyingKey(),
				f.publisher.VerifyingKey(), f.delegating.PublicKey(), f.recipient.PublicKey())
			require.NoError(t, err)
			pool.Add(p.address, verified[0])
		}
		frags, err := pool.Fragments()
		require.NoError(t, err)
		got, err := mk.DecryptReencrypted(f.recipient, f.delegating.PublicKey(), frags)
		require.NoError(t, err)
		require.Equal(t, []byte("pt"), got)
	}
}

// # Decode totality

func FuzzMessageDecode(f *testing.F) {
	fx := newPolicyFixture(f, 2, 3)
	mk, _ := NewMessageKit(fx.delegating.PublicKey(), []byte("pt"), nil)
	tm, _ := NewTreasureMap(fx.publisher, fx.hrac, fx.delegating.PublicKey(), fx.assigned, 2)
	f.Add(mk.Bytes())
	f.Add(tm.Bytes())
	f.Add(fx.assigned[fx.proxies[0].address].Bytes())
	f.Add([]byte{})
	f.Fuzz(func(t *testing.T, b []byte) {
		// decoding arbitrary bytes must return an error, never panic.
		_, _ = MessageKitFromBytes(b)
		_, _ = EncryptedKeyFragFromBytes(b)
		_, _ = TreasureMapFromBytes(b)
		_, _ = EncryptedTreasureMapFromBytes(b)
		_, _ = ReencryptionRequestFromBytes(b)
		_, _ = ReencryptionResponseFromBytes(b)
		_, _ = RetrievalKitFromBytes(b)
		_, _ = RevocationOrderFromBytes(b)
		_, _ = NodeMetadataFromBytes(b)
		_, _ = MetadataRequestFromBytes(b)
		_, _ = MetadataResponseFromBytes(b)
	})
}
