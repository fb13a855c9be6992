package protocol

import (
	"bytes"
	"testing"

	"github.com/derekpierre/nucypher-core/umbral"
)

// # Addresses

func TestAddressDeterministic(t *testing.T) {
	signer := umbral.NewSigner()
	a1 := AddressFromVerifyingKey(signer.VerifyingKey())
	a2 := AddressFromVerifyingKey(signer.VerifyingKey())
	if a1 != a2 {
		t.Fatal()
	}
	if a1 == AddressFromVerifyingKey(umbral.NewSigner().VerifyingKey()) {
		t.Fatal("distinct keys collided")
	}

	got, err := AddressFromBytes(a1.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if got != a1 {
		t.Fatal()
	}
	if _, err := AddressFromBytes(a1.Bytes()[:19]); err == nil {
		t.Fatal()
	}
}

// # HRAC

func TestHRACDeterministic(t *testing.T) {
	alice := umbral.NewSigner().VerifyingKey()
	bob := umbral.NewSigner().VerifyingKey()
	label := []byte("quarterly-reports")

	h1 := NewHRAC(alice, bob, label)
	h2 := NewHRAC(alice, bob, label)
	if h1 != h2 {
		t.Fatal()
	}
	// any input change yields a different identifier.
	if h1 == NewHRAC(alice, bob, []byte("other-label")) {
		t.Fatal()
	}
	if h1 == NewHRAC(bob, alice, label) {
		t.Fatal()
	}

	got, err := HRACFromBytes(h1.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if got != h1 {
		t.Fatal()
	}
	if _, err := HRACFromBytes([]byte("short")); err == nil {
		t.Fatal()
	}
}

// # Fleet state

func testNode(t *testing.T, host string) *NodeMetadata {
	t.Helper()
	signer := umbral.NewSigner()
	payload := &NodeMetadataPayload{
		StakingProviderAddress: AddressFromVerifyingKey(signer.VerifyingKey()),
		Domain:                 "mainnet",
		Timestamp:              1_700_000_000,
		VerifyingKey:           signer.VerifyingKey(),
		EncryptingKey:          umbral.GenerateSecretKey().PublicKey(),
		CertificateDER:         []byte("der-cert"),
		Host:                   host,
		Port:                   9151,
		OperatorSignature:      umbral.RandBytes(65),
	}
	nm, err := NewNodeMetadata(signer, payload)
	if err != nil {
		t.Fatal(err)
	}
	return nm
}

func TestFleetStateChecksumOrderIndependent(t *testing.T) {
	this := testNode(t, "node0.example.com")
	a := testNode(t, "node1.example.com")
	b := testNode(t, "node2.example.com")
	c := testNode(t, "node3.example.com")

	c1 := NewFleetStateChecksum(this, []*NodeMetadata{a, b, c})
	c2 := NewFleetStateChecksum(this, []*NodeMetadata{c, a, b})
	if c1 != c2 {
		t.Fatal("checksum depends on discovery order")
	}
	// a different fleet gives a different checksum.
	if c1 == NewFleetStateChecksum(this, []*NodeMetadata{a, b}) {
		t.Fatal()
	}
	// the local node is part of its own view.
	if c1 == NewFleetStateChecksum(nil, []*NodeMetadata{a, b, c}) {
		t.Fatal()
	}

	got, err := FleetStateChecksumFromBytes(c1.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if got != c1 {
		t.Fatal()
	}
}

// # Retrieval kit

func TestRetrievalKitQueriedSet(t *testing.T) {
	capsule, _, err := umbral.Encrypt(umbral.GenerateSecretKey().PublicKey(), []byte("pt"), nil)
	if err != nil {
		t.Fatal(err)
	}
	a1 := AddressFromVerifyingKey(umbral.NewSigner().VerifyingKey())
	a2 := AddressFromVerifyingKey(umbral.NewSigner().VerifyingKey())

	rk := NewRetrievalKit(capsule, []Address{a1, a1}, nil)
	if len(rk.QueriedAddresses) != 1 {
		t.Fatal("duplicates not collapsed")
	}

	rk2 := rk.WithQueried(a2)
	if len(rk.QueriedAddresses) != 1 || len(rk2.QueriedAddresses) != 2 {
		t.Fatal("WithQueried mutated the receiver")
	}
	// adding a known address returns the same kit.
	if rk3 := rk2.WithQueried(a1); len(rk3.QueriedAddresses) != 2 {
		t.Fatal()
	}

	got, err := RetrievalKitFromBytes(rk2.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if !got.Capsule.Equal(capsule) || len(got.QueriedAddresses) != 2 {
		t.Fatal()
	}
}

func TestRetrievalKitFromMessageKit(t *testing.T) {
	conditions := Conditions(`{"chain": 1}`)
	mk, err := NewMessageKit(umbral.GenerateSecretKey().PublicKey(), []byte("pt"), &conditions)
	if err != nil {
		t.Fatal(err)
	}
	rk := RetrievalKitFromMessageKit(mk)
	if !rk.Capsule.Equal(mk.Capsule) {
		t.Fatal()
	}
	if rk.Conditions == nil || *rk.Conditions != conditions {
		t.Fatal()
	}
	if len(rk.QueriedAddresses) != 0 {
		t.Fatal()
	}
}

// # Message kit

func TestMessageKitRoundTrip(t *testing.T) {
	sk := umbral.GenerateSecretKey()
	conditions := Conditions(`{"balance": ">0"}`)
	pt := []byte("the message")

	mk, err := NewMessageKit(sk.PublicKey(), pt, &conditions)
	if err != nil {
		t.Fatal(err)
	}
	mk2, err := MessageKitFromBytes(mk.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	got, err := mk2.Decrypt(sk)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, pt) {
		t.Fatal()
	}

	// swapping the cleartext conditions breaks the associated data.
	other := Conditions(`{"balance": ">1"}`)
	mk2.Conditions = &other
	if _, err := mk2.Decrypt(sk); err == nil {
		t.Fatal("altered conditions accepted")
	}
	// stripping them entirely also breaks it.
	mk2.Conditions = nil
	if _, err := mk2.Decrypt(sk); err == nil {
		t.Fatal("stripped conditions accepted")
	}
}

func TestMessageKitNoConditions(t *testing.T) {
	sk := umbral.GenerateSecretKey()
	pt := []byte("no strings attached")

	mk, err := NewMessageKit(sk.PublicKey(), pt, nil)
	if err != nil {
		t.Fatal(err)
	}
	// absence survives the round trip and is distinct from the empty
	// expression.
	mk2, err := MessageKitFromBytes(mk.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if mk2.Conditions != nil {
		t.Fatal()
	}
	got, err := mk2.Decrypt(sk)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, pt) {
		t.Fatal()
	}

	empty := Conditions("")
	mk2.Conditions = &empty
	if _, err := mk2.Decrypt(sk); err == nil {
		t.Fatal("empty conditions conflated with absent")
	}
}
