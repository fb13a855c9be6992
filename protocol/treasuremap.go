package protocol

import (
	"fmt"
	"sort"

	"github.com/derekpierre/nucypher-core/envelope"
	"github.com/derekpierre/nucypher-core/marshalutil"
	"github.com/derekpierre/nucypher-core/umbral"
)

var (
	treasureMapVersion          = envelope.Version{Major: 1, Minor: 0}
	encryptedTreasureMapVersion = envelope.Version{Major: 1, Minor: 0}
)

// treasureMapSigTag domain-separates the publisher's map signature.
const treasureMapSigTag byte = 0x03

// etmapAD is the fixed associated data for encrypted treasure maps.
var etmapAD = []byte("nucypher-core/etmap")

// Destination assigns one sealed key fragment to one proxy address.
type Destination struct {
	Address Address
	KFrag   *EncryptedKeyFrag
}

// TreasureMap is the publisher's signed assignment of sealed key
// fragments to proxies for one policy. destinations are kept sorted by
// address and addresses are unique, so equal assignments always encode
// to equal bytes and the signature covers a canonical form.
type TreasureMap struct {
	Hrac                  HRAC
	PolicyEncryptingKey   *umbral.PublicKey
	Threshold             uint8
	Destinations          []Destination
	PublisherVerifyingKey *umbral.VerifyingKey
	Signature             umbral.Signature
}

func treasureMapSigBytes(hrac HRAC, policyKey *umbral.PublicKey, threshold uint8,
	destinations []Destination) []byte {
	b := []byte{treasureMapSigTag}
	b = marshalutil.WriteBytes(b, hrac.Bytes())
	b = marshalutil.WriteBytes(b, policyKey.Bytes())
	b = marshalutil.WriteByte(b, threshold)
	b = marshalutil.WriteUint32(b, uint32(len(destinations)))
	for _, d := range destinations {
		b = marshalutil.WriteBytes(b, d.Address.Bytes())
		b = marshalutil.WriteSlice1D(b, d.KFrag.bytesInner())
	}
	return b
}

// NewTreasureMap builds and signs the fragment assignment for a policy.
// threshold must be in [1, len(assigned)]; assigned maps each proxy's
// address to the fragment sealed for it.
func NewTreasureMap(signer *umbral.Signer, hrac HRAC, policyKey *umbral.PublicKey,
	assigned map[Address]*EncryptedKeyFrag, threshold uint8) (*TreasureMap, error) {
	if threshold == 0 || int(threshold) > len(assigned) {
		return nil, fmt.Errorf("%w: threshold %d with %d destinations",
			ErrInvalidThreshold, threshold, len(assigned))
	}
	destinations := make([]Destination, 0, len(assigned))
	for addr, ek := range assigned {
		destinations = append(destinations, Destination{Address: addr, KFrag: ek})
	}
	sort.Slice(destinations, func(i, j int) bool {
		return destinations[i].Address.Less(destinations[j].Address)
	})
	tm := &TreasureMap{
		Hrac:                  hrac,
		PolicyEncryptingKey:   policyKey,
		Threshold:             threshold,
		Destinations:          destinations,
		PublisherVerifyingKey: signer.VerifyingKey(),
	}
	tm.Signature = signer.Sign(treasureMapSigBytes(hrac, policyKey, threshold, destinations))
	return tm, nil
}

// Verify checks the publisher's signature against the caller's trust
// anchor. the embedded publisher key must match the anchor; the anchor
// is never taken from the map itself.
func (tm *TreasureMap) Verify(publisher *umbral.VerifyingKey) error {
	if !tm.PublisherVerifyingKey.Equal(publisher) {
		return fmt.Errorf("%w: map publisher key mismatch", ErrInvalidSignature)
	}
	msg := treasureMapSigBytes(tm.Hrac, tm.PolicyEncryptingKey, tm.Threshold, tm.Destinations)
	if !publisher.Verify(msg, tm.Signature) {
		return fmt.Errorf("%w: treasure map", ErrInvalidSignature)
	}
	return nil
}

// Encrypt seals the signed map for the policy's recipient. only the
// recipient learns which proxies hold fragments.
func (tm *TreasureMap) Encrypt(recipientKey *umbral.PublicKey) (*EncryptedTreasureMap, error) {
	capsule, ct, err := umbral.Encrypt(recipientKey, tm.Bytes(), etmapAD)
	if err != nil {
		return nil, err
	}
	return &EncryptedTreasureMap{Capsule: capsule, Ciphertext: ct}, nil
}

// MakeRevocationOrders signs one revocation order per destination,
// allowing each proxy to be told, verifiably, to discard its fragment.
func (tm *TreasureMap) MakeRevocationOrders(signer *umbral.Signer) []*RevocationOrder {
	out := make([]*RevocationOrder, 0, len(tm.Destinations))
	for _, d := range tm.Destinations {
		out = append(out, NewRevocationOrder(signer, d.Address, d.KFrag))
	}
	return out
}

func (tm *TreasureMap) Bytes() []byte {
	var b []byte
	b = marshalutil.WriteBytes(b, tm.Hrac.Bytes())
	b = marshalutil.WriteBytes(b, tm.PolicyEncryptingKey.Bytes())
	b = marshalutil.WriteByte(b, tm.Threshold)
	b = marshalutil.WriteUint32(b, uint32(len(tm.Destinations)))
	for _, d := range tm.Destinations {
		b = marshalutil.WriteBytes(b, d.Address.Bytes())
		b = marshalutil.WriteSlice1D(b, d.KFrag.bytesInner())
	}
	b = marshalutil.WriteBytes(b, tm.PublisherVerifyingKey.Bytes())
	b = marshalutil.WriteBytes(b, tm.Signature)
	return envelope.Seal(envelope.TypeTreasureMap, treasureMapVersion, b)
}

func TreasureMapFromBytes(b []byte) (*TreasureMap, error) {
	payload, _, err := envelope.Open(b, envelope.TypeTreasureMap, treasureMapVersion)
	if err != nil {
		return nil, err
	}
	tm := &TreasureMap{}
	var rem []byte
	tm.Hrac, rem, err = readHRAC(payload)
	if err == nil {
		tm.PolicyEncryptingKey, rem, err = readPublicKey(rem)
	}
	if err == nil {
		tm.Threshold, rem, err = marshalutil.ReadByte(rem)
	}
	var count uint32
	if err == nil {
		count, rem, err = marshalutil.ReadUint32(rem)
	}
	if err == nil {
		// each destination is at least an address plus a length prefix;
		// bound the count before allocating.
		if uint64(count)*(AddressSize+8) > uint64(len(rem)) {
			err = fmt.Errorf("destination count %d exceeds input", count)
		}
	}
	var prev *Address
	for i := uint32(0); err == nil && i < count; i++ {
		var d Destination
		d.Address, rem, err = readAddress(rem)
		if err != nil {
			break
		}
		if prev != nil && !prev.Less(d.Address) {
			err = fmt.Errorf("destinations out of order at %d", i)
			break
		}
		var inner []byte
		inner, rem, err = marshalutil.ReadSlice1D(rem)
		if err != nil {
			break
		}
		var ekRem []byte
		d.KFrag, ekRem, err = encryptedKeyFragDecode(inner)
		if err == nil && len(ekRem) != 0 {
			err = fmt.Errorf("trailing bytes in destination %d", i)
		}
		if err != nil {
			break
		}
		tm.Destinations = append(tm.Destinations, d)
		prev = &tm.Destinations[len(tm.Destinations)-1].Address
	}
	if err == nil {
		tm.PublisherVerifyingKey, rem, err = readVerifyingKey(rem)
	}
	if err == nil {
		tm.Signature, rem, err = readSignature(rem)
	}
	if err := finishDecode("treasure map", rem, err); err != nil {
		return nil, err
	}
	if tm.Threshold == 0 || int(tm.Threshold) > len(tm.Destinations) {
		return nil, fmt.Errorf("%w: threshold %d with %d destinations",
			ErrInvalidThreshold, tm.Threshold, len(tm.Destinations))
	}
	return tm, nil
}

// EncryptedTreasureMap is a treasure map sealed for the policy's
// recipient.
type EncryptedTreasureMap struct {
	Capsule    *umbral.Capsule
	Ciphertext []byte
}

// DecryptAndVerify opens the map with the recipient's secret key and
// checks the publisher's signature before returning it. an unverifiable
// map is never returned.
func (etm *EncryptedTreasureMap) DecryptAndVerify(sk *umbral.SecretKey,
	publisher *umbral.VerifyingKey) (*TreasureMap, error) {
	pt, err := umbral.Decrypt(sk, etm.Capsule, etm.Ciphertext, etmapAD)
	if err != nil {
		return nil, err
	}
	tm, err := TreasureMapFromBytes(pt)
	if err != nil {
		return nil, err
	}
	if err := tm.Verify(publisher); err != nil {
		return nil, err
	}
	return tm, nil
}

func (etm *EncryptedTreasureMap) Bytes() []byte {
	var b []byte
	b = marshalutil.WriteBytes(b, etm.Capsule.Bytes())
	b = marshalutil.WriteSlice1D(b, etm.Ciphertext)
	return envelope.Seal(envelope.TypeEncryptedTreasureMap, encryptedTreasureMapVersion, b)
}

func EncryptedTreasureMapFromBytes(b []byte) (*EncryptedTreasureMap, error) {
	payload, _, err := envelope.Open(b, envelope.TypeEncryptedTreasureMap, encryptedTreasureMapVersion)
	if err != nil {
		return nil, err
	}
	etm := &EncryptedTreasureMap{}
	var rem []byte
	etm.Capsule, rem, err = readCapsule(payload)
	if err == nil {
		etm.Ciphertext, rem, err = marshalutil.ReadSlice1D(rem)
	}
	if err := finishDecode("encrypted treasure map", rem, err); err != nil {
		return nil, err
	}
	return etm, nil
}
