package protocol

import (
	"fmt"
	"sort"

	"github.com/derekpierre/nucypher-core/envelope"
	"github.com/derekpierre/nucypher-core/marshalutil"
	"github.com/derekpierre/nucypher-core/umbral"
)

var retrievalKitVersion = envelope.Version{Major: 1, Minor: 0}

// RetrievalKit is the recipient's working state for one capsule while it
// collects fragments: the capsule, the conditions to present with each
// request, and the set of addresses already queried so retries skip
// them. the kit is immutable; WithQueried returns a grown copy.
type RetrievalKit struct {
	Capsule          *umbral.Capsule
	QueriedAddresses []Address
	Conditions       *Conditions
}

// NewRetrievalKit starts a retrieval for a capsule. queried may list
// addresses already contacted; it is deduplicated and kept sorted.
func NewRetrievalKit(capsule *umbral.Capsule, queried []Address,
	conditions *Conditions) *RetrievalKit {
	set := make(map[Address]bool, len(queried))
	addrs := make([]Address, 0, len(queried))
	for _, a := range queried {
		if !set[a] {
			set[a] = true
			addrs = append(addrs, a)
		}
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i].Less(addrs[j]) })
	return &RetrievalKit{Capsule: capsule, QueriedAddresses: addrs, Conditions: conditions}
}

// RetrievalKitFromMessageKit starts a retrieval from a message kit, with
// no addresses queried yet.
func RetrievalKitFromMessageKit(mk *MessageKit) *RetrievalKit {
	return &RetrievalKit{Capsule: mk.Capsule, Conditions: mk.Conditions}
}

// WithQueried records one more queried address, returning a new kit.
// the receiver is unchanged; the queried set only ever grows.
func (rk *RetrievalKit) WithQueried(addr Address) *RetrievalKit {
	i := sort.Search(len(rk.QueriedAddresses), func(i int) bool {
		return !rk.QueriedAddresses[i].Less(addr)
	})
	if i < len(rk.QueriedAddresses) && rk.QueriedAddresses[i] == addr {
		return rk
	}
	addrs := make([]Address, 0, len(rk.QueriedAddresses)+1)
	addrs = append(addrs, rk.QueriedAddresses[:i]...)
	addrs = append(addrs, addr)
	addrs = append(addrs, rk.QueriedAddresses[i:]...)
	return &RetrievalKit{Capsule: rk.Capsule, QueriedAddresses: addrs, Conditions: rk.Conditions}
}

func (rk *RetrievalKit) Bytes() []byte {
	var b []byte
	b = marshalutil.WriteBytes(b, rk.Capsule.Bytes())
	b = marshalutil.WriteUint32(b, uint32(len(rk.QueriedAddresses)))
	for _, a := range rk.QueriedAddresses {
		b = marshalutil.WriteBytes(b, a.Bytes())
	}
	b = writeOptionalConditions(b, rk.Conditions)
	return envelope.Seal(envelope.TypeRetrievalKit, retrievalKitVersion, b)
}

func RetrievalKitFromBytes(b []byte) (*RetrievalKit, error) {
	payload, _, err := envelope.Open(b, envelope.TypeRetrievalKit, retrievalKitVersion)
	if err != nil {
		return nil, err
	}
	rk := &RetrievalKit{}
	var rem []byte
	rk.Capsule, rem, err = readCapsule(payload)
	var count uint32
	if err == nil {
		count, rem, err = marshalutil.ReadUint32(rem)
	}
	if err == nil && uint64(count)*AddressSize > uint64(len(rem)) {
		err = fmt.Errorf("address count %d exceeds input", count)
	}
	var prev *Address
	for i := uint32(0); err == nil && i < count; i++ {
		var a Address
		a, rem, err = readAddress(rem)
		if err != nil {
			break
		}
		if prev != nil && !prev.Less(a) {
			err = fmt.Errorf("queried addresses out of order at %d", i)
			break
		}
		rk.QueriedAddresses = append(rk.QueriedAddresses, a)
		prev = &rk.QueriedAddresses[len(rk.QueriedAddresses)-1]
	}
	if err == nil {
		rk.Conditions, rem, err = readOptionalConditions(rem)
	}
	if err := finishDecode("retrieval kit", rem, err); err != nil {
		return nil, err
	}
	return rk, nil
}

// FragmentPool collects verified capsule fragments by origin address
// until a threshold is reached. a duplicate from the same address
// replaces the earlier fragment and never counts twice, so t distinct
// proxies must contribute.
type FragmentPool struct {
	threshold int
	byAddr    map[Address]*umbral.VerifiedCapsuleFrag
}

// NewFragmentPool makes an empty pool for the given threshold.
func NewFragmentPool(threshold int) *FragmentPool {
	return &FragmentPool{
		threshold: threshold,
		byAddr:    make(map[Address]*umbral.VerifiedCapsuleFrag),
	}
}

// Add records a verified fragment from one proxy. only verified frags
// are accepted by the type system; responses that fail verification
// never reach the pool.
func (p *FragmentPool) Add(addr Address, vcf *umbral.VerifiedCapsuleFrag) {
	p.byAddr[addr] = vcf
}

// Len is the number of distinct contributing addresses.
func (p *FragmentPool) Len() int {
	return len(p.byAddr)
}

// Fragments returns the collected fragments once the threshold is met,
// or ErrInsufficientFragments telling the caller how many more distinct
// proxies it needs.
func (p *FragmentPool) Fragments() ([]*umbral.VerifiedCapsuleFrag, error) {
	if len(p.byAddr) < p.threshold {
		return nil, fmt.Errorf("%w: have %d of %d",
			ErrInsufficientFragments, len(p.byAddr), p.threshold)
	}
	out := make([]*umbral.VerifiedCapsuleFrag, 0, len(p.byAddr))
	for _, vcf := range p.byAddr {
		out = append(out, vcf)
	}
	return out, nil
}
