// Package protocol implements the message set of the threshold
// access-control network: policy identifiers, sealed key fragments,
// treasure maps, re-encryption requests and responses, retrieval state,
// node announcements, and revocation.
//
// every message is immutable after construction, carries its fields in a
// canonical binary form inside the versioned envelope, and verifies
// against explicit trust-anchor keys passed by the caller. decoding is
// total over arbitrary bytes; verification failures map to the sentinel
// errors in errors.go and never to panics.
package protocol
