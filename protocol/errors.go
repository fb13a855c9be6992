package protocol

import "errors"

// ErrInvalidSignature reports a signature that does not verify under the
// supplied trust-anchor key.
var ErrInvalidSignature = errors.New("protocol: invalid signature")

// ErrAuthentication reports a bound identifier that does not match the
// caller's expectation (e.g., a key fragment sealed under a different
// policy HRAC).
var ErrAuthentication = errors.New("protocol: bound identifier mismatch")

// ErrInvalidThreshold reports a construction-time threshold outside
// [1, number of destinations].
var ErrInvalidThreshold = errors.New("protocol: invalid threshold")

// ErrMalformedResponse reports a re-encryption response whose fragment
// count does not match the request's capsules.
var ErrMalformedResponse = errors.New("protocol: malformed reencryption response")

// ErrInsufficientFragments reports that fewer than threshold valid,
// distinct-origin fragments were collected. this is a normal, retriable
// condition (query more addresses from the map), not a protocol
// violation.
var ErrInsufficientFragments = errors.New("protocol: insufficient capsule fragments")
