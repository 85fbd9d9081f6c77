package lnurlauth

import "errors"

// Correlation errors.
var (
	// ErrNotFound indicates no correlation entry exists for the hash.
	ErrNotFound = errors.New("login challenge not found")
	// ErrNotYetSigned indicates the challenge exists but no wallet has signed it.
	ErrNotYetSigned = errors.New("login challenge not yet signed")
	// ErrUnknownChallenge indicates a wallet callback for a challenge this
	// service never issued or that has expired.
	ErrUnknownChallenge = errors.New("unknown login challenge")
	// ErrInvalidSignature indicates the wallet signature does not verify.
	ErrInvalidSignature = errors.New("invalid login signature")
)
