package lnurlauth

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

// VerifySignature checks the wallet's DER-encoded secp256k1 signature over
// the challenge secret. Per LNURL-auth the k1 bytes themselves are the
// signed digest.
func VerifySignature(k1Hex, sigHex, keyHex string) error {
	k1, errK1 := hex.DecodeString(k1Hex)
	if errK1 != nil {
		return fmt.Errorf("%w: malformed k1", ErrInvalidSignature)
	}
	sigBytes, errSig := hex.DecodeString(sigHex)
	if errSig != nil {
		return fmt.Errorf("%w: malformed signature", ErrInvalidSignature)
	}
	keyBytes, errKey := hex.DecodeString(keyHex)
	if errKey != nil {
		return fmt.Errorf("%w: malformed linking key", ErrInvalidSignature)
	}

	pubKey, errParseKey := btcec.ParsePubKey(keyBytes)
	if errParseKey != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, errParseKey)
	}
	sig, errParseSig := ecdsa.ParseDERSignature(sigBytes)
	if errParseSig != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, errParseSig)
	}
	if !sig.Verify(k1, pubKey) {
		return ErrInvalidSignature
	}
	return nil
}
