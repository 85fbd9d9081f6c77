package lnurlauth

import (
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

// EncodeLnurl bech32-encodes a URL with the "lnurl" human-readable part,
// uppercased for QR efficiency as is conventional for wallets.
func EncodeLnurl(url string) (string, error) {
	converted, errConvert := bech32.ConvertBits([]byte(url), 8, 5, true)
	if errConvert != nil {
		return "", errConvert
	}
	encoded, errEncode := bech32.Encode("lnurl", converted)
	if errEncode != nil {
		return "", errEncode
	}
	return strings.ToUpper(encoded), nil
}
