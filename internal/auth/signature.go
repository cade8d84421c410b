package auth

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// secp256k1 signatures are a fixed 64 bytes (r || s).
const signatureLen = 64

// bech32Charset is the data alphabet of bech32 addresses.
const bech32Charset = "qpzry9x8gf2tvdw0s3jn54khce6mua7l"

// keplrSignature is the wallet's signed-document wrapper. Some clients send
// the whole document base64-encoded instead of the bare signature.
type keplrSignature struct {
	Signature string `json:"signature"`
}

// ValidateSignatureFormat checks that the login signature decodes to a
// 64-byte secp256k1 signature. Accepts either a bare base64 signature or a
// base64-encoded wallet document carrying one. This is a format check only;
// the ledger rejects transactions whose signatures do not verify, so login
// does not repeat full cryptographic verification.
func ValidateSignatureFormat(signature string) error {
	decoded, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("signature is not valid base64")
	}

	var wrapped keplrSignature
	if err := json.Unmarshal(decoded, &wrapped); err == nil && wrapped.Signature != "" {
		decoded, err = base64.StdEncoding.DecodeString(wrapped.Signature)
		if err != nil {
			return fmt.Errorf("wrapped signature is not valid base64")
		}
	}

	if len(decoded) != signatureLen {
		return fmt.Errorf("signature must be %d bytes, got %d", signatureLen, len(decoded))
	}
	return nil
}

// ValidateWalletAddress checks the bech32 shape of a ledger account address:
// the network prefix, the separator, and the restricted data alphabet.
func ValidateWalletAddress(address string) error {
	const prefix = "secret1"
	if !strings.HasPrefix(address, prefix) {
		return fmt.Errorf("wallet address must start with %q", prefix)
	}
	data := address[len(prefix):]
	if len(data) < 32 {
		return fmt.Errorf("wallet address is too short")
	}
	for _, r := range data {
		if !strings.ContainsRune(bech32Charset, r) {
			return fmt.Errorf("wallet address contains invalid character %q", r)
		}
	}
	return nil
}
