// Package crypto derives addresses from public keys and produces and checks the
// secp256k1 ownership proofs attached to transaction inputs.
package crypto

import (
	"encoding/hex"

	"golang.org/x/crypto/ripemd160" //nolint:gosec // ripemd160 is the address digest of the ledger format
)

// AddressLen is the length of a hex-encoded address
const AddressLen = ripemd160.Size * 2

// DeriveAddress returns the hex RIPEMD-160 digest of a serialized public key
func DeriveAddress(publicKey []byte) string {
	h := ripemd160.New() //nolint:gosec // see import
	h.Write(publicKey)
	return hex.EncodeToString(h.Sum(nil))
}

// IsAddress reports whether s has the shape of a derived address
func IsAddress(s string) bool {
	if len(s) != AddressLen {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
