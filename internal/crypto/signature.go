package crypto

import (
	"encoding/hex"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/cockroachdb/errors"
)

// ErrInvalidPrivateKey is returned for private keys outside the curve order
var ErrInvalidPrivateKey = errors.New("invalid private key")

// Sign produces a deterministic (RFC 6979) DER-encoded ECDSA signature over the
// SHA-256 digest of message
func Sign(privateKey, message []byte) ([]byte, error) {
	priv, err := parsePrivateKey(privateKey)
	if err != nil {
		return nil, err
	}
	return ecdsa.Sign(priv, chainhash.HashB(message)).Serialize(), nil
}

// Verify reports whether signature is a valid signature of message by publicKey.
// Malformed keys or signatures fail verification.
func Verify(publicKey, signature, message []byte) bool {
	pub, err := btcec.ParsePubKey(publicKey)
	if err != nil {
		return false
	}
	sig, err := ecdsa.ParseDERSignature(signature)
	if err != nil {
		return false
	}
	return sig.Verify(chainhash.HashB(message), pub)
}

// VerifyHex is Verify for hex-encoded keys and signatures
func VerifyHex(publicKeyHex, signatureHex string, message []byte) bool {
	pub, err := hex.DecodeString(publicKeyHex)
	if err != nil {
		return false
	}
	sig, err := hex.DecodeString(signatureHex)
	if err != nil {
		return false
	}
	return Verify(pub, sig, message)
}

func parsePrivateKey(privateKey []byte) (*btcec.PrivateKey, error) {
	if len(privateKey) != btcec.PrivKeyBytesLen {
		return nil, errors.Wrapf(ErrInvalidPrivateKey, "expected %d bytes, got %d", btcec.PrivKeyBytesLen, len(privateKey))
	}

	var scalar btcec.ModNScalar
	if overflow := scalar.SetByteSlice(privateKey); overflow || scalar.IsZero() {
		return nil, errors.Wrap(ErrInvalidPrivateKey, "scalar out of range")
	}
	priv, _ := btcec.PrivKeyFromBytes(privateKey)
	return priv, nil
}
