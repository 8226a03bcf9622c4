package crypto

import (
	"encoding/hex"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/cockroachdb/errors"

	"github.com/thanhnp/utxo-graph/internal/models"
)

// KeyPair holds a secp256k1 private key and signs inputs on behalf of its address
type KeyPair struct {
	private *btcec.PrivateKey
}

// GenerateKeyPair creates a new random key pair
func GenerateKeyPair() (*KeyPair, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate private key")
	}
	return &KeyPair{private: priv}, nil
}

// KeyPairFromBytes loads a key pair from a 32-byte big-endian private key
func KeyPairFromBytes(privateKey []byte) (*KeyPair, error) {
	priv, err := parsePrivateKey(privateKey)
	if err != nil {
		return nil, err
	}
	return &KeyPair{private: priv}, nil
}

// KeyPairFromHex loads a key pair from a hex-encoded private key
func KeyPairFromHex(privateKeyHex string) (*KeyPair, error) {
	b, err := hex.DecodeString(privateKeyHex)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidPrivateKey, "decode hex: %v", err)
	}
	return KeyPairFromBytes(b)
}

// PrivateKey returns the 32-byte private key
func (k *KeyPair) PrivateKey() []byte {
	return k.private.Serialize()
}

// PublicKey returns the uncompressed SEC1 public key (65 bytes)
func (k *KeyPair) PublicKey() []byte {
	return k.private.PubKey().SerializeUncompressed()
}

// Address returns the address derived from the uncompressed public key
func (k *KeyPair) Address() string {
	return DeriveAddress(k.PublicKey())
}

// SignInputs returns copies of inputs carrying this key's public key and a signature
// over each input's prev_tx
func (k *KeyPair) SignInputs(inputs []models.Input) ([]models.Input, error) {
	pub := hex.EncodeToString(k.PublicKey())
	priv := k.PrivateKey()

	signed := make([]models.Input, 0, len(inputs))
	for _, in := range inputs {
		sig, err := Sign(priv, []byte(in.PrevTx))
		if err != nil {
			return nil, errors.Wrapf(err, "sign input %s", in.Outpoint())
		}
		in.PublicKey = pub
		in.Signature = hex.EncodeToString(sig)
		signed = append(signed, in)
	}
	return signed, nil
}
