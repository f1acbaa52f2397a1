// Package signer wraps every cryptographic operation the agent performs: the
// EVM transaction/message signing oracle and address derivation, RSA-PSS JWS
// construction for Open Banking requests, and PBKDF2 password hashing.
package signer

import (
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/crypto"
)

// Oracle is the signing boundary the rest of the agent depends on. A real
// deployment backs it with a key held in an HSM or a remote signer (the same
// boundary cmd/clef draws around geth's own key material); the agent code
// never reaches past this interface to a raw private key.
type Oracle interface {
	// Sign returns the 64-byte r||s signature over a 32-byte digest. It does
	// not compute a recovery id — callers derive that themselves via
	// YParity, since the oracle has no notion of "this hash is a tx".
	Sign(digest [32]byte) ([64]byte, error)

	// PublicKey returns the uncompressed SEC1-encoded public key (0x04
	// prefix + 64 bytes of X||Y).
	PublicKey() []byte
}

// LocalOracle is an in-process Oracle backed by an ECDSA key held in memory.
// It exists so the agent runs standalone without an external signer attached;
// production deployments should supply an Oracle backed by an HSM or a
// network-isolated signing service instead.
type LocalOracle struct {
	key *ecdsa.PrivateKey
}

// NewLocalOracle wraps an existing secp256k1 key.
func NewLocalOracle(key *ecdsa.PrivateKey) *LocalOracle {
	return &LocalOracle{key: key}
}

// GenerateLocalOracle creates a fresh random key, for tests and first-run
// bootstrapping only.
func GenerateLocalOracle() (*LocalOracle, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	return &LocalOracle{key: key}, nil
}

func (o *LocalOracle) Sign(digest [32]byte) ([64]byte, error) {
	var out [64]byte
	sig, err := crypto.Sign(digest[:], o.key)
	if err != nil {
		return out, err
	}
	// crypto.Sign returns r||s||v (65 bytes); the oracle contract only
	// promises r||s, the recovery id is reconstructed via YParity.
	copy(out[:], sig[:64])
	return out, nil
}

func (o *LocalOracle) PublicKey() []byte {
	return crypto.FromECDSAPub(&o.key.PublicKey)
}
