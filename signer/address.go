package signer

import (
	"bytes"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	rampcommon "github.com/rampforge/agent/common"
)

// DeriveAddress turns an uncompressed SEC1 public key (0x04||X||Y) into the
// checksummed EVM address it controls: strip the tag byte, keccak256 the
// rest, take the low 20 bytes.
func DeriveAddress(pubkeySEC1 []byte) (string, error) {
	if len(pubkeySEC1) != 65 || pubkeySEC1[0] != 0x04 {
		return "", rampcommon.NewSystemError(rampcommon.ErrInvalidInput, "public key is not uncompressed SEC1")
	}
	hash := crypto.Keccak256(pubkeySEC1[1:])
	return common.BytesToAddress(hash[12:]).Hex(), nil
}

// YParity recovers which of the two candidate recovery ids produced sig over
// digest by trial-recovering a public key with each and comparing it to the
// oracle's known public key. It fails only if neither candidate matches,
// which would mean the oracle signed with a different key than advertised.
func YParity(digest [32]byte, sig [64]byte, oraclePubkey []byte) (uint64, error) {
	for _, parity := range []byte{0, 1} {
		candidate := append(append([]byte{}, sig[:]...), parity)
		recovered, err := crypto.Ecrecover(digest[:], candidate)
		if err != nil {
			continue
		}
		if bytes.Equal(recovered, oraclePubkey) {
			return uint64(parity), nil
		}
	}
	return 0, rampcommon.NewSystemError(rampcommon.ErrInternalError, "failed to recover y-parity from signature")
}

// VerifySignature checks that signature (65-byte r||s||v, EIP-191 personal
// message) was produced by evmAddress over message.
func VerifySignature(evmAddress, message string, signature []byte) error {
	if len(signature) != 65 {
		return rampcommon.NewUserError(rampcommon.ErrInvalidSignature)
	}
	// go-ethereum's Ecrecover expects v in {0,1}; personal-sign wallets emit
	// v in {27,28}.
	sig := append([]byte{}, signature...)
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	hash := accounts.TextHash([]byte(message))
	pubkey, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return rampcommon.NewUserError(rampcommon.ErrInvalidSignature)
	}

	recovered := crypto.PubkeyToAddress(*pubkey)
	if !common.IsHexAddress(evmAddress) {
		return rampcommon.NewBlockchainError(rampcommon.ErrInvalidAddress)
	}
	if recovered != common.HexToAddress(evmAddress) {
		return rampcommon.NewUserError(rampcommon.ErrInvalidSignature)
	}
	return nil
}
