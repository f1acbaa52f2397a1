package signer

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/hex"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveAddressMatchesGoEthereum(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	pub := crypto.FromECDSAPub(&key.PublicKey)
	addr, err := DeriveAddress(pub)
	require.NoError(t, err)

	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey).Hex(), addr)
}

func TestDeriveAddressRejectsCompressedKey(t *testing.T) {
	_, err := DeriveAddress([]byte{0x02, 0x01})
	assert.Error(t, err)
}

func TestYParityRecoversCorrectBit(t *testing.T) {
	oracle, err := GenerateLocalOracle()
	require.NoError(t, err)

	var digest [32]byte
	copy(digest[:], crypto.Keccak256([]byte("hello world")))

	sig, err := oracle.Sign(digest)
	require.NoError(t, err)

	parity, err := YParity(digest, sig, oracle.PublicKey())
	require.NoError(t, err)
	assert.True(t, parity == 0 || parity == 1)

	full := append(append([]byte{}, sig[:]...), byte(parity))
	recovered, err := crypto.Ecrecover(digest[:], full)
	require.NoError(t, err)
	assert.Equal(t, oracle.PublicKey(), recovered)
}

func TestVerifySignatureRoundTrip(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	addr := crypto.PubkeyToAddress(key.PublicKey)

	message := "login-challenge-123"
	hash := accounts.TextHash([]byte(message))
	sig, err := crypto.Sign(hash, key)
	require.NoError(t, err)
	sig[64] += 27 // emulate a wallet's personal_sign v offset

	err = VerifySignature(addr.Hex(), message, sig)
	assert.NoError(t, err)
}

func TestVerifySignatureRejectsWrongAddress(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	other, err := crypto.GenerateKey()
	require.NoError(t, err)

	message := "login-challenge-123"
	hash := accounts.TextHash([]byte(message))
	sig, err := crypto.Sign(hash, key)
	require.NoError(t, err)
	sig[64] += 27

	err = VerifySignature(crypto.PubkeyToAddress(other.PublicKey).Hex(), message, sig)
	assert.Error(t, err)
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)

	ok, err := VerifyPassword("correct horse battery staple", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("wrong password", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCreateJWSSimpleHeader(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	payload := []byte(`{"Data":{"Initiation":{"InstructionIdentification":"abc123"}}}`)
	jws, err := CreateJWS(payload, key, "test-kid", "")
	require.NoError(t, err)
	assert.NotEmpty(t, jws)
}

func TestCreateJWSSignedDataHeader(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	payload := []byte(`{"Data":{"Initiation":{"InstructionIdentification":"abc123"}}}`)
	jws, err := CreateJWS(payload, key, "test-kid", "0001")
	require.NoError(t, err)
	assert.NotEmpty(t, jws)
}

func TestEcrecoverSmoke(t *testing.T) {
	// Sanity check that go-ethereum's Ecrecover round-trips hex-encoded sigs
	// the same way the rest of the package assumes.
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	digest := crypto.Keccak256([]byte("x"))
	sig, err := crypto.Sign(digest, key)
	require.NoError(t, err)
	_ = hex.EncodeToString(sig)
	pub, err := crypto.Ecrecover(digest, sig)
	require.NoError(t, err)
	assert.Equal(t, crypto.FromECDSAPub(&key.PublicKey), pub)
}
