package signer

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/rampforge/agent/common"
	"golang.org/x/crypto/pbkdf2"
)

// pbkdf2Iterations matches the RustCrypto pbkdf2 crate's default round count
// for PBKDF2-HMAC-SHA256, used by the account service this was ported from.
const pbkdf2Iterations = 600_000

const pbkdf2KeyLen = 32

// HashPassword derives a PBKDF2-HMAC-SHA256 hash of password under a fresh
// random salt and serializes it in PHC string format:
// $pbkdf2-sha256$i=<iterations>$<salt-b64>$<hash-b64>.
func HashPassword(password string) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", common.NewSystemError(common.ErrInternalError, "failed to draw random salt")
	}
	hash := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, pbkdf2KeyLen, sha256.New)
	return formatPHC(pbkdf2Iterations, salt, hash), nil
}

// VerifyPassword reports whether password matches the PHC-formatted hash,
// comparing in constant time.
func VerifyPassword(password, phc string) (bool, error) {
	iterations, salt, hash, err := parsePHC(phc)
	if err != nil {
		return false, err
	}
	candidate := pbkdf2.Key([]byte(password), salt, iterations, len(hash), sha256.New)
	return subtle.ConstantTimeCompare(candidate, hash) == 1, nil
}

func formatPHC(iterations int, salt, hash []byte) string {
	return fmt.Sprintf("$pbkdf2-sha256$i=%d$%s$%s",
		iterations,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	)
}

func parsePHC(phc string) (iterations int, salt, hash []byte, err error) {
	parts := strings.Split(phc, "$")
	// "" "pbkdf2-sha256" "i=N" "<salt>" "<hash>"
	if len(parts) != 5 || parts[1] != "pbkdf2-sha256" {
		return 0, nil, nil, common.NewSystemError(common.ErrInvalidInput, "malformed PHC password hash")
	}
	if !strings.HasPrefix(parts[2], "i=") {
		return 0, nil, nil, common.NewSystemError(common.ErrInvalidInput, "malformed PHC iteration count")
	}
	iterations, convErr := strconv.Atoi(strings.TrimPrefix(parts[2], "i="))
	if convErr != nil {
		return 0, nil, nil, common.NewSystemError(common.ErrInvalidInput, "non-numeric PHC iteration count")
	}
	salt, err = base64.RawStdEncoding.DecodeString(parts[3])
	if err != nil {
		return 0, nil, nil, common.NewSystemError(common.ErrInvalidInput, "malformed PHC salt")
	}
	hash, err = base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return 0, nil, nil, common.NewSystemError(common.ErrInvalidInput, "malformed PHC hash")
	}
	return iterations, salt, hash, nil
}
