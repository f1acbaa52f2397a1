package signer

import (
	"crypto/rsa"
	"encoding/json"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rampforge/agent/common"
)

// openBankingTANClaim is the UK Open Banking "trusted anchor" critical
// header claim name required on signed-data JWS requests.
const openBankingTANClaim = "http://openbanking.org.uk/tan"

// CreateJWS signs payload (an arbitrary JSON object, e.g. a domestic payment
// consent request body) as a detached-header-free JWS using RSA-PSS/SHA-256
// (PS256), matching the Open Banking signed-request profile. When tan is
// non-empty the header additionally carries the "crit" and tan claims
// required for signed-data requests; an empty tan produces the simple header
// shape used elsewhere.
func CreateJWS(payload []byte, key *rsa.PrivateKey, kid, tan string) (string, error) {
	var claims jwt.MapClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return "", common.NewSystemError(common.ErrParseError, "jws payload is not a JSON object")
	}

	token := jwt.NewWithClaims(jwt.SigningMethodPS256, claims)
	if tan != "" {
		token.Header = map[string]interface{}{
			"alg":               "PS256",
			"kid":               kid,
			"crit":              []string{openBankingTANClaim},
			openBankingTANClaim: tan,
		}
	} else {
		token.Header = map[string]interface{}{
			"alg": kid,
			"kid": kid,
		}
	}
	token.Header["alg"] = "PS256"

	signed, err := token.SignedString(key)
	if err != nil {
		return "", common.NewSystemError(common.ErrRsaError, err.Error())
	}
	return signed, nil
}
