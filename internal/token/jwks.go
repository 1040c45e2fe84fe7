package token

import (
	"crypto/rsa"
	"encoding/base64"
	"math/big"
)

// JWK is a single RFC 7517 key entry.
type JWK struct {
	Kid string `json:"kid,omitempty"`
	Kty string `json:"kty"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// KeySet is the published JWKS document. Keys is never nil so the JSON
// rendering always contains a "keys" array.
type KeySet struct {
	Keys []JWK `json:"keys"`
}

// JWKS renders the signer's public key as an RFC 7517 key set.
func (s *Signer) JWKS() KeySet {
	pub, ok := s.verifier.publicKey.(*rsa.PublicKey)
	if !ok {
		return KeySet{Keys: []JWK{}}
	}
	return KeySet{Keys: []JWK{rsaJWK(pub, s.keyID)}}
}

func rsaJWK(pub *rsa.PublicKey, kid string) JWK {
	return JWK{
		Kid: kid,
		Kty: "RSA",
		Use: "sig",
		Alg: "RS256",
		N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}
}
