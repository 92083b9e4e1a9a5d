package jwt

import "encoding/base64"

// JWK is a single JSON Web Key in the published set.
type JWK struct {
	Kty string `json:"kty"`
	Crv string `json:"crv"`
	X   string `json:"x"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
}

// JWKS is the RFC 7517 key set document served at the jwks endpoint.
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// JWKS returns the public key set resource servers use to validate tokens
// issued by this process.
func (i *Issuer) JWKS() (*JWKS, error) {
	kid, _, pub, err := i.Keys.Active()
	if err != nil {
		return nil, err
	}
	return &JWKS{
		Keys: []JWK{{
			Kty: "OKP",
			Crv: "Ed25519",
			X:   base64.RawURLEncoding.EncodeToString(pub),
			Kid: kid,
			Use: "sig",
			Alg: "EdDSA",
		}},
	}, nil
}
