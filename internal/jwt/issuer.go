// Package jwt signs the JWT artifacts of the authorization server (access
// tokens, ID tokens) with the active key of the keystore and publishes the
// matching JWKS document.
package jwt

import (
	"crypto/ed25519"
	"errors"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// Issuer signs tokens using the active keystore key.
type Issuer struct {
	Iss       string        // "iss" claim
	Keys      *Keystore
	AccessTTL time.Duration // default TTL when the client has none configured
}

// NewIssuer builds an Issuer with a 15 minute default TTL.
func NewIssuer(iss string, ks *Keystore) *Issuer {
	return &Issuer{
		Iss:       iss,
		Keys:      ks,
		AccessTTL: 15 * time.Minute,
	}
}

// ActiveKID returns the current signing KID.
func (i *Issuer) ActiveKID() (string, error) {
	kid, _, _, err := i.Keys.Active()
	return kid, err
}

// Keyfunc returns a jwt.Keyfunc resolving the public key by the token's
// 'kid' header, falling back to the active key.
func (i *Issuer) Keyfunc() jwtv5.Keyfunc {
	return func(t *jwtv5.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid != "" {
			return i.Keys.PublicKeyByKID(kid)
		}
		_, _, pub, err := i.Keys.Active()
		if err != nil {
			return nil, err
		}
		return ed25519.PublicKey(pub), nil
	}
}

// SignRaw signs an arbitrary MapClaims, setting kid/typ headers.
func (i *Issuer) SignRaw(claims jwtv5.MapClaims) (string, string, error) {
	kid, priv, _, err := i.Keys.Active()
	if err != nil {
		return "", "", err
	}
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodEdDSA, claims)
	tk.Header["kid"] = kid
	tk.Header["typ"] = "JWT"
	signed, err := tk.SignedString(priv)
	if err != nil {
		return "", "", err
	}
	return signed, kid, nil
}

// IssueAccess signs an access token with standard claims plus std (flat) and
// custom (nested under "custom"). ttl <= 0 falls back to AccessTTL.
func (i *Issuer) IssueAccess(sub, aud string, std map[string]any, custom map[string]any, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		ttl = i.AccessTTL
	}
	now := time.Now().UTC()
	exp := now.Add(ttl)

	claims := jwtv5.MapClaims{
		"iss": i.Iss,
		"sub": sub,
		"aud": aud,
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"exp": exp.Unix(),
	}
	for k, v := range std {
		claims[k] = v
	}
	if len(custom) > 0 {
		claims["custom"] = custom
	}

	signed, _, err := i.SignRaw(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// IssueIDToken signs an OIDC ID token with standard claims and extras at the
// top level. ttl <= 0 falls back to AccessTTL.
func (i *Issuer) IssueIDToken(sub, aud string, std map[string]any, extra map[string]any, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		ttl = i.AccessTTL
	}
	now := time.Now().UTC()
	exp := now.Add(ttl)

	claims := jwtv5.MapClaims{
		"iss": i.Iss,
		"sub": sub,
		"aud": aud,
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"exp": exp.Unix(),
	}
	for k, v := range std {
		claims[k] = v
	}
	for k, v := range extra {
		if _, taken := claims[k]; !taken {
			claims[k] = v
		}
	}

	signed, _, err := i.SignRaw(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Parse verifies a token issued by this process and returns its claims.
func (i *Issuer) Parse(raw string) (jwtv5.MapClaims, error) {
	claims := jwtv5.MapClaims{}
	tk, err := jwtv5.ParseWithClaims(raw, claims, i.Keyfunc(),
		jwtv5.WithValidMethods([]string{jwtv5.SigningMethodEdDSA.Alg()}),
		jwtv5.WithIssuer(i.Iss),
	)
	if err != nil {
		return nil, err
	}
	if !tk.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
