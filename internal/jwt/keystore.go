package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"github.com/google/uuid"
)

// Keystore holds the signing keypair for this process run. Key rotation
// mechanics are outside the protocol core; one active Ed25519 key is enough
// to sign and to publish a JWKS that resource servers can verify against.
type Keystore struct {
	kid  string
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

// NewMemoryKeystore generates a fresh Ed25519 keypair with a random KID.
func NewMemoryKeystore() (*Keystore, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate ed25519 key: %w", err)
	}
	return &Keystore{
		kid:  uuid.NewString(),
		priv: priv,
		pub:  pub,
	}, nil
}

// NewKeystoreFromSeed builds a keystore from a 32-byte seed. Used when the
// deployment pins the signing key via configuration.
func NewKeystoreFromSeed(kid string, seed []byte) (*Keystore, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("ed25519 seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	if kid == "" {
		kid = uuid.NewString()
	}
	return &Keystore{
		kid:  kid,
		priv: priv,
		pub:  priv.Public().(ed25519.PublicKey),
	}, nil
}

// Active returns the current signing key.
func (k *Keystore) Active() (string, ed25519.PrivateKey, ed25519.PublicKey, error) {
	if k == nil || k.priv == nil {
		return "", nil, nil, fmt.Errorf("keystore not initialized")
	}
	return k.kid, k.priv, k.pub, nil
}

// PublicKeyByKID returns the public key for the given KID.
func (k *Keystore) PublicKeyByKID(kid string) (ed25519.PublicKey, error) {
	if k == nil || k.pub == nil {
		return nil, fmt.Errorf("keystore not initialized")
	}
	if kid != k.kid {
		return nil, fmt.Errorf("unknown kid %q", kid)
	}
	return k.pub, nil
}
