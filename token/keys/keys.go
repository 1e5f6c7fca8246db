package keys

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

// JWT algorithms (string values used in JWKs and headers)
const (
	RS256 = "RS256"
	ES256 = "ES256"
)

const minRSABits = 2048

// KeyPair represents a public/private key pair for signing tokens
type KeyPair struct {
	KeyID      string
	PrivateKey crypto.Signer
	PublicKey  crypto.PublicKey
	Algorithm  string // RS256 or ES256
	CreatedAt  time.Time
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewKeyID returns a ULID so key ids sort by creation time.
func NewKeyID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now().UTC()), entropy).String()
}

// Generate creates a key pair for the given algorithm. bits only applies to RS256.
func Generate(algorithm string, bits int) (*KeyPair, error) {
	switch algorithm {
	case RS256, "":
		return GenerateRSAKeyPair(NewKeyID(), bits)
	case ES256:
		return GenerateECKeyPair(NewKeyID())
	default:
		return nil, fmt.Errorf("unsupported signing algorithm %q", algorithm)
	}
}

// GenerateRSAKeyPair generates a new RSA key pair for RS256 signing
func GenerateRSAKeyPair(keyID string, bits int) (*KeyPair, error) {
	if bits < minRSABits {
		bits = minRSABits
	}

	privateKey, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate RSA key: %w", err)
	}

	return newKeyPair(keyID, privateKey, RS256), nil
}

// GenerateECKeyPair generates a P-256 key pair for ES256 signing
func GenerateECKeyPair(keyID string) (*KeyPair, error) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate EC key: %w", err)
	}
	return newKeyPair(keyID, privateKey, ES256), nil
}

func newKeyPair(keyID string, signer crypto.Signer, algorithm string) *KeyPair {
	return &KeyPair{
		KeyID:      keyID,
		PrivateKey: signer,
		PublicKey:  signer.Public(),
		Algorithm:  algorithm,
		CreatedAt:  time.Now().UTC(),
	}
}

// SigningMethod returns the JWT signing method for this key pair
func (kp *KeyPair) SigningMethod() jwt.SigningMethod {
	if kp.Algorithm == ES256 {
		return jwt.SigningMethodES256
	}
	return jwt.SigningMethodRS256
}

// PublicJWK encodes a public key for a JWKS document. Pass only the public half.
func PublicJWK(keyID, algorithm string, publicKey crypto.PublicKey) jose.JSONWebKey {
	return jose.JSONWebKey{
		Key:       publicKey,
		KeyID:     keyID,
		Algorithm: algorithm,
		Use:       "sig",
	}
}

// ExportPrivateKeyPEM exports the private key as PKCS8 PEM
func (kp *KeyPair) ExportPrivateKeyPEM() (string, error) {
	der, err := x509.MarshalPKCS8PrivateKey(kp.PrivateKey)
	if err != nil {
		return "", fmt.Errorf("failed to marshal private key: %w", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})), nil
}

// LoadKeyPairFromFile reads a PEM private key from path.
func LoadKeyPairFromFile(keyID, path string) (*KeyPair, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path comes from operator configuration
	if err != nil {
		return nil, fmt.Errorf("failed to read signing key: %w", err)
	}
	return LoadKeyPairFromPEM(keyID, string(data))
}

// LoadKeyPairFromPEM accepts PKCS1 RSA, SEC1 EC and PKCS8 keys.
func LoadKeyPairFromPEM(keyID, pemData string) (*KeyPair, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}

	signer, err := parsePrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}

	switch k := signer.(type) {
	case *rsa.PrivateKey:
		if k.N.BitLen() < minRSABits {
			return nil, fmt.Errorf("RSA key is %d bits, need at least %d", k.N.BitLen(), minRSABits)
		}
		return newKeyPair(keyID, k, RS256), nil
	case *ecdsa.PrivateKey:
		if k.Curve != elliptic.P256() {
			return nil, fmt.Errorf("unsupported EC curve %s", k.Curve.Params().Name)
		}
		return newKeyPair(keyID, k, ES256), nil
	default:
		return nil, fmt.Errorf("unsupported key type %T", signer)
	}
}

func parsePrivateKey(der []byte) (crypto.Signer, error) {
	if rsaKey, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return rsaKey, nil
	}
	if ecKey, err := x509.ParseECPrivateKey(der); err == nil {
		return ecKey, nil
	}
	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("private key does not implement crypto.Signer")
	}
	return signer, nil
}
