package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrInvalidKey is returned when PEM or key type is invalid.
var ErrInvalidKey = errors.New("invalid key")

// KeyPair is one private/public signing pair.
type KeyPair struct {
	Private crypto.Signer
	Public  crypto.PublicKey
}

// KeyMaterial holds the signing keys for access and refresh tokens. It is built once at
// startup and never mutated, so it is safe for concurrent use without locking.
type KeyMaterial struct {
	Access  KeyPair
	Refresh KeyPair
}

// KeySources are the configured PEM sources (inline PEM or file path) for LoadKeyMaterial.
// When both refresh sources are empty, the access pair also signs refresh tokens.
type KeySources struct {
	AccessPrivate  string
	AccessPublic   string
	RefreshPrivate string
	RefreshPublic  string
}

// LoadKeyMaterial parses all configured keys and checks that each public key matches its private key.
func LoadKeyMaterial(src KeySources) (*KeyMaterial, error) {
	access, err := loadPair(src.AccessPrivate, src.AccessPublic)
	if err != nil {
		return nil, fmt.Errorf("access token keys: %w", err)
	}
	if strings.TrimSpace(src.RefreshPrivate) == "" && strings.TrimSpace(src.RefreshPublic) == "" {
		return &KeyMaterial{Access: access, Refresh: access}, nil
	}
	refresh, err := loadPair(src.RefreshPrivate, src.RefreshPublic)
	if err != nil {
		return nil, fmt.Errorf("refresh token keys: %w", err)
	}
	return &KeyMaterial{Access: access, Refresh: refresh}, nil
}

func loadPair(privateSrc, publicSrc string) (KeyPair, error) {
	signer, err := ParsePrivateKey(privateSrc)
	if err != nil {
		return KeyPair{}, err
	}
	pub, err := ParsePublicKey(publicSrc)
	if err != nil {
		return KeyPair{}, err
	}
	if KeyAlg(pub) == "" {
		return KeyPair{}, ErrInvalidKey
	}
	eq, ok := signer.Public().(interface{ Equal(crypto.PublicKey) bool })
	if !ok || !eq.Equal(pub) {
		return KeyPair{}, fmt.Errorf("%w: public key does not match private key", ErrInvalidKey)
	}
	return KeyPair{Private: signer, Public: pub}, nil
}

// LoadPEM reads content from path if s does not look like inline PEM; otherwise returns s as bytes.
// Inline PEM from env files often carries literal "\n" sequences; those are turned into newlines.
func LoadPEM(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrInvalidKey
	}
	if strings.HasPrefix(s, "-----BEGIN") {
		return []byte(strings.ReplaceAll(s, `\n`, "\n")), nil
	}
	return os.ReadFile(s)
}

// ParsePrivateKey parses a PEM-encoded private key (RSA or ECDSA). s may be inline PEM or a file path.
func ParsePrivateKey(s string) (crypto.Signer, error) {
	pemBytes, err := LoadPEM(s)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, ErrInvalidKey
	}
	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		signer, ok := key.(crypto.Signer)
		if !ok {
			return nil, ErrInvalidKey
		}
		return signer, nil
	case "EC PRIVATE KEY":
		return x509.ParseECPrivateKey(block.Bytes)
	default:
		return nil, ErrInvalidKey
	}
}

// ParsePublicKey parses a PEM-encoded public key (RSA or ECDSA). s may be inline PEM or a file path.
func ParsePublicKey(s string) (crypto.PublicKey, error) {
	pemBytes, err := LoadPEM(s)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, ErrInvalidKey
	}
	switch block.Type {
	case "RSA PUBLIC KEY":
		return x509.ParsePKCS1PublicKey(block.Bytes)
	case "PUBLIC KEY":
		return x509.ParsePKIXPublicKey(block.Bytes)
	default:
		return nil, ErrInvalidKey
	}
}

// KeyAlg returns "RS256" for RSA and "ES256" for ECDSA P-256; empty otherwise.
func KeyAlg(pub crypto.PublicKey) string {
	switch k := pub.(type) {
	case *rsa.PublicKey:
		return "RS256"
	case *ecdsa.PublicKey:
		if k.Curve != nil && k.Curve.Params().Name == "P-256" {
			return "ES256"
		}
		return ""
	default:
		return ""
	}
}
