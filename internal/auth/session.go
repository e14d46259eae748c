// internal/auth/session.go
package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is returned for tokens that fail verification.
var ErrInvalidToken = errors.New("invalid session token")

// Issuer signs and verifies EdDSA session tokens whose subject is a user id.
type Issuer struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey

	// Expiry of zero issues tokens without an exp claim.
	Expiry time.Duration
	now    func() time.Time
}

// NewIssuer generates a fresh ed25519 key pair. Tokens do not survive a
// restart of the process.
func NewIssuer(expiry time.Duration) (*Issuer, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	return &Issuer{privateKey: priv, publicKey: pub, Expiry: expiry, now: time.Now}, nil
}

// NewIssuerFromFiles reads a raw ed25519 key pair from disk.
func NewIssuerFromFiles(privatePath, publicPath string, expiry time.Duration) (*Issuer, error) {
	priv, err := os.ReadFile(privatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key file: %w", err)
	}
	pub, err := os.ReadFile(publicPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read public key file: %w", err)
	}
	if len(priv) != ed25519.PrivateKeySize || len(pub) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("ed25519 key files have the wrong size")
	}
	return &Issuer{
		privateKey: ed25519.PrivateKey(priv),
		publicKey:  ed25519.PublicKey(pub),
		Expiry:     expiry,
		now:        time.Now,
	}, nil
}

// IssueToken returns a signed token for userID.
func (i *Issuer) IssueToken(userID uuid.UUID) (string, error) {
	now := i.now()
	claims := jwt.RegisteredClaims{
		Subject:  userID.String(),
		IssuedAt: jwt.NewNumericDate(now),
	}
	if i.Expiry > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(i.Expiry))
	}
	return jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(i.privateKey)
}

// ParseToken verifies the token and returns its subject.
func (i *Issuer) ParseToken(tokenString string) (uuid.UUID, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.publicKey, nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	return userID, nil
}
