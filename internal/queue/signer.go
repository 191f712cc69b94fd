// Package queue integrates with the durable HTTP queue transport: signing and
// verifying message authenticity, and enqueueing continuation messages.
package queue

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenLifetime bounds how long a signed message stays verifiable. Queue
// redelivery happens within minutes; anything older is replayed traffic.
const tokenLifetime = 10 * time.Minute

// issuer identifies tokens minted by this deployment's queue integration.
const issuer = "northlink-queue"

// Signature verification errors.
var (
	ErrInvalidSignature = errors.New("invalid message signature")
	ErrBodyMismatch     = errors.New("message body does not match signature")
)

// MessageClaims are the JWT claims carried by a queue message signature.
// The body hash binds the token to one exact message payload.
type MessageClaims struct {
	BodyHash string `json:"bodyHash"`
	jwt.RegisteredClaims
}

// Signer signs and verifies queue message bodies with a per-deployment
// shared secret.
type Signer struct {
	secret []byte
}

// NewSigner creates a Signer with the given signing secret.
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Sign returns a signature token for the message body.
func (s *Signer) Sign(body []byte) (string, error) {
	now := time.Now()
	claims := MessageClaims{
		BodyHash: hashBody(body),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenLifetime)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign message: %w", err)
	}
	return signed, nil
}

// Verify checks that the signature token is valid and was minted for exactly
// this message body.
func (s *Signer) Verify(body []byte, signature string) error {
	token, err := jwt.ParseWithClaims(signature, &MessageClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	claims, ok := token.Claims.(*MessageClaims)
	if !ok || !token.Valid {
		return ErrInvalidSignature
	}

	expected := hashBody(body)
	if !hmac.Equal([]byte(claims.BodyHash), []byte(expected)) {
		return ErrBodyMismatch
	}

	return nil
}

func hashBody(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
