package panelsim

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"
)

// ErrInvalidToken is returned when a presented access token fails
// verification.
var ErrInvalidToken = errors.New("invalid access token")

// tokenKeyInfo is the HKDF context string for access token signing keys.
const tokenKeyInfo = "span-sim access token key v1"

// TokenIssuer mints and verifies panel access tokens. Real panels hand
// out long-lived JWTs signed with a device key; the simulator derives
// its key from a secret and the panel serial so tokens survive restarts
// with the same configuration.
type TokenIssuer struct {
	serial string
	key    []byte
}

// NewTokenIssuer derives the signing key for a panel from the given
// secret and serial number.
func NewTokenIssuer(secret []byte, serial string) (*TokenIssuer, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("token issuer: empty secret")
	}
	if serial == "" {
		return nil, fmt.Errorf("token issuer: empty serial")
	}

	reader := hkdf.New(sha256.New, secret, []byte(serial), []byte(tokenKeyInfo))
	key := make([]byte, 32)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("token issuer: derive key: %w", err)
	}

	return &TokenIssuer{serial: serial, key: key}, nil
}

// Issue mints an access token for the named client. Panel tokens do not
// expire, so the claims carry no expiry.
func (t *TokenIssuer) Issue(clientName string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:   t.serial,
		Subject:  clientName,
		IssuedAt: jwt.NewNumericDate(now),
		ID:       uuid.NewString(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.key)
	if err != nil {
		return "", fmt.Errorf("token issuer: sign: %w", err)
	}
	return signed, nil
}

// Verify checks a presented token and returns the client name it was
// issued to.
func (t *TokenIssuer) Verify(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.key, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return "", ErrInvalidToken
	}
	if claims.Issuer != t.serial {
		return "", fmt.Errorf("%w: issued by %q", ErrInvalidToken, claims.Issuer)
	}
	return claims.Subject, nil
}
