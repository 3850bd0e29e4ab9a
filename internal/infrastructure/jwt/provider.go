package jwtinfra

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/swift-shaadi/gateway/internal/config"
	"github.com/swift-shaadi/gateway/internal/pkg/id"
)

// Issuer is the iss claim on every phone assertion.
const Issuer = "swift-shaadi-gateway"

// PhoneClaims asserts that the gateway verified Phone by OTP.
type PhoneClaims struct {
	Phone string `json:"phone"`
	jwt.RegisteredClaims
}

// Provider signs and verifies RS256 phone assertions.
type Provider struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	expiry     time.Duration
	now        func() time.Time
}

func NewProvider(cfg *config.Config) (*Provider, error) {
	privBytes, err := os.ReadFile(cfg.JWTPrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	privKey, err := jwt.ParseRSAPrivateKeyFromPEM(privBytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	pubBytes, err := os.ReadFile(cfg.JWTPublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	pubKey, err := jwt.ParseRSAPublicKeyFromPEM(pubBytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}

	return &Provider{privateKey: privKey, publicKey: pubKey, expiry: cfg.JWTExpiry, now: time.Now}, nil
}

// SignPhone returns a short-lived assertion for phone with a unique jti.
func (p *Provider) SignPhone(phone string) (string, error) {
	now := p.now()
	claims := PhoneClaims{
		Phone: phone,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id.New(),
			Issuer:    Issuer,
			Subject:   phone,
			ExpiresAt: jwt.NewNumericDate(now.Add(p.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(p.privateKey)
}

// verify parses tokenStr and checks signature, expiry and issuer, the same
// checks a receiver of X-Phone-Assertion applies.
func (p *Provider) verify(tokenStr string) (*PhoneClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &PhoneClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return p.publicKey, nil
	}, jwt.WithIssuer(Issuer), jwt.WithTimeFunc(p.now))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*PhoneClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}
