// Package auth verifies and mints the Ed25519 access tokens that identify
// medical authorities calling the registry.
package auth

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/louisbranch/medvault/internal/platform/errors"
)

// accessTokenEnv holds raw env values before post-parse validation.
type accessTokenEnv struct {
	Issuer    string `env:"MEDVAULT_AUTH_ISSUER"`
	Audience  string `env:"MEDVAULT_AUTH_AUDIENCE"`
	PublicKey string `env:"MEDVAULT_AUTH_PUBLIC_KEY"`
}

// AccessTokenConfig defines how access tokens are verified.
type AccessTokenConfig struct {
	Issuer   string
	Audience string
	Key      ed25519.PublicKey
	Now      func() time.Time
}

// AccessTokenClaims captures validated access token claims. Subject is the
// calling medical authority's identity.
type AccessTokenClaims struct {
	Issuer    string
	Audience  []string
	Subject   string
	ExpiresAt time.Time
	NotBefore time.Time
	IssuedAt  time.Time
	JWTID     string
}

// LoadAccessTokenConfigFromEnv reads access token verification configuration.
func LoadAccessTokenConfigFromEnv(now func() time.Time) (AccessTokenConfig, error) {
	var raw accessTokenEnv
	if err := env.Parse(&raw); err != nil {
		return AccessTokenConfig{}, fmt.Errorf("parse access token env: %w", err)
	}
	issuer := strings.TrimSpace(raw.Issuer)
	audience := strings.TrimSpace(raw.Audience)
	publicKey := strings.TrimSpace(raw.PublicKey)
	if issuer == "" {
		return AccessTokenConfig{}, fmt.Errorf("MEDVAULT_AUTH_ISSUER is required")
	}
	if audience == "" {
		return AccessTokenConfig{}, fmt.Errorf("MEDVAULT_AUTH_AUDIENCE is required")
	}
	if publicKey == "" {
		return AccessTokenConfig{}, fmt.Errorf("MEDVAULT_AUTH_PUBLIC_KEY is required")
	}
	keyBytes, err := decodeBase64(publicKey)
	if err != nil {
		return AccessTokenConfig{}, fmt.Errorf("decode access token public key: %w", err)
	}
	if len(keyBytes) != ed25519.PublicKeySize {
		return AccessTokenConfig{}, fmt.Errorf("access token public key must be %d bytes", ed25519.PublicKeySize)
	}
	if now == nil {
		now = time.Now
	}
	return AccessTokenConfig{
		Issuer:   issuer,
		Audience: audience,
		Key:      ed25519.PublicKey(keyBytes),
		Now:      now,
	}, nil
}

// VerifyAccessToken verifies an access token and validates its claims.
func VerifyAccessToken(token string, cfg AccessTokenConfig) (AccessTokenClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return AccessTokenClaims{}, apperrors.New(apperrors.CodeAccessTokenInvalid, "access token is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Issuer == "" || cfg.Audience == "" || len(cfg.Key) != ed25519.PublicKeySize {
		return AccessTokenClaims{}, errors.New("access token verifier is not configured")
	}

	var parsed jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(token *jwt.Token) (any, error) {
		return cfg.Key, nil
	},
		jwt.WithValidMethods([]string{"EdDSA"}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return AccessTokenClaims{}, mapJWTError(err)
	}

	if parsed.Issuer == "" || parsed.Issuer != cfg.Issuer {
		return AccessTokenClaims{}, apperrors.WithMetadata(
			apperrors.CodeAccessTokenInvalid,
			"access token issuer mismatch",
			map[string]string{"Field": "issuer"},
		)
	}
	if !audienceContains(parsed.Audience, cfg.Audience) {
		return AccessTokenClaims{}, apperrors.WithMetadata(
			apperrors.CodeAccessTokenInvalid,
			"access token audience mismatch",
			map[string]string{"Field": "audience"},
		)
	}
	if parsed.ID == "" {
		return AccessTokenClaims{}, apperrors.New(apperrors.CodeAccessTokenInvalid, "access token jti is required")
	}
	if strings.TrimSpace(parsed.Subject) == "" {
		return AccessTokenClaims{}, apperrors.New(apperrors.CodeAccessTokenInvalid, "access token subject is required")
	}
	if parsed.ExpiresAt == nil {
		return AccessTokenClaims{}, apperrors.New(apperrors.CodeAccessTokenInvalid, "access token exp is required")
	}

	now := cfg.Now().UTC()
	exp := parsed.ExpiresAt.Time.UTC()
	if !exp.After(now) {
		return AccessTokenClaims{}, apperrors.New(apperrors.CodeAccessTokenExpired, "access token is expired")
	}
	if parsed.NotBefore != nil {
		nbf := parsed.NotBefore.Time.UTC()
		if now.Before(nbf) {
			return AccessTokenClaims{}, apperrors.New(apperrors.CodeAccessTokenInvalid, "access token not active yet")
		}
	}

	claims := AccessTokenClaims{
		Issuer:    parsed.Issuer,
		Audience:  []string(parsed.Audience),
		Subject:   strings.TrimSpace(parsed.Subject),
		ExpiresAt: exp,
		JWTID:     parsed.ID,
	}
	if parsed.NotBefore != nil {
		claims.NotBefore = parsed.NotBefore.Time.UTC()
	}
	if parsed.IssuedAt != nil {
		claims.IssuedAt = parsed.IssuedAt.Time.UTC()
	}
	return claims, nil
}

// mapJWTError translates jwt library errors to application errors.
func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenSignatureInvalid) || errors.Is(err, jwt.ErrEd25519Verification) {
		return apperrors.New(apperrors.CodeAccessTokenInvalid, "access token signature is invalid")
	}
	if errors.Is(err, jwt.ErrTokenUnverifiable) {
		return apperrors.New(apperrors.CodeAccessTokenInvalid, "access token alg is invalid")
	}
	return apperrors.New(apperrors.CodeAccessTokenInvalid, "access token is invalid")
}

// audienceContains reports whether the audience list contains the given value.
func audienceContains(aud jwt.ClaimStrings, value string) bool {
	for _, item := range aud {
		if item == value {
			return true
		}
	}
	return false
}

func decodeBase64(value string) ([]byte, error) {
	if value == "" {
		return nil, errors.New("empty base64 value")
	}
	decoded, err := base64.RawStdEncoding.DecodeString(value)
	if err == nil {
		return decoded, nil
	}
	return base64.StdEncoding.DecodeString(value)
}
