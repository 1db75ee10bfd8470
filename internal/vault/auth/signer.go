package auth

import (
	"crypto/ed25519"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// signerEnv holds raw env values before post-parse validation.
type signerEnv struct {
	Issuer     string        `env:"MEDVAULT_AUTH_ISSUER"`
	Audience   string        `env:"MEDVAULT_AUTH_AUDIENCE"`
	PrivateKey string        `env:"MEDVAULT_AUTH_PRIVATE_KEY"`
	TTL        time.Duration `env:"MEDVAULT_AUTH_TOKEN_TTL"   envDefault:"15m"`
}

// SignerConfig defines how access tokens are minted.
type SignerConfig struct {
	Issuer   string
	Audience string
	Key      ed25519.PrivateKey
	TTL      time.Duration
	Now      func() time.Time
}

// LoadSignerConfigFromEnv reads access token minting configuration.
func LoadSignerConfigFromEnv(now func() time.Time) (SignerConfig, error) {
	var raw signerEnv
	if err := env.Parse(&raw); err != nil {
		return SignerConfig{}, fmt.Errorf("parse access token signer env: %w", err)
	}
	issuer := strings.TrimSpace(raw.Issuer)
	audience := strings.TrimSpace(raw.Audience)
	privateKey := strings.TrimSpace(raw.PrivateKey)
	if issuer == "" {
		return SignerConfig{}, fmt.Errorf("MEDVAULT_AUTH_ISSUER is required")
	}
	if audience == "" {
		return SignerConfig{}, fmt.Errorf("MEDVAULT_AUTH_AUDIENCE is required")
	}
	if privateKey == "" {
		return SignerConfig{}, fmt.Errorf("MEDVAULT_AUTH_PRIVATE_KEY is required")
	}
	keyBytes, err := decodeBase64(privateKey)
	if err != nil {
		return SignerConfig{}, fmt.Errorf("decode access token private key: %w", err)
	}
	if len(keyBytes) != ed25519.PrivateKeySize {
		return SignerConfig{}, fmt.Errorf("access token private key must be %d bytes", ed25519.PrivateKeySize)
	}
	if raw.TTL <= 0 {
		return SignerConfig{}, fmt.Errorf("access token ttl must be positive")
	}
	if now == nil {
		now = time.Now
	}
	return SignerConfig{
		Issuer:   issuer,
		Audience: audience,
		Key:      ed25519.PrivateKey(keyBytes),
		TTL:      raw.TTL,
		Now:      now,
	}, nil
}

// MintAccessToken signs an access token whose subject is the calling medical
// authority's identity.
func MintAccessToken(cfg SignerConfig, subject string) (string, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", fmt.Errorf("token subject is required")
	}
	if cfg.Issuer == "" || cfg.Audience == "" || len(cfg.Key) != ed25519.PrivateKeySize {
		return "", fmt.Errorf("access token signer is not configured")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	now := cfg.Now().UTC()
	claims := jwt.RegisteredClaims{
		Issuer:    cfg.Issuer,
		Audience:  jwt.ClaimStrings{cfg.Audience},
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.NewString(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	signed, err := token.SignedString(cfg.Key)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}
