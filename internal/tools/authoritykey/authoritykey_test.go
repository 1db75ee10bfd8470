package authoritykey

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/louisbranch/medvault/internal/vault/auth"
)

func TestRunRequiresOutput(t *testing.T) {
	if err := Run(nil, bytes.NewReader([]byte{1})); err == nil {
		t.Fatal("expected error when output is nil")
	}
}

func TestRunWritesKeys(t *testing.T) {
	buf := &bytes.Buffer{}
	reader := bytes.NewReader(bytes.Repeat([]byte{1}, 64))
	if err := Run(buf, reader); err != nil {
		t.Fatalf("run: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}

	private := strings.TrimPrefix(lines[0], "export "+auth.EnvAuthPrivateKey+"=")
	public := strings.TrimPrefix(lines[1], "export "+auth.EnvAuthPublicKey+"=")
	if private == lines[0] || public == lines[1] {
		t.Fatalf("unexpected output format: %q", buf.String())
	}

	privateBytes, err := base64.RawStdEncoding.DecodeString(private)
	if err != nil {
		t.Fatalf("decode private key: %v", err)
	}
	publicBytes, err := base64.RawStdEncoding.DecodeString(public)
	if err != nil {
		t.Fatalf("decode public key: %v", err)
	}
	if len(privateBytes) != 64 {
		t.Fatalf("expected private key length 64, got %d", len(privateBytes))
	}
	if len(publicBytes) != 32 {
		t.Fatalf("expected public key length 32, got %d", len(publicBytes))
	}
}

func TestGeneratedPairSignsVerifiableTokens(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := Run(buf, nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	privateBytes, err := base64.RawStdEncoding.DecodeString(strings.TrimPrefix(lines[0], "export "+auth.EnvAuthPrivateKey+"="))
	if err != nil {
		t.Fatalf("decode private key: %v", err)
	}
	publicBytes, err := base64.RawStdEncoding.DecodeString(strings.TrimPrefix(lines[1], "export "+auth.EnvAuthPublicKey+"="))
	if err != nil {
		t.Fatalf("decode public key: %v", err)
	}

	token, err := auth.MintAccessToken(auth.SignerConfig{
		Issuer:   "medvault-registry",
		Audience: "medvault-api",
		Key:      privateBytes,
		TTL:      time.Hour,
	}, "clinic-alpha")
	if err != nil {
		t.Fatalf("mint token with generated key: %v", err)
	}

	claims, err := auth.VerifyAccessToken(token, auth.AccessTokenConfig{
		Issuer:   "medvault-registry",
		Audience: "medvault-api",
		Key:      publicBytes,
	})
	if err != nil {
		t.Fatalf("verify token with generated key: %v", err)
	}
	if claims.Subject != "clinic-alpha" {
		t.Fatalf("subject = %q, want clinic-alpha", claims.Subject)
	}
}
