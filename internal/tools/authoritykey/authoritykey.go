// Package authoritykey generates the Ed25519 key pair used to sign and
// verify medical authority access tokens.
package authoritykey

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/louisbranch/medvault/internal/vault/auth"
)

// Run generates an authority token key pair and writes exports.
func Run(out io.Writer, reader io.Reader) error {
	if out == nil {
		return errors.New("output is required")
	}
	if reader == nil {
		reader = rand.Reader
	}
	publicKey, privateKey, err := ed25519.GenerateKey(reader)
	if err != nil {
		return fmt.Errorf("generate authority key: %w", err)
	}
	if _, err := fmt.Fprintf(out, "export %s=%s\n", auth.EnvAuthPrivateKey, base64.RawStdEncoding.EncodeToString(privateKey)); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(out, "export %s=%s\n", auth.EnvAuthPublicKey, base64.RawStdEncoding.EncodeToString(publicKey)); err != nil {
		return err
	}
	return nil
}
