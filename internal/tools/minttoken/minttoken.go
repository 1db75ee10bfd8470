// Package minttoken mints signed access tokens for medical authorities.
package minttoken

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/louisbranch/medvault/internal/vault/auth"
)

// Config holds configuration for access token minting.
type Config struct {
	Subject string
	TTL     time.Duration
}

// ParseConfig parses flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Config{}
	fs.StringVar(&cfg.Subject, "subject", "", "medical authority identity the token asserts")
	fs.DurationVar(&cfg.TTL, "ttl", 0, "token lifetime override (default: MEDVAULT_AUTH_TOKEN_TTL)")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run mints an access token for the configured subject and writes it to out.
// Signer settings come from the environment.
func Run(cfg Config, out io.Writer) error {
	if out == nil {
		return errors.New("output is required")
	}
	if strings.TrimSpace(cfg.Subject) == "" {
		return errors.New("subject is required")
	}
	signer, err := auth.LoadSignerConfigFromEnv(nil)
	if err != nil {
		return fmt.Errorf("load access token signer: %w", err)
	}
	if cfg.TTL > 0 {
		signer.TTL = cfg.TTL
	}
	token, err := auth.MintAccessToken(signer, cfg.Subject)
	if err != nil {
		return fmt.Errorf("mint access token: %w", err)
	}
	_, err = fmt.Fprintln(out, token)
	return err
}
