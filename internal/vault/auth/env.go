package auth

// Environment variable names for access token configuration.
const (
	EnvAuthIssuer     = "MEDVAULT_AUTH_ISSUER"
	EnvAuthAudience   = "MEDVAULT_AUTH_AUDIENCE"
	EnvAuthPublicKey  = "MEDVAULT_AUTH_PUBLIC_KEY"
	EnvAuthPrivateKey = "MEDVAULT_AUTH_PRIVATE_KEY"
	EnvAuthTokenTTL   = "MEDVAULT_AUTH_TOKEN_TTL"
)
