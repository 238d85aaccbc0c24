package identity

import (
	"os"
	"strconv"
	"strings"

	"github.com/goliatone/go-errors"
	"github.com/joho/godotenv"
)

// envConfig is the environment backed Config implementation. Every option
// has a sensible default except the signing secret, which is required.
type envConfig struct {
	signingKey             string
	signingMethod          string
	issuer                 string
	otpExpiration          int
	actionTokenExpiration  int
	sessionTokenExpiration int
	otpDevBypass           bool
}

var _ Config = (*envConfig)(nil)

// LoadConfig reads configuration from the environment, optionally loading
// .env files first. Missing files are not an error, a missing signing secret
// is. The OTP development bypass defaults to disabled and must be switched
// on explicitly.
func LoadConfig(files ...string) (Config, error) {
	for _, file := range files {
		if _, err := os.Stat(file); err == nil {
			if err := godotenv.Load(file); err != nil {
				return nil, errors.Wrap(err, errors.CategoryOperation, "failed to load env file").
					WithMetadata(map[string]any{"file": file})
			}
		}
	}

	cfg := &envConfig{
		signingKey:             os.Getenv("IDENTITY_SIGNING_KEY"),
		signingMethod:          envOrDefault("IDENTITY_SIGNING_METHOD", "HS256"),
		issuer:                 envOrDefault("IDENTITY_ISSUER", "go-identity"),
		otpExpiration:          envInt("IDENTITY_OTP_EXPIRATION_MINUTES", DefaultOTPExpiration),
		actionTokenExpiration:  envInt("IDENTITY_ACTION_TOKEN_MINUTES", DefaultActionTokenExpiration),
		sessionTokenExpiration: envInt("IDENTITY_SESSION_TOKEN_MINUTES", DefaultSessionTokenExpiration),
		otpDevBypass:           envBool("IDENTITY_OTP_DEV_BYPASS"),
	}

	if cfg.signingKey == "" {
		return nil, errors.New("IDENTITY_SIGNING_KEY is required", errors.CategoryOperation)
	}

	if cfg.signingMethod != "HS256" {
		return nil, errors.New("unsupported signing method", errors.CategoryOperation).
			WithMetadata(map[string]any{"method": cfg.signingMethod})
	}

	return cfg, nil
}

func (c *envConfig) GetSigningKey() string          { return c.signingKey }
func (c *envConfig) GetSigningMethod() string       { return c.signingMethod }
func (c *envConfig) GetIssuer() string              { return c.issuer }
func (c *envConfig) GetOTPExpiration() int          { return c.otpExpiration }
func (c *envConfig) GetActionTokenExpiration() int  { return c.actionTokenExpiration }
func (c *envConfig) GetSessionTokenExpiration() int { return c.sessionTokenExpiration }
func (c *envConfig) GetOTPDevBypass() bool          { return c.otpDevBypass }

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}

	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}

	return n
}

func envBool(key string) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
