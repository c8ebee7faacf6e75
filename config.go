package idgov

import (
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/iov-one/idgov/errors"
)

// TokenPolicy decides how delegation token lifecycle operations treat a token
// that is already in the requested state.
type TokenPolicy string

const (
	// StrictTokenPolicy fails revoking a revoked token, unrevoking an
	// active token and deleting a missing token.
	StrictTokenPolicy TokenPolicy = "strict"
	// IdempotentTokenPolicy turns the same requests into no-ops.
	IdempotentTokenPolicy TokenPolicy = "idempotent"
)

// Validate returns an error for unknown policies.
func (p TokenPolicy) Validate() error {
	switch p {
	case StrictTokenPolicy, IdempotentTokenPolicy:
		return nil
	}
	return errors.ErrInput.Newf("unknown token policy %q", p)
}

// Config holds the client settings. All values can be provided through the
// environment.
type Config struct {
	// GasBudget is the gas budget of every submitted transaction.
	GasBudget uint64 `env:"IDGOV_GAS_BUDGET" envDefault:"50000000"`
	// ChainID and PackageID register an identity contract deployment in
	// addition to the known ones.
	ChainID   string `env:"IDGOV_CHAIN_ID"`
	PackageID string `env:"IDGOV_PACKAGE_ID"`
	// TokenPolicy is either "strict" or "idempotent".
	TokenPolicy TokenPolicy `env:"IDGOV_TOKEN_POLICY" envDefault:"strict"`
	// CacheSize bounds the number of cached identity and proposal handles.
	CacheSize int    `env:"IDGOV_CACHE_SIZE" envDefault:"256"`
	LogLevel  string `env:"IDGOV_LOG_LEVEL" envDefault:"info"`
}

// LoadConfig reads the configuration from the environment and validates it.
func LoadConfig() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return c, errors.Wrap(errors.ErrInput, err.Error())
	}
	return c, c.Validate()
}

// DefaultConfig returns the configuration used when no environment is set.
func DefaultConfig() Config {
	return Config{
		GasBudget:   50000000,
		TokenPolicy: StrictTokenPolicy,
		CacheSize:   256,
		LogLevel:    "info",
	}
}

func (c Config) Validate() error {
	var errs error
	if c.GasBudget == 0 {
		errs = errors.AppendField(errs, "GasBudget", errors.ErrInput.New("must be greater than zero"))
	}
	if (c.ChainID == "") != (c.PackageID == "") {
		errs = errors.AppendField(errs, "PackageID", errors.ErrInput.New("chain id and package id must be set together"))
	}
	if c.PackageID != "" {
		if _, err := ParseObjectID(c.PackageID); err != nil {
			errs = errors.AppendField(errs, "PackageID", err)
		}
	}
	errs = errors.AppendField(errs, "TokenPolicy", c.TokenPolicy.Validate())
	if c.CacheSize <= 0 {
		errs = errors.AppendField(errs, "CacheSize", errors.ErrInput.New("must be greater than zero"))
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "error", "none":
	default:
		errs = errors.AppendField(errs, "LogLevel", errors.ErrInput.Newf("unknown level %q", c.LogLevel))
	}
	return errs
}
