package chain

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/socchain/faucet/pkg/units"
	"github.com/socchain/faucet/pkg/utils"
)

var ErrInvalidProfile = errors.New("invalid chain profile")

// Profile is the per-chain faucet configuration. It is immutable once
// the service starts.
type Profile struct {
	Name          string
	ChainID       uint64   `env:"CHAIN_ID"`
	RPCURLs       []string `env:"RPC_URLS" envSeparator:","`
	PrivateKey    string   `env:"PRIVATE_KEY"`
	TokenContract string   `env:"TOKEN_CONTRACT"`
	ClaimAmount   string   `env:"CLAIM_AMOUNT_TOKENS"`
	TokenDecimals int32    `env:"TOKEN_DECIMALS"`
	CooldownHours int64    `env:"COOLDOWN_HOURS"`
	ClaimPath     string   `env:"CLAIM_PATH"`
}

// fileProfile is one YAML entry. Pointer fields tell an explicit zero,
// such as token_decimals: 0, apart from an omitted key.
type fileProfile struct {
	ChainID       *uint64  `yaml:"chain_id"`
	RPCURLs       []string `yaml:"rpc_urls"`
	PrivateKey    *string  `yaml:"private_key"`
	TokenContract *string  `yaml:"token_contract"`
	ClaimAmount   *string  `yaml:"claim_amount"`
	TokenDecimals *int32   `yaml:"token_decimals"`
	CooldownHours *int64   `yaml:"cooldown_hours"`
	ClaimPath     *string  `yaml:"claim_path"`
}

// profilesFile is the YAML layout: chains keyed by profile name.
type profilesFile struct {
	Chains map[string]fileProfile `yaml:"chains"`
}

// DefaultProfile returns the built-in defaults for a profile name.
func DefaultProfile(name string) Profile {
	p := Profile{
		Name:          name,
		ClaimAmount:   "100",
		TokenDecimals: 18,
		CooldownHours: 24,
		ClaimPath:     "/" + name + "/claim",
	}
	if name == "bsc" {
		p.ChainID = 97
		p.RPCURLs = []string{"https://bsc-testnet.bnbchain.org"}
		p.ClaimPath = "/claim"
	}
	return p
}

// LoadProfiles resolves each named profile from defaults, then the optional
// YAML file, then <NAME>_* environment variables.
func LoadProfiles(names []string, file string) ([]Profile, error) {
	var fromFile profilesFile
	if file != "" {
		raw, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read profiles file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &fromFile); err != nil {
			return nil, fmt.Errorf("failed to parse profiles file: %w", err)
		}
	}

	seenPaths := make(map[string]string, len(names))
	out := make([]Profile, 0, len(names))
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		p := DefaultProfile(name)
		if fp, ok := fromFile.Chains[name]; ok {
			p.merge(fp)
		}
		prefix := strings.ToUpper(strings.ReplaceAll(name, "-", "_")) + "_"
		if err := env.ParseWithOptions(&p, env.Options{Prefix: prefix}); err != nil {
			return nil, fmt.Errorf("failed to parse %s env: %w", name, err)
		}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if other, dup := seenPaths[p.ClaimPath]; dup {
			return nil, fmt.Errorf("%w: %s and %s share claim path %s", ErrInvalidProfile, other, name, p.ClaimPath)
		}
		seenPaths[p.ClaimPath] = name
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no chains configured", ErrInvalidProfile)
	}
	return out, nil
}

// merge copies the fields set in o onto p.
func (p *Profile) merge(o fileProfile) {
	if o.ChainID != nil {
		p.ChainID = *o.ChainID
	}
	if len(o.RPCURLs) > 0 {
		p.RPCURLs = o.RPCURLs
	}
	if o.PrivateKey != nil {
		p.PrivateKey = *o.PrivateKey
	}
	if o.TokenContract != nil {
		p.TokenContract = *o.TokenContract
	}
	if o.ClaimAmount != nil {
		p.ClaimAmount = *o.ClaimAmount
	}
	if o.TokenDecimals != nil {
		p.TokenDecimals = *o.TokenDecimals
	}
	if o.CooldownHours != nil {
		p.CooldownHours = *o.CooldownHours
	}
	if o.ClaimPath != nil {
		p.ClaimPath = *o.ClaimPath
	}
}

func (p Profile) Validate() error {
	fail := func(format string, args ...any) error {
		return fmt.Errorf("%w %s: %s", ErrInvalidProfile, p.Name, fmt.Sprintf(format, args...))
	}
	if p.ChainID == 0 {
		return fail("chain id is required")
	}
	if len(p.RPCURLs) == 0 || strings.TrimSpace(p.RPCURLs[0]) == "" {
		return fail("at least one rpc url is required")
	}
	if !utils.IsPrivateKey(p.PrivateKey) {
		return fail("private key must be 0x followed by 64 hex characters")
	}
	if p.TokenContract != "" && !utils.IsAddress(p.TokenContract) {
		return fail("token contract %q is not an address", p.TokenContract)
	}
	if p.TokenDecimals < 0 || p.TokenDecimals > units.MaxDecimals {
		return fail("token decimals %d out of range", p.TokenDecimals)
	}
	if p.CooldownHours <= 0 {
		return fail("cooldown hours must be positive")
	}
	if !strings.HasPrefix(p.ClaimPath, "/") {
		return fail("claim path %q must start with /", p.ClaimPath)
	}
	amount, err := units.ParseAmount(p.ClaimAmount)
	if err != nil {
		return fail("claim amount: %v", err)
	}
	if !amount.IsPositive() {
		return fail("claim amount must be positive")
	}
	raw, err := units.ToRaw(amount, p.TokenDecimals)
	if err != nil {
		return fail("claim amount: %v", err)
	}
	if raw.Sign() <= 0 {
		return fail("claim amount %s rounds to zero at %d decimals", p.ClaimAmount, p.TokenDecimals)
	}
	return nil
}

// HumanAmount is the configured claim amount in whole units.
func (p Profile) HumanAmount() decimal.Decimal {
	d, err := units.ParseAmount(p.ClaimAmount)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// RawAmount converts the claim amount with the given decimals.
func (p Profile) RawAmount(decimals int32) (*big.Int, error) {
	return units.ToRaw(p.HumanAmount(), decimals)
}

// RawClaimAmount converts the claim amount with the configured decimals.
func (p Profile) RawClaimAmount() (*big.Int, error) {
	return p.RawAmount(p.TokenDecimals)
}

func (p Profile) Cooldown() time.Duration {
	return time.Duration(p.CooldownHours) * time.Hour
}

func (p Profile) HasToken() bool {
	return p.TokenContract != ""
}

func (p Profile) Token() common.Address {
	return common.HexToAddress(p.TokenContract)
}
