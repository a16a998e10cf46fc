package chain

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearProfileEnv(t *testing.T, prefix string) {
	t.Helper()
	for _, k := range []string{"CHAIN_ID", "RPC_URLS", "PRIVATE_KEY", "TOKEN_CONTRACT",
		"CLAIM_AMOUNT_TOKENS", "TOKEN_DECIMALS", "COOLDOWN_HOURS", "CLAIM_PATH"} {
		t.Setenv(prefix+k, "")
		require.NoError(t, os.Unsetenv(prefix+k))
	}
}

func TestLoadProfiles_DefaultsAndEnv(t *testing.T) {
	clearProfileEnv(t, "BSC_")
	t.Setenv("BSC_PRIVATE_KEY", testKey)

	profiles, err := LoadProfiles([]string{"bsc"}, "")
	require.NoError(t, err)
	require.Len(t, profiles, 1)

	p := profiles[0]
	assert.Equal(t, "bsc", p.Name)
	assert.Equal(t, uint64(97), p.ChainID)
	assert.Equal(t, []string{"https://bsc-testnet.bnbchain.org"}, p.RPCURLs)
	assert.Equal(t, "/claim", p.ClaimPath)
	assert.Equal(t, 24*time.Hour, p.Cooldown())
	assert.False(t, p.HasToken())

	raw, err := p.RawClaimAmount()
	require.NoError(t, err)
	assert.Equal(t, "100000000000000000000", raw.String())
}

func TestLoadProfiles_FileThenEnv(t *testing.T) {
	clearProfileEnv(t, "SOCCHAIN_")
	dir := t.TempDir()
	file := filepath.Join(dir, "chains.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
chains:
  socchain:
    chain_id: 1234
    rpc_urls: ["https://rpc-a", "https://rpc-b"]
    token_contract: "0x00000000000000000000000000000000000000Cc"
    claim_amount: "2.5"
    token_decimals: 6
    cooldown_hours: 12
`), 0o600))

	t.Setenv("SOCCHAIN_PRIVATE_KEY", testKey)
	t.Setenv("SOCCHAIN_COOLDOWN_HOURS", "48")

	profiles, err := LoadProfiles([]string{"socchain"}, file)
	require.NoError(t, err)
	p := profiles[0]

	assert.Equal(t, uint64(1234), p.ChainID)
	assert.Equal(t, []string{"https://rpc-a", "https://rpc-b"}, p.RPCURLs)
	assert.Equal(t, int64(48), p.CooldownHours)
	assert.Equal(t, "/socchain/claim", p.ClaimPath)
	assert.True(t, p.HasToken())

	raw, err := p.RawClaimAmount()
	require.NoError(t, err)
	assert.Equal(t, "2500000", raw.String())
}

func TestLoadProfiles_Invalid(t *testing.T) {
	clearProfileEnv(t, "BSC_")
	clearProfileEnv(t, "SOCCHAIN_")

	_, err := LoadProfiles([]string{"bsc"}, "")
	require.ErrorIs(t, err, ErrInvalidProfile, "missing key")

	t.Setenv("BSC_PRIVATE_KEY", testKey)
	t.Setenv("BSC_CLAIM_AMOUNT_TOKENS", "-1")
	_, err = LoadProfiles([]string{"bsc"}, "")
	require.ErrorIs(t, err, ErrInvalidProfile, "negative amount")

	t.Setenv("BSC_CLAIM_AMOUNT_TOKENS", "1")
	t.Setenv("SOCCHAIN_PRIVATE_KEY", testKey)
	t.Setenv("SOCCHAIN_CHAIN_ID", "77")
	t.Setenv("SOCCHAIN_RPC_URLS", "https://rpc")
	t.Setenv("SOCCHAIN_CLAIM_PATH", "/claim")
	_, err = LoadProfiles([]string{"bsc", "socchain"}, "")
	require.ErrorIs(t, err, ErrInvalidProfile, "duplicate claim path")

	_, err = LoadProfiles(nil, "")
	require.ErrorIs(t, err, ErrInvalidProfile)

	_, err = LoadProfiles([]string{"bsc"}, filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestProfile_Validate(t *testing.T) {
	t.Parallel()

	base := DefaultProfile("bsc")
	base.PrivateKey = testKey
	require.NoError(t, base.Validate())

	tests := []struct {
		name   string
		mutate func(p *Profile)
	}{
		{"no chain id", func(p *Profile) { p.ChainID = 0 }},
		{"no rpc", func(p *Profile) { p.RPCURLs = nil }},
		{"bad token", func(p *Profile) { p.TokenContract = "0x1234" }},
		{"decimals too large", func(p *Profile) { p.TokenDecimals = 40 }},
		{"zero cooldown", func(p *Profile) { p.CooldownHours = 0 }},
		{"relative path", func(p *Profile) { p.ClaimPath = "claim" }},
		{"unparseable amount", func(p *Profile) { p.ClaimAmount = "ten" }},
		{"zero amount", func(p *Profile) { p.ClaimAmount = "0" }},
		{"amount rounds to zero", func(p *Profile) {
			p.ClaimAmount = "0.4"
			p.TokenDecimals = 0
		}},
		{"amount below one raw unit", func(p *Profile) { p.ClaimAmount = "0.0000000000000000001" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := base
			tt.mutate(&p)
			require.ErrorIs(t, p.Validate(), ErrInvalidProfile)
		})
	}
}

func TestProfile_RawClaimAmountRounds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		amount   string
		decimals int32
		want     string
	}{
		{"0.5", 0, "1"},
		{"1.9", 0, "2"},
		{"1.4", 0, "1"},
		{"0.0000005", 6, "1"},
	}
	for _, tt := range tests {
		p := DefaultProfile("bsc")
		p.PrivateKey = testKey
		p.ClaimAmount = tt.amount
		p.TokenDecimals = tt.decimals
		require.NoError(t, p.Validate(), tt.amount)

		raw, err := p.RawClaimAmount()
		require.NoError(t, err)
		assert.Equal(t, tt.want, raw.String(), tt.amount)
	}
}

func TestLoadProfiles_FileZeroDecimals(t *testing.T) {
	clearProfileEnv(t, "SOCCHAIN_")
	file := filepath.Join(t.TempDir(), "chains.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
chains:
  socchain:
    chain_id: 1234
    rpc_urls: ["https://rpc-a"]
    claim_amount: "5"
    token_decimals: 0
`), 0o600))
	t.Setenv("SOCCHAIN_PRIVATE_KEY", testKey)

	profiles, err := LoadProfiles([]string{"socchain"}, file)
	require.NoError(t, err)
	assert.Equal(t, int32(0), profiles[0].TokenDecimals)

	raw, err := profiles[0].RawClaimAmount()
	require.NoError(t, err)
	assert.Equal(t, "5", raw.String())
}
