package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTiers(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []TakeProfitTier
		wantErr bool
	}{
		{
			name:  "default shape",
			input: "2.0:0.25,5.0:0.30,10.0:0.50",
			want: []TakeProfitTier{
				{Multiplier: 2.0, Percentage: 0.25},
				{Multiplier: 5.0, Percentage: 0.30},
				{Multiplier: 10.0, Percentage: 0.50},
			},
		},
		{
			name:  "single tier with spaces",
			input: " 3.0 : 1.0 ",
			want:  []TakeProfitTier{{Multiplier: 3.0, Percentage: 1.0}},
		},
		{name: "empty", input: "", wantErr: true},
		{name: "missing percentage", input: "2.0", wantErr: true},
		{name: "multiplier not above one", input: "1.0:0.5", wantErr: true},
		{name: "percentage above one", input: "2.0:1.5", wantErr: true},
		{name: "percentage zero", input: "2.0:0", wantErr: true},
		{name: "not ascending", input: "5.0:0.25,2.0:0.30", wantErr: true},
		{name: "duplicate multiplier", input: "2.0:0.25,2.0:0.30", wantErr: true},
		{name: "garbage multiplier", input: "abc:0.25", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTiers(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("PRIVATE_KEY", "4c0883a69102937d6231471b5dbb6204fe51296170827936ea5cce4b76994b0f")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Len(t, cfg.RPCEndpoints, 3)
	assert.Equal(t, 0.05, cfg.BuyAmountBNB)
	assert.Equal(t, 3, cfg.MaxPositions)
	assert.Equal(t, 0.90, cfg.MaxRoundTripImpact)
	assert.Equal(t, 300.0, cfg.FallbackBNBPriceUSD)
	assert.Len(t, cfg.Tiers, 3)
	assert.Equal(t, 0.30, cfg.TrailingStopPct)

	refs := cfg.References()
	assert.Equal(t, cfg.WBNBAddress, refs.WrappedNative)
	assert.Len(t, refs.Stables, 2)
}

func TestLoadConfigMissingKey(t *testing.T) {
	t.Setenv("PRIVATE_KEY", "")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PRIVATE_KEY")
}

func TestLoadConfigCollectsErrors(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SLIPPAGE_PCT", "150")
	t.Setenv("TRAILING_STOP_PCT", "2.0")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SLIPPAGE_PCT")
	assert.Contains(t, err.Error(), "TRAILING_STOP_PCT")
}

func TestLoadConfigInvalidAddress(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("WBNB_ADDRESS", "not-an-address")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WBNB_ADDRESS")
}

func TestLoadConfigCustomTiers(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TAKE_PROFIT_TIERS", "1.5:0.10,4.0:0.40")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Len(t, cfg.Tiers, 2)
	assert.Equal(t, 1.5, cfg.Tiers[0].Multiplier)
	assert.Equal(t, 0.40, cfg.Tiers[1].Percentage)
}
