package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SIGNER_PRIVATE_KEY", "")
	t.Setenv("WATCHED_MAKERS", "")

	cfg := Load()
	assert.Equal(t, "bankr", cfg.Venue)
	assert.Equal(t, int64(8453), cfg.ChainID)
	assert.Equal(t, 20, cfg.AppFeeBps)
	assert.Equal(t, 100, cfg.DefaultSlippageBps)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, 10*time.Second, cfg.ListRefreshInterval)
	assert.Equal(t, 500*time.Millisecond, cfg.DebounceDelay)
	assert.Empty(t, cfg.WatchedMakers)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("CHAIN_ID", "137")
	t.Setenv("WATCHED_MAKERS", "0xaa, 0xbb,")
	t.Setenv("USE_AWS_SECRETS", "true")
	t.Setenv("ORDER_POLL_INTERVAL", "2s")

	cfg := Load()
	assert.Equal(t, int64(137), cfg.ChainID)
	assert.Equal(t, []string{"0xaa", "0xbb"}, cfg.WatchedMakers)
	assert.True(t, cfg.UseAWSSecrets)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			BankrAPIURL:      "https://api.example.com",
			SignerPrivateKey: "0xabc",
			RPCURL:           "http://localhost:8545",
			ChainID:          8453,
			Port:             9040,
			StreamPort:       9041,
		}
	}
	require.NoError(t, base().Validate())

	c := base()
	c.SignerPrivateKey = ""
	assert.Error(t, c.Validate())
	c.UseAWSSecrets = true
	assert.NoError(t, c.Validate())

	c = base()
	c.StreamPort = c.Port
	assert.Error(t, c.Validate())

	c = base()
	c.ChainID = 0
	assert.Error(t, c.Validate())
}
