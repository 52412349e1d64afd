package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// BTCConfig defines the RPC connection of the block generator.
type BTCConfig struct {
	RPCURL     string `mapstructure:"rpc-url"`
	Username   string `mapstructure:"username"`
	Password   string `mapstructure:"password"`
	WalletName string `mapstructure:"wallet-name"`
}

// GeneratorConfig configures a block generator.
type GeneratorConfig struct {
	BTC       BTCConfig
	BlockTime time.Duration // pause between two steady state blocks
}

const (
	DefaultWalletName = "regtest_wallet"
	// credentials baked into the default compose template
	DefaultBtcNodeRpcUser = "rpcuser"
	DefaultBtcNodeRpcPass = "rpcpassword"
	DefaultBlockTime      = 10 * time.Second
)

func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		BTC: BTCConfig{
			RPCURL:     "http://127.0.0.1:18443",
			Username:   DefaultBtcNodeRpcUser,
			Password:   DefaultBtcNodeRpcPass,
			WalletName: DefaultWalletName,
		},
		BlockTime: DefaultBlockTime,
	}
}

func (c *GeneratorConfig) Validate() error {
	if c.BlockTime <= 0 {
		return fmt.Errorf("block time should be greater than 0")
	}

	if c.BTC.RPCURL == "" {
		return fmt.Errorf("rpc url should not be empty")
	}

	if _, _, err := c.BTC.HostAndTLS(); err != nil {
		return err
	}

	if c.BTC.Username == "" {
		return fmt.Errorf("rpc user should not be empty")
	}

	if c.BTC.Password == "" {
		return fmt.Errorf("rpc password should not be empty")
	}

	if c.BTC.WalletName == "" {
		return fmt.Errorf("wallet name should not be empty")
	}

	return nil
}

// HostAndTLS splits RPCURL into the host:port form rpcclient expects and
// reports whether TLS is required. A bare host:port is treated as plain http.
func (c BTCConfig) HostAndTLS() (string, bool, error) {
	raw := c.RPCURL
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", false, fmt.Errorf("invalid rpc url %q: %w", c.RPCURL, err)
	}

	switch u.Scheme {
	case "http", "https":
	default:
		return "", false, fmt.Errorf("unsupported rpc url scheme %q", u.Scheme)
	}

	if u.Host == "" {
		return "", false, fmt.Errorf("rpc url %q has no host", c.RPCURL)
	}

	return u.Host, u.Scheme == "https", nil
}
