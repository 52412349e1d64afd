package harness

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"

	"github.com/babylonlabs-io/btc-regtest-harness/config"
)

var regtestParams = &chaincfg.RegressionNetParams

// Wallet RPC error codes returned by bitcoind.
const (
	rpcWalletError         btcjson.RPCErrorCode = -4 // e.g. wallet database already exists
	rpcWalletAlreadyLoaded btcjson.RPCErrorCode = -35
)

// WalletClient is the subset of the bitcoind RPC surface the block generator
// relies on.
type WalletClient interface {
	ListWallets() ([]string, error)
	CreateWallet(name string) error
	LoadWallet(name string) error
	GetNewAddress() (btcutil.Address, error)
	GenerateToAddress(numBlocks int64, address btcutil.Address) ([]*chainhash.Hash, error)
	GetReceivedByAddress(address btcutil.Address) (btcutil.Amount, error)
	Shutdown()
}

// walletDialer opens a client; a non-empty wallet scopes it to /wallet/<name>.
type walletDialer func(wallet string) (WalletClient, error)

// BTCClient implements WalletClient on top of the btcd rpc client.
type BTCClient struct {
	client *rpcclient.Client
}

var _ WalletClient = (*BTCClient)(nil)

// NewBTCClient creates a regtest client for the endpoint in cfg, scoped to
// wallet when it is not empty.
func NewBTCClient(cfg config.BTCConfig, wallet string) (*BTCClient, error) {
	host, useTLS, err := cfg.HostAndTLS()
	if err != nil {
		return nil, err
	}

	rpcClient, err := rpcclient.New(&rpcclient.ConnConfig{
		Host:         rpcHostURL(host, wallet),
		User:         cfg.Username,
		Pass:         cfg.Password,
		Params:       regtestParams.Name,
		DisableTLS:   !useTLS,
		HTTPPostMode: true,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create rpc client: %w", err)
	}

	return &BTCClient{client: rpcClient}, nil
}

func rpcHostURL(host, walletName string) string {
	if len(walletName) > 0 {
		return host + "/wallet/" + url.PathEscape(walletName)
	}

	return host
}

func (c *BTCClient) ListWallets() ([]string, error) {
	raw, err := c.client.RawRequest("listwallets", nil)
	if err != nil {
		return nil, err
	}

	var wallets []string
	if err := json.Unmarshal(raw, &wallets); err != nil {
		return nil, fmt.Errorf("failed to decode listwallets response: %w", err)
	}

	return wallets, nil
}

func (c *BTCClient) CreateWallet(name string) error {
	_, err := c.client.CreateWallet(name)
	return err
}

func (c *BTCClient) LoadWallet(name string) error {
	_, err := c.client.LoadWallet(name)
	return err
}

func (c *BTCClient) GetNewAddress() (btcutil.Address, error) {
	return c.client.GetNewAddress("")
}

func (c *BTCClient) GenerateToAddress(numBlocks int64, address btcutil.Address) ([]*chainhash.Hash, error) {
	return c.client.GenerateToAddress(numBlocks, address, nil)
}

func (c *BTCClient) GetReceivedByAddress(address btcutil.Address) (btcutil.Amount, error) {
	return c.client.GetReceivedByAddress(address)
}

func (c *BTCClient) Shutdown() {
	if c.client != nil {
		c.client.Shutdown()
	}
}

func isRPCError(err error, code btcjson.RPCErrorCode) bool {
	var rpcErr *btcjson.RPCError
	return errors.As(err, &rpcErr) && rpcErr.Code == code
}
