package harness

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"go.uber.org/zap"

	"github.com/babylonlabs-io/btc-regtest-harness/config"
)

// Blocks mined before the steady state loop, enough for coinbase maturity.
const initialBlocks = 100

var ErrWrongNetwork = errors.New("mining address is not a regtest address")

// BlockGenerator mines blocks to a single wallet address at a fixed pace to
// keep a regtest chain moving while tests run against it.
type BlockGenerator struct {
	client        WalletClient
	cfg           config.GeneratorConfig
	miningAddress btcutil.Address
	logger        *zap.Logger
	metrics       *GeneratorMetrics
}

// NewBlockGenerator connects to the node in cfg, loads or creates a wallet
// and derives the mining address. metrics may be nil.
func NewBlockGenerator(cfg config.GeneratorConfig, logger *zap.Logger, metrics *GeneratorMetrics) (*BlockGenerator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dial := func(wallet string) (WalletClient, error) {
		return NewBTCClient(cfg.BTC, wallet)
	}

	return newBlockGenerator(cfg, dial, logger, metrics)
}

func newBlockGenerator(
	cfg config.GeneratorConfig,
	dial walletDialer,
	logger *zap.Logger,
	metrics *GeneratorMetrics,
) (*BlockGenerator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NewGeneratorMetrics(nil)
	}
	logger = logger.With(zap.String("component", "bitcoin_block_generator"))

	node, err := dial("")
	if err != nil {
		return nil, err
	}

	wallet, err := loadOrCreateWallet(node, cfg.BTC.WalletName, logger)
	node.Shutdown()
	if err != nil {
		return nil, err
	}

	client, err := dial(wallet)
	if err != nil {
		return nil, err
	}

	addr, err := client.GetNewAddress()
	if err != nil {
		client.Shutdown()
		return nil, fmt.Errorf("failed to derive mining address: %w", err)
	}
	if !addr.IsForNet(regtestParams) {
		client.Shutdown()
		return nil, fmt.Errorf("%w: %s", ErrWrongNetwork, addr.EncodeAddress())
	}

	logger.Info("mining address derived", zap.String("wallet", wallet), zap.String("address", addr.EncodeAddress()))

	return &BlockGenerator{
		client:        client,
		cfg:           cfg,
		miningAddress: addr,
		logger:        logger,
		metrics:       metrics,
	}, nil
}

// loadOrCreateWallet picks the wallet the generator mines to and returns its
// name. The first loaded wallet wins; when none is loaded, or the list call
// itself fails, walletName is created.
func loadOrCreateWallet(node WalletClient, walletName string, logger *zap.Logger) (string, error) {
	logger.Info("loading or creating wallet", zap.String("wallet", walletName))

	wallets, err := node.ListWallets()
	switch {
	case err != nil:
		logger.Warn("could not list wallets, attempting to create a new one",
			zap.String("wallet", walletName), zap.Error(err))
		return walletName, createWallet(node, walletName, logger)

	case len(wallets) == 0:
		logger.Info("node has no loaded wallet", zap.String("wallet", walletName))
		return walletName, createWallet(node, walletName, logger)

	default:
		existing := wallets[0]
		if err := loadWallet(node, existing); err != nil {
			return "", err
		}
		logger.Info("loaded existing wallet", zap.String("wallet", existing))
		return existing, nil
	}
}

func createWallet(node WalletClient, name string, logger *zap.Logger) error {
	err := node.CreateWallet(name)
	switch {
	case err == nil:
		logger.Info("created new wallet", zap.String("wallet", name))
		return nil

	case isRPCError(err, rpcWalletError):
		// exists on disk but is not loaded
		logger.Info("wallet already exists, loading it", zap.String("wallet", name))
		return loadWallet(node, name)

	default:
		return fmt.Errorf("failed to create wallet %s: %w", name, err)
	}
}

func loadWallet(node WalletClient, name string) error {
	if err := node.LoadWallet(name); err != nil && !isRPCError(err, rpcWalletAlreadyLoaded) {
		return fmt.Errorf("failed to load wallet %s: %w", name, err)
	}

	return nil
}

// MiningAddress returns the address all blocks are mined to.
func (g *BlockGenerator) MiningAddress() btcutil.Address {
	return g.miningAddress
}

// Close releases the RPC client.
func (g *BlockGenerator) Close() {
	g.client.Shutdown()
}

// Run mines the seed blocks and then one block every BlockTime until ctx is
// canceled. Cancellation is only observed between iterations, an RPC call in
// flight always completes. A failed block generation is logged and retried on
// the next iteration, a failed balance check ends the run.
func (g *BlockGenerator) Run(ctx context.Context) error {
	if err := g.generateInitialBlocks(); err != nil {
		return err
	}

	if _, err := g.checkBalance(); err != nil {
		return err
	}

	for {
		if ctx.Err() != nil {
			g.logger.Info("stop signal received, block generator is shutting down")
			break
		}

		hash, err := g.generateBlock()
		if err != nil {
			g.metrics.GenerationFailures.Inc()
			g.logger.Warn("failed to generate block", zap.Error(err))
		} else {
			g.logger.Info("generated new block", zap.String("hash", hash))
			if _, err := g.checkBalance(); err != nil {
				return err
			}
		}

		select {
		case <-ctx.Done():
		case <-time.After(g.cfg.BlockTime):
		}
	}

	_, err := g.checkBalance()
	return err
}

func (g *BlockGenerator) generateInitialBlocks() error {
	g.logger.Info("generating initial blocks", zap.Int("count", initialBlocks))

	hashes, err := g.client.GenerateToAddress(initialBlocks, g.miningAddress)
	if err != nil {
		return fmt.Errorf("failed to generate initial blocks: %w", err)
	}
	if len(hashes) == 0 {
		return fmt.Errorf("failed to generate initial blocks: node returned no block hashes")
	}
	g.metrics.BlocksMined.Add(float64(len(hashes)))

	g.logger.Info("generated initial blocks",
		zap.Int("count", len(hashes)), zap.String("last_hash", hashes[len(hashes)-1].String()))

	return nil
}

func (g *BlockGenerator) generateBlock() (string, error) {
	hashes, err := g.client.GenerateToAddress(1, g.miningAddress)
	if err != nil {
		return "", err
	}
	if len(hashes) == 0 {
		return "", fmt.Errorf("generated block is empty")
	}
	g.metrics.BlocksMined.Inc()

	return hashes[0].String(), nil
}

func (g *BlockGenerator) checkBalance() (btcutil.Amount, error) {
	balance, err := g.client.GetReceivedByAddress(g.miningAddress)
	if err != nil {
		return 0, fmt.Errorf("failed to check balance: %w", err)
	}
	g.metrics.ReceivedBTC.Set(balance.ToBTC())

	g.logger.Info("current balance", zap.Float64("btc", balance.ToBTC()))

	return balance, nil
}
