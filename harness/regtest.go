package harness

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/btcsuite/btcd/rpcclient"
	"go.uber.org/zap"

	"github.com/babylonlabs-io/btc-regtest-harness/config"
	"github.com/babylonlabs-io/btc-regtest-harness/container"
)

// credentials configured in the default compose template
const (
	rpcUser = config.DefaultBtcNodeRpcUser
	rpcPass = config.DefaultBtcNodeRpcPass
)

var (
	ErrNotRendered = errors.New("compose file has not been rendered")

	readinessInitialDelay = 250 * time.Millisecond
	readinessMaxDelay     = 5 * time.Second
)

// nodeRunner starts and stops the containerized node.
type nodeRunner interface {
	Up(ctx context.Context) error
	Down(ctx context.Context) error
}

// Regtest is a disposable bitcoind regtest node running in a container. The
// rendered compose file lives in a temporary directory owned by the instance
// and is removed together with it by Close.
type Regtest struct {
	cfg          config.HarnessConfig
	logger       *zap.Logger
	tempDir      string
	templatePath string
	composeFile  string
	rpcPort      int

	mu     sync.Mutex
	runner nodeRunner
	closed bool

	// ping checks whether the node answers RPC requests.
	ping func() error
}

// New allocates the temporary directory and RPC port of a regtest node. The
// node is not started.
func New(cfg config.HarnessConfig, logger *zap.Logger) (*Regtest, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	tempDir, err := os.MkdirTemp("", "btc-regtest-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}

	port := container.AllocateUniquePort()

	templatePath := cfg.TemplatePath
	if templatePath == "" {
		templatePath = filepath.Join(tempDir, templateFileName)
		if err := os.WriteFile(templatePath, defaultComposeTemplate, 0o644); err != nil {
			_ = os.RemoveAll(tempDir)
			return nil, fmt.Errorf("failed to write default compose template: %w", err)
		}
	}

	r := &Regtest{
		cfg:          cfg,
		logger:       logger.With(zap.String("component", "bitcoin_regtest"), zap.Int("rpc_port", port)),
		tempDir:      tempDir,
		templatePath: templatePath,
		composeFile:  filepath.Join(tempDir, fmt.Sprintf("docker-compose-%d.yml", port)),
		rpcPort:      port,
	}
	r.ping = r.pingRPC

	if cfg.Backend == config.BackendCompose {
		r.runner = container.NewCompose(cfg.ContainerTool, r.composeFile, cfg.FailFast)
	}

	return r, nil
}

// NewForTest creates and starts a regtest node that is torn down when the
// test finishes.
func NewForTest(t testing.TB, cfg config.HarnessConfig) *Regtest {
	t.Helper()

	r, err := New(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to create regtest harness: %v", err)
	}
	t.Cleanup(r.Close)

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("failed to start regtest node: %v", err)
	}

	return r
}

// RPCPort returns the host port the node RPC is published on.
func (r *Regtest) RPCPort() int {
	return r.rpcPort
}

// RPCURL returns the node RPC endpoint.
func (r *Regtest) RPCURL() string {
	return fmt.Sprintf("http://127.0.0.1:%d", r.rpcPort)
}

// ComposeFile returns the path of the rendered compose file.
func (r *Regtest) ComposeFile() string {
	return r.composeFile
}

// GeneratorConfig returns a block generator config pointing at this node.
func (r *Regtest) GeneratorConfig(blockTime time.Duration) config.GeneratorConfig {
	return config.GeneratorConfig{
		BTC: config.BTCConfig{
			RPCURL:     r.RPCURL(),
			Username:   rpcUser,
			Password:   rpcPass,
			WalletName: config.DefaultWalletName,
		},
		BlockTime: blockTime,
	}
}

// RenderComposeFile writes the compose template with the RPC port filled in.
func (r *Regtest) RenderComposeFile() error {
	return RenderTemplateFile(r.templatePath, r.composeFile, r.rpcPort)
}

// Start brings the node up and blocks until its RPC answers or
// SettleTimeout passes.
func (r *Regtest) Start(ctx context.Context) error {
	runner, err := r.nodeRunner()
	if err != nil {
		return err
	}

	if r.cfg.Backend == config.BackendCompose {
		if err := r.RenderComposeFile(); err != nil {
			return err
		}
	}

	r.logger.Info("starting bitcoind", zap.String("backend", r.cfg.Backend))
	if err := runner.Up(ctx); err != nil {
		return fmt.Errorf("failed to start bitcoind: %w", err)
	}

	return r.waitForRPC(ctx)
}

// Stop tears the node down and removes its volumes. Stopping an already
// stopped node is a no-op on the container side.
func (r *Regtest) Stop(ctx context.Context) error {
	r.mu.Lock()
	runner := r.runner
	r.mu.Unlock()

	if r.cfg.Backend == config.BackendCompose {
		if _, err := os.Stat(r.composeFile); err != nil {
			if os.IsNotExist(err) {
				return ErrNotRendered
			}
			return err
		}
	}
	if runner == nil {
		// dockertest backend that was never started
		return nil
	}

	r.logger.Info("stopping bitcoind")
	if err := runner.Down(ctx); err != nil {
		return fmt.Errorf("failed to stop bitcoind: %w", err)
	}

	return nil
}

// Close stops the node and removes the temporary directory. Failures are
// logged since there is nobody left to return them to.
func (r *Regtest) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()

	if err := r.Stop(context.Background()); err != nil && !errors.Is(err, ErrNotRendered) {
		r.logger.Error("failed to stop bitcoin regtest", zap.Error(err))
	}

	if err := os.RemoveAll(r.tempDir); err != nil {
		r.logger.Error("failed to remove temp dir", zap.String("dir", r.tempDir), zap.Error(err))
	}
}

// RPCClient returns a client for the node authenticated with the template
// credentials. The caller owns it and must call Shutdown.
func (r *Regtest) RPCClient() (*rpcclient.Client, error) {
	client, err := rpcclient.New(&rpcclient.ConnConfig{
		Host:         fmt.Sprintf("127.0.0.1:%d", r.rpcPort),
		User:         rpcUser,
		Pass:         rpcPass,
		Params:       regtestParams.Name,
		DisableTLS:   true,
		HTTPPostMode: true,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create rpc client: %w", err)
	}

	return client, nil
}

func (r *Regtest) nodeRunner() (nodeRunner, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.runner != nil {
		return r.runner, nil
	}

	image := container.NewImageConfig(r.cfg.BitcoindRepository, r.cfg.BitcoindVersion)
	m, err := container.NewManager(image)
	if err != nil {
		return nil, err
	}
	r.runner = container.NewBitcoindNode(m, filepath.Base(r.tempDir), r.rpcPort, rpcUser, rpcPass)

	return r.runner, nil
}

func (r *Regtest) waitForRPC(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.SettleTimeout)
	defer cancel()

	var lastErr error
	err := retry.Do(
		func() error {
			lastErr = r.ping()
			return lastErr
		},
		retry.Context(ctx),
		retry.Attempts(0),
		retry.Delay(readinessInitialDelay),
		retry.MaxDelay(readinessMaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			r.logger.Debug("bitcoind rpc not ready", zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)
	if err != nil {
		return fmt.Errorf("bitcoind rpc not ready within %s: %w (last error: %v)", r.cfg.SettleTimeout, err, lastErr)
	}

	r.logger.Info("bitcoind rpc is ready", zap.String("url", r.RPCURL()))
	return nil
}

func (r *Regtest) pingRPC() error {
	client, err := r.RPCClient()
	if err != nil {
		return err
	}
	defer client.Shutdown()

	_, err = client.GetBlockCount()
	return err
}
