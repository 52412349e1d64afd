package harness

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/babylonlabs-io/btc-regtest-harness/config"
)

type fakeWallet struct {
	wallets      []string
	listErr      error
	createErr    error
	loadErr      error
	addrParams   *chaincfg.Params
	addrErr      error
	generateErrs map[int]error // keyed by steady state call index
	balanceErrAt int           // 1-based balance call that fails, 0 for never

	created      []string
	loaded       []string
	seedCalls    []int64
	singleCalls  int
	balanceCalls int
	shutdowns    int

	onSingle func(call int)
}

var _ WalletClient = (*fakeWallet)(nil)

func (f *fakeWallet) ListWallets() ([]string, error) { return f.wallets, f.listErr }

func (f *fakeWallet) CreateWallet(name string) error {
	f.created = append(f.created, name)
	return f.createErr
}

func (f *fakeWallet) LoadWallet(name string) error {
	f.loaded = append(f.loaded, name)
	return f.loadErr
}

func (f *fakeWallet) GetNewAddress() (btcutil.Address, error) {
	if f.addrErr != nil {
		return nil, f.addrErr
	}
	params := f.addrParams
	if params == nil {
		params = &chaincfg.RegressionNetParams
	}
	return btcutil.NewAddressPubKeyHash(make([]byte, 20), params)
}

func (f *fakeWallet) GenerateToAddress(numBlocks int64, _ btcutil.Address) ([]*chainhash.Hash, error) {
	if numBlocks != 1 {
		f.seedCalls = append(f.seedCalls, numBlocks)
		return hashes(int(numBlocks)), nil
	}

	f.singleCalls++
	call := f.singleCalls
	if f.onSingle != nil {
		defer f.onSingle(call)
	}
	if err, ok := f.generateErrs[call]; ok {
		return nil, err
	}
	return hashes(1), nil
}

func (f *fakeWallet) GetReceivedByAddress(_ btcutil.Address) (btcutil.Amount, error) {
	f.balanceCalls++
	if f.balanceErrAt != 0 && f.balanceCalls == f.balanceErrAt {
		return 0, errors.New("rpc timeout")
	}
	return btcutil.Amount(int64(f.balanceCalls) * 50 * btcutil.SatoshiPerBitcoin), nil
}

func (f *fakeWallet) Shutdown() { f.shutdowns++ }

func hashes(n int) []*chainhash.Hash {
	out := make([]*chainhash.Hash, n)
	for i := range out {
		out[i] = &chainhash.Hash{byte(i + 1)}
	}
	return out
}

type dialRecorder struct {
	wallet *fakeWallet
	dialed []string
}

func (d *dialRecorder) dial(wallet string) (WalletClient, error) {
	d.dialed = append(d.dialed, wallet)
	return d.wallet, nil
}

func testGeneratorConfig() config.GeneratorConfig {
	cfg := config.DefaultGeneratorConfig()
	cfg.BlockTime = time.Millisecond
	return cfg
}

func TestBootstrapCreatesWalletWhenNoneLoaded(t *testing.T) {
	d := &dialRecorder{wallet: &fakeWallet{}}

	g, err := newBlockGenerator(testGeneratorConfig(), d.dial, nil, nil)
	require.NoError(t, err)

	require.Equal(t, []string{config.DefaultWalletName}, d.wallet.created)
	require.Empty(t, d.wallet.loaded)
	require.Equal(t, []string{"", config.DefaultWalletName}, d.dialed)
	require.True(t, g.MiningAddress().IsForNet(&chaincfg.RegressionNetParams))
}

func TestBootstrapListFailureAttemptsCreate(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	d := &dialRecorder{wallet: &fakeWallet{listErr: errors.New("connection refused")}}

	_, err := newBlockGenerator(testGeneratorConfig(), d.dial, zap.New(core), nil)
	require.NoError(t, err)

	require.Equal(t, []string{config.DefaultWalletName}, d.wallet.created)
	require.Equal(t, 1, logs.FilterMessage("could not list wallets, attempting to create a new one").Len())
	require.Zero(t, logs.FilterMessage("node has no loaded wallet").Len())
}

func TestBootstrapReusesExistingWallet(t *testing.T) {
	d := &dialRecorder{wallet: &fakeWallet{
		wallets: []string{"Alice", "Bob"},
		loadErr: &btcjson.RPCError{Code: rpcWalletAlreadyLoaded, Message: "Wallet \"Alice\" is already loaded."},
	}}

	_, err := newBlockGenerator(testGeneratorConfig(), d.dial, nil, nil)
	require.NoError(t, err)

	require.Empty(t, d.wallet.created)
	require.Equal(t, []string{"Alice"}, d.wallet.loaded)
	require.Equal(t, []string{"", "Alice"}, d.dialed)
}

func TestBootstrapLoadsWalletThatExistsOnDisk(t *testing.T) {
	d := &dialRecorder{wallet: &fakeWallet{
		createErr: &btcjson.RPCError{Code: rpcWalletError, Message: "Database already exists."},
	}}

	_, err := newBlockGenerator(testGeneratorConfig(), d.dial, nil, nil)
	require.NoError(t, err)

	require.Equal(t, []string{config.DefaultWalletName}, d.wallet.created)
	require.Equal(t, []string{config.DefaultWalletName}, d.wallet.loaded)
}

func TestBootstrapFailures(t *testing.T) {
	tests := []struct {
		name    string
		wallet  *fakeWallet
		wantErr error
	}{
		{
			name:   "create fails",
			wallet: &fakeWallet{createErr: &btcjson.RPCError{Code: -18, Message: "boom"}},
		},
		{
			name:   "load fails",
			wallet: &fakeWallet{wallets: []string{"w"}, loadErr: errors.New("disk error")},
		},
		{
			name:   "address fails",
			wallet: &fakeWallet{addrErr: errors.New("keypool ran out")},
		},
		{
			name:    "address on wrong network",
			wallet:  &fakeWallet{addrParams: &chaincfg.MainNetParams},
			wantErr: ErrWrongNetwork,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &dialRecorder{wallet: tt.wallet}
			_, err := newBlockGenerator(testGeneratorConfig(), d.dial, nil, nil)
			require.Error(t, err)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestNewBlockGeneratorValidatesConfig(t *testing.T) {
	cfg := testGeneratorConfig()
	cfg.BlockTime = 0
	_, err := NewBlockGenerator(cfg, nil, nil)
	require.Error(t, err)
}

func TestRunStopsBeforeSteadyStateWhenAlreadySignaled(t *testing.T) {
	w := &fakeWallet{}
	g, err := newBlockGenerator(testGeneratorConfig(), (&dialRecorder{wallet: w}).dial, nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, g.Run(ctx))
	require.Equal(t, []int64{initialBlocks}, w.seedCalls)
	require.Zero(t, w.singleCalls)
	// after seeding and on shutdown
	require.Equal(t, 2, w.balanceCalls)
}

func TestRunToleratesGenerationFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := &fakeWallet{
		generateErrs: map[int]error{1: errors.New("transient")},
		onSingle: func(call int) {
			if call == 3 {
				cancel()
			}
		},
	}
	reg := prometheus.NewRegistry()
	metrics := NewGeneratorMetrics(reg)
	g, err := newBlockGenerator(testGeneratorConfig(), (&dialRecorder{wallet: w}).dial, nil, metrics)
	require.NoError(t, err)

	require.NoError(t, g.Run(ctx))

	require.Equal(t, 3, w.singleCalls)
	require.Equal(t, float64(1), testutil.ToFloat64(metrics.GenerationFailures))
	require.Equal(t, float64(initialBlocks+2), testutil.ToFloat64(metrics.BlocksMined))
	// seed, two successful blocks, final
	require.Equal(t, 4, w.balanceCalls)
	require.Equal(t, float64(200), testutil.ToFloat64(metrics.ReceivedBTC))
}

func TestRunNoBlockMinedAfterStopObserved(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := &fakeWallet{onSingle: func(call int) { cancel() }}
	g, err := newBlockGenerator(testGeneratorConfig(), (&dialRecorder{wallet: w}).dial, nil, nil)
	require.NoError(t, err)

	require.NoError(t, g.Run(ctx))
	// the call in flight when the signal was raised completes, nothing after it
	require.Equal(t, 1, w.singleCalls)
}

func TestRunBalanceFailureTerminates(t *testing.T) {
	w := &fakeWallet{balanceErrAt: 3}
	g, err := newBlockGenerator(testGeneratorConfig(), (&dialRecorder{wallet: w}).dial, nil, nil)
	require.NoError(t, err)

	err = g.Run(context.Background())
	require.ErrorContains(t, err, "failed to check balance")
	require.Equal(t, 2, w.singleCalls)
}

func TestRunSeedFailureIsFatal(t *testing.T) {
	w := &seedFailingWallet{fakeWallet: &fakeWallet{}}
	g, err := newBlockGenerator(testGeneratorConfig(), func(string) (WalletClient, error) { return w, nil }, nil, nil)
	require.NoError(t, err)

	err = g.Run(context.Background())
	require.ErrorContains(t, err, "failed to generate initial blocks")
	require.Zero(t, w.balanceCalls)
}

type seedFailingWallet struct {
	*fakeWallet
}

func (s *seedFailingWallet) GenerateToAddress(int64, btcutil.Address) ([]*chainhash.Hash, error) {
	return nil, errors.New("insufficient work")
}

func TestRunReturnsWithinOneInterval(t *testing.T) {
	cfg := testGeneratorConfig()
	cfg.BlockTime = time.Hour

	w := &fakeWallet{}
	g, err := newBlockGenerator(cfg, (&dialRecorder{wallet: w}).dial, nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("generator did not stop")
	}
}

func TestCloseShutsDownClient(t *testing.T) {
	w := &fakeWallet{}
	g, err := newBlockGenerator(testGeneratorConfig(), (&dialRecorder{wallet: w}).dial, nil, nil)
	require.NoError(t, err)

	// the bootstrap client was released already
	require.Equal(t, 1, w.shutdowns)
	g.Close()
	require.Equal(t, 2, w.shutdowns)
}
