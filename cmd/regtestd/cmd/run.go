package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/babylonlabs-io/btc-regtest-harness/config"
	"github.com/babylonlabs-io/btc-regtest-harness/harness"
)

// runGenerator runs a block generator until ctx is canceled, serving its
// metrics on metricsAddr when set.
func runGenerator(ctx context.Context, cfg config.GeneratorConfig, metricsAddr string, logger *zap.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	metrics := harness.NewGeneratorMetrics(reg)

	gen, err := harness.NewBlockGenerator(cfg, logger, metrics)
	if err != nil {
		return err
	}
	defer gen.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return gen.Run(gctx)
	})

	if metricsAddr != "" {
		server := &http.Server{
			Addr:              metricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			logger.Info("serving metrics", zap.String("addr", metricsAddr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}
