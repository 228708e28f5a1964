package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"submux/internal/broker"
	"submux/internal/config/schema"
	coreerrors "submux/internal/core/errors"
	corelog "submux/internal/core/log"
	"submux/internal/core/metrics"
	"submux/internal/pubsub"
)

const shutdownTimeout = 5 * time.Second

func newListenCommand(opts *globalOptions) *cobra.Command {
	var noMetrics bool

	cmd := &cobra.Command{
		Use:   "listen <channel>...",
		Short: "Subscribe to channels and print every message",
		Long: `Subscribe to one or more channels through a single shared subscription
and print each message as "<channel><TAB><payload>" until interrupted.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			if noMetrics {
				cfg.Metrics.Enabled = false
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if cfg.Broker.Type == schema.BrokerRedis {
				corelog.Infof("connecting to redis %s", cfg.Broker.Redis)
			}
			b, err := broker.NewBroker(ctx, BrokerConfig(cfg))
			if err != nil {
				return err
			}
			defer b.Close()

			if eb, ok := b.(*broker.EmbeddedBroker); ok {
				fmt.Fprintf(cmd.ErrOrStderr(), "embedded redis on %s\n", eb.Addr())
			}

			return listen(ctx, cfg, b, args, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&noMetrics, "no-metrics", false, "Disable the metrics endpoint")
	return cmd
}

// listen 在 source 上建立复用订阅，直到 ctx 结束或订阅被关闭
func listen(ctx context.Context, cfg *schema.Root, source pubsub.Source, channels []string, out io.Writer) error {
	reg := prometheus.NewRegistry()
	var observer pubsub.Observer
	if cfg.Metrics.Enabled {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		observer = metrics.NewCollector(reg, cfg.Metrics.Namespace)
	}

	mx, err := pubsub.New(ctx, source, MuxOptions(cfg, observer)...)
	if err != nil {
		return err
	}
	defer mx.Close()

	var mu sync.Mutex
	printer := pubsub.NewNamedListener("stdout", func(channel, message []byte) error {
		mu.Lock()
		defer mu.Unlock()
		_, err := fmt.Fprintf(out, "%s\t%s\n", channel, message)
		return err
	})
	if _, err := mx.SubscribeAll(ctx, printer, channels...); err != nil {
		return err
	}
	corelog.Infof("listening on %d channels", len(channels))

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Metrics.Enabled {
		ln, err := net.Listen("tcp", cfg.Metrics.Listen)
		if err != nil {
			return coreerrors.Wrapf(err, coreerrors.CodeUnavailable, "listen on %s failed", cfg.Metrics.Listen)
		}
		srv := &http.Server{
			Handler:           metricsHandler(reg, cfg.Metrics.Path, mx),
			ReadHeaderTimeout: 5 * time.Second,
		}
		corelog.Infof("metrics available at http://%s%s", ln.Addr(), cfg.Metrics.Path)

		g.Go(func() error {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return coreerrors.Wrap(err, coreerrors.CodeUnavailable, "metrics server failed")
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case <-mx.Done():
			if ctx.Err() != nil {
				return nil
			}
			return coreerrors.New(coreerrors.CodeUnavailable, "subscription supervisor stopped")
		}
	})

	err = g.Wait()
	corelog.Infof("shutting down after %d subscriptions", mx.ResubscribeCount())
	return err
}

// metricsHandler 指标与就绪探针
func metricsHandler(reg *prometheus.Registry, path string, m *pubsub.Multiplexer) http.Handler {
	router := mux.NewRouter()
	router.Handle(path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})).Methods(http.MethodGet)
	router.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if !m.Ready() {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, "ok\n")
	}).Methods(http.MethodGet)
	return router
}
