package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/lumenlend/tvlscan/internal/model"
	"github.com/lumenlend/tvlscan/internal/observability"
	"github.com/lumenlend/tvlscan/internal/pipeline"
	"github.com/lumenlend/tvlscan/internal/progress"
	"github.com/lumenlend/tvlscan/internal/resilience"
	"github.com/lumenlend/tvlscan/pkg/lendmarket"
	"github.com/lumenlend/tvlscan/pkg/suirpc"
)

var (
	aggregateFormat      string
	aggregateMaxPages    int
	aggregateQuiet       bool
	aggregateMetricsAddr string
)

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Run the TVL aggregation pipeline and print the report",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if aggregateMaxPages > 0 {
			cfg.Discovery.MaxPages = aggregateMaxPages
		}

		rpcOpts := []suirpc.Option{}
		if cfg.RPC.MaxRPS > 0 {
			rpcOpts = append(rpcOpts, suirpc.WithRateLimit(cfg.RPC.MaxRPS, cfg.RPC.Burst))
		}
		if cfg.RPC.BreakerEnabled {
			rpcOpts = append(rpcOpts, suirpc.WithCircuitBreaker(resilience.DefaultCircuitBreakerConfig()))
		}
		rpc := suirpc.NewClient(cfg.RPC.Endpoint, rpcOpts...)
		market := lendmarket.NewClient(cfg.Market.DataURL)

		stream := progress.NewStream()
		if !aggregateQuiet {
			stream.Subscribe(func(ev progress.Event) {
				fmt.Printf("%s  %s\n", ev.Time.Format("15:04:05"), ev.Message)
			})
		}

		metrics := observability.NewMetrics("")
		if aggregateMetricsAddr != "" {
			srv := &http.Server{Addr: aggregateMetricsAddr, Handler: observability.Handler()}
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					zap.L().Warn("metrics server stopped", zap.Error(err))
				}
			}()
			defer srv.Close()
		}

		runner := pipeline.New(cfg, rpc, market,
			pipeline.WithStream(stream),
			pipeline.WithMetrics(metrics),
		)

		report, err := runner.Run(ctx)
		if err != nil {
			return eris.Wrap(err, "aggregate")
		}

		return printReport(report, aggregateFormat)
	},
}

func init() {
	aggregateCmd.Flags().StringVar(&aggregateFormat, "format", "text", "output format: text, json, or yaml")
	aggregateCmd.Flags().IntVar(&aggregateMaxPages, "max-pages", 0, "override the discovery page ceiling")
	aggregateCmd.Flags().BoolVar(&aggregateQuiet, "quiet", false, "suppress live progress lines")
	aggregateCmd.Flags().StringVar(&aggregateMetricsAddr, "metrics-addr", "", "expose Prometheus metrics on this address (e.g. :9090)")
	rootCmd.AddCommand(aggregateCmd)
}

func printReport(report *model.TVLReport, format string) error {
	switch format {
	case "json":
		out, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return eris.Wrap(err, "marshal report")
		}
		fmt.Println(string(out))
	case "yaml":
		out, err := yaml.Marshal(report)
		if err != nil {
			return eris.Wrap(err, "marshal report")
		}
		fmt.Print(string(out))
	case "text":
		fmt.Print(pipeline.FormatText(report))
	default:
		return eris.Errorf("unknown format %q", format)
	}
	return nil
}
