package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/finobytes/maxreward/internal/config"
	"github.com/finobytes/maxreward/internal/server"
	"github.com/finobytes/maxreward/pkg/metrics"
)

// serveCommand runs the HTTP API.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr      string
		noMetrics bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve normalized trees over HTTP",
		Long: `Serve the normalization pipeline over HTTP.

Endpoints:
  GET  /api/v1/members/{id}/tree    fetch and normalize a member's tree
  POST /api/v1/tree/normalize       normalize a payload sent in the body
  GET  /api/v1/snapshots            list recorded snapshots
  GET  /api/v1/snapshots/{id}       fetch one snapshot
  GET  /healthz                     liveness
  GET  /metrics                     Prometheus metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := c.config()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			runner, err := c.newRunner(ctx, runnerOpts{})
			if err != nil {
				return err
			}
			defer runner.Close()

			if cfg.API.BaseURL == "" {
				printWarning("No upstream API configured; only POST /api/v1/tree/normalize will work")
				printNextStep("Set api.base_url in", configPathHint(c.ConfigPath))
			}

			var m *metrics.Metrics
			if !noMetrics {
				m = metrics.New()
				m.Register()
			}

			srv := server.New(runner, m, c.Logger)
			return srv.Run(ctx, cfg.Server, func(bound string) {
				printSuccess("Listening on %s", StyleLink.Render(listenURL(bound)))
				printDetail("cache: %s, snapshots: %s", cfg.Cache.Backend, cfg.Store.Backend)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr and $"+config.EnvAddr+")")
	cmd.Flags().BoolVar(&noMetrics, "no-metrics", false, "do not expose /metrics")
	return cmd
}

// listenURL turns a bound address into something a browser accepts.
func listenURL(addr string) string {
	if strings.HasPrefix(addr, "[::]:") {
		addr = "localhost" + strings.TrimPrefix(addr, "[::]")
	} else if strings.HasPrefix(addr, "0.0.0.0:") {
		addr = "localhost" + strings.TrimPrefix(addr, "0.0.0.0")
	}
	return "http://" + addr
}
