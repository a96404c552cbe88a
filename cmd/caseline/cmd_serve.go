package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"caseline/internal/logging"
	"caseline/internal/reviewmcp"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

var serveFlags struct {
	metricsAddr string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the review MCP server over stdio",
	Long: `Starts an MCP server over stdin/stdout exposing the review session as
tools (open_review, query_case, decide, add_note, review_status,
finalize_review). With --metrics-addr, pipeline metrics are also served
on /metrics.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.metricsAddr, "metrics-addr", "", "Optional listen address for Prometheus /metrics (e.g. :9109)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	log := logging.New("serve")

	if serveFlags.metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			log.Info("metrics listening", "addr", serveFlags.metricsAddr)
			if err := http.ListenAndServe(serveFlags.metricsAddr, mux); err != nil {
				log.Error("metrics server stopped", "err", err)
			}
		}()
	}

	srv := reviewmcp.NewServer(st, buildRunner(st, cfg))
	log.Info("starting caseline MCP server over stdio")
	return srv.MCPServer.Run(cmd.Context(), &sdkmcp.StdioTransport{})
}
