/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ssargent/marinedb/pkg/api"
	"github.com/ssargent/marinedb/pkg/marine"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		port   int
		bind   string
		apiKey string
	)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the REST API server",
		Long: `Start the MarineDB REST API server.

Mutating requests must carry an X-Principal header naming the researcher.
When an API key is configured every /api/v1 request must also carry X-API-Key.

Examples:
  marine serve
  marine serve --port 9200 --bind 0.0.0.0 --driver pebble`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			if cmd.Flags().Changed("bind") {
				cfg.Bind = bind
			}
			if cmd.Flags().Changed("api-key") {
				cfg.Security.APIKey = apiKey
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return a.withRegistry(func(reg *marine.Registry) error {
				starter := a.container.GetServerFactory().CreateServerStarter()
				return starter.StartServer(ctx, reg, api.ServerConfig{
					Port:   cfg.Port,
					Bind:   cfg.Bind,
					APIKey: cfg.Security.APIKey,
				}, a.logger)
			})
		},
	}

	serveCmd.Flags().IntVarP(&port, "port", "p", 8080, "Port to listen on")
	serveCmd.Flags().StringVar(&bind, "bind", "127.0.0.1", "Address to bind")
	serveCmd.Flags().StringVar(&apiKey, "api-key", "", "API key required in X-API-Key (overrides config)")
	return serveCmd
}
