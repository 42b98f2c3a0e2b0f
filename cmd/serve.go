package cmd

import (
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/SitePen/webrtc-blog/internal/config"
	"github.com/SitePen/webrtc-blog/internal/relay"
)

var flagListen string

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"server"},
	Short:   "Run the signaling server",
	Long: `Run the signaling server: accepts websocket connections on /ws,
tracks identified peers, and routes negotiation messages between them.

Examples:
  webrtc-blog serve
  webrtc-blog serve --listen :9000`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(config.Options{
			ConfigFile: flagConfig,
			ListenAddr: flagListen,
		})
		if err != nil {
			return err
		}

		server := relay.NewServer(slog.Default())
		slog.Info("signaling server listening", "addr", cfg.ListenAddr, "version", server.Version())
		return http.ListenAndServe(cfg.ListenAddr, server.Handler())
	},
}

func init() {
	serveCmd.Flags().StringVar(&flagListen, "listen", "", "listen address (default :8080)")
	rootCmd.AddCommand(serveCmd)
}
