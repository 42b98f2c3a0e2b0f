package cmd

import (
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/SitePen/webrtc-blog/internal/ui"
	"github.com/SitePen/webrtc-blog/internal/version"
)

var (
	flagConfig   string
	flagServer   string
	flagName     string
	flagSTUN     string
	flagTURN     string
	flagTURNUser string
	flagTURNPass string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "webrtc-blog",
	Short:   "Peer-to-peer video chat signaling: a relay server and a call client",
	Long:    `webrtc-blog carries the signaling half of a WebRTC call: a relay server that tracks connected parties and routes negotiation messages, and a client that discovers peers, negotiates sessions and chats over the resulting data channel.`,
	Version: version.Version,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		<-sig
		os.Exit(0)
	}()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to a YAML config file")
}
