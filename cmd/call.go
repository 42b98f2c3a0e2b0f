package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/SitePen/webrtc-blog/internal/config"
	"github.com/SitePen/webrtc-blog/internal/session"
	"github.com/SitePen/webrtc-blog/internal/ui"
)

var callCmd = &cobra.Command{
	Use:     "call",
	Aliases: []string{"c"},
	Short:   "Connect to the signaling server and talk to peers",
	Long: `Connect to the signaling server, watch the peer roster, and drive a
session from the terminal.

Commands once connected:
  peers            show the current roster
  invite <id>      invite a peer
  accept           accept the pending invitation
  reject           decline the pending invitation
  chat <text>      send a chat line over the session channel
  disconnect       end the current session
  quit             shut down

Examples:
  webrtc-blog call --name Alice
  webrtc-blog call --server ws://example.org:8080/ws --name Bob`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(config.Options{
			ConfigFile: flagConfig,
			ServerURL:  flagServer,
			Name:       flagName,
			STUNServer: flagSTUN,
			TURNServer: flagTURN,
			TURNUser:   flagTURNUser,
			TURNPass:   flagTURNPass,
		})
		if err != nil {
			return err
		}
		if cfg.Name == "" {
			return fmt.Errorf("a display name is required (--name)")
		}
		return runCall(cfg)
	},
}

func runCall(cfg *config.Config) error {
	client := session.New(cfg, cfg.Name)
	defer client.Close()

	client.On(session.EventPeers, func(ev session.Event) {
		fmt.Println()
		ui.RenderPeerTable(ev.Peers)
	})
	client.On(session.EventOffer, func(ev session.Event) {
		name := ev.Peer.Name
		if name == "" {
			name = ev.Peer.ID
		}
		ui.PrintInfof("%s %s is calling, type accept or reject", ui.IconCall, name)
	})
	client.On(session.EventConnected, func(ev session.Event) {
		ui.PrintSuccessf("connected to %s", ev.Peer.Name)
	})
	client.On(session.EventRejected, func(ev session.Event) {
		ui.PrintWarning(fmt.Sprintf("%s declined the call", ev.Peer.Name))
	})
	client.On(session.EventDisconnected, func(ev session.Event) {
		ui.PrintInfof("session with %s ended (%s)", ev.Peer.Name, ev.Text)
	})
	client.On(session.EventChat, func(ev session.Event) {
		fmt.Printf("%s %s: %s\n", ui.IconChat, ui.ChatStyle.Render(ev.Peer.Name), ev.Text)
	})
	client.On(session.EventReset, func(ev session.Event) {
		ui.PrintWarning("server restarted, starting over")
	})

	// The terminal stands in for the camera: the session layer only needs
	// to know a capability is open.
	client.OpenMedia()

	stopSpinner := ui.RunConnectionSpinner("Connecting to server...")
	err := client.Connect()
	stopSpinner()
	if err != nil {
		return err
	}
	ui.PrintSuccess("connected, waiting for peers")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		verb, rest, _ := strings.Cut(line, " ")

		var err error
		switch verb {
		case "peers":
			ui.RenderPeerTable(client.Peers())
		case "invite":
			if rest == "" {
				ui.PrintWarning("usage: invite <id>")
				continue
			}
			err = client.Invite(strings.TrimSpace(rest))
		case "accept":
			err = client.Accept()
		case "reject":
			err = client.Reject()
		case "chat":
			err = client.SendChat(rest)
		case "disconnect":
			err = client.Disconnect()
		case "quit", "exit":
			return client.Close()
		default:
			ui.PrintWarning("unknown command: " + verb)
		}
		if err != nil {
			ui.PrintError(err.Error())
		}
	}
	return scanner.Err()
}

func init() {
	callCmd.Flags().StringVar(&flagServer, "server", "", "signaling server websocket URL")
	callCmd.Flags().StringVar(&flagName, "name", "", "display name announced to peers")
	callCmd.Flags().StringVar(&flagSTUN, "stun", "", "STUN server URL")
	callCmd.Flags().StringVar(&flagTURN, "turn", "", "TURN server URL")
	callCmd.Flags().StringVar(&flagTURNUser, "turn-user", "", "TURN username")
	callCmd.Flags().StringVar(&flagTURNPass, "turn-pass", "", "TURN password")
	rootCmd.AddCommand(callCmd)
}
