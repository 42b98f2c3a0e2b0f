package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/SitePen/webrtc-blog/internal/protocol"
)

// PeerTableView renders the current peer roster.
func PeerTableView(peers []protocol.Peer) string {
	if len(peers) == 0 {
		return MutedStyle.Render("No peers connected")
	}

	rows := make([][]string, len(peers))
	for i, p := range peers {
		rows[i] = []string{fmt.Sprintf("%d", i+1), p.Name, p.ID}
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers("#", "Name", "ID").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		})

	return tbl.Render()
}

// RenderPeerTable prints the roster directly to stdout.
func RenderPeerTable(peers []protocol.Peer) {
	fmt.Println(PeerTableView(peers))
}
