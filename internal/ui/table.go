package ui

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/Ajaxkicker/WatchTogether/internal/protocol"
)

// RenderParticipants prints the room roster as a table, in join order.
func RenderParticipants(participants []protocol.Participant, selfID string) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.Style().Color.Header = text.Colors{text.FgHiMagenta, text.Bold}
	t.AppendHeader(table.Row{"#", "Name", "Mic", "Role"})

	for i, p := range participants {
		name := p.Username
		if p.SocketID == selfID {
			name += " (you)"
		}
		mic := IconMicOff
		if !p.Muted {
			mic = IconMicOn
		}
		role := "guest"
		if p.IsHost {
			role = IconHost + " host"
		}
		t.AppendRow(table.Row{i + 1, name, mic, role})
	}

	t.Render()
}

// SessionSummary captures what happened during one room session.
type SessionSummary struct {
	RoomCode     string
	Username     string
	Duration     string
	Messages     int
	Participants int
	HostedShare  bool
}

// RenderSessionSummary prints the end-of-session table.
func RenderSessionSummary(summary SessionSummary) {
	shared := "no"
	if summary.HostedShare {
		shared = "yes"
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.SetTitle("📊 Session Summary")
	t.AppendRows([]table.Row{
		{"Room", summary.RoomCode},
		{"Username", summary.Username},
		{"Duration", summary.Duration},
		{"Chat Messages", summary.Messages},
		{"Participants Seen", summary.Participants},
		{"Hosted a Share", shared},
	})

	fmt.Println()
	t.Render()
}

// RoomInfo is the post-create banner with the code to hand out.
type RoomInfo struct {
	RoomCode string
}

func (r *RoomInfo) View() string {
	content := fmt.Sprintf("%s Room Created!\n\n%s Room Code:  %s\n\nShare this code with everyone who should join.",
		IconSuccess,
		IconCopy, BoldStyle.Foreground(Primary).Render(r.RoomCode),
	)
	return SuccessBoxStyle.Render(content)
}

func RenderRoomInfo(roomCode string) {
	info := &RoomInfo{RoomCode: roomCode}
	fmt.Println(info.View())
}
