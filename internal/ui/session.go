package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Ajaxkicker/WatchTogether/internal/client"
	"github.com/Ajaxkicker/WatchTogether/internal/protocol"
)

// Messages pushed into the program by the session loop.
type (
	// RefreshMsg signals that the room projection changed and the view
	// should re-render from it.
	RefreshMsg struct{}
	// StatusMsg replaces the transient status line.
	StatusMsg string
	// ErrorMsg surfaces a server-rejected intent.
	ErrorMsg string
	// MediaMsg updates the inbound media indicator while the host shares.
	MediaMsg string
	// DisconnectedMsg ends the session: the server connection is gone.
	DisconnectedMsg struct{}
)

// Intents emitted by keystrokes, consumed by the session loop.
type (
	ChatIntent        struct{ Text string }
	MicToggleIntent   struct{}
	ShareToggleIntent struct{}
	// QuitIntent tells the session loop to stop draining intents.
	QuitIntent struct{}
)

const maxChatLines = 200

// SessionModel is the Bubble Tea model for a live room session: roster,
// chat log, share status and the chat input.
type SessionModel struct {
	state *client.RoomState

	input   textinput.Model
	width   int
	height  int
	status  string
	errText string
	media   string

	intents  chan any
	quitting bool
}

func NewSessionModel(state *client.RoomState) *SessionModel {
	input := textinput.New()
	input.Placeholder = "Type a message..."
	input.CharLimit = 500
	input.Focus()

	return &SessionModel{
		state:   state,
		input:   input,
		width:   80,
		height:  24,
		intents: make(chan any, 16),
	}
}

// Intents returns the keystroke intent stream the session loop drains.
func (m *SessionModel) Intents() <-chan any {
	return m.intents
}

func (m *SessionModel) emit(intent any) {
	select {
	case m.intents <- intent:
	default:
	}
}

func (m *SessionModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *SessionModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			m.emit(QuitIntent{})
			return m, tea.Quit
		case "enter":
			text := strings.TrimSpace(m.input.Value())
			if text != "" {
				m.emit(ChatIntent{Text: text})
				m.input.Reset()
			}
			return m, nil
		case "ctrl+o":
			m.emit(MicToggleIntent{})
			return m, nil
		case "ctrl+s":
			if m.state.IsHost() {
				m.emit(ShareToggleIntent{})
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(20, msg.Width-8)
		return m, nil

	case RefreshMsg:
		return m, nil

	case StatusMsg:
		m.status = string(msg)
		m.errText = ""
		return m, nil

	case ErrorMsg:
		m.errText = string(msg)
		return m, nil

	case MediaMsg:
		m.media = string(msg)
		return m, nil

	case DisconnectedMsg:
		m.quitting = true
		m.emit(QuitIntent{})
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *SessionModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	header := HeaderStyle.Render(fmt.Sprintf("%s WatchTogether — Room %s", IconScreen, m.state.RoomCode()))
	b.WriteString(header + "\n")

	b.WriteString(m.viewParticipants())
	b.WriteString("\n")
	b.WriteString(m.viewStatus())
	b.WriteString("\n\n")
	b.WriteString(m.viewChat())
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n" + m.viewFooter())

	return b.String()
}

func (m *SessionModel) viewParticipants() string {
	var lines []string
	for _, p := range m.state.Participants() {
		mic := IconMicOff
		if !p.Muted {
			mic = IconMicOn
		}
		name := p.Username
		if p.SocketID == m.state.SelfID() {
			name += " (you)"
		}
		line := fmt.Sprintf("%s %s %s", IconPeer, mic, name)
		if p.IsHost {
			line += " " + HostStyle.Render(IconHost+" host")
		}
		lines = append(lines, line)
	}
	return PanelStyle.Render(strings.Join(lines, "\n"))
}

func (m *SessionModel) viewStatus() string {
	if m.errText != "" {
		return ErrorStyle.Render(fmt.Sprintf("%s %s", IconError, m.errText))
	}

	switch {
	case m.state.IsHost() && m.state.IsHostSharing():
		return SuccessStyle.Render(fmt.Sprintf("%s You are sharing your screen", IconScreen))
	case m.state.IsHostSharing():
		line := fmt.Sprintf("%s Host is sharing", IconScreen)
		if m.media != "" {
			line += MutedStyle.Render("  " + m.media)
		}
		return line
	case m.status != "":
		return MutedStyle.Render(m.status)
	default:
		return MutedStyle.Render("No active share")
	}
}

func (m *SessionModel) viewChat() string {
	messages := m.state.Messages()
	if len(messages) > maxChatLines {
		messages = messages[len(messages)-maxChatLines:]
	}

	// Show only what fits between the fixed chrome and the input line.
	visible := max(3, m.height-len(m.state.Participants())-12)
	if len(messages) > visible {
		messages = messages[len(messages)-visible:]
	}

	if len(messages) == 0 {
		return MutedStyle.Render(fmt.Sprintf("%s No messages yet", IconChat))
	}

	var lines []string
	for _, msg := range messages {
		lines = append(lines, renderChatLine(msg))
	}
	return strings.Join(lines, "\n")
}

func renderChatLine(msg protocol.ChatMessage) string {
	if msg.Kind == protocol.ChatKindSystem {
		return SystemChatStyle.Render("• " + msg.Message)
	}
	return fmt.Sprintf("%s %s", ChatNameStyle.Render(msg.Username+":"), msg.Message)
}

func (m *SessionModel) viewFooter() string {
	help := "enter: send · ctrl+o: mic · esc: quit"
	if m.state.IsHost() {
		help = "enter: send · ctrl+o: mic · ctrl+s: share · esc: quit"
	}
	return FooterStyle.Render(help)
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
