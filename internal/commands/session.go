package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pion/webrtc/v4"

	"github.com/Ajaxkicker/WatchTogether/internal/client"
	"github.com/Ajaxkicker/WatchTogether/internal/config"
	"github.com/Ajaxkicker/WatchTogether/internal/logging"
	"github.com/Ajaxkicker/WatchTogether/internal/protocol"
	"github.com/Ajaxkicker/WatchTogether/internal/rtc"
	"github.com/Ajaxkicker/WatchTogether/internal/ui"
)

// sessionContext bundles everything one live room session needs: the
// websocket client, the typed event stream, the room projection and the peer
// orchestrator.
type sessionContext struct {
	cfg     *config.Client
	client  *client.Client
	handler *client.Handler
	state   *client.RoomState
	orch    *rtc.Orchestrator

	peakParticipants atomic.Int64
	hostedShare      atomic.Bool
}

func newSessionContext(cfg *config.Client) (*sessionContext, error) {
	c := client.NewClient(cfg.WebSocketURL())
	if err := c.Connect(); err != nil {
		return nil, err
	}

	h := client.NewHandler(c)
	go h.Start()

	return &sessionContext{
		cfg:     cfg,
		client:  c,
		handler: h,
		state:   client.NewRoomState(),
		orch:    rtc.NewOrchestrator(cfg, c, logging.NewQuiet()),
	}, nil
}

func (s *sessionContext) close() {
	s.orch.Close()
	s.client.Close()
}

// runSession joins the room and runs the interactive loop until the user
// quits or the connection drops.
func runSession(cfg *config.Client, code, username string) error {
	stopSpinner := ui.RunConnectionSpinner("Connecting to server...")
	defer stopSpinner()
	ctx, err := newSessionContext(cfg)
	if err != nil {
		return err
	}
	defer ctx.close()
	stopSpinner()

	joined, err := ctx.joinRoom(code, username)
	if err != nil {
		return err
	}
	ctx.state.ApplyRoomJoined(joined)
	ctx.peakParticipants.Store(int64(len(joined.Participants)))

	fmt.Println()
	ui.RenderParticipants(joined.Participants, ctx.state.SelfID())

	model := ui.NewSessionModel(ctx.state)
	program := tea.NewProgram(model, tea.WithAltScreen())

	ctx.orch.OnRemoteTrack(func(remoteID string, track *webrtc.TrackRemote) {
		go drainTrack(program, track)
	})
	ctx.orch.OnRemoteCleared(func() {
		program.Send(ui.MediaMsg(""))
	})
	ctx.orch.OnShareEnded(func() {
		ctx.client.SendShareStopped()
		ctx.state.ApplySharing(false)
		program.Send(ui.RefreshMsg{})
	})

	// A share may already be running when we arrive.
	if joined.IsHostSharing && !joined.IsHost {
		ctx.orch.HandleShareStarted(joined.HostSocketID)
	}

	start := time.Now()
	go ctx.eventLoop(program)
	go ctx.intentLoop(program, model)

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("run session ui: %w", err)
	}

	ctx.client.LeaveRoom()

	ui.RenderSessionSummary(ui.SessionSummary{
		RoomCode:     code,
		Username:     username,
		Duration:     formatDuration(time.Since(start)),
		Messages:     len(ctx.state.Messages()),
		Participants: int(ctx.peakParticipants.Load()),
		HostedShare:  ctx.hostedShare.Load(),
	})
	return nil
}

// joinRoom waits for the server's session id, sends the join intent, and
// waits for the room snapshot.
func (s *sessionContext) joinRoom(code, username string) (*protocol.RoomJoined, error) {
	timeout := time.After(15 * time.Second)
	for {
		select {
		case ev, ok := <-s.handler.Events():
			if !ok {
				return nil, errors.New("connection closed before joining the room")
			}
			switch ev := ev.(type) {
			case *protocol.SessionInfo:
				s.state.SetSelf(ev.SocketID)
				s.orch.SetSelfID(ev.SocketID)
				s.client.JoinRoom(code, username)
			case *protocol.RoomJoined:
				return ev, nil
			case *protocol.ErrorInfo:
				return nil, errors.New(ev.Message)
			}

		case <-timeout:
			return nil, errors.New("timed out joining the room")
		}
	}
}

// eventLoop applies every server event to the projection and forwards the
// membership, share and signaling changes to the orchestrator.
func (s *sessionContext) eventLoop(program *tea.Program) {
	for ev := range s.handler.Events() {
		switch ev := ev.(type) {
		case *protocol.UserJoined:
			s.state.ApplyUserJoined(ev)
			s.orch.HandleUserJoined(ev.SocketID)
			if n := int64(len(s.state.Participants())); n > s.peakParticipants.Load() {
				s.peakParticipants.Store(n)
			}

		case *protocol.UserLeft:
			s.state.ApplyUserLeft(ev)
			s.orch.HandleUserLeft(ev.SocketID)

		case *protocol.Signal:
			var data protocol.SignalData
			if err := json.Unmarshal(ev.Signal, &data); err == nil {
				s.orch.HandleSignal(ev.From, data)
			}
			continue

		case *protocol.ChatMessage:
			s.state.AppendMessage(*ev)

		case client.HostStartedSharing:
			s.state.ApplySharing(true)
			if !s.state.IsHost() {
				s.orch.HandleShareStarted(s.state.HostID())
			}

		case client.HostStoppedSharing:
			s.state.ApplySharing(false)
			if !s.state.IsHost() {
				s.orch.HandleShareStopped()
			}

		case *protocol.MicStatusUpdate:
			s.state.ApplyMicUpdate(ev)

		case *protocol.NewHost:
			s.state.ApplyNewHost(ev)
			// Any link to the departed host is dead weight now.
			s.orch.HandleHostChanged()

		case *protocol.ErrorInfo:
			program.Send(ui.ErrorMsg(ev.Message))
			continue
		}
		program.Send(ui.RefreshMsg{})
	}
	program.Send(ui.DisconnectedMsg{})
}

// intentLoop turns keystroke intents into server messages and orchestrator
// calls.
func (s *sessionContext) intentLoop(program *tea.Program, model *ui.SessionModel) {
	micMuted := true
	for intent := range model.Intents() {
		switch intent := intent.(type) {
		case ui.ChatIntent:
			s.client.SendChat(intent.Text)

		case ui.MicToggleIntent:
			if micMuted {
				if err := s.orch.EnableMic(); err != nil {
					program.Send(ui.ErrorMsg("microphone unavailable"))
					continue
				}
			} else {
				s.orch.MuteMic()
			}
			micMuted = !micMuted
			s.client.SendMicStatus(micMuted)
			s.state.SetSelfMuted(micMuted)
			program.Send(ui.RefreshMsg{})

		case ui.ShareToggleIntent:
			s.toggleShare(program)

		case ui.QuitIntent:
			return
		}
	}
}

func (s *sessionContext) toggleShare(program *tea.Program) {
	if s.orch.IsSharing() {
		if s.orch.StopShare() {
			s.client.SendShareStopped()
			s.state.ApplySharing(false)
		}
		program.Send(ui.RefreshMsg{})
		return
	}

	source, err := rtc.NewSyntheticSource()
	if err != nil {
		program.Send(ui.ErrorMsg("could not start the share source"))
		return
	}
	if err := s.orch.StartShare(source, s.state.Participants()); err != nil {
		source.Close()
		program.Send(ui.ErrorMsg(err.Error()))
		return
	}
	s.client.SendShareStarted()
	s.state.ApplySharing(true)
	s.hostedShare.Store(true)
	program.Send(ui.RefreshMsg{})
}

// drainTrack consumes inbound media and keeps the receive indicator fresh.
// The terminal cannot render the video, so packet flow is the signal that
// the share is alive.
func drainTrack(program *tea.Program, track *webrtc.TrackRemote) {
	var packets int
	for {
		if _, _, err := track.ReadRTP(); err != nil {
			return
		}
		packets++
		if packets%200 == 0 {
			program.Send(ui.MediaMsg(fmt.Sprintf("%s: %d packets received", track.Kind(), packets)))
		}
	}
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
