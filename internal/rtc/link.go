package rtc

import (
	"encoding/json"
	"sync"

	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	"github.com/Ajaxkicker/WatchTogether/internal/config"
	"github.com/Ajaxkicker/WatchTogether/internal/protocol"
)

// Role says which end of the share a link serves.
type Role int

const (
	// RoleHost sends the share. The host side answers the guest's offer.
	RoleHost Role = iota
	// RoleGuest receives the share and initiates the negotiation.
	RoleGuest
)

// LinkState is the lifecycle of one PeerLink. There is no reconnect-in-place:
// a closed link is discarded, and a fresh one is created if needed again.
type LinkState int

const (
	StateNegotiating LinkState = iota
	StateConnected
	StateClosed
)

func (s LinkState) String() string {
	switch s {
	case StateNegotiating:
		return "negotiating"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Signaler relays opaque negotiation payloads to a specific remote session.
// The websocket client satisfies it.
type Signaler interface {
	SendSignal(to string, data protocol.SignalData)
}

// TrackHandler receives a remote media track surfaced by a link.
type TrackHandler func(remoteID string, track *webrtc.TrackRemote)

// PeerLink is the local handle to a single point-to-point media negotiation
// with one remote session. It references media tracks for transmission but
// never owns them.
type PeerLink struct {
	remoteID string
	role     Role
	pc       *webrtc.PeerConnection
	signaler Signaler
	log      *zap.Logger

	mu        sync.Mutex
	state     LinkState
	remoteSet bool
	// pending buffers trickled candidates that arrive before the remote
	// description is applied.
	pending []webrtc.ICECandidateInit

	closeOnce sync.Once
	onTrack   TrackHandler
	onClosed  func(*PeerLink)
}

// newPeerLink builds a link in the negotiating state. Host links carry the
// given outbound tracks; guest links request inbound video and carry at most
// a mic track outbound. Guest callers must follow up with negotiate().
// onClosed fires exactly once, from whichever path tears the link down;
// callers must not invoke it while holding locks the callback needs.
func newPeerLink(cfg *config.Client, signaler Signaler, remoteID string, role Role,
	tracks []webrtc.TrackLocal, log *zap.Logger,
	onTrack TrackHandler, onClosed func(*PeerLink)) (*PeerLink, error) {

	pc, err := newPeerConnection(cfg)
	if err != nil {
		return nil, err
	}
	l := &PeerLink{
		remoteID: remoteID,
		role:     role,
		pc:       pc,
		signaler: signaler,
		log:      log.With(zap.String("peer", remoteID)),
		state:    StateNegotiating,
		onTrack:  onTrack,
		onClosed: onClosed,
	}

	if role == RoleGuest {
		if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionRecvonly,
		}); err != nil {
			pc.Close()
			return nil, newError("add video transceiver", remoteID, err)
		}
		if len(tracks) == 0 {
			if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{
				Direction: webrtc.RTPTransceiverDirectionRecvonly,
			}); err != nil {
				pc.Close()
				return nil, newError("add audio transceiver", remoteID, err)
			}
		}
	}
	for _, track := range tracks {
		if _, err := pc.AddTrack(track); err != nil {
			pc.Close()
			return nil, newError("add track", remoteID, err)
		}
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		raw, err := json.Marshal(c.ToJSON())
		if err != nil {
			return
		}
		l.signaler.SendSignal(l.remoteID, protocol.SignalData{Candidate: raw})
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		l.markConnected()
		if l.onTrack != nil {
			l.onTrack(l.remoteID, track)
		}
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		switch state {
		case webrtc.PeerConnectionStateConnected:
			l.markConnected()
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			l.Close()
		}
	})

	return l, nil
}

func (l *PeerLink) RemoteID() string {
	return l.remoteID
}

func (l *PeerLink) Role() Role {
	return l.role
}

func (l *PeerLink) State() LinkState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *PeerLink) markConnected() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == StateNegotiating {
		l.state = StateConnected
		l.log.Debug("peer link connected")
	}
}

// negotiate sends a fresh offer over the link. The guest side calls it once
// at creation; either side calls it again after retrofitting a track.
func (l *PeerLink) negotiate() error {
	if l.State() == StateClosed {
		return ErrLinkClosed
	}
	offer, err := l.pc.CreateOffer(nil)
	if err != nil {
		return newError("create offer", l.remoteID, err)
	}
	if err := l.pc.SetLocalDescription(offer); err != nil {
		return newError("set local description", l.remoteID, err)
	}
	l.signaler.SendSignal(l.remoteID, protocol.SignalData{
		Type: "offer",
		SDP:  l.pc.LocalDescription().SDP,
	})
	return nil
}

// HandleSignal feeds one relayed payload into the negotiation: an offer is
// answered, an answer applied, a candidate added (or buffered until the
// remote description lands).
func (l *PeerLink) HandleSignal(data protocol.SignalData) error {
	if l.State() == StateClosed {
		return ErrLinkClosed
	}

	switch {
	case data.Type == "offer":
		desc := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: data.SDP}
		if err := l.pc.SetRemoteDescription(desc); err != nil {
			return newError("set remote description", l.remoteID, err)
		}
		l.flushPendingCandidates()

		answer, err := l.pc.CreateAnswer(nil)
		if err != nil {
			return newError("create answer", l.remoteID, err)
		}
		if err := l.pc.SetLocalDescription(answer); err != nil {
			return newError("set local description", l.remoteID, err)
		}
		l.signaler.SendSignal(l.remoteID, protocol.SignalData{
			Type: "answer",
			SDP:  l.pc.LocalDescription().SDP,
		})
		return nil

	case data.Type == "answer":
		desc := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: data.SDP}
		if err := l.pc.SetRemoteDescription(desc); err != nil {
			return newError("set remote description", l.remoteID, err)
		}
		l.flushPendingCandidates()
		return nil

	case len(data.Candidate) > 0:
		var init webrtc.ICECandidateInit
		if err := json.Unmarshal(data.Candidate, &init); err != nil {
			return newError("parse ICE candidate", l.remoteID, err)
		}
		l.mu.Lock()
		if !l.remoteSet {
			l.pending = append(l.pending, init)
			l.mu.Unlock()
			return nil
		}
		l.mu.Unlock()
		if err := l.pc.AddICECandidate(init); err != nil {
			return newError("add ICE candidate", l.remoteID, err)
		}
		return nil

	default:
		return newError("handle signal", l.remoteID, ErrUnexpectedSignal)
	}
}

func (l *PeerLink) flushPendingCandidates() {
	l.mu.Lock()
	l.remoteSet = true
	pending := l.pending
	l.pending = nil
	l.mu.Unlock()

	for _, init := range pending {
		if err := l.pc.AddICECandidate(init); err != nil {
			l.log.Debug("buffered candidate rejected", zap.Error(err))
		}
	}
}

// AddLocalTrack retrofits an additional outbound track onto the open link
// and renegotiates in place.
func (l *PeerLink) AddLocalTrack(track webrtc.TrackLocal) error {
	if l.State() == StateClosed {
		return ErrLinkClosed
	}
	if _, err := l.pc.AddTrack(track); err != nil {
		return newError("add track", l.remoteID, err)
	}
	return l.negotiate()
}

// Close tears the link down. Idempotent; tolerates an underlying connection
// that is already gone.
func (l *PeerLink) Close() {
	l.closeOnce.Do(func() {
		l.mu.Lock()
		l.state = StateClosed
		l.pending = nil
		l.mu.Unlock()

		if err := l.pc.Close(); err != nil {
			l.log.Debug("peer connection close", zap.Error(err))
		}
		if l.onClosed != nil {
			l.onClosed(l)
		}
	})
}
