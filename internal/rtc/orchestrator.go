// Package rtc manages the client's WebRTC peer-connection lifecycles: one
// PeerLink per remote counterpart, created and torn down in response to room
// membership, host and sharing-state changes, and driven by relayed
// signaling payloads.
package rtc

import (
	"sync"

	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	"github.com/Ajaxkicker/WatchTogether/internal/config"
	"github.com/Ajaxkicker/WatchTogether/internal/protocol"
)

// Orchestrator owns every PeerLink of the local session, plus the local
// media it transmits: the share source while hosting and the microphone
// track. Links reference that media but never own it.
type Orchestrator struct {
	cfg      *config.Client
	signaler Signaler
	log      *zap.Logger

	mu     sync.Mutex
	selfID string
	links  map[string]*PeerLink
	// source is non-nil exactly while this session hosts an active share.
	source ShareSource
	mic    *Microphone

	onRemoteTrack   TrackHandler
	onRemoteCleared func()
	onShareEnded    func()
}

func NewOrchestrator(cfg *config.Client, signaler Signaler, log *zap.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		signaler: signaler,
		log:      log,
		links:    make(map[string]*PeerLink),
	}
}

// SetSelfID records the local session id so the orchestrator can skip itself
// when reaching parity with the participant list.
func (o *Orchestrator) SetSelfID(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.selfID = id
}

// OnRemoteTrack registers the sink for inbound media (the view layer).
func (o *Orchestrator) OnRemoteTrack(fn TrackHandler) {
	o.onRemoteTrack = fn
}

// OnRemoteCleared registers the callback for a surfaced stream going away.
func (o *Orchestrator) OnRemoteCleared(fn func()) {
	o.onRemoteCleared = fn
}

// OnShareEnded registers the callback for a share that ended through the
// source's out-of-band stop signal rather than an explicit command. It fires
// after the share state is already torn down, so the caller only needs to
// emit the stop intent.
func (o *Orchestrator) OnShareEnded(fn func()) {
	o.onShareEnded = fn
}

// StartShare begins hosting: one outbound link per current participant
// other than self. The source's out-of-band end signal is routed through the
// same StopShare path as an explicit stop.
func (o *Orchestrator) StartShare(source ShareSource, participants []protocol.Participant) error {
	o.mu.Lock()
	if o.source != nil {
		o.mu.Unlock()
		return ErrAlreadySharing
	}
	o.source = source
	for _, p := range participants {
		if p.SocketID == o.selfID {
			continue
		}
		o.createHostLinkLocked(p.SocketID)
	}
	o.mu.Unlock()

	source.SetOnEnded(func() {
		if o.StopShare() {
			if fn := o.onShareEnded; fn != nil {
				fn()
			}
		}
	})
	return nil
}

// createHostLinkLocked adds an outbound link carrying the share tracks plus
// the mic track if one exists. Callers hold o.mu.
func (o *Orchestrator) createHostLinkLocked(remoteID string) {
	if l, ok := o.links[remoteID]; ok && l.State() != StateClosed {
		return
	}
	tracks := append([]webrtc.TrackLocal(nil), o.source.Tracks()...)
	if o.mic != nil {
		tracks = append(tracks, o.mic.Track())
	}
	link, err := newPeerLink(o.cfg, o.signaler, remoteID, RoleHost, tracks, o.log, o.handleRemoteTrack, o.removeLink)
	if err != nil {
		o.log.Warn("create host link", zap.String("peer", remoteID), zap.Error(err))
		return
	}
	o.links[remoteID] = link
}

// StopShare ends the active share: every link is destroyed and the share
// source closed. The microphone survives. Returns false if no share was
// active (duplicate stop).
func (o *Orchestrator) StopShare() bool {
	o.mu.Lock()
	source := o.source
	o.source = nil
	links := o.detachLinksLocked()
	o.mu.Unlock()

	for _, l := range links {
		l.Close()
	}
	if source == nil {
		return false
	}
	source.Close()
	return true
}

// HandleUserJoined keeps the host at parity with room membership during an
// active share. No-op unless hosting.
func (o *Orchestrator) HandleUserJoined(remoteID string) {
	o.mu.Lock()
	if o.source != nil {
		o.createHostLinkLocked(remoteID)
	}
	o.mu.Unlock()
}

// HandleUserLeft destroys the departed participant's link immediately,
// whatever state it is in, so nothing signals a dead target.
func (o *Orchestrator) HandleUserLeft(remoteID string) {
	o.mu.Lock()
	l := o.links[remoteID]
	o.mu.Unlock()
	if l != nil {
		l.Close()
	}
}

// HandleShareStarted reacts to the host beginning a share: the guest creates
// its single inbound link and initiates. A live link to the same host makes
// this a no-op.
func (o *Orchestrator) HandleShareStarted(hostID string) {
	o.mu.Lock()
	if l, ok := o.links[hostID]; ok && l.State() != StateClosed {
		o.mu.Unlock()
		return
	}
	var tracks []webrtc.TrackLocal
	if o.mic != nil {
		tracks = append(tracks, o.mic.Track())
	}
	link, err := newPeerLink(o.cfg, o.signaler, hostID, RoleGuest, tracks, o.log, o.handleRemoteTrack, o.removeLink)
	if err != nil {
		o.log.Warn("create guest link", zap.String("peer", hostID), zap.Error(err))
		o.mu.Unlock()
		return
	}
	o.links[hostID] = link
	o.mu.Unlock()

	if err := link.negotiate(); err != nil {
		o.log.Warn("negotiate", zap.Error(err))
	}
}

// HandleShareStopped tears down the guest's inbound link and clears the
// surfaced stream.
func (o *Orchestrator) HandleShareStopped() {
	o.teardownLinks()
}

// HandleHostChanged tears down any link to the departed host. The server
// flips sharing off before announcing a successor, so this is defensive.
func (o *Orchestrator) HandleHostChanged() {
	o.teardownLinks()
}

func (o *Orchestrator) teardownLinks() {
	o.mu.Lock()
	links := o.detachLinksLocked()
	o.mu.Unlock()
	for _, l := range links {
		l.Close()
	}
}

// detachLinksLocked empties the link map and returns the links so callers
// can close them outside the lock (Close re-enters via removeLink).
func (o *Orchestrator) detachLinksLocked() []*PeerLink {
	links := make([]*PeerLink, 0, len(o.links))
	for _, l := range o.links {
		links = append(links, l)
	}
	o.links = make(map[string]*PeerLink)
	return links
}

// HandleSignal routes a relayed payload to the link for the sending remote.
// A payload for an unknown remote is dropped: it is a stale signal for a
// link already torn down.
func (o *Orchestrator) HandleSignal(from string, data protocol.SignalData) {
	o.mu.Lock()
	l := o.links[from]
	o.mu.Unlock()
	if l == nil {
		o.log.Debug("signal for unknown peer dropped", zap.String("peer", from))
		return
	}
	if err := l.HandleSignal(data); err != nil {
		o.log.Debug("signal rejected", zap.String("peer", from), zap.Error(err))
	}
}

func (o *Orchestrator) handleRemoteTrack(remoteID string, track *webrtc.TrackRemote) {
	if fn := o.onRemoteTrack; fn != nil {
		fn(remoteID, track)
	}
}

// removeLink is each link's onClosed hook. Guest links clearing out also
// clear the surfaced stream.
func (o *Orchestrator) removeLink(l *PeerLink) {
	o.mu.Lock()
	if o.links[l.remoteID] == l {
		delete(o.links, l.remoteID)
	}
	o.mu.Unlock()

	if l.role == RoleGuest {
		if fn := o.onRemoteCleared; fn != nil {
			fn()
		}
	}
}

// EnableMic unmutes the local microphone, creating the track on first use
// and retrofitting it onto every link that is already open. Links created
// afterwards pick the track up at creation.
func (o *Orchestrator) EnableMic() error {
	o.mu.Lock()
	var retrofit []*PeerLink
	if o.mic == nil {
		mic, err := NewMicrophone()
		if err != nil {
			o.mu.Unlock()
			return err
		}
		o.mic = mic
		for _, l := range o.links {
			retrofit = append(retrofit, l)
		}
	}
	mic := o.mic
	o.mu.Unlock()

	mic.SetMuted(false)
	for _, l := range retrofit {
		if err := l.AddLocalTrack(mic.Track()); err != nil {
			o.log.Warn("attach mic track", zap.String("peer", l.remoteID), zap.Error(err))
		}
	}
	return nil
}

// MuteMic silences the microphone without detaching its track.
func (o *Orchestrator) MuteMic() {
	o.mu.Lock()
	mic := o.mic
	o.mu.Unlock()
	if mic != nil {
		mic.SetMuted(true)
	}
}

// IsSharing reports whether this session currently hosts a share.
func (o *Orchestrator) IsSharing() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.source != nil
}

// LinkCount reports the number of live links.
func (o *Orchestrator) LinkCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.links)
}

// LinkStateFor reports the state of the link to a remote, if one exists.
func (o *Orchestrator) LinkStateFor(remoteID string) (LinkState, bool) {
	o.mu.Lock()
	l := o.links[remoteID]
	o.mu.Unlock()
	if l == nil {
		return StateClosed, false
	}
	return l.State(), true
}

// Close releases everything: active share, links, microphone.
func (o *Orchestrator) Close() {
	o.StopShare()
	o.teardownLinks()

	o.mu.Lock()
	mic := o.mic
	o.mic = nil
	o.mu.Unlock()
	if mic != nil {
		mic.Close()
	}
}
