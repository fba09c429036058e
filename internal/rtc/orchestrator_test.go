package rtc

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	"github.com/Ajaxkicker/WatchTogether/internal/config"
	"github.com/Ajaxkicker/WatchTogether/internal/protocol"
)

type sentSignal struct {
	to   string
	data protocol.SignalData
}

// captureSignaler records outbound signals. Candidate payloads trickle in
// from pion goroutines, so access is guarded.
type captureSignaler struct {
	mu   sync.Mutex
	sent []sentSignal
}

func (s *captureSignaler) SendSignal(to string, data protocol.SignalData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentSignal{to: to, data: data})
}

func (s *captureSignaler) byType(t string) []sentSignal {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []sentSignal
	for _, m := range s.sent {
		if m.data.Type == t {
			out = append(out, m)
		}
	}
	return out
}

// fakeSource stands in for a capture backend so tests can fire the
// out-of-band end signal on demand.
type fakeSource struct {
	track *webrtc.TrackLocalStaticSample

	mu      sync.Mutex
	onEnded func()
	closed  int
}

func newFakeSource(t *testing.T) *fakeSource {
	t.Helper()
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", "screenshare")
	if err != nil {
		t.Fatalf("create track: %v", err)
	}
	return &fakeSource{track: track}
}

func (f *fakeSource) Tracks() []webrtc.TrackLocal {
	return []webrtc.TrackLocal{f.track}
}

func (f *fakeSource) SetOnEnded(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onEnded = fn
}

func (f *fakeSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeSource) fireEnded() {
	f.mu.Lock()
	fn := f.onEnded
	f.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (f *fakeSource) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func testClientConfig() *config.Client {
	return &config.Client{
		Server:     config.DefaultServer,
		STUNServer: config.DefaultSTUN,
	}
}

func newTestOrchestrator(selfID string) (*Orchestrator, *captureSignaler) {
	sig := &captureSignaler{}
	o := NewOrchestrator(testClientConfig(), sig, zap.NewNop())
	o.SetSelfID(selfID)
	return o, sig
}

func participants(ids ...string) []protocol.Participant {
	out := make([]protocol.Participant, 0, len(ids))
	for _, id := range ids {
		out = append(out, protocol.Participant{SocketID: id, Username: "user-" + id})
	}
	return out
}

func TestStartShareLinkPerParticipant(t *testing.T) {
	o, _ := newTestOrchestrator("host")
	defer o.Close()

	if err := o.StartShare(newFakeSource(t), participants("host", "g1", "g2")); err != nil {
		t.Fatalf("StartShare: %v", err)
	}
	if !o.IsSharing() {
		t.Fatal("expected sharing state after StartShare")
	}
	if got := o.LinkCount(); got != 2 {
		t.Fatalf("expected one link per remote participant, got %d", got)
	}
	if _, ok := o.LinkStateFor("host"); ok {
		t.Fatal("orchestrator created a link to itself")
	}
	for _, id := range []string{"g1", "g2"} {
		state, ok := o.LinkStateFor(id)
		if !ok {
			t.Fatalf("no link for %s", id)
		}
		if state != StateNegotiating {
			t.Fatalf("link %s state = %s, want negotiating", id, state)
		}
	}
}

func TestStartShareWhileSharing(t *testing.T) {
	o, _ := newTestOrchestrator("host")
	defer o.Close()

	if err := o.StartShare(newFakeSource(t), participants("host", "g1")); err != nil {
		t.Fatalf("StartShare: %v", err)
	}
	err := o.StartShare(newFakeSource(t), participants("host", "g1"))
	if !errors.Is(err, ErrAlreadySharing) {
		t.Fatalf("second StartShare error = %v, want ErrAlreadySharing", err)
	}
}

func TestHostFollowsMembership(t *testing.T) {
	o, _ := newTestOrchestrator("host")
	defer o.Close()

	if err := o.StartShare(newFakeSource(t), participants("host", "g1")); err != nil {
		t.Fatalf("StartShare: %v", err)
	}

	o.HandleUserJoined("g2")
	if got := o.LinkCount(); got != 2 {
		t.Fatalf("after join: %d links, want 2", got)
	}

	o.HandleUserLeft("g1")
	if got := o.LinkCount(); got != 1 {
		t.Fatalf("after leave: %d links, want 1", got)
	}
	if _, ok := o.LinkStateFor("g1"); ok {
		t.Fatal("link to departed participant survived")
	}

	// Leaving again for the same id must be harmless.
	o.HandleUserLeft("g1")
	if got := o.LinkCount(); got != 1 {
		t.Fatalf("after duplicate leave: %d links, want 1", got)
	}
}

func TestJoinWithoutShareCreatesNothing(t *testing.T) {
	o, _ := newTestOrchestrator("host")
	defer o.Close()

	o.HandleUserJoined("g1")
	if got := o.LinkCount(); got != 0 {
		t.Fatalf("idle orchestrator created %d links on join", got)
	}
}

func TestStopShareTearsEverythingDownOnce(t *testing.T) {
	o, _ := newTestOrchestrator("host")
	defer o.Close()

	source := newFakeSource(t)
	if err := o.StartShare(source, participants("host", "g1", "g2")); err != nil {
		t.Fatalf("StartShare: %v", err)
	}

	if !o.StopShare() {
		t.Fatal("first StopShare reported no active share")
	}
	if o.IsSharing() {
		t.Fatal("still sharing after StopShare")
	}
	if got := o.LinkCount(); got != 0 {
		t.Fatalf("%d links survived StopShare", got)
	}
	if got := source.closeCount(); got != 1 {
		t.Fatalf("source closed %d times, want 1", got)
	}

	if o.StopShare() {
		t.Fatal("duplicate StopShare reported an active share")
	}
	if got := source.closeCount(); got != 1 {
		t.Fatalf("duplicate StopShare touched the source again (%d closes)", got)
	}
}

func TestSourceEndedRoutesThroughStopShare(t *testing.T) {
	o, _ := newTestOrchestrator("host")
	defer o.Close()

	var endedMu sync.Mutex
	ended := 0
	o.OnShareEnded(func() {
		endedMu.Lock()
		ended++
		endedMu.Unlock()
	})

	source := newFakeSource(t)
	if err := o.StartShare(source, participants("host", "g1")); err != nil {
		t.Fatalf("StartShare: %v", err)
	}

	source.fireEnded()
	if o.IsSharing() {
		t.Fatal("still sharing after the source ended")
	}
	endedMu.Lock()
	got := ended
	endedMu.Unlock()
	if got != 1 {
		t.Fatalf("share-ended callback fired %d times, want 1", got)
	}

	// The explicit stop path must now see nothing left to do.
	if o.StopShare() {
		t.Fatal("StopShare after source end reported an active share")
	}
}

func TestGuestSingleLink(t *testing.T) {
	o, sig := newTestOrchestrator("guest")
	defer o.Close()

	o.HandleShareStarted("host")
	if got := o.LinkCount(); got != 1 {
		t.Fatalf("%d links after share start, want 1", got)
	}
	if got := len(sig.byType("offer")); got != 1 {
		t.Fatalf("guest sent %d offers, want 1", got)
	}

	// A repeated share-started for a live link is a no-op.
	o.HandleShareStarted("host")
	if got := o.LinkCount(); got != 1 {
		t.Fatalf("%d links after duplicate share start, want 1", got)
	}
	if got := len(sig.byType("offer")); got != 1 {
		t.Fatalf("duplicate share start produced another offer (%d total)", got)
	}
}

func TestGuestTeardownClearsRemote(t *testing.T) {
	o, _ := newTestOrchestrator("guest")
	defer o.Close()

	var clearedMu sync.Mutex
	cleared := 0
	o.OnRemoteCleared(func() {
		clearedMu.Lock()
		cleared++
		clearedMu.Unlock()
	})

	o.HandleShareStarted("host")
	o.HandleShareStopped()

	if got := o.LinkCount(); got != 0 {
		t.Fatalf("%d links after share stop, want 0", got)
	}
	clearedMu.Lock()
	got := cleared
	clearedMu.Unlock()
	if got != 1 {
		t.Fatalf("remote-cleared fired %d times, want 1", got)
	}

	// A new share from a new host must be able to start cleanly.
	o.HandleShareStarted("host2")
	if got := o.LinkCount(); got != 1 {
		t.Fatalf("%d links after new share, want 1", got)
	}
}

func TestOfferAnswerHandshake(t *testing.T) {
	host, hostSig := newTestOrchestrator("host")
	defer host.Close()
	guest, guestSig := newTestOrchestrator("guest")
	defer guest.Close()

	if err := host.StartShare(newFakeSource(t), participants("host", "guest")); err != nil {
		t.Fatalf("StartShare: %v", err)
	}
	guest.HandleShareStarted("host")

	offers := guestSig.byType("offer")
	if len(offers) != 1 {
		t.Fatalf("guest sent %d offers, want 1", len(offers))
	}
	if offers[0].to != "host" {
		t.Fatalf("offer addressed to %q, want host", offers[0].to)
	}

	host.HandleSignal("guest", offers[0].data)
	answers := hostSig.byType("answer")
	if len(answers) != 1 {
		t.Fatalf("host sent %d answers, want 1", len(answers))
	}
	if answers[0].to != "guest" {
		t.Fatalf("answer addressed to %q, want guest", answers[0].to)
	}

	guest.HandleSignal("host", answers[0].data)

	// Both links survive the handshake; media flow needs a live network, so
	// the states stay negotiating here.
	if got := host.LinkCount(); got != 1 {
		t.Fatalf("host has %d links after handshake, want 1", got)
	}
	if got := guest.LinkCount(); got != 1 {
		t.Fatalf("guest has %d links after handshake, want 1", got)
	}
}

func TestStaleSignalDropped(t *testing.T) {
	o, sig := newTestOrchestrator("guest")
	defer o.Close()

	// No link exists for this remote: the payload must be swallowed.
	o.HandleSignal("ghost", protocol.SignalData{Type: "offer", SDP: "v=0"})
	if got := o.LinkCount(); got != 0 {
		t.Fatalf("stale signal created %d links", got)
	}
	if got := len(sig.byType("answer")); got != 0 {
		t.Fatalf("stale offer was answered (%d answers)", got)
	}
}

func TestMicRetrofitRenegotiatesOpenLinks(t *testing.T) {
	o, sig := newTestOrchestrator("host")
	defer o.Close()

	if err := o.StartShare(newFakeSource(t), participants("host", "g1", "g2")); err != nil {
		t.Fatalf("StartShare: %v", err)
	}
	if got := len(sig.byType("offer")); got != 0 {
		t.Fatalf("host offered before any track change (%d offers)", got)
	}

	if err := o.EnableMic(); err != nil {
		t.Fatalf("EnableMic: %v", err)
	}
	// One renegotiation offer per open link.
	if got := len(sig.byType("offer")); got != 2 {
		t.Fatalf("mic retrofit produced %d offers, want 2", got)
	}

	// The track is attached once; re-enabling must not renegotiate again.
	o.MuteMic()
	if err := o.EnableMic(); err != nil {
		t.Fatalf("EnableMic again: %v", err)
	}
	if got := len(sig.byType("offer")); got != 2 {
		t.Fatalf("re-enable produced extra offers (%d total)", got)
	}
}

func TestMicSurvivesShareTeardown(t *testing.T) {
	o, _ := newTestOrchestrator("host")
	defer o.Close()

	if err := o.StartShare(newFakeSource(t), participants("host", "g1")); err != nil {
		t.Fatalf("StartShare: %v", err)
	}
	if err := o.EnableMic(); err != nil {
		t.Fatalf("EnableMic: %v", err)
	}
	o.StopShare()

	// The mic track must still be there for the next share's links.
	o.mu.Lock()
	mic := o.mic
	o.mu.Unlock()
	if mic == nil {
		t.Fatal("microphone destroyed by share teardown")
	}
	if mic.Muted() {
		t.Fatal("share teardown muted the microphone")
	}
}

func TestLinkStateString(t *testing.T) {
	cases := map[LinkState]string{
		StateNegotiating: "negotiating",
		StateConnected:   "connected",
		StateClosed:      "closed",
		LinkState(42):    "unknown",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("LinkState(%d).String() = %q, want %q", state, got, want)
		}
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	o, _ := newTestOrchestrator("host")

	if err := o.StartShare(newFakeSource(t), participants("host", "g1")); err != nil {
		t.Fatalf("StartShare: %v", err)
	}
	if err := o.EnableMic(); err != nil {
		t.Fatalf("EnableMic: %v", err)
	}

	o.Close()
	o.Close()

	if got := o.LinkCount(); got != 0 {
		t.Fatalf("%d links after Close", got)
	}
	// Give pion's state callbacks a moment to drain.
	time.Sleep(50 * time.Millisecond)
}
