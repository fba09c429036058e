package rtc

import (
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
)

// ShareSource is the opaque capture capability behind a screen share: it
// owns the share's outbound tracks and reports when the capture ends out of
// band (the platform equivalent of "user stopped sharing via system UI").
// The orchestrator owns the source; links only reference its tracks.
type ShareSource interface {
	Tracks() []webrtc.TrackLocal
	SetOnEnded(fn func())
	// Close stops the share-owned tracks. It must be idempotent and must
	// never touch tracks the source does not own (the microphone).
	Close() error
}

const (
	patternFrameRate = 15
	patternFrameSize = 4096
)

// SyntheticSource is a built-in share source that emits a generated video
// pattern and silent audio. It lets a terminal host exercise the full share
// path on machines without screen capture.
type SyntheticSource struct {
	video *webrtc.TrackLocalStaticSample
	audio *webrtc.TrackLocalStaticSample

	mu      sync.Mutex
	onEnded func()

	done      chan struct{}
	closeOnce sync.Once
}

func NewSyntheticSource() (*SyntheticSource, error) {
	video, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", "screenshare")
	if err != nil {
		return nil, newError("create video track", "", err)
	}
	audio, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", "screenshare")
	if err != nil {
		return nil, newError("create audio track", "", err)
	}

	s := &SyntheticSource{
		video: video,
		audio: audio,
		done:  make(chan struct{}),
	}
	go s.writeLoop()
	return s, nil
}

func (s *SyntheticSource) writeLoop() {
	ticker := time.NewTicker(time.Second / patternFrameRate)
	defer ticker.Stop()

	frame := make([]byte, patternFrameSize)
	var tick byte
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			tick++
			for i := range frame {
				frame[i] = tick + byte(i)
			}
			// Best-effort writes: a track without a live sender drops samples.
			s.video.WriteSample(media.Sample{Data: frame, Duration: time.Second / patternFrameRate})
			s.audio.WriteSample(media.Sample{Data: silentOpusFrame, Duration: 20 * time.Millisecond})
		}
	}
}

func (s *SyntheticSource) Tracks() []webrtc.TrackLocal {
	return []webrtc.TrackLocal{s.video, s.audio}
}

func (s *SyntheticSource) SetOnEnded(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onEnded = fn
}

func (s *SyntheticSource) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
	})
	return nil
}

// silentOpusFrame is a minimal opus frame decoding to silence.
var silentOpusFrame = []byte{0xf8, 0xff, 0xfe}

// Microphone owns the local voice track. It is created once and survives
// every link teardown: muting stops sample flow without stopping the track.
type Microphone struct {
	track *webrtc.TrackLocalStaticSample

	mu    sync.Mutex
	muted bool

	done      chan struct{}
	closeOnce sync.Once
}

// NewMicrophone creates a muted microphone.
func NewMicrophone() (*Microphone, error) {
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", "mic")
	if err != nil {
		return nil, newError("create mic track", "", err)
	}
	m := &Microphone{track: track, muted: true, done: make(chan struct{})}
	go m.writeLoop()
	return m, nil
}

func (m *Microphone) writeLoop() {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			if m.Muted() {
				continue
			}
			m.track.WriteSample(media.Sample{Data: silentOpusFrame, Duration: 20 * time.Millisecond})
		}
	}
}

func (m *Microphone) Track() webrtc.TrackLocal {
	return m.track
}

func (m *Microphone) SetMuted(muted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.muted = muted
}

func (m *Microphone) Muted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.muted
}

func (m *Microphone) Close() {
	m.closeOnce.Do(func() {
		close(m.done)
	})
}
