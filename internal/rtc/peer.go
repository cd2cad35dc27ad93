package rtc

import (
	"log"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v3"
)

// SessionDescription is a small DTO to avoid exposing webrtc types to
// callers doing their own signaling.
type SessionDescription struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// NewPeerConnection builds a peer connection with default codecs and
// interceptors registered. An empty server list falls back to the
// public Google STUN server.
func NewPeerConnection(iceServers []string) (*webrtc.PeerConnection, error) {
	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, err
	}
	ir := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, ir); err != nil {
		return nil, err
	}
	api := webrtc.NewAPI(webrtc.WithMediaEngine(mediaEngine), webrtc.WithInterceptorRegistry(ir))

	if len(iceServers) == 0 {
		iceServers = []string{"stun:stun.l.google.com:19302"}
	}
	return api.NewPeerConnection(webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: iceServers}},
	})
}

// HandleAudioTracks registers an OnTrack callback that wraps each remote
// audio track in a MicBridge and hands it to onBridge. Non-audio tracks
// are ignored. The bridge never closes the peer connection; the caller
// keeps ownership.
func HandleAudioTracks(pc *webrtc.PeerConnection, sampleRate int, onBridge func(*MicBridge)) {
	pc.OnTrack(func(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		if remote.Kind() != webrtc.RTPCodecTypeAudio {
			return
		}
		log.Printf("rtc: remote audio track: codec=%s", remote.Codec().MimeType)
		b, err := NewMicBridge(remote, sampleRate)
		if err != nil {
			log.Printf("rtc: bridge setup failed: %v", err)
			return
		}
		onBridge(b)
	})
}

// AnswerOffer applies a remote SDP offer and returns the local answer
// after ICE gathering completes.
func AnswerOffer(pc *webrtc.PeerConnection, offer SessionDescription) (SessionDescription, error) {
	remote := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: offer.SDP}
	if err := pc.SetRemoteDescription(remote); err != nil {
		return SessionDescription{}, err
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		return SessionDescription{}, err
	}
	gatherComplete := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(answer); err != nil {
		return SessionDescription{}, err
	}
	<-gatherComplete
	local := pc.LocalDescription()
	return SessionDescription{Type: "answer", SDP: local.SDP}, nil
}
