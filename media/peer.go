// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package media

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
)

// iceGatherTimeout bounds candidate gathering before an offer is sent.
const iceGatherTimeout = 15 * time.Second

// SignalFunc delivers a complete local offer to the media server and
// returns its answer.
type SignalFunc func(ctx context.Context, offer webrtc.SessionDescription) (webrtc.SessionDescription, error)

// TrackFunc is called when a subscribed stream starts delivering media.
type TrackFunc func(subscription Subscription, track *webrtc.TrackRemote)

// PeerConfig configures a PeerController.
type PeerConfig struct {
	// Signal exchanges offers for answers. Required.
	Signal SignalFunc

	// ICEServers is passed to the PeerConnection unchanged. Empty
	// means host candidates only.
	ICEServers []webrtc.ICEServer

	// OnTrack, if set, receives each remote track with the
	// subscription it belongs to.
	OnTrack TrackFunc

	Logger *slog.Logger
}

// PeerController receives every subscribed stream over a single
// PeerConnection, one recvonly transceiver per subscription. Each
// subscribe or unsubscribe renegotiates the session with vanilla ICE:
// gathering completes before the offer is signaled, so one round trip
// suffices.
type PeerController struct {
	connection *webrtc.PeerConnection
	signal     SignalFunc
	onTrack    TrackFunc
	logger     *slog.Logger

	mu           sync.Mutex
	transceivers map[string]*webrtc.RTPTransceiver
	owners       map[*webrtc.RTPReceiver]Subscription
}

// NewPeerController creates the PeerConnection. Close releases it.
func NewPeerController(config PeerConfig) (*PeerController, error) {
	if config.Signal == nil {
		return nil, fmt.Errorf("media: signal function is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	connection, err := newPeerConnection(config.ICEServers)
	if err != nil {
		return nil, fmt.Errorf("media: creating PeerConnection: %w", err)
	}

	controller := &PeerController{
		connection:   connection,
		signal:       config.Signal,
		onTrack:      config.OnTrack,
		logger:       logger,
		transceivers: make(map[string]*webrtc.RTPTransceiver),
		owners:       make(map[*webrtc.RTPReceiver]Subscription),
	}
	connection.OnTrack(controller.handleTrack)
	connection.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		logger.Debug("media ICE state changed", "state", state.String())
	})
	return controller, nil
}

// newPeerConnection builds a PeerConnection with the default codecs
// and loopback candidates enabled for same-host media servers.
func newPeerConnection(servers []webrtc.ICEServer) (*webrtc.PeerConnection, error) {
	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("registering codecs: %w", err)
	}
	settingEngine := webrtc.SettingEngine{}
	settingEngine.SetIncludeLoopbackCandidate(true)

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(mediaEngine),
		webrtc.WithSettingEngine(settingEngine),
	)
	return api.NewPeerConnection(webrtc.Configuration{ICEServers: servers})
}

// Subscribe adds a recvonly transceiver for the stream and
// renegotiates. On failure the transceiver is stopped again.
func (p *PeerController) Subscribe(ctx context.Context, subscription Subscription) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.transceivers[subscription.Key()]; exists {
		return nil
	}
	transceiver, err := p.connection.AddTransceiverFromKind(kindOf(subscription.Type), webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	})
	if err != nil {
		return fmt.Errorf("adding transceiver: %w", err)
	}
	p.transceivers[subscription.Key()] = transceiver
	p.owners[transceiver.Receiver()] = subscription

	if err := p.renegotiate(ctx); err != nil {
		p.release(subscription.Key(), transceiver)
		return err
	}
	p.logger.Info("media stream subscribed", "subscription", subscription.Key())
	return nil
}

// Unsubscribe stops the stream's transceiver and renegotiates.
func (p *PeerController) Unsubscribe(ctx context.Context, subscription Subscription) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	transceiver, exists := p.transceivers[subscription.Key()]
	if !exists {
		return nil
	}
	p.release(subscription.Key(), transceiver)
	if err := p.renegotiate(ctx); err != nil {
		return err
	}
	p.logger.Info("media stream unsubscribed", "subscription", subscription.Key())
	return nil
}

// Transceiver returns the transceiver receiving the stream, if any.
func (p *PeerController) Transceiver(subscription Subscription) (*webrtc.RTPTransceiver, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	transceiver, ok := p.transceivers[subscription.Key()]
	return transceiver, ok
}

// Close tears down the PeerConnection.
func (p *PeerController) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.transceivers = make(map[string]*webrtc.RTPTransceiver)
	p.owners = make(map[*webrtc.RTPReceiver]Subscription)
	return p.connection.Close()
}

// release stops the transceiver and forgets it. Caller holds p.mu.
func (p *PeerController) release(key string, transceiver *webrtc.RTPTransceiver) {
	delete(p.transceivers, key)
	delete(p.owners, transceiver.Receiver())
	if err := transceiver.Stop(); err != nil {
		p.logger.Warn("stopping media transceiver failed", "subscription", key, "error", err)
	}
}

// renegotiate runs one offer/answer round trip. Caller holds p.mu.
func (p *PeerController) renegotiate(ctx context.Context) error {
	offer, err := p.connection.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("creating SDP offer: %w", err)
	}
	gatherComplete := webrtc.GatheringCompletePromise(p.connection)
	if err := p.connection.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("setting local description: %w", err)
	}

	select {
	case <-gatherComplete:
	case <-time.After(iceGatherTimeout):
		return fmt.Errorf("ICE gathering timed out after %s", iceGatherTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}

	answer, err := p.signal(ctx, *p.connection.LocalDescription())
	if err != nil {
		if rollbackErr := p.connection.SetLocalDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeRollback}); rollbackErr != nil {
			p.logger.Warn("rolling back media offer failed", "error", rollbackErr)
		}
		return fmt.Errorf("signaling offer: %w", err)
	}
	if err := p.connection.SetRemoteDescription(answer); err != nil {
		return fmt.Errorf("setting remote description: %w", err)
	}
	return nil
}

func (p *PeerController) handleTrack(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
	p.mu.Lock()
	subscription, ok := p.owners[receiver]
	p.mu.Unlock()
	if !ok {
		p.logger.Debug("track on unknown receiver", "track_id", track.ID())
		return
	}
	p.logger.Debug("media track started",
		"subscription", subscription.Key(),
		"codec", track.Codec().MimeType,
	)
	if p.onTrack != nil {
		p.onTrack(subscription, track)
	}
}

func kindOf(streamType StreamType) webrtc.RTPCodecType {
	if streamType == StreamAudio {
		return webrtc.RTPCodecTypeAudio
	}
	return webrtc.RTPCodecTypeVideo
}
