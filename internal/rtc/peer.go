package rtc

import (
	"encoding/json"
	"fmt"

	pion "github.com/pion/webrtc/v4"

	"github.com/SitePen/webrtc-blog/internal/config"
)

// pionTransport adapts a pion PeerConnection to the Transport interface.
type pionTransport struct {
	pc *pion.PeerConnection
}

// NewTransport builds a peer connection from the configured ICE servers.
func NewTransport(cfg *config.Config) (Transport, error) {
	iceServers := []pion.ICEServer{{URLs: cfg.GetSTUNServers()}}

	turnServers := cfg.GetTURNServers()
	if turnServers != nil {
		username, password := cfg.GetTURNCredentials()
		iceServers = append(iceServers, pion.ICEServer{
			URLs:       turnServers,
			Username:   username,
			Credential: password,
		})
	}

	pc, err := pion.NewPeerConnection(pion.Configuration{ICEServers: iceServers})
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}
	return &pionTransport{pc: pc}, nil
}

func (t *pionTransport) CreateOffer() (Description, error) {
	offer, err := t.pc.CreateOffer(nil)
	if err != nil {
		return Description{}, fmt.Errorf("create offer: %w", err)
	}
	return Description{Type: offer.Type.String(), SDP: offer.SDP}, nil
}

func (t *pionTransport) CreateAnswer() (Description, error) {
	answer, err := t.pc.CreateAnswer(nil)
	if err != nil {
		return Description{}, fmt.Errorf("create answer: %w", err)
	}
	return Description{Type: answer.Type.String(), SDP: answer.SDP}, nil
}

func (t *pionTransport) SetLocalDescription(desc Description) error {
	sd, err := toSessionDescription(desc)
	if err != nil {
		return err
	}
	if err := t.pc.SetLocalDescription(sd); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}
	return nil
}

func (t *pionTransport) SetRemoteDescription(desc Description) error {
	sd, err := toSessionDescription(desc)
	if err != nil {
		return err
	}
	if err := t.pc.SetRemoteDescription(sd); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}
	return nil
}

func (t *pionTransport) RemoteDescriptionSet() bool {
	return t.pc.RemoteDescription() != nil
}

func (t *pionTransport) AddICECandidate(candidate json.RawMessage) error {
	var init pion.ICECandidateInit
	if err := json.Unmarshal(candidate, &init); err != nil {
		return fmt.Errorf("decode candidate: %w", err)
	}
	if err := t.pc.AddICECandidate(init); err != nil {
		return fmt.Errorf("add ice candidate: %w", err)
	}
	return nil
}

func (t *pionTransport) CreateDataChannel(label string) (DataChannel, error) {
	ordered := true
	dc, err := t.pc.CreateDataChannel(label, &pion.DataChannelInit{Ordered: &ordered})
	if err != nil {
		return nil, fmt.Errorf("create data channel: %w", err)
	}
	return &pionChannel{dc: dc}, nil
}

func (t *pionTransport) OnICECandidate(fn func(candidate json.RawMessage)) {
	t.pc.OnICECandidate(func(c *pion.ICECandidate) {
		if c == nil {
			// End of gathering.
			return
		}
		raw, err := json.Marshal(c.ToJSON())
		if err != nil {
			return
		}
		fn(raw)
	})
}

func (t *pionTransport) OnConnectionStateChange(fn func(state ConnState)) {
	t.pc.OnICEConnectionStateChange(func(state pion.ICEConnectionState) {
		fn(fromICEConnectionState(state))
	})
}

func (t *pionTransport) OnDataChannel(fn func(ch DataChannel)) {
	t.pc.OnDataChannel(func(dc *pion.DataChannel) {
		fn(&pionChannel{dc: dc})
	})
}

func (t *pionTransport) Close() error {
	return t.pc.Close()
}

func toSessionDescription(desc Description) (pion.SessionDescription, error) {
	var sdpType pion.SDPType
	switch desc.Type {
	case "offer":
		sdpType = pion.SDPTypeOffer
	case "answer":
		sdpType = pion.SDPTypeAnswer
	default:
		return pion.SessionDescription{}, fmt.Errorf("unexpected description type %q", desc.Type)
	}
	return pion.SessionDescription{Type: sdpType, SDP: desc.SDP}, nil
}

func fromICEConnectionState(state pion.ICEConnectionState) ConnState {
	switch state {
	case pion.ICEConnectionStateNew:
		return StateNew
	case pion.ICEConnectionStateChecking:
		return StateConnecting
	case pion.ICEConnectionStateConnected, pion.ICEConnectionStateCompleted:
		return StateConnected
	case pion.ICEConnectionStateDisconnected:
		return StateDisconnected
	case pion.ICEConnectionStateFailed:
		return StateFailed
	case pion.ICEConnectionStateClosed:
		return StateClosed
	}
	return StateNew
}

type pionChannel struct {
	dc *pion.DataChannel
}

func (c *pionChannel) Label() string { return c.dc.Label() }

func (c *pionChannel) Send(data []byte) error {
	return c.dc.Send(data)
}

func (c *pionChannel) OnOpen(fn func()) {
	c.dc.OnOpen(fn)
}

func (c *pionChannel) OnMessage(fn func(data []byte)) {
	c.dc.OnMessage(func(msg pion.DataChannelMessage) {
		fn(msg.Data)
	})
}

func (c *pionChannel) Close() error {
	return c.dc.Close()
}
