package contract

// PeerInfo describes one device taking part in peer sync.
type PeerInfo struct {
	PeerKey    string         `json:"peer_key"`
	DeviceName string         `json:"device_name"`
	Metadata   map[string]any `json:"metadata"`
}

func (p *PeerInfo) DecodeValue(v Value) error {
	obj, err := v.Object()
	if err != nil {
		return err
	}
	if p.PeerKey, err = obj.String("peer_key"); err != nil {
		return err
	}
	if p.DeviceName, err = obj.String("device_name"); err != nil {
		return err
	}
	if p.Metadata, err = obj.OptionalMap("metadata"); err != nil {
		return err
	}
	return nil
}

// DisplayName prefers a "name" metadata entry, then the device name, then the
// peer key.
func (p PeerInfo) DisplayName() string {
	if name, ok := p.Metadata["name"].(string); ok && name != "" {
		return name
	}
	if p.DeviceName != "" {
		return p.DeviceName
	}
	return p.PeerKey
}

// PresencePayload is replaced wholesale on every push.
type PresencePayload struct {
	LocalPeer   PeerInfo   `json:"local_peer"`
	RemotePeers []PeerInfo `json:"remote_peers"`
}

func (p *PresencePayload) DecodeValue(v Value) error {
	obj, err := v.Object()
	if err != nil {
		return err
	}
	local, err := obj.Require("local_peer")
	if err != nil {
		return err
	}
	if err := p.LocalPeer.DecodeValue(local); err != nil {
		return err
	}
	remote, err := obj.Require("remote_peers")
	if err != nil {
		return err
	}
	if p.RemotePeers, err = DecodeList[PeerInfo](remote); err != nil {
		return err
	}
	return nil
}

// OnlineCount counts this device plus its remote peers, or 0 when no peer is
// connected.
func (p PresencePayload) OnlineCount() int {
	if len(p.RemotePeers) == 0 {
		return 0
	}
	return len(p.RemotePeers) + 1
}
