package domain

import "encoding/json"

// Inbound message types.
const (
	TypeStartStream  = "start-stream"
	TypeJoinStream   = "join-stream"
	TypeStopStream   = "stop-stream"
	TypeOffer        = "offer"
	TypeAnswer       = "answer"
	TypeICECandidate = "ice-candidate"
	TypeWebRTCSignal = "webrtc-signal"
)

// Outbound message types.
const (
	TypeStreamStarted        = "stream-started"
	TypeStreamJoined         = "stream-joined"
	TypeViewerJoined         = "viewer-joined"
	TypeViewerLeft           = "viewer-left"
	TypeStreamEnded          = "stream-ended"
	TypeStreamerDisconnected = "streamer-disconnected"
	TypeRoomNotFound         = "room-not-found"
	TypeError                = "error"
)

// Message is the wire envelope for every signaling message, both directions.
// SDP, Candidate and Signal carry opaque blobs; the server relays them
// verbatim and never inspects their contents.
type Message struct {
	Type          string          `json:"type"`
	RoomID        string          `json:"roomId,omitempty"`
	Target        string          `json:"target,omitempty"`
	Sender        string          `json:"sender,omitempty"`
	ViewerID      string          `json:"viewerId,omitempty"`
	BroadcasterID string          `json:"broadcasterId,omitempty"`
	SDP           json.RawMessage `json:"sdp,omitempty"`
	Candidate     json.RawMessage `json:"candidate,omitempty"`
	Signal        json.RawMessage `json:"signal,omitempty"`
	SignalType    string          `json:"signalType,omitempty"`
	Error         string          `json:"message,omitempty"`
}

// Outbound is a routing effect: one message addressed to one connection.
type Outbound struct {
	Target  string
	Message Message
}

type Connection interface {
	ID() string
	Send(data []byte) error
	Close() error
}

type Registry interface {
	Register(conn Connection)
	Unregister(conn Connection)
	Deliver(effects []Outbound)
	Stats() (connections int)
}

type MessageRouter interface {
	Route(senderID string, data []byte) []Outbound
}

type DisconnectHandler interface {
	Disconnect(connID string) []Outbound
}
