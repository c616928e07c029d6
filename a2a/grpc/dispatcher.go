package grpc

import "goa.design/swarmassistant/coordinator"

// DispatcherAdapter adapts *coordinator.Dispatcher to PeerForwarder,
// translating between the package-local PeerMessage/PeerAck shapes and
// coordinator's own ForwardPeerMessage/PeerMessageAck types so this
// binding stays importable without coordinator depending on gRPC.
type DispatcherAdapter struct {
	Dispatcher *coordinator.Dispatcher
}

// ForwardPeerMessage implements PeerForwarder.
func (a DispatcherAdapter) ForwardPeerMessage(msg PeerMessage) PeerAck {
	ack := a.Dispatcher.ForwardPeerMessage(coordinator.ForwardPeerMessage{
		TargetAgentID: msg.TargetAgentID,
		Payload:       msg.Payload,
	})
	return PeerAck{Accepted: ack.Accepted, Reason: ack.Reason}
}
