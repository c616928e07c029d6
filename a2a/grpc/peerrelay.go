// Package grpc binds ForwardPeerMessage (spec.md §4.3, §6) to a gRPC
// transport for nodes that prefer a persistent RPC channel over the
// plain-HTTP a2a.Server surface. Grounded on the teacher's
// example/cmd/assistant/grpc.go wiring shape (manual grpc.Server
// construction, ChainUnaryInterceptor, reflection.Register), adapted
// from goa-generated service descriptors to a hand-declared
// grpc.ServiceDesc: the teacher's descriptors are produced by protoc
// from a .proto file, which is out of reach without running the Go/proto
// toolchain, so this binding exchanges google.golang.org/protobuf's
// structpb.Struct instead of a generated message type — a real,
// schema-less protobuf message that needs no codegen.
package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// PeerForwarder is satisfied by DispatcherAdapter, which wraps
// *coordinator.Dispatcher.
type PeerForwarder interface {
	ForwardPeerMessage(msg PeerMessage) PeerAck
}

// PeerMessage mirrors coordinator.ForwardPeerMessage; DispatcherAdapter
// converts between the two.
type PeerMessage struct {
	TargetAgentID string
	Payload       string
}

// PeerAck mirrors coordinator.PeerMessageAck.
type PeerAck struct {
	Accepted bool
	Reason   string
}

const (
	serviceName = "swarmassistant.a2a.PeerRelay"
	methodName  = "Forward"
)

// ServiceDesc is the hand-declared gRPC service descriptor for the peer
// relay. It is registered against a *grpc.Server with RegisterPeerRelayServer.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*PeerForwarder)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: methodName,
			Handler:    forwardHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "swarmassistant/a2a/peerrelay.proto",
}

// RegisterPeerRelayServer registers srv's ForwardPeerMessage as the
// gRPC service's single unary method.
func RegisterPeerRelayServer(s *grpc.Server, srv PeerForwarder) {
	s.RegisterService(&ServiceDesc, srv)
}

func forwardHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return forward(ctx, srv.(PeerForwarder), in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/" + methodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return forward(ctx, srv.(PeerForwarder), req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func forward(_ context.Context, srv PeerForwarder, in *structpb.Struct) (*structpb.Struct, error) {
	fields := in.GetFields()
	targetAgentID := fields["targetAgentId"].GetStringValue()
	payload := fields["payload"].GetStringValue()
	if targetAgentID == "" {
		return nil, status.Error(codes.InvalidArgument, "targetAgentId is required")
	}

	ack := srv.ForwardPeerMessage(PeerMessage{TargetAgentID: targetAgentID, Payload: payload})
	return structpb.NewStruct(map[string]any{
		"accepted": ack.Accepted,
		"reason":   ack.Reason,
	})
}

// Client calls a peer relay service over a gRPC connection.
type Client struct {
	conn *grpc.ClientConn
}

// NewClient wraps an already-dialed *grpc.ClientConn.
func NewClient(conn *grpc.ClientConn) *Client {
	return &Client{conn: conn}
}

// Forward invokes the peer's Forward method.
func (c *Client) Forward(ctx context.Context, msg PeerMessage) (PeerAck, error) {
	req, err := structpb.NewStruct(map[string]any{
		"targetAgentId": msg.TargetAgentID,
		"payload":       msg.Payload,
	})
	if err != nil {
		return PeerAck{}, err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, "/"+serviceName+"/"+methodName, req, out); err != nil {
		return PeerAck{}, err
	}
	fields := out.GetFields()
	return PeerAck{
		Accepted: fields["accepted"].GetBoolValue(),
		Reason:   fields["reason"].GetStringValue(),
	}, nil
}
