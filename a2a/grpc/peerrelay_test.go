package grpc_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	grpclib "google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	a2agrpc "goa.design/swarmassistant/a2a/grpc"
)

type stubForwarder struct {
	reject bool
}

func (s stubForwarder) ForwardPeerMessage(msg a2agrpc.PeerMessage) a2agrpc.PeerAck {
	if s.reject || msg.TargetAgentID == "" {
		return a2agrpc.PeerAck{Accepted: false, Reason: "agent_not_found"}
	}
	return a2agrpc.PeerAck{Accepted: true}
}

func startServer(t *testing.T, forwarder a2agrpc.PeerForwarder) (addr string, stop func()) {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := grpclib.NewServer()
	a2agrpc.RegisterPeerRelayServer(s, forwarder)
	go func() { _ = s.Serve(lis) }()

	return lis.Addr().String(), s.Stop
}

func TestPeerRelayForwardsAMessageOverGRPC(t *testing.T) {
	addr, stop := startServer(t, stubForwarder{})
	defer stop()

	conn, err := grpclib.NewClient(addr, grpclib.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	client := a2agrpc.NewClient(conn)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ack, err := client.Forward(ctx, a2agrpc.PeerMessage{TargetAgentID: "peer-1", Payload: "hello"})
	require.NoError(t, err)
	assert.True(t, ack.Accepted)
}

func TestPeerRelayRejectsAMissingTargetAgentID(t *testing.T) {
	addr, stop := startServer(t, stubForwarder{})
	defer stop()

	conn, err := grpclib.NewClient(addr, grpclib.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	client := a2agrpc.NewClient(conn)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = client.Forward(ctx, a2agrpc.PeerMessage{Payload: "hello"})
	assert.Error(t, err)
}

func TestPeerRelayPropagatesRejectionFromForwarder(t *testing.T) {
	addr, stop := startServer(t, stubForwarder{reject: true})
	defer stop()

	conn, err := grpclib.NewClient(addr, grpclib.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	client := a2agrpc.NewClient(conn)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ack, err := client.Forward(ctx, a2agrpc.PeerMessage{TargetAgentID: "peer-1"})
	require.NoError(t, err)
	assert.False(t, ack.Accepted)
	assert.Equal(t, "agent_not_found", ack.Reason)
}
