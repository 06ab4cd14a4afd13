package session

import (
	"context"
	"testing"
	"time"

	"github.com/asoc-io/asoc/internal/identity"
	"github.com/asoc-io/asoc/internal/transport"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, apiKey string, cb Callbacks) (*Manager, identity.NodeID) {
	t.Helper()
	tr, err := transport.NewTransport(":0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })

	cfg := testCfg(apiKey)
	m := NewManager(cfg, tr, cb, nil)
	return m, cfg.LocalID
}

func TestManagerDialEstablishesSession(t *testing.T) {
	serverUp := make(chan identity.NodeID, 1)
	serverMgr, serverID := newTestManager(t, "shared-secret", Callbacks{
		OnPeerUp: func(peer identity.NodeID, _ *Session) { serverUp <- peer },
	})

	clientUp := make(chan identity.NodeID, 1)
	clientMgr, clientID := newTestManager(t, "shared-secret", Callbacks{
		OnPeerUp: func(peer identity.NodeID, _ *Session) { clientUp <- peer },
	})
	_ = clientID

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = serverMgr.Run(ctx, nil) }()

	sess, err := clientMgr.Dial(ctx, serverMgr.transport.LocalAddr().String(), serverID)
	require.NoError(t, err)
	go func() { _ = sess.Run(ctx) }()

	select {
	case got := <-serverUp:
		require.Equal(t, clientMgr.cfg.LocalID, got)
	case <-time.After(2 * time.Second):
		t.Fatal("server never observed peer up")
	}
}

func TestManagerRejectsDuplicatePeer(t *testing.T) {
	serverMgr, serverID := newTestManager(t, "shared-secret", Callbacks{})

	clientMgr1, _ := newTestManager(t, "shared-secret", Callbacks{})
	clientMgr2, _ := newTestManager(t, "shared-secret", Callbacks{})
	// Force both clients to present the same node id to the server.
	sharedID := identity.New()
	clientMgr1.cfg.LocalID = sharedID
	clientMgr2.cfg.LocalID = sharedID

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = serverMgr.Run(ctx, nil) }()

	addr := serverMgr.transport.LocalAddr().String()

	sess1, err := clientMgr1.Dial(ctx, addr, serverID)
	require.NoError(t, err)
	go func() { _ = sess1.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)

	_, err = clientMgr2.Dial(ctx, addr, serverID)
	require.Error(t, err)
}

func TestStaticPeerIDIsDeterministic(t *testing.T) {
	a := StaticPeerID("10.0.0.1:9000")
	b := StaticPeerID("10.0.0.1:9000")
	c := StaticPeerID("10.0.0.2:9000")
	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
}
