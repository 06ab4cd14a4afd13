package integration

import (
	"testing"
	"time"

	"github.com/asoc-io/asoc"
	"github.com/asoc-io/asoc/internal/identity"
	"github.com/asoc-io/asoc/internal/logger"
)

// Network wires up a small cluster of Nodes sharing one community and
// API key, connected by static peer lists rather than UDP discovery —
// discovery's datagram handling is exercised by internal/discovery's own
// tests (without a socket); these scenarios exist to drive the public API end to end
// (spec.md §8's concrete scenarios).
type Network struct {
	t     *testing.T
	nodes []*asoc.Node
}

func NewNetwork(t *testing.T) *Network {
	t.Helper()
	return &Network{t: t}
}

// NewNode starts a fresh node on an ephemeral port with discovery
// disabled, statically peered to every address in staticPeers.
func (n *Network) NewNode(community string, apiKey []byte, staticPeers ...string) *asoc.Node {
	n.t.Helper()

	node, err := asoc.NewNode(asoc.Config{
		Community:       community,
		APIKey:          apiKey,
		Port:            0,
		EnableDiscovery: false,
		StaticPeers:     staticPeers,
		Logger:          logger.NewLogger(),
	})
	if err != nil {
		n.t.Fatalf("asoc.NewNode: %v", err)
	}
	if err := node.Start(); err != nil {
		n.t.Fatalf("node.Start: %v", err)
	}

	n.nodes = append(n.nodes, node)
	return node
}

// WaitForPeer blocks until node reports peerID among its established
// sessions, failing the test if it doesn't within timeout.
func (n *Network) WaitForPeer(node *asoc.Node, peerID identity.NodeID, timeout time.Duration) {
	n.t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		for _, p := range node.Peers() {
			if p == peerID {
				return
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	n.t.Fatalf("peer %v never appeared in Peers()", peerID)
}

func (n *Network) Close() {
	for _, node := range n.nodes {
		_ = node.Shutdown()
	}
}
