package protocol

import (
	"bytes"
	"crypto/sha256"
	"testing"
	"time"
)

func testNodeID(seed byte) [NodeIDSize]byte {
	var id [NodeIDSize]byte
	for i := range id {
		id[i] = seed + byte(i)
	}
	return id
}

func TestDiscoveryRoundTrip(t *testing.T) {
	apiKey := []byte("test-secret-key")
	nodeID := testNodeID(1)
	now := time.Unix(1700000000, 0)

	encoded := EncodeDiscovery("my-cluster", nodeID, 9000, now, 0x12345678, apiKey)
	if len(encoded) != DiscoverySize {
		t.Fatalf("expected %d bytes, got %d", DiscoverySize, len(encoded))
	}

	decoded, err := DecodeAndVerifyDiscovery(encoded, "my-cluster", apiKey, now)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if decoded.NodeID != nodeID {
		t.Errorf("node id mismatch: got %x", decoded.NodeID)
	}
	if decoded.Port != 9000 {
		t.Errorf("expected port 9000, got %d", decoded.Port)
	}
	if decoded.Challenge != 0x12345678 {
		t.Errorf("expected challenge 0x12345678, got %#x", decoded.Challenge)
	}
}

func TestDiscoveryBadSignatureOnFlippedBit(t *testing.T) {
	apiKey := []byte("test-secret-key")
	now := time.Unix(1700000000, 0)
	encoded := EncodeDiscovery("my-cluster", testNodeID(1), 9000, now, 42, apiKey)

	encoded[34] ^= 0x01 // flip one bit in the signature

	if _, err := DecodeAndVerifyDiscovery(encoded, "my-cluster", apiKey, now); err != ErrBadSignature {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}
}

func TestDiscoveryWrongCommunity(t *testing.T) {
	apiKey := []byte("test-secret-key")
	now := time.Unix(1700000000, 0)
	encoded := EncodeDiscovery("cluster-a", testNodeID(1), 9000, now, 42, apiKey)

	if _, err := DecodeAndVerifyDiscovery(encoded, "cluster-b", apiKey, now); err != ErrBadSignature {
		t.Fatalf("expected ErrBadSignature for wrong community, got %v", err)
	}
}

func TestDiscoveryWrongAPIKey(t *testing.T) {
	now := time.Unix(1700000000, 0)
	encoded := EncodeDiscovery("c1", testNodeID(1), 9000, now, 42, []byte("k1"))

	if _, err := DecodeAndVerifyDiscovery(encoded, "c1", []byte("k2"), now); err != ErrBadSignature {
		t.Fatalf("expected ErrBadSignature for wrong api key, got %v", err)
	}
}

func TestDiscoveryWrongLength(t *testing.T) {
	if _, err := DecodeAndVerifyDiscovery([]byte{1, 2, 3}, "c", []byte("k"), time.Now()); err != ErrShortBuffer {
		t.Fatalf("expected ErrShortBuffer, got %v", err)
	}
}

func TestDiscoveryStaleTimestamp(t *testing.T) {
	apiKey := []byte("test-secret-key")
	sent := time.Unix(1700000000, 0)
	encoded := EncodeDiscovery("my-cluster", testNodeID(1), 9000, sent, 42, apiKey)

	later := sent.Add(2 * time.Minute)
	if _, err := DecodeAndVerifyDiscovery(encoded, "my-cluster", apiKey, later); err != ErrStaleTimestamp {
		t.Fatalf("expected ErrStaleTimestamp, got %v", err)
	}
}

func TestCommunityHashMatchesSHA256Prefix(t *testing.T) {
	h := CommunityHash("my-cluster")
	if len(h) != CommunityHashSize {
		t.Fatalf("expected %d bytes, got %d", CommunityHashSize, len(h))
	}
	sum := sha256.Sum256([]byte("my-cluster"))
	if !bytes.Equal(h[:], sum[:CommunityHashSize]) {
		t.Fatalf("community hash %x is not the SHA-256 prefix %x", h, sum[:CommunityHashSize])
	}
	// Recomputing must be deterministic.
	if h != CommunityHash("my-cluster") {
		t.Fatalf("community hash is not deterministic")
	}
	if h == CommunityHash("other-cluster") {
		t.Fatalf("distinct communities collided")
	}
}
