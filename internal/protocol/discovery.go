package protocol

import (
	"encoding/binary"
	"time"
)

// Discovery is the decoded, verified form of a 50-byte discovery
// datagram (spec.md §4.1).
type Discovery struct {
	CommunityHash [CommunityHashSize]byte
	NodeID        [NodeIDSize]byte
	Port          uint16
	Timestamp     uint32
	Challenge     uint32
}

// EncodeDiscovery lays out the datagram exactly as spec.md §4.1 §Data model
// table specifies:
//
//	offset  size  field
//	0       8     community hash
//	8       16    node uuid
//	24      2     port
//	26      4     timestamp
//	30      4     challenge
//	34      16    signature
func EncodeDiscovery(community string, nodeID [NodeIDSize]byte, port uint16, timestamp time.Time, challenge uint32, apiKey []byte) []byte {
	buf := make([]byte, DiscoverySize)

	hash := CommunityHash(community)
	copy(buf[0:8], hash[:])
	copy(buf[8:24], nodeID[:])
	binary.BigEndian.PutUint16(buf[24:26], port)
	binary.BigEndian.PutUint32(buf[26:30], uint32(timestamp.Unix()))
	binary.BigEndian.PutUint32(buf[30:34], challenge)

	sig := sign(apiKey, buf[0:34], DiscoverySigSize)
	copy(buf[34:50], sig)

	return buf
}

// DecodeAndVerifyDiscovery validates length, community hash, and HMAC, and
// checks the timestamp is within DiscoveryFreshness of now. It does not
// enforce replay protection or self-origin filtering; those are the
// discovery component's responsibility (spec.md §4.2).
func DecodeAndVerifyDiscovery(data []byte, community string, apiKey []byte, now time.Time) (Discovery, error) {
	var d Discovery

	if len(data) != DiscoverySize {
		return d, ErrShortBuffer
	}

	wantHash := CommunityHash(community)
	var gotHash [CommunityHashSize]byte
	copy(gotHash[:], data[0:8])
	if gotHash != wantHash {
		return d, ErrBadSignature
	}

	sig := data[34:50]
	if !verify(apiKey, data[0:34], sig) {
		return d, ErrBadSignature
	}

	copy(d.CommunityHash[:], data[0:8])
	copy(d.NodeID[:], data[8:24])
	d.Port = binary.BigEndian.Uint16(data[24:26])
	d.Timestamp = binary.BigEndian.Uint32(data[26:30])
	d.Challenge = binary.BigEndian.Uint32(data[30:34])

	ts := time.Unix(int64(d.Timestamp), 0)
	skew := now.Sub(ts)
	if skew < 0 {
		skew = -skew
	}
	if skew > DiscoveryFreshness {
		return d, ErrStaleTimestamp
	}

	return d, nil
}
