// Package outbound keeps a copy of every MESSAGE frame the client has
// sent and not yet had ACKed, so that a NACK can trigger a verbatim
// resend.
package outbound

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Tracker maps an in-flight packet_number to the exact bytes that were
// sent for it. Entries are inserted before the frame goes out on the
// wire and removed when the matching ACK arrives.
type Tracker struct {
	mu       sync.Mutex
	messages map[uint16][]byte
}

// New returns an empty Tracker.
func New() *Tracker {
	return &Tracker{messages: make(map[uint16][]byte)}
}

// Track records frame under packetNumber. It reports an error if that
// packet number is already in flight, mirroring the client's refusal to
// reuse an unacknowledged number.
func (t *Tracker) Track(packetNumber uint16, frame []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.messages[packetNumber]; exists {
		return fmt.Errorf("outbound: packet number %d already in flight", packetNumber)
	}
	cp := make([]byte, len(frame))
	copy(cp, frame)
	t.messages[packetNumber] = cp
	return nil
}

// Ack discards the tracked frame for packetNumber. It logs, rather than
// errors, on a duplicate or unknown ACK: the wire is allowed to surprise
// a client, but it should not crash one.
func (t *Tracker) Ack(packetNumber uint16) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, existed := t.messages[packetNumber]; !existed {
		logrus.Warnf("[Outbound] server acknowledged packet %d we weren't tracking", packetNumber)
		return
	}
	delete(t.messages, packetNumber)
}

// Resend returns the exact bytes previously tracked under packetNumber,
// for retransmission on a NACK. The second return value is false when
// the server NACKed a packet number the client has no record of, which
// the client treats as unrecoverable.
func (t *Tracker) Resend(packetNumber uint16) ([]byte, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	frame, ok := t.messages[packetNumber]
	return frame, ok
}

// Len reports how many frames are currently in flight.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.messages)
}
