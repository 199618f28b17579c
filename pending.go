package mqtt311

import "time"

// ackKind identifies which acknowledgment packet completes a request.
type ackKind byte

const (
	ackPuback ackKind = iota
	ackSuback
	ackUnsuback
)

func (k ackKind) String() string {
	switch k {
	case ackPuback:
		return "PUBACK"
	case ackSuback:
		return "SUBACK"
	case ackUnsuback:
		return "UNSUBACK"
	default:
		return "UNKNOWN"
	}
}

// pendingState is the lifecycle of a tracked request.
type pendingState byte

const (
	// statePending means the request is on the wire awaiting its ack.
	statePending pendingState = iota

	// stateDone means the ack arrived and carries the result.
	stateDone

	// stateAbandoned means the waiter gave up (delivery timeout). A late
	// ack for an abandoned entry is discarded silently instead of being
	// treated as a protocol violation.
	stateAbandoned
)

// pendingEntry tracks one in-flight acknowledged request.
type pendingEntry struct {
	kind     ackKind
	packetID uint16
	state    pendingState
	sentAt   time.Time

	// result carries the completed ack packet (a *SubackPacket for
	// SUBSCRIBE; nil for PUBACK and UNSUBACK).
	result Packet
}

// pendingKey identifies an entry by ack kind and packet identifier.
// SUBACK 5 and PUBACK 5 are distinct requests.
type pendingKey struct {
	kind ackKind
	id   uint16
}

// pendingTable tracks all in-flight acknowledged requests for one
// connection. It is not safe for concurrent use; the owning connection
// serializes access.
type pendingTable struct {
	entries map[pendingKey]*pendingEntry
}

func newPendingTable() *pendingTable {
	return &pendingTable{
		entries: make(map[pendingKey]*pendingEntry),
	}
}

// add registers a new in-flight request. Returns ErrPendingRequest if
// an entry with the same kind and packet identifier is already live.
func (t *pendingTable) add(kind ackKind, packetID uint16) (*pendingEntry, error) {
	key := pendingKey{kind: kind, id: packetID}
	if existing, ok := t.entries[key]; ok && existing.state == statePending {
		return nil, ErrPendingRequest
	}

	entry := &pendingEntry{
		kind:     kind,
		packetID: packetID,
		state:    statePending,
		sentAt:   time.Now(),
	}
	t.entries[key] = entry
	return entry, nil
}

// dispatch routes an inbound acknowledgment to its pending entry.
// An ack with no matching entry returns ErrUnexpectedAck. An ack for
// an abandoned entry releases the entry and returns no error, so a late
// ack after a delivery timeout is harmless.
func (t *pendingTable) dispatch(kind ackKind, packetID uint16, result Packet) error {
	key := pendingKey{kind: kind, id: packetID}
	entry, ok := t.entries[key]
	if !ok {
		return ErrUnexpectedAck
	}

	switch entry.state {
	case statePending:
		entry.state = stateDone
		entry.result = result
		return nil
	case stateAbandoned:
		// Late ack for a timed-out request. Release the slot.
		delete(t.entries, key)
		return nil
	default:
		return ErrUnexpectedAck
	}
}

// abandon marks an entry as given up. Its packet identifier stays
// reserved until the late ack arrives or the entry is cleared.
func (t *pendingTable) abandon(kind ackKind, packetID uint16) {
	key := pendingKey{kind: kind, id: packetID}
	if entry, ok := t.entries[key]; ok && entry.state == statePending {
		entry.state = stateAbandoned
	}
}

// take removes a completed entry and returns it. Returns nil if the
// entry does not exist or is not done.
func (t *pendingTable) take(kind ackKind, packetID uint16) *pendingEntry {
	key := pendingKey{kind: kind, id: packetID}
	entry, ok := t.entries[key]
	if !ok || entry.state != stateDone {
		return nil
	}
	delete(t.entries, key)
	return entry
}

// inUse reports whether any entry reserves the given packet identifier,
// regardless of ack kind or state.
func (t *pendingTable) inUse(packetID uint16) bool {
	for key := range t.entries {
		if key.id == packetID {
			return true
		}
	}
	return false
}

// clear drops all entries. Used when the connection is torn down.
func (t *pendingTable) clear() {
	t.entries = make(map[pendingKey]*pendingEntry)
}

// packetIDAllocator hands out 16-bit packet identifiers, skipping zero
// and identifiers still reserved by the pending table.
type packetIDAllocator struct {
	next uint16
}

func newPacketIDAllocator() *packetIDAllocator {
	return &packetIDAllocator{next: 1}
}

// allocate returns the next free packet identifier. Identifier zero is
// never returned. Returns false only if all 65535 identifiers are
// reserved, which cannot happen under the single-outstanding-request
// discipline the connection enforces.
func (a *packetIDAllocator) allocate(pending *pendingTable) (uint16, bool) {
	for i := 0; i < maxUint16; i++ {
		id := a.next

		a.next++
		if a.next == 0 {
			a.next = 1
		}

		if !pending.inUse(id) {
			return id, true
		}
	}
	return 0, false
}
