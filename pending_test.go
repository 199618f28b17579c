package mqtt311

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPendingTableAddDispatchTake(t *testing.T) {
	table := newPendingTable()

	_, err := table.add(ackPuback, 1)
	require.NoError(t, err)

	suback := &SubackPacket{PacketID: 1, ReturnCodes: []byte{0}}
	_, err = table.add(ackSuback, 1)
	require.NoError(t, err, "same packet id under a different ack kind is distinct")

	require.NoError(t, table.dispatch(ackPuback, 1, nil))
	require.NoError(t, table.dispatch(ackSuback, 1, suback))

	entry := table.take(ackPuback, 1)
	require.NotNil(t, entry)
	assert.Nil(t, entry.result)

	entry = table.take(ackSuback, 1)
	require.NotNil(t, entry)
	assert.Equal(t, suback, entry.result)

	// Taken entries are gone
	assert.Nil(t, table.take(ackPuback, 1))
}

func TestPendingTableDuplicateAdd(t *testing.T) {
	table := newPendingTable()

	_, err := table.add(ackPuback, 5)
	require.NoError(t, err)

	_, err = table.add(ackPuback, 5)
	assert.ErrorIs(t, err, ErrPendingRequest)
}

func TestPendingTableUnexpectedAck(t *testing.T) {
	table := newPendingTable()

	err := table.dispatch(ackPuback, 99, nil)
	assert.ErrorIs(t, err, ErrUnexpectedAck)
}

func TestPendingTableLateAckAfterAbandon(t *testing.T) {
	table := newPendingTable()

	_, err := table.add(ackPuback, 7)
	require.NoError(t, err)

	table.abandon(ackPuback, 7)

	// Identifier stays reserved while the late ack is outstanding
	assert.True(t, table.inUse(7))

	// The late ack is released silently
	require.NoError(t, table.dispatch(ackPuback, 7, nil))
	assert.False(t, table.inUse(7))

	// A second ack for the same id is now unexpected
	assert.ErrorIs(t, table.dispatch(ackPuback, 7, nil), ErrUnexpectedAck)
}

func TestPendingTableTakeNotDone(t *testing.T) {
	table := newPendingTable()

	_, err := table.add(ackSuback, 2)
	require.NoError(t, err)

	assert.Nil(t, table.take(ackSuback, 2), "pending entry is not takeable")

	table.abandon(ackSuback, 2)
	assert.Nil(t, table.take(ackSuback, 2), "abandoned entry is not takeable")
}

func TestPendingTableClear(t *testing.T) {
	table := newPendingTable()

	_, err := table.add(ackPuback, 1)
	require.NoError(t, err)

	table.clear()
	assert.False(t, table.inUse(1))
}

func TestPacketIDAllocatorSkipsZeroAndInUse(t *testing.T) {
	table := newPendingTable()
	alloc := newPacketIDAllocator()

	id, ok := alloc.allocate(table)
	require.True(t, ok)
	assert.Equal(t, uint16(1), id)

	_, err := table.add(ackPuback, 2)
	require.NoError(t, err)

	id, ok = alloc.allocate(table)
	require.True(t, ok)
	assert.Equal(t, uint16(3), id, "identifier 2 is reserved")
}

func TestPacketIDAllocatorWrapsAroundZero(t *testing.T) {
	table := newPendingTable()
	alloc := &packetIDAllocator{next: 65535}

	id, ok := alloc.allocate(table)
	require.True(t, ok)
	assert.Equal(t, uint16(65535), id)

	id, ok = alloc.allocate(table)
	require.True(t, ok)
	assert.Equal(t, uint16(1), id, "zero is never handed out")
}
